package main

import "github.com/qobs-build/outdir/cmd"

func main() {
	cmd.Execute()
}
