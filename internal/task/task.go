// Package task holds the named operations that can be run against a
// configured layout, and the order they run in.
package task

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/qobs-build/outdir/internal/graph"
	"github.com/qobs-build/outdir/internal/msg"
)

var (
	ErrUnknownTask   = errors.New("unknown task")
	ErrDuplicateTask = errors.New("task already registered")
)

type Action func(ctx context.Context) error

type Task struct {
	Name        string
	Description string
	DependsOn   []string
	Action      Action
}

// Graph is a set of tasks connected by DependsOn edges.
type Graph struct {
	tasks map[string]Task
	names []string // registration order
}

func NewGraph() *Graph {
	return &Graph{tasks: make(map[string]Task)}
}

func (g *Graph) Register(t Task) error {
	if t.Name == "" {
		return errors.New("task name must not be empty")
	}
	if _, ok := g.tasks[t.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, t.Name)
	}
	t.DependsOn = slices.Clone(t.DependsOn)
	g.tasks[t.Name] = t
	g.names = append(g.names, t.Name)
	return nil
}

// Tasks returns the registered tasks in registration order.
func (g *Graph) Tasks() []Task {
	out := make([]Task, 0, len(g.names))
	for _, name := range g.names {
		out = append(out, g.tasks[name])
	}
	return out
}

func (g *Graph) Lookup(name string) (Task, bool) {
	t, ok := g.tasks[name]
	return t, ok
}

// Order returns the requested tasks and everything they depend on, each
// task after its dependencies.
func (g *Graph) Order(names ...string) ([]string, error) {
	for _, name := range names {
		if _, ok := g.tasks[name]; !ok {
			known := slices.Sorted(maps.Keys(g.tasks))
			return nil, fmt.Errorf("%w %q (known tasks: %v)", ErrUnknownTask, name, known)
		}
	}

	deps := make(map[string][]string, len(g.tasks))
	for name, t := range g.tasks {
		deps[name] = t.DependsOn
	}

	closure := graph.Closure(g.names, deps, names...)
	return graph.TopoSort(closure, deps)
}

// Run executes the requested tasks in dependency order, one at a time. The
// first failure stops the run.
func (g *Graph) Run(ctx context.Context, names ...string) error {
	order, err := g.Order(names...)
	if err != nil {
		return err
	}

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg.Debug("> task :%s", name)
		t := g.tasks[name]
		if t.Action == nil {
			continue
		}
		if err := t.Action(ctx); err != nil {
			return fmt.Errorf("task %q: %w", name, err)
		}
	}
	return nil
}
