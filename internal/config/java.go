package config

import (
	"fmt"
	"strconv"
	"strings"
)

// JavaVersion is a Java language level. Legacy spellings such as "1.8" and
// Gradle's "VERSION_1_8" / "VERSION_17" are accepted.
type JavaVersion int

func ParseJavaVersion(s string) (JavaVersion, error) {
	v := strings.TrimSpace(s)
	v = strings.TrimPrefix(v, "VERSION_")
	v = strings.ReplaceAll(v, "_", ".")
	v = strings.TrimPrefix(v, "1.")

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid java version %q", s)
	}
	return JavaVersion(n), nil
}

func (v JavaVersion) String() string {
	if v <= 8 {
		return "1." + strconv.Itoa(int(v))
	}
	return strconv.Itoa(int(v))
}

func (v JavaVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *JavaVersion) UnmarshalText(text []byte) error {
	parsed, err := ParseJavaVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
