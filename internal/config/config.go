package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
	"github.com/qobs-build/outdir/internal/resolve"
)

// SettingsFilename marks the root project directory.
const SettingsFilename = "Outdir.toml"

const (
	DefaultBuildDir    = "../../build"
	DefaultJavaVersion = JavaVersion(17)
)

var (
	DefaultRepositories        = []string{"google", "mavenCentral"}
	DefaultEvaluationDependsOn = []string{":app"}
)

type Config struct {
	Buildscript BuildscriptSection        `toml:"buildscript"`
	Allprojects AllprojectsSection        `toml:"allprojects"`
	Layout      LayoutSection             `toml:"layout"`
	Settings    SettingsSection           `toml:"settings"`
	Subprojects SubprojectsSection        `toml:"subprojects"`
	Projects    map[string]ProjectSection `toml:"projects"`
}

// BuildscriptSection defines the [buildscript] section
type BuildscriptSection struct {
	Repositories []string          `toml:"repositories"`
	Classpath    []string          `toml:"classpath"`
	Extra        map[string]string `toml:"extra"`
}

// AllprojectsSection defines the [allprojects(.*)] section
type AllprojectsSection struct {
	Repositories []string          `toml:"repositories"`
	Extra        map[string]string `toml:"extra"`
	Java         JavaSection       `toml:"java"`
}

// JavaSection defines [allprojects.java]
type JavaSection struct {
	SourceCompatibility JavaVersion `toml:"source_compatibility"`
	TargetCompatibility JavaVersion `toml:"target_compatibility"`
}

// LayoutSection defines the [layout] section
type LayoutSection struct {
	// BuildDir is resolved against the root project's default build directory.
	BuildDir string `toml:"build_dir"`
}

// SettingsSection defines the [settings] section
type SettingsSection struct {
	Include []string `toml:"include"`
}

// SubprojectsSection defines the [subprojects] section
type SubprojectsSection struct {
	EvaluationDependsOn []string `toml:"evaluation_depends_on"`
}

// ProjectSection defines a [projects.<name>] section
type ProjectSection struct {
	EvaluationDependsOn []string `toml:"evaluation_depends_on"`
}

// Default returns the configuration used when a key is not present in the
// settings file.
func Default() *Config {
	return &Config{
		Buildscript: BuildscriptSection{
			Repositories: slices.Clone(DefaultRepositories),
		},
		Allprojects: AllprojectsSection{
			Repositories: slices.Clone(DefaultRepositories),
			Java: JavaSection{
				SourceCompatibility: DefaultJavaVersion,
				TargetCompatibility: DefaultJavaVersion,
			},
		},
		Layout: LayoutSection{
			BuildDir: DefaultBuildDir,
		},
		Subprojects: SubprojectsSection{
			EvaluationDependsOn: slices.Clone(DefaultEvaluationDependsOn),
		},
	}
}

// Validate reports the first configuration error
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Layout.BuildDir) == "" {
		return errors.New("[layout] build_dir must not be empty")
	}
	java := c.Allprojects.Java
	if java.SourceCompatibility <= 0 || java.TargetCompatibility <= 0 {
		return errors.New("[allprojects.java] compatibility levels must be set")
	}
	if java.TargetCompatibility < java.SourceCompatibility {
		return fmt.Errorf("[allprojects.java] target_compatibility %s is lower than source_compatibility %s",
			java.TargetCompatibility, java.SourceCompatibility)
	}
	for _, repo := range slices.Concat(c.Buildscript.Repositories, c.Allprojects.Repositories) {
		if _, err := resolve.ParseRepository(repo); err != nil {
			return err
		}
	}
	for _, coord := range c.Buildscript.Classpath {
		if _, err := resolve.ParseCoordinate(coord); err != nil {
			return fmt.Errorf("[buildscript] classpath: %w", err)
		}
	}
	for _, include := range c.Settings.Include {
		if strings.TrimSpace(include) == "" {
			return errors.New("[settings] include entries must not be empty")
		}
	}
	return nil
}

// mergeStructs merges the fields of the src struct into the dst struct
func mergeStructs(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Pointer || dstVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dst must be a pointer to a struct")
	}

	dstElem := dstVal.Elem()
	srcVal := reflect.ValueOf(src)

	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}

	if srcVal.Kind() != reflect.Struct {
		return fmt.Errorf("src must be a struct or a pointer to a struct")
	}

	if dstElem.Type() != srcVal.Type() {
		return fmt.Errorf("dst and src must be of the same struct type")
	}

	for i := range srcVal.NumField() {
		srcField := srcVal.Field(i)
		dstField := dstElem.Field(i)

		if !dstField.CanSet() {
			continue
		}

		switch dstField.Kind() {
		case reflect.Slice:
			if !srcField.IsNil() {
				dstField.Set(reflect.AppendSlice(dstField, srcField))
			}
		case reflect.Map:
			if !srcField.IsNil() {
				if dstField.IsNil() {
					dstField.Set(reflect.MakeMap(dstField.Type()))
				}
				for _, key := range srcField.MapKeys() {
					dstField.SetMapIndex(key, srcField.MapIndex(key))
				}
			}
		case reflect.Struct:
			if err := mergeStructs(dstField.Addr().Interface(), srcField.Interface()); err != nil {
				return err
			}
		default:
			if !srcField.IsZero() {
				dstField.Set(srcField)
			}
		}
	}

	return nil
}

func mustMarshal(v any) string {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// unmarshalSection is a helper to parse sections without conditional logic
func unmarshalSection(rawCfg map[string]any, name string, dst any) error {
	if data, ok := rawCfg[name]; ok {
		if err := toml.Unmarshal([]byte(mustMarshal(data)), dst); err != nil {
			return fmt.Errorf("failed to parse [%s] section: %w", name, err)
		}
	}
	return nil
}

// unmarshalConditionalSection is a helper to parse, evaluate and merge multiple sections with conditional logic
func unmarshalConditionalSection[T any](rawCfg map[string]any, name string, dst *T, env ConfigEnv) error {
	sectionData, ok := rawCfg[name]
	if !ok {
		return nil
	}

	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid [%s] section format: expected a table", name)
	}

	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range sectionMap {
		if subMap, ok := val.(map[string]any); ok {
			_, err := expr.Compile(key, expr.Env(env), expr.AsBool())
			if err == nil {
				conditionalFields[key] = subMap
			} else {
				baseFields[key] = val
			}
		} else {
			baseFields[key] = val
		}
	}

	if len(baseFields) > 0 {
		if err := toml.Unmarshal([]byte(mustMarshal(baseFields)), dst); err != nil {
			return fmt.Errorf("failed to parse base [%s] section: %w", name, err)
		}
	}

	// evaluate in a stable order so later sections win deterministically
	for _, expression := range slices.Sorted(maps.Keys(conditionalFields)) {
		condMap := conditionalFields[expression]
		program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
		if err != nil {
			return fmt.Errorf("failed to compile expression for [%s.%q]: %w", name, expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return fmt.Errorf("failed to run expression for [%s.%q]: %w", name, expression, err)
		}

		// merge sections if the result is true
		if matched, ok := result.(bool); !ok || !matched {
			continue
		}

		var condSection T
		if err := toml.Unmarshal([]byte(mustMarshal(condMap)), &condSection); err != nil {
			return fmt.Errorf("failed to parse conditional section [%s.%q]: %w", name, expression, err)
		}
		if err := mergeStructs(dst, condSection); err != nil {
			return fmt.Errorf("failed to merge conditional section [%s.%q]: %w", name, expression, err)
		}
	}

	return nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env ConfigEnv) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var builder strings.Builder
	lastIndex := 0

	for _, matchIndexes := range matches {
		fullMatchStart := matchIndexes[0]
		fullMatchEnd := matchIndexes[1]
		expressionStart := matchIndexes[2]
		expressionEnd := matchIndexes[3]

		builder.WriteString(s[lastIndex:fullMatchStart])

		expression := strings.TrimSpace(s[expressionStart:expressionEnd])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		fmt.Fprintf(&builder, "%v", result)
		lastIndex = fullMatchEnd
	}

	builder.WriteString(s[lastIndex:])

	return builder.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates expressions in strings
func processExpressions(data any, env ConfigEnv) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

// buildscriptExtra pulls the raw [buildscript.extra] table so that the rest of
// the file can reference it as `ext`.
func buildscriptExtra(rawCfg map[string]any) map[string]string {
	ext := make(map[string]string)
	bs, ok := rawCfg["buildscript"].(map[string]any)
	if !ok {
		return ext
	}
	extra, ok := bs["extra"].(map[string]any)
	if !ok {
		return ext
	}
	for k, v := range extra {
		ext[k] = fmt.Sprint(v)
	}
	return ext
}

func ParseConfig(rdr io.Reader, env ConfigEnv) (*Config, error) {
	var rawConfig map[string]any
	dec := toml.NewDecoder(rdr)
	if err := dec.Decode(&rawConfig); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}
	if rawConfig == nil {
		rawConfig = make(map[string]any)
	}

	env.Ext = buildscriptExtra(rawConfig)

	processedConfig, err := processExpressions(rawConfig, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in config: %w", err)
	}
	rawConfig = processedConfig.(map[string]any)

	cfg := Default()

	if err := unmarshalSection(rawConfig, "buildscript", &cfg.Buildscript); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "allprojects", &cfg.Allprojects, env); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "layout", &cfg.Layout); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "settings", &cfg.Settings); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "subprojects", &cfg.Subprojects); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "projects", &cfg.Projects); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParseConfigFromFile parses and validates a config file from a filepath
func ParseConfigFromFile(path string, env ConfigEnv) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := ParseConfig(bufio.NewReader(f), env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

//
// expr-lang environment
//

type ConfigEnv struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
	Ext        map[string]string `expr:"ext"`
}

func NewConfigEnv() ConfigEnv {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}

	return ConfigEnv{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
	}
}

// Getenv returns the environment variable `name`, or `fallback` when it is unset.
func (env ConfigEnv) Getenv(name, fallback string) string {
	if v, ok := env.Environ[name]; ok {
		return v
	}
	return fallback
}
