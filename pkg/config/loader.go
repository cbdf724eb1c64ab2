// Package config loads service and consumer configuration from struct tag
// defaults, a YAML or JSON file, and environment variables. Later layers
// win:
//
//	envDefault struct tags
//	YAML/JSON file
//	environment variables
//
// # Struct Tags
//
//   - `env:"NAME"` reads the field from NAME (after the loader's prefix).
//     On a nested struct the tag becomes a prefix for its fields.
//   - `envDefault:"value"` fills the field while it is zero. Defaults also
//     reach structs held in slices, so every entry of a consumers list
//     gets its own clock skew default.
//   - `required:"true"` fails loading when the field is still zero.
//
// Supported field types are strings and named string types, bool, signed
// and unsigned integers, float64, time.Duration, string slices
// ("a, b, c") and string maps ("k1=v1,k2=v2").
//
// # Usage
//
//	var f config.File
//	if err := config.New().WithFile("consumers.yaml").Load(&f); err != nil {
//	    return err
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
)

var durationType = reflect.TypeOf(time.Duration(0))

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// Loader resolves configuration layers into a struct. A Loader is not safe
// for concurrent use.
type Loader struct {
	envPrefix string
	filePath  string
	lookup    LookupFunc
}

// New returns a Loader that reads the process environment only.
func New() *Loader {
	return &Loader{lookup: os.LookupEnv}
}

// WithEnvPrefix prepends PREFIX_ to every environment variable name. The
// prefix is uppercased.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile adds a .yaml, .yml or .json file layer. A missing file is not an
// error. Paths containing ".." are rejected by Load.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// WithLookup replaces os.LookupEnv.
func (l *Loader) WithLookup(fn LookupFunc) *Loader {
	if fn != nil {
		l.lookup = fn
	}
	return l
}

// Load fills cfg, which must be a non-nil pointer to a struct, and then
// validates it: required fields first, then [Validator] if cfg implements
// it. Loading failures carry CodeInternalConfiguration; validation
// failures keep the code returned by the check.
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a pointer to a struct")
	}

	if err := applyDefaults(rv); err != nil {
		return err
	}
	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
		// Entries decoded from the file did not exist on the first pass.
		if err := applyDefaults(rv); err != nil {
			return err
		}
	}
	if err := l.applyEnv(rv, l.envPrefix); err != nil {
		return err
	}
	return validate(cfg, rv)
}

// MustLoad loads a T and panics on failure. Use it only in main.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to parse YAML file %q", l.filePath)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to parse JSON file %q", l.filePath)
		}
	default:
		return sserr.Newf(sserr.CodeInternalConfiguration,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}
	return nil
}

// isNested reports whether v should be walked field by field rather than
// set from a single string.
func isNested(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != durationType
}

func applyDefaults(rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}

		switch {
		case isNested(sf.Type):
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		case field.Kind() == reflect.Slice && isNested(sf.Type.Elem()):
			for j := 0; j < field.Len(); j++ {
				if err := applyDefaults(field.Index(j)); err != nil {
					return err
				}
			}
			continue
		}

		tag, ok := sf.Tag.Lookup("envDefault")
		if !ok || !field.IsZero() {
			continue
		}
		if err := setField(field, tag); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to apply default for field %q", sf.Name)
		}
	}
	return nil
}

func (l *Loader) applyEnv(rv reflect.Value, prefix string) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		envTag := sf.Tag.Get("env")

		if isNested(sf.Type) {
			if err := l.applyEnv(field, joinEnv(prefix, envTag)); err != nil {
				return err
			}
			continue
		}
		if envTag == "" {
			continue
		}

		key := joinEnv(prefix, envTag)
		val, ok := l.lookup(key)
		if !ok {
			continue
		}
		if err := setField(field, val); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to set field %q from env var %q", sf.Name, key)
		}
	}
	return nil
}

func joinEnv(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	default:
		return prefix + "_" + name
	}
}

// setField parses value into field according to the field's kind.
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse unsigned integer %q: %w", value, err)
		}
		field.SetUint(n)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse float %q: %w", value, err)
		}
		field.SetFloat(f)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := splitTrimmed(value)
		// MakeSlice keeps named slice types assignable.
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(p)
		}
		field.Set(slice)

	case reflect.Map:
		t := field.Type()
		if t.Key().Kind() != reflect.String || t.Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported map type %s", t)
		}
		m := reflect.MakeMapWithSize(t, 0)
		for _, pair := range splitTrimmed(value) {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("map entry %q is not key=value", pair)
			}
			m.SetMapIndex(reflect.ValueOf(strings.TrimSpace(k)).Convert(t.Key()),
				reflect.ValueOf(strings.TrimSpace(v)).Convert(t.Elem()))
		}
		field.Set(m)

	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}

// splitTrimmed splits a comma-separated list, trims entries and drops
// empty ones. The result is never nil.
func splitTrimmed(value string) []string {
	out := []string{}
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
