package expand

import (
	"fmt"
	"strconv"
	"strings"
)

// ConverterError reports an unknown converter name or a value the
// converter rejected.
type ConverterError struct {
	Name  string
	Value string
	Cause error
}

func (e *ConverterError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("expand: unknown converter %q", e.Name)
	}
	return fmt.Sprintf("expand: converter %q rejected value %q: %v", e.Name, e.Value, e.Cause)
}

func (e *ConverterError) Unwrap() error { return e.Cause }

// ConverterFunc post-processes an entity's emitted value after sentence
// assembly. It never sees or alters the matched text.
type ConverterFunc func(value string) (any, error)

// Converters is a lookup table of named converters. Custom converters are
// injected alongside the builtins; the table is read-only once built.
type Converters map[string]ConverterFunc

// NewConverters returns the builtin converter table merged with extra.
// Extra entries shadow builtins of the same name.
func NewConverters(extra Converters) Converters {
	table := Converters{
		"int": func(v string) (any, error) {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("not an integer")
			}
			return n, nil
		},
		"float": func(v string) (any, error) {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("not a number")
			}
			return f, nil
		},
		"bool": func(v string) (any, error) {
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "on", "yes", "1":
				return true, nil
			case "false", "off", "no", "0":
				return false, nil
			}
			return nil, fmt.Errorf("not a boolean")
		},
		"lower": func(v string) (any, error) { return strings.ToLower(v), nil },
		"upper": func(v string) (any, error) { return strings.ToUpper(v), nil },
	}
	for name, fn := range extra {
		table[name] = fn
	}
	return table
}

// Apply runs the named converter over value. An empty name passes value
// through unchanged.
func (c Converters) Apply(name string, value string) (any, error) {
	if name == "" {
		return value, nil
	}
	fn, ok := c[name]
	if !ok {
		return nil, &ConverterError{Name: name}
	}
	out, err := fn(value)
	if err != nil {
		return nil, &ConverterError{Name: name, Value: value, Cause: err}
	}
	return out, nil
}
