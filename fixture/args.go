package fixture

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Values holds normalized command arguments: int for numeric kinds, string
// for textual.
type Values map[string]any

// Int returns the integer value of name
func (v Values) Int(name string) (int, bool) {
	i, ok := v[name].(int)
	return i, ok
}

// String returns the text value of name
func (v Values) String(name string) (string, bool) {
	s, ok := v[name].(string)
	return s, ok
}

// Kind returns the kind of the named argument
func (c *Command) Kind(name string) Kind {
	return c.profile.params[name].Kind
}

// Parameter returns the definition behind one of the command's arguments
func (c *Command) Parameter(name string) *Parameter {
	return c.profile.params[name]
}

// DomainFor returns the domain of arg given already-chosen values. For a
// conditional argument the controlling value must be present in values.
func (c *Command) DomainFor(name string, values Values) (Domain, error) {
	arg, ok := c.argument(name)
	if !ok {
		return Domain{}, fmt.Errorf("%w: %s does not take %q", ErrInvalidArgument, c.ID, name)
	}
	def := c.profile.params[name]
	if def.ConditionalOn == "" {
		return arg.Domain, nil
	}
	ctl, ok := values.Int(def.ConditionalOn)
	if !ok {
		return Domain{}, fmt.Errorf("%w: %s depends on %s, which has no value", ErrInvalidArgument, name, def.ConditionalOn)
	}
	d, ok := arg.By[ctl]
	if !ok {
		return Domain{}, fmt.Errorf("%w: %s has no values when %s is %d", ErrInvalidArgument, name, def.ConditionalOn, ctl)
	}
	return d, nil
}

// ordered returns arguments with controlling ones first, keeping the
// declared order otherwise.
func (c *Command) ordered() []Argument {
	out := make([]Argument, len(c.Arguments))
	copy(out, c.Arguments)
	sort.SliceStable(out, func(i, j int) bool {
		return c.profile.params[out[i].Name].ConditionalOn == "" &&
			c.profile.params[out[j].Name].ConditionalOn != ""
	})
	return out
}

// Validate checks raw arguments (as decoded from JSON, YAML or the command
// line) against the command and returns them normalized.
func (c *Command) Validate(args map[string]any) (Values, error) {
	for name := range args {
		if _, ok := c.argument(name); !ok {
			return nil, fmt.Errorf("%w: %s does not take %q", ErrInvalidArgument, c.ID, name)
		}
	}

	values := make(Values, len(c.Arguments))
	for _, arg := range c.ordered() {
		raw, ok := args[arg.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s is missing %q", ErrInvalidArgument, c.ID, arg.Name)
		}
		v, err := c.accept(arg.Name, raw, values)
		if err != nil {
			return nil, err
		}
		values[arg.Name] = v
	}
	return values, nil
}

func (c *Command) accept(name string, raw any, values Values) (any, error) {
	def := c.profile.params[name]
	d, err := c.DomainFor(name, values)
	if err != nil {
		return nil, err
	}

	if def.Kind == KindTextual {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be text, got %T", ErrInvalidArgument, name, raw)
		}
		if def.MaxLength > 0 && len(s) > def.MaxLength {
			return nil, fmt.Errorf("%w: %s is longer than %d characters", ErrInvalidArgument, name, def.MaxLength)
		}
		for i := 0; i < len(s); i++ {
			if s[i] < 0x20 || s[i] > 0x7e {
				return nil, fmt.Errorf("%w: %s contains a non-printable or non-ASCII character", ErrInvalidArgument, name)
			}
		}
		return s, nil
	}

	n, err := toInt(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArgument, name, err)
	}
	if d.Range != nil && !d.Range.Contains(n) {
		return nil, fmt.Errorf("%w: %s = %d outside %d-%d", ErrInvalidArgument, name, n, d.Range.Min, d.Range.Max)
	}
	if len(d.Options) > 0 && !d.hasOption(n) {
		return nil, fmt.Errorf("%w: %d is not an option of %s", ErrInvalidArgument, n, name)
	}
	return n, nil
}

// Defaults fills in any argument missing from args with the first option,
// the range minimum or empty text. Values that are present but no longer
// valid (because a controlling value changed) are replaced too.
func (c *Command) Defaults(args map[string]any) Values {
	values := make(Values, len(c.Arguments))
	for _, arg := range c.ordered() {
		if raw, ok := args[arg.Name]; ok {
			if v, err := c.accept(arg.Name, raw, values); err == nil {
				values[arg.Name] = v
				continue
			}
		}
		d, err := c.DomainFor(arg.Name, values)
		switch {
		case c.profile.params[arg.Name].Kind == KindTextual:
			values[arg.Name] = ""
		case err != nil:
			// controlling value has no domain for this argument
		case d.Range != nil:
			values[arg.Name] = d.Range.Min
		case len(d.Options) > 0:
			values[arg.Name] = d.Options[0].Value
		}
	}
	return values
}

func toInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case json.Number:
		return strconv.Atoi(v.String())
	case string:
		return strconv.Atoi(v)
	}
	return 0, fmt.Errorf("expected a number, got %T", raw)
}

func floatToInt(f float64) (int, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not a whole number", f)
	}
	return int(f), nil
}
