package fixture

import (
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownFixture  = errors.New("unknown fixture")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidLibrary  = errors.New("invalid fixture library")
)

// Kind is the type of value a parameter takes
type Kind string

const (
	KindNumeric  Kind = "numeric"
	KindSlider   Kind = "slider"
	KindDropdown Kind = "dropdown"
	KindTextual  Kind = "textual"
)

func (k Kind) valid() bool {
	switch k {
	case KindNumeric, KindSlider, KindDropdown, KindTextual:
		return true
	}
	return false
}

// IsNumeric reports whether values of this kind are integers
func (k Kind) IsNumeric() bool {
	return k != KindTextual
}

// Range is an inclusive integer range, written [min, max] in YAML
type Range struct {
	Min, Max int
}

func (r *Range) UnmarshalYAML(n *yaml.Node) error {
	var pair []int
	if err := n.Decode(&pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("line %d: range needs [min, max], got %d values", n.Line, len(pair))
	}
	if pair[0] > pair[1] {
		return fmt.Errorf("line %d: range min %d above max %d", n.Line, pair[0], pair[1])
	}
	r.Min, r.Max = pair[0], pair[1]
	return nil
}

func (r Range) MarshalYAML() (any, error) {
	return []int{r.Min, r.Max}, nil
}

func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Option is one entry of a dropdown
type Option struct {
	Value   int    `yaml:"value" json:"value"`
	Caption string `yaml:"caption" json:"caption"`
}

// Domain is the set of values a parameter accepts for a command. Exactly
// one of Range or Options is set for numeric kinds; textual has neither.
type Domain struct {
	Range   *Range   `yaml:"range,omitempty" json:"range,omitempty"`
	Options []Option `yaml:"options,omitempty" json:"options,omitempty"`
}

func (d Domain) hasOption(v int) bool {
	for _, o := range d.Options {
		if o.Value == v {
			return true
		}
	}
	return false
}

// Parameter is a profile-wide parameter definition
type Parameter struct {
	Name          string `yaml:"name"`
	Caption       string `yaml:"caption"`
	Kind          Kind   `yaml:"kind"`
	ConditionalOn string `yaml:"conditional_on,omitempty"`
	MaxLength     int    `yaml:"max_length,omitempty"` // textual only
}

// Argument is a parameter as used by one command, with its domain. When the
// parameter is conditional, By holds the domain per controlling value.
type Argument struct {
	Name   string `yaml:"name"`
	Domain `yaml:",inline"`
	By     map[int]Domain `yaml:"by,omitempty"`
}

// Command is an action a fixture understands
type Command struct {
	ID        string     `yaml:"id"`
	Caption   string     `yaml:"caption"`
	Arguments []Argument `yaml:"parameters"`
	Messages  []Template `yaml:"messages"`

	profile *Profile
}

// Profile describes one fixture model
type Profile struct {
	ID           string      `yaml:"id"`
	Manufacturer string      `yaml:"manufacturer"`
	Name         string      `yaml:"name"`
	Type         string      `yaml:"type"`
	SubType      string      `yaml:"subtype,omitempty"`
	Channels     int         `yaml:"channels"`  // consecutive MIDI channels used, 0 if none
	DeviceID     bool        `yaml:"device_id"` // addressed by MIDI device ID
	Parameters   []Parameter `yaml:"parameters"`
	Commands     []*Command  `yaml:"commands"`

	params   map[string]*Parameter
	commands map[string]*Command
}

// Parameter returns the named parameter definition
func (p *Profile) Parameter(name string) (*Parameter, bool) {
	def, ok := p.params[name]
	return def, ok
}

// Command returns the command with the given id
func (p *Profile) Command(id string) (*Command, error) {
	cmd, ok := p.commands[id]
	if !ok {
		return nil, fmt.Errorf("%w %q for %s", ErrUnknownCommand, id, p.ID)
	}
	return cmd, nil
}

// CommandIDs returns command ids sorted
func (p *Profile) CommandIDs() []string {
	ids := make([]string, 0, len(p.commands))
	for id := range p.commands {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// link builds the lookup maps and checks the profile is self-consistent
func (p *Profile) link() error {
	if p.ID == "" {
		return fmt.Errorf("%w: profile without id", ErrInvalidLibrary)
	}
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidLibrary, p.ID, fmt.Sprintf(format, args...))
	}
	if p.Channels < 0 || p.Channels > 16 {
		return fail("channels %d outside 0-16", p.Channels)
	}
	if p.Channels == 0 && !p.DeviceID {
		return fail("needs a MIDI channel or a device id")
	}

	p.params = make(map[string]*Parameter, len(p.Parameters))
	for i := range p.Parameters {
		def := &p.Parameters[i]
		if def.Name == "" {
			return fail("parameter %d has no name", i)
		}
		if builtins[def.Name] {
			return fail("parameter name %q is reserved", def.Name)
		}
		if !def.Kind.valid() {
			return fail("parameter %s: unknown kind %q", def.Name, def.Kind)
		}
		if _, dup := p.params[def.Name]; dup {
			return fail("parameter %s defined twice", def.Name)
		}
		if def.Caption == "" {
			def.Caption = def.Name
		}
		p.params[def.Name] = def
	}

	p.commands = make(map[string]*Command, len(p.Commands))
	for _, cmd := range p.Commands {
		if cmd.ID == "" {
			return fail("command without id")
		}
		if _, dup := p.commands[cmd.ID]; dup {
			return fail("command %s defined twice", cmd.ID)
		}
		cmd.profile = p
		if cmd.Caption == "" {
			cmd.Caption = cmd.ID
		}
		if err := cmd.check(); err != nil {
			return fail("command %s: %v", cmd.ID, err)
		}
		p.commands[cmd.ID] = cmd
	}
	return nil
}

func (c *Command) argument(name string) (*Argument, bool) {
	for i := range c.Arguments {
		if c.Arguments[i].Name == name {
			return &c.Arguments[i], true
		}
	}
	return nil, false
}

func (c *Command) check() error {
	seen := make(map[string]bool)
	for _, arg := range c.Arguments {
		def, ok := c.profile.params[arg.Name]
		if !ok {
			return fmt.Errorf("parameter %s is not defined", arg.Name)
		}
		if seen[arg.Name] {
			return fmt.Errorf("parameter %s listed twice", arg.Name)
		}
		seen[arg.Name] = true

		if def.ConditionalOn == "" {
			if len(arg.By) > 0 {
				return fmt.Errorf("parameter %s has per-value domains but is not conditional", arg.Name)
			}
			if err := checkDomain(def, arg.Domain); err != nil {
				return err
			}
			continue
		}

		ctl, ok := c.argument(def.ConditionalOn)
		if !ok || ctl.Name == arg.Name {
			return fmt.Errorf("parameter %s is conditional on %q, which the command does not take", arg.Name, def.ConditionalOn)
		}
		if ctlDef := c.profile.params[ctl.Name]; !ctlDef.Kind.IsNumeric() || ctlDef.ConditionalOn != "" {
			return fmt.Errorf("parameter %s: %s cannot control other parameters", arg.Name, ctl.Name)
		}
		if len(arg.By) == 0 {
			return fmt.Errorf("parameter %s is conditional but has no per-value domains", arg.Name)
		}
		for v, d := range arg.By {
			if err := checkDomain(def, d); err != nil {
				return fmt.Errorf("%w (when %s is %d)", err, ctl.Name, v)
			}
		}
	}

	for i, tmpl := range c.Messages {
		if err := tmpl.check(c); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

func checkDomain(def *Parameter, d Domain) error {
	switch def.Kind {
	case KindNumeric, KindSlider:
		if d.Range == nil || len(d.Options) > 0 {
			return fmt.Errorf("parameter %s needs a range", def.Name)
		}
	case KindDropdown:
		if d.Range != nil || len(d.Options) == 0 {
			return fmt.Errorf("parameter %s needs options", def.Name)
		}
	case KindTextual:
		if d.Range != nil || len(d.Options) > 0 {
			return fmt.Errorf("parameter %s is textual and takes no range or options", def.Name)
		}
	}
	return nil
}
