package fixture

import (
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gopkg.in/yaml.v3"
)

// MessageType is the kind of MIDI message a template produces
type MessageType string

const (
	NoteOn        MessageType = "note_on"
	NoteOff       MessageType = "note_off"
	ControlChange MessageType = "control_change"
	ProgramChange MessageType = "program_change"
	PitchBend     MessageType = "pitch_bend"
	SysEx         MessageType = "sysex"
)

// built-in references available to every template
const (
	refChannel  = "channel"
	refDeviceID = "device_id"
)

var builtins = map[string]bool{refChannel: true, refDeviceID: true}

// Address is where a patched fixture lives. Channel is 1-16 (0 if the
// fixture has no channel), DeviceID is 1-111 (0 if none).
type Address struct {
	Channel  int
	DeviceID int
}

// Expr is an integer literal or a reference like $level, $strip-1 or
// $channel.
type Expr struct {
	Ref    string
	Offset int
	set    bool
}

// Lit returns a literal expression
func Lit(v int) Expr { return Expr{Offset: v, set: true} }

// Ref returns a reference expression
func Ref(name string, offset int) Expr { return Expr{Ref: name, Offset: offset, set: true} }

func (e *Expr) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number or $reference", n.Line)
	}
	if n.Tag == "!!int" {
		var v int
		if err := n.Decode(&v); err != nil {
			return err
		}
		*e = Lit(v)
		return nil
	}
	parsed, err := ParseExpr(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*e = parsed
	return nil
}

// ParseExpr parses "12", "$name", "$name+3" or "$name-1".
func ParseExpr(s string) (Expr, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "$") {
		v, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			return Expr{}, fmt.Errorf("bad expression %q", s)
		}
		return Lit(int(v)), nil
	}
	body := s[1:]
	cut := strings.IndexAny(body, "+-")
	if cut < 0 {
		if body == "" {
			return Expr{}, fmt.Errorf("bad expression %q", s)
		}
		return Ref(body, 0), nil
	}
	name := strings.TrimSpace(body[:cut])
	off, err := strconv.Atoi(strings.TrimSpace(body[cut+1:]))
	if name == "" || err != nil {
		return Expr{}, fmt.Errorf("bad expression %q", s)
	}
	if body[cut] == '-' {
		off = -off
	}
	return Ref(name, off), nil
}

func (e Expr) String() string {
	switch {
	case e.Ref == "":
		return strconv.Itoa(e.Offset)
	case e.Offset > 0:
		return fmt.Sprintf("$%s+%d", e.Ref, e.Offset)
	case e.Offset < 0:
		return fmt.Sprintf("$%s%d", e.Ref, e.Offset)
	}
	return "$" + e.Ref
}

// Template describes one MIDI message of a command. Channel is an offset
// from the patch's first channel.
type Template struct {
	Type       MessageType `yaml:"type"`
	Channel    Expr        `yaml:"channel"`
	Key        Expr        `yaml:"key"`
	Velocity   Expr        `yaml:"velocity"`
	Controller Expr        `yaml:"controller"`
	Value      Expr        `yaml:"value"`
	Program    Expr        `yaml:"program"`
	Data       []Expr      `yaml:"data"`
}

func (t Template) fields() (required []Expr, names []string) {
	switch t.Type {
	case NoteOn:
		return []Expr{t.Key, t.Velocity}, []string{"key", "velocity"}
	case NoteOff:
		return []Expr{t.Key}, []string{"key"}
	case ControlChange:
		return []Expr{t.Controller, t.Value}, []string{"controller", "value"}
	case ProgramChange:
		return []Expr{t.Program}, []string{"program"}
	case PitchBend:
		return []Expr{t.Value}, []string{"value"}
	}
	return nil, nil
}

func (t Template) check(c *Command) error {
	if t.Type == SysEx {
		if len(t.Data) == 0 {
			return fmt.Errorf("sysex without data")
		}
		for _, e := range t.Data {
			if err := checkRef(c, e, true); err != nil {
				return err
			}
		}
		return nil
	}

	required, names := t.fields()
	if required == nil {
		return fmt.Errorf("unknown message type %q", t.Type)
	}
	if c.profile.Channels == 0 {
		return fmt.Errorf("%s needs a channel but the fixture has none", t.Type)
	}
	for i, e := range required {
		if !e.set {
			return fmt.Errorf("%s needs %s", t.Type, names[i])
		}
		if err := checkRef(c, e, false); err != nil {
			return err
		}
	}
	return checkRef(c, t.Channel, false)
}

func checkRef(c *Command, e Expr, textOK bool) error {
	switch e.Ref {
	case "":
		return nil
	case refChannel:
		if c.profile.Channels == 0 {
			return fmt.Errorf("$channel used but the fixture has no channel")
		}
		return nil
	case refDeviceID:
		if !c.profile.DeviceID {
			return fmt.Errorf("$device_id used but the fixture has no device id")
		}
		return nil
	}
	if _, ok := c.argument(e.Ref); !ok {
		return fmt.Errorf("$%s is not a parameter of the command", e.Ref)
	}
	if c.profile.params[e.Ref].Kind == KindTextual && (!textOK || e.Offset != 0) {
		return fmt.Errorf("textual $%s can only appear as-is in sysex data", e.Ref)
	}
	return nil
}

type env struct {
	addr   Address
	values Values
}

func (v env) eval(e Expr) (int, error) {
	switch e.Ref {
	case "":
		return e.Offset, nil
	case refChannel:
		if v.addr.Channel < 1 || v.addr.Channel > 16 {
			return 0, fmt.Errorf("patch has no MIDI channel")
		}
		return v.addr.Channel - 1 + e.Offset, nil
	case refDeviceID:
		if v.addr.DeviceID < 1 {
			return 0, fmt.Errorf("patch has no device id")
		}
		return v.addr.DeviceID + e.Offset, nil
	}
	n, ok := v.values.Int(e.Ref)
	if !ok {
		return 0, fmt.Errorf("no value for $%s", e.Ref)
	}
	return n + e.Offset, nil
}

func (v env) byte7(what string, e Expr) (uint8, error) {
	n, err := v.eval(e)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 127 {
		return 0, fmt.Errorf("%s %s = %d outside 0-127", what, e, n)
	}
	return uint8(n), nil
}

// Build turns validated values into MIDI messages for a fixture at addr.
func (c *Command) Build(addr Address, values Values) ([]midi.Message, error) {
	v := env{addr: addr, values: values}
	msgs := make([]midi.Message, 0, len(c.Messages))
	for i, t := range c.Messages {
		msg, err := c.buildOne(v, t)
		if err != nil {
			return nil, fmt.Errorf("%s message %d: %w", c.ID, i, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (c *Command) buildOne(v env, t Template) (midi.Message, error) {
	if t.Type == SysEx {
		var data []byte
		for _, e := range t.Data {
			if e.Ref != "" && !builtins[e.Ref] && c.profile.params[e.Ref].Kind == KindTextual {
				s, _ := v.values.String(e.Ref)
				data = append(data, s...)
				continue
			}
			b, err := v.byte7("data", e)
			if err != nil {
				return nil, err
			}
			data = append(data, b)
		}
		return midi.SysEx(data), nil
	}

	if v.addr.Channel < 1 || v.addr.Channel > 16 {
		return nil, fmt.Errorf("patch has no MIDI channel")
	}
	off, err := v.eval(t.Channel)
	if err != nil {
		return nil, err
	}
	if off < 0 || off >= c.profile.Channels {
		return nil, fmt.Errorf("channel offset %d outside the fixture's %d channel(s)", off, c.profile.Channels)
	}
	ch := v.addr.Channel - 1 + off
	if ch > 15 {
		return nil, fmt.Errorf("channel %d beyond 16", ch+1)
	}
	wire := uint8(ch)

	switch t.Type {
	case NoteOn:
		key, err := v.byte7("key", t.Key)
		if err != nil {
			return nil, err
		}
		vel, err := v.byte7("velocity", t.Velocity)
		if err != nil {
			return nil, err
		}
		return midi.NoteOn(wire, key, vel), nil
	case NoteOff:
		key, err := v.byte7("key", t.Key)
		if err != nil {
			return nil, err
		}
		return midi.NoteOff(wire, key), nil
	case ControlChange:
		cc, err := v.byte7("controller", t.Controller)
		if err != nil {
			return nil, err
		}
		val, err := v.byte7("value", t.Value)
		if err != nil {
			return nil, err
		}
		return midi.ControlChange(wire, cc, val), nil
	case ProgramChange:
		prog, err := v.byte7("program", t.Program)
		if err != nil {
			return nil, err
		}
		return midi.ProgramChange(wire, prog), nil
	case PitchBend:
		n, err := v.eval(t.Value)
		if err != nil {
			return nil, err
		}
		if n < -8192 || n > 8191 {
			return nil, fmt.Errorf("pitch bend %d outside -8192-8191", n)
		}
		return midi.Pitchbend(wire, int16(n)), nil
	}
	return nil, fmt.Errorf("unknown message type %q", t.Type)
}
