// Package control wires the fixture library, the patch table and the MIDI
// router together and moves sessions in and out of the config file.
package control

import (
	"context"
	"fmt"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"

	"midi-fixture-control/config"
	"midi-fixture-control/cue"
	"midi-fixture-control/debug"
	"midi-fixture-control/fixture"
	"midi-fixture-control/patch"
)

// Output is where built messages go
type Output interface {
	Send(port string, msg gomidi.Message) error
	SetDefaultPort(name string)
}

// Control is one running session
type Control struct {
	Catalogue *fixture.Catalogue
	Patches   *patch.Table
	Output    Output
}

// New creates a session with an empty patch table
func New(catalogue *fixture.Catalogue, output Output) *Control {
	return &Control{
		Catalogue: catalogue,
		Patches:   patch.NewTable(catalogue),
		Output:    output,
	}
}

// Resolve returns the patch with id, or the default patch when id is ""
func (c *Control) Resolve(id string) (patch.Patch, *fixture.Profile, error) {
	var (
		p  patch.Patch
		ok bool
	)
	if id == "" {
		p, ok = c.Patches.Default()
		if !ok {
			return patch.Patch{}, nil, cue.ErrNoPatch
		}
	} else if p, ok = c.Patches.Get(id); !ok {
		return patch.Patch{}, nil, fmt.Errorf("%w: %s", patch.ErrNotFound, id)
	}

	profile, err := c.Catalogue.Profile(p.FixtureID)
	if err != nil {
		return patch.Patch{}, nil, err
	}
	return p, profile, nil
}

// Send forwards to the output
func (c *Control) Send(port string, msg gomidi.Message) error {
	return c.Output.Send(port, msg)
}

// PatchLabel names a patch for lists: "Manufacturer Model (@channel)" or
// "(#device id)" for fixtures addressed only by device ID.
func (c *Control) PatchLabel(p patch.Patch) string {
	name := c.Catalogue.Label(p.FixtureID)
	if p.Channel > 0 {
		return fmt.Sprintf("%s (@%d)", name, p.Channel)
	}
	return fmt.Sprintf("%s (#%d)", name, p.DeviceID)
}

// Run starts a single fixture command
func (c *Control) Run(ctx context.Context, fc cue.FixtureCommand) error {
	return cue.Cue{Command: fc}.Start(ctx, c, c)
}

// LoadSession replaces the patch table and default port with cfg's
func (c *Control) LoadSession(cfg *config.Config) error {
	if err := c.Patches.Load(cfg.Patches); err != nil {
		debug.Error("session", "load: %v", err)
		return fmt.Errorf("load session: %w", err)
	}
	c.Output.SetDefaultPort(cfg.Output)
	debug.Info("session", "loaded %d patches, output %q", len(cfg.Patches), cfg.Output)
	return nil
}

// SaveSession stores the patch table in cfg. It does not write the file.
func (c *Control) SaveSession(cfg *config.Config) {
	cfg.Patches = c.Patches.Records()
}

// Catalogue builds the fixture catalogue for cfg: the built-in library
// plus the configured library file, if any.
func Catalogue(cfg *config.Config) (*fixture.Catalogue, error) {
	cat, err := fixture.Default()
	if err != nil {
		return nil, err
	}
	if cfg.Library == "" {
		return cat, nil
	}
	extra, err := fixture.LoadFile(cfg.Library)
	if err != nil {
		return nil, err
	}
	if err := cat.Merge(extra); err != nil {
		return nil, err
	}
	return cat, nil
}

// FindPatch looks a patch up by id or by an unambiguous id prefix
func (c *Control) FindPatch(ref string) (patch.Patch, error) {
	if p, ok := c.Patches.Get(ref); ok {
		return p, nil
	}
	var found []patch.Patch
	if ref != "" {
		for _, p := range c.Patches.Patches() {
			if strings.HasPrefix(p.ID, ref) {
				found = append(found, p)
			}
		}
	}
	switch len(found) {
	case 0:
		return patch.Patch{}, fmt.Errorf("%w: %s", patch.ErrNotFound, ref)
	case 1:
		return found[0], nil
	}
	return patch.Patch{}, fmt.Errorf("%q matches %d patches", ref, len(found))
}
