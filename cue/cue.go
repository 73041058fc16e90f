// Package cue runs fixture commands: it finds the patch a command is aimed
// at, checks the arguments against the fixture profile and sends the
// resulting MIDI messages.
package cue

import (
	"context"
	"errors"
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"

	"midi-fixture-control/debug"
	"midi-fixture-control/fixture"
	"midi-fixture-control/patch"
)

var (
	ErrNoCommand = errors.New("no fixture command set")
	ErrNoPatch   = errors.New("no fixture patched")
)

// Resolver finds a patch and its profile. An empty id means the default
// patch.
type Resolver interface {
	Resolve(patchID string) (patch.Patch, *fixture.Profile, error)
}

// Sender delivers a message to an output port ("" is the default port)
type Sender interface {
	Send(output string, msg gomidi.Message) error
}

// FixtureCommand is the stored action of a cue
type FixtureCommand struct {
	PatchID string         `json:"patch_id,omitempty"`
	Command string         `json:"command"`
	Args    map[string]any `json:"args,omitempty"`
}

// Cue is a triggerable fixture command
type Cue struct {
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name,omitempty"`
	Command FixtureCommand `json:"fixture_command"`
}

// Prepare resolves and validates fc without sending anything
func Prepare(r Resolver, fc FixtureCommand) (patch.Patch, []gomidi.Message, error) {
	if fc.Command == "" {
		return patch.Patch{}, nil, ErrNoCommand
	}
	p, profile, err := r.Resolve(fc.PatchID)
	if err != nil {
		return patch.Patch{}, nil, err
	}
	cmd, err := profile.Command(fc.Command)
	if err != nil {
		return patch.Patch{}, nil, err
	}
	values, err := cmd.Validate(fc.Args)
	if err != nil {
		return patch.Patch{}, nil, err
	}
	msgs, err := cmd.Build(p.Address(), values)
	if err != nil {
		return patch.Patch{}, nil, err
	}
	return p, msgs, nil
}

// Start runs the cue. Messages go out in order; cancelling ctx stops
// before the next one.
func (c Cue) Start(ctx context.Context, r Resolver, s Sender) error {
	p, msgs, err := Prepare(r, c.Command)
	if err != nil {
		debug.Warn("cue", "%s: %v", c.label(), err)
		return fmt.Errorf("cue %s: %w", c.label(), err)
	}

	for i, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cue %s: stopped after %d of %d messages: %w", c.label(), i, len(msgs), err)
		}
		if err := s.Send(p.Output, msg); err != nil {
			debug.Error("cue", "%s: send %s: %v", c.label(), msg, err)
			return fmt.Errorf("cue %s: send: %w", c.label(), err)
		}
		debug.Log("cue", "%s -> %q: %s", c.label(), p.Output, msg)
	}
	return nil
}

func (c Cue) label() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.ID != "":
		return c.ID
	}
	return c.Command.Command
}
