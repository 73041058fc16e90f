package cue

import (
	"midi-fixture-control/fixture"
)

// ParameterView is one row of a command's settings: what the argument is,
// which values it currently accepts and what it is set to.
type ParameterView struct {
	Name    string         `json:"name"`
	Caption string         `json:"caption"`
	Kind    fixture.Kind   `json:"kind"`
	Domain  fixture.Domain `json:"domain"`
	Value   any            `json:"value,omitempty"`
	// Unavailable is set when the controlling parameter's value leaves
	// this one with nothing to choose from.
	Unavailable bool `json:"unavailable,omitempty"`
}

// CommandView names one command of a fixture
type CommandView struct {
	ID      string `json:"id"`
	Caption string `json:"caption"`
}

// Commands lists the commands the patch's fixture understands
func Commands(r Resolver, patchID string) ([]CommandView, error) {
	_, profile, err := r.Resolve(patchID)
	if err != nil {
		return nil, err
	}
	out := make([]CommandView, 0, len(profile.Commands))
	for _, id := range profile.CommandIDs() {
		cmd, _ := profile.Command(id)
		out = append(out, CommandView{ID: cmd.ID, Caption: cmd.Caption})
	}
	return out, nil
}

// Parameters describes the arguments of command for the given patch. Args
// holds whatever the user has chosen so far; missing or stale values are
// replaced by defaults and conditional domains follow the values shown.
func Parameters(r Resolver, patchID, command string, args map[string]any) ([]ParameterView, error) {
	if command == "" {
		return nil, ErrNoCommand
	}
	_, profile, err := r.Resolve(patchID)
	if err != nil {
		return nil, err
	}
	cmd, err := profile.Command(command)
	if err != nil {
		return nil, err
	}

	values := cmd.Defaults(args)
	out := make([]ParameterView, 0, len(cmd.Arguments))
	for _, arg := range cmd.Arguments {
		def := cmd.Parameter(arg.Name)
		view := ParameterView{
			Name:    arg.Name,
			Caption: def.Caption,
			Kind:    def.Kind,
			Value:   values[arg.Name],
		}
		d, err := cmd.DomainFor(arg.Name, values)
		if err != nil {
			view.Unavailable = true
		} else {
			view.Domain = d
		}
		out = append(out, view)
	}
	return out, nil
}
