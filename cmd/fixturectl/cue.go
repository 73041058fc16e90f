package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"midi-fixture-control/cue"
	"midi-fixture-control/fixture"
)

func newCueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cue",
		Short: "Inspect, run and store fixture commands",
	}
	cmd.AddCommand(
		newCueCommandsCmd(),
		newCueParamsCmd(),
		newCueRunCmd(),
		newCueSaveCmd(),
		newCueListCmd(),
		newCueGoCmd(),
		newCueDeleteCmd(),
	)
	return cmd
}

// fixtureCommand collects the flags naming a fixture command
type fixtureCommand struct {
	patch string
	args  []string
}

func (f *fixtureCommand) flags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.patch, "patch", "p", "", "Patch id or id prefix (default: the default patch)")
	cmd.Flags().StringArrayVarP(&f.args, "arg", "a", nil, "Command argument as name=value (repeatable)")
}

// build resolves the patch reference and parses the arguments
func (f *fixtureCommand) build(s *session, command string) (cue.FixtureCommand, error) {
	fc := cue.FixtureCommand{Command: command}
	if f.patch != "" {
		p, err := s.ctrl.FindPatch(f.patch)
		if err != nil {
			return fc, err
		}
		fc.PatchID = p.ID
	}
	args, err := parseArgs(f.args)
	if err != nil {
		return fc, err
	}
	if len(args) > 0 {
		fc.Args = args
	}
	return fc, nil
}

func newCueCommandsCmd() *cobra.Command {
	var fc fixtureCommand
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List the commands of a patched fixture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			c, err := fc.build(s, "")
			if err != nil {
				return err
			}
			cmds, err := cue.Commands(s.ctrl, c.PatchID)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmds)
			}
			for _, c := range cmds {
				printInfo("  %-14s %s\n", c.ID, c.Caption)
			}
			return nil
		},
	}
	fc.flags(cmd)
	return cmd
}

func newCueParamsCmd() *cobra.Command {
	var fc fixtureCommand
	cmd := &cobra.Command{
		Use:   "params <command>",
		Short: "Show a command's parameters and what they accept",
		Long: `The params command lists the parameters of a fixture command with
the values each currently accepts. Conditional parameters follow the values
given with --arg; anything not given shows its default.

Example:
  fixturectl cue params send_level --patch 3f2a
  fixturectl cue params send_level --patch 3f2a --arg target=1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			c, err := fc.build(s, args[0])
			if err != nil {
				return err
			}
			views, err := cue.Parameters(s.ctrl, c.PatchID, c.Command, c.Args)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(views)
			}
			for _, v := range views {
				printInfo("  %-10s %-16s %-8s %s\n", v.Name, v.Caption, v.Kind, thm.Dim().Render(domainText(v)))
			}
			return nil
		},
	}
	fc.flags(cmd)
	return cmd
}

func domainText(v cue.ParameterView) string {
	var accepts string
	switch {
	case v.Unavailable:
		return "(nothing to choose)"
	case v.Domain.Range != nil:
		accepts = fmt.Sprintf("%d-%d", v.Domain.Range.Min, v.Domain.Range.Max)
	case len(v.Domain.Options) > 0:
		opts := make([]string, 0, len(v.Domain.Options))
		for _, o := range v.Domain.Options {
			opts = append(opts, fmt.Sprintf("%d=%s", o.Value, o.Caption))
		}
		accepts = strings.Join(opts, ", ")
	case v.Kind == fixture.KindTextual:
		accepts = "text"
	}
	return fmt.Sprintf("%s [%v]", accepts, v.Value)
}

func newCueRunCmd() *cobra.Command {
	var fc fixtureCommand
	cmd := &cobra.Command{
		Use:   "run <command>",
		Short: "Send a fixture command",
		Long: `The run command validates the arguments against the fixture and
sends the resulting MIDI messages to the patch's output.

Example:
  fixturectl cue run scene_recall --arg scene=12
  fixturectl cue run go --patch 77c0 --arg format=1 --arg cue=4.5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			c, err := fc.build(s, args[0])
			if err != nil {
				return err
			}
			if err := s.ctrl.Run(cmd.Context(), c); err != nil {
				return err
			}
			printVerbose("Sent %s\n", c.Command)
			return nil
		},
	}
	fc.flags(cmd)
	return cmd
}

func newCueSaveCmd() *cobra.Command {
	var fc fixtureCommand
	cmd := &cobra.Command{
		Use:   "save <name> <command>",
		Short: "Store a fixture command as a named cue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			c, err := fc.build(s, args[1])
			if err != nil {
				return err
			}
			// check it now rather than when the cue fires
			if _, _, err := cue.Prepare(s.ctrl, c); err != nil {
				return err
			}
			s.cfg.SetCue(cue.Cue{Name: args[0], Command: c})
			if err := s.save(); err != nil {
				return err
			}
			printInfo("Saved cue %s\n", args[0])
			return nil
		},
	}
	fc.flags(cmd)
	return cmd
}

func newCueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored cues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(s.cfg.Cues)
			}
			for _, q := range s.cfg.Cues {
				target := "default patch"
				if p, ok := s.ctrl.Patches.Get(q.Command.PatchID); ok {
					target = s.ctrl.PatchLabel(p)
				} else if q.Command.PatchID != "" {
					target = thm.Error().Render("missing patch " + shortID(q.Command.PatchID))
				}
				printInfo("  %-16s %-14s %s %s\n", q.Name, q.Command.Command, target, thm.Dim().Render(argsText(q.Command.Args)))
			}
			return nil
		},
	}
}

func argsText(args map[string]any) string {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", name, args[name]))
	}
	return strings.Join(parts, " ")
}

func newCueGoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "go <name>...",
		Short: "Fire stored cues in order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			for _, name := range args {
				q := s.cfg.FindCue(name)
				if q == nil {
					return fmt.Errorf("no cue named %q", name)
				}
				if err := q.Start(ctx, s.ctrl, s.ctrl); err != nil {
					return err
				}
				printVerbose("Fired %s\n", name)
			}
			return nil
		},
	}
}

func newCueDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored cue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			if !s.cfg.RemoveCue(args[0]) {
				return fmt.Errorf("no cue named %q", args[0])
			}
			return s.save()
		},
	}
}
