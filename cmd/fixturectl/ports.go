package main

import (
	"github.com/spf13/cobra"

	"midi-fixture-control/midi"
)

// portLister is the part of the output that can enumerate ports
type portLister interface {
	Ports() ([]string, error)
}

func newPortsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List and watch MIDI output ports",
	}
	cmd.AddCommand(newPortsListCmd(), newPortsWatchCmd(), newPortsUseCmd())
	return cmd
}

func newPortsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List MIDI output ports",
		Long: `The list command prints the MIDI output ports the system offers.
Listing gives up after 3 seconds if the MIDI backend hangs (on macOS:
sudo killall coreaudiod midiserver).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			lister, ok := s.ctrl.Output.(portLister)
			if !ok {
				return midi.ErrNoPort
			}
			names, err := lister.Ports()
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(map[string]interface{}{
					"ports":   names,
					"default": s.cfg.Output,
				})
			}
			for _, name := range names {
				mark := " "
				if name == s.cfg.Output {
					mark = string(thm.Symbols.Default)
				}
				printInfo("%s %s\n", mark, name)
			}
			printInfo("\nTotal: %d ports\n", len(names))
			return nil
		},
	}
}

func newPortsWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Report MIDI output ports as they come and go",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			router, ok := s.ctrl.Output.(*midi.Router)
			if !ok {
				return midi.ErrNoPort
			}
			defer router.Close()

			go router.Run(cmd.Context())
			for ev := range router.Events() {
				if jsonOut {
					if err := printJSON(map[string]string{"event": ev.Type.String(), "port": ev.Name}); err != nil {
						return err
					}
					continue
				}
				printInfo("%-8s %s\n", ev.Type, ev.Name)
			}
			return nil
		},
	}
}

func newPortsUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <port>",
		Short: "Set the session's default output port",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			s.cfg.Output = args[0]
			s.ctrl.Output.SetDefaultPort(args[0])
			if err := s.save(); err != nil {
				return err
			}
			printInfo("Default output: %s\n", args[0])
			return nil
		},
	}
}
