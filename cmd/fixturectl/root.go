package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"midi-fixture-control/config"
	"midi-fixture-control/control"
	"midi-fixture-control/debug"
	"midi-fixture-control/midi"
	"midi-fixture-control/theme"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	noColor    bool
	configPath string
	palette    string

	out io.Writer = os.Stdout
	thm           = theme.Default()

	// newOutput opens the MIDI side of a session; tests swap it out
	newOutput = func(cfg *config.Config) control.Output {
		return midi.NewRouter(cfg.Output)
	}
)

func newRootCmd() *cobra.Command {
	verbose, quiet, jsonOut, noColor = false, false, false, false
	configPath, palette = "", ""

	rootCmd := &cobra.Command{
		Use:   "fixturectl",
		Short: "Patch and control MIDI fixtures",
		Long: `fixturectl patches MIDI-controlled fixtures (mixing desks, dimmers,
show control receivers) onto MIDI channels and device IDs, keeps them from
overlapping, and sends their commands.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Session file (default ~/.config/midi-fixture-control/config.json)")
	rootCmd.PersistentFlags().StringVar(&palette, "palette", "", "GIMP palette file for colored output")

	rootCmd.AddCommand(
		newLibraryCmd(),
		newPatchCmd(),
		newCueCmd(),
		newPortsCmd(),
	)
	return rootCmd
}

func setup(cmd *cobra.Command) error {
	out = cmd.OutOrStdout()

	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	if palette != "" {
		p, err := theme.LoadGPL(palette)
		if err != nil {
			return err
		}
		thm = theme.New(p)
	}

	if verbose {
		debug.SetOutput(cmd.ErrOrStderr(), slog.LevelDebug)
	}
	return nil
}

func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		printError("%v\n", err)
		return 1
	}
	return 0
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(out, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, thm.Error().Render("Error:")+" "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(out, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// session is a loaded config plus the running session built from it
type session struct {
	cfg  *config.Config
	ctrl *control.Control
}

func openSession() (*session, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	printVerbose("Session: %s\n", cfg.Path())

	if cfg.Debug {
		if err := debug.Enable(""); err != nil {
			printVerbose("debug log unavailable: %v\n", err)
		}
	}

	cat, err := control.Catalogue(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixture library: %w", err)
	}
	ctrl := control.New(cat, newOutput(cfg))
	if err := ctrl.LoadSession(cfg); err != nil {
		return nil, err
	}
	return &session{cfg: cfg, ctrl: ctrl}, nil
}

// save writes the patch table back to the session file
func (s *session) save() error {
	s.ctrl.SaveSession(s.cfg)
	if err := s.cfg.Save(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	printVerbose("Saved %s\n", s.cfg.Path())
	return nil
}
