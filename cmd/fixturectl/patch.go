package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"midi-fixture-control/addrspace"
	"midi-fixture-control/patch"
	"midi-fixture-control/theme"
)

func newPatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Edit the patch list",
	}
	cmd.AddCommand(
		newPatchListCmd(),
		newPatchAddCmd(),
		newPatchMoveCmd(),
		newPatchRemoveCmd(),
		newPatchDefaultCmd(),
		newPatchDCACmd(),
		newPatchOccupancyCmd(),
	)
	return cmd
}

func placementFlags(cmd *cobra.Command, pl *patch.Placement) {
	cmd.Flags().IntVar(&pl.Channel, "channel", 0, "First MIDI channel (1-16)")
	cmd.Flags().IntVar(&pl.DeviceID, "device-id", 0, "MIDI device ID (1-111)")
	cmd.Flags().StringVarP(&pl.Output, "output", "o", "", "Output port (default: session output)")
	cmd.Flags().BoolVar(&pl.Exact, "exact", false, "Fail instead of picking the next free address")
}

type patchView struct {
	patch.Patch
	Label string `json:"label"`
}

func newPatchListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List patched fixtures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			patches := s.ctrl.Patches.Patches()

			if jsonOut {
				views := make([]patchView, 0, len(patches))
				for _, p := range patches {
					views = append(views, patchView{Patch: p, Label: s.ctrl.PatchLabel(p)})
				}
				return printJSON(map[string]interface{}{
					"patches": views,
					"count":   len(views),
				})
			}

			for _, p := range patches {
				mark := " "
				if p.Default {
					mark = string(thm.Symbols.Default)
				}
				flags := ""
				if p.DCA {
					flags = " dca"
				}
				if p.Output != "" {
					flags += " -> " + p.Output
				}
				printInfo("%s %s  %-30s %s\n", mark, shortID(p.ID), s.ctrl.PatchLabel(p), thm.Dim().Render(addressText(p)+flags))
			}
			printInfo("\nTotal: %d patches\n", len(patches))
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func addressText(p patch.Patch) string {
	var s string
	switch {
	case p.Width > 1:
		s = fmt.Sprintf("ch %d-%d", p.Channel, p.LastChannel())
	case p.Channel > 0:
		s = fmt.Sprintf("ch %d", p.Channel)
	}
	if p.DeviceID > 0 {
		if s != "" {
			s += ", "
		}
		s += fmt.Sprintf("id %d", p.DeviceID)
	}
	return s
}

func newPatchAddCmd() *cobra.Command {
	var pl patch.Placement
	cmd := &cobra.Command{
		Use:   "add <fixture>",
		Short: "Patch a fixture",
		Long: `The add command patches a fixture onto the first free block of
channels (and device ID, if the fixture needs one), starting from the
requested address and wrapping around.

Example:
  fixturectl patch add generic-dimmer-4
  fixturectl patch add yamaha-01v96 --channel 9 --device-id 2
  fixturectl patch add generic-msc --output "Show Control" --device-id 1 --exact`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			p, err := s.ctrl.Patches.Add(args[0], pl)
			if err != nil {
				return err
			}
			if err := s.save(); err != nil {
				return err
			}
			return reportPatch("Patched", s, p)
		},
	}
	placementFlags(cmd, &pl)
	return cmd
}

func reportPatch(verb string, s *session, p patch.Patch) error {
	if jsonOut {
		return printJSON(patchView{Patch: p, Label: s.ctrl.PatchLabel(p)})
	}
	printInfo("%s %s as %s (%s)\n", verb, s.ctrl.PatchLabel(p), p.ID, addressText(p))
	return nil
}

func newPatchMoveCmd() *cobra.Command {
	var pl patch.Placement
	cmd := &cobra.Command{
		Use:   "move <patch>",
		Short: "Move a patch to another address or output",
		Long: `The move command re-addresses a patch. Addresses that are not given
stay where they are; the patch's own old block counts as free.

Example:
  fixturectl patch move 3f2a --channel 5
  fixturectl patch move 3f2a --output "Desk B"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			cur, err := s.ctrl.FindPatch(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("output") {
				pl.Output = cur.Output
			}
			p, err := s.ctrl.Patches.Move(cur.ID, pl)
			if err != nil {
				return err
			}
			if err := s.save(); err != nil {
				return err
			}
			return reportPatch("Moved", s, p)
		},
	}
	placementFlags(cmd, &pl)
	return cmd
}

func newPatchRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <patch>",
		Aliases: []string{"rm"},
		Short:   "Unpatch a fixture",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			p, err := s.ctrl.FindPatch(args[0])
			if err != nil {
				return err
			}
			if err := s.ctrl.Patches.Remove(p.ID); err != nil {
				return err
			}
			if err := s.save(); err != nil {
				return err
			}
			printInfo("Removed %s\n", s.ctrl.PatchLabel(p))
			return nil
		},
	}
}

func newPatchDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default <patch>",
		Short: "Make a patch the default target of fixture commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			p, err := s.ctrl.FindPatch(args[0])
			if err != nil {
				return err
			}
			if err := s.ctrl.Patches.SetDefault(p.ID); err != nil {
				return err
			}
			if err := s.save(); err != nil {
				return err
			}
			printInfo("Default: %s\n", s.ctrl.PatchLabel(p))
			return nil
		},
	}
}

func newPatchDCACmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dca <patch> <on|off>",
		Short: "Set whether a patch takes DCA assignments",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseOnOff(args[1])
			if err != nil {
				return err
			}
			s, err := openSession()
			if err != nil {
				return err
			}
			p, err := s.ctrl.FindPatch(args[0])
			if err != nil {
				return err
			}
			if err := s.ctrl.Patches.SetDCA(p.ID, on); err != nil {
				return err
			}
			return s.save()
		},
	}
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return b, nil
}

func newPatchOccupancyCmd() *cobra.Command {
	var output string
	var highlight string
	cmd := &cobra.Command{
		Use:   "occupancy",
		Short: "Show which channels and device IDs are taken",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			channels, ids := s.ctrl.Patches.Occupancy(output)

			if jsonOut {
				return printJSON(map[string]interface{}{
					"output":     output,
					"channels":   takenList(channels),
					"device_ids": takenList(ids),
				})
			}

			selCh, selID := map[int]bool{}, map[int]bool{}
			if highlight != "" {
				p, err := s.ctrl.FindPatch(highlight)
				if err != nil {
					return err
				}
				for ch := p.Channel; ch > 0 && ch <= p.LastChannel(); ch++ {
					selCh[ch] = true
				}
				if p.DeviceID > 0 {
					selID[p.DeviceID] = true
				}
			}

			name := output
			if name == "" {
				name = "default output"
			}
			printInfo("%s\n", thm.Header().Render(name))
			printInfo("  Channels   %s  %d/%d free\n", thm.Slots(channels, selCh), countFree(channels), addrspace.ChannelCapacity)
			printInfo("             %s\n", thm.Dim().Render(theme.Ruler(len(channels))))
			printInfo("  Device IDs %s  %d/%d free\n", thm.Slots(ids, selID), countFree(ids), addrspace.DeviceIDCapacity)
			printInfo("             %s\n", thm.Dim().Render(theme.Ruler(len(ids))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output port to show")
	cmd.Flags().StringVar(&highlight, "patch", "", "Highlight one patch's addresses")
	return cmd
}

func takenList(occupied []bool) []int {
	taken := []int{}
	for i, on := range occupied {
		if on {
			taken = append(taken, i+1)
		}
	}
	return taken
}

func countFree(occupied []bool) int {
	n := 0
	for _, on := range occupied {
		if !on {
			n++
		}
	}
	return n
}
