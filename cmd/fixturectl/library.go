package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"midi-fixture-control/fixture"
)

func newLibraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Browse the fixture library",
	}
	cmd.AddCommand(newLibraryListCmd(), newLibraryShowCmd(), newLibraryTypesCmd())
	return cmd
}

func newLibraryListCmd() *cobra.Command {
	var filter fixture.Filter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List fixtures",
		Long: `The list command prints every fixture in the library, optionally
narrowed by manufacturer, type and subtype.

Example:
  fixturectl library list
  fixturectl library list --type mixer --subtype digital
  fixturectl library list --manufacturer generic --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLibraryList(filter)
		},
	}
	cmd.Flags().StringVarP(&filter.Manufacturer, "manufacturer", "m", "", "Only this manufacturer id")
	cmd.Flags().StringVarP(&filter.Type, "type", "t", "", "Only this device type id")
	cmd.Flags().StringVarP(&filter.SubType, "subtype", "s", "", "Only this subtype id")
	return cmd
}

func runLibraryList(filter fixture.Filter) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	devices := s.ctrl.Catalogue.Devices(filter)

	if jsonOut {
		return printJSON(map[string]interface{}{
			"fixtures": devices,
			"count":    len(devices),
		})
	}

	for _, d := range devices {
		printInfo("  %-22s %s %s\n", d.ID, thm.Label().Render(d.ManufacturerName+" "+d.Name), thm.Dim().Render("["+typeLabel(d)+"]"))
	}
	printInfo("\nTotal: %d fixtures\n", len(devices))
	return nil
}

func typeLabel(e fixture.Entry) string {
	if e.SubType == "" {
		return e.Type
	}
	return e.Type + "/" + e.SubType
}

func newLibraryTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List manufacturers and device types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			cat := s.ctrl.Catalogue

			type typeView struct {
				fixture.Named
				SubTypes []fixture.Named `json:"subtypes,omitempty"`
			}
			var types []typeView
			for _, t := range cat.DeviceTypes() {
				types = append(types, typeView{Named: t, SubTypes: cat.SubTypes(t.ID)})
			}

			if jsonOut {
				return printJSON(map[string]interface{}{
					"manufacturers": cat.Manufacturers(),
					"types":         types,
				})
			}

			printInfo("%s\n", thm.Header().Render("Manufacturers"))
			for _, m := range cat.Manufacturers() {
				printInfo("  %-16s %s\n", m.ID, m.Name)
			}
			printInfo("\n%s\n", thm.Header().Render("Device types"))
			for _, t := range types {
				printInfo("  %-16s %s\n", t.ID, t.Name)
				for _, st := range t.SubTypes {
					printInfo("    %-14s %s\n", st.ID, st.Name)
				}
			}
			return nil
		},
	}
}

func newLibraryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <fixture>",
		Short: "Show a fixture's addressing and commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			p, err := s.ctrl.Catalogue.Profile(args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(profileView(p))
			}

			printInfo("%s\n", thm.Header().Render(s.ctrl.Catalogue.Label(p.ID)))
			printInfo("  Channels:  %d\n", p.Channels)
			printInfo("  Device ID: %v\n", p.DeviceID)
			printInfo("\n  Commands:\n")
			for _, id := range p.CommandIDs() {
				c, _ := p.Command(id)
				var names []string
				for _, a := range c.Arguments {
					names = append(names, a.Name)
				}
				printInfo("    %-14s %s %s\n", c.ID, c.Caption, thm.Dim().Render(strings.Join(names, " ")))
			}
			return nil
		},
	}
}

type commandView struct {
	ID         string   `json:"id"`
	Caption    string   `json:"caption"`
	Parameters []string `json:"parameters,omitempty"`
}

func profileView(p *fixture.Profile) map[string]interface{} {
	var cmds []commandView
	for _, id := range p.CommandIDs() {
		c, _ := p.Command(id)
		v := commandView{ID: c.ID, Caption: c.Caption}
		for _, a := range c.Arguments {
			v.Parameters = append(v.Parameters, a.Name)
		}
		cmds = append(cmds, v)
	}
	return map[string]interface{}{
		"id":           p.ID,
		"manufacturer": p.Manufacturer,
		"name":         p.Name,
		"type":         p.Type,
		"subtype":      p.SubType,
		"channels":     p.Channels,
		"device_id":    p.DeviceID,
		"commands":     cmds,
	}
}

// parseArgs turns name=value pairs into command arguments
func parseArgs(pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("argument %q is not name=value", pair)
		}
		args[name] = value
	}
	return args, nil
}
