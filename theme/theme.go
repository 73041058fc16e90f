// Package theme styles the command line output.
package theme

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	Free     rune // · address nobody uses
	Taken    rune // ■ address used by a patch
	Selected rune // ▣ address used by the patch being shown
	Default  rune // ★ default patch marker
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Free:     '·',
			Taken:    '■',
			Selected: '▣',
			Default:  '★',
		},
	}
}

// Default returns the built-in theme
func Default() *Theme {
	return New(DefaultPalette())
}

// Color roles mapped to palette indexes
const (
	RoleBG      = 0
	RoleSurface = 1
	RoleMuted   = 2
	RoleFG      = 3
	RoleAccent  = 4
	RoleFree    = 5
	RoleWarning = 6
	RoleTaken   = 7
	RoleHigh    = 8
)

func (t *Theme) role(r int) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Index(r))
}

func (t *Theme) FG() lipgloss.Color      { return t.role(RoleFG) }
func (t *Theme) Muted() lipgloss.Color   { return t.role(RoleMuted) }
func (t *Theme) Accent() lipgloss.Color  { return t.role(RoleAccent) }
func (t *Theme) Warning() lipgloss.Color { return t.role(RoleWarning) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

// Style helpers

func (t *Theme) Header() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(t.Accent())
}

func (t *Theme) Label() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.FG())
}

func (t *Theme) Dim() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Muted())
}

func (t *Theme) Error() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(t.role(RoleTaken))
}

// Slots draws one symbol per address. Addresses in selected (1-based) are
// drawn as the selection.
func (t *Theme) Slots(occupied []bool, selected map[int]bool) string {
	free := lipgloss.NewStyle().Foreground(t.role(RoleFree))
	taken := lipgloss.NewStyle().Foreground(t.role(RoleTaken))
	sel := lipgloss.NewStyle().Bold(true).Foreground(t.role(RoleHigh))

	var b strings.Builder
	for i, on := range occupied {
		switch {
		case selected[i+1]:
			b.WriteString(sel.Render(string(t.Symbols.Selected)))
		case on:
			b.WriteString(taken.Render(string(t.Symbols.Taken)))
		default:
			b.WriteString(free.Render(string(t.Symbols.Free)))
		}
	}
	return b.String()
}

// Ruler numbers every tenth address under a Slots row of width n
func Ruler(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		switch {
		case i%10 == 0:
			b.WriteString(fmt.Sprint(i / 10 % 10))
		case i%5 == 0:
			b.WriteByte('+')
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
