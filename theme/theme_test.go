package theme

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPalette(t *testing.T) {
	p := DefaultPalette()
	assert.Equal(t, "Stage", p.Name)
	require.Len(t, p.Colors, 9)
	assert.Equal(t, RGB{20, 22, 38}, p.Colors[0])
}

func TestParseGPL(t *testing.T) {
	p, err := ParseGPL(strings.NewReader("GIMP Palette\nName: Two\n# c\n0 0 0 black\n255 255 255\nbogus line\n"))
	require.NoError(t, err)
	assert.Equal(t, "Two", p.Name)
	assert.Equal(t, []RGB{{0, 0, 0}, {255, 255, 255}}, p.Colors)

	assert.Equal(t, RGB{127, 127, 127}, p.Lookup(0.5))
	assert.Equal(t, RGB{0, 0, 0}, p.Lookup(-1))
	assert.Equal(t, RGB{255, 255, 255}, p.Lookup(2))
	assert.Equal(t, RGB{255, 255, 255}, p.Index(7))

	_, err = ParseGPL(strings.NewReader("GIMP Palette\n"))
	require.Error(t, err)
}

func TestLoadGPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.gpl")
	require.NoError(t, os.WriteFile(path, []byte("GIMP Palette\n1 2 3\n"), 0644))

	p, err := LoadGPL(path)
	require.NoError(t, err)
	assert.Equal(t, RGB{1, 2, 3}, p.Index(0))

	_, err = LoadGPL(filepath.Join(t.TempDir(), "missing.gpl"))
	require.Error(t, err)
}

func TestSlots(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	th := Default()

	got := th.Slots([]bool{true, false, true, true}, map[int]bool{3: true, 4: true})
	assert.Equal(t, "■·▣▣", got)
}

func TestRuler(t *testing.T) {
	assert.Equal(t, "    +    1    +", Ruler(15))
}
