package control

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"midi-fixture-control/config"
	"midi-fixture-control/cue"
	"midi-fixture-control/fixture"
	"midi-fixture-control/patch"
)

type fakeOutput struct {
	defaultPort string
	sent        map[string][]gomidi.Message
}

func (f *fakeOutput) Send(port string, msg gomidi.Message) error {
	if f.sent == nil {
		f.sent = make(map[string][]gomidi.Message)
	}
	if port == "" {
		port = f.defaultPort
	}
	f.sent[port] = append(f.sent[port], msg)
	return nil
}

func (f *fakeOutput) SetDefaultPort(name string) { f.defaultPort = name }

func newControl(t *testing.T) (*Control, *fakeOutput) {
	t.Helper()
	out := &fakeOutput{}
	return New(fixture.MustDefault(), out), out
}

func TestResolve(t *testing.T) {
	c, _ := newControl(t)

	_, _, err := c.Resolve("")
	require.ErrorIs(t, err, cue.ErrNoPatch)

	qu, err := c.Patches.Add("allen-heath-qu16", patch.Placement{})
	require.NoError(t, err)
	msc, err := c.Patches.Add("generic-msc", patch.Placement{})
	require.NoError(t, err)

	p, profile, err := c.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, qu.ID, p.ID)
	assert.Equal(t, "Qu-16", profile.Name)

	p, profile, err = c.Resolve(msc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.DeviceID)
	assert.True(t, profile.DeviceID)

	_, _, err = c.Resolve("nope")
	require.ErrorIs(t, err, patch.ErrNotFound)
}

func TestPatchLabel(t *testing.T) {
	c, _ := newControl(t)

	assert.Equal(t, "Allen & Heath Qu-16 (@3)", c.PatchLabel(patch.Patch{FixtureID: "allen-heath-qu16", Channel: 3}))
	assert.Equal(t, "Generic MSC Receiver (#9)", c.PatchLabel(patch.Patch{FixtureID: "generic-msc", DeviceID: 9}))
	assert.Equal(t, "Yamaha 01V96 (@1)", c.PatchLabel(patch.Patch{FixtureID: "yamaha-01v96", Channel: 1, DeviceID: 4}))
}

func TestRun(t *testing.T) {
	c, out := newControl(t)
	out.defaultPort = "Desk"

	p, err := c.Patches.Add("yamaha-01v96", patch.Placement{Channel: 4})
	require.NoError(t, err)

	err = c.Run(context.Background(), cue.FixtureCommand{
		PatchID: p.ID,
		Command: "fader",
		Args:    map[string]any{"strip": 2, "level": 99},
	})
	require.NoError(t, err)

	require.Len(t, out.sent["Desk"], 1)
	var ch, cc, val uint8
	require.True(t, out.sent["Desk"][0].GetControlChange(&ch, &cc, &val))
	assert.Equal(t, uint8(3), ch)
	assert.Equal(t, uint8(1), cc)
	assert.Equal(t, uint8(99), val)
}

func TestSessionRoundTrip(t *testing.T) {
	c, out := newControl(t)

	_, err := c.Patches.Add("generic-dimmer-4", patch.Placement{Channel: 13})
	require.NoError(t, err)
	b, err := c.Patches.Add("yamaha-01v96", patch.Placement{DeviceID: 5})
	require.NoError(t, err)
	_, err = c.Patches.Add("generic-msc", patch.Placement{Output: "Show"})
	require.NoError(t, err)
	require.NoError(t, c.Patches.SetDefault(b.ID))
	require.NoError(t, c.Patches.SetDCA(b.ID, true))

	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)
	cfg.Output = "Desk"
	c.SaveSession(cfg)
	require.NoError(t, cfg.Save())

	loaded, err := config.LoadFrom(path)
	require.NoError(t, err)
	again, out2 := newControl(t)
	require.NoError(t, again.LoadSession(loaded))

	assert.Equal(t, "Desk", out2.defaultPort)
	assert.Empty(t, out.defaultPort)
	assert.Equal(t, c.Patches.Patches(), again.Patches.Patches())
	for _, output := range []string{"", "Show"} {
		c1, d1 := c.Patches.Occupancy(output)
		c2, d2 := again.Patches.Occupancy(output)
		assert.Equal(t, c1, c2)
		assert.Equal(t, d1, d2)
	}

	def, ok := again.Patches.Default()
	require.True(t, ok)
	assert.Equal(t, b.ID, def.ID)
	assert.True(t, def.DCA)
}

func TestLoadSessionConflict(t *testing.T) {
	c, out := newControl(t)
	cfg := &config.Config{
		Output: "Desk",
		Patches: []patch.Record{
			{PatchID: "a", FixtureID: "generic-dimmer-4", MidiChannel: 1},
			{PatchID: "b", FixtureID: "allen-heath-qu16", MidiChannel: 2},
		},
	}
	require.ErrorIs(t, c.LoadSession(cfg), patch.ErrNoSpace)
	assert.Empty(t, out.defaultPort)
	assert.Equal(t, 0, c.Patches.Len())
}

func TestCatalogueWithLibrary(t *testing.T) {
	cat, err := Catalogue(&config.Config{})
	require.NoError(t, err)
	_, err = cat.Profile("generic-msc")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "extra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
manufacturers:
  acme: ACME
types:
  dimmer:
    caption: Dimmer Pack
fixtures:
  - id: acme-dim
    manufacturer: acme
    name: Dim 1
    type: dimmer
    channels: 1
    parameters:
      - {name: level, caption: Level, kind: slider}
    commands:
      - id: level
        caption: Level
        parameters:
          - {name: level, range: [0, 127]}
        messages:
          - {type: control_change, controller: 7, value: $level}
`), 0644))

	cat, err = Catalogue(&config.Config{Library: path})
	require.NoError(t, err)
	assert.Equal(t, "ACME Dim 1", cat.Label("acme-dim"))
	_, err = cat.Profile("generic-msc")
	require.NoError(t, err)

	_, err = Catalogue(&config.Config{Library: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestFindPatch(t *testing.T) {
	c, _ := newControl(t)
	ids := []string{"abc123", "abd456", "xyz789"}
	var records []patch.Record
	for i, id := range ids {
		records = append(records, patch.Record{PatchID: id, FixtureID: "allen-heath-qu16", MidiChannel: i + 1})
	}
	require.NoError(t, c.LoadSession(&config.Config{Patches: records}))

	p, err := c.FindPatch("abd456")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Channel)

	p, err = c.FindPatch("x")
	require.NoError(t, err)
	assert.Equal(t, "xyz789", p.ID)

	_, err = c.FindPatch("ab")
	require.Error(t, err)

	_, err = c.FindPatch("q")
	require.ErrorIs(t, err, patch.ErrNotFound)

	_, err = c.FindPatch("")
	require.ErrorIs(t, err, patch.ErrNotFound)
}
