package cue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"midi-fixture-control/fixture"
	"midi-fixture-control/patch"
)

type fakeResolver struct {
	patches map[string]patch.Patch
	def     string
}

func (f fakeResolver) Resolve(id string) (patch.Patch, *fixture.Profile, error) {
	if id == "" {
		id = f.def
	}
	p, ok := f.patches[id]
	if !ok {
		return patch.Patch{}, nil, fmt.Errorf("%w: %s", patch.ErrNotFound, id)
	}
	profile, err := fixture.MustDefault().Profile(p.FixtureID)
	return p, profile, err
}

type sent struct {
	output string
	msg    gomidi.Message
}

type fakeSender struct {
	sent []sent
	fail error
}

func (f *fakeSender) Send(output string, msg gomidi.Message) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, sent{output, msg})
	return nil
}

func testResolver() fakeResolver {
	return fakeResolver{
		def: "dim",
		patches: map[string]patch.Patch{
			"dim": {ID: "dim", FixtureID: "generic-dimmer-4", Channel: 5, Width: 4},
			"qu":  {ID: "qu", FixtureID: "allen-heath-qu16", Channel: 2, Width: 1, Output: "Desk"},
			"msc": {ID: "msc", FixtureID: "generic-msc", DeviceID: 20},
		},
	}
}

func TestStartSendsInOrder(t *testing.T) {
	s := &fakeSender{}
	c := Cue{Name: "blackout", Command: FixtureCommand{PatchID: "dim", Command: "blackout"}}

	require.NoError(t, c.Start(context.Background(), testResolver(), s))
	require.Len(t, s.sent, 4)
	for i, m := range s.sent {
		var ch, cc, val uint8
		require.True(t, m.msg.GetControlChange(&ch, &cc, &val))
		assert.Equal(t, uint8(4+i), ch)
		assert.Equal(t, uint8(7), cc)
		assert.Equal(t, uint8(0), val)
		assert.Equal(t, "", m.output)
	}
}

func TestStartUsesPatchOutput(t *testing.T) {
	s := &fakeSender{}
	c := Cue{Command: FixtureCommand{PatchID: "qu", Command: "scene_recall", Args: map[string]any{"scene": 3}}}

	require.NoError(t, c.Start(context.Background(), testResolver(), s))
	require.Len(t, s.sent, 2)
	assert.Equal(t, "Desk", s.sent[1].output)

	var ch, prog uint8
	require.True(t, s.sent[1].msg.GetProgramChange(&ch, &prog))
	assert.Equal(t, uint8(1), ch)
	assert.Equal(t, uint8(2), prog)
}

func TestStartDefaultPatch(t *testing.T) {
	s := &fakeSender{}
	c := Cue{Command: FixtureCommand{Command: "level", Args: map[string]any{"circuit": 2, "level": 100}}}

	require.NoError(t, c.Start(context.Background(), testResolver(), s))
	require.Len(t, s.sent, 1)
	var ch, cc, val uint8
	require.True(t, s.sent[0].msg.GetControlChange(&ch, &cc, &val))
	assert.Equal(t, uint8(5), ch)
	assert.Equal(t, uint8(100), val)
}

func TestStartErrors(t *testing.T) {
	r := testResolver()
	cases := []struct {
		name string
		cmd  FixtureCommand
		err  error
	}{
		{"no command", FixtureCommand{PatchID: "dim"}, ErrNoCommand},
		{"unknown patch", FixtureCommand{PatchID: "zz", Command: "blackout"}, patch.ErrNotFound},
		{"unknown command", FixtureCommand{PatchID: "dim", Command: "explode"}, fixture.ErrUnknownCommand},
		{"bad args", FixtureCommand{PatchID: "dim", Command: "level", Args: map[string]any{"circuit": 9, "level": 1}}, fixture.ErrInvalidArgument},
		{"missing args", FixtureCommand{PatchID: "msc", Command: "go"}, fixture.ErrInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &fakeSender{}
			err := Cue{Command: tc.cmd}.Start(context.Background(), r, s)
			require.ErrorIs(t, err, tc.err)
			assert.Empty(t, s.sent)
		})
	}
}

func TestStartSendFailure(t *testing.T) {
	boom := errors.New("port gone")
	s := &fakeSender{fail: boom}
	err := Cue{Command: FixtureCommand{PatchID: "dim", Command: "blackout"}}.Start(context.Background(), testResolver(), s)
	require.ErrorIs(t, err, boom)
}

func TestStartCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &fakeSender{}
	err := Cue{Command: FixtureCommand{PatchID: "dim", Command: "blackout"}}.Start(ctx, testResolver(), s)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.sent)
}

func TestCueJSON(t *testing.T) {
	var c Cue
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "House to half",
		"fixture_command": {"patch_id": "dim", "command": "level", "args": {"circuit": 1, "level": 64}}
	}`), &c))

	s := &fakeSender{}
	require.NoError(t, c.Start(context.Background(), testResolver(), s))
	require.Len(t, s.sent, 1)
	var ch, cc, val uint8
	require.True(t, s.sent[0].msg.GetControlChange(&ch, &cc, &val))
	assert.Equal(t, uint8(4), ch)
	assert.Equal(t, uint8(64), val)
}

func TestSysExWithDeviceID(t *testing.T) {
	s := &fakeSender{}
	c := Cue{Command: FixtureCommand{PatchID: "msc", Command: "go", Args: map[string]any{"format": 1, "cue": "12"}}}
	require.NoError(t, c.Start(context.Background(), testResolver(), s))
	require.Len(t, s.sent, 1)

	var data []byte
	require.True(t, s.sent[0].msg.GetSysEx(&data))
	assert.Equal(t, []byte{0x7F, 20, 0x02, 0x01, 0x01, '1', '2'}, data)
}
