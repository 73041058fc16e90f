// Package patch keeps the list of patched fixtures and makes sure no two of
// them share a MIDI channel or device ID on the same output.
package patch

import (
	"errors"

	"midi-fixture-control/addrspace"
	"midi-fixture-control/fixture"
)

var (
	ErrNotFound        = errors.New("patch not found")
	ErrNoSpace         = errors.New("no space for this device")
	ErrOutOfRange      = errors.New("address out of range")
	ErrInvalidPrevious = errors.New("patch does not match recorded occupancy")
	ErrCorrupt         = errors.New("address space out of step with patch list")
)

// Patch is one fixture instance in the session
type Patch struct {
	ID        string `json:"id"`
	FixtureID string `json:"fixture_id"`
	Channel   int    `json:"channel,omitempty"`   // first channel, 1-16; 0 if the fixture has none
	Width     int    `json:"width,omitempty"`     // number of channels from Channel
	DeviceID  int    `json:"device_id,omitempty"` // 1-111; 0 if the fixture has none
	Output    string `json:"output,omitempty"`
	Default   bool   `json:"default"`
	DCA       bool   `json:"dca"`
}

// Address returns where messages for the patch go
func (p Patch) Address() fixture.Address {
	return fixture.Address{Channel: p.Channel, DeviceID: p.DeviceID}
}

// LastChannel returns the last channel the patch covers (0 if none)
func (p Patch) LastChannel() int {
	if p.Channel == 0 {
		return 0
	}
	return p.Channel + p.Width - 1
}

func (p Patch) channelBlock() *addrspace.Block {
	if p.Channel == 0 {
		return nil
	}
	return &addrspace.Block{Start: p.Channel, Width: p.Width}
}

func (p Patch) deviceBlock() *addrspace.Block {
	if p.DeviceID == 0 {
		return nil
	}
	return &addrspace.Block{Start: p.DeviceID, Width: 1}
}

// Record is the persisted form of a patch
type Record struct {
	PatchID      string `json:"patch_id"`
	FixtureID    string `json:"fixture_id"`
	MidiChannel  int    `json:"midi_channel,omitempty"`
	MidiDeviceID int    `json:"midi_deviceid,omitempty"`
	MidiPatch    string `json:"midi_patch,omitempty"`
	IsDefault    bool   `json:"is_default"`
	IsDCA        bool   `json:"is_dca"`
}

// Record converts a patch to its persisted form
func (p Patch) Record() Record {
	return Record{
		PatchID:      p.ID,
		FixtureID:    p.FixtureID,
		MidiChannel:  p.Channel,
		MidiDeviceID: p.DeviceID,
		MidiPatch:    p.Output,
		IsDefault:    p.Default,
		IsDCA:        p.DCA,
	}
}

// Placement says where to put a patch. Zero Channel or DeviceID means
// "anywhere" when adding and "where it is now" when moving. Without Exact
// the nearest free address at or after the requested one is used.
type Placement struct {
	Output   string
	Channel  int
	DeviceID int
	Exact    bool
}
