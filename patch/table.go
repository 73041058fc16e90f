package patch

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"midi-fixture-control/addrspace"
	"midi-fixture-control/debug"
	"midi-fixture-control/fixture"
)

// ProfileLookup finds fixture profiles by id
type ProfileLookup interface {
	Profile(id string) (*fixture.Profile, error)
}

// spaces is the pair of address spaces belonging to one output
type spaces struct {
	channels  *addrspace.Space
	deviceIDs *addrspace.Space
}

func newSpaces() *spaces {
	return &spaces{
		channels:  addrspace.NewChannels(),
		deviceIDs: addrspace.NewDeviceIDs(),
	}
}

// Table is the patch list of a session. All methods are safe for
// concurrent use; a move is one critical section, so nobody sees the old
// block freed before the new one is taken.
type Table struct {
	mu      sync.Mutex
	lookup  ProfileLookup
	patches []*Patch
	outputs map[string]*spaces // "" is the default output
	newID   func() string
}

// NewTable creates an empty table resolving fixtures through lookup
func NewTable(lookup ProfileLookup) *Table {
	return &Table{
		lookup:  lookup,
		outputs: make(map[string]*spaces),
		newID:   uuid.NewString,
	}
}

func (t *Table) spacesFor(output string) *spaces {
	s, ok := t.outputs[output]
	if !ok {
		s = newSpaces()
		t.outputs[output] = s
	}
	return s
}

func (t *Table) find(id string) (int, *Patch) {
	for i, p := range t.patches {
		if p.ID == id {
			return i, p
		}
	}
	return -1, nil
}

// Len returns the number of patches
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.patches)
}

// Patches returns a copy of every patch in table order
func (t *Table) Patches() []Patch {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Patch, len(t.patches))
	for i, p := range t.patches {
		out[i] = *p
	}
	return out
}

// Get returns a patch by id
func (t *Table) Get(id string) (Patch, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, p := t.find(id)
	if p == nil {
		return Patch{}, false
	}
	return *p, true
}

// Default returns the default patch, if the table has any patches
func (t *Table) Default() (Patch, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.patches {
		if p.Default {
			return *p, true
		}
	}
	return Patch{}, false
}

// Outputs returns every output that has an address space, sorted
func (t *Table) Outputs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.outputs))
	for name := range t.outputs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Occupancy returns snapshots of the channel and device ID spaces of output
func (t *Table) Occupancy(output string) (channels, deviceIDs []bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.outputs[output]
	if !ok {
		s = newSpaces()
	}
	return s.channels.Occupied(), s.deviceIDs.Occupied()
}

// want works out the block a patch asks for in one space
type want struct {
	space    *addrspace.Space
	what     string
	width    int
	start    int // requested start, 0 for "anywhere"
	exact    bool
	previous *addrspace.Block
}

// locate finds the block for w, or returns an error saying why it can't
func (w want) locate() (int, error) {
	start := w.start
	if start == 0 {
		start = 1
	}
	if start < 1 || start > w.space.Capacity() {
		return 0, fmt.Errorf("%w: %s %d not in 1-%d", ErrOutOfRange, w.what, start, w.space.Capacity())
	}
	if w.exact && start+w.width-1 > w.space.Capacity() {
		return 0, fmt.Errorf("%w: %s %d-%d past %d", ErrOutOfRange, w.what, start, start+w.width-1, w.space.Capacity())
	}
	addr := w.space.Locate(start, w.width, w.previous)
	if addr == addrspace.NotFound {
		return 0, fmt.Errorf("%w: no %d free %s(s)", ErrNoSpace, w.width, w.what)
	}
	if w.exact && addr != start {
		return 0, fmt.Errorf("%w: %s %d is taken", ErrNoSpace, w.what, start)
	}
	return addr, nil
}

// Add patches a new fixture instance
func (t *Table) Add(fixtureID string, pl Placement) (Patch, error) {
	profile, err := t.lookup.Profile(fixtureID)
	if err != nil {
		return Patch{}, fmt.Errorf("add patch: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := checkPlacement(profile, pl); err != nil {
		return Patch{}, err
	}

	s := t.spacesFor(pl.Output)
	p := &Patch{ID: t.newID(), FixtureID: fixtureID, Output: pl.Output}

	if profile.Channels > 0 {
		addr, err := want{space: s.channels, what: "channel", width: profile.Channels, start: pl.Channel, exact: pl.Exact}.locate()
		if err != nil {
			debug.Warn("patch", "add %s: %v", fixtureID, err)
			return Patch{}, err
		}
		p.Channel, p.Width = addr, profile.Channels
	}
	if profile.DeviceID {
		addr, err := want{space: s.deviceIDs, what: "device id", width: 1, start: pl.DeviceID, exact: pl.Exact}.locate()
		if err != nil {
			debug.Warn("patch", "add %s: %v", fixtureID, err)
			return Patch{}, err
		}
		p.DeviceID = addr
	}

	if err := fill(s, p); err != nil {
		debug.Error("patch", "add %s: %v", fixtureID, err)
		return Patch{}, err
	}

	p.Default = len(t.patches) == 0
	t.patches = append(t.patches, p)
	debug.Info("patch", "added %s as %s (channel %d, device id %d, output %q)", fixtureID, p.ID, p.Channel, p.DeviceID, p.Output)
	return *p, nil
}

func checkPlacement(profile *fixture.Profile, pl Placement) error {
	if pl.Channel != 0 && profile.Channels == 0 {
		return fmt.Errorf("%w: %s has no MIDI channel", ErrOutOfRange, profile.ID)
	}
	if pl.DeviceID != 0 && !profile.DeviceID {
		return fmt.Errorf("%w: %s has no device id", ErrOutOfRange, profile.ID)
	}
	return nil
}

// fill takes p's blocks in s, all or nothing
func fill(s *spaces, p *Patch) error {
	if b := p.channelBlock(); b != nil && !s.channels.Fill(b.Start, b.Width) {
		return fmt.Errorf("%w: channels %d-%d", ErrCorrupt, b.Start, b.End())
	}
	if b := p.deviceBlock(); b != nil && !s.deviceIDs.Fill(b.Start, b.Width) {
		if c := p.channelBlock(); c != nil {
			s.channels.Empty(c.Start, c.Width)
		}
		return fmt.Errorf("%w: device id %d", ErrCorrupt, b.Start)
	}
	return nil
}

// vacate releases p's blocks in s, all or nothing
func vacate(s *spaces, p *Patch) error {
	c, d := p.channelBlock(), p.deviceBlock()
	if c != nil && !occupied(s.channels, c) {
		return fmt.Errorf("%w: channels %d-%d", ErrInvalidPrevious, c.Start, c.End())
	}
	if d != nil && !occupied(s.deviceIDs, d) {
		return fmt.Errorf("%w: device id %d", ErrInvalidPrevious, d.Start)
	}
	if c != nil {
		s.channels.Empty(c.Start, c.Width)
	}
	if d != nil {
		s.deviceIDs.Empty(d.Start, d.Width)
	}
	return nil
}

func occupied(s *addrspace.Space, b *addrspace.Block) bool {
	for a := b.Start; a <= b.End(); a++ {
		if !s.IsOccupied(a) {
			return false
		}
	}
	return true
}

// Move changes a patch's output, channel and/or device ID. The fixture's
// current width comes from its profile, so a move also picks up a width
// change in the library.
func (t *Table) Move(id string, pl Placement) (Patch, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, p := t.find(id)
	if p == nil {
		return Patch{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	profile, err := t.lookup.Profile(p.FixtureID)
	if err != nil {
		return Patch{}, fmt.Errorf("move %s: %w", id, err)
	}
	if err := checkPlacement(profile, pl); err != nil {
		return Patch{}, err
	}

	src := t.spacesFor(p.Output)
	dst := t.spacesFor(pl.Output)
	same := p.Output == pl.Output

	// guard against our own bookkeeping having drifted before trusting it
	// as the block to give up
	if c := p.channelBlock(); c != nil && !occupied(src.channels, c) {
		debug.Error("patch", "move %s: channels %d-%d not recorded as taken", id, c.Start, c.End())
		return Patch{}, fmt.Errorf("%w: channels %d-%d", ErrInvalidPrevious, c.Start, c.End())
	}
	if d := p.deviceBlock(); d != nil && !occupied(src.deviceIDs, d) {
		debug.Error("patch", "move %s: device id %d not recorded as taken", id, d.Start)
		return Patch{}, fmt.Errorf("%w: device id %d", ErrInvalidPrevious, d.Start)
	}

	next := *p
	next.Output = pl.Output
	if profile.Channels > 0 {
		w := want{space: dst.channels, what: "channel", width: profile.Channels, start: pl.Channel, exact: pl.Exact}
		if w.start == 0 {
			w.start = p.Channel
		}
		if same {
			w.previous = p.channelBlock()
		}
		addr, err := w.locate()
		if err != nil {
			debug.Warn("patch", "move %s: %v", id, err)
			return Patch{}, err
		}
		next.Channel, next.Width = addr, profile.Channels
	} else {
		next.Channel, next.Width = 0, 0
	}
	if profile.DeviceID {
		w := want{space: dst.deviceIDs, what: "device id", width: 1, start: pl.DeviceID, exact: pl.Exact}
		if w.start == 0 {
			w.start = p.DeviceID
		}
		if same {
			w.previous = p.deviceBlock()
		}
		addr, err := w.locate()
		if err != nil {
			debug.Warn("patch", "move %s: %v", id, err)
			return Patch{}, err
		}
		next.DeviceID = addr
	} else {
		next.DeviceID = 0
	}

	if err := vacate(src, p); err != nil {
		debug.Error("patch", "move %s: %v", id, err)
		return Patch{}, err
	}
	if err := fill(dst, &next); err != nil {
		// put the old blocks back so the table stays consistent
		if restore := fill(src, p); restore != nil {
			debug.Error("patch", "move %s: restoring old blocks: %v", id, restore)
		}
		debug.Error("patch", "move %s: %v", id, err)
		return Patch{}, err
	}

	*p = next
	debug.Info("patch", "moved %s to channel %d, device id %d, output %q", id, p.Channel, p.DeviceID, p.Output)
	return *p, nil
}

// Remove unpatches a fixture. If it was the default, the first remaining
// patch becomes the default.
func (t *Table) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, p := t.find(id)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := vacate(t.spacesFor(p.Output), p); err != nil {
		debug.Error("patch", "remove %s: %v", id, err)
		return fmt.Errorf("%w (%v)", ErrCorrupt, err)
	}

	t.patches = append(t.patches[:i], t.patches[i+1:]...)
	if p.Default && len(t.patches) > 0 {
		t.patches[0].Default = true
	}
	debug.Info("patch", "removed %s", id)
	return nil
}

// SetDefault makes id the default patch
func (t *Table) SetDefault(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, target := t.find(id)
	if target == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for _, p := range t.patches {
		p.Default = p == target
	}
	return nil
}

// SetDCA sets the DCA-assignment flag of id
func (t *Table) SetDCA(id string, on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, p := t.find(id)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p.DCA = on
	return nil
}

// Records returns the persisted form of the table
func (t *Table) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.patches))
	for i, p := range t.patches {
		out[i] = p.Record()
	}
	return out
}

// Load replaces the table with records, replaying each one into fresh
// address spaces in order. On error the table is left as it was.
func (t *Table) Load(records []Record) error {
	patches := make([]*Patch, 0, len(records))
	outputs := make(map[string]*spaces)
	seen := make(map[string]bool)
	hasDefault := false

	for i, r := range records {
		profile, err := t.lookup.Profile(r.FixtureID)
		if err != nil {
			return fmt.Errorf("patch %d: %w", i, err)
		}

		p := &Patch{
			ID:        r.PatchID,
			FixtureID: r.FixtureID,
			Output:    r.MidiPatch,
			DCA:       r.IsDCA,
		}
		if p.ID == "" {
			p.ID = t.newID()
		}
		if seen[p.ID] {
			return fmt.Errorf("patch %d: duplicate id %s", i, p.ID)
		}
		seen[p.ID] = true

		if profile.Channels > 0 {
			if r.MidiChannel == 0 {
				return fmt.Errorf("patch %d (%s): %w: missing channel", i, r.FixtureID, ErrOutOfRange)
			}
			p.Channel, p.Width = r.MidiChannel, profile.Channels
		}
		if profile.DeviceID {
			if r.MidiDeviceID == 0 {
				return fmt.Errorf("patch %d (%s): %w: missing device id", i, r.FixtureID, ErrOutOfRange)
			}
			p.DeviceID = r.MidiDeviceID
		}

		s, ok := outputs[p.Output]
		if !ok {
			s = newSpaces()
			outputs[p.Output] = s
		}
		if err := loadFill(s, p); err != nil {
			debug.Warn("patch", "load %s: %v", p.ID, err)
			return fmt.Errorf("patch %d (%s): %w", i, r.FixtureID, err)
		}

		if r.IsDefault && !hasDefault {
			p.Default = true
			hasDefault = true
		}
		patches = append(patches, p)
	}
	if !hasDefault && len(patches) > 0 {
		patches[0].Default = true
	}

	t.mu.Lock()
	t.patches = patches
	t.outputs = outputs
	t.mu.Unlock()
	debug.Info("patch", "loaded %d patches", len(patches))
	return nil
}

// loadFill is fill with errors worded for saved data
func loadFill(s *spaces, p *Patch) error {
	if b := p.channelBlock(); b != nil {
		if b.Start < 1 || b.End() > s.channels.Capacity() {
			return fmt.Errorf("%w: channels %d-%d", ErrOutOfRange, b.Start, b.End())
		}
		if !s.channels.Fill(b.Start, b.Width) {
			return fmt.Errorf("%w: channels %d-%d overlap another patch", ErrNoSpace, b.Start, b.End())
		}
	}
	if b := p.deviceBlock(); b != nil {
		if b.Start < 1 || b.Start > s.deviceIDs.Capacity() {
			return fmt.Errorf("%w: device id %d", ErrOutOfRange, b.Start)
		}
		if !s.deviceIDs.Fill(b.Start, 1) {
			return fmt.Errorf("%w: device id %d used by another patch", ErrNoSpace, b.Start)
		}
	}
	return nil
}
