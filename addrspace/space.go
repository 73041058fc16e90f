// Package addrspace tracks which MIDI addresses (channels or device IDs) are
// taken by patched fixtures.
//
// A Space is a bounded run of 1-based addresses. Blocks of consecutive
// addresses are filled and emptied atomically, and Locate finds room for a
// block, optionally ignoring a block the caller is about to give up.
//
// Space is not safe for concurrent use. Callers that share one across
// goroutines must serialize access themselves (see patch.Table).
package addrspace

import (
	"github.com/bits-and-blooms/bitset"
)

// NotFound is returned by Locate when no block fits.
const NotFound = -1

const (
	// ChannelCapacity is the number of MIDI channels.
	ChannelCapacity = 16
	// DeviceIDCapacity is the number of usable MIDI device IDs (1-111).
	DeviceIDCapacity = 111
)

// Kind names what a Space addresses
type Kind string

const (
	KindChannel  Kind = "channel"
	KindDeviceID Kind = "device-id"
)

// Config parameterizes a Space
type Config struct {
	Kind         Kind
	Capacity     int
	DefaultWidth int // width used when a caller has no better idea
}

// Channels is the MIDI channel space: 16 slots, fixtures take any width.
var Channels = Config{Kind: KindChannel, Capacity: ChannelCapacity, DefaultWidth: 1}

// DeviceIDs is the device ID space: 111 slots, always width 1.
var DeviceIDs = Config{Kind: KindDeviceID, Capacity: DeviceIDCapacity, DefaultWidth: 1}

// Block is a run of addresses starting at Start.
type Block struct {
	Start int
	Width int
}

// End returns the last address covered by the block.
func (b Block) End() int {
	return b.Start + b.Width - 1
}

// Space is an occupancy map over addresses 1..Capacity.
type Space struct {
	cfg  Config
	bits *bitset.BitSet // bit i is address i+1
}

// New creates an empty space. A non-positive capacity yields a space in
// which every operation fails.
func New(cfg Config) *Space {
	if cfg.Capacity < 0 {
		cfg.Capacity = 0
	}
	if cfg.DefaultWidth < 1 {
		cfg.DefaultWidth = 1
	}
	return &Space{
		cfg:  cfg,
		bits: bitset.New(uint(cfg.Capacity)),
	}
}

// NewChannels creates an empty channel space.
func NewChannels() *Space { return New(Channels) }

// NewDeviceIDs creates an empty device ID space.
func NewDeviceIDs() *Space { return New(DeviceIDs) }

func (s *Space) Kind() Kind        { return s.cfg.Kind }
func (s *Space) Capacity() int     { return s.cfg.Capacity }
func (s *Space) DefaultWidth() int { return s.cfg.DefaultWidth }

// Fill marks start..start+width-1 occupied. It fails, leaving the space
// untouched, if the block is out of bounds or any address in it is taken.
func (s *Space) Fill(start, width int) bool {
	if !s.inBounds(start, width) {
		return false
	}
	if !s.allFree(s.bits, start, width) {
		return false
	}
	for i := start; i < start+width; i++ {
		s.bits.Set(uint(i - 1))
	}
	return true
}

// Empty marks start..start+width-1 free. It fails, leaving the space
// untouched, if the block is out of bounds or any address in it is not
// currently occupied.
func (s *Space) Empty(start, width int) bool {
	if !s.inBounds(start, width) {
		return false
	}
	if !s.allOccupied(start, width) {
		return false
	}
	for i := start; i < start+width; i++ {
		s.bits.Clear(uint(i - 1))
	}
	return true
}

// Locate returns the lowest address >= start where width free addresses
// follow, wrapping round to 1 if nothing fits above start. It returns
// NotFound if no block fits anywhere.
//
// If previous is non-nil its addresses count as free, so a block can be
// moved or resized over itself. previous must be entirely occupied.
// Locate never changes the space.
func (s *Space) Locate(start, width int, previous *Block) int {
	capacity := s.cfg.Capacity
	if start < 1 || start > capacity || width < 1 || width > capacity {
		return NotFound
	}

	view := s.bits
	if previous != nil {
		if !s.inBounds(previous.Start, previous.Width) || !s.allOccupied(previous.Start, previous.Width) {
			return NotFound
		}
		view = s.bits.Clone()
		for i := previous.Start; i <= previous.End(); i++ {
			view.Clear(uint(i - 1))
		}
	}

	last := capacity - width + 1
	for addr := start; addr <= last; addr++ {
		if s.allFree(view, addr, width) {
			return addr
		}
	}
	for addr := 1; addr < start && addr <= last; addr++ {
		if s.allFree(view, addr, width) {
			return addr
		}
	}
	return NotFound
}

// IsOccupied reports whether addr is taken. Out of range addresses are not.
func (s *Space) IsOccupied(addr int) bool {
	if addr < 1 || addr > s.cfg.Capacity {
		return false
	}
	return s.bits.Test(uint(addr - 1))
}

// Occupied returns a copy of the occupancy vector; index 0 is address 1.
func (s *Space) Occupied() []bool {
	out := make([]bool, s.cfg.Capacity)
	for i := range out {
		out[i] = s.bits.Test(uint(i))
	}
	return out
}

// Free returns the number of unoccupied addresses.
func (s *Space) Free() int {
	return s.cfg.Capacity - int(s.bits.Count())
}

// Reset frees every address.
func (s *Space) Reset() {
	s.bits.ClearAll()
}

// Clone returns an independent copy.
func (s *Space) Clone() *Space {
	return &Space{cfg: s.cfg, bits: s.bits.Clone()}
}

func (s *Space) inBounds(start, width int) bool {
	capacity := s.cfg.Capacity
	return start >= 1 && start <= capacity &&
		width >= 1 && width <= capacity &&
		start+width-1 <= capacity
}

func (s *Space) allFree(bits *bitset.BitSet, start, width int) bool {
	for i := start; i < start+width; i++ {
		if bits.Test(uint(i - 1)) {
			return false
		}
	}
	return true
}

func (s *Space) allOccupied(start, width int) bool {
	for i := start; i < start+width; i++ {
		if !s.bits.Test(uint(i - 1)) {
			return false
		}
	}
	return true
}
