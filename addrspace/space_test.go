package addrspace

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillBounds(t *testing.T) {
	s := NewChannels()

	require.True(t, s.Fill(16, 1), "last address should be fillable")
	require.False(t, s.Fill(16, 2), "block past capacity")
	require.False(t, s.Fill(0, 1), "address below 1")
	require.False(t, s.Fill(1, 0), "zero width")
	require.False(t, s.Fill(1, 17), "width above capacity")
	require.False(t, s.Fill(17, 1), "address above capacity")
	require.False(t, s.Fill(-3, 2))
}

func TestFillConflictIsAtomic(t *testing.T) {
	s := NewChannels()
	require.True(t, s.Fill(5, 2))
	before := s.Occupied()

	require.False(t, s.Fill(3, 4), "overlaps 5-6")
	assert.Equal(t, before, s.Occupied())

	require.False(t, s.Fill(6, 1))
	assert.Equal(t, before, s.Occupied())
}

func TestEmptyIsStrict(t *testing.T) {
	s := NewChannels()
	require.True(t, s.Fill(1, 4))
	before := s.Occupied()

	require.False(t, s.Empty(3, 4), "5-6 were never filled")
	assert.Equal(t, before, s.Occupied())

	require.False(t, s.Empty(0, 1))
	require.False(t, s.Empty(16, 2))
	assert.Equal(t, before, s.Occupied())

	require.True(t, s.Empty(2, 2))
	assert.Equal(t, []bool{true, false, false, true}, s.Occupied()[:4])
}

func TestFillEmptyRoundTrip(t *testing.T) {
	s := NewChannels()
	require.True(t, s.Fill(2, 3))
	before := s.Occupied()

	require.True(t, s.Fill(9, 5))
	require.True(t, s.Empty(9, 5))
	assert.Equal(t, before, s.Occupied())
}

func TestLocateWraparound(t *testing.T) {
	s := NewChannels()
	require.True(t, s.Fill(1, 10))
	assert.Equal(t, 11, s.Locate(5, 4, nil))

	require.True(t, s.Fill(11, 6))
	assert.Equal(t, NotFound, s.Locate(5, 4, nil), "space is full")

	require.True(t, s.Empty(1, 3))
	assert.Equal(t, 1, s.Locate(5, 3, nil), "wraps to the run before start")
	assert.Equal(t, NotFound, s.Locate(5, 4, nil), "only three free")
}

func TestLocateStartNearTop(t *testing.T) {
	s := NewChannels()
	require.True(t, s.Fill(1, 2))

	assert.Equal(t, 3, s.Locate(15, 4, nil), "nothing fits above 15, wrap finds 3")
	assert.Equal(t, 16, s.Locate(16, 1, nil))
}

func TestLocateInvalidArguments(t *testing.T) {
	s := NewChannels()
	assert.Equal(t, NotFound, s.Locate(0, 1, nil))
	assert.Equal(t, NotFound, s.Locate(17, 1, nil))
	assert.Equal(t, NotFound, s.Locate(1, 0, nil))
	assert.Equal(t, NotFound, s.Locate(1, 17, nil))
}

func TestLocateWithPrevious(t *testing.T) {
	s := NewChannels()
	require.True(t, s.Fill(1, 4))

	before := s.Occupied()
	assert.Equal(t, 1, s.Locate(1, 6, &Block{Start: 1, Width: 4}), "grow in place")
	assert.Equal(t, before, s.Occupied(), "locate must not mutate")

	assert.Equal(t, 5, s.Locate(1, 6, nil), "without previous the block is in the way")
}

func TestLocateWithPreviousNeighbours(t *testing.T) {
	s := NewChannels()
	require.True(t, s.Fill(1, 2))
	require.True(t, s.Fill(3, 2))
	require.True(t, s.Fill(7, 1))

	// 3-4 moving to 2 would collide with 1-2
	assert.Equal(t, 3, s.Locate(2, 3, &Block{Start: 3, Width: 2}))
	// growing 3-4 to width 4 still fits before 7
	assert.Equal(t, 3, s.Locate(3, 4, &Block{Start: 3, Width: 2}))
	// width 5 runs into 7, so it lands at 8
	assert.Equal(t, 8, s.Locate(3, 5, &Block{Start: 3, Width: 2}))
}

func TestLocateRejectsUnoccupiedPrevious(t *testing.T) {
	s := NewChannels()
	require.True(t, s.Fill(1, 2))

	assert.Equal(t, NotFound, s.Locate(1, 2, &Block{Start: 1, Width: 3}), "address 3 is free")
	assert.Equal(t, NotFound, s.Locate(1, 2, &Block{Start: 5, Width: 1}))
	assert.Equal(t, NotFound, s.Locate(1, 2, &Block{Start: 0, Width: 1}))
	assert.Equal(t, NotFound, s.Locate(1, 2, &Block{Start: 16, Width: 2}))
}

func TestEndToEndScenario(t *testing.T) {
	s := NewChannels()
	require.True(t, s.Fill(1, 4))
	require.True(t, s.Fill(5, 4))
	assert.Equal(t, 9, s.Locate(1, 4, nil))
	require.True(t, s.Empty(1, 4))
	assert.Equal(t, 1, s.Locate(1, 4, nil))
}

func TestDeviceIDSpace(t *testing.T) {
	s := NewDeviceIDs()
	assert.Equal(t, DeviceIDCapacity, s.Capacity())
	assert.Equal(t, KindDeviceID, s.Kind())
	assert.Equal(t, 1, s.DefaultWidth())

	require.True(t, s.Fill(111, 1))
	require.False(t, s.Fill(112, 1))
	require.False(t, s.Fill(0, 1))
	assert.Equal(t, 1, s.Locate(111, 1, nil), "wraps from the top")
	assert.Equal(t, 110, s.Free())
}

func TestCloneAndReset(t *testing.T) {
	s := NewChannels()
	require.True(t, s.Fill(4, 4))

	c := s.Clone()
	require.True(t, c.Fill(1, 3))
	assert.False(t, s.IsOccupied(1), "clone shares no state")
	assert.True(t, c.IsOccupied(1))

	s.Reset()
	assert.Equal(t, 16, s.Free())
	assert.False(t, s.IsOccupied(4))
	assert.False(t, s.IsOccupied(0))
	assert.False(t, s.IsOccupied(99))
}

func TestZeroCapacity(t *testing.T) {
	s := New(Config{Kind: KindChannel, Capacity: -2})
	assert.Equal(t, 0, s.Capacity())
	assert.False(t, s.Fill(1, 1))
	assert.Equal(t, NotFound, s.Locate(1, 1, nil))
	assert.Empty(t, s.Occupied())
}

// TestShadowModel drives random fills and empties against a plain []bool and
// checks that both agree after every step.
func TestShadowModel(t *testing.T) {
	for _, cfg := range []Config{Channels, DeviceIDs} {
		t.Run(string(cfg.Kind), func(t *testing.T) {
			rng := rand.New(rand.NewSource(7))
			s := New(cfg)
			shadow := make([]bool, cfg.Capacity)
			var blocks []Block

			for step := 0; step < 2000; step++ {
				if len(blocks) > 0 && rng.Intn(3) == 0 {
					i := rng.Intn(len(blocks))
					b := blocks[i]
					require.True(t, s.Empty(b.Start, b.Width), "step %d: empty %+v", step, b)
					for a := b.Start; a <= b.End(); a++ {
						shadow[a-1] = false
					}
					blocks = append(blocks[:i], blocks[i+1:]...)
				} else {
					width := 1 + rng.Intn(4)
					start := 1 + rng.Intn(cfg.Capacity)
					want := start+width-1 <= cfg.Capacity
					for a := start; want && a < start+width; a++ {
						want = !shadow[a-1]
					}
					before := s.Occupied()
					got := s.Fill(start, width)
					require.Equal(t, want, got, "step %d: fill(%d, %d)", step, start, width)
					if got {
						for a := start; a < start+width; a++ {
							shadow[a-1] = true
						}
						blocks = append(blocks, Block{Start: start, Width: width})
					} else {
						require.Equal(t, before, s.Occupied(), "step %d: failed fill mutated", step)
					}
				}
				require.Equal(t, shadow, s.Occupied(), "step %d", step)
			}
		})
	}
}

// TestLocateMatchesBruteForce compares Locate with a direct scan of every
// candidate in wraparound order.
func TestLocateMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 500; trial++ {
		s := NewChannels()
		for i := 0; i < 6; i++ {
			s.Fill(1+rng.Intn(16), 1+rng.Intn(3))
		}
		occ := s.Occupied()
		start := 1 + rng.Intn(16)
		width := 1 + rng.Intn(6)

		want := NotFound
		for k := 0; k < 16 && want == NotFound; k++ {
			addr := (start-1+k)%16 + 1
			if addr+width-1 > 16 {
				continue
			}
			fits := true
			for a := addr; a < addr+width; a++ {
				if occ[a-1] {
					fits = false
					break
				}
			}
			if fits {
				want = addr
			}
		}
		require.Equal(t, want, s.Locate(start, width, nil), "trial %d occ=%v start=%d width=%d", trial, occ, start, width)
	}
}
