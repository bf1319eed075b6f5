package network

import (
	"math/rand"

	"github.com/kprusa/leachsim/internal/geometry"
)

// placeNodes draws n unique integer positions within
// [minX,edge]x[minY,edge], matching the reference implementation's
// reject-and-retry placement loop in Sensor::initialize.
func placeNodes(rng *rand.Rand, n, minX, minY int, edge float64) []geometry.Position {
	maxX := int(edge)
	maxY := int(edge)
	seen := make(map[geometry.Position]bool, n)
	positions := make([]geometry.Position, 0, n)

	for len(positions) < n {
		p := geometry.Position{
			X: minX + rng.Intn(maxX-minX+1),
			Y: minY + rng.Intn(maxY-minY+1),
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		positions = append(positions, p)
	}
	return positions
}

// electionSubstream derives the self-election RNG stream from the same
// seed as the placement one, giving each concern its own substream as recommended
// in SPEC_FULL.md §9 so reorganizing the code never perturbs either
// stream's sequence of draws.
func electionSubstream(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed ^ 0x5bd1e995))
}
