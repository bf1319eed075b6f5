// Package geometry implements the field layout and propagation-delay
// math shared by every node: positions are integer coordinates on a
// square field, distance is Euclidean, and propagation delay is a
// closed-form function of packet size and distance.
package geometry

import (
	"math"

	"github.com/kprusa/leachsim/internal/simtime"
)

// Lightspeed is reproduced exactly as the reference implementation
// defines it: `300*10e6`, which evaluates to 3e9 m/s, an order of
// magnitude above the physical speed of light. This is flagged as an
// open question in SPEC_FULL.md/DESIGN.md rather than silently fixed,
// since the scenario numbers in spec.md §8 are computed against it.
const Lightspeed = 300 * 10e6

// Position is an integer coordinate on the field.
type Position struct {
	X, Y int
}

// Distance returns the Euclidean distance between two positions.
func Distance(a, b Position) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Range returns the maximum communication range implied by a square
// field of the given edge length: range = sqrt(2) * edge, the
// diagonal of the field.
func Range(edge float64) float64 {
	return math.Sqrt(2 * edge * edge)
}

// PropagationDelay is the time for the last bit of a message of the
// given size (bits) to arrive across distance d, at the given
// bitrate (bits/s): propagation time plus transmission time.
func PropagationDelay(bits int, d, bitrate float64) simtime.Duration {
	packetDuration := float64(bits) / bitrate
	return simtime.Duration(d/Lightspeed + packetDuration)
}
