package network

// SimState is the run-global state no single node owns: the death
// count and the round record it feeds. It is created once by Network
// and passed by pointer into every Sensor and the BaseStation, per the
// SimState design note in SPEC_FULL.md §9. Only Sensor.applyCost (via
// RecordDeath) writes into it; the BaseStation only reads Ended, and
// keeps the authoritative round counter in its own field.
type SimState struct {
	N             int
	Ndead         int
	FirstNodeDead int // -1 until the first death
	ended         bool
}

// NewSimState returns a SimState for a network of n sensors.
func NewSimState(n int) *SimState {
	return &SimState{N: n, FirstNodeDead: -1}
}

// RecordDeath increments Ndead, stamps FirstNodeDead on the first
// call, and marks the run ended once every sensor has died.
func (s *SimState) RecordDeath(round int) {
	s.Ndead++
	if s.Ndead == 1 {
		s.FirstNodeDead = round
	}
	if s.Ndead >= s.N {
		s.ended = true
	}
}

// Ended reports whether every sensor has died.
func (s *SimState) Ended() bool { return s.ended }
