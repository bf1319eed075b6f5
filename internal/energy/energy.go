// Package energy implements the closed-form per-operation radio costs
// used to charge a node's battery. The underflow check that declares a
// node dead is done by the caller (sensor.applyCost), not here.
package energy

// Model holds the per-network energy coefficients.
type Model struct {
	Eelec float64 // energy to run the transmitter/receiver electronics, per bit
	Eamp  float64 // transmit amplifier energy, per bit per squared meter
	Ecomp float64 // aggregation/compression energy, per bit
}

// TXCost is the energy to transmit k bits across distance d.
func (m Model) TXCost(k int, d float64) float64 {
	kf := float64(k)
	return m.Eelec*kf + m.Eamp*kf*d*d
}

// RXCost is the energy to receive k bits.
func (m Model) RXCost(k int) float64 {
	return m.Eelec * float64(k)
}

// CompressCost is the energy to aggregate kN bits (k bits across N
// sources).
func (m Model) CompressCost(kN int) float64 {
	return m.Ecomp * float64(kN)
}

// Op identifies which cost function a charge was for; used only for
// observability, not for the arithmetic itself.
type Op int

const (
	OpTX Op = iota
	OpRX
	OpCompress
)

func (o Op) String() string {
	switch o {
	case OpTX:
		return "TX"
	case OpRX:
		return "RX"
	case OpCompress:
		return "COMPRESS"
	default:
		return "UNKNOWN"
	}
}
