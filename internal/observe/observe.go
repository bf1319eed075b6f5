// Package observe defines the scalar and per-node time-series sinks
// the simulation core reports through, and a CSV-backed default
// implementation for the standalone CLI. The core never opens a file
// itself; it only ever writes through a Sink (see SPEC_FULL.md §6).
package observe

import (
	"fmt"
	"io"

	"github.com/kprusa/leachsim/internal/proto"
	"github.com/kprusa/leachsim/internal/simtime"
)

// Sink receives end-of-run scalars and per-node time series emitted
// during a simulation. Implementations must tolerate being called
// many times per key (e.g. "energy" is emitted once per charged
// operation).
type Sink interface {
	// Scalar records a whole-run result, e.g. "endTime", "rounds",
	// "firstNodeDead".
	Scalar(name string, value float64)

	// Series records one sample of a per-node time series, e.g. the
	// "energy" key emitted before every charged operation.
	Series(node proto.NodeID, key string, t simtime.Time, value float64)
}

// Null discards everything written to it. Useful for tests that only
// care about final node/network state.
type Null struct{}

func (Null) Scalar(string, float64)                               {}
func (Null) Series(proto.NodeID, string, simtime.Time, float64) {}

// CSV writes scalars and series to two separate CSV streams in the
// teacher's file-per-concern style (see NewNode's input/output/
// received logs): one row per scalar, one row per series sample.
type CSV struct {
	scalars io.Writer
	series  io.Writer
}

// NewCSV wraps the two destination writers, emitting header rows.
func NewCSV(scalars, series io.Writer) *CSV {
	fmt.Fprintln(scalars, "name,value")
	fmt.Fprintln(series, "node,key,time,value")
	return &CSV{scalars: scalars, series: series}
}

func (c *CSV) Scalar(name string, value float64) {
	fmt.Fprintf(c.scalars, "%s,%g\n", name, value)
}

func (c *CSV) Series(node proto.NodeID, key string, t simtime.Time, value float64) {
	fmt.Fprintf(c.series, "%s,%s,%g,%g\n", node, key, float64(t), value)
}
