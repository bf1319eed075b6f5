// Package simtime defines the virtual clock types shared by every
// component of the simulator. Nothing here touches the wall clock: a
// Time is always a simulated offset from t=0, advanced only by the
// event scheduler.
package simtime

import "fmt"

// Time is a simulated instant, in seconds since the simulation began.
type Time float64

// Duration is a simulated span, in seconds.
type Duration float64

// Epsilon is the ordering nudge used to force one semantic step to be
// observed strictly after another step that lands at the same instant
// (e.g. a message arriving before the timer that inspects it).
const Epsilon Duration = 1e-6

// Add returns t shifted forward by d.
func (t Time) Add(d Duration) Time {
	return t + Time(d)
}

func (t Time) String() string {
	return fmt.Sprintf("%.9fs", float64(t))
}

func (d Duration) String() string {
	return fmt.Sprintf("%.9fs", float64(d))
}
