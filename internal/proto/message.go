// Package proto defines the LEACH wire messages and internal timer
// kinds exchanged between sensors and the base station. It is the
// tagged-union replacement for the class-cast message hierarchy of the
// module this simulator was modeled on: exactly one Kind travels per
// event, and at most one of the payload types below is ever populated
// for it.
package proto

import (
	"fmt"

	"github.com/kprusa/leachsim/internal/simtime"
)

// NodeID identifies a sensor, or the base station via BSID.
type NodeID int

func (n NodeID) String() string {
	if n == BSID {
		return "BS"
	}
	return fmt.Sprintf("%d", int(n))
}

// BSID is the sentinel id used by the base station.
const BSID NodeID = 999999

// Sizes of the protocol messages, in bits.
const (
	AdvSize   = 128
	JoinSize  = 128
	SchedSize = 192
	DataSize  = 2000
)

// Kind tags an Event with the handler logic that should process it.
type Kind int

const (
	// Protocol messages.
	KindAdv Kind = iota
	KindJoin
	KindSched
	KindData
	KindCenter

	// Internal timers, self-scheduled by a node or the base station.
	KindStartRound
	KindStartTX
	KindRcvdAdv
	KindRcvdSched
	KindRcvdJoin
	KindRcvdData
)

func (k Kind) String() string {
	switch k {
	case KindAdv:
		return "ADV"
	case KindJoin:
		return "JOIN"
	case KindSched:
		return "SCHED"
	case KindData:
		return "DATA"
	case KindCenter:
		return "CENTER"
	case KindStartRound:
		return "START_ROUND"
	case KindStartTX:
		return "START_TX"
	case KindRcvdAdv:
		return "RCVD_ADV"
	case KindRcvdSched:
		return "RCVD_SCHED"
	case KindRcvdJoin:
		return "RCVD_JOIN"
	case KindRcvdData:
		return "RCVD_DATA"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Adv is a cluster-head advertisement broadcast to every other node.
type Adv struct {
	Sender NodeID
}

// Join announces that Sender wants to join the recipient's cluster.
type Join struct {
	Sender NodeID
}

// Sched hands a TDMA slot to a cluster member.
type Sched struct {
	Turn     int
	Duration simtime.Duration
	Round    int
	CHID     NodeID
}

// Data carries one sensed reading for the current round.
type Data struct {
	Sender NodeID
	Round  int
}

// Center hands off cluster-head duties to a better-placed member.
type Center struct {
	ClusterN   int
	IdleTime   simtime.Duration
	SchedDelay simtime.Duration
}
