// Package basestation implements the fixed sink of the network: the
// authoritative round counter, the orphan JOIN/DATA collector, and
// TDMA schedule issuance for nodes with no cluster head (spec.md
// §4.4).
package basestation

import (
	"github.com/simonlingoogle/go-simplelogger"

	"github.com/kprusa/leachsim/internal/config"
	"github.com/kprusa/leachsim/internal/event"
	"github.com/kprusa/leachsim/internal/geometry"
	"github.com/kprusa/leachsim/internal/proto"
	"github.com/kprusa/leachsim/internal/simtime"
)

// Halted is the subset of network.SimState the base station reads to
// decide whether to keep processing (spec.md §4.4 halt condition).
type Halted interface {
	Ended() bool
}

// Params are the network-wide parameters the base station needs.
type Params struct {
	N       int
	Range   float64 // MAX_DIST
	Bitrate float64
	Flags   config.Flags
}

// BaseStation is the LEACH sink: no battery, no death, the sole
// writer of the authoritative round counter.
type BaseStation struct {
	params    Params
	sched     *event.Scheduler
	state     Halted
	roundTime simtime.Duration

	round int
	buf   []proto.NodeID
}

// New constructs a BaseStation. roundTime must already have been
// computed (network.New does this) since it is published once,
// before any node's first START_ROUND fires.
func New(params Params, roundTime simtime.Duration, sched *event.Scheduler, state Halted) *BaseStation {
	return &BaseStation{
		params:    params,
		sched:     sched,
		state:     state,
		roundTime: roundTime,
		round:     -1,
	}
}

// Round reports the current, authoritative round number.
func (bs *BaseStation) Round() int { return bs.round }

// Init arms the first START_ROUND timer at t=0.
func (bs *BaseStation) Init() {
	bs.sched.ScheduleSelf(0, proto.BSID, proto.KindStartRound, nil)
}

// HandleEvent implements the EventHandler contract. Once every sensor
// has died the base station stops processing entirely, which starves
// its own START_ROUND chain and lets the run drain.
func (bs *BaseStation) HandleEvent(ev *event.Event) {
	if bs.state.Ended() {
		return
	}
	switch ev.Kind {
	case proto.KindStartRound:
		bs.onStartRound()
	case proto.KindJoin:
		bs.onJoin(ev.Payload.(proto.Join).Sender)
	case proto.KindData:
		bs.onData(ev.Payload.(proto.Data))
	case proto.KindRcvdJoin:
		bs.onRcvdJoin()
	default:
		simplelogger.Warnf("base station: unhandled event kind %s", ev.Kind)
	}
}

func (bs *BaseStation) onStartRound() {
	now := bs.sched.Now()
	bs.round++
	bs.buf = bs.buf[:0]
	bs.sched.Cancel(proto.BSID, proto.KindRcvdJoin)
	bs.sched.ScheduleSelf(now.Add(bs.roundTime), proto.BSID, proto.KindStartRound, nil)
}

func (bs *BaseStation) onJoin(sender proto.NodeID) {
	bs.buf = append(bs.buf, sender)
	if len(bs.buf) == 1 && !bs.sched.Pending(proto.BSID, proto.KindRcvdJoin) {
		bs.sched.ScheduleSelf(bs.sched.Now().Add(simtime.Epsilon), proto.BSID, proto.KindRcvdJoin, nil)
	}
}

func (bs *BaseStation) onData(m proto.Data) {
	if m.Round != bs.round {
		return
	}
	bs.buf = append(bs.buf, m.Sender)
}

func (bs *BaseStation) onRcvdJoin() {
	if len(bs.buf) == 0 {
		return
	}
	bs.createTXSchedule()
}

// createTXSchedule always uses the network-uniform slot width: the
// base station has no cluster to scope slots to.
func (bs *BaseStation) createTXSchedule() {
	now := bs.sched.Now()
	clusterN := len(bs.buf)
	slot := geometry.PropagationDelay(proto.DataSize, bs.params.Range, bs.params.Bitrate)
	schedDelay := geometry.PropagationDelay(proto.SchedSize, bs.params.Range, bs.params.Bitrate)

	for i, j := range bs.buf {
		sched := proto.Sched{Turn: i, Duration: slot, Round: bs.round, CHID: proto.BSID}
		bs.sched.Send(now.Add(schedDelay), j, proto.KindSched, sched)
	}
	bs.buf = bs.buf[:0]

	if !bs.params.Flags.OneTXPerRound {
		idle := simtime.Duration(float64(slot) * float64(clusterN))
		bs.sched.ScheduleSelf(now.Add(schedDelay+idle+simtime.Epsilon), proto.BSID, proto.KindRcvdJoin, nil)
	}
}
