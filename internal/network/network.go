// Package network wires the event scheduler, the base station, and
// every sensor together into one runnable simulation: the "round
// orchestrator" of spec.md §2 item 7, plus node placement and the RNG
// substreams the rest of the simulator draws from.
package network

import (
	"math/rand"

	"github.com/simonlingoogle/go-simplelogger"

	"github.com/kprusa/leachsim/internal/basestation"
	"github.com/kprusa/leachsim/internal/config"
	"github.com/kprusa/leachsim/internal/energy"
	"github.com/kprusa/leachsim/internal/event"
	"github.com/kprusa/leachsim/internal/geometry"
	"github.com/kprusa/leachsim/internal/observe"
	"github.com/kprusa/leachsim/internal/proto"
	"github.com/kprusa/leachsim/internal/sensor"
	"github.com/kprusa/leachsim/internal/simtime"
)

// bsPosition is the fixed point BS_DIST is measured from when
// Flags.UseBSDist is set, mirroring the reference implementation's
// `BS_DIST(x,y) = sqrt(x^2+y^2)` macro (distance to the origin).
var bsPosition = geometry.Position{X: 0, Y: 0}

// Result holds the end-of-run scalars spec.md §6 requires.
type Result struct {
	EndTime       simtime.Time
	Rounds        int
	FirstNodeDead int
}

// Network owns the scheduler, the shared SimState, node placement,
// and every EventHandler; it is the only thing that reaches into more
// than one node at a time, and it does so only through the World
// interface sensors are constructed against.
type Network struct {
	cfg   config.Config
	sched *event.Scheduler
	state *SimState
	sink  observe.Sink

	positions []geometry.Position
	sensors   []*sensor.Sensor
	bs        *basestation.BaseStation
}

// New validates cfg and constructs a ready-to-run Network: node
// positions are drawn, the round duration is computed and published
// to every node up front (so there's no ordering hazard between the
// base station's and the sensors' simultaneous t=0 START_ROUND
// events), and every EventHandler is constructed.
func New(cfg config.Config, sink observe.Sink) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sched := event.NewScheduler()
	state := NewSimState(cfg.Nnodes)

	placementRng := rand.New(rand.NewSource(cfg.Seed))
	electionRng := electionSubstream(cfg.Seed)
	positions := placeNodes(placementRng, cfg.Nnodes, cfg.MinX, cfg.MinY, cfg.Edge)

	rangeDist := geometry.Range(cfg.Edge)
	roundTime := simtime.Duration(1) + simtime.Duration(cfg.Nnodes)*geometry.PropagationDelay(proto.DataSize, rangeDist, cfg.Bitrate)

	net := &Network{
		cfg:       cfg,
		sched:     sched,
		state:     state,
		sink:      sink,
		positions: positions,
	}

	net.bs = basestation.New(basestation.Params{
		N:       cfg.Nnodes,
		Range:   rangeDist,
		Bitrate: cfg.Bitrate,
		Flags:   cfg.Flags,
	}, roundTime, sched, state)

	sensorParams := sensor.Params{
		N:              cfg.Nnodes,
		Range:          rangeDist,
		Bitrate:        cfg.Bitrate,
		P:              cfg.P,
		RoundsPerCycle: cfg.RoundsPerElectionCycle(),
		Model:          energy.Model{Eelec: cfg.Eelec, Eamp: cfg.Eamp, Ecomp: cfg.Ecomp},
		InitialEnergy:  cfg.Energy,
		DistAwareCH:    cfg.DistAwareCH,
		EnergyAwareCH:  cfg.EnergyAwareCH,
		Flags:          cfg.Flags,
	}

	net.sensors = make([]*sensor.Sensor, cfg.Nnodes)
	for i := 0; i < cfg.Nnodes; i++ {
		id := proto.NodeID(i)
		s := sensor.New(id, positions[i], sensorParams, net, sched, state, sink, electionRng)
		s.SetRoundTime(roundTime)
		net.sensors[i] = s
	}

	return net, nil
}

// Position implements sensor.World.
func (n *Network) Position(id proto.NodeID) geometry.Position {
	return n.positions[id]
}

// BSPosition implements sensor.World.
func (n *Network) BSPosition() geometry.Position { return bsPosition }

// NumSensors implements sensor.World.
func (n *Network) NumSensors() int { return n.cfg.Nnodes }

// Energy implements sensor.World.
func (n *Network) Energy(id proto.NodeID) float64 {
	return n.sensors[id].Energy()
}

// Sensor returns the sensor with the given id, for inspection by
// callers and tests.
func (n *Network) Sensor(id proto.NodeID) *sensor.Sensor { return n.sensors[id] }

// BaseStation returns the base station, for inspection by callers and
// tests.
func (n *Network) BaseStation() *basestation.BaseStation { return n.bs }

func (n *Network) handlerFor(id proto.NodeID) event.Handler {
	if id == proto.BSID {
		return n.bs
	}
	return n.sensors[id]
}

// Run drains the event queue from t=0 until either it empties (every
// sensor dead, per the base station's halt condition) or no events
// remain, then reports the end-of-run scalars through the Sink given
// to New.
func (n *Network) Run() Result {
	n.bs.Init()
	for _, s := range n.sensors {
		s.Init()
	}

	var last simtime.Time
	dispatched := 0
	for {
		ev, ok := n.sched.Pop()
		if !ok {
			break
		}
		last = ev.Time
		n.handlerFor(ev.Dst).HandleEvent(ev)
		dispatched++
	}

	result := Result{
		EndTime:       last,
		Rounds:        n.bs.Round(),
		FirstNodeDead: n.state.FirstNodeDead,
	}
	simplelogger.Infof("run complete: %d events, endTime=%s, rounds=%d, firstNodeDead=%d",
		dispatched, result.EndTime, result.Rounds, result.FirstNodeDead)

	n.sink.Scalar("endTime", float64(result.EndTime))
	n.sink.Scalar("rounds", float64(result.Rounds))
	n.sink.Scalar("firstNodeDead", float64(result.FirstNodeDead))
	return result
}
