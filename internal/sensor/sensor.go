// Package sensor implements the per-node LEACH state machine: self
// election, advertisement, join, TDMA schedule creation (including
// the distance-aware and energy-aware cluster-head reassignment
// variants), data transmission, and aggregation. See SPEC_FULL.md §4
// for the phase-by-phase contract this mirrors.
package sensor

import (
	"math"
	"math/rand"

	"github.com/simonlingoogle/go-simplelogger"

	"github.com/kprusa/leachsim/internal/config"
	"github.com/kprusa/leachsim/internal/energy"
	"github.com/kprusa/leachsim/internal/event"
	"github.com/kprusa/leachsim/internal/geometry"
	"github.com/kprusa/leachsim/internal/observe"
	"github.com/kprusa/leachsim/internal/proto"
	"github.com/kprusa/leachsim/internal/simtime"
)

// Role is a node's position in the cluster hierarchy. DEAD is
// terminal: a node never leaves it.
type Role int

const (
	RoleSensor Role = iota
	RoleCH
	RoleDead
)

func (r Role) String() string {
	switch r {
	case RoleSensor:
		return "SENSOR"
	case RoleCH:
		return "CH"
	case RoleDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// World is the read-only view of the rest of the network a Sensor
// needs: peer positions and peer energy for the reassignment variants.
// Network implements it; a Sensor never reaches into another Sensor
// directly, matching the "nodes never reach up a module tree" design
// note.
type World interface {
	Position(id proto.NodeID) geometry.Position
	BSPosition() geometry.Position
	NumSensors() int
	Energy(id proto.NodeID) float64
}

// DeathRecorder is the subset of network.SimState a Sensor writes to
// on energy exhaustion.
type DeathRecorder interface {
	RecordDeath(round int)
}

// Params are the immutable, network-wide parameters every Sensor is
// constructed with (spec.md §6).
type Params struct {
	N              int
	Range          float64 // MAX_DIST
	Bitrate        float64
	P              float64
	RoundsPerCycle int // integer 1/P
	Model          energy.Model
	InitialEnergy  float64
	DistAwareCH    bool
	EnergyAwareCH  bool
	Flags          config.Flags
}

// Sensor is one node's LEACH state machine.
type Sensor struct {
	id  proto.NodeID
	pos geometry.Position

	params Params
	world  World
	sched  *event.Scheduler
	state  DeathRecorder
	sink   observe.Sink
	rng    *rand.Rand // self-election substream, shared across all sensors

	role      Role
	energy    float64
	alreadyCH bool
	round     int
	roundTime simtime.Duration

	chID   proto.NodeID
	chDist float64

	advBuf  []proto.NodeID
	joinBuf []proto.NodeID
	dataBuf []proto.NodeID

	clusterN      int
	sensorMaxDist float64
}

// New constructs a Sensor at rest (SENSOR role, full battery). Call
// Init to arm its first START_ROUND timer.
func New(id proto.NodeID, pos geometry.Position, params Params, world World, sched *event.Scheduler, state DeathRecorder, sink observe.Sink, rng *rand.Rand) *Sensor {
	return &Sensor{
		id:     id,
		pos:    pos,
		params: params,
		world:  world,
		sched:  sched,
		state:  state,
		sink:   sink,
		rng:    rng,
		role:   RoleSensor,
		energy: params.InitialEnergy,
		chID:   -1,
		round:  -1,
	}
}

// Position reports the node's fixed field position.
func (s *Sensor) Position() geometry.Position { return s.pos }

// Role reports the node's current role.
func (s *Sensor) Role() Role { return s.role }

// Energy reports the node's current battery reserve.
func (s *Sensor) Energy() float64 { return s.energy }

// Init arms the first START_ROUND timer at t=0.
func (s *Sensor) Init() {
	s.sched.ScheduleSelf(0, s.id, proto.KindStartRound, nil)
}

// HandleEvent implements the EventHandler contract: a dead node drops
// every event, self-timer or message alike, and never emits — this
// mirrors the reference implementation's handleMessage, which only
// runs its switch statement while role != DEAD.
func (s *Sensor) HandleEvent(ev *event.Event) {
	if s.role == RoleDead {
		return
	}
	now := s.sched.Now()
	switch ev.Kind {
	case proto.KindStartRound:
		s.onStartRound(now)
	case proto.KindAdv:
		if s.role == RoleSensor {
			s.advBuf = append(s.advBuf, ev.Payload.(proto.Adv).Sender)
		}
	case proto.KindRcvdAdv:
		s.chooseCH(now)
	case proto.KindSched:
		s.handleSched(now, ev.Payload.(proto.Sched))
	case proto.KindStartTX:
		s.startTX(now)
	case proto.KindJoin:
		s.joinBuf = append(s.joinBuf, ev.Payload.(proto.Join).Sender)
	case proto.KindRcvdJoin:
		s.onRcvdJoin(now)
	case proto.KindData:
		s.handleData(ev.Payload.(proto.Data))
	case proto.KindRcvdData:
		s.compressAndSendToBS(now)
	case proto.KindCenter:
		s.handleCenter(now, ev.Payload.(proto.Center))
	case proto.KindRcvdSched:
		// Liveness timeout for the multi-TX-per-round path only;
		// treated as experimental per SPEC_FULL.md §9.
	default:
		simplelogger.Warnf("node %d: unhandled event kind %s", s.id, ev.Kind)
	}
}

func (s *Sensor) reset() {
	s.role = RoleSensor
	s.joinBuf = s.joinBuf[:0]
	s.advBuf = s.advBuf[:0]
	s.dataBuf = s.dataBuf[:0]
	s.chID = -1
	s.clusterN = 0
	s.sched.Cancel(s.id, proto.KindRcvdAdv)
	s.sched.Cancel(s.id, proto.KindRcvdJoin)
	s.sched.Cancel(s.id, proto.KindRcvdData)
	s.sched.Cancel(s.id, proto.KindStartTX)
}

func (s *Sensor) threshold() float64 {
	if s.alreadyCH {
		return 0
	}
	r := s.round % s.params.RoundsPerCycle
	return s.params.P / (1 - s.params.P*float64(r))
}

func (s *Sensor) onStartRound(now simtime.Time) {
	s.round++
	if s.round > 0 {
		s.reset()
	}
	if s.round%s.params.RoundsPerCycle == 0 {
		s.alreadyCH = false
	}

	th := s.threshold()
	u := s.rng.Float64()
	if u < th {
		s.becomeCH(now)
	} else {
		delay := geometry.PropagationDelay(proto.AdvSize, s.params.Range, s.params.Bitrate) + simtime.Epsilon
		s.sched.ScheduleSelf(now.Add(delay), s.id, proto.KindRcvdAdv, nil)
		if s.params.Flags.AccountCHSetup {
			s.chargeRX(proto.AdvSize)
		}
	}

	s.sched.ScheduleSelf(now.Add(s.roundTime), s.id, proto.KindStartRound, nil)
}

// SetRoundTime publishes the network-wide round duration computed in
// network.New; Network calls this once for every sensor before
// the simulation starts, mirroring the source reading
// getParentModule()->par("roundTime") on round 0.
func (s *Sensor) SetRoundTime(rt simtime.Duration) {
	s.roundTime = rt
}

func (s *Sensor) becomeCH(now simtime.Time) {
	s.alreadyCH = true
	s.role = RoleCH
	s.broadcastADV(now)
}

func (s *Sensor) broadcastADV(now simtime.Time) {
	advDelay := geometry.PropagationDelay(proto.AdvSize, s.params.Range, s.params.Bitrate)
	for i := 0; i < s.params.N; i++ {
		nid := proto.NodeID(i)
		if nid == s.id {
			continue
		}
		s.sched.Send(now.Add(advDelay), nid, proto.KindAdv, proto.Adv{Sender: s.id})
	}
	if s.params.Flags.AccountCHSetup {
		s.chargeTX(proto.AdvSize, s.params.Range)
	}

	joinDelay := geometry.PropagationDelay(proto.JoinSize, s.params.Range, s.params.Bitrate)
	s.sched.ScheduleSelf(now.Add(advDelay+joinDelay+simtime.Epsilon), s.id, proto.KindRcvdJoin, nil)
	if s.params.Flags.AccountCHSetup {
		s.chargeRX(proto.JoinSize)
	}
}

func (s *Sensor) chooseCH(now simtime.Time) {
	bestDist := math.Inf(1)
	bestID := proto.NodeID(-1)
	for _, sender := range s.advBuf {
		d := geometry.Distance(s.pos, s.world.Position(sender))
		if d < bestDist {
			bestDist = d
			bestID = sender
		}
	}
	s.advBuf = s.advBuf[:0]

	if bestID < 0 {
		s.orphan(now)
		return
	}
	s.chID = bestID
	s.chDist = bestDist
	delay := geometry.PropagationDelay(proto.JoinSize, bestDist, s.params.Bitrate)
	s.sched.Send(now.Add(delay), bestID, proto.KindJoin, proto.Join{Sender: s.id})
	if s.params.Flags.AccountCHSetup {
		s.chargeTX(proto.JoinSize, bestDist)
	}
}

func (s *Sensor) orphan(now simtime.Time) {
	s.chID = proto.BSID
	if s.params.Flags.UseBSDist {
		s.chDist = geometry.Distance(s.pos, s.world.BSPosition())
	} else {
		s.chDist = s.params.Range
	}
	delay := geometry.PropagationDelay(proto.JoinSize, s.chDist, s.params.Bitrate)
	s.sched.Send(now.Add(delay), proto.BSID, proto.KindJoin, proto.Join{Sender: s.id})
	if s.params.Flags.AccountCHSetup {
		s.chargeTX(proto.JoinSize, s.chDist)
	}
}

func (s *Sensor) handleSched(now simtime.Time, m proto.Sched) {
	if m.Round != s.round {
		return
	}
	if s.params.DistAwareCH && s.chID != m.CHID {
		s.chID = m.CHID
		s.chDist = s.distanceTo(m.CHID)
	}
	delay := simtime.Duration(float64(m.Duration) * float64(m.Turn))
	s.sched.ScheduleSelf(now.Add(delay), s.id, proto.KindStartTX, nil)
}

func (s *Sensor) startTX(now simtime.Time) {
	data := proto.Data{Sender: s.id, Round: s.round}
	delay := geometry.PropagationDelay(proto.DataSize, s.chDist, s.params.Bitrate)
	s.sched.Send(now.Add(delay), s.chID, proto.KindData, data)

	if s.chargeTX(proto.DataSize, s.chDist) {
		return
	}

	if !s.params.Flags.OneTXPerRound {
		timeout := simtime.Duration(2) * geometry.PropagationDelay(proto.SchedSize, s.chDist, s.params.Bitrate)
		s.sched.ScheduleSelf(now.Add(timeout), s.id, proto.KindRcvdSched, nil)
	}
}

func (s *Sensor) onRcvdJoin(now simtime.Time) {
	if len(s.joinBuf) == 0 {
		s.reset()
		s.orphan(now)
		return
	}
	s.createTXSchedule(now)
}

// candidate is a reassignment-variant scoring entry: one per cluster
// member plus the current CH itself.
type candidate struct {
	id      proto.NodeID
	sumDist float64
	drain   float64
}

func (s *Sensor) distanceTo(id proto.NodeID) float64 {
	if id == proto.BSID {
		return geometry.Distance(s.pos, s.world.BSPosition())
	}
	return geometry.Distance(s.pos, s.world.Position(id))
}

// createTXSchedule implements spec.md §4.6: traditional LEACH slot
// assignment, or (when DistAwareCH/EnergyAwareCH is set) the CH
// reassignment variant.
func (s *Sensor) createTXSchedule(now simtime.Time) {
	s.clusterN = len(s.joinBuf)

	slotDist := s.params.Range
	if s.params.Flags.CHSlotMaxDistInCluster {
		maxDist := -math.MaxFloat64
		for _, j := range s.joinBuf {
			if d := s.distanceTo(j); d > maxDist {
				maxDist = d
			}
		}
		s.sensorMaxDist = maxDist
		slotDist = maxDist
	}
	slot := geometry.PropagationDelay(proto.DataSize, slotDist, s.params.Bitrate)
	schedDelay := geometry.PropagationDelay(proto.SchedSize, slotDist, s.params.Bitrate)

	if s.params.DistAwareCH || s.params.EnergyAwareCH {
		center := s.pickCenter()
		if center != s.id {
			s.handoffTo(now, center, slot, schedDelay, slotDist)
			return
		}
	}
	s.emitScheduleTraditional(now, slot, schedDelay, slotDist)
}

// pickCenter scores the current CH and every cluster member and
// returns the best candidate's id. The comparator used when both
// flags are set is a strict product order, not a total order, and is
// mirrored exactly per the open question in SPEC_FULL.md §9: ties or
// incomparable pairs resolve however sortCandidates' insertion sort
// leaves them.
func (s *Sensor) pickCenter() proto.NodeID {
	candidates := make([]candidate, 0, len(s.joinBuf)+1)

	selfSum := 0.0
	for _, k := range s.joinBuf {
		selfSum += s.distanceTo(k)
	}
	candidates = append(candidates, candidate{
		id:      s.id,
		sumDist: selfSum,
		drain:   s.params.InitialEnergy - s.energy,
	})

	for _, j := range s.joinBuf {
		posJ := s.world.Position(j)
		sum := 0.0
		for _, k := range s.joinBuf {
			sum += geometry.Distance(posJ, s.world.Position(k))
		}
		candidates = append(candidates, candidate{
			id:      j,
			sumDist: sum,
			drain:   s.params.InitialEnergy - s.world.Energy(j),
		})
	}

	less := func(a, b candidate) bool {
		switch {
		case s.params.DistAwareCH && s.params.EnergyAwareCH:
			return a.sumDist < b.sumDist && a.drain < b.drain
		case s.params.DistAwareCH:
			return a.sumDist < b.sumDist
		default: // EnergyAwareCH only
			return a.drain < b.drain
		}
	}
	sortCandidates(candidates, less)
	return candidates[0].id
}

func sortCandidates(c []candidate, less func(a, b candidate) bool) {
	// insertion sort: stable, and cheap enough for cluster-sized
	// inputs; avoids pulling in sort.Interface boilerplate for a
	// handful of elements per round.
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && less(c[j], c[j-1]); j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

func (s *Sensor) handoffTo(now simtime.Time, center proto.NodeID, slot, schedDelay simtime.Duration, slotDist float64) {
	s.alreadyCH = false
	s.role = RoleSensor
	s.chID = center
	s.chDist = s.distanceTo(center)

	idle := simtime.Duration(float64(slot) * float64(s.clusterN))
	s.sched.Send(now, center, proto.KindCenter, proto.Center{
		ClusterN:   s.clusterN,
		IdleTime:   idle,
		SchedDelay: schedDelay,
	})

	for i, j := range s.joinBuf {
		sched := proto.Sched{Turn: i, Duration: slot, Round: s.round, CHID: center}
		if j == center {
			// The new center doesn't need its own turn message (it
			// already has the CENTER handoff); the old CH takes the
			// turn that would have gone to it and transmits as a
			// regular member.
			s.sched.Send(now.Add(schedDelay), s.id, proto.KindSched, sched)
		} else {
			s.sched.Send(now.Add(schedDelay), j, proto.KindSched, sched)
		}
	}
	s.joinBuf = s.joinBuf[:0]

	if s.params.Flags.AccountCHSetup {
		s.chargeTX(proto.SchedSize, slotDist)
	}
}

func (s *Sensor) emitScheduleTraditional(now simtime.Time, slot, schedDelay simtime.Duration, slotDist float64) {
	for i, j := range s.joinBuf {
		sched := proto.Sched{Turn: i, Duration: slot, Round: s.round, CHID: s.id}
		s.sched.Send(now.Add(schedDelay), j, proto.KindSched, sched)
	}
	s.joinBuf = s.joinBuf[:0]

	if s.params.Flags.AccountCHSetup {
		s.chargeTX(proto.SchedSize, slotDist)
	}

	idle := simtime.Duration(float64(slot) * float64(s.clusterN))
	s.sched.ScheduleSelf(now.Add(schedDelay+idle+simtime.Epsilon), s.id, proto.KindRcvdData, nil)
	if s.params.Flags.AccountCHSetup {
		s.chargeRX(s.clusterN * proto.DataSize)
	}
}

func (s *Sensor) handleCenter(now simtime.Time, m proto.Center) {
	s.alreadyCH = true
	s.role = RoleCH
	s.clusterN = m.ClusterN
	delay := m.SchedDelay + m.IdleTime + simtime.Epsilon
	s.sched.ScheduleSelf(now.Add(delay), s.id, proto.KindRcvdData, nil)
	if s.params.Flags.AccountCHSetup {
		s.chargeRX(s.clusterN * proto.DataSize)
	}
}

func (s *Sensor) handleData(m proto.Data) {
	if s.role != RoleCH || m.Round != s.round {
		return
	}
	s.dataBuf = append(s.dataBuf, m.Sender)
}

func (s *Sensor) compressAndSendToBS(now simtime.Time) {
	if s.chargeCompress(s.clusterN * proto.DataSize) {
		return
	}

	dist := s.params.Range
	if s.params.Flags.UseBSDist {
		dist = geometry.Distance(s.pos, s.world.BSPosition())
	}
	if s.chargeTX(proto.DataSize, dist) {
		return
	}

	if !s.params.Flags.OneTXPerRound {
		delay := geometry.PropagationDelay(proto.DataSize, dist, s.params.Bitrate)
		s.sched.ScheduleSelf(now.Add(delay), s.id, proto.KindRcvdJoin, nil)
	}
}

func (s *Sensor) chargeTX(bits int, d float64) (dead bool) {
	return s.applyCost(energy.OpTX, s.params.Model.TXCost(bits, d))
}

func (s *Sensor) chargeRX(bits int) (dead bool) {
	return s.applyCost(energy.OpRX, s.params.Model.RXCost(bits))
}

func (s *Sensor) chargeCompress(bits int) (dead bool) {
	return s.applyCost(energy.OpCompress, s.params.Model.CompressCost(bits))
}

// applyCost implements spec.md §4.3's apply_cost: emit the
// pre-deduction energy sample and the per-operation cost sample, then
// either subtract the cost or declare the node dead.
func (s *Sensor) applyCost(op energy.Op, cost float64) (dead bool) {
	now := s.sched.Now()
	s.sink.Series(s.id, "energy", now, s.energy)
	s.sink.Series(s.id, "cost."+op.String(), now, cost)
	if cost < s.energy {
		s.energy -= cost
		return false
	}
	s.role = RoleDead
	s.sched.Cancel(s.id, proto.KindStartRound)
	s.state.RecordDeath(s.round)
	simplelogger.Infof("node %d: DEAD at round %d (op %s, cost %g >= energy %g)", s.id, s.round, op, cost, s.energy)
	return true
}
