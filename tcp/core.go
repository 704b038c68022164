package tcp

import (
	"log/slog"
	"math/rand"
)

// Core is the single "TCP context" object the specification's Design Notes
// call for: it owns the four PCB lists, the safe-iteration cursor, the
// ephemeral port cursor, the timer counters, and the ISS seed. Every
// operation in this package is a method on *Core (or takes one).
//
// Core is not safe for concurrent use. The specification's concurrency
// model (§5) is single-threaded cooperative: the timer tick, network
// input, and application lifecycle calls must all be serialized by the
// caller, typically by running them on one goroutine or behind one mutex
// owned by the surrounding stack.
type Core struct {
	logger
	cfg   Config
	collab Collaborators

	listenList *ListenerPCB
	boundList  *PCB
	activeList *PCB
	twList     *PCB

	iter iterator

	portCursor uint16

	ticks       uint32 // tcp_ticks: incremented once per slow tick.
	timerCtr    uint8  // tcp_timer_ctr: incremented at the start of every fast/slow run.
	slowToggle  bool   // tcp_timer: alternates so slowtmr runs every other fast tick.

	issSeed Value
	secure  *SecureISS

	lastInput *PCB

	listeners   map[uint64]*ListenerPCB
	nextListener uint64

	stats Stats

	// Precomputed tick thresholds, derived from cfg at NewCore time.
	finWaitTicks, synRcvdTicks, mslTicks uint32
}

// NewCore builds a Core from the given configuration and collaborators.
// Zero-valued Config fields are replaced by [DefaultConfig]'s values. A
// non-nil portSeed source seeds the ephemeral port cursor at a random point
// in the port range, matching the specification's "may be seeded from an
// external randomness source" allowance in §4.3; a nil one starts the
// cursor at PortLow.
func NewCore(cfg Config, collab Collaborators, portSeed rand.Source, log *slog.Logger) *Core {
	cfg = cfg.withDefaults()
	c := &Core{
		logger:    logger{log: log},
		cfg:       cfg,
		collab:    collab,
		listeners: make(map[uint64]*ListenerPCB),
	}
	c.finWaitTicks = cfg.ticksOf(cfg.FinWaitTimeout)
	c.synRcvdTicks = cfg.ticksOf(cfg.SynRcvdTimeout)
	c.mslTicks = cfg.ticksOf(cfg.MSL)
	if portSeed != nil {
		c.portCursor = cfg.PortLow + uint16(rand.New(portSeed).Intn(int(cfg.PortHigh-cfg.PortLow)+1))
	} else {
		c.portCursor = cfg.PortLow
	}
	return c
}

// SetSecureISS installs a keyed-hash ISS source (§4.9's "a stronger source
// may replace this"); see [NewSecureISS].
func (c *Core) SetSecureISS(s *SecureISS) { c.secure = s }

// Ticks returns the current value of tcp_ticks, the slow-timer timebase.
func (c *Core) Ticks() uint32 { return c.ticks }

// Stats returns a snapshot of the core's introspection counters.
func (c *Core) Stats() Stats {
	s := c.stats
	s.NumListen = listLen(c.listenList)
	s.NumBound = pcbListLen(c.boundList)
	s.NumActive = pcbListLen(c.activeList)
	s.NumTimeWait = pcbListLen(c.twList)
	return s
}

func listLen(head *ListenerPCB) int {
	n := 0
	for l := head; l != nil; l = l.next {
		n++
	}
	return n
}

func pcbListLen(head *PCB) int {
	n := 0
	for p := head; p != nil; p = p.next {
		n++
	}
	return n
}
