package tcp

import "net/netip"

// TCPPrioMax is the highest priority value a PCB may carry; priorities
// above it are clamped when used as a reclamation ceiling (§4.4 step 5).
const TCPPrioMax = 127

// PCB is a Protocol Control Block: the per-connection record the core
// steers through the TCP state diagram. Field names follow the classic
// send/receive sequence-space vocabulary (snd_nxt, rcv_wnd, ...) rather than
// Go getter conventions, because the timer engine and lifecycle operations
// read and write them directly and constantly; application code holds the
// *PCB returned by Core.NewPCB and reaches it only through its exported
// fields and methods and the Core's lifecycle operations.
type PCB struct {
	next  *PCB // intrusive link to the next PCB on the same list; nil for a list's tail and for a PCB on no list.
	state State

	LocalAddr, RemoteAddr netip.Addr
	LocalPort, RemotePort uint16

	// Send sequence space (RFC 9293 §3.3.1).
	sndNxt Value
	sndWl2 Value
	lastAck Value
	sndLbb Value // last byte buffered: next free sequence number for new user data.

	// Receive sequence space.
	rcvNxt           Value
	rcvAnnRightEdge  Value

	// Window / congestion state.
	sndWnd       Size
	rcvWnd       Size
	rcvAnnWnd    Size
	cwnd         Size
	ssthresh     Size
	sndBuf       Size
	sndQueuelen  int

	// RTT/RTO estimator state, in slow-timer tick units (lwIP convention).
	sa, sv int32
	rto    int32
	rtime  int32
	nrtx   uint8

	// Persist (zero-window probe) state.
	persistBackoff uint8
	persistCnt     uint8

	// Keepalive state; zero KeepIdle/KeepIntvl/KeepCnt mean "use Core's
	// configured default".
	keepIdle     uint32 // ticks
	keepIntvl    uint32 // ticks
	keepCnt      uint32
	keepCntSent  uint32

	tmr        uint32 // tcp_ticks at last activity.
	lastTimer  uint8  // tcp_timer_ctr snapshot: skip PCB if unchanged this tick.

	sndq     *SendSegment
	sndqLast *SendSegment
	sndqNext *SendSegment

	flags ControlFlags
	mss   Size
	prio  uint8
	ttl   uint8

	// listenerID identifies the listener this PCB was spawned from, by
	// slab key rather than pointer (§9 Design Notes), so close_listen can
	// clear every back-reference without risking use-after-free.
	listenerID uint64

	arg       any
	recv      RecvFunc
	sent      SentFunc
	errf      ErrFunc
	connected ConnectedFunc

	errReported bool
}

// State returns the PCB's current TCP state.
func (p *PCB) State() State { return p.state }

// HasUserReference reports whether the application still holds a reference
// to this PCB, i.e. TF_NOUSER is clear.
func (p *PCB) HasUserReference() bool { return !p.flags.Has(FlagNoUser) }

// SndQueueLen returns the current send-queue length in pbuf-chain units,
// maintained incrementally to satisfy the data model's invariant (vii).
func (p *PCB) SndQueueLen() int { return p.sndQueuelen }

// SetArg stores the opaque application argument passed to every callback.
func (p *PCB) SetArg(arg any) { p.arg = arg }

// SetRecv registers the data-arrival callback.
func (p *PCB) SetRecv(fn RecvFunc) { p.recv = fn }

// SetSent registers the data-acknowledged callback.
func (p *PCB) SetSent(fn SentFunc) { p.sent = fn }

// SetErr registers the asynchronous-abort callback.
func (p *PCB) SetErr(fn ErrFunc) { p.errf = fn }

// SetConnected registers the active-open completion callback.
func (p *PCB) SetConnected(fn ConnectedFunc) { p.connected = fn }

// SetPriority sets the PCB's reclamation priority, clamped to TCPPrioMax.
func (p *PCB) SetPriority(prio uint8) {
	if prio > TCPPrioMax {
		prio = TCPPrioMax
	}
	p.prio = prio
}

// SetKeepalive enables or disables SO_KEEPALIVE-style idle probing.
func (p *PCB) SetKeepalive(on bool) {
	if on {
		p.flags.set(FlagKeepAlive)
	} else {
		p.flags.clear(FlagKeepAlive)
	}
}

// SetReuseAddr sets or clears SO_REUSEADDR.
func (p *PCB) SetReuseAddr(on bool) {
	if on {
		p.flags.set(FlagReuseAddr)
	} else {
		p.flags.clear(FlagReuseAddr)
	}
}

func (p *PCB) reuseAddr() bool { return p.flags.Has(FlagReuseAddr) }

// ListenerPCB is the trimmed PCB variant for a listening socket: it never
// carries sequence-space state and is never on the bound/active/tw lists.
type ListenerPCB struct {
	next *ListenerPCB // intrusive link to the next listener; nil for the listen list's tail and off the list.
	id   uint64

	state State // StateListenClosed or StateListen.

	LocalAddr netip.Addr
	LocalPort uint16

	backlog         int
	acceptsPending  int
	flags           ControlFlags

	arg    any
	accept func(arg any, pcb *PCB)
}

// State returns the listener's current state.
func (l *ListenerPCB) State() State { return l.state }

// AcceptsPending returns the number of active-list PCBs currently counted
// against this listener's backlog.
func (l *ListenerPCB) AcceptsPending() int { return l.acceptsPending }

// Backlog returns the configured backlog limit.
func (l *ListenerPCB) Backlog() int { return l.backlog }

// SetAccept registers the callback invoked when a new passively-opened PCB
// is attached to this listener (i.e. when a SYN is accepted upstream and
// the resulting PCB is registered via Core.AcceptInto).
func (l *ListenerPCB) SetAccept(fn func(arg any, pcb *PCB)) { l.accept = fn }

// SetArg stores the opaque application argument passed to the accept
// callback.
func (l *ListenerPCB) SetArg(arg any) { l.arg = arg }

// SetReuseAddr sets or clears SO_REUSEADDR on the listener.
func (l *ListenerPCB) SetReuseAddr(on bool) {
	if on {
		l.flags.set(FlagReuseAddr)
	} else {
		l.flags.clear(FlagReuseAddr)
	}
}

func (l *ListenerPCB) reuseAddr() bool { return l.flags.Has(FlagReuseAddr) }

// SetDualStack marks whether this IPv6-wildcard listener also accepts IPv4
// connections (§9 Design Notes: dual-stack is a distinct state flag).
func (l *ListenerPCB) SetDualStack(on bool) {
	if on {
		l.flags.set(FlagDualStack)
	} else {
		l.flags.clear(FlagDualStack)
	}
}

// DualStack reports whether SetDualStack(true) was called (only meaningful
// once Listen has succeeded and the local address is the wildcard).
func (l *ListenerPCB) DualStack() bool { return l.flags.Has(FlagDualStack) }
