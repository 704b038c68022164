package tcp

import "net/netip"

// SendSegment is the opaque handle the core keeps on its send queue for
// bookkeeping purposes. The actual bytes and their lifetime belong to the
// packet-buffer/memory-pool collaborator (spec §6); the core only needs to
// know each entry's chain length to keep snd_queuelen correct per the data
// model's invariant (vii).
type SendSegment struct {
	next *SendSegment
	// Len is the pbuf chain length of this entry, i.e. pbuf_clen(seg.p) in
	// the specification's vocabulary.
	Len Size
	// User is collaborator-owned payload (typically a *pbuf or similar);
	// the core never dereferences it.
	User any
}

// Collaborators bundles every external call the core makes to the
// surrounding stack. Every field is a plain function value with no bound
// receiver, the teacher package's "plain function pointer with opaque
// argument" idiom (spec §9 Design Notes) generalized to Go closures so a
// caller can capture whatever state it needs without the core having to
// carry an interface per concern. Nil fields are safe no-ops.
type Collaborators struct {
	// Output asks the collaborator to transmit whatever is pending on pcb
	// (ACKs, queued data, SYN/FIN) right now. It has no error result: a
	// transmit failure stays with the collaborator and is neither logged nor
	// propagated by the core, per §7 class 3 (transient I/O failures
	// subsumed by timer retry).
	Output func(pcb *PCB)
	// Rst asks the collaborator to transmit a bare RST segment for a
	// connection that is being torn down, carrying the given sequence
	// numbers and 4-tuple.
	Rst func(snd, rcv Value, localAddr, remoteAddr netip.Addr, localPort, remotePort uint16)
	// SendFin asks the collaborator to enqueue and flush a FIN segment.
	SendFin func(pcb *PCB) error
	// EnqueueSyn asks the collaborator to build and queue the initial SYN
	// for an active open, once pcb's 4-tuple and send sequence space are
	// staged. Connect only commits pcb's state transition and list move
	// once this succeeds, per §7 class 3's "no further state mutation on
	// failure" contract.
	EnqueueSyn func(pcb *PCB) error
	// ZeroWindowProbe asks the collaborator to send a one-octet probe while
	// the peer's advertised window is zero.
	ZeroWindowProbe func(pcb *PCB) error
	// RexmitRTO asks the collaborator to retransmit the oldest unacked
	// segment after an RTO expiry.
	RexmitRTO func(pcb *PCB)
	// Keepalive asks the collaborator to send a zero-octet keepalive probe.
	Keepalive func(pcb *PCB) error

	// RouteLocalIP resolves the local address to use when dialing remote,
	// for a PCB bound to a wildcard address. ok is false if no route
	// exists.
	RouteLocalIP func(remote netip.Addr) (local netip.Addr, ok bool)
	// DestinationMTU resolves the path MTU to remote, used to refine the
	// MSS offered on an active open. ok is false if unknown (the
	// configured default MSS is used instead).
	DestinationMTU func(remote netip.Addr) (mtu int, ok bool)

	// FreeSegment releases a send-queue entry's payload back to the
	// memory-pool collaborator.
	FreeSegment func(seg *SendSegment)

	// MallocPCB allocates the backing memory for a connection PCB. A nil
	// field falls back to a plain Go allocation (new(PCB)) — a reasonable
	// default off the embedded targets lwIP itself runs on, and the
	// pool/slab a real deployment wants is still reachable by setting this
	// field.
	MallocPCB func() *PCB
	// FreePCB returns a connection PCB's memory to the pool.
	FreePCB func(*PCB)
	// MallocListener allocates the backing memory for a listener PCB.
	MallocListener func() *ListenerPCB
	// FreeListener returns a listener PCB's memory to the pool.
	FreeListener func(*ListenerPCB)

	// TimerNeeded is invoked on every list insertion, so a suspended
	// periodic tick driver can resume itself (spec §4.1).
	TimerNeeded func()
}

func (c *Collaborators) mallocPCB() *PCB {
	if c.MallocPCB != nil {
		return c.MallocPCB()
	}
	return &PCB{}
}

func (c *Collaborators) freePCB(p *PCB) {
	if c.FreePCB != nil {
		c.FreePCB(p)
	}
}

func (c *Collaborators) mallocListener() *ListenerPCB {
	if c.MallocListener != nil {
		return c.MallocListener()
	}
	return &ListenerPCB{}
}

func (c *Collaborators) freeListener(l *ListenerPCB) {
	if c.FreeListener != nil {
		c.FreeListener(l)
	}
}

func (c *Collaborators) output(pcb *PCB) {
	if c.Output != nil {
		c.Output(pcb)
	}
}

func (c *Collaborators) rst(pcb *PCB) {
	if c.Rst != nil {
		c.Rst(pcb.sndNxt, pcb.rcvNxt, pcb.LocalAddr, pcb.RemoteAddr, pcb.LocalPort, pcb.RemotePort)
	}
}

func (c *Collaborators) sendFin(pcb *PCB) error {
	if c.SendFin == nil {
		return nil
	}
	return c.SendFin(pcb)
}

func (c *Collaborators) enqueueSyn(pcb *PCB) error {
	if c.EnqueueSyn == nil {
		return nil
	}
	return c.EnqueueSyn(pcb)
}

func (c *Collaborators) zeroWindowProbe(pcb *PCB) error {
	if c.ZeroWindowProbe == nil {
		return nil
	}
	return c.ZeroWindowProbe(pcb)
}

func (c *Collaborators) rexmitRTO(pcb *PCB) {
	if c.RexmitRTO != nil {
		c.RexmitRTO(pcb)
	}
}

func (c *Collaborators) keepalive(pcb *PCB) error {
	if c.Keepalive == nil {
		return nil
	}
	return c.Keepalive(pcb)
}

func (c *Collaborators) routeLocalIP(remote netip.Addr) (netip.Addr, bool) {
	if c.RouteLocalIP == nil {
		return netip.Addr{}, false
	}
	return c.RouteLocalIP(remote)
}

func (c *Collaborators) destinationMTU(remote netip.Addr) (int, bool) {
	if c.DestinationMTU == nil {
		return 0, false
	}
	return c.DestinationMTU(remote)
}

func (c *Collaborators) freeSegment(seg *SendSegment) {
	if c.FreeSegment != nil {
		c.FreeSegment(seg)
	}
}

func (c *Collaborators) timerNeeded() {
	if c.TimerNeeded != nil {
		c.TimerNeeded()
	}
}

// RecvFunc is invoked when data has been accepted into a PCB's receive
// sequence space.
type RecvFunc func(arg any, pcb *PCB, data []byte) error

// SentFunc is invoked when previously queued data has been acknowledged.
type SentFunc func(arg any, pcb *PCB, acked Size) error

// ErrFunc is invoked exactly once, per §4.5 report_err, when the stack
// tears a connection down out from under the application.
type ErrFunc func(arg any, err error)

// ConnectedFunc is invoked once an active-open PCB reaches ESTABLISHED.
type ConnectedFunc func(arg any, pcb *PCB, err error)
