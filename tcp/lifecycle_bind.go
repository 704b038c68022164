package tcp

import (
	"log/slog"
	"net/netip"
)

// NewPCB allocates a fresh connection PCB in state CLOSED, off every list,
// via the reclamation-backed allocator of §4.4. Returns nil if the
// allocator could not reclaim enough room.
func (c *Core) NewPCB(prio uint8) *PCB {
	return c.allocPCB(prio)
}

// NewListener allocates a fresh listener PCB in state LISTEN_CLOSED.
func (c *Core) NewListener() *ListenerPCB {
	l := c.collab.mallocListener()
	if l == nil {
		return nil
	}
	*l = ListenerPCB{state: StateListenClosed}
	return l
}

// Bind implements §4.5 bind: assign pcb a local address and port, failing
// if the combination conflicts with an existing occupant.
func (c *Core) Bind(pcb *PCB, ipaddr netip.Addr, port uint16) error {
	const op = "bind"
	if pcb.state != StateClosed && pcb.state != StateListenClosed {
		return opErr(op, ErrConn)
	}
	if !ipVersionOK(ipaddr) {
		return opErr(op, ErrVal)
	}
	if port == 0 {
		p, ok := c.newPort()
		if !ok {
			return opErr(op, ErrBuf)
		}
		port = p
	}
	if conflict := c.bindConflictsPCB(pcb.reuseAddr(), ipaddr, port); conflict {
		return opErr(op, ErrUse)
	}
	if !isWildcard(ipaddr) {
		pcb.LocalAddr = ipaddr
	}
	pcb.LocalPort = port
	c.regBound(pcb)
	c.debug("tcp.Bind", slog.Uint64("port", uint64(port)))
	return nil
}

// bindConflictsPCB scans every list (all four unless reuse is set, in which
// case tw is skipped) for an occupant whose port matches, whose IP version
// matches, and whose address overlaps, unless both sides set REUSEADDR.
func (c *Core) bindConflictsPCB(reuse bool, ipaddr netip.Addr, port uint16) bool {
	check := func(otherPort uint16, otherAddr netip.Addr, otherReuse bool) bool {
		if otherPort != port {
			return false
		}
		if !sameIPVersion(ipaddr, otherAddr) {
			return false
		}
		if !addrEqual(ipaddr, otherAddr) {
			return false
		}
		return !(reuse && otherReuse)
	}
	for l := c.listenList; l != nil; l = l.next {
		if check(l.LocalPort, l.LocalAddr, l.reuseAddr()) {
			return true
		}
	}
	for p := c.boundList; p != nil; p = p.next {
		if check(p.LocalPort, p.LocalAddr, p.reuseAddr()) {
			return true
		}
	}
	for p := c.activeList; p != nil; p = p.next {
		if check(p.LocalPort, p.LocalAddr, p.reuseAddr()) {
			return true
		}
	}
	if !reuse {
		for p := c.twList; p != nil; p = p.next {
			if check(p.LocalPort, p.LocalAddr, p.reuseAddr()) {
				return true
			}
		}
	}
	return false
}

// ListenWithBacklog implements §4.5 listen_with_backlog: move a bound (or
// unbound) listener PCB into LISTEN with the given backlog limit.
func (c *Core) ListenWithBacklog(lpcb *ListenerPCB, backlog int) error {
	const op = "listen"
	if lpcb.state != StateListenClosed {
		return opErr(op, ErrConn)
	}
	for l := c.listenList; l != nil; l = l.next {
		if l.LocalPort != lpcb.LocalPort || !addrEqual(l.LocalAddr, lpcb.LocalAddr) {
			continue
		}
		if !(lpcb.reuseAddr() && l.reuseAddr()) {
			return opErr(op, ErrUse)
		}
	}
	lpcb.state = StateListen
	lpcb.acceptsPending = 0
	if backlog < 1 {
		backlog = 1
	}
	lpcb.backlog = backlog
	c.regListen(lpcb)
	c.debug("tcp.Listen", slog.Uint64("port", uint64(lpcb.LocalPort)), slog.Int("backlog", backlog))
	return nil
}

// ListenWithBacklogDualStack is the dual-stack variant: on success, if the
// local address is the wildcard, it additionally marks the listener to
// accept IPv4 connections on what would otherwise be an IPv6-only socket.
// Per §9's Open Question, a port-in-use conflict here returns ErrUse, not a
// nil-cast-to-error value some C ports of this logic are tempted to return.
func (c *Core) ListenWithBacklogDualStack(lpcb *ListenerPCB, backlog int) error {
	if err := c.ListenWithBacklog(lpcb, backlog); err != nil {
		return err
	}
	if isWildcard(lpcb.LocalAddr) {
		lpcb.SetDualStack(true)
	}
	return nil
}

// Connect implements §4.5 connect: begin an active open to remote, only
// taking effect (state change, list move, SYN enqueue) once every
// precondition has succeeded.
func (c *Core) Connect(pcb *PCB, remote netip.Addr, port uint16, cb ConnectedFunc) error {
	const op = "connect"
	if pcb.state != StateClosed {
		return opErr(op, ErrConn)
	}
	if !remote.IsValid() || port == 0 {
		return opErr(op, ErrVal)
	}
	localAddr := pcb.LocalAddr
	if isWildcard(localAddr) {
		resolved, ok := c.collab.routeLocalIP(remote)
		if !ok {
			return opErr(op, ErrRte)
		}
		localAddr = resolved
	}
	wasBound := pcb.LocalPort != 0
	localPort := pcb.LocalPort
	if !wasBound {
		p, ok := c.newPort()
		if !ok {
			return opErr(op, ErrBuf)
		}
		localPort = p
	} else if pcb.reuseAddr() {
		if c.tupleInUse(localAddr, remote, localPort, port) {
			return opErr(op, ErrUse)
		}
	}

	mss := c.cfg.MSS
	if mss > 536 {
		mss = 536
	}
	if mtu, ok := c.collab.destinationMTU(remote); ok && Size(mtu) < mss {
		mss = Size(mtu)
	}

	iss := c.nextISS(pcb)
	if c.secure != nil {
		iss = c.secure.Generate(localAddr, remote, localPort, port, c.ticks)
	}

	prevRemoteAddr, prevRemotePort := pcb.RemoteAddr, pcb.RemotePort
	prevLocalAddr, prevLocalPort := pcb.LocalAddr, pcb.LocalPort
	prevSndNxt, prevSndLbb, prevLastAck := pcb.sndNxt, pcb.sndLbb, pcb.lastAck
	prevCwnd, prevSsthresh, prevMss := pcb.cwnd, pcb.ssthresh, pcb.mss

	pcb.RemoteAddr = remote
	pcb.RemotePort = port
	pcb.LocalAddr = localAddr
	pcb.LocalPort = localPort
	pcb.sndNxt = iss
	pcb.sndLbb = iss
	pcb.lastAck = iss
	pcb.cwnd = 1
	pcb.ssthresh = c.cfg.WND
	pcb.mss = mss

	// The SYN must be queued before pcb's state transition and list move
	// commit, so a failure here leaves pcb exactly as it was found (§7
	// class 3: no further state mutation on failure).
	if err := c.collab.enqueueSyn(pcb); err != nil {
		pcb.RemoteAddr, pcb.RemotePort = prevRemoteAddr, prevRemotePort
		pcb.LocalAddr, pcb.LocalPort = prevLocalAddr, prevLocalPort
		pcb.sndNxt, pcb.sndLbb, pcb.lastAck = prevSndNxt, prevSndLbb, prevLastAck
		pcb.cwnd, pcb.ssthresh, pcb.mss = prevCwnd, prevSsthresh, prevMss
		return opErr(op, err)
	}

	pcb.connected = cb
	if wasBound {
		c.rmvBound(pcb)
	}
	pcb.state = StateSynSent
	c.regActive(pcb)
	c.collab.output(pcb)
	c.debug("tcp.Connect", slog.Uint64("lport", uint64(localPort)), slog.Uint64("rport", uint64(port)))
	return nil
}

func (c *Core) tupleInUse(localAddr, remoteAddr netip.Addr, localPort, remotePort uint16) bool {
	matches := func(p *PCB) bool {
		return p.LocalPort == localPort && p.RemotePort == remotePort &&
			p.LocalAddr == localAddr && p.RemoteAddr == remoteAddr
	}
	for p := c.activeList; p != nil; p = p.next {
		if matches(p) {
			return true
		}
	}
	for p := c.twList; p != nil; p = p.next {
		if matches(p) {
			return true
		}
	}
	return false
}
