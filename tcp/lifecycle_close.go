package tcp

import "log/slog"

// reportErr invokes pcb's error callback at most once, per §4.5's
// report_err: a PCB that has already reported an asynchronous error never
// reports a second one, even if subsequent teardown paths also call this,
// and a PCB whose application reference is gone (TF_NOUSER) reports none.
func (c *Core) reportErr(pcb *PCB, err error) {
	if pcb.errReported || !pcb.HasUserReference() {
		return
	}
	pcb.errReported = true
	if pcb.errf != nil {
		pcb.errf(pcb.arg, err)
	}
}

// pcbPurge releases every send-queue entry still attached to pcb back to
// the memory-pool collaborator and resets the queue-length bookkeeping the
// data model's invariant (vii) requires stay accurate.
func (c *Core) pcbPurge(pcb *PCB) {
	for seg := pcb.sndq; seg != nil; {
		next := seg.next
		c.collab.freeSegment(seg)
		seg = next
	}
	pcb.sndq = nil
	pcb.sndqLast = nil
	pcb.sndqNext = nil
	pcb.sndQueuelen = 0
}

// pcbFree removes pcb from whichever list it currently occupies (derived
// from its state, per the lists.go design note), purges its send queue,
// optionally asks the collaborator to transmit a bare RST for the 4-tuple,
// clears the last-input cache if it pointed at this PCB, and returns the
// backing memory to the pool. prev is the caller's own scan position
// immediately before pcb (nil when unknown); it is not used: the unlink
// always scans from the list head, whether or not prev is supplied.
func (c *Core) pcbFree(pcb *PCB, sendRst bool, prev *PCB) {
	_ = prev // rmvPCB always rescans from the head (§9: simplicity over micro-optimizing an already O(n) unlink).
	switch {
	case pcb.state == StateTimeWait:
		c.rmvTimeWait(pcb)
	case pcb.state.IsActive():
		c.rmvActive(pcb)
		if pcb.listenerID != 0 {
			if l, ok := c.listeners[pcb.listenerID]; ok {
				c.backlogAccepted(pcb, l)
			}
		}
	case pcb.LocalPort != 0:
		c.rmvBound(pcb)
	}
	if sendRst {
		c.collab.rst(pcb)
	}
	c.pcbPurge(pcb)
	if c.lastInput == pcb {
		c.lastInput = nil
	}
	pcb.state = StateClosed
	c.collab.freePCB(pcb)
}

// moveToTimeWait implements the TIME_WAIT entry of §4.5/§4.6: detach pcb
// from the active list, clear the recv/sent/connected callbacks and set
// TF_NOUSER (the application can no longer be called back once TIME_WAIT
// begins), reset the MSL countdown, and requeue onto the tw list.
func (c *Core) moveToTimeWait(pcb *PCB) {
	c.rmvActive(pcb)
	pcb.recv = nil
	pcb.sent = nil
	pcb.connected = nil
	pcb.flags.set(FlagNoUser)
	pcb.state = StateTimeWait
	pcb.tmr = c.ticks
	pcb.lastTimer = c.timerCtr
	c.regTimeWait(pcb)
	c.debug("tcp.moveToTimeWait", slog.Uint64("lport", uint64(pcb.LocalPort)))
}

// MoveToTimeWait implements §6's move_to_time_wait: the segment-processing
// collaborator calls this once it determines, from a received segment,
// that pcb's close sequence is complete (e.g. the peer's FIN has been
// acked from FIN_WAIT_2, or LAST_ACK's final ACK has arrived).
func (c *Core) MoveToTimeWait(pcb *PCB) {
	c.moveToTimeWait(pcb)
}

// closeShutdown implements the bulk of §4.5 close: validate the current
// state permits a close, send a FIN where the protocol calls for one, and
// advance to the appropriate next state. rstOnUnacked is true for the
// abortive variant Close requests; it only actually aborts with a RST, from
// ESTABLISHED or CLOSE_WAIT, when
// there is unacknowledged/unread receive data outstanding (rcv_wnd below
// TCPWndMax) — otherwise it falls through to the ordinary FIN-sending path
// even though the abortive variant was requested, per §4.5.
func (c *Core) closeShutdown(pcb *PCB, rstOnUnacked bool) error {
	const op = "close"
	switch pcb.state {
	case StateClosed:
		c.pcbFree(pcb, false, nil)
		return nil
	case StateListenClosed:
		return nil
	case StateListen:
		return opErr(op, ErrConn)
	case StateSynSent:
		c.pcbFree(pcb, false, nil)
		return nil
	case StateSynRcvd, StateEstablished:
		if rstOnUnacked && pcb.state == StateEstablished && pcb.rcvWnd < TCPWndMax {
			c.pcbFree(pcb, true, nil)
			return nil
		}
		if err := c.collab.sendFin(pcb); err != nil {
			return opErr(op, err)
		}
		pcb.state = StateFinWait1
		pcb.tmr = c.ticks
		return nil
	case StateCloseWait:
		if rstOnUnacked && pcb.rcvWnd < TCPWndMax {
			c.pcbFree(pcb, true, nil)
			return nil
		}
		if err := c.collab.sendFin(pcb); err != nil {
			return opErr(op, err)
		}
		pcb.state = StateLastAck
		pcb.tmr = c.ticks
		return nil
	default:
		// FIN_WAIT_1, FIN_WAIT_2, CLOSING, LAST_ACK, TIME_WAIT: a close
		// already in flight or already complete on the wire.
		return opErr(op, ErrConn)
	}
}

// Close implements §4.5 close: a graceful application-initiated close that
// always disposes of pcb one way or another. TF_NOUSER is set first, so the
// application is never called back again. If closeShutdown can't complete
// normally (a FIN failed to enqueue, or the state forbids closing twice),
// Close falls back to an abortive pcbFree rather than leaving pcb dangling.
func (c *Core) Close(pcb *PCB) error {
	pcb.flags.set(FlagNoUser)
	err := c.closeShutdown(pcb, true)
	if err != nil {
		c.pcbFree(pcb, true, nil)
		c.debug("tcp.Close", slog.String("fallback", "pcb_free"))
		return err
	}
	c.debug("tcp.Close")
	return nil
}

// ShutTx implements §4.5 shutdown(tx): half-close the write side only,
// sending a FIN while leaving the receive side open for CLOSE_WAIT-style
// half-duplex reads. Valid from SYN_RCVD or ESTABLISHED (FIN, then
// FIN_WAIT_1) and from CLOSE_WAIT (FIN, then LAST_ACK); any other state
// returns ErrConn. Unlike Close, ShutTx never
// sets TF_NOUSER: the application keeps its reference and keeps receiving
// callbacks, so tickFinWait2 purposely never times this connection out.
func (c *Core) ShutTx(pcb *PCB) error {
	const op = "shutdown"
	switch pcb.state {
	case StateSynRcvd, StateEstablished:
		if err := c.collab.sendFin(pcb); err != nil {
			return opErr(op, err)
		}
		pcb.state = StateFinWait1
		pcb.tmr = c.ticks
		return nil
	case StateCloseWait:
		return c.closeShutdown(pcb, false)
	default:
		return opErr(op, ErrConn)
	}
}

// Abort implements §4.5 abort: tear pcb down immediately, reporting
// ERR_ABRT to the application and sending a RST to the peer if the
// connection had progressed far enough for one to be meaningful.
func (c *Core) Abort(pcb *PCB) {
	sendRst := pcb.state.IsActive() && pcb.state != StateTimeWait
	c.reportErr(pcb, ErrAbrt)
	c.pcbFree(pcb, sendRst, nil)
	c.stats.Aborts++
	c.debug("tcp.Abort")
}

// CloseListen implements §4.5 close_listen: stop accepting new connections
// on lpcb and clear every active-list PCB's back-reference to it (by slab
// ID, per §9 Design Notes, so no dangling pointer can ever be dereferenced
// even if lpcb's memory is reused before those PCBs finish their own
// lifecycle).
func (c *Core) CloseListen(lpcb *ListenerPCB) error {
	if lpcb.state != StateListen && lpcb.state != StateListenClosed {
		return opErr("close_listen", ErrConn)
	}
	if lpcb.state == StateListen {
		c.rmvListen(lpcb)
	}
	lpcb.state = StateListenClosed
	delete(c.listeners, lpcb.id)
	for p := c.activeList; p != nil; p = p.next {
		if p.listenerID == lpcb.id {
			p.listenerID = 0
		}
	}
	c.collab.freeListener(lpcb)
	c.debug("tcp.CloseListen", slog.Uint64("port", uint64(lpcb.LocalPort)))
	return nil
}

// backlogDelayed implements §4.5's "delay accept until backlog has room":
// marks a freshly passively-opened PCB as counted against its listener's
// backlog without yet being handed to the application.
func (c *Core) backlogDelayed(pcb *PCB, lpcb *ListenerPCB) {
	if pcb.flags.Has(FlagBacklogPend) {
		return
	}
	pcb.flags.set(FlagBacklogPend)
	lpcb.acceptsPending++
}

// backlogAccepted implements the companion operation: once the application
// calls accept, the PCB no longer counts against the backlog limit.
func (c *Core) backlogAccepted(pcb *PCB, lpcb *ListenerPCB) {
	if !pcb.flags.Has(FlagBacklogPend) {
		return
	}
	pcb.flags.clear(FlagBacklogPend)
	if lpcb.acceptsPending > 0 {
		lpcb.acceptsPending--
	}
}

// AcceptInto attaches a freshly allocated connection PCB (already carrying
// its 4-tuple and SYN_RCVD state, set up by the segment-parsing
// collaborator before this call) to lpcb, enforcing the backlog limit and
// registering the listener back-reference by slab ID.
func (c *Core) AcceptInto(lpcb *ListenerPCB, pcb *PCB) error {
	if lpcb.state != StateListen {
		return opErr("accept", ErrConn)
	}
	if lpcb.acceptsPending >= lpcb.backlog {
		return opErr("accept", ErrConn)
	}
	if lpcb.id == 0 {
		c.nextListener++
		lpcb.id = c.nextListener
		c.listeners[lpcb.id] = lpcb
	}
	pcb.listenerID = lpcb.id
	pcb.prio = 0
	c.regActive(pcb)
	c.backlogDelayed(pcb, lpcb)
	if lpcb.accept != nil {
		lpcb.accept(lpcb.arg, pcb)
	}
	return nil
}
