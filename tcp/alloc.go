package tcp

// allocPCB hands out a fresh, fully-initialized PCB in state CLOSED, off
// every list. On pool exhaustion it runs the five-attempt reclamation
// cascade of §4.4, in strict order: plain allocation, kill oldest
// TIME_WAIT, kill oldest LAST_ACK, kill oldest CLOSING, kill the oldest PCB
// whose priority is at or below a ceiling that ratchets down as the active
// list is scanned. Returns nil if every attempt fails.
func (c *Core) allocPCB(prio uint8) *PCB {
	if prio > TCPPrioMax {
		prio = TCPPrioMax
	}
	if c.iter.scanning {
		// §5: the reclamation cascade must never prune the very list a
		// slow-timer pass currently holds open; callers must not invoke
		// allocation from within the timer callback cycle, so we only
		// offer the plain allocation attempt here.
		return c.tryMallocPCB()
	}
	policies := [...]func() bool{
		func() bool { return false }, // attempt 1 is the plain allocation below; no reclamation needed.
		c.killOldestInState(StateTimeWait),
		c.killOldestInState(StateLastAck),
		c.killOldestInState(StateClosing),
		c.killPrio(prio),
	}
	for _, reclaim := range policies {
		if p := c.tryMallocPCB(); p != nil {
			return p
		}
		reclaim()
	}
	return c.tryMallocPCB()
}

func (c *Core) tryMallocPCB() *PCB {
	p := c.collab.mallocPCB()
	if p == nil {
		return nil
	}
	*p = PCB{}
	p.state = StateClosed
	p.rto = 3000 / int32(c.cfg.SlowInterval.Milliseconds())
	if p.rto == 0 {
		p.rto = 6
	}
	p.rtime = -1
	p.cwnd = 1
	p.mss = c.cfg.MSS
	if p.mss > 536 {
		p.mss = 536
	}
	p.rcvWnd = c.cfg.WND
	if p.rcvWnd > 0xFFFF {
		p.rcvWnd = 0xFFFF
	}
	p.rcvAnnWnd = p.rcvWnd
	p.sndBuf = c.cfg.SndBuf
	p.tmr = c.ticks
	p.lastTimer = c.timerCtr
	p.sndNxt = c.nextISS(p)
	p.sndLbb = p.sndNxt
	return p
}

// killOldestInState returns a reclamation policy that frees the oldest
// (largest tcp_ticks-tmr) PCB in the given state, if any. TIME_WAIT lives on
// its own list (lists.go); every other state reclaimed here (LAST_ACK,
// CLOSING) lives on the active list.
func (c *Core) killOldestInState(want State) func() bool {
	return func() bool {
		head := &c.activeList
		if want == StateTimeWait {
			head = &c.twList
		}
		var victim, victimPrev, prev *PCB
		var oldest uint32
		found := false
		for p := *head; p != nil; p = p.next {
			if p.state == want {
				age := c.ticks - p.tmr
				if !found || age > oldest {
					found, oldest, victim, victimPrev = true, age, p, prev
				}
			}
			prev = p
		}
		if !found {
			return false
		}
		if want == StateTimeWait {
			c.pcbFree(victim, false, victimPrev)
			c.stats.Reclaims++
			return true
		}
		c.killActivePCB(victim, victimPrev)
		return true
	}
}

// killPrio reclaims the single oldest active-list PCB whose priority is at
// or below min(newPrio, TCPPrioMax), lowering the ceiling as it scans so
// the chosen victim is both lowest-priority and, among ties, oldest.
func (c *Core) killPrio(newPrio uint8) func() bool {
	return func() bool {
		ceiling := newPrio
		var victim, victimPrev, prev *PCB
		var oldest uint32
		found := false
		for p := c.activeList; p != nil; p = p.next {
			if p.prio <= ceiling {
				ceiling = p.prio
				age := c.ticks - p.tmr
				if !found || p.prio < victim.prio || (p.prio == victim.prio && age > oldest) {
					found, oldest, victim, victimPrev = true, age, p, prev
				}
			}
			prev = p
		}
		if !found {
			return false
		}
		c.killActivePCB(victim, victimPrev)
		return true
	}
}

// killActivePCB tears down a reclamation victim exactly like an
// asynchronous abort: report ERR_ABRT once, then free without a RST (the
// specification does not call for one on reclamation).
func (c *Core) killActivePCB(victim, prev *PCB) {
	c.reportErr(victim, ErrAbrt)
	c.pcbFree(victim, false, prev)
	c.stats.Reclaims++
}
