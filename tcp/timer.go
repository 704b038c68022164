package tcp

import "log/slog"

// Tmr is the single entry point the specification's §4.1/§4.6 periodic tick
// driver calls at FastInterval cadence. It always runs the fast pass, and
// every other call also runs the slow pass, matching the classic
// fast:slow == 250ms:500ms ratio without the driver having to know it.
func (c *Core) Tmr() {
	c.FastTmr()
	c.slowToggle = !c.slowToggle
	if c.slowToggle {
		c.SlowTmr()
	}
}

// FastTmr implements §4.6's fast timer: flush every active PCB's delayed
// ACK, if one is pending. It never frees a PCB, so it walks the active list
// directly rather than through the safe iterator.
func (c *Core) FastTmr() {
	c.timerCtr++
	for p := c.activeList; p != nil; p = p.next {
		if p.flags.Has(FlagAckDelay) {
			p.flags.clear(FlagAckDelay)
			p.flags.set(FlagAckNow)
			c.collab.output(p)
		}
	}
}

// SlowTmr implements §4.6's slow timer: advance tcp_ticks, then scan the
// active and tw lists under the safe iterator, since this pass is the one
// that frees PCBs out from under itself (retransmission-limit aborts,
// idle timeouts, TIME_WAIT/LAST_ACK expiry).
func (c *Core) SlowTmr() {
	c.ticks++
	c.timerCtr++
	c.slowTmrActive()
	c.slowTmrTimeWait()
}

// slowTmrActive scans the active list once per tick. Each PCB is skipped if
// its last_timer snapshot already matches this pass's counter, which
// happens for a PCB registered by AcceptInto/Connect during this very tick:
// such a PCB hasn't been idle long enough yet for any timeout to apply.
func (c *Core) slowTmrActive() {
	c.iter.start(&c.activeList)
	defer c.iter.stop()
	for p := c.iter.next(); p != nil; p = c.iter.next() {
		if p.lastTimer == c.timerCtr {
			continue
		}
		p.lastTimer = c.timerCtr
		c.tickRetransmit(p)
		if p.state == StateClosed { // freed by tickRetransmit's abort path.
			continue
		}
		c.tickPersist(p)
		c.tickKeepalive(p)
		c.tickFinWait2(p)
		c.tickSynRcvd(p)
		if p.state == StateLastAck && c.ticks-p.tmr >= 2*c.mslTicks {
			c.reportErr(p, ErrAbrt)
			c.pcbFree(p, false, nil)
			c.stats.Timeouts++
		}
	}
}

// slowTmrTimeWait scans the tw list, reaping any PCB that has sat for
// 2*MSL, per §4.6.
func (c *Core) slowTmrTimeWait() {
	c.iter.start(&c.twList)
	defer c.iter.stop()
	for p := c.iter.next(); p != nil; p = c.iter.next() {
		if p.lastTimer == c.timerCtr {
			continue
		}
		p.lastTimer = c.timerCtr
		if c.ticks-p.tmr >= 2*c.mslTicks {
			c.pcbFree(p, false, nil)
		}
	}
}

// tickRetransmit advances the per-PCB retransmission timer. The
// retransmission ceiling (SynMaxRtx while the handshake hasn't completed,
// MaxRtx afterward) is checked every tick, unconditional of rtime/rto,
// matching lwIP's tcp_slowtmr; past it the connection is aborted with
// ERR_ABRT. Otherwise, once rtime reaches rto, backoffTable is consulted
// with the pre-increment nrtx before nrtx is advanced, and the collaborator
// is asked to resend the oldest unacked segment. Suppressed entirely while
// pcb is in persist mode (§4.6 item 4): zero-window probing, not ordinary
// retransmission, drives the connection while the peer's window is zero.
func (c *Core) tickRetransmit(p *PCB) {
	if p.persistBackoff != 0 {
		return
	}
	maxRtx := c.cfg.MaxRtx
	if p.state == StateSynSent || p.state == StateSynRcvd {
		maxRtx = c.cfg.SynMaxRtx
	}
	if p.nrtx >= maxRtx {
		c.reportErr(p, ErrAbrt)
		c.pcbFree(p, p.state != StateSynSent, nil)
		c.stats.Timeouts++
		return
	}
	if p.rtime < 0 {
		return
	}
	p.rtime++
	if p.rtime < p.rto {
		return
	}
	base := (p.sa >> 3) + p.sv
	if base < 1 {
		base = 1
	}
	p.rto = base * int32(backoffFor(p.nrtx))
	p.nrtx++
	p.rtime = 0

	if p.cwnd > p.mss {
		p.ssthresh = p.cwnd / 2
	} else {
		p.ssthresh = 2 * p.mss
	}
	p.cwnd = p.mss

	c.stats.Retransmits++
	c.collab.rexmitRTO(p)
}

// EnterPersist arms the zero-window probe timer for pcb, called by the
// segment-processing collaborator once it observes the peer's advertised
// window has dropped to zero while data remains queued to send.
func (c *Core) EnterPersist(p *PCB) {
	if p.persistBackoff == 0 {
		p.persistBackoff = 1
		p.persistCnt = 0
	}
}

// ExitPersist disarms the zero-window probe timer, called once the peer
// advertises a nonzero window again.
func (c *Core) ExitPersist(p *PCB) {
	p.persistBackoff = 0
	p.persistCnt = 0
}

// tickPersist advances the persist (zero-window probe) backoff counter and
// asks the collaborator to send a one-octet probe once it expires.
func (c *Core) tickPersist(p *PCB) {
	if p.persistBackoff == 0 {
		return
	}
	p.persistCnt++
	if p.persistCnt < persistBackoffFor(p.persistBackoff) {
		return
	}
	p.persistCnt = 0
	if int(p.persistBackoff) < len(persistBackoffTable) {
		p.persistBackoff++
	}
	if err := c.collab.zeroWindowProbe(p); err != nil {
		c.warn("tcp.zeroWindowProbe", slog.Any("err", err))
	}
}

// tickKeepalive implements idle-connection keepalive probing: once a
// connection has been idle for KeepIdle, probes are sent every KeepIntvl,
// up to KeepCnt of them, before the connection is aborted.
func (c *Core) tickKeepalive(p *PCB) {
	if (p.state != StateEstablished && p.state != StateCloseWait) || !p.flags.Has(FlagKeepAlive) {
		return
	}
	idleTicks := p.keepIdle
	if idleTicks == 0 {
		idleTicks = c.cfg.ticksOf(c.cfg.KeepIdle)
	}
	intvlTicks := p.keepIntvl
	if intvlTicks == 0 {
		intvlTicks = c.cfg.ticksOf(c.cfg.KeepIntvl)
	}
	if intvlTicks == 0 {
		intvlTicks = 1
	}
	maxCnt := p.keepCnt
	if maxCnt == 0 {
		maxCnt = c.cfg.KeepCnt
	}
	elapsed := c.ticks - p.tmr
	if elapsed < idleTicks {
		return
	}
	wantProbes := (elapsed-idleTicks)/intvlTicks + 1
	if wantProbes <= p.keepCntSent {
		return
	}
	if p.keepCntSent >= maxCnt {
		c.reportErr(p, ErrAbrt)
		c.pcbFree(p, true, nil)
		c.stats.Timeouts++
		return
	}
	p.keepCntSent++
	if err := c.collab.keepalive(p); err != nil {
		c.warn("tcp.keepalive", slog.Any("err", err))
	}
}

// tickFinWait2 aborts a FIN_WAIT_2 connection once the application has
// dropped its reference (TF_NOUSER is set, i.e. Close already ran)
// and FinWaitTimeout has elapsed without the peer's FIN arriving.
func (c *Core) tickFinWait2(p *PCB) {
	if p.state != StateFinWait2 || p.HasUserReference() {
		return
	}
	if c.ticks-p.tmr >= c.finWaitTicks {
		c.reportErr(p, ErrAbrt)
		c.pcbFree(p, false, nil)
		c.stats.Timeouts++
	}
}

// tickSynRcvd bounds how long a half-open passive connection may sit
// waiting for the handshake's final ACK, independent of the per-segment
// retransmission ceiling tickRetransmit already enforces.
func (c *Core) tickSynRcvd(p *PCB) {
	if p.state != StateSynRcvd {
		return
	}
	if c.ticks-p.tmr >= c.synRcvdTicks {
		c.reportErr(p, ErrAbrt)
		c.pcbFree(p, false, nil)
		c.stats.Timeouts++
	}
}

// TxNow forces pcb's pending output (a delayed ACK, typically) to be
// flushed immediately, bypassing the fast timer's normal cadence.
func (c *Core) TxNow(p *PCB) {
	p.flags.clear(FlagAckDelay)
	p.flags.set(FlagAckNow)
	c.collab.output(p)
}
