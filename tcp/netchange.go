package tcp

import "net/netip"

// NotifyAddrChange implements §4.8: react to a local interface address
// changing from oldAddr to newAddr. Any PCB that has already put oldAddr on
// the wire (an active connection, or one waiting in TIME_WAIT) is aborted —
// a connection's local address is part of its identity once it has sent a
// SYN, and quietly repointing it would desynchronize the peer. A PCB that
// has only reserved oldAddr via Bind, and the listeners bound to it, carry
// nothing irrevocable yet, so they are simply repointed at newAddr.
func (c *Core) NotifyAddrChange(oldAddr, newAddr netip.Addr) {
	if !oldAddr.IsValid() {
		return
	}

	c.iter.start(&c.activeList)
	for p := c.iter.next(); p != nil; p = c.iter.next() {
		if p.LocalAddr == oldAddr {
			c.reportErr(p, ErrAbrt)
			c.pcbFree(p, true, nil)
			c.stats.Aborts++
		}
	}
	c.iter.stop()

	c.iter.start(&c.twList)
	for p := c.iter.next(); p != nil; p = c.iter.next() {
		if p.LocalAddr == oldAddr {
			c.pcbFree(p, false, nil)
		}
	}
	c.iter.stop()

	for p := c.boundList; p != nil; p = p.next {
		if p.LocalAddr == oldAddr {
			p.LocalAddr = newAddr
		}
	}
	for l := c.listenList; l != nil; l = l.next {
		if l.LocalAddr == oldAddr {
			l.LocalAddr = newAddr
		}
	}
}

// RemoveAddr implements the degenerate case of an address being withdrawn
// outright (e.g. an interface going down), with no replacement to take
// over the bound/listening entries: everything pinned to addr is rebound
// onto the wildcard so it doesn't keep a stale, now-unreachable address
// reserved forever.
func (c *Core) RemoveAddr(addr netip.Addr) {
	c.NotifyAddrChange(addr, netip.Addr{})
}
