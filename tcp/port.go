package tcp

// newPort advances the rolling ephemeral-port cursor and returns the first
// unused port in [PortLow, PortHigh], scanning all four lists on each
// candidate. It fails after a full cycle through the range (§4.3).
func (c *Core) newPort() (uint16, bool) {
	lo, hi := c.cfg.PortLow, c.cfg.PortHigh
	span := int(hi) - int(lo) + 1
	for i := 0; i < span; i++ {
		c.portCursor++
		if c.portCursor < lo || c.portCursor > hi {
			c.portCursor = lo
		}
		if !c.portInUse(c.portCursor) {
			return c.portCursor, true
		}
	}
	return 0, false
}

// portInUse scans all four lists for an occupant of port, the same check
// bind uses for address-conflict detection.
func (c *Core) portInUse(port uint16) bool {
	for l := c.listenList; l != nil; l = l.next {
		if l.LocalPort == port {
			return true
		}
	}
	for p := c.boundList; p != nil; p = p.next {
		if p.LocalPort == port {
			return true
		}
	}
	for p := c.activeList; p != nil; p = p.next {
		if p.LocalPort == port {
			return true
		}
	}
	for p := c.twList; p != nil; p = p.next {
		if p.LocalPort == port {
			return true
		}
	}
	return false
}
