package tcp

// TCPWndMax is the largest representable receive window (a 16-bit wire
// field once an actual segment is built).
const TCPWndMax Size = 0xFFFF

// updateRcvAnnWnd implements §4.7: compare the prospective right edge
// against the currently advertised one, applying the silly-window-syndrome
// threshold of min(WND/2, mss) before inflating the advertised window.
// Returns the inflation applied (0 if none).
func (c *Core) updateRcvAnnWnd(p *PCB) Size {
	rightEdge := Add(p.rcvNxt, p.rcvWnd)
	oldRightEdge := p.rcvAnnRightEdge
	threshold := c.cfg.WND / 2
	if p.mss < threshold {
		threshold = p.mss
	}
	gain := Sizeof(oldRightEdge, rightEdge)
	if gain >= threshold {
		p.rcvAnnWnd = p.rcvWnd
		p.rcvAnnRightEdge = rightEdge
		return gain
	}
	if LessThan(oldRightEdge, p.rcvNxt) {
		// Peer sent beyond the advertised edge; tolerated, but the
		// advertised window can't go negative, so clamp to zero.
		p.rcvAnnWnd = 0
		return 0
	}
	// Shrink the advertised window so the right edge stays put.
	p.rcvAnnWnd = Sizeof(p.rcvNxt, oldRightEdge)
	return 0
}

// Recved implements §6's recved: the application reports that length
// octets of previously delivered data have been consumed, opening the
// receive window by that much (saturating at TCPWndMax), refreshing the
// advertised window, and forcing an immediate ACK + output if the
// inflation crosses WndUpdateThreshold.
func (c *Core) Recved(p *PCB, length Size) {
	if p.rcvWnd+length < p.rcvWnd || p.rcvWnd+length > TCPWndMax {
		p.rcvWnd = TCPWndMax
	} else {
		p.rcvWnd += length
	}
	inflation := c.updateRcvAnnWnd(p)
	if inflation >= c.cfg.WndUpdateThreshold {
		p.flags.set(FlagAckNow)
		c.collab.output(p)
	}
}
