package tcp

// Four intrusive singly-linked lists partition every non-CLOSED PCB by
// role, per the data model's axioms (i)-(v): listen, bound, active, tw.
// Each is addressed by a pointer to its head field on *Core, so reg is O(1)
// and rmv is O(n) — deliberate per §9 Design Notes: the lists are short in
// practice and every hot path (timer scan, port-collision check) already
// walks the full list, so a fancier structure buys nothing.
//
// Which list a PCB belongs on is a pure function of its state (and, for the
// bound list, whether it has a nonzero local port): LISTEN implies listen,
// TIME_WAIT implies tw, State.IsActive implies active, and CLOSED with a
// nonzero local port implies bound. reg/rmv trust the caller to invoke them
// only at the matching state transition — calling reg on a PCB already on a
// list, or rmv on one that isn't, is a programmer error exactly as the
// specification describes it, not a condition this package recovers from.

// regPCB prepends p to the list headed by *head.
func regPCB(head **PCB, p *PCB) {
	p.next = *head
	*head = p
}

// rmvPCB unlinks p from the list headed by *head, scanning from the head.
// It panics if p is not found, since that signals a bookkeeping bug.
func rmvPCB(head **PCB, p *PCB) {
	if *head == p {
		*head = p.next
		p.next = nil
		return
	}
	prev := *head
	for prev != nil && prev.next != p {
		prev = prev.next
	}
	if prev == nil {
		panic("tcp: rmvPCB: pcb not on list")
	}
	prev.next = p.next
	p.next = nil
}

// regListener prepends l to the listen list.
func regListener(head **ListenerPCB, l *ListenerPCB) {
	l.next = *head
	*head = l
}

// rmvListener unlinks l from the listen list.
func rmvListener(head **ListenerPCB, l *ListenerPCB) {
	if *head == l {
		*head = l.next
		l.next = nil
		return
	}
	prev := *head
	for prev != nil && prev.next != l {
		prev = prev.next
	}
	if prev == nil {
		panic("tcp: rmvListener: listener not on list")
	}
	prev.next = l.next
	l.next = nil
}

func (c *Core) regBound(p *PCB) {
	regPCB(&c.boundList, p)
	c.collab.timerNeeded()
}

func (c *Core) rmvBound(p *PCB) { rmvPCB(&c.boundList, p) }

// regActive prepends p to the active list, notifying the safe iterator of
// the prepend first so an in-progress scan stays correct (§4.2 will_prepend).
func (c *Core) regActive(p *PCB) {
	c.iter.willPrepend(p, c.activeList)
	regPCB(&c.activeList, p)
	c.collab.timerNeeded()
}

// rmvActive notifies the iterator of the removal, then unlinks.
func (c *Core) rmvActive(p *PCB) {
	c.iter.willRemove(p, &c.activeList)
	rmvPCB(&c.activeList, p)
}

func (c *Core) regTimeWait(p *PCB) {
	c.iter.willPrepend(p, c.twList)
	regPCB(&c.twList, p)
	c.collab.timerNeeded()
}

func (c *Core) rmvTimeWait(p *PCB) {
	c.iter.willRemove(p, &c.twList)
	rmvPCB(&c.twList, p)
}

func (c *Core) regListen(l *ListenerPCB) {
	regListener(&c.listenList, l)
	c.collab.timerNeeded()
}

func (c *Core) rmvListen(l *ListenerPCB) { rmvListener(&c.listenList, l) }
