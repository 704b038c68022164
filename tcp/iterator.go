package tcp

// iterator is the process-wide safe-iteration cursor of §4.2: a scan over
// the active or tw list that stays correct across deletion of the current
// or previous element and across prepends to the list head, because every
// mutation path calls willRemove/willPrepend before touching the list.
//
// Only one scan is ever in flight at a time, per the concurrency model
// (§5): the timer engine runs to completion before any other entry point
// runs, so a single cursor embedded in *Core is sufficient — there is no
// need for a stack of cursors.
type iterator struct {
	scanning bool
	list     **PCB // identifies which list is being scanned, by head-pointer identity.
	current  *PCB
	prev     *PCB
	nextIsCurrent bool
}

// start begins a new scan over the list headed by *head.
func (it *iterator) start(head **PCB) {
	it.scanning = true
	it.list = head
	it.current = *head
	it.prev = nil
	it.nextIsCurrent = true
}

// stop ends the current scan. Must be called once the scan completes so
// later reg/rmv calls against unrelated lists don't pay the hook-dispatch
// cost, and so a stale cursor can never be walked after its list changes
// shape between ticks.
func (it *iterator) stop() {
	it.scanning = false
	it.list = nil
	it.current = nil
	it.prev = nil
}

// next returns the next PCB in the scan, or nil when the scan is exhausted.
func (it *iterator) next() *PCB {
	if it.nextIsCurrent {
		it.nextIsCurrent = false
		return it.current
	}
	it.prev = it.current
	it.current = it.current.next
	return it.current
}

// willRemove must be called immediately before pcb is unlinked from the
// list headed by head. If no scan of that list is in progress, it is a
// no-op.
func (it *iterator) willRemove(pcb *PCB, head **PCB) {
	if !it.scanning || it.list != head {
		return
	}
	switch pcb {
	case it.current:
		it.current = it.current.next
		it.nextIsCurrent = true
	case it.prev:
		// Find the predecessor of prev by linear search from the list head.
		newPrev := findPred(*head, it.prev)
		it.prev = newPrev
	}
}

// willPrepend must be called immediately before pcb is prepended to the
// list headed by head. If the list being scanned has current equal to its
// current head, prev is set to the about-to-be-inserted pcb so prev.next ==
// current continues to hold once the prepend completes.
func (it *iterator) willPrepend(pcb *PCB, head *PCB) {
	if !it.scanning {
		return
	}
	if it.current == head {
		it.prev = pcb
	}
}

// findPred returns the predecessor of target in the list starting at head,
// or nil if target is the head or not found.
func findPred(head, target *PCB) *PCB {
	if head == target {
		return nil
	}
	for n := head; n != nil; n = n.next {
		if n.next == target {
			return n
		}
	}
	return nil
}
