package tcp

import "fmt"

// Stats is a point-in-time snapshot of a Core's bookkeeping, useful for
// metrics export and for the sanity checks in tests. The Num* fields are
// recomputed by Core.Stats on every call; the remainder are cumulative
// counters maintained as lifecycle and timer operations run.
type Stats struct {
	NumListen   int
	NumBound    int
	NumActive   int
	NumTimeWait int

	Retransmits uint64
	Timeouts    uint64
	Aborts      uint64
	Reclaims    uint64
}

// SanityCheck walks every list of core and verifies the testable properties
// of the data model: every PCB's recorded state matches the list it's
// queued on, no PCB appears on more than one list, every bound or active
// PCB carries a nonzero local port, every PCB's sndQueuelen bookkeeping
// matches the actual length of its send-queue chain, and every listener's
// acceptsPending count matches the number of active-list PCBs backlogged
// against it.
func SanityCheck(core *Core) error {
	seen := make(map[*PCB]string)
	pending := make(map[uint64]int)

	for l := core.listenList; l != nil; l = l.next {
		if l.state != StateListen {
			return fmt.Errorf("tcp: sanity: listener at port %d on listen list with state %s", l.LocalPort, l.state)
		}
	}

	walk := func(name string, head *PCB, want func(State) bool) error {
		for p := head; p != nil; p = p.next {
			if prior, ok := seen[p]; ok {
				return fmt.Errorf("tcp: sanity: pcb on both %s and %s lists", prior, name)
			}
			seen[p] = name
			if !want(p.state) {
				return fmt.Errorf("tcp: sanity: pcb in state %s found on %s list", p.state, name)
			}
			if p.LocalPort == 0 {
				return fmt.Errorf("tcp: sanity: pcb on %s list with no local port", name)
			}
			var chainLen int
			for seg := p.sndq; seg != nil; seg = seg.next {
				chainLen += int(seg.Len)
			}
			if p.sndQueuelen != chainLen {
				return fmt.Errorf("tcp: sanity: pcb on %s list has sndQueuelen=%d, send queue chain sums to %d", name, p.sndQueuelen, chainLen)
			}
			if p.listenerID != 0 && p.flags.Has(FlagBacklogPend) {
				pending[p.listenerID]++
			}
		}
		return nil
	}

	if err := walk("bound", core.boundList, func(s State) bool { return s == StateClosed }); err != nil {
		return err
	}
	if err := walk("active", core.activeList, State.IsActive); err != nil {
		return err
	}
	if err := walk("tw", core.twList, func(s State) bool { return s == StateTimeWait }); err != nil {
		return err
	}

	for id, l := range core.listeners {
		if l.acceptsPending != pending[id] {
			return fmt.Errorf("tcp: sanity: listener id %d acceptsPending=%d, want %d counted from active list", id, l.acceptsPending, pending[id])
		}
	}
	return nil
}
