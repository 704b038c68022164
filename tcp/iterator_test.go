package tcp

import "testing"

// buildList prepends n fresh PCBs the same way regPCB does, returning the
// head and the elements in list order, head to tail (elems[0] is the head).
func buildList(n int) (*PCB, []*PCB) {
	var head *PCB
	elems := make([]*PCB, n)
	for i := 0; i < n; i++ {
		p := &PCB{}
		regPCB(&head, p)
		elems[n-1-i] = p
	}
	return head, elems
}

func TestIteratorPlainWalk(t *testing.T) {
	head, elems := buildList(4)
	var it iterator
	it.start(&head)
	defer it.stop()
	var got []*PCB
	for p := it.next(); p != nil; p = it.next() {
		got = append(got, p)
	}
	if len(got) != len(elems) {
		t.Fatalf("walked %d pcbs, want %d", len(got), len(elems))
	}
	for i := range elems {
		if got[i] != elems[i] {
			t.Fatalf("walk order mismatch at %d", i)
		}
	}
}

func TestIteratorSurvivesRemovingCurrent(t *testing.T) {
	head, elems := buildList(4) // elems[0..3] head-to-tail.
	var it iterator
	it.start(&head)
	defer it.stop()

	first := it.next() // elems[0], becomes current.
	if first != elems[0] {
		t.Fatalf("expected first element %p, got %p", elems[0], first)
	}
	it.willRemove(elems[0], &head)
	rmvPCB(&head, elems[0])

	var rest []*PCB
	for p := it.next(); p != nil; p = it.next() {
		rest = append(rest, p)
	}
	if len(rest) != 3 || rest[0] != elems[1] || rest[1] != elems[2] || rest[2] != elems[3] {
		t.Fatalf("iterator did not continue correctly after removing current: %v", rest)
	}
}

func TestIteratorSurvivesRemovingPrev(t *testing.T) {
	head, elems := buildList(4)
	var it iterator
	it.start(&head)
	defer it.stop()

	it.next() // elems[0] current.
	it.next() // elems[1] current, elems[0] prev.

	it.willRemove(elems[0], &head)
	rmvPCB(&head, elems[0])

	// prev should now be nil (elems[0] had no predecessor), so a prepend
	// ahead of the remaining list must still surface through willPrepend.
	inserted := &PCB{}
	it.willPrepend(inserted, head)
	regPCB(&head, inserted)

	var rest []*PCB
	for p := it.next(); p != nil; p = it.next() {
		rest = append(rest, p)
	}
	if len(rest) != 2 || rest[0] != elems[2] || rest[1] != elems[3] {
		t.Fatalf("unexpected tail after removing prev: %v", rest)
	}
}

func TestIteratorSurvivesPrependAtHead(t *testing.T) {
	head, elems := buildList(2)
	var it iterator
	it.start(&head) // current == head == elems[0].

	inserted := &PCB{}
	it.willPrepend(inserted, head)
	regPCB(&head, inserted)

	var got []*PCB
	for p := it.next(); p != nil; p = it.next() {
		got = append(got, p)
	}
	it.stop()
	if len(got) != 2 || got[0] != elems[0] || got[1] != elems[1] {
		t.Fatalf("prepend-at-head during scan produced wrong walk: %v", got)
	}
}

func TestIteratorNoopWhenNotScanning(t *testing.T) {
	var it iterator
	p := &PCB{}
	var head *PCB
	// Should not panic or otherwise misbehave when nothing is in progress.
	it.willRemove(p, &head)
	it.willPrepend(p, head)
}
