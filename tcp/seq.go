package tcp

// Value is a TCP sequence number. Sequence space arithmetic is modular over
// 2**32 per RFC 9293 §3.4, so Value wraps silently like the wire field it
// represents; use [Add], [Sizeof], and [LessThan] rather than raw operators
// when comparing or combining two Values, since a naive a < b comparison is
// wrong across a wraparound boundary.
type Value uint32

// Size is a byte count in sequence space: a segment length or window size.
type Size uint32

// Add returns the sequence number sz octets after v, wrapping at 2**32.
func Add(v Value, sz Size) Value {
	return v + Value(sz)
}

// Sizeof returns the number of octets between start and end going forward
// through the sequence space, i.e. the distance an observer at start would
// have to advance to reach end. Sizeof(a, a) is 0.
func Sizeof(start, end Value) Size {
	return Size(end - start)
}

// LessThan reports whether a precedes b in the sequence space, using the
// serial-number-arithmetic convention of RFC 1982: a precedes b iff the
// forward distance from a to b is in (0, 2**31).
func LessThan(a, b Value) bool {
	return int32(a-b) < 0
}

// LessEq reports whether a precedes or equals b in sequence space.
func LessEq(a, b Value) bool {
	return a == b || LessThan(a, b)
}

// InWindow reports whether v lies in [start, start+sz) in sequence space.
func InWindow(v, start Value, sz Size) bool {
	if sz == 0 {
		return false
	}
	return Sizeof(start, v) < sz
}
