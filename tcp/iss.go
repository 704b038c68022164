package tcp

import (
	"encoding/binary"
	"net/netip"

	"golang.org/x/crypto/blake2b"
)

// nextISS implements §4.9: a static seed incremented by tcp_ticks on every
// call, giving a monotonically increasing sequence while tcp_ticks
// increases, never repeating within a single run.
func (c *Core) nextISS(_ *PCB) Value {
	c.issSeed += Value(c.ticks) + 1
	return c.issSeed
}

// SecureISS is the "stronger source" §4.9 invites in place of the plain
// monotonic generator: a keyed BLAKE2b-256 hash of the 4-tuple and a coarse
// timestamp, the RFC 6528 construction for hardening ISS selection against
// off-path sequence-number guessing. It generalizes the teacher package's
// SYNCookieJar tuple-hashing idiom (tcp/syncookie.go) from a hand-rolled
// 32-bit mixer to a real MAC.
type SecureISS struct {
	key [32]byte
}

// NewSecureISS derives a SecureISS from a caller-supplied secret. Rotate by
// constructing a new SecureISS and calling Core.SetSecureISS again,
// mirroring SYNCookieJar.Reset's secret-rotation idiom.
func NewSecureISS(secret []byte) *SecureISS {
	s := &SecureISS{}
	sum := blake2b.Sum256(secret)
	s.key = sum
	return s
}

// Generate returns an ISS for the given 4-tuple and timebase. The timebase
// is typically Core.Ticks(), coarsened to 32-tick steps, so the ISS for a
// given tuple changes as time passes. The result is a hash output: it is
// not increasing in ticks, unlike nextISS.
func (s *SecureISS) Generate(localAddr, remoteAddr netip.Addr, localPort, remotePort uint16, ticks uint32) Value {
	mac, err := blake2b.New256(s.key[:])
	if err != nil {
		// Key length is fixed at 32 bytes above; New256 only errors on an
		// oversized key, so this is unreachable.
		panic(err)
	}
	var portBuf [4]byte
	binary.BigEndian.PutUint16(portBuf[0:2], localPort)
	binary.BigEndian.PutUint16(portBuf[2:4], remotePort)
	mac.Write(localAddr.AsSlice())
	mac.Write(remoteAddr.AsSlice())
	mac.Write(portBuf[:])
	var tickBuf [4]byte
	binary.BigEndian.PutUint32(tickBuf[:], ticks>>5) // coarsen so ISS doesn't change every tick.
	mac.Write(tickBuf[:])
	sum := mac.Sum(nil)
	return Value(binary.BigEndian.Uint32(sum[:4]))
}
