// Package tcp implements the connection lifecycle and timer engine that sits
// underneath a TCP/IP stack: it owns Protocol Control Blocks (PCBs) for every
// half-open, established, closing, and lingering connection, drives each PCB
// through the state diagram of RFC 9293, and runs the coarse periodic timers
// that age out dead peers.
//
// The package is deliberately narrow. It never touches the wire: segment
// encoding, checksum computation, routing, and packet buffers are all
// collaborator concerns reached through the function-valued fields of
// [Collaborators]. A [Core] owns the four PCB lists, the safe iterator
// cursor, the ephemeral port allocator, and the timer counters; callers
// serialize access to it themselves, as described in [Core].
package tcp
