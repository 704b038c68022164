package tcp

import "time"

// Tunable constants from the specification. All are resolved once, at
// [NewCore] time, into tick counts measured in units of SlowInterval; there
// is no support for changing them on a live Core, mirroring the teacher
// package's preference for plain config structs over runtime-mutable knobs.
type Config struct {
	// WND is the default receive window advertised by a fresh PCB.
	WND Size
	// MSS is the configured maximum segment size; the effective MSS sent on
	// the wire is min(MSS, 536) until a larger value is negotiated.
	MSS Size
	// SndBuf is the default send-buffer budget for a fresh PCB.
	SndBuf Size
	// SynMaxRtx caps SYN retransmissions before SYN_SENT/SYN_RCVD is
	// abandoned.
	SynMaxRtx uint8
	// MaxRtx caps data retransmissions before an established connection is
	// abandoned.
	MaxRtx uint8
	// MSL is the Maximum Segment Lifetime; TIME_WAIT and LAST_ACK both time
	// out after 2*MSL.
	MSL time.Duration
	// FinWaitTimeout bounds how long an orderly close may sit in
	// FIN_WAIT_2 once the application has relinquished its reference.
	FinWaitTimeout time.Duration
	// SynRcvdTimeout bounds how long a half-open passive connection may sit
	// in SYN_RCVD.
	SynRcvdTimeout time.Duration
	// SlowInterval is the cadence of the slow timer (nominally 500ms).
	SlowInterval time.Duration
	// FastInterval is the cadence of the fast timer (nominally 250ms).
	FastInterval time.Duration
	// WndUpdateThreshold is the minimum advertised-window inflation, in
	// octets, that triggers an immediate window-update ACK from Recved.
	WndUpdateThreshold Size
	// KeepIdle, KeepIntvl, KeepCnt are the default per-PCB keepalive
	// parameters; a PCB may override them individually.
	KeepIdle  time.Duration
	KeepIntvl time.Duration
	KeepCnt   uint32
	// PortLow, PortHigh bound the ephemeral port search range.
	PortLow, PortHigh uint16
}

// DefaultConfig returns the tunables named in the specification's
// constants table, unscaled (real-world RFC 9293 / BSD-derived defaults).
func DefaultConfig() Config {
	return Config{
		WND:                16384,
		MSS:                536,
		SndBuf:             8 * 16384,
		SynMaxRtx:          6,
		MaxRtx:             12,
		MSL:                60 * time.Second,
		FinWaitTimeout:     20 * time.Second,
		SynRcvdTimeout:     20 * time.Second,
		SlowInterval:       500 * time.Millisecond,
		FastInterval:       250 * time.Millisecond,
		WndUpdateThreshold: 16384 / 4,
		KeepIdle:           2 * time.Hour,
		KeepIntvl:          75 * time.Second,
		KeepCnt:            9,
		PortLow:            0xC000,
		PortHigh:           0xFFFF,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WND == 0 {
		c.WND = d.WND
	}
	if c.MSS == 0 {
		c.MSS = d.MSS
	}
	if c.SndBuf == 0 {
		c.SndBuf = d.SndBuf
	}
	if c.SynMaxRtx == 0 {
		c.SynMaxRtx = d.SynMaxRtx
	}
	if c.MaxRtx == 0 {
		c.MaxRtx = d.MaxRtx
	}
	if c.MSL == 0 {
		c.MSL = d.MSL
	}
	if c.FinWaitTimeout == 0 {
		c.FinWaitTimeout = d.FinWaitTimeout
	}
	if c.SynRcvdTimeout == 0 {
		c.SynRcvdTimeout = d.SynRcvdTimeout
	}
	if c.SlowInterval == 0 {
		c.SlowInterval = d.SlowInterval
	}
	if c.FastInterval == 0 {
		c.FastInterval = d.FastInterval
	}
	if c.WndUpdateThreshold == 0 {
		c.WndUpdateThreshold = d.WndUpdateThreshold
	}
	if c.KeepIdle == 0 {
		c.KeepIdle = d.KeepIdle
	}
	if c.KeepIntvl == 0 {
		c.KeepIntvl = d.KeepIntvl
	}
	if c.KeepCnt == 0 {
		c.KeepCnt = d.KeepCnt
	}
	if c.PortLow == 0 {
		c.PortLow = d.PortLow
	}
	if c.PortHigh == 0 {
		c.PortHigh = d.PortHigh
	}
	return c
}

// ticksOf converts a duration into a whole number of slow-timer ticks,
// rounding up so that a timeout never fires early.
func (c Config) ticksOf(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	n := int64(d) / int64(c.SlowInterval)
	if int64(d)%int64(c.SlowInterval) != 0 {
		n++
	}
	return uint32(n)
}

// backoffTable is the RTO exponential backoff table indexed by nrtx,
// saturating at its last entry; it matches the table in the specification's
// tunable-constants list.
var backoffTable = [...]uint8{1, 2, 3, 4, 5, 6, 7, 7, 7, 7, 7, 7, 7}

// persistBackoffTable is the zero-window-probe backoff table indexed by
// persist_backoff-1, saturating at its last entry.
var persistBackoffTable = [...]uint8{3, 6, 12, 24, 48, 96, 120}

func backoffFor(nrtx uint8) uint8 {
	if int(nrtx) >= len(backoffTable) {
		return backoffTable[len(backoffTable)-1]
	}
	return backoffTable[nrtx]
}

func persistBackoffFor(backoff uint8) uint8 {
	idx := int(backoff) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(persistBackoffTable) {
		idx = len(persistBackoffTable) - 1
	}
	return persistBackoffTable[idx]
}
