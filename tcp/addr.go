package tcp

import "net/netip"

// isWildcard reports whether addr stands for "any local address" of its
// family, i.e. net.IPv4zero / net.IPv6zero / the zero netip.Addr passed by
// a caller that doesn't care which family binds.
func isWildcard(addr netip.Addr) bool {
	return !addr.IsValid() || addr.IsUnspecified()
}

// ipVersionOK implements the "IP-version policy" Bind (lifecycle_bind.go) applies: the
// zero-value wildcard is always acceptable (its family is decided later,
// by whichever remote peer connects), and any other address must parse to
// a valid v4 or v6 address.
func ipVersionOK(addr netip.Addr) bool {
	return !addr.IsValid() || addr.Is4() || addr.Is4In6() || addr.Is6()
}

// sameIPVersion reports whether a and b could occupy the same socket,
// either because one side is the family-agnostic wildcard or because both
// are the same family.
func sameIPVersion(a, b netip.Addr) bool {
	if isWildcard(a) || isWildcard(b) {
		return true
	}
	return a.Is4() == b.Is4()
}

// addrEqual reports whether a and b denote the same address, treating two
// wildcards as equal and a wildcard vs. a concrete address as equal too
// (per bind's "either side is wildcard or addresses are equal" conflict
// rule).
func addrEqual(a, b netip.Addr) bool {
	if isWildcard(a) || isWildcard(b) {
		return true
	}
	return a == b
}
