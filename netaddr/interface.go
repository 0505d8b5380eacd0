/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package netaddr implements address-range matching for client admission
// control: a single socket address, a contiguous range of addresses (parsed
// from a single IP, a CIDR block, or an explicit "start-end" range), a sorted
// set of ranges with overlap/adjacency merging, and an allow/deny filter
// built on top of two such sets.
package netaddr

import (
	"context"
	"net/netip"
)

// SockAddr pairs a resolved IP address with a transport port, mirroring the
// address half of a listening or connected socket.
type SockAddr interface {
	// Addr returns the underlying IP address.
	Addr() netip.Addr
	// Port returns the transport port, or 0 if not applicable.
	Port() uint16
	// String renders "ip:port" (or "[ip]:port" for IPv6).
	String() string
}

// NewSockAddr builds a SockAddr from an address and a port.
func NewSockAddr(addr netip.Addr, port uint16) SockAddr {
	return sockAddr{addr: addr, port: port}
}

// ParseSockAddr parses a "host:port" string, where host may be a literal
// IPv4/IPv6 address.
func ParseSockAddr(hostport string) (SockAddr, error) {
	return parseSockAddr(hostport)
}

// AddressRange represents a contiguous, inclusive span of IP addresses. The
// two endpoints are always normalized to the same address family.
type AddressRange interface {
	// Start returns the first address in the range.
	Start() netip.Addr
	// End returns the last address in the range, inclusive.
	End() netip.Addr
	// Contains reports whether addr falls within [Start, End].
	Contains(addr netip.Addr) bool
	// Overlaps reports whether the two ranges share at least one address.
	Overlaps(other AddressRange) bool
	// Adjacent reports whether other starts exactly one address past this
	// range's end (or vice versa), making the two mergeable.
	Adjacent(other AddressRange) bool
	// String renders the range as "start-end", or a single address when
	// Start == End, or "cidr" when the range exactly covers one.
	String() string
}

// ParseAddressRange parses a single IP ("203.0.113.5"), a CIDR block
// ("203.0.113.0/24"), or an explicit inclusive range
// ("203.0.113.5-203.0.113.9").
func ParseAddressRange(spec string) (AddressRange, error) {
	return parseAddressRange(spec)
}

// NewAddressRange builds a range directly from two endpoints, ordering them
// if necessary.
func NewAddressRange(a, b netip.Addr) (AddressRange, error) {
	return newAddressRange(a, b)
}

// AddressRangeSet is a merged, sorted collection of AddressRange. Inserting a
// range that overlaps or touches an existing one coalesces them into a
// single range, so the set always holds the minimal number of disjoint
// ranges describing its membership.
type AddressRangeSet interface {
	// Insert adds range to the set, merging with any overlapping or
	// adjacent ranges already present.
	Insert(r AddressRange)
	// InsertSpec tokenizes spec on whitespace, commas, and semicolons and
	// inserts each token independently. A token that parses with
	// ParseAddressRange is inserted immediately; otherwise it is treated
	// as a hostname and resolution is deferred: InsertSpec returns
	// immediately and the set is updated asynchronously once DNS
	// resolves, via the resolver configured with SetResolver (or
	// net.DefaultResolver if none was set). Concurrent InsertSpec calls
	// naming the same in-flight hostname share one lookup.
	InsertSpec(spec string) error
	// SetResolver overrides the resolver used by InsertSpec for deferred
	// hostname lookups. Not calling this uses net.DefaultResolver.
	SetResolver(r Resolver)
	// Contains reports whether addr is covered by any range in the set.
	Contains(addr netip.Addr) bool
	// Len returns the number of disjoint ranges currently in the set.
	Len() int
	// String renders the set as a comma-separated list of its ranges.
	String() string
}

// NewAddressRangeSet returns an empty AddressRangeSet.
func NewAddressRangeSet() AddressRangeSet {
	return newAddressRangeSet()
}

// Resolver resolves a hostname to zero or more IP addresses, satisfied by
// *net.Resolver.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// AddressFilter allows or denies client addresses using an allow list and a
// deny list, matching cbang's AddressFilter: an address is permitted when it
// is in the allow list, or when it is absent from the deny list.
type AddressFilter interface {
	// Allow adds spec (an IP, CIDR, range, or hostname) to the allow list.
	Allow(spec string) error
	// Deny adds spec to the deny list.
	Deny(spec string) error
	// AllowRange adds an already-parsed range to the allow list.
	AllowRange(r AddressRange)
	// DenyRange adds an already-parsed range to the deny list.
	DenyRange(r AddressRange)
	// IsAllowed reports whether addr may proceed: present in the allow
	// list, or absent from the deny list.
	IsAllowed(addr netip.Addr) bool
	// IsExplicitlyAllowed reports whether addr is present in the allow
	// list, regardless of the deny list.
	IsExplicitlyAllowed(addr netip.Addr) bool
	// String renders "allow=<set> deny=<set>".
	String() string
}

// NewAddressFilter returns an AddressFilter with empty allow and deny lists.
func NewAddressFilter() AddressFilter {
	return newAddressFilter()
}
