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

package netaddr

import (
	"context"
	"net"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// rangeSet keeps its ranges sorted by lo and merges on insert, so Contains
// can binary-search instead of scanning linearly.
type rangeSet struct {
	mu     sync.RWMutex
	ranges []*addressRange
	res    Resolver

	// inflightMu guards inflight, the set of hostnames currently being
	// resolved, so concurrent InsertSpec calls naming the same hostname
	// share one DNS lookup instead of racing N of them.
	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

func newAddressRangeSet() AddressRangeSet {
	return &rangeSet{}
}

func (s *rangeSet) Insert(r AddressRange) {
	ar, ok := r.(*addressRange)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(ar)
}

func (s *rangeSet) insertLocked(ar *addressRange) {
	i := sort.Search(len(s.ranges), func(i int) bool {
		return !bytesLess(s.ranges[i].lo, ar.lo)
	})

	merged := ar
	out := make([]*addressRange, 0, len(s.ranges)+1)
	out = append(out, s.ranges[:i]...)

	j := i
	for j < len(s.ranges) && (s.ranges[j].Overlaps(merged) || s.ranges[j].Adjacent(merged)) {
		merged = merged.merge(s.ranges[j])
		j++
	}
	// also check backwards from i-1, since a lower-lo range can still
	// overlap or be adjacent to the new one.
	for len(out) > 0 && (out[len(out)-1].Overlaps(merged) || out[len(out)-1].Adjacent(merged)) {
		merged = merged.merge(out[len(out)-1])
		out = out[:len(out)-1]
	}

	out = append(out, merged)
	out = append(out, s.ranges[j:]...)
	s.ranges = out
}

func (s *rangeSet) SetResolver(r Resolver) {
	s.mu.Lock()
	s.res = r
	s.mu.Unlock()
}

// InsertSpec tokenizes spec on whitespace, commas, and semicolons, and
// inserts each token independently: a token that parses as a literal
// address, CIDR, or range is inserted immediately, otherwise it is treated
// as a hostname and resolved asynchronously.
func (s *rangeSet) InsertSpec(spec string) error {
	for _, tok := range splitSpec(spec) {
		s.insertOneSpec(tok)
	}
	return nil
}

func splitSpec(spec string) []string {
	return strings.FieldsFunc(spec, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}

func (s *rangeSet) insertOneSpec(tok string) {
	if r, err := parseAddressRange(tok); err == nil {
		s.Insert(r)
		return
	}

	// Not a literal address/CIDR/range: treat as a hostname and resolve
	// asynchronously, matching the deferred-insertion behaviour the
	// original performs through its DNS cache. A lookup already in
	// flight for the same hostname is left to finish on its own; a
	// second goroutine racing it would only duplicate the query.
	s.resolveAsync(tok)
}

func (s *rangeSet) resolveAsync(host string) {
	s.inflightMu.Lock()
	if s.inflight == nil {
		s.inflight = make(map[string]struct{})
	}
	if _, busy := s.inflight[host]; busy {
		s.inflightMu.Unlock()
		return
	}
	s.inflight[host] = struct{}{}
	s.inflightMu.Unlock()

	go func() {
		defer func() {
			s.inflightMu.Lock()
			delete(s.inflight, host)
			s.inflightMu.Unlock()
		}()
		s.resolveAndInsert(host)
	}()
}

func (s *rangeSet) resolveAndInsert(host string) {
	s.mu.RLock()
	res := s.res
	s.mu.RUnlock()

	if res == nil {
		res = net.DefaultResolver
	}

	addrs, err := res.LookupHost(context.Background(), host)
	if err != nil {
		return
	}

	for _, a := range addrs {
		ip, perr := netip.ParseAddr(a)
		if perr != nil {
			continue
		}
		s.Insert(&addressRange{lo: addrBytes(ip), hi: addrBytes(ip), is4: ip.Is4()})
	}
}

func (s *rangeSet) Contains(addr netip.Addr) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := addrBytes(addr)
	i := sort.Search(len(s.ranges), func(i int) bool {
		return !bytesLess(s.ranges[i].hi, b)
	})
	return i < len(s.ranges) && !bytesLess(b, s.ranges[i].lo)
}

func (s *rangeSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ranges)
}

func (s *rangeSet) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parts := make([]string, len(s.ranges))
	for i, r := range s.ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}
