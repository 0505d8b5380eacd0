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
	"net/netip"
	"strings"
)

// addressRange stores both endpoints as 16-byte big-endian forms so v4 and
// v6 addresses compare uniformly regardless of which literal form produced
// them (matches the original's use of a single wide integer for both
// families).
type addressRange struct {
	lo, hi [16]byte
	is4    bool
}

func addrBytes(a netip.Addr) [16]byte {
	if a.Is4In6() {
		a = a.Unmap()
	}
	if a.Is4() {
		b4 := a.As4()
		var b [16]byte
		copy(b[12:], b4[:])
		return b
	}
	return a.As16()
}

func bytesLess(a, b [16]byte) bool {
	for i := 0; i < 16; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func bytesEqual(a, b [16]byte) bool { return a == b }

func bytesAdd1(a [16]byte) (out [16]byte, overflow bool) {
	out = a
	for i := 15; i >= 0; i-- {
		out[i]++
		if out[i] != 0 {
			return out, false
		}
	}
	return out, true
}

func bytesToAddr(b [16]byte, is4 bool) netip.Addr {
	if is4 {
		var b4 [4]byte
		copy(b4[:], b[12:])
		return netip.AddrFrom4(b4)
	}
	return netip.AddrFrom16(b)
}

func newAddressRange(a, b netip.Addr) (AddressRange, error) {
	if a.Is4() != b.Is4() {
		return nil, ErrorFamilyMismatch.Error()
	}

	lo, hi := addrBytes(a), addrBytes(b)
	if bytesLess(hi, lo) {
		lo, hi = hi, lo
	}

	return &addressRange{lo: lo, hi: hi, is4: a.Is4()}, nil
}

// parseAddressRange accepts a bare IP, a CIDR block, or an explicit
// "start-end" inclusive range.
func parseAddressRange(spec string) (AddressRange, error) {
	spec = strings.TrimSpace(spec)

	if strings.Contains(spec, "/") {
		prefix, err := netip.ParsePrefix(spec)
		if err != nil {
			return nil, ErrorInvalidRange.Error(err)
		}
		return cidrToRange(prefix), nil
	}

	if idx := strings.IndexByte(spec, '-'); idx > 0 {
		startStr, endStr := spec[:idx], spec[idx+1:]
		start, err := netip.ParseAddr(strings.TrimSpace(startStr))
		if err != nil {
			return nil, ErrorInvalidRange.Error(err)
		}
		end, err := netip.ParseAddr(strings.TrimSpace(endStr))
		if err != nil {
			return nil, ErrorInvalidRange.Error(err)
		}
		return newAddressRange(start, end)
	}

	addr, err := netip.ParseAddr(spec)
	if err != nil {
		return nil, ErrorInvalidRange.Error(err)
	}
	return newAddressRange(addr, addr)
}

func cidrToRange(p netip.Prefix) AddressRange {
	p = p.Masked()
	base := addrBytes(p.Addr())
	bits := p.Bits()

	total := 32
	if !p.Addr().Is4() {
		total = 128
	}

	hostBits := total - bits
	hi := base

	// Set the low hostBits bits of hi to 1 (network order, MSB first in
	// the 16-byte form, offset so v4 addresses occupy the last 4 bytes).
	offset := 16 - total/8
	idx := 15
	remaining := hostBits
	for remaining > 0 && idx >= offset {
		if remaining >= 8 {
			hi[idx] = 0xff
			remaining -= 8
		} else {
			hi[idx] |= (1 << remaining) - 1
			remaining = 0
		}
		idx--
	}

	return &addressRange{lo: base, hi: hi, is4: p.Addr().Is4()}
}

func (r *addressRange) Start() netip.Addr { return bytesToAddr(r.lo, r.is4) }
func (r *addressRange) End() netip.Addr   { return bytesToAddr(r.hi, r.is4) }

func (r *addressRange) Contains(addr netip.Addr) bool {
	if addr.Is4() != r.is4 {
		return false
	}
	b := addrBytes(addr)
	return !bytesLess(b, r.lo) && !bytesLess(r.hi, b)
}

func (r *addressRange) Overlaps(other AddressRange) bool {
	o, ok := other.(*addressRange)
	if !ok || o.is4 != r.is4 {
		return false
	}
	return !bytesLess(r.hi, o.lo) && !bytesLess(o.hi, r.lo)
}

func (r *addressRange) Adjacent(other AddressRange) bool {
	o, ok := other.(*addressRange)
	if !ok || o.is4 != r.is4 {
		return false
	}

	if next, overflow := bytesAdd1(r.hi); !overflow && bytesEqual(next, o.lo) {
		return true
	}
	if next, overflow := bytesAdd1(o.hi); !overflow && bytesEqual(next, r.lo) {
		return true
	}
	return false
}

func (r *addressRange) String() string {
	if bytesEqual(r.lo, r.hi) {
		return r.Start().String()
	}
	return r.Start().String() + "-" + r.End().String()
}

// merge returns the union of r and o, which must already overlap or be
// adjacent.
func (r *addressRange) merge(o *addressRange) *addressRange {
	lo := r.lo
	if bytesLess(o.lo, lo) {
		lo = o.lo
	}
	hi := r.hi
	if bytesLess(hi, o.hi) {
		hi = o.hi
	}
	return &addressRange{lo: lo, hi: hi, is4: r.is4}
}
