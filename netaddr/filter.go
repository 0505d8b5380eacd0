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

import "net/netip"

type filter struct {
	allow AddressRangeSet
	deny  AddressRangeSet
}

func newAddressFilter() AddressFilter {
	return &filter{allow: newAddressRangeSet(), deny: newAddressRangeSet()}
}

func (f *filter) Allow(spec string) error { return f.allow.InsertSpec(spec) }
func (f *filter) Deny(spec string) error  { return f.deny.InsertSpec(spec) }

func (f *filter) AllowRange(r AddressRange) { f.allow.Insert(r) }
func (f *filter) DenyRange(r AddressRange)  { f.deny.Insert(r) }

// IsAllowed matches the original: an address passes if it is explicitly
// allow-listed, or if it is simply absent from the deny list.
func (f *filter) IsAllowed(addr netip.Addr) bool {
	return f.allow.Contains(addr) || !f.deny.Contains(addr)
}

func (f *filter) IsExplicitlyAllowed(addr netip.Addr) bool {
	return f.allow.Contains(addr)
}

func (f *filter) String() string {
	return "allow=" + f.allow.String() + " deny=" + f.deny.String()
}
