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

package httpconn

import (
	"strings"

	libbuf "github.com/nabbar/golib/buffer"
)

// field is one header line, keeping the caller's original casing for output
// while comparisons go through canon.
type field struct {
	name  string
	value string
}

func canon(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Header is an ordered, case-insensitive multimap. Insertion order is
// preserved both for distinct names and for repeated values of the same
// name, matching how cbang's header block is parsed and re-serialized.
type Header struct {
	fields []field
}

// NewHeader returns an empty Header.
func NewHeader() Header {
	return Header{}
}

// Add appends a value for name without disturbing any existing value.
func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, field{name: name, value: value})
}

// Set replaces every existing value for name with value, keeping the
// position of the first occurrence (or appending if name is new).
func (h *Header) Set(name, value string) {
	c := canon(name)
	for i := range h.fields {
		if canon(h.fields[i].name) == c {
			h.fields[i].value = value
			h.removeFrom(i+1, c)
			return
		}
	}
	h.Add(name, value)
}

func (h *Header) removeFrom(start int, c string) {
	out := h.fields[:start]
	for _, f := range h.fields[start:] {
		if canon(f.name) != c {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Del removes every value for name.
func (h *Header) Del(name string) {
	c := canon(name)
	out := h.fields[:0]
	for _, f := range h.fields {
		if canon(f.name) != c {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Get returns the first value for name, or "" if absent.
func (h Header) Get(name string) string {
	c := canon(name)
	for _, f := range h.fields {
		if canon(f.name) == c {
			return f.value
		}
	}
	return ""
}

// Values returns every value for name in insertion order.
func (h Header) Values(name string) []string {
	c := canon(name)
	var out []string
	for _, f := range h.fields {
		if canon(f.name) == c {
			out = append(out, f.value)
		}
	}
	return out
}

// Has reports whether name appears at least once.
func (h Header) Has(name string) bool {
	c := canon(name)
	for _, f := range h.fields {
		if canon(f.name) == c {
			return true
		}
	}
	return false
}

// Len returns the number of header lines.
func (h Header) Len() int {
	return len(h.fields)
}

// Merge appends every field of other onto h, preserving other's order.
func (h *Header) Merge(other Header) {
	h.fields = append(h.fields, other.fields...)
}

// WriteTo serializes every field as "Name: value\r\n" onto buf.
func (h Header) WriteTo(buf libbuf.Buffer) error {
	for _, f := range h.fields {
		if err := buf.AddString(f.name); err != nil {
			return err
		}
		if err := buf.AddString(": "); err != nil {
			return err
		}
		if err := buf.AddString(f.value); err != nil {
			return err
		}
		if err := buf.AddString("\r\n"); err != nil {
			return err
		}
	}
	return nil
}

// ParseHeaderLines builds a Header from raw "Name: value" lines, honoring
// RFC 7230 obs-fold continuation lines (one starting with a space or tab
// belongs to the previous field).
func ParseHeaderLines(lines []string) Header {
	h := NewHeader()

	for _, line := range lines {
		if line == "" {
			continue
		}

		if (line[0] == ' ' || line[0] == '\t') && len(h.fields) > 0 {
			last := &h.fields[len(h.fields)-1]
			last.value = last.value + " " + strings.TrimSpace(line)
			continue
		}

		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}

		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		h.Add(name, value)
	}

	return h
}
