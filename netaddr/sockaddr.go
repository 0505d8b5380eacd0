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
	"strconv"
	"strings"
)

type sockAddr struct {
	addr netip.Addr
	port uint16
}

func (s sockAddr) Addr() netip.Addr { return s.addr }
func (s sockAddr) Port() uint16     { return s.port }

func (s sockAddr) String() string {
	if s.addr.Is4() {
		return s.addr.String() + ":" + strconv.Itoa(int(s.port))
	}
	return "[" + s.addr.String() + "]:" + strconv.Itoa(int(s.port))
}

func parseSockAddr(hostport string) (SockAddr, error) {
	host, portStr, err := splitHostPort(hostport)
	if err != nil {
		return nil, ErrorInvalidAddress.Error(err)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil, ErrorInvalidAddress.Error(err)
	}

	var port uint16
	if portStr != "" {
		p, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return nil, ErrorInvalidAddress.Error(err)
		}
		port = uint16(p)
	}

	return sockAddr{addr: addr, port: port}, nil
}

func splitHostPort(hostport string) (host, port string, err error) {
	if strings.HasPrefix(hostport, "[") {
		end := strings.IndexByte(hostport, ']')
		if end < 0 {
			return "", "", ErrorInvalidAddress.Error()
		}
		host = hostport[1:end]
		rest := hostport[end+1:]
		if strings.HasPrefix(rest, ":") {
			port = rest[1:]
		}
		return host, port, nil
	}

	idx := strings.LastIndexByte(hostport, ':')
	if idx < 0 {
		return hostport, "", nil
	}
	return hostport[:idx], hostport[idx+1:], nil
}
