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

package websocket

import (
	"crypto/sha1"
	"encoding/base64"
	"strconv"
	"strings"

	libhtc "github.com/nabbar/golib/httpconn"
)

const acceptKeyGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey computes Sec-WebSocket-Accept from the client's
// Sec-WebSocket-Key, per RFC 6455 section 1.3.
func AcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + acceptKeyGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// IsUpgradeRequest reports whether hdr and version describe a valid
// WebSocket upgrade request: Connection contains "upgrade", Upgrade is
// "websocket", a non-empty Sec-WebSocket-Key is present, and version is at
// least HTTP/1.1.
func IsUpgradeRequest(hdr libhtc.Header, version string) bool {
	if !strings.Contains(strings.ToLower(hdr.Get("Connection")), "upgrade") {
		return false
	}
	if !strings.EqualFold(hdr.Get("Upgrade"), "websocket") {
		return false
	}
	if hdr.Get("Sec-WebSocket-Key") == "" {
		return false
	}
	return versionAtLeast(version, 1, 1)
}

func versionAtLeast(version string, major, minor int) bool {
	v := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(version)), "HTTP/")
	parts := strings.SplitN(v, ".", 2)
	if len(parts) != 2 {
		return false
	}

	vMajor, err1 := strconv.Atoi(parts[0])
	vMinor, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return false
	}

	if vMajor != major {
		return vMajor > major
	}
	return vMinor >= minor
}
