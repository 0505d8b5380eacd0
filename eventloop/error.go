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

package eventloop

import "github.com/nabbar/golib/errors"

const (
	ErrorEpollCreate errors.CodeError = iota + errors.MinPkgEventLoop
	ErrorEpollCtl
	ErrorEpollWait
	ErrorFDAlreadyRegistered
	ErrorFDNotRegistered
	ErrorUnknownEvent
)

func init() {
	errors.RegisterIdFctMessage(ErrorEpollCreate, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrorEpollCreate:
		return "failed to create epoll instance"
	case ErrorEpollCtl:
		return "epoll_ctl failed"
	case ErrorEpollWait:
		return "epoll_wait failed"
	case ErrorFDAlreadyRegistered:
		return "file descriptor already registered with this loop"
	case ErrorFDNotRegistered:
		return "file descriptor not registered with this loop"
	case ErrorUnknownEvent:
		return "event was not created by this loop"
	}

	return ""
}
