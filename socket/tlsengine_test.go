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

package socket_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"

	libsck "github.com/nabbar/golib/socket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/sys/unix"
)

func selfSignedCert() tls.Certificate {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	Expect(err).ToNot(HaveOccurred())

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	Expect(err).ToNot(HaveOccurred())

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

var _ = Describe("TLS engine", func() {
	It("completes a handshake between a server and client engine over a socketpair", func() {
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		Expect(err).ToNot(HaveOccurred())
		defer unix.Close(fds[0])
		defer unix.Close(fds[1])

		cert := selfSignedCert()
		serverCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
		clientCfg := &tls.Config{InsecureSkipVerify: true}

		srv, err := libsck.NewServerEngine(fds[0], serverCfg)
		Expect(err).ToNot(HaveOccurred())
		defer srv.Close()

		cli, err := libsck.NewClientEngine(fds[1], "localhost", clientCfg)
		Expect(err).ToNot(HaveOccurred())
		defer cli.Close()

		done := make(chan error, 2)
		go func() {
			buf := make([]byte, 5)
			for {
				n, rerr := srv.Read(buf)
				if n > 0 {
					_, werr := srv.Write(buf[:n])
					done <- werr
					return
				}
				if rerr != nil {
					done <- rerr
					return
				}
			}
		}()

		go func() {
			for {
				n, werr := cli.Write([]byte("hello"))
				if n > 0 || werr != nil {
					done <- werr
					return
				}
			}
		}()

		Eventually(done, 5*time.Second).Should(Receive(BeNil()))
		Eventually(done, 5*time.Second).Should(Receive(BeNil()))

		got := make([]byte, 5)
		Eventually(func() int {
			n, _ := cli.Read(got)
			return n
		}, 5*time.Second, time.Millisecond).Should(Equal(5))
		Expect(string(got)).To(Equal("hello"))
	})
})
