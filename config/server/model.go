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

package server

import (
	"fmt"
	"net"

	libval "github.com/go-playground/validator/v10"
	libtls "github.com/nabbar/golib/certificates"
	libnad "github.com/nabbar/golib/netaddr"

	liberr "github.com/nabbar/golib/errors"
	libfdp "github.com/nabbar/golib/fdpool"
	libsrv "github.com/nabbar/golib/httpserver"
)

func validateStruct(c *Config) liberr.Error {
	err := ErrorValidatorError.Error(nil)

	if er := libval.New().Struct(c); er != nil {
		if e, ok := er.(*libval.InvalidValidationError); ok {
			err.Add(e)
		}

		for _, e := range er.(libval.ValidationErrors) {
			//nolint goerr113
			err.Add(fmt.Errorf("config field '%s' is not validated by constraint '%s'", e.StructNamespace(), e.ActualTag()))
		}
	}

	if err.HasParent() {
		return err
	}

	return nil
}

func (c *Config) filter() (libnad.AddressFilter, liberr.Error) {
	if len(c.AllowedAddresses) == 0 && len(c.DeniedAddresses) == 0 {
		return nil, nil
	}

	f := libnad.NewAddressFilter()

	for _, a := range c.AllowedAddresses {
		if e := f.Allow(a); e != nil {
			return nil, ErrorValidatorError.Error(e)
		}
	}

	for _, d := range c.DeniedAddresses {
		if e := f.Deny(d); e != nil {
			return nil, ErrorValidatorError.Error(e)
		}
	}

	return f, nil
}

// hostOf returns the host part of a "host:port" listen address, falling
// back to the whole string if it doesn't split cleanly (matching
// ServerConfig.GetListen's tolerant behavior).
func hostOf(listen string) string {
	if host, _, err := net.SplitHostPort(listen); err == nil {
		return host
	}
	return listen
}

func (c *Config) engine(pool libfdp.FDPool, handler libsrv.HandlerFunc, upgrade libsrv.UpgradeFunc) (libsrv.Engine, liberr.Error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	flt, err := c.filter()
	if err != nil {
		return nil, err
	}

	cfg := libsrv.EngineConfig{
		Bind:              c.Listen,
		MaxConnections:    c.MaxConnections,
		ConnectionBacklog: c.ConnectionBacklog,
		MaxConnectionTTL:  c.MaxConnectionTTL,
		ReadTimeout:       c.ReadTimeout,
		WriteTimeout:      c.WriteTimeout,
		MaxHeaderSize:     c.MaxHeaderSize,
		MaxBodySize:       c.MaxBodySize,
		Filter:            flt,
		Upgrade:           upgrade,
	}

	if len(c.TLS.Certs) > 0 || c.TLS.InheritDefault {
		var def libtls.TLSConfig
		if c.getTLSDefault != nil {
			def = c.getTLSDefault()
		}

		ssl := c.TLS.NewFrom(def)
		if ssl.LenCertificatePair() > 0 {
			cfg.TLS = ssl.TlsConfig(hostOf(c.Listen))
		} else if c.TLSMandatory {
			return nil, ErrorValidatorError.Error(fmt.Errorf("tls is mandatory but no certificate is configured"))
		}
	}

	return libsrv.NewEngine(pool, cfg, handler), nil
}
