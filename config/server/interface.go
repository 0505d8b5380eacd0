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

// Package server holds the viper/mapstructure-loadable settings for one
// httpserver.Engine listener, mirroring the shape of the teacher's own
// httpserver.ServerConfig and its config/components/http binding.
package server

import (
	"time"

	libtls "github.com/nabbar/golib/certificates"
	liberr "github.com/nabbar/golib/errors"
	libfdp "github.com/nabbar/golib/fdpool"
	libsrv "github.com/nabbar/golib/httpserver"
)

// Config is the serializable configuration for one raw-fd HTTP(S) listener.
type Config struct {
	// Name identifies this listener among several in a pool; if empty,
	// Listen is used.
	Name string `mapstructure:"name" json:"name" yaml:"name" toml:"name"`

	// Listen is the "host:port" address to bind and listen on.
	Listen string `mapstructure:"listen" json:"listen" yaml:"listen" toml:"listen" validate:"required,hostname_port"`

	// MaxConnections caps simultaneously open connections; zero means
	// unlimited.
	MaxConnections uint `mapstructure:"max_connections" json:"max_connections" yaml:"max_connections" toml:"max_connections"`

	// ConnectionBacklog is the listen() backlog; zero uses a default.
	ConnectionBacklog int `mapstructure:"connection_backlog" json:"connection_backlog" yaml:"connection_backlog" toml:"connection_backlog"`

	// MaxConnectionTTL, if non-zero, closes a connection this long after
	// it was accepted regardless of activity.
	MaxConnectionTTL time.Duration `mapstructure:"max_connection_ttl" json:"max_connection_ttl" yaml:"max_connection_ttl" toml:"max_connection_ttl"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout" toml:"write_timeout"`

	MaxHeaderSize int `mapstructure:"max_header_size" json:"max_header_size" yaml:"max_header_size" toml:"max_header_size"`
	MaxBodySize   int `mapstructure:"max_body_size" json:"max_body_size" yaml:"max_body_size" toml:"max_body_size"`

	// AllowedAddresses and DeniedAddresses populate an AddressFilter: each
	// entry is an IP, CIDR, range, or hostname per netaddr's grammar.
	AllowedAddresses []string `mapstructure:"allowed_addresses" json:"allowed_addresses" yaml:"allowed_addresses" toml:"allowed_addresses"`
	DeniedAddresses  []string `mapstructure:"denied_addresses" json:"denied_addresses" yaml:"denied_addresses" toml:"denied_addresses"`

	// TLSMandatory requires a usable TLS configuration for Engine to
	// accept TLS connections; if false and TLS has no certificate pair,
	// the engine serves plain HTTP.
	TLSMandatory bool `mapstructure:"tls_mandatory" json:"tls_mandatory" yaml:"tls_mandatory" toml:"tls_mandatory"`

	// TLS is the certificate/cipher/version configuration for this
	// listener, reused unchanged from the certificates package.
	TLS libtls.Config `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`

	getTLSDefault func() libtls.TLSConfig
}

// SetDefaultTLS registers a fallback TLSConfig consulted when
// TLS.InheritDefault is set, matching ServerConfig.SetDefaultTLS.
func (c *Config) SetDefaultTLS(f func() libtls.TLSConfig) {
	c.getTLSDefault = f
}

// Validate checks Config against its struct tags and reports a missing
// listen address explicitly (hostname_port alone produces a less specific
// message).
func (c *Config) Validate() liberr.Error {
	if c.Listen == "" {
		return ErrorMissingListen.Error(nil)
	}
	return validateStruct(c)
}

// Engine builds a running httpserver.Engine bound to pool from this
// configuration and handler.
func (c *Config) Engine(pool libfdp.FDPool, handler libsrv.HandlerFunc) (libsrv.Engine, liberr.Error) {
	return c.engine(pool, handler, nil)
}

// EngineWithUpgrade is like Engine but also wires a WebSocket upgrade hook.
func (c *Config) EngineWithUpgrade(pool libfdp.FDPool, handler libsrv.HandlerFunc, upgrade libsrv.UpgradeFunc) (libsrv.Engine, liberr.Error) {
	return c.engine(pool, handler, upgrade)
}
