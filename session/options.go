/*
Copyright AppsCode Inc. and Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package session

import (
	"time"

	"github.com/go-logr/logr"
)

// defaultPacketLenMax is spec.md §6's "packet_len_max is a client
// configuration (default e.g., 4 MiB)". It is the hard ceiling; a frame
// whose declared length is at or above it is always rejected.
const defaultPacketLenMax = 4 * 1024 * 1024

// defaultBufferSize is the receiver's reusable scratch buffer size,
// distinct from the packetLenMax ceiling (SUPPLEMENTED FEATURES #3):
// a frame that fits is read into this preallocated buffer; a larger one
// (still under packetLenMax) gets a one-off allocation.
const defaultBufferSize = 1536 * 1024

// defaultPingFraction and the timeout/N it divides realize spec.md
// §4.2: "the ping interval is derived from the negotiated timeout
// (typically timeout/3..timeout/2)".
const defaultPingFraction = 3

// Config collects every tunable this engine accepts, assembled via
// functional options (Option), the shape the teacher's own builder
// uses (zookeeper/kubedb_client_builder.go: WithNamespace/WithOwnerReference
// style chaining) rather than a struct literal or a viper-style config
// file — see SPEC_FULL.md "Configuration".
type Config struct {
	Servers []string

	SessionTimeout time.Duration
	ConnectTimeout time.Duration // 0 => session_timeout / len(Servers), spec.md §5

	BufferSize   int32 // reusable receive scratch buffer, distinct from PacketLenMax
	PacketLenMax int32 // hard ceiling on a single frame
	PingFraction time.Duration // divisor applied to negotiated timeout

	Dialer  Dialer
	Logger  logr.Logger
	Metrics MetricsSink

	Chroot        PathChrooter
	Watches       WatcherRegistry
	EventCallback func(WatchedEvent)

	AuthCreds []AuthCredential
}

// AuthCredential is one scheme/credential pair replayed via an Auth
// packet on every connect and reconnect, spec.md §4.4 step 6 and
// SPEC_FULL.md's supplemented "auth credential replay" feature.
type AuthCredential struct {
	Scheme string
	Auth   []byte
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithServers sets the static, pre-resolved server list (spec.md §1
// Non-goals: "no cluster discovery beyond a static, pre-resolved
// server list").
func WithServers(servers ...string) Option {
	return func(c *Config) { c.Servers = append([]string(nil), servers...) }
}

// WithSessionTimeout sets the requested session timeout sent in the
// ConnectRequest.
func WithSessionTimeout(d time.Duration) Option {
	return func(c *Config) { c.SessionTimeout = d }
}

// WithConnectTimeout overrides the per-dial timeout. Zero selects
// spec.md §5's suggested default of session_timeout/server_count.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectTimeout = d }
}

// WithMaxBufferSize sets packet_len_max, the hard ceiling on a single
// framed message (spec.md §6): a length prefix at or above this value
// is always rejected, regardless of WithBufferSize.
func WithMaxBufferSize(n int32) Option {
	return func(c *Config) { c.PacketLenMax = n }
}

// WithBufferSize sets the receiver's reusable scratch buffer size,
// distinct from the packet_len_max ceiling (SUPPLEMENTED FEATURES #3):
// frames that fit reuse this buffer; larger ones (still under
// packet_len_max) get a one-off allocation.
func WithBufferSize(n int32) Option {
	return func(c *Config) { c.BufferSize = n }
}

// WithEventCallback installs an optional synchronous callback invoked
// inline, before the event reaches C6's queue, for every WatchedEvent
// (SUPPLEMENTED FEATURES #1). The callback must not block; the engine
// does not enforce this, matching the teacher's dependency.
func WithEventCallback(cb func(WatchedEvent)) Option {
	return func(c *Config) { c.EventCallback = cb }
}

// WithPingFraction overrides the divisor applied to the negotiated
// timeout to compute the ping interval (spec.md §4.2: "typically
// timeout/3..timeout/2"). A value of 3 (the default) yields
// timeout/3.
func WithPingFraction(fraction time.Duration) Option {
	return func(c *Config) { c.PingFraction = fraction }
}

// WithDialer overrides the transport dial function, primarily for
// tests that want an in-memory net.Conn pair instead of a real TCP
// socket.
func WithDialer(d Dialer) Option {
	return func(c *Config) { c.Dialer = d }
}

// WithLogger overrides the logr.Logger sink; the default is
// klog.Background(), matching the teacher's bare klog usage.
func WithLogger(l logr.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics overrides the MetricsSink; the default is NopMetrics.
func WithMetrics(m MetricsSink) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithChroot installs the external chroot-stripping collaborator
// (spec.md §4.6).
func WithChroot(c2 PathChrooter) Option {
	return func(c *Config) { c.Chroot = c2 }
}

// WithWatcherRegistry installs the external watcher registry
// collaborator (spec.md §4.7).
func WithWatcherRegistry(r WatcherRegistry) Option {
	return func(c *Config) { c.Watches = r }
}

// WithAuth appends an auth credential replayed on every (re)connect.
func WithAuth(scheme string, auth []byte) Option {
	return func(c *Config) {
		c.AuthCreds = append(c.AuthCreds, AuthCredential{Scheme: scheme, Auth: auth})
	}
}

func newConfig(opts []Option) (Config, error) {
	c := Config{
		BufferSize:   defaultBufferSize,
		PacketLenMax: defaultPacketLenMax,
		PingFraction: defaultPingFraction,
		Dialer:       defaultDialer,
		Logger:       defaultLogger(),
		Metrics:      NopMetrics{},
	}
	for _, opt := range opts {
		opt(&c)
	}
	if len(c.Servers) == 0 {
		return c, errNoServersConfigured
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 30 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = c.SessionTimeout / time.Duration(len(c.Servers))
	}
	return c, nil
}

func (c *Config) pingInterval(negotiated time.Duration) time.Duration {
	if c.PingFraction <= 0 {
		return negotiated / defaultPingFraction
	}
	return negotiated / c.PingFraction
}
