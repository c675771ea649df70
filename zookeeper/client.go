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

// Package zookeeper is a facade over session.Session: it supplies the
// external collaborators the engine deliberately leaves out (spec.md
// §1) — a watcher registry, a chroot helper — and a fluent builder for
// assembling a session the way KubeDBClientBuilder assembles a driver
// connection in the teacher repo.
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/chaelim/zookeeper/session"
)

const defaultTimeout = 3 * time.Second

// ClientBuilder assembles a Client from a server address list plus
// optional auth and chroot settings, fluent-chained the way
// zookeeper/kubedb_client_builder.go's KubeDBClientBuilder is.
type ClientBuilder struct {
	ctx     context.Context
	servers []string
	timeout time.Duration
	chroot  string

	authScheme string
	authSecret []byte

	disableAuth bool
}

// NewClientBuilder starts a builder for the given server list.
func NewClientBuilder(servers ...string) *ClientBuilder {
	return &ClientBuilder{
		ctx:     context.Background(),
		servers: servers,
		timeout: defaultTimeout,
	}
}

func (b *ClientBuilder) WithContext(ctx context.Context) *ClientBuilder {
	b.ctx = ctx
	return b
}

func (b *ClientBuilder) WithTimeout(d time.Duration) *ClientBuilder {
	b.timeout = d
	return b
}

func (b *ClientBuilder) WithChroot(prefix string) *ClientBuilder {
	b.chroot = prefix
	return b
}

func (b *ClientBuilder) WithDigestAuth(userPass string) *ClientBuilder {
	b.authScheme = "digest"
	b.authSecret = []byte(userPass)
	return b
}

func (b *ClientBuilder) WithAuthDisabled() *ClientBuilder {
	b.disableAuth = true
	return b
}

// Client wraps a live session.Session plus the collaborators this
// facade supplies it.
type Client struct {
	Session  *session.Session
	Registry *Registry
}

// Connect builds and starts the session, blocking until the initial
// handshake either completes (state CONNECTED) or the builder's
// timeout elapses, matching the teacher's GetZooKeeperClient loop
// ("for event := range session { if event.State == zk.StateConnected
// { break } }").
func (b *ClientBuilder) Connect() (*Client, error) {
	if len(b.servers) == 0 {
		return nil, errors.New("zookeeper: at least one server is required")
	}
	if !b.disableAuth && b.authScheme == "" {
		klog.Info("zookeeper: auth not configured; connecting without credentials")
	}

	registry := NewRegistry()
	opts := []session.Option{
		session.WithServers(b.servers...),
		session.WithSessionTimeout(b.timeout),
		session.WithWatcherRegistry(registry),
	}
	if b.chroot != "" {
		opts = append(opts, session.WithChroot(Chroot{Prefix: b.chroot}))
	}
	if !b.disableAuth && b.authScheme != "" {
		opts = append(opts, session.WithAuth(b.authScheme, b.authSecret))
	}

	s, err := session.NewSession(opts...)
	if err != nil {
		return nil, fmt.Errorf("zookeeper: %w", err)
	}

	connected := make(chan struct{}, 1)
	registry.SubscribeState(func(ev session.WatchedEvent) {
		if ev.State == session.StateConnected {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})

	select {
	case <-connected:
	case <-time.After(b.timeout):
		s.Dispose()
		return nil, errors.New("zookeeper: timed out waiting for CONNECTED")
	case <-b.ctx.Done():
		s.Dispose()
		return nil, b.ctx.Err()
	}

	return &Client{Session: s, Registry: registry}, nil
}

// Close requests a graceful session shutdown (see session.Session.Close).
func (c *Client) Close(timeout time.Duration) {
	c.Session.Close(timeout)
}
