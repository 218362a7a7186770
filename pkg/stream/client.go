// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package stream

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

const (
	StatusDisconnected = "DISCONNECTED"
	StatusConnecting   = "CONNECTING"
	StatusWillRetry    = "DISCONNECTED:WILL-RETRY"
)

// Resolver finds the transport that serves a server address. A non-empty
// forced name bypasses address routing.
type Resolver interface {
	Resolve(ctx context.Context, serverAddress, forced string) (core.Transport, error)
}

// Client is a streaming session towards the transports behind a Resolver.
// Connect and Disconnect return immediately; progress is reported to the
// ClientListeners.
type Client struct {
	ConnectionDetails *ConnectionDetails
	ConnectionOptions *ConnectionOptions

	resolver Resolver
	log      Logger

	mu        sync.Mutex
	status    string
	listeners []ClientListener
	subs      []*Subscription
	transport core.Transport
	runCtx    context.Context
	cancel    context.CancelFunc
	outbox    *outbox
	pending   []*outgoing
}

func NewClient(serverAddress, adapterSet string, resolver Resolver) (*Client, error) {
	c := &Client{
		resolver: resolver,
		log:      getLogger(CategorySession),
		status:   StatusDisconnected,
	}
	c.ConnectionDetails = &ConnectionDetails{notify: c.propertyChanged}
	c.ConnectionOptions = newConnectionOptions(c.propertyChanged)
	if err := c.ConnectionDetails.SetServerAddress(serverAddress); err != nil {
		return nil, err
	}
	c.ConnectionDetails.SetAdapterSet(adapterSet)
	return c, nil
}

func (c *Client) AddListener(l ClientListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *Client) RemoveListener(l ClientListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = slices.DeleteFunc(c.listeners, func(e ClientListener) bool { return e == l })
}

func (c *Client) Listeners() []ClientListener {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.listeners)
}

func (c *Client) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) propertyChanged(property string) {
	for _, l := range c.Listeners() {
		l.OnPropertyChange(property)
	}
}

func (c *Client) setStatus(ctx context.Context, status string) bool {
	c.mu.Lock()
	if ctx != nil && ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}
	changed := c.status != status
	c.status = status
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	if changed {
		if c.log.IsInfoEnabled() {
			c.log.Info("status changed: " + status)
		}
		for _, l := range listeners {
			l.OnStatusChange(status)
		}
	}
	return true
}

// Connect starts opening a session. It is a no-op unless the client is
// DISCONNECTED.
func (c *Client) Connect() error {
	if c.ConnectionDetails.ServerAddress() == "" {
		return fmt.Errorf("%w: configure the server address before trying to connect", core.ErrIllegalState)
	}
	c.mu.Lock()
	if c.status != StatusDisconnected {
		c.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.runCtx = ctx
	c.cancel = cancel
	c.mu.Unlock()

	c.setStatus(ctx, StatusConnecting)
	go c.run(ctx)
	return nil
}

func (c *Client) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error(fmt.Sprintf("connection panic recovered: %v", r))
		}
	}()

	address := c.ConnectionDetails.ServerAddress()
	forced := c.ConnectionOptions.ForcedTransport()
	timeout := time.Duration(c.ConnectionOptions.ReconnectTimeout()) * time.Millisecond

	var tr core.Transport
	attempt := func() error {
		c.setStatus(ctx, StatusConnecting)
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		t, err := c.resolver.Resolve(attemptCtx, address, forced)
		if err != nil {
			if errors.Is(err, core.ErrNoRoute) || errors.Is(err, core.ErrTransportNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		tr = t
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warn(fmt.Sprintf("connection to %s failed, retrying in %s: %v", address, wait, err))
		c.setStatus(ctx, StatusWillRetry)
	}

	err := backoff.RetryNotify(attempt, backoff.WithContext(c.ConnectionOptions.retryPolicy(), ctx), notify)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.log.Error(fmt.Sprintf("cannot connect to %s: %v", address, err))
		c.mu.Lock()
		if c.runCtx == ctx {
			c.cancel()
			c.runCtx, c.cancel = nil, nil
		}
		c.mu.Unlock()
		for _, l := range c.Listeners() {
			l.OnServerError(ErrorCodeNoTransport, err.Error())
		}
		c.setStatus(nil, StatusDisconnected)
		return
	}
	c.established(ctx, tr, address)
}

func (c *Client) established(ctx context.Context, tr core.Transport, address string) {
	var lost <-chan struct{}
	if m, ok := tr.(core.Monitored); ok {
		lost = m.Lost()
	}

	c.mu.Lock()
	if c.runCtx != ctx || ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.transport = tr
	box := newOutbox()
	for _, m := range c.pending {
		box.push(m)
	}
	c.pending = nil
	c.outbox = box
	subs := slices.Clone(c.subs)
	c.mu.Unlock()

	d := c.ConnectionDetails
	d.mu.Lock()
	d.sessionID = uuid.New().String()
	d.serverSocketName = tr.Name()
	d.serverInstanceAddress = address
	d.mu.Unlock()
	c.ConnectionOptions.grantBandwidth()

	for _, p := range []string{"sessionId", "serverSocketName", "serverInstanceAddress", "realMaxBandwidth"} {
		c.propertyChanged(p)
	}
	if !c.setStatus(ctx, "CONNECTED:"+strings.ToUpper(tr.Type())+"-STREAMING") {
		return
	}

	go c.sendLoop(ctx, tr, box)
	if !c.isCurrent(ctx) {
		return
	}
	adapterSet := d.AdapterSet()
	for _, sub := range subs {
		sub.start(ctx, tr, adapterSet)
	}
	if lost != nil {
		go c.watchTransport(ctx, tr, lost)
	}
}

// isCurrent reports whether ctx still belongs to the client's session.
func (c *Client) isCurrent(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runCtx == ctx && ctx.Err() == nil
}

// Disconnect closes the session, stops every subscription and aborts
// messages not yet sent. Subscriptions stay in the client and resume on
// the next Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.status == StatusDisconnected {
		c.mu.Unlock()
		return
	}
	cancel, box, pending, subs := c.detachLocked()
	c.mu.Unlock()

	c.teardown(cancel, box, pending, subs)
	c.setStatus(nil, StatusDisconnected)
}

// detachLocked clears the state of the current session. The caller passes
// the results to teardown once the lock is released.
func (c *Client) detachLocked() (context.CancelFunc, *outbox, []*outgoing, []*Subscription) {
	cancel := c.cancel
	c.runCtx, c.cancel = nil, nil
	c.transport = nil
	box := c.outbox
	c.outbox = nil
	pending := c.pending
	c.pending = nil
	return cancel, box, pending, slices.Clone(c.subs)
}

func (c *Client) teardown(cancel context.CancelFunc, box *outbox, pending []*outgoing, subs []*Subscription) {
	if cancel != nil {
		cancel()
	}
	for _, sub := range subs {
		sub.stop()
	}
	var aborted []*outgoing
	if box != nil {
		aborted = box.drain()
	}
	for _, m := range append(aborted, pending...) {
		m.abort(false)
	}

	d := c.ConnectionDetails
	d.mu.Lock()
	d.sessionID = ""
	d.mu.Unlock()
	c.ConnectionOptions.revokeBandwidth()
}

// watchTransport waits for the broker connection behind tr to drop while
// ctx is the current session. The session is then closed, reported with
// ErrorCodeTransportFailure and opened again from scratch.
func (c *Client) watchTransport(ctx context.Context, tr core.Transport, lost <-chan struct{}) {
	select {
	case <-ctx.Done():
		return
	case <-lost:
	}
	reason := fmt.Sprintf("connection to transport %s lost", tr.Name())
	if m, ok := tr.(core.Monitored); ok && m.LostErr() != nil {
		reason += ": " + m.LostErr().Error()
	}

	c.mu.Lock()
	if c.runCtx != ctx {
		c.mu.Unlock()
		return
	}
	cancel, box, pending, subs := c.detachLocked()
	next, nextCancel := context.WithCancel(context.Background())
	c.runCtx, c.cancel = next, nextCancel
	c.mu.Unlock()

	c.log.Warn(reason)
	c.teardown(cancel, box, pending, subs)
	for _, l := range c.Listeners() {
		l.OnServerError(ErrorCodeTransportFailure, reason)
	}
	if c.setStatus(next, StatusWillRetry) {
		go c.run(next)
	}
}

// Subscribe activates sub on this client. Updates start flowing as soon
// as the client is connected.
func (c *Client) Subscribe(sub *Subscription) error {
	sub.mu.Lock()
	if sub.active {
		sub.mu.Unlock()
		return fmt.Errorf("%w: cannot subscribe to an active Subscription", core.ErrIllegalState)
	}
	if err := sub.validateLocked(); err != nil {
		sub.mu.Unlock()
		return err
	}
	sub.active = true
	sub.client = c
	sub.mu.Unlock()

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	ctx, tr := c.runCtx, c.transport
	c.mu.Unlock()

	if tr != nil {
		sub.start(ctx, tr, c.ConnectionDetails.AdapterSet())
	}
	return nil
}

func (c *Client) Unsubscribe(sub *Subscription) error {
	c.mu.Lock()
	idx := slices.Index(c.subs, sub)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: subscription is not active on this client", core.ErrIllegalState)
	}
	c.subs = slices.Delete(c.subs, idx, idx+1)
	c.mu.Unlock()

	sub.stop()
	sub.mu.Lock()
	sub.active = false
	sub.client = nil
	sub.mu.Unlock()
	return nil
}

// Subscriptions lists the subscriptions currently active on the client.
func (c *Client) Subscriptions() []*Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.subs)
}
