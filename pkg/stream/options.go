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
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

const Unlimited = "unlimited"

// ConnectionDetails holds the addressing and credentials used by Connect,
// plus the read-only values learned once a session is established.
type ConnectionDetails struct {
	notify func(property string)

	mu                    sync.RWMutex
	adapterSet            string
	serverAddress         string
	user                  string
	password              string
	serverInstanceAddress string
	serverSocketName      string
	clientIP              string
	sessionID             string
}

func (d *ConnectionDetails) set(field *string, v, property string) {
	d.mu.Lock()
	changed := *field != v
	*field = v
	d.mu.Unlock()
	if changed && d.notify != nil {
		d.notify(property)
	}
}

func (d *ConnectionDetails) get(field *string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return *field
}

func (d *ConnectionDetails) SetAdapterSet(v string) { d.set(&d.adapterSet, v, "adapterSet") }
func (d *ConnectionDetails) SetUser(v string)       { d.set(&d.user, v, "user") }
func (d *ConnectionDetails) SetPassword(v string)   { d.set(&d.password, v, "password") }

// SetServerAddress accepts an absolute URL whose scheme selects the
// transport route, e.g. "kafka://orders". The empty string clears it.
func (d *ConnectionDetails) SetServerAddress(v string) error {
	if v != "" {
		u, err := url.Parse(v)
		if err != nil || u.Scheme == "" {
			return fmt.Errorf("%w: serverAddress=%q", core.ErrBadArgument, v)
		}
	}
	d.set(&d.serverAddress, v, "serverAddress")
	return nil
}

func (d *ConnectionDetails) AdapterSet() string            { return d.get(&d.adapterSet) }
func (d *ConnectionDetails) ServerAddress() string         { return d.get(&d.serverAddress) }
func (d *ConnectionDetails) User() string                  { return d.get(&d.user) }
func (d *ConnectionDetails) ServerInstanceAddress() string { return d.get(&d.serverInstanceAddress) }
func (d *ConnectionDetails) ServerSocketName() string      { return d.get(&d.serverSocketName) }
func (d *ConnectionDetails) ClientIP() string              { return d.get(&d.clientIP) }
func (d *ConnectionDetails) SessionID() string             { return d.get(&d.sessionID) }

func (d *ConnectionDetails) secret() string { return d.get(&d.password) }

// ConnectionOptions are the tuning knobs of a client. Durations are in
// milliseconds as they travel over the method channel.
type ConnectionOptions struct {
	notify func(property string)

	mu                                    sync.RWMutex
	contentLength                         int64
	firstRetryMaxDelay                    int64
	forcedTransport                       string
	httpExtraHeaders                      map[string]string
	idleTimeout                           int64
	keepaliveInterval                     int64
	pollingInterval                       int64
	reconnectTimeout                      int64
	requestedMaxBandwidth                 string
	realMaxBandwidth                      string
	retryDelay                            int64
	reverseHeartbeatInterval              int64
	sessionRecoveryTimeout                int64
	stalledTimeout                        int64
	httpExtraHeadersOnSessionCreationOnly bool
	serverInstanceAddressIgnored          bool
	slowingEnabled                        bool
}

func newConnectionOptions(notify func(string)) *ConnectionOptions {
	return &ConnectionOptions{
		notify:                 notify,
		contentLength:          50_000_000,
		firstRetryMaxDelay:     100,
		idleTimeout:            19_000,
		reconnectTimeout:       3_000,
		requestedMaxBandwidth:  Unlimited,
		retryDelay:             4_000,
		sessionRecoveryTimeout: 15_000,
		stalledTimeout:         2_000,
	}
}

func (o *ConnectionOptions) setInt(field *int64, v int32, property string, min int32) error {
	if v < min {
		return fmt.Errorf("%w: %s=%d", core.ErrBadArgument, property, v)
	}
	o.mu.Lock()
	changed := *field != int64(v)
	*field = int64(v)
	o.mu.Unlock()
	if changed && o.notify != nil {
		o.notify(property)
	}
	return nil
}

func (o *ConnectionOptions) setBool(field *bool, v bool, property string) {
	o.mu.Lock()
	changed := *field != v
	*field = v
	o.mu.Unlock()
	if changed && o.notify != nil {
		o.notify(property)
	}
}

func (o *ConnectionOptions) getInt(field *int64) int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return *field
}

func (o *ConnectionOptions) SetContentLength(v int32) error {
	return o.setInt(&o.contentLength, v, "contentLength", 1)
}

func (o *ConnectionOptions) SetFirstRetryMaxDelay(v int32) error {
	return o.setInt(&o.firstRetryMaxDelay, v, "firstRetryMaxDelay", 0)
}

func (o *ConnectionOptions) SetIdleTimeout(v int32) error {
	return o.setInt(&o.idleTimeout, v, "idleTimeout", 0)
}

func (o *ConnectionOptions) SetKeepaliveInterval(v int32) error {
	return o.setInt(&o.keepaliveInterval, v, "keepaliveInterval", 0)
}

func (o *ConnectionOptions) SetPollingInterval(v int32) error {
	return o.setInt(&o.pollingInterval, v, "pollingInterval", 0)
}

func (o *ConnectionOptions) SetReconnectTimeout(v int32) error {
	return o.setInt(&o.reconnectTimeout, v, "reconnectTimeout", 1)
}

func (o *ConnectionOptions) SetRetryDelay(v int32) error {
	return o.setInt(&o.retryDelay, v, "retryDelay", 1)
}

func (o *ConnectionOptions) SetReverseHeartbeatInterval(v int32) error {
	return o.setInt(&o.reverseHeartbeatInterval, v, "reverseHeartbeatInterval", 0)
}

func (o *ConnectionOptions) SetSessionRecoveryTimeout(v int32) error {
	return o.setInt(&o.sessionRecoveryTimeout, v, "sessionRecoveryTimeout", 0)
}

func (o *ConnectionOptions) SetStalledTimeout(v int32) error {
	return o.setInt(&o.stalledTimeout, v, "stalledTimeout", 1)
}

func (o *ConnectionOptions) SetHttpExtraHeadersOnSessionCreationOnly(v bool) {
	o.setBool(&o.httpExtraHeadersOnSessionCreationOnly, v, "httpExtraHeadersOnSessionCreationOnly")
}

func (o *ConnectionOptions) SetServerInstanceAddressIgnored(v bool) {
	o.setBool(&o.serverInstanceAddressIgnored, v, "serverInstanceAddressIgnored")
}

func (o *ConnectionOptions) SetSlowingEnabled(v bool) {
	o.setBool(&o.slowingEnabled, v, "slowingEnabled")
}

// SetForcedTransport names the transport to use regardless of the server
// address scheme. The protocol-level values ("WS", "HTTP-STREAMING", ...)
// do not name a transport and leave routing to the address scheme.
func (o *ConnectionOptions) SetForcedTransport(v string) {
	o.mu.Lock()
	changed := o.forcedTransport != v
	o.forcedTransport = v
	o.mu.Unlock()
	if changed && o.notify != nil {
		o.notify("forcedTransport")
	}
}

func (o *ConnectionOptions) SetHttpExtraHeaders(headers map[string]string) {
	cp := make(map[string]string, len(headers))
	for k, v := range headers {
		cp[k] = v
	}
	o.mu.Lock()
	o.httpExtraHeaders = cp
	o.mu.Unlock()
	if o.notify != nil {
		o.notify("httpExtraHeaders")
	}
}

// SetRequestedMaxBandwidth accepts "unlimited" or a positive number of
// kilobits per second.
func (o *ConnectionOptions) SetRequestedMaxBandwidth(v string) error {
	if _, err := parseLimit(v, "requestedMaxBandwidth"); err != nil {
		return err
	}
	o.mu.Lock()
	changed := o.requestedMaxBandwidth != v
	o.requestedMaxBandwidth = v
	granted := o.realMaxBandwidth != ""
	if granted {
		o.realMaxBandwidth = v
	}
	o.mu.Unlock()
	if changed && o.notify != nil {
		o.notify("requestedMaxBandwidth")
		if granted {
			o.notify("realMaxBandwidth")
		}
	}
	return nil
}

func (o *ConnectionOptions) ContentLength() int64            { return o.getInt(&o.contentLength) }
func (o *ConnectionOptions) FirstRetryMaxDelay() int64       { return o.getInt(&o.firstRetryMaxDelay) }
func (o *ConnectionOptions) IdleTimeout() int64              { return o.getInt(&o.idleTimeout) }
func (o *ConnectionOptions) KeepaliveInterval() int64        { return o.getInt(&o.keepaliveInterval) }
func (o *ConnectionOptions) PollingInterval() int64          { return o.getInt(&o.pollingInterval) }
func (o *ConnectionOptions) ReconnectTimeout() int64         { return o.getInt(&o.reconnectTimeout) }
func (o *ConnectionOptions) RetryDelay() int64               { return o.getInt(&o.retryDelay) }
func (o *ConnectionOptions) ReverseHeartbeatInterval() int64 { return o.getInt(&o.reverseHeartbeatInterval) }
func (o *ConnectionOptions) SessionRecoveryTimeout() int64   { return o.getInt(&o.sessionRecoveryTimeout) }
func (o *ConnectionOptions) StalledTimeout() int64           { return o.getInt(&o.stalledTimeout) }

func (o *ConnectionOptions) ForcedTransport() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.forcedTransport
}

func (o *ConnectionOptions) HttpExtraHeaders() map[string]string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	cp := make(map[string]string, len(o.httpExtraHeaders))
	for k, v := range o.httpExtraHeaders {
		cp[k] = v
	}
	return cp
}

func (o *ConnectionOptions) RequestedMaxBandwidth() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.requestedMaxBandwidth
}

// RealMaxBandwidth is empty until a session is established.
func (o *ConnectionOptions) RealMaxBandwidth() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.realMaxBandwidth
}

func (o *ConnectionOptions) IsHttpExtraHeadersOnSessionCreationOnly() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.httpExtraHeadersOnSessionCreationOnly
}

func (o *ConnectionOptions) IsServerInstanceAddressIgnored() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.serverInstanceAddressIgnored
}

func (o *ConnectionOptions) IsSlowingEnabled() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.slowingEnabled
}

func (o *ConnectionOptions) grantBandwidth() {
	o.mu.Lock()
	o.realMaxBandwidth = o.requestedMaxBandwidth
	o.mu.Unlock()
}

func (o *ConnectionOptions) revokeBandwidth() {
	o.mu.Lock()
	o.realMaxBandwidth = ""
	o.mu.Unlock()
}

// retryPolicy waits a random delay up to firstRetryMaxDelay before the
// first retry, then backs off exponentially starting from retryDelay.
func (o *ConnectionOptions) retryPolicy() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = time.Duration(o.RetryDelay()) * time.Millisecond
	exp.MaxInterval = 60 * time.Second
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &firstRetryBackOff{
		maxFirst: time.Duration(o.FirstRetryMaxDelay()) * time.Millisecond,
		next:     exp,
	}
}

type firstRetryBackOff struct {
	maxFirst time.Duration
	used     bool
	next     backoff.BackOff
}

func (b *firstRetryBackOff) NextBackOff() time.Duration {
	if !b.used {
		b.used = true
		if b.maxFirst <= 0 {
			return 0
		}
		return time.Duration(rand.Int64N(int64(b.maxFirst) + 1))
	}
	return b.next.NextBackOff()
}

func (b *firstRetryBackOff) Reset() {
	b.used = false
	b.next.Reset()
}

// parseLimit accepts "unlimited" (returning 0) or a positive decimal.
func parseLimit(v, property string) (float64, error) {
	if v == Unlimited {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%w: %s=%q", core.ErrBadArgument, property, v)
	}
	return f, nil
}
