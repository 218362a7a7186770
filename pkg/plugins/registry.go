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

package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

const lostDisconnectTimeout = 5 * time.Second

// ConnectObserver is told about every transport connect attempt and every
// connection lost afterwards.
type ConnectObserver interface {
	RecordTransportConnect(name string, err error)
	RecordTransportLost(name string)
}

type transportEntry struct {
	transport core.Transport
	mu        sync.Mutex
	healthy   bool
	lost      <-chan struct{}
}

type Registry struct {
	entrypoints map[string]core.Entrypoint
	transports  map[string]*transportEntry
	observer    ConnectObserver
	logger      *slog.Logger
	lifetime    context.Context
	mu          sync.RWMutex
}

func NewRegistry(observer ConnectObserver, logger *slog.Logger) *Registry {
	return &Registry{
		entrypoints: make(map[string]core.Entrypoint),
		transports:  make(map[string]*transportEntry),
		observer:    observer,
		logger:      logger,
		lifetime:    context.Background(),
	}
}

func (r *Registry) lifetimeCtx() context.Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lifetime
}

func (r *Registry) RegisterEntrypoint(e core.Entrypoint) {
	r.mu.Lock()
	r.entrypoints[e.Name()] = e
	r.mu.Unlock()
	r.logger.Info("registered entrypoint", "name", e.Name(), "type", e.Type())
}

func (r *Registry) RegisterTransport(t core.Transport) {
	r.mu.Lock()
	r.transports[t.Name()] = &transportEntry{transport: t}
	r.mu.Unlock()
	r.logger.Info("registered transport", "name", t.Name(), "type", t.Type())
}

func (r *Registry) Entrypoints() map[string]core.Entrypoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[string]core.Entrypoint, len(r.entrypoints))
	for k, v := range r.entrypoints {
		cp[k] = v
	}
	return cp
}

func (r *Registry) Transports() map[string]core.Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[string]core.Transport, len(r.transports))
	for k, v := range r.transports {
		cp[k] = v.transport
	}
	return cp
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.transports[name]
	return ok
}

// Acquire returns the named transport, connecting it on first use. A
// failed connect is retried by the next Acquire, and so is a connection
// the transport reported lost. ctx bounds the connect attempt only; the
// connection lives as long as the registry's lifetime context.
func (r *Registry) Acquire(ctx context.Context, name string) (core.Transport, error) {
	r.mu.RLock()
	entry, ok := r.transports[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: name=%s", core.ErrTransportNotFound, name)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.healthy {
		if !core.IsLost(entry.lost) {
			return entry.transport, nil
		}
		r.resetLocked(name, entry)
	}

	lifetime := r.lifetimeCtx()
	err := entry.transport.Connect(core.WithLifetime(ctx, lifetime))
	if r.observer != nil {
		r.observer.RecordTransportConnect(name, err)
	}
	if err != nil {
		r.logger.Error("transport connect failed", "name", name, "error", err)
		return nil, fmt.Errorf("%w: name=%s: %w", core.ErrTransportUnavailable, name, err)
	}
	entry.healthy = true
	entry.lost = nil
	if m, ok := entry.transport.(core.Monitored); ok {
		if lost := m.Lost(); lost != nil {
			entry.lost = lost
			go r.watch(lifetime, name, entry, lost)
		}
	}
	return entry.transport, nil
}

// watch resets the entry as soon as the connection behind lost drops.
func (r *Registry) watch(lifetime context.Context, name string, entry *transportEntry, lost <-chan struct{}) {
	select {
	case <-lifetime.Done():
		return
	case <-lost:
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.healthy && entry.lost == lost {
		r.resetLocked(name, entry)
	}
}

// resetLocked releases a transport whose connection was lost so that the
// next Acquire connects it again.
func (r *Registry) resetLocked(name string, entry *transportEntry) {
	var cause error
	if m, ok := entry.transport.(core.Monitored); ok {
		cause = m.LostErr()
	}
	r.logger.Warn("transport connection lost", "name", name, "error", cause)
	entry.healthy = false
	entry.lost = nil
	if r.observer != nil {
		r.observer.RecordTransportLost(name)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.lifetimeCtx()), lostDisconnectTimeout)
	defer cancel()
	if err := entry.transport.Disconnect(ctx); err != nil {
		r.logger.Warn("transport disconnect after loss failed", "name", name, "error", err)
	}
}

func (r *Registry) IsTransportHealthy(name string) bool {
	r.mu.RLock()
	entry, ok := r.transports[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.healthy && !core.IsLost(entry.lost)
}

// StartEntrypoints starts every entrypoint. ctx also becomes the lifetime
// of the transport connections opened from then on.
func (r *Registry) StartEntrypoints(ctx context.Context, manager core.SessionManager) {
	r.mu.Lock()
	r.lifetime = ctx
	r.mu.Unlock()

	for name, ep := range r.Entrypoints() {
		go func(n string, e core.Entrypoint) {
			if err := e.Start(ctx, manager); err != nil {
				r.logger.Error("entrypoint failed", "name", n, "error", err)
			}
		}(name, ep)
	}
}

func (r *Registry) StopAll(ctx context.Context) {
	for name, ep := range r.Entrypoints() {
		r.logger.Info("stopping entrypoint", "name", name)
		if err := ep.Stop(ctx); err != nil {
			r.logger.Warn("entrypoint stop failed", "name", name, "error", err)
		}
	}

	r.mu.RLock()
	entries := make(map[string]*transportEntry, len(r.transports))
	for k, v := range r.transports {
		entries[k] = v
	}
	r.mu.RUnlock()

	for name, entry := range entries {
		entry.mu.Lock()
		if entry.healthy {
			r.logger.Info("stopping transport", "name", name)
			if err := entry.transport.Disconnect(ctx); err != nil {
				r.logger.Warn("transport disconnect failed", "name", name, "error", err)
			}
			entry.healthy = false
			entry.lost = nil
		}
		entry.mu.Unlock()
	}
}
