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

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/forward"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/logging"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/stream"
)

// DispatcherFactory builds the method dispatcher of a new channel session.
type DispatcherFactory func(sessionID string, registry *Registry, fwd *forward.Forwarder) core.Dispatcher

type activeSession struct {
	session  *core.Session
	registry *Registry
	fwd      *forward.Forwarder
	cancel   context.CancelFunc
}

type Manager struct {
	sessions      sync.Map
	resolver      stream.Resolver
	newDispatcher DispatcherFactory
	queueSize     int
	traffic       *logging.TrafficLogger
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func NewManager(
	resolver stream.Resolver,
	newDispatcher DispatcherFactory,
	queueSize int,
	traffic *logging.TrafficLogger,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		resolver:      resolver,
		newDispatcher: newDispatcher,
		queueSize:     queueSize,
		traffic:       traffic,
		metrics:       m,
		logger:        logger,
	}
}

// CreateSession opens a channel session with its own registry and event
// queue. The session is destroyed when ctx ends. An empty channelID is
// replaced by the session id.
func (m *Manager) CreateSession(
	ctx context.Context,
	entrypointName string,
	channelID string,
) (*core.Session, error) {
	if channelID != "" {
		if _, ok := m.Session(channelID); ok {
			return nil, fmt.Errorf("%w: channel %s is already open", core.ErrIllegalState, channelID)
		}
	}

	sessionCtx, sessionCancel := context.WithCancel(ctx)
	sessionID := uuid.New().String()
	if channelID == "" {
		channelID = sessionID
	}

	logger := m.logger.With("session_id", sessionID)
	registry := NewRegistry(m.resolver, logger.With("component", "registry"))
	fwd := forward.New(sessionID, m.queueSize, m.traffic, m.metrics, logger.With("component", "forwarder"))

	sess := &core.Session{
		ID:             sessionID,
		ChannelID:      channelID,
		EntrypointName: entrypointName,
		Dispatcher:     m.newDispatcher(sessionID, registry, fwd),
		Events:         fwd.Events(),
		Cancel:         sessionCancel,
	}

	m.sessions.Store(sessionID, &activeSession{
		session:  sess,
		registry: registry,
		fwd:      fwd,
		cancel:   sessionCancel,
	})
	m.metrics.SessionOpened()

	go func() {
		<-sessionCtx.Done()
		_ = m.DestroySession(sessionID)
	}()

	m.logger.Info("session created",
		"session_id", sessionID,
		"channel_id", channelID,
		"entrypoint", entrypointName,
	)

	return sess, nil
}

func (m *Manager) DestroySession(sessionID string) error {
	val, ok := m.sessions.LoadAndDelete(sessionID)
	if !ok {
		return fmt.Errorf("%w: id=%s", core.ErrSessionNotFound, sessionID)
	}

	as := val.(*activeSession)
	as.cancel()
	as.fwd.Close()
	as.registry.Close()
	m.metrics.SessionClosed()

	clients, subs := as.registry.Counts()
	m.logger.Info("session destroyed",
		"session_id", sessionID,
		"channel_id", as.session.ChannelID,
		"clients", clients,
		"subscriptions", subs,
	)

	return nil
}

func (m *Manager) DestroyAll() {
	m.sessions.Range(func(key, _ any) bool {
		_ = m.DestroySession(key.(string))
		return true
	})
}

func (m *Manager) ActiveCount() int {
	count := 0
	m.sessions.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// Session finds a live session by session id or channel id.
func (m *Manager) Session(id string) (*core.Session, bool) {
	if val, ok := m.sessions.Load(id); ok {
		return val.(*activeSession).session, true
	}
	var found *core.Session
	m.sessions.Range(func(_, val any) bool {
		as := val.(*activeSession)
		if as.session.ChannelID == id {
			found = as.session
			return false
		}
		return true
	})
	return found, found != nil
}
