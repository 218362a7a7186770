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

package memory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins/fanout"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/stream"
)

const DefaultRetain = 1

// Transport is an in-process broker. It keeps the last messages of every
// topic and replays them as snapshot to new consumers.
type Transport struct {
	name   string
	retain int
	logger *slog.Logger
	hub    *fanout.Hub

	mu        sync.RWMutex
	connected bool
	retained  map[string][]core.Message
	denied    map[string]*core.DenyError
}

func New(name string, retain int, logger *slog.Logger) *Transport {
	if retain < 0 {
		retain = 0
	}
	return &Transport{
		name:     name,
		retain:   retain,
		logger:   logger,
		hub:      fanout.New(nil, nil),
		retained: make(map[string][]core.Message),
		denied:   make(map[string]*core.DenyError),
	}
}

func (t *Transport) Name() string { return t.name }
func (t *Transport) Type() string { return "memory" }

func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	t.logger.Info("memory transport connected", "name", t.name, "retain", t.retain)
	return nil
}

func (t *Transport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	return nil
}

func (t *Transport) isConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

func (t *Transport) Consume(ctx context.Context, topic string, ch chan<- core.Message) error {
	if !t.isConnected() {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	leave, err := t.hub.Join(topic, ch, ctx.Done())
	if err != nil {
		return err
	}
	defer leave()
	<-ctx.Done()
	return nil
}

func (t *Transport) Publish(ctx context.Context, msg core.Message) error {
	if !t.isConnected() {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	t.mu.Lock()
	if deny, ok := t.denied[msg.Topic]; ok {
		t.mu.Unlock()
		return deny
	}
	if msg.Metadata[stream.MetaCommand] == stream.CommandClearSnapshot {
		delete(t.retained, msg.Topic)
	} else if t.retain > 0 {
		kept := append(t.retained[msg.Topic], msg)
		if len(kept) > t.retain {
			kept = slices.Clone(kept[len(kept)-t.retain:])
		}
		t.retained[msg.Topic] = kept
	}
	t.mu.Unlock()

	n := t.hub.Deliver(ctx, msg)
	t.logger.Debug("memory message published", "name", t.name, "topic", msg.Topic, "consumers", n)
	return nil
}

// Snapshot returns the retained messages of topic, oldest first.
func (t *Transport) Snapshot(ctx context.Context, topic string) ([]core.Message, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]core.Message, 0, len(t.retained[topic]))
	for _, m := range t.retained[topic] {
		m.Snapshot = true
		out = append(out, m)
	}
	return out, nil
}

// Deny makes every later publish to topic fail with the given code.
func (t *Transport) Deny(topic string, code int, message string) {
	t.mu.Lock()
	t.denied[topic] = &core.DenyError{Code: code, Message: message}
	t.mu.Unlock()
}

func (t *Transport) Allow(topic string) {
	t.mu.Lock()
	delete(t.denied, topic)
	t.mu.Unlock()
}

// Consumers reports how many consumers are attached to topic.
func (t *Transport) Consumers(topic string) int {
	return t.hub.Len(topic)
}
