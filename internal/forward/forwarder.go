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

package forward

import (
	"log/slog"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/logging"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

const DefaultQueueSize = 256

// Forwarder queues listener events for the single writer of a channel
// session. Send blocks while the queue is full.
type Forwarder struct {
	sessionID string
	events    chan core.Event
	done      chan struct{}
	closeOnce sync.Once
	traffic   *logging.TrafficLogger
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(sessionID string, size int, traffic *logging.TrafficLogger, m *metrics.Metrics, logger *slog.Logger) *Forwarder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Forwarder{
		sessionID: sessionID,
		events:    make(chan core.Event, size),
		done:      make(chan struct{}),
		traffic:   traffic,
		metrics:   m,
		logger:    logger,
	}
}

// Events is the queue drained by the channel writer.
func (f *Forwarder) Events() <-chan core.Event {
	return f.events
}

func (f *Forwarder) Send(method string, args map[string]any) {
	evt := core.Event{Method: method, Args: args}
	select {
	case <-f.done:
		f.logger.Warn("event dropped on closed channel", "session_id", f.sessionID, "event", method)
		return
	default:
	}

	select {
	case f.events <- evt:
		f.traffic.Invoking(f.sessionID, evt)
		f.metrics.RecordEvent(method)
	case <-f.done:
		f.logger.Warn("event dropped on closed channel", "session_id", f.sessionID, "event", method)
	}
}

// Close releases blocked senders. The queue itself is left open so that
// late callbacks never write to a closed channel.
func (f *Forwarder) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
