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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

// UnorderedMessages is the sequence name for messages with no ordering
// constraint.
const UnorderedMessages = "UNORDERED_MESSAGES"

type outgoing struct {
	text     string
	sequence string
	deadline time.Time
	listener ClientMessageListener
}

func (m *outgoing) abort(sent bool) {
	if m.listener != nil {
		m.listener.OnAbort(m.text, sent)
	}
}

func (m *outgoing) topic(adapterSet string) string {
	if m.sequence == "" || m.sequence == UnorderedMessages {
		return Topic(adapterSet, "messages")
	}
	return Topic(adapterSet, "messages", m.sequence)
}

// outbox is the FIFO of messages waiting for the send loop of a session.
type outbox struct {
	mu     sync.Mutex
	queue  []*outgoing
	signal chan struct{}
}

func newOutbox() *outbox {
	return &outbox{signal: make(chan struct{}, 1)}
}

func (b *outbox) push(m *outgoing) {
	b.mu.Lock()
	b.queue = append(b.queue, m)
	b.mu.Unlock()
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

func (b *outbox) pop(ctx context.Context) (*outgoing, bool) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			m := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return m, true
		}
		b.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, false
		case <-b.signal:
		}
	}
}

func (b *outbox) drain() []*outgoing {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queue
	b.queue = nil
	return out
}

// SendMessage publishes message on the current session. Without enqueue a
// DISCONNECTED client aborts the message at once; otherwise it waits for
// the next session. A positive delayTimeout (milliseconds) discards the
// message if it cannot be sent in time.
func (c *Client) SendMessage(message, sequence string, delayTimeout int32, listener ClientMessageListener, enqueue bool) {
	m := &outgoing{text: message, sequence: sequence, listener: listener}
	if delayTimeout > 0 {
		m.deadline = time.Now().Add(time.Duration(delayTimeout) * time.Millisecond)
	}

	c.mu.Lock()
	if c.status == StatusDisconnected && !enqueue {
		c.mu.Unlock()
		m.abort(false)
		return
	}
	box := c.outbox
	if box == nil {
		c.pending = append(c.pending, m)
	}
	c.mu.Unlock()

	if box != nil {
		box.push(m)
	}
}

func (c *Client) sendLoop(ctx context.Context, tr core.Transport, box *outbox) {
	log := getLogger(CategoryActions)
	adapterSet := c.ConnectionDetails.AdapterSet()
	for {
		m, ok := box.pop(ctx)
		if !ok {
			return
		}
		c.deliver(ctx, tr, adapterSet, m, log)
	}
}

func (c *Client) deliver(ctx context.Context, tr core.Transport, adapterSet string, m *outgoing, log Logger) {
	sendCtx := ctx
	if !m.deadline.IsZero() {
		if time.Now().After(m.deadline) {
			if m.listener != nil {
				m.listener.OnDiscarded(m.text)
			}
			return
		}
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithDeadline(ctx, m.deadline)
		defer cancel()
	}

	msg := core.Message{
		ID:        uuid.New().String(),
		Topic:     m.topic(adapterSet),
		Payload:   []byte(m.text),
		Metadata:  map[string]string{"sequence": m.sequence},
		Timestamp: time.Now(),
	}
	err := tr.Publish(sendCtx, msg)
	if log.IsDebugEnabled() {
		log.Debug(fmt.Sprintf("message sent topic=%s err=%v", msg.Topic, err))
	}
	if m.listener == nil {
		return
	}

	var deny *core.DenyError
	switch {
	case err == nil:
		m.listener.OnProcessed(m.text, "")
	case errors.As(err, &deny):
		m.listener.OnDeny(m.text, deny.Code, deny.Message)
	case ctx.Err() != nil:
		m.abort(true)
	case errors.Is(err, context.DeadlineExceeded):
		m.listener.OnDiscarded(m.text)
	default:
		log.Warn(fmt.Sprintf("message on %s failed: %v", msg.Topic, err))
		m.listener.OnError(m.text)
	}
}
