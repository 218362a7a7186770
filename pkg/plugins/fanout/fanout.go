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

package fanout

import (
	"context"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

type subscriber struct {
	ch   chan<- core.Message
	done <-chan struct{}
}

// Hub delivers messages of a topic to every local consumer of that topic.
// Transports whose broker client keeps a single handler per topic
// subscribe once through open and release through close.
type Hub struct {
	mu    sync.Mutex
	subs  map[string]map[*subscriber]struct{}
	open  func(topic string) error
	close func(topic string)
}

func New(open func(topic string) error, close func(topic string)) *Hub {
	return &Hub{
		subs:  make(map[string]map[*subscriber]struct{}),
		open:  open,
		close: close,
	}
}

// Join adds ch as a consumer of topic until leave is called. Deliveries
// to ch give up once done is closed.
func (h *Hub) Join(topic string, ch chan<- core.Message, done <-chan struct{}) (leave func(), err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[topic]
	if !ok {
		if h.open != nil {
			if err := h.open(topic); err != nil {
				return nil, err
			}
		}
		set = make(map[*subscriber]struct{})
		h.subs[topic] = set
	}
	sub := &subscriber{ch: ch, done: done}
	set[sub] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() { h.leave(topic, sub) })
	}, nil
}

func (h *Hub) leave(topic string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subs[topic]
	delete(set, sub)
	if len(set) > 0 {
		return
	}
	delete(h.subs, topic)
	if h.close != nil {
		h.close(topic)
	}
}

// Deliver sends msg to the consumers of msg.Topic and returns how many
// received it.
func (h *Hub) Deliver(ctx context.Context, msg core.Message) int {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs[msg.Topic]))
	for sub := range h.subs[msg.Topic] {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	delivered := 0
	for _, sub := range targets {
		select {
		case sub.ch <- msg:
			delivered++
		case <-sub.done:
		case <-ctx.Done():
			return delivered
		}
	}
	return delivered
}

// Topics lists the topics that currently have consumers.
func (h *Hub) Topics() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	topics := make([]string, 0, len(h.subs))
	for t := range h.subs {
		topics = append(topics, t)
	}
	return topics
}

func (h *Hub) Len(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}
