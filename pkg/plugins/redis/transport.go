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

package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/codec"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/stream"
)

// Key patterns
const (
	lastKeyPrefix = "stream-bridge:last:"
)

// Transport uses Redis pub/sub channels named after the stream topic.
// The last message of every topic is also stored under a plain key and
// served as the snapshot.
type Transport struct {
	name   string
	addr   string
	ttl    time.Duration
	client *goredis.Client
	logger *slog.Logger
}

func New(name, addr string, ttl time.Duration, logger *slog.Logger) *Transport {
	return &Transport{
		name:   name,
		addr:   addr,
		ttl:    ttl,
		logger: logger,
	}
}

func (t *Transport) Name() string { return t.name }
func (t *Transport) Type() string { return "redis" }

func lastKey(topic string) string {
	return lastKeyPrefix + topic
}

func (t *Transport) Connect(ctx context.Context) error {
	client := goredis.NewClient(&goredis.Options{
		Addr: t.addr,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("redis connection failed: %w", err)
	}
	t.client = client

	t.logger.Info("redis transport connected", "name", t.name, "addr", t.addr)
	return nil
}

func (t *Transport) Disconnect(ctx context.Context) error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}

func (t *Transport) Consume(ctx context.Context, topic string, ch chan<- core.Message) error {
	if t.client == nil {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	pubsub := t.client.Subscribe(ctx, topic)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe %s: %w", topic, err)
	}

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("redis subscription closed for %s", topic)
			}
			msg := codec.Unwrap(topic, []byte(m.Payload))
			if msg.ID == "" {
				msg.ID = uuid.New().String()
			}

			select {
			case ch <- msg:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (t *Transport) Publish(ctx context.Context, msg core.Message) error {
	if t.client == nil {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	data, err := codec.Wrap(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	pipe := t.client.TxPipeline()
	if msg.Metadata[stream.MetaCommand] == stream.CommandClearSnapshot {
		pipe.Del(ctx, lastKey(msg.Topic))
	} else {
		pipe.Set(ctx, lastKey(msg.Topic), data, t.ttl)
	}
	pipe.Publish(ctx, msg.Topic, data)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", msg.Topic, err)
	}
	return nil
}

// Snapshot returns the last message stored for topic, if any.
func (t *Transport) Snapshot(ctx context.Context, topic string) ([]core.Message, error) {
	if t.client == nil {
		return nil, fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	data, err := t.client.Get(ctx, lastKey(topic)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot of %s: %w", topic, err)
	}
	msg := codec.Unwrap(topic, data)
	msg.Snapshot = true
	return []core.Message{msg}, nil
}
