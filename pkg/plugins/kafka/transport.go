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

package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

// Transport maps every stream topic to the Kafka topic of the same name.
// Each consumer reads through its own consumer group, starting at the
// newest offset, so every subscription sees every message.
type Transport struct {
	name      string
	brokers   []string
	groupID   string
	writer    *kafka.Writer
	logger    *slog.Logger
	consumers sync.Map
}

func New(name string, brokers []string, groupID string, logger *slog.Logger) *Transport {
	return &Transport{
		name:    name,
		brokers: brokers,
		groupID: groupID,
		logger:  logger,
	}
}

func (t *Transport) Name() string { return t.name }
func (t *Transport) Type() string { return "kafka" }

func (t *Transport) Connect(ctx context.Context) error {
	t.writer = &kafka.Writer{
		Addr:                   kafka.TCP(t.brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	t.logger.Info("kafka transport connected",
		"name", t.name,
		"brokers", strings.Join(t.brokers, ","),
	)
	return nil
}

func (t *Transport) Disconnect(ctx context.Context) error {
	t.consumers.Range(func(key, val any) bool {
		val.(*kafka.Reader).Close()
		return true
	})
	if t.writer != nil {
		return t.writer.Close()
	}
	return nil
}

func (t *Transport) Consume(ctx context.Context, topic string, ch chan<- core.Message) error {
	if t.writer == nil {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	groupID := t.groupID
	if groupID == "" {
		groupID = "stream-bridge-" + t.name
	}
	consumerID := uuid.New().String()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     t.brokers,
		Topic:       topic,
		GroupID:     groupID + "-" + consumerID,
		StartOffset: kafka.LastOffset,
		MaxWait:     500 * time.Millisecond,
		MinBytes:    1,
		MaxBytes:    10e6,
	})

	t.consumers.Store(consumerID, reader)
	defer func() {
		t.consumers.Delete(consumerID)
		reader.Close()
	}()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			t.logger.Error("kafka read error", "topic", topic, "error", err)
			return fmt.Errorf("kafka read %s: %w", topic, err)
		}

		metadata := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			metadata[h.Key] = string(h.Value)
		}

		select {
		case ch <- core.Message{
			ID:        uuid.New().String(),
			Topic:     topic,
			Key:       string(msg.Key),
			Payload:   msg.Value,
			Metadata:  metadata,
			Timestamp: msg.Time,
		}:
		case <-ctx.Done():
			return nil
		}
	}
}

func (t *Transport) Publish(ctx context.Context, msg core.Message) error {
	if t.writer == nil {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	key := msg.Key
	if key == "" {
		key = msg.ID
	}
	headers := make([]kafka.Header, 0, len(msg.Metadata))
	for k, v := range msg.Metadata {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return t.writer.WriteMessages(ctx, kafka.Message{
		Topic:   msg.Topic,
		Key:     []byte(key),
		Value:   msg.Payload,
		Headers: headers,
		Time:    msg.Timestamp,
	})
}
