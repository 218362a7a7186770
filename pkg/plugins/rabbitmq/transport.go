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

package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

const DefaultExchange = "stream-bridge"

// Transport publishes to a topic exchange with the stream topic as routing
// key. Every consumer binds its own exclusive queue.
type Transport struct {
	core.ConnLoss

	name      string
	url       string
	exchange  string
	conn      *amqp.Connection
	pubCh     *amqp.Channel
	pubMu     sync.Mutex
	logger    *slog.Logger
	consumers sync.Map
}

func New(name, url, exchange string, logger *slog.Logger) *Transport {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Transport{
		name:     name,
		url:      url,
		exchange: exchange,
		logger:   logger,
	}
}

func (t *Transport) Name() string { return t.name }
func (t *Transport) Type() string { return "rabbitmq" }

func (t *Transport) Connect(ctx context.Context) error {
	var err error
	t.conn, err = amqp.Dial(t.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	t.pubCh, err = t.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq publish channel: %w", err)
	}

	if err := t.pubCh.ExchangeDeclare(t.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq exchange declare %s: %w", t.exchange, err)
	}

	fire := t.Arm()
	closed := t.conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		// A graceful Close delivers no error.
		if amqpErr, ok := <-closed; ok && amqpErr != nil {
			t.logger.Warn("rabbitmq connection closed", "name", t.name, "error", amqpErr)
			fire(amqpErr)
		}
	}()

	t.logger.Info("rabbitmq transport connected", "name", t.name, "url", t.url, "exchange", t.exchange)
	return nil
}

func (t *Transport) Disconnect(ctx context.Context) error {
	t.consumers.Range(func(key, val any) bool {
		val.(*amqp.Channel).Close()
		return true
	})
	if t.pubCh != nil {
		t.pubCh.Close()
	}
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

func (t *Transport) Consume(ctx context.Context, topic string, ch chan<- core.Message) error {
	if t.conn == nil {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	consumerCh, err := t.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq consumer channel: %w", err)
	}

	q, err := consumerCh.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		consumerCh.Close()
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	if err := consumerCh.QueueBind(q.Name, topic, t.exchange, false, nil); err != nil {
		consumerCh.Close()
		return fmt.Errorf("rabbitmq queue bind %s: %w", topic, err)
	}

	consumerTag := fmt.Sprintf("stream-bridge-%s-%s", t.name, uuid.New().String())
	deliveries, err := consumerCh.Consume(
		q.Name,
		consumerTag,
		true,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		consumerCh.Close()
		return fmt.Errorf("rabbitmq consume: %w", err)
	}

	t.consumers.Store(consumerTag, consumerCh)
	defer func() {
		t.consumers.Delete(consumerTag)
		consumerCh.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("rabbitmq deliveries closed for %s", topic)
			}
			msg := core.Message{
				ID:        d.MessageId,
				Topic:     topic,
				Key:       d.CorrelationId,
				Payload:   d.Body,
				Metadata:  headers(d.Headers),
				Timestamp: d.Timestamp,
			}
			if msg.ID == "" {
				msg.ID = uuid.New().String()
			}
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now().UTC()
			}

			select {
			case ch <- msg:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func headers(table amqp.Table) map[string]string {
	out := make(map[string]string, len(table))
	for k, v := range table {
		switch s := v.(type) {
		case string:
			out[k] = s
		case []byte:
			out[k] = string(s)
		default:
			out[k] = fmt.Sprint(s)
		}
	}
	return out
}

func (t *Transport) Publish(ctx context.Context, msg core.Message) error {
	if t.pubCh == nil {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	table := make(amqp.Table, len(msg.Metadata))
	for k, v := range msg.Metadata {
		table[k] = v
	}

	t.pubMu.Lock()
	defer t.pubMu.Unlock()
	return t.pubCh.PublishWithContext(ctx,
		t.exchange,
		msg.Topic,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/octet-stream",
			Headers:       table,
			Body:          msg.Payload,
			MessageId:     msg.ID,
			CorrelationId: msg.Key,
			Timestamp:     msg.Timestamp,
		},
	)
}
