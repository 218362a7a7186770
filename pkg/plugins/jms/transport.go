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

package jms

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Azure/go-amqp"
	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

// Transport talks AMQP 1.0 to JMS brokers. The stream topic, prefixed
// with addressPrefix (for example "topic://"), is the link address.
type Transport struct {
	name          string
	url           string
	addressPrefix string
	conn          *amqp.Conn
	sendSess      *amqp.Session
	logger        *slog.Logger
	consumers     sync.Map

	mu      sync.Mutex
	senders map[string]*amqp.Sender
}

func New(name, url, addressPrefix string, logger *slog.Logger) *Transport {
	return &Transport{
		name:          name,
		url:           url,
		addressPrefix: addressPrefix,
		logger:        logger,
		senders:       make(map[string]*amqp.Sender),
	}
}

func (t *Transport) Name() string { return t.name }
func (t *Transport) Type() string { return "jms" }

func (t *Transport) address(topic string) string {
	return t.addressPrefix + topic
}

func (t *Transport) Connect(ctx context.Context) error {
	var err error
	t.conn, err = amqp.Dial(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("jms dial: %w", err)
	}

	t.sendSess, err = t.conn.NewSession(ctx, nil)
	if err != nil {
		return fmt.Errorf("jms send session: %w", err)
	}

	t.logger.Info("jms transport connected", "name", t.name, "url", t.url)
	return nil
}

func (t *Transport) Disconnect(ctx context.Context) error {
	t.consumers.Range(func(key, val any) bool {
		val.(*amqp.Receiver).Close(ctx)
		return true
	})
	t.mu.Lock()
	for addr, s := range t.senders {
		s.Close(ctx)
		delete(t.senders, addr)
	}
	t.mu.Unlock()
	if t.sendSess != nil {
		t.sendSess.Close(ctx)
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
	recvSess, err := t.conn.NewSession(ctx, nil)
	if err != nil {
		return fmt.Errorf("jms consumer session: %w", err)
	}

	receiver, err := recvSess.NewReceiver(ctx, t.address(topic), &amqp.ReceiverOptions{
		Credit: 10,
	})
	if err != nil {
		recvSess.Close(ctx)
		return fmt.Errorf("jms receiver: %w", err)
	}

	consumerID := uuid.New().String()
	t.consumers.Store(consumerID, receiver)
	defer func() {
		t.consumers.Delete(consumerID)
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		receiver.Close(closeCtx)
		recvSess.Close(closeCtx)
	}()

	for {
		msg, err := receiver.Receive(ctx, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("jms receive: %w", err)
		}
		if err := receiver.AcceptMessage(ctx, msg); err != nil {
			t.logger.Warn("jms accept failed", "topic", topic, "error", err)
		}

		out := core.Message{
			ID:        uuid.New().String(),
			Topic:     topic,
			Payload:   msg.GetData(),
			Metadata:  make(map[string]string, len(msg.ApplicationProperties)),
			Timestamp: time.Now().UTC(),
		}
		for k, v := range msg.ApplicationProperties {
			out.Metadata[k] = fmt.Sprint(v)
		}
		if msg.Properties != nil && msg.Properties.MessageID != nil {
			out.ID = fmt.Sprint(msg.Properties.MessageID)
		}

		select {
		case ch <- out:
		case <-ctx.Done():
			return nil
		}
	}
}

func (t *Transport) sender(ctx context.Context, addr string) (*amqp.Sender, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.senders[addr]; ok {
		return s, nil
	}
	s, err := t.sendSess.NewSender(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("jms sender %s: %w", addr, err)
	}
	t.senders[addr] = s
	return s, nil
}

func (t *Transport) Publish(ctx context.Context, msg core.Message) error {
	if t.sendSess == nil {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	s, err := t.sender(ctx, t.address(msg.Topic))
	if err != nil {
		return err
	}
	props := make(map[string]any, len(msg.Metadata))
	for k, v := range msg.Metadata {
		props[k] = v
	}
	return s.Send(ctx, &amqp.Message{
		Data: [][]byte{msg.Payload},
		Properties: &amqp.MessageProperties{
			MessageID: msg.ID,
		},
		ApplicationProperties: props,
	}, nil)
}
