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

package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

const pendingMessages = 64

// Transport uses the stream topic as NATS subject and message headers as
// metadata.
type Transport struct {
	name   string
	url    string
	conn   *natsgo.Conn
	logger *slog.Logger
}

func New(name, url string, logger *slog.Logger) *Transport {
	return &Transport{
		name:   name,
		url:    url,
		logger: logger,
	}
}

func (t *Transport) Name() string { return t.name }
func (t *Transport) Type() string { return "nats" }

func (t *Transport) Connect(ctx context.Context) error {
	opts := []natsgo.Option{
		natsgo.Name("stream-bridge-" + t.name),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			t.logger.Warn("nats disconnected", "name", t.name, "error", err)
		}),
		natsgo.ReconnectHandler(func(c *natsgo.Conn) {
			t.logger.Info("nats reconnected", "name", t.name, "url", c.ConnectedUrl())
		}),
	}
	conn, err := natsgo.Connect(t.url, opts...)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	t.conn = conn
	t.logger.Info("nats transport connected", "name", t.name, "url", t.url)
	return nil
}

func (t *Transport) Disconnect(ctx context.Context) error {
	if t.conn != nil {
		t.conn.Close()
	}
	return nil
}

func (t *Transport) Consume(ctx context.Context, topic string, ch chan<- core.Message) error {
	if t.conn == nil {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	msgs := make(chan *natsgo.Msg, pendingMessages)
	sub, err := t.conn.ChanSubscribe(topic, msgs)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", topic, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-msgs:
			msg := core.Message{
				ID:        uuid.New().String(),
				Topic:     topic,
				Payload:   m.Data,
				Metadata:  make(map[string]string, len(m.Header)),
				Timestamp: time.Now().UTC(),
			}
			for k, vs := range m.Header {
				if len(vs) > 0 {
					msg.Metadata[k] = vs[0]
				}
			}
			if id := msg.Metadata[natsgo.MsgIdHdr]; id != "" {
				msg.ID = id
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
	if t.conn == nil || !t.conn.IsConnected() {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	header := natsgo.Header{}
	for k, v := range msg.Metadata {
		header[k] = []string{v}
	}
	if msg.ID != "" {
		header[natsgo.MsgIdHdr] = []string{msg.ID}
	}
	return t.conn.PublishMsg(&natsgo.Msg{
		Subject: msg.Topic,
		Data:    msg.Payload,
		Header:  header,
	})
}
