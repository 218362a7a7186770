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

package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins/fanout"
)

const opTimeout = 10 * time.Second

// Transport speaks MQTT 3.1.1. The protocol has no message properties, so
// only payloads cross the broker.
type Transport struct {
	core.ConnLoss

	name   string
	broker string
	qos    byte
	client pahomqtt.Client
	hub    *fanout.Hub
	logger *slog.Logger
}

func New(name, broker string, qos byte, logger *slog.Logger) *Transport {
	t := &Transport{
		name:   name,
		broker: broker,
		qos:    qos,
		logger: logger,
	}
	t.hub = fanout.New(t.subscribe, t.unsubscribe)
	return t
}

func (t *Transport) Name() string { return t.name }
func (t *Transport) Type() string { return "mqtt" }

func brokerTopic(topic string) string {
	return strings.ReplaceAll(topic, ".", "/")
}

// wait blocks on token until it completes, ctx is done or the operation
// times out.
func wait(ctx context.Context, token pahomqtt.Token) error {
	timer := time.NewTimer(opTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("mqtt operation timed out after %s", opTimeout)
	}
}

func (t *Transport) Connect(ctx context.Context) error {
	fire := t.Arm()
	// The registry reconnects lost transports, so paho must not.
	opts := pahomqtt.NewClientOptions().
		AddBroker(t.broker).
		SetClientID("stream-bridge-" + t.name + "-" + uuid.New().String()[:8]).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetOnConnectHandler(func(c pahomqtt.Client) {
			t.logger.Info("mqtt connected to broker", "name", t.name)
			for _, topic := range t.hub.Topics() {
				c.Subscribe(brokerTopic(topic), t.qos, t.handler(topic))
			}
		}).
		SetConnectionLostHandler(func(c pahomqtt.Client, err error) {
			t.logger.Warn("mqtt connection lost", "name", t.name, "error", err)
			fire(err)
		})

	t.client = pahomqtt.NewClient(opts)
	if err := wait(ctx, t.client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", t.broker, err)
	}
	t.logger.Info("mqtt transport connected", "name", t.name, "broker", t.broker)
	return nil
}

func (t *Transport) Disconnect(ctx context.Context) error {
	if t.client != nil {
		t.client.Disconnect(250)
	}
	return nil
}

func (t *Transport) handler(topic string) pahomqtt.MessageHandler {
	return func(c pahomqtt.Client, m pahomqtt.Message) {
		t.hub.Deliver(context.Background(), core.Message{
			ID:        uuid.New().String(),
			Topic:     topic,
			Payload:   m.Payload(),
			Metadata:  map[string]string{"mqtt_topic": m.Topic()},
			Timestamp: time.Now().UTC(),
		})
	}
}

// subscribe runs under the hub lock on the first consumer of topic.
func (t *Transport) subscribe(topic string) error {
	if t.client == nil {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	if err := wait(context.Background(), t.client.Subscribe(brokerTopic(topic), t.qos, t.handler(topic))); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	return nil
}

func (t *Transport) unsubscribe(topic string) {
	if err := wait(context.Background(), t.client.Unsubscribe(brokerTopic(topic))); err != nil {
		t.logger.Warn("mqtt unsubscribe failed", "name", t.name, "topic", topic, "error", err)
	}
}

func (t *Transport) Consume(ctx context.Context, topic string, ch chan<- core.Message) error {
	leave, err := t.hub.Join(topic, ch, ctx.Done())
	if err != nil {
		return err
	}
	defer leave()
	<-ctx.Done()
	return nil
}

func (t *Transport) Publish(ctx context.Context, msg core.Message) error {
	if t.client == nil {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	return wait(ctx, t.client.Publish(brokerTopic(msg.Topic), t.qos, false, msg.Payload))
}
