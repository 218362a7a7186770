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

package mqtt5

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins/fanout"
)

const opTimeout = 10 * time.Second

// BrokerTopic converts a dotted stream topic into an MQTT topic.
func BrokerTopic(topic string) string {
	return strings.ReplaceAll(topic, ".", "/")
}

type Transport struct {
	core.ConnLoss

	name      string
	brokerURL string
	qos       byte
	cm        *autopaho.ConnectionManager
	router    *paho.StandardRouter
	hub       *fanout.Hub
	logger    *slog.Logger
}

func New(name, brokerURL string, qos byte, logger *slog.Logger) *Transport {
	t := &Transport{
		name:      name,
		brokerURL: brokerURL,
		qos:       qos,
		logger:    logger,
		router:    paho.NewStandardRouter(),
	}
	t.hub = fanout.New(t.subscribe, t.unsubscribe)
	return t
}

func (t *Transport) Name() string { return t.name }
func (t *Transport) Type() string { return "mqtt5" }

func (t *Transport) Connect(ctx context.Context) error {
	serverURL, err := url.Parse(t.brokerURL)
	if err != nil {
		return fmt.Errorf("mqtt5 invalid URL: %w", err)
	}

	fire := t.Arm()
	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		KeepAlive:                     30,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			t.logger.Info("mqtt5 connection up", "name", t.name)
			for _, topic := range t.hub.Topics() {
				if err := t.brokerSubscribe(BrokerTopic(topic)); err != nil {
					t.logger.Error("mqtt5 resubscribe failed", "name", t.name, "topic", topic, "error", err)
				}
			}
		},
		OnConnectionDown: func() bool {
			t.logger.Warn("mqtt5 connection down", "name", t.name)
			fire(errors.New("mqtt5 connection down"))
			return false
		},
		OnConnectError: func(err error) {
			t.logger.Warn("mqtt5 connect error", "name", t.name, "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "stream-bridge-" + t.name + "-" + uuid.New().String()[:8],
			Router:   t.router,
		},
	}

	// The manager runs until the lifetime ends; ctx only bounds the wait.
	cm, err := autopaho.NewConnection(core.Lifetime(ctx), cfg)
	if err != nil {
		return fmt.Errorf("mqtt5 connection: %w", err)
	}

	if err := cm.AwaitConnection(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		_ = cm.Disconnect(stopCtx)
		return fmt.Errorf("mqtt5 await connection: %w", err)
	}
	t.cm = cm

	t.logger.Info("mqtt5 transport connected", "name", t.name, "broker", t.brokerURL)
	return nil
}

func (t *Transport) Disconnect(ctx context.Context) error {
	cm := t.cm
	if cm == nil {
		return nil
	}
	t.cm = nil
	return cm.Disconnect(ctx)
}

// subscribe runs under the hub lock on the first consumer of topic.
func (t *Transport) subscribe(topic string) error {
	if t.cm == nil {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	brokerTopic := BrokerTopic(topic)
	t.router.RegisterHandler(brokerTopic, func(p *paho.Publish) {
		t.hub.Deliver(context.Background(), t.message(topic, p))
	})
	if err := t.brokerSubscribe(brokerTopic); err != nil {
		t.router.UnregisterHandler(brokerTopic)
		return err
	}
	return nil
}

func (t *Transport) brokerSubscribe(brokerTopic string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_, err := t.cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: brokerTopic, QoS: t.qos},
		},
	})
	if err != nil {
		return fmt.Errorf("mqtt5 subscribe %s: %w", brokerTopic, err)
	}
	return nil
}

func (t *Transport) unsubscribe(topic string) {
	brokerTopic := BrokerTopic(topic)
	t.router.UnregisterHandler(brokerTopic)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if _, err := t.cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{brokerTopic}}); err != nil {
		t.logger.Warn("mqtt5 unsubscribe failed", "name", t.name, "topic", brokerTopic, "error", err)
	}
}

func (t *Transport) message(topic string, p *paho.Publish) core.Message {
	msg := core.Message{
		ID:        uuid.New().String(),
		Topic:     topic,
		Payload:   p.Payload,
		Metadata:  map[string]string{},
		Timestamp: time.Now().UTC(),
	}
	if p.Properties != nil {
		for _, u := range p.Properties.User {
			msg.Metadata[u.Key] = u.Value
		}
		if len(p.Properties.CorrelationData) > 0 {
			msg.Key = string(p.Properties.CorrelationData)
		}
	}
	return msg
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
	if t.cm == nil {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	props := &paho.PublishProperties{}
	for k, v := range msg.Metadata {
		props.User = append(props.User, paho.UserProperty{Key: k, Value: v})
	}
	if msg.Key != "" {
		props.CorrelationData = []byte(msg.Key)
	}
	_, err := t.cm.Publish(ctx, &paho.Publish{
		Topic:      BrokerTopic(msg.Topic),
		QoS:        t.qos,
		Payload:    msg.Payload,
		Properties: props,
	})
	return err
}
