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

package solace

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
	"solace.dev/go/messaging"
	"solace.dev/go/messaging/pkg/solace"
	"solace.dev/go/messaging/pkg/solace/config"
	"solace.dev/go/messaging/pkg/solace/message"
	"solace.dev/go/messaging/pkg/solace/resource"
)

const terminateTimeout = 5 * time.Second

func brokerTopic(topic string) string {
	return strings.ReplaceAll(topic, ".", "/")
}

type Transport struct {
	name      string
	host      string
	vpn       string
	username  string
	password  string
	service   solace.MessagingService
	publisher solace.DirectMessagePublisher
	pubMu     sync.Mutex
	logger    *slog.Logger
	consumers sync.Map
}

func New(name, host, vpn, username, password string, logger *slog.Logger) *Transport {
	return &Transport{
		name:     name,
		host:     host,
		vpn:      vpn,
		username: username,
		password: password,
		logger:   logger,
	}
}

func (t *Transport) Name() string { return t.name }
func (t *Transport) Type() string { return "solace" }

func (t *Transport) Connect(ctx context.Context) error {
	var err error
	t.service, err = messaging.NewMessagingServiceBuilder().
		FromConfigurationProvider(config.ServicePropertyMap{
			config.TransportLayerPropertyHost:                t.host,
			config.ServicePropertyVPNName:                    t.vpn,
			config.AuthenticationPropertySchemeBasicUserName: t.username,
			config.AuthenticationPropertySchemeBasicPassword: t.password,
		}).Build()
	if err != nil {
		return fmt.Errorf("solace build: %w", err)
	}
	if err = t.service.Connect(); err != nil {
		return fmt.Errorf("solace connect: %w", err)
	}

	t.publisher, err = t.service.CreateDirectMessagePublisherBuilder().Build()
	if err != nil {
		return fmt.Errorf("solace publisher build: %w", err)
	}
	if err = t.publisher.Start(); err != nil {
		return fmt.Errorf("solace publisher start: %w", err)
	}
	t.logger.Info("solace transport connected", "name", t.name, "host", t.host)
	return nil
}

func (t *Transport) Disconnect(ctx context.Context) error {
	t.consumers.Range(func(key, val any) bool {
		val.(solace.DirectMessageReceiver).Terminate(terminateTimeout)
		return true
	})
	if t.publisher != nil {
		t.publisher.Terminate(terminateTimeout)
	}
	if t.service != nil {
		return t.service.Disconnect()
	}
	return nil
}

func (t *Transport) Consume(ctx context.Context, topic string, ch chan<- core.Message) error {
	if t.service == nil {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	receiver, err := t.service.CreateDirectMessageReceiverBuilder().
		WithSubscriptions(resource.TopicSubscriptionOf(brokerTopic(topic))).
		Build()
	if err != nil {
		return fmt.Errorf("solace receiver build: %w", err)
	}
	if err = receiver.Start(); err != nil {
		return fmt.Errorf("solace receiver start: %w", err)
	}

	consumerID := uuid.New().String()
	t.consumers.Store(consumerID, receiver)
	defer func() {
		t.consumers.Delete(consumerID)
		receiver.Terminate(terminateTimeout)
	}()

	err = receiver.ReceiveAsync(func(inMsg message.InboundMessage) {
		payload, _ := inMsg.GetPayloadAsBytes()
		msg := core.Message{
			ID:        uuid.New().String(),
			Topic:     topic,
			Payload:   payload,
			Metadata:  map[string]string{},
			Timestamp: time.Now().UTC(),
		}
		for k, v := range inMsg.GetProperties() {
			msg.Metadata[k] = fmt.Sprint(v)
		}

		select {
		case ch <- msg:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("solace receive: %w", err)
	}

	<-ctx.Done()
	return nil
}

func (t *Transport) Publish(ctx context.Context, msg core.Message) error {
	if t.publisher == nil {
		return fmt.Errorf("%w: transport=%s", core.ErrNotConnected, t.name)
	}
	builder := t.service.MessageBuilder()
	for k, v := range msg.Metadata {
		builder = builder.WithProperty(config.MessageProperty(k), v)
	}
	out, err := builder.BuildWithByteArrayPayload(msg.Payload)
	if err != nil {
		return fmt.Errorf("solace message build: %w", err)
	}

	t.pubMu.Lock()
	defer t.pubMu.Unlock()
	return t.publisher.Publish(out, resource.TopicOf(brokerTopic(msg.Topic)))
}
