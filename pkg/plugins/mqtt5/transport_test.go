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
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

func TestBrokerTopic(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"DEMO.QUOTE_ADAPTER.item1", "DEMO/QUOTE_ADAPTER/item1"},
		{"DEMO.messages", "DEMO/messages"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := BrokerTopic(tt.in); got != tt.want {
			t.Fatalf("BrokerTopic(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMessageCarriesUserProperties(t *testing.T) {
	tr := New("mq", "mqtt://localhost:1883", 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	msg := tr.message("DEMO.item1", &paho.Publish{
		Topic:   "DEMO/item1",
		Payload: []byte("x"),
		Properties: &paho.PublishProperties{
			CorrelationData: []byte("k1"),
			User:            paho.UserProperties{{Key: "ls_command", Value: "CS"}},
		},
	})
	if msg.Topic != "DEMO.item1" || msg.Key != "k1" || msg.Metadata["ls_command"] != "CS" || string(msg.Payload) != "x" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestConsumeBeforeConnect(t *testing.T) {
	tr := New("mq", "mqtt://localhost:1883", 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := tr.Consume(context.Background(), "t", make(chan core.Message))
	if !errors.Is(err, core.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := tr.Publish(context.Background(), core.Message{Topic: "t"}); !errors.Is(err, core.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected on publish, got %v", err)
	}
}

func TestFailedAttemptReleasesConnection(t *testing.T) {
	tr := New("mq", "mqtt://127.0.0.1:1", 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var _ core.Monitored = tr

	attempt, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	lifetime, stop := context.WithCancel(context.Background())
	defer stop()

	if err := tr.Connect(core.WithLifetime(attempt, lifetime)); err == nil {
		t.Fatal("expected connect to an unreachable broker to fail")
	}
	if tr.cm != nil {
		t.Fatal("connection manager should be released after a failed attempt")
	}
	if tr.Lost() == nil || core.IsLost(tr.Lost()) {
		t.Fatal("loss signal should be armed and open after a failed attempt")
	}
	if err := tr.Disconnect(context.Background()); err != nil {
		t.Fatalf("disconnect without connection: %v", err)
	}
}
