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
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

func TestNotConnected(t *testing.T) {
	tr := New("mq", "tcp://localhost:1883", 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if tr.Type() != "mqtt" {
		t.Fatalf("unexpected type %q", tr.Type())
	}
	if err := tr.Consume(context.Background(), "DEMO.item1", make(chan core.Message)); !errors.Is(err, core.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected on consume, got %v", err)
	}
	if err := tr.Publish(context.Background(), core.Message{Topic: "DEMO.item1"}); !errors.Is(err, core.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected on publish, got %v", err)
	}
}

func TestBrokerTopic(t *testing.T) {
	if got := brokerTopic("DEMO.ADAPTER.item1"); got != "DEMO/ADAPTER/item1" {
		t.Fatalf("unexpected broker topic %q", got)
	}
}
