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
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

func TestNotConnected(t *testing.T) {
	tr := New("nats-test", "nats://127.0.0.1:4222", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	if err := tr.Consume(ctx, "DEMO.QUOTES.item1", make(chan core.Message)); !errors.Is(err, core.ErrNotConnected) {
		t.Fatalf("expected not connected on consume, got %v", err)
	}
	if err := tr.Publish(ctx, core.Message{Topic: "DEMO.messages"}); !errors.Is(err, core.ErrNotConnected) {
		t.Fatalf("expected not connected on publish, got %v", err)
	}
	if err := tr.Disconnect(ctx); err != nil {
		t.Fatalf("disconnect before connect: %v", err)
	}
}
