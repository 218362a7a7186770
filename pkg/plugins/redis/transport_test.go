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

package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

func TestNotConnected(t *testing.T) {
	tr := New("cache", "localhost:6379", time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	if err := tr.Publish(ctx, core.Message{Topic: "t"}); !errors.Is(err, core.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected on publish, got %v", err)
	}
	if err := tr.Consume(ctx, "t", make(chan core.Message)); !errors.Is(err, core.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected on consume, got %v", err)
	}
	if _, err := tr.Snapshot(ctx, "t"); !errors.Is(err, core.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected on snapshot, got %v", err)
	}
}

func TestLastKey(t *testing.T) {
	if got := lastKey("DEMO.item1"); got != "stream-bridge:last:DEMO.item1" {
		t.Fatalf("unexpected key %q", got)
	}
}
