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

package fanout

import (
	"context"
	"errors"
	"testing"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

func TestOpenAndCloseFollowConsumers(t *testing.T) {
	var opened, closed []string
	h := New(
		func(topic string) error { opened = append(opened, topic); return nil },
		func(topic string) { closed = append(closed, topic) },
	)

	done := make(chan struct{})
	leaveA, err := h.Join("t", make(chan core.Message, 1), done)
	if err != nil {
		t.Fatalf("join a: %v", err)
	}
	leaveB, err := h.Join("t", make(chan core.Message, 1), done)
	if err != nil {
		t.Fatalf("join b: %v", err)
	}
	if len(opened) != 1 {
		t.Fatalf("expected one open, got %v", opened)
	}

	leaveA()
	leaveA()
	if len(closed) != 0 || h.Len("t") != 1 {
		t.Fatalf("closed too early: closed=%v len=%d", closed, h.Len("t"))
	}
	leaveB()
	if len(closed) != 1 || len(h.Topics()) != 0 {
		t.Fatalf("expected close after last leave: closed=%v topics=%v", closed, h.Topics())
	}
}

func TestOpenFailureRejectsJoin(t *testing.T) {
	boom := errors.New("boom")
	h := New(func(string) error { return boom }, nil)
	if _, err := h.Join("t", make(chan core.Message), make(chan struct{})); !errors.Is(err, boom) {
		t.Fatalf("expected open error, got %v", err)
	}
	if h.Len("t") != 0 {
		t.Fatal("failed join left a consumer behind")
	}
}

func TestDeliverSkipsFinishedConsumers(t *testing.T) {
	h := New(nil, nil)
	live := make(chan core.Message, 1)
	if _, err := h.Join("t", live, make(chan struct{})); err != nil {
		t.Fatalf("join: %v", err)
	}
	finished := make(chan struct{})
	close(finished)
	if _, err := h.Join("t", make(chan core.Message), finished); err != nil {
		t.Fatalf("join: %v", err)
	}

	if n := h.Deliver(context.Background(), core.Message{Topic: "t"}); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if len(live) != 1 {
		t.Fatal("live consumer did not receive the message")
	}
}
