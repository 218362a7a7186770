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

package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/stream"
)

// blockingResolver never completes, keeping connected clients in CONNECTING.
type blockingResolver struct{}

func (blockingResolver) Resolve(ctx context.Context, serverAddress, forced string) (core.Transport, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetOrCreateClientReturnsSameHandle(t *testing.T) {
	r := NewRegistry(blockingResolver{}, testLogger())

	c1, created, err := r.GetOrCreateClient("c1")
	if err != nil || !created {
		t.Fatalf("first GetOrCreateClient: created=%v err=%v", created, err)
	}
	c2, created, err := r.GetOrCreateClient("c1")
	if err != nil || created {
		t.Fatalf("second GetOrCreateClient: created=%v err=%v", created, err)
	}
	if c1 != c2 {
		t.Fatal("expected the same client handle for the same id")
	}
	got, err := r.GetClient("c1")
	if err != nil || got != c1 {
		t.Fatalf("GetClient: %v", err)
	}
}

func TestLookupsOfUnknownIDs(t *testing.T) {
	r := NewRegistry(blockingResolver{}, testLogger())

	_, err := r.GetSubscription("missing")
	if !errors.Is(err, core.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
	if err.Error() != "subscription not found: Subscription missing doesn't exist" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if core.ErrorCode(err) != core.CodeNotFound {
		t.Fatalf("expected NotFound code, got %s", core.ErrorCode(err))
	}

	if _, err := r.GetClient("missing"); !errors.Is(err, core.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestGetOrCreateSubscription(t *testing.T) {
	r := NewRegistry(blockingResolver{}, testLogger())

	s1, created, err := r.GetOrCreateSubscription("s1", stream.ModeMerge)
	if err != nil || !created {
		t.Fatalf("create: created=%v err=%v", created, err)
	}
	s2, created, err := r.GetOrCreateSubscription("s1", stream.ModeCommand)
	if err != nil || created || s1 != s2 {
		t.Fatalf("expected existing handle: created=%v err=%v", created, err)
	}
	if s2.Mode() != stream.ModeMerge {
		t.Fatalf("existing subscription mode changed to %s", s2.Mode())
	}

	if _, _, err := r.GetOrCreateSubscription("s2", "BOGUS"); err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
}

func TestRemoveCountsAndRefusals(t *testing.T) {
	r := NewRegistry(blockingResolver{}, testLogger())

	for _, id := range []string{"idle1", "idle2", "busy"} {
		if _, _, err := r.GetOrCreateClient(id); err != nil {
			t.Fatalf("create client %s: %v", id, err)
		}
	}
	busy, _ := r.GetClient("busy")
	if err := busy.ConnectionDetails.SetServerAddress("mock://localhost"); err != nil {
		t.Fatalf("SetServerAddress: %v", err)
	}
	if err := busy.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(busy.Disconnect)

	for _, id := range []string{"sub1", "active"} {
		if _, _, err := r.GetOrCreateSubscription(id, stream.ModeMerge); err != nil {
			t.Fatalf("create subscription %s: %v", id, err)
		}
	}
	active, _ := r.GetSubscription("active")
	_ = active.SetItems([]string{"item1"})
	_ = active.SetFields([]string{"f1"})
	if err := busy.Subscribe(active); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	res := r.Remove(
		[]string{"idle1", "idle2", "busy", "unknown"},
		[]string{"sub1", "active", "unknown"},
	)
	if res.Clients != 2 || res.Subscriptions != 1 {
		t.Fatalf("unexpected counts %+v", res)
	}
	if len(res.RefusedClients) != 1 || res.RefusedClients[0] != "busy" {
		t.Fatalf("unexpected refused clients %v", res.RefusedClients)
	}
	if len(res.RefusedSubscriptions) != 1 || res.RefusedSubscriptions[0] != "active" {
		t.Fatalf("unexpected refused subscriptions %v", res.RefusedSubscriptions)
	}

	clients, subs := r.Counts()
	if clients != 1 || subs != 1 {
		t.Fatalf("expected 1 client and 1 subscription left, got %d and %d", clients, subs)
	}
	if _, err := r.GetClient("idle1"); !errors.Is(err, core.ErrClientNotFound) {
		t.Fatalf("removed client still resolvable: %v", err)
	}
}

func TestSubscriptionIDsFilter(t *testing.T) {
	r := NewRegistry(blockingResolver{}, testLogger())
	for _, id := range []string{"b", "a", "c"} {
		if _, _, err := r.GetOrCreateSubscription(id, stream.ModeDistinct); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	all := r.SubscriptionIDs(nil)
	if len(all) != 3 || all[0] != "a" || all[2] != "c" {
		t.Fatalf("unexpected ids %v", all)
	}
	none := r.SubscriptionIDs(func(*stream.Subscription) bool { return false })
	if len(none) != 0 {
		t.Fatalf("expected no ids, got %v", none)
	}
}

func TestRemoveRefusesClientHoldingSubscriptions(t *testing.T) {
	r := NewRegistry(blockingResolver{}, testLogger())

	c, _, _ := r.GetOrCreateClient("c1")
	s, _, _ := r.GetOrCreateSubscription("s1", stream.ModeMerge)
	_ = s.SetItems([]string{"item1"})
	_ = s.SetFields([]string{"f1"})
	if err := c.Subscribe(s); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if c.Status() != stream.StatusDisconnected {
		t.Fatalf("client status %s, want %s", c.Status(), stream.StatusDisconnected)
	}

	res := r.Remove([]string{"c1"}, []string{"s1"})
	if res.Clients != 0 || res.Subscriptions != 0 {
		t.Fatalf("expected nothing removed, got %+v", res)
	}
	if len(res.RefusedClients) != 1 || len(res.RefusedSubscriptions) != 1 {
		t.Fatalf("expected c1 and s1 refused, got %+v", res)
	}

	if err := c.Unsubscribe(s); err != nil {
		t.Fatalf("Unsubscribe after refused cleanup: %v", err)
	}
	res = r.Remove([]string{"c1"}, []string{"s1"})
	if res.Clients != 1 || res.Subscriptions != 1 {
		t.Fatalf("expected c1 and s1 removed, got %+v", res)
	}
}
