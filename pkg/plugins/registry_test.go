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

package plugins

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

type fakeTransport struct {
	name      string
	failFirst int

	mu          sync.Mutex
	connects    int
	disconnects int
	connectCtx  context.Context
}

func (f *fakeTransport) Name() string { return f.name }
func (f *fakeTransport) Type() string { return "fake" }

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	f.connectCtx = ctx
	if f.connects <= f.failFirst {
		return errors.New("broker down")
	}
	return nil
}

func (f *fakeTransport) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

func (f *fakeTransport) counts() (connects, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects
}

func (f *fakeTransport) Consume(ctx context.Context, topic string, ch chan<- core.Message) error {
	<-ctx.Done()
	return nil
}

func (f *fakeTransport) Publish(ctx context.Context, msg core.Message) error { return nil }

// monitoredTransport can have its broker connection dropped by the test.
type monitoredTransport struct {
	fakeTransport
	core.ConnLoss
	drop func(error)
}

func (m *monitoredTransport) Connect(ctx context.Context) error {
	if err := m.fakeTransport.Connect(ctx); err != nil {
		return err
	}
	fire := m.Arm()
	m.fakeTransport.mu.Lock()
	m.drop = fire
	m.fakeTransport.mu.Unlock()
	return nil
}

func (m *monitoredTransport) dropConnection(err error) {
	m.fakeTransport.mu.Lock()
	drop := m.drop
	m.fakeTransport.mu.Unlock()
	drop(err)
}

type recordingObserver struct {
	mu      sync.Mutex
	results []error
	lost    []string
}

func (o *recordingObserver) RecordTransportLost(name string) {
	o.mu.Lock()
	o.lost = append(o.lost, name)
	o.mu.Unlock()
}

func (o *recordingObserver) lostCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.lost)
}

func (o *recordingObserver) RecordTransportConnect(name string, err error) {
	o.mu.Lock()
	o.results = append(o.results, err)
	o.mu.Unlock()
}

func newRegistry(obs ConnectObserver) *Registry {
	return NewRegistry(obs, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAcquireUnknownTransport(t *testing.T) {
	r := newRegistry(nil)
	if r.Has("nope") {
		t.Fatal("unexpected transport")
	}
	if _, err := r.Acquire(context.Background(), "nope"); !errors.Is(err, core.ErrTransportNotFound) {
		t.Fatalf("expected ErrTransportNotFound, got %v", err)
	}
}

func TestAcquireConnectsOnce(t *testing.T) {
	obs := &recordingObserver{}
	r := newRegistry(obs)
	ft := &fakeTransport{name: "k", failFirst: 1}
	r.RegisterTransport(ft)

	if _, err := r.Acquire(context.Background(), "k"); !errors.Is(err, core.ErrTransportUnavailable) {
		t.Fatalf("expected ErrTransportUnavailable, got %v", err)
	}
	if r.IsTransportHealthy("k") {
		t.Fatal("transport healthy after failed connect")
	}

	for i := 0; i < 3; i++ {
		tr, err := r.Acquire(context.Background(), "k")
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		if tr != ft {
			t.Fatal("acquire returned another transport")
		}
	}
	if connects, _ := ft.counts(); connects != 2 {
		t.Fatalf("expected 2 connect attempts, got %d", connects)
	}
	if len(obs.results) != 2 || obs.results[0] == nil || obs.results[1] != nil {
		t.Fatalf("unexpected observed results %v", obs.results)
	}

	r.StopAll(context.Background())
	if _, disconnects := ft.counts(); disconnects != 1 || r.IsTransportHealthy("k") {
		t.Fatalf("expected one disconnect, got %d", disconnects)
	}
}

func TestStopAllSkipsUnusedTransports(t *testing.T) {
	r := newRegistry(nil)
	ft := &fakeTransport{name: "idle"}
	r.RegisterTransport(ft)
	r.StopAll(context.Background())
	if _, disconnects := ft.counts(); disconnects != 0 {
		t.Fatalf("disconnected a transport that never connected")
	}
}

func TestConnectionOutlivesTheAttempt(t *testing.T) {
	r := newRegistry(nil)
	ft := &fakeTransport{name: "mqtt"}
	r.RegisterTransport(ft)

	lifetime, stop := context.WithCancel(context.Background())
	defer stop()
	r.StartEntrypoints(lifetime, nil)

	attempt, cancel := context.WithTimeout(context.Background(), time.Second)
	if _, err := r.Acquire(attempt, "mqtt"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	cancel()

	ft.mu.Lock()
	got := ft.connectCtx
	ft.mu.Unlock()
	if got.Err() == nil {
		t.Fatal("connect context should be the attempt context")
	}
	if err := core.Lifetime(got).Err(); err != nil {
		t.Fatalf("connection lifetime ended with the attempt: %v", err)
	}
	if !r.IsTransportHealthy("mqtt") {
		t.Fatal("transport should stay healthy")
	}

	stop()
	if core.Lifetime(got).Err() == nil {
		t.Fatal("connection lifetime should follow the registry context")
	}
}

func TestLostConnectionIsReconnected(t *testing.T) {
	obs := &recordingObserver{}
	r := newRegistry(obs)
	mt := &monitoredTransport{fakeTransport: fakeTransport{name: "amqp"}}
	r.RegisterTransport(mt)

	if _, err := r.Acquire(context.Background(), "amqp"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	mt.dropConnection(errors.New("connection reset"))

	deadline := time.Now().Add(2 * time.Second)
	for r.IsTransportHealthy("amqp") || obs.lostCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("lost connection still reported healthy")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if cause := mt.LostErr(); cause == nil || cause.Error() != "connection reset" {
		t.Fatalf("unexpected loss cause %v", mt.LostErr())
	}

	tr, err := r.Acquire(context.Background(), "amqp")
	if err != nil || tr != mt {
		t.Fatalf("reacquire: %v", err)
	}
	connects, disconnects := mt.counts()
	if connects != 2 || disconnects != 1 {
		t.Fatalf("expected reconnect after teardown, got connects=%d disconnects=%d", connects, disconnects)
	}
	if !r.IsTransportHealthy("amqp") {
		t.Fatal("reconnected transport should be healthy")
	}
}

func TestAcquireReconnectsLostTransportBeforeWatcher(t *testing.T) {
	r := newRegistry(nil)
	mt := &monitoredTransport{fakeTransport: fakeTransport{name: "mqtt"}}
	r.RegisterTransport(mt)
	if _, err := r.Acquire(context.Background(), "mqtt"); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	mt.dropConnection(errors.New("gone"))
	if _, err := r.Acquire(context.Background(), "mqtt"); err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if connects, _ := mt.counts(); connects != 2 {
		t.Fatalf("expected a fresh connect, got %d", connects)
	}
}
