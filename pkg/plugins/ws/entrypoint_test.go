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

package ws

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/codec"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

type echoDispatcher struct{}

func (echoDispatcher) Dispatch(_ context.Context, call core.MethodCall) core.Reply {
	if !strings.HasPrefix(call.Method, "LightstreamerClient.") {
		return core.Reply{ID: call.ID, NotImplemented: true}
	}
	id, err := call.Args.String("id")
	if err != nil {
		return core.NewErrorReply(call.ID, err)
	}
	return core.Reply{ID: call.ID, Result: call.Method + ":" + id}
}

type fakeManager struct {
	mu        sync.Mutex
	events    chan core.Event
	channels  []string
	destroyed chan string
	fail      error
}

func newFakeManager() *fakeManager {
	return &fakeManager{events: make(chan core.Event, 4), destroyed: make(chan string, 4)}
}

func (m *fakeManager) CreateSession(_ context.Context, entrypoint, channelID string) (*core.Session, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	m.mu.Lock()
	m.channels = append(m.channels, channelID)
	m.mu.Unlock()
	return &core.Session{
		ID:             "sess-" + channelID,
		ChannelID:      channelID,
		EntrypointName: entrypoint,
		Dispatcher:     echoDispatcher{},
		Events:         m.events,
	}, nil
}

func (m *fakeManager) DestroySession(id string) error {
	m.destroyed <- id
	return nil
}

func (m *fakeManager) Session(string) (*core.Session, bool) { return nil, false }

func dial(t *testing.T, manager core.SessionManager, header http.Header) *websocket.Conn {
	t.Helper()
	e := New("ws-test", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(e.Handler(manager))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, f codec.Frame) {
	t.Helper()
	data, err := codec.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func receive(t *testing.T, conn *websocket.Conn) codec.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f codec.Frame
	if err := codec.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return f
}

func TestCallsAndEvents(t *testing.T) {
	manager := newFakeManager()
	header := http.Header{}
	header.Set(core.ChannelIDHeader, "chan-1")
	conn := dial(t, manager, header)

	send(t, conn, codec.Frame{ID: 1, Method: "LightstreamerClient.getStatus", Args: map[string]any{"id": "c1"}})
	reply := receive(t, conn)
	if reply.ID != 1 || reply.Result != "LightstreamerClient.getStatus:c1" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	send(t, conn, codec.Frame{ID: 2, Method: "Foo.bar"})
	if reply := receive(t, conn); reply.ID != 2 || !reply.NotImplemented || reply.Error != nil {
		t.Fatalf("expected not implemented, got %+v", reply)
	}

	send(t, conn, codec.Frame{ID: 3, Method: "LightstreamerClient.connect", Args: map[string]any{"id": 7}})
	if reply := receive(t, conn); reply.Error == nil || reply.Error.Code != core.CodeBadArgument {
		t.Fatalf("expected bad argument, got %+v", reply)
	}

	manager.events <- core.Event{Method: "ClientListener.onStatusChange", Args: map[string]any{"id": "c1", "status": "CONNECTING"}}
	evt := receive(t, conn)
	if evt.Event != "ClientListener.onStatusChange" || evt.Args["status"] != "CONNECTING" {
		t.Fatalf("unexpected event %+v", evt)
	}

	manager.mu.Lock()
	channels := manager.channels
	manager.mu.Unlock()
	if len(channels) != 1 || channels[0] != "chan-1" {
		t.Fatalf("expected channel from header, got %v", channels)
	}
}

func TestUndecodableFrame(t *testing.T) {
	conn := dial(t, newFakeManager(), nil)
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0xff, 0x00}); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := receive(t, conn)
	if reply.Error == nil || reply.Error.Code != core.CodeBadArgument {
		t.Fatalf("expected bad argument, got %+v", reply)
	}
}

func TestDisconnectDestroysSession(t *testing.T) {
	manager := newFakeManager()
	header := http.Header{}
	header.Set(core.ChannelIDHeader, "chan-2")
	conn := dial(t, manager, header)
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	select {
	case id := <-manager.destroyed:
		if id != "sess-chan-2" {
			t.Fatalf("destroyed wrong session %s", id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("session not destroyed")
	}
}

func TestSessionCreationFailureClosesConnection(t *testing.T) {
	manager := newFakeManager()
	manager.fail = core.ErrIllegalState
	conn := dial(t, manager, nil)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}
