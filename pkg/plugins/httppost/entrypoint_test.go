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

package httppost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

type scriptedDispatcher struct {
	calls []core.MethodCall
}

func (d *scriptedDispatcher) Dispatch(_ context.Context, call core.MethodCall) core.Reply {
	d.calls = append(d.calls, call)
	switch call.Method {
	case "LightstreamerClient.getStatus":
		return core.Reply{ID: call.ID, Result: "DISCONNECTED"}
	case "Subscription.isActive":
		return core.NewErrorReply(call.ID, core.ErrSubscriptionNotFound)
	case "LightstreamerClient.subscribe":
		return core.NewErrorReply(call.ID, core.ErrIllegalState)
	case "LightstreamerClient.connect":
		return core.NewErrorReply(call.ID, core.ErrBadArgument)
	case "LightstreamerClient.disconnect":
		return core.NewErrorReply(call.ID, io.ErrUnexpectedEOF)
	default:
		return core.Reply{ID: call.ID, NotImplemented: true}
	}
}

type fakeManager struct {
	sess *core.Session
}

func (m *fakeManager) CreateSession(context.Context, string, string) (*core.Session, error) {
	return nil, core.ErrIllegalState
}

func (m *fakeManager) DestroySession(string) error { return nil }

func (m *fakeManager) Session(id string) (*core.Session, bool) {
	if id == m.sess.ChannelID {
		return m.sess, true
	}
	return nil, false
}

func post(t *testing.T, srv *httptest.Server, channel, body string) (int, core.Reply) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/", strings.NewReader(body))
	req.Header.Set(core.ChannelIDHeader, channel)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var reply core.Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return resp.StatusCode, reply
}

func TestStatusCodes(t *testing.T) {
	d := &scriptedDispatcher{}
	m := &fakeManager{sess: &core.Session{ID: "s1", ChannelID: "chan-1", Dispatcher: d}}
	e := New("post-test", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(e.Handler(m))
	defer srv.Close()

	tests := []struct {
		method string
		status int
		code   string
	}{
		{"LightstreamerClient.getStatus", http.StatusOK, ""},
		{"LightstreamerClient.connect", http.StatusBadRequest, core.CodeBadArgument},
		{"Subscription.isActive", http.StatusNotFound, core.CodeNotFound},
		{"LightstreamerClient.subscribe", http.StatusConflict, core.CodeIllegalState},
		{"LightstreamerClient.disconnect", http.StatusInternalServerError, core.CodeInternal},
		{"Foo.bar", http.StatusNotImplemented, ""},
	}
	for i, tt := range tests {
		status, reply := post(t, srv, "chan-1", fmt.Sprintf(`{"id":%d,"method":%q,"args":{"id":"c1"}}`, i+1, tt.method))
		if status != tt.status {
			t.Fatalf("%s: status %d, want %d", tt.method, status, tt.status)
		}
		if tt.code != "" && (reply.Error == nil || reply.Error.Code != tt.code) {
			t.Fatalf("%s: unexpected reply %+v", tt.method, reply)
		}
	}

	_, reply := post(t, srv, "chan-1", `{"id":1,"method":"LightstreamerClient.getStatus","args":{"id":"c1"}}`)
	if reply.Result != "DISCONNECTED" {
		t.Fatalf("unexpected result %v", reply.Result)
	}
	if got := d.calls[0].Args["id"]; got != "c1" {
		t.Fatalf("args not forwarded: %v", d.calls[0].Args)
	}
}

func TestUnknownChannelAndBadBody(t *testing.T) {
	m := &fakeManager{sess: &core.Session{ID: "s1", ChannelID: "chan-1", Dispatcher: &scriptedDispatcher{}}}
	e := New("post-test", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(e.Handler(m))
	defer srv.Close()

	status, reply := post(t, srv, "other", `{"id":1,"method":"LightstreamerClient.getStatus"}`)
	if status != http.StatusNotFound || reply.Error == nil || reply.Error.Code != core.CodeNotFound {
		t.Fatalf("expected not found, got %d %+v", status, reply)
	}

	status, reply = post(t, srv, "chan-1", `{"method":`)
	if status != http.StatusBadRequest || reply.Error == nil || reply.Error.Code != core.CodeBadArgument {
		t.Fatalf("expected bad argument, got %d %+v", status, reply)
	}

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}
