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

package codec

import (
	"bytes"
	"testing"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

func TestCallFrameDecodesNestedMaps(t *testing.T) {
	data, err := Marshal(map[string]any{
		"id":     7,
		"method": "LightstreamerClient.connect",
		"args": map[string]any{
			"id":                "c1",
			"connectionDetails": map[string]any{"serverAddress": "mock://x"},
			"retryDelay":        3000,
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var f Frame
	if err := Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	call := f.Call()
	if call.ID != 7 || call.Method != "LightstreamerClient.connect" {
		t.Fatalf("unexpected call %+v", call)
	}
	details, err := call.Args.Map("connectionDetails")
	if err != nil {
		t.Fatalf("nested map: %v", err)
	}
	if s, _ := details.String("serverAddress"); s != "mock://x" {
		t.Fatalf("unexpected serverAddress %q", s)
	}
	if n, err := call.Args.Int("retryDelay"); err != nil || n != 3000 {
		t.Fatalf("retryDelay = %d, %v", n, err)
	}
}

func TestReplyFrames(t *testing.T) {
	tests := []struct {
		name  string
		reply core.Reply
		check func(Frame) bool
	}{
		{"result", core.Reply{ID: 1, Result: "CONNECTING"}, func(f Frame) bool { return f.Result == "CONNECTING" && f.Error == nil }},
		{"error", core.NewErrorReply(2, core.ErrIllegalState), func(f Frame) bool { return f.Error != nil && f.Error.Code == core.CodeIllegalState }},
		{"not implemented", core.Reply{ID: 3, NotImplemented: true}, func(f Frame) bool { return f.NotImplemented && f.Error == nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewEncoder(&buf).Encode(ReplyFrame(tt.reply)); err != nil {
				t.Fatalf("encode: %v", err)
			}
			var f Frame
			if err := NewDecoder(&buf).Decode(&f); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if f.ID != tt.reply.ID || !tt.check(f) {
				t.Fatalf("unexpected frame %+v", f)
			}
		})
	}
}

func TestEnvelope(t *testing.T) {
	msg := core.Message{
		ID:        "m1",
		Key:       "k",
		Payload:   []byte(`{"bid":"1.5"}`),
		Metadata:  map[string]string{"ls_command": "CS"},
		Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := Wrap(msg)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	got := Unwrap("DEMO.item1", data)
	if got.ID != "m1" || got.Key != "k" || got.Topic != "DEMO.item1" ||
		string(got.Payload) != `{"bid":"1.5"}` || got.Metadata["ls_command"] != "CS" ||
		!got.Timestamp.Equal(msg.Timestamp) {
		t.Fatalf("unexpected message %+v", got)
	}

	raw := Unwrap("DEMO.item1", []byte("plain text"))
	if string(raw.Payload) != "plain text" || raw.Metadata == nil {
		t.Fatalf("foreign payload not kept as is: %+v", raw)
	}
}
