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

package core

import (
	"errors"
	"testing"
)

func TestArgsDefaults(t *testing.T) {
	args := Args{"nullString": nil}

	if v, err := args.Int("missing"); err != nil || v != -1 {
		t.Fatalf("Int default = %d, %v; want -1, nil", v, err)
	}
	if v, err := args.IntOr("missing", 7); err != nil || v != 7 {
		t.Fatalf("IntOr default = %d, %v; want 7, nil", v, err)
	}
	if v, err := args.String("nullString"); err != nil || v != "" {
		t.Fatalf("String null = %q, %v; want empty", v, err)
	}
	if v, err := args.Bool("missing"); err != nil || v {
		t.Fatalf("Bool default = %v, %v; want false", v, err)
	}
	if v, err := args.BoolOr("missing", true); err != nil || !v {
		t.Fatalf("BoolOr default = %v, %v; want true", v, err)
	}
	if v, err := args.StringList("missing"); err != nil || v == nil || len(v) != 0 {
		t.Fatalf("StringList default = %v, %v; want empty list", v, err)
	}
	if v, err := args.StringMap("missing"); err != nil || v == nil || len(v) != 0 {
		t.Fatalf("StringMap default = %v, %v; want empty map", v, err)
	}
	if v, err := args.Map("missing"); err != nil || v == nil || len(v) != 0 {
		t.Fatalf("Map default = %v, %v; want empty map", v, err)
	}

	var nilArgs Args
	if v, err := nilArgs.String("id"); err != nil || v != "" {
		t.Fatalf("nil Args String = %q, %v", v, err)
	}
}

func TestArgsWrongType(t *testing.T) {
	args := Args{
		"str":   "x",
		"num":   int64(3),
		"list":  []any{"a", 1},
		"map":   map[string]any{"k": true},
		"float": 1.5,
		"big":   uint64(1 << 40),
	}

	tests := []struct {
		name string
		call func() error
	}{
		{"int from string", func() error { _, err := args.Int("str"); return err }},
		{"int from fraction", func() error { _, err := args.Int("float"); return err }},
		{"int overflow", func() error { _, err := args.Int("big"); return err }},
		{"string from int", func() error { _, err := args.String("num"); return err }},
		{"bool from string", func() error { _, err := args.Bool("str"); return err }},
		{"list element", func() error { _, err := args.StringList("list"); return err }},
		{"list from string", func() error { _, err := args.StringList("str"); return err }},
		{"map value", func() error { _, err := args.StringMap("map"); return err }},
		{"map from list", func() error { _, err := args.Map("list"); return err }},
	}
	for _, tt := range tests {
		err := tt.call()
		if !errors.Is(err, ErrBadArgument) {
			t.Errorf("%s: expected ErrBadArgument, got %v", tt.name, err)
		}
	}
}

func TestArgsDecodedShapes(t *testing.T) {
	args := Args{
		"cbor":    uint64(42),
		"neg":     int64(-5),
		"json":    float64(30000),
		"items":   []any{"a", "b"},
		"headers": map[any]any{"X-A": "1"},
		"details": map[string]any{"user": "u"},
	}

	if v, _ := args.Int("cbor"); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
	if v, _ := args.Int("neg"); v != -5 {
		t.Fatalf("expected -5, got %d", v)
	}
	if v, _ := args.Int("json"); v != 30000 {
		t.Fatalf("expected 30000, got %d", v)
	}
	items, _ := args.StringList("items")
	if len(items) != 2 || items[1] != "b" {
		t.Fatalf("unexpected items %v", items)
	}
	headers, err := args.StringMap("headers")
	if err != nil || headers["X-A"] != "1" {
		t.Fatalf("unexpected headers %v, %v", headers, err)
	}
	details, err := args.Map("details")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u, _ := details.String("user"); u != "u" {
		t.Fatalf("expected user u, got %q", u)
	}
}

func TestArgReaderKeepsFirstError(t *testing.T) {
	r := NewArgReader(Args{
		"id":      "c1",
		"options": map[string]any{"idleTimeout": "soon", "retryDelay": true},
	})

	if id := r.String("id"); id != "c1" {
		t.Fatalf("expected c1, got %q", id)
	}
	opts := r.Map("options")
	opts.Int("idleTimeout")
	opts.Int("retryDelay")

	err := r.Err()
	if !errors.Is(err, ErrBadArgument) {
		t.Fatalf("expected ErrBadArgument, got %v", err)
	}
	if got := err.Error(); got != "bad argument: key=idleTimeout want=int32 got=string" {
		t.Fatalf("unexpected error text %q", got)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrBadArgument, CodeBadArgument},
		{ErrSubscriptionNotFound, CodeNotFound},
		{ErrClientNotFound, CodeNotFound},
		{ErrIllegalState, CodeIllegalState},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}

	reply := NewErrorReply(9, ErrIllegalState)
	if reply.ID != 9 || reply.Error == nil || reply.Error.Code != CodeIllegalState || reply.OK() {
		t.Fatalf("unexpected reply %+v", reply)
	}
}
