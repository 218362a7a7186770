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

import "time"

const (
	MethodChannel   = "com.lightstreamer.flutter/methods"
	ListenerChannel = "com.lightstreamer.flutter/listeners"
)

// MethodCall is an inbound "Interface.method" invocation.
type MethodCall struct {
	ID     uint64 `cbor:"id" json:"id"`
	Method string `cbor:"method" json:"method"`
	Args   Args   `cbor:"args" json:"args"`
}

type ReplyError struct {
	Code    string `cbor:"code" json:"code"`
	Message string `cbor:"message" json:"message"`
}

// Reply carries exactly one of Result, Error or NotImplemented.
type Reply struct {
	ID             uint64      `cbor:"id" json:"id"`
	Result         any         `cbor:"result,omitempty" json:"result,omitempty"`
	Error          *ReplyError `cbor:"error,omitempty" json:"error,omitempty"`
	NotImplemented bool        `cbor:"notImplemented,omitempty" json:"notImplemented,omitempty"`
}

func (r Reply) OK() bool {
	return r.Error == nil && !r.NotImplemented
}

// Event is an outbound "ListenerKind.event" notification.
type Event struct {
	Method string         `cbor:"event" json:"event"`
	Args   map[string]any `cbor:"args" json:"args"`
}

// Message is a unit of data moved by a Transport.
type Message struct {
	ID        string
	Topic     string
	Key       string
	Payload   []byte
	Metadata  map[string]string
	Timestamp time.Time
	Snapshot  bool
}

type Route struct {
	Scheme    string `yaml:"scheme"`
	Transport string `yaml:"transport"`
}
