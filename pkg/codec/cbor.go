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

// Package codec is the binary message codec shared by the websocket
// channel frames and the transports that need an envelope around payloads.
package codec

import (
	"io"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	// Untyped maps decode as map[string]any so method arguments read the
	// same whether they arrived as CBOR or JSON.
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

type Encoder = cbor.Encoder

type Decoder = cbor.Decoder

func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// Frame is one websocket message. Inbound frames carry a method call;
// outbound frames carry either a reply or a listener event.
type Frame struct {
	ID             uint64           `cbor:"id,omitempty"`
	Method         string           `cbor:"method,omitempty"`
	Args           map[string]any   `cbor:"args,omitempty"`
	Result         any              `cbor:"result,omitempty"`
	Error          *core.ReplyError `cbor:"error,omitempty"`
	NotImplemented bool             `cbor:"notImplemented,omitempty"`
	Event          string           `cbor:"event,omitempty"`
}

func (f Frame) Call() core.MethodCall {
	return core.MethodCall{ID: f.ID, Method: f.Method, Args: core.Args(f.Args)}
}

func ReplyFrame(r core.Reply) Frame {
	return Frame{ID: r.ID, Result: r.Result, Error: r.Error, NotImplemented: r.NotImplemented}
}

func EventFrame(e core.Event) Frame {
	return Frame{Event: e.Method, Args: e.Args}
}

// Envelope wraps a transport message for brokers that only carry bytes.
type Envelope struct {
	ID        string            `cbor:"id"`
	Key       string            `cbor:"key,omitempty"`
	Payload   []byte            `cbor:"payload"`
	Metadata  map[string]string `cbor:"metadata,omitempty"`
	Timestamp time.Time         `cbor:"ts"`
}

func Wrap(msg core.Message) ([]byte, error) {
	return Marshal(Envelope{
		ID:        msg.ID,
		Key:       msg.Key,
		Payload:   msg.Payload,
		Metadata:  msg.Metadata,
		Timestamp: msg.Timestamp,
	})
}

// Unwrap reverses Wrap. Data that is not an envelope, as published by a
// foreign producer, becomes the payload as is.
func Unwrap(topic string, data []byte) core.Message {
	var env Envelope
	if err := Unmarshal(data, &env); err != nil || env.ID == "" {
		return core.Message{Topic: topic, Payload: data, Metadata: map[string]string{}}
	}
	if env.Metadata == nil {
		env.Metadata = map[string]string{}
	}
	return core.Message{
		ID:        env.ID,
		Topic:     topic,
		Key:       env.Key,
		Payload:   env.Payload,
		Metadata:  env.Metadata,
		Timestamp: env.Timestamp,
	}
}
