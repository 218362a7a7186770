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
	"context"
	"sync"
)

type Entrypoint interface {
	Name() string
	Type() string
	Start(ctx context.Context, manager SessionManager) error
	Stop(ctx context.Context) error
}

// Transport moves messages between the streaming client and a broker.
// Consume blocks until ctx is done or the subscription fails.
type Transport interface {
	Name() string
	Type() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Consume(ctx context.Context, topic string, ch chan<- Message) error
	Publish(ctx context.Context, msg Message) error
}

// Monitored is implemented by transports that notice when the broker
// connection made by their latest Connect goes away. Lost is closed at
// that point and LostErr then reports the cause.
type Monitored interface {
	Lost() <-chan struct{}
	LostErr() error
}

// SnapshotSource is implemented by transports that retain the latest
// messages of a topic and can replay them to a new subscriber.
type SnapshotSource interface {
	Snapshot(ctx context.Context, topic string) ([]Message, error)
}

// Dispatcher handles one method call and always produces a reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, call MethodCall) Reply
}

type SessionManager interface {
	CreateSession(ctx context.Context, entrypointName string, channelID string) (*Session, error)
	DestroySession(sessionID string) error
	Session(sessionID string) (*Session, bool)
}

// Session is one connected host channel. Events is drained by exactly one
// goroutine owned by the entrypoint that created the session.
type Session struct {
	ID             string
	ChannelID      string
	EntrypointName string
	Dispatcher     Dispatcher
	Events         <-chan Event
	Cancel         context.CancelFunc

	callMu sync.Mutex
}

// Call runs one method call on the session's dispatcher. Calls from
// concurrent requests of the same channel are serialized.
func (s *Session) Call(ctx context.Context, call MethodCall) Reply {
	s.callMu.Lock()
	defer s.callMu.Unlock()
	return s.Dispatcher.Dispatch(ctx, call)
}
