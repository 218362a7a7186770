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

type lifetimeKey struct{}

// WithLifetime attaches to ctx the context that bounds the life of a
// transport connection. ctx itself only bounds the connect attempt.
func WithLifetime(ctx, lifetime context.Context) context.Context {
	return context.WithValue(ctx, lifetimeKey{}, lifetime)
}

// Lifetime returns the context attached by WithLifetime. Without one it
// returns ctx detached from its cancellation.
func Lifetime(ctx context.Context) context.Context {
	if l, ok := ctx.Value(lifetimeKey{}).(context.Context); ok {
		return l
	}
	return context.WithoutCancel(ctx)
}

// ConnLoss implements Monitored for embedding in a Transport.
type ConnLoss struct {
	mu  sync.Mutex
	ch  chan struct{}
	err error
}

// Arm starts tracking a new connection and returns the function that
// reports its loss. Reports for an older connection only close that
// connection's channel.
func (l *ConnLoss) Arm() func(err error) {
	ch := make(chan struct{})
	l.mu.Lock()
	l.ch = ch
	l.err = nil
	l.mu.Unlock()

	var once sync.Once
	return func(err error) {
		once.Do(func() {
			l.mu.Lock()
			if l.ch == ch {
				l.err = err
			}
			l.mu.Unlock()
			close(ch)
		})
	}
}

// Lost is nil until the first Arm.
func (l *ConnLoss) Lost() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch
}

func (l *ConnLoss) LostErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// IsLost reports whether lost has been closed.
func IsLost(lost <-chan struct{}) bool {
	if lost == nil {
		return false
	}
	select {
	case <-lost:
		return true
	default:
		return false
	}
}
