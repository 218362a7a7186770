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

package stream

import (
	"slices"
	"sync"
	"testing"
)

type lineLogger struct {
	silent
	mu    sync.Mutex
	lines []string
}

func (l *lineLogger) Info(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
}

func (l *lineLogger) IsInfoEnabled() bool { return true }

type lineProvider struct{ l *lineLogger }

func (p lineProvider) GetLogger(string) Logger { return p.l }

func TestLoggersFollowProviderChanges(t *testing.T) {
	t.Cleanup(func() { SetLoggerProvider(nil) })

	log := getLogger(CategorySession)
	SetLoggerProvider(nil)
	log.Info("dropped")
	if log.IsInfoEnabled() || log.IsFatalEnabled() {
		t.Fatal("a nil provider must silence every level")
	}

	ll := &lineLogger{}
	SetLoggerProvider(lineProvider{ll})
	if !log.IsInfoEnabled() {
		t.Fatal("logger handed out earlier did not follow the new provider")
	}
	log.Info("kept")

	SetLoggerProvider(nil)
	log.Info("dropped again")
	ll.mu.Lock()
	defer ll.mu.Unlock()
	if !slices.Contains(ll.lines, "kept") || slices.Contains(ll.lines, "dropped") || slices.Contains(ll.lines, "dropped again") {
		t.Fatalf("lines = %v, want only kept", ll.lines)
	}
}
