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

package logging

import (
	"context"
	"log/slog"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

// TrafficLogger records calls accepted on the method channel and events
// invoked on the listener channel.
type TrafficLogger struct {
	logger *slog.Logger
}

func NewTrafficLogger(logger *slog.Logger) *TrafficLogger {
	return &TrafficLogger{logger: logger}
}

func (t *TrafficLogger) Accepting(sessionID string, call core.MethodCall) {
	if !t.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	t.logger.Debug("accepting "+call.Method,
		"session_id", sessionID,
		"call_id", call.ID,
		"channel", core.MethodChannel,
		"arg_count", len(call.Args),
	)
}

func (t *TrafficLogger) Replying(sessionID string, call core.MethodCall, reply core.Reply) {
	if reply.OK() {
		return
	}
	if reply.NotImplemented {
		t.logger.Error("unknown method "+call.Method, "session_id", sessionID, "call_id", call.ID)
		return
	}
	t.logger.Error("call failed",
		"session_id", sessionID,
		"method", call.Method,
		"call_id", call.ID,
		"code", reply.Error.Code,
		"error", reply.Error.Message,
	)
}

func (t *TrafficLogger) Invoking(sessionID string, evt core.Event) {
	if !t.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	t.logger.Debug("invoking "+evt.Method,
		"session_id", sessionID,
		"channel", core.ListenerChannel,
		"arg_count", len(evt.Args),
	)
}
