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

import "sync/atomic"

// Logger is the logging capability the client library writes to. The
// Is*Enabled checks let callers skip formatting for disabled levels.
type Logger interface {
	Fatal(line string)
	Error(line string)
	Warn(line string)
	Info(line string)
	Debug(line string)
	Trace(line string)
	IsFatalEnabled() bool
	IsErrorEnabled() bool
	IsWarnEnabled() bool
	IsInfoEnabled() bool
	IsDebugEnabled() bool
	IsTraceEnabled() bool
}

type LoggerProvider interface {
	GetLogger(category string) Logger
}

const (
	CategorySession       = "lightstreamer.session"
	CategorySubscriptions = "lightstreamer.subscriptions"
	CategoryActions       = "lightstreamer.actions"
	CategoryStream        = "lightstreamer.stream"
)

type providerBox struct{ p LoggerProvider }

var currentProvider atomic.Pointer[providerBox]

// SetLoggerProvider replaces the process-wide provider. Loggers already
// handed out resolve the provider on every call and follow the change.
// A nil provider silences the library.
func SetLoggerProvider(p LoggerProvider) {
	currentProvider.Store(&providerBox{p: p})
}

func getLogger(category string) Logger {
	return categoryLogger(category)
}

type categoryLogger string

func (c categoryLogger) target() Logger {
	box := currentProvider.Load()
	if box == nil || box.p == nil {
		return silent{}
	}
	if l := box.p.GetLogger(string(c)); l != nil {
		return l
	}
	return silent{}
}

func (c categoryLogger) Fatal(line string)    { c.target().Fatal(line) }
func (c categoryLogger) Error(line string)    { c.target().Error(line) }
func (c categoryLogger) Warn(line string)     { c.target().Warn(line) }
func (c categoryLogger) Info(line string)     { c.target().Info(line) }
func (c categoryLogger) Debug(line string)    { c.target().Debug(line) }
func (c categoryLogger) Trace(line string)    { c.target().Trace(line) }
func (c categoryLogger) IsFatalEnabled() bool { return c.target().IsFatalEnabled() }
func (c categoryLogger) IsErrorEnabled() bool { return c.target().IsErrorEnabled() }
func (c categoryLogger) IsWarnEnabled() bool  { return c.target().IsWarnEnabled() }
func (c categoryLogger) IsInfoEnabled() bool  { return c.target().IsInfoEnabled() }
func (c categoryLogger) IsDebugEnabled() bool { return c.target().IsDebugEnabled() }
func (c categoryLogger) IsTraceEnabled() bool { return c.target().IsTraceEnabled() }

type silent struct{}

func (silent) Fatal(string)         {}
func (silent) Error(string)         {}
func (silent) Warn(string)          {}
func (silent) Info(string)          {}
func (silent) Debug(string)         {}
func (silent) Trace(string)         {}
func (silent) IsFatalEnabled() bool { return false }
func (silent) IsErrorEnabled() bool { return false }
func (silent) IsWarnEnabled() bool  { return false }
func (silent) IsInfoEnabled() bool  { return false }
func (silent) IsDebugEnabled() bool { return false }
func (silent) IsTraceEnabled() bool { return false }
