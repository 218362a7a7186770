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
	"fmt"
	"log/slog"
)

type Level int32

const (
	LevelTrace Level = 0
	LevelDebug Level = 10
	LevelInfo  Level = 20
	LevelWarn  Level = 30
	LevelError Level = 40
	LevelFatal Level = 50
)

// ParseLevel maps a numeric level code to a Level. Unknown codes are Error.
func ParseLevel(code int32) Level {
	switch l := Level(code); l {
	case LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal:
		return l
	default:
		return LevelError
	}
}

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int32(l))
	}
}

const (
	slogTrace = slog.Level(-8)
	slogFatal = slog.Level(12)
)

func (l Level) slog() slog.Level {
	switch l {
	case LevelTrace:
		return slogTrace
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelFatal:
		return slogFatal
	default:
		return slog.LevelError
	}
}

// leveled implements the Is*Enabled half of stream.Logger for a threshold.
type leveled struct {
	threshold Level
}

func (l leveled) enabled(at Level) bool { return at >= l.threshold }

func (l leveled) IsFatalEnabled() bool { return l.enabled(LevelFatal) }
func (l leveled) IsErrorEnabled() bool { return l.enabled(LevelError) }
func (l leveled) IsWarnEnabled() bool  { return l.enabled(LevelWarn) }
func (l leveled) IsInfoEnabled() bool  { return l.enabled(LevelInfo) }
func (l leveled) IsDebugEnabled() bool { return l.enabled(LevelDebug) }
func (l leveled) IsTraceEnabled() bool { return l.enabled(LevelTrace) }
