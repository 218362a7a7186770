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
)

// ConsoleLogger writes library lines to the process slog logger.
type ConsoleLogger struct {
	leveled
	logger *slog.Logger
}

func (l *ConsoleLogger) log(at Level, line string) {
	if l.enabled(at) {
		l.logger.Log(context.Background(), at.slog(), line)
	}
}

func (l *ConsoleLogger) Fatal(line string) { l.log(LevelFatal, line) }
func (l *ConsoleLogger) Error(line string) { l.log(LevelError, line) }
func (l *ConsoleLogger) Warn(line string)  { l.log(LevelWarn, line) }
func (l *ConsoleLogger) Info(line string)  { l.log(LevelInfo, line) }
func (l *ConsoleLogger) Debug(line string) { l.log(LevelDebug, line) }
func (l *ConsoleLogger) Trace(line string) { l.log(LevelTrace, line) }
