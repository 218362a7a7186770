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
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	FileName        = "lightstreamer-flutter-log.txt"
	timestampLayout = "2006-01-02 15:04:05"
)

// fileSink is an append-only log file opened when the first FileLogger
// on it is built and shared by every FileLogger that points at it.
type fileSink struct {
	path string
	once sync.Once
	mu   sync.Mutex
	w    io.WriteCloser
	err  error
	now  func() time.Time
}

var (
	processSinkMu sync.Mutex
	processSink   = &fileSink{path: FileName, now: time.Now}
)

// SetFileDir places the process log file under dir. It has no effect once
// the file has been opened.
func SetFileDir(dir string) {
	processSinkMu.Lock()
	defer processSinkMu.Unlock()
	processSink.mu.Lock()
	defer processSink.mu.Unlock()
	if processSink.w == nil && processSink.err == nil {
		processSink.path = filepath.Join(dir, FileName)
	}
}

// CloseFile flushes and closes the process log file. Later writes are dropped.
func CloseFile() error {
	processSinkMu.Lock()
	defer processSinkMu.Unlock()
	return processSink.close()
}

func newFileSink(path string, now func() time.Time) *fileSink {
	return &fileSink{path: path, now: now}
}

func (s *fileSink) open() error {
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			s.err = fmt.Errorf("open log file %s: %w", s.path, err)
			return
		}
		s.w = f
	})
	return s.err
}

func (s *fileSink) write(level Level, category, line string) {
	if s.open() != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return
	}
	fmt.Fprintf(s.w, "%s|%s|%s|%s\n", s.now().Format(timestampLayout), level, category, line)
}

func (s *fileSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	err := s.w.Close()
	s.w = nil
	return err
}

// FileLogger appends "timestamp|LEVEL|category|message" lines to the
// shared log file.
type FileLogger struct {
	leveled
	category string
	sink     *fileSink
}

func (l *FileLogger) log(at Level, line string) {
	if l.enabled(at) {
		l.sink.write(at, l.category, line)
	}
}

func (l *FileLogger) Fatal(line string) { l.log(LevelFatal, line) }
func (l *FileLogger) Error(line string) { l.log(LevelError, line) }
func (l *FileLogger) Warn(line string)  { l.log(LevelWarn, line) }
func (l *FileLogger) Info(line string)  { l.log(LevelInfo, line) }
func (l *FileLogger) Debug(line string) { l.log(LevelDebug, line) }
func (l *FileLogger) Trace(line string) { l.log(LevelTrace, line) }
