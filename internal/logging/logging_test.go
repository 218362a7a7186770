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
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		code int32
		want Level
	}{
		{0, LevelTrace},
		{10, LevelDebug},
		{20, LevelInfo},
		{30, LevelWarn},
		{40, LevelError},
		{50, LevelFatal},
		{5, LevelError},
		{-1, LevelError},
		{60, LevelError},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.code); got != tt.want {
			t.Errorf("ParseLevel(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestFileOpenedWhenFirstLoggerIsBuilt(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	sink := newFileSink(path, time.Now)
	provider := newFileProvider(LevelInfo, sink)
	defer sink.close()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("log file exists before any logger was built: %v", err)
	}
	provider.GetLogger("lightstreamer.session")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("log file not created by the first logger: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("log file size = %d, want 0 before any write", info.Size())
	}
}

func TestFileOpenFailureDropsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", FileName)
	sink := newFileSink(path, time.Now)
	l := newFileProvider(LevelTrace, sink).GetLogger("a")
	if sink.err == nil {
		t.Fatal("expected the open error to be recorded when the logger is built")
	}
	l.Error("dropped")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("unexpected log file: %v", err)
	}
}

func TestFileLoggerFormatAndThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	fixed := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	sink := newFileSink(path, func() time.Time { return fixed })
	provider := newFileProvider(LevelInfo, sink)

	session := provider.GetLogger("lightstreamer.session")
	session.Debug("hidden")
	session.Info("connected")
	provider.GetLogger("lightstreamer.actions").Error("boom|pipe")

	if !session.IsInfoEnabled() || session.IsDebugEnabled() {
		t.Fatal("unexpected enablement for info threshold")
	}
	if err := sink.close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	want := "2024-03-09 14:05:07|INFO|lightstreamer.session|connected\n" +
		"2024-03-09 14:05:07|ERROR|lightstreamer.actions|boom|pipe\n"
	if string(data) != want {
		t.Fatalf("unexpected log contents:\n%s", data)
	}

	session.Error("after close")
	data, _ = os.ReadFile(path)
	if strings.Contains(string(data), "after close") {
		t.Fatal("expected writes after close to be dropped")
	}
}

func TestFileSinkSharedAcrossCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	sink := newFileSink(path, time.Now)
	provider := newFileProvider(LevelTrace, sink)

	if provider.GetLogger("a") != provider.GetLogger("a") {
		t.Fatal("expected one logger per category")
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cat := "a"
			if n%2 == 0 {
				cat = "b"
			}
			provider.GetLogger(cat).Trace("line")
		}(i)
	}
	wg.Wait()
	sink.close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 50 {
		t.Fatalf("expected 50 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if len(strings.Split(line, "|")) != 4 {
			t.Fatalf("malformed line %q", line)
		}
	}
}

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slogTrace})
	provider := NewProvider(ProviderConsole, LevelWarn, slog.New(handler))

	l := provider.GetLogger("lightstreamer.stream")
	l.Info("skipped")
	l.Warn("slow consumer")

	out := buf.String()
	if strings.Contains(out, "skipped") {
		t.Fatalf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, "slow consumer") || !strings.Contains(out, "category=lightstreamer.stream") {
		t.Fatalf("unexpected output: %s", out)
	}
	if provider.Level() != LevelWarn {
		t.Fatalf("expected warn threshold, got %s", provider.Level())
	}
}
