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
	"log/slog"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/stream"
)

const (
	ProviderConsole = "console"
	ProviderFile    = "file"
)

// Provider hands out one logger per category, all sharing a threshold.
type Provider struct {
	threshold Level
	build     func(category string) stream.Logger
	mu        sync.Mutex
	loggers   map[string]stream.Logger
}

func (p *Provider) GetLogger(category string) stream.Logger {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.loggers[category]; ok {
		return l
	}
	l := p.build(category)
	p.loggers[category] = l
	return l
}

func (p *Provider) Level() Level { return p.threshold }

func newProvider(threshold Level, build func(category string) stream.Logger) *Provider {
	return &Provider{threshold: threshold, build: build, loggers: make(map[string]stream.Logger)}
}

// NewFileProvider writes every category to the process log file.
func NewFileProvider(threshold Level) *Provider {
	return newFileProvider(threshold, processSink)
}

func newFileProvider(threshold Level, sink *fileSink) *Provider {
	return newProvider(threshold, func(category string) stream.Logger {
		// Open errors resurface as dropped writes.
		_ = sink.open()
		return &FileLogger{leveled: leveled{threshold}, category: category, sink: sink}
	})
}

func NewConsoleProvider(threshold Level, logger *slog.Logger) *Provider {
	return newProvider(threshold, func(category string) stream.Logger {
		return &ConsoleLogger{leveled: leveled{threshold}, logger: logger.With("category", category)}
	})
}

// NewProvider selects an implementation by name; anything other than
// "file" is the console provider.
func NewProvider(kind string, threshold Level, logger *slog.Logger) *Provider {
	if kind == ProviderFile {
		return NewFileProvider(threshold)
	}
	return NewConsoleProvider(threshold, logger)
}
