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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath           = "/etc/stream-bridge/config.yaml"
	DefaultEventQueueSize = 256
	DefaultMetricsPort    = 9090
)

type Config struct {
	Entrypoints []EntrypointConfig `yaml:"entrypoints"`
	Transports  []TransportConfig  `yaml:"transports"`
	Routes      []RouteConfig      `yaml:"routes"`
	Logging     LoggingConfig      `yaml:"logging"`
	Bridge      BridgeConfig       `yaml:"bridge"`
	Metrics     MetricsConfig      `yaml:"metrics"`
}

type EntrypointConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Port int    `yaml:"port"`
}

type TransportConfig struct {
	Name   string            `yaml:"name"`
	Type   string            `yaml:"type"`
	Config map[string]string `yaml:"config"`
}

type RouteConfig struct {
	Scheme    string `yaml:"scheme"`
	Transport string `yaml:"transport"`
}

// LoggingConfig sets the client-library logger installed at startup. Level
// uses the same numeric codes as setLoggerProvider; a nil level leaves the
// library silent.
type LoggingConfig struct {
	Level    *int32 `yaml:"level"`
	Provider string `yaml:"provider"`
	FileDir  string `yaml:"file_dir"`
}

type BridgeConfig struct {
	EventQueueSize int `yaml:"event_queue_size"`
}

type MetricsConfig struct {
	Enabled *bool `yaml:"enabled"`
	Port    int   `yaml:"port"`
}

func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Bridge.EventQueueSize <= 0 {
		c.Bridge.EventQueueSize = DefaultEventQueueSize
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
}

// Validate rejects duplicate names and routes that point at no transport.
func (c *Config) Validate() error {
	transports := make(map[string]bool, len(c.Transports))
	for _, tc := range c.Transports {
		if tc.Name == "" || tc.Type == "" {
			return fmt.Errorf("invalid config: transport needs a name and a type")
		}
		if transports[tc.Name] {
			return fmt.Errorf("invalid config: duplicate transport %q", tc.Name)
		}
		transports[tc.Name] = true
	}
	entrypoints := make(map[string]bool, len(c.Entrypoints))
	for _, ec := range c.Entrypoints {
		if entrypoints[ec.Name] {
			return fmt.Errorf("invalid config: duplicate entrypoint %q", ec.Name)
		}
		entrypoints[ec.Name] = true
	}
	for _, rc := range c.Routes {
		if rc.Scheme == "" {
			return fmt.Errorf("invalid config: route without scheme")
		}
		if !transports[rc.Transport] {
			return fmt.Errorf("invalid config: route %q targets unknown transport %q", rc.Scheme, rc.Transport)
		}
	}
	return nil
}

func (rc RouteConfig) ToRoute() *core.Route {
	return &core.Route{Scheme: rc.Scheme, Transport: rc.Transport}
}

// RouteTable converts the configured routes.
func (c *Config) RouteTable() []*core.Route {
	routes := make([]*core.Route, 0, len(c.Routes))
	for _, rc := range c.Routes {
		routes = append(routes, rc.ToRoute())
	}
	return routes
}

func (tc TransportConfig) String(key, def string) string {
	if v, ok := tc.Config[key]; ok && v != "" {
		return v
	}
	return def
}

// List splits a comma separated value, dropping blanks.
func (tc TransportConfig) List(key string) []string {
	var out []string
	for _, part := range strings.Split(tc.Config[key], ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (tc TransportConfig) Int(key string, def int) (int, error) {
	v, ok := tc.Config[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("transport %s: %s=%q: %w", tc.Name, key, v, err)
	}
	return n, nil
}

func (tc TransportConfig) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := tc.Config[key]
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("transport %s: %s=%q: %w", tc.Name, key, v, err)
	}
	return d, nil
}
