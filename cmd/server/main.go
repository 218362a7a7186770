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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/dispatch"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/forward"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/logging"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/routing"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/session"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/config"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins/httppost"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins/jms"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins/kafka"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins/memory"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins/mqtt"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins/mqtt5"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins/nats"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins/rabbitmq"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins/redis"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins/solace"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins/sse"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/plugins/ws"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/stream"
)

func main() {
	var (
		configPath string
		debug      bool
	)
	pflag.StringVar(&configPath, "config", "", "path to the bridge config file")
	pflag.BoolVar(&debug, "debug", false, "log method calls and listener events")
	pflag.Parse()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = config.DefaultPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	if cfg.Logging.FileDir != "" {
		logging.SetFileDir(cfg.Logging.FileDir)
	}
	if cfg.Logging.Level != nil {
		threshold := logging.ParseLevel(*cfg.Logging.Level)
		stream.SetLoggerProvider(logging.NewProvider(cfg.Logging.Provider, threshold, logger.With("component", "client")))
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry)

	registry := plugins.NewRegistry(m, logger.With("component", "plugins"))
	registerEntrypoints(cfg, registry, logger)
	if err := registerTransports(cfg, registry, logger); err != nil {
		logger.Error("invalid transport config", "error", err)
		os.Exit(1)
	}

	routeTable := routing.NewTable()
	routeTable.ReplaceAll(cfg.RouteTable())
	resolver := routing.NewResolver(routeTable, registry, logger.With("component", "routing"))

	traffic := logging.NewTrafficLogger(logger.With("component", "traffic"))
	deps := dispatch.Deps{
		Cookies: stream.Cookies(),
		Traffic: traffic,
		Metrics: m,
		Logger:  logger,
	}
	mgr := session.NewManager(
		resolver,
		func(sessionID string, reg *session.Registry, fwd *forward.Forwarder) core.Dispatcher {
			return dispatch.New(sessionID, reg, fwd, deps)
		},
		cfg.Bridge.EventQueueSize,
		traffic,
		m,
		logger.With("component", "sessions"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsServer *metrics.Server
	if cfg.Metrics.IsEnabled() {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, promRegistry, logger.With("component", "metrics"))
		metricsServer.Start()
	}

	watcher := config.NewWatcher(configPath, routeTable, logger.With("component", "config"))
	go watcher.Watch(ctx)

	registry.StartEntrypoints(ctx, mgr)

	logger.Info("stream bridge started",
		"config", configPath,
		"entrypoints", len(cfg.Entrypoints),
		"transports", len(cfg.Transports),
		"routes", routeTable.Len(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down stream bridge")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	mgr.DestroyAll()
	registry.StopAll(shutdownCtx)
	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("metrics server stop failed", "error", err)
		}
	}
	if err := logging.CloseFile(); err != nil {
		logger.Warn("log file close failed", "error", err)
	}

	logger.Info("stream bridge stopped")
}

func registerEntrypoints(cfg *config.Config, reg *plugins.Registry, logger *slog.Logger) {
	for _, e := range cfg.Entrypoints {
		epLogger := logger.With("component", "entrypoint", "entrypoint", e.Name)
		switch e.Type {
		case "websocket":
			reg.RegisterEntrypoint(ws.New(e.Name, e.Port, epLogger))
		case "sse":
			reg.RegisterEntrypoint(sse.New(e.Name, e.Port, epLogger))
		case "http_post":
			reg.RegisterEntrypoint(httppost.New(e.Name, e.Port, epLogger))
		default:
			logger.Warn("unknown entrypoint type", "name", e.Name, "type", e.Type)
		}
	}
}

func registerTransports(cfg *config.Config, reg *plugins.Registry, logger *slog.Logger) error {
	for _, tc := range cfg.Transports {
		tr, err := newTransport(tc, logger.With("component", "transport", "transport", tc.Name))
		if err != nil {
			return err
		}
		if tr == nil {
			logger.Warn("unknown transport type", "name", tc.Name, "type", tc.Type)
			continue
		}
		reg.RegisterTransport(tr)
	}
	return nil
}

func newTransport(tc config.TransportConfig, logger *slog.Logger) (core.Transport, error) {
	switch tc.Type {
	case "memory":
		retain, err := tc.Int("retain", memory.DefaultRetain)
		if err != nil {
			return nil, err
		}
		return memory.New(tc.Name, retain, logger), nil
	case "kafka":
		return kafka.New(tc.Name, tc.List("brokers"), tc.String("group_id", ""), logger), nil
	case "rabbitmq":
		return rabbitmq.New(tc.Name, tc.String("url", ""), tc.String("exchange", rabbitmq.DefaultExchange), logger), nil
	case "mqtt5", "mqtt":
		qos, err := tc.Int("qos", 1)
		if err != nil {
			return nil, err
		}
		if qos < 0 || qos > 2 {
			return nil, fmt.Errorf("transport %s: qos=%d out of range", tc.Name, qos)
		}
		if tc.Type == "mqtt" {
			return mqtt.New(tc.Name, tc.String("broker", ""), byte(qos), logger), nil
		}
		return mqtt5.New(tc.Name, tc.String("broker", ""), byte(qos), logger), nil
	case "jms":
		return jms.New(tc.Name, tc.String("url", ""), tc.String("address_prefix", ""), logger), nil
	case "solace":
		return solace.New(
			tc.Name,
			tc.String("host", ""),
			tc.String("vpn", "default"),
			tc.String("username", ""),
			tc.String("password", ""),
			logger,
		), nil
	case "redis":
		ttl, err := tc.Duration("ttl", 0)
		if err != nil {
			return nil, err
		}
		return redis.New(tc.Name, tc.String("addr", "localhost:6379"), ttl, logger), nil
	case "nats":
		return nats.New(tc.Name, tc.String("url", "nats://127.0.0.1:4222"), logger), nil
	default:
		return nil, nil
	}
}
