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

package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

// SessionEvent is the first event of every stream. It tells the host which
// channel id to send with its method calls.
const SessionEvent = "session"

type Entrypoint struct {
	name     string
	port     int
	manager  core.SessionManager
	server   *http.Server
	logger   *slog.Logger
	sessions sync.Map
}

func New(name string, port int, logger *slog.Logger) *Entrypoint {
	return &Entrypoint{name: name, port: port, logger: logger}
}

func (e *Entrypoint) Name() string { return e.name }
func (e *Entrypoint) Type() string { return "sse" }

func (e *Entrypoint) Handler(manager core.SessionManager) http.Handler {
	e.manager = manager
	mux := http.NewServeMux()
	mux.HandleFunc("/", e.handleSSE)
	return mux
}

func (e *Entrypoint) Start(ctx context.Context, manager core.SessionManager) error {
	e.server = &http.Server{Addr: fmt.Sprintf(":%d", e.port), Handler: e.Handler(manager)}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.server.Shutdown(shutdownCtx)
	}()

	e.logger.Info("sse entrypoint starting", "name", e.name, "port", e.port)
	if err := e.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (e *Entrypoint) Stop(ctx context.Context) error {
	e.sessions.Range(func(_, val any) bool {
		sess := val.(*core.Session)
		e.manager.DestroySession(sess.ID)
		return true
	})
	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func (e *Entrypoint) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	channelID := core.ChannelID(r)
	sess, err := e.manager.CreateSession(r.Context(), e.name, channelID)
	if err != nil {
		e.logger.Error("sse session creation failed", "channel_id", channelID, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrIllegalState) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	e.sessions.Store(sess.ID, sess)
	defer func() {
		e.sessions.Delete(sess.ID)
		e.manager.DestroySession(sess.ID)
		e.logger.Info("sse channel disconnected", "channel_id", channelID, "session_id", sess.ID)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(core.ChannelIDHeader, sess.ChannelID)

	hello := map[string]string{"channelId": sess.ChannelID, "sessionId": sess.ID}
	if err := writeEvent(w, flusher, SessionEvent, hello); err != nil {
		e.logger.Error("sse write failed", "session_id", sess.ID, "error", err)
		return
	}
	e.logger.Info("sse channel connected", "channel_id", channelID, "session_id", sess.ID)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-sess.Events:
			if err := writeEvent(w, flusher, evt.Method, evt.Args); err != nil {
				e.logger.Error("sse write failed", "session_id", sess.ID, "event", evt.Method, "error", err)
				return
			}
		}
	}
}
