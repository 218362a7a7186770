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

package httppost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

// Entrypoint accepts method calls for channels opened by the sse
// entrypoint. The channel is selected with the X-Stream-Channel-ID header.
type Entrypoint struct {
	name    string
	port    int
	manager core.SessionManager
	server  *http.Server
	logger  *slog.Logger
	maxBody int64
}

func New(name string, port int, logger *slog.Logger) *Entrypoint {
	return &Entrypoint{
		name:    name,
		port:    port,
		logger:  logger,
		maxBody: 1 << 20,
	}
}

func (e *Entrypoint) Name() string { return e.name }
func (e *Entrypoint) Type() string { return "http_post" }

func (e *Entrypoint) Handler(manager core.SessionManager) http.Handler {
	e.manager = manager
	mux := http.NewServeMux()
	mux.HandleFunc("/", e.handlePost)
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

	e.logger.Info("http_post entrypoint starting", "name", e.name, "port", e.port)
	if err := e.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (e *Entrypoint) Stop(ctx context.Context) error {
	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

// StatusCode maps a reply to the HTTP status it is sent with.
func StatusCode(reply core.Reply) int {
	switch {
	case reply.NotImplemented:
		return http.StatusNotImplemented
	case reply.Error == nil:
		return http.StatusOK
	}
	switch reply.Error.Code {
	case core.CodeBadArgument:
		return http.StatusBadRequest
	case core.CodeNotFound:
		return http.StatusNotFound
	case core.CodeIllegalState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (e *Entrypoint) writeReply(w http.ResponseWriter, reply core.Reply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusCode(reply))
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		e.logger.Error("http_post write failed", "error", err)
	}
}

func (e *Entrypoint) handlePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, e.maxBody))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var call core.MethodCall
	if err := json.Unmarshal(body, &call); err != nil {
		e.writeReply(w, core.NewErrorReply(0, fmt.Errorf("%w: body: %v", core.ErrBadArgument, err)))
		return
	}

	channelID := r.Header.Get(core.ChannelIDHeader)
	sess, ok := e.manager.Session(channelID)
	if !ok {
		e.writeReply(w, core.NewErrorReply(call.ID, fmt.Errorf("%w: channel=%q", core.ErrSessionNotFound, channelID)))
		return
	}

	e.writeReply(w, sess.Call(r.Context(), call))
}
