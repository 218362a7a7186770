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

package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/codec"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

const writeTimeout = 10 * time.Second

type Entrypoint struct {
	name     string
	port     int
	upgrader websocket.Upgrader
	manager  core.SessionManager
	server   *http.Server
	logger   *slog.Logger
	sessions sync.Map
}

func New(name string, port int, logger *slog.Logger) *Entrypoint {
	return &Entrypoint{
		name: name,
		port: port,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (e *Entrypoint) Name() string { return e.name }
func (e *Entrypoint) Type() string { return "websocket" }

// Handler binds the entrypoint to manager and returns its HTTP handler.
func (e *Entrypoint) Handler(manager core.SessionManager) http.Handler {
	e.manager = manager
	mux := http.NewServeMux()
	mux.HandleFunc("/", e.handleConnection)
	return mux
}

func (e *Entrypoint) Start(ctx context.Context, manager core.SessionManager) error {
	e.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", e.port),
		Handler: e.Handler(manager),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.server.Shutdown(shutdownCtx)
	}()

	e.logger.Info("websocket entrypoint starting", "name", e.name, "port", e.port)
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

// conn serializes frame writes from the reply path and the event writer.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) write(f codec.Frame) error {
	data, err := codec.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}

func (e *Entrypoint) handleConnection(w http.ResponseWriter, r *http.Request) {
	wsConn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Error("ws upgrade failed", "error", err)
		return
	}
	c := &conn{ws: wsConn}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	channelID := core.ChannelID(r)
	sess, err := e.manager.CreateSession(ctx, e.name, channelID)
	if err != nil {
		e.logger.Error("session creation failed", "channel_id", channelID, "error", err)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		wsConn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		wsConn.Close()
		return
	}

	e.sessions.Store(sess.ID, sess)
	defer func() {
		wsConn.Close()
		e.sessions.Delete(sess.ID)
		e.manager.DestroySession(sess.ID)
		e.logger.Info("ws channel disconnected", "channel_id", channelID, "session_id", sess.ID)
	}()

	e.logger.Info("ws channel connected", "channel_id", channelID, "session_id", sess.ID)

	go e.eventLoop(ctx, cancel, c, sess)
	e.callLoop(ctx, c, sess)
}

// eventLoop is the only consumer of the session's event queue.
func (e *Entrypoint) eventLoop(ctx context.Context, cancel context.CancelFunc, c *conn, sess *core.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-sess.Events:
			if err := c.write(codec.EventFrame(evt)); err != nil {
				e.logger.Error("ws write failed", "session_id", sess.ID, "event", evt.Method, "error", err)
				cancel()
				return
			}
		}
	}
}

func (e *Entrypoint) callLoop(ctx context.Context, c *conn, sess *core.Session) {
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				e.logger.Error("ws read error", "session_id", sess.ID, "error", err)
			}
			return
		}

		var frame codec.Frame
		var reply core.Reply
		if err := codec.Unmarshal(payload, &frame); err != nil {
			e.logger.Warn("undecodable frame", "session_id", sess.ID, "error", err)
			reply = core.NewErrorReply(0, fmt.Errorf("%w: frame: %v", core.ErrBadArgument, err))
		} else {
			reply = sess.Call(ctx, frame.Call())
		}

		if err := c.write(codec.ReplyFrame(reply)); err != nil {
			e.logger.Error("ws write failed", "session_id", sess.ID, "error", err)
			return
		}
	}
}
