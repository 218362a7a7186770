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

package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/forward"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/logging"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/session"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/stream"
)

type handler func(d *Dispatcher, ctx context.Context, args core.Args) (any, error)

var handlers = [opCount]handler{
	OpClientConnect:           (*Dispatcher).connect,
	OpClientDisconnect:        (*Dispatcher).disconnect,
	OpClientGetStatus:         (*Dispatcher).getStatus,
	OpClientSubscribe:         (*Dispatcher).subscribe,
	OpClientUnsubscribe:       (*Dispatcher).unsubscribe,
	OpClientGetSubscriptions:  (*Dispatcher).getSubscriptions,
	OpClientSendMessage:       (*Dispatcher).sendMessage,
	OpClientSetLoggerProvider: (*Dispatcher).setLoggerProvider,
	OpClientAddCookies:        (*Dispatcher).addCookies,
	OpClientGetCookies:        (*Dispatcher).getCookies,
	OpClientCleanResources:    (*Dispatcher).cleanResources,

	OpDetailsSetServerAddress: (*Dispatcher).setServerAddress,

	OpOptionsSetForcedTransport:          (*Dispatcher).setForcedTransport,
	OpOptionsSetRequestedMaxBandwidth:    (*Dispatcher).setRequestedMaxBandwidth,
	OpOptionsSetReverseHeartbeatInterval: (*Dispatcher).setReverseHeartbeatInterval,

	OpSubGetCommandPosition:       (*Dispatcher).getCommandPosition,
	OpSubGetKeyPosition:           (*Dispatcher).getKeyPosition,
	OpSubSetRequestedMaxFrequency: (*Dispatcher).setRequestedMaxFrequency,
	OpSubIsActive:                 (*Dispatcher).isActive,
	OpSubIsSubscribed:             (*Dispatcher).isSubscribed,

	OpSubValueByItemNameAndFieldName:        valueHandler(valueShape{itemByName: true, fieldByName: true}),
	OpSubValueByItemNameAndFieldPos:         valueHandler(valueShape{itemByName: true}),
	OpSubValueByItemPosAndFieldName:         valueHandler(valueShape{fieldByName: true}),
	OpSubValueByItemPosAndFieldPos:          valueHandler(valueShape{}),
	OpSubCommandValueByItemNameAndFieldName: valueHandler(valueShape{itemByName: true, fieldByName: true, command: true}),
	OpSubCommandValueByItemNameAndFieldPos:  valueHandler(valueShape{itemByName: true, command: true}),
	OpSubCommandValueByItemPosAndFieldName:  valueHandler(valueShape{fieldByName: true, command: true}),
	OpSubCommandValueByItemPosAndFieldPos:   valueHandler(valueShape{command: true}),
}

// Deps are the process-wide collaborators shared by every dispatcher.
type Deps struct {
	Cookies *stream.CookieStore
	Traffic *logging.TrafficLogger
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Dispatcher executes the method calls of one channel session against its
// registry. Calls are expected one at a time.
type Dispatcher struct {
	sessionID string
	registry  *session.Registry
	fwd       *forward.Forwarder
	cookies   *stream.CookieStore
	traffic   *logging.TrafficLogger
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(sessionID string, registry *session.Registry, fwd *forward.Forwarder, deps Deps) *Dispatcher {
	cookies := deps.Cookies
	if cookies == nil {
		cookies = stream.Cookies()
	}
	logger := deps.Logger.With("component", "dispatcher", "session_id", sessionID)
	traffic := deps.Traffic
	if traffic == nil {
		traffic = logging.NewTrafficLogger(logger)
	}
	return &Dispatcher{
		sessionID: sessionID,
		registry:  registry,
		fwd:       fwd,
		cookies:   cookies,
		traffic:   traffic,
		metrics:   deps.Metrics,
		logger:    logger,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, call core.MethodCall) core.Reply {
	d.traffic.Accepting(d.sessionID, call)

	op, ok := Lookup(call.Method)
	if !ok {
		reply := core.Reply{ID: call.ID, NotImplemented: true}
		d.traffic.Replying(d.sessionID, call, reply)
		d.metrics.RecordCall("unknown", "not_implemented")
		return reply
	}

	result, err := d.invoke(ctx, op, call.Args)
	reply := core.Reply{ID: call.ID, Result: result}
	outcome := "ok"
	if err != nil {
		reply = core.NewErrorReply(call.ID, err)
		outcome = "error"
	}
	d.traffic.Replying(d.sessionID, call, reply)
	d.metrics.RecordCall(call.Method, outcome)
	return reply
}

func (d *Dispatcher) invoke(ctx context.Context, op Op, args core.Args) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic recovered", "op", op, "error", r)
			result, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return handlers[op](d, ctx, args)
}

// client returns the handle for id, creating it and attaching the
// forwarding listener on first use.
func (d *Dispatcher) client(id string) (*stream.Client, error) {
	c, created, err := d.registry.GetOrCreateClient(id)
	if err != nil {
		return nil, err
	}
	if created {
		c.AddListener(forward.NewClientListener(id, c, d.fwd))
	}
	return c, nil
}

// value converts an absent field into a nil result.
func value(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
