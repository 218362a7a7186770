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

package forward

import (
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/stream"
)

const (
	clientListener        = "ClientListener."
	subscriptionListener  = "SubscriptionListener."
	clientMessageListener = "ClientMessageListener."
)

// ClientListener forwards the callbacks of one client, tagged with its id.
type ClientListener struct {
	id     string
	client *stream.Client
	fwd    *Forwarder
}

func NewClientListener(id string, client *stream.Client, fwd *Forwarder) *ClientListener {
	return &ClientListener{id: id, client: client, fwd: fwd}
}

func (l *ClientListener) send(event string, args map[string]any) {
	args["id"] = l.id
	l.fwd.Send(clientListener+event, args)
}

func (l *ClientListener) OnServerError(code int, message string) {
	l.send("onServerError", map[string]any{"errorCode": code, "errorMessage": message})
}

func (l *ClientListener) OnStatusChange(status string) {
	l.send("onStatusChange", map[string]any{"status": status})
}

func (l *ClientListener) OnPropertyChange(property string) {
	args := map[string]any{"property": property}
	if v, ok := l.propertyValue(property); ok {
		args["value"] = v
	}
	l.send("onPropertyChange", args)
}

func (l *ClientListener) propertyValue(property string) (any, bool) {
	d, o := l.client.ConnectionDetails, l.client.ConnectionOptions
	switch property {
	case "serverInstanceAddress":
		return d.ServerInstanceAddress(), true
	case "serverSocketName":
		return d.ServerSocketName(), true
	case "clientIp":
		return d.ClientIP(), true
	case "sessionId":
		return d.SessionID(), true
	case "realMaxBandwidth":
		return o.RealMaxBandwidth(), true
	case "idleTimeout":
		return o.IdleTimeout(), true
	case "keepaliveInterval":
		return o.KeepaliveInterval(), true
	case "pollingInterval":
		return o.PollingInterval(), true
	}
	return nil, false
}

// SubscriptionListener forwards the callbacks of one subscription, tagged
// with its id.
type SubscriptionListener struct {
	subID string
	sub   *stream.Subscription
	fwd   *Forwarder
}

func NewSubscriptionListener(subID string, sub *stream.Subscription, fwd *Forwarder) *SubscriptionListener {
	return &SubscriptionListener{subID: subID, sub: sub, fwd: fwd}
}

func (l *SubscriptionListener) send(event string, args map[string]any) {
	args["subId"] = l.subID
	l.fwd.Send(subscriptionListener+event, args)
}

func (l *SubscriptionListener) OnClearSnapshot(itemName string, itemPos int) {
	l.send("onClearSnapshot", map[string]any{"itemName": itemName, "itemPos": itemPos})
}

func (l *SubscriptionListener) OnCommandSecondLevelItemLostUpdates(lost int, key string) {
	l.send("onCommandSecondLevelItemLostUpdates", map[string]any{"lostUpdates": lost, "key": key})
}

func (l *SubscriptionListener) OnCommandSecondLevelSubscriptionError(code int, message string, key string) {
	l.send("onCommandSecondLevelSubscriptionError", map[string]any{"code": code, "message": message, "key": key})
}

func (l *SubscriptionListener) OnEndOfSnapshot(itemName string, itemPos int) {
	l.send("onEndOfSnapshot", map[string]any{"itemName": itemName, "itemPos": itemPos})
}

func (l *SubscriptionListener) OnItemLostUpdates(itemName string, itemPos int, lost int) {
	l.send("onItemLostUpdates", map[string]any{"itemName": itemName, "itemPos": itemPos, "lostUpdates": lost})
}

func (l *SubscriptionListener) OnItemUpdate(u *stream.ItemUpdate) {
	args := map[string]any{
		"itemName":                u.ItemName(),
		"itemPos":                 u.ItemPos(),
		"isSnapshot":              u.IsSnapshot(),
		"changedFieldsByPosition": byPosition(u.ChangedFieldsByPosition()),
		"fieldsByPosition":        byPosition(u.FieldsByPosition()),
		"jsonFieldsByPosition":    map[int]any{},
	}
	if u.HasFieldNames() {
		changed, err1 := u.ChangedFields()
		fields, err2 := u.Fields()
		if err1 == nil && err2 == nil {
			args["changedFields"] = byName(changed)
			args["fields"] = byName(fields)
			args["jsonFields"] = map[string]any{}
		}
	}
	l.send("onItemUpdate", args)
}

func (l *SubscriptionListener) OnSubscription() {
	args := map[string]any{}
	if l.sub.Mode() == stream.ModeCommand {
		if pos, err := l.sub.CommandPosition(); err == nil {
			args["commandPosition"] = pos
		}
		if pos, err := l.sub.KeyPosition(); err == nil {
			args["keyPosition"] = pos
		}
	}
	l.send("onSubscription", args)
}

func (l *SubscriptionListener) OnSubscriptionError(code int, message string) {
	l.send("onSubscriptionError", map[string]any{"errorCode": code, "errorMessage": message})
}

func (l *SubscriptionListener) OnUnsubscription() {
	l.send("onUnsubscription", map[string]any{})
}

func (l *SubscriptionListener) OnRealMaxFrequency(frequency string) {
	l.send("onRealMaxFrequency", map[string]any{"frequency": frequency})
}

// MessageListener forwards the outcome of one sent message, tagged with
// its message id.
type MessageListener struct {
	msgID string
	fwd   *Forwarder
}

func NewMessageListener(msgID string, fwd *Forwarder) *MessageListener {
	return &MessageListener{msgID: msgID, fwd: fwd}
}

func (l *MessageListener) send(event string, args map[string]any) {
	args["msgId"] = l.msgID
	l.fwd.Send(clientMessageListener+event, args)
}

func (l *MessageListener) OnAbort(originalMessage string, sentOnNetwork bool) {
	l.send("onAbort", map[string]any{"originalMessage": originalMessage, "sentOnNetwork": sentOnNetwork})
}

func (l *MessageListener) OnDeny(originalMessage string, code int, message string) {
	l.send("onDeny", map[string]any{"originalMessage": originalMessage, "errorCode": code, "errorMessage": message})
}

func (l *MessageListener) OnDiscarded(originalMessage string) {
	l.send("onDiscarded", map[string]any{"originalMessage": originalMessage})
}

func (l *MessageListener) OnError(originalMessage string) {
	l.send("onError", map[string]any{"originalMessage": originalMessage})
}

func (l *MessageListener) OnProcessed(originalMessage string, response string) {
	l.send("onProcessed", map[string]any{"originalMessage": originalMessage, "response": response})
}

// value turns an absent field into an explicit nil.
func value(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func byName(m map[string]*string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = value(v)
	}
	return out
}

func byPosition(m map[int]*string) map[int]any {
	out := make(map[int]any, len(m))
	for k, v := range m {
		out[k] = value(v)
	}
	return out
}
