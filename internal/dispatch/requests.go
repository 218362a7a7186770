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
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

// request is the typed form of a call's arguments.
type request interface {
	decode(r *core.ArgReader)
}

func decodeInto(args core.Args, req request) error {
	r := core.NewArgReader(args)
	req.decode(r)
	return r.Err()
}

func decode[T any, P interface {
	*T
	request
}](args core.Args) (*T, error) {
	req := P(new(T))
	if err := decodeInto(args, req); err != nil {
		return nil, err
	}
	return (*T)(req), nil
}

func optString(r *core.ArgReader, key string) *string {
	if !r.Has(key) {
		return nil
	}
	v := r.String(key)
	return &v
}

func optInt(r *core.ArgReader, key string) *int32 {
	if !r.Has(key) {
		return nil
	}
	v := r.Int(key)
	return &v
}

func optBool(r *core.ArgReader, key string) *bool {
	if !r.Has(key) {
		return nil
	}
	v := r.Bool(key)
	return &v
}

type clientRequest struct {
	ID string
}

func (q *clientRequest) decode(r *core.ArgReader) {
	q.ID = r.String("id")
}

type connectionDetails struct {
	AdapterSet    *string
	ServerAddress *string
	User          *string
	Password      *string
}

func (q *connectionDetails) decode(r *core.ArgReader) {
	q.AdapterSet = optString(r, "adapterSet")
	q.ServerAddress = optString(r, "serverAddress")
	q.User = optString(r, "user")
	q.Password = optString(r, "password")
}

// connectionOptions keeps only the keys present in the call; absent keys
// leave the client's current value.
type connectionOptions struct {
	ContentLength                         *int32
	FirstRetryMaxDelay                    *int32
	ForcedTransport                       *string
	HttpExtraHeaders                      map[string]string
	IdleTimeout                           *int32
	KeepaliveInterval                     *int32
	PollingInterval                       *int32
	ReconnectTimeout                      *int32
	RequestedMaxBandwidth                 *string
	RetryDelay                            *int32
	ReverseHeartbeatInterval              *int32
	SessionRecoveryTimeout                *int32
	StalledTimeout                        *int32
	HttpExtraHeadersOnSessionCreationOnly *bool
	ServerInstanceAddressIgnored          *bool
	SlowingEnabled                        *bool
}

func (q *connectionOptions) decode(r *core.ArgReader) {
	q.ContentLength = optInt(r, "contentLength")
	q.FirstRetryMaxDelay = optInt(r, "firstRetryMaxDelay")
	q.ForcedTransport = optString(r, "forcedTransport")
	q.HttpExtraHeaders = r.StringMap("httpExtraHeaders")
	q.IdleTimeout = optInt(r, "idleTimeout")
	q.KeepaliveInterval = optInt(r, "keepaliveInterval")
	q.PollingInterval = optInt(r, "pollingInterval")
	q.ReconnectTimeout = optInt(r, "reconnectTimeout")
	q.RequestedMaxBandwidth = optString(r, "requestedMaxBandwidth")
	q.RetryDelay = optInt(r, "retryDelay")
	q.ReverseHeartbeatInterval = optInt(r, "reverseHeartbeatInterval")
	q.SessionRecoveryTimeout = optInt(r, "sessionRecoveryTimeout")
	q.StalledTimeout = optInt(r, "stalledTimeout")
	q.HttpExtraHeadersOnSessionCreationOnly = optBool(r, "httpExtraHeadersOnSessionCreationOnly")
	q.ServerInstanceAddressIgnored = optBool(r, "serverInstanceAddressIgnored")
	q.SlowingEnabled = optBool(r, "slowingEnabled")
}

type connectRequest struct {
	ID      string
	Details connectionDetails
	Options connectionOptions
}

func (q *connectRequest) decode(r *core.ArgReader) {
	q.ID = r.String("id")
	q.Details.decode(r.Map("connectionDetails"))
	q.Options.decode(r.Map("connectionOptions"))
}

type subscriptionConfig struct {
	ID           string
	Mode         string
	Items        []string
	Fields       []string
	Group        string
	Schema       string
	DataAdapter  string
	BufferSize   string
	Snapshot     string
	MaxFrequency string
	Selector     string
	DataAdapter2 string
	Fields2      []string
	Schema2      string
}

func (q *subscriptionConfig) decode(r *core.ArgReader) {
	q.ID = r.String("id")
	q.Mode = r.String("mode")
	q.Items = r.StringList("items")
	q.Fields = r.StringList("fields")
	q.Group = r.String("group")
	q.Schema = r.String("schema")
	q.DataAdapter = r.String("dataAdapter")
	q.BufferSize = r.String("bufferSize")
	q.Snapshot = r.String("snapshot")
	q.MaxFrequency = r.String("requestedMaxFrequency")
	q.Selector = r.String("selector")
	q.DataAdapter2 = r.String("dataAdapter2")
	q.Fields2 = r.StringList("fields2")
	q.Schema2 = r.String("schema2")
}

type subscribeRequest struct {
	ID  string
	Sub subscriptionConfig
}

func (q *subscribeRequest) decode(r *core.ArgReader) {
	q.ID = r.String("id")
	q.Sub.decode(r.Map("subscription"))
}

type unsubscribeRequest struct {
	ID    string
	SubID string
}

func (q *unsubscribeRequest) decode(r *core.ArgReader) {
	q.ID = r.String("id")
	q.SubID = r.String("subId")
}

type sendMessageRequest struct {
	ID           string
	MsgID        string
	Message      string
	Sequence     string
	DelayTimeout int32
	Enqueue      bool
}

func (q *sendMessageRequest) decode(r *core.ArgReader) {
	q.ID = r.String("id")
	q.MsgID = r.String("msgId")
	q.Message = r.String("message")
	q.Sequence = r.String("sequence")
	q.DelayTimeout = r.IntOr("delayTimeout", -1)
	q.Enqueue = r.BoolOr("enqueueWhileDisconnected", false)
}

type loggerProviderRequest struct {
	Level    int32
	Provider string
}

func (q *loggerProviderRequest) decode(r *core.ArgReader) {
	q.Level = r.Int("level")
	q.Provider = r.String("provider")
}

type addCookiesRequest struct {
	URI     string
	Cookies []string
}

func (q *addCookiesRequest) decode(r *core.ArgReader) {
	q.URI = r.String("uri")
	q.Cookies = r.StringList("cookies")
}

type getCookiesRequest struct {
	URI string
}

func (q *getCookiesRequest) decode(r *core.ArgReader) {
	q.URI = r.String("uri")
}

type cleanResourcesRequest struct {
	ClientIDs []string
	SubIDs    []string
}

func (q *cleanResourcesRequest) decode(r *core.ArgReader) {
	q.ClientIDs = r.StringList("clientIds")
	q.SubIDs = r.StringList("subIds")
}

type setStringRequest struct {
	ID     string
	NewVal string
}

func (q *setStringRequest) decode(r *core.ArgReader) {
	q.ID = r.String("id")
	q.NewVal = r.String("newVal")
}

type setIntRequest struct {
	ID     string
	NewVal int32
}

func (q *setIntRequest) decode(r *core.ArgReader) {
	q.ID = r.String("id")
	q.NewVal = r.Int("newVal")
}

type subRequest struct {
	SubID string
}

func (q *subRequest) decode(r *core.ArgReader) {
	q.SubID = r.String("subId")
}

type subSetStringRequest struct {
	SubID  string
	NewVal string
}

func (q *subSetStringRequest) decode(r *core.ArgReader) {
	q.SubID = r.String("subId")
	q.NewVal = r.String("newVal")
}

// valueShape says how a value lookup addresses its item and field and
// whether it reads a COMMAND row.
type valueShape struct {
	itemByName  bool
	fieldByName bool
	command     bool
}

type valueRequest struct {
	shape     valueShape
	SubID     string
	ItemName  string
	ItemPos   int32
	Key       string
	FieldName string
	FieldPos  int32
}

func (q *valueRequest) decode(r *core.ArgReader) {
	q.SubID = r.String("subId")
	if q.shape.itemByName {
		q.ItemName = r.String("item")
	} else {
		q.ItemPos = r.Int("item")
	}
	if q.shape.command {
		q.Key = r.String("key")
	}
	if q.shape.fieldByName {
		q.FieldName = r.String("field")
	} else {
		q.FieldPos = r.Int("field")
	}
}
