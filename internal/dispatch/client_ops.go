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
	"slices"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/forward"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/internal/logging"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/stream"
)

func (d *Dispatcher) connect(_ context.Context, args core.Args) (any, error) {
	req, err := decode[connectRequest](args)
	if err != nil {
		return nil, err
	}
	c, err := d.client(req.ID)
	if err != nil {
		return nil, err
	}
	if err := applyDetails(c.ConnectionDetails, req.Details); err != nil {
		return nil, err
	}
	if err := applyOptions(c.ConnectionOptions, req.Options); err != nil {
		return nil, err
	}
	return nil, c.Connect()
}

func applyDetails(cd *stream.ConnectionDetails, q connectionDetails) error {
	if q.AdapterSet != nil {
		cd.SetAdapterSet(*q.AdapterSet)
	}
	if q.ServerAddress != nil {
		if err := cd.SetServerAddress(*q.ServerAddress); err != nil {
			return err
		}
	}
	if q.User != nil {
		cd.SetUser(*q.User)
	}
	if q.Password != nil {
		cd.SetPassword(*q.Password)
	}
	return nil
}

func setInt(v *int32, set func(int32) error) error {
	if v == nil {
		return nil
	}
	return set(*v)
}

func setString(v *string, set func(string)) error {
	if v != nil {
		set(*v)
	}
	return nil
}

func setBool(v *bool, set func(bool)) error {
	if v != nil {
		set(*v)
	}
	return nil
}

func applyOptions(o *stream.ConnectionOptions, q connectionOptions) error {
	steps := []func() error{
		func() error { return setInt(q.ContentLength, o.SetContentLength) },
		func() error { return setInt(q.FirstRetryMaxDelay, o.SetFirstRetryMaxDelay) },
		func() error { return setString(q.ForcedTransport, o.SetForcedTransport) },
		func() error {
			if len(q.HttpExtraHeaders) > 0 {
				o.SetHttpExtraHeaders(q.HttpExtraHeaders)
			}
			return nil
		},
		func() error { return setInt(q.IdleTimeout, o.SetIdleTimeout) },
		func() error { return setInt(q.KeepaliveInterval, o.SetKeepaliveInterval) },
		func() error { return setInt(q.PollingInterval, o.SetPollingInterval) },
		func() error { return setInt(q.ReconnectTimeout, o.SetReconnectTimeout) },
		func() error {
			if q.RequestedMaxBandwidth == nil {
				return nil
			}
			return o.SetRequestedMaxBandwidth(*q.RequestedMaxBandwidth)
		},
		func() error { return setInt(q.RetryDelay, o.SetRetryDelay) },
		func() error { return setInt(q.ReverseHeartbeatInterval, o.SetReverseHeartbeatInterval) },
		func() error { return setInt(q.SessionRecoveryTimeout, o.SetSessionRecoveryTimeout) },
		func() error { return setInt(q.StalledTimeout, o.SetStalledTimeout) },
		func() error { return setBool(q.HttpExtraHeadersOnSessionCreationOnly, o.SetHttpExtraHeadersOnSessionCreationOnly) },
		func() error { return setBool(q.ServerInstanceAddressIgnored, o.SetServerInstanceAddressIgnored) },
		func() error { return setBool(q.SlowingEnabled, o.SetSlowingEnabled) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) disconnect(_ context.Context, args core.Args) (any, error) {
	req, err := decode[clientRequest](args)
	if err != nil {
		return nil, err
	}
	c, err := d.client(req.ID)
	if err != nil {
		return nil, err
	}
	c.Disconnect()
	return nil, nil
}

func (d *Dispatcher) getStatus(_ context.Context, args core.Args) (any, error) {
	req, err := decode[clientRequest](args)
	if err != nil {
		return nil, err
	}
	c, err := d.client(req.ID)
	if err != nil {
		return nil, err
	}
	return c.Status(), nil
}

func (d *Dispatcher) subscribe(_ context.Context, args core.Args) (any, error) {
	req, err := decode[subscribeRequest](args)
	if err != nil {
		return nil, err
	}
	c, err := d.client(req.ID)
	if err != nil {
		return nil, err
	}
	conf := req.Sub
	sub, created, err := d.registry.GetOrCreateSubscription(conf.ID, conf.Mode)
	if err != nil {
		return nil, err
	}
	if created {
		sub.AddListener(forward.NewSubscriptionListener(conf.ID, sub, d.fwd))
	}
	if sub.IsActive() {
		return nil, fmt.Errorf("%w: Cannot subscribe to an active Subscription", core.ErrIllegalState)
	}
	if err := configure(sub, conf); err != nil {
		return nil, err
	}
	return nil, c.Subscribe(sub)
}

// configure applies the non-empty fields of conf in a fixed order.
func configure(sub *stream.Subscription, conf subscriptionConfig) error {
	steps := []struct {
		set   bool
		apply func() error
	}{
		{len(conf.Items) > 0, func() error { return sub.SetItems(conf.Items) }},
		{len(conf.Fields) > 0, func() error { return sub.SetFields(conf.Fields) }},
		{conf.Group != "", func() error { return sub.SetItemGroup(conf.Group) }},
		{conf.Schema != "", func() error { return sub.SetFieldSchema(conf.Schema) }},
		{conf.DataAdapter != "", func() error { return sub.SetDataAdapter(conf.DataAdapter) }},
		{conf.BufferSize != "", func() error { return sub.SetRequestedBufferSize(conf.BufferSize) }},
		{conf.Snapshot != "", func() error { return sub.SetRequestedSnapshot(conf.Snapshot) }},
		{conf.MaxFrequency != "", func() error { return sub.SetRequestedMaxFrequency(conf.MaxFrequency) }},
		{conf.Selector != "", func() error { return sub.SetSelector(conf.Selector) }},
		{conf.DataAdapter2 != "", func() error { return sub.SetCommandSecondLevelDataAdapter(conf.DataAdapter2) }},
		{len(conf.Fields2) > 0, func() error { return sub.SetCommandSecondLevelFields(conf.Fields2) }},
		{conf.Schema2 != "", func() error { return sub.SetCommandSecondLevelFieldSchema(conf.Schema2) }},
	}
	for _, s := range steps {
		if !s.set {
			continue
		}
		if err := s.apply(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) unsubscribe(_ context.Context, args core.Args) (any, error) {
	req, err := decode[unsubscribeRequest](args)
	if err != nil {
		return nil, err
	}
	c, err := d.client(req.ID)
	if err != nil {
		return nil, err
	}
	sub, err := d.registry.GetSubscription(req.SubID)
	if err != nil {
		return nil, err
	}
	return nil, c.Unsubscribe(sub)
}

func (d *Dispatcher) getSubscriptions(_ context.Context, args core.Args) (any, error) {
	req, err := decode[clientRequest](args)
	if err != nil {
		return nil, err
	}
	c, err := d.client(req.ID)
	if err != nil {
		return nil, err
	}
	active := c.Subscriptions()
	return d.registry.SubscriptionIDs(func(s *stream.Subscription) bool {
		return slices.Contains(active, s)
	}), nil
}

func (d *Dispatcher) sendMessage(_ context.Context, args core.Args) (any, error) {
	req, err := decode[sendMessageRequest](args)
	if err != nil {
		return nil, err
	}
	c, err := d.client(req.ID)
	if err != nil {
		return nil, err
	}
	var listener stream.ClientMessageListener
	if req.MsgID != "" {
		listener = forward.NewMessageListener(req.MsgID, d.fwd)
	}
	c.SendMessage(req.Message, req.Sequence, req.DelayTimeout, listener, req.Enqueue)
	return nil, nil
}

func (d *Dispatcher) setLoggerProvider(_ context.Context, args core.Args) (any, error) {
	req, err := decode[loggerProviderRequest](args)
	if err != nil {
		return nil, err
	}
	level := logging.ParseLevel(req.Level)
	stream.SetLoggerProvider(logging.NewProvider(req.Provider, level, d.logger))
	d.logger.Info("logger provider set", "provider", req.Provider, "level", level.String())
	return nil, nil
}

func (d *Dispatcher) addCookies(_ context.Context, args core.Args) (any, error) {
	req, err := decode[addCookiesRequest](args)
	if err != nil {
		return nil, err
	}
	return nil, d.cookies.AddCookies(req.URI, req.Cookies)
}

func (d *Dispatcher) getCookies(_ context.Context, args core.Args) (any, error) {
	req, err := decode[getCookiesRequest](args)
	if err != nil {
		return nil, err
	}
	return d.cookies.GetCookies(req.URI)
}

func (d *Dispatcher) cleanResources(_ context.Context, args core.Args) (any, error) {
	req, err := decode[cleanResourcesRequest](args)
	if err != nil {
		return nil, err
	}
	res := d.registry.Remove(req.ClientIDs, req.SubIDs)
	d.logger.Info(fmt.Sprintf("Cleaned clients: %d subscriptions: %d", res.Clients, res.Subscriptions))
	return res, nil
}

func (d *Dispatcher) setServerAddress(_ context.Context, args core.Args) (any, error) {
	req, err := decode[setStringRequest](args)
	if err != nil {
		return nil, err
	}
	c, err := d.client(req.ID)
	if err != nil {
		return nil, err
	}
	return nil, c.ConnectionDetails.SetServerAddress(req.NewVal)
}

func (d *Dispatcher) setForcedTransport(_ context.Context, args core.Args) (any, error) {
	req, err := decode[setStringRequest](args)
	if err != nil {
		return nil, err
	}
	c, err := d.client(req.ID)
	if err != nil {
		return nil, err
	}
	c.ConnectionOptions.SetForcedTransport(req.NewVal)
	return nil, nil
}

func (d *Dispatcher) setRequestedMaxBandwidth(_ context.Context, args core.Args) (any, error) {
	req, err := decode[setStringRequest](args)
	if err != nil {
		return nil, err
	}
	c, err := d.client(req.ID)
	if err != nil {
		return nil, err
	}
	return nil, c.ConnectionOptions.SetRequestedMaxBandwidth(req.NewVal)
}

func (d *Dispatcher) setReverseHeartbeatInterval(_ context.Context, args core.Args) (any, error) {
	req, err := decode[setIntRequest](args)
	if err != nil {
		return nil, err
	}
	c, err := d.client(req.ID)
	if err != nil {
		return nil, err
	}
	return nil, c.ConnectionOptions.SetReverseHeartbeatInterval(req.NewVal)
}
