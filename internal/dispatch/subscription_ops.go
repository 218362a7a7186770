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

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/stream"
)

func (d *Dispatcher) subscription(args core.Args) (*stream.Subscription, error) {
	req, err := decode[subRequest](args)
	if err != nil {
		return nil, err
	}
	return d.registry.GetSubscription(req.SubID)
}

func (d *Dispatcher) getCommandPosition(_ context.Context, args core.Args) (any, error) {
	sub, err := d.subscription(args)
	if err != nil {
		return nil, err
	}
	return sub.CommandPosition()
}

func (d *Dispatcher) getKeyPosition(_ context.Context, args core.Args) (any, error) {
	sub, err := d.subscription(args)
	if err != nil {
		return nil, err
	}
	return sub.KeyPosition()
}

func (d *Dispatcher) setRequestedMaxFrequency(_ context.Context, args core.Args) (any, error) {
	req, err := decode[subSetStringRequest](args)
	if err != nil {
		return nil, err
	}
	sub, err := d.registry.GetSubscription(req.SubID)
	if err != nil {
		return nil, err
	}
	return nil, sub.SetRequestedMaxFrequency(req.NewVal)
}

func (d *Dispatcher) isActive(_ context.Context, args core.Args) (any, error) {
	sub, err := d.subscription(args)
	if err != nil {
		return nil, err
	}
	return sub.IsActive(), nil
}

func (d *Dispatcher) isSubscribed(_ context.Context, args core.Args) (any, error) {
	sub, err := d.subscription(args)
	if err != nil {
		return nil, err
	}
	return sub.IsSubscribed(), nil
}

// valueHandler builds the handler of one of the value lookups.
func valueHandler(shape valueShape) handler {
	return func(d *Dispatcher, _ context.Context, args core.Args) (any, error) {
		req := &valueRequest{shape: shape}
		if err := decodeInto(args, req); err != nil {
			return nil, err
		}
		sub, err := d.registry.GetSubscription(req.SubID)
		if err != nil {
			return nil, err
		}

		itemPos := int(req.ItemPos)
		if shape.itemByName {
			if itemPos, err = sub.ItemPos(req.ItemName); err != nil {
				return nil, err
			}
		}
		fieldPos := int(req.FieldPos)
		if shape.fieldByName {
			if fieldPos, err = sub.FieldPos(req.FieldName); err != nil {
				return nil, err
			}
		}

		var v *string
		if shape.command {
			v, err = sub.CommandValue(itemPos, req.Key, fieldPos)
		} else {
			v, err = sub.Value(itemPos, fieldPos)
		}
		if err != nil {
			return nil, err
		}
		return value(v), nil
	}
}
