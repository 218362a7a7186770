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

package routing

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

// Transports gives access to the configured transports by name, connecting
// them on first use.
type Transports interface {
	Has(name string) bool
	Acquire(ctx context.Context, name string) (core.Transport, error)
}

// Resolver picks the transport serving a client's server address.
type Resolver struct {
	table      *Table
	transports Transports
	logger     *slog.Logger
}

func NewResolver(table *Table, transports Transports, logger *slog.Logger) *Resolver {
	return &Resolver{table: table, transports: transports, logger: logger}
}

// Resolve honours forced when it names a configured transport. Any other
// forced value, such as a protocol name, falls back to routing on the
// scheme of serverAddress.
func (r *Resolver) Resolve(ctx context.Context, serverAddress, forced string) (core.Transport, error) {
	if forced != "" && r.transports.Has(forced) {
		r.logger.Debug("using forced transport", "transport", forced)
		return r.transports.Acquire(ctx, forced)
	}

	u, err := url.Parse(serverAddress)
	if err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("%w: invalid server address %q", core.ErrNoRoute, serverAddress)
	}
	route, ok := r.table.Lookup(u.Scheme)
	if !ok {
		return nil, fmt.Errorf("%w: scheme %q", core.ErrNoRoute, u.Scheme)
	}
	r.logger.Debug("resolved route", "scheme", u.Scheme, "transport", route.Transport)
	return r.transports.Acquire(ctx, route.Transport)
}
