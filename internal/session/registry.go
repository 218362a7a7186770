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

package session

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/stream"
)

// Registry maps the ids chosen by the host channel to client and
// subscription handles. One registry serves one channel session.
type Registry struct {
	resolver stream.Resolver
	logger   *slog.Logger

	mu            sync.RWMutex
	clients       map[string]*stream.Client
	subscriptions map[string]*stream.Subscription
}

// RemoveResult reports what Remove did. Refused handles are still in use
// and stay in the registry.
type RemoveResult struct {
	Clients              int      `cbor:"clients" json:"clients"`
	Subscriptions        int      `cbor:"subscriptions" json:"subscriptions"`
	RefusedClients       []string `cbor:"refusedClients" json:"refusedClients"`
	RefusedSubscriptions []string `cbor:"refusedSubscriptions" json:"refusedSubscriptions"`
}

func NewRegistry(resolver stream.Resolver, logger *slog.Logger) *Registry {
	return &Registry{
		resolver:      resolver,
		logger:        logger,
		clients:       make(map[string]*stream.Client),
		subscriptions: make(map[string]*stream.Subscription),
	}
}

// GetOrCreateClient returns the handle for id, creating an unconfigured
// client on first use. created is true when the handle is new.
func (r *Registry) GetOrCreateClient(id string) (c *stream.Client, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		return c, false, nil
	}
	c, err = stream.NewClient("", "", r.resolver)
	if err != nil {
		return nil, false, err
	}
	r.clients[id] = c
	r.logger.Debug("client created", "client_id", id)
	return c, true, nil
}

func (r *Registry) GetClient(id string) (*stream.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, fmt.Errorf("%w: Client %s doesn't exist", core.ErrClientNotFound, id)
	}
	return c, nil
}

func (r *Registry) GetSubscription(id string) (*stream.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("%w: Subscription %s doesn't exist", core.ErrSubscriptionNotFound, id)
	}
	return s, nil
}

// GetOrCreateSubscription returns the handle for id, creating it in the
// given mode when absent. An existing handle is returned as is, whatever
// its mode.
func (r *Registry) GetOrCreateSubscription(id, mode string) (s *stream.Subscription, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.subscriptions[id]; ok {
		return s, false, nil
	}
	s, err = stream.NewSubscription(mode)
	if err != nil {
		return nil, false, err
	}
	r.subscriptions[id] = s
	r.logger.Debug("subscription created", "sub_id", id, "mode", mode)
	return s, true, nil
}

// SubscriptionIDs lists, in sorted order, the ids of the registered
// subscriptions for which keep returns true. A nil keep lists all.
func (r *Registry) SubscriptionIDs(keep func(*stream.Subscription) bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.subscriptions))
	for id, s := range r.subscriptions {
		if keep == nil || keep(s) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Remove drops the given handles. Unknown ids are skipped. Clients that
// are not DISCONNECTED or still hold subscriptions are refused, and so are
// active subscriptions.
func (r *Registry) Remove(clientIDs, subIDs []string) RemoveResult {
	res := RemoveResult{RefusedClients: []string{}, RefusedSubscriptions: []string{}}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range clientIDs {
		c, ok := r.clients[id]
		if !ok {
			continue
		}
		if c.Status() != stream.StatusDisconnected || len(c.Subscriptions()) > 0 {
			res.RefusedClients = append(res.RefusedClients, id)
			continue
		}
		delete(r.clients, id)
		res.Clients++
	}
	for _, id := range subIDs {
		s, ok := r.subscriptions[id]
		if !ok {
			continue
		}
		if s.IsActive() {
			res.RefusedSubscriptions = append(res.RefusedSubscriptions, id)
			continue
		}
		delete(r.subscriptions, id)
		res.Subscriptions++
	}
	if len(res.RefusedClients) > 0 || len(res.RefusedSubscriptions) > 0 {
		r.logger.Warn("cleanup refused handles in use",
			"clients", res.RefusedClients,
			"subscriptions", res.RefusedSubscriptions,
		)
	}
	return res
}

// Counts returns the number of registered clients and subscriptions.
func (r *Registry) Counts() (clients, subscriptions int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients), len(r.subscriptions)
}

// Close disconnects every client. Handles stay registered.
func (r *Registry) Close() {
	r.mu.RLock()
	clients := make([]*stream.Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	for _, c := range clients {
		c.Disconnect()
	}
}
