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
	"strings"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

// Table maps server address schemes to transport names.
type Table struct {
	routes sync.Map
}

func NewTable() *Table {
	return &Table{}
}

func normalize(scheme string) string {
	return strings.ToLower(scheme)
}

func (t *Table) Add(route *core.Route) {
	t.routes.Store(normalize(route.Scheme), route)
}

func (t *Table) Remove(scheme string) {
	t.routes.Delete(normalize(scheme))
}

func (t *Table) Lookup(scheme string) (*core.Route, bool) {
	v, ok := t.routes.Load(normalize(scheme))
	if !ok {
		return nil, false
	}
	return v.(*core.Route), true
}

func (t *Table) ReplaceAll(routes []*core.Route) {
	t.routes.Range(func(key, _ any) bool {
		t.routes.Delete(key)
		return true
	})
	for _, r := range routes {
		t.Add(r)
	}
}

func (t *Table) Len() int {
	n := 0
	t.routes.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
