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

package stream

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

// ItemUpdate is one change of an item. Values are nil when the field has
// no value, which is distinct from an empty string.
type ItemUpdate struct {
	itemName string
	itemPos  int
	snapshot bool
	names    []string
	values   []*string
	changed  []bool
}

// NewItemUpdate builds an update of values against the previous values of
// the item, nil on the first update. names may be nil when the fields are
// only known by position.
func NewItemUpdate(itemName string, itemPos int, snapshot bool, names []string, prev, values []*string) *ItemUpdate {
	return &ItemUpdate{
		itemName: itemName,
		itemPos:  itemPos,
		snapshot: snapshot,
		names:    names,
		values:   values,
		changed:  diff(prev, values),
	}
}

func (u *ItemUpdate) ItemName() string { return u.itemName }
func (u *ItemUpdate) ItemPos() int     { return u.itemPos }
func (u *ItemUpdate) IsSnapshot() bool { return u.snapshot }

// HasFieldNames reports whether by-name accessors can be used.
func (u *ItemUpdate) HasFieldNames() bool { return u.names != nil }

func (u *ItemUpdate) errNoNames() error {
	return fmt.Errorf("%w: subscription was configured without field names", core.ErrIllegalState)
}

func (u *ItemUpdate) Fields() (map[string]*string, error) {
	if u.names == nil {
		return nil, u.errNoNames()
	}
	out := make(map[string]*string, len(u.names))
	for i, name := range u.names {
		out[name] = u.values[i]
	}
	return out, nil
}

func (u *ItemUpdate) ChangedFields() (map[string]*string, error) {
	if u.names == nil {
		return nil, u.errNoNames()
	}
	out := make(map[string]*string)
	for i, name := range u.names {
		if u.changed[i] {
			out[name] = u.values[i]
		}
	}
	return out, nil
}

// FieldsByPosition is keyed by 1-based field position.
func (u *ItemUpdate) FieldsByPosition() map[int]*string {
	out := make(map[int]*string, len(u.values))
	for i, v := range u.values {
		out[i+1] = v
	}
	return out
}

func (u *ItemUpdate) ChangedFieldsByPosition() map[int]*string {
	out := make(map[int]*string)
	for i, v := range u.values {
		if u.changed[i] {
			out[i+1] = v
		}
	}
	return out
}

func (u *ItemUpdate) ValueByPos(pos int) (*string, error) {
	if pos < 1 || pos > len(u.values) {
		return nil, fmt.Errorf("%w: field position %d out of range", core.ErrBadArgument, pos)
	}
	return u.values[pos-1], nil
}

func (u *ItemUpdate) ValueByName(name string) (*string, error) {
	if u.names == nil {
		return nil, u.errNoNames()
	}
	for i, n := range u.names {
		if n == name {
			return u.values[i], nil
		}
	}
	return nil, fmt.Errorf("%w: unknown field %q", core.ErrBadArgument, name)
}

// decodeFields extracts n field values from a payload. JSON objects are
// read by name, JSON arrays by position; anything else fills the first
// field verbatim. Missing fields and JSON null decode to nil.
func decodeFields(payload []byte, names []string, n int) []*string {
	out := make([]*string, n)
	if n == 0 {
		return out
	}
	if !gjson.ValidBytes(payload) {
		s := string(payload)
		out[0] = &s
		return out
	}
	root := gjson.ParseBytes(payload)
	switch {
	case root.IsArray():
		arr := root.Array()
		for i := 0; i < n && i < len(arr); i++ {
			out[i] = resultValue(arr[i])
		}
	case root.IsObject():
		obj := root.Map()
		for i, name := range names {
			if i >= n {
				break
			}
			if r, ok := obj[name]; ok {
				out[i] = resultValue(r)
			}
		}
	default:
		out[0] = resultValue(root)
	}
	return out
}

func resultValue(r gjson.Result) *string {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	s := r.String()
	return &s
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// diff marks the positions whose value differs from prev. A nil prev marks
// every position as changed.
func diff(prev, next []*string) []bool {
	changed := make([]bool, len(next))
	for i := range next {
		changed[i] = prev == nil || i >= len(prev) || !sameValue(prev[i], next[i])
	}
	return changed
}

func strPtr(s string) *string { return &s }
