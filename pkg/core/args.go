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

package core

import (
	"fmt"
	"math"
)

// Args is the tagged-value map carried by a method call. Absent keys and
// nil values read as the getter's default; values of any other type than
// the one requested fail with ErrBadArgument.
type Args map[string]any

func (a Args) lookup(key string) (any, bool) {
	if a == nil {
		return nil, false
	}
	v, ok := a[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Has reports whether key is present with a non-nil value.
func (a Args) Has(key string) bool {
	_, ok := a.lookup(key)
	return ok
}

func badArgument(key, want string, got any) error {
	return fmt.Errorf("%w: key=%s want=%s got=%T", ErrBadArgument, key, want, got)
}

func (a Args) Int(key string) (int32, error) {
	return a.IntOr(key, -1)
}

func (a Args) IntOr(key string, def int32) (int32, error) {
	v, ok := a.lookup(key)
	if !ok {
		return def, nil
	}
	n, ok := toInt32(v)
	if !ok {
		return def, badArgument(key, "int32", v)
	}
	return n, nil
}

func (a Args) String(key string) (string, error) {
	v, ok := a.lookup(key)
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", badArgument(key, "string", v)
	}
	return s, nil
}

func (a Args) Bool(key string) (bool, error) {
	return a.BoolOr(key, false)
}

func (a Args) BoolOr(key string, def bool) (bool, error) {
	v, ok := a.lookup(key)
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return def, badArgument(key, "bool", v)
	}
	return b, nil
}

func (a Args) StringList(key string) ([]string, error) {
	v, ok := a.lookup(key)
	if !ok {
		return []string{}, nil
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for i, e := range list {
			s, ok := e.(string)
			if !ok {
				return []string{}, badArgument(fmt.Sprintf("%s[%d]", key, i), "string", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return []string{}, badArgument(key, "list", v)
	}
}

func (a Args) StringMap(key string) (map[string]string, error) {
	v, ok := a.lookup(key)
	if !ok {
		return map[string]string{}, nil
	}
	if m, ok := v.(map[string]string); ok {
		return m, nil
	}
	m, err := asArgs(key, v)
	if err != nil {
		return map[string]string{}, err
	}
	out := make(map[string]string, len(m))
	for k, e := range m {
		s, ok := e.(string)
		if !ok {
			return map[string]string{}, badArgument(key+"."+k, "string", e)
		}
		out[k] = s
	}
	return out, nil
}

func (a Args) Map(key string) (Args, error) {
	v, ok := a.lookup(key)
	if !ok {
		return Args{}, nil
	}
	return asArgs(key, v)
}

func asArgs(key string, v any) (Args, error) {
	switch m := v.(type) {
	case Args:
		return m, nil
	case map[string]any:
		return Args(m), nil
	case map[any]any:
		out := make(Args, len(m))
		for k, e := range m {
			ks, ok := k.(string)
			if !ok {
				return Args{}, badArgument(key, "string key", k)
			}
			out[ks] = e
		}
		return out, nil
	default:
		return Args{}, badArgument(key, "map", v)
	}
}

func toInt32(v any) (int32, bool) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		return x, true
	case int64:
		n = x
	case uint:
		if uint64(x) > math.MaxInt32 {
			return 0, false
		}
		n = int64(x)
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint64:
		if x > math.MaxInt32 {
			return 0, false
		}
		n = int64(x)
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		if x < math.MinInt32 || x > math.MaxInt32 {
			return 0, false
		}
		return int32(x), true
	default:
		return 0, false
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int32(n), true
}

// ArgReader reads several keys and keeps the first failure, so typed
// request decoders can check a single error at the end. Readers over
// nested maps share the error of the reader that created them.
type ArgReader struct {
	args Args
	err  *error
}

func NewArgReader(a Args) *ArgReader {
	return &ArgReader{args: a, err: new(error)}
}

func (r *ArgReader) Err() error { return *r.err }

func (r *ArgReader) Has(key string) bool { return r.args.Has(key) }

func (r *ArgReader) keep(err error) {
	if *r.err == nil && err != nil {
		*r.err = err
	}
}

func (r *ArgReader) Int(key string) int32 {
	v, err := r.args.Int(key)
	r.keep(err)
	return v
}

func (r *ArgReader) IntOr(key string, def int32) int32 {
	v, err := r.args.IntOr(key, def)
	r.keep(err)
	return v
}

func (r *ArgReader) String(key string) string {
	v, err := r.args.String(key)
	r.keep(err)
	return v
}

func (r *ArgReader) Bool(key string) bool {
	v, err := r.args.Bool(key)
	r.keep(err)
	return v
}

func (r *ArgReader) BoolOr(key string, def bool) bool {
	v, err := r.args.BoolOr(key, def)
	r.keep(err)
	return v
}

func (r *ArgReader) StringList(key string) []string {
	v, err := r.args.StringList(key)
	r.keep(err)
	return v
}

func (r *ArgReader) StringMap(key string) map[string]string {
	v, err := r.args.StringMap(key)
	r.keep(err)
	return v
}

func (r *ArgReader) Map(key string) *ArgReader {
	v, err := r.args.Map(key)
	r.keep(err)
	return &ArgReader{args: v, err: r.err}
}
