// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Params are the arguments of one API call.
type Params map[string]any

// Merge returns a new Params holding every key of defaults and call, with
// call winning on conflict. Neither input is modified.
func Merge(defaults, call Params) Params {
	out := make(Params, len(defaults)+len(call))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range call {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	return Merge(nil, p)
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode form-encodes p. Nil values are dropped, integer and string slices
// are comma-joined, and maps or other slices are sent as JSON.
func (p Params) Encode() (string, error) {
	values := make(url.Values, len(p))
	for k, v := range p {
		s, ok, err := encodeValue(v)
		if err != nil {
			return "", fmt.Errorf("encode param %q: %w", k, err)
		}
		if ok {
			values.Set(k, s)
		}
	}
	return values.Encode(), nil
}

func encodeValue(v any) (string, bool, error) {
	switch val := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return val, true, nil
	case []string:
		return strings.Join(val, ","), true, nil
	case []int:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ","), true, nil
	case []int64:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return strings.Join(parts, ","), true, nil
	case json.RawMessage:
		return string(val), true, nil
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return "", false, err
		}
		return string(b), true, nil
	default:
		return fmt.Sprint(val), true, nil
	}
}
