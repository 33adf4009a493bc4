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

package tracing

import (
	"context"
	"testing"
)

func TestNewCorrelationID(t *testing.T) {
	id := NewCorrelationID()
	if !id.IsValid() {
		t.Errorf("generated ID %q is not a valid UUID", id)
	}
	if other := NewCorrelationID(); other == id {
		t.Error("expected unique correlation IDs")
	}
}

func TestCorrelationID_IsValid(t *testing.T) {
	tests := []struct {
		id   CorrelationID
		want bool
	}{
		{"550e8400-e29b-41d4-a716-446655440000", true},
		{"550E8400-E29B-41D4-A716-446655440000", true},
		{"", false},
		{"not-a-uuid", false},
		{"550e8400e29b41d4a716446655440000", false},
		{"{550e8400-e29b-41d4-a716-446655440000}", false},
		{"550e8400-e29b-41d4-a716-44665544000g", false},
	}
	for _, tt := range tests {
		if got := tt.id.IsValid(); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := FromContextOrEmpty(ctx); got != "" {
		t.Errorf("expected empty ID, got %q", got)
	}

	id := NewCorrelationID()
	ctx = ToContext(ctx, id)
	if got := FromContextOrEmpty(ctx); got != id {
		t.Errorf("FromContextOrEmpty() = %q, want %q", got, id)
	}

	inner := ToContext(ctx, NewCorrelationID())
	if FromContextOrEmpty(inner) == id {
		t.Error("inner context should shadow the outer ID")
	}
	if FromContextOrEmpty(ctx) != id {
		t.Error("outer context must be unchanged")
	}
}
