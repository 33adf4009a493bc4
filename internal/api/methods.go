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
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Cursor is a long-poll position marker. The service sends it either as a
// JSON string or as a number; both decode to the same value.
type Cursor string

// UnmarshalJSON accepts a string or a number.
func (c *Cursor) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Cursor(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("cursor must be a string or number: %w", err)
	}
	*c = Cursor(n.String())
	return nil
}

func (c Cursor) String() string {
	return string(c)
}

// LongPollServer is the session returned by groups.getLongPollServer.
type LongPollServer struct {
	Key    string `json:"key"`
	Server string `json:"server"`
	TS     Cursor `json:"ts"`
}

// Complete reports whether every field needed to poll is present.
func (s LongPollServer) Complete() bool {
	return s.Key != "" && s.Server != "" && s.TS != ""
}

// GetLongPollServer acquires a fresh long-poll session for groupID.
func (c *Client) GetLongPollServer(ctx context.Context, groupID int64) (LongPollServer, error) {
	raw, err := c.Call(ctx, "groups.getLongPollServer", Params{"group_id": groupID})
	if err != nil {
		return LongPollServer{}, err
	}
	var srv LongPollServer
	if err := json.Unmarshal(raw, &srv); err != nil {
		return LongPollServer{}, fmt.Errorf("decode long-poll server: %w", err)
	}
	return srv, nil
}

// SendMessage posts text to peerID. extra is merged over the base
// parameters, so it may override random_id or add attachments.
func SendMessage(ctx context.Context, c Caller, peerID int64, text string, extra Params) (int64, error) {
	params := Merge(Params{
		"peer_id":   peerID,
		"message":   text,
		"random_id": 0,
	}, extra)

	raw, err := c.Call(ctx, "messages.send", params)
	if err != nil {
		return 0, err
	}
	// messages.send answers with the new message id; peer_ids variants
	// answer with a list, which callers do not need.
	id, _ := strconv.ParseInt(string(raw), 10, 64)
	return id, nil
}

// SetActivity shows an activity indicator ("typing", "audiomessage") in
// peerID's conversation.
func SetActivity(ctx context.Context, c Caller, peerID int64, activity string) error {
	_, err := c.Call(ctx, "messages.setActivity", Params{
		"peer_id": peerID,
		"type":    activity,
	})
	return err
}

// Execute runs a batch script and returns the whole envelope, including
// any execute_errors.
func Execute(ctx context.Context, c Caller, code string) (ExecuteResult, error) {
	raw, err := c.Call(ctx, MethodExecute, Params{"code": code})
	if err != nil {
		return ExecuteResult{}, err
	}
	var res ExecuteResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return ExecuteResult{}, fmt.Errorf("decode execute envelope: %w", err)
	}
	return res, nil
}

// ExecuteResult is the envelope of an execute call.
type ExecuteResult struct {
	Response json.RawMessage `json:"response"`
	Errors   []ExecuteError  `json:"execute_errors,omitempty"`
}

// ExecuteError is one failed call inside a batch.
type ExecuteError struct {
	Method  string `json:"method"`
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}
