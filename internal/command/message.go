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

package command

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tombee/herald/internal/api"
)

// Message is an inbound text message with a reply helper bound to the
// caller that delivered it.
type Message struct {
	ID                    int64  `json:"id"`
	Date                  int64  `json:"date"`
	PeerID                int64  `json:"peer_id"`
	FromID                int64  `json:"from_id"`
	Text                  string `json:"text"`
	ConversationMessageID int64  `json:"conversation_message_id"`
	Payload               string `json:"payload,omitempty"`

	// ClientInfo describes what the sender's client supports. It may be nil.
	ClientInfo *ClientInfo `json:"-"`

	caller api.Caller
}

// ClientInfo is the client_info member of a message_new object.
type ClientInfo struct {
	ButtonActions  []string `json:"button_actions"`
	Keyboard       bool     `json:"keyboard"`
	InlineKeyboard bool     `json:"inline_keyboard"`
	Carousel       bool     `json:"carousel"`
	LangID         int      `json:"lang_id"`
}

type messageNew struct {
	Message    *Message    `json:"message"`
	ClientInfo *ClientInfo `json:"client_info"`
}

// ParseMessageNew decodes a message_new object and binds the result to
// caller.
func ParseMessageNew(object json.RawMessage, caller api.Caller) (*Message, error) {
	var obj messageNew
	if err := json.Unmarshal(object, &obj); err != nil {
		return nil, fmt.Errorf("decode message_new: %w", err)
	}
	if obj.Message == nil {
		return nil, fmt.Errorf("decode message_new: object has no message")
	}
	msg := obj.Message
	msg.ClientInfo = obj.ClientInfo
	msg.caller = caller
	return msg, nil
}

// Bind sets the caller used by Send and returns m.
func (m *Message) Bind(caller api.Caller) *Message {
	m.caller = caller
	return m
}

// Caller returns the caller the message is bound to, or nil.
func (m *Message) Caller() api.Caller {
	return m.caller
}

// Send replies in the message's conversation. extra is merged over
// peer_id, message and random_id.
func (m *Message) Send(ctx context.Context, text string, extra api.Params) (int64, error) {
	if m.caller == nil {
		return 0, fmt.Errorf("message is not bound to a caller")
	}
	return api.SendMessage(ctx, m.caller, m.PeerID, text, extra)
}
