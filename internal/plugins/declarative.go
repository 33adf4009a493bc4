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

package plugins

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/tombee/herald/internal/api"
	"github.com/tombee/herald/internal/command"
	heralderrors "github.com/tombee/herald/pkg/errors"
)

// Definition is the YAML form of a declarative command.
//
//	name: weather
//	pattern: '^/weather (\w+)$'
//	when: 'from_id > 0'
//	reply: 'Weather in {{index .Args 0}}: sunny'
//
// Exactly one of Reply and Call is set.
type Definition struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Pattern     string          `yaml:"pattern"`
	When        string          `yaml:"when,omitempty"`
	Reply       string          `yaml:"reply,omitempty"`
	Call        *CallDefinition `yaml:"call,omitempty"`
}

// CallDefinition issues an arbitrary API method. Param values are templates.
type CallDefinition struct {
	Method string            `yaml:"method"`
	Params map[string]string `yaml:"params,omitempty"`
}

// templateData is what reply and param templates see.
type templateData struct {
	Message *command.Message
	Args    []string
}

// DeclarativeEntry is a command built from a Definition.
type DeclarativeEntry struct {
	def     Definition
	source  string
	pattern *regexp.Regexp
	when    *vm.Program
	reply   *template.Template
	params  map[string]*template.Template
}

// whenEnv is the variable set available to "when" conditions.
func whenEnv(msg *command.Message, args []string) map[string]any {
	env := map[string]any{
		"text":    "",
		"args":    args,
		"from_id": int64(0),
		"peer_id": int64(0),
		"payload": "",
	}
	if msg != nil {
		env["text"] = msg.Text
		env["from_id"] = msg.FromID
		env["peer_id"] = msg.PeerID
		env["payload"] = msg.Payload
	}
	return env
}

// Compile validates def and builds its entry. source names where the definition
// came from and is used in errors.
func Compile(def Definition, source string) (*DeclarativeEntry, error) {
	invalid := func(field, format string, args ...any) error {
		return &heralderrors.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s: %s", source, fmt.Sprintf(format, args...)),
		}
	}

	if strings.TrimSpace(def.Name) == "" {
		return nil, invalid("name", "name is required")
	}
	if def.Pattern == "" {
		return nil, invalid("pattern", "pattern is required")
	}
	if (def.Reply == "") == (def.Call == nil) {
		return nil, &heralderrors.ValidationError{
			Field:   "reply",
			Message: fmt.Sprintf("%s: exactly one of reply or call must be set", source),
			Hint:    "use reply for a text answer or call for any other API method",
		}
	}

	e := &DeclarativeEntry{def: def, source: source}

	var err error
	if e.pattern, err = regexp.Compile(def.Pattern); err != nil {
		return nil, invalid("pattern", "invalid pattern: %v", err)
	}

	if def.When != "" {
		e.when, err = expr.Compile(def.When, expr.Env(whenEnv(nil, nil)), expr.AsBool())
		if err != nil {
			return nil, invalid("when", "invalid condition: %v", err)
		}
	}

	if def.Reply != "" {
		if e.reply, err = template.New(def.Name).Option("missingkey=error").Parse(def.Reply); err != nil {
			return nil, invalid("reply", "invalid template: %v", err)
		}
	}

	if def.Call != nil {
		if def.Call.Method == "" {
			return nil, invalid("call.method", "method is required")
		}
		e.params = make(map[string]*template.Template, len(def.Call.Params))
		for k, v := range def.Call.Params {
			t, err := template.New(k).Option("missingkey=error").Parse(v)
			if err != nil {
				return nil, invalid("call.params."+k, "invalid template: %v", err)
			}
			e.params[k] = t
		}
	}

	return e, nil
}

func (e *DeclarativeEntry) Name() string            { return e.def.Name }
func (e *DeclarativeEntry) Pattern() *regexp.Regexp { return e.pattern }

// Description returns the definition's description.
func (e *DeclarativeEntry) Description() string { return e.def.Description }

// Source returns the file the entry was loaded from.
func (e *DeclarativeEntry) Source() string { return e.source }

// Handle evaluates the condition and then replies or issues the call.
func (e *DeclarativeEntry) Handle(ctx context.Context, msg *command.Message, args ...string) error {
	if e.when != nil {
		out, err := expr.Run(e.when, whenEnv(msg, args))
		if err != nil {
			return fmt.Errorf("evaluate condition: %w", err)
		}
		if ok, _ := out.(bool); !ok {
			return nil
		}
	}

	data := templateData{Message: msg, Args: args}

	if e.reply != nil {
		text, err := render(e.reply, data)
		if err != nil {
			return err
		}
		_, err = msg.Send(ctx, text, nil)
		return err
	}

	caller := msg.Caller()
	if caller == nil {
		return fmt.Errorf("message is not bound to a caller")
	}
	params := make(api.Params, len(e.params))
	for k, t := range e.params {
		v, err := render(t, data)
		if err != nil {
			return err
		}
		params[k] = v
	}
	_, err := caller.Call(ctx, e.def.Call.Method, params)
	return err
}

func render(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
