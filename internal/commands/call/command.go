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

// Package call implements "herald call", a one-shot API method invocation.
package call

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/herald/internal/api"
	"github.com/tombee/herald/internal/commands/shared"
	"github.com/tombee/herald/internal/jq"
)

// NewCommand creates the call command.
func NewCommand() *cobra.Command {
	var (
		params []string
		filter string
		raw    bool
	)

	cmd := &cobra.Command{
		Use:   "call <method>",
		Short: "Call an API method and print the response",
		Long: `Call an API method with the configured credentials and print the
"response" member of the answer as JSON.

Parameters are given as key=value pairs. A jq expression may be applied
to the response; with --raw, string results are printed without quotes.

Examples:
  herald call users.get --param user_ids=1
  herald call groups.getById --jq '.[0].name' --raw
  herald call messages.send --param peer_id=123 --param message=hi --param random_id=0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := args[0]
			p, err := parseParams(params)
			if err != nil {
				return shared.NewUsageError("invalid --param", err)
			}

			var f *jq.Filter
			if filter != "" {
				f, err = jq.Compile(filter, jq.DefaultTimeout, jq.DefaultMaxInputSize)
				if err != nil {
					return shared.NewUsageError("invalid --jq expression", err)
				}
			}

			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			logger := shared.NewLogger(cfg)

			b, err := shared.NewBot(cmd.Context(), cfg, false, logger, nil)
			if err != nil {
				return err
			}

			ctx := api.WithOrigin(cmd.Context(), "cli:call")
			result, err := b.Call(ctx, method, p)
			if err != nil {
				return shared.NewCallError(fmt.Sprintf("%s failed", method), err)
			}

			if f == nil {
				return printValue(cmd, result, raw)
			}
			values, err := f.Run(ctx, result)
			if err != nil {
				return fmt.Errorf("failed to apply --jq: %w", err)
			}
			for _, v := range values {
				if err := printValue(cmd, v, raw); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Method parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&filter, "jq", "", "jq expression applied to the response")
	cmd.Flags().BoolVarP(&raw, "raw", "r", false, "Print string results without JSON quoting")

	return cmd
}

// parseParams turns key=value pairs into Params. A later key wins.
func parseParams(pairs []string) (api.Params, error) {
	p := api.Params{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%q is not key=value", pair)
		}
		p[key] = value
	}
	return p, nil
}

func printValue(cmd *cobra.Command, v any, raw bool) error {
	w := cmd.OutOrStdout()
	if rm, ok := v.(json.RawMessage); ok {
		var decoded any
		if err := json.Unmarshal(rm, &decoded); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		v = decoded
	}

	if s, ok := v.(string); ok && raw {
		fmt.Fprintln(w, s)
		return nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}
