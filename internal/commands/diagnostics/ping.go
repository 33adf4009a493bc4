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

// Package diagnostics implements "herald ping".
package diagnostics

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/herald/internal/api"
	"github.com/tombee/herald/internal/bot"
	"github.com/tombee/herald/internal/commands/shared"
	"github.com/tombee/herald/internal/config"
	"github.com/tombee/herald/internal/log"
)

// Check steps, in the order they run.
const (
	StepConfigured    = "configured"
	StepAuthenticated = "authenticated"
	StepPolling       = "polling"
)

// PingResult contains the ping health check result
type PingResult struct {
	shared.JSONResponse
	GroupID       int64  `json:"group_id,omitempty"`
	Configured    bool   `json:"configured"`
	Authenticated bool   `json:"authenticated"`
	Polling       bool   `json:"polling"`
	Healthy       bool   `json:"healthy"`
	LatencyMS     int64  `json:"latency_ms,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorStep     string `json:"error_step,omitempty"`
}

// NewPingCommand creates the ping command
func NewPingCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check credentials and API connectivity",
		Long: `Check that herald can talk to the API with the configured token.

This performs a lightweight three-step check:
  1. Configured    - configuration loads and the token resolves
  2. Authenticated - an API call with the token succeeds
  3. Polling       - a long-poll server can be acquired (needs a group id)

Exit codes:
  0 - all checks passed
  1 - a check failed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			result := runPing(ctx)
			if shared.GetJSON() {
				if err := shared.EmitJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else if !shared.GetQuiet() {
				printPing(cmd.OutOrStdout(), result)
			}
			if !result.Healthy {
				return &shared.ExitError{Code: shared.ExitFailed, Message: fmt.Sprintf("ping failed at %s: %s", result.ErrorStep, result.Error)}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall time limit")
	return cmd
}

func runPing(ctx context.Context) PingResult {
	result := PingResult{JSONResponse: shared.NewResponse("ping", false)}
	fail := func(step string, err error) PingResult {
		result.ErrorStep = step
		result.Error = err.Error()
		return result
	}

	cfg, err := shared.LoadConfig()
	if err != nil {
		return fail(StepConfigured, err)
	}
	b, err := shared.NewBot(ctx, cfg, false, log.Discard(), nil)
	if err != nil {
		return fail(StepConfigured, err)
	}
	result.Configured = true
	result.GroupID = cfg.LongPoll.GroupID

	start := time.Now()
	if err := checkAuth(ctx, b, cfg); err != nil {
		return fail(StepAuthenticated, err)
	}
	result.Authenticated = true
	result.LatencyMS = time.Since(start).Milliseconds()

	if cfg.LongPoll.GroupID != 0 {
		if _, err := b.Client().GetLongPollServer(api.WithOrigin(ctx, "cli:ping"), cfg.LongPoll.GroupID); err != nil {
			return fail(StepPolling, err)
		}
		result.Polling = true
	}

	result.Healthy = true
	result.Success = true
	return result
}

// checkAuth issues a cheap call that any community token may make.
func checkAuth(ctx context.Context, b *bot.Bot, cfg *config.Config) error {
	params := api.Params{}
	if cfg.LongPoll.GroupID != 0 {
		params["group_id"] = cfg.LongPoll.GroupID
	}
	_, err := b.Call(api.WithOrigin(ctx, "cli:ping"), "groups.getById", params)
	return err
}

func printPing(out io.Writer, result PingResult) {
	fmt.Fprintf(out, "  Configured:    %s\n", checkMark(result.Configured))
	fmt.Fprintf(out, "  Authenticated: %s\n", checkMark(result.Authenticated))
	if result.GroupID != 0 {
		fmt.Fprintf(out, "  Polling:       %s\n", checkMark(result.Polling))
	}
	if result.LatencyMS > 0 {
		fmt.Fprintf(out, "  Latency:       %dms\n", result.LatencyMS)
	}
	fmt.Fprintln(out)

	if result.Healthy {
		fmt.Fprintln(out, "Status: "+shared.OKStyle.Render("Healthy"))
		return
	}
	fmt.Fprintln(out, "Status: "+shared.ErrorStyle.Render("Failed"))
}

func checkMark(ok bool) string {
	if ok {
		return shared.OKStyle.Render("✓")
	}
	return shared.ErrorStyle.Render("✗")
}
