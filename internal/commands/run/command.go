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

// Package run implements "herald run", the long-running bot process.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/herald/internal/bot"
	"github.com/tombee/herald/internal/commands/shared"
	"github.com/tombee/herald/internal/config"
	"github.com/tombee/herald/internal/events"
	"github.com/tombee/herald/internal/lifecycle"
	"github.com/tombee/herald/internal/log"
	"github.com/tombee/herald/internal/plugins"
	"github.com/tombee/herald/internal/tracing"
)

// DefaultShutdownTimeout is how long Stop may take before the session is
// cancelled outright.
const DefaultShutdownTimeout = 30 * time.Second

type options struct {
	groupID         int64
	commandsDir     string
	metricsAddr     string
	noWatch         bool
	pidFile         string
	shutdownTimeout time.Duration
}

// NewCommand creates the run command.
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot",
		Long: `Run the bot: acquire a long-poll session for the community, dispatch
inbound messages to commands and keep running until interrupted.

Commands come from the built-ins and from YAML files in the commands
directory, which is watched for changes unless --no-watch is given.

The first SIGINT or SIGTERM stops the session after the poll in flight
settles; a second one exits immediately.

Examples:
  herald run
  herald run --group-id 123456 --commands-dir ./commands
  herald run --metrics-addr 127.0.0.1:9090
  herald run --pid-file /run/herald/herald.pid`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)

			if opts.pidFile != "" {
				pid, err := lifecycle.Acquire(opts.pidFile)
				if err != nil {
					return err
				}
				defer pid.Release()
			}

			sigCh := make(chan os.Signal, 2)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			return serve(cmd.Context(), cfg, shared.NewLogger(cfg), opts.shutdownTimeout, sigCh)
		},
	}

	cmd.Flags().Int64Var(&opts.groupID, "group-id", 0, "Community id to poll (overrides longpoll.group_id)")
	cmd.Flags().StringVar(&opts.commandsDir, "commands-dir", "", "Directory of YAML command files (overrides commands.dir)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Do not reload command files on change")
	cmd.Flags().StringVar(&opts.pidFile, "pid-file", "", "Write and lock a PID file so only one process polls the community")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", DefaultShutdownTimeout, "Grace period for stopping the session")

	return cmd
}

func (o options) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("group-id") {
		cfg.LongPoll.GroupID = o.groupID
	}
	if o.commandsDir != "" {
		cfg.Commands.Dir = o.commandsDir
	}
	if o.metricsAddr != "" {
		cfg.Metrics.Addr = o.metricsAddr
	}
	if o.noWatch {
		cfg.Commands.Watch = false
	}
}

// serve runs the bot until the session ends or sigCh delivers.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, shutdownTimeout time.Duration, sigCh <-chan os.Signal) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tcfg := cfg.Tracing
	tcfg.ServiceVersion, _, _ = shared.GetVersion()
	provider, err := tracing.NewProvider(ctx, tcfg)
	if err != nil {
		return shared.NewConfigError("failed to initialise telemetry", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", log.Error(err))
		}
	}()

	b, err := shared.NewBot(ctx, cfg, true, logger, provider.MeterProvider())
	if err != nil {
		return err
	}

	if err := registerCommands(ctx, b, cfg, logger); err != nil {
		return err
	}

	if cfg.NATS.URL != "" {
		detach, closeConn, err := attachNATS(b, cfg.NATS, logger)
		if err != nil {
			return err
		}
		defer closeConn()
		defer detach()
	}

	if cfg.Metrics.Addr != "" {
		srv, err := startMetricsServer(cfg.Metrics.Addr, provider, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	task, err := b.Start(ctx, cfg.LongPoll.GroupID)
	if err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	select {
	case <-task.Done():
		return sessionResult(task.Wait())
	case sig := <-sigCh:
		logger.Info("received signal, stopping", slog.String("signal", sig.String()))
	}

	b.Stop()
	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()

	select {
	case <-task.Done():
	case sig := <-sigCh:
		logger.Warn("received second signal, exiting", slog.String("signal", sig.String()))
		cancel()
		<-task.Done()
	case <-timer.C:
		logger.Warn("shutdown timeout elapsed, cancelling session", slog.Duration("timeout", shutdownTimeout))
		cancel()
		<-task.Done()
	}
	logger.Info("bot stopped")
	return nil
}

func sessionResult(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("long-poll session failed: %w", err)
}

// registerCommands installs the built-ins, then file commands, then starts
// the watcher.
func registerCommands(ctx context.Context, b *bot.Bot, cfg *config.Config, logger *slog.Logger) error {
	reg := b.Commands()

	if cfg.Commands.Builtins {
		for _, e := range plugins.Builtins() {
			if err := reg.Register(e); err != nil {
				return fmt.Errorf("failed to register built-in command: %w", err)
			}
		}
	}

	if cfg.Commands.Dir == "" {
		return nil
	}

	loader := plugins.NewLoader(cfg.Commands.Dir, logger)
	n, err := loader.LoadInto(reg)
	if err != nil {
		// Broken files are reported and skipped.
		logger.Warn("some command files failed to load", log.Error(err))
	}
	logger.Info("commands loaded", slog.Int("count", n), slog.String("dir", cfg.Commands.Dir))

	if !cfg.Commands.Watch {
		return nil
	}
	w, err := plugins.NewWatcher(loader, reg, plugins.WatcherConfig{Debounce: cfg.Commands.Debounce, Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to watch commands directory: %w", err)
	}
	go func() {
		_ = w.Run(ctx)
	}()
	return nil
}

func attachNATS(b *bot.Bot, cfg config.NATSConfig, logger *slog.Logger) (detach func(), closeConn func(), err error) {
	nc, err := events.ConnectNATS(cfg.URL, "herald")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	fw := events.NewNATSForwarder(nc, events.ForwarderConfig{
		Prefix: cfg.Prefix,
		Types:  cfg.Types,
		Logger: logger,
	})
	logger.Info("forwarding updates to NATS", slog.String("prefix", fw.Subject("")))
	return fw.Attach(b.Events()), func() { _ = nc.Drain() }, nil
}

func startMetricsServer(addr string, provider *tracing.Provider, logger *slog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", provider.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", log.Error(err))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))
	return srv, nil
}
