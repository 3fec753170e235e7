// SPDX-License-Identifier: AGPL-3.0-or-later
// ov-core - openvocs voice-loop backend core
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// The source code is available at <https://github.com/openvocs/ov-core>

// Package cmd wires the ovvocsd binary's single command: load config, stand
// up the dispatcher and its collaborators, start the RTP and WebSocket
// listeners, and shut everything down cleanly on signal.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/USA-RedDragon/configulator"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/ztrue/shutdown"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/openvocs/ov-core/internal/config"
	ovhttp "github.com/openvocs/ov-core/internal/http"
	"github.com/openvocs/ov-core/internal/ingest"
	"github.com/openvocs/ov-core/internal/kv"
	"github.com/openvocs/ov-core/internal/loop"
	"github.com/openvocs/ov-core/internal/metrics"
	"github.com/openvocs/ov-core/internal/pprof"
	"github.com/openvocs/ov-core/internal/pubsub"
	"github.com/openvocs/ov-core/internal/rtp"
	"github.com/openvocs/ov-core/internal/vocsapi"
)

const frameRecacheThreshold = 1500

// NewCommand builds the root cobra command for the ovvocsd binary.
func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ovvocsd",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	fmt.Printf("ovvocsd - %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	c, err := configulator.FromContext[config.Config](ctx)
	if err != nil {
		return fmt.Errorf("failed to get config from context: %w", err)
	}
	cfg, err := c.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	setupLogger(cfg)

	var cleanup func(context.Context) error
	if cfg.Metrics.OTLPEndpoint != "" {
		cleanup = initTracer(cfg)
		defer func() {
			if err := cleanup(ctx); err != nil {
				slog.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	go func() {
		if err := metrics.CreateMetricsServer(cfg); err != nil {
			slog.Error("Failed to start metrics server", "error", err)
		}
	}()
	go pprof.CreatePProfServer(cfg)

	kvStore, err := kv.MakeKV(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to key-value store: %w", err)
	}

	pubsubClient, err := pubsub.MakePubSub(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to pubsub: %w", err)
	}

	m := metrics.NewMetrics()

	dispatcher := vocsapi.New(vocsapi.Config{
		AsyncTimeout: cfg.Dispatcher.AsyncTimeout,
		Loops:        loop.NewSet(),
		Broadcast:    vocsapi.NewBroadcastRegistry(pubsubClient),
		Keysets:      vocsapi.NewKVKeysetStore(kvStore),
		UserData:     vocsapi.NewKVUserDataStore(kvStore),
		Metrics:      m,
	})

	pool := rtp.NewFramePool(frameRecacheThreshold)
	rtpListener, err := ingest.NewListener(cfg, pool, ingest.LogSink{}, m)
	if err != nil {
		return fmt.Errorf("failed to start RTP listener: %w", err)
	}
	ingestCtx, cancelIngest := context.WithCancel(ctx)
	go func() {
		if err := rtpListener.Run(ingestCtx); err != nil && ingestCtx.Err() == nil {
			slog.Error("RTP listener stopped", "error", err)
		}
	}()

	httpServer := ovhttp.MakeServer(cfg, dispatcher)
	go func() {
		if err := httpServer.Start(); err != nil && err != ovhttp.ErrClosed {
			slog.Error("HTTP server stopped", "error", err)
		}
	}()

	stop := func(sig os.Signal) {
		slog.Error("Shutting down due to signal", "signal", sig)
		wg := new(sync.WaitGroup)

		wg.Add(1)
		go func() {
			defer wg.Done()
			cancelIngest()
			if err := rtpListener.Close(); err != nil {
				slog.Error("Failed to close RTP listener", "error", err)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			httpServer.Stop()
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if cfg.Metrics.OTLPEndpoint != "" {
				const timeout = 5 * time.Second
				tctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				if err := cleanup(tctx); err != nil {
					slog.Error("Failed to shutdown tracer", "error", err)
				}
			}
		}()

		const timeout = 10 * time.Second
		done := make(chan struct{})
		go func() {
			defer close(done)
			wg.Wait()
		}()
		select {
		case <-done:
			if err := pubsubClient.Close(); err != nil {
				slog.Error("Failed to close pubsub", "error", err)
			}
			if err := kvStore.Close(); err != nil {
				slog.Error("Failed to close key-value store", "error", err)
			}
			slog.Info("Shutdown safely completed")
			os.Exit(0)
		case <-time.After(timeout):
			slog.Error("Shutdown timed out")
			os.Exit(1)
		}
	}
	defer stop(syscall.SIGINT)

	shutdown.AddWithParam(stop)
	shutdown.Listen(syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	return nil
}

// setupLogger configures the structured logger.
func setupLogger(cfg *config.Config) {
	var logger *slog.Logger
	switch cfg.LogLevel {
	case config.LogLevelDebug:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	case config.LogLevelInfo:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	case config.LogLevelWarn:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	case config.LogLevelError:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelError}))
	default:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	}
	slog.SetDefault(logger)
}

func initTracer(cfg *config.Config) func(context.Context) error {
	exporter, err := otlptrace.New(
		context.Background(),
		otlptracegrpc.NewClient(
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(cfg.Metrics.OTLPEndpoint),
		),
	)
	if err != nil {
		slog.Error("Failed tracing app", "error", err)
	}
	resources, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", "ov-core"),
			attribute.String("library.language", "go"),
		),
	)
	if err != nil {
		slog.Error("Could not set resources", "error", err)
	}

	otel.SetTracerProvider(
		sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resources),
		),
	)
	return exporter.Shutdown
}
