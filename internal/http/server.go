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

// Package http wires the gin engine that fronts the voice-loop API
// client protocol: a single WebSocket upgrade route behind CORS, rate
// limiting, and optional tracing/pprof.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/openvocs/ov-core/internal/config"
	"github.com/openvocs/ov-core/internal/http/middleware"
	"github.com/openvocs/ov-core/internal/http/websocket"
	"github.com/openvocs/ov-core/internal/vocsapi"
)

const (
	defTimeout     = 10 * time.Second
	rateLimitRate  = time.Second
	rateLimitLimit = 10
	shutdownWait   = 5 * time.Second
)

// ErrClosed is returned by Start once the server has shut down cleanly.
var ErrClosed = errors.New("server closed")

// ErrFailed is returned by Start when ListenAndServe fails for any
// reason other than a clean shutdown.
var ErrFailed = errors.New("failed to start server")

// Server is the WebSocket/HTTP listener the voice-loop API client
// protocol is served over.
type Server struct {
	*http.Server
	shutdownChannel chan bool
}

// MakeServer builds the listener bound to the configured address, with
// the router wired to the given dispatcher.
func MakeServer(cfg *config.Config, dispatcher *vocsapi.Dispatcher) Server {
	r := CreateRouter(cfg, dispatcher)

	slog.Info("HTTP Server listening", "address", cfg.HTTP.Bind, "port", cfg.HTTP.Port)
	s := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Bind, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  defTimeout,
		WriteTimeout: defTimeout,
	}
	s.SetKeepAlivesEnabled(false)

	return Server{
		Server:          s,
		shutdownChannel: make(chan bool),
	}
}

func addMiddleware(r *gin.Engine, cfg *config.Config) {
	if cfg.PProf.Enabled {
		pprof.Register(r)
	}

	if cfg.Metrics.OTLPEndpoint != "" {
		r.Use(otelgin.Middleware("vocsapi"))
		r.Use(middleware.TracingProvider(cfg))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = true
	corsConfig.AllowOrigins = cfg.HTTP.CORSHosts
	r.Use(cors.New(corsConfig))
}

// CreateRouter assembles the gin engine: logging, recovery, trusted
// proxies, CORS/tracing/pprof middleware, rate limiting, and the
// dispatcher's WebSocket route.
func CreateRouter(cfg *config.Config, dispatcher *vocsapi.Dispatcher) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	if err := r.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		slog.Error("Failed setting trusted proxies", "error", err)
	}

	addMiddleware(r, cfg)

	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  rateLimitRate,
		Limit: rateLimitLimit,
	})
	rateLimitMW := ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			c.String(http.StatusTooManyRequests, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
	r.Use(rateLimitMW)

	websocket.CreateHandler(cfg, dispatcher).ApplyRoutes(r)

	return r
}

// Stop shuts the server down, waiting up to shutdownWait for in-flight
// connections to drain.
func (s *Server) Stop() {
	slog.Info("Stopping HTTP Server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		slog.Error("Failed to shutdown HTTP server", "error", err)
	}
	<-s.shutdownChannel
}

// Start blocks until the server stops, returning ErrClosed on a clean
// shutdown or ErrFailed on any other listen error.
func (s *Server) Start() error {
	g := new(errgroup.Group)
	g.Go(func() error {
		err := s.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				s.shutdownChannel <- true
				return ErrClosed
			default:
				slog.Error("Failed to start HTTP server", "error", err)
				return ErrFailed
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return nil
}
