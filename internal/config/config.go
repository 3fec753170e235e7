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

// Package config declares the application configuration, loaded via
// configulator from environment variables, flags, and config files.
package config

import "time"

// Config is the root application configuration.
type Config struct {
	LogLevel LogLevel `name:"log-level" description:"Logging level (debug, info, warn, error)" default:"info"`

	HTTP         HTTP         `name:"http"`
	RTP          RTP          `name:"rtp"`
	Metrics      Metrics      `name:"metrics"`
	PProf        PProf        `name:"pprof"`
	Redis        Redis        `name:"redis"`
	StreamBuffer StreamBuffer `name:"stream-buffer"`
	FrameBuffer  FrameBuffer  `name:"frame-buffer"`
	Dispatcher   Dispatcher   `name:"dispatcher"`
	HTTPMessage  HTTPMessageLimits `name:"http-message"`
}

// HTTP configures the client event protocol's WebSocket/HTTP listener.
type HTTP struct {
	Bind           string   `name:"bind" description:"HTTP server bind address" default:"0.0.0.0"`
	Port           int      `name:"port" description:"HTTP server port" default:"8080"`
	CORSHosts      []string `name:"cors-hosts" description:"Allowed CORS origins"`
	TrustedProxies []string `name:"trusted-proxies" description:"Trusted reverse-proxy CIDRs"`
}

// RTP configures the UDP endpoint RTP frames arrive on.
type RTP struct {
	Bind string `name:"bind" description:"RTP UDP listener bind address" default:"0.0.0.0"`
	Port int    `name:"port" description:"RTP UDP listener port" default:"12000"`
}

// Metrics configures the Prometheus metrics server and OTLP tracing export.
type Metrics struct {
	Enabled      bool   `name:"enabled" description:"Enable the metrics server" default:"true"`
	Bind         string `name:"bind" description:"Metrics server bind address" default:"127.0.0.1"`
	Port         int    `name:"port" description:"Metrics server port" default:"9100"`
	OTLPEndpoint string `name:"otlp-endpoint" description:"OTLP/gRPC trace collector endpoint; empty disables tracing"`
}

// PProf configures the optional pprof debug server.
type PProf struct {
	Enabled        bool     `name:"enabled" description:"Enable the pprof server" default:"false"`
	Bind           string   `name:"bind" description:"PProf server bind address" default:"127.0.0.1"`
	Port           int      `name:"port" description:"PProf server port" default:"6060"`
	TrustedProxies []string `name:"trusted-proxies" description:"Trusted reverse-proxy CIDRs"`
}

// Redis configures the optional Redis-backed pubsub/kv implementations used
// for multi-process deployments; when disabled, in-memory implementations
// are used instead.
type Redis struct {
	Enabled  bool   `name:"enabled" description:"Use Redis for pubsub/kv instead of in-memory" default:"false"`
	Host     string `name:"host" description:"Redis host" default:"localhost"`
	Port     int    `name:"port" description:"Redis port" default:"6379"`
	Password string `name:"password" description:"Redis password"`
}

// StreamBuffer configures defaults for every single-SSRC sliding-window
// stream buffer constructed by the RTP ingest listener.
type StreamBuffer struct {
	WindowSize uint16 `name:"window-size" description:"Sliding window width in frame slots" default:"32"`
	MaxMisses  uint   `name:"max-misses" description:"Consecutive out-of-range puts before a stream reset" default:"5"`
}

// FrameBuffer configures defaults for every multi-stream ordering buffer.
type FrameBuffer struct {
	MaxStages uint `name:"max-stages" description:"Maximum number of buffering stages" default:"2"`
}

// Dispatcher configures the API client dispatcher's async request table.
type Dispatcher struct {
	AsyncTimeout time.Duration `name:"async-timeout" description:"Timeout for async collaborator requests" default:"5s"`
}

// HTTPMessageLimits configures the streaming HTTP message helper.
type HTTPMessageLimits struct {
	MaxHeaderLine      uint `name:"max-header-line" description:"Maximum bytes of a single header line" default:"1000"`
	MaxMethodLength    uint `name:"max-method-length" description:"Maximum bytes of a request method token" default:"7"`
	MaxHeaders         uint `name:"max-headers" description:"Maximum number of headers per message" default:"100"`
	MaxChunkExtensions uint `name:"max-chunk-extensions" description:"Maximum chunk-extension parameters per chunk" default:"10"`
	BufferSize         uint `name:"buffer-size" description:"Default accumulation buffer size in bytes" default:"4096"`
	RecacheThreshold   uint `name:"recache-threshold" description:"Buffer size above which it is not recycled" default:"40960"`
}
