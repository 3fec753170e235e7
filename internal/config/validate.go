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

package config

import "errors"

var (
	// ErrInvalidLogLevel indicates that the provided log level is not valid.
	ErrInvalidLogLevel = errors.New("invalid log level provided")
	// ErrInvalidRedisHost indicates that the provided Redis host is not valid.
	ErrInvalidRedisHost = errors.New("invalid Redis host provided")
	// ErrInvalidRedisPort indicates that the provided Redis port is not valid.
	ErrInvalidRedisPort = errors.New("invalid Redis port provided")
	// ErrInvalidHTTPBindAddress indicates that the provided HTTP bind address is not valid.
	ErrInvalidHTTPBindAddress = errors.New("invalid HTTP bind address provided")
	// ErrInvalidHTTPPort indicates that the provided HTTP port is not valid.
	ErrInvalidHTTPPort = errors.New("invalid HTTP port provided")
	// ErrInvalidRTPBindAddress indicates that the provided RTP bind address is not valid.
	ErrInvalidRTPBindAddress = errors.New("invalid RTP bind address provided")
	// ErrInvalidRTPPort indicates that the provided RTP port is not valid.
	ErrInvalidRTPPort = errors.New("invalid RTP port provided")
	// ErrInvalidMetricsBindAddress indicates that the provided metrics server bind address is not valid.
	ErrInvalidMetricsBindAddress = errors.New("invalid metrics server bind address provided")
	// ErrInvalidMetricsPort indicates that the provided metrics server port is not valid.
	ErrInvalidMetricsPort = errors.New("invalid metrics server port provided")
	// ErrInvalidPProfBindAddress indicates that the provided PProf server bind address is not valid.
	ErrInvalidPProfBindAddress = errors.New("invalid PProf server bind address provided")
	// ErrInvalidPProfPort indicates that the provided PProf server port is not valid.
	ErrInvalidPProfPort = errors.New("invalid PProf server port provided")
	// ErrInvalidStreamBufferWindowSize indicates that the stream buffer window size is not valid.
	ErrInvalidStreamBufferWindowSize = errors.New("invalid stream buffer window size provided")
	// ErrInvalidStreamBufferMaxMisses indicates that the stream buffer max misses is not valid.
	ErrInvalidStreamBufferMaxMisses = errors.New("invalid stream buffer max misses provided")
	// ErrInvalidFrameBufferMaxStages indicates that the frame buffer max stages is not valid.
	ErrInvalidFrameBufferMaxStages = errors.New("invalid frame buffer max stages provided")
	// ErrInvalidAsyncTimeout indicates that the dispatcher async request timeout is not valid.
	ErrInvalidAsyncTimeout = errors.New("invalid async request timeout provided")
	// ErrInvalidHTTPMessageLimits indicates that one of the HTTP message helper's configurable limits is not valid.
	ErrInvalidHTTPMessageLimits = errors.New("invalid HTTP message helper limits provided")
)

// Validate validates the Redis configuration.
func (r Redis) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.Host == "" {
		return ErrInvalidRedisHost
	}
	if r.Port <= 0 || r.Port > 65535 {
		return ErrInvalidRedisPort
	}
	return nil
}

// Validate validates the HTTP server configuration.
func (h HTTP) Validate() error {
	if h.Bind == "" {
		return ErrInvalidHTTPBindAddress
	}
	if h.Port <= 0 || h.Port > 65535 {
		return ErrInvalidHTTPPort
	}
	return nil
}

// Validate validates the RTP endpoint configuration.
func (r RTP) Validate() error {
	if r.Bind == "" {
		return ErrInvalidRTPBindAddress
	}
	if r.Port <= 0 || r.Port > 65535 {
		return ErrInvalidRTPPort
	}
	return nil
}

// Validate validates the metrics server configuration.
func (m Metrics) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.Bind == "" {
		return ErrInvalidMetricsBindAddress
	}
	if m.Port <= 0 || m.Port > 65535 {
		return ErrInvalidMetricsPort
	}
	return nil
}

// Validate validates the pprof server configuration.
func (p PProf) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.Bind == "" {
		return ErrInvalidPProfBindAddress
	}
	if p.Port <= 0 || p.Port > 65535 {
		return ErrInvalidPProfPort
	}
	return nil
}

// Validate validates the sliding-window stream buffer defaults.
func (s StreamBuffer) Validate() error {
	if s.WindowSize == 0 {
		return ErrInvalidStreamBufferWindowSize
	}
	if s.MaxMisses == 0 {
		return ErrInvalidStreamBufferMaxMisses
	}
	return nil
}

// Validate validates the multi-stream frame buffer defaults.
func (f FrameBuffer) Validate() error {
	if f.MaxStages == 0 {
		return ErrInvalidFrameBufferMaxStages
	}
	return nil
}

// Validate validates the dispatcher configuration.
func (d Dispatcher) Validate() error {
	if d.AsyncTimeout <= 0 {
		return ErrInvalidAsyncTimeout
	}
	return nil
}

// Validate validates the HTTP message helper's configurable limits.
func (h HTTPMessageLimits) Validate() error {
	if h.MaxHeaderLine == 0 || h.MaxMethodLength == 0 || h.MaxHeaders == 0 ||
		h.MaxChunkExtensions == 0 || h.BufferSize == 0 || h.RecacheThreshold == 0 {
		return ErrInvalidHTTPMessageLimits
	}
	return nil
}

// Validate validates the top level configuration, cascading into every sub-section.
func (c Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return ErrInvalidLogLevel
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if err := c.RTP.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}
	if err := c.StreamBuffer.Validate(); err != nil {
		return err
	}
	if err := c.FrameBuffer.Validate(); err != nil {
		return err
	}
	if err := c.Dispatcher.Validate(); err != nil {
		return err
	}
	if err := c.HTTPMessage.Validate(); err != nil {
		return err
	}
	return nil
}
