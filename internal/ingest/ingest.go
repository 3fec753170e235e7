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

// Package ingest wires the RTP codec and the two ordering buffers to a UDP
// socket: packets decode into frames, land in a per-SSRC sliding-window
// buffer, and drain on a tick into the multi-stream frame buffer, which
// hands synchronised batches to a Sink. The mixer that would consume those
// batches is, like the ICE stack and SIP gateway, an external collaborator
// left unspecified.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/openvocs/ov-core/internal/config"
	"github.com/openvocs/ov-core/internal/framebuffer"
	"github.com/openvocs/ov-core/internal/metrics"
	"github.com/openvocs/ov-core/internal/rtp"
	"github.com/openvocs/ov-core/internal/streambuffer"
)

const (
	maxDatagramSize = 65535
	readDeadline    = time.Second
	drainInterval   = 20 * time.Millisecond
)

// Sink receives the synchronised, one-frame-per-stream batches the frame
// buffer emits once per drain tick.
type Sink interface {
	DeliverFrames(frames []*rtp.Frame)
}

// Listener reads RTP packets from a UDP socket and feeds them through the
// ordering pipeline until Close or its context is cancelled.
type Listener struct {
	conn *net.UDPConn
	pool *rtp.FramePool

	streams    *xsync.Map[uint32, *streambuffer.Buffer]
	windowSize uint16
	maxMisses  uint

	frames *framebuffer.Buffer
	sink   Sink

	metrics *metrics.Metrics
}

// NewListener binds the configured RTP UDP endpoint.
func NewListener(cfg *config.Config, pool *rtp.FramePool, sink Sink, m *metrics.Metrics) (*Listener, error) {
	addr := fmt.Sprintf("%s:%d", cfg.RTP.Bind, cfg.RTP.Port)
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve RTP listen address %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind RTP listener on %q: %w", addr, err)
	}
	return &Listener{
		conn:       conn,
		pool:       pool,
		streams:    xsync.NewMap[uint32, *streambuffer.Buffer](),
		windowSize: cfg.StreamBuffer.WindowSize,
		maxMisses:  cfg.StreamBuffer.MaxMisses,
		frames:     framebuffer.New(cfg.FrameBuffer.MaxStages),
		sink:       sink,
		metrics:    m,
	}, nil
}

// Run reads datagrams until ctx is cancelled or the socket is closed,
// decoding each into a frame and admitting it into its SSRC's stream
// buffer. Decode and admission failures are local, non-fatal errors: they
// are logged at debug and counted, never propagated.
func (l *Listener) Run(ctx context.Context) error {
	go l.drainLoop(ctx)

	buf := make([]byte, maxDatagramSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := l.conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return fmt.Errorf("failed to set RTP read deadline: %w", err)
		}
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read RTP datagram: %w", err)
		}

		l.ingest(buf[:n])
	}
}

func (l *Listener) ingest(data []byte) {
	frame := l.pool.Get()
	decoded, err := rtp.Decode(data)
	if err != nil {
		l.pool.Put(frame)
		l.dropFrame("decode_error")
		slog.Debug("failed to decode RTP frame", "error", err)
		return
	}

	sb := l.streamBufferFor(decoded.SSRC)
	if !sb.Put(decoded) {
		l.dropFrame("rejected")
		slog.Debug("stream buffer rejected RTP frame", "ssrc", decoded.SSRC, "seq", decoded.SequenceNumber)
		return
	}
	if l.metrics != nil {
		l.metrics.RecordFrameDecoded(strconv.Itoa(int(decoded.PayloadType)))
	}
}

func (l *Listener) dropFrame(reason string) {
	if l.metrics != nil {
		l.metrics.RecordFrameDropped(reason)
	}
}

func (l *Listener) streamBufferFor(ssrc uint32) *streambuffer.Buffer {
	candidate := streambuffer.New(l.windowSize, l.maxMisses)
	sb, loaded := l.streams.LoadOrStore(ssrc, candidate)
	if !loaded && l.metrics != nil {
		l.metrics.SetStreamBuffersActive(float64(l.streams.Size()))
	}
	return sb
}

// drainLoop periodically drains every active stream buffer's ready head
// into the frame buffer, then hands any fully synchronised stage to the
// sink.
func (l *Listener) drainLoop(ctx context.Context) {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.drainOnce()
		}
	}
}

func (l *Listener) drainOnce() {
	l.streams.Range(func(_ uint32, sb *streambuffer.Buffer) bool {
		for _, f := range sb.Get(1) {
			l.frames.Insert(f)
		}
		return true
	})

	if l.metrics != nil {
		l.metrics.SetFrameBufferStagesInUse(float64(l.frames.Stats()))
	}

	batch := l.frames.GetCurrentFrames()
	if len(batch) == 0 {
		return
	}
	if l.sink != nil {
		l.sink.DeliverFrames(batch)
	}
	for _, f := range batch {
		l.pool.Put(f)
	}
}

// Close releases the UDP socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}
