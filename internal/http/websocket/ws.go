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

// Package websocket carries the voice-loop API client protocol over a
// gorilla/websocket connection: one read loop per socket decoding JSON
// events and handing them to the dispatcher.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/openvocs/ov-core/internal/config"
	"github.com/openvocs/ov-core/internal/httpmsg"
	"github.com/openvocs/ov-core/internal/loop"
	"github.com/openvocs/ov-core/internal/vocsapi"
)

const bufferSize = 1024

// connWriter serializes writes (and the eventual close) to one
// gorilla/websocket connection. A connection's own read loop writes its
// ordinary responses; an async request's timeout can push a TIMEOUT
// reply from an unrelated goroutine at any time, and gorilla/websocket
// connections are not safe for concurrent writers, so both paths share
// this mutex.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *connWriter) write(body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, body)
}

func (c *connWriter) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// Handler upgrades incoming HTTP requests to WebSocket connections and
// pumps each connection's JSON events through the dispatcher. It assigns
// every accepted connection a fresh socket ID, so the dispatcher's
// per-socket state (session, loop membership) never collides across
// connections even after a reconnect. Handler also implements
// vocsapi.Transport, giving the dispatcher a way to push an async
// timeout's reply and close the socket from outside the read loop.
type Handler struct {
	wsUpgrader websocket.Upgrader
	dispatcher *vocsapi.Dispatcher
	nextSocket atomic.Uint64
	conns      *xsync.Map[loop.SocketID, *connWriter]
	limits     httpmsg.Limits
}

// httpmsgLimits converts the configured HTTP message limits into the
// form the streaming parser takes, falling back to its documented
// defaults when the configuration was never populated (e.g. a Config
// built directly in a test rather than through configulator).
func httpmsgLimits(cfg config.HTTPMessageLimits) httpmsg.Limits {
	if cfg.MaxHeaderLine == 0 {
		return httpmsg.DefaultLimits()
	}
	return httpmsg.Limits{
		MaxHeaderLine:      int(cfg.MaxHeaderLine),
		MaxMethodLength:    int(cfg.MaxMethodLength),
		MaxHeaders:         int(cfg.MaxHeaders),
		MaxChunkExtensions: int(cfg.MaxChunkExtensions),
		BufferSize:         int(cfg.BufferSize),
		RecacheThreshold:   int(cfg.RecacheThreshold),
	}
}

// CreateHandler builds a WebSocket handler bound to a dispatcher and
// wires itself into that dispatcher as its Transport, so an async
// request's timeout can reach the socket it was made on. The upgrader
// configuration and CORS origin check are carried over from the
// teacher's handler, adapted to take the configuration explicitly rather
// than through a global singleton.
func CreateHandler(cfg *config.Config, dispatcher *vocsapi.Dispatcher) *Handler {
	h := &Handler{
		dispatcher: dispatcher,
		conns:      xsync.NewMap[loop.SocketID, *connWriter](),
		limits:     httpmsgLimits(cfg.HTTPMessage),
		wsUpgrader: websocket.Upgrader{
			HandshakeTimeout: 0,
			ReadBufferSize:   bufferSize,
			WriteBufferSize:  bufferSize,
			WriteBufferPool:  nil,
			Subprotocols:     []string{},
			Error: func(_ http.ResponseWriter, _ *http.Request, _ int, _ error) {
			},
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r.Header.Get("Origin"), cfg.HTTP.CORSHosts)
			},
			EnableCompression: true,
		},
	}
	dispatcher.SetTransport(h)
	return h
}

// Push marshals and writes a response to the socket's connection,
// implementing vocsapi.Transport for the dispatcher's async timeout path.
func (h *Handler) Push(socket loop.SocketID, resp vocsapi.Response) error {
	cw, ok := h.conns.Load(socket)
	if !ok {
		return fmt.Errorf("websocket: no open connection for socket %d", socket)
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("websocket: failed to marshal push response: %w", err)
	}
	return cw.write(body)
}

// Close closes the socket's connection, which unblocks its read loop and
// triggers the usual disconnect cleanup. Closing an already-gone socket
// is a no-op.
func (h *Handler) Close(socket loop.SocketID) {
	cw, ok := h.conns.Load(socket)
	if !ok {
		return
	}
	if err := cw.close(); err != nil {
		slog.Error("Failed to close websocket after async timeout", "error", err)
	}
}

func originAllowed(origin string, hosts []string) bool {
	if origin == "" {
		return false
	}
	for _, host := range hosts {
		if strings.HasSuffix(host, ":443") && strings.HasPrefix(origin, "https://") {
			host = strings.TrimSuffix(host, ":443")
		}
		if strings.HasSuffix(host, ":80") && strings.HasPrefix(origin, "http://") {
			host = strings.TrimSuffix(host, ":80")
		}
		if strings.Contains(origin, host) {
			return true
		}
	}
	return false
}

// ApplyRoutes registers the single WebSocket upgrade endpoint that every
// voice-loop API client connects through.
func (h *Handler) ApplyRoutes(r *gin.Engine) {
	r.GET("/ws", func(c *gin.Context) {
		h.eventHandler(c.Writer, c.Request)
	})
}

// validateUpgradeRequest re-assembles the upgrade request's start line
// and headers and feeds them through a streaming httpmsg.Message, so the
// configured HTTP message limits (header line length, method length,
// header count) bind on the real handshake net/http already parsed,
// rather than existing only as validated-but-inert configuration.
func (h *Handler) validateUpgradeRequest(r *http.Request) error {
	msg := httpmsg.New(h.limits)
	var raw strings.Builder
	fmt.Fprintf(&raw, "%s %s %s\r\n", r.Method, r.RequestURI, r.Proto)
	for name, values := range r.Header {
		for _, value := range values {
			fmt.Fprintf(&raw, "%s: %s\r\n", name, value)
		}
	}
	raw.WriteString("\r\n")

	status, err := msg.Feed([]byte(raw.String()))
	if err != nil {
		return err
	}
	if status != httpmsg.StatusSuccess {
		return fmt.Errorf("websocket: upgrade request did not parse to completion, status %d", status)
	}
	return nil
}

// eventHandler upgrades the connection, assigns it a socket ID, and runs
// its read loop until the client disconnects or a write fails. Every
// inbound frame is handed to the dispatcher as one event; the response
// is written back as a single text frame.
func (h *Handler) eventHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.validateUpgradeRequest(r); err != nil {
		slog.Error("Rejected malformed upgrade request", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	conn, err := h.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to set websocket upgrade", "error", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Error("Failed to close websocket", "error", err)
		}
	}()

	socket := loop.SocketID(h.nextSocket.Add(1))
	cw := &connWriter{conn: conn}
	h.conns.Store(socket, cw)
	defer h.conns.Delete(socket)

	h.dispatcher.Connect(socket)
	defer h.dispatcher.Disconnect(socket)

	ctx := r.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		resp := h.dispatcher.Dispatch(ctx, socket, raw)
		body, err := json.Marshal(resp)
		if err != nil {
			slog.Error("Failed to marshal dispatcher response", "error", err)
			continue
		}
		if err := cw.write(body); err != nil {
			return
		}
	}
}
