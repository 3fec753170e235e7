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

// Package httpmsg implements a streaming HTTP message assembler,
// independent of net/http, for the transports the dispatcher accepts
// connections over: request/status line parsing, header folding,
// content-length bodies, and chunked transfer with extensions.
package httpmsg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Status is the result of feeding bytes into a Message.
type Status int

const (
	// StatusAbsent means no bytes have been fed yet.
	StatusAbsent Status = iota
	// StatusProgress means parsing is underway but the message is incomplete.
	StatusProgress
	// StatusSuccess means the message is fully parsed; Remainder holds
	// any trailing bytes belonging to a subsequent message.
	StatusSuccess
	// StatusOOB means bytes were fed after a message already reached
	// StatusSuccess without having been reset.
	StatusOOB
	// StatusError means the input violates the wire format or exceeds a
	// configured limit.
	StatusError
)

// Limits bounds resource usage during parsing. A zero Limits is invalid;
// use DefaultLimits.
type Limits struct {
	MaxHeaderLine      int
	MaxMethodLength    int
	MaxHeaders         int
	MaxChunkExtensions int
	BufferSize         int
	RecacheThreshold   int
}

// DefaultLimits matches the defaults documented for the HTTP message
// helper: 1000, 7, 100, 10, 4096, 40960.
func DefaultLimits() Limits {
	return Limits{
		MaxHeaderLine:      1000,
		MaxMethodLength:    7,
		MaxHeaders:         100,
		MaxChunkExtensions: 10,
		BufferSize:         4096,
		RecacheThreshold:   40960,
	}
}

// Header is a single parsed header field.
type Header struct {
	Name  string
	Value string
}

// ErrHeaderLineTooLong is returned when a line exceeds MaxHeaderLine.
var ErrHeaderLineTooLong = errors.New("httpmsg: header line exceeds configured limit")

// ErrTooManyHeaders is returned when header count exceeds MaxHeaders.
var ErrTooManyHeaders = errors.New("httpmsg: header count exceeds configured limit")

// ErrMethodTooLong is returned when a request method token exceeds MaxMethodLength.
var ErrMethodTooLong = errors.New("httpmsg: method token exceeds configured limit")

// ErrConflictingLength is returned when both Content-Length and
// Transfer-Encoding are present, which must be rejected.
var ErrConflictingLength = errors.New("httpmsg: content-length and transfer-encoding both present")

// ErrMalformedStartLine is returned when the request/status line cannot be parsed.
var ErrMalformedStartLine = errors.New("httpmsg: malformed start line")

// ErrMalformedChunk is returned when chunked-encoding framing is invalid.
var ErrMalformedChunk = errors.New("httpmsg: malformed chunk framing")

// ErrTooManyChunkExtensions is returned when a chunk line carries more
// extension parameters than MaxChunkExtensions.
var ErrTooManyChunkExtensions = errors.New("httpmsg: too many chunk extensions")

type parsePhase int

const (
	phaseStartLine parsePhase = iota
	phaseHeaders
	phaseBodyContentLength
	phaseBodyChunkSize
	phaseBodyChunkData
	phaseBodyChunkCRLF
	phaseBodyChunkTrailer
	phaseDone
)

// Message incrementally assembles one HTTP request or response from
// arbitrarily-chunked input via successive Feed calls.
type Message struct {
	limits Limits
	buf    []byte
	phase  parsePhase
	status Status

	// Request line.
	Method   string
	Target   string
	Protocol string

	// Status line.
	StatusCode int
	Reason     string

	Headers []Header
	Body    []byte

	haveContentLength bool
	contentLength     int64
	chunked           bool
	pendingChunk      int64

	remainder []byte
}

// New constructs an empty Message governed by the given limits.
func New(limits Limits) *Message {
	return &Message{limits: limits, buf: make([]byte, 0, limits.BufferSize)}
}

// Reset returns the message to its initial state, recycling its
// accumulation buffer unless it has grown past RecacheThreshold.
func (m *Message) Reset() {
	buf := m.buf
	if cap(buf) > m.limits.RecacheThreshold {
		buf = make([]byte, 0, m.limits.BufferSize)
	} else {
		buf = buf[:0]
	}
	*m = Message{limits: m.limits, buf: buf}
}

// Remainder returns the bytes that follow the completed message, whether
// they arrived in the same Feed call that reached StatusSuccess or in a
// later one; the caller should Reset and Feed them into a fresh Message.
func (m *Message) Remainder() []byte {
	return m.remainder
}

// Feed appends data and advances parsing as far as possible, returning the
// resulting status.
func (m *Message) Feed(data []byte) (Status, error) {
	if m.phase == phaseDone {
		m.remainder = append(m.remainder, data...)
		m.status = StatusOOB
		return m.status, nil
	}

	m.buf = append(m.buf, data...)

	for {
		advanced, status, err := m.step()
		if err != nil {
			m.status = StatusError
			return m.status, err
		}
		m.status = status
		if !advanced || status != StatusProgress {
			break
		}
	}
	if m.phase == phaseDone && len(m.buf) > 0 {
		m.remainder = append(m.remainder, m.buf...)
		m.buf = m.buf[:0]
	}
	return m.status, nil
}

// step attempts one phase transition; it returns advanced=true if it
// consumed bytes and more progress might be possible without new input.
func (m *Message) step() (advanced bool, status Status, err error) {
	switch m.phase {
	case phaseStartLine:
		return m.stepStartLine()
	case phaseHeaders:
		return m.stepHeaders()
	case phaseBodyContentLength:
		return m.stepContentLengthBody()
	case phaseBodyChunkSize:
		return m.stepChunkSize()
	case phaseBodyChunkData:
		return m.stepChunkData()
	case phaseBodyChunkCRLF:
		return m.stepChunkCRLF()
	case phaseBodyChunkTrailer:
		return m.stepChunkTrailer()
	default:
		return false, StatusSuccess, nil
	}
}

func (m *Message) findCRLF() int {
	for i := 0; i+1 < len(m.buf); i++ {
		if m.buf[i] == '\r' && m.buf[i+1] == '\n' {
			return i
		}
	}
	return -1
}

func (m *Message) stepStartLine() (bool, Status, error) {
	idx := m.findCRLF()
	if idx < 0 {
		if len(m.buf) > m.limits.MaxHeaderLine {
			return false, StatusError, ErrHeaderLineTooLong
		}
		return false, StatusProgress, nil
	}
	if idx > m.limits.MaxHeaderLine {
		return false, StatusError, ErrHeaderLineTooLong
	}

	line := string(m.buf[:idx])
	m.buf = m.buf[idx+2:]

	if strings.HasPrefix(line, "HTTP/") {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return false, StatusError, fmt.Errorf("%w: %q", ErrMalformedStartLine, line)
		}
		code, convErr := strconv.Atoi(parts[1])
		if convErr != nil {
			return false, StatusError, fmt.Errorf("%w: status code: %w", ErrMalformedStartLine, convErr)
		}
		m.Protocol = parts[0]
		m.StatusCode = code
		m.Reason = parts[2]
	} else {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return false, StatusError, fmt.Errorf("%w: %q", ErrMalformedStartLine, line)
		}
		if len(parts[0]) > m.limits.MaxMethodLength {
			return false, StatusError, ErrMethodTooLong
		}
		m.Method = parts[0]
		m.Target = parts[1]
		m.Protocol = parts[2]
	}

	m.phase = phaseHeaders
	return true, StatusProgress, nil
}

func (m *Message) stepHeaders() (bool, Status, error) {
	idx := m.findCRLF()
	if idx < 0 {
		if len(m.buf) > m.limits.MaxHeaderLine {
			return false, StatusError, ErrHeaderLineTooLong
		}
		return false, StatusProgress, nil
	}
	if idx > m.limits.MaxHeaderLine {
		return false, StatusError, ErrHeaderLineTooLong
	}

	line := m.buf[:idx]
	if len(line) == 0 {
		// End of headers.
		m.buf = m.buf[idx+2:]
		return m.enterBodyPhase()
	}

	// Header folding: a line beginning with space/tab continues the
	// previous header's value.
	if (line[0] == ' ' || line[0] == '\t') && len(m.Headers) > 0 {
		last := &m.Headers[len(m.Headers)-1]
		last.Value += " " + strings.TrimSpace(string(line))
		m.buf = m.buf[idx+2:]
		return true, StatusProgress, nil
	}

	colon := indexByte(line, ':')
	if colon < 0 {
		return false, StatusError, fmt.Errorf("%w: header missing colon: %q", ErrMalformedStartLine, line)
	}
	if len(m.Headers) >= m.limits.MaxHeaders {
		return false, StatusError, ErrTooManyHeaders
	}

	name := strings.TrimSpace(string(line[:colon]))
	value := strings.TrimSpace(string(line[colon+1:]))
	m.Headers = append(m.Headers, Header{Name: name, Value: value})
	m.buf = m.buf[idx+2:]
	return true, StatusProgress, nil
}

func (m *Message) enterBodyPhase() (bool, Status, error) {
	contentLength, haveContentLength, transferEncoding := m.inspectBodyHeaders()

	if haveContentLength && transferEncoding != "" {
		return false, StatusError, ErrConflictingLength
	}

	switch {
	case strings.EqualFold(transferEncoding, "chunked"):
		m.chunked = true
		m.phase = phaseBodyChunkSize
	case haveContentLength:
		m.haveContentLength = true
		m.contentLength = contentLength
		m.phase = phaseBodyContentLength
	default:
		m.phase = phaseDone
		return true, StatusSuccess, nil
	}
	return true, StatusProgress, nil
}

func (m *Message) inspectBodyHeaders() (contentLength int64, have bool, transferEncoding string) {
	for _, h := range m.Headers {
		switch {
		case strings.EqualFold(h.Name, "Content-Length"):
			n, err := strconv.ParseInt(strings.TrimSpace(h.Value), 10, 64)
			if err == nil {
				contentLength = n
				have = true
			}
		case strings.EqualFold(h.Name, "Transfer-Encoding"):
			fields := strings.Split(h.Value, ",")
			transferEncoding = strings.TrimSpace(fields[len(fields)-1])
		}
	}
	return contentLength, have, transferEncoding
}

func (m *Message) stepContentLengthBody() (bool, Status, error) {
	want := int(m.contentLength) - len(m.Body)
	if want <= 0 {
		m.phase = phaseDone
		return true, StatusSuccess, nil
	}
	if len(m.buf) == 0 {
		return false, StatusProgress, nil
	}
	take := want
	if take > len(m.buf) {
		take = len(m.buf)
	}
	m.Body = append(m.Body, m.buf[:take]...)
	m.buf = m.buf[take:]
	if len(m.Body) >= int(m.contentLength) {
		m.phase = phaseDone
		return true, StatusSuccess, nil
	}
	return true, StatusProgress, nil
}

func (m *Message) stepChunkSize() (bool, Status, error) {
	idx := m.findCRLF()
	if idx < 0 {
		if len(m.buf) > m.limits.MaxHeaderLine {
			return false, StatusError, ErrHeaderLineTooLong
		}
		return false, StatusProgress, nil
	}
	line := string(m.buf[:idx])
	m.buf = m.buf[idx+2:]

	sizeField := line
	extCount := 0
	if semi := strings.IndexByte(line, ';'); semi >= 0 {
		sizeField = line[:semi]
		extCount = strings.Count(line[semi:], ";")
	}
	if extCount > m.limits.MaxChunkExtensions {
		return false, StatusError, ErrTooManyChunkExtensions
	}

	size, err := strconv.ParseInt(strings.TrimSpace(sizeField), 16, 64)
	if err != nil {
		return false, StatusError, fmt.Errorf("%w: chunk size: %w", ErrMalformedChunk, err)
	}

	if size == 0 {
		m.phase = phaseBodyChunkTrailer
		return true, StatusProgress, nil
	}

	m.pendingChunk = size
	m.phase = phaseBodyChunkData
	return true, StatusProgress, nil
}

func (m *Message) stepChunkData() (bool, Status, error) {
	if len(m.buf) == 0 {
		return false, StatusProgress, nil
	}
	take := int(m.pendingChunk)
	if take > len(m.buf) {
		take = len(m.buf)
	}
	m.Body = append(m.Body, m.buf[:take]...)
	m.buf = m.buf[take:]
	m.pendingChunk -= int64(take)
	if m.pendingChunk == 0 {
		m.phase = phaseBodyChunkCRLF
	}
	return true, StatusProgress, nil
}

func (m *Message) stepChunkCRLF() (bool, Status, error) {
	if len(m.buf) < 2 {
		return false, StatusProgress, nil
	}
	if m.buf[0] != '\r' || m.buf[1] != '\n' {
		return false, StatusError, ErrMalformedChunk
	}
	m.buf = m.buf[2:]
	m.phase = phaseBodyChunkSize
	return true, StatusProgress, nil
}

func (m *Message) stepChunkTrailer() (bool, Status, error) {
	idx := m.findCRLF()
	if idx < 0 {
		if len(m.buf) > m.limits.MaxHeaderLine {
			return false, StatusError, ErrHeaderLineTooLong
		}
		return false, StatusProgress, nil
	}
	line := m.buf[:idx]
	m.buf = m.buf[idx+2:]
	if len(line) == 0 {
		m.phase = phaseDone
		return true, StatusSuccess, nil
	}
	colon := indexByte(line, ':')
	if colon >= 0 {
		m.Headers = append(m.Headers, Header{
			Name:  strings.TrimSpace(string(line[:colon])),
			Value: strings.TrimSpace(string(line[colon+1:])),
		})
	}
	return true, StatusProgress, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
