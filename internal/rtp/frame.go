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

// Package rtp implements bidirectional RFC 3550 RTP header framing: an
// expanded view of a frame's fields, and encode/decode between that view
// and the wire byte layout.
package rtp

import (
	"errors"
	"fmt"
)

// MaxCSRCCount is the cap on the CSRC count applied uniformly to both
// encode and decode. The original C implementation allowed 15 CSRCs on
// encode but rejected decode above 14 -- a bug. Both paths cap at 15 here.
const MaxCSRCCount = 15

const (
	fixedHeaderLength = 12
	csrcEntryLength   = 4
	extensionHeaderLength = 4
)

var (
	// ErrTooManyCSRCs is returned when the CSRC count exceeds MaxCSRCCount.
	ErrTooManyCSRCs = errors.New("rtp: csrc count exceeds maximum of 15")
	// ErrBadExtensionLength is returned when an extension's length is not a multiple of 4.
	ErrBadExtensionLength = errors.New("rtp: extension length must be a multiple of 4")
	// ErrBadPaddingLength is returned when the padding length exceeds 255.
	ErrBadPaddingLength = errors.New("rtp: padding length exceeds 255")
	// ErrMissingPadding is returned when the padding flag is set but no padding buffer is given.
	ErrMissingPadding = errors.New("rtp: padding flag set but no padding buffer provided")
	// ErrShortBuffer is returned on decode when fewer than 12 bytes are provided.
	ErrShortBuffer = errors.New("rtp: buffer shorter than fixed header")
	// ErrTruncatedExtension is returned on decode when the declared extension length overruns the input.
	ErrTruncatedExtension = errors.New("rtp: declared extension length overruns buffer")
	// ErrBadPaddingOctet is returned on decode when the trailing padding-length octet is zero or too large.
	ErrBadPaddingOctet = errors.New("rtp: trailing padding length octet is zero or exceeds remaining payload")
)

// Frame is an RFC 3550 RTP frame: an expanded view of its header fields
// alongside the serialised byte buffer that backs it. After Decode, the
// byte slices (ExtensionPayload, Payload, PaddingBuf) alias the frame's
// internal copy of the bytes, while CSRCs is a separate host-order copy;
// before Encode, they may point into caller-owned memory.
type Frame struct {
	Version        uint8
	Padding        bool
	HasExtension   bool
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	CSRCs          []uint32

	ExtensionType    uint16
	ExtensionPayload []byte

	Payload     []byte
	PaddingBuf  []byte

	bytes []byte
}

// Bytes returns the frame's serialised byte buffer, populated by Encode or
// Decode. It must not be retained past a call to FramePool.Put.
func (f *Frame) Bytes() []byte {
	return f.bytes
}

// Encode serialises the frame's expanded view into f.bytes, growing the
// internal buffer on demand, and returns it. The expanded-view fields
// (CSRCs in host order, payload, padding) are read as given by the caller.
func (f *Frame) Encode() ([]byte, error) {
	if len(f.CSRCs) > MaxCSRCCount {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyCSRCs, len(f.CSRCs))
	}
	if f.HasExtension && len(f.ExtensionPayload)%4 != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrBadExtensionLength, len(f.ExtensionPayload))
	}
	if len(f.PaddingBuf) > 255 {
		return nil, fmt.Errorf("%w: got %d", ErrBadPaddingLength, len(f.PaddingBuf))
	}
	if f.Padding && len(f.PaddingBuf) == 0 {
		return nil, ErrMissingPadding
	}

	length := fixedHeaderLength + csrcEntryLength*len(f.CSRCs)
	if f.HasExtension {
		length += extensionHeaderLength + len(f.ExtensionPayload)
	}
	length += len(f.Payload)
	length += len(f.PaddingBuf)
	if f.Padding {
		length++
	}

	f.bytes = growBuffer(f.bytes, length)
	buf := f.bytes

	buf[0] = (f.Version&0x3)<<6 | boolBit(f.Padding, 0x20) | boolBit(f.HasExtension, 0x10) | byte(len(f.CSRCs)&0xF)
	buf[1] = boolBit(f.Marker, 0x80) | (f.PayloadType & 0x7F)
	putUint16(buf[2:4], f.SequenceNumber)
	putUint32(buf[4:8], f.Timestamp)
	putUint32(buf[8:12], f.SSRC)

	offset := fixedHeaderLength
	for _, csrc := range f.CSRCs {
		putUint32(buf[offset:offset+4], csrc)
		offset += csrcEntryLength
	}

	if f.HasExtension {
		putUint16(buf[offset:offset+2], f.ExtensionType)
		putUint16(buf[offset+2:offset+4], uint16(len(f.ExtensionPayload)/4))
		offset += extensionHeaderLength
		copy(buf[offset:], f.ExtensionPayload)
		offset += len(f.ExtensionPayload)
	}

	copy(buf[offset:], f.Payload)
	offset += len(f.Payload)

	copy(buf[offset:], f.PaddingBuf)
	offset += len(f.PaddingBuf)

	if f.Padding {
		buf[offset] = byte(len(f.PaddingBuf) + 1)
	}

	return f.bytes, nil
}

// Decode parses a wire-format RTP frame out of data and returns an owned
// Frame whose expanded-view slices alias its internal copy of the bytes.
func Decode(data []byte) (*Frame, error) {
	if len(data) < fixedHeaderLength {
		return nil, ErrShortBuffer
	}

	f := &Frame{bytes: append([]byte(nil), data...)}
	buf := f.bytes

	f.Version = buf[0] >> 6
	f.Padding = buf[0]&0x20 != 0
	f.HasExtension = buf[0]&0x10 != 0
	csrcCount := int(buf[0] & 0xF)
	if csrcCount > MaxCSRCCount {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyCSRCs, csrcCount)
	}

	f.Marker = buf[1]&0x80 != 0
	f.PayloadType = buf[1] & 0x7F
	f.SequenceNumber = getUint16(buf[2:4])
	f.Timestamp = getUint32(buf[4:8])
	f.SSRC = getUint32(buf[8:12])

	offset := fixedHeaderLength
	if csrcCount > 0 {
		if len(buf) < offset+csrcCount*csrcEntryLength {
			return nil, ErrShortBuffer
		}
		f.CSRCs = make([]uint32, csrcCount)
		for i := 0; i < csrcCount; i++ {
			f.CSRCs[i] = getUint32(buf[offset : offset+4])
			offset += csrcEntryLength
		}
	}

	if f.HasExtension {
		if len(buf) < offset+extensionHeaderLength {
			return nil, ErrTruncatedExtension
		}
		f.ExtensionType = getUint16(buf[offset : offset+2])
		extWords := int(getUint16(buf[offset+2 : offset+4]))
		offset += extensionHeaderLength
		extLen := extWords * 4
		if len(buf) < offset+extLen {
			return nil, ErrTruncatedExtension
		}
		f.ExtensionPayload = buf[offset : offset+extLen]
		offset += extLen
	}

	payloadEnd := len(buf)
	if f.Padding {
		if payloadEnd <= offset {
			return nil, ErrBadPaddingOctet
		}
		padLen := int(buf[payloadEnd-1])
		if padLen == 0 || padLen > payloadEnd-offset {
			return nil, ErrBadPaddingOctet
		}
		f.PaddingBuf = buf[payloadEnd-padLen : payloadEnd-1]
		payloadEnd -= padLen
	}

	f.Payload = buf[offset:payloadEnd]

	return f, nil
}

// Copy re-decodes the frame's serialised bytes, which is the authoritative
// round-trip: the result is fully independent of f.
func (f *Frame) Copy() (*Frame, error) {
	return Decode(f.bytes)
}

// String renders a short human-readable summary, used for debug logging.
func (f *Frame) String() string {
	return fmt.Sprintf(
		"Frame(ssrc=%d seq=%d ts=%d pt=%d csrcs=%d payload=%dB padding=%dB)",
		f.SSRC, f.SequenceNumber, f.Timestamp, f.PayloadType, len(f.CSRCs), len(f.Payload), len(f.PaddingBuf),
	)
}

func boolBit(b bool, mask byte) byte {
	if b {
		return mask
	}
	return 0
}

func growBuffer(buf []byte, n int) []byte {
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	return buf[:n]
}

func putUint16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
