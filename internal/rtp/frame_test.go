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

package rtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		frame Frame
	}{
		{
			name: "minimal frame",
			frame: Frame{
				Version:        2,
				PayloadType:    96,
				SequenceNumber: 1000,
				Timestamp:      48000,
				SSRC:           0xdeadbeef,
			},
		},
		{
			name: "frame with csrcs and payload",
			frame: Frame{
				Version:        2,
				Marker:         true,
				PayloadType:    8,
				SequenceNumber: 65535,
				Timestamp:      1,
				SSRC:           1,
				CSRCs:          []uint32{3, 4, 7, 11, 0x192837ff},
				Payload:        []byte{0xf1, 0xf2, 0xa6},
			},
		},
		{
			name: "frame with extension",
			frame: Frame{
				Version:          2,
				HasExtension:     true,
				PayloadType:      96,
				SequenceNumber:   5,
				Timestamp:        8000,
				SSRC:             42,
				ExtensionType:    0xBEDE,
				ExtensionPayload: []byte{1, 2, 3, 4, 5, 6, 7, 8},
				Payload:          []byte{0xaa, 0xbb},
			},
		},
		{
			name: "frame with padding",
			frame: Frame{
				Version:        2,
				Padding:        true,
				PayloadType:    0,
				SequenceNumber: 10,
				Timestamp:      0,
				SSRC:           9,
				Payload:        []byte{1, 2, 3},
				PaddingBuf:     []byte{0x10, 0x02, 0x30},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			encoded, err := tt.frame.Encode()
			require.NoError(t, err)

			decoded, err := Decode(encoded)
			require.NoError(t, err)

			assert.Equal(t, tt.frame.Version, decoded.Version)
			assert.Equal(t, tt.frame.Padding, decoded.Padding)
			assert.Equal(t, tt.frame.HasExtension, decoded.HasExtension)
			assert.Equal(t, tt.frame.Marker, decoded.Marker)
			assert.Equal(t, tt.frame.PayloadType, decoded.PayloadType)
			assert.Equal(t, tt.frame.SequenceNumber, decoded.SequenceNumber)
			assert.Equal(t, tt.frame.Timestamp, decoded.Timestamp)
			assert.Equal(t, tt.frame.SSRC, decoded.SSRC)
			if len(tt.frame.CSRCs) == 0 {
				assert.Empty(t, decoded.CSRCs)
			} else {
				assert.Equal(t, tt.frame.CSRCs, decoded.CSRCs)
			}
			assert.Equal(t, tt.frame.Payload, decoded.Payload)
			if tt.frame.HasExtension {
				assert.Equal(t, tt.frame.ExtensionType, decoded.ExtensionType)
				assert.Equal(t, tt.frame.ExtensionPayload, decoded.ExtensionPayload)
			}
			if tt.frame.Padding {
				assert.Equal(t, tt.frame.PaddingBuf, decoded.PaddingBuf)
			}
		})
	}
}

func TestEncodePaddingTrailingOctet(t *testing.T) {
	t.Parallel()

	f := Frame{
		Version:        2,
		Padding:        true,
		CSRCs:          []uint32{3, 4, 7, 11, 0x192837ff},
		PayloadType:    0,
		SequenceNumber: 1,
		Timestamp:      1,
		SSRC:           1,
		Payload:        []byte{0xf1, 0xf2, 0xf3, 0xf4, 0xf5, 0xa6},
		PaddingBuf:     []byte{0x10, 0x02, 0x30},
	}

	encoded, err := f.Encode()
	require.NoError(t, err)
	assert.Equal(t, byte(4), encoded[len(encoded)-1])
}

func TestEncodeRejectsTooManyCSRCs(t *testing.T) {
	t.Parallel()

	f := Frame{CSRCs: make([]uint32, 16)}
	_, err := f.Encode()
	require.ErrorIs(t, err, ErrTooManyCSRCs)
}

func TestEncodeRejectsBadExtensionLength(t *testing.T) {
	t.Parallel()

	f := Frame{HasExtension: true, ExtensionPayload: []byte{1, 2, 3}}
	_, err := f.Encode()
	require.ErrorIs(t, err, ErrBadExtensionLength)
}

func TestEncodeRejectsMissingPadding(t *testing.T) {
	t.Parallel()

	f := Frame{Padding: true}
	_, err := f.Encode()
	require.ErrorIs(t, err, ErrMissingPadding)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecodeRejectsCSRCListOverrunningBuffer(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 12)
	buf[0] = (2 << 6) | 15 // version 2, csrc count 15
	_, err := Decode(buf)
	// 15 CSRCs declared but buffer too short to hold them.
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecodeRejectsTruncatedExtension(t *testing.T) {
	t.Parallel()

	f := Frame{Version: 2, HasExtension: true, ExtensionPayload: []byte{1, 2, 3, 4}}
	encoded, err := f.Encode()
	require.NoError(t, err)

	_, err = Decode(encoded[:len(encoded)-2])
	require.ErrorIs(t, err, ErrTruncatedExtension)
}

func TestDecodeRejectsBadPaddingOctet(t *testing.T) {
	t.Parallel()

	f := Frame{Version: 2, Padding: true, PaddingBuf: []byte{0}}
	encoded, err := f.Encode()
	require.NoError(t, err)
	encoded[len(encoded)-1] = 0

	_, err = Decode(encoded)
	require.ErrorIs(t, err, ErrBadPaddingOctet)
}

func TestFramePoolRecyclesAndDropsOversized(t *testing.T) {
	t.Parallel()

	pool := NewFramePool(16)

	f := pool.Get()
	f.SSRC = 7
	encoded, err := (&Frame{Payload: make([]byte, 4)}).Encode()
	require.NoError(t, err)
	f.bytes = encoded
	pool.Put(f)

	recycled := pool.Get()
	assert.Equal(t, uint32(0), recycled.SSRC, "recycled frame should be zeroed")

	oversized := pool.Get()
	oversized.bytes = make([]byte, 32)
	pool.Put(oversized) // dropped, not recycled, due to recacheThreshold
}
