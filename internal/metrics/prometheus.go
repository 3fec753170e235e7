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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector exported by the voice-loop core.
type Metrics struct {
	// RTP frame codec metrics
	FramesDecodedTotal *prometheus.CounterVec
	FramesDroppedTotal *prometheus.CounterVec

	// Stream buffer metrics
	StreamResetsTotal   prometheus.Counter
	StreamBuffersActive prometheus.Gauge

	// Frame buffer metrics
	FrameBufferStagesInUse prometheus.Gauge

	// Dispatcher metrics
	DispatcherEventsTotal   *prometheus.CounterVec
	DispatcherErrorsTotal   *prometheus.CounterVec
	DispatcherEventDuration *prometheus.HistogramVec
	DispatcherAsyncPending  prometheus.Gauge
}

// NewMetrics constructs and registers every collector.
func NewMetrics() *Metrics {
	metrics := &Metrics{
		FramesDecodedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtp_frames_decoded_total",
			Help: "The total number of RTP frames successfully decoded",
		}, []string{"payload_type"}),
		FramesDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtp_frames_dropped_total",
			Help: "The total number of RTP frames dropped",
		}, []string{"reason"}),
		StreamResetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtp_stream_resets_total",
			Help: "The total number of sliding-window stream buffer resets",
		}),
		StreamBuffersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rtp_stream_buffers_active",
			Help: "The current number of active single-SSRC stream buffers",
		}),
		FrameBufferStagesInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rtp_frame_buffer_stages_in_use",
			Help: "The current number of occupied multi-stream frame buffer stages",
		}),
		DispatcherEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatcher_events_total",
			Help: "The total number of voice-loop API events handled",
		}, []string{"event"}),
		DispatcherErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatcher_errors_total",
			Help: "The total number of voice-loop API errors returned, by error code name",
		}, []string{"code"}),
		DispatcherEventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatcher_event_duration_seconds",
			Help:    "Duration of voice-loop API event handling",
			Buckets: prometheus.DefBuckets,
		}, []string{"event"}),
		DispatcherAsyncPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatcher_async_pending",
			Help: "The current number of pending asynchronous collaborator requests",
		}),
	}
	metrics.register()
	return metrics
}

func (m *Metrics) register() {
	prometheus.MustRegister(m.FramesDecodedTotal)
	prometheus.MustRegister(m.FramesDroppedTotal)
	prometheus.MustRegister(m.StreamResetsTotal)
	prometheus.MustRegister(m.StreamBuffersActive)
	prometheus.MustRegister(m.FrameBufferStagesInUse)
	prometheus.MustRegister(m.DispatcherEventsTotal)
	prometheus.MustRegister(m.DispatcherErrorsTotal)
	prometheus.MustRegister(m.DispatcherEventDuration)
	prometheus.MustRegister(m.DispatcherAsyncPending)
}

// RecordFrameDecoded records a successfully decoded RTP frame.
func (m *Metrics) RecordFrameDecoded(payloadType string) {
	m.FramesDecodedTotal.WithLabelValues(payloadType).Inc()
}

// RecordFrameDropped records an RTP frame dropped for the given reason.
func (m *Metrics) RecordFrameDropped(reason string) {
	m.FramesDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordStreamReset records a sliding-window stream buffer reset.
func (m *Metrics) RecordStreamReset() {
	m.StreamResetsTotal.Inc()
}

// SetStreamBuffersActive sets the current count of active stream buffers.
func (m *Metrics) SetStreamBuffersActive(count float64) {
	m.StreamBuffersActive.Set(count)
}

// SetFrameBufferStagesInUse sets the current count of occupied frame buffer stages.
func (m *Metrics) SetFrameBufferStagesInUse(count float64) {
	m.FrameBufferStagesInUse.Set(count)
}

// RecordDispatcherEvent records a handled voice-loop API event and its duration.
func (m *Metrics) RecordDispatcherEvent(event string, duration float64) {
	m.DispatcherEventsTotal.WithLabelValues(event).Inc()
	m.DispatcherEventDuration.WithLabelValues(event).Observe(duration)
}

// RecordDispatcherError records a voice-loop API error by its code name
// (e.g. "auth_permission").
func (m *Metrics) RecordDispatcherError(code string) {
	m.DispatcherErrorsTotal.WithLabelValues(code).Inc()
}

// SetDispatcherAsyncPending sets the current count of pending async requests.
func (m *Metrics) SetDispatcherAsyncPending(count float64) {
	m.DispatcherAsyncPending.Set(count)
}
