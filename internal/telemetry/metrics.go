// Package telemetry exposes prometheus metrics for the room core. Init
// must run once before any recorder is used.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "devhub"

var (
	promRoomCurrent        prometheus.Gauge
	promRoomDuration       prometheus.Histogram
	promParticipantCurrent prometheus.Gauge
	promConnCurrent        prometheus.Gauge
	promJoinCounter        *prometheus.CounterVec
	promSignalCounter      *prometheus.CounterVec
	promEventCounter       *prometheus.CounterVec
	promEventDropped       prometheus.Counter
	promRecordingCounter   *prometheus.CounterVec
)

func Init(nodeID string) {
	constLabels := prometheus.Labels{"node_id": nodeID}

	promRoomCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "room",
		Name:        "total",
		ConstLabels: constLabels,
	})
	promRoomDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   "room",
		Name:        "duration_seconds",
		ConstLabels: constLabels,
		Buckets: []float64{
			5, 10, 60, 5 * 60, 10 * 60, 30 * 60, 60 * 60, 2 * 60 * 60, 5 * 60 * 60,
		},
	})
	promParticipantCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "participant",
		Name:        "total",
		ConstLabels: constLabels,
	})
	promConnCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "connection",
		Name:        "total",
		ConstLabels: constLabels,
	})
	promJoinCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "room",
		Name:        "join_counter",
		ConstLabels: constLabels,
	}, []string{"result"})
	promSignalCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "signal",
		Name:        "relay_counter",
		ConstLabels: constLabels,
	}, []string{"state"})
	promEventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "event",
		Name:        "broadcast_counter",
		ConstLabels: constLabels,
	}, []string{"type"})
	promEventDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "event",
		Name:        "dropped_total",
		ConstLabels: constLabels,
	})
	promRecordingCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "recording",
		Name:        "transition_counter",
		ConstLabels: constLabels,
	}, []string{"state"})

	prometheus.MustRegister(promRoomCurrent)
	prometheus.MustRegister(promRoomDuration)
	prometheus.MustRegister(promParticipantCurrent)
	prometheus.MustRegister(promConnCurrent)
	prometheus.MustRegister(promJoinCounter)
	prometheus.MustRegister(promSignalCounter)
	prometheus.MustRegister(promEventCounter)
	prometheus.MustRegister(promEventDropped)
	prometheus.MustRegister(promRecordingCounter)
}

// ready guards against recording before Init in unit tests that wire
// components directly.
func ready() bool { return promRoomCurrent != nil }

func RoomStarted() {
	if !ready() {
		return
	}
	promRoomCurrent.Add(1)
}

func RoomEnded(startedAt time.Time) {
	if !ready() {
		return
	}
	if !startedAt.IsZero() {
		promRoomDuration.Observe(time.Since(startedAt).Seconds())
	}
	promRoomCurrent.Sub(1)
}

func AddParticipant() {
	if !ready() {
		return
	}
	promParticipantCurrent.Add(1)
}

func SubParticipant() {
	if !ready() {
		return
	}
	promParticipantCurrent.Sub(1)
}

func ConnBound() {
	if !ready() {
		return
	}
	promConnCurrent.Add(1)
}

func ConnUnbound() {
	if !ready() {
		return
	}
	promConnCurrent.Sub(1)
}

func JoinResult(result string) {
	if !ready() {
		return
	}
	promJoinCounter.WithLabelValues(result).Inc()
}

func SignalRelayed(delivered bool) {
	if !ready() {
		return
	}
	state := "delivered"
	if !delivered {
		state = "dropped"
	}
	promSignalCounter.WithLabelValues(state).Inc()
}

func EventBroadcast(eventType string, sent, dropped int) {
	if !ready() {
		return
	}
	promEventCounter.WithLabelValues(eventType).Add(float64(sent))
	if dropped > 0 {
		promEventDropped.Add(float64(dropped))
	}
}

func RecordingStarted() {
	if !ready() {
		return
	}
	promRecordingCounter.WithLabelValues("started").Inc()
}

func RecordingStopped() {
	if !ready() {
		return
	}
	promRecordingCounter.WithLabelValues("stopped").Inc()
}
