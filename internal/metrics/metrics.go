// Package metrics exposes prometheus collectors for the capture pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesCaptured counts frames successfully pulled from the source and
	// published to the live view slot.
	FramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "framescope",
		Name:      "frames_captured_total",
		Help:      "Frames captured and published to the live view",
	})

	// FramesRecorded counts frames appended to the recording store.
	FramesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "framescope",
		Name:      "frames_recorded_total",
		Help:      "Frames appended to the recording store",
	})

	// TransientDrops counts ticks skipped because of a transient capture
	// error.
	TransientDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "framescope",
		Name:      "transient_drops_total",
		Help:      "Ticks dropped due to transient capture errors",
	})

	// RecordDrops counts frames that were displayed but not recorded
	// because the store append failed.
	RecordDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "framescope",
		Name:      "record_drops_total",
		Help:      "Frames dropped from the recording due to storage errors",
	})

	// StoreGrowths counts chunked capacity extensions of the recording
	// store.
	StoreGrowths = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "framescope",
		Name:      "store_growths_total",
		Help:      "Chunked capacity growths of the recording store",
	})

	// StoreLength is the number of frames written to the open recording
	// store.
	StoreLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "framescope",
		Name:      "store_length_frames",
		Help:      "Frames written to the open recording store",
	})

	// StoreCapacity is the allocated capacity of the open recording store.
	StoreCapacity = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "framescope",
		Name:      "store_capacity_frames",
		Help:      "Allocated capacity of the open recording store",
	})
)
