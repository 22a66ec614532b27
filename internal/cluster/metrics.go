package cluster

import (
	"github.com/VictoriaMetrics/metrics"
)

// transportMetrics are the per-manager counters exported on /metrics. Each
// manager owns its own set so several managers can live in one process.
type transportMetrics struct {
	set *metrics.Set

	framesSent     *metrics.Counter
	framesReceived *metrics.Counter
	bytesSent      *metrics.Counter
	bytesReceived  *metrics.Counter
	corruptFrames  *metrics.Counter
	sendFailures   *metrics.Counter
	dialAttempts   *metrics.Counter
	dialFailures   *metrics.Counter
	streamsOpened  *metrics.Counter
	streamsClosed  *metrics.Counter
	goodbyes       *metrics.Counter
}

func newTransportMetrics() *transportMetrics {
	set := metrics.NewSet()
	return &transportMetrics{
		set:            set,
		framesSent:     set.NewCounter("lattice_cluster_frames_sent_total"),
		framesReceived: set.NewCounter("lattice_cluster_frames_received_total"),
		bytesSent:      set.NewCounter("lattice_cluster_bytes_sent_total"),
		bytesReceived:  set.NewCounter("lattice_cluster_bytes_received_total"),
		corruptFrames:  set.NewCounter("lattice_cluster_corrupt_frames_total"),
		sendFailures:   set.NewCounter("lattice_cluster_send_failures_total"),
		dialAttempts:   set.NewCounter("lattice_cluster_dial_attempts_total"),
		dialFailures:   set.NewCounter("lattice_cluster_dial_failures_total"),
		streamsOpened:  set.NewCounter("lattice_cluster_streams_opened_total"),
		streamsClosed:  set.NewCounter("lattice_cluster_streams_closed_total"),
		goodbyes:       set.NewCounter("lattice_cluster_goodbyes_received_total"),
	}
}
