// Package metrics exposes Prometheus collectors for session observability.
// A nil *Sender or *Receiver is a valid, inert no-op collector so that
// code under test never needs to wire a registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Sender holds the counters/gauges the sender framer reports against.
type Sender struct {
	SegmentsSent       prometheus.Counter
	SegmentsRetransmit *prometheus.CounterVec // labeled "cause": timeout|fast_retransmit
	AcksReceived       prometheus.Counter
	ReslicesPerformed  prometheus.Counter
	WindowOccupancy    prometheus.Gauge
}

// NewSender registers a fresh set of sender collectors on reg and returns
// them. Pass a dedicated *prometheus.Registry per process; reg may be nil,
// in which case the returned *Sender is still safe to use but reports
// nowhere.
func NewSender(reg *prometheus.Registry) *Sender {
	s := &Sender{
		SegmentsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdt", Subsystem: "sender", Name: "segments_sent_total",
			Help: "Number of PUSH segments transmitted, including retransmits.",
		}),
		SegmentsRetransmit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rdt", Subsystem: "sender", Name: "segments_retransmitted_total",
			Help: "Number of PUSH segments retransmitted, labeled by cause.",
		}, []string{"cause"}),
		AcksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdt", Subsystem: "sender", Name: "acks_received_total",
			Help: "Number of ACK records received.",
		}),
		ReslicesPerformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdt", Subsystem: "sender", Name: "reslices_total",
			Help: "Number of times the unacknowledged suffix was re-sliced to a new segment size.",
		}),
		WindowOccupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rdt", Subsystem: "sender", Name: "window_occupancy",
			Help: "sequence_tracker - frame_cursor: segments currently in flight.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.SegmentsSent, s.SegmentsRetransmit, s.AcksReceived, s.ReslicesPerformed, s.WindowOccupancy)
	}
	return s
}

// Receiver holds the counters the reassembler reports against.
type Receiver struct {
	SegmentsAccepted  prometheus.Counter
	SegmentsDuplicate prometheus.Counter
	SegmentsBuffered  prometheus.Counter
	ResizeRequests    prometheus.Counter
}

// NewReceiver registers a fresh set of receiver collectors on reg.
func NewReceiver(reg *prometheus.Registry) *Receiver {
	r := &Receiver{
		SegmentsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdt", Subsystem: "receiver", Name: "segments_accepted_total",
			Help: "Number of PUSH segments accepted into the contiguous prefix.",
		}),
		SegmentsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdt", Subsystem: "receiver", Name: "segments_duplicate_total",
			Help: "Number of PUSH segments ignored as already-delivered duplicates.",
		}),
		SegmentsBuffered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdt", Subsystem: "receiver", Name: "segments_buffered_total",
			Help: "Number of out-of-order PUSH segments buffered pending their predecessors.",
		}),
		ResizeRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdt", Subsystem: "receiver", Name: "resize_requests_total",
			Help: "Number of ACKs that piggybacked a new_block_size request.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.SegmentsAccepted, r.SegmentsDuplicate, r.SegmentsBuffered, r.ResizeRequests)
	}
	return r
}
