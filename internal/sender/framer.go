// Package sender implements the sliding-window framer (spec §4.3): the
// sender side of the reliable-transfer state machine, plus the Sender's
// half of the teardown handshake (spec §4.5).
package sender

import (
	"context"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/pkg/errors"

	"reliant/internal/metrics"
	"reliant/internal/negotiate"
	"reliant/internal/rdtlog"
	"reliant/internal/transport"
	"reliant/internal/wire"
)

// payloadBuffer is the sender-side PayloadBuffer of spec §3. It is driven
// exclusively by Framer; nothing outside this package ever holds one.
type payloadBuffer struct {
	raw      string
	segments []string
	msgSize  int

	frameCursor     int
	sequenceTracker int
	bytePosition    int
}

func newPayloadBuffer(raw string, msgSize int) payloadBuffer {
	return payloadBuffer{raw: raw, segments: chunk(raw, msgSize), msgSize: msgSize}
}

// chunk partitions s into consecutive slices of length n; the last slice
// may be shorter. chunk("", n) returns a nil (zero-length) slice.
func chunk(s string, n int) []string {
	if len(s) == 0 {
		return nil
	}
	var out []string
	for i := 0; i < len(s); i += n {
		end := i + n
		if end > len(s) {
			end = len(s)
		}
		out = append(out, s[i:end])
	}
	return out
}

// reslice re-partitions the unacknowledged suffix of raw under a new
// segment size, per spec §4.3. The caller MUST have already applied the
// cumulative-ACK bytePosition update for the ACK that triggered this call;
// reslicing before that update would compute the suffix from the wrong
// offset (spec §9, "Dynamic re-slice ordering bug candidate").
func (b *payloadBuffer) reslice(newSize int) {
	suffix := b.raw[b.bytePosition:]
	newChunks := chunk(suffix, newSize)
	kept := make([]string, b.frameCursor)
	copy(kept, b.segments[:b.frameCursor])
	b.segments = append(kept, newChunks...)
	b.msgSize = newSize
	b.sequenceTracker = b.frameCursor
}

// Option configures a Framer at construction time.
type Option func(*Framer)

// WithDropSequence arranges for the segment at the given sequence number to
// be silently dropped exactly once — useful for exercising fast retransmit
// in tests and demos. It is off (seq < 0) by default and must never be
// wired to anything but test code or an explicit, documented demo flag.
func WithDropSequence(seq int) Option {
	return func(f *Framer) { f.dropSeq = seq }
}

// WithMetrics attaches a metrics collector. A Framer with no metrics
// attached still works; it just reports nowhere.
func WithMetrics(m *metrics.Sender) Option {
	return func(f *Framer) { f.metrics = m }
}

// WithInitialBuffer seeds the Framer's decode buffer with bytes already
// read off the channel past the handshake (see Handshake's return value),
// so nothing pipelined immediately after SYN/ACK is lost.
func WithInitialBuffer(b []byte) Option {
	return func(f *Framer) { f.incoming = append(f.incoming, b...) }
}

// Framer drives the sender-side sliding window over ch until every segment
// of raw has been acknowledged.
type Framer struct {
	ch      transport.Channel
	params  negotiate.Params
	buf     payloadBuffer
	metrics *metrics.Sender

	lastAckTime    time.Time
	lastAckSeq     int
	haveLastAckSeq bool
	dupAckCount    int

	dropSeq     int
	droppedOnce bool

	incoming []byte

	pollInterval time.Duration
}

// NewFramer builds a Framer that will transfer raw over ch under the given
// negotiated parameters.
func NewFramer(ch transport.Channel, raw string, params negotiate.Params, opts ...Option) *Framer {
	f := &Framer{
		ch:           ch,
		params:       params,
		buf:          newPayloadBuffer(raw, params.MaximumMsgSize),
		dropSeq:      -1,
		lastAckTime:  time.Now(),
		pollInterval: time.Duration(params.Timeout) * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SegmentCount reports the total number of segments in force right now.
// It changes across a dynamic re-slice.
func (f *Framer) SegmentCount() int { return len(f.buf.segments) }

// Done reports whether every segment has been acknowledged.
func (f *Framer) Done() bool { return f.buf.frameCursor == len(f.buf.segments) }

// Run blocks until every segment has been acknowledged (spec §4.3). Each
// iteration performs, in order: send what the window allows, poll for
// incoming records for up to the negotiated timeout, and declare a
// retransmission if the last ACK is older than the timeout.
func (f *Framer) Run(ctx context.Context) error {
	sid := rdtlog.SessionID(ctx)
	dlog.Debugf(ctx, "SESS %s framer starting, %d segment(s), window %d", sid, len(f.buf.segments), f.params.WindowSize)

	for !f.Done() {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "sender: context done")
		}

		f.sendAvailable(ctx)

		readable, err := f.ch.PollReadable(f.pollInterval)
		if err != nil {
			return errors.Wrap(err, "sender: channel closed while polling")
		}
		if readable {
			if err := f.receiveStep(ctx); err != nil {
				return err
			}
		}

		if time.Since(f.lastAckTime) > f.pollInterval {
			dlog.Debugf(ctx, "SESS %s timeout fired, retransmitting window from %d", sid, f.buf.frameCursor)
			f.buf.sequenceTracker = f.buf.frameCursor
			f.lastAckTime = time.Now()
			if f.metrics != nil {
				f.metrics.SegmentsRetransmit.WithLabelValues("timeout").Inc()
			}
		}
	}
	dlog.Debugf(ctx, "SESS %s framer done, all %d segment(s) acknowledged", sid, len(f.buf.segments))
	return nil
}

func (f *Framer) sendAvailable(ctx context.Context) {
	upper := f.buf.frameCursor + f.params.WindowSize
	if upper > len(f.buf.segments) {
		upper = len(f.buf.segments)
	}
	for f.buf.sequenceTracker < upper {
		idx := f.buf.sequenceTracker
		if f.dropSeq == idx && !f.droppedOnce {
			f.droppedOnce = true
			dlog.Tracef(ctx, "   simulating drop of segment %d", idx)
			f.buf.sequenceTracker++
			continue
		}
		f.push(ctx, idx)
		f.buf.sequenceTracker++
	}
	if f.metrics != nil {
		f.metrics.WindowOccupancy.Set(float64(f.buf.sequenceTracker - f.buf.frameCursor))
	}
}

func (f *Framer) push(ctx context.Context, idx int) {
	rec := wire.NewPush(idx, f.buf.segments[idx])
	b, err := wire.Encode(rec)
	if err != nil {
		dlog.Errorf(ctx, "   encode PUSH %d: %v", idx, err)
		return
	}
	if err := f.ch.SendAll(ctx, b); err != nil {
		dlog.Errorf(ctx, "   send PUSH %d: %v", idx, err)
		return
	}
	dlog.Tracef(ctx, "   -> PUSH seq=%d len=%d", idx, len(f.buf.segments[idx]))
	if f.metrics != nil {
		f.metrics.SegmentsSent.Inc()
	}
}

func (f *Framer) receiveStep(ctx context.Context) error {
	b, err := f.ch.Recv(ctx, 4096)
	if err != nil {
		return errors.Wrap(err, "sender: recv")
	}
	if len(b) == 0 {
		return nil
	}
	f.incoming = append(f.incoming, b...)
	var records []wire.Record
	records, f.incoming = wire.Decode(f.incoming)
	for _, rec := range records {
		if rec.Flag != wire.FlagAck {
			continue
		}
		f.handleAck(ctx, rec)
	}
	return nil
}

func (f *Framer) handleAck(ctx context.Context, rec wire.Record) {
	cum := *rec.Ack
	if f.metrics != nil {
		f.metrics.AcksReceived.Inc()
	}

	if cum >= f.buf.frameCursor {
		for i := f.buf.frameCursor; i <= cum && i < len(f.buf.segments); i++ {
			f.buf.bytePosition += len(f.buf.segments[i])
		}
		f.buf.frameCursor = cum + 1
		if f.buf.frameCursor > len(f.buf.segments) {
			f.buf.frameCursor = len(f.buf.segments)
		}
		if f.buf.sequenceTracker < f.buf.frameCursor {
			f.buf.sequenceTracker = f.buf.frameCursor
		}
		f.lastAckTime = time.Now()
	}

	// Dynamic re-slice MUST come after the bytePosition update above: it
	// consumes bytePosition to find the unacknowledged suffix.
	if f.params.DynamicSize && rec.NewBlockSize != nil && *rec.NewBlockSize != f.buf.msgSize {
		dlog.Debugf(ctx, "   dynamic resize %d -> %d", f.buf.msgSize, *rec.NewBlockSize)
		f.buf.reslice(*rec.NewBlockSize)
		if f.metrics != nil {
			f.metrics.ReslicesPerformed.Inc()
		}
	}

	if f.haveLastAckSeq && f.lastAckSeq == cum {
		f.dupAckCount++
	} else {
		f.lastAckSeq = cum
		f.haveLastAckSeq = true
		f.dupAckCount = 1
	}

	if f.dupAckCount >= 3 && f.buf.frameCursor < len(f.buf.segments) {
		dlog.Debugf(ctx, "   fast retransmit triggered for segment %d", f.buf.frameCursor)
		f.push(ctx, f.buf.frameCursor)
		f.dupAckCount = 0
		if f.metrics != nil {
			f.metrics.SegmentsRetransmit.WithLabelValues("fast_retransmit").Inc()
		}
	}
}
