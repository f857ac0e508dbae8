// Package receiver implements the receiver-side reassembler (spec §4.4):
// in-order reconstruction, cumulative ACK generation, and the dynamic-size
// control policy, plus the Receiver's half of the teardown handshake
// (spec §4.5).
package receiver

import (
	"context"
	"math/rand"
	"sort"
	"strings"

	"github.com/datawire/dlib/dlog"
	"github.com/pkg/errors"

	"reliant/internal/metrics"
	"reliant/internal/negotiate"
	"reliant/internal/rdtlog"
	"reliant/internal/transport"
	"reliant/internal/wire"
)

// Action reports what the caller's read loop should do after HandleRecord.
type Action int

const (
	// Continue means: keep reading records.
	Continue Action = iota
	// Terminate means: the session is over (FIN processed); stop reading
	// new records and proceed to Teardown.
	Terminate
)

// reassemblyStore is the receiver-side ReassemblyStore of spec §3. It is
// driven exclusively by Reassembler.
type reassemblyStore struct {
	store      map[int]string
	nextNeeded int
}

func newReassemblyStore() reassemblyStore {
	return reassemblyStore{store: make(map[int]string)}
}

// Reassembler holds the negotiated parameters and ReassemblyStore for one
// session and dispatches incoming records per spec §4.4.
type Reassembler struct {
	local   negotiate.Params // the Receiver's own proposal, used when negotiating
	params  negotiate.Params // effective parameters, set once SYN is processed
	store   reassemblyStore
	metrics *metrics.Receiver

	handshakeComplete bool
	negotiated        bool

	rnd *rand.Rand
}

// Option configures a Reassembler at construction time.
type Option func(*Reassembler)

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Receiver) Option {
	return func(r *Reassembler) { r.metrics = m }
}

// WithRand overrides the source used to pick dynamic new_block_size values,
// for deterministic tests. Production code should leave this unset.
func WithRand(rnd *rand.Rand) Option {
	return func(r *Reassembler) { r.rnd = rnd }
}

// NewReassembler builds a Reassembler. local is the Receiver's own proposed
// parameters, sent back unchanged in SYN/ACK; the effective parameters are
// the componentwise minimum/AND of local and the Sender's proposal. A zero
// local makes the SYN/ACK echo the Sender's proposal instead.
func NewReassembler(local negotiate.Params, opts ...Option) *Reassembler {
	r := &Reassembler{
		local: local,
		store: newReassemblyStore(),
		rnd:   rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Delivered returns the concatenation of the contiguous prefix [0,
// nextNeeded) of the store, in ascending sequence order — the payload
// delivered so far.
func (r *Reassembler) Delivered() string {
	keys := make([]int, 0, len(r.store.store))
	for k := range r.store.store {
		if k < r.store.nextNeeded {
			keys = append(keys, k)
		}
	}
	sort.Ints(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(r.store.store[k])
	}
	return b.String()
}

// Params returns the effective negotiated parameters, valid once the SYN
// has been processed.
func (r *Reassembler) Params() negotiate.Params { return r.params }

// HandleRecord dispatches one record per spec §4.4 and returns the
// caller's resulting encode-and-send obligation (if any) plus the next
// Action. A nil reply means nothing needs to be sent in response.
func (r *Reassembler) HandleRecord(ctx context.Context, rec wire.Record) (reply *wire.Record, action Action, err error) {
	sid := rdtlog.SessionID(ctx)

	switch rec.Flag {
	case wire.FlagSyn:
		remote := negotiate.Params{
			WindowSize:     *rec.WindowSize,
			MaximumMsgSize: *rec.MaximumMsgSize,
			Timeout:        *rec.Timeout,
			DynamicSize:    *rec.DynamicSize,
		}
		local := r.local
		if !r.negotiated && local == (negotiate.Params{}) {
			local = remote // no configured proposal: echo the peer's (spec supplement, see SPEC_FULL.md)
		}
		r.params = negotiate.Effective(remote, local)
		r.negotiated = true
		dlog.Infof(ctx, "SESS %s SYN received, negotiated %+v", sid, r.params)
		synAck := wire.NewSynAck(local.WindowSize, local.MaximumMsgSize, local.Timeout, local.DynamicSize)
		return &synAck, Continue, nil

	case wire.FlagAck:
		if !r.handshakeComplete && len(r.store.store) == 0 {
			r.handshakeComplete = true
			dlog.Debugf(ctx, "SESS %s handshake ACK received", sid)
			return nil, Continue, nil
		}
		// Data-phase ACKs are sent by us, never legitimately received by
		// us; ignore (spec §4.3/§4.4 only define ACK handling on the
		// Sender side).
		return nil, Continue, nil

	case wire.FlagPush:
		if !r.handshakeComplete {
			dlog.Tracef(ctx, "SESS %s PUSH ignored before handshake completion", sid)
			return nil, Continue, nil
		}
		return r.handlePush(ctx, rec), Continue, nil

	case wire.FlagFin:
		dlog.Debugf(ctx, "SESS %s FIN received", sid)
		finAck := wire.NewFinAck()
		return &finAck, Terminate, nil

	default:
		dlog.Tracef(ctx, "SESS %s ignoring record with flag %q", sid, rec.Flag)
		return nil, Continue, nil
	}
}

func (r *Reassembler) handlePush(ctx context.Context, rec wire.Record) *wire.Record {
	seq := *rec.Sequence
	payload := *rec.Payload
	sid := rdtlog.SessionID(ctx)

	switch {
	case seq == r.store.nextNeeded:
		r.store.store[seq] = payload
		for {
			if _, ok := r.store.store[r.store.nextNeeded]; !ok {
				break
			}
			r.store.nextNeeded++
		}
		if r.metrics != nil {
			r.metrics.SegmentsAccepted.Inc()
		}
	case seq > r.store.nextNeeded:
		r.store.store[seq] = payload
		if r.metrics != nil {
			r.metrics.SegmentsBuffered.Inc()
		}
	default:
		if r.metrics != nil {
			r.metrics.SegmentsDuplicate.Inc()
		}
	}

	ackVal := r.store.nextNeeded - 1
	if ackVal < 0 {
		ackVal = 0
	}

	var newBlockSize *int
	if r.params.DynamicSize && seq%3 == 0 {
		size := 5 + r.rnd.Intn(16) // uniform in the closed range [5, 20]
		newBlockSize = &size
		if r.metrics != nil {
			r.metrics.ResizeRequests.Inc()
		}
		dlog.Debugf(ctx, "SESS %s requesting new segment size %d", sid, size)
	}

	reply := wire.NewAck(ackVal, newBlockSize)
	return &reply
}

// Drain implements the strict form of the Receiver's FIN-drain step
// (spec §9 Open Question): it decodes records from whatever has already
// been buffered (buf) plus whatever arrives on ch, and returns as soon as
// the first ACK record is decoded or the channel closes. Unlike a
// substring match on "ACK", this can never be fooled by an ACK value or
// payload that happens to contain the literal text.
func Drain(ctx context.Context, ch transport.Channel, buf []byte) error {
	for {
		records, residue := wire.Decode(buf)
		buf = residue
		for _, r := range records {
			if r.Flag == wire.FlagAck {
				return nil
			}
		}
		b, err := ch.Recv(ctx, 4096)
		if err != nil {
			if errors.Is(err, transport.ErrChannelClosed) {
				return nil
			}
			return errors.Wrap(err, "receiver: drain")
		}
		if len(b) == 0 {
			return nil
		}
		buf = append(buf, b...)
	}
}
