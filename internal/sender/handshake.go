package sender

import (
	"context"

	"github.com/datawire/dlib/dlog"
	"github.com/pkg/errors"

	"reliant/internal/negotiate"
	"reliant/internal/rdtlog"
	"reliant/internal/transport"
	"reliant/internal/wire"
)

// Handshake performs the Sender's half of the three-way handshake (spec
// §4.2): send SYN, await SYN/ACK, compute the effective parameters, then
// send the closing ACK{ack:0}. It returns the effective parameters and any
// bytes read past the SYN/ACK record so the caller (the Framer) can seed
// its own decode buffer from them instead of discarding them.
func Handshake(ctx context.Context, ch transport.Channel, local negotiate.Params) (negotiate.Params, []byte, error) {
	sid := rdtlog.SessionID(ctx)

	synBytes, err := wire.Encode(wire.NewSyn(local.WindowSize, local.MaximumMsgSize, local.Timeout, local.DynamicSize))
	if err != nil {
		return negotiate.Params{}, nil, errors.Wrap(err, "sender: encode SYN")
	}
	if err := ch.SendAll(ctx, synBytes); err != nil {
		return negotiate.Params{}, nil, errors.Wrap(err, "sender: send SYN")
	}
	dlog.Debugf(ctx, "SESS %s sent SYN %+v", sid, local)

	var buf []byte
	synAck, err := awaitRecord(ctx, ch, &buf, wire.FlagSynAck)
	if err != nil {
		return negotiate.Params{}, nil, errors.Wrap(err, "sender: await SYN/ACK")
	}
	remote := negotiate.Params{
		WindowSize:     *synAck.WindowSize,
		MaximumMsgSize: *synAck.MaximumMsgSize,
		Timeout:        *synAck.Timeout,
		DynamicSize:    *synAck.DynamicSize,
	}
	effective := negotiate.Effective(local, remote)
	dlog.Infof(ctx, "SESS %s negotiated %+v", sid, effective)

	ackBytes, err := wire.Encode(wire.NewAck(0, nil))
	if err != nil {
		return negotiate.Params{}, nil, errors.Wrap(err, "sender: encode handshake ACK")
	}
	if err := ch.SendAll(ctx, ackBytes); err != nil {
		return negotiate.Params{}, nil, errors.Wrap(err, "sender: send handshake ACK")
	}
	return effective, buf, nil
}

// awaitRecord blocks, consuming from ch into *buf, until a record with the
// given flag is decoded. Records of any other kind encountered along the
// way are discarded (per spec §4.2, only the awaited kind matters here).
func awaitRecord(ctx context.Context, ch transport.Channel, buf *[]byte, want wire.Flag) (wire.Record, error) {
	for {
		records, residue := wire.Decode(*buf)
		*buf = residue
		for i, r := range records {
			if r.Flag == want {
				// Hand back records decoded after the awaited one, re-encoded
				// ahead of the residue, so the caller's next decode sees them.
				var rest []byte
				for _, later := range records[i+1:] {
					b, err := wire.Encode(later)
					if err != nil {
						return wire.Record{}, err
					}
					rest = append(rest, b...)
				}
				*buf = append(rest, residue...)
				return r, nil
			}
		}
		b, err := ch.Recv(ctx, 4096)
		if err != nil {
			return wire.Record{}, err
		}
		*buf = append(*buf, b...)
	}
}
