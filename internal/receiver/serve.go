package receiver

import (
	"context"

	"github.com/datawire/dlib/dlog"
	"github.com/pkg/errors"

	"reliant/internal/rdtlog"
	"reliant/internal/transport"
	"reliant/internal/wire"
)

// Serve runs the Receiver's single blocking-read loop (spec §5): decode as
// many complete records as are buffered, dispatch each through r, reply
// when HandleRecord says to, and stop once a FIN has produced a
// FIN/ACK (Action == Terminate). It returns any undecoded residue so the
// caller can hand it to Drain for the teardown's final-ACK wait.
func Serve(ctx context.Context, ch transport.Channel, r *Reassembler) (residue []byte, err error) {
	sid := rdtlog.SessionID(ctx)
	var buf []byte
	for {
		var records []wire.Record
		records, buf = wire.Decode(buf)
		for _, rec := range records {
			reply, action, herr := r.HandleRecord(ctx, rec)
			if herr != nil {
				return buf, herr
			}
			if reply != nil {
				b, encErr := wire.Encode(*reply)
				if encErr != nil {
					return buf, errors.Wrap(encErr, "receiver: encode reply")
				}
				if sendErr := ch.SendAll(ctx, b); sendErr != nil {
					return buf, errors.Wrap(sendErr, "receiver: send reply")
				}
			}
			if action == Terminate {
				dlog.Debugf(ctx, "SESS %s serve loop terminating", sid)
				return buf, nil
			}
		}

		b, recvErr := ch.Recv(ctx, 4096)
		if recvErr != nil {
			return buf, errors.Wrap(recvErr, "receiver: recv")
		}
		if len(b) == 0 {
			continue
		}
		buf = append(buf, b...)
	}
}
