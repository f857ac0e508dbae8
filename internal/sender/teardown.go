package sender

import (
	"context"

	"github.com/datawire/dlib/dlog"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"reliant/internal/rdtlog"
	"reliant/internal/transport"
	"reliant/internal/wire"
)

// Teardown performs the Sender's half of the graceful shutdown (spec
// §4.5): send FIN, await FIN/ACK, send the final ACK{ack:0}, close the
// channel. buf carries any bytes already read past the data phase (the
// Framer's own residue) so the FIN/ACK wait doesn't lose pipelined bytes.
// Either the FIN/ACK wait failing or the subsequent close failing is
// reported; if both fail, both causes are returned together.
func Teardown(ctx context.Context, ch transport.Channel, buf []byte) error {
	sid := rdtlog.SessionID(ctx)
	dlog.Debugf(ctx, "SESS %s sending FIN", sid)

	finBytes, err := wire.Encode(wire.NewFin())
	if err != nil {
		return errors.Wrap(err, "sender: encode FIN")
	}
	var result *multierror.Error
	if err := ch.SendAll(ctx, finBytes); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "sender: send FIN"))
	} else if _, err := awaitRecord(ctx, ch, &buf, wire.FlagFinAck); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "sender: await FIN/ACK"))
	} else {
		dlog.Debugf(ctx, "SESS %s received FIN/ACK, sending final ACK", sid)
		ackBytes, encErr := wire.Encode(wire.NewAck(0, nil))
		if encErr != nil {
			result = multierror.Append(result, errors.Wrap(encErr, "sender: encode final ACK"))
		} else if err := ch.SendAll(ctx, ackBytes); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "sender: send final ACK"))
		}
	}

	if err := ch.Close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "sender: close channel"))
	}
	if result != nil {
		return result.ErrorOrNil()
	}
	dlog.Debugf(ctx, "SESS %s teardown complete", sid)
	return nil
}
