package receiver

import (
	"context"

	"github.com/datawire/dlib/dlog"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"reliant/internal/rdtlog"
	"reliant/internal/transport"
)

// AwaitTeardown performs the Receiver's remaining half of the graceful
// shutdown (spec §4.5) after Serve has already replied FIN/ACK: drain
// bytes until the final ACK is decoded (strict form, see Drain), then
// close the channel. buf is Serve's returned residue.
func AwaitTeardown(ctx context.Context, ch transport.Channel, buf []byte) error {
	sid := rdtlog.SessionID(ctx)

	var result *multierror.Error
	if err := Drain(ctx, ch, buf); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "receiver: drain final ACK"))
	}
	if err := ch.Close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "receiver: close channel"))
	}
	if result != nil {
		return result.ErrorOrNil()
	}
	dlog.Debugf(ctx, "SESS %s teardown complete", sid)
	return nil
}
