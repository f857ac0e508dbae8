// Package negotiate computes the effective NegotiatedParameters shared by
// both endpoints of a session (spec §4.2) and carries the sentinel error
// used when a handshake record is missing a required field.
package negotiate

import "github.com/pkg/errors"

// ErrNegotiationFailure names the failure of a SYN or SYN/ACK record missing
// a field required to compute effective parameters. No function in this
// module returns it: wire.Decode drops such a record, so the handshake
// keeps waiting for a complete one and the channel stays open.
var ErrNegotiationFailure = errors.New("negotiate: missing required handshake field")

// Params is the immutable, post-handshake NegotiatedParameters set shared
// by both sides of a session.
type Params struct {
	WindowSize     int
	MaximumMsgSize int
	Timeout        int
	DynamicSize    bool
}

// Effective computes the agreed parameter set from a local proposal and a
// remote proposal, per spec §4.2: componentwise minimum for the three
// numeric fields, logical AND for DynamicSize. Both sides compute the same
// value independently from the same two proposals.
func Effective(local, remote Params) Params {
	return Params{
		WindowSize:     min(local.WindowSize, remote.WindowSize),
		MaximumMsgSize: min(local.MaximumMsgSize, remote.MaximumMsgSize),
		Timeout:        min(local.Timeout, remote.Timeout),
		DynamicSize:    local.DynamicSize && remote.DynamicSize,
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
