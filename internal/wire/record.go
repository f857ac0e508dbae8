// Package wire implements the on-the-wire record codec for the reliable
// transfer protocol: a single tagged record type, one line of JSON per
// record, newline terminated.
package wire

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Flag identifies the kind of a Record. There are exactly six.
type Flag string

const (
	FlagSyn    Flag = "SYN"
	FlagSynAck Flag = "SYN/ACK"
	FlagAck    Flag = "ACK"
	FlagPush   Flag = "PUSH"
	FlagFin    Flag = "FIN"
	FlagFinAck Flag = "FIN/ACK"
)

// terminator separates records on the wire.
const terminator = '\n'

// Record is the single wire type for all six record kinds. Kind-specific
// fields are pointers so that "absent" (nil) is distinguishable from the
// zero value — this matters for ACK.NewBlockSize, which is genuinely
// optional, and lets Validate tell a missing handshake field apart from
// one that was merely set to zero.
type Record struct {
	Flag Flag `json:"flag"`

	// SYN / SYN-ACK fields.
	WindowSize     *int  `json:"window_size,omitempty"`
	MaximumMsgSize *int  `json:"maximum_msg_size,omitempty"`
	Timeout        *int  `json:"timeout,omitempty"`
	DynamicSize    *bool `json:"dynamic_size,omitempty"`

	// ACK fields.
	Ack          *int `json:"ack,omitempty"`
	NewBlockSize *int `json:"new_block_size,omitempty"`

	// PUSH fields.
	Sequence *int    `json:"sequence,omitempty"`
	Payload  *string `json:"payload,omitempty"`
}

// ErrUnknownFlag is returned by Validate for a record whose flag isn't one
// of the six known kinds.
var ErrUnknownFlag = errors.New("wire: unknown record flag")

// ErrMissingField is returned by Validate when a record is missing a field
// required for its kind.
var ErrMissingField = errors.New("wire: missing required field")

func intp(v int) *int       { return &v }
func boolp(v bool) *bool    { return &v }
func strp(v string) *string { return &v }

// NewSyn builds a SYN record carrying a proposed parameter set.
func NewSyn(window, maxMsgSize, timeoutMs int, dynamic bool) Record {
	return Record{
		Flag:           FlagSyn,
		WindowSize:     intp(window),
		MaximumMsgSize: intp(maxMsgSize),
		Timeout:        intp(timeoutMs),
		DynamicSize:    boolp(dynamic),
	}
}

// NewSynAck builds a SYN/ACK record carrying the responder's proposal.
func NewSynAck(window, maxMsgSize, timeoutMs int, dynamic bool) Record {
	r := NewSyn(window, maxMsgSize, timeoutMs, dynamic)
	r.Flag = FlagSynAck
	return r
}

// NewAck builds an ACK record. Pass a nil newBlockSize to omit it.
func NewAck(ack int, newBlockSize *int) Record {
	return Record{Flag: FlagAck, Ack: intp(ack), NewBlockSize: newBlockSize}
}

// NewPush builds a PUSH record carrying one segment.
func NewPush(sequence int, payload string) Record {
	return Record{Flag: FlagPush, Sequence: intp(sequence), Payload: strp(payload)}
}

// NewFin builds a FIN record.
func NewFin() Record { return Record{Flag: FlagFin} }

// NewFinAck builds a FIN/ACK record.
func NewFinAck() Record { return Record{Flag: FlagFinAck} }

// Validate reports whether r carries every field required for its Flag.
// An unrecognized flag is ErrUnknownFlag; a recognized flag missing a
// required field is ErrMissingField.
func (r Record) Validate() error {
	switch r.Flag {
	case FlagSyn, FlagSynAck:
		if r.WindowSize == nil || r.MaximumMsgSize == nil || r.Timeout == nil || r.DynamicSize == nil {
			return errors.Wrapf(ErrMissingField, "%s requires window_size, maximum_msg_size, timeout, dynamic_size", r.Flag)
		}
	case FlagAck:
		if r.Ack == nil {
			return errors.Wrapf(ErrMissingField, "%s requires ack", r.Flag)
		}
	case FlagPush:
		if r.Sequence == nil || r.Payload == nil {
			return errors.Wrapf(ErrMissingField, "%s requires sequence, payload", r.Flag)
		}
	case FlagFin, FlagFinAck:
		// no required fields
	default:
		return errors.Wrapf(ErrUnknownFlag, "flag %q", r.Flag)
	}
	return nil
}

// Encode serializes r as one line of JSON followed by the record terminator.
func Encode(r Record) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "wire: encode record")
	}
	b = append(b, terminator)
	return b, nil
}

// Decode scans buf for complete, newline-terminated records. Each complete
// line is parsed independently; a line that fails to parse as JSON, or
// parses but fails Validate, is dropped and scanning continues — per the
// protocol, a malformed record is never fatal. Any trailing, not yet
// newline-terminated bytes are returned as residue, unmodified, for the
// caller to prepend to the next read.
func Decode(buf []byte) (records []Record, residue []byte) {
	start := 0
	for i, b := range buf {
		if b != terminator {
			continue
		}
		line := buf[start:i]
		start = i + 1
		if len(bytesTrimSpace(line)) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if err := rec.Validate(); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if start < len(buf) {
		residue = append(residue, buf[start:]...)
	}
	return records, residue
}

func bytesTrimSpace(b []byte) []byte {
	start := 0
	for start < len(b) && isSpace(b[start]) {
		start++
	}
	end := len(b)
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}
