package receiver

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliant/internal/negotiate"
	"reliant/internal/testutil"
	"reliant/internal/wire"
)

func TestHandleRecordSynNegotiatesAndReplies(t *testing.T) {
	local := negotiate.Params{WindowSize: 2, MaximumMsgSize: 10, Timeout: 500, DynamicSize: true}
	r := NewReassembler(local)

	syn := wire.NewSyn(4, 5, 1000, false)
	reply, action, err := r.HandleRecord(context.Background(), syn)
	require.NoError(t, err)
	assert.Equal(t, Continue, action)
	require.NotNil(t, reply)
	assert.Equal(t, wire.FlagSynAck, reply.Flag)

	want := negotiate.Effective(negotiate.Params{WindowSize: 4, MaximumMsgSize: 5, Timeout: 1000, DynamicSize: false}, local)
	assert.Equal(t, want, r.Params())
}

func TestHandleRecordSynEchoesWhenNoLocalProposal(t *testing.T) {
	r := NewReassembler(negotiate.Params{})

	syn := wire.NewSyn(4, 5, 1000, true)
	reply, _, err := r.HandleRecord(context.Background(), syn)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, 4, *reply.WindowSize)
	assert.Equal(t, 5, *reply.MaximumMsgSize)
	assert.Equal(t, 1000, *reply.Timeout)
	assert.True(t, *reply.DynamicSize)
}

func TestHandshakeAckThenDataAcksAreDistinguished(t *testing.T) {
	r := NewReassembler(negotiate.Params{WindowSize: 4, MaximumMsgSize: 5, Timeout: 500})
	ctx := context.Background()

	_, _, err := r.HandleRecord(ctx, wire.NewSyn(4, 5, 500, false))
	require.NoError(t, err)

	_, action, err := r.HandleRecord(ctx, wire.NewAck(0, nil))
	require.NoError(t, err)
	assert.Equal(t, Continue, action)
	assert.True(t, r.handshakeComplete)

	reply, action, err := r.HandleRecord(ctx, wire.NewPush(0, "HELLO"))
	require.NoError(t, err)
	assert.Equal(t, Continue, action)
	require.NotNil(t, reply)
	assert.Equal(t, 0, *reply.Ack)
	assert.Equal(t, "HELLO", r.Delivered())
}

func TestPushIgnoredBeforeHandshakeComplete(t *testing.T) {
	r := NewReassembler(negotiate.Params{WindowSize: 4, MaximumMsgSize: 5, Timeout: 500})
	reply, action, err := r.HandleRecord(context.Background(), wire.NewPush(0, "HELLO"))
	require.NoError(t, err)
	assert.Equal(t, Continue, action)
	assert.Nil(t, reply)
	assert.Empty(t, r.Delivered())
}

func completeHandshake(t *testing.T, r *Reassembler, dynamic bool) {
	t.Helper()
	ctx := context.Background()
	_, _, err := r.HandleRecord(ctx, wire.NewSyn(4, 5, 500, dynamic))
	require.NoError(t, err)
	_, _, err = r.HandleRecord(ctx, wire.NewAck(0, nil))
	require.NoError(t, err)
}

func TestHandlePushOutOfOrderBuffersThenDrains(t *testing.T) {
	r := NewReassembler(negotiate.Params{WindowSize: 4, MaximumMsgSize: 5, Timeout: 500})
	completeHandshake(t, r, false)
	ctx := context.Background()

	reply, _, err := r.HandleRecord(ctx, wire.NewPush(1, "WORLD"))
	require.NoError(t, err)
	assert.Equal(t, 0, *reply.Ack, "next_needed is still 0: ack is clamped to 0, not the buffered segment's sequence")
	assert.Empty(t, r.Delivered())

	reply, _, err = r.HandleRecord(ctx, wire.NewPush(0, "HELLO"))
	require.NoError(t, err)
	assert.Equal(t, 1, *reply.Ack)
	assert.Equal(t, "HELLOWORLD", r.Delivered())
}

func TestHandlePushDuplicateIsIgnoredButAcked(t *testing.T) {
	r := NewReassembler(negotiate.Params{WindowSize: 4, MaximumMsgSize: 5, Timeout: 500})
	completeHandshake(t, r, false)
	ctx := context.Background()

	_, _, err := r.HandleRecord(ctx, wire.NewPush(0, "HELLO"))
	require.NoError(t, err)

	reply, _, err := r.HandleRecord(ctx, wire.NewPush(0, "HELLO"))
	require.NoError(t, err)
	assert.Equal(t, 0, *reply.Ack)
	assert.Equal(t, "HELLO", r.Delivered())
}

func TestHandlePushDynamicResizeTriggersOnEveryThirdSequence(t *testing.T) {
	r := NewReassembler(negotiate.Params{WindowSize: 4, MaximumMsgSize: 5, Timeout: 500, DynamicSize: true}, WithRand(rand.New(rand.NewSource(42))))
	completeHandshake(t, r, true)
	ctx := context.Background()

	reply, _, err := r.HandleRecord(ctx, wire.NewPush(1, "X"))
	require.NoError(t, err)
	assert.Nil(t, reply.NewBlockSize, "sequence 1 is not a multiple of 3")

	reply, _, err = r.HandleRecord(ctx, wire.NewPush(3, "Y"))
	require.NoError(t, err)
	require.NotNil(t, reply.NewBlockSize, "sequence 3 is a multiple of 3")
	assert.GreaterOrEqual(t, *reply.NewBlockSize, 5)
	assert.LessOrEqual(t, *reply.NewBlockSize, 20)
}

func TestHandlePushNoDynamicResizeWhenNegotiatedOff(t *testing.T) {
	r := NewReassembler(negotiate.Params{WindowSize: 4, MaximumMsgSize: 5, Timeout: 500, DynamicSize: false})
	completeHandshake(t, r, false)
	ctx := context.Background()

	reply, _, err := r.HandleRecord(ctx, wire.NewPush(3, "X"))
	require.NoError(t, err)
	assert.Nil(t, reply.NewBlockSize)
}

func TestHandleRecordFinRepliesFinAckAndTerminates(t *testing.T) {
	r := NewReassembler(negotiate.Params{WindowSize: 4, MaximumMsgSize: 5, Timeout: 500})
	completeHandshake(t, r, false)

	reply, action, err := r.HandleRecord(context.Background(), wire.NewFin())
	require.NoError(t, err)
	assert.Equal(t, Terminate, action)
	require.NotNil(t, reply)
	assert.Equal(t, wire.FlagFinAck, reply.Flag)
}

func TestDrainReturnsOnDecodedAck(t *testing.T) {
	b, err := wire.Encode(wire.NewAck(0, nil))
	require.NoError(t, err)

	ch := &testutil.FakeChannel{}
	err = Drain(context.Background(), ch, b)
	require.NoError(t, err)
}
