package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnSendAllAndRecvRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientCh := NewConn(client)
	serverCh := NewConn(server)

	done := make(chan error, 1)
	go func() {
		done <- clientCh.SendAll(context.Background(), []byte("hello"))
	}()

	got, err := serverCh.Recv(context.Background(), 16)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
	require.NoError(t, <-done)
}

func TestConnPollReadableTimesOutWithNoData(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	serverCh := NewConn(server)
	readable, err := serverCh.PollReadable(20 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, readable)
}

func TestConnRecvReportsClosedOnPeerClose(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	serverCh := NewConn(server)
	require.NoError(t, client.Close())

	_, err := serverCh.Recv(context.Background(), 16)
	assert.ErrorIs(t, err, ErrChannelClosed)
}
