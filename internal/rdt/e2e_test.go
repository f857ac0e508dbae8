// Package rdt wires a sender.Framer and a receiver.Reassembler together
// over a real loopback TCP socket to exercise the full session lifecycle —
// handshake, framing/reassembly, teardown — end to end (spec §8's
// round-trip law). A loopback socket is used instead of net.Pipe because
// net.Pipe is fully synchronous (unbuffered): a window deep enough to have
// more than one segment in flight would deadlock the two goroutines on a
// simultaneous PUSH-write/ACK-write pair.
package rdt

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliant/internal/negotiate"
	"reliant/internal/receiver"
	"reliant/internal/sender"
	"reliant/internal/transport"
)

func dialLoopback(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptDone := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		acceptDone <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server = <-acceptDone
	require.NotNil(t, server)
	return client, server
}

func TestEndToEndRoundTrip(t *testing.T) {
	clientConn, serverConn := dialLoopback(t)
	defer clientConn.Close()
	defer serverConn.Close()

	senderCh := transport.NewConn(clientConn)
	receiverCh := transport.NewConn(serverConn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := "THEQUICKBROWNFOXJUMPSOVERTHELAZYDOG"
	localSender := negotiate.Params{WindowSize: 4, MaximumMsgSize: 6, Timeout: 2000, DynamicSize: true}
	localReceiver := negotiate.Params{WindowSize: 3, MaximumMsgSize: 6, Timeout: 2000, DynamicSize: true}

	serverDone := make(chan error, 1)
	go func() {
		r := receiver.NewReassembler(localReceiver)
		residue, err := receiver.Serve(ctx, receiverCh, r)
		if err != nil {
			serverDone <- err
			return
		}
		if err := receiver.AwaitTeardown(ctx, receiverCh, residue); err != nil {
			serverDone <- err
			return
		}
		if r.Delivered() != payload {
			t.Errorf("delivered payload mismatch: got %q want %q", r.Delivered(), payload)
		}
		serverDone <- nil
	}()

	clientDone := make(chan error, 1)
	go func() {
		effective, residue, err := sender.Handshake(ctx, senderCh, localSender)
		if err != nil {
			clientDone <- err
			return
		}
		f := sender.NewFramer(senderCh, payload, effective, sender.WithInitialBuffer(residue))
		if err := f.Run(ctx); err != nil {
			clientDone <- err
			return
		}
		clientDone <- sender.Teardown(ctx, senderCh, nil)
	}()

	require.NoError(t, <-clientDone)
	require.NoError(t, <-serverDone)
}

func TestEndToEndEmptyPayload(t *testing.T) {
	clientConn, serverConn := dialLoopback(t)
	defer clientConn.Close()
	defer serverConn.Close()

	senderCh := transport.NewConn(clientConn)
	receiverCh := transport.NewConn(serverConn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	local := negotiate.Params{WindowSize: 4, MaximumMsgSize: 5, Timeout: 2000, DynamicSize: false}

	serverDone := make(chan error, 1)
	go func() {
		r := receiver.NewReassembler(local)
		residue, err := receiver.Serve(ctx, receiverCh, r)
		if err != nil {
			serverDone <- err
			return
		}
		err = receiver.AwaitTeardown(ctx, receiverCh, residue)
		assert.Empty(t, r.Delivered())
		serverDone <- err
	}()

	clientDone := make(chan error, 1)
	go func() {
		effective, residue, err := sender.Handshake(ctx, senderCh, local)
		if err != nil {
			clientDone <- err
			return
		}
		f := sender.NewFramer(senderCh, "", effective, sender.WithInitialBuffer(residue))
		if err := f.Run(ctx); err != nil {
			clientDone <- err
			return
		}
		clientDone <- sender.Teardown(ctx, senderCh, nil)
	}()

	require.NoError(t, <-clientDone)
	require.NoError(t, <-serverDone)
}
