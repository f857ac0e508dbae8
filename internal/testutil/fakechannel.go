// Package testutil provides a deterministic, in-memory transport.Channel
// fake shared by the sender and receiver package tests, so each can inject
// drops, duplication, reordering, and closure without a real socket pair.
package testutil

import (
	"context"
	"sync"
	"time"

	"reliant/internal/transport"
)

// FakeChannel is a minimal, goroutine-safe transport.Channel backed by an
// in-memory byte queue. Feed pushes bytes as if the peer had sent them;
// Sent drains what was written via SendAll.
type FakeChannel struct {
	mu     sync.Mutex
	buf    []byte
	sent   [][]byte
	closed bool
}

var _ transport.Channel = (*FakeChannel)(nil)

// Feed appends b to the bytes the next Recv/PollReadable will observe.
func (c *FakeChannel) Feed(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = append(c.buf, b...)
}

// Sent returns, and clears, the records written via SendAll so far.
func (c *FakeChannel) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.sent
	c.sent = nil
	return out
}

// CloseRemote marks the channel as closed by the peer, so the next
// Recv/PollReadable observes transport.ErrChannelClosed.
func (c *FakeChannel) CloseRemote() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *FakeChannel) SendAll(_ context.Context, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := append([]byte(nil), b...)
	c.sent = append(c.sent, cp)
	return nil
}

func (c *FakeChannel) Recv(ctx context.Context, maxBytes int) ([]byte, error) {
	for {
		c.mu.Lock()
		if len(c.buf) > 0 {
			n := maxBytes
			if n > len(c.buf) {
				n = len(c.buf)
			}
			out := append([]byte(nil), c.buf[:n]...)
			c.buf = c.buf[n:]
			c.mu.Unlock()
			return out, nil
		}
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return nil, transport.ErrChannelClosed
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (c *FakeChannel) PollReadable(d time.Duration) (bool, error) {
	deadline := time.Now().Add(d)
	for {
		c.mu.Lock()
		readable := len(c.buf) > 0
		closed := c.closed
		c.mu.Unlock()
		if readable {
			return true, nil
		}
		if closed {
			return false, transport.ErrChannelClosed
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (c *FakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
