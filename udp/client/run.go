package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/flukkyy/libcoap/message"
	"golang.org/x/sync/errgroup"
)

// maxDatagramSize is the largest UDP payload.
const maxDatagramSize = 65535

type datagram struct {
	data []byte
	from *net.UDPAddr
}

// Run sends req and processes received datagrams and retransmissions until
// the exchange is finished or ctx is done. It returns the result of the
// exchange.
func (c *Client) Run(ctx context.Context, req message.Message) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrClientRunning
	}
	defer c.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// the configured context bounds every run of the client
	stop := context.AfterFunc(c.cfg.Ctx, cancel)
	defer stop()
	if err := c.Start(ctx, req); err != nil {
		return err
	}

	datagrams := make(chan datagram, 16)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.readLoop(gctx, datagrams)
	})
	g.Go(func() error {
		// unblocks the reader
		defer cancel()
		return c.loop(gctx, datagrams)
	})
	return g.Wait()
}

func (c *Client) readLoop(ctx context.Context, datagrams chan<- datagram) error {
	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := c.conn.ReadWithContext(ctx, buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("cannot read datagram: %w", err)
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case datagrams <- datagram{data: data, from: from}:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) loop(ctx context.Context, datagrams <-chan datagram) error {
	for {
		c.CheckExpirations(ctx, c.cfg.Clock.Now())
		if c.Done() {
			return c.Err()
		}
		var timeout <-chan time.Time
		var timer *time.Timer
		if deadline, ok := c.NextDeadline(); ok {
			timer = time.NewTimer(deadline.Sub(c.cfg.Clock.Now()))
			timeout = timer.C
		}
		select {
		case <-ctx.Done():
			stopTimer(timer)
			return ctx.Err()
		case <-timeout:
		case d := <-datagrams:
			stopTimer(timer)
			c.HandleDatagram(ctx, d.data, d.from)
			c.drain(ctx, datagrams)
		}
	}
}

// drain dispatches the datagrams which are already received.
func (c *Client) drain(ctx context.Context, datagrams <-chan datagram) {
	for !c.Done() {
		select {
		case d := <-datagrams:
			c.HandleDatagram(ctx, d.data, d.from)
		default:
			return
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
