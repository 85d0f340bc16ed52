package client

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/flukkyy/libcoap/message"
	"github.com/flukkyy/libcoap/message/codes"
	"github.com/flukkyy/libcoap/message/status"
	"github.com/flukkyy/libcoap/net/blockwise"
)

// handleDuplicate reports whether m was already received. The answer sent
// to a duplicate confirmable message is sent again.
func (c *Client) handleDuplicate(ctx context.Context, m *message.Message, from *net.UDPAddr) bool {
	if m.Type != message.Confirmable && m.Type != message.NonConfirmable {
		return false
	}
	key := responseMsgCacheID(from, m.MessageID)
	v, ok := c.responseMsgCache.Get(key)
	if !ok {
		c.responseMsgCache.SetDefault(key, []byte(nil))
		return false
	}
	if data, _ := v.([]byte); len(data) > 0 {
		if err := c.conn.WriteWithContext(ctx, from, data); err != nil {
			c.cfg.Errors(fmt.Errorf(errFmtWriteResponse, err))
		}
	}
	return true
}

func (c *Client) activeToken(token message.Token) bool {
	ex := c.exchange
	return ex != nil && !ex.done && bytes.Equal(token, ex.request.Token)
}

func (c *Client) handleReset(m *message.Message) {
	e, ok := c.queue.ResolveMID(m.MessageID)
	if !ok {
		c.cfg.Errors(fmt.Errorf("dropped reset with unknown message id %v", m.MessageID))
		return
	}
	if c.activeToken(e.Token) {
		c.finish(fmt.Errorf("%w: message id %v", ErrReset, m.MessageID))
	}
}

func (c *Client) handleMessage(ctx context.Context, m *message.Message, from *net.UDPAddr) {
	if c.handleDuplicate(ctx, m, from) {
		return
	}
	switch m.Type {
	case message.Reset:
		c.handleReset(m)
		return
	case message.Acknowledgement:
		e, ok := c.queue.Lookup(m.MessageID)
		if !ok {
			c.cfg.Errors(fmt.Errorf("dropped acknowledgement with unknown message id %v", m.MessageID))
			return
		}
		if m.Code != codes.Empty && !bytes.Equal(e.Token, m.Token) {
			// the request stays queued and is retransmitted
			c.cfg.Errors(fmt.Errorf("dropped acknowledgement of message id %v with token %v, expected %v", m.MessageID, message.Token(m.Token), e.Token))
			return
		}
		c.queue.ResolveMID(m.MessageID)
		if m.Code == codes.Empty {
			// separate response follows
			return
		}
	}
	if m.Code == codes.Empty {
		if m.Type == message.Confirmable {
			// ping
			c.reset(ctx, m, from)
		}
		return
	}
	if m.Code.Class() == 0 {
		if m.Type == message.Confirmable {
			c.reply(ctx, m, from, message.Message{
				Type:  message.Acknowledgement,
				Code:  codes.InternalServerError,
				Token: m.Token,
			})
			return
		}
		c.cfg.Errors(fmt.Errorf("dropped request %v from %v", m.Code, from))
		return
	}
	if !c.activeToken(m.Token) {
		c.cfg.Errors(fmt.Errorf("dropped response with unknown token %v", message.Token(m.Token)))
		if m.Type == message.Confirmable {
			c.reset(ctx, m, from)
		}
		return
	}
	// a separate or non-confirmable response answers the pending request
	c.queue.ResolveToken(m.Token)

	if !m.Code.IsSuccess() {
		c.acknowledge(ctx, m, from)
		resp := *m
		resp.Payload = append([]byte(nil), m.Payload...)
		c.finish(status.Error(&resp, nil))
		return
	}
	c.handleSuccess(ctx, m, from)
}

func (c *Client) handleSuccess(ctx context.Context, m *message.Message, from *net.UDPAddr) {
	ex := c.exchange
	if !c.cfg.BlockwiseEnable && m.Options.HasOption(message.Block2) {
		m.Options = m.Options.Clone().Remove(message.Block2)
	}
	hasObserve := m.Options.HasOption(message.Observe)
	t := ex.transfer
	switch t.State() {
	case blockwise.AwaitingBlock:
		if hasObserve {
			// newer notification replaces the unfinished one
			t.Reset()
		}
	case blockwise.Complete, blockwise.Aborted:
		t.Reset()
	}
	if t.State() == blockwise.Idle {
		ex.notification = hasObserve
		ex.hasMaxAge = false
		if maxAge, err := m.Options.GetUint32(message.MaxAge); err == nil {
			ex.maxAge = time.Duration(maxAge) * time.Second
			ex.hasMaxAge = true
		}
	}
	next, done, err := t.Receive(m)
	c.acknowledge(ctx, m, from)
	if err != nil {
		c.finish(fmt.Errorf("cannot process block-wise response: %w", err))
		return
	}
	if !done {
		req, errC := blockwise.ContinuationRequest(ex.request, next)
		if errC != nil {
			c.finish(errC)
			return
		}
		req.Type = ex.request.Type
		if errS := c.send(ctx, req); errS != nil {
			if req.Type != message.Confirmable {
				c.finish(errS)
				return
			}
			c.cfg.Errors(errS)
		}
		return
	}
	if _, err = t.WriteTo(c.sink); err != nil {
		c.finish(err)
		return
	}
	ex.delivered++
	ex.nonDeadline = time.Time{}
	c.checkObserve(ex)
}

// checkObserve ends the exchange unless an observation is alive. The
// observation lasts for ObserveLifetime, shortened to the Max-Age of the
// latest notification.
func (c *Client) checkObserve(ex *exchange) {
	if !ex.observe || !ex.notification || c.cfg.ObserveLifetime <= 0 {
		c.finish(nil)
		return
	}
	now := c.cfg.Clock.Now()
	until := ex.started.Add(c.cfg.ObserveLifetime)
	if ex.hasMaxAge {
		if fresh := now.Add(ex.maxAge); fresh.Before(until) {
			until = fresh
		}
	}
	if !now.Before(until) {
		c.finish(nil)
		return
	}
	ex.observeUntil = until
}
