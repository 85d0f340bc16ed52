package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/flukkyy/libcoap/message"
	"github.com/flukkyy/libcoap/message/codes"
	"github.com/flukkyy/libcoap/net/blockwise"
	"github.com/flukkyy/libcoap/net/transmission"
	"github.com/flukkyy/libcoap/udp/coder"
	"github.com/patrickmn/go-cache"
	"go.uber.org/atomic"
)

const (
	errFmtWriteRequest  = "cannot write request: %w"
	errFmtWriteResponse = "cannot write response: %w"
)

// Transport sends and receives datagrams.
type Transport interface {
	WriteWithContext(ctx context.Context, raddr *net.UDPAddr, buffer []byte) error
	ReadWithContext(ctx context.Context, buffer []byte) (int, *net.UDPAddr, error)
}

// exchange is the state of the single request issued by the client,
// including its block-wise continuations and observe notifications.
type exchange struct {
	request  message.Message
	transfer *blockwise.Transfer
	observe  bool
	started  time.Time

	// notification is set when the first block of the current response
	// carries an Observe option.
	notification bool
	maxAge       time.Duration
	hasMaxAge    bool

	nonDeadline  time.Time
	observeUntil time.Time
	delivered    int

	done bool
	err  error
}

// Client drives one request/response exchange with a remote endpoint.
// Its methods other than Run are not safe for concurrent use.
type Client struct {
	cfg              Config
	conn             Transport
	remote           *net.UDPAddr
	sink             io.Writer
	coder            *coder.Coder
	queue            *transmission.Queue
	responseMsgCache *cache.Cache
	exchange         *exchange
	running          atomic.Bool
}

// New creates a client sending requests to remote. Bodies of completed
// responses are written to sink.
func New(conn Transport, remote *net.UDPAddr, sink io.Writer, opts ...Option) *Client {
	cfg := DefaultConfig
	for _, o := range opts {
		o.UDPClientApply(&cfg)
	}
	if cfg.Errors == nil {
		cfg.Errors = func(error) {
			// ignore error
		}
	}
	if cfg.GetMID == nil {
		cfg.GetMID = message.GetMID
	}
	if cfg.GetToken == nil {
		cfg.GetToken = message.GetToken
	}
	if cfg.Ctx == nil {
		cfg.Ctx = context.Background()
	}
	if cfg.Clock == nil {
		cfg.Clock = DefaultConfig.Clock
	}
	if cfg.ExchangeLifetime <= 0 {
		cfg.ExchangeLifetime = ExchangeLifetime
	}
	if cfg.TransmissionNonLifetime <= 0 {
		cfg.TransmissionNonLifetime = NonLifetime
	}
	if sink == nil {
		sink = io.Discard
	}
	return &Client{
		cfg:    cfg,
		conn:   conn,
		remote: remote,
		sink:   sink,
		coder:  coder.DefaultCoder,
		queue: transmission.New(transmission.Config{
			AcknowledgeTimeout: cfg.TransmissionAcknowledgeTimeout,
			MaxRetransmit:      cfg.TransmissionMaxRetransmit,
			RandomFactor:       cfg.TransmissionRandomFactor,
			Clock:              cfg.Clock,
		}),
		responseMsgCache: cache.New(cfg.ExchangeLifetime, 0),
	}
}

// Request describes the request built by NewRequest.
type Request struct {
	Method         codes.Code
	URI            string
	NonConfirmable bool
	// Token is generated when empty.
	Token         message.Token
	ContentFormat *message.MediaType
	Accept        []message.MediaType
	Payload       []byte
	// Observe registers an observation.
	Observe bool
	// BlockSZX proposes the block size of the response.
	BlockSZX *blockwise.SZX
	// Options are added to the options derived from the URI.
	Options message.Options
}

// NewRequest builds the request message. Message ID is assigned when the
// message is sent.
func (c *Client) NewRequest(r Request) (message.Message, error) {
	if !r.Method.IsRequest() {
		return message.Message{}, fmt.Errorf("%w: %v", ErrInvalidMethod, r.Method)
	}
	opts, err := message.BuildURIOptions(r.URI, c.cfg.Proxy != "")
	if err != nil {
		return message.Message{}, err
	}
	for _, o := range r.Options {
		opts = opts.Add(o)
	}
	if r.ContentFormat != nil {
		opts = opts.SetContentFormat(*r.ContentFormat)
	}
	for _, a := range r.Accept {
		opts = opts.AddUint32(message.Accept, uint32(a))
	}
	if r.Observe {
		opts = opts.SetUint32(message.Observe, 0)
	}
	if r.BlockSZX != nil && c.cfg.BlockwiseEnable {
		v, errB := blockwise.EncodeBlockOption(*r.BlockSZX, 0, false)
		if errB != nil {
			return message.Message{}, fmt.Errorf("cannot encode block option: %w", errB)
		}
		opts = opts.SetUint32(message.Block2, v)
	}
	token := r.Token
	if len(token) == 0 {
		token, err = c.cfg.GetToken()
		if err != nil {
			return message.Message{}, fmt.Errorf("cannot get token: %w", err)
		}
	}
	if len(token) > message.MaxTokenSize {
		return message.Message{}, message.ErrInvalidTokenLen
	}
	typ := message.Confirmable
	if r.NonConfirmable {
		typ = message.NonConfirmable
	}
	msg := message.Message{
		Code:    r.Method,
		Token:   token,
		Options: opts,
		Payload: r.Payload,
		Type:    typ,
	}
	size, err := c.coder.Size(msg)
	if err != nil {
		return message.Message{}, err
	}
	if c.cfg.MaxMessageSize > 0 && size > int(c.cfg.MaxMessageSize) {
		return message.Message{}, fmt.Errorf("%w: %v bytes exceeds %v", coder.ErrMessageTooLarge, size, c.cfg.MaxMessageSize)
	}
	return msg, nil
}

// Start sends req and makes it the exchange of the client.
func (c *Client) Start(ctx context.Context, req message.Message) error {
	if c.exchange != nil && !c.exchange.done {
		return ErrExchangeInProgress
	}
	c.exchange = &exchange{
		request:  req,
		transfer: blockwise.NewTransfer(c.cfg.BlockwiseSZX),
		observe:  req.Options.HasOption(message.Observe),
		started:  c.cfg.Clock.Now(),
	}
	if err := c.send(ctx, req); err != nil {
		c.finish(err)
		return err
	}
	return nil
}

// send assigns a new message ID to req and writes it. Confirmable requests
// are queued for retransmission before the write, so a failed write is
// retried.
func (c *Client) send(ctx context.Context, req message.Message) error {
	req.MessageID = c.cfg.GetMID()
	data, err := c.coder.Marshal(req)
	if err != nil {
		return fmt.Errorf("cannot encode request: %w", err)
	}
	if len(data) > int(c.cfg.MaxMessageSize) && c.cfg.MaxMessageSize > 0 {
		return fmt.Errorf("%w: %v bytes exceeds %v", coder.ErrMessageTooLarge, len(data), c.cfg.MaxMessageSize)
	}
	if req.Type == message.Confirmable {
		c.queue.Push(req.MessageID, req.Token, data, c.remote)
	} else if c.exchange != nil {
		c.exchange.nonDeadline = c.cfg.Clock.Now().Add(c.cfg.TransmissionNonLifetime)
	}
	if err = c.conn.WriteWithContext(ctx, c.remote, data); err != nil {
		return fmt.Errorf(errFmtWriteRequest, err)
	}
	return nil
}

func responseMsgCacheID(from *net.UDPAddr, mid int32) string {
	return "resp-" + from.String() + "-" + strconv.Itoa(int(mid))
}

// reply answers a message received from the peer and remembers the answer
// for duplicates of a confirmable message.
func (c *Client) reply(ctx context.Context, m *message.Message, from *net.UDPAddr, resp message.Message) {
	resp.MessageID = m.MessageID
	data, err := c.coder.Marshal(resp)
	if err != nil {
		c.cfg.Errors(fmt.Errorf(errFmtWriteResponse, err))
		return
	}
	if m.Type == message.Confirmable {
		c.responseMsgCache.SetDefault(responseMsgCacheID(from, m.MessageID), data)
	}
	if err = c.conn.WriteWithContext(ctx, from, data); err != nil {
		c.cfg.Errors(fmt.Errorf(errFmtWriteResponse, err))
	}
}

// acknowledge sends an empty ACK for a confirmable message.
func (c *Client) acknowledge(ctx context.Context, m *message.Message, from *net.UDPAddr) {
	if m.Type != message.Confirmable {
		return
	}
	c.reply(ctx, m, from, message.Message{Type: message.Acknowledgement, Code: codes.Empty})
}

func (c *Client) reset(ctx context.Context, m *message.Message, from *net.UDPAddr) {
	c.reply(ctx, m, from, message.Message{Type: message.Reset, Code: codes.Empty})
}

// finish completes the exchange and drops its pending requests.
func (c *Client) finish(err error) {
	ex := c.exchange
	if ex == nil || ex.done {
		return
	}
	ex.done = true
	ex.err = err
	for {
		if _, ok := c.queue.ResolveToken(ex.request.Token); !ok {
			break
		}
	}
}

// Done reports whether the run loop may terminate.
func (c *Client) Done() bool {
	return c.exchange == nil || c.exchange.done
}

// Err returns the result of a finished exchange.
func (c *Client) Err() error {
	if c.exchange == nil {
		return ErrNoExchange
	}
	return c.exchange.err
}

// NextDeadline returns when CheckExpirations has to be called next.
func (c *Client) NextDeadline() (time.Time, bool) {
	deadline, ok := c.queue.NextDeadline()
	ex := c.exchange
	if ex == nil || ex.done {
		return deadline, ok
	}
	for _, d := range []time.Time{ex.nonDeadline, ex.observeUntil} {
		if d.IsZero() {
			continue
		}
		if !ok || d.Before(deadline) {
			deadline = d
			ok = true
		}
	}
	return deadline, ok
}

// CheckExpirations retransmits due requests and fails or ends the exchange
// when its time is up.
func (c *Client) CheckExpirations(ctx context.Context, now time.Time) {
	c.responseMsgCache.DeleteExpired()
	failed, err := c.queue.CheckExpirations(now, func(e *transmission.Entry) error {
		return c.conn.WriteWithContext(ctx, c.remote, e.Data)
	})
	if err != nil {
		c.cfg.Errors(fmt.Errorf(errFmtWriteRequest, err))
	}
	ex := c.exchange
	for _, e := range failed {
		errR := fmt.Errorf("%w: message id %v", transmission.ErrRetryExhausted, e.MessageID)
		if ex != nil && !ex.done && bytes.Equal(e.Token, ex.request.Token) {
			c.finish(errR)
			continue
		}
		c.cfg.Errors(errR)
	}
	if ex == nil || ex.done {
		return
	}
	if !ex.nonDeadline.IsZero() && !now.Before(ex.nonDeadline) {
		c.finish(fmt.Errorf("%w: within %v", ErrTimeout, c.cfg.TransmissionNonLifetime))
		return
	}
	if !ex.observeUntil.IsZero() && !now.Before(ex.observeUntil) {
		c.finish(nil)
	}
}

// HandleDatagram decodes and dispatches one received datagram. Malformed
// datagrams are reported to the Errors callback and dropped.
func (c *Client) HandleDatagram(ctx context.Context, data []byte, from *net.UDPAddr) {
	if c.cfg.MaxMessageSize > 0 && len(data) > int(c.cfg.MaxMessageSize) {
		c.cfg.Errors(fmt.Errorf("dropped datagram from %v: %w: %v bytes", from, coder.ErrMessageTooLarge, len(data)))
		return
	}
	var m message.Message
	if _, err := c.coder.Decode(data, &m); err != nil {
		c.cfg.Errors(fmt.Errorf("dropped datagram from %v: cannot decode message: %w", from, err))
		return
	}
	c.handleMessage(ctx, &m, from)
}
