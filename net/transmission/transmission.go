// Package transmission keeps confirmable messages until they are
// acknowledged, retransmitting them with exponential backoff.
package transmission

import (
	"bytes"
	"container/heap"
	"errors"
	"math"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flukkyy/libcoap/message"
	"github.com/flukkyy/libcoap/pkg/rand"
)

var ErrRetryExhausted = errors.New("retransmission limit reached")

const (
	DefaultAcknowledgeTimeout = 2 * time.Second
	DefaultMaxRetransmit      = 4
)

// Clock provides the current time. backoff.SystemClock is used by default.
type Clock = backoff.Clock

type Config struct {
	// AcknowledgeTimeout is the interval before the first retransmission.
	// Every following interval doubles.
	AcknowledgeTimeout time.Duration
	MaxRetransmit      uint32
	// RandomFactor bounds the jitter of the first interval, which is picked
	// from [AcknowledgeTimeout, AcknowledgeTimeout*(1+RandomFactor)].
	// Following intervals double exactly.
	RandomFactor float64
	Clock        Clock
}

// Entry is a confirmable message waiting for its acknowledgement.
type Entry struct {
	MessageID int32
	Token     message.Token
	Data      []byte
	Remote    net.Addr

	deadline   time.Time
	retransmit uint32
	backoff    backoff.BackOff
	index      int
}

// Deadline of the next retransmission or of the failure.
func (e *Entry) Deadline() time.Time {
	return e.deadline
}

// Retransmissions returns how many times the message was resent.
func (e *Entry) Retransmissions() uint32 {
	return e.retransmit
}

type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x interface{}) {
	e := x.(*Entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue orders pending confirmable messages by deadline. It is not safe for
// concurrent use; it is owned by the client run loop.
type Queue struct {
	cfg     Config
	entries entryHeap
	random  *rand.Rand
}

func New(cfg Config) *Queue {
	if cfg.AcknowledgeTimeout <= 0 {
		cfg.AcknowledgeTimeout = DefaultAcknowledgeTimeout
	}
	if cfg.RandomFactor < 0 {
		cfg.RandomFactor = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = backoff.SystemClock
	}
	return &Queue{
		cfg:    cfg,
		random: rand.NewRand(time.Now().UnixNano()),
	}
}

// initialInterval draws the first timeout of a message.
func (q *Queue) initialInterval() time.Duration {
	d := q.cfg.AcknowledgeTimeout
	if q.cfg.RandomFactor == 0 {
		return d
	}
	return d + time.Duration(float64(d)*q.cfg.RandomFactor*q.random.Float64())
}

func (q *Queue) newBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     q.initialInterval(),
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Duration(math.MaxInt64),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               q.cfg.Clock,
	}
	b.Reset()
	// the last interval is the wait for an acknowledgement of the final retransmission
	return backoff.WithMaxRetries(b, uint64(q.cfg.MaxRetransmit)+1)
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Push schedules a message that was just sent for the first time.
func (q *Queue) Push(mid int32, token message.Token, data []byte, remote net.Addr) *Entry {
	e := &Entry{
		MessageID: mid,
		Token:     token,
		Data:      data,
		Remote:    remote,
		backoff:   q.newBackOff(),
	}
	e.deadline = q.cfg.Clock.Now().Add(e.backoff.NextBackOff())
	heap.Push(&q.entries, e)
	return e
}

// NextDeadline returns the earliest deadline of all pending entries.
func (q *Queue) NextDeadline() (time.Time, bool) {
	if len(q.entries) == 0 {
		return time.Time{}, false
	}
	return q.entries[0].deadline, true
}

// CheckExpirations resends every entry whose deadline elapsed by now and
// removes entries which exhausted all retransmissions. The removed entries
// are returned. A write error does not change the schedule of the entry.
func (q *Queue) CheckExpirations(now time.Time, write func(e *Entry) error) (failed []*Entry, err error) {
	var errs []error
	for len(q.entries) > 0 {
		e := q.entries[0]
		if now.Before(e.deadline) {
			break
		}
		if e.retransmit >= q.cfg.MaxRetransmit {
			heap.Pop(&q.entries)
			failed = append(failed, e)
			continue
		}
		d := e.backoff.NextBackOff()
		if d == backoff.Stop {
			heap.Pop(&q.entries)
			failed = append(failed, e)
			continue
		}
		e.retransmit++
		e.deadline = e.deadline.Add(d)
		heap.Fix(&q.entries, e.index)
		if errW := write(e); errW != nil {
			errs = append(errs, errW)
		}
	}
	return failed, errors.Join(errs...)
}

func (q *Queue) remove(e *Entry) {
	heap.Remove(&q.entries, e.index)
}

// Lookup returns the pending entry with the message id.
func (q *Queue) Lookup(mid int32) (*Entry, bool) {
	for _, e := range q.entries {
		if e.MessageID == mid {
			return e, true
		}
	}
	return nil, false
}

// ResolveMID removes the entry of an acknowledged or reset message.
func (q *Queue) ResolveMID(mid int32) (*Entry, bool) {
	for _, e := range q.entries {
		if e.MessageID == mid {
			q.remove(e)
			return e, true
		}
	}
	return nil, false
}

// ResolveToken removes the entry of a request answered by a response with
// the same token.
func (q *Queue) ResolveToken(token message.Token) (*Entry, bool) {
	for _, e := range q.entries {
		if bytes.Equal(e.Token, token) {
			q.remove(e)
			return e, true
		}
	}
	return nil, false
}

// Clear drops all pending entries.
func (q *Queue) Clear() {
	q.entries = nil
}
