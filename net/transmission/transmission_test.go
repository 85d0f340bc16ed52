package transmission

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/flukkyy/libcoap/message"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time {
	return c.now
}

func (c *manualClock) Advance(d time.Duration) time.Time {
	c.now = c.now.Add(d)
	return c.now
}

var testRemote = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5683}

func newTestQueue(clock *manualClock, randomFactor float64) *Queue {
	return New(Config{
		AcknowledgeTimeout: 2 * time.Second,
		MaxRetransmit:      4,
		RandomFactor:       randomFactor,
		Clock:              clock,
	})
}

func TestQueueRetransmitSchedule(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	q := newTestQueue(clock, 0)
	start := clock.Now()
	q.Push(1, message.Token{1}, []byte{0x40, 0x01, 0x00, 0x01}, testRemote)

	var sentAt []time.Duration
	var failedAt time.Duration
	for i := 0; i < 100 && q.Len() > 0; i++ {
		deadline, ok := q.NextDeadline()
		require.True(t, ok)
		clock.now = deadline
		failed, err := q.CheckExpirations(clock.Now(), func(e *Entry) error {
			require.Equal(t, testRemote, e.Remote)
			sentAt = append(sentAt, clock.Now().Sub(start))
			return nil
		})
		require.NoError(t, err)
		if len(failed) > 0 {
			require.Len(t, failed, 1)
			require.Equal(t, uint32(4), failed[0].Retransmissions())
			failedAt = clock.Now().Sub(start)
		}
	}
	require.Equal(t, []time.Duration{2 * time.Second, 6 * time.Second, 14 * time.Second, 30 * time.Second}, sentAt)
	require.Equal(t, 62*time.Second, failedAt)
	_, ok := q.NextDeadline()
	require.False(t, ok)
}

func TestQueueRetransmitJitter(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	q := newTestQueue(clock, 0.5)
	start := clock.Now()
	q.Push(1, nil, nil, testRemote)

	prev := time.Duration(0)
	interval := 2 * time.Second
	var first time.Duration
	for n := 0; n < 5; n++ {
		deadline, ok := q.NextDeadline()
		require.True(t, ok)
		got := deadline.Sub(start) - prev
		require.GreaterOrEqual(t, got, interval)
		require.LessOrEqual(t, got, interval*3/2)
		if n == 0 {
			first = got
		} else {
			// after the first timeout the interval doubles exactly
			require.Equal(t, first<<n, got)
		}
		prev = deadline.Sub(start)
		interval *= 2
		clock.now = deadline
		_, err := q.CheckExpirations(clock.Now(), func(*Entry) error { return nil })
		require.NoError(t, err)
	}
	require.Equal(t, 0, q.Len())
}

func TestQueueFirstTimeoutNotBeforeAckTimeout(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	q := newTestQueue(clock, 0.5)
	for i := 0; i < 2000; i++ {
		e := q.Push(int32(i), nil, nil, testRemote)
		got := e.Deadline().Sub(clock.Now())
		require.GreaterOrEqual(t, got, 2*time.Second)
		require.LessOrEqual(t, got, 3*time.Second)
	}
}

func TestQueueNotDueYet(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	q := newTestQueue(clock, 0)
	q.Push(1, nil, nil, testRemote)
	failed, err := q.CheckExpirations(clock.Advance(time.Second), func(*Entry) error {
		require.Fail(t, "unexpected retransmission")
		return nil
	})
	require.NoError(t, err)
	require.Empty(t, failed)
	require.Equal(t, 1, q.Len())
}

func TestQueueOrdersByDeadline(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	q := newTestQueue(clock, 0)
	q.Push(1, nil, nil, testRemote)
	clock.Advance(time.Second)
	q.Push(2, nil, nil, testRemote)

	deadline, ok := q.NextDeadline()
	require.True(t, ok)
	require.Equal(t, time.Unix(2, 0), deadline)

	var mids []int32
	_, err := q.CheckExpirations(clock.Advance(2*time.Second), func(e *Entry) error {
		mids = append(mids, e.MessageID)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int32{1, 2}, mids)

	// 1 is rescheduled to 6s, 2 to 7s
	deadline, ok = q.NextDeadline()
	require.True(t, ok)
	require.Equal(t, time.Unix(6, 0), deadline)
}

func TestQueueResolve(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	q := newTestQueue(clock, 0)
	q.Push(1, message.Token{0xa}, nil, testRemote)
	q.Push(2, message.Token{0xb}, nil, testRemote)
	q.Push(3, message.Token{0xc}, nil, testRemote)

	e, ok := q.ResolveMID(2)
	require.True(t, ok)
	require.Equal(t, int32(2), e.MessageID)
	_, ok = q.ResolveMID(2)
	require.False(t, ok)

	e, ok = q.ResolveToken(message.Token{0xc})
	require.True(t, ok)
	require.Equal(t, int32(3), e.MessageID)
	_, ok = q.ResolveToken(message.Token{0xd})
	require.False(t, ok)

	require.Equal(t, 1, q.Len())
	q.Clear()
	require.Equal(t, 0, q.Len())
}

func TestQueueWriteError(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	q := newTestQueue(clock, 0)
	q.Push(1, nil, nil, testRemote)
	errWrite := errors.New("network unreachable")
	failed, err := q.CheckExpirations(clock.Advance(2*time.Second), func(*Entry) error {
		return errWrite
	})
	require.ErrorIs(t, err, errWrite)
	require.Empty(t, failed)
	deadline, ok := q.NextDeadline()
	require.True(t, ok)
	require.Equal(t, time.Unix(6, 0), deadline)
}

func TestQueueNoRetransmit(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	q := New(Config{AcknowledgeTimeout: time.Second, Clock: clock})
	q.Push(1, nil, nil, testRemote)
	failed, err := q.CheckExpirations(clock.Advance(time.Second), func(*Entry) error {
		require.Fail(t, "unexpected retransmission")
		return nil
	})
	require.NoError(t, err)
	require.Len(t, failed, 1)
}

func TestQueueLookup(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	q := newTestQueue(clock, 0)
	q.Push(7, message.Token{0x01}, nil, testRemote)
	e, ok := q.Lookup(7)
	require.True(t, ok)
	require.Equal(t, message.Token{0x01}, e.Token)
	require.Equal(t, 1, q.Len())
	_, ok = q.Lookup(8)
	require.False(t, ok)
}
