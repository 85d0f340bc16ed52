package options

import (
	"time"

	"github.com/flukkyy/libcoap/net/transmission"
	udpClient "github.com/flukkyy/libcoap/udp/client"
)

// TransmissionOpt transmission options.
type TransmissionOpt struct {
	transmissionAcknowledgeTimeout time.Duration
	transmissionMaxRetransmit      uint32
	transmissionRandomFactor       float64
}

func (o TransmissionOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.TransmissionAcknowledgeTimeout = o.transmissionAcknowledgeTimeout
	cfg.TransmissionMaxRetransmit = o.transmissionMaxRetransmit
	cfg.TransmissionRandomFactor = o.transmissionRandomFactor
}

// WithTransmission set options for (re)transmission for Confirmable message-s.
func WithTransmission(transmissionAcknowledgeTimeout time.Duration,
	transmissionMaxRetransmit uint32,
	transmissionRandomFactor float64,
) TransmissionOpt {
	return TransmissionOpt{
		transmissionAcknowledgeTimeout: transmissionAcknowledgeTimeout,
		transmissionMaxRetransmit:      transmissionMaxRetransmit,
		transmissionRandomFactor:       transmissionRandomFactor,
	}
}

// LifetimeOpt exchange lifetime options.
type LifetimeOpt struct {
	nonLifetime      time.Duration
	exchangeLifetime time.Duration
}

func (o LifetimeOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.TransmissionNonLifetime = o.nonLifetime
	cfg.ExchangeLifetime = o.exchangeLifetime
}

// WithLifetime sets how long a non-confirmable request waits for a response
// and how long received message ids are remembered.
func WithLifetime(nonLifetime, exchangeLifetime time.Duration) LifetimeOpt {
	return LifetimeOpt{
		nonLifetime:      nonLifetime,
		exchangeLifetime: exchangeLifetime,
	}
}

// ObserveLifetimeOpt observation option.
type ObserveLifetimeOpt struct {
	lifetime time.Duration
}

func (o ObserveLifetimeOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.ObserveLifetime = o.lifetime
}

// WithObserveLifetime keeps an observation alive for lifetime.
func WithObserveLifetime(lifetime time.Duration) ObserveLifetimeOpt {
	return ObserveLifetimeOpt{lifetime: lifetime}
}

// ProxyOpt forward proxy option.
type ProxyOpt struct {
	proxy string
}

func (o ProxyOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.Proxy = o.proxy
}

// WithProxy sends requests through the forward proxy at addr.
func WithProxy(addr string) ProxyOpt {
	return ProxyOpt{proxy: addr}
}

// LocalAddrOpt local address option.
type LocalAddrOpt struct {
	addr string
}

func (o LocalAddrOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.LocalAddr = o.addr
}

// WithLocalAddr sets the address the socket of udp.Dial listens on, for
// example ":5684".
func WithLocalAddr(addr string) LocalAddrOpt {
	return LocalAddrOpt{addr: addr}
}

// ClockOpt clock option.
type ClockOpt struct {
	clock transmission.Clock
}

func (o ClockOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.Clock = o.clock
}

// WithClock replaces the clock used for retransmissions and lifetimes.
func WithClock(clock transmission.Clock) ClockOpt {
	return ClockOpt{clock: clock}
}
