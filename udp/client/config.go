package client

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flukkyy/libcoap/net/transmission"
	"github.com/flukkyy/libcoap/options/config"
)

const (
	// ExchangeLifetime is how long a received message ID is remembered for
	// duplicate detection.
	ExchangeLifetime = 247 * time.Second
	// NonLifetime is how long a non-confirmable request waits for a response.
	NonLifetime = 145 * time.Second
)

var DefaultConfig = func() Config {
	return Config{
		Common:                         config.NewCommon(),
		TransmissionAcknowledgeTimeout: transmission.DefaultAcknowledgeTimeout,
		TransmissionMaxRetransmit:      transmission.DefaultMaxRetransmit,
		TransmissionRandomFactor:       0.5,
		TransmissionNonLifetime:        NonLifetime,
		ExchangeLifetime:               ExchangeLifetime,
		Clock:                          backoff.SystemClock,
	}
}()

type Config struct {
	config.Common
	TransmissionAcknowledgeTimeout time.Duration
	TransmissionMaxRetransmit      uint32
	TransmissionRandomFactor       float64
	TransmissionNonLifetime        time.Duration
	ExchangeLifetime               time.Duration
	// ObserveLifetime keeps an observation alive. Zero ends the run after
	// the first response.
	ObserveLifetime time.Duration
	// Proxy is the address of a forward proxy. When set, the request URI is
	// sent in a Proxy-Uri option.
	Proxy string
	// LocalAddr is the address the socket created by udp.Dial listens on.
	// Empty picks any port.
	LocalAddr string
	Clock     transmission.Clock
}

// Option configures the client.
type Option interface {
	UDPClientApply(cfg *Config)
}
