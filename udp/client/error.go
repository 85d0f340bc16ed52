package client

import "errors"

var (
	ErrReset              = errors.New("request was reset by the peer")
	ErrTimeout            = errors.New("no response received")
	ErrExchangeInProgress = errors.New("exchange is in progress")
	ErrClientRunning      = errors.New("client is already running")
	ErrInvalidMethod      = errors.New("invalid request method")
	ErrNoExchange         = errors.New("no exchange was started")
)
