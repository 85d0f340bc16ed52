package options_test

import (
	"context"
	"errors"
	"testing"

	"github.com/flukkyy/libcoap/message"
	"github.com/flukkyy/libcoap/net/blockwise"
	"github.com/flukkyy/libcoap/options"
	"github.com/flukkyy/libcoap/udp/client"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestCommonUDPClientApply(t *testing.T) {
	cfg := client.Config{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "client")
	var gotErr error
	errs := func(err error) {
		gotErr = err
	}
	getToken := func() (message.Token, error) {
		return message.Token{0x01}, nil
	}
	getMID := func() int32 {
		return 42
	}
	opts := []client.Option{
		options.WithContext(ctx),
		options.WithMaxMessageSize(1024),
		options.WithErrors(errs),
		options.WithBlockwise(true, blockwise.SZX256),
		options.WithGetToken(getToken),
		options.WithGetMID(getMID),
	}
	for _, o := range opts {
		o.UDPClientApply(&cfg)
	}
	// WithContext
	require.Equal(t, "client", cfg.Ctx.Value(ctxKey{}))
	// WithMaxMessageSize
	require.Equal(t, uint32(1024), cfg.MaxMessageSize)
	// WithErrors
	require.NotNil(t, cfg.Errors)
	cfg.Errors(errors.New("test"))
	require.EqualError(t, gotErr, "test")
	// WithBlockwise
	require.True(t, cfg.BlockwiseEnable)
	require.Equal(t, blockwise.SZX256, cfg.BlockwiseSZX)
	// WithGetToken
	token, err := cfg.GetToken()
	require.NoError(t, err)
	require.Equal(t, message.Token{0x01}, token)
	// WithGetMID
	require.Equal(t, int32(42), cfg.GetMID())
}

func TestWithBlockwiseDisable(t *testing.T) {
	cfg := client.DefaultConfig
	options.WithBlockwise(false, blockwise.SZX16).UDPClientApply(&cfg)
	require.False(t, cfg.BlockwiseEnable)
	require.Equal(t, blockwise.SZX16, cfg.BlockwiseSZX)
}
