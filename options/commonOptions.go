package options

import (
	"context"

	"github.com/flukkyy/libcoap/net/blockwise"
	"github.com/flukkyy/libcoap/options/config"
	udpClient "github.com/flukkyy/libcoap/udp/client"
)

type ErrorFunc = config.ErrorFunc

// ContextOpt handler function option.
type ContextOpt struct {
	ctx context.Context
}

func (o ContextOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.Ctx = o.ctx
}

// WithContext set's parent context of the client. Run returns when it is done.
func WithContext(ctx context.Context) ContextOpt {
	return ContextOpt{ctx: ctx}
}

// MaxMessageSizeOpt handler function option.
type MaxMessageSizeOpt struct {
	maxMessageSize uint32
}

func (o MaxMessageSizeOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.MaxMessageSize = o.maxMessageSize
}

// WithMaxMessageSize limit size of processed message.
func WithMaxMessageSize(maxMessageSize uint32) MaxMessageSizeOpt {
	return MaxMessageSizeOpt{maxMessageSize: maxMessageSize}
}

// ErrorsOpt errors option.
type ErrorsOpt struct {
	errors ErrorFunc
}

func (o ErrorsOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.Errors = o.errors
}

// WithErrors set function for logging error.
func WithErrors(errors ErrorFunc) ErrorsOpt {
	return ErrorsOpt{errors: errors}
}

// BlockwiseOpt block-wise transfer option.
type BlockwiseOpt struct {
	enable bool
	szx    blockwise.SZX
}

func (o BlockwiseOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.BlockwiseEnable = o.enable
	cfg.BlockwiseSZX = o.szx
}

// WithBlockwise configure's block-wise transfer. szx is the largest block
// size the client accepts.
func WithBlockwise(enable bool, szx blockwise.SZX) BlockwiseOpt {
	return BlockwiseOpt{
		enable: enable,
		szx:    szx,
	}
}

// GetTokenOpt token option.
type GetTokenOpt struct {
	getToken config.GetTokenFunc
}

func (o GetTokenOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.GetToken = o.getToken
}

// WithGetToken set function for generating tokens.
func WithGetToken(getToken config.GetTokenFunc) GetTokenOpt {
	return GetTokenOpt{getToken: getToken}
}

// GetMIDOpt message id option.
type GetMIDOpt struct {
	getMID config.GetMIDFunc
}

func (o GetMIDOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.GetMID = o.getMID
}

// WithGetMID set function for generating message ids.
func WithGetMID(getMID config.GetMIDFunc) GetMIDOpt {
	return GetMIDOpt{getMID: getMID}
}
