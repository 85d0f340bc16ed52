package config

import (
	"context"
	"fmt"

	"github.com/alecthomas/units"
	"github.com/flukkyy/libcoap/message"
	"github.com/flukkyy/libcoap/net/blockwise"
)

type (
	ErrorFunc    = func(error)
	GetTokenFunc = func() (message.Token, error)
	GetMIDFunc   = func() int32
)

// DefaultMaxMessageSize bounds one datagram. Larger requests are rejected,
// larger responses have to be transferred block-wise.
const DefaultMaxMessageSize = uint32(units.KiB + 128)

type Common struct {
	Ctx             context.Context
	Errors          ErrorFunc
	GetToken        GetTokenFunc
	GetMID          GetMIDFunc
	MaxMessageSize  uint32
	BlockwiseSZX    blockwise.SZX
	BlockwiseEnable bool
}

func NewCommon() Common {
	return Common{
		Ctx:            context.Background(),
		MaxMessageSize: DefaultMaxMessageSize,
		Errors: func(err error) {
			fmt.Println(err)
		},
		BlockwiseSZX:    blockwise.SZX1024,
		BlockwiseEnable: true,
		GetToken:        message.GetToken,
		GetMID:          message.GetMID,
	}
}
