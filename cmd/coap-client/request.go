package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/units"
	"github.com/flukkyy/libcoap/message"
	"github.com/flukkyy/libcoap/message/codes"
	"github.com/flukkyy/libcoap/net/blockwise"
	"github.com/flukkyy/libcoap/options/config"
	"github.com/flukkyy/libcoap/udp/client"
)

const maxDatagramSize = 64 * units.KiB

func parseMediaType(v string) (message.MediaType, error) {
	mt, err := message.ToMediaType(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid content format %q: %w", v, err)
	}
	return mt, nil
}

func (f *flags) readPayload(stdin io.Reader) ([]byte, error) {
	switch f.payloadFile {
	case "":
		if f.payload == "" {
			return nil, nil
		}
		return []byte(f.payload), nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("cannot read payload from stdin: %w", err)
		}
		return data, nil
	default:
		data, err := os.ReadFile(f.payloadFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read payload: %w", err)
		}
		return data, nil
	}
}

// request translates the flags into a client request.
func (f *flags) request(uri string, stdin io.Reader) (client.Request, error) {
	method, err := codes.ToMethod(f.method)
	if err != nil {
		return client.Request{}, err
	}
	r := client.Request{
		Method:         method,
		URI:            uri,
		NonConfirmable: f.nonConfirmable,
		Observe:        f.subscribe > 0,
	}
	if f.token != "" {
		if len(f.token) > message.MaxTokenSize {
			return client.Request{}, fmt.Errorf("token %q: %w", f.token, message.ErrInvalidTokenLen)
		}
		r.Token = message.Token(f.token)
	}
	if f.contentFormat != "" {
		cf, errC := parseMediaType(f.contentFormat)
		if errC != nil {
			return client.Request{}, errC
		}
		r.ContentFormat = &cf
	}
	for _, a := range f.accept {
		mt, errA := parseMediaType(a)
		if errA != nil {
			return client.Request{}, errA
		}
		r.Accept = append(r.Accept, mt)
	}
	if f.blockSize != "" {
		size, errS := config.ParseSize(f.blockSize, units.KiB)
		if errS != nil {
			return client.Request{}, errS
		}
		szx, errS := blockwise.SZXFromSize(int64(size))
		if errS != nil {
			return client.Request{}, errS
		}
		r.BlockSZX = &szx
	}
	if r.Payload, err = f.readPayload(stdin); err != nil {
		return client.Request{}, err
	}
	return r, nil
}
