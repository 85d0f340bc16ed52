package coder

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/flukkyy/libcoap/message"
	"github.com/flukkyy/libcoap/message/codes"
)

// Version is the only protocol version accepted by the coder.
const Version = 1

var DefaultCoder = new(Coder)

type Coder struct{}

// Size returns the encoded length of m.
func (c *Coder) Size(m message.Message) (int, error) {
	if len(m.Token) > message.MaxTokenSize {
		return -1, message.ErrInvalidTokenLen
	}
	size := 4 + len(m.Token)
	payloadLen := len(m.Payload)
	optionsLen, err := m.Options.Marshal(nil)
	switch {
	case err == nil, errors.Is(err, message.ErrTooSmall):
	default:
		return -1, err
	}
	if payloadLen > 0 {
		// for separator 0xff
		payloadLen++
	}
	size += payloadLen + optionsLen
	return size, nil
}

// Encode writes m into buf. With a too small buf it returns the needed size
// together with message.ErrTooSmall and buf is left in an undefined state.
func (c *Coder) Encode(m message.Message, buf []byte) (int, error) {
	/*
	     0                   1                   2                   3
	    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	   |Ver| T |  TKL  |      Code     |          Message ID           |
	   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	   |   Token (if any, TKL bytes) ...
	   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	   |   Options (if any) ...
	   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	   |1 1 1 1 1 1 1 1|    Payload (if any) ...
	   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	*/
	if !message.ValidateMID(m.MessageID) {
		return -1, fmt.Errorf("invalid MessageID(%v)", m.MessageID)
	}
	if !message.ValidateType(m.Type) {
		return -1, fmt.Errorf("invalid Type(%v)", m.Type)
	}
	size, err := c.Size(m)
	if err != nil {
		return -1, err
	}
	if len(buf) < size {
		return size, message.ErrTooSmall
	}

	buf[0] = (Version << 6) | byte(m.Type)<<4 | byte(0xf&len(m.Token))
	buf[1] = byte(m.Code)
	binary.BigEndian.PutUint16(buf[2:4], uint16(m.MessageID))
	buf = buf[4:]

	copy(buf, m.Token)
	buf = buf[len(m.Token):]

	optionsLen, err := m.Options.Marshal(buf)
	if err != nil {
		return -1, err
	}
	buf = buf[optionsLen:]

	if len(m.Payload) > 0 {
		buf[0] = 0xff
		buf = buf[1:]
	}
	copy(buf, m.Payload)
	return size, nil
}

// Marshal encodes m into a new buffer.
func (c *Coder) Marshal(m message.Message) ([]byte, error) {
	size, err := c.Size(m)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n, err := c.Encode(m, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Decode parses data into m. Token, option values and payload of m share
// memory with data.
func (c *Coder) Decode(data []byte, m *message.Message) (int, error) {
	size := len(data)
	if size < 4 {
		return -1, ErrMessageTruncated
	}

	if data[0]>>6 != Version {
		return -1, ErrMessageInvalidVersion
	}

	typ := message.Type((data[0] >> 4) & 0x3)
	tokenLen := int(data[0] & 0xf)
	if tokenLen > message.MaxTokenSize {
		return -1, message.ErrInvalidTokenLen
	}

	code := codes.Code(data[1])
	messageID := binary.BigEndian.Uint16(data[2:4])
	data = data[4:]
	if code == codes.Empty && (tokenLen != 0 || len(data) != 0) {
		return -1, fmt.Errorf("%w: empty message with token, options or payload", ErrMessageFormat)
	}
	if len(data) < tokenLen {
		return -1, ErrMessageTruncated
	}
	token := data[:tokenLen]
	if len(token) == 0 {
		token = nil
	}
	data = data[tokenLen:]

	var options message.Options
	proc, err := options.Unmarshal(data, message.CoapOptionDefs)
	if err != nil {
		return -1, err
	}
	data = data[proc:]
	var payload []byte
	if len(data) > 0 {
		// options stopped at the payload marker
		payload = data[1:]
		if len(payload) == 0 {
			return -1, fmt.Errorf("%w: payload marker without payload", ErrMessageFormat)
		}
	}

	m.Payload = payload
	m.Options = options
	m.Code = code
	m.Token = token
	m.Type = typ
	m.MessageID = int32(messageID)

	return size, nil
}

// Unmarshal decodes data into a new message.
func (c *Coder) Unmarshal(data []byte) (*message.Message, error) {
	var m message.Message
	if _, err := c.Decode(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
