package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/flukkyy/libcoap/message"
	"github.com/flukkyy/libcoap/message/codes"
)

// Local codes use the reserved class 7, a response never carries them.
const (
	OK       codes.Code = 0xfc
	Timeout  codes.Code = 0xfd
	Canceled codes.Code = 0xfe
	Unknown  codes.Code = 0xff
)

// Status holds error of coap
type Status struct {
	err  error
	msg  *message.Message
	code codes.Code
}

func CodeToString(c codes.Code) string {
	switch c {
	case OK:
		return "OK"
	case Timeout:
		return "Timeout"
	case Canceled:
		return "Canceled"
	case Unknown:
		return "Unknown"
	}
	return c.Dotted() + " " + c.String()
}

func (se Status) Error() string {
	desc := ""
	switch {
	case se.err != nil:
		desc = se.err.Error()
	case se.msg != nil:
		desc = string(se.msg.Payload)
	}
	return fmt.Sprintf("coap error: code = %s desc = %v", CodeToString(se.Code()), desc)
}

func (se Status) Unwrap() error {
	return se.err
}

// Code returns the status code contained in se.
func (se Status) Code() codes.Code {
	if se.msg != nil {
		return se.msg.Code
	}
	return se.code
}

// Message returns the response which caused the status, nil for a status
// created from a context error.
func (se Status) Message() *message.Message {
	return se.msg
}

// COAPError just for check interface
func (se Status) COAPError() Status {
	return se
}

// Error returns an error representing the response msg. Its payload is the
// diagnostic message of the server.
func Error(msg *message.Message, err error) Status {
	return Status{
		msg: msg,
		err: err,
	}
}

// Errorf returns Error(msg, fmt.Errorf(format, a...)).
func Errorf(msg *message.Message, format string, a ...interface{}) Status {
	return Error(msg, fmt.Errorf(format, a...))
}

// FromError returns a Status representing err if err or an error it wraps
// was produced by this package. Otherwise, ok is false and a Status is
// returned with Unknown and the original error.
func FromError(err error) (s Status, ok bool) {
	if err == nil {
		return Status{
			code: OK,
		}, true
	}
	var se interface {
		COAPError() Status
	}
	if errors.As(err, &se) {
		return se.COAPError(), true
	}
	return Status{
		code: Unknown,
		err:  err,
	}, false
}

// Convert is a convenience function which removes the need to handle the
// boolean return value from FromError.
func Convert(err error) Status {
	s, _ := FromError(err)
	return s
}

// Code returns the Code of the error if it is a Status error, OK if err
// is nil, Timeout or Canceled for context errors, or Unknown otherwise.
func Code(err error) codes.Code {
	if err == nil {
		return OK
	}
	if s, ok := FromError(err); ok {
		return s.Code()
	}
	return FromContextError(err).Code()
}

// FromContextError converts a context error into a Status. It returns a
// Status with OK if err is nil, or a Status with Unknown if err is
// non-nil and not a context error.
func FromContextError(err error) Status {
	switch {
	case err == nil:
		return Status{
			code: OK,
		}
	case errors.Is(err, context.DeadlineExceeded):
		return Status{
			code: Timeout,
			err:  err,
		}
	case errors.Is(err, context.Canceled):
		return Status{
			code: Canceled,
			err:  err,
		}
	default:
		return Status{
			code: Unknown,
			err:  err,
		}
	}
}
