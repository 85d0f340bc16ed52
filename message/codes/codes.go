package codes

import (
	"fmt"
	"strconv"
	"strings"
)

// A Code is an unsigned 8-bit number: a 3-bit class and a 5-bit detail.
type Code uint8

// Request Codes
const (
	Empty  Code = 0
	GET    Code = 1
	POST   Code = 2
	PUT    Code = 3
	DELETE Code = 4
	FETCH  Code = 5
	PATCH  Code = 6
	IPATCH Code = 7
)

// Response Codes
const (
	Created                 Code = 65
	Deleted                 Code = 66
	Valid                   Code = 67
	Changed                 Code = 68
	Content                 Code = 69
	Continue                Code = 95
	BadRequest              Code = 128
	Unauthorized            Code = 129
	BadOption               Code = 130
	Forbidden               Code = 131
	NotFound                Code = 132
	MethodNotAllowed        Code = 133
	NotAcceptable           Code = 134
	RequestEntityIncomplete Code = 136
	PreconditionFailed      Code = 140
	RequestEntityTooLarge   Code = 141
	UnsupportedMediaType    Code = 143
	InternalServerError     Code = 160
	NotImplemented          Code = 161
	BadGateway              Code = 162
	ServiceUnavailable      Code = 163
	GatewayTimeout          Code = 164
	ProxyingNotSupported    Code = 165
)

var codeToString = map[Code]string{
	Empty:                   "Empty",
	GET:                     "GET",
	POST:                    "POST",
	PUT:                     "PUT",
	DELETE:                  "DELETE",
	FETCH:                   "FETCH",
	PATCH:                   "PATCH",
	IPATCH:                  "iPATCH",
	Created:                 "Created",
	Deleted:                 "Deleted",
	Valid:                   "Valid",
	Changed:                 "Changed",
	Content:                 "Content",
	Continue:                "Continue",
	BadRequest:              "BadRequest",
	Unauthorized:            "Unauthorized",
	BadOption:               "BadOption",
	Forbidden:               "Forbidden",
	NotFound:                "NotFound",
	MethodNotAllowed:        "MethodNotAllowed",
	NotAcceptable:           "NotAcceptable",
	RequestEntityIncomplete: "RequestEntityIncomplete",
	PreconditionFailed:      "PreconditionFailed",
	RequestEntityTooLarge:   "RequestEntityTooLarge",
	UnsupportedMediaType:    "UnsupportedMediaType",
	InternalServerError:     "InternalServerError",
	NotImplemented:          "NotImplemented",
	BadGateway:              "BadGateway",
	ServiceUnavailable:      "ServiceUnavailable",
	GatewayTimeout:          "GatewayTimeout",
	ProxyingNotSupported:    "ProxyingNotSupported",
}

func (c Code) String() string {
	if s, ok := codeToString[c]; ok {
		return s
	}
	return "Code(" + strconv.FormatInt(int64(c), 10) + ")"
}

// Class returns the 3-bit class of the code (0 request, 2 success, 4 client error, 5 server error).
func (c Code) Class() uint8 {
	return uint8(c) >> 5
}

// Detail returns the 5-bit detail of the code.
func (c Code) Detail() uint8 {
	return uint8(c) & 0x1f
}

// Dotted formats the code as c.dd, e.g. 2.05.
func (c Code) Dotted() string {
	return fmt.Sprintf("%d.%02d", c.Class(), c.Detail())
}

func (c Code) IsRequest() bool {
	return c != Empty && c.Class() == 0
}

func (c Code) IsSuccess() bool {
	return c.Class() == 2
}

func (c Code) IsClientError() bool {
	return c.Class() == 4
}

func (c Code) IsServerError() bool {
	return c.Class() == 5
}

var methods = map[string]Code{
	"get":    GET,
	"post":   POST,
	"put":    PUT,
	"delete": DELETE,
	"fetch":  FETCH,
	"patch":  PATCH,
	"ipatch": IPATCH,
}

// ToMethod converts a case-insensitive method name to its request code.
func ToMethod(name string) (Code, error) {
	if c, ok := methods[strings.ToLower(name)]; ok {
		return c, nil
	}
	return Empty, fmt.Errorf("unknown method %q", name)
}
