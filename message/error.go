package message

import "errors"

var (
	ErrTooSmall                     = errors.New("too small bytes buffer")
	ErrInvalidOptionHeaderExt       = errors.New("invalid option header ext")
	ErrInvalidTokenLen              = errors.New("invalid token length")
	ErrInvalidValueLength           = errors.New("invalid value length")
	ErrOptionTruncated              = errors.New("option is truncated")
	ErrOptionUnexpectedExtendMarker = errors.New("option unexpected extend marker")
	ErrOptionNotFound               = errors.New("option not found")
	ErrOptionTooLong                = errors.New("option is too long")
	ErrOptionsUnordered             = errors.New("options are not sorted by id")
	ErrInvalidEncoding              = errors.New("invalid encoding")
	ErrInvalidURI                   = errors.New("invalid uri")
)
