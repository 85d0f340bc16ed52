package blockwise

import "errors"

var (
	ErrBlockNumberExceedLimit = errors.New("block number exceed limit 1,048,576")
	ErrBlockInvalidSize       = errors.New("block has invalid size")
	ErrInvalidSZX             = errors.New("invalid block-wise transfer szx")
	ErrBlockSequence          = errors.New("unexpected block number")
	ErrETagMismatch           = errors.New("etag changed during transfer")
	ErrTransferNotActive      = errors.New("block-wise transfer is not active")
)
