package blockwise

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/dsnet/golib/memfile"
	"github.com/flukkyy/libcoap/message"
	"github.com/flukkyy/libcoap/pkg/math"
)

// Block Option value is represented: https://tools.ietf.org/html/rfc7959#section-2.2
//  0
//  0 1 2 3 4 5 6 7
// +-+-+-+-+-+-+-+-+
// |  NUM  |M| SZX |
// +-+-+-+-+-+-+-+-+
//  0                   1
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |          NUM          |M| SZX |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//  0                   1                   2
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                   NUM                 |M| SZX |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

const (
	// max block size is 3bytes: https://tools.ietf.org/html/rfc7959#section-2.1
	maxBlockValue = 0xffffff
	// maxBlockNumber is 20bits (NUM)
	maxBlockNumber = 0xfffff
	// moreBlocksFollowingMask is represented by one bit (M)
	moreBlocksFollowingMask = 0x8
	// szxMask last 3bits represents SZX (SZX)
	szxMask = 0x7
)

// SZX enum representation for the size of the block: https://tools.ietf.org/html/rfc7959#section-2.2
type SZX uint8

const (
	// SZX16 block of size 16bytes
	SZX16 SZX = 0
	// SZX32 block of size 32bytes
	SZX32 SZX = 1
	// SZX64 block of size 64bytes
	SZX64 SZX = 2
	// SZX128 block of size 128bytes
	SZX128 SZX = 3
	// SZX256 block of size 256bytes
	SZX256 SZX = 4
	// SZX512 block of size 512bytes
	SZX512 SZX = 5
	// SZX1024 block of size 1024bytes
	SZX1024 SZX = 6
)

// Size number of bytes, or -1 for an invalid SZX.
func (s SZX) Size() int64 {
	if s > SZX1024 {
		return -1
	}
	return 1 << (uint(s) + 4)
}

// SZXFromSize returns the SZX describing a block of size bytes. Size must be
// a power of two between 16 and 1024.
func SZXFromSize(size int64) (SZX, error) {
	for s := SZX16; s <= SZX1024; s++ {
		if s.Size() == size {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: block size %v", ErrInvalidSZX, size)
}

// Block is a decoded Block1/Block2 option value.
type Block struct {
	Num  int64
	More bool
	SZX  SZX
}

// Offset of the first byte of the block within the whole body.
func (b Block) Offset() int64 {
	return b.Num * b.SZX.Size()
}

func (b Block) String() string {
	return fmt.Sprintf("%v/%v/%v", b.Num, b.More, b.SZX.Size())
}

// Encode returns the option value of the block.
func (b Block) Encode() (uint32, error) {
	return EncodeBlockOption(b.SZX, b.Num, b.More)
}

// DecodeBlock decodes an option value to a Block.
func DecodeBlock(blockVal uint32) (Block, error) {
	szx, num, more, err := DecodeBlockOption(blockVal)
	if err != nil {
		return Block{}, err
	}
	return Block{Num: num, More: more, SZX: szx}, nil
}

// EncodeBlockOption encodes block values to coap option.
func EncodeBlockOption(szx SZX, blockNumber int64, moreBlocksFollowing bool) (uint32, error) {
	if szx > SZX1024 {
		return 0, ErrInvalidSZX
	}
	if blockNumber > maxBlockNumber {
		return 0, ErrBlockNumberExceedLimit
	}
	num, err := math.SafeCastTo[uint32](blockNumber)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBlockNumberExceedLimit, err)
	}
	blockVal := num << 4
	m := uint32(0)
	if moreBlocksFollowing {
		m = 1
	}
	blockVal += m << 3
	blockVal += uint32(szx)
	return blockVal, nil
}

// DecodeBlockOption decodes coap block option to block values.
// BERT (szx 7) is not supported and reported as ErrInvalidSZX.
func DecodeBlockOption(blockVal uint32) (szx SZX, blockNumber int64, moreBlocksFollowing bool, err error) {
	if blockVal > maxBlockValue {
		err = ErrBlockInvalidSize
		return
	}

	szx = SZX(blockVal & szxMask)                  // masking for the SZX
	if (blockVal & moreBlocksFollowingMask) != 0 { // masking for the "M"
		moreBlocksFollowing = true
	}
	blockNumber = int64(blockVal) >> 4 // shifting out the SZX and M vals. leaving the block number behind
	if szx > SZX1024 {
		err = ErrInvalidSZX
	}
	return
}

// GetBlock2 returns the Block2 option of m. The second value is false when the
// option is missing.
func GetBlock2(options message.Options) (Block, bool, error) {
	v, err := options.GetUint32(message.Block2)
	if err != nil {
		if errors.Is(err, message.ErrOptionNotFound) {
			return Block{}, false, nil
		}
		return Block{}, false, fmt.Errorf("cannot get Block2 option: %w", err)
	}
	b, err := DecodeBlock(v)
	if err != nil {
		return Block{}, true, fmt.Errorf("cannot decode Block2 option(%v): %w", v, err)
	}
	return b, true, nil
}

// ContinuationRequest builds the request for block b from the original
// request: same code, token and options, without Observe and Block1, with
// Block2 set to b. Message ID and type are left to the caller.
func ContinuationRequest(req message.Message, b Block) (message.Message, error) {
	v, err := b.Encode()
	if err != nil {
		return message.Message{}, fmt.Errorf("cannot encode block option(%v): %w", b, err)
	}
	opts := req.Options.Clone()
	opts = opts.Remove(message.Observe)
	opts = opts.Remove(message.Block1)
	opts = opts.Remove(message.Size1)
	opts = opts.SetUint32(message.Block2, v)
	return message.Message{
		Code:    req.Code,
		Token:   req.Token,
		Options: opts,
	}, nil
}

func getSzx(szx, maxSzx SZX) SZX {
	if szx > maxSzx {
		return maxSzx
	}
	return szx
}

// State of a Transfer.
type State int

const (
	Idle State = iota
	AwaitingBlock
	Complete
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingBlock:
		return "AwaitingBlock"
	case Complete:
		return "Complete"
	case Aborted:
		return "Aborted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Transfer reassembles one logical response from a sequence of Block2
// responses. It is not safe for concurrent use.
type Transfer struct {
	maxSZX   SZX
	state    State
	expected Block
	etag     []byte
	hasETag  bool
	payload  *memfile.File
	size     int64
	err      error
}

// NewTransfer creates an idle transfer. Continuation requests never ask for
// blocks larger than maxSZX.
func NewTransfer(maxSZX SZX) *Transfer {
	if maxSZX > SZX1024 {
		maxSZX = SZX1024
	}
	return &Transfer{
		maxSZX:  maxSZX,
		payload: memfile.New(make([]byte, 0, 1024)),
	}
}

func (t *Transfer) State() State {
	return t.state
}

// Expected returns the block requested by the last continuation.
func (t *Transfer) Expected() Block {
	return t.expected
}

// Err returns the reason of an aborted transfer.
func (t *Transfer) Err() error {
	return t.err
}

// Len returns number of accumulated bytes.
func (t *Transfer) Len() int64 {
	return t.size
}

// Reset discards accumulated data and returns the transfer to Idle.
func (t *Transfer) Reset() {
	_ = t.payload.Truncate(0)
	t.state = Idle
	t.expected = Block{}
	t.etag = nil
	t.hasETag = false
	t.size = 0
	t.err = nil
}

func (t *Transfer) abort(err error) error {
	t.state = Aborted
	t.err = err
	_ = t.payload.Truncate(0)
	t.size = 0
	return err
}

func (t *Transfer) checkETag(options message.Options) error {
	etag, err := options.GetBytes(message.ETag)
	hasETag := err == nil
	if t.state == Idle {
		t.hasETag = hasETag
		t.etag = append([]byte(nil), etag...)
		return nil
	}
	switch {
	case hasETag && !t.hasETag:
		return fmt.Errorf("%w: received message contains ETAG(%v) but first block doesn't", ErrETagMismatch, etag)
	case !hasETag && t.hasETag:
		return fmt.Errorf("%w: received message doesn't contain ETAG but first block contains it(%v)", ErrETagMismatch, t.etag)
	case !bytes.Equal(etag, t.etag):
		return fmt.Errorf("%w: %v != %v", ErrETagMismatch, etag, t.etag)
	}
	return nil
}

func (t *Transfer) copyToPayloadFromOffset(data []byte, offset int64) error {
	if _, err := t.payload.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("cannot seek to off(%v) of payload: %w", offset, err)
	}
	written, err := t.payload.Write(data)
	if err != nil {
		return fmt.Errorf("cannot copy to payload: %w", err)
	}
	t.size = offset + int64(written)
	if err = t.payload.Truncate(t.size); err != nil {
		return fmt.Errorf("cannot truncate payload: %w", err)
	}
	return nil
}

// Receive processes a success response of the exchange. It returns the next
// block to request when more blocks follow, and done when the whole body has
// been accumulated. A response without a Block2 option completes an idle
// transfer immediately. Any protocol violation aborts the transfer.
func (t *Transfer) Receive(resp *message.Message) (next Block, done bool, err error) {
	switch t.state {
	case Complete, Aborted:
		return Block{}, false, ErrTransferNotActive
	}
	block, ok, err := GetBlock2(resp.Options)
	if err != nil {
		return Block{}, false, t.abort(err)
	}
	if !ok {
		if t.state != Idle {
			return Block{}, false, t.abort(fmt.Errorf("%w: response without Block2 option, expected block %v", ErrBlockSequence, t.expected.Num))
		}
		if err = t.copyToPayloadFromOffset(resp.Payload, 0); err != nil {
			return Block{}, false, t.abort(err)
		}
		t.state = Complete
		return Block{}, true, nil
	}
	if t.state == Idle && block.Num != 0 {
		return Block{}, false, t.abort(fmt.Errorf("%w: first block %v", ErrBlockSequence, block.Num))
	}
	// the server may answer with a smaller szx, so the offset is compared
	if block.Offset() != t.size {
		return Block{}, false, t.abort(fmt.Errorf("%w: got %v, expected %v", ErrBlockSequence, block.Num, t.expected.Num))
	}
	if block.More && int64(len(resp.Payload)) != block.SZX.Size() {
		return Block{}, false, t.abort(fmt.Errorf("%w: block %v carries %v bytes, expected %v", ErrBlockInvalidSize, block.Num, len(resp.Payload), block.SZX.Size()))
	}
	if err = t.checkETag(resp.Options); err != nil {
		return Block{}, false, t.abort(err)
	}
	if err = t.copyToPayloadFromOffset(resp.Payload, block.Offset()); err != nil {
		return Block{}, false, t.abort(err)
	}
	if !block.More {
		t.state = Complete
		return Block{}, true, nil
	}
	szx := getSzx(block.SZX, t.maxSZX)
	num := t.size / szx.Size()
	if num > maxBlockNumber {
		return Block{}, false, t.abort(ErrBlockNumberExceedLimit)
	}
	t.expected = Block{Num: num, SZX: szx}
	t.state = AwaitingBlock
	return t.expected, false, nil
}

// WriteTo flushes the accumulated body of a completed transfer to w.
func (t *Transfer) WriteTo(w io.Writer) (int64, error) {
	if t.state != Complete {
		return 0, ErrTransferNotActive
	}
	if _, err := t.payload.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("cannot seek to start of payload: %w", err)
	}
	n, err := io.CopyN(w, t.payload, t.size)
	if err != nil {
		return n, fmt.Errorf("cannot write payload: %w", err)
	}
	return n, nil
}
