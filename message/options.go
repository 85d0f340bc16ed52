package message

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Options is a sequence of options kept sorted by ascending ID. Options
// sharing an ID keep the order in which they were added.
type Options []Option

func (options Options) findPosition(id OptionID, prepend bool) int {
	if prepend {
		return sort.Search(len(options), func(i int) bool { return options[i].ID >= id })
	}
	return sort.Search(len(options), func(i int) bool { return options[i].ID > id })
}

// Find returns the half-open range [first, last) of options with the given ID.
func (options Options) Find(id OptionID) (int, int, error) {
	idxPre := options.findPosition(id, true)
	idxPost := options.findPosition(id, false)
	if idxPre == idxPost {
		return -1, -1, ErrOptionNotFound
	}
	return idxPre, idxPost, nil
}

// Add inserts opt after every option with a lower or equal ID.
func (options Options) Add(opt Option) Options {
	idx := options.findPosition(opt.ID, false)
	options = append(options, Option{})
	copy(options[idx+1:], options[idx:])
	options[idx] = opt
	return options
}

// Set replaces all options with the ID of opt by opt.
func (options Options) Set(opt Option) Options {
	return options.Remove(opt.ID).Add(opt)
}

// Remove drops all options with the given ID.
func (options Options) Remove(id OptionID) Options {
	idxPre := options.findPosition(id, true)
	idxPost := options.findPosition(id, false)
	if idxPre == idxPost {
		return options
	}
	return append(options[:idxPre], options[idxPost:]...)
}

func (options Options) HasOption(id OptionID) bool {
	_, _, err := options.Find(id)
	return err == nil
}

// Clone returns a copy with its own backing array; option values are shared.
func (options Options) Clone() Options {
	if options == nil {
		return nil
	}
	return append(make(Options, 0, len(options)), options...)
}

// AddString appends a string option, rejecting values longer than the
// option definition allows.
func (options Options) AddString(id OptionID, str string) (Options, error) {
	if maxLen := id.MaxLen(); maxLen >= 0 && len(str) > maxLen {
		return options, fmt.Errorf("%v(%d bytes): %w", id, len(str), ErrOptionTooLong)
	}
	return options.Add(Option{ID: id, Value: []byte(str)}), nil
}

func (options Options) AddUint32(id OptionID, value uint32) Options {
	return options.Add(Option{ID: id, Value: uint32Value(value)})
}

func (options Options) SetUint32(id OptionID, value uint32) Options {
	return options.Set(Option{ID: id, Value: uint32Value(value)})
}

func (options Options) SetContentFormat(contentFormat MediaType) Options {
	return options.SetUint32(ContentFormat, uint32(contentFormat))
}

func (options Options) GetUint32(id OptionID) (uint32, error) {
	firstIdx, _, err := options.Find(id)
	if err != nil {
		return 0, err
	}
	val, _, err := DecodeUint32(options[firstIdx].Value)
	return val, err
}

func (options Options) GetString(id OptionID) (string, error) {
	firstIdx, _, err := options.Find(id)
	if err != nil {
		return "", err
	}
	return string(options[firstIdx].Value), nil
}

func (options Options) GetBytes(id OptionID) ([]byte, error) {
	firstIdx, _, err := options.Find(id)
	if err != nil {
		return nil, err
	}
	return options[firstIdx].Value, nil
}

// GetStrings returns the values of all options with the given ID in order.
func (options Options) GetStrings(id OptionID) ([]string, error) {
	firstIdx, lastIdx, err := options.Find(id)
	if err != nil {
		return nil, err
	}
	r := make([]string, 0, lastIdx-firstIdx)
	for i := firstIdx; i < lastIdx; i++ {
		r = append(r, string(options[i].Value))
	}
	return r, nil
}

func (options Options) ContentFormat() (MediaType, error) {
	v, err := options.GetUint32(ContentFormat)
	return MediaType(v), err
}

func (options Options) Observe() (uint32, error) {
	return options.GetUint32(Observe)
}

// Path joins the Uri-Path options with '/'.
func (options Options) Path() (string, error) {
	segments, err := options.GetStrings(URIPath)
	if err != nil {
		return "", err
	}
	return "/" + strings.Join(segments, "/"), nil
}

func (options Options) Queries() ([]string, error) {
	return options.GetStrings(URIQuery)
}

// Marshal encodes the options as delta-encoded records. With a too small
// buf it returns the needed length together with ErrTooSmall.
func (options Options) Marshal(buf []byte) (int, error) {
	previousID := OptionID(0)
	length := 0
	tooSmall := false

	for _, o := range options {
		var optionLength int
		var err error
		if !tooSmall && length <= len(buf) {
			optionLength, err = o.Marshal(buf[length:], previousID)
		} else {
			optionLength, err = o.Marshal(nil, previousID)
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrTooSmall):
			tooSmall = true
		default:
			return -1, err
		}
		previousID = o.ID
		length += optionLength
	}
	if tooSmall {
		return length, ErrTooSmall
	}
	return length, nil
}

// Unmarshal decodes options up to the payload marker, which is left unconsumed.
// It returns the number of processed bytes.
func (options *Options) Unmarshal(data []byte, optionDefs map[OptionID]OptionDef) (int, error) {
	prev := 0
	processed := 0
	for len(data) > 0 {
		if data[0] == 0xff {
			break
		}

		delta := int(data[0] >> 4)
		length := int(data[0] & 0x0f)

		if delta == ExtendOptionError || length == ExtendOptionError {
			return -1, ErrOptionUnexpectedExtendMarker
		}

		data = data[1:]
		processed++

		proc, delta, err := parseExtOpt(data, delta)
		if err != nil {
			return -1, err
		}
		processed += proc
		data = data[proc:]
		proc, length, err = parseExtOpt(data, length)
		if err != nil {
			return -1, err
		}
		processed += proc
		data = data[proc:]

		if len(data) < length {
			return -1, ErrOptionTruncated
		}
		if prev+delta > int(^OptionID(0)) {
			return -1, ErrInvalidOptionHeaderExt
		}

		oid := OptionID(prev + delta)
		var option Option
		if option.Unmarshal(data[:length], optionDefs, oid) {
			*options = append(*options, option)
		}

		processed += length
		data = data[length:]
		prev = int(oid)
	}

	return processed, nil
}
