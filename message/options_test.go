package message

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testFindPositionOption(t *testing.T, options Options, id OptionID, prepend bool, expectedIdx int) {
	idx := options.findPosition(id, prepend)
	require.Equal(t, expectedIdx, idx)
}

func TestFindPositionOption(t *testing.T) {
	options := make(Options, 0, 10)
	testFindPositionOption(t, options, 3, true, 0)
	testFindPositionOption(t, options, 3, false, 0)
	options = append(options, Options{{ID: 1}}...)
	testFindPositionOption(t, options, 0, true, 0)
	testFindPositionOption(t, options, 0, false, 0)
	options = append(options, Options{{ID: 2}, {ID: 2}, {ID: 2}, {ID: 2}}...)
	testFindPositionOption(t, options, 2, true, 1)
	testFindPositionOption(t, options, 2, false, 5)
	options = append(options, Options{{ID: 5}}...)
	testFindPositionOption(t, options, 3, true, 5)
	testFindPositionOption(t, options, 3, false, 5)
	options = append(options, Options{{ID: 5}}...)
	testFindPositionOption(t, options, 5, true, 5)
	testFindPositionOption(t, options, 5, false, 7)
}

func TestAddKeepsOrderAndStability(t *testing.T) {
	var options Options
	options = options.Add(Option{ID: URIQuery, Value: []byte("q")})
	options = options.Add(Option{ID: URIPath, Value: []byte("a")})
	options = options.Add(Option{ID: URIHost, Value: []byte("h")})
	options = options.Add(Option{ID: URIPath, Value: []byte("b")})
	options = options.Add(Option{ID: Block2, Value: []byte{0x02}})
	options = options.Add(Option{ID: URIPath, Value: []byte("c")})

	require.Equal(t, Options{
		{ID: URIHost, Value: []byte("h")},
		{ID: URIPath, Value: []byte("a")},
		{ID: URIPath, Value: []byte("b")},
		{ID: URIPath, Value: []byte("c")},
		{ID: URIQuery, Value: []byte("q")},
		{ID: Block2, Value: []byte{0x02}},
	}, options)
}

func TestSetAndRemove(t *testing.T) {
	options := Options{
		{ID: URIPath, Value: []byte("a")},
		{ID: URIPath, Value: []byte("b")},
		{ID: Block2, Value: []byte{0x10}},
	}
	options = options.Set(Option{ID: URIPath, Value: []byte("c")})
	require.Equal(t, Options{
		{ID: URIPath, Value: []byte("c")},
		{ID: Block2, Value: []byte{0x10}},
	}, options)

	options = options.SetUint32(Block2, 0x22)
	v, err := options.GetUint32(Block2)
	require.NoError(t, err)
	require.Equal(t, uint32(0x22), v)

	options = options.Remove(URIPath)
	require.False(t, options.HasOption(URIPath))
	require.Len(t, options, 1)

	_, err = options.GetString(URIPath)
	require.ErrorIs(t, err, ErrOptionNotFound)
}

func TestAddStringTooLong(t *testing.T) {
	var options Options
	_, err := options.AddString(URIPath, strings.Repeat("x", 256))
	require.ErrorIs(t, err, ErrOptionTooLong)
	options, err = options.AddString(URIPath, strings.Repeat("x", 255))
	require.NoError(t, err)
	require.Len(t, options, 1)
}

func TestPathAndQueries(t *testing.T) {
	options, err := SplitPath("/a/b")
	require.NoError(t, err)
	options = options.AddUint32(ContentFormat, uint32(AppJSON))
	q, err := SplitQuery("x=1&y=2")
	require.NoError(t, err)
	for _, o := range q {
		options = options.Add(o)
	}
	path, err := options.Path()
	require.NoError(t, err)
	require.Equal(t, "/a/b", path)
	queries, err := options.Queries()
	require.NoError(t, err)
	require.Equal(t, []string{"x=1", "y=2"}, queries)
	cf, err := options.ContentFormat()
	require.NoError(t, err)
	require.Equal(t, AppJSON, cf)
}

func TestMarshalUnmarshalOptions(t *testing.T) {
	options := Options{}
	options = options.AddUint32(URIPort, 5684)
	options, _ = options.AddString(URIPath, "a")
	options, _ = options.AddString(URIPath, "b")
	options = options.AddUint32(Block2, 0x1a)
	options = options.Add(Option{ID: ProxyURI, Value: []byte(strings.Repeat("p", 300))})
	options = options.Add(Option{ID: NoResponse, Value: []byte{0x02}})
	options = options.Add(Option{ID: 2049, Value: []byte{0x08, 0x00}})

	n, err := options.Marshal(nil)
	require.True(t, errors.Is(err, ErrTooSmall))
	buf := make([]byte, n)
	m, err := options.Marshal(buf)
	require.NoError(t, err)
	require.Equal(t, n, m)

	var decoded Options
	proc, err := decoded.Unmarshal(buf, CoapOptionDefs)
	require.NoError(t, err)
	require.Equal(t, n, proc)
	require.Equal(t, options, decoded)
}

func TestMarshalRepeatedPath(t *testing.T) {
	options, err := SplitPath("/a/b")
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := options.Marshal(buf)
	require.NoError(t, err)
	// delta 11 for the first segment, delta 0 for the repeated key
	require.Equal(t, []byte{0xb1, 'a', 0x01, 'b'}, buf[:n])
}

func TestMarshalUnordered(t *testing.T) {
	options := Options{{ID: URIPath}, {ID: URIHost}}
	_, err := options.Marshal(make([]byte, 16))
	require.ErrorIs(t, err, ErrOptionsUnordered)
}

func TestUnmarshalOptionErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{name: "length past buffer", data: []byte{0xb5, 'a', 'b'}, err: ErrOptionTruncated},
		{name: "missing extended delta", data: []byte{0xd0}, err: ErrOptionTruncated},
		{name: "missing extended length", data: []byte{0x1e, 0x01}, err: ErrOptionTruncated},
		{name: "reserved delta", data: []byte{0xf1, 0x00}, err: ErrOptionUnexpectedExtendMarker},
		{name: "reserved length", data: []byte{0x1f, 0x00}, err: ErrOptionUnexpectedExtendMarker},
		{name: "extended length past buffer", data: []byte{0x1d, 0x05, 'a'}, err: ErrOptionTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var options Options
			_, err := options.Unmarshal(tt.data, CoapOptionDefs)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestUnmarshalSkipsIllegalLength(t *testing.T) {
	// Uri-Port with 3 bytes is skipped, the following Uri-Path is kept
	data := []byte{0x73, 0x01, 0x02, 0x03, 0x41, 'a'}
	var options Options
	_, err := options.Unmarshal(data, CoapOptionDefs)
	require.NoError(t, err)
	require.Equal(t, Options{{ID: URIPath, Value: []byte("a")}}, options)
}

func TestEncodeDecodeUint32(t *testing.T) {
	for _, v := range []uint32{0, 1, 0xff, 0x100, 0xffff, 0x10000, 0xffffff, 0x1000000, 0xffffffff} {
		buf := make([]byte, 4)
		n, err := EncodeUint32(buf, v)
		require.NoError(t, err)
		dec, _, err := DecodeUint32(buf[:n])
		require.NoError(t, err)
		require.Equal(t, v, dec)
	}
	_, err := EncodeUint32(nil, 0x100)
	require.ErrorIs(t, err, ErrTooSmall)
	_, _, err = DecodeUint32([]byte{1, 2, 3, 4, 5})
	require.ErrorIs(t, err, ErrInvalidValueLength)
}
