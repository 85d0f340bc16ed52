package message

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    URI
		wantErr bool
	}{
		{
			name: "path and query",
			raw:  "coap://example.com/a/b?x=1&y=2",
			want: URI{Host: "example.com", Port: DefaultPort, Path: []string{"a", "b"}, Query: []string{"x=1", "y=2"}},
		},
		{
			name: "ipv6 with port",
			raw:  "coap://[::1]:5684/.well-known/core",
			want: URI{Host: "::1", Port: 5684, Path: []string{".well-known", "core"}},
		},
		{
			name: "percent encoded segment",
			raw:  "coap://h/a%2Fb/c%20d",
			want: URI{Host: "h", Port: DefaultPort, Path: []string{"a/b", "c d"}},
		},
		{
			name: "empty segments dropped",
			raw:  "coap://h//a///b/?&x&",
			want: URI{Host: "h", Port: DefaultPort, Path: []string{"a", "b"}, Query: []string{"x"}},
		},
		{name: "wrong scheme", raw: "http://h/a", wantErr: true},
		{name: "missing host", raw: "coap:///a", wantErr: true},
		{name: "bad port", raw: "coap://h:99999/a", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURI(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidURI)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSplitPathAndQuery(t *testing.T) {
	options, err := SplitPath("/a/b")
	require.NoError(t, err)
	require.Equal(t, Options{
		{ID: URIPath, Value: []byte("a")},
		{ID: URIPath, Value: []byte("b")},
	}, options)

	options, err = SplitPath("x//y/z/")
	require.NoError(t, err)
	require.Len(t, options, 3)

	options, err = SplitQuery("a=1&&b=2")
	require.NoError(t, err)
	require.Equal(t, Options{
		{ID: URIQuery, Value: []byte("a=1")},
		{ID: URIQuery, Value: []byte("b=2")},
	}, options)

	_, err = SplitPath("/ok/" + strings.Repeat("s", 256))
	require.ErrorIs(t, err, ErrOptionTooLong)
}

func TestBuildURIOptions(t *testing.T) {
	options, err := BuildURIOptions("coap://example.com:5700/a/b?q", false)
	require.NoError(t, err)
	require.Equal(t, Options{
		{ID: URIHost, Value: []byte("example.com")},
		{ID: URIPort, Value: []byte{0x16, 0x44}},
		{ID: URIPath, Value: []byte("a")},
		{ID: URIPath, Value: []byte("b")},
		{ID: URIQuery, Value: []byte("q")},
	}, options)

	options, err = BuildURIOptions("coap://127.0.0.1/a", false)
	require.NoError(t, err)
	require.Equal(t, Options{{ID: URIPath, Value: []byte("a")}}, options)

	raw := "coap://example.com/a/b?q"
	options, err = BuildURIOptions(raw, true)
	require.NoError(t, err)
	require.Equal(t, Options{{ID: ProxyURI, Value: []byte(raw)}}, options)

	_, err = BuildURIOptions("coap://h/"+strings.Repeat("a", 1100), true)
	require.ErrorIs(t, err, ErrOptionTooLong)
}

func TestURIAddr(t *testing.T) {
	u, err := ParseURI("coap://[::1]/a")
	require.NoError(t, err)
	require.Equal(t, "[::1]:5683", u.Addr())
}
