package codes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeClass(t *testing.T) {
	tests := []struct {
		code    Code
		dotted  string
		request bool
		success bool
	}{
		{code: Empty, dotted: "0.00"},
		{code: GET, dotted: "0.01", request: true},
		{code: DELETE, dotted: "0.04", request: true},
		{code: Content, dotted: "2.05", success: true},
		{code: Continue, dotted: "2.31", success: true},
		{code: NotFound, dotted: "4.04"},
		{code: InternalServerError, dotted: "5.00"},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			require.Equal(t, tt.dotted, tt.code.Dotted())
			require.Equal(t, tt.request, tt.code.IsRequest())
			require.Equal(t, tt.success, tt.code.IsSuccess())
		})
	}
	require.True(t, NotFound.IsClientError())
	require.True(t, GatewayTimeout.IsServerError())
}

func TestToMethod(t *testing.T) {
	c, err := ToMethod("GET")
	require.NoError(t, err)
	require.Equal(t, GET, c)
	c, err = ToMethod("delete")
	require.NoError(t, err)
	require.Equal(t, DELETE, c)
	_, err = ToMethod("options")
	require.Error(t, err)
}

func TestCodeString(t *testing.T) {
	require.Equal(t, "Content", Content.String())
	require.Equal(t, "Code(17)", Code(17).String())
}
