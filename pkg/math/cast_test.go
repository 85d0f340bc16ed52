package math_test

import (
	"math"
	"testing"

	pkgMath "github.com/flukkyy/libcoap/pkg/math"
	"github.com/stretchr/testify/require"
)

func TestCastToUint8(t *testing.T) {
	_, err := pkgMath.SafeCastTo[uint8](uint8(0))
	require.NoError(t, err)
	_, err = pkgMath.SafeCastTo[uint8](math.MaxUint8)
	require.NoError(t, err)
	_, err = pkgMath.SafeCastTo[uint8](math.MinInt8)
	require.Error(t, err)
	_, err = pkgMath.SafeCastTo[uint8](int8(-1))
	require.Error(t, err)
	_, err = pkgMath.SafeCastTo[uint8](uint64(math.MaxUint64))
	require.Error(t, err)
	_, err = pkgMath.SafeCastTo[uint8](int64(math.MaxUint8 + 1))
	require.Error(t, err)
}

func TestCastToUint16(t *testing.T) {
	v, err := pkgMath.SafeCastTo[uint16](int64(5683))
	require.NoError(t, err)
	require.Equal(t, uint16(5683), v)
	_, err = pkgMath.SafeCastTo[uint16](int(math.MaxUint16 + 1))
	require.Error(t, err)
	_, err = pkgMath.SafeCastTo[uint16](int32(-1))
	require.Error(t, err)
}

func TestCastToInt32(t *testing.T) {
	v, err := pkgMath.SafeCastTo[int32](uint32(math.MaxInt32))
	require.NoError(t, err)
	require.Equal(t, int32(math.MaxInt32), v)
	_, err = pkgMath.SafeCastTo[int32](uint32(math.MaxUint32))
	require.Error(t, err)
	_, err = pkgMath.SafeCastTo[int32](int64(math.MinInt32 - 1))
	require.Error(t, err)
}

func TestMustSafeCastTo(t *testing.T) {
	require.Equal(t, uint32(42), pkgMath.MustSafeCastTo[uint32](42))
	require.Panics(t, func() { _ = pkgMath.MustSafeCastTo[uint8](300) })
}
