package rand_test

import (
	"sync"
	"testing"

	"github.com/flukkyy/libcoap/pkg/rand"
	"github.com/stretchr/testify/require"
)

func TestRandRead(t *testing.T) {
	r := rand.NewRand(0)
	b := make([]byte, 8)
	n, err := r.Read(b)
	require.NoError(t, err)
	require.Equal(t, 8, n)
}

func TestMultiThreadedRand(*testing.T) {
	r := rand.NewRand(0)
	var done sync.WaitGroup
	for i := 0; i < 100; i++ {
		done.Add(1)
		go func(index int) {
			defer done.Done()
			if index%2 == 0 {
				_, _ = r.Read(make([]byte, 4))
			} else {
				_ = r.Uint32()
			}
		}(i)
	}
	done.Wait()
}

func TestRandFloat64(t *testing.T) {
	r := rand.NewRand(1)
	for i := 0; i < 1000; i++ {
		v := r.Float64()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}
