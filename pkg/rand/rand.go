package rand

import (
	"math/rand"
	"sync"
)

// Rand is a pseudo-random source safe for concurrent use.
type Rand struct {
	src  *rand.Rand
	lock sync.Mutex
}

func NewRand(seed int64) *Rand {
	return &Rand{
		src: rand.New(rand.NewSource(seed)),
	}
}

func (l *Rand) Uint32() uint32 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.src.Uint32()
}

// Read fills p with pseudo-random bytes. It always returns len(p), nil.
func (l *Rand) Read(p []byte) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.src.Read(p)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (l *Rand) Float64() float64 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.src.Float64()
}
