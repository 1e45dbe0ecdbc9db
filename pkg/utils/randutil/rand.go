package randutil

import (
	"math/rand"
	"sync"
	"time"
)

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	mu  sync.Mutex
	rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Int63n returns a number in [0, n), n <= 0 yields 0.
func Int63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	mu.Lock()
	defer mu.Unlock()
	return rnd.Int63n(n)
}

// Uint64n returns a number below 1<<32, small enough to grow as an ETag.
func Uint64n() uint64 {
	mu.Lock()
	defer mu.Unlock()
	return uint64(rnd.Int63n(1 << 32))
}

func StringN(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	mu.Lock()
	defer mu.Unlock()
	for i := range b {
		b[i] = letters[rnd.Intn(len(letters))]
	}
	return string(b)
}
