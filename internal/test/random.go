package test

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

const contentAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 ._-"

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// RandomContent returns pseudo-random transfer content of the given length
// that never contains the ORDER marker in any letter case.
func RandomContent(length int) string {
	if length <= 0 {
		length = 1
	}
	for {
		buf := make([]byte, length)
		for i := range buf {
			buf[i] = contentAlphabet[randomIntn(len(contentAlphabet))]
		}
		s := string(buf)
		if !strings.Contains(strings.ToUpper(s), "ORDER") {
			return s
		}
	}
}

// RandomTransactionID returns a positive pseudo-random transaction id.
func RandomTransactionID() int64 {
	return int64(randomIntn(1<<30)) + 1
}

func randomIntn(n int) int {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Intn(n)
}
