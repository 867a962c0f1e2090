package syncutils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := NewKeyedMutex()
	var a, b int
	counts := map[string]*int{"a": &a, "b": &b}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for _, k := range []string{"a", "b"} {
			wg.Add(1)
			go func(k string) {
				defer wg.Done()
				unlock := km.Lock(k)
				*counts[k]++
				unlock()
			}(k)
		}
	}
	wg.Wait()
	assert.Equal(t, 50, a)
	assert.Equal(t, 50, b)
}
