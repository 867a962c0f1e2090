package syncutils

import (
	"github.com/zhangyunhao116/skipmap"
)

// KeyedMutex hands out one Mutex per key. Locks are never reclaimed; the
// key space is the set of job identities of a process, which stays small.
type KeyedMutex struct {
	locks *skipmap.StringMap[*Mutex]
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: skipmap.NewString[*Mutex]()}
}

func (km *KeyedMutex) Lock(key string) func() {
	mu, _ := km.locks.LoadOrStore(key, &Mutex{})
	mu.Lock()
	return mu.Unlock
}
