package hashfuncs

import (
	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"golang.org/x/exp/constraints"
)

type HashSum64[K any] interface {
	HashSum64(k K) uint64
}

type IntegerHasher[K constraints.Integer] struct{}

func (h IntegerHasher[K]) HashSum64(k K) uint64 {
	return uint64(k)
}

type StringHasher struct{}

func (sh StringHasher) HashSum64(k string) uint64 {
	return xxhash.Sum64String(k)
}

// Murmur3Hasher matches the hashing that the kafka sink uses to pick a
// partition for an account address.
type Murmur3Hasher struct{}

func (mh Murmur3Hasher) HashSum64(k string) uint64 {
	return murmur3.Sum64([]byte(k))
}

// ShardIndex maps a key onto one of n shards.
func ShardIndex[K any](h HashSum64[K], k K, n int) int {
	if n <= 1 {
		return 0
	}
	return int(h.HashSum64(k) % uint64(n))
}
