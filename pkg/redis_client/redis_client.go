package redis_client

import (
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/env_config"
	"github.com/go-redis/redis/v9"
)

func GetRedisClients() []*redis.Client {
	return NewRedisClients(env_config.REDIS_ADDR)
}

func NewRedisClients(addrs []string) []*redis.Client {
	rdb_arr := make([]*redis.Client, len(addrs))
	for i := 0; i < len(addrs); i++ {
		rdb_arr[i] = redis.NewClient(&redis.Options{
			Addr:     addrs[i],
			Password: "", // no password set
			DB:       0,  // use default DB
		})
	}
	return rdb_arr
}
