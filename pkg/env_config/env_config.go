package env_config

import (
	"fmt"
	"os"
	"strings"
)

var (
	REDIS_ADDR              = splitAddrs("REDIS_ADDR")
	MINIO_ADDR              = splitAddrs("MINIO_ADDR")
	MINIO_ACCESS_KEY        = os.Getenv("MINIO_ACCESS_KEY")
	MINIO_SECRET_KEY        = os.Getenv("MINIO_SECRET_KEY")
	MINIO_SECURE            = checkBool("MINIO_SECURE")
	KAFKA_BOOTSTRAP_SERVERS = os.Getenv("KAFKA_BOOTSTRAP_SERVERS")
	SERDE_FORMAT            = os.Getenv("SERDE_FORMAT")
)

func splitAddrs(name string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	addrs := strings.Split(raw, ",")
	fmt.Fprintf(os.Stderr, "%s: %v\n", name, addrs)
	return addrs
}

func checkBool(name string) bool {
	s := os.Getenv(name)
	return s == "true" || s == "1"
}
