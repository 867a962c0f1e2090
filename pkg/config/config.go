package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"4d63.com/optional"
	"github.com/Jeffail/gabs/v2"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/env_config"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/pipeline"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/stream_client"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/txn_filter"
	"golang.org/x/xerrors"
)

const (
	CHECKPOINT_BACKEND_POSTGRES = "postgres"
	CHECKPOINT_BACKEND_REDIS    = "redis"
	CHECKPOINT_BACKEND_MINIO    = "minio"
	CHECKPOINT_BACKEND_MEMORY   = "memory"
)

type IndexerConfig struct {
	ProcessorName       string
	Mode                commtypes.RunMode
	BackfillAlias       string
	OverwriteCheckpoint bool
	StartingVersion     optional.Optional[uint64]
	EndingVersion       optional.Optional[uint64]

	DataServiceAddress      string
	AuthToken               string
	PingIntervalSecs        uint64
	PingTimeoutSecs         uint64
	ReconnectionTimeoutSecs uint64
	ResponseItemTimeoutSecs uint64
	ReconnectMaxRetries     uint64
	ReconnectInitialBackoff uint64
	ReconnectMaxBackoff     uint64

	NumConcurrentTasks   uint64
	FetchQueueSize       uint64
	ChunkSize            uint64
	ProcessingMaxAttempt uint64
	ProcessingInitialMs  uint64
	ProcessingMaxMs      uint64
	GapWarnThreshold     uint64

	CheckpointBackend        string
	PostgresConnectionString string
	KafkaTopic               string
	SerdeFormat              commtypes.SerdeFormat

	TransactionFilter txn_filter.FilterConfig
}

func Default() IndexerConfig {
	return IndexerConfig{
		Mode:                    commtypes.Bootstrap,
		StartingVersion:         optional.Empty[uint64](),
		EndingVersion:           optional.Empty[uint64](),
		PingIntervalSecs:        30,
		PingTimeoutSecs:         10,
		ReconnectionTimeoutSecs: 5,
		ResponseItemTimeoutSecs: 60,
		ReconnectMaxRetries:     stream_client.DEFAULT_RECONNECTION_MAX_RETRIES,
		ReconnectInitialBackoff: 100,
		ReconnectMaxBackoff:     5000,
		NumConcurrentTasks:      10,
		FetchQueueSize:          50,
		ChunkSize:               stream_client.DEFAULT_CHUNK_SIZE,
		ProcessingMaxAttempt:    5,
		ProcessingInitialMs:     100,
		ProcessingMaxMs:         10000,
		GapWarnThreshold:        500,
		CheckpointBackend:       CHECKPOINT_BACKEND_POSTGRES,
		SerdeFormat:             commtypes.MSGP,
	}
}

func Load(path string) (IndexerConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return IndexerConfig{}, xerrors.Errorf("read config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse reads a JSON config; keys that are absent keep their defaults.
// serde_format falls back to the SERDE_FORMAT environment variable.
func Parse(raw []byte) (IndexerConfig, error) {
	// numbers stay json.Number so versions above 2^53 are not rounded
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	jsonParsed, err := gabs.ParseJSONDecoder(dec)
	if err != nil {
		return IndexerConfig{}, xerrors.Errorf("%w: %v", common_errors.ErrInvalidConfig, err)
	}
	c := Default()
	p := parser{c: jsonParsed}
	c.ProcessorName = p.str("processor_name", c.ProcessorName)
	if mode := p.str("mode", ""); mode != "" {
		c.Mode, err = commtypes.ParseRunMode(mode)
		if err != nil {
			return IndexerConfig{}, err
		}
	}
	c.BackfillAlias = p.str("backfill_alias", c.BackfillAlias)
	c.OverwriteCheckpoint = p.boolean("overwrite_checkpoint", c.OverwriteCheckpoint)
	c.StartingVersion = p.optUint("starting_version")
	c.EndingVersion = p.optUint("ending_version")

	c.DataServiceAddress = p.str("indexer_grpc_data_service_address", c.DataServiceAddress)
	c.AuthToken = p.str("auth_token", c.AuthToken)
	c.PingIntervalSecs = p.uint("grpc_http2_ping_interval_secs", c.PingIntervalSecs)
	c.PingTimeoutSecs = p.uint("grpc_http2_ping_timeout_secs", c.PingTimeoutSecs)
	c.ReconnectionTimeoutSecs = p.uint("grpc_reconnection_timeout_secs", c.ReconnectionTimeoutSecs)
	c.ResponseItemTimeoutSecs = p.uint("grpc_response_item_timeout_secs", c.ResponseItemTimeoutSecs)
	c.ReconnectMaxRetries = p.uint("grpc_reconnect_max_retries", c.ReconnectMaxRetries)
	c.ReconnectInitialBackoff = p.uint("grpc_reconnect_initial_backoff_ms", c.ReconnectInitialBackoff)
	c.ReconnectMaxBackoff = p.uint("grpc_reconnect_max_backoff_ms", c.ReconnectMaxBackoff)

	c.NumConcurrentTasks = p.uint("number_concurrent_processing_tasks", c.NumConcurrentTasks)
	c.FetchQueueSize = p.uint("fetch_queue_size", c.FetchQueueSize)
	c.ChunkSize = p.uint("pb_channel_txn_chunk_size", c.ChunkSize)
	c.ProcessingMaxAttempt = p.uint("processing_max_attempts", c.ProcessingMaxAttempt)
	c.ProcessingInitialMs = p.uint("processing_initial_backoff_ms", c.ProcessingInitialMs)
	c.ProcessingMaxMs = p.uint("processing_max_backoff_ms", c.ProcessingMaxMs)
	c.GapWarnThreshold = p.uint("gap_warn_threshold", c.GapWarnThreshold)

	c.CheckpointBackend = p.str("checkpoint_backend", c.CheckpointBackend)
	c.PostgresConnectionString = p.str("postgres_connection_string", c.PostgresConnectionString)
	c.KafkaTopic = p.str("kafka_topic", c.KafkaTopic)
	if f := p.str("serde_format", env_config.SERDE_FORMAT); f != "" {
		c.SerdeFormat, err = commtypes.ParseSerdeFormat(f)
		if err != nil {
			return IndexerConfig{}, err
		}
	}
	if filter := jsonParsed.S("transaction_filter"); filter != nil && filter.Data() != nil {
		fp := parser{c: filter}
		c.TransactionFilter = txn_filter.FilterConfig{
			FocusContractAddresses: fp.strs("focus_contract_addresses"),
			SkipSenderAddresses:    fp.strs("skip_sender_addresses"),
			FocusUserTransactions:  fp.boolean("focus_user_transactions", false),
		}
		if err := fp.err; err != nil {
			return IndexerConfig{}, err
		}
	}
	if p.err != nil {
		return IndexerConfig{}, p.err
	}
	return c, nil
}

// parser remembers the first type error so the field list above stays flat.
type parser struct {
	c   *gabs.Container
	err error
}

func (p *parser) value(key string) interface{} {
	v := p.c.S(key)
	if v == nil {
		return nil
	}
	return v.Data()
}

func (p *parser) fail(key string, v interface{}, want string) {
	if p.err == nil {
		p.err = xerrors.Errorf("%w: %s must be %s, got %v", common_errors.ErrInvalidConfig, key, want, v)
	}
}

func (p *parser) str(key string, def string) string {
	v := p.value(key)
	if v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		p.fail(key, v, "a string")
		return def
	}
	return s
}

func (p *parser) boolean(key string, def bool) bool {
	v := p.value(key)
	if v == nil {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		p.fail(key, v, "a bool")
		return def
	}
	return b
}

func (p *parser) uint(key string, def uint64) uint64 {
	v := p.value(key)
	if v == nil {
		return def
	}
	n, ok := v.(json.Number)
	if !ok {
		p.fail(key, v, "a non-negative integer")
		return def
	}
	u, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil {
		p.fail(key, v, "a non-negative integer")
		return def
	}
	return u
}

func (p *parser) optUint(key string) optional.Optional[uint64] {
	if p.value(key) == nil {
		return optional.Empty[uint64]()
	}
	return optional.Of(p.uint(key, 0))
}

func (p *parser) strs(key string) []string {
	v := p.value(key)
	if v == nil {
		return nil
	}
	arr, ok := v.([]interface{})
	if !ok {
		p.fail(key, v, "a list of strings")
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, a := range arr {
		s, ok := a.(string)
		if !ok {
			p.fail(key, a, "a string")
			return nil
		}
		out = append(out, s)
	}
	return out
}

func (c *IndexerConfig) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return xerrors.Errorf("%w: %s", common_errors.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if c.ProcessorName == "" {
		return invalid("processor_name is required")
	}
	if c.DataServiceAddress == "" {
		return invalid("indexer_grpc_data_service_address is required")
	}
	end, hasEnd := c.EndingVersion.Get()
	if c.Mode.Bounded() && !hasEnd {
		return invalid("%s mode needs ending_version", c.Mode)
	}
	if c.Mode == commtypes.Backfill && c.BackfillAlias == "" {
		return invalid("backfill mode needs backfill_alias")
	}
	if start, ok := c.StartingVersion.Get(); ok && hasEnd && start > end {
		return invalid("starting_version %d is after ending_version %d", start, end)
	}
	if c.NumConcurrentTasks == 0 {
		return invalid("number_concurrent_processing_tasks must be positive")
	}
	if c.ChunkSize == 0 {
		return invalid("pb_channel_txn_chunk_size must be positive")
	}
	if c.ProcessingMaxAttempt == 0 {
		return invalid("processing_max_attempts must be positive")
	}
	switch c.CheckpointBackend {
	case CHECKPOINT_BACKEND_POSTGRES:
		if c.PostgresConnectionString == "" {
			return invalid("postgres checkpoint backend needs postgres_connection_string")
		}
	case CHECKPOINT_BACKEND_REDIS, CHECKPOINT_BACKEND_MINIO, CHECKPOINT_BACKEND_MEMORY:
	default:
		return invalid("unknown checkpoint_backend %q", c.CheckpointBackend)
	}
	return nil
}

func (c *IndexerConfig) JobIdentity() commtypes.JobIdentity {
	return commtypes.JobIdentity{
		ProcessorName: c.ProcessorName,
		Mode:          c.Mode,
		BackfillAlias: c.BackfillAlias,
	}
}

func secs(n uint64) time.Duration {
	return time.Duration(n) * time.Second
}

func millis(n uint64) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func (c *IndexerConfig) StreamConfig() stream_client.Config {
	return stream_client.Config{
		Address:             c.DataServiceAddress,
		AuthToken:           c.AuthToken,
		ProcessorName:       c.ProcessorName,
		PingInterval:        secs(c.PingIntervalSecs),
		PingTimeout:         secs(c.PingTimeoutSecs),
		ReconnectTimeout:    secs(c.ReconnectionTimeoutSecs),
		ItemTimeout:         secs(c.ResponseItemTimeoutSecs),
		MaxReconnectRetries: int(c.ReconnectMaxRetries),
		InitialBackoff:      millis(c.ReconnectInitialBackoff),
		MaxBackoff:          millis(c.ReconnectMaxBackoff),
		ChunkSize:           int(c.ChunkSize),
	}
}

func (c *IndexerConfig) RetryPolicy() pipeline.RetryPolicy {
	return pipeline.RetryPolicy{
		MaxAttempts:    int(c.ProcessingMaxAttempt),
		InitialBackoff: millis(c.ProcessingInitialMs),
		MaxBackoff:     millis(c.ProcessingMaxMs),
	}
}
