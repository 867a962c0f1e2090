package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"4d63.com/optional"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/env_config"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const backfillJSON = `{
  "processor_name": "events_processor",
  "mode": "backfill",
  "backfill_alias": "audit-1",
  "overwrite_checkpoint": true,
  "starting_version": 500,
  "ending_version": 599,
  "indexer_grpc_data_service_address": "https://grpc.example.com:443",
  "auth_token": "secret",
  "number_concurrent_processing_tasks": 4,
  "grpc_reconnect_max_backoff_ms": 2000,
  "checkpoint_backend": "redis",
  "serde_format": "json",
  "transaction_filter": {
    "focus_contract_addresses": ["0x1"],
    "skip_sender_addresses": ["0xdead", "0xbeef"],
    "focus_user_transactions": true
  }
}`

func TestParseBackfill(t *testing.T) {
	c, err := Parse([]byte(backfillJSON))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, commtypes.Backfill, c.Mode)
	assert.Equal(t, "events_processor/backfill/audit-1", c.JobIdentity().Key())
	assert.True(t, c.OverwriteCheckpoint)
	start, ok := c.StartingVersion.Get()
	require.True(t, ok)
	assert.Equal(t, uint64(500), start)
	end, ok := c.EndingVersion.Get()
	require.True(t, ok)
	assert.Equal(t, uint64(599), end)
	assert.Equal(t, uint64(4), c.NumConcurrentTasks)
	assert.Equal(t, CHECKPOINT_BACKEND_REDIS, c.CheckpointBackend)
	assert.Equal(t, commtypes.JSON, c.SerdeFormat)
	assert.Equal(t, []string{"0xdead", "0xbeef"}, c.TransactionFilter.SkipSenderAddresses)
	assert.True(t, c.TransactionFilter.FocusUserTransactions)

	sc := c.StreamConfig()
	assert.Equal(t, 2*time.Second, sc.MaxBackoff)
	assert.Equal(t, 100*time.Millisecond, sc.InitialBackoff)
	assert.Equal(t, 30*time.Second, sc.PingInterval)
	assert.Equal(t, "secret", sc.AuthToken)
	assert.Equal(t, "events_processor", sc.ProcessorName)
}

func TestDefaultsFillMissingKeys(t *testing.T) {
	c, err := Parse([]byte(`{"processor_name": "noop_processor",
		"indexer_grpc_data_service_address": "127.0.0.1:50051",
		"checkpoint_backend": "memory"}`))
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	want := Default()
	want.ProcessorName = "noop_processor"
	want.DataServiceAddress = "127.0.0.1:50051"
	want.CheckpointBackend = CHECKPOINT_BACKEND_MEMORY
	if diff := cmp.Diff(want.RetryPolicy(), c.RetryPolicy()); diff != "" {
		t.Fatalf("retry policy mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, commtypes.Bootstrap, c.Mode)
	_, ok := c.StartingVersion.Get()
	assert.False(t, ok)
	assert.True(t, c.TransactionFilter.IsEmpty())
	assert.Equal(t, uint64(10), c.NumConcurrentTasks)
	assert.Equal(t, uint64(50), c.FetchQueueSize)
}

func TestParseRejectsWrongTypes(t *testing.T) {
	for _, raw := range []string{
		`{"processor_name": 3}`,
		`{"starting_version": -1}`,
		`{"starting_version": 1.5}`,
		`{"overwrite_checkpoint": "yes"}`,
		`{"transaction_filter": {"skip_sender_addresses": [1]}}`,
		`{"mode": "replay"}`,
		`{"serde_format": "xml"}`,
		`not json`,
	} {
		_, err := Parse([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestParseKeepsVersionsAbove2To53(t *testing.T) {
	c, err := Parse([]byte(`{"starting_version": 9007199254740993, "ending_version": 18446744073709551615}`))
	require.NoError(t, err)
	start, ok := c.StartingVersion.Get()
	require.True(t, ok)
	assert.Equal(t, uint64(9007199254740993), start)
	end, ok := c.EndingVersion.Get()
	require.True(t, ok)
	assert.Equal(t, uint64(18446744073709551615), end)

	_, err = Parse([]byte(`{"starting_version": 18446744073709551616}`))
	assert.ErrorIs(t, err, common_errors.ErrInvalidConfig)
}

func TestSerdeFormatFallsBackToEnv(t *testing.T) {
	saved := env_config.SERDE_FORMAT
	defer func() { env_config.SERDE_FORMAT = saved }()

	env_config.SERDE_FORMAT = "json"
	c, err := Parse([]byte(`{"processor_name": "noop_processor"}`))
	require.NoError(t, err)
	assert.Equal(t, commtypes.JSON, c.SerdeFormat)

	c, err = Parse([]byte(`{"serde_format": "msgp"}`))
	require.NoError(t, err)
	assert.Equal(t, commtypes.MSGP, c.SerdeFormat, "config file wins over the environment")

	env_config.SERDE_FORMAT = ""
	c, err = Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, commtypes.MSGP, c.SerdeFormat)

	env_config.SERDE_FORMAT = "xml"
	_, err = Parse([]byte(`{}`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() IndexerConfig {
		c := Default()
		c.ProcessorName = "events_processor"
		c.DataServiceAddress = "127.0.0.1:50051"
		c.PostgresConnectionString = "postgres://localhost/indexer"
		return c
	}
	c := base()
	require.NoError(t, c.Validate())

	c = base()
	c.Mode = commtypes.Testing
	assert.ErrorIs(t, c.Validate(), common_errors.ErrInvalidConfig)

	c = base()
	c.Mode = commtypes.Backfill
	c.EndingVersion = optionalOf(10)
	assert.ErrorIs(t, c.Validate(), common_errors.ErrInvalidConfig)
	c.BackfillAlias = "a"
	assert.NoError(t, c.Validate())
	c.StartingVersion = optionalOf(11)
	assert.ErrorIs(t, c.Validate(), common_errors.ErrInvalidConfig)

	c = base()
	c.CheckpointBackend = "etcd"
	assert.ErrorIs(t, c.Validate(), common_errors.ErrInvalidConfig)

	c = base()
	c.PostgresConnectionString = ""
	assert.ErrorIs(t, c.Validate(), common_errors.ErrInvalidConfig)

	c = base()
	c.NumConcurrentTasks = 0
	assert.ErrorIs(t, c.Validate(), common_errors.ErrInvalidConfig)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(backfillJSON), 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "audit-1", c.BackfillAlias)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func optionalOf(v uint64) optional.Optional[uint64] {
	return optional.Of(v)
}
