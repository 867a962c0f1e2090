package commtypes

import (
	"testing"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestJobIdentityKeysAreDisjoint(t *testing.T) {
	boot := JobIdentity{ProcessorName: "events_processor", Mode: Bootstrap}
	backfill := JobIdentity{ProcessorName: "events_processor", Mode: Backfill, BackfillAlias: "audit-1"}
	testing_ := JobIdentity{ProcessorName: "events_processor", Mode: Testing, BackfillAlias: "audit-1"}

	assert.Equal(t, "events_processor", boot.Key())
	assert.Equal(t, "events_processor/backfill/audit-1", backfill.Key())
	assert.Equal(t, "events_processor/testing/audit-1", testing_.Key())
	assert.NotEqual(t, backfill.Key(), testing_.Key())
}

func TestParseRunMode(t *testing.T) {
	for s, want := range map[string]RunMode{
		"bootstrap": Bootstrap, "default": Bootstrap, "": Bootstrap,
		"Backfill": Backfill, "testing": Testing,
	} {
		got, err := ParseRunMode(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
	_, err := ParseRunMode("replay")
	assert.True(t, xerrors.Is(err, common_errors.ErrInvalidConfig))
	assert.True(t, Backfill.Bounded())
	assert.False(t, Bootstrap.Bounded())
}

func recordsFrom(start uint64, n int) []Record {
	recs := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		recs = append(recs, Record{Version: start + uint64(i), TimestampUs: int64(1000 + i)})
	}
	return recs
}

func TestNewRecordBatch(t *testing.T) {
	b, err := NewRecordBatch(1, recordsFrom(10, 10), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), b.StartVersion)
	assert.Equal(t, uint64(19), b.EndVersion)
	assert.Equal(t, uint64(10), b.NumVersions())
	assert.Equal(t, int64(1009), b.LastTimestampUs())

	_, err = NewRecordBatch(1, nil, 0)
	assert.True(t, xerrors.Is(err, common_errors.ErrEmptyBatch))
}

func TestRecordBatchValidateRejectsInternalGap(t *testing.T) {
	recs := recordsFrom(0, 5)
	recs[3].Version = 7
	_, err := NewRecordBatch(1, recs, 0)
	assert.True(t, xerrors.Is(err, common_errors.ErrContinuityViolation))

	b := RecordBatch{StartVersion: 0, EndVersion: 9, Records: recordsFrom(0, 5)}
	assert.True(t, xerrors.Is(b.Validate(), common_errors.ErrContinuityViolation))
}
