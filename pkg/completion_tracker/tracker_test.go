package completion_tracker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/checkpt"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

type recordingStore struct {
	*checkpt.MemCheckpointStore
	mu      sync.Mutex
	writes  []uint64
	failErr error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemCheckpointStore: checkpt.NewMemCheckpointStore()}
}

func (s *recordingStore) UpsertIfGreater(ctx context.Context, job commtypes.JobIdentity, rec commtypes.CheckpointRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return false, s.failErr
	}
	written, err := s.MemCheckpointStore.UpsertIfGreater(ctx, job, rec)
	if written {
		s.writes = append(s.writes, rec.LastSuccessVersion)
	}
	return written, err
}

func (s *recordingStore) setFailErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

var testJob = commtypes.JobIdentity{ProcessorName: "events_processor", Mode: commtypes.Bootstrap}

func ranges() []commtypes.CompletionRange {
	return []commtypes.CompletionRange{{Start: 0, End: 9}, {Start: 10, End: 19}, {Start: 20, End: 29}}
}

func permutations(n int) [][]int {
	if n == 1 {
		return [][]int{{0}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			q := append([]int{}, p[:i]...)
			q = append(q, n-1)
			q = append(q, p[i:]...)
			out = append(out, q)
		}
	}
	return out
}

func TestAnyOrderReachesFinalWatermark(t *testing.T) {
	ctx := context.Background()
	rs := ranges()
	for _, perm := range permutations(len(rs)) {
		store := newRecordingStore()
		tr := NewTracker(testJob, store, 0, 0)
		for _, i := range perm {
			_, _, err := tr.Report(ctx, rs[i])
			require.NoError(t, err)
		}
		w, ok := tr.Watermark()
		require.True(t, ok)
		assert.Equal(t, uint64(29), w, "order %v", perm)
		assert.Equal(t, 0, tr.PendingRanges())

		// every persisted value is strictly larger than the previous one
		for i := 1; i < len(store.writes); i++ {
			assert.Greater(t, store.writes[i], store.writes[i-1])
		}
		assert.Equal(t, uint64(29), store.writes[len(store.writes)-1])

		rec, found, err := store.Get(ctx, testJob)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, uint64(29), rec.LastSuccessVersion)
	}
}

func TestConcurrentReports(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	tr := NewTracker(testJob, store, 0, 0)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i uint64) {
			defer wg.Done()
			_, _, err := tr.Report(ctx, commtypes.CompletionRange{Start: i * 10, End: i*10 + 9})
			assert.NoError(t, err)
		}(uint64(i))
	}
	wg.Wait()
	w, _ := tr.Watermark()
	assert.Equal(t, uint64(999), w)
	rec, _, err := store.Get(ctx, testJob)
	require.NoError(t, err)
	assert.Equal(t, uint64(999), rec.LastSuccessVersion)
}

func TestGapIsNeverBridged(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	tr := NewTracker(testJob, store, 0, 0)

	w, advanced, err := tr.Report(ctx, commtypes.CompletionRange{Start: 0, End: 9})
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, uint64(9), w)

	_, advanced, err = tr.Report(ctx, commtypes.CompletionRange{Start: 20, End: 29})
	require.NoError(t, err)
	assert.False(t, advanced)

	w, _ = tr.Watermark()
	assert.Equal(t, uint64(9), w)
	assert.Equal(t, []uint64{9}, store.writes)
	assert.Equal(t, 1, tr.PendingRanges())
}

func TestStartVersionOffset(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	tr := NewTracker(testJob, store, 100, 0)
	w, ok := tr.Watermark()
	assert.True(t, ok)
	assert.Equal(t, uint64(99), w)

	_, advanced, err := tr.Report(ctx, commtypes.CompletionRange{Start: 150, End: 199})
	require.NoError(t, err)
	assert.False(t, advanced)
	w, advanced, err = tr.Report(ctx, commtypes.CompletionRange{Start: 100, End: 149, LastRecordTimestampUs: 7})
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, uint64(199), w)
	assert.Equal(t, []uint64{199}, store.writes)
}

func TestWatermarkAtZeroStart(t *testing.T) {
	tr := NewTracker(testJob, newRecordingStore(), 0, 0)
	_, ok := tr.Watermark()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), tr.NextVersion())
}

func TestOverlappingRangesRejected(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(testJob, newRecordingStore(), 0, 0)
	_, _, err := tr.Report(ctx, commtypes.CompletionRange{Start: 0, End: 9})
	require.NoError(t, err)
	_, _, err = tr.Report(ctx, commtypes.CompletionRange{Start: 20, End: 29})
	require.NoError(t, err)

	for _, r := range []commtypes.CompletionRange{
		{Start: 5, End: 12},  // below watermark
		{Start: 0, End: 9},   // duplicate of committed
		{Start: 25, End: 35}, // overlaps pending tail
		{Start: 15, End: 20}, // overlaps pending head
		{Start: 20, End: 29}, // duplicate pending
		{Start: 12, End: 11}, // inverted
	} {
		_, _, err := tr.Report(ctx, r)
		assert.True(t, xerrors.Is(err, common_errors.ErrOverlappingRange), "range %v", r)
	}
	_, _, err = tr.Report(ctx, commtypes.CompletionRange{Start: 10, End: 19})
	require.NoError(t, err)
	w, _ := tr.Watermark()
	assert.Equal(t, uint64(29), w)
}

func TestFailPinsWatermark(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(testJob, newRecordingStore(), 0, 0)
	tr.Fail(commtypes.CompletionRange{Start: 10, End: 19})
	_, _, err := tr.Report(ctx, commtypes.CompletionRange{Start: 0, End: 9})
	require.NoError(t, err)
	_, _, err = tr.Report(ctx, commtypes.CompletionRange{Start: 20, End: 29})
	require.NoError(t, err)
	w, _ := tr.Watermark()
	assert.Equal(t, uint64(9), w)
}

func TestPersistFailureSurfaces(t *testing.T) {
	store := newRecordingStore()
	store.failErr = errors.New("db down")
	tr := NewTracker(testJob, store, 0, 0)
	_, _, err := tr.Report(context.Background(), commtypes.CompletionRange{Start: 0, End: 9})
	assert.Error(t, err)
}

func TestWatermarkWaitsForDurableWrite(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	tr := NewTracker(testJob, store, 100, 0)
	_, _, err := tr.Report(ctx, commtypes.CompletionRange{Start: 100, End: 109})
	require.NoError(t, err)

	store.setFailErr(errors.New("db down"))
	w, advanced, err := tr.Report(ctx, commtypes.CompletionRange{Start: 110, End: 119, LastRecordTimestampUs: 5})
	require.Error(t, err)
	assert.False(t, advanced)
	assert.Equal(t, uint64(0), w)
	w, _ = tr.Watermark()
	assert.Equal(t, uint64(109), w, "a failed write must not move the watermark")
	assert.Equal(t, uint64(110), tr.NextVersion())
	assert.Equal(t, 1, tr.PendingRanges())

	// the range is still pending, so a later completion persists both
	store.setFailErr(nil)
	w, advanced, err = tr.Report(ctx, commtypes.CompletionRange{Start: 120, End: 129})
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, uint64(129), w)
	assert.Equal(t, 0, tr.PendingRanges())
	assert.Equal(t, []uint64{109, 129}, store.writes)
	rec, _, err := store.Get(ctx, testJob)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.LastRecordTimestampUs)
}

func TestBackfillStatusFollowsWatermark(t *testing.T) {
	ctx := context.Background()
	job := commtypes.JobIdentity{ProcessorName: "events_processor", Mode: commtypes.Backfill, BackfillAlias: "audit-1"}
	store := newRecordingStore()
	tr := NewTracker(job, store, 500, 0)
	tr.TrackBackfill(500, 599)

	_, _, err := tr.Report(ctx, commtypes.CompletionRange{Start: 500, End: 549})
	require.NoError(t, err)
	rec, found, err := store.Get(ctx, job)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, commtypes.BACKFILL_IN_PROGRESS, rec.BackfillStatus)
	assert.Equal(t, uint64(500), rec.BackfillStartVersion)
	assert.Equal(t, uint64(599), rec.BackfillEndVersion)

	_, _, err = tr.Report(ctx, commtypes.CompletionRange{Start: 550, End: 599})
	require.NoError(t, err)
	rec, _, err = store.Get(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, uint64(599), rec.LastSuccessVersion)
	assert.Equal(t, commtypes.BACKFILL_COMPLETE, rec.BackfillStatus)
}

func TestBootstrapCarriesNoBackfillStatus(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	tr := NewTracker(testJob, store, 0, 0)
	_, _, err := tr.Report(ctx, commtypes.CompletionRange{Start: 0, End: 9})
	require.NoError(t, err)
	rec, _, err := store.Get(ctx, testJob)
	require.NoError(t, err)
	assert.Empty(t, rec.BackfillStatus)
	assert.Zero(t, rec.BackfillEndVersion)
}

func TestGapWarningThresholdResets(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(testJob, newRecordingStore(), 0, 2)
	for i := uint64(1); i <= 4; i++ {
		_, _, err := tr.Report(ctx, commtypes.CompletionRange{Start: i * 10, End: i*10 + 9})
		require.NoError(t, err)
	}
	assert.Equal(t, 6, tr.nextGapWarn)
	_, _, err := tr.Report(ctx, commtypes.CompletionRange{Start: 0, End: 9})
	require.NoError(t, err)
	assert.Equal(t, 2, tr.nextGapWarn)
}
