package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/checkpt"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/completion_tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

type funcProcessor func(ctx context.Context, b *commtypes.RecordBatch) error

func (f funcProcessor) Process(ctx context.Context, b *commtypes.RecordBatch) (commtypes.CompletionRange, error) {
	r := commtypes.CompletionRange{Start: b.StartVersion, End: b.EndVersion}
	return r, f(ctx, b)
}

var testJob = commtypes.JobIdentity{ProcessorName: "dispatcher_test"}

func batchAt(start, size uint64) *commtypes.RecordBatch {
	recs := make([]commtypes.Record, 0, size)
	for v := start; v < start+size; v++ {
		recs = append(recs, commtypes.Record{Version: v})
	}
	return &commtypes.RecordBatch{ChainID: 1, StartVersion: start, EndVersion: start + size - 1, Records: recs}
}

func TestSingleWorkerKeepsOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []uint64
	proc := funcProcessor(func(ctx context.Context, b *commtypes.RecordBatch) error {
		mu.Lock()
		seen = append(seen, b.StartVersion)
		mu.Unlock()
		return nil
	})
	tr := completion_tracker.NewTracker(testJob, checkpt.NewMemCheckpointStore(), 0, 0)
	d := NewDispatcher(context.Background(), 1, 4, proc, tr)
	for i := uint64(0); i < 20; i++ {
		require.NoError(t, d.Dispatch(context.Background(), batchAt(i*10, 10)))
	}
	require.NoError(t, d.Drain())
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i])
	}
	w, _ := tr.Watermark()
	assert.Equal(t, uint64(199), w)
}

func TestManyWorkersCompleteEverything(t *testing.T) {
	proc := funcProcessor(func(ctx context.Context, b *commtypes.RecordBatch) error {
		// later batches finish first
		time.Sleep(time.Duration(50-b.StartVersion/10) * 100 * time.Microsecond)
		return nil
	})
	store := checkpt.NewMemCheckpointStore()
	tr := completion_tracker.NewTracker(testJob, store, 0, 0)
	d := NewDispatcher(context.Background(), 8, 8, proc, tr)
	for i := uint64(0); i < 50; i++ {
		require.NoError(t, d.Dispatch(context.Background(), batchAt(i*10, 10)))
	}
	require.NoError(t, d.Drain())
	rec, found, err := store.Get(context.Background(), testJob)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(499), rec.LastSuccessVersion)
}

func TestDispatchBlocksWhenQueueIsFull(t *testing.T) {
	release := make(chan struct{})
	proc := funcProcessor(func(ctx context.Context, b *commtypes.RecordBatch) error {
		<-release
		return nil
	})
	tr := completion_tracker.NewTracker(testJob, checkpt.NewMemCheckpointStore(), 0, 0)
	d := NewDispatcher(context.Background(), 1, 1, proc, tr)
	ctx := context.Background()
	require.NoError(t, d.Dispatch(ctx, batchAt(0, 10)))
	// wait until the worker holds the first batch
	require.Eventually(t, func() bool { return d.QueueLen() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.Dispatch(ctx, batchAt(10, 10)))

	var third atomic.Bool
	go func() {
		_ = d.Dispatch(ctx, batchAt(20, 10))
		third.Store(true)
	}()
	time.Sleep(50 * time.Millisecond)
	assert.False(t, third.Load(), "dispatch must block while one batch runs and one waits")

	close(release)
	require.Eventually(t, third.Load, time.Second, time.Millisecond)
	require.NoError(t, d.Drain())
	w, _ := tr.Watermark()
	assert.Equal(t, uint64(29), w)
}

func TestFatalFailsDispatchAndPinsWatermark(t *testing.T) {
	proc := funcProcessor(func(ctx context.Context, b *commtypes.RecordBatch) error {
		if b.StartVersion == 30 {
			return common_errors.Fatal(xerrors.New("bad row"))
		}
		return nil
	})
	tr := completion_tracker.NewTracker(testJob, checkpt.NewMemCheckpointStore(), 0, 0)
	d := NewDispatcher(context.Background(), 1, 0, proc, tr)
	var err error
	for i := uint64(0); i < 10 && err == nil; i++ {
		err = d.Dispatch(context.Background(), batchAt(i*10, 10))
	}
	if err == nil {
		err = d.Drain()
	}
	assert.True(t, common_errors.IsFatal(err))
	assert.Error(t, d.Drain())
	w, _ := tr.Watermark()
	assert.Equal(t, uint64(29), w)
}

func TestStopFinishesInFlightOnly(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var processed atomic.Int32
	proc := funcProcessor(func(ctx context.Context, b *commtypes.RecordBatch) error {
		if b.StartVersion == 0 {
			close(started)
			<-release
		}
		processed.Add(1)
		return nil
	})
	tr := completion_tracker.NewTracker(testJob, checkpt.NewMemCheckpointStore(), 0, 0)
	d := NewDispatcher(context.Background(), 1, 4, proc, tr)
	require.NoError(t, d.Dispatch(context.Background(), batchAt(0, 10)))
	<-started
	for i := uint64(1); i < 4; i++ {
		require.NoError(t, d.Dispatch(context.Background(), batchAt(i*10, 10)))
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	require.NoError(t, d.Stop())
	assert.Equal(t, int32(1), processed.Load())
	w, _ := tr.Watermark()
	assert.Equal(t, uint64(9), w)
}

// ctxStore refuses writes once ctx is cancelled, like a database driver does.
type ctxStore struct {
	*checkpt.MemCheckpointStore
}

func (s ctxStore) UpsertIfGreater(ctx context.Context, job commtypes.JobIdentity, rec commtypes.CheckpointRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.MemCheckpointStore.UpsertIfGreater(ctx, job, rec)
}

func TestCancelledCheckpointWriteIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processed := make(chan struct{})
	proc := funcProcessor(func(pctx context.Context, b *commtypes.RecordBatch) error {
		cancel()
		close(processed)
		return nil
	})
	store := ctxStore{checkpt.NewMemCheckpointStore()}
	tr := completion_tracker.NewTracker(testJob, store, 0, 0)
	d := NewDispatcher(ctx, 1, 1, proc, tr)
	require.NoError(t, d.Dispatch(context.Background(), batchAt(0, 10)))
	<-processed
	require.NoError(t, d.Stop())

	_, ok := tr.Watermark()
	assert.False(t, ok)
	_, found, err := store.Get(context.Background(), testJob)
	require.NoError(t, err)
	assert.False(t, found)

	// [0, 9] was not marked failed and is still pending, so the next
	// completion commits both
	w, advanced, err := tr.Report(context.Background(), commtypes.CompletionRange{Start: 10, End: 19})
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, uint64(19), w)
}
