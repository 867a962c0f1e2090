package completion_tracker

import (
	"context"
	"math"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/checkpt"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/debug"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/utils/syncutils"
	"github.com/google/btree"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

const DEFAULT_GAP_WARN_THRESHOLD = 500

// Tracker reassembles out-of-order completions into a watermark: the
// highest version below which every version has completed. Only the
// contiguous prefix starting at the watermark is ever merged, so the
// persisted checkpoint never passes a hole.
type Tracker struct {
	mu      syncutils.Mutex
	job     commtypes.JobIdentity
	store   checkpt.CheckpointStore
	pending *btree.BTreeG[commtypes.CompletionRange]

	// next is watermark+1; tracking it avoids underflow when nothing below
	// the start version is committed.
	next             uint64
	lastRecordTsUs   int64
	failedAt         uint64
	gapWarnThreshold int
	nextGapWarn      int
	backfill         *backfillRange
}

type backfillRange struct {
	start uint64
	end   uint64
}

func rangeLess(a, b commtypes.CompletionRange) bool {
	return a.Start < b.Start
}

// NewTracker starts tracking at startVersion; startVersion-1 is treated as
// already committed.
func NewTracker(job commtypes.JobIdentity, store checkpt.CheckpointStore, startVersion uint64, gapWarnThreshold int) *Tracker {
	if gapWarnThreshold <= 0 {
		gapWarnThreshold = DEFAULT_GAP_WARN_THRESHOLD
	}
	return &Tracker{
		job:              job,
		store:            store,
		pending:          btree.NewG(2, btree.LessFunc[commtypes.CompletionRange](rangeLess)),
		next:             startVersion,
		failedAt:         math.MaxUint64,
		gapWarnThreshold: gapWarnThreshold,
		nextGapWarn:      gapWarnThreshold,
	}
}

// Report records r as completed. When the watermark advances, the new value
// is persisted and returned with advanced set. The watermark only moves once
// the store accepted it; on a store error the merged ranges stay pending and
// the next Report tries again.
func (t *Tracker) Report(ctx context.Context, r commtypes.CompletionRange) (watermark uint64, advanced bool, err error) {
	if r.End < r.Start {
		return 0, false, xerrors.Errorf("%w: inverted range %v", common_errors.ErrOverlappingRange, r)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkDisjoint(r); err != nil {
		return 0, false, err
	}
	t.pending.ReplaceOrInsert(r)

	next, lastTs, merged := t.next, t.lastRecordTsUs, 0
	t.pending.Ascend(func(head commtypes.CompletionRange) bool {
		if head.Start != next || head.Start >= t.failedAt {
			return false
		}
		next = head.End + 1
		if head.LastRecordTimestampUs != 0 {
			lastTs = head.LastRecordTimestampUs
		}
		merged++
		return true
	})
	if merged == 0 {
		t.warnOnGap()
		return 0, false, nil
	}
	debug.Assert(next > t.next, "watermark must only move forward")

	watermark = next - 1
	rec := t.checkpointAt(watermark, lastTs)
	if _, err := t.store.UpsertIfGreater(ctx, t.job, rec); err != nil {
		return 0, false, xerrors.Errorf("persist watermark %d for %s: %w", watermark, t.job, err)
	}
	for i := 0; i < merged; i++ {
		t.pending.DeleteMin()
	}
	t.next = next
	t.lastRecordTsUs = lastTs
	t.warnOnGap()
	log.Debug().Str("job", t.job.Key()).Uint64("watermark", watermark).
		Int("pending", t.pending.Len()).Msg("[tracker] watermark advanced")
	if rec.BackfillStatus == commtypes.BACKFILL_COMPLETE {
		log.Info().Str("job", t.job.Key()).Uint64("backfill_start_version", rec.BackfillStartVersion).
			Uint64("backfill_end_version", rec.BackfillEndVersion).Msg("[tracker] backfill complete")
	}
	return watermark, true, nil
}

// TrackBackfill makes every persisted checkpoint carry the status of the
// backfill over [start, end].
func (t *Tracker) TrackBackfill(start, end uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.backfill = &backfillRange{start: start, end: end}
}

func (t *Tracker) checkpointAt(watermark uint64, lastTs int64) commtypes.CheckpointRecord {
	rec := commtypes.CheckpointRecord{
		LastSuccessVersion:    watermark,
		LastRecordTimestampUs: lastTs,
	}
	if t.backfill != nil {
		rec.BackfillStatus = commtypes.BackfillStatusAt(watermark, t.backfill.end)
		rec.BackfillStartVersion = t.backfill.start
		rec.BackfillEndVersion = t.backfill.end
	}
	return rec
}

func (t *Tracker) checkDisjoint(r commtypes.CompletionRange) error {
	if r.Start < t.next {
		return xerrors.Errorf("%w: %v is below watermark %d",
			common_errors.ErrOverlappingRange, r, int64(t.next)-1)
	}
	var conflict *commtypes.CompletionRange
	t.pending.DescendLessOrEqual(r, func(item commtypes.CompletionRange) bool {
		if item.End >= r.Start {
			c := item
			conflict = &c
		}
		return false
	})
	if conflict == nil {
		t.pending.AscendGreaterOrEqual(r, func(item commtypes.CompletionRange) bool {
			if item.Start <= r.End {
				c := item
				conflict = &c
			}
			return false
		})
	}
	if conflict != nil {
		return xerrors.Errorf("%w: %v overlaps pending %v", common_errors.ErrOverlappingRange, r, *conflict)
	}
	return nil
}

func (t *Tracker) warnOnGap() {
	n := t.pending.Len()
	if n >= t.nextGapWarn {
		log.Warn().Str("job", t.job.Key()).Uint64("gap_start_version", t.next).
			Int("pending_ranges", n).Msg("[tracker] completions are piling up behind a gap")
		t.nextGapWarn += t.gapWarnThreshold
	} else if n < t.gapWarnThreshold {
		t.nextGapWarn = t.gapWarnThreshold
	}
}

// Fail marks r as permanently failed. The watermark will never advance to
// or past r.Start.
func (t *Tracker) Fail(r commtypes.CompletionRange) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r.Start < t.failedAt {
		t.failedAt = r.Start
	}
	log.Error().Str("job", t.job.Key()).Stringer("range", r).
		Msg("[tracker] range failed, watermark is pinned below it")
}

// Watermark returns the highest committed version. ok is false while
// nothing at or after the start version has completed and the start was 0.
func (t *Tracker) Watermark() (watermark uint64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.next == 0 {
		return 0, false
	}
	return t.next - 1, true
}

// NextVersion is the lowest version not yet covered by the watermark.
func (t *Tracker) NextVersion() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next
}

func (t *Tracker) PendingRanges() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending.Len()
}
