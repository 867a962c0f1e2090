package orchestrator

import (
	"context"
	"sync"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/checkpt"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/completion_tracker"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/continuity"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/dispatcher"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/pipeline"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/stats"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/txn_filter"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

// Status is a point-in-time view of a run, served on the status endpoint.
type Status struct {
	Job           string  `json:"job"`
	State         string  `json:"state"`
	ChainID       uint64  `json:"chain_id,omitempty"`
	StartVersion  uint64  `json:"start_version"`
	EndVersion    *uint64 `json:"end_version,omitempty"`
	Watermark     *uint64 `json:"watermark,omitempty"`
	PendingRanges int     `json:"pending_ranges"`
	Error         string  `json:"error,omitempty"`
}

// Orchestrator owns one run of a job: it resumes from the checkpoint,
// feeds the stream through the guard into the worker pool and decides when
// the run is over.
type Orchestrator struct {
	args *TaskArgs
	sm   stateMachine

	mu         sync.Mutex
	tracker    *completion_tracker.Tracker
	chainID    uint64
	start      uint64
	fatalCause error
}

func NewOrchestrator(args *TaskArgs) *Orchestrator {
	return &Orchestrator{args: args}
}

func (o *Orchestrator) State() State {
	return o.sm.get()
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{
		Job:          o.args.job.Key(),
		State:        o.sm.get().String(),
		ChainID:      o.chainID,
		StartVersion: o.start,
	}
	if end, ok := o.args.endVersion.Get(); ok {
		st.EndVersion = &end
	}
	if o.tracker != nil {
		if wm, ok := o.tracker.Watermark(); ok {
			st.Watermark = &wm
		}
		st.PendingRanges = o.tracker.PendingRanges()
	}
	if o.fatalCause != nil {
		st.Error = o.fatalCause.Error()
	}
	return st
}

func (o *Orchestrator) checkArgs() error {
	a := o.args
	if a.streamer == nil || a.store == nil || a.proc == nil {
		return xerrors.Errorf("%w: streamer, checkpoint store and processor are required", common_errors.ErrInvalidConfig)
	}
	if a.job.Mode.Bounded() {
		if _, ok := a.endVersion.Get(); !ok {
			return xerrors.Errorf("%w: %v mode needs an ending version", common_errors.ErrInvalidConfig, a.job.Mode)
		}
	}
	return nil
}

// fail moves the run to Fatal and returns err for the caller to surface.
func (o *Orchestrator) fail(err error) error {
	o.mu.Lock()
	o.fatalCause = err
	o.mu.Unlock()
	if terr := o.sm.transition(StateFatal); terr != nil {
		log.Error().Err(terr).Msg("[orchestrator] cannot enter fatal state")
	}
	log.Error().Err(err).Str("job", o.args.job.Key()).Msg("[orchestrator] job halted")
	return err
}

func (o *Orchestrator) finish() error {
	if err := o.sm.transition(StateDone); err != nil {
		return o.fail(err)
	}
	return nil
}

// resume returns the first version this run processes.
func (o *Orchestrator) resume(ctx context.Context, store checkpt.CheckpointStore) (uint64, error) {
	a := o.args
	start, _ := a.startVersion.Get()
	if a.job.Mode == commtypes.Backfill && a.overwriteCheckpoint {
		log.Info().Str("job", a.job.Key()).Uint64("start_version", start).
			Msg("[orchestrator] overwrite_checkpoint set, ignoring stored checkpoint")
		return start, nil
	}
	ckpt, found, err := store.Get(ctx, a.job)
	if err != nil {
		return 0, xerrors.Errorf("read checkpoint of %s: %w", a.job, err)
	}
	if found && ckpt.LastSuccessVersion+1 > start {
		start = ckpt.LastSuccessVersion + 1
	}
	log.Info().Str("job", a.job.Key()).Bool("checkpoint_found", found).
		Uint64("checkpoint", ckpt.LastSuccessVersion).Uint64("start_version", start).
		Msg("[orchestrator] resolved starting version")
	return start, nil
}

// Run drives the job to completion. Bounded modes return nil once every
// version up to the ending version is checkpointed; Bootstrap only returns
// on cancellation or failure. A cancelled ctx is a clean shutdown and also
// returns nil. Any other error means the job must not continue past its
// last checkpoint.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.checkArgs(); err != nil {
		return o.fail(err)
	}
	a := o.args
	store := a.store
	if a.job.Mode == commtypes.Testing {
		store = checkpt.NewMemCheckpointStore()
	}

	chainID, err := a.streamer.GetChainID(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return o.finish()
		}
		return o.fail(xerrors.Errorf("probe chain id: %w", err))
	}
	if a.chainIDStore != nil && a.job.Mode != commtypes.Testing {
		if err := checkpt.CheckOrUpdateChainID(ctx, a.chainIDStore, chainID); err != nil {
			return o.fail(err)
		}
	}
	start, err := o.resume(ctx, store)
	if err != nil {
		if ctx.Err() != nil {
			return o.finish()
		}
		return o.fail(err)
	}
	tracker := completion_tracker.NewTracker(a.job, store, start, a.gapWarnThreshold)
	if a.job.Mode == commtypes.Backfill {
		bfStart, _ := a.startVersion.Get()
		bfEnd, _ := a.endVersion.Get()
		tracker.TrackBackfill(bfStart, bfEnd)
	}
	o.mu.Lock()
	o.chainID = chainID
	o.start = start
	o.tracker = tracker
	o.mu.Unlock()

	end, bounded := a.endVersion.Get()
	if bounded && start > end {
		log.Info().Str("job", a.job.Key()).Uint64("start_version", start).Uint64("end_version", end).
			Msg("[orchestrator] nothing left to process")
		return o.finish()
	}
	if err := o.sm.transition(StateRunning); err != nil {
		return o.fail(err)
	}
	return o.run(ctx, chainID, start, tracker)
}

func (o *Orchestrator) run(ctx context.Context, chainID uint64, start uint64,
	tracker *completion_tracker.Tracker,
) error {
	a := o.args
	end, bounded := a.endVersion.Get()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pl := pipeline.NewPipeline(a.proc, a.retryPolicy)
	defer pl.Flush()
	d := dispatcher.NewDispatcher(runCtx, a.numWorkers, a.queueSize, pl, tracker)

	abort := func(err error) error {
		cancel()
		if serr := d.Stop(); serr != nil && !xerrors.Is(err, serr) {
			log.Warn().Err(serr).Msg("[orchestrator] worker error while stopping")
		}
		return o.fail(err)
	}
	shutdown := func() error {
		if err := o.sm.transition(StateDraining); err != nil {
			return o.fail(err)
		}
		if err := d.Stop(); err != nil && common_errors.IsFatal(err) {
			return o.fail(err)
		}
		wm, _ := tracker.Watermark()
		log.Info().Str("job", a.job.Key()).Uint64("watermark", wm).
			Msg("[orchestrator] shut down on request")
		return o.finish()
	}

	src, err := a.streamer.Open(runCtx, chainID, start, a.endVersion)
	if err != nil {
		return abort(xerrors.Errorf("open stream at %d: %w", start, err))
	}
	defer src.Close()

	guard := continuity.NewGuard(chainID, start)
	var filter *txn_filter.TransactionFilter
	if !a.filter.IsEmpty() {
		filter = txn_filter.NewTransactionFilter(a.filter)
	}
	fetched := stats.NewThroughputCounter(a.job.Key()+"_fetched", stats.DEFAULT_COLLECT_DURATION)
	progress := stats.NewReportTimer(stats.DEFAULT_COLLECT_DURATION)

	for {
		b, err := src.Next(runCtx)
		if err != nil {
			if ctx.Err() != nil {
				return shutdown()
			}
			if bounded && common_errors.IsStreamEnded(err) {
				break
			}
			return abort(xerrors.Errorf("fetch at %d: %w", guard.NextExpected(), err))
		}
		if err := guard.Check(b); err != nil {
			return abort(err)
		}
		if filter != nil {
			if dropped := filter.Apply(b); dropped > 0 {
				log.Debug().Int("dropped", dropped).Uint64("start_version", b.StartVersion).
					Uint64("end_version", b.EndVersion).Msg("[orchestrator] filtered records")
			}
		}
		if err := d.Dispatch(runCtx, b); err != nil {
			if ctx.Err() != nil {
				return shutdown()
			}
			return abort(xerrors.Errorf("batch before [%d, %d] failed: %w", b.StartVersion, b.EndVersion, err))
		}
		fetched.Tick(b.NumVersions())
		if progress.Check() {
			wm, _ := tracker.Watermark()
			log.Info().Str("job", a.job.Key()).Uint64("fetched_to", b.EndVersion).
				Uint64("watermark", wm).Int("queued", d.QueueLen()).
				Int("pending_ranges", tracker.PendingRanges()).Msg("[orchestrator] progress")
			progress.Mark()
		}
		if bounded && b.EndVersion >= end {
			break
		}
	}

	if err := o.sm.transition(StateDraining); err != nil {
		return abort(err)
	}
	log.Info().Str("job", a.job.Key()).Uint64("end_version", end).
		Msg("[orchestrator] reached ending version, draining workers")
	if err := d.Drain(); err != nil {
		if ctx.Err() != nil {
			return o.finish()
		}
		return o.fail(err)
	}
	if ctx.Err() != nil {
		return o.finish()
	}
	wm, ok := tracker.Watermark()
	if !ok || wm < end {
		return o.fail(xerrors.Errorf("%w: drained at watermark %d, expected %d",
			common_errors.ErrFatalProcessing, wm, end))
	}
	log.Info().Str("job", a.job.Key()).Uint64("watermark", wm).Msg("[orchestrator] done")
	return o.finish()
}
