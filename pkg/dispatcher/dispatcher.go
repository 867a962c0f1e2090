package dispatcher

import (
	"context"
	"sync"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/debug"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

type BatchProcessor interface {
	Process(ctx context.Context, batch *commtypes.RecordBatch) (commtypes.CompletionRange, error)
}

type CompletionReporter interface {
	Report(ctx context.Context, r commtypes.CompletionRange) (uint64, bool, error)
	Fail(r commtypes.CompletionRange)
}

// Dispatcher fans batches out to a fixed set of workers over a bounded
// queue. At most queueSize batches wait and numWorkers batches execute at
// any time; Dispatch blocks once the queue is full.
type Dispatcher struct {
	queue    chan *commtypes.RecordBatch
	stop     chan struct{}
	g        *errgroup.Group
	gctx     context.Context
	proc     BatchProcessor
	reporter CompletionReporter

	closeQueue sync.Once
	closeStop  sync.Once
}

func NewDispatcher(ctx context.Context, numWorkers int, queueSize int,
	proc BatchProcessor, reporter CompletionReporter,
) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	g, gctx := errgroup.WithContext(ctx)
	d := &Dispatcher{
		queue:    make(chan *commtypes.RecordBatch, queueSize),
		stop:     make(chan struct{}),
		g:        g,
		gctx:     gctx,
		proc:     proc,
		reporter: reporter,
	}
	for i := 0; i < numWorkers; i++ {
		id := i
		g.Go(func() error {
			return d.work(id)
		})
	}
	log.Info().Int("workers", numWorkers).Int("queue_size", queueSize).Msg("[dispatcher] started")
	return d
}

func (d *Dispatcher) work(id int) error {
	for {
		select {
		case <-d.stop:
			return nil
		default:
		}
		select {
		case <-d.gctx.Done():
			return nil
		case <-d.stop:
			return nil
		case b, ok := <-d.queue:
			if !ok {
				return nil
			}
			if err := d.handle(id, b); err != nil {
				return err
			}
		}
	}
}

func (d *Dispatcher) handle(id int, b *commtypes.RecordBatch) error {
	r, err := d.proc.Process(d.gctx, b)
	if err != nil {
		if d.gctx.Err() != nil && !common_errors.IsFatal(err) {
			// cancelled mid-batch; the range stays unreported and is fetched
			// again on the next run
			return nil
		}
		d.reporter.Fail(r)
		log.Error().Err(err).Int("worker", id).Stringer("range", r).Msg("[dispatcher] batch failed")
		return err
	}
	wm, advanced, err := d.reporter.Report(d.gctx, r)
	if err != nil {
		if d.gctx.Err() != nil && !xerrors.Is(err, common_errors.ErrOverlappingRange) {
			// shutting down; the checkpoint write was cut short and the range
			// is fetched again on the next run
			log.Warn().Err(err).Int("worker", id).Stringer("range", r).
				Msg("[dispatcher] checkpoint not written before shutdown")
			return nil
		}
		d.reporter.Fail(r)
		if common_errors.IsFatal(err) {
			return err
		}
		return common_errors.Fatal(xerrors.Errorf("report %v: %w", r, err))
	}
	if advanced {
		debug.Debugf("[dispatcher] worker %d completed %v, watermark %d", id, r, wm)
	}
	return nil
}

// Dispatch queues b, blocking while the queue is full. Once a worker failed
// it returns that worker's error.
func (d *Dispatcher) Dispatch(ctx context.Context, b *commtypes.RecordBatch) error {
	select {
	case <-d.gctx.Done():
		return d.failure()
	default:
	}
	select {
	case d.queue <- b:
		return nil
	case <-d.gctx.Done():
		return d.failure()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) failure() error {
	if err := d.g.Wait(); err != nil {
		return err
	}
	return d.gctx.Err()
}

// Drain processes everything already queued and waits for the workers.
func (d *Dispatcher) Drain() error {
	d.closeQueue.Do(func() { close(d.queue) })
	return d.g.Wait()
}

// Stop lets in-flight batches finish, abandons queued ones and waits for
// the workers.
func (d *Dispatcher) Stop() error {
	d.closeStop.Do(func() { close(d.stop) })
	return d.g.Wait()
}

func (d *Dispatcher) QueueLen() int {
	return len(d.queue)
}
