package pipeline

import (
	"context"
	"time"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/stats"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

// Processor turns a batch of records into output side effects. Writes must
// be idempotent: after a crash the batches above the checkpoint are
// delivered again.
//
// Return an error wrapped with common_errors.Fatal to halt the job; any
// other error is retried.
type Processor interface {
	Name() string
	ProcessBatch(ctx context.Context, records []commtypes.Record, startVersion uint64, endVersion uint64) error
}

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	return utils.ExpBackoff(p.InitialBackoff, p.MaxBackoff, attempt)
}

// Pipeline runs one batch through the processor with retries. It is safe to
// share between workers.
type Pipeline struct {
	proc    Processor
	policy  RetryPolicy
	latency *stats.StatsCollector[int64]
	tput    *stats.ThroughputCounter
}

func NewPipeline(proc Processor, policy RetryPolicy) *Pipeline {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = policy.InitialBackoff
	}
	return &Pipeline{
		proc:    proc,
		policy:  policy,
		latency: stats.NewStatsCollector[int64](proc.Name()+"_batch_us", stats.DEFAULT_COLLECT_DURATION),
		tput:    stats.NewThroughputCounter(proc.Name()+"_versions", stats.DEFAULT_COLLECT_DURATION),
	}
}

func (p *Pipeline) ProcessorName() string {
	return p.proc.Name()
}

// Process hands batch to the processor and returns the range it completed.
// Retryable failures are retried up to MaxAttempts times before escalating
// to a fatal error; fatal failures return at once.
func (p *Pipeline) Process(ctx context.Context, batch *commtypes.RecordBatch) (commtypes.CompletionRange, error) {
	r := commtypes.CompletionRange{
		Start:                 batch.StartVersion,
		End:                   batch.EndVersion,
		LastRecordTimestampUs: batch.LastTimestampUs(),
	}
	var lastErr error
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		start := time.Now()
		err := p.proc.ProcessBatch(ctx, batch.Records, batch.StartVersion, batch.EndVersion)
		if err == nil {
			p.latency.AddSample(time.Since(start).Microseconds())
			p.tput.Tick(batch.NumVersions())
			return r, nil
		}
		if ctx.Err() != nil {
			return r, ctx.Err()
		}
		if xerrors.Is(err, common_errors.ErrFatalProcessing) {
			return r, xerrors.Errorf("%s on batch %v: %w", p.proc.Name(), r, err)
		}
		lastErr = err
		if attempt == p.policy.MaxAttempts {
			break
		}
		delay := p.policy.backoff(attempt)
		log.Warn().Err(err).Str("processor", p.proc.Name()).Stringer("range", r).
			Int("attempt", attempt).Dur("backoff", delay).Msg("[pipeline] batch failed, retrying")
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return r, ctx.Err()
		}
	}
	return r, common_errors.Fatal(xerrors.Errorf("%s on batch %v gave up after %d attempts: %w",
		p.proc.Name(), r, p.policy.MaxAttempts, lastErr))
}

// Flush logs the latency samples not yet reported.
func (p *Pipeline) Flush() {
	p.latency.PrintRemainingStats()
}
