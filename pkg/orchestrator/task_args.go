package orchestrator

import (
	"context"

	"4d63.com/optional"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/checkpt"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/completion_tracker"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/pipeline"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/stream_client"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/txn_filter"
)

// BatchSource yields continuous batches until the ending version, after
// which Next returns common_errors.ErrStreamEnded.
type BatchSource interface {
	Next(ctx context.Context) (*commtypes.RecordBatch, error)
	Close()
}

type Streamer interface {
	GetChainID(ctx context.Context) (uint64, error)
	Open(ctx context.Context, chainID uint64, startVersion uint64, endVersion optional.Optional[uint64]) (BatchSource, error)
}

type grpcStreamer struct {
	c *stream_client.StreamClient
}

// NewGrpcStreamer adapts a StreamClient to the Streamer the orchestrator
// reads from.
func NewGrpcStreamer(c *stream_client.StreamClient) Streamer {
	return grpcStreamer{c: c}
}

func (s grpcStreamer) GetChainID(ctx context.Context) (uint64, error) {
	return s.c.GetChainID(ctx)
}

func (s grpcStreamer) Open(ctx context.Context, chainID uint64, startVersion uint64,
	endVersion optional.Optional[uint64],
) (BatchSource, error) {
	bs, err := s.c.Open(ctx, chainID, startVersion, endVersion)
	if err != nil {
		return nil, err
	}
	return bs, nil
}

type TaskArgs struct {
	job                 commtypes.JobIdentity
	streamer            Streamer
	store               checkpt.CheckpointStore
	chainIDStore        checkpt.ChainIDStore
	proc                pipeline.Processor
	retryPolicy         pipeline.RetryPolicy
	filter              txn_filter.FilterConfig
	startVersion        optional.Optional[uint64]
	endVersion          optional.Optional[uint64]
	numWorkers          int
	queueSize           int
	gapWarnThreshold    int
	overwriteCheckpoint bool
}

func (args *TaskArgs) Job() commtypes.JobIdentity {
	return args.job
}

type TaskArgsBuilder struct {
	args *TaskArgs
}

func NewTaskArgsBuilder(job commtypes.JobIdentity) SetStreamer {
	return &TaskArgsBuilder{
		args: &TaskArgs{
			job:              job,
			retryPolicy:      pipeline.DefaultRetryPolicy(),
			startVersion:     optional.Empty[uint64](),
			endVersion:       optional.Empty[uint64](),
			numWorkers:       1,
			gapWarnThreshold: completion_tracker.DEFAULT_GAP_WARN_THRESHOLD,
		},
	}
}

type SetStreamer interface {
	Streamer(Streamer) SetCheckpointStore
}

type SetCheckpointStore interface {
	CheckpointStore(checkpt.CheckpointStore) SetProcessor
}

type SetProcessor interface {
	Processor(pipeline.Processor) SetConcurrency
}

type SetConcurrency interface {
	Concurrency(numWorkers int, queueSize int) BuildTaskArgs
}

type BuildTaskArgs interface {
	Build() *TaskArgs
	ChainIDStore(checkpt.ChainIDStore) BuildTaskArgs
	RetryPolicy(pipeline.RetryPolicy) BuildTaskArgs
	TransactionFilter(txn_filter.FilterConfig) BuildTaskArgs
	StartingVersion(optional.Optional[uint64]) BuildTaskArgs
	EndingVersion(optional.Optional[uint64]) BuildTaskArgs
	OverwriteCheckpoint(bool) BuildTaskArgs
	GapWarnThreshold(int) BuildTaskArgs
}

func (b *TaskArgsBuilder) Streamer(s Streamer) SetCheckpointStore {
	b.args.streamer = s
	return b
}

func (b *TaskArgsBuilder) CheckpointStore(s checkpt.CheckpointStore) SetProcessor {
	b.args.store = s
	return b
}

func (b *TaskArgsBuilder) Processor(p pipeline.Processor) SetConcurrency {
	b.args.proc = p
	return b
}

func (b *TaskArgsBuilder) Concurrency(numWorkers int, queueSize int) BuildTaskArgs {
	b.args.numWorkers = numWorkers
	b.args.queueSize = queueSize
	return b
}

func (b *TaskArgsBuilder) ChainIDStore(s checkpt.ChainIDStore) BuildTaskArgs {
	b.args.chainIDStore = s
	return b
}

func (b *TaskArgsBuilder) RetryPolicy(p pipeline.RetryPolicy) BuildTaskArgs {
	b.args.retryPolicy = p
	return b
}

func (b *TaskArgsBuilder) TransactionFilter(f txn_filter.FilterConfig) BuildTaskArgs {
	b.args.filter = f
	return b
}

func (b *TaskArgsBuilder) StartingVersion(v optional.Optional[uint64]) BuildTaskArgs {
	b.args.startVersion = v
	return b
}

func (b *TaskArgsBuilder) EndingVersion(v optional.Optional[uint64]) BuildTaskArgs {
	b.args.endVersion = v
	return b
}

func (b *TaskArgsBuilder) OverwriteCheckpoint(overwrite bool) BuildTaskArgs {
	b.args.overwriteCheckpoint = overwrite
	return b
}

func (b *TaskArgsBuilder) GapWarnThreshold(n int) BuildTaskArgs {
	b.args.gapWarnThreshold = n
	return b
}

func (b *TaskArgsBuilder) Build() *TaskArgs {
	return b.args
}
