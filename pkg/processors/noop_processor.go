package processors

import (
	"context"
	"sync/atomic"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
)

// NoopProcessor only counts what it sees. Useful to measure raw ingestion.
type NoopProcessor struct {
	versions atomic.Uint64
	records  atomic.Uint64
}

func NewNoopProcessor() *NoopProcessor {
	return &NoopProcessor{}
}

func (p *NoopProcessor) Name() string {
	return NOOP_PROCESSOR
}

func (p *NoopProcessor) ProcessBatch(ctx context.Context, records []commtypes.Record,
	startVersion uint64, endVersion uint64,
) error {
	p.versions.Add(endVersion - startVersion + 1)
	p.records.Add(uint64(len(records)))
	return nil
}

func (p *NoopProcessor) Versions() uint64 {
	return p.versions.Load()
}

func (p *NoopProcessor) Records() uint64 {
	return p.records.Load()
}
