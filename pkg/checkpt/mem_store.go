package checkpt

import (
	"context"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/utils/syncutils"
	"github.com/zhangyunhao116/skipmap"
)

type memEntry struct {
	mu  syncutils.Mutex
	rec commtypes.CheckpointRecord
}

// MemCheckpointStore keeps checkpoints in process memory. Testing runs use
// it so they never reach a durable store.
type MemCheckpointStore struct {
	entries  *skipmap.StringMap[*memEntry]
	chainMu  syncutils.Mutex
	chainID  uint64
	hasChain bool
}

var (
	_ = CheckpointStore(&MemCheckpointStore{})
	_ = ChainIDStore(&MemCheckpointStore{})
)

func NewMemCheckpointStore() *MemCheckpointStore {
	return &MemCheckpointStore{
		entries: skipmap.NewString[*memEntry](),
	}
}

func (s *MemCheckpointStore) Get(ctx context.Context, job commtypes.JobIdentity) (commtypes.CheckpointRecord, bool, error) {
	e, ok := s.entries.Load(job.Key())
	if !ok {
		return commtypes.CheckpointRecord{}, false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.Job == "" {
		return commtypes.CheckpointRecord{}, false, nil
	}
	return e.rec, true, nil
}

func (s *MemCheckpointStore) UpsertIfGreater(ctx context.Context, job commtypes.JobIdentity,
	rec commtypes.CheckpointRecord,
) (bool, error) {
	key := job.Key()
	e, _ := s.entries.LoadOrStore(key, &memEntry{})
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.Job != "" && rec.LastSuccessVersion <= e.rec.LastSuccessVersion {
		return false, nil
	}
	rec.Job = key
	rec.LastUpdatedAtUs = nowUs()
	e.rec = rec
	return true, nil
}

func (s *MemCheckpointStore) GetChainID(ctx context.Context) (uint64, bool, error) {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()
	return s.chainID, s.hasChain, nil
}

func (s *MemCheckpointStore) SetChainID(ctx context.Context, chainID uint64) error {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()
	if !s.hasChain {
		s.chainID = chainID
		s.hasChain = true
	}
	return nil
}
