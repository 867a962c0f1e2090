package checkpt

import (
	"context"
	"time"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

// CheckpointStore is the durable mapping from a job to the last version it
// committed. Implementations enforce monotonicity: UpsertIfGreater with
// rec.LastSuccessVersion not above the stored one changes nothing and
// reports false. The store fills in rec.Job and rec.LastUpdatedAtUs.
type CheckpointStore interface {
	Get(ctx context.Context, job commtypes.JobIdentity) (commtypes.CheckpointRecord, bool, error)
	UpsertIfGreater(ctx context.Context, job commtypes.JobIdentity, rec commtypes.CheckpointRecord) (bool, error)
}

// ChainIDStore remembers which chain the stored checkpoints belong to.
type ChainIDStore interface {
	GetChainID(ctx context.Context) (uint64, bool, error)
	// SetChainID stores chainID unless one is already present.
	SetChainID(ctx context.Context, chainID uint64) error
}

var nowUs = func() int64 {
	return time.Now().UnixMicro()
}

// CheckOrUpdateChainID records chainID on first use and fails if a
// different chain was recorded before.
func CheckOrUpdateChainID(ctx context.Context, s ChainIDStore, chainID uint64) error {
	stored, found, err := s.GetChainID(ctx)
	if err != nil {
		return xerrors.Errorf("read chain id: %w", err)
	}
	if !found {
		log.Info().Uint64("chain_id", chainID).Msg("[checkpt] chain id not in store, writing it")
		if err := s.SetChainID(ctx, chainID); err != nil {
			return xerrors.Errorf("write chain id: %w", err)
		}
		stored, _, err = s.GetChainID(ctx)
		if err != nil {
			return xerrors.Errorf("read chain id: %w", err)
		}
	}
	if stored != chainID {
		return xerrors.Errorf("%w: store has %d, stream has %d",
			common_errors.ErrChainIDMismatch, stored, chainID)
	}
	return nil
}
