package continuity

import (
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"golang.org/x/xerrors"
)

// Check verifies that batch continues the stream exactly at expectedNext on
// expectedChain and returns the version the following batch must start at.
// Every failure wraps ErrContinuityViolation and is fatal for the job.
func Check(batch *commtypes.RecordBatch, expectedChain uint64, expectedNext uint64) (uint64, error) {
	if batch.ChainID != expectedChain {
		return expectedNext, xerrors.Errorf("%w: batch [%d, %d] is from chain %d, expected chain %d",
			common_errors.ErrContinuityViolation, batch.StartVersion, batch.EndVersion, batch.ChainID, expectedChain)
	}
	if batch.StartVersion != expectedNext {
		kind := "gap"
		if batch.StartVersion < expectedNext {
			kind = "duplicate"
		}
		return expectedNext, xerrors.Errorf("%w: %s, batch starts at %d, expected %d",
			common_errors.ErrContinuityViolation, kind, batch.StartVersion, expectedNext)
	}
	if err := batch.Validate(); err != nil {
		if xerrors.Is(err, common_errors.ErrContinuityViolation) {
			return expectedNext, err
		}
		return expectedNext, xerrors.Errorf("%w: %v", common_errors.ErrContinuityViolation, err)
	}
	return batch.EndVersion + 1, nil
}

// Guard carries the running expectation between batches. It is owned by the
// fetch goroutine and is not safe for concurrent use.
type Guard struct {
	chainID  uint64
	next     uint64
	violated error
}

func NewGuard(chainID uint64, startVersion uint64) *Guard {
	return &Guard{chainID: chainID, next: startVersion}
}

// Check advances the expectation past batch. After the first violation every
// later call returns the same error.
func (g *Guard) Check(batch *commtypes.RecordBatch) error {
	if g.violated != nil {
		return g.violated
	}
	next, err := Check(batch, g.chainID, g.next)
	if err != nil {
		g.violated = err
		return err
	}
	g.next = next
	return nil
}

func (g *Guard) NextExpected() uint64 {
	return g.next
}
