package commtypes

import (
	"fmt"
	"strings"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"golang.org/x/xerrors"
)

type RunMode uint8

const (
	// Bootstrap tails the stream from the stored checkpoint with no end.
	Bootstrap RunMode = iota
	// Backfill processes a bounded range under its own checkpoint namespace.
	Backfill
	// Testing processes a bounded range without touching durable checkpoints.
	Testing
)

func (m RunMode) String() string {
	switch m {
	case Bootstrap:
		return "bootstrap"
	case Backfill:
		return "backfill"
	case Testing:
		return "testing"
	default:
		return fmt.Sprintf("RunMode(%d)", uint8(m))
	}
}

func (m RunMode) Bounded() bool {
	return m == Backfill || m == Testing
}

func ParseRunMode(s string) (RunMode, error) {
	switch strings.ToLower(s) {
	case "bootstrap", "default", "":
		return Bootstrap, nil
	case "backfill":
		return Backfill, nil
	case "testing":
		return Testing, nil
	default:
		return 0, xerrors.Errorf("%w: unknown mode %q", common_errors.ErrInvalidConfig, s)
	}
}

// JobIdentity names one independently checkpointed consumer of the stream.
type JobIdentity struct {
	ProcessorName string
	Mode          RunMode
	BackfillAlias string
}

// Key is the checkpoint namespace of the job. Bootstrap jobs own the bare
// processor name; bounded modes are nested under it so they can never
// collide with it.
func (j JobIdentity) Key() string {
	switch j.Mode {
	case Backfill:
		return j.ProcessorName + "/backfill/" + j.BackfillAlias
	case Testing:
		return j.ProcessorName + "/testing/" + j.BackfillAlias
	default:
		return j.ProcessorName
	}
}

func (j JobIdentity) String() string {
	return j.Key()
}

// CompletionRange is an inclusive version range a worker finished.
type CompletionRange struct {
	Start                 uint64 `json:"start" msg:"start"`
	End                   uint64 `json:"end" msg:"end"`
	LastRecordTimestampUs int64  `json:"lrts,omitempty" msg:"lrts,omitempty"`
}

func (r CompletionRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.Start, r.End)
}

func (r CompletionRange) Len() uint64 {
	return r.End - r.Start + 1
}
