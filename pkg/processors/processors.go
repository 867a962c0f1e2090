package processors

import (
	"strings"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/pipeline"
	"golang.org/x/xerrors"
)

const (
	EVENTS_PROCESSOR       = "events_processor"
	KAFKA_EVENTS_PROCESSOR = "kafka_events_processor"
	NOOP_PROCESSOR         = "noop_processor"
)

// Deps holds the sinks a processor may write to. Only the ones the chosen
// processor needs have to be set.
type Deps struct {
	Postgres *PostgresSink
	Kafka    *KafkaSink
}

func NewProcessor(name string, deps Deps) (pipeline.Processor, error) {
	switch name {
	case EVENTS_PROCESSOR:
		if deps.Postgres == nil {
			return nil, xerrors.Errorf("%w: %s needs a postgres connection", common_errors.ErrInvalidConfig, name)
		}
		return NewEventsProcessor(deps.Postgres), nil
	case KAFKA_EVENTS_PROCESSOR:
		if deps.Kafka == nil {
			return nil, xerrors.Errorf("%w: %s needs a kafka producer", common_errors.ErrInvalidConfig, name)
		}
		return NewKafkaEventsProcessor(deps.Kafka), nil
	case NOOP_PROCESSOR:
		return NewNoopProcessor(), nil
	default:
		return nil, xerrors.Errorf("%w: %q", common_errors.ErrUnknownProcessor, name)
	}
}

// eventRow is one event flattened with the version it was emitted at.
type eventRow struct {
	TransactionVersion uint64
	EventIndex         int
	Event              commtypes.Event
}

// extractEvents collects the events of the record kinds that carry them.
func extractEvents(records []commtypes.Record) []eventRow {
	rows := make([]eventRow, 0, len(records))
	for i := range records {
		r := &records[i]
		switch r.Kind {
		case commtypes.TxnUser, commtypes.TxnGenesis, commtypes.TxnBlockMetadata:
		default:
			continue
		}
		for idx, ev := range r.Events {
			rows = append(rows, eventRow{TransactionVersion: r.Version, EventIndex: idx, Event: ev})
		}
	}
	return rows
}

// Postgres rejects NUL in text columns.
func cleanText(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
