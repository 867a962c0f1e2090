package processors

import (
	"context"
	"database/sql"
	"time"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

const (
	createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
	transaction_version BIGINT NOT NULL,
	event_index BIGINT NOT NULL,
	account_address VARCHAR(66) NOT NULL,
	sequence_number BIGINT NOT NULL,
	type TEXT NOT NULL,
	data TEXT NOT NULL,
	inserted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (transaction_version, event_index)
)`
	insertEvent = `
INSERT INTO events (transaction_version, event_index, account_address, sequence_number, type, data)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (transaction_version, event_index) DO NOTHING`
)

// PostgresSink is the database processors write their rows to.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(connectionString string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, xerrors.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, xerrors.Errorf("failed to ping database: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

func (s *PostgresSink) DB() *sql.DB {
	return s.db
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// EventsProcessor stores every event of user, genesis and block metadata
// records in the events table. Re-delivered batches are ignored through the
// primary key.
type EventsProcessor struct {
	sink *PostgresSink
}

func NewEventsProcessor(sink *PostgresSink) *EventsProcessor {
	return &EventsProcessor{sink: sink}
}

func (p *EventsProcessor) Name() string {
	return EVENTS_PROCESSOR
}

func (p *EventsProcessor) InitSchema(ctx context.Context) error {
	if _, err := p.sink.db.ExecContext(ctx, createEventsTable); err != nil {
		return xerrors.Errorf("failed to create events table: %w", err)
	}
	return nil
}

func (p *EventsProcessor) ProcessBatch(ctx context.Context, records []commtypes.Record,
	startVersion uint64, endVersion uint64,
) error {
	rows := extractEvents(records)
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	if err := p.insert(ctx, rows); err != nil {
		log.Error().Err(err).Str("processor_name", p.Name()).Uint64("start_version", startVersion).
			Uint64("end_version", endVersion).Msg("[events] error inserting events to db")
		return classifyPgError(err)
	}
	log.Debug().Str("processor_name", p.Name()).Int("events", len(rows)).
		Dur("elapsed", time.Since(start)).Msg("[events] inserted")
	return nil
}

func (p *EventsProcessor) insert(ctx context.Context, rows []eventRow) error {
	tx, err := p.sink.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, insertEvent)
	if err != nil {
		return xerrors.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		_, err := stmt.ExecContext(ctx, int64(r.TransactionVersion), r.EventIndex,
			cleanText(r.Event.AccountAddress), int64(r.Event.SequenceNumber),
			cleanText(r.Event.Type), cleanText(r.Event.Data))
		if err != nil {
			return xerrors.Errorf("failed to insert event %d/%d: %w", r.TransactionVersion, r.EventIndex, err)
		}
	}
	return tx.Commit()
}

// classifyPgError makes data and schema errors fatal; everything else, such
// as lost connections or serialization failures, is retried.
func classifyPgError(err error) error {
	var pqErr *pq.Error
	if xerrors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			return common_errors.Retryable(err)
		default:
			return common_errors.Fatal(err)
		}
	}
	return common_errors.Retryable(err)
}
