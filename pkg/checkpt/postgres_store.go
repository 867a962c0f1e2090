package checkpt

import (
	"context"
	"database/sql"
	"time"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	_ "github.com/lib/pq"
	"golang.org/x/xerrors"
)

const (
	createProcessorStatusTable = `
CREATE TABLE IF NOT EXISTS processor_status (
	processor VARCHAR(200) PRIMARY KEY,
	last_success_version BIGINT NOT NULL,
	last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_transaction_timestamp TIMESTAMPTZ NULL,
	backfill_status VARCHAR(50) NULL,
	backfill_start_version BIGINT NULL,
	backfill_end_version BIGINT NULL
)`
	addBackfillColumns = `
ALTER TABLE processor_status
	ADD COLUMN IF NOT EXISTS backfill_status VARCHAR(50) NULL,
	ADD COLUMN IF NOT EXISTS backfill_start_version BIGINT NULL,
	ADD COLUMN IF NOT EXISTS backfill_end_version BIGINT NULL`
	createLedgerInfosTable = `
CREATE TABLE IF NOT EXISTS ledger_infos (
	chain_id BIGINT PRIMARY KEY NOT NULL
)`
	upsertProcessorStatus = `
INSERT INTO processor_status (processor, last_success_version, last_updated, last_transaction_timestamp,
	backfill_status, backfill_start_version, backfill_end_version)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (processor) DO UPDATE SET
	last_success_version = EXCLUDED.last_success_version,
	last_updated = EXCLUDED.last_updated,
	last_transaction_timestamp = EXCLUDED.last_transaction_timestamp,
	backfill_status = EXCLUDED.backfill_status,
	backfill_start_version = EXCLUDED.backfill_start_version,
	backfill_end_version = EXCLUDED.backfill_end_version
WHERE processor_status.last_success_version < EXCLUDED.last_success_version`
	selectProcessorStatus = `
SELECT last_success_version, last_updated, last_transaction_timestamp,
	backfill_status, backfill_start_version, backfill_end_version
FROM processor_status WHERE processor = $1`
)

// PostgresCheckpointStore keeps one processor_status row per job. The
// conditional upsert makes the monotonic check atomic in the database.
type PostgresCheckpointStore struct {
	db *sql.DB
}

var (
	_ = CheckpointStore(&PostgresCheckpointStore{})
	_ = ChainIDStore(&PostgresCheckpointStore{})
)

func NewPostgresCheckpointStore(connectionString string) (*PostgresCheckpointStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, xerrors.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, xerrors.Errorf("failed to ping database: %w", err)
	}
	return &PostgresCheckpointStore{db: db}, nil
}

func NewPostgresCheckpointStoreFromDB(db *sql.DB) *PostgresCheckpointStore {
	return &PostgresCheckpointStore{db: db}
}

func (s *PostgresCheckpointStore) InitSchema(ctx context.Context) error {
	for _, stmt := range []string{createProcessorStatusTable, addBackfillColumns, createLedgerInfosTable} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return xerrors.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresCheckpointStore) Close() error {
	return s.db.Close()
}

func (s *PostgresCheckpointStore) Get(ctx context.Context, job commtypes.JobIdentity) (commtypes.CheckpointRecord, bool, error) {
	var (
		lsv         int64
		lastUpdated time.Time
		lastTxnTs   sql.NullTime
		bfStatus    sql.NullString
		bfStart     sql.NullInt64
		bfEnd       sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, selectProcessorStatus, job.Key()).
		Scan(&lsv, &lastUpdated, &lastTxnTs, &bfStatus, &bfStart, &bfEnd)
	if err == sql.ErrNoRows {
		return commtypes.CheckpointRecord{}, false, nil
	} else if err != nil {
		return commtypes.CheckpointRecord{}, false, xerrors.Errorf("failed to read processor_status %s: %w", job.Key(), err)
	}
	rec := commtypes.CheckpointRecord{
		Job:                job.Key(),
		LastSuccessVersion: uint64(lsv),
		LastUpdatedAtUs:    lastUpdated.UnixMicro(),
	}
	if lastTxnTs.Valid {
		rec.LastRecordTimestampUs = lastTxnTs.Time.UnixMicro()
	}
	if bfStatus.Valid {
		rec.BackfillStatus = commtypes.BackfillStatus(bfStatus.String)
		rec.BackfillStartVersion = uint64(bfStart.Int64)
		rec.BackfillEndVersion = uint64(bfEnd.Int64)
	}
	return rec, true, nil
}

func (s *PostgresCheckpointStore) UpsertIfGreater(ctx context.Context, job commtypes.JobIdentity,
	rec commtypes.CheckpointRecord,
) (bool, error) {
	var (
		lastTxnTs sql.NullTime
		bfStatus  sql.NullString
		bfStart   sql.NullInt64
		bfEnd     sql.NullInt64
	)
	if rec.LastRecordTimestampUs > 0 {
		lastTxnTs = sql.NullTime{Time: time.UnixMicro(rec.LastRecordTimestampUs).UTC(), Valid: true}
	}
	if rec.BackfillStatus != "" {
		bfStatus = sql.NullString{String: string(rec.BackfillStatus), Valid: true}
		bfStart = sql.NullInt64{Int64: int64(rec.BackfillStartVersion), Valid: true}
		bfEnd = sql.NullInt64{Int64: int64(rec.BackfillEndVersion), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, upsertProcessorStatus,
		job.Key(), int64(rec.LastSuccessVersion), time.UnixMicro(nowUs()).UTC(), lastTxnTs,
		bfStatus, bfStart, bfEnd)
	if err != nil {
		return false, xerrors.Errorf("failed to upsert processor_status %s: %w", job.Key(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, xerrors.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresCheckpointStore) GetChainID(ctx context.Context) (uint64, bool, error) {
	var chainID int64
	err := s.db.QueryRowContext(ctx, `SELECT chain_id FROM ledger_infos LIMIT 1`).Scan(&chainID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	} else if err != nil {
		return 0, false, xerrors.Errorf("failed to read ledger_infos: %w", err)
	}
	return uint64(chainID), true, nil
}

func (s *PostgresCheckpointStore) SetChainID(ctx context.Context, chainID uint64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger_infos (chain_id) VALUES ($1) ON CONFLICT DO NOTHING`, int64(chainID))
	if err != nil {
		return xerrors.Errorf("failed to write ledger_infos: %w", err)
	}
	return nil
}
