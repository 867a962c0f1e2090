package checkpt

import (
	"context"
	"strconv"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/hashfuncs"
	"github.com/go-redis/redis/v9"
	"golang.org/x/xerrors"
)

const (
	REDIS_CHKPT_PREFIX = "chkpt:"
	REDIS_CHAIN_ID_KEY = "chain_id"
	CHAIN_META_NODE    = 0
)

// Versions are compared as decimal strings so that the full uint64 range
// survives Lua's float numbers.
var upsertIfGreaterScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'lsv')
local v = ARGV[1]
if cur then
  if #cur > #v or (#cur == #v and cur >= v) then
    return 0
  end
end
redis.call('HSET', KEYS[1], 'lsv', v, 'lua', ARGV[2], 'lrts', ARGV[3])
if ARGV[4] ~= '' then
  redis.call('HSET', KEYS[1], 'bfs', ARGV[4], 'bfsv', ARGV[5], 'bfev', ARGV[6])
end
return 1
`)

// RedisCheckpointStore keeps one hash per job, spread over the clients by
// the hash of the job key.
type RedisCheckpointStore struct {
	rds []*redis.Client
}

var (
	_ = CheckpointStore(&RedisCheckpointStore{})
	_ = ChainIDStore(&RedisCheckpointStore{})
)

func NewRedisCheckpointStore(rds []*redis.Client) (*RedisCheckpointStore, error) {
	if len(rds) == 0 {
		return nil, xerrors.New("redis checkpoint store needs at least one client")
	}
	return &RedisCheckpointStore{rds: rds}, nil
}

func (s *RedisCheckpointStore) client(key string) *redis.Client {
	return s.rds[hashfuncs.ShardIndex[string](hashfuncs.StringHasher{}, key, len(s.rds))]
}

func (s *RedisCheckpointStore) Get(ctx context.Context, job commtypes.JobIdentity) (commtypes.CheckpointRecord, bool, error) {
	key := REDIS_CHKPT_PREFIX + job.Key()
	fields, err := s.client(key).HGetAll(ctx, key).Result()
	if err != nil {
		return commtypes.CheckpointRecord{}, false, xerrors.Errorf("redis hgetall %s: %w", key, err)
	}
	lsvStr, ok := fields["lsv"]
	if !ok {
		return commtypes.CheckpointRecord{}, false, nil
	}
	rec := commtypes.CheckpointRecord{Job: job.Key()}
	if rec.LastSuccessVersion, err = strconv.ParseUint(lsvStr, 10, 64); err != nil {
		return commtypes.CheckpointRecord{}, false, xerrors.Errorf("parse lsv of %s: %w", key, err)
	}
	if rec.LastUpdatedAtUs, err = parseOptionalInt(fields["lua"]); err != nil {
		return commtypes.CheckpointRecord{}, false, xerrors.Errorf("parse lua of %s: %w", key, err)
	}
	if rec.LastRecordTimestampUs, err = parseOptionalInt(fields["lrts"]); err != nil {
		return commtypes.CheckpointRecord{}, false, xerrors.Errorf("parse lrts of %s: %w", key, err)
	}
	if bfs, ok := fields["bfs"]; ok {
		rec.BackfillStatus = commtypes.BackfillStatus(bfs)
		if rec.BackfillStartVersion, err = strconv.ParseUint(fields["bfsv"], 10, 64); err != nil {
			return commtypes.CheckpointRecord{}, false, xerrors.Errorf("parse bfsv of %s: %w", key, err)
		}
		if rec.BackfillEndVersion, err = strconv.ParseUint(fields["bfev"], 10, 64); err != nil {
			return commtypes.CheckpointRecord{}, false, xerrors.Errorf("parse bfev of %s: %w", key, err)
		}
	}
	return rec, true, nil
}

func parseOptionalInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func (s *RedisCheckpointStore) UpsertIfGreater(ctx context.Context, job commtypes.JobIdentity,
	rec commtypes.CheckpointRecord,
) (bool, error) {
	key := REDIS_CHKPT_PREFIX + job.Key()
	ret, err := upsertIfGreaterScript.Run(ctx, s.client(key), []string{key},
		strconv.FormatUint(rec.LastSuccessVersion, 10),
		strconv.FormatInt(nowUs(), 10),
		strconv.FormatInt(rec.LastRecordTimestampUs, 10),
		string(rec.BackfillStatus),
		strconv.FormatUint(rec.BackfillStartVersion, 10),
		strconv.FormatUint(rec.BackfillEndVersion, 10)).Int()
	if err != nil {
		return false, xerrors.Errorf("redis eval upsert %s: %w", key, err)
	}
	return ret == 1, nil
}

func (s *RedisCheckpointStore) GetChainID(ctx context.Context) (uint64, bool, error) {
	v, err := s.rds[CHAIN_META_NODE].Get(ctx, REDIS_CHAIN_ID_KEY).Result()
	if err == redis.Nil {
		return 0, false, nil
	} else if err != nil {
		return 0, false, xerrors.Errorf("redis get chain id: %w", err)
	}
	chainID, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false, xerrors.Errorf("parse chain id: %w", err)
	}
	return chainID, true, nil
}

func (s *RedisCheckpointStore) SetChainID(ctx context.Context, chainID uint64) error {
	err := s.rds[CHAIN_META_NODE].SetNX(ctx, REDIS_CHAIN_ID_KEY, strconv.FormatUint(chainID, 10), 0).Err()
	if err != nil {
		return xerrors.Errorf("redis setnx chain id: %w", err)
	}
	return nil
}
