package checkpt

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/hashfuncs"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/utils/syncutils"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

const (
	CHKPT_BUCKET_NAME   = "indexer-checkpoints"
	MINIO_CHAIN_ID_NAME = "chain_id"
)

// MinioChkptStore keeps one object per job. Object stores have no
// compare-and-set, so writes for a job are serialized by a per-key lock and
// the store must have a single writer process per job.
type MinioChkptStore struct {
	minioClients []*minio.Client
	serde        commtypes.SerdeG[commtypes.CheckpointRecord]
	locks        *syncutils.KeyedMutex
}

var (
	_ = CheckpointStore(&MinioChkptStore{})
	_ = ChainIDStore(&MinioChkptStore{})
)

type MinioConfig struct {
	Addrs     []string
	AccessKey string
	SecretKey string
	Secure    bool
}

func NewMinioChkptStore(cfg MinioConfig, serdeFormat commtypes.SerdeFormat) (*MinioChkptStore, error) {
	if len(cfg.Addrs) == 0 {
		return nil, xerrors.New("minio checkpoint store needs at least one address")
	}
	serde, err := commtypes.GetCheckpointRecordSerdeG(serdeFormat)
	if err != nil {
		return nil, err
	}
	mcs := make([]*minio.Client, len(cfg.Addrs))
	for i := 0; i < len(cfg.Addrs); i++ {
		mc, err := minio.New(cfg.Addrs[i], &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.Secure,
		})
		if err != nil {
			return nil, xerrors.Errorf("minio client %s: %w", cfg.Addrs[i], err)
		}
		mcs[i] = mc
	}
	log.Info().Strs("minio_addr", cfg.Addrs).Msg("[checkpt] minio checkpoint store")
	return &MinioChkptStore{
		minioClients: mcs,
		serde:        serde,
		locks:        syncutils.NewKeyedMutex(),
	}, nil
}

// CreateCheckpointBucket makes sure every shard has the bucket.
func (mc *MinioChkptStore) CreateCheckpointBucket(ctx context.Context) error {
	bg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < len(mc.minioClients); i++ {
		client := mc.minioClients[i]
		bg.Go(func() error {
			exists, err := client.BucketExists(ctx, CHKPT_BUCKET_NAME)
			if err != nil {
				return err
			}
			if exists {
				return nil
			}
			return client.MakeBucket(ctx, CHKPT_BUCKET_NAME, minio.MakeBucketOptions{})
		})
	}
	return bg.Wait()
}

func (mc *MinioChkptStore) client(name string) *minio.Client {
	return mc.minioClients[hashfuncs.ShardIndex[string](hashfuncs.StringHasher{}, name, len(mc.minioClients))]
}

func objectName(job commtypes.JobIdentity) string {
	return "chkpt/" + job.Key()
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func (mc *MinioChkptStore) readObject(ctx context.Context, name string) ([]byte, bool, error) {
	obj, err := mc.client(name).GetObject(ctx, CHKPT_BUCKET_NAME, name, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (mc *MinioChkptStore) writeObject(ctx context.Context, name string, data []byte) error {
	_, err := mc.client(name).PutObject(ctx, CHKPT_BUCKET_NAME, name, bytes.NewReader(data),
		int64(len(data)), minio.PutObjectOptions{})
	return err
}

func (mc *MinioChkptStore) Get(ctx context.Context, job commtypes.JobIdentity) (commtypes.CheckpointRecord, bool, error) {
	name := objectName(job)
	data, found, err := mc.readObject(ctx, name)
	if err != nil {
		return commtypes.CheckpointRecord{}, false, xerrors.Errorf("minio get %s: %w", name, err)
	}
	if !found {
		return commtypes.CheckpointRecord{}, false, nil
	}
	rec, err := mc.serde.Decode(data)
	if err != nil {
		return commtypes.CheckpointRecord{}, false, xerrors.Errorf("decode %s: %w", name, err)
	}
	return rec, true, nil
}

func (mc *MinioChkptStore) UpsertIfGreater(ctx context.Context, job commtypes.JobIdentity,
	rec commtypes.CheckpointRecord,
) (bool, error) {
	unlock := mc.locks.Lock(job.Key())
	defer unlock()
	cur, found, err := mc.Get(ctx, job)
	if err != nil {
		return false, err
	}
	if found && rec.LastSuccessVersion <= cur.LastSuccessVersion {
		return false, nil
	}
	rec.Job = job.Key()
	rec.LastUpdatedAtUs = nowUs()
	enc, err := mc.serde.Encode(rec)
	if err != nil {
		return false, err
	}
	name := objectName(job)
	if err := mc.writeObject(ctx, name, enc); err != nil {
		return false, xerrors.Errorf("minio put %s: %w", name, err)
	}
	return true, nil
}

func (mc *MinioChkptStore) GetChainID(ctx context.Context) (uint64, bool, error) {
	data, found, err := mc.readObject(ctx, MINIO_CHAIN_ID_NAME)
	if err != nil || !found {
		return 0, false, err
	}
	if len(data) != 8 {
		return 0, false, xerrors.Errorf("chain id object has %d bytes", len(data))
	}
	return binary.LittleEndian.Uint64(data), true, nil
}

func (mc *MinioChkptStore) SetChainID(ctx context.Context, chainID uint64) error {
	unlock := mc.locks.Lock(MINIO_CHAIN_ID_NAME)
	defer unlock()
	_, found, err := mc.GetChainID(ctx)
	if err != nil || found {
		return err
	}
	bs := make([]byte, 8)
	binary.LittleEndian.PutUint64(bs, chainID)
	return mc.writeObject(ctx, MINIO_CHAIN_ID_NAME, bs)
}
