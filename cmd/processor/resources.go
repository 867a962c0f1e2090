package main

import (
	"context"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/checkpt"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/config"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/env_config"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/pipeline"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/processors"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/redis_client"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

type durableStore interface {
	checkpt.CheckpointStore
	checkpt.ChainIDStore
}

// resources are the external connections one run holds open.
type resources struct {
	store   durableStore
	proc    pipeline.Processor
	closers []func() error
}

func (r *resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close resource")
		}
	}
}

func buildResources(ctx context.Context, cfg *config.IndexerConfig) (*resources, error) {
	res := &resources{}
	var deps processors.Deps
	fail := func(err error) (*resources, error) {
		res.Close()
		return nil, err
	}

	if cfg.ProcessorName == processors.EVENTS_PROCESSOR {
		sink, err := processors.NewPostgresSink(cfg.PostgresConnectionString)
		if err != nil {
			return fail(err)
		}
		res.closers = append(res.closers, sink.Close)
		if err := processors.NewEventsProcessor(sink).InitSchema(ctx); err != nil {
			return fail(err)
		}
		deps.Postgres = sink
	}
	if cfg.ProcessorName == processors.KAFKA_EVENTS_PROCESSOR {
		if env_config.KAFKA_BOOTSTRAP_SERVERS == "" || cfg.KafkaTopic == "" {
			return fail(xerrors.New("kafka_events_processor needs KAFKA_BOOTSTRAP_SERVERS and kafka_topic"))
		}
		sink, err := processors.NewKafkaSink(env_config.KAFKA_BOOTSTRAP_SERVERS, cfg.KafkaTopic, cfg.SerdeFormat)
		if err != nil {
			return fail(err)
		}
		res.closers = append(res.closers, func() error {
			sink.Close()
			return nil
		})
		deps.Kafka = sink
	}
	proc, err := processors.NewProcessor(cfg.ProcessorName, deps)
	if err != nil {
		return fail(err)
	}
	res.proc = proc

	switch cfg.CheckpointBackend {
	case config.CHECKPOINT_BACKEND_POSTGRES:
		var s *checkpt.PostgresCheckpointStore
		if deps.Postgres != nil {
			// share the processor's pool
			s = checkpt.NewPostgresCheckpointStoreFromDB(deps.Postgres.DB())
		} else {
			s, err = checkpt.NewPostgresCheckpointStore(cfg.PostgresConnectionString)
			if err != nil {
				return fail(err)
			}
			res.closers = append(res.closers, s.Close)
		}
		if err := s.InitSchema(ctx); err != nil {
			return fail(err)
		}
		res.store = s
	case config.CHECKPOINT_BACKEND_REDIS:
		rds := redis_client.GetRedisClients()
		for _, rd := range rds {
			res.closers = append(res.closers, rd.Close)
		}
		s, err := checkpt.NewRedisCheckpointStore(rds)
		if err != nil {
			return fail(err)
		}
		res.store = s
	case config.CHECKPOINT_BACKEND_MINIO:
		s, err := checkpt.NewMinioChkptStore(checkpt.MinioConfig{
			Addrs:     env_config.MINIO_ADDR,
			AccessKey: env_config.MINIO_ACCESS_KEY,
			SecretKey: env_config.MINIO_SECRET_KEY,
			Secure:    env_config.MINIO_SECURE,
		}, cfg.SerdeFormat)
		if err != nil {
			return fail(err)
		}
		if err := s.CreateCheckpointBucket(ctx); err != nil {
			return fail(err)
		}
		res.store = s
	case config.CHECKPOINT_BACKEND_MEMORY:
		log.Warn().Msg("memory checkpoint backend: progress is lost on exit")
		res.store = checkpt.NewMemCheckpointStore()
	default:
		return fail(xerrors.Errorf("unknown checkpoint backend %q", cfg.CheckpointBackend))
	}
	return res, nil
}
