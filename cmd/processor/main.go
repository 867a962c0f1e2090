package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"4d63.com/optional"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/config"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/orchestrator"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/stream_client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

var (
	FLAGS_config              string
	FLAGS_health_addr         string
	FLAGS_mode                string
	FLAGS_backfill_alias      string
	FLAGS_starting_version    uint64
	FLAGS_ending_version      uint64
	FLAGS_overwrite_chkpt     bool
	FLAGS_num_workers         uint64
	FLAGS_checkpoint_backend  string
	FLAGS_data_service_addr   string
	FLAGS_postgres_connection string
)

func init() {
	logLevel := os.Getenv("LOG_LEVEL")
	if level, err := zerolog.ParseLevel(logLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// applyFlags lets the command line override the config file for the flags
// that were actually passed.
func applyFlags(cfg *config.IndexerConfig) error {
	var err error
	flag.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "mode":
			cfg.Mode, err = commtypes.ParseRunMode(FLAGS_mode)
		case "backfill_alias":
			cfg.BackfillAlias = FLAGS_backfill_alias
		case "starting_version":
			cfg.StartingVersion = optional.Of(FLAGS_starting_version)
		case "ending_version":
			cfg.EndingVersion = optional.Of(FLAGS_ending_version)
		case "overwrite_checkpoint":
			cfg.OverwriteCheckpoint = FLAGS_overwrite_chkpt
		case "num_workers":
			cfg.NumConcurrentTasks = FLAGS_num_workers
		case "checkpoint_backend":
			cfg.CheckpointBackend = FLAGS_checkpoint_backend
		case "data_service_address":
			cfg.DataServiceAddress = FLAGS_data_service_addr
		case "postgres_connection_string":
			cfg.PostgresConnectionString = FLAGS_postgres_connection
		}
	})
	return err
}

func run() error {
	cfg, err := config.Load(FLAGS_config)
	if err != nil {
		return err
	}
	if err := applyFlags(&cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := buildResources(ctx, &cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	client, err := stream_client.NewStreamClient(cfg.StreamConfig())
	if err != nil {
		return xerrors.Errorf("stream client: %w", err)
	}
	defer client.Close()

	args := orchestrator.NewTaskArgsBuilder(cfg.JobIdentity()).
		Streamer(orchestrator.NewGrpcStreamer(client)).
		CheckpointStore(res.store).
		Processor(res.proc).
		Concurrency(int(cfg.NumConcurrentTasks), int(cfg.FetchQueueSize)).
		ChainIDStore(res.store).
		RetryPolicy(cfg.RetryPolicy()).
		TransactionFilter(cfg.TransactionFilter).
		StartingVersion(cfg.StartingVersion).
		EndingVersion(cfg.EndingVersion).
		OverwriteCheckpoint(cfg.OverwriteCheckpoint).
		GapWarnThreshold(int(cfg.GapWarnThreshold)).
		Build()
	o := orchestrator.NewOrchestrator(args)

	srv := &http.Server{Addr: FLAGS_health_addr, Handler: newHealthMux(o)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", FLAGS_health_addr).Msg("health server failed")
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Info().Str("job", args.Job().Key()).Str("backend", cfg.CheckpointBackend).
		Str("address", cfg.DataServiceAddress).Msg("starting processor")
	return o.Run(ctx)
}

func main() {
	flag.StringVar(&FLAGS_config, "config", "config.json", "path to the JSON config")
	flag.StringVar(&FLAGS_health_addr, "health_addr", ":8084", "listen address of /healthz and /status")
	flag.StringVar(&FLAGS_mode, "mode", "bootstrap", "bootstrap, backfill or testing")
	flag.StringVar(&FLAGS_backfill_alias, "backfill_alias", "", "checkpoint namespace of a backfill")
	flag.Uint64Var(&FLAGS_starting_version, "starting_version", 0, "first version to process")
	flag.Uint64Var(&FLAGS_ending_version, "ending_version", 0, "last version to process")
	flag.BoolVar(&FLAGS_overwrite_chkpt, "overwrite_checkpoint", false, "ignore the stored backfill checkpoint")
	flag.Uint64Var(&FLAGS_num_workers, "num_workers", 0, "concurrent processing tasks")
	flag.StringVar(&FLAGS_checkpoint_backend, "checkpoint_backend", "", "postgres, redis, minio or memory")
	flag.StringVar(&FLAGS_data_service_addr, "data_service_address", "", "address of the transaction stream")
	flag.StringVar(&FLAGS_postgres_connection, "postgres_connection_string", "", "postgres connection string")
	flag.Parse()

	if err := run(); err != nil {
		log.Error().Err(err).Msg("processor exited with error")
		os.Exit(1)
	}
}
