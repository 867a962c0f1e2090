package stream_client

import (
	"context"
	"crypto/tls"
	"net/url"
	"time"

	"4d63.com/optional"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/stats"
	"github.com/gammazero/deque"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
)

const (
	GRPC_AUTH_HEADER          = "authorization"
	GRPC_REQUEST_NAME_HEADER  = "x-aptos-request-name"
	GRPC_CONNECTION_ID_HEADER = "x-aptos-connection-id"

	MAX_RESPONSE_SIZE = 256 * 1024 * 1024

	DEFAULT_RECONNECTION_MAX_RETRIES = 5
	DEFAULT_CHUNK_SIZE               = 100000
)

type Config struct {
	Address       string
	AuthToken     string
	ProcessorName string

	PingInterval     time.Duration
	PingTimeout      time.Duration
	ReconnectTimeout time.Duration
	ItemTimeout      time.Duration

	MaxReconnectRetries int
	InitialBackoff      time.Duration
	MaxBackoff          time.Duration

	// ChunkSize caps the number of records per delivered batch.
	ChunkSize int

	// DialOptions are appended after the defaults.
	DialOptions []grpc.DialOption
}

func DefaultConfig() Config {
	return Config{
		PingInterval:        30 * time.Second,
		PingTimeout:         10 * time.Second,
		ReconnectTimeout:    5 * time.Second,
		ItemTimeout:         60 * time.Second,
		MaxReconnectRetries: DEFAULT_RECONNECTION_MAX_RETRIES,
		InitialBackoff:      100 * time.Millisecond,
		MaxBackoff:          5 * time.Second,
		ChunkSize:           DEFAULT_CHUNK_SIZE,
	}
}

// StreamClient owns the connection to the data service. Batch streams
// opened from it share the connection.
type StreamClient struct {
	cfg          Config
	conn         *grpc.ClientConn
	fetchCounter *stats.ThroughputCounter
}

func dialTarget(address string) (string, credentials.TransportCredentials) {
	u, err := url.Parse(address)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		if u.Scheme == "https" {
			return u.Host, credentials.NewTLS(&tls.Config{})
		}
		return u.Host, insecure.NewCredentials()
	}
	return address, insecure.NewCredentials()
}

func NewStreamClient(cfg Config) (*StreamClient, error) {
	if cfg.Address == "" {
		return nil, xerrors.New("stream client needs an address")
	}
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.MaxReconnectRetries <= 0 {
		cfg.MaxReconnectRetries = def.MaxReconnectRetries
	}
	if cfg.ReconnectTimeout <= 0 {
		cfg.ReconnectTimeout = def.ReconnectTimeout
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = def.ItemTimeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	target, creds := dialTarget(cfg.Address)
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.PingInterval,
			Timeout:             cfg.PingTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(MAX_RESPONSE_SIZE),
			grpc.MaxCallSendMsgSize(MAX_RESPONSE_SIZE),
			grpc.ForceCodec(MsgpCodec{}),
		),
	}
	opts = append(opts, cfg.DialOptions...)
	conn, err := grpc.Dial(target, opts...)
	if err != nil {
		return nil, xerrors.Errorf("dial %s: %w", cfg.Address, err)
	}
	log.Info().Str("processor_name", cfg.ProcessorName).Str("stream_address", cfg.Address).
		Msg("[stream] set up rpc channel")
	return &StreamClient{
		cfg:          cfg,
		conn:         conn,
		fetchCounter: stats.NewThroughputCounter("fetch", 10*time.Second),
	}, nil
}

func (c *StreamClient) Close() error {
	return c.conn.Close()
}

// Open starts streaming at startVersion. With endVersion set the stream
// stops after delivering it; without, it tails forever.
func (c *StreamClient) Open(ctx context.Context, chainID uint64, startVersion uint64,
	endVersion optional.Optional[uint64],
) (*BatchStream, error) {
	if end, ok := endVersion.Get(); ok && end < startVersion {
		return nil, xerrors.Errorf("open stream: end version %d is before start version %d", end, startVersion)
	}
	log.Info().Str("processor_name", c.cfg.ProcessorName).Uint64("chain_id", chainID).
		Uint64("start_version", startVersion).Interface("end_version", endVersion).
		Msg("[stream] opening batch stream")
	return &BatchStream{
		c:           c,
		ctx:         ctx,
		chainID:     chainID,
		endVersion:  endVersion,
		nextRequest: startVersion,
		pending:     deque.New[commtypes.RecordBatch](),
	}, nil
}

// GetChainID asks the service which chain it serves by reading versions 1
// to 2.
func (c *StreamClient) GetChainID(ctx context.Context) (uint64, error) {
	bs, err := c.Open(ctx, 0, 1, optional.Of[uint64](2))
	if err != nil {
		return 0, err
	}
	defer bs.Close()
	b, err := bs.Next(ctx)
	if err != nil {
		return 0, xerrors.Errorf("get chain id: %w", err)
	}
	log.Info().Uint64("chain_id", b.ChainID).Msg("[stream] got chain id from stream")
	return b.ChainID, nil
}

func (c *StreamClient) openStream(ctx context.Context, req *commtypes.GetTransactionsRequest,
) (grpc.ClientStream, metadata.MD, error) {
	ctx = metadata.AppendToOutgoingContext(ctx,
		GRPC_AUTH_HEADER, "Bearer "+c.cfg.AuthToken,
		GRPC_REQUEST_NAME_HEADER, c.cfg.ProcessorName)
	stream, err := c.conn.NewStream(ctx, &RawData_ServiceDesc.Streams[0], RawData_GetTransactions_FullMethodName)
	if err != nil {
		return nil, nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, nil, err
	}
	header, err := stream.Header()
	if err != nil {
		return nil, nil, err
	}
	return stream, header, nil
}
