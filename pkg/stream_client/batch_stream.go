package stream_client

import (
	"context"
	"time"

	"4d63.com/optional"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/utils"
	"github.com/gammazero/deque"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type recvResult struct {
	resp *commtypes.TransactionsResponse
	err  error
}

// BatchStream delivers contiguous batches in stream order and hides
// reconnects from the caller. It is owned by a single fetch goroutine.
type BatchStream struct {
	c          *StreamClient
	ctx        context.Context
	chainID    uint64
	endVersion optional.Optional[uint64]

	// nextRequest is one past the last received version; a reconnect asks
	// for it.
	nextRequest uint64
	pending     *deque.Deque[commtypes.RecordBatch]
	ended       bool
	retries     int

	stream grpc.ClientStream
	cancel context.CancelFunc
	recvCh chan recvResult
}

func classify(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return xerrors.Errorf("%w: %v", common_errors.ErrUnauthenticated, err)
	}
	return common_errors.Transient(err)
}

// Next blocks until the next batch is available. Transient failures are
// retried by reconnecting from the first undelivered version; the returned
// error is fatal, ErrStreamEnded, or the context's error.
func (s *BatchStream) Next(ctx context.Context) (*commtypes.RecordBatch, error) {
	for {
		if s.pending.Len() > 0 {
			b := s.pending.PopFront()
			return &b, nil
		}
		if s.ended {
			s.closeStream()
			return nil, common_errors.ErrStreamEnded
		}
		if s.stream == nil {
			if err := s.connect(); err != nil {
				if cerr := s.ctxErr(ctx); cerr != nil {
					return nil, cerr
				}
				if xerrors.Is(err, common_errors.ErrUnauthenticated) {
					return nil, err
				}
				if err := s.backoff(ctx, err); err != nil {
					return nil, err
				}
				continue
			}
		}
		resp, err := s.recv(ctx)
		if err != nil {
			if cerr := s.ctxErr(ctx); cerr != nil {
				return nil, cerr
			}
			s.closeStream()
			err = classify(err)
			if xerrors.Is(err, common_errors.ErrUnauthenticated) {
				return nil, err
			}
			if err := s.backoff(ctx, err); err != nil {
				return nil, err
			}
			continue
		}
		s.retries = 0
		s.enqueue(resp)
	}
}

func (s *BatchStream) ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.ctx.Err()
}

// NextVersion is the first version that has not been received yet.
func (s *BatchStream) NextVersion() uint64 {
	return s.nextRequest
}

func (s *BatchStream) Close() {
	s.closeStream()
}

func (s *BatchStream) connect() error {
	req := commtypes.GetTransactionsRequest{StartingVersion: s.nextRequest}
	if end, ok := s.endVersion.Get(); ok {
		req.TransactionsCount = end - s.nextRequest + 1
		req.HasCount = true
	}
	sctx, cancel := context.WithCancel(s.ctx)
	timer := time.AfterFunc(s.c.cfg.ReconnectTimeout, cancel)
	stream, header, err := s.c.openStream(sctx, &req)
	if !timer.Stop() {
		cancel()
		return common_errors.Transient(xerrors.Errorf("%w: no response within %v while connecting at version %d",
			common_errors.ErrStreamTimeout, s.c.cfg.ReconnectTimeout, s.nextRequest))
	}
	if err != nil {
		cancel()
		return classify(err)
	}
	connID := ""
	if ids := header.Get(GRPC_CONNECTION_ID_HEADER); len(ids) > 0 {
		connID = ids[0]
	}
	log.Info().Str("processor_name", s.c.cfg.ProcessorName).Str("connection_id", connID).
		Uint64("chain_id", s.chainID).
		Uint64("start_version", req.StartingVersion).Uint64("count", req.TransactionsCount).
		Msg("[stream] connected to data service")
	s.stream = stream
	s.cancel = cancel
	s.recvCh = make(chan recvResult, 1)
	go recvLoop(sctx, stream, s.recvCh)
	return nil
}

func recvLoop(ctx context.Context, stream grpc.ClientStream, out chan<- recvResult) {
	for {
		resp := new(commtypes.TransactionsResponse)
		err := stream.RecvMsg(resp)
		if err != nil {
			resp = nil
		}
		select {
		case out <- recvResult{resp: resp, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *BatchStream) recv(ctx context.Context) (*commtypes.TransactionsResponse, error) {
	timer := time.NewTimer(s.c.cfg.ItemTimeout)
	defer timer.Stop()
	select {
	case r := <-s.recvCh:
		return r.resp, r.err
	case <-timer.C:
		return nil, xerrors.Errorf("%w: nothing received for %v after version %d",
			common_errors.ErrStreamTimeout, s.c.cfg.ItemTimeout, int64(s.nextRequest)-1)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

func (s *BatchStream) closeStream() {
	if s.cancel != nil {
		s.cancel()
	}
	s.stream = nil
	s.cancel = nil
	s.recvCh = nil
}

func (s *BatchStream) backoff(ctx context.Context, cause error) error {
	s.retries++
	if s.retries >= s.c.cfg.MaxReconnectRetries {
		return xerrors.Errorf("%w: %d consecutive failures resuming at version %d: %v",
			common_errors.ErrReconnectExhausted, s.retries, s.nextRequest, cause)
	}
	delay := utils.ExpBackoff(s.c.cfg.InitialBackoff, s.c.cfg.MaxBackoff, s.retries)
	log.Warn().Err(cause).Str("processor_name", s.c.cfg.ProcessorName).Int("retries", s.retries).
		Uint64("resume_version", s.nextRequest).Dur("backoff", delay).Msg("[stream] reconnecting")
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// enqueue trims records past the end version and splits the response into
// batches of at most ChunkSize records.
func (s *BatchStream) enqueue(resp *commtypes.TransactionsResponse) {
	recs := resp.Records
	if len(recs) == 0 {
		return
	}
	end, bounded := s.endVersion.Get()
	if bounded {
		cut := len(recs)
		for i := range recs {
			if recs[i].Version > end {
				cut = i
				break
			}
		}
		// a response starting past the end keeps its first record so the
		// gap is caught downstream
		if cut == 0 {
			cut = 1
		}
		recs = recs[:cut]
	}
	chunk := s.c.cfg.ChunkSize
	for i := 0; i < len(recs); i += chunk {
		j := i + chunk
		if j > len(recs) {
			j = len(recs)
		}
		part := recs[i:j]
		size := 0
		for k := range part {
			size += part[k].Msgsize()
		}
		s.pending.PushBack(commtypes.RecordBatch{
			ChainID:      resp.ChainID,
			StartVersion: part[0].Version,
			EndVersion:   part[len(part)-1].Version,
			Records:      part,
			SizeInBytes:  uint64(size),
		})
	}
	last := recs[len(recs)-1].Version
	s.nextRequest = last + 1
	s.c.fetchCounter.Tick(uint64(len(recs)))
	if bounded && last >= end {
		s.ended = true
	}
}
