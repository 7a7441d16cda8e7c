// Package leafstream pulls leaves from a CT log in fixed-size batches,
// prefetching one batch ahead of the consumer while it hashes and verifies
// the current one.
package leafstream

import (
	"context"
	"fmt"
	"io"

	ct "github.com/google/certificate-transparency-go"
	"golang.org/x/sync/errgroup"

	"github.com/nirvati/ctclient/internal/httpfetch"
)

// ShortBatchError reports that the log returned zero entries for a batch
// starting at Index, before the requested range was exhausted. RFC 6962
// logs are allowed to return fewer entries than requested, but never zero
// when entries remain; callers should treat this as a missing entry at
// Index rather than a transport failure.
type ShortBatchError struct{ Index int64 }

func (e *ShortBatchError) Error() string {
	return fmt.Sprintf("leafstream: log returned no entries starting at index %d", e.Index)
}

type batch struct {
	start   int64
	entries []ct.LeafEntry
}

type batchOrErr struct {
	b   batch
	err error
}

// Stream yields leaves [start, end) from a log, one at a time, in order.
// It is restart-safe: a caller that records the last index it successfully
// consumed can always construct a fresh Stream starting from the next index
// after an error or process restart, since the log's entries never change
// once sequenced.
type Stream struct {
	queue    chan batchOrErr
	g        *errgroup.Group
	curBatch batch
	offset   int
}

// New starts streaming leaves [start, end) from fetcher, using ctx for the
// lifetime of the background prefetch goroutine. Call Close to release it
// once done (or on error).
func New(ctx context.Context, fetcher *httpfetch.Fetcher, start, end int64) *Stream {
	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan batchOrErr, 1)
	s := &Stream{queue: queue, g: g}

	g.Go(func() error {
		defer close(queue)
		next := start
		for next < end {
			last := next + httpfetch.GetEntriesBatchSize - 1
			if last >= end {
				last = end - 1
			}
			rsp, err := fetcher.GetRawEntries(gctx, next, last)
			if err != nil {
				return sendOrAbort(gctx, queue, batchOrErr{err: err})
			}
			if len(rsp.Entries) == 0 {
				return sendOrAbort(gctx, queue, batchOrErr{err: &ShortBatchError{Index: next}})
			}
			if err := sendOrAbort(gctx, queue, batchOrErr{b: batch{start: next, entries: rsp.Entries}}); err != nil {
				return err
			}
			next += int64(len(rsp.Entries))
		}
		return nil
	})

	return s
}

func sendOrAbort(ctx context.Context, queue chan<- batchOrErr, v batchOrErr) error {
	select {
	case queue <- v:
		if v.err != nil {
			return v.err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next leaf's index and raw entry, blocking until a
// prefetched batch is available. It returns io.EOF once [start, end) has
// been fully consumed.
func (s *Stream) Next(ctx context.Context) (int64, *ct.LeafEntry, error) {
	for s.offset >= len(s.curBatch.entries) {
		select {
		case be, ok := <-s.queue:
			if !ok {
				return 0, nil, io.EOF
			}
			if be.err != nil {
				return 0, nil, be.err
			}
			s.curBatch = be.b
			s.offset = 0
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		}
	}
	idx := s.curBatch.start + int64(s.offset)
	entry := &s.curBatch.entries[s.offset]
	s.offset++
	return idx, entry, nil
}

// Close waits for the background prefetch goroutine to finish and returns
// its error, if any.
func (s *Stream) Close() error {
	return s.g.Wait()
}
