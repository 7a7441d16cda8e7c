// Package httpfetch wraps the certificate-transparency-go JSON client with
// the transport tuning and error taxonomy this module expects.
package httpfetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/client"
	"github.com/google/certificate-transparency-go/jsonclient"
	"golang.org/x/net/http2"
)

// GetEntriesBatchSize is the number of leaves requested per get-entries call.
const GetEntriesBatchSize = 500

// Fetcher issues the handful of CT log HTTP endpoints this client needs.
type Fetcher struct {
	lc *client.LogClient
}

// New builds a Fetcher for the log at baseURL, whose responses are expected
// to be signed by pubKeyDER (a DER-encoded SubjectPublicKeyInfo).
func New(baseURL string, pubKeyDER []byte) (*Fetcher, error) {
	transport := &http.Transport{
		TLSHandshakeTimeout:   30 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		MaxIdleConnsPerHost:   10,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("httpfetch: configuring HTTP/2 transport: %w", err)
	}
	hc := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
	lc, err := client.New(baseURL, hc, jsonclient.Options{PublicKeyDER: pubKeyDER})
	if err != nil {
		return nil, fmt.Errorf("httpfetch: building log client: %w", err)
	}
	return &Fetcher{lc: lc}, nil
}

// Kind classifies a fetch failure so callers can map it onto their own error
// taxonomy without reaching into client.RspError themselves.
type Kind int

const (
	KindNetwork Kind = iota
	KindBadStatus
	KindMalformedBody
)

// Error wraps a failed fetch with enough context to classify it.
type Error struct {
	Kind       Kind
	StatusCode int
	Cause      error
}

func (e *Error) Error() string { return e.Cause.Error() }
func (e *Error) Unwrap() error { return e.Cause }

func classify(err error) error {
	if err == nil {
		return nil
	}
	if rspErr, ok := err.(client.RspError); ok {
		return &Error{Kind: KindBadStatus, StatusCode: rspErr.StatusCode, Cause: rspErr}
	}
	return &Error{Kind: KindNetwork, Cause: err}
}

// GetSTH fetches the log's current signed tree head.
func (f *Fetcher) GetSTH(ctx context.Context) (*ct.SignedTreeHead, error) {
	sth, err := f.lc.GetSTH(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return sth, nil
}

// GetSTHConsistency fetches a consistency proof between two tree sizes.
func (f *Fetcher) GetSTHConsistency(ctx context.Context, first, second uint64) ([][]byte, error) {
	proof, err := f.lc.GetSTHConsistency(ctx, first, second)
	if err != nil {
		return nil, classify(err)
	}
	return proof, nil
}

// GetRawEntries fetches leaves [start, end] (inclusive) from the log. The
// log may return fewer than requested; callers should loop until the
// requested range is exhausted.
func (f *Fetcher) GetRawEntries(ctx context.Context, start, end int64) (*ct.GetEntriesResponse, error) {
	rsp, err := f.lc.GetRawEntries(ctx, start, end)
	if err != nil {
		return nil, classify(err)
	}
	return rsp, nil
}

// GetProofByHash fetches an inclusion (audit) proof for the leaf hashing to
// hash, in a tree of the given size.
func (f *Fetcher) GetProofByHash(ctx context.Context, hash []byte, treeSize uint64) (*ct.GetProofByHashResponse, error) {
	rsp, err := f.lc.GetProofByHash(ctx, hash, treeSize)
	if err != nil {
		return nil, classify(err)
	}
	return rsp, nil
}
