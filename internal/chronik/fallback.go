package chronik

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/tokenized/logger"
	"go.opencensus.io/trace"
)

// RawFetcher is implemented by fetchers that can also return the raw indexer payload.
type RawFetcher interface {
	FetchRawTransaction(ctx context.Context, txid string) (*Transaction, []byte, error)
}

// Archiver stores raw indexer payloads for audit.
type Archiver interface {
	Put(ctx context.Context, key string, body []byte) error
}

// Fallback tries an ordered list of fetchers and returns the first success.
type Fallback struct {
	fetchers []Fetcher
	archive  Archiver
}

// NewFallback returns a fetcher that consults each of fetchers in order.
func NewFallback(fetchers ...Fetcher) *Fallback {
	return &Fallback{
		fetchers: fetchers,
	}
}

// SetArchive enables archiving of raw payloads returned by fetchers that implement RawFetcher.
func (f *Fallback) SetArchive(archive Archiver) {
	f.archive = archive
}

// Len returns the number of fetchers.
func (f *Fallback) Len() int {
	return len(f.fetchers)
}

// FetchTransaction implements Fetcher. The txid is validated before any fetcher is called. When
// every fetcher fails the result is ErrNotFound if any of them reported the transaction as not
// found, otherwise ErrNetwork.
func (f *Fallback) FetchTransaction(ctx context.Context, txid string) (*Transaction, error) {
	ctx, span := trace.StartSpan(ctx, "chronik.Fallback.FetchTransaction")
	defer span.End()

	if !ValidTxID(txid) {
		return nil, ErrInvalidTxID
	}

	if len(f.fetchers) == 0 {
		return nil, errors.Wrap(ErrNetwork, "no indexers configured")
	}

	notFound := false
	for _, fetcher := range f.fetchers {
		var tx *Transaction
		var raw []byte
		var err error
		if rf, ok := fetcher.(RawFetcher); ok {
			tx, raw, err = rf.FetchRawTransaction(ctx, txid)
		} else {
			tx, err = fetcher.FetchTransaction(ctx, txid)
		}

		if err == nil {
			f.save(ctx, txid, raw)
			return tx, nil
		}

		logger.WarnWithFields(ctx, []logger.Field{
			logger.String("txid", txid),
			logger.Stringer("indexer", fetcherName(fetcher)),
		}, "Indexer fetch failed : %s", err)

		if errors.Cause(err) == ErrNotFound {
			notFound = true
		}

		if ctx.Err() != nil {
			return nil, errors.Wrap(ErrNetwork, ctx.Err().Error())
		}
	}

	if notFound {
		return nil, ErrNotFound
	}
	return nil, ErrNetwork
}

// ScriptHistory implements HistoryFetcher using the first fetcher that answers.
func (f *Fallback) ScriptHistory(ctx context.Context, scriptType, hash string, page,
	pageSize int) (*HistoryPage, error) {

	ctx, span := trace.StartSpan(ctx, "chronik.Fallback.ScriptHistory")
	defer span.End()

	var lastErr error = errors.Wrap(ErrNetwork, "no history indexers configured")
	for _, fetcher := range f.fetchers {
		hf, ok := fetcher.(HistoryFetcher)
		if !ok {
			continue
		}

		history, err := hf.ScriptHistory(ctx, scriptType, hash, page, pageSize)
		if err == nil {
			return history, nil
		}

		logger.WarnWithFields(ctx, []logger.Field{
			logger.String("script_type", scriptType),
			logger.String("hash", hash),
			logger.Stringer("indexer", fetcherName(fetcher)),
		}, "Indexer history failed : %s", err)

		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func (f *Fallback) save(ctx context.Context, txid string, raw []byte) {
	if f.archive == nil || len(raw) == 0 {
		return
	}

	if err := f.archive.Put(ctx, TransactionArchiveKey(txid), raw); err != nil {
		logger.Warn(ctx, "Failed to archive indexer payload %s : %s", txid, err)
	}
}

// TransactionArchiveKey returns the storage key of a transaction's raw indexer payload.
func TransactionArchiveKey(txid string) string {
	return fmt.Sprintf("chronik/tx/%s.json", txid)
}

type name string

func (n name) String() string {
	return string(n)
}

func fetcherName(f Fetcher) fmt.Stringer {
	if s, ok := f.(fmt.Stringer); ok {
		return s
	}
	return name(fmt.Sprintf("%T", f))
}
