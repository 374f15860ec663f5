package chronik

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

const (
	// DefaultTimeout bounds a single indexer request.
	DefaultTimeout = 10 * time.Second

	// DefaultPageSize is the history page size requested from the indexer.
	DefaultPageSize = 25
)

// Fetcher retrieves a normalized transaction by id.
type Fetcher interface {
	FetchTransaction(ctx context.Context, txid string) (*Transaction, error)
}

// HistoryFetcher retrieves the transaction history of a locking script, newest first.
type HistoryFetcher interface {
	ScriptHistory(ctx context.Context, scriptType, hash string, page,
		pageSize int) (*HistoryPage, error)
}

// HistoryPage is one page of a script's transaction history.
type HistoryPage struct {
	Txs      []*Transaction
	NumPages int
	NumTxs   int
}

// Provider is a client for one indexer host.
type Provider struct {
	Name   string
	client *resty.Client
}

// NewProvider creates a client for the indexer at baseURL.
func NewProvider(name, baseURL string, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if len(name) == 0 {
		name = baseURL
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Provider{
		Name:   name,
		client: client,
	}
}

func (p *Provider) String() string {
	return p.Name
}

// FetchTransaction implements Fetcher.
func (p *Provider) FetchTransaction(ctx context.Context, txid string) (*Transaction, error) {
	tx, _, err := p.FetchRawTransaction(ctx, txid)
	return tx, err
}

// FetchRawTransaction returns the normalized transaction and the raw response body.
func (p *Provider) FetchRawTransaction(ctx context.Context,
	txid string) (*Transaction, []byte, error) {

	ctx, span := trace.StartSpan(ctx, "chronik.Provider.FetchTransaction")
	defer span.End()

	if !ValidTxID(txid) {
		return nil, nil, ErrInvalidTxID
	}

	var result jsonTransaction
	resp, err := p.client.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(&result).
		Get("/tx/" + txid)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrNetwork, "%s : %s", p.Name, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil, errors.Wrap(ErrNotFound, p.Name)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, nil, errors.Wrapf(ErrNetwork, "%s : status %d", p.Name, resp.StatusCode())
	}
	if !strings.EqualFold(result.TxID, txid) {
		return nil, nil, errors.Wrapf(ErrNetwork, "%s : response txid %q", p.Name,
			result.TxID)
	}

	return result.normalize(), resp.Body(), nil
}

// ScriptHistory implements HistoryFetcher.
func (p *Provider) ScriptHistory(ctx context.Context, scriptType, hash string, page,
	pageSize int) (*HistoryPage, error) {

	ctx, span := trace.StartSpan(ctx, "chronik.Provider.ScriptHistory")
	defer span.End()

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var result jsonHistory
	resp, err := p.client.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetQueryParam("page", fmt.Sprintf("%d", page)).
		SetQueryParam("page_size", fmt.Sprintf("%d", pageSize)).
		SetResult(&result).
		Get(fmt.Sprintf("/script/%s/%s/history", scriptType, hash))
	if err != nil {
		return nil, errors.Wrapf(ErrNetwork, "%s : %s", p.Name, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, errors.Wrap(ErrNotFound, p.Name)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errors.Wrapf(ErrNetwork, "%s : status %d", p.Name, resp.StatusCode())
	}

	history := &HistoryPage{
		NumPages: result.NumPages,
		NumTxs:   result.NumTxs,
		Txs:      make([]*Transaction, 0, len(result.Txs)),
	}
	for _, jt := range result.Txs {
		history.Txs = append(history.Txs, jt.normalize())
	}

	return history, nil
}
