package tests

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/ecashpulse/pulse/internal/chronik"

	"github.com/tokenized/pkg/storage"
)

// ============================================================
// Storage

type MockStorage struct {
	data map[string][]byte
	lock sync.Mutex
}

func NewMockStorage() *MockStorage {
	return &MockStorage{
		data: map[string][]byte{},
	}
}

func (m *MockStorage) Write(ctx context.Context, key string, body []byte,
	options *storage.Options) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.data[key] = body
	return nil
}

func (m *MockStorage) Read(ctx context.Context, key string) ([]byte, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	body, ok := m.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return body, nil
}

func (m *MockStorage) Remove(ctx context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.data, key)
	return nil
}

// Keys returns the stored keys with the prefix.
func (m *MockStorage) Keys(prefix string) []string {
	m.lock.Lock()
	defer m.lock.Unlock()

	var result []string
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			result = append(result, key)
		}
	}
	return result
}

// ============================================================
// Indexer

// MockIndexer is an in memory chronik.Fetcher and chronik.HistoryFetcher.
type MockIndexer struct {
	txs     map[string]*chronik.Transaction
	history map[string][]*chronik.Transaction
	Err     error // returned by every call when set
	Calls   int
	lock    sync.Mutex
}

func NewMockIndexer() *MockIndexer {
	return &MockIndexer{
		txs:     make(map[string]*chronik.Transaction),
		history: make(map[string][]*chronik.Transaction),
	}
}

// AddTransaction adds a transaction that is also listed in the history of each output script.
func (m *MockIndexer) AddTransaction(tx *chronik.Transaction) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.txs[tx.TxID] = tx
	seen := make(map[string]bool)
	for _, output := range tx.Outputs {
		if seen[output.OutputScript] {
			continue
		}
		seen[output.OutputScript] = true
		m.history[output.OutputScript] = append([]*chronik.Transaction{tx},
			m.history[output.OutputScript]...)
	}
}

func (m *MockIndexer) FetchTransaction(ctx context.Context,
	txid string) (*chronik.Transaction, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.Calls++
	if !chronik.ValidTxID(txid) {
		return nil, chronik.ErrInvalidTxID
	}
	if m.Err != nil {
		return nil, m.Err
	}

	tx, ok := m.txs[txid]
	if !ok {
		return nil, chronik.ErrNotFound
	}
	return tx, nil
}

func (m *MockIndexer) ScriptHistory(ctx context.Context, scriptType, hash string, page,
	pageSize int) (*chronik.HistoryPage, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}

	var script string
	switch scriptType {
	case "p2pkh":
		script = "76a914" + hash + "88ac"
	case "p2sh":
		script = "a914" + hash + "87"
	default:
		return nil, fmt.Errorf("unknown script type %s", scriptType)
	}

	txs := m.history[script]
	if pageSize <= 0 {
		pageSize = chronik.DefaultPageSize
	}

	result := &chronik.HistoryPage{
		NumTxs:   len(txs),
		NumPages: (len(txs) + pageSize - 1) / pageSize,
	}

	start := page * pageSize
	if start < len(txs) {
		end := start + pageSize
		if end > len(txs) {
			end = len(txs)
		}
		result.Txs = txs[start:end]
	}

	return result, nil
}

// ============================================================
// Transactions

// TxID returns a deterministic valid txid for n.
func TxID(n int) string {
	return fmt.Sprintf("%064x", n)
}

// P2PKHScript returns the hex locking script paying a hash filled with b.
func P2PKHScript(b byte) string {
	return "76a914" + strings.Repeat(hex.EncodeToString([]byte{b}), 20) + "88ac"
}

// Payment returns a transaction from the sender script paying value to each of the destination
// scripts.
func Payment(txid, senderScript string, value int64, destinations ...string) *chronik.Transaction {
	tx := &chronik.Transaction{
		TxID:          txid,
		TimeFirstSeen: 0,
		Inputs: []chronik.Input{
			{
				PrevOut:      chronik.OutPoint{TxID: TxID(0), OutIdx: 0},
				OutputScript: senderScript,
				Value:        value * int64(len(destinations)+1),
			},
		},
	}

	for _, d := range destinations {
		tx.Outputs = append(tx.Outputs, chronik.Output{
			Value:        value,
			OutputScript: d,
		})
	}

	// Change back to the sender.
	tx.Outputs = append(tx.Outputs, chronik.Output{
		Value:        value / 2,
		OutputScript: senderScript,
	})

	return tx
}
