package chronik

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
)

const testTxID = "0f3c9a2e5b1d4c6f8a7e9b0d2c4f6a8e1b3d5f7a9c0e2b4d6f8a1c3e5b7d9f0a"

func txJSON(txid string) string {
	return fmt.Sprintf(`{
		"txid": "%s",
		"inputs": [
			{
				"prevOut": {"txid": "%s", "outIdx": 1},
				"outputScript": "76a914BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB88ac",
				"value": "20000"
			}
		],
		"outputs": [
			{"value": "10000", "outputScript": "76a914aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa88ac"},
			{"value": 9500, "outputScript": "76a914bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb88ac"}
		],
		"timeFirstSeen": "1700000000",
		"block": {"hash": "00ab", "height": 820000, "timestamp": "1700000600"}
	}`, txid, strings.Repeat("1", 64))
}

func newServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

type mockArchive struct {
	data map[string][]byte
}

func (m *mockArchive) Put(ctx context.Context, key string, body []byte) error {
	m.data[key] = body
	return nil
}

func TestFetchNormalizes(t *testing.T) {
	ctx := context.Background()
	var hits int32
	server := newServer(t, http.StatusOK, txJSON(testTxID), &hits)

	tx, err := NewProvider("test", server.URL, time.Second).FetchTransaction(ctx, testTxID)
	if err != nil {
		t.Fatalf("Failed to fetch transaction : %s", err)
	}

	if tx.TxID != testTxID {
		t.Fatalf("Wrong txid : %s", tx.TxID)
	}
	if len(tx.Inputs) != 1 || len(tx.Outputs) != 2 {
		t.Fatalf("Wrong counts : %d inputs, %d outputs", len(tx.Inputs), len(tx.Outputs))
	}
	if tx.Inputs[0].OutputScript != "76a914bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb88ac" {
		t.Fatalf("Input script not normalized : %s", tx.Inputs[0].OutputScript)
	}
	if tx.Inputs[0].Value != 20000 || tx.Inputs[0].PrevOut.OutIdx != 1 {
		t.Fatalf("Wrong input : %+v", tx.Inputs[0])
	}
	if tx.Outputs[0].Value != 10000 || tx.Outputs[1].Value != 9500 {
		t.Fatalf("Wrong output values : %d, %d", tx.Outputs[0].Value, tx.Outputs[1].Value)
	}
	if !tx.IsConfirmed() || tx.Block.Height != 820000 {
		t.Fatalf("Wrong block : %+v", tx.Block)
	}

	ts, ok := tx.Time()
	if !ok || ts.Unix() != 1700000600 {
		t.Fatalf("Wrong time : %s", ts)
	}
}

func TestFallbackSkipsFailingHost(t *testing.T) {
	ctx := context.Background()
	var badHits, goodHits int32
	bad := newServer(t, http.StatusInternalServerError, `oops`, &badHits)
	good := newServer(t, http.StatusOK, txJSON(testTxID), &goodHits)

	archive := &mockArchive{data: make(map[string][]byte)}
	f := NewFallback(NewProvider("bad", bad.URL, time.Second),
		NewProvider("good", good.URL, time.Second))
	f.SetArchive(archive)

	tx, err := f.FetchTransaction(ctx, testTxID)
	if err != nil {
		t.Fatalf("Failed to fetch transaction : %s", err)
	}
	if tx.TxID != testTxID {
		t.Fatalf("Wrong txid : %s", tx.TxID)
	}
	if badHits != 1 || goodHits != 1 {
		t.Fatalf("Wrong hits : bad %d, good %d", badHits, goodHits)
	}

	if _, ok := archive.data[TransactionArchiveKey(testTxID)]; !ok {
		t.Fatalf("Raw payload not archived")
	}
}

func TestFallbackInvalidTxID(t *testing.T) {
	ctx := context.Background()
	var hits int32
	server := newServer(t, http.StatusOK, txJSON(testTxID), &hits)
	f := NewFallback(NewProvider("test", server.URL, time.Second))

	for _, txid := range []string{
		"",
		"abc",
		strings.ToUpper(testTxID),
		testTxID + "0",
		strings.Repeat("g", 64),
	} {
		_, err := f.FetchTransaction(ctx, txid)
		if errors.Cause(err) != ErrInvalidTxID {
			t.Fatalf("Wrong error for %q : %v", txid, err)
		}
	}

	if hits != 0 {
		t.Fatalf("Network called for invalid txid : %d", hits)
	}
}

func TestFallbackExhausted(t *testing.T) {
	ctx := context.Background()
	var hits int32
	notFound := newServer(t, http.StatusNotFound, `{"error":"tx not found"}`, &hits)
	broken := newServer(t, http.StatusBadGateway, `bad gateway`, &hits)
	garbage := newServer(t, http.StatusOK, `not json`, &hits)
	wrongTx := newServer(t, http.StatusOK, txJSON(strings.Repeat("2", 64)), &hits)

	tests := []struct {
		name      string
		providers []Fetcher
		err       error
	}{
		{
			name: "not found",
			providers: []Fetcher{
				NewProvider("a", notFound.URL, time.Second),
				NewProvider("b", broken.URL, time.Second),
			},
			err: ErrNotFound,
		},
		{
			name: "network",
			providers: []Fetcher{
				NewProvider("a", broken.URL, time.Second),
				NewProvider("b", garbage.URL, time.Second),
				NewProvider("c", wrongTx.URL, time.Second),
			},
			err: ErrNetwork,
		},
		{
			name: "unreachable",
			providers: []Fetcher{
				NewProvider("a", "http://127.0.0.1:1", time.Second),
			},
			err: ErrNetwork,
		},
		{
			name: "empty",
			err:  ErrNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFallback(tt.providers...).FetchTransaction(ctx, testTxID)
			if errors.Cause(err) != tt.err {
				t.Fatalf("Wrong error : got %v, want %v", err, tt.err)
			}
		})
	}
}

func TestFallbackTimeout(t *testing.T) {
	ctx := context.Background()

	hang := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(hang.Close)

	var hits int32
	good := newServer(t, http.StatusOK, txJSON(testTxID), &hits)

	f := NewFallback(NewProvider("hang", hang.URL, 100*time.Millisecond),
		NewProvider("good", good.URL, time.Second))

	start := time.Now()
	if _, err := f.FetchTransaction(ctx, testTxID); err != nil {
		t.Fatalf("Failed to fetch transaction : %s", err)
	}

	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("Timeout not applied : %s", elapsed)
	}
}

func TestScriptHistory(t *testing.T) {
	ctx := context.Background()

	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Path + "?" + r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"txs": [%s], "numPages": 3, "numTxs": 51}`, txJSON(testTxID))
	}))
	t.Cleanup(server.Close)

	f := NewFallback(NewProvider("test", server.URL, time.Second))
	history, err := f.ScriptHistory(ctx, "p2pkh", strings.Repeat("aa", 20), 2, 25)
	if err != nil {
		t.Fatalf("Failed to fetch history : %s", err)
	}

	if !strings.HasPrefix(query, "/script/p2pkh/"+strings.Repeat("aa", 20)+"/history?") ||
		!strings.Contains(query, "page=2") || !strings.Contains(query, "page_size=25") {
		t.Fatalf("Wrong request : %s", query)
	}
	if history.NumPages != 3 || history.NumTxs != 51 || len(history.Txs) != 1 {
		t.Fatalf("Wrong history : %+v", history)
	}
}

func TestLoadProviders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	content := `providers:
  - name: primary
    url: https://chronik.e.cash
    timeout: 5s
  - name: secondary
    url: https://chronik.pay2stay.com/xec
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write providers file : %s", err)
	}

	providers, err := LoadProviders(path)
	if err != nil {
		t.Fatalf("Failed to load providers : %s", err)
	}

	if len(providers) != 2 || providers[0].Name != "primary" ||
		providers[0].Timeout != 5*time.Second || providers[1].URL != "https://chronik.pay2stay.com/xec" {
		t.Fatalf("Wrong providers : %+v", providers)
	}

	if f := NewFallbackFromConfig(providers, time.Second); f.Len() != 2 {
		t.Fatalf("Wrong fallback size : %d", f.Len())
	}

	urls := ParseURLs(" https://a.example , ,https://b.example")
	if len(urls) != 2 || urls[1].URL != "https://b.example" {
		t.Fatalf("Wrong urls : %+v", urls)
	}
}
