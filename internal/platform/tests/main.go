package tests

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ecashpulse/pulse/internal/platform/config"
	"github.com/ecashpulse/pulse/internal/platform/db"
	"github.com/ecashpulse/pulse/internal/platform/web"

	"github.com/google/uuid"
)

// Success and failure markers.
const (
	Success = "\u2713"
	Failed  = "\u2717"
)

// EscrowAddress is the escrow used by tests. Its locking script is 76a914aa..aa88ac.
const EscrowAddress = "ecash:qz4242424242424242424242424242424g2304t968"

// Test owns state for running/shutting down tests.
type Test struct {
	MasterDB  *db.DB
	Storage   *MockStorage
	Indexer   *MockIndexer
	WebConfig *web.Config
	Config    *config.Config
}

// New is the entry point for tests. Each call has its own in-memory database.
func New() *Test {

	// ============================================================
	// Configuration

	cfg, err := config.Environment()
	if err != nil {
		log.Fatalf("main : Parsing Config : %v", err)
	}
	cfg.Pulse.EscrowAddress = EscrowAddress

	// ============================================================
	// Start Database

	masterDB, err := db.New(&db.DBConfig{
		Driver:       "sqlite3",
		URL:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
		MaxOpenConns: 1,
	}, nil)
	if err != nil {
		log.Fatalf("main : Register DB : %v", err)
	}

	mockStorage := NewMockStorage()
	masterDB.SetStorage(mockStorage)

	// ============================================================
	// Web Config

	webConfig := &web.Config{
		AddressPrefix: cfg.Pulse.AddressPrefix,
		EscrowAddress: cfg.Pulse.EscrowAddress,
	}

	return &Test{
		MasterDB:  masterDB,
		Storage:   mockStorage,
		Indexer:   NewMockIndexer(),
		WebConfig: webConfig,
		Config:    cfg,
	}
}

// TearDown is used for shutting down tests. Calling this should be
// done in a defer immediately after calling New.
func (t *Test) TearDown() {
	t.MasterDB.Close()
}

// Context returns an app level context for testing.
func Context() context.Context {
	values := web.Values{
		TraceID: uuid.New().String(),
		Now:     time.Now(),
	}

	return context.WithValue(context.Background(), web.KeyValues, &values)
}
