package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ecashpulse/pulse/cmd/pulsed/handlers"
	"github.com/ecashpulse/pulse/internal/cashaddr"
	"github.com/ecashpulse/pulse/internal/chronik"
	"github.com/ecashpulse/pulse/internal/payment"
	"github.com/ecashpulse/pulse/internal/platform/db"
	"github.com/ecashpulse/pulse/internal/platform/web"
	"github.com/ecashpulse/pulse/internal/pulse"

	"github.com/pkg/errors"
	"github.com/tokenized/logger"
)

// Server holds the components of the running daemon.
type Server struct {
	Config        *Config
	MasterDB      *db.DB
	Indexer       *chronik.Fallback
	Escrow        cashaddr.Address
	Settler       *pulse.Settler
	Authenticator *pulse.Authenticator
	WebConfig     *web.Config
}

// Setup validates the configuration and connects the database, storage, and indexers. It fails
// when the escrow address is missing or invalid so that payments are never verified against the
// wrong destination.
func Setup(ctx context.Context, cfg *Config) (*Server, error) {

	// ---------------------------------------------------------------------------------------------
	// Escrow

	if len(strings.TrimSpace(cfg.Pulse.EscrowAddress)) == 0 {
		return nil, errors.New("Escrow address not configured")
	}

	escrow, err := cashaddr.DecodeWithPrefix(cfg.Pulse.EscrowAddress, cfg.Pulse.AddressPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "escrow address")
	}

	escrowScript, err := escrow.LockingScript()
	if err != nil {
		return nil, errors.Wrap(err, "escrow script")
	}

	logger.Info(ctx, "main : Escrow : %s", escrow)

	// ---------------------------------------------------------------------------------------------
	// Business Rules

	tolerance, err := cfg.Pulse.ToleranceRate()
	if err != nil {
		return nil, err
	}

	feeRate, err := cfg.Pulse.FeeRate()
	if err != nil {
		return nil, err
	}

	policy, err := payment.ParseMatchPolicy(cfg.Pulse.MatchPolicy)
	if err != nil {
		return nil, err
	}

	// ---------------------------------------------------------------------------------------------
	// Start Database / Storage

	logger.Info(ctx, "main : Started : Initialize Database")

	masterDB, err := db.New(
		&db.DBConfig{
			Driver:       cfg.Db.Driver,
			URL:          cfg.Db.URL,
			MaxOpenConns: cfg.Db.MaxOpenConns,
		},
		&db.StorageConfig{
			Bucket: cfg.Storage.Bucket,
			Root:   cfg.Storage.Root,
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "register db")
	}

	// ---------------------------------------------------------------------------------------------
	// Indexers

	providers := chronik.ParseURLs(cfg.Chronik.URLs)
	if len(cfg.Chronik.ProvidersFile) > 0 {
		providers, err = chronik.LoadProviders(cfg.Chronik.ProvidersFile)
		if err != nil {
			masterDB.Close()
			return nil, err
		}
	}
	if len(providers) == 0 {
		masterDB.Close()
		return nil, errors.New("No indexers configured")
	}

	indexer := chronik.NewFallbackFromConfig(providers, cfg.Chronik.Timeout)
	indexer.SetArchive(masterDB)

	for _, p := range providers {
		logger.Info(ctx, "main : Indexer : %s", p.URL)
	}

	// ---------------------------------------------------------------------------------------------
	// Pipeline

	verifier := payment.NewVerifier(indexer, payment.Config{
		Tolerance:     tolerance,
		Policy:        policy,
		AddressPrefix: escrow.Prefix,
	})

	return &Server{
		Config:   cfg,
		MasterDB: masterDB,
		Indexer:  indexer,
		Escrow:   escrow,
		Settler: &pulse.Settler{
			Verifier: verifier,
			Ledger: pulse.Ledger{
				Tolerance: tolerance,
				FeeRate:   feeRate,
			},
			EscrowScript: escrowScript,
		},
		Authenticator: &pulse.Authenticator{
			Verifier:        verifier,
			EscrowScript:    escrowScript,
			AddressPrefix:   escrow.Prefix,
			MinimumAmount:   cfg.Pulse.AuthMinimum,
			MaxAge:          cfg.Pulse.AuthMaxAge,
			SessionDuration: cfg.Pulse.SessionDuration,
		},
		WebConfig: &web.Config{
			RootURL:       cfg.Web.RootURL,
			AddressPrefix: escrow.Prefix,
			EscrowAddress: escrow.String(),
		},
	}, nil
}

// Close releases the database.
func (s *Server) Close() {
	s.MasterDB.Close()
}

// Migrate applies the database schema.
func (s *Server) Migrate(ctx context.Context) error {
	dbConn := s.MasterDB.Copy()
	defer dbConn.Close()

	return pulse.Migrate(ctx, dbConn)
}

// Reconcile scans the escrow history for unrecorded payments.
func (s *Server) Reconcile(ctx context.Context, maxPages int) (*pulse.ReconcileReport, error) {
	dbConn := s.MasterDB.Copy()
	defer dbConn.Close()

	reconciler := &pulse.Reconciler{
		History:  s.Indexer,
		Escrow:   s.Escrow,
		MaxPages: maxPages,
	}

	return reconciler.Reconcile(ctx, dbConn, time.Now())
}

// Run serves the API until an interrupt or terminate signal is received.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.Config

	if cfg.Db.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}

	// ---------------------------------------------------------------------------------------------
	// Start API Service

	api := http.Server{
		Addr:           cfg.Web.APIHost,
		Handler:        handlers.API(s.WebConfig, s.MasterDB, s.Settler, s.Authenticator),
		BaseContext:    func(net.Listener) context.Context { return ctx },
		ReadTimeout:    cfg.Web.ReadTimeout,
		WriteTimeout:   cfg.Web.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// Start the service listening for requests.
	go func() {
		logger.Info(ctx, "main : HTTP server Listening %s", cfg.Web.APIHost)
		serverErrors <- api.ListenAndServe()
	}()

	purgeDone := make(chan struct{})
	defer close(purgeDone)
	go s.purgeSessions(ctx, cfg.Pulse.SessionPurge, purgeDone)

	// ---------------------------------------------------------------------------------------------
	// Shutdown

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, os.Interrupt, syscall.SIGTERM)

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return errors.Wrap(err, "server stopped")

	case <-osSignals:
		logger.Info(ctx, "main : Start shutdown...")

		// Create context for Shutdown call.
		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shutdown and load shed.
		if err := api.Shutdown(shutdownCtx); err != nil {
			logger.Warn(ctx, "main : Graceful HTTP server shutdown did not complete in %v : %v",
				cfg.Web.ShutdownTimeout, err)
			if err := api.Close(); err != nil {
				return errors.Wrap(err, "close server")
			}
		}
	}

	return nil
}

// purgeSessions deletes expired sessions every interval until done is closed.
func (s *Server) purgeSessions(ctx context.Context, interval time.Duration, done <-chan struct{}) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			dbConn := s.MasterDB.Copy()
			removed, err := pulse.DeleteExpiredSessions(ctx, dbConn, time.Now())
			dbConn.Close()
			if err != nil {
				logger.Warn(ctx, "Failed to purge sessions : %s", err)
				continue
			}
			if removed > 0 {
				logger.Info(ctx, "Purged %d expired sessions", removed)
			}
		}
	}
}
