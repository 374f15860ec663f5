package pulse

import (
	"context"
	"testing"
	"time"

	"github.com/ecashpulse/pulse/internal/cashaddr"
	"github.com/ecashpulse/pulse/internal/payment"
	"github.com/ecashpulse/pulse/internal/platform/db"
	"github.com/ecashpulse/pulse/internal/platform/tests"

	"github.com/shopspring/decimal"
)

var (
	escrowScript = tests.P2PKHScript(0xaa)
	senderScript = tests.P2PKHScript(0xbb)
	otherScript  = tests.P2PKHScript(0xcc)

	// senderAddress locks senderScript.
	senderAddress = "ecash:qzamhwamhwamhwamhwamhwamhwamhwamhv6nwdyqf0"
	otherAddress  = "ecash:qrxvenxvenxvenxvenxvenxvenxvenxveshsffsje9"
)

type harness struct {
	test   *tests.Test
	ctx    context.Context
	dbConn *db.DB
	now    time.Time
	ledger Ledger
}

func newHarness(t *testing.T) *harness {
	test := tests.New()
	t.Cleanup(test.TearDown)

	ctx := tests.Context()
	dbConn := test.MasterDB.Copy()
	t.Cleanup(dbConn.Close)

	if err := Migrate(ctx, dbConn); err != nil {
		t.Fatalf("Failed to migrate : %s", err)
	}

	return &harness{
		test:   test,
		ctx:    ctx,
		dbConn: dbConn,
		now:    time.Now().UTC(),
		ledger: Ledger{
			Tolerance: payment.DefaultTolerance,
			FeeRate:   decimal.New(1, -2),
		},
	}
}

func (h *harness) escrow(t *testing.T) []byte {
	script, err := cashaddr.AddressToScript(tests.EscrowAddress)
	if err != nil {
		t.Fatalf("Failed to convert escrow : %s", err)
	}
	return script
}

func (h *harness) verifier() *payment.Verifier {
	return payment.NewVerifier(h.test.Indexer, payment.Config{
		Tolerance: h.ledger.Tolerance,
		Policy:    payment.MatchSum,
	})
}

func (h *harness) settler(t *testing.T) *Settler {
	return &Settler{
		Verifier:     h.verifier(),
		Ledger:       h.ledger,
		EscrowScript: h.escrow(t),
	}
}

func (h *harness) user(t *testing.T, address string) *User {
	user, err := FindOrCreateUser(h.ctx, h.dbConn, address, h.now)
	if err != nil {
		t.Fatalf("Failed to create user : %s", err)
	}
	return user
}

func (h *harness) prediction(t *testing.T) *Prediction {
	prediction, err := CreatePrediction(h.ctx, h.dbConn, "Will it rain?", h.now)
	if err != nil {
		t.Fatalf("Failed to create prediction : %s", err)
	}
	return prediction
}

func (h *harness) bet(t *testing.T, userID, predictionID string, amount int64) *Bet {
	bet, err := CreateBet(h.ctx, h.dbConn, userID, NewBet{
		PredictionID: predictionID,
		Position:     PositionYes,
		Amount:       amount,
	}, h.now)
	if err != nil {
		t.Fatalf("Failed to create bet : %s", err)
	}
	return bet
}

func (h *harness) count(t *testing.T, sql string, args ...interface{}) int {
	var count int
	if err := h.dbConn.Get(h.ctx, &count, sql, args...); err != nil {
		t.Fatalf("Failed to count : %s", err)
	}
	return count
}
