package pulse

import (
	"sync"
	"testing"
	"time"

	"github.com/ecashpulse/pulse/internal/platform/db"
	"github.com/ecashpulse/pulse/internal/platform/tests"

	"github.com/pkg/errors"
)

func TestSessions(t *testing.T) {
	h := newHarness(t)

	user := h.user(t, senderAddress)

	session, err := CreateSession(h.ctx, h.dbConn, user.ID, time.Hour, h.now)
	if err != nil {
		t.Fatalf("Failed to create session : %s", err)
	}
	if len(session.Token) != 64 {
		t.Fatalf("Wrong token length : %d", len(session.Token))
	}

	userID, err := ValidateSession(h.ctx, h.dbConn, session.Token, h.now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Failed to validate session : %s", err)
	}
	if userID != user.ID {
		t.Fatalf("Wrong session user : %s", userID)
	}

	tt := []struct {
		name  string
		token string
		now   time.Time
	}{
		{"expired", session.Token, h.now.Add(2 * time.Hour)},
		{"at expiry", session.Token, session.ExpiresAt},
		{"unknown", tests.TxID(99), h.now},
		{"malformed", "not-a-token", h.now},
		{"empty", "", h.now},
	}

	for _, test := range tt {
		t.Run(test.name, func(t *testing.T) {
			if _, err := ValidateSession(h.ctx, h.dbConn, test.token, test.now); err != ErrInvalidSession {
				t.Fatalf("Wrong error : %v", err)
			}
		})
	}

	removed, err := DeleteExpiredSessions(h.ctx, h.dbConn, h.now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Failed to delete sessions : %s", err)
	}
	if removed != 1 {
		t.Fatalf("Wrong removed count : %d", removed)
	}
}

func TestConsumeAuthTransaction(t *testing.T) {
	h := newHarness(t)

	user := h.user(t, senderAddress)

	if err := ConsumeAuthTransaction(h.ctx, h.dbConn, tests.TxID(1), user.ID, senderAddress,
		1000, h.now); err != nil {
		t.Fatalf("Failed to consume transaction : %s", err)
	}

	err := ConsumeAuthTransaction(h.ctx, h.dbConn, tests.TxID(1), user.ID, senderAddress, 1000,
		h.now)
	if err != ErrTransactionUsed {
		t.Fatalf("Second consume should fail : %v", err)
	}

	err = ConsumeAuthTransaction(h.ctx, h.dbConn, "xyz", user.ID, senderAddress, 1000, h.now)
	if errors.Cause(err) != ErrInvalidInput {
		t.Fatalf("Invalid txid should fail : %v", err)
	}
}

func TestAuthAndPaymentShareTransactions(t *testing.T) {
	h := newHarness(t)

	user := h.user(t, senderAddress)
	prediction := h.prediction(t)
	bet := h.bet(t, user.ID, prediction.ID, 1000)

	if _, err := h.ledger.CommitPayment(h.ctx, h.dbConn, KindBet, bet.ID, tests.TxID(1), 1000,
		user.ID, h.now); err != nil {
		t.Fatalf("Failed to commit payment : %s", err)
	}

	err := ConsumeAuthTransaction(h.ctx, h.dbConn, tests.TxID(1), user.ID, senderAddress, 1000,
		h.now)
	if err != ErrTransactionUsed {
		t.Fatalf("\t%s\tBet payment consumed for sign in : %v", tests.Failed, err)
	}
	t.Logf("\t%s\tBet payment rejected for sign in", tests.Success)

	if err := ConsumeAuthTransaction(h.ctx, h.dbConn, tests.TxID(2), user.ID, senderAddress,
		1000, h.now); err != nil {
		t.Fatalf("Failed to consume transaction : %s", err)
	}
	if c := h.count(t, `SELECT COUNT(*) FROM used_transactions WHERE tx_hash=? AND record_type=?`,
		tests.TxID(2), UsedByAuth); c != 1 {
		t.Fatalf("Sign in not recorded as used : %d", c)
	}

	other := h.bet(t, user.ID, prediction.ID, 1000)
	_, err = h.ledger.CommitPayment(h.ctx, h.dbConn, KindBet, other.ID, tests.TxID(2), 1000,
		user.ID, h.now)
	if errors.Cause(err) != ErrReplayedTransaction {
		t.Fatalf("\t%s\tSign in transaction paid for a bet : %v", tests.Failed, err)
	}
	t.Logf("\t%s\tSign in transaction rejected for payment", tests.Success)
}

func TestAuthAndPaymentRace(t *testing.T) {
	h := newHarness(t)

	user := h.user(t, senderAddress)
	prediction := h.prediction(t)
	bet := h.bet(t, user.ID, prediction.ID, 1000)

	const workers = 8
	var wg sync.WaitGroup
	var lock sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			dbConn := h.test.MasterDB.Copy()
			defer dbConn.Close()

			var err error
			if i%2 == 0 {
				_, err = h.ledger.CommitPayment(h.ctx, dbConn, KindBet, bet.ID, tests.TxID(5),
					1000, user.ID, h.now)
			} else {
				err = consumeInTransaction(h, dbConn, tests.TxID(5), user.ID)
			}

			if err == nil {
				lock.Lock()
				succeeded++
				lock.Unlock()
				return
			}

			cause := errors.Cause(err)
			if cause != ErrAlreadyProcessed && cause != ErrReplayedTransaction &&
				cause != ErrTransactionUsed {
				t.Errorf("Worker %d unexpected error : %s", i, err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("\t%s\tWrong success count : got %d, want 1", tests.Failed, succeeded)
	}
	if c := h.count(t, `SELECT COUNT(*) FROM used_transactions WHERE tx_hash=?`,
		tests.TxID(5)); c != 1 {
		t.Fatalf("Wrong used count : %d", c)
	}
	t.Logf("\t%s\tOne use of the transaction", tests.Success)
}

func consumeInTransaction(h *harness, dbConn *db.DB, txid, userID string) error {
	if err := dbConn.BeginTransaction(); err != nil {
		return err
	}
	defer dbConn.Rollback()

	if err := ConsumeAuthTransaction(h.ctx, dbConn, txid, userID, senderAddress, 1000,
		h.now); err != nil {
		return err
	}

	return dbConn.Commit()
}
