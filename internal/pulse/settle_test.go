package pulse

import (
	"testing"

	"github.com/ecashpulse/pulse/internal/chronik"
	"github.com/ecashpulse/pulse/internal/platform/tests"

	"github.com/pkg/errors"
)

func TestSettle(t *testing.T) {
	h := newHarness(t)
	settler := h.settler(t)

	sessionUser := h.user(t, otherAddress)
	prediction := h.prediction(t)
	bet := h.bet(t, sessionUser.ID, prediction.ID, 10000)

	h.test.Indexer.AddTransaction(tests.Payment(tests.TxID(1), senderScript, 10000,
		escrowScript))
	h.test.Indexer.AddTransaction(tests.Payment(tests.TxID(2), senderScript, 10000,
		escrowScript))

	settlement, err := settler.Settle(h.ctx, h.dbConn, KindBet, bet.ID, tests.TxID(1), h.now)
	if err != nil {
		t.Fatalf("Failed to settle : %s", err)
	}
	t.Logf("\t%s\tSettled bet", tests.Success)

	if settlement.Duplicate || settlement.Amount != 10000 || settlement.Fee != 100 {
		t.Fatalf("Wrong settlement : %+v", settlement)
	}

	sender, err := FetchUserByAddress(h.ctx, h.dbConn, senderAddress)
	if err != nil {
		t.Fatalf("Failed to fetch sender : %s", err)
	}
	if settlement.UserID != sender.ID {
		t.Fatalf("Settlement not attributed to sender : %s", settlement.UserID)
	}

	again, err := settler.Settle(h.ctx, h.dbConn, KindBet, bet.ID, tests.TxID(1), h.now)
	if err != nil {
		t.Fatalf("Failed to settle duplicate : %s", err)
	}
	if !again.Duplicate || again.Amount != 10000 || again.UserID != sender.ID ||
		again.Fee != 100 {
		t.Fatalf("Wrong duplicate settlement : %+v", again)
	}

	calls := h.test.Indexer.Calls
	_, err = settler.Settle(h.ctx, h.dbConn, KindBet, bet.ID, tests.TxID(2), h.now)
	if errors.Cause(err) != ErrAlreadyProcessed {
		t.Fatalf("Other tx on confirmed bet should fail : %v", err)
	}
	if h.test.Indexer.Calls != calls {
		t.Fatalf("Indexer called for confirmed bet")
	}

	if c := h.count(t, `SELECT COUNT(*) FROM platform_fees`); c != 1 {
		t.Fatalf("Wrong fee count : %d", c)
	}
}

func TestSettleFailures(t *testing.T) {
	h := newHarness(t)
	settler := h.settler(t)

	user := h.user(t, otherAddress)
	prediction := h.prediction(t)
	bet := h.bet(t, user.ID, prediction.ID, 10000)
	used := h.bet(t, user.ID, prediction.ID, 10000)

	h.test.Indexer.AddTransaction(tests.Payment(tests.TxID(1), senderScript, 10000,
		otherScript))
	h.test.Indexer.AddTransaction(tests.Payment(tests.TxID(2), senderScript, 9000,
		escrowScript))
	h.test.Indexer.AddTransaction(tests.Payment(tests.TxID(3), senderScript, 10000,
		escrowScript))

	if _, err := settler.Settle(h.ctx, h.dbConn, KindBet, used.ID, tests.TxID(3),
		h.now); err != nil {
		t.Fatalf("Failed to settle : %s", err)
	}

	tt := []struct {
		name     string
		recordID string
		txid     string
		want     error
	}{
		{"wrong destination", bet.ID, tests.TxID(1), ErrVerificationFailed},
		{"insufficient", bet.ID, tests.TxID(2), ErrVerificationFailed},
		{"replayed", bet.ID, tests.TxID(3), ErrReplayedTransaction},
		{"missing transaction", bet.ID, tests.TxID(4), ErrTransactionNotFound},
		{"missing record", "7b1c3b8a-3f52-4e55-9d57-0c0f7ad1e001", tests.TxID(1),
			ErrRecordNotFound},
		{"bad record id", "bet-1", tests.TxID(1), ErrInvalidInput},
		{"bad txid", bet.ID, "ABC", ErrInvalidInput},
	}

	for _, test := range tt {
		t.Run(test.name, func(t *testing.T) {
			_, err := settler.Settle(h.ctx, h.dbConn, KindBet, test.recordID, test.txid, h.now)
			if errors.Cause(err) != test.want {
				t.Fatalf("Wrong error : got %v, want %s", err, test.want)
			}
		})
	}

	h.test.Indexer.Err = chronik.ErrNetwork
	_, err := settler.Settle(h.ctx, h.dbConn, KindBet, bet.ID, tests.TxID(1), h.now)
	if errors.Cause(err) != chronik.ErrNetwork {
		t.Fatalf("Network error should pass through : %v", err)
	}

	pending, err := FetchBet(h.ctx, h.dbConn, bet.ID)
	if err != nil {
		t.Fatalf("Failed to fetch bet : %s", err)
	}
	if pending.Status != StatusPending {
		t.Fatalf("Failed settlements committed bet : %s", pending.Status)
	}
	if c := h.count(t, `SELECT COUNT(*) FROM platform_fees`); c != 1 {
		t.Fatalf("Wrong fee count : %d", c)
	}
}

func TestSettleRaffleEntry(t *testing.T) {
	h := newHarness(t)
	settler := h.settler(t)

	user := h.user(t, senderAddress)
	raffle, err := CreateRaffle(h.ctx, h.dbConn, "Weekly", 5000, h.now)
	if err != nil {
		t.Fatalf("Failed to create raffle : %s", err)
	}

	entry, err := CreateRaffleEntry(h.ctx, h.dbConn, raffle.ID, user.ID, h.now)
	if err != nil {
		t.Fatalf("Failed to create entry : %s", err)
	}
	if entry.Amount != 5000 {
		t.Fatalf("Wrong entry amount : %d", entry.Amount)
	}

	h.test.Indexer.AddTransaction(tests.Payment(tests.TxID(1), senderScript, 5000,
		escrowScript))

	settlement, err := settler.Settle(h.ctx, h.dbConn, KindRaffleEntry, entry.ID, tests.TxID(1),
		h.now)
	if err != nil {
		t.Fatalf("Failed to settle : %s", err)
	}
	if settlement.UserID != user.ID || settlement.Fee != 50 {
		t.Fatalf("Wrong settlement : %+v", settlement)
	}

	updated, err := FetchRaffle(h.ctx, h.dbConn, raffle.ID)
	if err != nil {
		t.Fatalf("Failed to fetch raffle : %s", err)
	}
	if updated.TotalPot != 5000 || updated.EntriesCount != 1 {
		t.Fatalf("Wrong raffle aggregates : %+v", updated)
	}

	if c := h.count(t, `SELECT COUNT(*) FROM attribution_changes`); c != 0 {
		t.Fatalf("Owner paying shouldn't be reattributed : %d", c)
	}
}
