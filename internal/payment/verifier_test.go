package payment

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ecashpulse/pulse/internal/chronik"
	"github.com/ecashpulse/pulse/internal/platform/tests"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	escrowScript = tests.P2PKHScript(0xaa)
	senderScript = tests.P2PKHScript(0xbb)
	otherScript  = tests.P2PKHScript(0xcc)
)

func newVerifier(indexer chronik.Fetcher, policy MatchPolicy) *Verifier {
	return NewVerifier(indexer, Config{
		Tolerance: DefaultTolerance,
		Policy:    policy,
	})
}

func destination(t *testing.T) []byte {
	b, err := hex.DecodeString(escrowScript)
	if err != nil {
		t.Fatalf("Failed to decode script : %s", err)
	}
	return b
}

func TestVerifyPayment(t *testing.T) {
	ctx := tests.Context()
	indexer := tests.NewMockIndexer()
	indexer.AddTransaction(tests.Payment(tests.TxID(1), senderScript, 10000, escrowScript))

	result, err := newVerifier(indexer, MatchSum).VerifyPayment(ctx, tests.TxID(1),
		destination(t), 10000)
	if err != nil {
		t.Fatalf("Failed to verify payment : %s", err)
	}

	if !result.Verified {
		t.Fatalf("Payment not verified : %s", result.Reason)
	}
	if result.ActualAmount != 10000 {
		t.Fatalf("Wrong amount : %d", result.ActualAmount)
	}
	if result.SenderAddress != "ecash:qzamhwamhwamhwamhwamhwamhwamhwamhv6nwdyqf0" {
		t.Fatalf("Wrong sender : %s", result.SenderAddress)
	}
}

func TestToleranceBoundary(t *testing.T) {
	ctx := tests.Context()
	indexer := tests.NewMockIndexer()
	indexer.AddTransaction(tests.Payment(tests.TxID(1), senderScript, 9900, escrowScript))
	indexer.AddTransaction(tests.Payment(tests.TxID(2), senderScript, 9899, escrowScript))

	v := newVerifier(indexer, MatchSum)

	result, err := v.VerifyPayment(ctx, tests.TxID(1), destination(t), 10000)
	if err != nil {
		t.Fatalf("Failed to verify payment : %s", err)
	}
	if !result.Verified {
		t.Fatalf("Payment at tolerance not verified : %s", result.Reason)
	}

	result, err = v.VerifyPayment(ctx, tests.TxID(2), destination(t), 10000)
	if err != nil {
		t.Fatalf("Failed to verify payment : %s", err)
	}
	if result.Verified {
		t.Fatalf("Payment below tolerance verified")
	}
	if result.Failure != FailureInsufficientAmount {
		t.Fatalf("Wrong failure : %s", result.Failure)
	}
	if !strings.Contains(result.Reason, "10000") || !strings.Contains(result.Reason, "9899") {
		t.Fatalf("Reason doesn't report amounts : %s", result.Reason)
	}
}

func TestMeetsTolerance(t *testing.T) {
	cases := []struct {
		actual, expected int64
		tolerance        decimal.Decimal
		pass             bool
	}{
		{9900, 10000, DefaultTolerance, true},
		{9899, 10000, DefaultTolerance, false},
		{10000, 10000, decimal.Zero, true},
		{9999, 10000, decimal.Zero, false},
		{99, 100, DefaultTolerance, true},
		{98, 100, DefaultTolerance, false},
		{1, 1, DefaultTolerance, true},
		{20000, 10000, DefaultTolerance, true},
		{9500, 10000, decimal.New(5, -2), true},
	}

	for _, tt := range cases {
		if got := MeetsTolerance(tt.actual, tt.expected, tt.tolerance); got != tt.pass {
			t.Fatalf("MeetsTolerance(%d, %d, %s) = %t", tt.actual, tt.expected, tt.tolerance,
				got)
		}
	}
}

func TestFraud(t *testing.T) {
	ctx := tests.Context()
	indexer := tests.NewMockIndexer()
	indexer.AddTransaction(tests.Payment(tests.TxID(1), senderScript, 10000, otherScript))

	result, err := newVerifier(indexer, MatchSum).VerifyPayment(ctx, tests.TxID(1),
		destination(t), 10000)
	if err != nil {
		t.Fatalf("Failed to verify payment : %s", err)
	}

	if result.Verified {
		t.Fatalf("Payment to other script verified")
	}
	if result.Failure != FailureNoDestination || !strings.Contains(result.Reason, "destination") {
		t.Fatalf("Wrong failure : %s (%s)", result.Failure, result.Reason)
	}
}

func TestMatchPolicy(t *testing.T) {
	ctx := tests.Context()
	indexer := tests.NewMockIndexer()
	indexer.AddTransaction(tests.Payment(tests.TxID(1), senderScript, 5000, escrowScript,
		escrowScript))

	result, err := newVerifier(indexer, MatchSum).VerifyPayment(ctx, tests.TxID(1),
		destination(t), 10000)
	if err != nil {
		t.Fatalf("Failed to verify payment : %s", err)
	}
	if !result.Verified || result.ActualAmount != 10000 {
		t.Fatalf("Sum policy should accept : %s (%d)", result.Reason, result.ActualAmount)
	}

	result, err = newVerifier(indexer, MatchSingle).VerifyPayment(ctx, tests.TxID(1),
		destination(t), 5000)
	if err != nil {
		t.Fatalf("Failed to verify payment : %s", err)
	}
	if result.Verified || result.Failure != FailureMultipleDestinations {
		t.Fatalf("Single policy should reject : %s", result.Failure)
	}

	if _, err := ParseMatchPolicy("SINGLE"); err != nil {
		t.Fatalf("Failed to parse policy : %s", err)
	}
	if _, err := ParseMatchPolicy("first"); errors.Cause(err) != ErrInvalidPolicy {
		t.Fatalf("Invalid policy accepted : %v", err)
	}
}

func TestSelfPayment(t *testing.T) {
	ctx := tests.Context()
	indexer := tests.NewMockIndexer()
	indexer.AddTransaction(tests.Payment(tests.TxID(1), escrowScript, 10000, otherScript))

	result, err := newVerifier(indexer, MatchSum).VerifyPayment(ctx, tests.TxID(1),
		destination(t), 1000)
	if err != nil {
		t.Fatalf("Failed to verify payment : %s", err)
	}
	if result.Verified || result.Failure != FailureSelfPayment {
		t.Fatalf("Escrow change accepted : %s", result.Failure)
	}
}

func TestSenderNotDerivable(t *testing.T) {
	ctx := tests.Context()
	indexer := tests.NewMockIndexer()
	tx := tests.Payment(tests.TxID(1), "6a0401020304", 10000, escrowScript)
	indexer.AddTransaction(tx)

	result, err := newVerifier(indexer, MatchSum).VerifyPayment(ctx, tests.TxID(1),
		destination(t), 10000)
	if err != nil {
		t.Fatalf("Failed to verify payment : %s", err)
	}
	if !result.Verified {
		t.Fatalf("Payment not verified : %s", result.Reason)
	}
	if len(result.SenderAddress) != 0 {
		t.Fatalf("Sender should be empty : %s", result.SenderAddress)
	}
}

func TestVerifyErrors(t *testing.T) {
	ctx := tests.Context()
	indexer := tests.NewMockIndexer()
	v := newVerifier(indexer, MatchSum)

	result, err := v.VerifyPayment(ctx, tests.TxID(9), destination(t), 10000)
	if err != nil {
		t.Fatalf("Missing transaction should not error : %s", err)
	}
	if result.Verified || result.Failure != FailureNotFound || result.Reason != "not found" {
		t.Fatalf("Wrong result for missing transaction : %+v", result)
	}

	calls := indexer.Calls
	if _, err := v.VerifyPayment(ctx, "xyz", destination(t), 10000); errors.Cause(err) != chronik.ErrInvalidTxID {
		t.Fatalf("Wrong error for invalid txid : %v", err)
	}
	if indexer.Calls != calls {
		t.Fatalf("Indexer called for invalid txid")
	}

	if _, err := v.VerifyPayment(ctx, tests.TxID(9), destination(t), 0); errors.Cause(err) != ErrInvalidAmount {
		t.Fatalf("Wrong error for invalid amount : %v", err)
	}

	indexer.Err = chronik.ErrNetwork
	if _, err := v.VerifyPayment(ctx, tests.TxID(9), destination(t), 10000); errors.Cause(err) != chronik.ErrNetwork {
		t.Fatalf("Wrong error for network failure : %v", err)
	}
}
