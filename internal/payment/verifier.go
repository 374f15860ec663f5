package payment

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ecashpulse/pulse/internal/cashaddr"
	"github.com/ecashpulse/pulse/internal/chronik"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tokenized/logger"
	"go.opencensus.io/trace"
)

// MatchPolicy decides how outputs paying the destination script are counted.
type MatchPolicy string

const (
	// MatchSum sums every output paying the destination.
	MatchSum = MatchPolicy("sum")

	// MatchSingle requires exactly one output paying the destination.
	MatchSingle = MatchPolicy("single")
)

// Failure classifies a verification that did not pass.
type Failure uint8

const (
	FailureNone = Failure(iota)
	FailureNotFound
	FailureNoDestination
	FailureMultipleDestinations
	FailureInsufficientAmount
	FailureSelfPayment
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureNotFound:
		return "not found"
	case FailureNoDestination:
		return "no matching destination output"
	case FailureMultipleDestinations:
		return "multiple destination outputs"
	case FailureInsufficientAmount:
		return "insufficient amount"
	case FailureSelfPayment:
		return "destination output is escrow change"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidAmount      = errors.New("Invalid amount")
	ErrInvalidDestination = errors.New("Invalid destination script")
	ErrInvalidPolicy      = errors.New("Invalid match policy")

	// DefaultTolerance accepts payments down to 99% of the expected amount.
	DefaultTolerance = decimal.New(1, -2)
)

// ParseMatchPolicy converts a configuration value into a MatchPolicy.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch MatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchSum:
		return MatchSum, nil
	case MatchSingle:
		return MatchSingle, nil
	default:
		return "", errors.Wrap(ErrInvalidPolicy, s)
	}
}

// Config holds the business rules applied by the Verifier.
type Config struct {
	Tolerance     decimal.Decimal
	Policy        MatchPolicy
	AddressPrefix string
}

// Result is the outcome of a verification.
type Result struct {
	TxID           string
	Verified       bool
	ExpectedAmount int64
	ActualAmount   int64
	SenderAddress  string // empty when the sender could not be derived
	Failure        Failure
	Reason         string
	Time           time.Time // zero when unknown
	Confirmed      bool
}

// Verifier checks that a transaction pays a destination script.
type Verifier struct {
	fetcher chronik.Fetcher
	config  Config
}

// NewVerifier returns a verifier using fetcher for chain state.
func NewVerifier(fetcher chronik.Fetcher, config Config) *Verifier {
	if config.Policy == "" {
		config.Policy = MatchSum
	}
	if len(config.AddressPrefix) == 0 {
		config.AddressPrefix = cashaddr.DefaultPrefix
	}
	return &Verifier{
		fetcher: fetcher,
		config:  config,
	}
}

// Tolerance returns the configured downward amount tolerance.
func (v *Verifier) Tolerance() decimal.Decimal {
	return v.config.Tolerance
}

// MeetsTolerance returns true when actual >= expected * (1 - tolerance).
func MeetsTolerance(actual, expected int64, tolerance decimal.Decimal) bool {
	minimum := decimal.NewFromInt(expected).Mul(decimal.NewFromInt(1).Sub(tolerance))
	return decimal.NewFromInt(actual).GreaterThanOrEqual(minimum)
}

// VerifyPayment fetches txid and checks that it pays expectedAmount to destinationScript. A
// transaction that exists but doesn't satisfy the payment returns a Result with Verified false.
// Errors are returned for invalid input and when the indexers are unavailable.
func (v *Verifier) VerifyPayment(ctx context.Context, txid string, destinationScript []byte,
	expectedAmount int64) (*Result, error) {

	ctx, span := trace.StartSpan(ctx, "payment.Verifier.VerifyPayment")
	defer span.End()

	if !chronik.ValidTxID(txid) {
		return nil, chronik.ErrInvalidTxID
	}
	if expectedAmount <= 0 {
		return nil, errors.Wrapf(ErrInvalidAmount, "%d", expectedAmount)
	}
	if len(destinationScript) == 0 {
		return nil, ErrInvalidDestination
	}

	ctx = logger.ContextWithLogFields(ctx, []logger.Field{
		logger.String("txid", txid),
		logger.Int("expected_amount", int(expectedAmount)),
	}...)

	result := &Result{
		TxID:           txid,
		ExpectedAmount: expectedAmount,
	}

	tx, err := v.fetcher.FetchTransaction(ctx, txid)
	if err != nil {
		if errors.Cause(err) == chronik.ErrNotFound {
			return result.fail(ctx, FailureNotFound, "not found"), nil
		}
		return nil, errors.Wrap(err, "fetch transaction")
	}

	if t, ok := tx.Time(); ok {
		result.Time = t
	}
	result.Confirmed = tx.IsConfirmed()

	destination := hex.EncodeToString(destinationScript)

	// Escrow spending to itself leaves change outputs on the destination script.
	if len(tx.Inputs) > 0 && tx.Inputs[0].OutputScript == destination {
		return result.fail(ctx, FailureSelfPayment, "destination output is escrow change"), nil
	}

	matches := 0
	for _, output := range tx.Outputs {
		if output.OutputScript != destination {
			continue
		}
		matches++
		result.ActualAmount += output.Value
	}

	if matches == 0 || result.ActualAmount <= 0 {
		return result.fail(ctx, FailureNoDestination, "no matching destination output"), nil
	}

	if matches > 1 && v.config.Policy == MatchSingle {
		return result.fail(ctx, FailureMultipleDestinations,
			fmt.Sprintf("multiple destination outputs (%d)", matches)), nil
	}

	if !MeetsTolerance(result.ActualAmount, expectedAmount, v.config.Tolerance) {
		return result.fail(ctx, FailureInsufficientAmount,
			fmt.Sprintf("insufficient amount: expected %d, actual %d", expectedAmount,
				result.ActualAmount)), nil
	}

	// Sender derivation failure doesn't fail the payment.
	if len(tx.Inputs) > 0 {
		if sender, ok := cashaddr.ScriptHexToAddress(v.config.AddressPrefix,
			tx.Inputs[0].OutputScript); ok {
			result.SenderAddress = sender.String()
		}
	}

	result.Verified = true

	logger.InfoWithFields(ctx, []logger.Field{
		logger.Int("actual_amount", int(result.ActualAmount)),
		logger.String("sender", result.SenderAddress),
	}, "Payment verified")

	return result, nil
}

func (r *Result) fail(ctx context.Context, failure Failure, reason string) *Result {
	r.Verified = false
	r.Failure = failure
	r.Reason = reason

	logger.WarnWithFields(ctx, []logger.Field{
		logger.Int("actual_amount", int(r.ActualAmount)),
		logger.Stringer("failure", failure),
	}, "Payment verification failed : %s", reason)

	return r
}
