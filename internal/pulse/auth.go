package pulse

import (
	"context"
	"time"

	"github.com/ecashpulse/pulse/internal/cashaddr"
	"github.com/ecashpulse/pulse/internal/chronik"
	"github.com/ecashpulse/pulse/internal/payment"
	"github.com/ecashpulse/pulse/internal/platform/db"

	"github.com/pkg/errors"
	"github.com/tokenized/logger"
	"go.opencensus.io/trace"
)

// Authenticator signs users in with a payment from their wallet to escrow.
type Authenticator struct {
	Verifier        *payment.Verifier
	EscrowScript    []byte
	AddressPrefix   string
	MinimumAmount   int64
	MaxAge          time.Duration // zero accepts any age
	SessionDuration time.Duration
}

// Authenticate verifies that txid pays escrow from address and returns the address's user with a
// new session. Each txid authenticates only once.
func (a *Authenticator) Authenticate(ctx context.Context, dbConn *db.DB, address, txid string,
	now time.Time) (*User, *Session, error) {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.Authenticator.Authenticate")
	defer span.End()

	prefix := a.AddressPrefix
	if len(prefix) == 0 {
		prefix = cashaddr.DefaultPrefix
	}

	canonical, err := cashaddr.Canonical(address, prefix)
	if err != nil {
		return nil, nil, errors.Wrap(ErrInvalidAddress, err.Error())
	}
	if !chronik.ValidTxID(txid) {
		return nil, nil, errors.Wrap(ErrInvalidInput, "txid")
	}
	if len(a.EscrowScript) == 0 {
		return nil, nil, errors.New("Escrow not configured")
	}

	ctx = logger.ContextWithLogFields(ctx, []logger.Field{
		logger.String("address", canonical),
		logger.String("txid", txid),
	}...)

	used, err := IsTransactionUsed(ctx, dbConn, txid)
	if err != nil {
		return nil, nil, errors.Wrap(err, "check used")
	}
	if used {
		return nil, nil, ErrTransactionUsed
	}

	minimum := a.MinimumAmount
	if minimum <= 0 {
		minimum = 1
	}

	result, err := a.Verifier.VerifyPayment(ctx, txid, a.EscrowScript, minimum)
	if err != nil {
		return nil, nil, errors.Wrap(err, "verify")
	}
	if !result.Verified {
		if result.Failure == payment.FailureNotFound {
			return nil, nil, ErrTransactionNotFound
		}
		return nil, nil, errors.Wrap(ErrVerificationFailed, result.Reason)
	}

	// Payment tolerance doesn't lower the minimum.
	if result.ActualAmount < minimum {
		return nil, nil, errors.Wrapf(ErrVerificationFailed, "below minimum : %d < %d",
			result.ActualAmount, minimum)
	}

	if result.SenderAddress != canonical {
		logger.Warn(ctx, "Authentication sender mismatch : %s", result.SenderAddress)
		return nil, nil, errors.Wrap(ErrVerificationFailed, "sender mismatch")
	}

	if a.MaxAge > 0 && !result.Time.IsZero() && now.Sub(result.Time) > a.MaxAge {
		return nil, nil, errors.Wrapf(ErrVerificationFailed, "transaction too old : %s",
			result.Time.Format(time.RFC3339))
	}

	user, err := FindOrCreateUser(ctx, dbConn, canonical, now)
	if err != nil {
		return nil, nil, errors.Wrap(err, "user")
	}

	if err := dbConn.BeginTransaction(); err != nil {
		return nil, nil, errors.Wrap(err, "begin")
	}
	defer dbConn.Rollback()

	if err := ConsumeAuthTransaction(ctx, dbConn, txid, user.ID, canonical,
		result.ActualAmount, now); err != nil {
		return nil, nil, err
	}

	duration := a.SessionDuration
	if duration <= 0 {
		duration = DefaultSessionDuration
	}

	session, err := CreateSession(ctx, dbConn, user.ID, duration, now)
	if err != nil {
		return nil, nil, errors.Wrap(err, "session")
	}

	if err := dbConn.Commit(); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, nil, ErrTransactionUsed
		}
		return nil, nil, errors.Wrap(err, "commit")
	}

	logger.Info(ctx, "Authenticated user %s", user.ID)
	return user, session, nil
}
