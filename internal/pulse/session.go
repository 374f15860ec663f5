package pulse

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/ecashpulse/pulse/internal/chronik"
	"github.com/ecashpulse/pulse/internal/platform/db"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

const (
	// TokenSize is the number of random bytes in a session token.
	TokenSize = 32

	DefaultSessionDuration = 24 * time.Hour
)

// NewToken returns a random 64 character hex session token.
func NewToken() (string, error) {
	b := make([]byte, TokenSize)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "random")
	}
	return hex.EncodeToString(b), nil
}

// validToken returns true for 64 lower case hex characters, the same shape as a txid.
func validToken(token string) bool {
	return chronik.ValidTxID(token)
}

// CreateSession creates a session for the user that expires after duration.
func CreateSession(ctx context.Context, dbConn *db.DB, userID string, duration time.Duration,
	now time.Time) (*Session, error) {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.CreateSession")
	defer span.End()

	token, err := NewToken()
	if err != nil {
		return nil, errors.Wrap(err, "token")
	}

	session := &Session{
		Token:       token,
		UserID:      userID,
		ExpiresAt:   now.Add(duration).UTC(),
		DateCreated: now.UTC(),
	}

	sql := `INSERT
		INTO sessions (
			token,
			user_id,
			expires_at,
			date_created
		)
		VALUES (?, ?, ?, ?)`

	if err := dbConn.Execute(ctx, sql,
		session.Token,
		session.UserID,
		session.ExpiresAt,
		session.DateCreated); err != nil {
		return nil, errors.Wrap(err, "insert session")
	}

	return session, nil
}

// ValidateSession returns the user id of an unexpired session. Unknown, malformed, and expired
// tokens all return ErrInvalidSession.
func ValidateSession(ctx context.Context, dbConn *db.DB, token string,
	now time.Time) (string, error) {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.ValidateSession")
	defer span.End()

	if !validToken(token) {
		return "", ErrInvalidSession
	}

	sql := `SELECT
			s.token,
			s.user_id,
			s.expires_at,
			s.date_created
		FROM
			sessions s
		WHERE
			s.token=?`

	var session Session
	if err := dbConn.Get(ctx, &session, sql, token); err != nil {
		if err == db.ErrNotFound {
			return "", ErrInvalidSession
		}
		return "", errors.Wrap(err, "fetch session")
	}

	if !session.ExpiresAt.After(now) {
		return "", ErrInvalidSession
	}

	return session.UserID, nil
}

// DeleteExpiredSessions removes sessions that expired before now.
func DeleteExpiredSessions(ctx context.Context, dbConn *db.DB, now time.Time) (int64, error) {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.DeleteExpiredSessions")
	defer span.End()

	return dbConn.Update(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now.UTC())
}

// ConsumeAuthTransaction marks txid as used for authentication. A txid can only be consumed once,
// later calls return ErrTransactionUsed.
func ConsumeAuthTransaction(ctx context.Context, dbConn *db.DB, txid, userID, address string,
	amount int64, now time.Time) error {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.ConsumeAuthTransaction")
	defer span.End()

	if !chronik.ValidTxID(txid) {
		return errors.Wrap(ErrInvalidInput, "txid")
	}

	used, err := IsTransactionUsed(ctx, dbConn, txid)
	if err != nil {
		return errors.Wrap(err, "check transaction")
	}
	if used {
		return ErrTransactionUsed
	}

	// Shared with record payments. The primary key decides races between them.
	if err := dbConn.Execute(ctx, `INSERT
		INTO used_transactions (
			tx_hash,
			record_type,
			record_id,
			date_created
		)
		VALUES (?, ?, ?, ?)`, txid, UsedByAuth, userID, now.UTC()); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrTransactionUsed
		}
		return errors.Wrap(err, "insert used transaction")
	}

	sql := `INSERT
		INTO auth_transactions (
			tx_hash,
			user_id,
			address,
			amount,
			date_created
		)
		VALUES (?, ?, ?, ?, ?)`

	if err := dbConn.Execute(ctx, sql, txid, userID, address, amount, now.UTC()); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrTransactionUsed
		}
		return errors.Wrap(err, "insert auth transaction")
	}

	return nil
}
