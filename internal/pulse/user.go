package pulse

import (
	"context"
	"time"

	"github.com/ecashpulse/pulse/internal/platform/db"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

const (
	UserColumns = `
		u.id,
		u.address,
		u.date_created`
)

// FindOrCreateUser returns the user with the address, creating it on first observation. The
// address must already be canonical.
func FindOrCreateUser(ctx context.Context, dbConn *db.DB, address string,
	now time.Time) (*User, error) {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.FindOrCreateUser")
	defer span.End()

	if len(address) == 0 {
		return nil, ErrInvalidAddress
	}

	sql := `INSERT
		INTO users (
			id,
			address,
			date_created
		)
		VALUES (?, ?, ?)
		ON CONFLICT (address) DO NOTHING`

	if err := dbConn.Execute(ctx, sql, uuid.New().String(), address, now.UTC()); err != nil {
		return nil, errors.Wrap(err, "insert user")
	}

	user, err := FetchUserByAddress(ctx, dbConn, address)
	if err != nil {
		return nil, errors.Wrap(err, "fetch user")
	}

	return user, nil
}

func FetchUser(ctx context.Context, dbConn *db.DB, id string) (*User, error) {
	sql := `SELECT ` + UserColumns + `
		FROM
			users u
		WHERE
			u.id=?`

	user := &User{}
	if err := dbConn.Get(ctx, user, sql, id); err != nil {
		if err == db.ErrNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func FetchUserByAddress(ctx context.Context, dbConn *db.DB, address string) (*User, error) {
	sql := `SELECT ` + UserColumns + `
		FROM
			users u
		WHERE
			u.address=?`

	user := &User{}
	if err := dbConn.Get(ctx, user, sql, address); err != nil {
		if err == db.ErrNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
