package pulse

import (
	"context"
	"time"

	"github.com/ecashpulse/pulse/internal/cashaddr"
	"github.com/ecashpulse/pulse/internal/platform/db"

	"github.com/pkg/errors"
	"github.com/tokenized/logger"
	"go.opencensus.io/trace"
)

// ResolveOwner returns the user a verified payment belongs to. That is the user holding the
// sender address, created if it has never been seen, or sessionUserID when the sender is unknown.
func ResolveOwner(ctx context.Context, dbConn *db.DB, sessionUserID, senderAddress string,
	now time.Time) (string, error) {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.ResolveOwner")
	defer span.End()

	address := cashaddr.Normalize(senderAddress)
	if len(address) == 0 {
		return sessionUserID, nil
	}

	user, err := FindOrCreateUser(ctx, dbConn, address, now)
	if err != nil {
		return "", errors.Wrap(err, "find sender")
	}

	if user.ID != sessionUserID {
		logger.InfoWithFields(ctx, []logger.Field{
			logger.String("session_user", sessionUserID),
			logger.String("sender_user", user.ID),
			logger.String("sender", address),
		}, "Payment attributed to sender")
	}

	return user.ID, nil
}
