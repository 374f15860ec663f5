package mid

import (
	"context"
	"net/http"
	"strings"

	"github.com/ecashpulse/pulse/internal/platform/web"

	"github.com/pkg/errors"
	"github.com/tokenized/logger"
	"go.opencensus.io/trace"
)

// SessionValidator returns the user id owning a valid session token. Invalid tokens return an
// error caused by web.ErrUnauthorized.
type SessionValidator func(ctx context.Context, token string) (string, error)

// Authenticate requires a valid "Authorization: Bearer <token>" header and puts the session's user
// id in the context. Missing, unknown and expired tokens are all rejected the same way.
func Authenticate(validate SessionValidator) web.Middleware {
	return func(next web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request,
			params map[string]string) error {
			ctx, span := trace.StartSpan(ctx, "internal.mid.Authenticate")
			defer span.End()

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				return errors.Wrap(web.ErrUnauthorized, "missing bearer token")
			}

			userID, err := validate(ctx, token)
			if err != nil {
				return errors.Wrap(err, "validate session")
			}

			ctx = web.ContextWithUserID(ctx, userID)
			ctx = logger.ContextWithLogFields(ctx, []logger.Field{
				logger.String("user_id", userID),
			}...)

			return next(ctx, w, r, params)
		}

		return h
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if len(token) == 0 {
		return "", false
	}
	return token, true
}
