package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ecashpulse/pulse/internal/mid"
	"github.com/ecashpulse/pulse/internal/platform/db"
	"github.com/ecashpulse/pulse/internal/platform/web"
	"github.com/ecashpulse/pulse/internal/pulse"

	"github.com/pkg/errors"
)

// API returns a handler for a set of routes.
func API(config *web.Config, masterDB *db.DB, settler *pulse.Settler,
	authenticator *pulse.Authenticator) http.Handler {

	app := web.New(config, mid.ErrorHandler, mid.CORS)

	// Register OPTIONS fallback handler for preflight requests.
	app.HandleOptions(mid.CORSHandler)

	hh := Health{
		MasterDB: masterDB,
	}
	app.Handle("GET", "/health", hh.Health)

	// We don't need to log health requests, so add this middleware after the health request.
	app.AddMiddleWare(mid.RequestLogger)

	session := mid.Authenticate(SessionValidator(masterDB))

	ah := Auth{
		Config:        config,
		MasterDB:      masterDB,
		Authenticator: authenticator,
	}
	app.Handle("POST", "/auth/transaction", ah.Transaction)
	app.Handle("GET", "/session", ah.Session, session)

	bh := Bets{
		Config:   config,
		MasterDB: masterDB,
		Settler:  settler,
	}
	app.Handle("POST", "/bets", bh.Create, session)
	app.Handle("GET", "/bets/:id", bh.Get)
	app.Handle("POST", "/confirm-transaction", bh.Confirm)

	ph := Predictions{
		MasterDB: masterDB,
	}
	app.Handle("GET", "/predictions/:id", ph.Get)

	rh := Raffles{
		Config:   config,
		MasterDB: masterDB,
		Settler:  settler,
	}
	app.Handle("POST", "/raffles/:id/entries", rh.Enter, session)
	app.Handle("POST", "/raffles/confirm-entry", rh.Confirm)

	return app
}

// SessionValidator returns a validator of bearer tokens against the sessions table.
func SessionValidator(masterDB *db.DB) mid.SessionValidator {
	return func(ctx context.Context, token string) (string, error) {
		dbConn := masterDB.Copy()
		defer dbConn.Close()

		userID, err := pulse.ValidateSession(ctx, dbConn, token, now(ctx))
		if err != nil {
			if errors.Cause(err) == pulse.ErrInvalidSession {
				return "", errors.Wrap(web.ErrUnauthorized, "session")
			}
			return "", err
		}

		return userID, nil
	}
}

// now returns the request time.
func now(ctx context.Context) time.Time {
	if v := web.ContextValues(ctx); v != nil && !v.Now.IsZero() {
		return v.Now.UTC()
	}
	return time.Now().UTC()
}
