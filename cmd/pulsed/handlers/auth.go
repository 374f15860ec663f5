package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ecashpulse/pulse/internal/platform/db"
	"github.com/ecashpulse/pulse/internal/platform/web"
	"github.com/ecashpulse/pulse/internal/pulse"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// Auth signs users in with a wallet transaction.
type Auth struct {
	Config        *web.Config
	MasterDB      *db.DB
	Authenticator *pulse.Authenticator
}

// Transaction creates a session for the address that paid escrow in the transaction.
func (a *Auth) Transaction(ctx context.Context, w http.ResponseWriter, r *http.Request,
	params map[string]string) error {

	ctx, span := trace.StartSpan(ctx, "handlers.Auth.Transaction")
	defer span.End()

	var requestData struct {
		Address string `json:"address" validate:"required"`
		TxHash  string `json:"tx_hash" validate:"required"`
	}

	if err := web.Unmarshal(r.Body, &requestData); err != nil {
		return translate(errors.Wrap(err, "unmarshal request"))
	}

	dbConn := a.MasterDB.Copy()
	defer dbConn.Close()

	user, session, err := a.Authenticator.Authenticate(ctx, dbConn, requestData.Address,
		requestData.TxHash, now(ctx))
	if err != nil {
		return translate(errors.Wrap(err, "authenticate"))
	}

	response := struct {
		Success      bool        `json:"success"`
		User         *pulse.User `json:"user"`
		SessionToken string      `json:"session_token"`
		ExpiresAt    time.Time   `json:"expires_at"`
	}{
		Success:      true,
		User:         user,
		SessionToken: session.Token,
		ExpiresAt:    session.ExpiresAt,
	}

	web.Respond(ctx, w, response, http.StatusOK)
	return nil
}

// Session returns the user of the bearer session.
func (a *Auth) Session(ctx context.Context, w http.ResponseWriter, r *http.Request,
	params map[string]string) error {

	ctx, span := trace.StartSpan(ctx, "handlers.Auth.Session")
	defer span.End()

	userID, ok := web.ContextUserID(ctx)
	if !ok {
		return web.ErrUnauthorized
	}

	dbConn := a.MasterDB.Copy()
	defer dbConn.Close()

	user, err := pulse.FetchUser(ctx, dbConn, userID)
	if err != nil {
		return translate(errors.Wrap(err, "fetch user"))
	}

	response := struct {
		Success bool        `json:"success"`
		User    *pulse.User `json:"user"`
	}{
		Success: true,
		User:    user,
	}

	web.Respond(ctx, w, response, http.StatusOK)
	return nil
}
