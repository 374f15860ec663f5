package handlers

import (
	"context"
	"net/http"

	"github.com/ecashpulse/pulse/internal/platform/db"
	"github.com/ecashpulse/pulse/internal/platform/web"
	"github.com/ecashpulse/pulse/internal/pulse"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// Raffles enters raffles and confirms entry payments.
type Raffles struct {
	Config   *web.Config
	MasterDB *db.DB
	Settler  *pulse.Settler
}

// Enter creates a pending entry in the raffle for the session user.
func (rh *Raffles) Enter(ctx context.Context, w http.ResponseWriter, r *http.Request,
	params map[string]string) error {

	ctx, span := trace.StartSpan(ctx, "handlers.Raffles.Enter")
	defer span.End()

	userID, ok := web.ContextUserID(ctx)
	if !ok {
		return web.ErrUnauthorized
	}

	dbConn := rh.MasterDB.Copy()
	defer dbConn.Close()

	entry, err := pulse.CreateRaffleEntry(ctx, dbConn, params["id"], userID, now(ctx))
	if err != nil {
		return translate(errors.Wrap(err, "create entry"))
	}

	response := struct {
		Success       bool               `json:"success"`
		Entry         *pulse.RaffleEntry `json:"entry"`
		EscrowAddress string             `json:"escrow_address"`
	}{
		Success:       true,
		Entry:         entry,
		EscrowAddress: rh.Config.EscrowAddress,
	}

	web.Respond(ctx, w, response, http.StatusCreated)
	return nil
}

// Confirm verifies a reported entry payment on chain and confirms the entry.
func (rh *Raffles) Confirm(ctx context.Context, w http.ResponseWriter, r *http.Request,
	params map[string]string) error {

	ctx, span := trace.StartSpan(ctx, "handlers.Raffles.Confirm")
	defer span.End()

	return settle(ctx, w, r, rh.MasterDB, rh.Settler, pulse.KindRaffleEntry)
}
