package handlers

import (
	"context"
	"net/http"

	"github.com/ecashpulse/pulse/internal/platform/db"
	"github.com/ecashpulse/pulse/internal/platform/web"
	"github.com/ecashpulse/pulse/internal/pulse"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// Bets places bets and confirms their payments.
type Bets struct {
	Config   *web.Config
	MasterDB *db.DB
	Settler  *pulse.Settler
}

// settleRequest is the body of a payment confirmation.
type settleRequest struct {
	RecordID string `json:"record_id" validate:"required"`
	TxHash   string `json:"tx_hash" validate:"required"`
}

// settleResponse is returned for a confirmed payment.
type settleResponse struct {
	Success   bool   `json:"success"`
	RecordID  string `json:"record_id"`
	TxHash    string `json:"tx_hash"`
	Amount    int64  `json:"amount"`
	UserID    string `json:"user_id"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// Create places a pending bet for the session user. The bet is confirmed when its payment to the
// returned escrow address is reported.
func (b *Bets) Create(ctx context.Context, w http.ResponseWriter, r *http.Request,
	params map[string]string) error {

	ctx, span := trace.StartSpan(ctx, "handlers.Bets.Create")
	defer span.End()

	userID, ok := web.ContextUserID(ctx)
	if !ok {
		return web.ErrUnauthorized
	}

	var requestData pulse.NewBet
	if err := web.Unmarshal(r.Body, &requestData); err != nil {
		return translate(errors.Wrap(err, "unmarshal request"))
	}

	dbConn := b.MasterDB.Copy()
	defer dbConn.Close()

	bet, err := pulse.CreateBet(ctx, dbConn, userID, requestData, now(ctx))
	if err != nil {
		return translate(errors.Wrap(err, "create bet"))
	}

	response := struct {
		Success       bool       `json:"success"`
		Bet           *pulse.Bet `json:"bet"`
		EscrowAddress string     `json:"escrow_address"`
	}{
		Success:       true,
		Bet:           bet,
		EscrowAddress: b.Config.EscrowAddress,
	}

	web.Respond(ctx, w, response, http.StatusCreated)
	return nil
}

// Get returns a bet.
func (b *Bets) Get(ctx context.Context, w http.ResponseWriter, r *http.Request,
	params map[string]string) error {

	ctx, span := trace.StartSpan(ctx, "handlers.Bets.Get")
	defer span.End()

	id := params["id"]
	if _, err := uuid.Parse(id); err != nil {
		return translate(errors.Wrap(pulse.ErrInvalidInput, "bet id"))
	}

	dbConn := b.MasterDB.Copy()
	defer dbConn.Close()

	bet, err := pulse.FetchBet(ctx, dbConn, id)
	if err != nil {
		return translate(errors.Wrap(err, "fetch bet"))
	}

	response := struct {
		Success bool       `json:"success"`
		Bet     *pulse.Bet `json:"bet"`
	}{
		Success: true,
		Bet:     bet,
	}

	web.Respond(ctx, w, response, http.StatusOK)
	return nil
}

// Confirm verifies a reported bet payment on chain and confirms the bet.
func (b *Bets) Confirm(ctx context.Context, w http.ResponseWriter, r *http.Request,
	params map[string]string) error {

	ctx, span := trace.StartSpan(ctx, "handlers.Bets.Confirm")
	defer span.End()

	return settle(ctx, w, r, b.MasterDB, b.Settler, pulse.KindBet)
}

// settle runs a reported payment through the settler and responds with the settlement.
func settle(ctx context.Context, w http.ResponseWriter, r *http.Request, masterDB *db.DB,
	settler *pulse.Settler, kind pulse.RecordKind) error {

	var requestData settleRequest
	if err := web.Unmarshal(r.Body, &requestData); err != nil {
		return translate(errors.Wrap(err, "unmarshal request"))
	}

	dbConn := masterDB.Copy()
	defer dbConn.Close()

	settlement, err := settler.Settle(ctx, dbConn, kind, requestData.RecordID,
		requestData.TxHash, now(ctx))
	if err != nil {
		return translate(errors.Wrap(err, "settle"))
	}

	response := settleResponse{
		Success:   true,
		RecordID:  settlement.RecordID,
		TxHash:    settlement.TxHash,
		Amount:    settlement.Amount,
		UserID:    settlement.UserID,
		Duplicate: settlement.Duplicate,
	}

	web.Respond(ctx, w, response, http.StatusOK)
	return nil
}
