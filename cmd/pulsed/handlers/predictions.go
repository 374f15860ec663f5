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

// Predictions serves prediction pools.
type Predictions struct {
	MasterDB *db.DB
}

// Get returns a prediction with its pools and outcomes.
func (p *Predictions) Get(ctx context.Context, w http.ResponseWriter, r *http.Request,
	params map[string]string) error {

	ctx, span := trace.StartSpan(ctx, "handlers.Predictions.Get")
	defer span.End()

	id := params["id"]
	if _, err := uuid.Parse(id); err != nil {
		return translate(errors.Wrap(pulse.ErrInvalidInput, "prediction id"))
	}

	dbConn := p.MasterDB.Copy()
	defer dbConn.Close()

	prediction, err := pulse.FetchPrediction(ctx, dbConn, id)
	if err != nil {
		return translate(errors.Wrap(err, "fetch prediction"))
	}

	outcomes, err := pulse.ListOutcomes(ctx, dbConn, id)
	if err != nil {
		return translate(errors.Wrap(err, "list outcomes"))
	}

	response := struct {
		Success    bool              `json:"success"`
		Prediction *pulse.Prediction `json:"prediction"`
		Outcomes   []pulse.Outcome   `json:"outcomes"`
	}{
		Success:    true,
		Prediction: prediction,
		Outcomes:   outcomes,
	}

	web.Respond(ctx, w, response, http.StatusOK)
	return nil
}
