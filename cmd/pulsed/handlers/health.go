package handlers

import (
	"context"
	"net/http"

	"github.com/ecashpulse/pulse/internal/platform/db"
	"github.com/ecashpulse/pulse/internal/platform/web"

	"go.opencensus.io/trace"
)

// Health provides health checks.
type Health struct {
	MasterDB *db.DB
}

// Health returns a 200 okay status when the database and storage respond.
func (h *Health) Health(ctx context.Context, w http.ResponseWriter, r *http.Request,
	params map[string]string) error {

	ctx, span := trace.StartSpan(ctx, "handlers.Health.Health")
	defer span.End()

	var status struct {
		Status string `json:"status"`
	}

	if err := checkDB(ctx, h.MasterDB); err != nil {
		status.Status = err.Error()
		web.Respond(ctx, w, status, http.StatusInternalServerError)
		return nil
	}

	status.Status = "ok"
	web.Respond(ctx, w, status, http.StatusOK)
	return nil
}

// checkDB performs a status check on a DB.
func checkDB(ctx context.Context, db *db.DB) error {
	dbConn := db.Copy()
	defer dbConn.Close()

	return dbConn.StatusCheck(ctx)
}
