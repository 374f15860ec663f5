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
	PredictionColumns = `
		p.id,
		p.title,
		p.status,
		p.yes_pool,
		p.no_pool,
		p.total_volume,
		p.bet_count,
		p.date_created`

	OutcomeColumns = `
		o.id,
		o.prediction_id,
		o.label,
		o.pool,
		o.date_created`
)

// CreatePrediction inserts an active prediction with empty pools.
func CreatePrediction(ctx context.Context, dbConn *db.DB, title string,
	now time.Time) (*Prediction, error) {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.CreatePrediction")
	defer span.End()

	prediction := &Prediction{
		ID:          uuid.New().String(),
		Title:       title,
		Status:      StatusActive,
		DateCreated: now.UTC(),
	}

	sql := `INSERT
		INTO predictions (
			id,
			title,
			status,
			yes_pool,
			no_pool,
			total_volume,
			bet_count,
			date_created
		)
		VALUES (?, ?, ?, 0, 0, 0, 0, ?)`

	if err := dbConn.Execute(ctx, sql,
		prediction.ID,
		prediction.Title,
		prediction.Status,
		prediction.DateCreated); err != nil {
		return nil, errors.Wrap(err, "insert prediction")
	}

	return prediction, nil
}

func FetchPrediction(ctx context.Context, dbConn *db.DB, id string) (*Prediction, error) {
	sql := `SELECT ` + PredictionColumns + `
		FROM
			predictions p
		WHERE
			p.id=?`

	prediction := &Prediction{}
	if err := dbConn.Get(ctx, prediction, sql, id); err != nil {
		if err == db.ErrNotFound {
			return nil, ErrPredictionNotFound
		}
		return nil, err
	}
	return prediction, nil
}

// SetPredictionStatus changes the status of a prediction. Only active predictions take bets.
func SetPredictionStatus(ctx context.Context, dbConn *db.DB, id, status string) error {
	rows, err := dbConn.Update(ctx, `UPDATE predictions SET status=? WHERE id=?`, status, id)
	if err != nil {
		return errors.Wrap(err, "update prediction")
	}
	if rows == 0 {
		return ErrPredictionNotFound
	}
	return nil
}

// CreateOutcome adds an outcome to a prediction.
func CreateOutcome(ctx context.Context, dbConn *db.DB, predictionID, label string,
	now time.Time) (*Outcome, error) {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.CreateOutcome")
	defer span.End()

	if _, err := FetchPrediction(ctx, dbConn, predictionID); err != nil {
		return nil, err
	}

	outcome := &Outcome{
		ID:           uuid.New().String(),
		PredictionID: predictionID,
		Label:        label,
		DateCreated:  now.UTC(),
	}

	sql := `INSERT
		INTO outcomes (
			id,
			prediction_id,
			label,
			pool,
			date_created
		)
		VALUES (?, ?, ?, 0, ?)`

	if err := dbConn.Execute(ctx, sql,
		outcome.ID,
		outcome.PredictionID,
		outcome.Label,
		outcome.DateCreated); err != nil {
		return nil, errors.Wrap(err, "insert outcome")
	}

	return outcome, nil
}

func FetchOutcome(ctx context.Context, dbConn *db.DB, id string) (*Outcome, error) {
	sql := `SELECT ` + OutcomeColumns + `
		FROM
			outcomes o
		WHERE
			o.id=?`

	outcome := &Outcome{}
	if err := dbConn.Get(ctx, outcome, sql, id); err != nil {
		if err == db.ErrNotFound {
			return nil, ErrOutcomeNotFound
		}
		return nil, err
	}
	return outcome, nil
}

// ListOutcomes returns the outcomes of a prediction.
func ListOutcomes(ctx context.Context, dbConn *db.DB, predictionID string) ([]Outcome, error) {
	sql := `SELECT ` + OutcomeColumns + `
		FROM
			outcomes o
		WHERE
			o.prediction_id=?
		ORDER BY
			o.date_created`

	rows, err := dbConn.Query(ctx, sql, predictionID)
	if err != nil {
		return nil, errors.Wrap(err, "query outcomes")
	}
	defer rows.Close()

	outcomes := []Outcome{}
	for rows.Next() {
		var outcome Outcome
		if err := rows.StructScan(&outcome); err != nil {
			return nil, errors.Wrap(err, "scan outcome")
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, rows.Err()
}
