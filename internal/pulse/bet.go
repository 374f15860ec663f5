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
	BetColumns = `
		b.id,
		b.user_id,
		b.prediction_id,
		b.outcome_id,
		b.position,
		b.amount,
		b.paid_amount,
		b.tx_hash,
		b.status,
		b.confirmed_at,
		b.date_created`
)

// NewBet is the request to place a bet.
type NewBet struct {
	PredictionID string  `json:"prediction_id" validate:"required"`
	Position     string  `json:"position" validate:"required"`
	OutcomeID    *string `json:"outcome_id,omitempty"`
	Amount       int64   `json:"amount" validate:"required"`
}

// CreateBet inserts a pending bet owned by userID. It is confirmed later by a payment.
func CreateBet(ctx context.Context, dbConn *db.DB, userID string, nb NewBet,
	now time.Time) (*Bet, error) {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.CreateBet")
	defer span.End()

	if nb.Amount <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "amount %d", nb.Amount)
	}
	if nb.Position != PositionYes && nb.Position != PositionNo {
		return nil, errors.Wrapf(ErrInvalidInput, "position %s", nb.Position)
	}
	if _, err := uuid.Parse(nb.PredictionID); err != nil {
		return nil, errors.Wrap(ErrInvalidInput, "prediction id")
	}

	prediction, err := FetchPrediction(ctx, dbConn, nb.PredictionID)
	if err != nil {
		return nil, err
	}
	if prediction.Status != StatusActive {
		return nil, errors.Wrapf(ErrNotActive, "prediction %s", prediction.Status)
	}

	if nb.OutcomeID != nil {
		if _, err := uuid.Parse(*nb.OutcomeID); err != nil {
			return nil, errors.Wrap(ErrInvalidInput, "outcome id")
		}

		outcome, err := FetchOutcome(ctx, dbConn, *nb.OutcomeID)
		if err != nil {
			return nil, err
		}
		if outcome.PredictionID != prediction.ID {
			return nil, errors.Wrap(ErrOutcomeNotFound, "other prediction")
		}
	}

	bet := &Bet{
		ID:           uuid.New().String(),
		UserID:       userID,
		PredictionID: prediction.ID,
		OutcomeID:    nb.OutcomeID,
		Position:     nb.Position,
		Amount:       nb.Amount,
		Status:       StatusPending,
		DateCreated:  now.UTC(),
	}

	sql := `INSERT
		INTO bets (
			id,
			user_id,
			prediction_id,
			outcome_id,
			position,
			amount,
			paid_amount,
			status,
			date_created
		)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`

	if err := dbConn.Execute(ctx, sql,
		bet.ID,
		bet.UserID,
		bet.PredictionID,
		bet.OutcomeID,
		bet.Position,
		bet.Amount,
		bet.Status,
		bet.DateCreated); err != nil {
		return nil, errors.Wrap(err, "insert bet")
	}

	return bet, nil
}

func FetchBet(ctx context.Context, dbConn *db.DB, id string) (*Bet, error) {
	sql := `SELECT ` + BetColumns + `
		FROM
			bets b
		WHERE
			b.id=?`

	bet := &Bet{}
	if err := dbConn.Get(ctx, bet, sql, id); err != nil {
		if err == db.ErrNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return bet, nil
}

// addBetToPools adds a confirmed bet's paid amount to its prediction's pools.
func addBetToPools(ctx context.Context, dbConn *db.DB, betID string, amount int64) error {
	bet, err := FetchBet(ctx, dbConn, betID)
	if err != nil {
		return errors.Wrap(err, "fetch bet")
	}

	var sql string
	args := []interface{}{amount, amount, bet.PredictionID}
	switch {
	case bet.OutcomeID != nil:
		sql = `UPDATE predictions
			SET total_volume = total_volume + ?, bet_count = bet_count + 1
			WHERE id = ?`
		args = []interface{}{amount, bet.PredictionID}

		rows, err := dbConn.Update(ctx, `UPDATE outcomes SET pool = pool + ? WHERE id = ?`,
			amount, *bet.OutcomeID)
		if err != nil {
			return errors.Wrap(err, "update outcome pool")
		}
		if rows != 1 {
			return errors.Wrap(ErrOutcomeNotFound, *bet.OutcomeID)
		}
	case bet.Position == PositionYes:
		sql = `UPDATE predictions
			SET yes_pool = yes_pool + ?, total_volume = total_volume + ?, bet_count = bet_count + 1
			WHERE id = ?`
	case bet.Position == PositionNo:
		sql = `UPDATE predictions
			SET no_pool = no_pool + ?, total_volume = total_volume + ?, bet_count = bet_count + 1
			WHERE id = ?`
	default:
		return errors.Wrapf(ErrInvalidInput, "position %s", bet.Position)
	}

	rows, err := dbConn.Update(ctx, sql, args...)
	if err != nil {
		return errors.Wrap(err, "update prediction pools")
	}
	if rows != 1 {
		return errors.Wrap(ErrPredictionNotFound, bet.PredictionID)
	}

	return nil
}
