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
	RaffleColumns = `
		r.id,
		r.title,
		r.entry_cost,
		r.total_pot,
		r.entries_count,
		r.status,
		r.date_created`

	RaffleEntryColumns = `
		e.id,
		e.raffle_id,
		e.user_id,
		e.amount,
		e.paid_amount,
		e.tx_hash,
		e.status,
		e.confirmed_at,
		e.date_created`
)

// CreateRaffle inserts an active raffle with an empty pot.
func CreateRaffle(ctx context.Context, dbConn *db.DB, title string, entryCost int64,
	now time.Time) (*Raffle, error) {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.CreateRaffle")
	defer span.End()

	if entryCost <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "entry cost %d", entryCost)
	}

	raffle := &Raffle{
		ID:          uuid.New().String(),
		Title:       title,
		EntryCost:   entryCost,
		Status:      StatusActive,
		DateCreated: now.UTC(),
	}

	sql := `INSERT
		INTO raffles (
			id,
			title,
			entry_cost,
			total_pot,
			entries_count,
			status,
			date_created
		)
		VALUES (?, ?, ?, 0, 0, ?, ?)`

	if err := dbConn.Execute(ctx, sql,
		raffle.ID,
		raffle.Title,
		raffle.EntryCost,
		raffle.Status,
		raffle.DateCreated); err != nil {
		return nil, errors.Wrap(err, "insert raffle")
	}

	return raffle, nil
}

func FetchRaffle(ctx context.Context, dbConn *db.DB, id string) (*Raffle, error) {
	sql := `SELECT ` + RaffleColumns + `
		FROM
			raffles r
		WHERE
			r.id=?`

	raffle := &Raffle{}
	if err := dbConn.Get(ctx, raffle, sql, id); err != nil {
		if err == db.ErrNotFound {
			return nil, ErrRaffleNotFound
		}
		return nil, err
	}
	return raffle, nil
}

// CreateRaffleEntry inserts a pending entry into an active raffle. The entry costs the raffle's
// entry cost.
func CreateRaffleEntry(ctx context.Context, dbConn *db.DB, raffleID, userID string,
	now time.Time) (*RaffleEntry, error) {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.CreateRaffleEntry")
	defer span.End()

	if _, err := uuid.Parse(raffleID); err != nil {
		return nil, errors.Wrap(ErrInvalidInput, "raffle id")
	}

	raffle, err := FetchRaffle(ctx, dbConn, raffleID)
	if err != nil {
		return nil, err
	}
	if raffle.Status != StatusActive {
		return nil, errors.Wrapf(ErrNotActive, "raffle %s", raffle.Status)
	}

	entry := &RaffleEntry{
		ID:          uuid.New().String(),
		RaffleID:    raffle.ID,
		UserID:      userID,
		Amount:      raffle.EntryCost,
		Status:      StatusPending,
		DateCreated: now.UTC(),
	}

	sql := `INSERT
		INTO raffle_entries (
			id,
			raffle_id,
			user_id,
			amount,
			paid_amount,
			status,
			date_created
		)
		VALUES (?, ?, ?, ?, 0, ?, ?)`

	if err := dbConn.Execute(ctx, sql,
		entry.ID,
		entry.RaffleID,
		entry.UserID,
		entry.Amount,
		entry.Status,
		entry.DateCreated); err != nil {
		return nil, errors.Wrap(err, "insert raffle entry")
	}

	return entry, nil
}

func FetchRaffleEntry(ctx context.Context, dbConn *db.DB, id string) (*RaffleEntry, error) {
	sql := `SELECT ` + RaffleEntryColumns + `
		FROM
			raffle_entries e
		WHERE
			e.id=?`

	entry := &RaffleEntry{}
	if err := dbConn.Get(ctx, entry, sql, id); err != nil {
		if err == db.ErrNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return entry, nil
}

// addEntryToPot adds a confirmed entry's paid amount to its raffle's pot.
func addEntryToPot(ctx context.Context, dbConn *db.DB, entryID string, amount int64) error {
	entry, err := FetchRaffleEntry(ctx, dbConn, entryID)
	if err != nil {
		return errors.Wrap(err, "fetch raffle entry")
	}

	rows, err := dbConn.Update(ctx, `UPDATE raffles
		SET total_pot = total_pot + ?, entries_count = entries_count + 1
		WHERE id = ?`, amount, entry.RaffleID)
	if err != nil {
		return errors.Wrap(err, "update raffle pot")
	}
	if rows != 1 {
		return errors.Wrap(ErrRaffleNotFound, entry.RaffleID)
	}

	return nil
}
