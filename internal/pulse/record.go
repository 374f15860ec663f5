package pulse

import (
	"context"
	"time"

	"github.com/ecashpulse/pulse/internal/platform/db"

	"github.com/pkg/errors"
)

// RecordKind identifies a kind of record that is settled by an on-chain payment.
type RecordKind string

const (
	KindBet         = RecordKind("bet")
	KindRaffleEntry = RecordKind("raffle_entry")
)

// Record is the part of a payable record the ledger works with.
type Record struct {
	Kind        RecordKind `db:"-" json:"kind"`
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Amount      int64      `db:"amount" json:"amount"`
	PaidAmount  int64      `db:"paid_amount" json:"paid_amount"`
	TxHash      *string    `db:"tx_hash" json:"tx_hash,omitempty"`
	Status      string     `db:"status" json:"status"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
}

// ParseRecordKind converts a string into a RecordKind.
func ParseRecordKind(s string) (RecordKind, error) {
	switch RecordKind(s) {
	case KindBet, KindRaffleEntry:
		return RecordKind(s), nil
	default:
		return "", errors.Wrapf(ErrInvalidInput, "record kind %s", s)
	}
}

func (k RecordKind) table() (string, error) {
	switch k {
	case KindBet:
		return "bets", nil
	case KindRaffleEntry:
		return "raffle_entries", nil
	default:
		return "", errors.Wrapf(ErrInvalidInput, "record kind %s", k)
	}
}

// PaidWith returns true when the record was confirmed by txid.
func (r Record) PaidWith(txid string) bool {
	return r.TxHash != nil && *r.TxHash == txid
}

// FetchRecord returns the record of the kind with the id.
func FetchRecord(ctx context.Context, dbConn *db.DB, kind RecordKind, id string) (*Record, error) {
	table, err := kind.table()
	if err != nil {
		return nil, err
	}

	sql := `SELECT
			r.id,
			r.user_id,
			r.amount,
			r.paid_amount,
			r.tx_hash,
			r.status,
			r.confirmed_at
		FROM
			` + table + ` r
		WHERE
			r.id=?`

	record := &Record{Kind: kind}
	if err := dbConn.Get(ctx, record, sql, id); err != nil {
		if err == db.ErrNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return record, nil
}
