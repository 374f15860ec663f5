package pulse

import (
	"context"
	"time"

	"github.com/ecashpulse/pulse/internal/chronik"
	"github.com/ecashpulse/pulse/internal/payment"
	"github.com/ecashpulse/pulse/internal/platform/db"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tokenized/logger"
	"go.opencensus.io/trace"
)

// Ledger applies confirmed payments to records.
type Ledger struct {
	Tolerance decimal.Decimal
	FeeRate   decimal.Decimal
}

// Commit is the result of a successful CommitPayment.
type Commit struct {
	Kind           RecordKind `json:"kind"`
	RecordID       string     `json:"record_id"`
	TxHash         string     `json:"tx_hash"`
	Amount         int64      `json:"amount"`
	ExpectedAmount int64      `json:"expected_amount"`
	UserID         string     `json:"user_id"`
	PreviousUserID string     `json:"previous_user_id"`
	Fee            int64      `json:"fee"`
	ConfirmedAt    time.Time  `json:"confirmed_at"`
}

// Reattributed returns true when the commit moved the record to another user.
func (c Commit) Reattributed() bool {
	return c.UserID != c.PreviousUserID
}

// Fee returns the platform fee for a verified amount, rounded down.
func (l Ledger) Fee(amount int64) int64 {
	return decimal.NewFromInt(amount).Mul(l.FeeRate).Floor().IntPart()
}

// CommitPayment confirms a pending record with a verified payment. The record is confirmed, the
// tx_hash is marked used, ownership moves to finalUserID, the fee is recorded, and the aggregates
// the record feeds are updated, all in one database transaction. dbConn must be a Copy without an
// active transaction.
func (l Ledger) CommitPayment(ctx context.Context, dbConn *db.DB, kind RecordKind, recordID,
	txid string, verifiedAmount int64, finalUserID string, now time.Time) (*Commit, error) {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.Ledger.CommitPayment")
	defer span.End()

	if !chronik.ValidTxID(txid) {
		return nil, errors.Wrap(ErrInvalidInput, "txid")
	}
	if verifiedAmount <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "amount %d", verifiedAmount)
	}
	if len(finalUserID) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "user id")
	}

	table, err := kind.table()
	if err != nil {
		return nil, err
	}

	ctx = logger.ContextWithLogFields(ctx, []logger.Field{
		logger.String("record_kind", string(kind)),
		logger.String("record_id", recordID),
		logger.String("txid", txid),
	}...)

	if err := dbConn.BeginTransaction(); err != nil {
		return nil, errors.Wrap(err, "begin")
	}
	defer dbConn.Rollback()

	record, err := FetchRecord(ctx, dbConn, kind, recordID)
	if err != nil {
		return nil, err
	}
	if record.Status != StatusPending {
		return nil, errors.Wrapf(ErrAlreadyProcessed, "status %s", record.Status)
	}

	used, err := IsTransactionUsed(ctx, dbConn, txid)
	if err != nil {
		return nil, errors.Wrap(err, "check used")
	}
	if used {
		return nil, ErrReplayedTransaction
	}

	if !payment.MeetsTolerance(verifiedAmount, record.Amount, l.Tolerance) {
		return nil, errors.Wrapf(ErrAmountBelowTolerance, "expected %d, actual %d",
			record.Amount, verifiedAmount)
	}

	confirmedAt := now.UTC()

	// Concurrent commits of the same tx_hash are decided here by the primary key.
	if err := dbConn.Execute(ctx, `INSERT
		INTO used_transactions (
			tx_hash,
			record_type,
			record_id,
			date_created
		)
		VALUES (?, ?, ?, ?)`, txid, string(kind), recordID, confirmedAt); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrReplayedTransaction
		}
		return nil, errors.Wrap(err, "insert used transaction")
	}

	// Concurrent commits of the same record are decided here by the status condition.
	rows, err := dbConn.Update(ctx, `UPDATE `+table+`
		SET status = ?, tx_hash = ?, paid_amount = ?, confirmed_at = ?, user_id = ?
		WHERE id = ? AND status = ?`,
		StatusConfirmed, txid, verifiedAmount, confirmedAt, finalUserID, recordID, StatusPending)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrReplayedTransaction
		}
		return nil, errors.Wrap(err, "confirm record")
	}
	if rows == 0 {
		return nil, ErrAlreadyProcessed
	}

	commit := &Commit{
		Kind:           kind,
		RecordID:       recordID,
		TxHash:         txid,
		Amount:         verifiedAmount,
		ExpectedAmount: record.Amount,
		UserID:         finalUserID,
		PreviousUserID: record.UserID,
		Fee:            l.Fee(verifiedAmount),
		ConfirmedAt:    confirmedAt,
	}

	if commit.Reattributed() {
		if err := l.recordAttribution(ctx, dbConn, commit); err != nil {
			return nil, errors.Wrap(err, "attribution")
		}
	}

	if err := dbConn.Execute(ctx, `INSERT
		INTO platform_fees (
			id,
			source_type,
			source_id,
			tx_hash,
			amount,
			rate,
			date_created
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		string(kind),
		recordID,
		txid,
		commit.Fee,
		l.FeeRate.String(),
		confirmedAt); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAlreadyProcessed
		}
		return nil, errors.Wrap(err, "insert fee")
	}

	switch kind {
	case KindBet:
		err = addBetToPools(ctx, dbConn, recordID, verifiedAmount)
	case KindRaffleEntry:
		err = addEntryToPot(ctx, dbConn, recordID, verifiedAmount)
	}
	if err != nil {
		return nil, errors.Wrap(err, "aggregates")
	}

	if err := dbConn.Commit(); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrReplayedTransaction
		}
		return nil, errors.Wrap(err, "commit")
	}

	logger.InfoWithFields(ctx, []logger.Field{
		logger.Int("amount", int(commit.Amount)),
		logger.Int("fee", int(commit.Fee)),
		logger.String("user_id", commit.UserID),
	}, "Committed payment")

	return commit, nil
}

// recordAttribution appends the ownership change to the audit log.
func (l Ledger) recordAttribution(ctx context.Context, dbConn *db.DB, commit *Commit) error {
	user, err := FetchUser(ctx, dbConn, commit.UserID)
	if err != nil {
		return errors.Wrap(err, "fetch user")
	}

	change := AttributionChange{
		ID:            uuid.New().String(),
		RecordType:    string(commit.Kind),
		RecordID:      commit.RecordID,
		FromUserID:    commit.PreviousUserID,
		ToUserID:      commit.UserID,
		TxHash:        commit.TxHash,
		SenderAddress: user.Address,
		DateCreated:   commit.ConfirmedAt,
	}

	sql := `INSERT
		INTO attribution_changes (
			id,
			record_type,
			record_id,
			from_user_id,
			to_user_id,
			tx_hash,
			sender_address,
			date_created
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	if err := dbConn.Execute(ctx, sql,
		change.ID,
		change.RecordType,
		change.RecordID,
		change.FromUserID,
		change.ToUserID,
		change.TxHash,
		change.SenderAddress,
		change.DateCreated); err != nil {
		return err
	}

	logger.InfoWithFields(ctx, []logger.Field{
		logger.String("from_user_id", change.FromUserID),
		logger.String("to_user_id", change.ToUserID),
		logger.String("sender", change.SenderAddress),
	}, "Record reattributed")

	return nil
}

// UsedByAuth is the record_type of a used transaction that authenticated a session.
const UsedByAuth = "auth"

// IsTransactionUsed returns true when txid already paid for a record or authenticated a session.
func IsTransactionUsed(ctx context.Context, dbConn *db.DB, txid string) (bool, error) {
	var count int
	if err := dbConn.Get(ctx, &count,
		`SELECT COUNT(*) FROM used_transactions WHERE tx_hash=?`, txid); err != nil {
		return false, err
	}
	return count > 0, nil
}

// UsedTransactions returns the subset of txids that already paid for a record or authenticated a
// session.
func UsedTransactions(ctx context.Context, dbConn *db.DB, txids []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(txids) == 0 {
		return result, nil
	}

	var used []string
	if err := dbConn.SelectIn(ctx, &used,
		`SELECT tx_hash FROM used_transactions WHERE tx_hash IN (?)`, txids); err != nil &&
		err != db.ErrNotFound {
		return nil, err
	}

	for _, txid := range used {
		result[txid] = true
	}
	return result, nil
}

// FetchFee returns the fee recorded for a record.
func FetchFee(ctx context.Context, dbConn *db.DB, kind RecordKind,
	recordID string) (*PlatformFee, error) {
	sql := `SELECT
			f.id,
			f.source_type,
			f.source_id,
			f.tx_hash,
			f.amount,
			f.rate,
			f.date_created
		FROM
			platform_fees f
		WHERE
			f.source_type=?
			AND f.source_id=?`

	fee := &PlatformFee{}
	if err := dbConn.Get(ctx, fee, sql, string(kind), recordID); err != nil {
		if err == db.ErrNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return fee, nil
}

// ListAttributionChanges returns the ownership changes of a record, oldest first.
func ListAttributionChanges(ctx context.Context, dbConn *db.DB, kind RecordKind,
	recordID string) ([]AttributionChange, error) {
	sql := `SELECT
			a.id,
			a.record_type,
			a.record_id,
			a.from_user_id,
			a.to_user_id,
			a.tx_hash,
			a.sender_address,
			a.date_created
		FROM
			attribution_changes a
		WHERE
			a.record_type=?
			AND a.record_id=?
		ORDER BY
			a.date_created`

	var changes []AttributionChange
	if err := dbConn.Select(ctx, &changes, sql, string(kind), recordID); err != nil &&
		err != db.ErrNotFound {
		return nil, err
	}
	return changes, nil
}
