package pulse

import (
	"context"
	"time"

	"github.com/ecashpulse/pulse/internal/chronik"
	"github.com/ecashpulse/pulse/internal/payment"
	"github.com/ecashpulse/pulse/internal/platform/db"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tokenized/logger"
	"go.opencensus.io/trace"
)

// Settlement is the confirmation returned to a client that reported a payment.
type Settlement struct {
	Kind      RecordKind `json:"kind"`
	RecordID  string     `json:"record_id"`
	TxHash    string     `json:"tx_hash"`
	Amount    int64      `json:"amount"`
	UserID    string     `json:"user_id"`
	Fee       int64      `json:"fee"`
	Duplicate bool       `json:"duplicate"`
}

// Settler verifies reported payments on chain and commits them to the ledger.
type Settler struct {
	Verifier     *payment.Verifier
	Ledger       Ledger
	EscrowScript []byte
}

// Settle confirms the record with the payment in txid. The chain is checked before any database
// transaction is started. Reporting the transaction that already confirmed the record returns
// the existing settlement marked as a duplicate.
func (s *Settler) Settle(ctx context.Context, dbConn *db.DB, kind RecordKind, recordID,
	txid string, now time.Time) (*Settlement, error) {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.Settler.Settle")
	defer span.End()

	if _, err := uuid.Parse(recordID); err != nil {
		return nil, errors.Wrap(ErrInvalidInput, "record id")
	}
	if !chronik.ValidTxID(txid) {
		return nil, errors.Wrap(ErrInvalidInput, "txid")
	}
	if len(s.EscrowScript) == 0 {
		return nil, errors.New("Escrow not configured")
	}

	ctx = logger.ContextWithLogFields(ctx, []logger.Field{
		logger.String("record_kind", string(kind)),
		logger.String("record_id", recordID),
		logger.String("txid", txid),
	}...)

	record, err := FetchRecord(ctx, dbConn, kind, recordID)
	if err != nil {
		return nil, err
	}
	if record.Status != StatusPending {
		return duplicate(ctx, dbConn, record, txid)
	}

	used, err := IsTransactionUsed(ctx, dbConn, txid)
	if err != nil {
		return nil, errors.Wrap(err, "check used")
	}
	if used {
		return nil, ErrReplayedTransaction
	}

	result, err := s.Verifier.VerifyPayment(ctx, txid, s.EscrowScript, record.Amount)
	if err != nil {
		return nil, errors.Wrap(err, "verify")
	}
	if !result.Verified {
		if result.Failure == payment.FailureNotFound {
			return nil, ErrTransactionNotFound
		}
		return nil, errors.Wrap(ErrVerificationFailed, result.Reason)
	}

	userID, err := ResolveOwner(ctx, dbConn, record.UserID, result.SenderAddress, now)
	if err != nil {
		return nil, errors.Wrap(err, "resolve owner")
	}

	commit, err := s.Ledger.CommitPayment(ctx, dbConn, kind, recordID, txid,
		result.ActualAmount, userID, now)
	if err != nil {
		if errors.Cause(err) == ErrAlreadyProcessed {
			// Lost a race with a concurrent settlement.
			record, ferr := FetchRecord(ctx, dbConn, kind, recordID)
			if ferr != nil {
				return nil, errors.Wrap(ferr, "fetch record")
			}
			return duplicate(ctx, dbConn, record, txid)
		}
		return nil, err
	}

	return &Settlement{
		Kind:     kind,
		RecordID: commit.RecordID,
		TxHash:   commit.TxHash,
		Amount:   commit.Amount,
		UserID:   commit.UserID,
		Fee:      commit.Fee,
	}, nil
}

// duplicate returns the existing settlement of a record confirmed by txid, or
// ErrAlreadyProcessed when it was confirmed by another transaction.
func duplicate(ctx context.Context, dbConn *db.DB, record *Record,
	txid string) (*Settlement, error) {

	if record.Status == StatusPending || !record.PaidWith(txid) {
		return nil, errors.Wrapf(ErrAlreadyProcessed, "status %s", record.Status)
	}

	settlement := &Settlement{
		Kind:      record.Kind,
		RecordID:  record.ID,
		TxHash:    txid,
		Amount:    record.PaidAmount,
		UserID:    record.UserID,
		Duplicate: true,
	}

	fee, err := FetchFee(ctx, dbConn, record.Kind, record.ID)
	if err == nil {
		settlement.Fee = fee.Amount
	} else if errors.Cause(err) != ErrRecordNotFound {
		return nil, errors.Wrap(err, "fetch fee")
	}

	logger.Info(ctx, "Payment already settled")
	return settlement, nil
}
