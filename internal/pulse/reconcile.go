package pulse

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ecashpulse/pulse/internal/cashaddr"
	"github.com/ecashpulse/pulse/internal/chronik"
	"github.com/ecashpulse/pulse/internal/platform/db"

	"github.com/pkg/errors"
	"github.com/tokenized/logger"
	"go.opencensus.io/trace"
)

// Reconciler finds payments to escrow that were never recorded.
type Reconciler struct {
	History  chronik.HistoryFetcher
	Escrow   cashaddr.Address
	PageSize int
	MaxPages int // zero scans the full history
}

// UnrecordedPayment is a transaction paying escrow that no record or session claims.
type UnrecordedPayment struct {
	TxID          string    `json:"txid"`
	Amount        int64     `json:"amount"`
	SenderAddress string    `json:"sender_address,omitempty"`
	Time          time.Time `json:"time,omitempty"`
	Confirmed     bool      `json:"confirmed"`
}

// ReconcileReport is the result of a reconciliation run.
type ReconcileReport struct {
	Escrow      string              `json:"escrow"`
	Scanned     int                 `json:"scanned"`
	Payments    int                 `json:"payments"`
	Unrecorded  []UnrecordedPayment `json:"unrecorded"`
	DateCreated time.Time           `json:"date_created"`
}

// ReportKey returns the storage key of a report created at t.
func ReportKey(t time.Time) string {
	return fmt.Sprintf("reconcile/%s.json", t.UTC().Format("20060102T150405Z"))
}

// Reconcile scans the escrow history and reports payments missing from the ledger. It doesn't
// change any records. The report is written to storage when dbConn has storage.
func (r *Reconciler) Reconcile(ctx context.Context, dbConn *db.DB,
	now time.Time) (*ReconcileReport, error) {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.Reconciler.Reconcile")
	defer span.End()

	script, err := r.Escrow.LockingScript()
	if err != nil {
		return nil, errors.Wrap(err, "escrow script")
	}
	scriptHex := hex.EncodeToString(script)

	scriptType := "p2pkh"
	if r.Escrow.Type == cashaddr.P2SH {
		scriptType = "p2sh"
	}
	hash := hex.EncodeToString(r.Escrow.Hash[:])

	pageSize := r.PageSize
	if pageSize <= 0 {
		pageSize = chronik.DefaultPageSize
	}

	report := &ReconcileReport{
		Escrow:      r.Escrow.String(),
		Unrecorded:  []UnrecordedPayment{},
		DateCreated: now.UTC(),
	}

	for page := 0; r.MaxPages == 0 || page < r.MaxPages; page++ {
		history, err := r.History.ScriptHistory(ctx, scriptType, hash, page, pageSize)
		if err != nil {
			return nil, errors.Wrapf(err, "history page %d", page)
		}

		var payments []UnrecordedPayment
		var txids []string
		for _, tx := range history.Txs {
			report.Scanned++

			payment, ok := escrowPayment(tx, scriptHex, r.Escrow.Prefix)
			if !ok {
				continue
			}
			report.Payments++

			payments = append(payments, payment)
			txids = append(txids, payment.TxID)
		}

		used, err := UsedTransactions(ctx, dbConn, txids)
		if err != nil {
			return nil, errors.Wrap(err, "check used")
		}

		for _, payment := range payments {
			if used[payment.TxID] {
				continue
			}

			logger.WarnWithFields(ctx, []logger.Field{
				logger.String("txid", payment.TxID),
				logger.Int("amount", int(payment.Amount)),
				logger.String("sender", payment.SenderAddress),
			}, "Unrecorded escrow payment")

			report.Unrecorded = append(report.Unrecorded, payment)
		}

		if page+1 >= history.NumPages || len(history.Txs) == 0 {
			break
		}
	}

	logger.InfoWithFields(ctx, []logger.Field{
		logger.Int("scanned", report.Scanned),
		logger.Int("payments", report.Payments),
		logger.Int("unrecorded", len(report.Unrecorded)),
	}, "Reconciled escrow history")

	if dbConn.GetStorage() != nil {
		b, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "marshal report")
		}
		if err := dbConn.Put(ctx, ReportKey(now), b); err != nil {
			return nil, errors.Wrap(err, "put report")
		}
	}

	return report, nil
}

// escrowPayment returns the amount tx pays to the escrow script. Transactions spent from escrow
// are not payments.
func escrowPayment(tx *chronik.Transaction, scriptHex, prefix string) (UnrecordedPayment, bool) {
	result := UnrecordedPayment{
		TxID:      tx.TxID,
		Confirmed: tx.IsConfirmed(),
	}

	if len(tx.Inputs) > 0 {
		if tx.Inputs[0].OutputScript == scriptHex {
			return result, false
		}
		if sender, ok := cashaddr.ScriptHexToAddress(prefix, tx.Inputs[0].OutputScript); ok {
			result.SenderAddress = sender.String()
		}
	}

	for _, output := range tx.Outputs {
		if output.OutputScript == scriptHex {
			result.Amount += output.Value
		}
	}

	if t, ok := tx.Time(); ok {
		result.Time = t
	}

	return result, result.Amount > 0
}
