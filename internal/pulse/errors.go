package pulse

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidInput is a malformed id, txid, amount, or position.
	ErrInvalidInput = errors.New("Invalid input")

	// ErrInvalidAddress is an address that doesn't decode.
	ErrInvalidAddress = errors.New("Invalid address")

	ErrRecordNotFound      = errors.New("Record not found")
	ErrUserNotFound        = errors.New("User not found")
	ErrPredictionNotFound  = errors.New("Prediction not found")
	ErrOutcomeNotFound     = errors.New("Outcome not found")
	ErrRaffleNotFound      = errors.New("Raffle not found")
	ErrTransactionNotFound = errors.New("Transaction not found")

	// ErrNotActive is returned when betting on a closed prediction or entering a closed raffle.
	ErrNotActive = errors.New("Not active")

	// ErrAlreadyProcessed is returned when a record is no longer pending.
	ErrAlreadyProcessed = errors.New("Already processed")

	// ErrReplayedTransaction is returned when a tx_hash is already attached to a record.
	ErrReplayedTransaction = errors.New("Transaction already used")

	// ErrAmountBelowTolerance is returned when the verified amount is below the tolerance.
	ErrAmountBelowTolerance = errors.New("Amount below tolerance")

	// ErrVerificationFailed is returned when the chain doesn't show the expected payment.
	ErrVerificationFailed = errors.New("Transaction verification failed")

	ErrInvalidSession = errors.New("Invalid session")

	// ErrTransactionUsed is returned when an authentication transaction is reused.
	ErrTransactionUsed = errors.New("Authentication transaction already used")
)
