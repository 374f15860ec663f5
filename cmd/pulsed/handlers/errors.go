package handlers

import (
	"net/http"

	"github.com/ecashpulse/pulse/internal/chronik"
	"github.com/ecashpulse/pulse/internal/platform/web"
	"github.com/ecashpulse/pulse/internal/pulse"

	"github.com/pkg/errors"
)

// translate looks for certain error types and transforms them into web errors with a short
// message. The full error stays in the server log.
func translate(err error) error {
	switch cause := errors.Cause(err); cause {
	case pulse.ErrInvalidInput, pulse.ErrInvalidAddress:
		return web.NewRequestError(err, http.StatusBadRequest, cause.Error())

	case chronik.ErrInvalidTxID:
		return web.NewRequestError(err, http.StatusBadRequest, "Invalid transaction id")

	case pulse.ErrRecordNotFound, pulse.ErrUserNotFound, pulse.ErrPredictionNotFound,
		pulse.ErrOutcomeNotFound, pulse.ErrRaffleNotFound, pulse.ErrTransactionNotFound:
		return web.NewRequestError(err, http.StatusNotFound, cause.Error())

	case pulse.ErrVerificationFailed, pulse.ErrAmountBelowTolerance:
		return web.NewRequestError(err, http.StatusBadRequest, "Transaction verification failed")

	case pulse.ErrReplayedTransaction, pulse.ErrTransactionUsed:
		return web.NewRequestError(err, http.StatusBadRequest, "Transaction already used")

	case pulse.ErrAlreadyProcessed:
		return web.NewRequestError(err, http.StatusBadRequest, "Transaction already processed")

	case pulse.ErrNotActive:
		return web.NewRequestError(err, http.StatusBadRequest, "Not accepting payments")

	case pulse.ErrInvalidSession:
		return errors.Wrap(web.ErrUnauthorized, err.Error())

	case chronik.ErrNetwork:
		return web.NewRequestError(err, http.StatusServiceUnavailable,
			"Blockchain indexer unavailable")
	}

	return err
}
