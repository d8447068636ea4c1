package rpc

import (
	"errors"
	"net/http"

	"yieldgate/native/auction"
	nativecommon "yieldgate/native/common"
	"yieldgate/native/factory"
	"yieldgate/native/loan"
	"yieldgate/native/rights"
	"yieldgate/storage"
)

// statusForError maps the engines' typed failures onto HTTP status codes so
// clients can tell a correctable validation error from an authorization or
// timing failure.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, auction.ErrNotFound),
		errors.Is(err, loan.ErrNotFound),
		errors.Is(err, rights.ErrNotMinted):
		return http.StatusNotFound
	case errors.Is(err, auction.ErrNotFactory),
		errors.Is(err, loan.ErrNotFactory),
		errors.Is(err, loan.ErrNotBorrower),
		errors.Is(err, loan.ErrNotLender),
		errors.Is(err, rights.ErrNotHolder):
		return http.StatusForbidden
	case errors.Is(err, auction.ErrAlreadyFinalized),
		errors.Is(err, auction.ErrNotYetOver),
		errors.Is(err, loan.ErrLoanExists),
		errors.Is(err, loan.ErrCollateralReleased),
		errors.Is(err, rights.ErrAlreadyMinted),
		errors.Is(err, storage.ErrAlreadyCustodied),
		errors.Is(err, storage.ErrNotCustodied):
		return http.StatusConflict
	case errors.Is(err, auction.ErrAuctionClosed),
		errors.Is(err, auction.ErrRateTooHigh),
		errors.Is(err, auction.ErrRateNotImproved),
		errors.Is(err, auction.ErrWrongPayment),
		errors.Is(err, auction.ErrInsufficientBalance),
		errors.Is(err, loan.ErrInvalidAmount),
		errors.Is(err, loan.ErrNoOutstandingDebt),
		errors.Is(err, loan.ErrOverWithdrawal),
		errors.Is(err, loan.ErrDebtRemaining),
		errors.Is(err, loan.ErrInsufficientBalance),
		errors.Is(err, rights.ErrZeroAddress),
		errors.Is(err, rights.ErrInvalidKind),
		errors.Is(err, factory.ErrZeroCreator),
		errors.Is(err, factory.ErrInvalidPrincipal),
		errors.Is(err, factory.ErrInvalidMaxRate):
		return http.StatusBadRequest
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
