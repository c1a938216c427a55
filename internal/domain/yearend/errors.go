package yearend

import (
	"errors"

	"yearend/internal/domain/taxcalc"
)

var (
	ErrFiscalYearRequired = errors.New("fiscal year is required")
	ErrTenantRequired     = errors.New("tenant is required")
	ErrUserIDsInvalid     = errors.New("user id list holds no usable ids")
	ErrNoEarningsData     = errors.New("no earnings data")
	ErrResultFinalized    = errors.New("result already finalized")
	ErrResultNotFound     = errors.New("year-end result not found")
	ErrInvalidTransition  = errors.New("invalid result status transition")
	ErrUnknownAction      = errors.New("unknown result action")
	ErrSlipNotStored      = errors.New("withholding slip not stored")
	ErrInvalidDeclaration = taxcalc.ErrInvalidDeclaration
)
