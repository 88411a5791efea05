package access

import "errors"

var (
	ErrNotFound        = errors.New("access request not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrInvalidStatus   = errors.New("status must be APPROVED or DENIED")
	ErrReasonRequired  = errors.New("reason is required")
)
