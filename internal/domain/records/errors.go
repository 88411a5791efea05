package records

import "errors"

var (
	ErrNotFound        = errors.New("record not found")
	ErrPatientRequired = errors.New("patient_id is required")
	ErrTitleRequired   = errors.New("title is required")
)
