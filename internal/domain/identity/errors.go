package identity

import "errors"

var (
	ErrNotFound            = errors.New("user not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAlreadyRegistered   = errors.New("subject is already registered")
	ErrRoleAlreadyAssigned = errors.New("role has already been assigned")
	ErrProfileMismatch     = errors.New("profile fields do not match the user's role")
	ErrInvalidRole         = errors.New("role must be DOCTOR or PATIENT")
	ErrInvalidDate         = errors.New("date_of_birth must be YYYY-MM-DD")
	ErrMissingSubject      = errors.New("authenticated subject is required")
)
