package assistant

import "errors"

var (
	// ErrAssistantUnavailable wraps any failure of the language model call.
	ErrAssistantUnavailable = errors.New("assistant unavailable")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrQuestionRequired     = errors.New("question is required")
)

// advisoryMessage is what callers see when the model call fails.
const advisoryMessage = "The assistant is temporarily unavailable. Your records are unaffected; please try again later or consult your healthcare provider."
