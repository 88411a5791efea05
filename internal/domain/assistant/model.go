package assistant

import "time"

// Analysis is the advisory summary of a patient's records. It is never
// used for access decisions.
type Analysis struct {
	Summary        string   `json:"summary"`
	Recommendation string   `json:"recommendation"`
	NextSteps      []string `json:"next_steps"`
	RecordsCount   int      `json:"records_count"`
	LastRecordDate string   `json:"last_record_date,omitempty"`
}

type Answer struct {
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

type QuestionInput struct {
	Question string `json:"question" validate:"required,max=2000"`
}
