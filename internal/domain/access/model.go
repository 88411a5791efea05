package access

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an access request.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDenied   Status = "DENIED"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusDenied:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Resolved reports whether s is a status a patient may set.
func (s Status) Resolved() bool {
	return s == StatusApproved || s == StatusDenied
}

// AccessRequest maps to the access_request table. Once APPROVED it is the
// grant that lets DoctorID read PatientID's records.
type AccessRequest struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	DoctorID    uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Status      Status     `db:"status" json:"status"`
	Reason      string     `db:"reason" json:"reason"`
	Message     *string    `db:"message" json:"message,omitempty"`
	RequestedAt time.Time  `db:"requested_at" json:"requested_at"`
	RespondedAt *time.Time `db:"responded_at" json:"responded_at,omitempty"`

	DoctorName  string `db:"-" json:"doctor_name,omitempty"`
	PatientName string `db:"-" json:"patient_name,omitempty"`
}

// LinkedPatient is a patient the doctor currently holds an approved grant
// for.
type LinkedPatient struct {
	PatientID   uuid.UUID  `json:"patient_id"`
	UserID      uuid.UUID  `json:"user_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	BloodType   *string    `json:"blood_type,omitempty"`
	GrantedAt   *time.Time `json:"granted_at,omitempty"`
}

type CreateInput struct {
	PatientID uuid.UUID `json:"patient_id" validate:"required"`
	Reason    string    `json:"reason" validate:"required,max=2000"`
	Message   *string   `json:"message" validate:"omitempty,max=2000"`
}

type ResolveInput struct {
	Status Status `json:"status" validate:"required"`
}

// PatientOwned is implemented by anything that belongs to exactly one
// patient, such as a medical record.
type PatientOwned interface {
	OwningPatient() uuid.UUID
}
