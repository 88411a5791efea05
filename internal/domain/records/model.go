package records

import (
	"time"

	"github.com/google/uuid"
)

// Record maps to the medical_record table. DoctorID is nil for records a
// patient wrote about themselves.
type Record struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID    *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	Title       string     `db:"title" json:"title"`
	Content     string     `db:"content" json:"content"`
	Diagnosis   *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	Treatment   *string    `db:"treatment" json:"treatment,omitempty"`
	Medications *string    `db:"medications" json:"medications,omitempty"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`

	DoctorName *string `db:"-" json:"doctor_name,omitempty"`
}

func (r *Record) OwningPatient() uuid.UUID { return r.PatientID }

// CreateInput is the payload for a new record. PatientID may be omitted by
// a patient writing their own record.
type CreateInput struct {
	PatientID   *uuid.UUID `json:"patient_id"`
	Title       string     `json:"title" validate:"required,max=300"`
	Content     string     `json:"content" validate:"max=20000"`
	Diagnosis   *string    `json:"diagnosis" validate:"omitempty,max=5000"`
	Treatment   *string    `json:"treatment" validate:"omitempty,max=5000"`
	Medications *string    `json:"medications" validate:"omitempty,max=5000"`
	Notes       *string    `json:"notes" validate:"omitempty,max=20000"`
}

// Patch is a partial update. A nil field is left as is; a pointer to ""
// clears the optional fields.
type Patch struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=300"`
	Content     *string `json:"content" validate:"omitempty,max=20000"`
	Diagnosis   *string `json:"diagnosis" validate:"omitempty,max=5000"`
	Treatment   *string `json:"treatment" validate:"omitempty,max=5000"`
	Medications *string `json:"medications" validate:"omitempty,max=5000"`
	Notes       *string `json:"notes" validate:"omitempty,max=20000"`
}

// Empty reports whether the patch carries no fields.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Diagnosis == nil &&
		p.Treatment == nil && p.Medications == nil && p.Notes == nil
}

// Fields lists the names of the supplied fields.
func (p Patch) Fields() []string {
	var out []string
	for _, f := range []struct {
		name string
		v    *string
	}{
		{"title", p.Title},
		{"content", p.Content},
		{"diagnosis", p.Diagnosis},
		{"treatment", p.Treatment},
		{"medications", p.Medications},
		{"notes", p.Notes},
	} {
		if f.v != nil {
			out = append(out, f.name)
		}
	}
	return out
}

// ApplyTo copies the supplied fields onto r.
func (p Patch) ApplyTo(r *Record) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Content != nil {
		r.Content = *p.Content
	}
	if p.Diagnosis != nil {
		r.Diagnosis = nilIfEmpty(*p.Diagnosis)
	}
	if p.Treatment != nil {
		r.Treatment = nilIfEmpty(*p.Treatment)
	}
	if p.Medications != nil {
		r.Medications = nilIfEmpty(*p.Medications)
	}
	if p.Notes != nil {
		r.Notes = nilIfEmpty(*p.Notes)
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
