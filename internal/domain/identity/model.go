package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediledger/mediledger/internal/platform/auth"
)

// User maps to the app_user table. Role is empty until assigned.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Subject   string    `db:"subject" json:"-"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Avatar    *string   `db:"avatar" json:"avatar,omitempty"`
	Role      auth.Role `db:"role" json:"role,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Doctor maps to the doctor table.
type Doctor struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	Specialization *string   `db:"specialization" json:"specialization,omitempty"`
	LicenseNumber  *string   `db:"license_number" json:"license_number,omitempty"`
	Phone          *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`

	// Populated on directory listings.
	Name  string `db:"-" json:"name,omitempty"`
	Email string `db:"-" json:"email,omitempty"`
}

// Patient maps to the patient table.
type Patient struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	UserID           uuid.UUID  `db:"user_id" json:"user_id"`
	DateOfBirth      *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Phone            *string    `db:"phone" json:"phone,omitempty"`
	BloodType        *string    `db:"blood_type" json:"blood_type,omitempty"`
	Allergies        *string    `db:"allergies" json:"allergies,omitempty"`
	EmergencyContact *string    `db:"emergency_contact" json:"emergency_contact,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`

	Name  string `db:"-" json:"name,omitempty"`
	Email string `db:"-" json:"email,omitempty"`
}

// Profile is the caller's own view: the user plus whichever role profile
// exists.
type Profile struct {
	User    *User    `json:"user"`
	Doctor  *Doctor  `json:"doctor,omitempty"`
	Patient *Patient `json:"patient,omitempty"`
}

// DoctorFields carries optional doctor profile attributes.
type DoctorFields struct {
	Specialization *string `json:"specialization" validate:"omitempty,max=200"`
	LicenseNumber  *string `json:"license_number" validate:"omitempty,max=100"`
	Phone          *string `json:"phone" validate:"omitempty,max=50"`
}

// PatientFields carries optional patient profile attributes. DateOfBirth
// is a YYYY-MM-DD string; an empty string clears it.
type PatientFields struct {
	DateOfBirth      *string `json:"date_of_birth" validate:"omitempty,max=10"`
	Phone            *string `json:"phone" validate:"omitempty,max=50"`
	BloodType        *string `json:"blood_type" validate:"omitempty,max=10"`
	Allergies        *string `json:"allergies" validate:"omitempty,max=2000"`
	EmergencyContact *string `json:"emergency_contact" validate:"omitempty,max=500"`
}

// RegisterInput creates a user for the calling subject. Role is optional
// and may be assigned later exactly once.
type RegisterInput struct {
	Email   string         `json:"email" validate:"required,email"`
	Name    string         `json:"name" validate:"required,max=200"`
	Avatar  *string        `json:"avatar" validate:"omitempty,url"`
	Role    auth.Role      `json:"role" validate:"omitempty,role"`
	Doctor  *DoctorFields  `json:"doctor"`
	Patient *PatientFields `json:"patient"`
}

// AssignRoleInput sets the role of a user that registered without one.
type AssignRoleInput struct {
	Role    auth.Role      `json:"role" validate:"required,role"`
	Doctor  *DoctorFields  `json:"doctor"`
	Patient *PatientFields `json:"patient"`
}

// ProfilePatch is a partial update. Nil fields are left untouched and an
// empty Avatar clears it.
type ProfilePatch struct {
	Name    *string        `json:"name" validate:"omitempty,min=1,max=200"`
	Avatar  *string        `json:"avatar" validate:"omitempty,max=2000"`
	Doctor  *DoctorFields  `json:"doctor"`
	Patient *PatientFields `json:"patient"`
}

const dateLayout = "2006-01-02"

func (f *DoctorFields) applyTo(d *Doctor) {
	if f == nil {
		return
	}
	if f.Specialization != nil {
		d.Specialization = nilIfEmpty(*f.Specialization)
	}
	if f.LicenseNumber != nil {
		d.LicenseNumber = nilIfEmpty(*f.LicenseNumber)
	}
	if f.Phone != nil {
		d.Phone = nilIfEmpty(*f.Phone)
	}
}

func (f *PatientFields) applyTo(p *Patient) error {
	if f == nil {
		return nil
	}
	if f.DateOfBirth != nil {
		if *f.DateOfBirth == "" {
			p.DateOfBirth = nil
		} else {
			dob, err := time.Parse(dateLayout, *f.DateOfBirth)
			if err != nil {
				return ErrInvalidDate
			}
			p.DateOfBirth = &dob
		}
	}
	if f.Phone != nil {
		p.Phone = nilIfEmpty(*f.Phone)
	}
	if f.BloodType != nil {
		p.BloodType = nilIfEmpty(*f.BloodType)
	}
	if f.Allergies != nil {
		p.Allergies = nilIfEmpty(*f.Allergies)
	}
	if f.EmergencyContact != nil {
		p.EmergencyContact = nilIfEmpty(*f.EmergencyContact)
	}
	return nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
