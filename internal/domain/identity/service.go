package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mediledger/mediledger/internal/platform/auth"
	"github.com/mediledger/mediledger/internal/platform/db"
)

type Service struct {
	users    UserRepository
	doctors  DoctorRepository
	patients PatientRepository
	tx       db.TxBeginner
}

// NewService wires the identity repositories. tx may be nil, in which case
// multi-row writes run without a surrounding transaction.
func NewService(users UserRepository, doctors DoctorRepository, patients PatientRepository, tx db.TxBeginner) *Service {
	return &Service{users: users, doctors: doctors, patients: patients, tx: tx}
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return db.RunInTx(ctx, s.tx, fn)
}

// Register creates the user for subject and, when a role is supplied, the
// matching profile in the same transaction.
func (s *Service) Register(ctx context.Context, subject string, in RegisterInput) (*Profile, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, ErrMissingSubject
	}
	if in.Role != "" && !in.Role.Valid() {
		return nil, ErrInvalidRole
	}
	if err := checkProfileFields(in.Role, in.Doctor, in.Patient); err != nil {
		return nil, err
	}

	if _, err := s.users.GetBySubject(ctx, subject); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup subject: %w", err)
	}

	u := &User{
		Subject: subject,
		Email:   in.Email,
		Name:    in.Name,
		Avatar:  in.Avatar,
		Role:    in.Role,
	}
	profile := &Profile{User: u}
	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		return s.createProfile(ctx, profile, in.Doctor, in.Patient)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// AssignRole sets the role of a principal that registered without one. A
// role can be assigned exactly once.
func (s *Service) AssignRole(ctx context.Context, p *auth.Principal, in AssignRoleInput) (*Profile, error) {
	p, err := auth.RequireAuth(p)
	if err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, ErrInvalidRole
	}
	if p.Role != "" {
		return nil, ErrRoleAlreadyAssigned
	}
	if err := checkProfileFields(in.Role, in.Doctor, in.Patient); err != nil {
		return nil, err
	}

	var profile *Profile
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.users.SetRole(ctx, p.UserID, in.Role); err != nil {
			return err
		}
		u, err := s.users.GetByID(ctx, p.UserID)
		if err != nil {
			return err
		}
		profile = &Profile{User: u}
		return s.createProfile(ctx, profile, in.Doctor, in.Patient)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Service) createProfile(ctx context.Context, profile *Profile, df *DoctorFields, pf *PatientFields) error {
	u := profile.User
	switch u.Role {
	case auth.RoleDoctor:
		d := &Doctor{UserID: u.ID, Name: u.Name, Email: u.Email}
		df.applyTo(d)
		if err := s.doctors.Create(ctx, d); err != nil {
			return fmt.Errorf("create doctor profile: %w", err)
		}
		profile.Doctor = d
	case auth.RolePatient:
		pt := &Patient{UserID: u.ID, Name: u.Name, Email: u.Email}
		if err := pf.applyTo(pt); err != nil {
			return err
		}
		if err := s.patients.Create(ctx, pt); err != nil {
			return fmt.Errorf("create patient profile: %w", err)
		}
		profile.Patient = pt
	}
	return nil
}

func checkProfileFields(role auth.Role, df *DoctorFields, pf *PatientFields) error {
	if df != nil && role != auth.RoleDoctor {
		return ErrProfileMismatch
	}
	if pf != nil && role != auth.RolePatient {
		return ErrProfileMismatch
	}
	return nil
}

// Me returns the caller's user row and role profile.
func (s *Service) Me(ctx context.Context, p *auth.Principal) (*Profile, error) {
	p, err := auth.RequireAuth(p)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return s.loadProfile(ctx, u)
}

func (s *Service) loadProfile(ctx context.Context, u *User) (*Profile, error) {
	profile := &Profile{User: u}
	switch u.Role {
	case auth.RoleDoctor:
		d, err := s.doctors.GetByUserID(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("load doctor profile: %w", err)
		}
		profile.Doctor = d
	case auth.RolePatient:
		pt, err := s.patients.GetByUserID(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("load patient profile: %w", err)
		}
		profile.Patient = pt
	}
	return profile, nil
}

// UpdateProfile applies only the fields present in patch.
func (s *Service) UpdateProfile(ctx context.Context, p *auth.Principal, patch ProfilePatch) (*Profile, error) {
	p, err := auth.RequireAuth(p)
	if err != nil {
		return nil, err
	}
	if err := checkProfileFields(p.Role, patch.Doctor, patch.Patient); err != nil {
		return nil, err
	}

	var profile *Profile
	err = s.inTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, p.UserID)
		if err != nil {
			return err
		}
		if patch.Name != nil || patch.Avatar != nil {
			if patch.Name != nil {
				u.Name = *patch.Name
			}
			if patch.Avatar != nil {
				u.Avatar = nilIfEmpty(*patch.Avatar)
			}
			if err := s.users.Update(ctx, u); err != nil {
				return fmt.Errorf("update user: %w", err)
			}
		}

		profile, err = s.loadProfile(ctx, u)
		if err != nil {
			return err
		}
		if patch.Doctor != nil && profile.Doctor != nil {
			patch.Doctor.applyTo(profile.Doctor)
			if err := s.doctors.Update(ctx, profile.Doctor); err != nil {
				return fmt.Errorf("update doctor profile: %w", err)
			}
		}
		if patch.Patient != nil && profile.Patient != nil {
			if err := patch.Patient.applyTo(profile.Patient); err != nil {
				return err
			}
			if err := s.patients.Update(ctx, profile.Patient); err != nil {
				return fmt.Errorf("update patient profile: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// ListDoctors is open to any registered principal.
func (s *Service) ListDoctors(ctx context.Context, p *auth.Principal, limit, offset int) ([]*Doctor, int, error) {
	if _, err := auth.RequireAuth(p); err != nil {
		return nil, 0, err
	}
	return s.doctors.List(ctx, limit, offset)
}

// ListPatients is the directory doctors pick from when requesting access.
func (s *Service) ListPatients(ctx context.Context, p *auth.Principal, limit, offset int) ([]*Patient, int, error) {
	if _, err := auth.RequireRole(p, auth.RoleDoctor); err != nil {
		return nil, 0, err
	}
	return s.patients.List(ctx, limit, offset)
}

// GetPatient looks a patient profile up by id. Authorization is the
// caller's concern.
func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// PatientExists reports whether a patient profile with id exists.
func (s *Service) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.patients.GetByID(ctx, id)
	if errors.Is(err, ErrPatientNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ResolvePrincipal implements auth.PrincipalResolver. An unknown subject
// resolves to nil without error.
func (s *Service) ResolvePrincipal(ctx context.Context, subject string) (*auth.Principal, error) {
	u, err := s.users.GetBySubject(ctx, subject)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve subject: %w", err)
	}

	p := &auth.Principal{
		UserID:  u.ID,
		Subject: u.Subject,
		Email:   u.Email,
		Role:    u.Role,
	}
	switch u.Role {
	case auth.RoleDoctor:
		d, err := s.doctors.GetByUserID(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve doctor profile: %w", err)
		}
		p.ProfileID = d.ID
	case auth.RolePatient:
		pt, err := s.patients.GetByUserID(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve patient profile: %w", err)
		}
		p.ProfileID = pt.ID
	}
	return p, nil
}
