package access

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mediledger/mediledger/internal/platform/auth"
	"github.com/mediledger/mediledger/internal/platform/events"
	"github.com/mediledger/mediledger/internal/platform/metrics"
)

// PatientDirectory answers whether a patient profile exists.
type PatientDirectory interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Service struct {
	repo     Repository
	patients PatientDirectory
	events   *events.Emitter
	metrics  *metrics.Collector
	now      func() time.Time
}

func NewService(repo Repository, patients PatientDirectory, emitter *events.Emitter, m *metrics.Collector) *Service {
	return &Service{repo: repo, patients: patients, events: emitter, metrics: m, now: time.Now}
}

// CreateAccessRequest opens a PENDING request from the calling doctor.
// Several requests for the same pair may coexist.
func (s *Service) CreateAccessRequest(ctx context.Context, p *auth.Principal, in CreateInput) (*AccessRequest, error) {
	p, err := auth.RequireRole(p, auth.RoleDoctor)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	ok, err := s.patients.PatientExists(ctx, in.PatientID)
	if err != nil {
		return nil, fmt.Errorf("lookup patient: %w", err)
	}
	if !ok {
		return nil, ErrPatientNotFound
	}

	ar := &AccessRequest{
		DoctorID:  p.ProfileID,
		PatientID: in.PatientID,
		Status:    StatusPending,
		Reason:    reason,
		Message:   in.Message,
	}
	if err := s.repo.Create(ctx, ar); err != nil {
		return nil, err
	}
	s.metrics.AccessRequest(string(StatusPending))

	evt := events.New(events.AccessRequestCreated, p.UserID, ar.ID, ar.PatientID)
	evt.DoctorID = &ar.DoctorID
	evt.Attributes = map[string]string{"status": string(ar.Status)}
	s.events.Emit(ctx, evt)
	return ar, nil
}

// ListForDoctor returns the calling doctor's own requests.
func (s *Service) ListForDoctor(ctx context.Context, p *auth.Principal, limit, offset int) ([]*AccessRequest, int, error) {
	p, err := auth.RequireRole(p, auth.RoleDoctor)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.ListByDoctor(ctx, p.ProfileID, limit, offset)
}

// ListPendingForPatient returns PENDING requests addressed to the caller.
func (s *Service) ListPendingForPatient(ctx context.Context, p *auth.Principal, limit, offset int) ([]*AccessRequest, int, error) {
	p, err := auth.RequireRole(p, auth.RolePatient)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, p.ProfileID, StatusPending, limit, offset)
}

// ListForPatient returns every request addressed to the caller.
func (s *Service) ListForPatient(ctx context.Context, p *auth.Principal, limit, offset int) ([]*AccessRequest, int, error) {
	p, err := auth.RequireRole(p, auth.RolePatient)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, p.ProfileID, "", limit, offset)
}

// Resolve sets the status of a request addressed to the calling patient.
// A request that was already resolved is overwritten.
func (s *Service) Resolve(ctx context.Context, p *auth.Principal, id uuid.UUID, status Status) (*AccessRequest, error) {
	p, err := auth.RequireRole(p, auth.RolePatient)
	if err != nil {
		return nil, err
	}
	ar, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ar.PatientID != p.ProfileID {
		return nil, fmt.Errorf("%w: request belongs to another patient", auth.ErrForbidden)
	}
	if !status.Resolved() {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidStatus, status)
	}

	previous := ar.Status
	now := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, ar.ID, status, now); err != nil {
		return nil, err
	}
	ar.Status = status
	ar.RespondedAt = &now
	s.metrics.AccessRequest(string(status))

	evt := events.New(events.AccessRequestResolved, p.UserID, ar.ID, ar.PatientID)
	evt.DoctorID = &ar.DoctorID
	evt.Attributes = map[string]string{
		"status":          string(status),
		"previous_status": string(previous),
	}
	s.events.Emit(ctx, evt)
	return ar, nil
}

// MyPatients lists the patients the calling doctor currently holds an
// approved grant for.
func (s *Service) MyPatients(ctx context.Context, p *auth.Principal, limit, offset int) ([]*LinkedPatient, int, error) {
	p, err := auth.RequireRole(p, auth.RoleDoctor)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.ListLinkedPatients(ctx, p.ProfileID, limit, offset)
}

// HasApprovedGrant queries the ledger directly on every call.
func (s *Service) HasApprovedGrant(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	return s.repo.HasApproved(ctx, doctorID, patientID)
}
