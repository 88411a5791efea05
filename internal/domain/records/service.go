package records

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mediledger/mediledger/internal/domain/access"
	"github.com/mediledger/mediledger/internal/platform/auth"
	"github.com/mediledger/mediledger/internal/platform/events"
	"github.com/mediledger/mediledger/internal/platform/metrics"
)

// Authorizer is the subset of access.Guard the record store needs.
type Authorizer interface {
	CanReadPatient(ctx context.Context, p *auth.Principal, patientID uuid.UUID) error
	CanWriteRecord(ctx context.Context, p *auth.Principal, rec access.PatientOwned) error
	CanCreateRecord(ctx context.Context, p *auth.Principal, patientID uuid.UUID) error
}

// Service runs every record operation through the authorizer before it
// touches the repository.
type Service struct {
	repo    Repository
	guard   Authorizer
	events  *events.Emitter
	metrics *metrics.Collector
}

func NewService(repo Repository, guard Authorizer, emitter *events.Emitter, m *metrics.Collector) *Service {
	return &Service{repo: repo, guard: guard, events: emitter, metrics: m}
}

// Create stores a new record. A doctor must name the patient; a patient
// may omit it to write about themselves, leaving DoctorID empty.
func (s *Service) Create(ctx context.Context, p *auth.Principal, in CreateInput) (*Record, error) {
	p, err := auth.RequireAuth(p)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	var patientID uuid.UUID
	switch {
	case in.PatientID != nil:
		patientID = *in.PatientID
	case p.IsPatient():
		patientID = p.ProfileID
	default:
		return nil, ErrPatientRequired
	}
	if err := s.guard.CanCreateRecord(ctx, p, patientID); err != nil {
		return nil, err
	}

	rec := &Record{
		PatientID:   patientID,
		Title:       title,
		Content:     in.Content,
		Diagnosis:   emptyToNil(in.Diagnosis),
		Treatment:   emptyToNil(in.Treatment),
		Medications: emptyToNil(in.Medications),
		Notes:       emptyToNil(in.Notes),
	}
	if p.IsDoctor() {
		doctorID := p.ProfileID
		rec.DoctorID = &doctorID
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.metrics.RecordMutation("create")
	s.emit(ctx, events.RecordCreated, p, rec, nil)
	return rec, nil
}

// Get loads one record. A missing id is reported before authorization.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Record, error) {
	p, err := auth.RequireAuth(p)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanReadPatient(ctx, p, rec.PatientID); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListForPatient returns patientID's records, newest first. A denied
// caller gets an error and no rows.
func (s *Service) ListForPatient(ctx context.Context, p *auth.Principal, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	if err := s.guard.CanReadPatient(ctx, p, patientID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// ListMine returns the calling patient's own records.
func (s *Service) ListMine(ctx context.Context, p *auth.Principal, limit, offset int) ([]*Record, int, error) {
	p, err := auth.RequireRole(p, auth.RolePatient)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, p.ProfileID, limit, offset)
}

// Update applies patch to the record. Only supplied fields change.
func (s *Service) Update(ctx context.Context, p *auth.Principal, id uuid.UUID, patch Patch) (*Record, error) {
	p, err := auth.RequireAuth(p)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanWriteRecord(ctx, p, rec); err != nil {
		return nil, err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, ErrTitleRequired
	}
	if patch.Empty() {
		return rec, nil
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordMutation("update")
	s.emit(ctx, events.RecordUpdated, p, updated, map[string]string{
		"fields": strings.Join(patch.Fields(), ","),
	})
	return updated, nil
}

// Delete removes the record permanently. Deleting an unknown id is
// ErrNotFound.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	p, err := auth.RequireAuth(p)
	if err != nil {
		return err
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guard.CanWriteRecord(ctx, p, rec); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.RecordMutation("delete")
	s.emit(ctx, events.RecordDeleted, p, rec, nil)
	return nil
}

func (s *Service) emit(ctx context.Context, t events.Type, p *auth.Principal, rec *Record, attrs map[string]string) {
	evt := events.New(t, p.UserID, rec.ID, rec.PatientID)
	evt.DoctorID = rec.DoctorID
	evt.Attributes = attrs
	s.events.Emit(ctx, evt)
}

func emptyToNil(s *string) *string {
	if s == nil {
		return nil
	}
	return nilIfEmpty(*s)
}
