package access

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mediledger/mediledger/internal/platform/auth"
	"github.com/mediledger/mediledger/internal/platform/events"
)

// -- Mock Repository --

type mockRepo struct {
	requests map[uuid.UUID]*AccessRequest
	seq      time.Time
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		requests: make(map[uuid.UUID]*AccessRequest),
		seq:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *mockRepo) Create(_ context.Context, ar *AccessRequest) error {
	ar.ID = uuid.New()
	m.seq = m.seq.Add(time.Minute)
	ar.RequestedAt = m.seq
	cp := *ar
	m.requests[ar.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*AccessRequest, error) {
	ar, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ar
	return &cp, nil
}

func (m *mockRepo) filter(keep func(*AccessRequest) bool) ([]*AccessRequest, int, error) {
	var result []*AccessRequest
	for _, ar := range m.requests {
		if keep(ar) {
			cp := *ar
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RequestedAt.After(result[j].RequestedAt) })
	return result, len(result), nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*AccessRequest, int, error) {
	return m.filter(func(ar *AccessRequest) bool { return ar.DoctorID == doctorID })
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*AccessRequest, int, error) {
	return m.filter(func(ar *AccessRequest) bool {
		return ar.PatientID == patientID && (status == "" || ar.Status == status)
	})
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status, respondedAt time.Time) error {
	ar, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	ar.Status = status
	ar.RespondedAt = &respondedAt
	return nil
}

func (m *mockRepo) HasApproved(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	for _, ar := range m.requests {
		if ar.DoctorID == doctorID && ar.PatientID == patientID && ar.Status == StatusApproved {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) ListLinkedPatients(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*LinkedPatient, int, error) {
	seen := make(map[uuid.UUID]bool)
	var result []*LinkedPatient
	for _, ar := range m.requests {
		if ar.DoctorID == doctorID && ar.Status == StatusApproved && !seen[ar.PatientID] {
			seen[ar.PatientID] = true
			result = append(result, &LinkedPatient{PatientID: ar.PatientID, GrantedAt: ar.RespondedAt})
		}
	}
	return result, len(result), nil
}

// -- Mock Patient Directory --

type mockDirectory map[uuid.UUID]bool

func (d mockDirectory) PatientExists(_ context.Context, id uuid.UUID) (bool, error) {
	return d[id], nil
}

// -- Recording Publisher --

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc   *Service
	guard *Guard
	repo  *mockRepo
	dir   mockDirectory
	pub   *recordingPublisher
}

func newFixture() *fixture {
	f := &fixture{repo: newMockRepo(), dir: mockDirectory{}, pub: &recordingPublisher{}}
	f.svc = NewService(f.repo, f.dir, events.NewEmitter(f.pub, nil), nil)
	f.guard = NewGuard(f.svc, nil)
	return f
}

func (f *fixture) doctor() *auth.Principal {
	return &auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor, ProfileID: uuid.New()}
}

func (f *fixture) patient() *auth.Principal {
	p := &auth.Principal{UserID: uuid.New(), Role: auth.RolePatient, ProfileID: uuid.New()}
	f.dir[p.ProfileID] = true
	return p
}

func (f *fixture) request(t *testing.T, d, p *auth.Principal) *AccessRequest {
	t.Helper()
	ar, err := f.svc.CreateAccessRequest(context.Background(), d, CreateInput{PatientID: p.ProfileID, Reason: "follow-up"})
	if err != nil {
		t.Fatalf("create access request: %v", err)
	}
	return ar
}

func (f *fixture) resolve(t *testing.T, p *auth.Principal, id uuid.UUID, status Status) {
	t.Helper()
	if _, err := f.svc.Resolve(context.Background(), p, id, status); err != nil {
		t.Fatalf("resolve %s: %v", status, err)
	}
}

// -- CreateAccessRequest --

func TestService_CreateAccessRequest(t *testing.T) {
	f := newFixture()
	d, p := f.doctor(), f.patient()

	ar := f.request(t, d, p)
	if ar.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", ar.Status)
	}
	if ar.DoctorID != d.ProfileID || ar.PatientID != p.ProfileID {
		t.Error("expected request bound to caller and patient")
	}
	if got := f.pub.types(); len(got) != 1 || got[0] != events.AccessRequestCreated {
		t.Errorf("expected access_request.created event, got %v", got)
	}
}

func TestService_CreateAccessRequest_NoDuplicateDetection(t *testing.T) {
	f := newFixture()
	d, p := f.doctor(), f.patient()
	f.request(t, d, p)
	f.request(t, d, p)

	_, total, _ := f.svc.ListForDoctor(context.Background(), d, 20, 0)
	if total != 2 {
		t.Errorf("expected 2 pending requests for the pair, got %d", total)
	}
}

func TestService_CreateAccessRequest_Errors(t *testing.T) {
	f := newFixture()
	d, p := f.doctor(), f.patient()

	tests := []struct {
		name string
		p    *auth.Principal
		in   CreateInput
		want error
	}{
		{"unauthenticated", nil, CreateInput{PatientID: p.ProfileID, Reason: "x"}, auth.ErrUnauthenticated},
		{"patient caller", p, CreateInput{PatientID: p.ProfileID, Reason: "x"}, auth.ErrForbidden},
		{"unknown patient", d, CreateInput{PatientID: uuid.New(), Reason: "x"}, ErrPatientNotFound},
		{"blank reason", d, CreateInput{PatientID: p.ProfileID, Reason: "   "}, ErrReasonRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.CreateAccessRequest(context.Background(), tt.p, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(f.repo.requests) != 0 {
		t.Error("failed creates must not write")
	}
}

// -- Listing --

func TestService_Listings_ScopedToCaller(t *testing.T) {
	f := newFixture()
	d1, d2 := f.doctor(), f.doctor()
	p1, p2 := f.patient(), f.patient()
	ctx := context.Background()

	r1 := f.request(t, d1, p1)
	f.request(t, d1, p2)
	f.request(t, d2, p1)
	f.resolve(t, p1, r1.ID, StatusApproved)

	items, total, err := f.svc.ListForDoctor(ctx, d1, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 requests for d1, got %d", total)
	}
	for _, ar := range items {
		if ar.DoctorID != d1.ProfileID {
			t.Error("doctor listing leaked another doctor's request")
		}
	}

	pending, total, _ := f.svc.ListPendingForPatient(ctx, p1, 20, 0)
	if total != 1 || pending[0].DoctorID != d2.ProfileID {
		t.Errorf("expected only d2's pending request for p1, got %d", total)
	}

	_, total, _ = f.svc.ListForPatient(ctx, p1, 20, 0)
	if total != 2 {
		t.Errorf("expected full history of 2 for p1, got %d", total)
	}

	if _, _, err := f.svc.ListPendingForPatient(ctx, d1, 20, 0); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("doctor listing patient inbox: expected ErrForbidden, got %v", err)
	}
	if _, _, err := f.svc.ListForDoctor(ctx, p1, 20, 0); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("patient listing doctor outbox: expected ErrForbidden, got %v", err)
	}
}

// -- Resolve --

func TestService_Resolve(t *testing.T) {
	f := newFixture()
	d, p := f.doctor(), f.patient()
	ar := f.request(t, d, p)

	got, err := f.svc.Resolve(context.Background(), p, ar.ID, StatusApproved)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusApproved || got.RespondedAt == nil {
		t.Errorf("expected APPROVED with responded_at, got %+v", got)
	}
	stored := f.repo.requests[ar.ID]
	if stored.Status != StatusApproved {
		t.Errorf("expected stored status APPROVED, got %s", stored.Status)
	}
	types := f.pub.types()
	if types[len(types)-1] != events.AccessRequestResolved {
		t.Errorf("expected access_request.resolved event, got %v", types)
	}
}

func TestService_Resolve_OnlyOwningPatient(t *testing.T) {
	f := newFixture()
	d, p, other := f.doctor(), f.patient(), f.patient()
	ar := f.request(t, d, p)

	for name, caller := range map[string]*auth.Principal{
		"other patient":     other,
		"requesting doctor": d,
		"unrelated doctor":  f.doctor(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Resolve(context.Background(), caller, ar.ID, StatusApproved)
			if !errors.Is(err, auth.ErrForbidden) {
				t.Errorf("expected ErrForbidden, got %v", err)
			}
		})
	}
	if _, err := f.svc.Resolve(context.Background(), nil, ar.ID, StatusApproved); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
	if f.repo.requests[ar.ID].Status != StatusPending {
		t.Error("rejected resolutions must not mutate the request")
	}
}

func TestService_Resolve_Errors(t *testing.T) {
	f := newFixture()
	d, p, other := f.doctor(), f.patient(), f.patient()
	ar := f.request(t, d, p)
	ctx := context.Background()

	if _, err := f.svc.Resolve(ctx, p, uuid.New(), StatusApproved); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Resolve(ctx, p, ar.ID, StatusPending); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := f.svc.Resolve(ctx, p, ar.ID, Status("REVOKED")); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	// Ownership is checked before the requested status.
	if _, err := f.svc.Resolve(ctx, other, ar.ID, StatusPending); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestService_Resolve_Overwrites(t *testing.T) {
	f := newFixture()
	d, p := f.doctor(), f.patient()
	ar := f.request(t, d, p)

	f.resolve(t, p, ar.ID, StatusApproved)
	f.resolve(t, p, ar.ID, StatusApproved)
	f.resolve(t, p, ar.ID, StatusDenied)
	if f.repo.requests[ar.ID].Status != StatusDenied {
		t.Errorf("expected re-resolution to DENIED, got %s", f.repo.requests[ar.ID].Status)
	}
}

// -- MyPatients --

func TestService_MyPatients(t *testing.T) {
	f := newFixture()
	d := f.doctor()
	p1, p2, p3 := f.patient(), f.patient(), f.patient()

	f.resolve(t, p1, f.request(t, d, p1).ID, StatusApproved)
	f.resolve(t, p1, f.request(t, d, p1).ID, StatusApproved)
	f.resolve(t, p2, f.request(t, d, p2).ID, StatusDenied)
	f.request(t, d, p3)

	items, total, err := f.svc.MyPatients(context.Background(), d, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || items[0].PatientID != p1.ProfileID {
		t.Errorf("expected only p1 linked, got %d", total)
	}
	if _, _, err := f.svc.MyPatients(context.Background(), p1, 20, 0); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}
