package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediledger/mediledger/internal/platform/auth"
)

// mockRecorder collects audit entries for assertions.
type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestContext(method, path string, p *auth.Principal) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

var testLogger = zerolog.New(os.Stderr).Level(zerolog.Disabled)

func TestAudit_PatientRecordsRead(t *testing.T) {
	rec := &mockRecorder{}
	doctor := &auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor}
	patientID := uuid.New().String()
	c, _ := newTestContext(http.MethodGet, "/api/v1/patients/"+patientID+"/records", doctor)
	c.Set("request_id", "req-42")

	if err := Audit(testLogger, rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 audit entry, got %d", rec.count())
	}
	entry := rec.last()
	if entry.UserID != doctor.UserID.String() {
		t.Errorf("expected user %s, got %s", doctor.UserID, entry.UserID)
	}
	if entry.Role != "DOCTOR" {
		t.Errorf("expected role DOCTOR, got %s", entry.Role)
	}
	if entry.PatientID != patientID {
		t.Errorf("expected patient %s, got %s", patientID, entry.PatientID)
	}
	if entry.Resource != "patients" || entry.Action != "read" {
		t.Errorf("unexpected resource/action: %s/%s", entry.Resource, entry.Action)
	}
	if entry.RequestID != "req-42" {
		t.Errorf("expected request id req-42, got %s", entry.RequestID)
	}
	if entry.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", entry.StatusCode)
	}
}

func TestAudit_RecordsDeniedAccess(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodDelete, "/api/v1/records/"+uuid.New().String(), &auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor})

	denied := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	}
	err := Audit(testLogger, rec)(denied)(c)
	if err == nil {
		t.Fatal("expected handler error to propagate")
	}
	entry := rec.last()
	if entry.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", entry.StatusCode)
	}
	if entry.Action != "delete" {
		t.Errorf("expected delete action, got %s", entry.Action)
	}
}

func TestAudit_SkipsNonPatientPaths(t *testing.T) {
	rec := &mockRecorder{}
	for _, path := range []string{"/health", "/metrics", "/api/v1/doctors", "/api/v1/me"} {
		c, _ := newTestContext(http.MethodGet, path, nil)
		if err := Audit(testLogger, rec)(okHandler)(c); err != nil {
			t.Fatalf("%s: unexpected error: %v", path, err)
		}
	}
	if rec.count() != 0 {
		t.Errorf("expected no audit entries, got %d", rec.count())
	}
}

func TestAudit_RecorderErrorDoesNotBreakRequest(t *testing.T) {
	rec := &mockRecorder{err: errors.New("disk full")}
	c, httpRec := newTestContext(http.MethodGet, "/api/v1/my-records", nil)

	if err := Audit(testLogger, rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if httpRec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", httpRec.Code)
	}
}

func TestAudit_NoRecorderLogOnly(t *testing.T) {
	c, _ := newTestContext(http.MethodPost, "/api/v1/access-requests", nil)
	if err := Audit(testLogger)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHttpMethodToAction(t *testing.T) {
	tests := map[string]string{
		http.MethodGet:    "read",
		http.MethodHead:   "read",
		http.MethodPost:   "create",
		http.MethodPut:    "update",
		http.MethodPatch:  "update",
		http.MethodDelete: "delete",
	}
	for method, want := range tests {
		if got := httpMethodToAction(method); got != want {
			t.Errorf("httpMethodToAction(%s) = %s, want %s", method, got, want)
		}
	}
}

func TestResourceFromPath(t *testing.T) {
	tests := map[string]string{
		"/api/v1/records":               "records",
		"/api/v1/records/abc":           "records",
		"/api/v1/patients/abc/analysis": "patients",
		"/health":                       "",
	}
	for path, want := range tests {
		if got := resourceFromPath(path); got != want {
			t.Errorf("resourceFromPath(%s) = %q, want %q", path, got, want)
		}
	}
}

func TestPatientIDFromPath(t *testing.T) {
	id := uuid.New().String()
	if got := patientIDFromPath("/api/v1/patients/" + id + "/records"); got != id {
		t.Errorf("expected %s, got %s", id, got)
	}
	if got := patientIDFromPath("/api/v1/patients/not-a-uuid"); got != "" {
		t.Errorf("expected empty id for non-uuid, got %s", got)
	}
	if got := patientIDFromPath("/api/v1/records/" + id); got != "" {
		t.Errorf("expected empty id outside patients route, got %s", got)
	}
}

func TestAuditRecorderFunc(t *testing.T) {
	var got AuditEntry
	f := AuditRecorderFunc(func(e AuditEntry) error {
		got = e
		return nil
	})
	f.RecordAccess(AuditEntry{PatientID: "p"})
	if got.PatientID != "p" {
		t.Errorf("expected entry to be forwarded, got %+v", got)
	}
}
