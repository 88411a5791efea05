package assistant

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mediledger/mediledger/internal/platform/auth"
	"github.com/mediledger/mediledger/internal/platform/middleware"
)

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture()
	e := echo.New()
	e.Validator = middleware.NewValidator()
	return NewHandler(f.svc), f, e
}

func newContext(e *echo.Echo, method, body, id string, p *auth.Principal) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func expectStatus(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
	return httpErr
}

func TestHandler_Analyze(t *testing.T) {
	h, f, e := newTestHandler()
	f.addRecord("Visit", time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))

	c, rec := newContext(e, http.MethodGet, "", f.patient.ID.String(), f.caller)
	if err := h.Analyze(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	for _, key := range []string{"summary", "recommendation", "next_steps", "records_count", "last_record_date"} {
		if _, ok := body[key]; !ok {
			t.Errorf("response missing %q: %s", key, rec.Body.String())
		}
	}
}

func TestHandler_Analyze_StatusCodes(t *testing.T) {
	h, f, e := newTestHandler()
	f.addRecord("Visit", time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))

	c, _ := newContext(e, http.MethodGet, "", "not-a-uuid", f.caller)
	expectStatus(t, h.Analyze(c), http.StatusBadRequest)

	c, _ = newContext(e, http.MethodGet, "", f.patient.ID.String(), nil)
	expectStatus(t, h.Analyze(c), http.StatusUnauthorized)

	f.guard.allowed[f.patient.ID] = false
	c, _ = newContext(e, http.MethodGet, "", f.patient.ID.String(), f.caller)
	expectStatus(t, h.Analyze(c), http.StatusForbidden)
}

func TestHandler_Analyze_ModelDown(t *testing.T) {
	h, f, e := newTestHandler()
	f.addRecord("Visit", time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))
	f.llm.err = errors.New("connection refused")

	c, _ := newContext(e, http.MethodGet, "", f.patient.ID.String(), f.caller)
	httpErr := expectStatus(t, h.Analyze(c), http.StatusBadGateway)
	if httpErr.Message != advisoryMessage {
		t.Errorf("expected advisory message, got %v", httpErr.Message)
	}
}

func TestHandler_Ask(t *testing.T) {
	h, f, e := newTestHandler()
	f.addRecord("Visit", time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))

	c, rec := newContext(e, http.MethodPost, `{"question":"Should I worry?"}`, f.patient.ID.String(), f.caller)
	if err := h.Ask(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ans Answer
	json.Unmarshal(rec.Body.Bytes(), &ans)
	if ans.Answer == "" {
		t.Errorf("expected an answer, got %s", rec.Body.String())
	}
}

func TestHandler_Ask_Validation(t *testing.T) {
	h, f, e := newTestHandler()
	c, _ := newContext(e, http.MethodPost, `{}`, f.patient.ID.String(), f.caller)
	expectStatus(t, h.Ask(c), http.StatusBadRequest)

	c, _ = newContext(e, http.MethodPost, `{"question":"   "}`, f.patient.ID.String(), f.caller)
	expectStatus(t, h.Ask(c), http.StatusBadRequest)
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))

	want := map[string]bool{
		"GET:/api/v1/patients/:id/analysis":   false,
		"POST:/api/v1/patients/:id/questions": false,
	}
	for _, r := range e.Routes() {
		key := r.Method + ":" + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for k, found := range want {
		if !found {
			t.Errorf("route %s not registered", k)
		}
	}
}
