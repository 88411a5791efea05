package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type fakeResolver struct {
	principals map[string]*Principal
	err        error
	calls      int
}

func (f *fakeResolver) ResolvePrincipal(_ context.Context, subject string) (*Principal, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.principals[subject], nil
}

func newCtxWithSubject(subject string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if subject != "" {
		req = req.WithContext(withIdentity(req.Context(), subject, "", ""))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestPrincipalMiddleware_Resolves(t *testing.T) {
	p := &Principal{UserID: uuid.New(), Subject: "sub-1", Role: RoleDoctor, ProfileID: uuid.New()}
	resolver := &fakeResolver{principals: map[string]*Principal{"sub-1": p}}
	c, _ := newCtxWithSubject("sub-1")

	var got *Principal
	handler := func(c echo.Context) error {
		got = PrincipalFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	}

	if err := PrincipalMiddleware(resolver)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != p {
		t.Errorf("expected resolved principal, got %v", got)
	}
	if c.Get("user_id") != p.UserID.String() {
		t.Errorf("expected user_id %s, got %v", p.UserID, c.Get("user_id"))
	}
}

func TestPrincipalMiddleware_Anonymous(t *testing.T) {
	resolver := &fakeResolver{}
	c, _ := newCtxWithSubject("")

	handler := func(c echo.Context) error {
		if PrincipalFromContext(c.Request().Context()) != nil {
			t.Error("expected no principal")
		}
		return nil
	}
	if err := PrincipalMiddleware(resolver)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolver.calls != 0 {
		t.Errorf("expected resolver not to be called, got %d calls", resolver.calls)
	}
}

func TestPrincipalMiddleware_UnknownSubject(t *testing.T) {
	resolver := &fakeResolver{principals: map[string]*Principal{}}
	c, _ := newCtxWithSubject("never-registered")

	handler := func(c echo.Context) error {
		if PrincipalFromContext(c.Request().Context()) != nil {
			t.Error("expected no principal for unregistered subject")
		}
		return nil
	}
	if err := PrincipalMiddleware(resolver)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPrincipalMiddleware_ResolverError(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("db down")}
	c, _ := newCtxWithSubject("sub-1")

	err := PrincipalMiddleware(resolver)(func(c echo.Context) error { return nil })(c)
	expectStatus(t, err, http.StatusInternalServerError)
}

func TestAuthenticated(t *testing.T) {
	c, _ := newCtxWithSubject("")
	err := Authenticated()(okHandler)(c)
	expectStatus(t, err, http.StatusUnauthorized)

	c, rec := newCtxWithSubject("")
	req := c.Request()
	c.SetRequest(req.WithContext(WithPrincipal(req.Context(), &Principal{UserID: uuid.New()})))
	if err := Authenticated()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRoleMiddleware(t *testing.T) {
	tests := []struct {
		name string
		p    *Principal
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"patient", &Principal{UserID: uuid.New(), Role: RolePatient}, http.StatusForbidden},
		{"doctor", &Principal{UserID: uuid.New(), Role: RoleDoctor}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newCtxWithSubject("")
			if tt.p != nil {
				req := c.Request()
				c.SetRequest(req.WithContext(WithPrincipal(req.Context(), tt.p)))
			}
			err := RoleMiddleware(RoleDoctor)(okHandler)(c)
			if tt.want == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if rec.Code != http.StatusOK {
					t.Errorf("expected 200, got %d", rec.Code)
				}
				return
			}
			expectStatus(t, err, tt.want)
		})
	}
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: requires role DOCTOR", ErrForbidden), http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPError(tt.err).Code; got != tt.want {
			t.Errorf("HTTPError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
