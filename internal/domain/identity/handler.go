package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mediledger/mediledger/internal/platform/auth"
	"github.com/mediledger/mediledger/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Registration only needs a verified token subject.
	api.POST("/register", h.Register)

	authed := api.Group("", auth.Authenticated())
	authed.GET("/me", h.Me)
	authed.PATCH("/me", h.UpdateProfile)
	authed.PUT("/me/role", h.AssignRole)
	authed.GET("/doctors", h.ListDoctors)

	doctors := api.Group("", auth.RoleMiddleware(auth.RoleDoctor))
	doctors.GET("/patients", h.ListPatients)
}

func (h *Handler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	subject := auth.SubjectFromContext(ctx)
	if subject == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, ErrMissingSubject.Error())
	}

	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.Email == "" {
		in.Email = auth.EmailFromContext(ctx)
	}
	if in.Name == "" {
		in.Name = auth.NameFromContext(ctx)
	}
	if err := c.Validate(&in); err != nil {
		return err
	}

	profile, err := h.svc.Register(ctx, subject, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, profile)
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	profile, err := h.svc.Me(ctx, auth.PrincipalFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	var patch ProfilePatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&patch); err != nil {
		return err
	}
	ctx := c.Request().Context()
	profile, err := h.svc.UpdateProfile(ctx, auth.PrincipalFromContext(ctx), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) AssignRole(c echo.Context) error {
	var in AssignRoleInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	profile, err := h.svc.AssignRole(ctx, auth.PrincipalFromContext(ctx), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	doctors, total, err := h.svc.ListDoctors(ctx, auth.PrincipalFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(doctors, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	patients, total, err := h.svc.ListPatients(ctx, auth.PrincipalFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrForbidden):
		return auth.HTTPError(err)
	case errors.Is(err, ErrMissingSubject):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyRegistered), errors.Is(err, ErrRoleAlreadyAssigned):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrProfileMismatch), errors.Is(err, ErrInvalidDate), errors.Is(err, ErrInvalidRole):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}
