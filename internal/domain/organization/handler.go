package organization

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/organization", h.GetOwn)
}

// GetOwn returns the caller's organization.
func (h *Handler) GetOwn(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	org, err := h.svc.GetOrganization(c.Request().Context(), who.OrgID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, org)
}
