package cards

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/auth"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.Staff...))
	staff.POST("/members/:id/cards", h.Issue)
	staff.GET("/members/:id/cards", h.List)
}

func (h *Handler) Issue(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	card, err := h.svc.Issue(c.Request().Context(), who, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, card)
}

func (h *Handler) List(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	items, err := h.svc.ListCards(c.Request().Context(), who.OrgID, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}
