package receipts

import (
	"net/http"
	"strconv"

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
	g := api.Group("", auth.RequireRole(auth.RoleWorker, auth.RolePharmacy, auth.RoleHospital))
	g.POST("/requests/:id/receipts", h.Generate)
	g.GET("/requests/:id/receipts", h.List)
}

// Generate handles POST /requests/:id/receipts[?regen=true].
func (h *Handler) Generate(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	regen := false
	if v := c.QueryParam("regen"); v != "" {
		regen, err = strconv.ParseBool(v)
		if err != nil {
			return apperr.ToHTTP(apperr.Validation("regen", "must be a boolean"))
		}
	}
	rc, err := h.svc.Generate(c.Request().Context(), who, id, regen)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, rc)
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
	items, err := h.svc.ListReceipts(c.Request().Context(), who, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}
