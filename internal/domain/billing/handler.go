package billing

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/auth"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/search"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/validation"
	"github.com/joffreynk/nadra-mutuality-sub000/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.Staff...))
	staff.POST("/invoices", h.CreateInvoices)
	staff.GET("/invoices", h.ListInvoices)
	staff.GET("/invoices/:id", h.GetInvoice)
	staff.DELETE("/invoices/:id", h.DeleteInvoice)
	staff.POST("/invoices/:id/pay", h.MarkPaid)
}

func (h *Handler) CreateInvoices(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := validation.Bind(c, &in); err != nil {
		return apperr.ToHTTP(err)
	}
	items, err := h.svc.CreateInvoices(c.Request().Context(), who, in.Lines)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, items)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	preds, err := search.Parse(c.QueryParams(), SearchFields)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListInvoices(c.Request().Context(), who.OrgID, preds, c.QueryParam("sort"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetInvoice(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), who.OrgID, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) DeleteInvoice(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.svc.DeleteInvoice(c.Request().Context(), who, id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkPaid handles POST /invoices/:id/pay.
func (h *Handler) MarkPaid(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	inv, err := h.svc.MarkPaid(c.Request().Context(), who, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, inv)
}
