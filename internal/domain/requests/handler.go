package requests

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
	// Request lifecycle – staff and the creating roles
	rw := api.Group("", auth.RequireRole(auth.RoleWorker, auth.RolePharmacy, auth.RoleHospital))
	rw.POST("/requests", h.CreateRequest)
	rw.GET("/requests", h.ListRequests)
	rw.GET("/requests/:id", h.GetRequest)
	rw.DELETE("/requests/:id", h.DeleteRequest)
	rw.PUT("/requests/:id/items", h.UpdateItems)
	rw.DELETE("/requests/:id/items/:itemId", h.DeleteItem)

	// Approval – staff
	staff := api.Group("", auth.RequireRole(auth.Staff...))
	staff.POST("/requests/:id/items/:itemId/approve", h.ApproveItem)
	staff.POST("/requests/:id/items/:itemId/revert", h.RevertItem)
}

func (h *Handler) CreateRequest(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := validation.Bind(c, &in); err != nil {
		return apperr.ToHTTP(err)
	}
	req, err := h.svc.CreateRequest(c.Request().Context(), who, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) GetRequest(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	req, err := h.svc.GetRequest(c.Request().Context(), who, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) ListRequests(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	preds, err := search.Parse(c.QueryParams(), SearchFields)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRequests(c.Request().Context(), who, preds, c.QueryParam("sort"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateItems(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	var in UpdateItemsInput
	if err := validation.Bind(c, &in); err != nil {
		return apperr.ToHTTP(err)
	}
	req, err := h.svc.UpdateItems(c.Request().Context(), who, id, in.Items)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) DeleteRequest(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.svc.DeleteRequest(c.Request().Context(), who, id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteItem(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	itemID, err := validation.ParamUUID(c, "itemId")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.svc.DeleteItem(c.Request().Context(), who, id, itemID); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ApproveItem(c echo.Context) error {
	return h.transition(c, ActionApprove)
}

func (h *Handler) RevertItem(c echo.Context) error {
	return h.transition(c, ActionRevert)
}

func (h *Handler) transition(c echo.Context, action Action) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	itemID, err := validation.ParamUUID(c, "itemId")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	var in TransitionInput
	if action == ActionApprove {
		if err := validation.Bind(c, &in); err != nil {
			return apperr.ToHTTP(err)
		}
	}
	item, err := h.svc.TransitionItem(c.Request().Context(), who, id, itemID, action, in.UnitPrice)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, item)
}
