package members

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
	// Read endpoints and member writes – staff
	staff := api.Group("", auth.RequireRole(auth.Staff...))
	staff.GET("/categories", h.ListCategories)
	staff.GET("/categories/:id", h.GetCategory)
	staff.POST("/members", h.CreateMember)
	staff.GET("/members", h.ListMembers)
	staff.GET("/members/:id", h.GetMember)
	staff.PUT("/members/:id", h.UpdateMember)
	staff.DELETE("/members/:id", h.DeleteMember)
	staff.POST("/members/:id/dependents", h.CreateDependent)
	staff.GET("/members/:id/dependents", h.ListDependents)
	staff.POST("/members/:id/documents", h.AddDocument)
	staff.GET("/members/:id/documents", h.ListDocuments)

	// Category writes – health owner
	owner := api.Group("", auth.RequireRole(auth.RoleHealthOwner))
	owner.POST("/categories", h.CreateCategory)
	owner.PUT("/categories/:id", h.UpdateCategory)
	owner.DELETE("/categories/:id", h.DeleteCategory)
}

// -- Member Handlers --

func (h *Handler) CreateMember(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	var in MemberInput
	if err := validation.Bind(c, &in); err != nil {
		return apperr.ToHTTP(err)
	}
	m, err := h.svc.CreateMember(c.Request().Context(), who, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMember(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	m, err := h.svc.GetMember(c.Request().Context(), who.OrgID, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMembers(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	preds, err := search.Parse(c.QueryParams(), MemberSearchFields)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMembers(c.Request().Context(), who.OrgID, preds, c.QueryParam("sort"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateMember(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	var in MemberUpdate
	if err := validation.Bind(c, &in); err != nil {
		return apperr.ToHTTP(err)
	}
	m, err := h.svc.UpdateMember(c.Request().Context(), who, id, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMember(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.svc.DeleteMember(c.Request().Context(), who, id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateDependent(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	parentID, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	var in MemberInput
	if err := validation.Bind(c, &in); err != nil {
		return apperr.ToHTTP(err)
	}
	m, err := h.svc.CreateDependent(c.Request().Context(), who, parentID, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListDependents(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	parentID, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	items, err := h.svc.ListDependents(c.Request().Context(), who.OrgID, parentID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

// -- Category Handlers --

func (h *Handler) CreateCategory(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	var in CategoryInput
	if err := validation.Bind(c, &in); err != nil {
		return apperr.ToHTTP(err)
	}
	cat, err := h.svc.CreateCategory(c.Request().Context(), who, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, cat)
}

func (h *Handler) GetCategory(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	cat, err := h.svc.GetCategory(c.Request().Context(), who.OrgID, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *Handler) ListCategories(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListCategories(c.Request().Context(), who.OrgID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateCategory(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	var in CategoryInput
	if err := validation.Bind(c, &in); err != nil {
		return apperr.ToHTTP(err)
	}
	cat, err := h.svc.UpdateCategory(c.Request().Context(), who, id, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *Handler) DeleteCategory(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := h.svc.DeleteCategory(c.Request().Context(), who, id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Document Handlers --

func (h *Handler) AddDocument(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	var in DocumentInput
	if err := validation.Bind(c, &in); err != nil {
		return apperr.ToHTTP(err)
	}
	doc, err := h.svc.AddDocument(c.Request().Context(), who, id, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *Handler) ListDocuments(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	docs, err := h.svc.ListDocuments(c.Request().Context(), who.OrgID, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, docs)
}
