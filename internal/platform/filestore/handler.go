package filestore

import (
	"errors"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/auth"
)

// Handler serves stored documents to authenticated callers of the owning
// organization.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts GET /:name on g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/:name", h.Download)
}

func (h *Handler) Download(c echo.Context) error {
	who, err := auth.Caller(c)
	if err != nil {
		return err
	}
	name, err := SanitizeName(c.Param("name"))
	if err != nil {
		return apperr.ToHTTP(apperr.Validation("name", "invalid file name"))
	}
	if !OwnedBy(name, who.OrgID) {
		return apperr.ToHTTP(apperr.NotFound("file"))
	}

	data, err := h.store.Read(c.Request().Context(), name)
	if errors.Is(err, ErrFileNotFound) {
		return apperr.ToHTTP(apperr.NotFound("file"))
	}
	if err != nil {
		return apperr.ToHTTP(err)
	}
	c.Response().Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	return c.Blob(http.StatusOK, ContentType(name), data)
}
