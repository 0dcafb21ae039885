package filestore

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/auth"
)

func TestSanitizeName(t *testing.T) {
	valid := []string{"receipt-PH-1A2B3C4D-1700000000.pdf", "card.png", "a b.pdf"}
	for _, n := range valid {
		_, err := SanitizeName(n)
		assert.NoError(t, err, n)
	}
	invalid := []string{"", ".", "../etc/passwd", "a/b.pdf", `a\b.pdf`, "x..y", "bad\x00name", "tab\tname"}
	for _, n := range invalid {
		_, err := SanitizeName(n)
		assert.ErrorIs(t, err, ErrInvalidName, n)
	}
}

func TestOrgName(t *testing.T) {
	org := uuid.New()
	name := OrgName(org, "card-Nadra0001.png")
	assert.True(t, OwnedBy(name, org))
	assert.False(t, OwnedBy(name, uuid.New()))
	_, err := SanitizeName(name)
	assert.NoError(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("x.PDF"))
	assert.Equal(t, "image/png", ContentType("x.png"))
	assert.Equal(t, "application/octet-stream", ContentType("x"))
}

func TestLocalStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "/files/")
	require.NoError(t, err)

	url, err := s.Save(context.Background(), "r.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "/files/r.pdf", url)

	data, err := s.Read(context.Background(), "r.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1, "temp files must be cleaned up")
	assert.FileExists(t, filepath.Join(dir, "r.pdf"))
}

func TestLocalStore_Errors(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)

	_, err = s.Read(context.Background(), "missing.pdf")
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = s.Save(context.Background(), "../escape.pdf", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("/files")
	url, err := s.Save(context.Background(), "c.png", []byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "/files/c.png", url)

	data, err := s.Read(context.Background(), "c.png")
	require.NoError(t, err)
	data[0] = 9
	again, _ := s.Read(context.Background(), "c.png")
	assert.Equal(t, byte(1), again[0])

	_, err = s.Save(context.Background(), "big.bin", make([]byte, MaxFileSize+1))
	assert.True(t, errors.Is(err, ErrFileTooLarge))
	assert.Equal(t, []string{"c.png"}, s.Names())
}

func download(t *testing.T, h *Handler, who *auth.Identity, name string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/files/download", nil)
	if who != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), *who))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("name")
	c.SetParamValues(name)
	return rec, h.Download(c)
}

func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func TestHandler_Download(t *testing.T) {
	store := NewMemoryStore("/files")
	who := auth.Identity{UserID: uuid.New(), OrgID: uuid.New(), Role: auth.RoleWorker}
	name := OrgName(who.OrgID, "receipt.pdf")
	_, err := store.Save(context.Background(), name, []byte("%PDF"))
	require.NoError(t, err)
	h := NewHandler(store)

	rec, err := download(t, h, &who, name)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", rec.Body.String())

	other := auth.Identity{UserID: uuid.New(), OrgID: uuid.New(), Role: auth.RoleHealthOwner}
	_, err = download(t, h, &other, name)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	_, err = download(t, h, &who, OrgName(who.OrgID, "missing.pdf"))
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	_, err = download(t, h, &who, "..")
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	_, err = download(t, h, nil, name)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
}

func TestHandler_DownloadQuotesFilename(t *testing.T) {
	store := NewMemoryStore("/files")
	who := auth.Identity{UserID: uuid.New(), OrgID: uuid.New(), Role: auth.RoleWorker}
	h := NewHandler(store)

	for _, base := range []string{`scan "final"; x=1.pdf`, "reçu été.pdf", "plain.pdf"} {
		name := OrgName(who.OrgID, base)
		_, err := store.Save(context.Background(), name, []byte("%PDF"))
		require.NoError(t, err, base)

		rec, err := download(t, h, &who, name)
		require.NoError(t, err, base)
		disp, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
		require.NoError(t, err, base)
		assert.Equal(t, "inline", disp)
		assert.Equal(t, name, params["filename"], base)
		assert.Len(t, params, 1, "no parameter may be injected through the name")
	}
}
