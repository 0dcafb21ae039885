package requests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/auth"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/validation"
)

func newTestServer(f *fixture) *echo.Echo {
	e := echo.New()
	e.Validator = validation.New()
	NewHandler(f.svc).RegisterRoutes(e.Group("/api/v1"))
	return e
}

func do(e *echo.Echo, who auth.Identity, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req = req.WithContext(auth.WithIdentity(req.Context(), who))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_RequestLifecycle(t *testing.T) {
	f := newFixture()
	e := newTestServer(f)
	pharmacy := f.identity(auth.RolePharmacy)
	worker := f.identity(auth.RoleWorker)

	body := `{"member_id":"` + f.member.ID.String() + `","kind":"pharmacy","items":[{"name":"Paracetamol","quantity":2},{"name":"Zinc","quantity":1}]}`
	rec := do(e, pharmacy, http.MethodPost, "/api/v1/requests", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Items  []Item `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Pending", created.Status)
	require.Len(t, created.Items, 2)
	itemPath := "/api/v1/requests/" + created.ID + "/items/" + created.Items[0].ID.String()

	rec = do(e, pharmacy, http.MethodPost, itemPath+"/approve", `{"unit_price":"12.50"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code, "pharmacy cannot approve")

	rec = do(e, worker, http.MethodPost, itemPath+"/approve", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "price required")
	assert.Contains(t, rec.Body.String(), "unit_price")

	rec = do(e, worker, http.MethodPost, itemPath+"/approve", `{"unit_price":"12.50"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(e, worker, http.MethodPost, itemPath+"/approve", `{"unit_price":"13"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "double approval")
	assert.Contains(t, rec.Body.String(), "invalid_transition")

	rec = do(e, worker, http.MethodGet, "/api/v1/requests/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"PartiallyApproved"`)

	rec = do(e, worker, http.MethodPost, itemPath+"/revert", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"Reverted"`)

	rec = do(e, pharmacy, http.MethodDelete, "/api/v1/requests/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandler_CreateRequest_Validation(t *testing.T) {
	f := newFixture()
	e := newTestServer(f)
	worker := f.identity(auth.RoleWorker)

	body := `{"member_id":"` + f.member.ID.String() + `","kind":"pharmacy","items":[{"name":"A","quantity":0}]}`
	rec := do(e, worker, http.MethodPost, "/api/v1/requests", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "items[0].quantity")

	rec = do(e, worker, http.MethodPost, "/api/v1/requests", `{"kind":"pharmacy","items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_UpdateItems(t *testing.T) {
	f := newFixture()
	e := newTestServer(f)
	worker := f.identity(auth.RoleWorker)
	req := f.create(t, worker, KindPharmacy, "A", "B")

	body := `{"items":[{"id":"` + req.Items[0].ID.String() + `","name":"A","quantity":5},{"name":"C","quantity":1}]}`
	rec := do(e, worker, http.MethodPut, "/api/v1/requests/"+req.ID.String()+"/items", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Items, 2)
	assert.Equal(t, 5, out.Items[0].Quantity)
	assert.Equal(t, "C", out.Items[1].Name)
}

func TestHandler_ListRequests(t *testing.T) {
	f := newFixture()
	e := newTestServer(f)
	worker := f.identity(auth.RoleWorker)
	f.create(t, worker, KindPharmacy, "A")
	f.create(t, f.identity(auth.RoleHospital), KindTreatment, "Scan")

	rec := do(e, worker, http.MethodGet, "/api/v1/requests?kind=treatment", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)

	rec = do(e, worker, http.MethodGet, "/api/v1/requests?kind=dental", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
