package billing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/members"
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

func TestHandler_InvoiceLifecycle(t *testing.T) {
	f := newFixture()
	e := newTestServer(f)
	m := f.member(f.who.OrgID, "Nadra0001")

	body := `{"lines":[{"member_id":"` + m.ID.String() + `","amount":"15000","period_months":6}]}`
	rec := do(e, f.who, http.MethodPost, "/api/v1/invoices", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created []Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created, 1)
	assert.Equal(t, members.StatusActive, f.s.members[m.ID].Status)

	path := "/api/v1/invoices/" + created[0].ID.String()
	rec = do(e, f.who, http.MethodGet, path, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, f.who, http.MethodGet, "/api/v1/invoices?status=Pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = do(e, f.who, http.MethodPost, path+"/pay", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"Paid"`)

	rec = do(e, f.who, http.MethodPost, path+"/pay", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(e, f.who, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusConflict, rec.Code, "paid invoices stay")
}

func TestHandler_CreateInvoices_Invalid(t *testing.T) {
	f := newFixture()
	e := newTestServer(f)

	rec := do(e, f.who, http.MethodPost, "/api/v1/invoices", `{"lines":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, f.who, http.MethodPost, "/api/v1/invoices", `{"lines":[{"amount":"10","period_months":0}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "lines[0].period_months")

	rec = do(e, f.who, http.MethodGet, "/api/v1/invoices?colour=red", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_RoleGate(t *testing.T) {
	f := newFixture()
	e := newTestServer(f)
	pharmacy := auth.Identity{UserID: f.who.UserID, OrgID: f.who.OrgID, Role: auth.RolePharmacy}

	rec := do(e, pharmacy, http.MethodGet, "/api/v1/invoices", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
