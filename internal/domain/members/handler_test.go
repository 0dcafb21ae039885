package members

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/auth"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/validation"
)

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture()
	e := echo.New()
	e.Validator = validation.New()
	return NewHandler(f.svc), f, e
}

func newContext(e *echo.Echo, who auth.Identity, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req = req.WithContext(auth.WithIdentity(req.Context(), who))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func TestHandler_CreateMember(t *testing.T) {
	h, f, e := newTestHandler()
	c, rec := newContext(e, f.who, http.MethodPost, "/members", `{"name":"Alice"}`)

	if err := h.CreateMember(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var m Member
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Code != "Nadra0001" {
		t.Errorf("expected Nadra0001, got %q", m.Code)
	}
}

func TestHandler_CreateMember_BadRequest(t *testing.T) {
	h, f, e := newTestHandler()
	c, _ := newContext(e, f.who, http.MethodPost, "/members", `{"phone":"123"}`)

	err := h.CreateMember(c)
	if code := statusOf(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_GetMember(t *testing.T) {
	h, f, e := newTestHandler()
	m := f.mustMember(t, f.who, "Alice")

	c, rec := newContext(e, f.who, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	if err := h.GetMember(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	stranger := f.addOrg("MU")
	c, _ = newContext(e, stranger, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	if code := statusOf(t, h.GetMember(c)); code != http.StatusNotFound {
		t.Errorf("expected 404 across organizations, got %d", code)
	}

	c, _ = newContext(e, f.who, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("nope")
	if code := statusOf(t, h.GetMember(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", code)
	}
}

func TestHandler_ListMembers(t *testing.T) {
	h, f, e := newTestHandler()
	f.mustMember(t, f.who, "Alice")
	f.mustMember(t, f.who, "Bob")

	c, rec := newContext(e, f.who, http.MethodGet, "/members?name=ali&limit=10", "")
	if err := h.ListMembers(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Total int `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 1 {
		t.Errorf("expected 1 match, got %d", body.Total)
	}

	c, _ = newContext(e, f.who, http.MethodGet, "/members?shoe_size=42", "")
	if code := statusOf(t, h.ListMembers(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown search field, got %d", code)
	}
}

func TestHandler_Dependents(t *testing.T) {
	h, f, e := newTestHandler()
	parent := f.mustMember(t, f.who, "Alice")

	c, rec := newContext(e, f.who, http.MethodPost, "/", `{"name":"Junior"}`)
	c.SetParamNames("id")
	c.SetParamValues(parent.ID.String())
	if err := h.CreateDependent(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	c, rec = newContext(e, f.who, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(parent.ID.String())
	if err := h.ListDependents(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var deps []Member
	json.Unmarshal(rec.Body.Bytes(), &deps)
	if len(deps) != 1 || deps[0].Code != "Nadra0001/1" {
		t.Errorf("unexpected dependents %+v", deps)
	}
}

func TestHandler_DeleteMember(t *testing.T) {
	h, f, e := newTestHandler()
	m := f.mustMember(t, f.who, "Alice")

	c, rec := newContext(e, f.who, http.MethodDelete, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	if err := h.DeleteMember(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_Categories(t *testing.T) {
	h, f, e := newTestHandler()
	owner := f.who
	owner.Role = auth.RoleHealthOwner

	c, rec := newContext(e, owner, http.MethodPost, "/categories", `{"name":"Gold","coverage_percent":"80","price":"25000"}`)
	if err := h.CreateCategory(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	c, _ = newContext(e, owner, http.MethodPost, "/categories", `{"name":"Bad","coverage_percent":"120","price":"1"}`)
	if code := statusOf(t, h.CreateCategory(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 for percent above 100, got %d", code)
	}

	c, rec = newContext(e, f.who, http.MethodGet, "/categories", "")
	if err := h.ListCategories(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var cats []Category
	json.Unmarshal(rec.Body.Bytes(), &cats)
	if len(cats) != 1 {
		t.Errorf("expected 1 category, got %d", len(cats))
	}
}

func TestHandler_RoleGates(t *testing.T) {
	h, f, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))

	pharmacy := f.who
	pharmacy.Role = auth.RolePharmacy
	worker := f.who

	tests := []struct {
		name   string
		who    auth.Identity
		method string
		path   string
		body   string
		want   int
	}{
		{"pharmacy cannot list members", pharmacy, http.MethodGet, "/api/v1/members", "", http.StatusForbidden},
		{"worker cannot create categories", worker, http.MethodPost, "/api/v1/categories", `{"name":"X","coverage_percent":"1","price":"1"}`, http.StatusForbidden},
		{"worker lists members", worker, http.MethodGet, "/api/v1/members", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			} else {
				req = httptest.NewRequest(tt.method, tt.path, nil)
			}
			req = req.WithContext(auth.WithIdentity(context.Background(), tt.who))
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestHandler_Documents(t *testing.T) {
	h, f, e := newTestHandler()
	m := f.mustMember(t, f.who, "Alice")

	// "aGVsbG8=" is base64 for "hello".
	c, rec := newContext(e, f.who, http.MethodPost, "/", `{"name":"id.png","content":"aGVsbG8="}`)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	if err := h.AddDocument(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	data, err := f.files.Read(context.Background(), f.files.Names()[0])
	if err != nil || string(data) != "hello" {
		t.Errorf("stored %q, err=%v", data, err)
	}

	c, rec = newContext(e, f.who, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	if err := h.ListDocuments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var docs []Document
	if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil || len(docs) != 1 {
		t.Errorf("expected one document, got %s", rec.Body.String())
	}

	c, _ = newContext(e, f.who, http.MethodPost, "/", `{"name":"id.png"}`)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())
	if code := statusOf(t, h.AddDocument(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 without content, got %d", code)
	}
}
