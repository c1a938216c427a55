package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"yearend/internal/domain/auth"
)

type stubPermissions struct {
	allowed bool
	err     error
}

func (s stubPermissions) HasPermission(context.Context, string, string) (bool, error) {
	return s.allowed, s.err
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body.Error.Code
}

func TestRequirePermission(t *testing.T) {
	userCtx := WithUser(context.Background(), auth.UserContext{UserID: "u1", TenantID: "t1", RoleID: auth.RoleHR})
	cases := []struct {
		name   string
		ctx    context.Context
		store  stubPermissions
		status int
		code   string
	}{
		{"anonymous", context.Background(), stubPermissions{allowed: true}, http.StatusUnauthorized, "unauthorized"},
		{"no tenant", WithUser(context.Background(), auth.UserContext{UserID: "u1", RoleID: auth.RoleHR}), stubPermissions{allowed: true}, http.StatusUnauthorized, "unauthorized"},
		{"denied", userCtx, stubPermissions{}, http.StatusForbidden, "forbidden"},
		{"store error", userCtx, stubPermissions{err: errors.New("db down")}, http.StatusInternalServerError, "permission_error"},
		{"allowed", userCtx, stubPermissions{allowed: true}, http.StatusNoContent, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequirePermission(auth.PermYearEndRun, tc.store)(noContent())
			req := httptest.NewRequest(http.MethodPost, "/", nil).WithContext(tc.ctx)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if tc.code != "" && errorCode(t, rec) != tc.code {
				t.Fatalf("expected code %s", tc.code)
			}
		})
	}
}

func TestRecovererReturnsEnvelope(t *testing.T) {
	handler := RequestID(Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if errorCode(t, rec) != "internal_error" {
		t.Fatal("expected internal_error code")
	}
}

type recordedRequest struct {
	method string
	route  string
	status int
}

type fakeRecorder struct {
	got []recordedRequest
}

func (f *fakeRecorder) Record(method, route string, status int, _ time.Duration) {
	f.got = append(f.got, recordedRequest{method, route, status})
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	recorder := &fakeRecorder{}
	r := chi.NewRouter()
	r.Use(Metrics(recorder))
	r.Get("/results/{resultID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/results/abc", nil))
	if len(recorder.got) != 1 {
		t.Fatalf("expected one record, got %d", len(recorder.got))
	}
	got := recorder.got[0]
	if got.route != "/results/{resultID}" || got.status != http.StatusTeapot || got.method != http.MethodGet {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestBodyLimitRejectsLargePayload(t *testing.T) {
	called := false
	handler := BodyLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"fiscalYear": 2024}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge || called {
		t.Fatalf("expected declared length to be refused, got %d (handler called: %v)", rec.Code, called)
	}

	chunked := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"fiscalYear": 2024}`))
	chunked.ContentLength = -1
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, chunked)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected body to be cut off, got %d", rec.Code)
	}

	get := httptest.NewRequest(http.MethodGet, "/", strings.NewReader(`{"fiscalYear": 2024}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, get)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected GET to pass, got %d", rec.Code)
	}
}

func TestSecureHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecureHeaders(true)(noContent()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected nosniff header")
	}
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Fatal("expected HSTS in production")
	}
}
