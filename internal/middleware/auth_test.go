package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddlewareWithValidCookie(t *testing.T) {
	auth := NewAuthMiddleware("test-secret")

	caller := Caller{
		ManagerID:      "mgr-42",
		Hall:           "north",
		Role:           "manager",
		ComplaintToken: "token-abc",
	}

	rec := httptest.NewRecorder()
	auth.SetAuthCookie(rec, caller)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true

		got, ok := GetCallerFromContext(r.Context())
		if !ok {
			t.Error("caller not found in context")
			return
		}
		if got != caller {
			t.Errorf("caller in context = %+v, want %+v", got, caller)
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.AddCookie(cookies[0])

	w := httptest.NewRecorder()
	auth.Middleware(next).ServeHTTP(w, req)

	if !nextCalled {
		t.Error("next handler was not called")
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAuthMiddlewareWithoutCookie(t *testing.T) {
	auth := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	w := httptest.NewRecorder()
	auth.Middleware(next).ServeHTTP(w, req)

	if nextCalled {
		t.Error("next handler should not be called without cookie")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddlewareWithTamperedCookie(t *testing.T) {
	auth := NewAuthMiddleware("test-secret")
	other := NewAuthMiddleware("different-secret")

	value := other.SignCaller(Caller{
		ManagerID:      "mgr-42",
		Hall:           "north",
		Role:           "manager",
		ComplaintToken: "token-abc",
	})

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.AddCookie(&http.Cookie{Name: "mess_auth", Value: value})

	w := httptest.NewRecorder()
	auth.Middleware(next).ServeHTTP(w, req)

	if nextCalled {
		t.Error("next handler should not be called with tampered cookie")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddlewareRejectsEmptyIdentity(t *testing.T) {
	auth := NewAuthMiddleware("test-secret")

	value := auth.SignCaller(Caller{ManagerID: "", Hall: "north"})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called for empty manager id")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.AddCookie(&http.Cookie{Name: "mess_auth", Value: value})

	w := httptest.NewRecorder()
	auth.Middleware(next).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
