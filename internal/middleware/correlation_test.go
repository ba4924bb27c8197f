package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCorrelationID(t *testing.T) {
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := r.Context().Value(CorrelationKey).(string)
		if !ok || id == "" {
			t.Error("correlation id missing from context")
		}
	}))

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("header missing")
	}
}

func TestCorrelationID_KeepsIncoming(t *testing.T) {
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := GetCorrelationID(r.Context()); got != "abc-123" {
			t.Errorf("expected incoming id, got %q", got)
		}
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestUserID(t *testing.T) {
	var got string
	handler := UserID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetUserID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-User-ID", "user-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "user-42" {
		t.Errorf("expected user-42, got %q", got)
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if got != AnonymousUser {
		t.Errorf("expected anonymous fallback, got %q", got)
	}
}

func TestCourseID(t *testing.T) {
	ctx := WithCourseID(context.Background(), "course-1")
	if GetCourseID(ctx) != "course-1" {
		t.Error("course id not stored")
	}
	if GetCourseID(context.Background()) != "" {
		t.Error("expected empty course id")
	}
}
