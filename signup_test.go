package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"lg/life-dashboard-api/internal/identity"
)

func authRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.GET("/api/health", h.health)
	router.POST("/api/auth/signup", h.signup)
	router.POST("/api/auth/verify-email", h.verifyEmail)
	router.POST("/api/auth/google", h.googleAuth)
	return router
}

func TestHealth(t *testing.T) {
	router := authRouter(newTestHandler())
	w := doJSON(router, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSignup_RejectsBadInput(t *testing.T) {
	router := authRouter(newTestHandler())

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			"weak password",
			`{"first_name":"Ada","last_name":"L","email":"ada@example.com","password":"password","confirm_password":"password"}`,
			"password",
		},
		{
			"confirmation mismatch",
			`{"first_name":"Ada","last_name":"L","email":"ada@example.com","password":"Secret#123","confirm_password":"Secret#124"}`,
			"confirm_password",
		},
		{
			"bad email",
			`{"first_name":"Ada","last_name":"L","email":"not-an-email","password":"Secret#123","confirm_password":"Secret#123"}`,
			"email",
		},
		{
			"missing names",
			`{"email":"ada@example.com","password":"Secret#123","confirm_password":"Secret#123"}`,
			"first_name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, "POST", "/api/auth/signup", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			fields, _ := decodeBody(t, w)["fields"].(map[string]any)
			if _, ok := fields[tt.field]; !ok {
				t.Errorf("expected an error on %q, got %v", tt.field, fields)
			}
		})
	}
}

func TestVerifyEmail_CodeChecks(t *testing.T) {
	h := newTestHandler()
	router := authRouter(h)

	w := doJSON(router, "POST", "/api/auth/verify-email", `{"email":"ada@example.com","code":"123456"}`)
	if w.Code != http.StatusBadRequest || decodeBody(t, w)["error"] != "verification code expired or invalid" {
		t.Fatalf("no cached code: %d %s", w.Code, w.Body.String())
	}

	h.codes.Set(identity.VerificationKey("ada@example.com"), "654321", time.Minute)
	w = doJSON(router, "POST", "/api/auth/verify-email", `{"email":"ada@example.com","code":"123456"}`)
	if w.Code != http.StatusBadRequest || decodeBody(t, w)["error"] != "invalid verification code" {
		t.Fatalf("wrong code: %d %s", w.Code, w.Body.String())
	}
	if _, ok := h.codes.Get(identity.VerificationKey("ada@example.com")); !ok {
		t.Error("a wrong guess should not consume the code")
	}

	w = doJSON(router, "POST", "/api/auth/verify-email", `{"email":"ada@example.com","code":"12ab"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed code: expected 400, got %d", w.Code)
	}
}

func TestGoogleAuth_UpstreamRejections(t *testing.T) {
	var status int
	var body string
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	defer google.Close()

	h := newTestHandler()
	h.google = identity.NewGoogleClient(google.URL)
	router := authRouter(h)

	tests := []struct {
		name    string
		status  int
		body    string
		code    int
		message string
	}{
		{"token refused", http.StatusUnauthorized, `{"error":"invalid_token"}`, http.StatusBadRequest, "invalid access token"},
		{"no email", http.StatusOK, `{"id":"1","given_name":"Ada"}`, http.StatusBadRequest, "email not provided by google"},
		{"garbage", http.StatusOK, `<html>`, http.StatusBadGateway, "failed to verify token with google"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body = tt.status, tt.body
			w := doJSON(router, "POST", "/api/auth/google", `{"access_token":"tok"}`)
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
			if got := decodeBody(t, w)["error"]; got != tt.message {
				t.Errorf("error = %v, want %q", got, tt.message)
			}
		})
	}

	w := doJSON(router, "POST", "/api/auth/google", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing token: expected 400, got %d", w.Code)
	}
}
