// AngelaMos | 2026
// middleware_test.go

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"

	"github.com/carterperez-dev/taskmanager/internal/config"
	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/policy"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

type stubVerifier struct {
	claims *AccessTokenClaims
	err    error
}

func (s stubVerifier) VerifyAccessToken(context.Context, string) (*AccessTokenClaims, error) {
	return s.claims, s.err
}

type stubResolver map[string]*policy.Actor

func (s stubResolver) ResolveActor(_ context.Context, id string) (*policy.Actor, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return nil, core.ErrUnauthorized
}

func TestChain(t *testing.T) {
	const uid = "00000000-0000-0000-0000-000000000001"
	resolver := stubResolver{uid: {ID: uid, Role: policy.RoleManager}}

	var seen *policy.Actor
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetActor(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		header   string
		verifier stubVerifier
		want     int
	}{
		{"no token", "", stubVerifier{}, http.StatusUnauthorized},
		{"revoked", "Bearer x", stubVerifier{err: core.ErrTokenRevoked}, http.StatusUnauthorized},
		{"deleted user", "Bearer x", stubVerifier{claims: &AccessTokenClaims{UserID: "gone"}}, http.StatusUnauthorized},
		{"ok", "Bearer x", stubVerifier{claims: &AccessTokenClaims{UserID: uid, Role: policy.RoleMember}}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Chain(tt.verifier, resolver)(capture).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && (seen == nil || seen.Role != policy.RoleManager) {
				t.Errorf("actor = %+v, want stored manager role", seen)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		actor *policy.Actor
		want  int
	}{
		{nil, http.StatusUnauthorized},
		{&policy.Actor{ID: "m", Role: policy.RoleMember}, http.StatusForbidden},
		{&policy.Actor{ID: "g", Role: policy.RoleManager}, http.StatusOK},
		{&policy.Actor{ID: "a", Role: policy.RoleAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.actor != nil {
			req = req.WithContext(WithActor(req.Context(), tt.actor))
		}
		rec := httptest.NewRecorder()

		RequireRole(policy.RoleManager)(okHandler).ServeHTTP(rec, req)

		if rec.Code != tt.want {
			t.Errorf("actor %+v: status = %d, want %d", tt.actor, rec.Code, tt.want)
		}
	}
}

func TestRequestID(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got != "abc-123" || rec.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("propagated id = %q, header = %q", got, rec.Header().Get(RequestIDHeader))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got == "" || got == "abc-123" {
		t.Fatalf("generated id = %q", got)
	}
}

func TestRateLimiterLocalFallbackByRole(t *testing.T) {
	base := redis_rate.Limit{Rate: 2, Burst: 2, Period: time.Minute}
	rl := NewRateLimiter(nil, RateLimitConfig{
		Limit:      base,
		RoleLimits: RoleLimits(base),
		KeyFunc:    KeyByActor,
		FailOpen:   true,
	})
	h := rl.Handler(okHandler)

	send := func(a *policy.Actor) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithActor(req.Context(), a))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	member := &policy.Actor{ID: "member-1", Role: policy.RoleMember}
	admin := &policy.Actor{ID: "admin-1", Role: policy.RoleAdmin}

	for i := range 2 {
		if code := send(member); code != http.StatusOK {
			t.Fatalf("member request %d: status = %d", i+1, code)
		}
	}
	if code := send(member); code != http.StatusTooManyRequests {
		t.Fatalf("member third request: status = %d, want 429", code)
	}

	for i := range 3 {
		if code := send(admin); code != http.StatusOK {
			t.Fatalf("admin request %d: status = %d", i+1, code)
		}
	}
}

func TestCORS(t *testing.T) {
	h := CORS(config.CORSConfig{
		AllowedOrigins: []string{"https://app.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/v1/tasks", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Errorf("allow origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
	if rec.Header().Get("Access-Control-Max-Age") != "300" {
		t.Errorf("max age = %q", rec.Header().Get("Access-Control-Max-Age"))
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin received CORS headers")
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{200: "2xx", 204: "2xx", 301: "3xx", 404: "4xx", 503: "5xx"}
	for code, want := range cases {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %s, want %s", code, got, want)
		}
	}
}

func TestHandleAuthErrorCodes(t *testing.T) {
	rec := httptest.NewRecorder()
	handleAuthError(rec, fmt.Errorf("parse: %w", core.ErrTokenExpired))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), core.CodeTokenExpired) {
		t.Errorf("body = %s, want %s", rec.Body.String(), core.CodeTokenExpired)
	}
}
