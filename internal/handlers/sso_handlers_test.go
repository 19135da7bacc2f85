package handlers

import (
	"net/http"
	"strings"
	"testing"
)

func TestSSOEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("GET /api/sso/providers is empty when nothing is configured", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/sso/providers", nil, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if providers := body["data"].([]any); len(providers) != 0 {
			t.Fatalf("expected no providers, got %+v", providers)
		}
	})

	t.Run("login with unconfigured provider is rejected", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/sso/google/login", nil, nil)
		assertStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("unknown provider is rejected", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/sso/myspace/login", nil, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "unknown oauth provider: myspace")
	})

	t.Run("callback with forged state bounces to the login page", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/sso/google/callback?state=forged&code=abc", nil, nil)
		assertStatus(t, resp, http.StatusTemporaryRedirect)
		location := resp.Header.Get("Location")
		if !strings.Contains(location, "/login?error=state_invalid") {
			t.Fatalf("expected state_invalid redirect, got %q", location)
		}
	})

	t.Run("callback with provider error bounces without touching state", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/sso/google/callback?error=access_denied", nil, nil)
		assertStatus(t, resp, http.StatusTemporaryRedirect)
		location := resp.Header.Get("Location")
		if !strings.Contains(location, "error=provider_denied") {
			t.Fatalf("expected provider_denied redirect, got %q", location)
		}
	})

	t.Run("ldap login is rejected while disabled", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/sso/ldap/login", map[string]any{
			"username": "jdoe",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "ldap is not enabled")
	})
}
