package handlers

import (
	"net/http"
	"testing"

	"github.com/garagehub/backend/internal/models"
)

func TestRegisterEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("POST /api/auth/register creates account with frontend role", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"username":    "new-member",
			"phoneNumber": "0888123456",
			"email":       "new-member@test.com",
			"password":    "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)

		data := body["data"].(map[string]any)
		if data["username"] != "new-member" {
			t.Fatalf("expected username in response, got %+v", data)
		}
		if _, hasHash := data["passwordHash"]; hasHash {
			t.Fatalf("password hash must never be serialized")
		}

		var user models.User
		if err := env.db.Preload("Roles").Where("username = ?", "new-member").First(&user).Error; err != nil {
			t.Fatalf("expected user row: %v", err)
		}
		if !user.HasRole(models.RoleFrontendUser) {
			t.Fatalf("expected frontend_user role, got %+v", user.Roles)
		}
	})

	t.Run("duplicate phone number is rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"username":    "other-member",
			"phoneNumber": "0888123456",
			"email":       "other-member@test.com",
			"password":    "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, body, "phone number already registered")
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"username":    "other-member",
			"phoneNumber": "0888999888",
			"email":       "new-member@test.com",
			"password":    "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, body, "email already registered")
	})

	t.Run("short password is rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"username":    "weak-member",
			"phoneNumber": "0888777666",
			"email":       "weak@test.com",
			"password":    "123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "password must be at least 6 characters")
	})

	t.Run("invalid phone is rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"username":    "bad-phone",
			"phoneNumber": "abc",
			"email":       "bad-phone@test.com",
			"password":    "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "invalid phone number")
	})
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	user, _ := createTestUser(t, env.db, "login-user", "0899111222", "password123", models.RoleFrontendUser)

	t.Run("valid credentials return a token", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"phoneNumber": "0899111222",
			"password":    "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		data := body["data"].(map[string]any)
		token, _ := data["token"].(string)
		if token == "" {
			t.Fatalf("expected token in login response")
		}

		meResp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(token))
		assertStatus(t, meResp, http.StatusOK)
		meBody := decodeJSONMap(t, meResp)
		meData := meBody["data"].(map[string]any)
		if pending, _ := meData["phonePending"].(bool); pending {
			t.Fatalf("regular account must not be phone-pending")
		}
	})

	t.Run("wrong password returns generic error", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"phoneNumber": "0899111222",
			"password":    "wrong-password",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "invalid credentials")
	})

	t.Run("unknown phone returns the same generic error", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"phoneNumber": "0000000000",
			"password":    "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "invalid credentials")
	})

	t.Run("deactivated account cannot log in", func(t *testing.T) {
		if err := env.db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false).Error; err != nil {
			t.Fatalf("failed deactivating user: %v", err)
		}
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"phoneNumber": "0899111222",
			"password":    "password123",
		}, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "invalid credentials")
	})
}

func TestProfileEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "profile-user", "0877000111", "password123", models.RoleFrontendUser)
	_, _ = createTestUser(t, env.db, "profile-other", "0877000222", "password123", models.RoleFrontendUser)

	t.Run("PUT /api/auth/me updates biography", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/me", map[string]any{
			"biography": "Fixing gearboxes since 2009.",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := body["data"].(map[string]any)
		user := data["user"].(map[string]any)
		if user["biography"] != "Fixing gearboxes since 2009." {
			t.Fatalf("expected updated biography, got %+v", user)
		}
	})

	t.Run("PUT /api/auth/me rejects taken phone number", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/me", map[string]any{
			"phoneNumber": "0877000222",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, body, "phone number already registered")
	})

	t.Run("PUT /api/auth/password requires correct current password", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/password", map[string]any{
			"currentPassword": "nope",
			"newPassword":     "password456",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "invalid credentials")
	})

	t.Run("PUT /api/auth/password rotates the password", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/password", map[string]any{
			"currentPassword": "password123",
			"newPassword":     "password456",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		loginResp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"phoneNumber": "0877000111",
			"password":    "password456",
		}, nil)
		assertStatus(t, loginResp, http.StatusOK)
	})
}

func TestPhonePendingGate(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "pending-mechanic", models.PlaceholderPhonePrefix+"abc123", "password123", models.RoleMechanic)

	t.Run("placeholder phone blocks gated routes", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/cars/", map[string]any{
			"registrationNumber": "CA1234BH",
			"ownerName":          "Ivan",
			"ownerPhone":         "0888555666",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, body, "phone number required")
	})

	t.Run("profile completion stays reachable", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/me", map[string]any{
			"phoneNumber": "0898333444",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		data := body["data"].(map[string]any)
		if pending, _ := data["phonePending"].(bool); pending {
			t.Fatalf("expected phonePending=false after completion")
		}
	})

	t.Run("gated route opens after completion", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/cars/", map[string]any{
			"registrationNumber": "CA1234BH",
			"ownerName":          "Ivan",
			"ownerPhone":         "0888555666",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusCreated)
	})
}
