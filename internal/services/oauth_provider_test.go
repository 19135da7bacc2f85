package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garagehub/backend/internal/config"
	"github.com/garagehub/backend/internal/models"
)

func stateTestConfig() *config.Config {
	return &config.Config{
		SSO: config.SSOConfig{
			Google: config.OAuthProviderConfig{
				Enabled:      true,
				ClientID:     "google-client-id",
				ClientSecret: "google-secret",
				RedirectURL:  "http://localhost:8080/api/sso/google/callback",
				Scopes:       "openid,email,profile",
			},
			StateLifetime: 10 * time.Minute,
		},
	}
}

func TestGetOAuthConfig(t *testing.T) {
	svc := NewOAuthProviderService(stateTestConfig(), nil)

	t.Run("returns config for enabled provider", func(t *testing.T) {
		oauthCfg, name, err := svc.GetOAuthConfig("google")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if name != "google" {
			t.Fatalf("expected provider name google, got %s", name)
		}
		if oauthCfg.ClientID != "google-client-id" {
			t.Fatalf("expected client id from config, got %s", oauthCfg.ClientID)
		}
		if len(oauthCfg.Scopes) != 3 {
			t.Fatalf("expected three scopes, got %v", oauthCfg.Scopes)
		}
	})

	t.Run("disabled provider is rejected", func(t *testing.T) {
		if _, _, err := svc.GetOAuthConfig("github"); err == nil {
			t.Fatal("expected error for disabled provider")
		}
	})

	t.Run("oidc endpoints derive from the issuer", func(t *testing.T) {
		cfg := stateTestConfig()
		cfg.SSO.OIDC = config.OAuthProviderConfig{
			Enabled:   true,
			ClientID:  "oidc-client",
			Scopes:    "openid,email",
			IssuerURL: "https://id.example.com/",
		}
		oauthCfg, _, err := NewOAuthProviderService(cfg, nil).GetOAuthConfig("oidc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if oauthCfg.Endpoint.AuthURL != "https://id.example.com/authorize" {
			t.Fatalf("unexpected auth url %s", oauthCfg.Endpoint.AuthURL)
		}
		if oauthCfg.Endpoint.TokenURL != "https://id.example.com/token" {
			t.Fatalf("unexpected token url %s", oauthCfg.Endpoint.TokenURL)
		}
	})
}

func TestStateLifecycle(t *testing.T) {
	db := openTestDB(t)
	svc := NewOAuthProviderService(stateTestConfig(), db)
	ctx := context.Background()

	t.Run("issued state is consumed exactly once", func(t *testing.T) {
		nonce, err := svc.IssueState(ctx, "google")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if nonce == "" {
			t.Fatal("expected non-empty nonce")
		}

		if err := svc.ConsumeState(ctx, "google", nonce); err != nil {
			t.Fatalf("first consumption must succeed: %v", err)
		}
		if err := svc.ConsumeState(ctx, "google", nonce); !errors.Is(err, ErrStateInvalid) {
			t.Fatalf("replayed nonce must be invalid, got %v", err)
		}
	})

	t.Run("nonce is bound to the provider", func(t *testing.T) {
		nonce, err := svc.IssueState(ctx, "google")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := svc.ConsumeState(ctx, "github", nonce); !errors.Is(err, ErrStateInvalid) {
			t.Fatalf("cross-provider nonce must be invalid, got %v", err)
		}
		// Burned by the failed attempt, unusable for the right provider too.
		if err := svc.ConsumeState(ctx, "google", nonce); !errors.Is(err, ErrStateInvalid) {
			t.Fatalf("nonce must be one-time regardless of outcome, got %v", err)
		}
	})

	t.Run("expired state is rejected and swept", func(t *testing.T) {
		nonce, err := svc.IssueState(ctx, "google")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		stale := time.Now().UTC().Add(-time.Minute)
		if err := db.Model(&models.OAuthState{}).Where("nonce = ?", nonce).Update("expires_at", stale).Error; err != nil {
			t.Fatalf("failed backdating state: %v", err)
		}

		if err := svc.ConsumeState(ctx, "google", nonce); !errors.Is(err, ErrStateInvalid) {
			t.Fatalf("expired nonce must be invalid, got %v", err)
		}
	})

	t.Run("unknown and empty nonces are invalid", func(t *testing.T) {
		if err := svc.ConsumeState(ctx, "google", "no-such-nonce"); !errors.Is(err, ErrStateInvalid) {
			t.Fatalf("unknown nonce must be invalid, got %v", err)
		}
		if err := svc.ConsumeState(ctx, "google", ""); !errors.Is(err, ErrStateInvalid) {
			t.Fatalf("empty nonce must be invalid, got %v", err)
		}
	})

	t.Run("nonces are unique", func(t *testing.T) {
		first, _ := svc.IssueState(ctx, "google")
		second, _ := svc.IssueState(ctx, "google")
		if first == second {
			t.Fatal("expected unique nonces")
		}
	})
}
