package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/garagehub/backend/internal/config"
	"github.com/garagehub/backend/internal/models"
	"github.com/garagehub/backend/pkg/logger"
	"github.com/garagehub/backend/pkg/utils"
	"golang.org/x/oauth2"
	github "golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

// ErrStateInvalid covers a missing, expired, already-consumed or foreign
// nonce; callers restart the flow without revealing which case occurred.
var ErrStateInvalid = errors.New("authentication state is invalid or expired")

type OAuthProviderService struct {
	Cfg *config.Config
	DB  *gorm.DB
}

func NewOAuthProviderService(cfg *config.Config, db *gorm.DB) *OAuthProviderService {
	return &OAuthProviderService{Cfg: cfg, DB: db}
}

func (s *OAuthProviderService) GetOAuthConfig(provider string) (*oauth2.Config, string, error) {
	switch strings.ToLower(provider) {
	case "google":
		if !s.Cfg.SSO.Google.Enabled {
			return nil, "", errors.New("google oauth is not enabled")
		}
		return &oauth2.Config{
			ClientID:     s.Cfg.SSO.Google.ClientID,
			ClientSecret: s.Cfg.SSO.Google.ClientSecret,
			RedirectURL:  s.Cfg.SSO.Google.RedirectURL,
			Scopes:       strings.Split(s.Cfg.SSO.Google.Scopes, ","),
			Endpoint:     google.Endpoint,
		}, "google", nil

	case "github":
		if !s.Cfg.SSO.GitHub.Enabled {
			return nil, "", errors.New("github oauth is not enabled")
		}
		return &oauth2.Config{
			ClientID:     s.Cfg.SSO.GitHub.ClientID,
			ClientSecret: s.Cfg.SSO.GitHub.ClientSecret,
			RedirectURL:  s.Cfg.SSO.GitHub.RedirectURL,
			Scopes:       strings.Split(s.Cfg.SSO.GitHub.Scopes, ","),
			Endpoint:     github.Endpoint,
		}, "github", nil

	case "oidc":
		if !s.Cfg.SSO.OIDC.Enabled {
			return nil, "", errors.New("oidc is not enabled")
		}
		issuer := strings.TrimRight(s.Cfg.SSO.OIDC.IssuerURL, "/")
		endpoint := oauth2.Endpoint{
			AuthURL:  issuer + "/authorize",
			TokenURL: issuer + "/token",
		}
		return &oauth2.Config{
			ClientID:     s.Cfg.SSO.OIDC.ClientID,
			ClientSecret: s.Cfg.SSO.OIDC.ClientSecret,
			RedirectURL:  s.Cfg.SSO.OIDC.RedirectURL,
			Scopes:       strings.Split(s.Cfg.SSO.OIDC.Scopes, ","),
			Endpoint:     endpoint,
		}, "oidc", nil

	default:
		return nil, "", errors.New("unknown oauth provider: " + provider)
	}
}

// IssueState persists a one-time nonce bound to the provider and returns it
// for use as the oauth2 state parameter.
func (s *OAuthProviderService) IssueState(ctx context.Context, provider string) (string, error) {
	nonce, err := utils.RandomSecret(32)
	if err != nil {
		return "", err
	}

	state := models.OAuthState{
		Provider:  provider,
		Nonce:     nonce,
		ExpiresAt: time.Now().UTC().Add(s.Cfg.SSO.StateLifetime),
	}
	if err := s.DB.WithContext(ctx).Create(&state).Error; err != nil {
		return "", err
	}
	return nonce, nil
}

// ConsumeState validates the callback nonce and burns it. Expired leftovers
// from abandoned flows are swept on the same trip.
func (s *OAuthProviderService) ConsumeState(ctx context.Context, provider, nonce string) error {
	if strings.TrimSpace(nonce) == "" {
		return ErrStateInvalid
	}

	now := time.Now().UTC()
	var state models.OAuthState
	err := s.DB.WithContext(ctx).Where("nonce = ?", nonce).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStateInvalid
		}
		return err
	}

	// One-time use regardless of outcome.
	if err := s.DB.WithContext(ctx).Delete(&state).Error; err != nil {
		return err
	}
	s.DB.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.OAuthState{})

	if state.Provider != provider || state.Expired(now) {
		return ErrStateInvalid
	}
	return nil
}

func (s *OAuthProviderService) ExchangeCode(ctx context.Context, provider string, code string) (*oauth2.Token, error) {
	oauthCfg, _, err := s.GetOAuthConfig(provider)
	if err != nil {
		return nil, err
	}

	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		logger.Warn("oauth_exchange_failed", map[string]interface{}{
			"provider": provider,
			"error":    err.Error(),
		})
		return nil, errors.New("failed to exchange code for token")
	}
	return token, nil
}

func (s *OAuthProviderService) GetUserInfo(ctx context.Context, provider string, token *oauth2.Token) (*SSOProfile, error) {
	oauthCfg, name, err := s.GetOAuthConfig(provider)
	if err != nil {
		return nil, err
	}
	client := oauthCfg.Client(ctx, token)

	switch name {
	case "google":
		return s.getGoogleUserInfo(client)
	case "github":
		return s.getGitHubUserInfo(client)
	default:
		return s.getOIDCUserInfo(client)
	}
}

func (s *OAuthProviderService) getGoogleUserInfo(client *http.Client) (*SSOProfile, error) {
	data, err := fetchJSON(client, "https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, err
	}

	email, _ := data["email"].(string)
	id, _ := data["id"].(string)
	name, _ := data["name"].(string)
	picture, _ := data["picture"].(string)
	if email == "" {
		return nil, ErrSSOEmailMissing
	}

	return &SSOProfile{
		Provider:       "google",
		ProviderUserID: id,
		Email:          email,
		Name:           name,
		AvatarURL:      optionalString(picture),
	}, nil
}

func (s *OAuthProviderService) getGitHubUserInfo(client *http.Client) (*SSOProfile, error) {
	data, err := fetchJSON(client, "https://api.github.com/user")
	if err != nil {
		return nil, err
	}

	email, _ := data["email"].(string)
	if email == "" {
		email = primaryGitHubEmail(client)
	}
	if email == "" {
		return nil, ErrSSOEmailMissing
	}

	name, _ := data["name"].(string)
	if name == "" {
		name, _ = data["login"].(string)
	}
	avatar, _ := data["avatar_url"].(string)
	id, _ := data["id"].(float64)

	return &SSOProfile{
		Provider:       "github",
		ProviderUserID: fmt.Sprintf("%.0f", id),
		Email:          email,
		Name:           name,
		AvatarURL:      optionalString(avatar),
	}, nil
}

func primaryGitHubEmail(client *http.Client) string {
	resp, err := client.Get("https://api.github.com/user/emails")
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if json.NewDecoder(resp.Body).Decode(&emails) != nil {
		return ""
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	return ""
}

func (s *OAuthProviderService) getOIDCUserInfo(client *http.Client) (*SSOProfile, error) {
	issuer := strings.TrimRight(s.Cfg.SSO.OIDC.IssuerURL, "/")
	data, err := fetchJSON(client, issuer+"/userinfo")
	if err != nil {
		return nil, err
	}

	sub, _ := data["sub"].(string)
	if sub == "" {
		return nil, errors.New("oidc: subject claim is required")
	}
	email, _ := data["email"].(string)
	if email == "" {
		return nil, ErrSSOEmailMissing
	}
	name, _ := data["name"].(string)
	picture, _ := data["picture"].(string)

	return &SSOProfile{
		Provider:       "oidc",
		ProviderUserID: sub,
		Email:          email,
		Name:           name,
		AvatarURL:      optionalString(picture),
	}, nil
}

func fetchJSON(client *http.Client, url string) (map[string]interface{}, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("identity provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var data map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
