package handlers

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/garagehub/backend/internal/config"
	"github.com/garagehub/backend/internal/models"
	"github.com/garagehub/backend/internal/services"
	"github.com/garagehub/backend/pkg/logger"
	"github.com/garagehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type SSOHandler struct {
	Cfg      *config.Config
	Provider *services.OAuthProviderService
	SSO      *services.SSOService
	LDAP     *services.LDAPService
	Audit    *services.AuditService
}

func NewSSOHandler(cfg *config.Config, provider *services.OAuthProviderService, sso *services.SSOService, ldap *services.LDAPService, audit *services.AuditService) *SSOHandler {
	return &SSOHandler{Cfg: cfg, Provider: provider, SSO: sso, LDAP: ldap, Audit: audit}
}

// ListProviders tells the login page which federated options to render.
func (h *SSOHandler) ListProviders(c *fiber.Ctx) error {
	providers := []fiber.Map{}
	if h.Cfg.SSO.Google.Enabled {
		providers = append(providers, fiber.Map{"name": "google", "displayName": "Google"})
	}
	if h.Cfg.SSO.GitHub.Enabled {
		providers = append(providers, fiber.Map{"name": "github", "displayName": "GitHub"})
	}
	if h.Cfg.SSO.OIDC.Enabled {
		providers = append(providers, fiber.Map{"name": "oidc", "displayName": "Single Sign-On"})
	}
	if h.LDAP.IsEnabled() {
		providers = append(providers, fiber.Map{"name": "ldap", "displayName": "Directory Login"})
	}
	return utils.Success(c, fiber.StatusOK, providers)
}

// Login starts the authorization-code flow: mint a one-time state nonce and
// bounce the browser to the provider's consent screen.
func (h *SSOHandler) Login(c *fiber.Ctx) error {
	provider := strings.ToLower(c.Params("provider"))

	oauthCfg, name, err := h.Provider.GetOAuthConfig(provider)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	nonce, err := h.Provider.IssueState(c.Context(), name)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed starting sign-in")
	}

	logger.Info("sso_login_started", map[string]interface{}{
		"provider": name,
	})

	return c.Redirect(oauthCfg.AuthCodeURL(nonce), fiber.StatusTemporaryRedirect)
}

// Callback completes the flow: burn the state, trade the code for a token,
// fetch the profile, find or provision the account and hand the browser back
// to the frontend with a session token. All failures land on the frontend's
// login page with a coarse error code; details stay in the server log.
func (h *SSOHandler) Callback(c *fiber.Ctx) error {
	provider := strings.ToLower(c.Params("provider"))

	if errCode := c.Query("error"); errCode != "" {
		logger.Warn("sso_provider_error", map[string]interface{}{
			"provider": provider,
			"error":    errCode,
		})
		return h.redirectWithError(c, "provider_denied")
	}

	if err := h.Provider.ConsumeState(c.Context(), provider, c.Query("state")); err != nil {
		if errors.Is(err, services.ErrStateInvalid) {
			return h.redirectWithError(c, "state_invalid")
		}
		logger.Error("sso_state_check_failed", err, map[string]interface{}{"provider": provider})
		return h.redirectWithError(c, "sso_failed")
	}

	code := c.Query("code")
	if code == "" {
		return h.redirectWithError(c, "sso_failed")
	}

	token, err := h.Provider.ExchangeCode(c.Context(), provider, code)
	if err != nil {
		logger.Error("sso_exchange_failed", err, map[string]interface{}{"provider": provider})
		return h.redirectWithError(c, "sso_failed")
	}

	profile, err := h.Provider.GetUserInfo(c.Context(), provider, token)
	if err != nil {
		logger.Error("sso_userinfo_failed", err, map[string]interface{}{"provider": provider})
		return h.redirectWithError(c, "sso_failed")
	}

	return h.completeLogin(c, profile, true)
}

// LDAPLogin authenticates username/password against the directory and then
// runs the same find-or-provision path as the OAuth providers.
func (h *SSOHandler) LDAPLogin(c *fiber.Ctx) error {
	if !h.LDAP.IsEnabled() {
		return utils.Error(c, fiber.StatusBadRequest, "ldap is not enabled")
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "username and password are required")
	}

	profile, err := h.LDAP.Authenticate(c.Context(), req.Username, req.Password)
	if err != nil {
		logger.Warn("ldap_login_failed", map[string]interface{}{
			"username": req.Username,
			"ip":       c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	return h.completeLogin(c, profile, false)
}

// completeLogin is shared by the browser-redirect and JSON flows. redirect
// controls whether the result goes back as a frontend redirect (OAuth) or a
// JSON body (LDAP).
func (h *SSOHandler) completeLogin(c *fiber.Ctx, profile *services.SSOProfile, redirect bool) error {
	user, err := h.SSO.FindOrCreateUser(c.Context(), profile)
	if err != nil {
		if errors.Is(err, services.ErrSSOEmailMissing) {
			if redirect {
				return h.redirectWithError(c, "email_missing")
			}
			return utils.Error(c, fiber.StatusBadRequest, err.Error())
		}
		logger.Error("sso_account_binding_failed", err, map[string]interface{}{
			"provider": profile.Provider,
		})
		if redirect {
			return h.redirectWithError(c, "sso_failed")
		}
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := utils.GenerateToken(user.ID, user.PhoneNumber, false)
	if err != nil {
		if redirect {
			return h.redirectWithError(c, "sso_failed")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed issuing token")
	}

	h.Audit.LogAsync(auditFor(c, user, "sso_login", models.AuditResourceSession, &user.ID, map[string]interface{}{
		"provider": profile.Provider,
	}))
	logger.InfoWithUser(user.ID.String(), "sso_login_succeeded", map[string]interface{}{
		"provider":      profile.Provider,
		"phone_pending": user.PhonePending(),
	})

	if redirect {
		target := strings.TrimRight(h.Cfg.Server.FrontendURL, "/") + "/sso/complete" +
			"?token=" + url.QueryEscape(token) +
			"&phonePending=" + strconv.FormatBool(user.PhonePending())
		return c.Redirect(target, fiber.StatusTemporaryRedirect)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token":        token,
		"user":         user,
		"phonePending": user.PhonePending(),
	})
}

func (h *SSOHandler) redirectWithError(c *fiber.Ctx, code string) error {
	target := strings.TrimRight(h.Cfg.Server.FrontendURL, "/") + "/login?error=" + url.QueryEscape(code)
	return c.Redirect(target, fiber.StatusTemporaryRedirect)
}
