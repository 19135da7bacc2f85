package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/garagehub/backend/internal/config"
	"github.com/garagehub/backend/pkg/logger"
	"github.com/go-ldap/ldap/v3"
)

// LDAPService authenticates against a corporate directory: service bind,
// subtree search for the user entry, then a bind as the entry itself.
type LDAPService struct {
	Cfg *config.Config
}

func NewLDAPService(cfg *config.Config) *LDAPService {
	return &LDAPService{Cfg: cfg}
}

func (s *LDAPService) IsEnabled() bool {
	return s.Cfg != nil && s.Cfg.LDAP.Enabled
}

func (s *LDAPService) Authenticate(ctx context.Context, username, password string) (*SSOProfile, error) {
	if !s.IsEnabled() {
		return nil, errors.New("LDAP is not enabled")
	}
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	cfg := s.Cfg.LDAP
	conn, err := ldap.DialURL(cfg.URL)
	if err != nil {
		logger.Warn("ldap_dial_failed", map[string]interface{}{
			"url":   cfg.URL,
			"error": err.Error(),
		})
		return nil, errors.New("directory unavailable")
	}
	defer conn.Close()

	if cfg.BindDN != "" {
		if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			logger.Warn("ldap_service_bind_failed", map[string]interface{}{"error": err.Error()})
			return nil, errors.New("directory unavailable")
		}
	}

	filter := fmt.Sprintf(cfg.UserFilter, ldap.EscapeFilter(username))
	searchReq := ldap.NewSearchRequest(
		cfg.SearchBase,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1, 0, false,
		filter,
		[]string{"dn", cfg.EmailAttr, cfg.NameAttr},
		nil,
	)

	result, err := conn.Search(searchReq)
	if err != nil || len(result.Entries) != 1 {
		// Same answer for "not found" and "search failed": no account oracle.
		return nil, errors.New("invalid credentials")
	}
	entry := result.Entries[0]

	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, errors.New("invalid credentials")
	}

	email := entry.GetAttributeValue(cfg.EmailAttr)
	name := entry.GetAttributeValue(cfg.NameAttr)
	if name == "" {
		name = username
	}

	logger.Info("ldap_auth_success", map[string]interface{}{
		"username": username,
	})

	return &SSOProfile{
		Provider:       "ldap",
		ProviderUserID: entry.DN,
		Email:          email,
		Name:           name,
	}, nil
}
