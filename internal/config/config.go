package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DB          DBConfig
	MinIO       MinIOConfig
	JWT         JWTConfig
	Server      ServerConfig
	SSO         SSOConfig
	LDAP        LDAPConfig
	Transcriber TranscriberConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port        string
	FrontendURL string
}

type OAuthProviderConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       string
	// IssuerURL is only used by the generic OIDC provider; authorize, token and
	// userinfo endpoints are derived from it.
	IssuerURL string
}

type SSOConfig struct {
	Google        OAuthProviderConfig
	GitHub        OAuthProviderConfig
	OIDC          OAuthProviderConfig
	StateLifetime time.Duration
}

type LDAPConfig struct {
	Enabled      bool
	URL          string
	BindDN       string
	BindPassword string
	SearchBase   string
	UserFilter   string
	EmailAttr    string
	NameAttr     string
}

type TranscriberConfig struct {
	URL     string
	Timeout time.Duration
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "garagehub"),
			Password: getEnv("DB_PASSWORD", "garagehub_secret"),
			Name:     getEnv("DB_NAME", "garagehub"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "garagehub"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "garagehub_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "garagehub"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3001"),
		},
		SSO: SSOConfig{
			Google: OAuthProviderConfig{
				Enabled:      getEnvAsBool("SSO_GOOGLE_ENABLED", false),
				ClientID:     getEnv("SSO_GOOGLE_CLIENT_ID", ""),
				ClientSecret: getEnv("SSO_GOOGLE_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("SSO_GOOGLE_REDIRECT_URL", ""),
				Scopes:       getEnv("SSO_GOOGLE_SCOPES", "openid,email,profile"),
			},
			GitHub: OAuthProviderConfig{
				Enabled:      getEnvAsBool("SSO_GITHUB_ENABLED", false),
				ClientID:     getEnv("SSO_GITHUB_CLIENT_ID", ""),
				ClientSecret: getEnv("SSO_GITHUB_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("SSO_GITHUB_REDIRECT_URL", ""),
				Scopes:       getEnv("SSO_GITHUB_SCOPES", "read:user,user:email"),
			},
			OIDC: OAuthProviderConfig{
				Enabled:      getEnvAsBool("SSO_OIDC_ENABLED", false),
				ClientID:     getEnv("SSO_OIDC_CLIENT_ID", ""),
				ClientSecret: getEnv("SSO_OIDC_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("SSO_OIDC_REDIRECT_URL", ""),
				Scopes:       getEnv("SSO_OIDC_SCOPES", "openid,email,profile"),
				IssuerURL:    getEnv("SSO_OIDC_ISSUER_URL", ""),
			},
			StateLifetime: getEnvAsDuration("SSO_STATE_LIFETIME", 10*time.Minute),
		},
		LDAP: LDAPConfig{
			Enabled:      getEnvAsBool("LDAP_ENABLED", false),
			URL:          getEnv("LDAP_URL", ""),
			BindDN:       getEnv("LDAP_BIND_DN", ""),
			BindPassword: getEnv("LDAP_BIND_PASSWORD", ""),
			SearchBase:   getEnv("LDAP_SEARCH_BASE", ""),
			UserFilter:   getEnv("LDAP_USER_FILTER", "(uid=%s)"),
			EmailAttr:    getEnv("LDAP_EMAIL_ATTR", "mail"),
			NameAttr:     getEnv("LDAP_NAME_ATTR", "cn"),
		},
		Transcriber: TranscriberConfig{
			URL:     getEnv("TRANSCRIBER_URL", ""),
			Timeout: getEnvAsDuration("TRANSCRIBER_TIMEOUT", 60*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
