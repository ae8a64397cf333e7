package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edgeflare/pglist/pkg/listing"
	"github.com/edgeflare/pglist/pkg/query"
	"github.com/edgeflare/pglist/pkg/scope"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X ...config.Version=...".
var Version = "dev"

// Auth modes.
const (
	AuthToken = "token"
	AuthOIDC  = "oidc"
	AuthNone  = "none"
)

// Config holds application-wide configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Listing  ListingConfig  `mapstructure:"listing"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	LogLevel string         `mapstructure:"logLevel"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listenAddr"`
	// BasePath prefixes every resource route, e.g. /arvados/v1.
	BasePath    string   `mapstructure:"basePath"`
	TLS         bool     `mapstructure:"tls"`
	TLSCert     string   `mapstructure:"tlsCert"`
	TLSKey      string   `mapstructure:"tlsKey"`
	CORSOrigins []string `mapstructure:"corsOrigins"`
}

type PostgresConfig struct {
	ConnString string `mapstructure:"connString"`
	// MaxWait bounds start-up connection retries.
	MaxWait time.Duration `mapstructure:"maxWait"`
	// VerifySchema checks every descriptor against the catalog at start-up.
	VerifySchema bool `mapstructure:"verifySchema"`
}

type ListingConfig struct {
	ResourcesFile        string `mapstructure:"resourcesFile"`
	MaxLimit             int    `mapstructure:"maxLimit"`
	MaxIndexDatabaseRead int64  `mapstructure:"maxIndexDatabaseRead"`
}

type AuthConfig struct {
	Mode string `mapstructure:"mode"`
	// AnonymousUsers is the scope of credential-less requests to publicly
	// readable resources.
	AnonymousUsers []string         `mapstructure:"anonymousUsers"`
	OIDC           scope.OIDCConfig `mapstructure:"oidc"`
	Sharing        SharingConfig    `mapstructure:"sharing"`
}

// SharingConfig enables melange-backed sharing grants.
type SharingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	SubjectType string `mapstructure:"subjectType"`
	Relation    string `mapstructure:"relation"`
	OwnerType   string `mapstructure:"ownerType"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

var defaults = map[string]any{
	"server.listenAddr":            ":8080",
	"server.basePath":              "/arvados/v1",
	"server.tls":                   false,
	"server.tlsCert":               "",
	"server.tlsKey":                "",
	"server.corsOrigins":           []string{"*"},
	"postgres.connString":          "",
	"postgres.maxWait":             time.Minute,
	"postgres.verifySchema":        true,
	"listing.resourcesFile":        "resources.yaml",
	"listing.maxLimit":             query.DefaultMaxLimit,
	"listing.maxIndexDatabaseRead": listing.DefaultMaxIndexDatabaseRead,
	"auth.mode":                    AuthToken,
	"auth.anonymousUsers":          []string{},
	"auth.oidc.issuer":             "",
	"auth.oidc.clientID":           "",
	"auth.oidc.clientSecret":       "",
	"auth.oidc.subjectClaim":       "sub",
	"auth.oidc.cacheTTL":           time.Minute,
	"auth.sharing.enabled":         false,
	"auth.sharing.subjectType":     "user",
	"auth.sharing.relation":        "can_read",
	"auth.sharing.ownerType":       "group",
	"metrics.enabled":              true,
	"metrics.addr":                 ":9100",
	"metrics.path":                 "/metrics",
	"logLevel":                     "info",
}

// New returns a viper instance with pglist's defaults, reading PGLIST_*
// environment variables (e.g. PGLIST_POSTGRES_CONNSTRING).
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("PGLIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads config from file or environment into v. Without cfgFile,
// pglist.yaml is looked up in $HOME/.config and the working directory; a
// missing file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("pglist")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	switch c.Auth.Mode {
	case AuthToken, AuthNone:
	case AuthOIDC:
		if c.Auth.OIDC.Issuer == "" || c.Auth.OIDC.ClientID == "" || c.Auth.OIDC.ClientSecret == "" {
			errs = append(errs, scope.ErrMissingOIDCConfig)
		}
	default:
		errs = append(errs, fmt.Errorf("auth.mode must be %s, %s or %s, got %q", AuthToken, AuthOIDC, AuthNone, c.Auth.Mode))
	}
	if c.Listing.MaxLimit < 1 {
		errs = append(errs, fmt.Errorf("listing.maxLimit must be positive, got %d", c.Listing.MaxLimit))
	}
	if c.Listing.MaxIndexDatabaseRead < 0 {
		errs = append(errs, fmt.Errorf("listing.maxIndexDatabaseRead must not be negative, got %d", c.Listing.MaxIndexDatabaseRead))
	}
	if c.Server.BasePath != "" && (!strings.HasPrefix(c.Server.BasePath, "/") || strings.HasSuffix(c.Server.BasePath, "/")) {
		errs = append(errs, fmt.Errorf("server.basePath must start and not end with /, got %q", c.Server.BasePath))
	}
	return errors.Join(errs...)
}
