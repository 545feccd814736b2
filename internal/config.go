package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"

	"github.com/yourview/yourview/internal/canopy"
	"github.com/yourview/yourview/internal/moderation"
	"github.com/yourview/yourview/internal/theme"
	"github.com/yourview/yourview/internal/upload"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Canopy backends.
const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Canopy     CanopyConfig      `yaml:"canopy"`
	Supabase   SupabaseConfig    `yaml:"supabase"`
	Postgres   PostgresConfig    `yaml:"postgres"`
	Uploads    UploadsConfig     `yaml:"uploads"`
	Moderation ModerationConfig  `yaml:"moderation"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
	Theme      *theme.Theme      `yaml:"theme"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Canopy.Validate(); err != nil {
		return fmt.Errorf("canopy: %w", err)
	}
	switch c.Canopy.Backend {
	case BackendREST:
		if err := c.Supabase.Validate(); err != nil {
			return fmt.Errorf("supabase: %w", err)
		}
	case BackendPostgres:
		if err := c.Postgres.Validate(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if err := c.Uploads.Validate(); err != nil {
		return fmt.Errorf("uploads: %w", err)
	}
	if err := c.Moderation.Validate(); err != nil {
		return fmt.Errorf("moderation: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if c.Theme == nil {
		c.Theme = theme.Default()
	}
	if err := c.Theme.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	// AllowedOrigins lists CORS origins for /api; empty allows any.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CanopyConfig selects where canopy lookups are sent.
type CanopyConfig struct {
	// Backend is "rest" (Supabase PostgREST) or "postgres" (direct SQL).
	Backend   string `yaml:"backend"`
	Procedure string `yaml:"procedure"`
}

// Validate validates the canopy configuration.
func (c *CanopyConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendREST, BackendPostgres)),
		validation.Field(&c.Procedure, validation.Required),
	)
}

// SupabaseConfig holds the hosted project's REST endpoint.
type SupabaseConfig struct {
	URL     string        `yaml:"url"`
	AnonKey string        `yaml:"anon_key"`
	Schema  string        `yaml:"schema"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the Supabase configuration.
func (c *SupabaseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.AnonKey, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// PostgresConfig holds a direct database connection.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Validate validates the Postgres configuration.
func (c *PostgresConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.MaxOpenConns, validation.Min(0)),
		validation.Field(&c.MaxIdleConns, validation.Min(0)),
	)
}

// UploadsConfig holds the media store settings.
type UploadsConfig struct {
	Dir         string `yaml:"dir"`
	MaxFileSize int64  `yaml:"max_file_size"`
	Folder      string `yaml:"folder"`
}

// Validate validates the uploads configuration.
func (c *UploadsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.MaxFileSize, validation.Required, validation.Min(int64(1))),
	); err != nil {
		return err
	}
	_, err := upload.CleanFolder(c.Folder)
	return err
}

// ModerationConfig holds the Sightengine credentials and thresholds.
type ModerationConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Endpoint       string        `yaml:"endpoint"`
	User           string        `yaml:"user"`
	Secret         string        `yaml:"secret"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	Thresholds     Thresholds    `yaml:"thresholds"`
}

// Thresholds maps nudity labels to rejection scores.
type Thresholds map[string]float64

// UnmarshalYAML replaces the default thresholds instead of merging into them,
// so a config file can drop a label.
func (t *Thresholds) UnmarshalYAML(value *yaml.Node) error {
	m := map[string]float64{}
	if err := value.Decode(&m); err != nil {
		return err
	}
	*t = m
	return nil
}

// Validate validates the moderation configuration. Credentials are only
// required when moderation is enabled.
func (c *ModerationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, is.URL),
		validation.Field(&c.User, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Secret, validation.When(c.Enabled, validation.Required)),
	); err != nil {
		return err
	}
	var errs []error
	for name, v := range c.Thresholds {
		if v <= 0 || v > 1 {
			errs = append(errs, fmt.Errorf("threshold %q must be in (0, 1], got %v", name, v))
		}
	}
	return errors.Join(errs...)
}

// Checker builds the moderation client, or returns nil when disabled.
func (c *ModerationConfig) Checker() moderation.Checker {
	if !c.Enabled {
		return nil
	}
	return moderation.New(moderation.Config{
		Endpoint:       c.Endpoint,
		User:           c.User,
		Secret:         c.Secret,
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		Thresholds:     map[string]float64(c.Thresholds),
	})
}

// SQLiteConfig holds the upload ledger database location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the upload endpoints.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//
// Canopy lookups, theme and pages are always public.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Canopy: CanopyConfig{
			Backend:   BackendREST,
			Procedure: canopy.DefaultProcedure,
		},
		Supabase: SupabaseConfig{
			Schema:  "public",
			Timeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Schema:          "public",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Uploads: UploadsConfig{
			Dir:         "./media",
			MaxFileSize: upload.DefaultMaxSize,
			Folder:      upload.DefaultFolder,
		},
		Moderation: ModerationConfig{
			Endpoint:       moderation.DefaultEndpoint,
			ConnectTimeout: 8 * time.Second,
			ReadTimeout:    45 * time.Second,
			Thresholds:     moderation.DefaultThresholds(),
		},
		SQLite: SQLiteConfig{
			Path: "./yourview.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Theme: theme.Default(),
	}
}
