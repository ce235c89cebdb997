package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/estatehub/internal/i18n"
	"github.com/starford/estatehub/internal/lifecycle"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Translator providers.
const (
	TranslatorIdentity = "identity"
	TranslatorGenAI    = "genai"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Uploads    UploadsConfig     `yaml:"uploads"`
	Auth       AuthConfig        `yaml:"auth"`
	I18n       I18nConfig        `yaml:"i18n"`
	Translator TranslatorConfig  `yaml:"translator"`
	Tokens     TokensConfig      `yaml:"tokens"`
	Events     EventsConfig      `yaml:"events"`
	Lifecycle  LifecycleConfig   `yaml:"lifecycle"`
	MCP        MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.SQLite, &c.Uploads, &c.Auth, &c.I18n,
		&c.Translator, &c.Tokens, &c.Events, &c.Lifecycle, &c.MCP,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" env:"EH_LOG_LEVEL"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port            int           `yaml:"port" env:"EH_HTTP_PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ShutdownTimeout, validation.Min(time.Duration(0))),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"EH_SQLITE_PATH"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// UploadsConfig holds the image store location and size limit.
type UploadsConfig struct {
	Dir           string `yaml:"dir" env:"EH_UPLOADS_DIR"`
	MaxImageBytes int64  `yaml:"max_image_bytes"`
}

// Validate validates the uploads configuration.
func (c *UploadsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.MaxImageBytes, validation.Required, validation.Min(int64(1024))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): every request acts as the "local" tenant.
//   - "token": Bearer token authentication; Users maps each token to a
//     tenant id and must not be empty.
type AuthConfig struct {
	Mode  string            `yaml:"mode" env:"EH_AUTH_MODE"`
	Users map[string]string `yaml:"users" env:"EH_AUTH_USERS"`
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
	if c.Mode != AuthModeToken {
		return nil
	}
	if len(c.Users) == 0 {
		return fmt.Errorf("auth: mode is %q but no users are configured", AuthModeToken)
	}
	for token, user := range c.Users {
		if token == "" || user == "" {
			return errors.New("auth: users must map non-empty tokens to non-empty user ids")
		}
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// I18nConfig controls dictionary resolution.
type I18nConfig struct {
	Default      string        `yaml:"default" env:"EH_I18N_DEFAULT"`
	Fallback     string        `yaml:"fallback"`
	Translatable []string      `yaml:"translatable" env:"EH_I18N_TRANSLATABLE"`
	Concurrency  int           `yaml:"concurrency"`
	Timeout      time.Duration `yaml:"timeout"`
	// Dir, when set, replaces the embedded dictionaries.
	Dir   string `yaml:"dir" env:"EH_I18N_DIR"`
	Watch bool   `yaml:"watch" env:"EH_I18N_WATCH"`
}

var localeRule = validation.By(func(v any) error {
	s, _ := v.(string)
	if _, err := i18n.Normalize(s); err != nil {
		return errors.New("must be a valid language code")
	}
	return nil
})

// Validate validates the i18n configuration.
func (c *I18nConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Default, validation.Required, localeRule),
		validation.Field(&c.Fallback, validation.Required, localeRule),
		validation.Field(&c.Translatable, validation.Each(localeRule)),
		validation.Field(&c.Concurrency, validation.Min(1), validation.Max(64)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Dir, validation.When(c.Watch, validation.Required.Error("is required when watch is enabled"))),
	)
}

// TranslatorConfig selects the machine translation backend.
type TranslatorConfig struct {
	Provider string `yaml:"provider" env:"EH_TRANSLATOR_PROVIDER"`
	APIKey   string `yaml:"api_key" env:"EH_TRANSLATOR_API_KEY"`
	Model    string `yaml:"model" env:"EH_TRANSLATOR_MODEL"`
}

// Validate validates the translator configuration.
func (c *TranslatorConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = TranslatorIdentity
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(TranslatorIdentity, TranslatorGenAI)),
		validation.Field(&c.APIKey, validation.When(c.Provider == TranslatorGenAI, validation.Required)),
	)
}

// TokensConfig controls creation stream tokens.
type TokensConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Validate validates the tokens configuration.
func (c *TokensConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.SweepInterval, validation.Required, validation.Min(time.Second)),
	)
}

// EventsConfig controls the server-sent event stream.
type EventsConfig struct {
	// BinThrottle is the minimum gap between bin.updated events per tenant.
	BinThrottle time.Duration `yaml:"bin_throttle" env:"EH_EVENTS_BIN_THROTTLE"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BinThrottle, validation.Required, validation.Min(100*time.Millisecond), validation.Max(time.Minute)),
	)
}

// LifecycleConfig selects how repeated bin and restore calls behave.
type LifecycleConfig struct {
	Policy string `yaml:"policy" env:"EH_LIFECYCLE_POLICY"`
}

// Validate validates the lifecycle configuration.
func (c *LifecycleConfig) Validate() error {
	_, err := lifecycle.ParsePolicy(c.Policy)
	return err
}

// MCPConfig holds the tool server settings.
type MCPConfig struct {
	// Owner is the tenant every tool call acts as.
	Owner string `yaml:"owner" env:"EH_MCP_OWNER"`
}

// Validate validates the MCP configuration.
func (c *MCPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Owner, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:            8080,
				ShutdownTimeout: 10 * time.Second,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./estatehub.db",
		},
		Uploads: UploadsConfig{
			Dir:           "./uploads",
			MaxImageBytes: 10 << 20,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		I18n: I18nConfig{
			Default:     "en",
			Fallback:    "en",
			Concurrency: 8,
			Timeout:     2 * time.Minute,
		},
		Translator: TranslatorConfig{
			Provider: TranslatorIdentity,
		},
		Tokens: TokensConfig{
			TTL:           10 * time.Minute,
			SweepInterval: time.Minute,
		},
		Events: EventsConfig{
			BinThrottle: 2 * time.Second,
		},
		Lifecycle: LifecycleConfig{
			Policy: "idempotent",
		},
		MCP: MCPConfig{
			Owner: "local",
		},
	}
}
