package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/fortuna/cesta/internal/logging"
	"github.com/fortuna/cesta/internal/syncerr"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"

	DriverPostgREST = "postgrest"
	DriverPostgres  = "postgres"

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config stores runtime configuration for the sync CLI.
type Config struct {
	AppEnv         string `env:"APP_ENV" validate:"oneof=dev stage prod"`
	Store          StoreConfig `validate:"-"`
	HTTP           HTTPConfig
	EmptyPolicy    string `env:"EMPTY_POLICY" validate:"omitempty,oneof=fail skip"`
	RedisURL       string `env:"REDIS_URL" validate:"omitempty,url"`
	PushgatewayURL string `env:"PUSHGATEWAY_URL" validate:"omitempty,url"`
	LogLevel       logging.Level
	LogFormat      string `env:"LOG_FORMAT" validate:"oneof=json console"`
}

// StoreConfig points at the destination row store.
type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" validate:"oneof=postgrest postgres"`
	URL    string `env:"STORE_URL" validate:"required,url"`
	Key    string `env:"STORE_KEY" validate:"required"`
}

type HTTPConfig struct {
	Timeout      time.Duration `env:"HTTP_TIMEOUT" validate:"gt=0"`
	UserAgent    string        `env:"HTTP_USER_AGENT" validate:"required"`
	BrowserFetch bool
}

// APIConfig stores runtime configuration for the read API.
type APIConfig struct {
	AppEnv      string `env:"APP_ENV" validate:"oneof=dev stage prod"`
	Addr        string `env:"API_ADDR" validate:"required"`
	DatabaseURL string `env:"API_DATABASE_URL" validate:"required,url"`
	RedisURL    string `env:"REDIS_URL" validate:"omitempty,url"`
	LogLevel    logging.Level
	LogFormat   string `env:"LOG_FORMAT" validate:"oneof=json console"`
}

// Load reads the sync configuration from the environment. Every failure is a
// syncerr.ErrConfiguration so callers can tell it apart from job failures.
func Load() (Config, error) {
	cfg, err := LoadWithoutStore()
	if err != nil {
		return Config{}, err
	}
	if err := validate(cfg.Store); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadWithoutStore is Load minus the destination store checks, for commands
// that never write (preview, dry runs).
func LoadWithoutStore() (Config, error) {
	timeout, err := time.ParseDuration(getEnv("HTTP_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, syncerr.Configuration("parse HTTP_TIMEOUT: %v", err)
	}
	browserFetch, err := strconv.ParseBool(getEnv("BROWSER_FETCH", "false"))
	if err != nil {
		return Config{}, syncerr.Configuration("parse BROWSER_FETCH: %v", err)
	}

	cfg := Config{
		AppEnv: strings.ToLower(strings.TrimSpace(getEnv("APP_ENV", EnvDev))),
		Store: StoreConfig{
			Driver: strings.ToLower(strings.TrimSpace(getEnv("STORE_DRIVER", DriverPostgREST))),
			URL:    strings.TrimRight(strings.TrimSpace(firstEnv("STORE_URL", "SUPABASE_URL")), "/"),
			Key:    strings.TrimSpace(firstEnv("STORE_KEY", "SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_KEY", "SUPABASE_KEY")),
		},
		HTTP: HTTPConfig{
			Timeout:      timeout,
			UserAgent:    getEnv("HTTP_USER_AGENT", DefaultUserAgent),
			BrowserFetch: browserFetch,
		},
		EmptyPolicy:    strings.ToLower(strings.TrimSpace(getEnv("EMPTY_POLICY", ""))),
		RedisURL:       strings.TrimSpace(getEnv("REDIS_URL", "")),
		PushgatewayURL: strings.TrimSpace(getEnv("PUSHGATEWAY_URL", "")),
		LogLevel:       logging.ParseLevel(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadAPI reads the read-API configuration from the environment.
func LoadAPI() (APIConfig, error) {
	cfg := APIConfig{
		AppEnv:      strings.ToLower(strings.TrimSpace(getEnv("APP_ENV", EnvDev))),
		Addr:        getEnv("API_ADDR", ":8080"),
		DatabaseURL: strings.TrimSpace(getEnv("API_DATABASE_URL", "")),
		RedisURL:    strings.TrimSpace(getEnv("REDIS_URL", "")),
		LogLevel:    logging.ParseLevel(getEnv("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	if err := validate(cfg); err != nil {
		return APIConfig{}, err
	}
	return cfg, nil
}

// PostgresDSN returns the store URL with STORE_KEY filled in as the password
// when the URL carries none.
func (s StoreConfig) PostgresDSN() (string, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return "", syncerr.Configuration("parse STORE_URL: %v", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", syncerr.Configuration("STORE_URL must be a postgres:// URL when STORE_DRIVER=postgres")
	}
	if u.User == nil {
		return "", syncerr.Configuration("STORE_URL must name a user when STORE_DRIVER=postgres")
	}
	if _, hasPassword := u.User.Password(); !hasPassword && s.Key != "" {
		u.User = url.UserPassword(u.User.Username(), s.Key)
	}
	return u.String(), nil
}

var validate = func() func(any) error {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("env"); name != "" {
			return name
		}
		return field.Name
	})

	return func(cfg any) error {
		err := v.Struct(cfg)
		if err == nil {
			return nil
		}
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return errors.Mark(errors.Wrap(err, "validate config"), syncerr.ErrConfiguration)
		}
		return syncerr.Configuration("%s", describe(fieldErrs[0]))
	}
}()

func describe(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		if alias, ok := envAliases[name]; ok {
			return fmt.Sprintf("%s is required (also read from %s)", name, strings.Join(alias, ", "))
		}
		return fmt.Sprintf("%s is required", name)
	case "oneof":
		return fmt.Sprintf("invalid %s %q: valid values are %s", name, fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Sprintf("%s must be a valid URL", name)
	case "gt":
		return fmt.Sprintf("%s must be > %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}

var envAliases = map[string][]string{
	"STORE_URL": {"SUPABASE_URL"},
	"STORE_KEY": {"SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_KEY", "SUPABASE_KEY"},
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}
