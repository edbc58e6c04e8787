package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment names recognised by the dashboard.
const (
	EnvDevelopment = "DEV"
	EnvStaging     = "STAGING"
	EnvProduction  = "PROD"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	Server        struct {
		Addr          string        `mapstructure:"addr"`
		ReadTimeout   time.Duration `mapstructure:"read_timeout"`
		WriteTimeout  time.Duration `mapstructure:"write_timeout"`
		IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
		SecureCookies bool          `mapstructure:"secure_cookies"`
	} `mapstructure:"server"`
	Backend struct {
		URL      string        `mapstructure:"url"`
		Mock     bool          `mapstructure:"mock"`
		Timeout  time.Duration `mapstructure:"timeout"`
		PageSize int           `mapstructure:"page_size"`
	} `mapstructure:"backend"`
	Auth struct {
		Issuer          string   `mapstructure:"issuer"`
		ClientID        string   `mapstructure:"client_id"`
		ClientSecret    string   `mapstructure:"client_secret"`
		RedirectURL     string   `mapstructure:"redirect_url"`
		Scopes          []string `mapstructure:"scopes"`
		SwaggerClientID string   `mapstructure:"swagger_client_id"`
	} `mapstructure:"auth"`
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Diagrams struct {
		Store string `mapstructure:"store"`
	} `mapstructure:"diagrams"`
	Modeler struct {
		IdleTTL time.Duration `mapstructure:"idle_ttl"`
	} `mapstructure:"modeler"`
	Logging struct {
		Level    string `mapstructure:"level"`
		Encoding string `mapstructure:"encoding"`
	} `mapstructure:"logging"`
	Tracing struct {
		Exporter string `mapstructure:"exporter"`
	} `mapstructure:"tracing"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
}

// IsDevelopment reports whether the dashboard runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// PostgresDSN builds the pgx connection string from the db section.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode,
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("dev_mode_bypass", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("backend.url", "https://dev-api.orchestt.example.com")
	v.SetDefault("backend.mock", true)
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.page_size", 50)
	v.SetDefault("auth.scopes", []string{"openid", "profile", "email"})
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("diagrams.store", "memory")
	v.SetDefault("modeler.idle_ttl", 30*time.Minute)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("tracing.exporter", "none")
}

// LoadConfig loads the configuration from a file and the environment.
// An empty path searches for config.yaml in . and ./config; a missing file
// is not an error, defaults and ORCHESTT_* variables still apply.
func LoadConfig(path string) (*Config, error) {
	return load(viper.GetViper(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("orchestt")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	env, err := normalizeEnvironment(config.Environment)
	if err != nil {
		return nil, err
	}
	config.Environment = env
	config.Auth.Issuer = normalizeIssuer(config.Auth.Issuer)
	if config.Backend.PageSize <= 0 {
		config.Backend.PageSize = 50
	}

	return &config, nil
}

// ErrUnknownEnvironment is returned by LoadConfig for an environment name
// that is not one of the accepted spellings.
var ErrUnknownEnvironment = errors.New("unknown environment")

// normalizeEnvironment maps the accepted spellings onto the canonical names.
// An empty value means development; anything else unrecognised is rejected
// so a typo never enables the development sign-in bypass.
func normalizeEnvironment(env string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(env)) {
	case "DEV", "DEVELOPMENT", "":
		return EnvDevelopment, nil
	case "STAGING", "STAGE":
		return EnvStaging, nil
	case "PROD", "PRODUCTION":
		return EnvProduction, nil
	default:
		return "", fmt.Errorf("%w %q: use DEV, STAGING or PROD", ErrUnknownEnvironment, env)
	}
}

// normalizeIssuer strips trailing slashes so the value can be pasted from the
// identity provider console as-is.
func normalizeIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
