package config

import (
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "WORKSPACE_"

type Config struct {
	Server struct {
		Port           int           `yaml:"port" validate:"min=1,max=65535"`
		AllowedOrigins []string      `yaml:"allowedOrigins"`
		SessionTTL     time.Duration `yaml:"sessionTTL" validate:"min=0"`
		RateLimit      struct {
			Capacity   int `yaml:"capacity" validate:"min=0"`
			RefillRate int `yaml:"refillRate" validate:"min=0"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Remote struct {
		BaseURL string        `yaml:"baseURL" validate:"required,url"`
		Timeout time.Duration `yaml:"timeout" validate:"min=0"`
	} `yaml:"remote"`

	Credentials struct {
		TokenFile string `yaml:"tokenFile" validate:"required"`
	} `yaml:"credentials"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format" validate:"oneof=console json"`
	} `yaml:"log"`

	// Journal keeps failed workspace operations
	Journal struct {
		Driver   string `yaml:"driver" validate:"oneof=mysql postgres none"`
		Host     string `yaml:"host" validate:"required_unless=Driver none"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name" validate:"required_unless=Driver none"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"journal"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"min=0"`
	} `yaml:"redis"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName" validate:"required_with=Endpoint"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	OAuth struct {
		RedirectURI string        `yaml:"redirectURI" validate:"omitempty,url"`
		StateTTL    time.Duration `yaml:"stateTTL" validate:"min=0"`
	} `yaml:"oauth"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load baca .env (kalau ada), file config YAML, lalu override dari env
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	case errors.Is(err, fs.ErrNotExist):
		// env-only setup
	default:
		return nil, errors.Wrapf(err, "read %s", path)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.SessionTTL == 0 {
		c.Server.SessionTTL = 30 * time.Minute
	}
	if c.Server.RateLimit.Capacity == 0 {
		c.Server.RateLimit.Capacity = 60
	}
	if c.Server.RateLimit.RefillRate == 0 {
		c.Server.RateLimit.RefillRate = 10
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = 60 * time.Second
	}
	if c.Credentials.TokenFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Credentials.TokenFile = home + "/.analytics-workspace/token"
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Journal.Driver == "" {
		c.Journal.Driver = "none"
	}
	if c.Journal.Port == 0 {
		switch c.Journal.Driver {
		case "mysql":
			c.Journal.Port = 3306
		case "postgres":
			c.Journal.Port = 5432
		}
	}
	if c.Journal.SSLMode == "" {
		c.Journal.SSLMode = "disable"
	}
	if c.OAuth.StateTTL == 0 {
		c.OAuth.StateTTL = 10 * time.Minute
	}
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides fields from WORKSPACE_* variables
func (c *Config) applyEnv(lookup lookupFunc) error {
	str := map[string]*string{
		"REMOTE_BASE_URL":        &c.Remote.BaseURL,
		"CREDENTIALS_TOKEN_FILE": &c.Credentials.TokenFile,
		"LOG_LEVEL":              &c.Log.Level,
		"LOG_FORMAT":             &c.Log.Format,
		"JOURNAL_DRIVER":         &c.Journal.Driver,
		"JOURNAL_HOST":           &c.Journal.Host,
		"JOURNAL_USER":           &c.Journal.User,
		"JOURNAL_PASSWORD":       &c.Journal.Password,
		"JOURNAL_NAME":           &c.Journal.Name,
		"REDIS_ADDR":             &c.Redis.Addr,
		"REDIS_PASSWORD":         &c.Redis.Password,
		"MINIO_ENDPOINT":         &c.Minio.Endpoint,
		"MINIO_ACCESS_KEY":       &c.Minio.AccessKey,
		"MINIO_SECRET_KEY":       &c.Minio.SecretKey,
		"MINIO_BUCKET":           &c.Minio.BucketName,
		"OAUTH_REDIRECT_URI":     &c.OAuth.RedirectURI,
	}
	for k, dst := range str {
		if v, ok := lookup(EnvPrefix + k); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SERVER_PORT":  &c.Server.Port,
		"JOURNAL_PORT": &c.Journal.Port,
		"REDIS_DB":     &c.Redis.DB,
	}
	for k, dst := range ints {
		if v, ok := lookup(EnvPrefix + k); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return errors.Wrapf(err, "%s%s", EnvPrefix, k)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"REMOTE_TIMEOUT":     &c.Remote.Timeout,
		"SERVER_SESSION_TTL": &c.Server.SessionTTL,
	}
	for k, dst := range durations {
		if v, ok := lookup(EnvPrefix + k); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return errors.Wrapf(err, "%s%s", EnvPrefix, k)
			}
			*dst = d
		}
	}

	if v, ok := lookup(EnvPrefix + "SERVER_ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "MINIO_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "%sMINIO_USE_SSL", EnvPrefix)
		}
		c.Minio.UseSSL = b
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Journal.User,
		c.Journal.Password,
		c.Journal.Host,
		c.Journal.Port,
		c.Journal.Name,
	)
}

// PostgresDSN builds a lib/pq connection string
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Journal.Host,
		c.Journal.Port,
		c.Journal.User,
		c.Journal.Password,
		c.Journal.Name,
		c.Journal.SSLMode,
	)
}
