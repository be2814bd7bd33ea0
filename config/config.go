package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Store     StoreConfig     `yaml:"store"`
	Token     TokenConfig     `yaml:"token"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Business  BusinessConfig  `yaml:"business"`
	Documents DocumentsConfig `yaml:"documents"`
	Minio     MinioConfig     `yaml:"minio"`
	Email     EmailConfig     `yaml:"email"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	BaseURL        string   `yaml:"base_url"`
	TrustedProxies []string `yaml:"trusted_proxies"`
	CORSOrigins    []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
	Users            []User `yaml:"users"`
}

// User is an administrator. PasswordHash is a bcrypt hash.
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Email        string `yaml:"email"`
}

type StoreConfig struct {
	Driver  string `yaml:"driver"` // memory, sqlite, postgres
	DSN     string `yaml:"dsn"`
	DataDir string `yaml:"data_dir"`
}

type TokenConfig struct {
	ExpirationDays int `yaml:"expiration_days"`
}

type RateLimitConfig struct {
	SignAttempts      int    `yaml:"sign_attempts"`
	SignWindowSeconds int    `yaml:"sign_window_seconds"`
	Driver            string `yaml:"driver"` // memory, badger
	BadgerPath        string `yaml:"badger_path"`
	APIRequests       int    `yaml:"api_requests_per_minute"`
}

type BusinessConfig struct {
	Name            string  `yaml:"name"`
	Email           string  `yaml:"email"`
	Phone           string  `yaml:"phone"`
	Address         string  `yaml:"address"`
	DefaultDeposit  float64 `yaml:"default_deposit_percentage"`
	PaymentTermsDay int     `yaml:"payment_terms_days"`
}

type DocumentsConfig struct {
	Driver string `yaml:"driver"` // local, minio
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"` // pdf, html
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type EmailConfig struct {
	Driver     string       `yaml:"driver"` // log, smtp, resend
	From       string       `yaml:"from"`
	FromName   string       `yaml:"from_name"`
	AdminEmail string       `yaml:"admin_email"`
	SMTP       SMTPConfig   `yaml:"smtp"`
	Resend     ResendConfig `yaml:"resend"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type ResendConfig struct {
	APIKey string `yaml:"api_key"`
	APIURL string `yaml:"api_url"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Store.DataDir == "" {
		c.Store.DataDir = "data"
	}
	if c.Token.ExpirationDays == 0 {
		c.Token.ExpirationDays = 30
	}
	if c.RateLimit.SignAttempts == 0 {
		c.RateLimit.SignAttempts = 5
	}
	if c.RateLimit.SignWindowSeconds == 0 {
		c.RateLimit.SignWindowSeconds = 300
	}
	if c.RateLimit.Driver == "" {
		c.RateLimit.Driver = "memory"
	}
	if c.RateLimit.APIRequests == 0 {
		c.RateLimit.APIRequests = 100
	}
	if c.Business.Name == "" {
		c.Business.Name = "Skinny Moo"
	}
	if c.Business.DefaultDeposit == 0 {
		c.Business.DefaultDeposit = 30
	}
	if c.Business.PaymentTermsDay == 0 {
		c.Business.PaymentTermsDay = 14
	}
	if c.Documents.Driver == "" {
		c.Documents.Driver = "local"
	}
	if c.Documents.Dir == "" {
		c.Documents.Dir = "data/documents"
	}
	if c.Documents.Format == "" {
		c.Documents.Format = "pdf"
	}
	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 7
	}
	if c.Email.Driver == "" {
		c.Email.Driver = "log"
	}
	if c.Email.FromName == "" {
		c.Email.FromName = c.Business.Name
	}
	if c.Email.SMTP.Port == 0 {
		c.Email.SMTP.Port = 587
	}
	if c.Email.Resend.APIURL == "" {
		c.Email.Resend.APIURL = "https://api.resend.com"
	}
}

// Validate rejects unknown drivers and settings a driver cannot run without.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.RateLimit.Driver {
	case "memory", "badger":
	default:
		return fmt.Errorf("unknown rate_limit driver %q", c.RateLimit.Driver)
	}
	switch c.Documents.Driver {
	case "local":
	case "minio":
		if c.Minio.Endpoint == "" || c.Minio.Bucket == "" {
			return fmt.Errorf("minio.endpoint and minio.bucket are required for minio documents")
		}
	default:
		return fmt.Errorf("unknown documents driver %q", c.Documents.Driver)
	}
	if c.Documents.Format != "pdf" && c.Documents.Format != "html" {
		return fmt.Errorf("unknown documents format %q", c.Documents.Format)
	}
	switch c.Email.Driver {
	case "log":
	case "smtp":
		if c.Email.SMTP.Host == "" || c.Email.From == "" {
			return fmt.Errorf("email.smtp.host and email.from are required for smtp")
		}
	case "resend":
		if c.Email.Resend.APIKey == "" || c.Email.From == "" {
			return fmt.Errorf("email.resend.api_key and email.from are required for resend")
		}
	default:
		return fmt.Errorf("unknown email driver %q", c.Email.Driver)
	}
	if c.Business.DefaultDeposit < 0 || c.Business.DefaultDeposit > 100 {
		return fmt.Errorf("business.default_deposit_percentage must be between 0 and 100")
	}
	return nil
}

// FindUser finds an administrator by username
func (a *AuthConfig) FindUser(username string) *User {
	for i := range a.Users {
		if a.Users[i].Username == username {
			return &a.Users[i]
		}
	}
	return nil
}
