package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"securechat/internal/crypto"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds runtime wiring options.
type Config struct {
	Home     string `yaml:"-"`
	RelayURL string `yaml:"relay_url"`
	LogLevel string `yaml:"log_level"`

	Storage   StorageConfig   `yaml:"storage"`
	Identity  IdentityConfig  `yaml:"identity"`
	Session   SessionConfig   `yaml:"session"`
	OTP       OTPConfig       `yaml:"otp"`
	Biometric BiometricConfig `yaml:"biometric"`

	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"`
	Iterations int    `yaml:"pbkdf2_iterations"`
	// Secret is hex; normally set through SECURECHAT_STORAGE_SECRET rather
	// than the file. Empty means <home>/storage.key.
	Secret string `yaml:"-"`
}

type IdentityConfig struct {
	Bits int `yaml:"rsa_bits"`
}

type SessionConfig struct {
	AuthTimeout             time.Duration `yaml:"auth_timeout"`
	HighSecurityTTL         time.Duration `yaml:"high_security_ttl"`
	ProofMaxAge             time.Duration `yaml:"proof_max_age"`
	PurgeCredentialOnLogout bool          `yaml:"purge_credential_on_logout"`
}

type OTPConfig struct {
	Digits        int           `yaml:"digits"`
	TTL           time.Duration `yaml:"ttl"`
	IssueInterval time.Duration `yaml:"issue_interval"`
	IssueBurst    int           `yaml:"issue_burst"`
	// Delivery is "console" or "log".
	Delivery string `yaml:"delivery"`
}

type BiometricConfig struct {
	Enabled bool   `yaml:"enabled"`
	RPID    string `yaml:"rp_id"`
}

// DefaultConfig returns the defaults for home.
func DefaultConfig(home string) Config {
	return Config{
		Home:     home,
		RelayURL: "http://127.0.0.1:8080",
		LogLevel: "warn",
		Storage: StorageConfig{
			Backend:    BackendFile,
			Iterations: 120_000,
		},
		Identity: IdentityConfig{Bits: crypto.MinRSABits},
		Session: SessionConfig{
			AuthTimeout:     45 * time.Second,
			HighSecurityTTL: 15 * time.Minute,
			ProofMaxAge:     2 * time.Minute,
		},
		OTP: OTPConfig{
			Digits:        6,
			TTL:           5 * time.Minute,
			IssueInterval: 30 * time.Second,
			IssueBurst:    3,
			Delivery:      "console",
		},
		Biometric:   BiometricConfig{Enabled: true, RPID: "securechat.local"},
		HTTPTimeout: 15 * time.Second,
	}
}

// LoadConfig builds the config for home. path may be empty, meaning
// <home>/config.yaml; a missing file is not an error.
func LoadConfig(home, path string) (Config, error) {
	cfg := DefaultConfig(home)

	if path == "" {
		path = filepath.Join(home, "config.yaml")
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(filepath.Join(home, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SECURECHAT_RELAY"); v != "" {
		c.RelayURL = v
	}
	if v := os.Getenv("SECURECHAT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SECURECHAT_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("SECURECHAT_STORAGE_SECRET"); v != "" {
		c.Storage.Secret = v
	}
	if v := os.Getenv("SECURECHAT_RSA_BITS"); v != "" {
		bits, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SECURECHAT_RSA_BITS: %w", err)
		}
		c.Identity.Bits = bits
	}
	if v := os.Getenv("SECURECHAT_OTP_DELIVERY"); v != "" {
		c.OTP.Delivery = v
	}
	return nil
}

// Validate rejects settings that weaken the key or storage floors.
func (c Config) Validate() error {
	if c.Home == "" {
		return errors.New("config: home directory is required")
	}
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Iterations < crypto.MinPBKDF2Iterations {
		return fmt.Errorf("config: pbkdf2_iterations must be at least %d", crypto.MinPBKDF2Iterations)
	}
	if c.Identity.Bits < crypto.MinRSABits {
		return fmt.Errorf("config: rsa_bits must be at least %d", crypto.MinRSABits)
	}
	switch c.OTP.Delivery {
	case "console", "log":
	default:
		return fmt.Errorf("config: unknown otp delivery %q", c.OTP.Delivery)
	}
	return nil
}
