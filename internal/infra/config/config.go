package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "IRONBANK_"

// Config is the top-level application configuration.
type Config struct {
	App       AppConfig       `yaml:"app" envPrefix:"APP_"`
	Ledgers   LedgersConfig   `yaml:"ledgers" envPrefix:"LEDGERS_"`
	Resources ResourcesConfig `yaml:"resources" envPrefix:"RESOURCES_"`
	Opener    OpenerConfig    `yaml:"opener" envPrefix:"OPENER_"`
	Logger    LoggerConfig    `yaml:"logger" envPrefix:"LOGGER_"`
	Tracer    TracerConfig    `yaml:"tracer" envPrefix:"TRACER_"`
	Gateway   GatewayConfig   `yaml:"gateway" envPrefix:"GATEWAY_"`
	Audit     AuditConfig     `yaml:"audit" envPrefix:"AUDIT_"`
	Includes  []string        `yaml:"includes,omitempty"`
}

// AppConfig identifies the running build.
type AppConfig struct {
	Env  string `yaml:"env" env:"ENV"` // "dev" or "prod"
	Name string `yaml:"name" env:"NAME"`
}

// IsDev reports whether development fallbacks are enabled.
func (a AppConfig) IsDev() bool { return a.Env == "dev" }

// LedgersConfig holds ledger directory settings.
type LedgersConfig struct {
	// DocumentsDir overrides the platform documents folder. "~" is expanded.
	DocumentsDir string `yaml:"documents_dir" env:"DOCUMENTS_DIR"`
	// ConfinePaths rejects read/delete paths outside the ledgers directory.
	ConfinePaths bool `yaml:"confine_paths" env:"CONFINE_PATHS"`
}

// ResourcesConfig locates bundled read-only resources.
type ResourcesConfig struct {
	Dir string `yaml:"dir" env:"DIR"` // empty = directory of the executable
}

// OpenerConfig holds file-browser settings.
type OpenerConfig struct {
	Command string `yaml:"command" env:"COMMAND"` // empty = platform default
}

// GatewayConfig holds WebSocket gateway settings.
type GatewayConfig struct {
	Enabled        bool            `yaml:"enabled" env:"ENABLED"`
	Addr           string          `yaml:"addr" env:"ADDR"`
	Auth           AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	AllowedOrigins []string        `yaml:"allowed_origins,omitempty" env:"ALLOWED_ORIGINS"`
}

// AuthConfig holds gateway authentication settings.
type AuthConfig struct {
	Type   string        `yaml:"type" env:"TYPE"` // "none" or "static"
	Tokens []TokenConfig `yaml:"tokens,omitempty" envPrefix:"TOKENS_"`
	// Token adds a single static token from the environment.
	Token string `yaml:"-" env:"TOKEN"`
}

// TokenConfig holds a single gateway auth token.
type TokenConfig struct {
	Token string   `yaml:"token" env:"TOKEN"`
	Name  string   `yaml:"name" env:"NAME"`
	Roles []string `yaml:"roles" env:"ROLES"`
}

// RateLimitConfig throttles RPC requests per connection.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"` // 0 = unlimited
	Burst             int     `yaml:"burst" env:"BURST"`
}

// AuditConfig controls the journal of ledger mutations.
type AuditConfig struct {
	Enabled bool          `yaml:"enabled" env:"ENABLED"`
	Backend string        `yaml:"backend" env:"BACKEND"` // "jsonl" (default) or "sqlite"
	Path    string        `yaml:"path" env:"PATH"`       // empty = <documents>/Ironbank/audit.{jsonl,db}
	MaxSize string        `yaml:"max_size" env:"MAX_SIZE"` // e.g. "10MB"; empty = unbounded
	MaxAge  time.Duration `yaml:"max_age" env:"MAX_AGE"`   // 0 = unbounded
}

// DefaultFilename is the journal filename used when Path is empty.
func (a AuditConfig) DefaultFilename() string {
	if a.Backend == "sqlite" {
		return "audit.db"
	}
	return "audit.jsonl"
}

// MaxSizeBytes parses MaxSize.
func (a AuditConfig) MaxSizeBytes() (int64, error) {
	return parseSize(a.MaxSize)
}

// parseSize parses a size such as "512KB", "10MB" or "1GB".
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		mult   int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(s, unit.suffix) {
			multiplier = unit.mult
			s = strings.TrimSuffix(s, unit.suffix)
			break
		}
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative size %d", n)
	}
	return n * multiplier, nil
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
	Output string `yaml:"output" env:"OUTPUT"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Exporter string `yaml:"exporter" env:"EXPORTER"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		App: AppConfig{
			Env:  "prod",
			Name: "ironbank",
		},
		Ledgers: LedgersConfig{
			ConfinePaths: true,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Audit: AuditConfig{
			Backend: "jsonl",
		},
		Gateway: GatewayConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8090",
			Auth:    AuthConfig{Type: "none"},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 50,
				Burst:             100,
			},
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(cfg)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Includes) > 0 {
		visited := map[string]bool{absPath: true}
		if err := processIncludes(cfg, filepath.Dir(absPath), visited, 0); err != nil {
			return nil, err
		}
		// The main file takes precedence over its includes.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if passphrase := os.Getenv(EnvPrefix + "CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps IRONBANK_* env vars onto cfg. Unset variables leave
// the current values alone.
func ApplyEnvOverrides(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env overrides: %w", err)
	}
	if tok := cfg.Gateway.Auth.Token; tok != "" {
		cfg.Gateway.Auth.Tokens = append(cfg.Gateway.Auth.Tokens, TokenConfig{Token: tok, Name: "env"})
		cfg.Gateway.Auth.Token = ""
	}
	return nil
}

// decryptSecrets replaces "enc:..." gateway tokens with their plaintext.
func decryptSecrets(cfg *Config, passphrase string) error {
	for i := range cfg.Gateway.Auth.Tokens {
		tok := cfg.Gateway.Auth.Tokens[i].Token
		if !strings.HasPrefix(tok, "enc:") {
			continue
		}
		decrypted, err := DecryptValue(strings.TrimPrefix(tok, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("gateway auth token %s: %w", cfg.Gateway.Auth.Tokens[i].Name, err)
		}
		cfg.Gateway.Auth.Tokens[i].Token = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// hex(salt) ":" hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(sealed), nil
}

// DecryptValue decrypts a value produced by EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// validatePermissions rejects group- or world-writable config files.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
