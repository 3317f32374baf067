// Package config loads gemchat's configuration from defaults, .env files,
// environment variables and command-line flags.
//
// Priority (highest to lowest): flags > environment variables > local .env > config .env > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every gemchat environment variable.
const EnvPrefix = "GEMCHAT"

// Configuration keys shared by viper, flags and the environment.
const (
	KeyProvider = "provider"
	KeyModel    = "model"
	KeyStore    = "store"
	KeyDataDir  = "data-dir"
	KeyLogLevel = "log-level"
	KeyLogFile  = "log-file"
)

// Supported store backends.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
	StoreMemory = "memory"
)

// DefaultProvider is used when no provider is configured.
const DefaultProvider = "gemini"

var supportedProviders = []string{"gemini", "openai", "anthropic"}

// ErrMissingAPIKey is returned when no credential exists for the configured provider.
var ErrMissingAPIKey = errors.New("API key not configured")

// Config holds the resolved configuration for one process.
type Config struct {
	Provider string
	Model    string // empty means the provider's fixed default
	APIKey   string
	Store    string
	DataDir  string
	LogLevel string
	LogFile  string
	Paths    Paths
}

// Paths records which configuration files were found and loaded.
type Paths struct {
	ConfigDir       string
	ConfigEnvPath   string
	ConfigEnvLoaded bool
	LocalEnvPath    string
	LocalEnvLoaded  bool
}

// Loader resolves configuration. Directories and the environment lookup are
// fields so tests can point them at temporary locations.
type Loader struct {
	ConfigDir string
	WorkDir   string
	LookupEnv func(string) (string, bool)
}

// NewLoader creates a loader for the user's config directory and the current working directory.
func NewLoader() *Loader {
	workDir, err := os.Getwd()
	if err != nil {
		workDir = ""
	}
	return &Loader{
		ConfigDir: DefaultConfigDir(),
		WorkDir:   workDir,
		LookupEnv: os.LookupEnv,
	}
}

// DefaultConfigDir returns ~/.config/gemchat (or the platform equivalent).
func DefaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return ".gemchat"
		}
		return filepath.Join(home, ".gemchat")
	}
	return filepath.Join(dir, "gemchat")
}

// Load resolves the configuration. Flags must already be bound to v.
// A missing API key is not an error here: the model client reports it when it is built.
func (l *Loader) Load(v *viper.Viper) (*Config, error) {
	dotenv, paths, err := l.readDotEnv()
	if err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyProvider, DefaultProvider)
	v.SetDefault(KeyModel, "")
	v.SetDefault(KeyStore, StoreSQLite)
	v.SetDefault(KeyDataDir, l.ConfigDir)
	v.SetDefault(KeyLogLevel, "")
	v.SetDefault(KeyLogFile, "")

	// .env values rank above defaults and below the real environment.
	for _, key := range []string{KeyProvider, KeyModel, KeyStore, KeyDataDir, KeyLogLevel, KeyLogFile} {
		if value, ok := dotenv[envName(key)]; ok && value != "" {
			v.SetDefault(key, value)
		}
	}
	// AutomaticEnv reads os.Getenv directly; the injected lookup is applied on top of .env.
	if l.LookupEnv != nil {
		for _, key := range []string{KeyProvider, KeyModel, KeyStore, KeyDataDir, KeyLogLevel, KeyLogFile} {
			if value, ok := l.LookupEnv(envName(key)); ok && value != "" {
				v.SetDefault(key, value)
			}
		}
	}

	cfg := &Config{
		Provider: strings.ToLower(strings.TrimSpace(v.GetString(KeyProvider))),
		Model:    strings.TrimSpace(v.GetString(KeyModel)),
		Store:    strings.ToLower(strings.TrimSpace(v.GetString(KeyStore))),
		DataDir:  v.GetString(KeyDataDir),
		LogLevel: v.GetString(KeyLogLevel),
		LogFile:  v.GetString(KeyLogFile),
		Paths:    paths,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.APIKey = l.resolveAPIKey(cfg.Provider, dotenv)
	return cfg, nil
}

// Validate checks the provider and store settings.
func (c *Config) Validate() error {
	if !IsSupportedProvider(c.Provider) {
		return fmt.Errorf("unknown provider %q (supported: %s)", c.Provider, strings.Join(supportedProviders, ", "))
	}
	switch c.Store {
	case StoreSQLite, StoreFile, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q (supported: sqlite, file, memory)", c.Store)
	}
	if c.Store != StoreMemory && c.DataDir == "" {
		return fmt.Errorf("data directory is required for the %s store", c.Store)
	}
	return nil
}

// RequireAPIKey returns the credential or ErrMissingAPIKey.
func (c *Config) RequireAPIKey() (string, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		names := strings.Join(APIKeyNames(c.Provider), ", ")
		return "", fmt.Errorf("%w for provider %s (expected one of %s)", ErrMissingAPIKey, c.Provider, names)
	}
	return c.APIKey, nil
}

// IsSupportedProvider reports whether gemchat has a client for the provider.
func IsSupportedProvider(provider string) bool {
	for _, p := range supportedProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// SupportedProviders returns the provider names gemchat can talk to.
func SupportedProviders() []string {
	out := make([]string, len(supportedProviders))
	copy(out, supportedProviders)
	return out
}

// APIKeyNames lists the variables consulted for a provider's credential, in priority order.
func APIKeyNames(provider string) []string {
	upper := strings.ToUpper(provider)
	names := []string{
		fmt.Sprintf("%s_%s_API_KEY", EnvPrefix, upper),
		fmt.Sprintf("%s_API_KEY", upper),
	}
	if provider == "gemini" {
		names = append(names, "GOOGLE_API_KEY")
	}
	return append(names, "API_KEY")
}

// resolveAPIKey walks the candidate names; for each name the environment wins over .env files.
func (l *Loader) resolveAPIKey(provider string, dotenv map[string]string) string {
	for _, name := range APIKeyNames(provider) {
		if l.LookupEnv != nil {
			if value, ok := l.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
				return strings.TrimSpace(value)
			}
		}
		if value, ok := dotenv[name]; ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// readDotEnv merges the config-directory .env with the local .env (local wins).
func (l *Loader) readDotEnv() (map[string]string, Paths, error) {
	merged := make(map[string]string)
	paths := Paths{ConfigDir: l.ConfigDir}

	if l.ConfigDir != "" {
		paths.ConfigEnvPath = filepath.Join(l.ConfigDir, ".env")
		loaded, err := mergeDotEnv(paths.ConfigEnvPath, merged)
		if err != nil {
			return nil, paths, fmt.Errorf("failed to load config .env: %w", err)
		}
		paths.ConfigEnvLoaded = loaded
	}

	if l.WorkDir != "" {
		paths.LocalEnvPath = filepath.Join(l.WorkDir, ".env")
		loaded, err := mergeDotEnv(paths.LocalEnvPath, merged)
		if err != nil {
			return nil, paths, fmt.Errorf("failed to load local .env: %w", err)
		}
		paths.LocalEnvLoaded = loaded
	}

	return merged, paths, nil
}

func mergeDotEnv(path string, into map[string]string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return false, err
	}
	for k, v := range values {
		into[k] = v
	}
	return true, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}
