package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLoader returns a loader isolated from the real environment.
func newTestLoader(t *testing.T, env map[string]string) *Loader {
	t.Helper()
	return &Loader{
		ConfigDir: t.TempDir(),
		WorkDir:   t.TempDir(),
		LookupEnv: func(key string) (string, bool) {
			value, ok := env[key]
			return value, ok
		},
	}
}

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0644))
}

func TestLoader_Defaults(t *testing.T) {
	loader := newTestLoader(t, nil)

	cfg, err := loader.Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, loader.ConfigDir, cfg.DataDir)
	assert.Empty(t, cfg.Model)
	assert.Empty(t, cfg.APIKey)
	assert.False(t, cfg.Paths.ConfigEnvLoaded)
	assert.False(t, cfg.Paths.LocalEnvLoaded)
}

func TestLoader_ConfigurationPriority(t *testing.T) {
	loader := newTestLoader(t, map[string]string{
		"GEMCHAT_STORE": "memory",
	})

	writeEnvFile(t, loader.ConfigDir, "GEMCHAT_PROVIDER=openai\nGEMCHAT_STORE=file\nGEMCHAT_LOG_LEVEL=warn\n")
	writeEnvFile(t, loader.WorkDir, "GEMCHAT_PROVIDER=anthropic\n")

	cfg, err := loader.Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Provider, "local .env should override config .env")
	assert.Equal(t, StoreMemory, cfg.Store, "environment should override .env files")
	assert.Equal(t, "warn", cfg.LogLevel, "config .env value should be kept when nothing overrides it")
	assert.True(t, cfg.Paths.ConfigEnvLoaded)
	assert.True(t, cfg.Paths.LocalEnvLoaded)
}

func TestLoader_FlagsWin(t *testing.T) {
	loader := newTestLoader(t, map[string]string{"GEMCHAT_PROVIDER": "openai"})

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String(KeyProvider, "", "")
	require.NoError(t, flags.Parse([]string{"--provider", "anthropic"}))

	v := viper.New()
	require.NoError(t, v.BindPFlag(KeyProvider, flags.Lookup(KeyProvider)))

	cfg, err := loader.Load(v)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider)
}

func TestLoader_APIKeyResolution(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		env      map[string]string
		dotenv   string
		expected string
	}{
		{
			name:     "prefixed key wins",
			env:      map[string]string{"GEMCHAT_GEMINI_API_KEY": "prefixed", "GEMINI_API_KEY": "plain"},
			expected: "prefixed",
		},
		{
			name:     "provider key",
			env:      map[string]string{"GEMINI_API_KEY": "plain", "API_KEY": "generic"},
			expected: "plain",
		},
		{
			name:     "google key for gemini",
			env:      map[string]string{"GOOGLE_API_KEY": "google"},
			expected: "google",
		},
		{
			name:     "generic API_KEY fallback",
			env:      map[string]string{"API_KEY": "generic"},
			expected: "generic",
		},
		{
			name:     "environment beats .env for the same name",
			env:      map[string]string{"GEMINI_API_KEY": "from-env"},
			dotenv:   "GEMINI_API_KEY=from-file\n",
			expected: "from-env",
		},
		{
			name:     "dotenv only",
			dotenv:   "GEMINI_API_KEY=from-file\n",
			expected: "from-file",
		},
		{
			name:     "openai ignores google key",
			provider: "openai",
			env:      map[string]string{"GOOGLE_API_KEY": "google", "OPENAI_API_KEY": "sk-test"},
			expected: "sk-test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{}
			for k, v := range tt.env {
				env[k] = v
			}
			if tt.provider != "" {
				env["GEMCHAT_PROVIDER"] = tt.provider
			}
			loader := newTestLoader(t, env)
			if tt.dotenv != "" {
				writeEnvFile(t, loader.WorkDir, tt.dotenv)
			}

			cfg, err := loader.Load(viper.New())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.APIKey)
		})
	}
}

func TestConfig_RequireAPIKey(t *testing.T) {
	cfg := &Config{Provider: "gemini"}
	_, err := cfg.RequireAPIKey()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	cfg.APIKey = "abc"
	key, err := cfg.RequireAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "abc", key)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: Config{Provider: "gemini", Store: StoreSQLite, DataDir: "/tmp"}},
		{name: "memory without dir", cfg: Config{Provider: "gemini", Store: StoreMemory}},
		{name: "unknown provider", cfg: Config{Provider: "bard", Store: StoreMemory}, wantErr: true},
		{name: "unknown store", cfg: Config{Provider: "gemini", Store: "redis", DataDir: "/tmp"}, wantErr: true},
		{name: "file store needs dir", cfg: Config{Provider: "gemini", Store: StoreFile}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoader_InvalidProvider(t *testing.T) {
	loader := newTestLoader(t, map[string]string{"GEMCHAT_PROVIDER": "bard"})
	_, err := loader.Load(viper.New())
	assert.Error(t, err)
}

func TestSupportedProviders(t *testing.T) {
	providers := SupportedProviders()
	assert.Equal(t, []string{"gemini", "openai", "anthropic"}, providers)

	providers[0] = "changed"
	assert.True(t, IsSupportedProvider("gemini"))
}
