package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophpass/internal/cryptox"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() Config {
	var c Config
	c.LoadDefaults()
	return c
}

func writeJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	want := Config{
		Driver:              "sqlite",
		InactivityTimeout:   90 * time.Second,
		ClipboardClearAfter: 20 * time.Second,
		PasswordLength:      20,
		Oversample:          4,
		ArgonTime:           3,
		ArgonMemoryKiB:      65536,
		ArgonThreads:        1,
		Alphabet:            "default",
		WorkerQueue:         16,
		LogLevel:            "info",
		RequireTerminal:     true,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, c.Validate())
}

func TestParseJSON_OverridesOnlyNamedKeys(t *testing.T) {
	path := writeJSON(t, map[string]any{
		"dsn":                   "/tmp/x.db",
		"inactivity_timeout":    "2m",
		"clipboard_clear_after": 5_000_000_000,
		"alphabet":              "legacy",
		"require_terminal":      false,
	})

	c := defaults()
	require.NoError(t, parseJSON(&c, []string{"-c", path}))

	want := defaults()
	want.DSN = "/tmp/x.db"
	want.InactivityTimeout = 2 * time.Minute
	want.ClipboardClearAfter = 5 * time.Second
	want.Alphabet = "legacy"
	want.RequireTerminal = false
	assert.Empty(t, cmp.Diff(want, c))
}

func TestParseJSON_NoFlagNoFile(t *testing.T) {
	c := defaults()
	require.NoError(t, parseJSON(&c, []string{"-d", "x.db"}))
	assert.Equal(t, defaults(), c)
}

func TestParseJSON_Errors(t *testing.T) {
	c := defaults()
	require.Error(t, parseJSON(&c, []string{"-config", filepath.Join(t.TempDir(), "missing.json")}))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"inactivity_timeout": "soon"}`), 0o600))
	require.Error(t, parseJSON(&c, []string{"-c", bad}))
}

func TestParseEnv(t *testing.T) {
	c := defaults()
	err := parseEnv(&c, map[string]string{
		"GOPHPASS_DRIVER":             "pgx",
		"GOPHPASS_DSN":                "postgres://u@localhost/sites",
		"GOPHPASS_INACTIVITY_TIMEOUT": "45s",
		"GOPHPASS_PASSWORD_LENGTH":    "32",
		"GOPHPASS_ARGON_THREADS":      "2",
		"GOPHPASS_REQUIRE_TERMINAL":   "false",
		"UNRELATED":                   "x",
	})
	require.NoError(t, err)

	assert.Equal(t, "pgx", c.Driver)
	assert.Equal(t, "postgres://u@localhost/sites", c.DSN)
	assert.Equal(t, 45*time.Second, c.InactivityTimeout)
	assert.Equal(t, 32, c.PasswordLength)
	assert.Equal(t, uint8(2), c.ArgonThreads)
	assert.False(t, c.RequireTerminal)
	assert.Equal(t, 20*time.Second, c.ClipboardClearAfter, "unset variables keep earlier values")
}

func TestParseEnv_BadValue(t *testing.T) {
	c := defaults()
	require.Error(t, parseEnv(&c, map[string]string{"GOPHPASS_PASSWORD_LENGTH": "many"}))
}

func TestParseEnv_DotenvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("GOPHPASS_LOG_LEVEL=debug\n"), 0o600))

	orig := dotenvFile
	dotenvFile = path
	t.Cleanup(func() { dotenvFile = orig })
	t.Setenv("GOPHPASS_LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("GOPHPASS_LOG_LEVEL"))

	c := defaults()
	require.NoError(t, parseEnv(&c, nil))
	assert.Equal(t, "debug", c.LogLevel)
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    func(c *Config)
		wantErr bool
	}{
		{
			name: "all flags",
			args: []string{"-d", "/tmp/s.db", "-t", "30", "-l", "32", "-v", "debug"},
			want: func(c *Config) {
				c.DSN = "/tmp/s.db"
				c.InactivityTimeout = 30 * time.Second
				c.PasswordLength = 32
				c.LogLevel = "debug"
			},
		},
		{
			name: "foreign flags ignored",
			args: []string{"-c", "cfg.json", "-x", "1", "-l", "12"},
			want: func(c *Config) { c.PasswordLength = 12 },
		},
		{
			name: "timeout untouched without -t",
			args: []string{},
			want: func(c *Config) {},
		},
		{name: "bad timeout", args: []string{"-t", "abc"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			c.InactivityTimeout = 1500 * time.Millisecond
			err := parseFlags(&c, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			want := defaults()
			want.InactivityTimeout = 1500 * time.Millisecond
			tt.want(&want)
			assert.Empty(t, cmp.Diff(want, c))
		})
	}
}

func TestLoad_Precedence(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeJSON(t, map[string]any{"password_length": 24, "log_level": "warn", "dsn": "/json.db"})
	t.Setenv("GOPHPASS_PASSWORD_LENGTH", "28")

	cfg, err := Load([]string{"-c", path, "-d", "/flag.db"})
	require.NoError(t, err)

	assert.Equal(t, 28, cfg.PasswordLength, "environment beats file")
	assert.Equal(t, "warn", cfg.LogLevel, "file beats defaults")
	assert.Equal(t, "/flag.db", cfg.DSN, "flags beat everything")
}

func TestLoad_InvalidResult(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load([]string{"-l", "0"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"driver", func(c *Config) { c.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Driver = "pgx" }},
		{"timeout", func(c *Config) { c.InactivityTimeout = 0 }},
		{"clipboard", func(c *Config) { c.ClipboardClearAfter = -time.Second }},
		{"length", func(c *Config) { c.PasswordLength = 5000 }},
		{"oversample", func(c *Config) { c.Oversample = 0 }},
		{"raw bytes", func(c *Config) { c.PasswordLength = 1024; c.Oversample = 8 }},
		{"argon", func(c *Config) { c.ArgonThreads = 0 }},
		{"alphabet", func(c *Config) { c.Alphabet = "aa" }},
		{"queue", func(c *Config) { c.WorkerQueue = -1 }},
		{"log level", func(c *Config) { c.LogLevel = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestValidate_RawByteLimit(t *testing.T) {
	c := defaults()
	c.PasswordLength, c.Oversample = 1020, 8
	require.NoError(t, c.Validate())

	c.Oversample = 9
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw bytes")
}

func TestAlphabetSet(t *testing.T) {
	c := defaults()

	a, err := c.AlphabetSet()
	require.NoError(t, err)
	assert.Equal(t, cryptox.DefaultAlphabet, a)

	c.Alphabet = AlphabetLegacy
	a, err = c.AlphabetSet()
	require.NoError(t, err)
	assert.Equal(t, cryptox.LegacyAlphabet, a)

	c.Alphabet = "0123456789"
	a, err = c.AlphabetSet()
	require.NoError(t, err)
	assert.Len(t, a, 10)
}

func TestKDFParams(t *testing.T) {
	c := defaults()
	assert.Equal(t, cryptox.DefaultParams(), c.KDFParams())
}

func TestResolveDSN(t *testing.T) {
	c := defaults()
	c.DSN = "/explicit.db"
	got, err := c.ResolveDSN()
	require.NoError(t, err)
	assert.Equal(t, "/explicit.db", got)
}
