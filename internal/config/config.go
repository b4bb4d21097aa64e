package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophpass/internal/cryptox"
	"github.com/dmitrijs2005/gophpass/internal/dbx"
	"github.com/dmitrijs2005/gophpass/internal/filex"
	"github.com/dmitrijs2005/gophpass/internal/logging"
)

const (
	// AlphabetDefault and AlphabetLegacy name the built-in symbol sets. Any
	// other Alphabet value is used literally as the symbol set.
	AlphabetDefault = "default"
	AlphabetLegacy  = "legacy"

	appDir    = "gophpass"
	sqliteDB  = "sites.db"
	maxLength = 1024
)

// Config holds every runtime setting.
type Config struct {
	Driver              string        `env:"DRIVER"`
	DSN                 string        `env:"DSN"`
	InactivityTimeout   time.Duration `env:"INACTIVITY_TIMEOUT"`
	ClipboardClearAfter time.Duration `env:"CLIPBOARD_CLEAR_AFTER"`
	PasswordLength      int           `env:"PASSWORD_LENGTH"`
	Oversample          int           `env:"OVERSAMPLE"`
	ArgonTime           uint32        `env:"ARGON_TIME"`
	ArgonMemoryKiB      uint32        `env:"ARGON_MEMORY_KIB"`
	ArgonThreads        uint8         `env:"ARGON_THREADS"`
	Alphabet            string        `env:"ALPHABET"`
	WorkerQueue         int           `env:"WORKER_QUEUE"`
	LogLevel            string        `env:"LOG_LEVEL"`
	RequireTerminal     bool          `env:"REQUIRE_TERMINAL"`
}

// LoadDefaults sets every field to its built-in value.
func (c *Config) LoadDefaults() {
	p := cryptox.DefaultParams()
	*c = Config{
		Driver:              string(dbx.SQLite),
		InactivityTimeout:   90 * time.Second,
		ClipboardClearAfter: 20 * time.Second,
		PasswordLength:      20,
		Oversample:          cryptox.DefaultOversample,
		ArgonTime:           p.Time,
		ArgonMemoryKiB:      p.MemoryKiB,
		ArgonThreads:        p.Threads,
		Alphabet:            AlphabetDefault,
		WorkerQueue:         16,
		LogLevel:            "info",
		RequireTerminal:     true,
	}
}

// Load applies defaults, the JSON file, the environment and args (usually
// os.Args[1:]) in that order, then validates the result.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, nil); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the rest of the program cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if d, err := dbx.ParseDialect(c.Driver); err != nil {
		errs = append(errs, err)
	} else if d == dbx.Postgres && c.DSN == "" {
		errs = append(errs, errors.New("dsn is required for postgres"))
	}
	if c.InactivityTimeout <= 0 {
		errs = append(errs, fmt.Errorf("inactivity timeout must be positive, got %s", c.InactivityTimeout))
	}
	if c.ClipboardClearAfter <= 0 {
		errs = append(errs, fmt.Errorf("clipboard clear delay must be positive, got %s", c.ClipboardClearAfter))
	}
	if c.PasswordLength < 1 || c.PasswordLength > maxLength {
		errs = append(errs, fmt.Errorf("password length must be in 1..%d, got %d", maxLength, c.PasswordLength))
	}
	if c.Oversample < 1 {
		errs = append(errs, fmt.Errorf("oversample must be at least 1, got %d", c.Oversample))
	}
	if n := cryptox.RawByteCount(c.PasswordLength, c.Oversample); n > cryptox.MaxRawBytes {
		errs = append(errs, fmt.Errorf("password length %d with oversample %d needs %d raw bytes, limit is %d",
			c.PasswordLength, c.Oversample, n, cryptox.MaxRawBytes))
	}
	if err := c.KDFParams().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.AlphabetSet(); err != nil {
		errs = append(errs, err)
	}
	if c.WorkerQueue < 0 {
		errs = append(errs, fmt.Errorf("worker queue must not be negative, got %d", c.WorkerQueue))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// KDFParams builds the Argon2id parameters.
func (c *Config) KDFParams() cryptox.Params {
	return cryptox.Params{
		Time:      c.ArgonTime,
		MemoryKiB: c.ArgonMemoryKiB,
		Threads:   c.ArgonThreads,
		KeyLen:    cryptox.KeyLen,
	}
}

// AlphabetSet resolves Alphabet to a symbol set.
func (c *Config) AlphabetSet() (cryptox.Alphabet, error) {
	switch c.Alphabet {
	case "", AlphabetDefault:
		return cryptox.DefaultAlphabet, nil
	case AlphabetLegacy:
		return cryptox.LegacyAlphabet, nil
	default:
		return cryptox.NewAlphabet(c.Alphabet)
	}
}

// ResolveDSN returns DSN, or for SQLite without one the database file in
// the per-user data directory.
func (c *Config) ResolveDSN() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	dir, err := filex.DataDir(appDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, sqliteDB), nil
}
