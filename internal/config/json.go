package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophpass/internal/flagx"
	"github.com/dmitrijs2005/gophpass/internal/timex"
)

// jsonConfig is the file DTO. Pointer fields tell absent keys from zero
// values, so a file only overrides what it names.
type jsonConfig struct {
	Driver              *string         `json:"driver"`
	DSN                 *string         `json:"dsn"`
	InactivityTimeout   *timex.Duration `json:"inactivity_timeout"`
	ClipboardClearAfter *timex.Duration `json:"clipboard_clear_after"`
	PasswordLength      *int            `json:"password_length"`
	Oversample          *int            `json:"oversample"`
	ArgonTime           *uint32         `json:"argon_time"`
	ArgonMemoryKiB      *uint32         `json:"argon_memory_kib"`
	ArgonThreads        *uint8          `json:"argon_threads"`
	Alphabet            *string         `json:"alphabet"`
	WorkerQueue         *int            `json:"worker_queue"`
	LogLevel            *string         `json:"log_level"`
	RequireTerminal     *bool           `json:"require_terminal"`
}

func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	jc.applyTo(cfg)
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (jc *jsonConfig) applyTo(cfg *Config) {
	set(&cfg.Driver, jc.Driver)
	set(&cfg.DSN, jc.DSN)
	if jc.InactivityTimeout != nil {
		cfg.InactivityTimeout = jc.InactivityTimeout.Duration
	}
	if jc.ClipboardClearAfter != nil {
		cfg.ClipboardClearAfter = jc.ClipboardClearAfter.Duration
	}
	set(&cfg.PasswordLength, jc.PasswordLength)
	set(&cfg.Oversample, jc.Oversample)
	set(&cfg.ArgonTime, jc.ArgonTime)
	set(&cfg.ArgonMemoryKiB, jc.ArgonMemoryKiB)
	set(&cfg.ArgonThreads, jc.ArgonThreads)
	set(&cfg.Alphabet, jc.Alphabet)
	set(&cfg.WorkerQueue, jc.WorkerQueue)
	set(&cfg.LogLevel, jc.LogLevel)
	set(&cfg.RequireTerminal, jc.RequireTerminal)
}
