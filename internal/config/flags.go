package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/gophpass/internal/flagx"
)

// parseFlags overlays the flags this package owns; everything else in args is
// ignored.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-d", "-t", "-l", "-v"})

	fs := flag.NewFlagSet("gophpass", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DSN, "d", cfg.DSN, "database DSN")
	timeout := fs.Int("t", int(cfg.InactivityTimeout/time.Second), "inactivity timeout (in seconds)")
	fs.IntVar(&cfg.PasswordLength, "l", cfg.PasswordLength, "password length")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			cfg.InactivityTimeout = time.Duration(*timeout) * time.Second
		}
	})
	return nil
}
