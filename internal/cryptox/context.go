package cryptox

import (
	"errors"

	"golang.org/x/term"
)

// ContextCheck reports whether the execution environment may hold secrets.
// A non-nil error makes the engine refuse to derive anything.
type ContextCheck func() error

var errNoTerminal = errors.New("input is not an interactive terminal")

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// TerminalCheck accepts only processes whose fd is an interactive terminal.
// Piped or redirected input means another process can observe or feed the
// passphrase.
func TerminalCheck(fd int) ContextCheck {
	return func() error {
		if !isTerminal(fd) {
			return errNoTerminal
		}
		return nil
	}
}

// AssumeSecure is for embedders that verify the environment themselves.
func AssumeSecure() error { return nil }
