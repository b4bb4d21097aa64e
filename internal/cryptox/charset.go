package cryptox

import (
	"fmt"

	"github.com/dmitrijs2005/gophpass/internal/common"
)

const (
	// DefaultAlphabetChars is every printable ASCII character except space,
	// double quote and backslash (92 symbols).
	DefaultAlphabetChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*()-_=+[]{};:,.<>?~`|/'"

	// LegacyAlphabetChars is the 87-symbol set of the first web release.
	LegacyAlphabetChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*()-_=+[]{};:,.<>?"

	// DefaultOversample is the raw-to-accepted byte ratio requested from the
	// expansion step.
	DefaultOversample = 4

	minAlphabet = 2
	maxAlphabet = 256
)

// Alphabet is an ordered sequence of distinct symbols.
type Alphabet []rune

var (
	DefaultAlphabet = mustAlphabet(DefaultAlphabetChars)
	LegacyAlphabet  = mustAlphabet(LegacyAlphabetChars)
)

// NewAlphabet builds an Alphabet from s, preserving order. It fails with
// common.ErrInvalidAlphabet when s has fewer than 2 or more than 256 symbols
// or repeats a symbol.
func NewAlphabet(s string) (Alphabet, error) {
	a := Alphabet(s)
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func mustAlphabet(s string) Alphabet {
	a, err := NewAlphabet(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Validate checks the size and distinctness of the alphabet.
func (a Alphabet) Validate() error {
	if len(a) < minAlphabet || len(a) > maxAlphabet {
		return fmt.Errorf("%w: %d symbols", common.ErrInvalidAlphabet, len(a))
	}
	seen := make(map[rune]struct{}, len(a))
	for _, r := range a {
		if _, dup := seen[r]; dup {
			return fmt.Errorf("%w: duplicate symbol %q", common.ErrInvalidAlphabet, r)
		}
		seen[r] = struct{}{}
	}
	return nil
}

func (a Alphabet) String() string { return string(a) }

// Threshold is the largest multiple of n not exceeding 256. Bytes below it
// map uniformly onto n symbols.
func Threshold(n int) int {
	return (256 / n) * n
}

// RawByteCount is the number of raw bytes to request for a password of the
// given length.
func RawByteCount(length, oversample int) int {
	if oversample < 1 {
		oversample = 1
	}
	return length * oversample
}

// MapToCharset converts raw bytes into length symbols of alphabet using
// rejection sampling: bytes at or above Threshold(len(alphabet)) are skipped,
// accepted bytes emit alphabet[b % len(alphabet)].
//
// If raw runs out before length symbols are emitted the call fails with
// common.ErrInsufficientEntropy; a short password is never returned.
func MapToCharset(raw []byte, length int, alphabet Alphabet) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("%w: %d", common.ErrInvalidLength, length)
	}
	if err := alphabet.Validate(); err != nil {
		return "", err
	}

	n := len(alphabet)
	threshold := Threshold(n)

	out := make([]rune, 0, length)
	for _, b := range raw {
		if int(b) >= threshold {
			continue
		}
		out = append(out, alphabet[int(b)%n])
		if len(out) == length {
			return string(out), nil
		}
	}

	return "", fmt.Errorf("%w: %d of %d symbols from %d bytes",
		common.ErrInsufficientEntropy, len(out), length, len(raw))
}
