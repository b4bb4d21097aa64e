package cryptox

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophpass/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeyLen is the size of the master secret and of the per-site seed.
	KeyLen = 64

	// MaxRawBytes is the HKDF-SHA256 output limit (255 blocks).
	MaxRawBytes = 255 * sha256.Size
)

// Params configures the memory-hard step.
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	KeyLen    uint32
}

// DefaultParams returns time 3, 64 MiB, one lane and a 64-byte output.
func DefaultParams() Params {
	return Params{Time: 3, MemoryKiB: 64 * 1024, Threads: 1, KeyLen: KeyLen}
}

// Validate rejects parameters argon2 cannot run with or that would produce
// a secret of the wrong size.
func (p Params) Validate() error {
	switch {
	case p.Time == 0:
		return fmt.Errorf("%w: time cost must be positive", common.ErrInvalidParams)
	case p.Threads == 0:
		return fmt.Errorf("%w: parallelism must be positive", common.ErrInvalidParams)
	case p.MemoryKiB < 8*uint32(p.Threads):
		return fmt.Errorf("%w: memory cost below 8 KiB per lane", common.ErrInvalidParams)
	case p.KeyLen != KeyLen:
		return fmt.Errorf("%w: output length must be %d", common.ErrInvalidParams, KeyLen)
	}
	return nil
}

// Identity is the user half of the salt material.
type Identity struct {
	Username string
	PIN      string
}

func (id Identity) Validate() error {
	if id.Username == "" {
		return fmt.Errorf("%w: empty username", common.ErrInvalidIdentity)
	}
	return nil
}

// SaltSelector picks the salt branch: the PIN when set, the username otherwise.
func (id Identity) SaltSelector() string {
	if id.PIN != "" {
		return id.PIN
	}
	return id.Username
}

// Engine runs the derivation pipeline. It is stateless apart from its
// configuration and safe for concurrent use, although callers are expected
// to serialize memory-hard calls (see package worker).
type Engine struct {
	params Params
	check  ContextCheck
}

// NewEngine validates params and binds the secure-context check consulted
// before every derivation. A nil check is rejected.
func NewEngine(params Params, check ContextCheck) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if check == nil {
		return nil, fmt.Errorf("%w: no secure context check", common.ErrInvalidParams)
	}
	return &Engine{params: params, check: check}, nil
}

func (e *Engine) Params() Params { return e.params }

func (e *Engine) guard(pass []byte, id Identity) error {
	if err := e.check(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInsecureContext, err)
	}
	if len(pass) == 0 {
		return common.ErrEmptyPassphrase
	}
	return id.Validate()
}

// saltSeed returns SHA-512(pass || selector) as raw bytes.
func saltSeed(pass []byte, id Identity) []byte {
	sel := id.SaltSelector()
	buf := make([]byte, 0, len(pass)+len(sel))
	buf = append(buf, pass...)
	buf = append(buf, sel...)
	sum := sha512.Sum512(buf)
	Wipe(buf)
	return sum[:]
}

// Derive stretches the passphrase into the 64-byte master secret:
//
//	Argon2id(pass, SHA-512(pass || pin-or-username), params)
//
// The salt is derived from the inputs, so nothing has to be stored to
// reproduce the secret on another device. Derive performs no work and returns
// common.ErrInsecureContext when the context check fails.
func (e *Engine) Derive(pass []byte, id Identity) ([]byte, error) {
	if err := e.guard(pass, id); err != nil {
		return nil, err
	}

	salt := saltSeed(pass, id)
	defer Wipe(salt)

	return argon2.IDKey(pass, salt, e.params.Time, e.params.MemoryKiB, e.params.Threads, e.params.KeyLen), nil
}

// Expand produces rawByteCount bytes for the site identified by infoKey.
//
// The memory-hard step is repeated per site with the salt
// SHA-512(pass || pin-or-username) || username || infoKey, then the seed is
// stretched with HKDF-SHA256 using the same salt and infoKey as the info label.
func (e *Engine) Expand(pass []byte, id Identity, infoKey string, rawByteCount int) ([]byte, error) {
	if err := e.guard(pass, id); err != nil {
		return nil, err
	}
	if rawByteCount <= 0 || rawByteCount > MaxRawBytes {
		return nil, fmt.Errorf("%w: raw byte count %d", common.ErrInvalidLength, rawByteCount)
	}

	seed := saltSeed(pass, id)
	salt := make([]byte, 0, len(seed)+len(id.Username)+len(infoKey))
	salt = append(salt, seed...)
	salt = append(salt, id.Username...)
	salt = append(salt, infoKey...)
	Wipe(seed)
	defer Wipe(salt)

	siteSeed := argon2.IDKey(pass, salt, e.params.Time, e.params.MemoryKiB, e.params.Threads, e.params.KeyLen)
	defer Wipe(siteSeed)

	out := make([]byte, rawByteCount)
	if _, err := io.ReadFull(hkdf.New(sha256.New, siteSeed, salt, []byte(infoKey)), out); err != nil {
		Wipe(out)
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

// SitePassword derives a password of exactly length symbols from alphabet,
// requesting RawByteCount(length, oversample) raw bytes.
func (e *Engine) SitePassword(pass []byte, id Identity, infoKey string, length int, alphabet Alphabet, oversample int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("%w: %d", common.ErrInvalidLength, length)
	}
	if err := alphabet.Validate(); err != nil {
		return "", err
	}

	raw, err := e.Expand(pass, id, infoKey, RawByteCount(length, oversample))
	if err != nil {
		return "", err
	}
	defer Wipe(raw)

	return MapToCharset(raw, length, alphabet)
}
