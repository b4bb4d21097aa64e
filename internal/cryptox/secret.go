package cryptox

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Secret is a locked, guarded buffer for the master secret and the
// passphrase while a session is unlocked. The zero value is a destroyed
// secret.
type Secret struct {
	mu  sync.RWMutex
	buf *memguard.LockedBuffer
}

// NewSecret moves b into locked memory. b is wiped.
func NewSecret(b []byte) *Secret {
	return &Secret{buf: memguard.NewBufferFromBytes(b)}
}

// Copy returns a heap copy of the secret, or nil once destroyed. The caller
// owns the copy and must Wipe it.
func (s *Secret) Copy() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.aliveLocked() {
		return nil
	}
	src := s.buf.Bytes()
	out := make([]byte, len(src))
	copy(out, src)
	return out
}

// Len is 0 once destroyed.
func (s *Secret) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.aliveLocked() {
		return 0
	}
	return s.buf.Size()
}

func (s *Secret) Alive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aliveLocked()
}

func (s *Secret) aliveLocked() bool {
	return s.buf != nil && s.buf.IsAlive()
}

// Destroy wipes and releases the buffer. It is idempotent.
func (s *Secret) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf != nil {
		s.buf.Destroy()
		s.buf = nil
	}
}

// Wipe zeroes b in place. nil is allowed.
func Wipe(b []byte) {
	memguard.WipeBytes(b)
}
