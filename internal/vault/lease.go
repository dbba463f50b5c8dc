package vault

import (
	"errors"
	"sync"

	"github.com/atinyakov/zkkeeper/internal/zkidentity"
)

// ErrLeaseReleased is returned when a released lease is used.
var ErrLeaseReleased = errors.New("secret lease released")

// Lease is a single-call, read-only handle on one identity secret. Each
// lease owns its own decrypted copy; Release wipes it.
type Lease struct {
	commitment string

	mu       sync.Mutex
	secret   *zkidentity.Secret
	released bool
}

// Commitment returns the public commitment of the leased identity.
func (l *Lease) Commitment() string {
	return l.commitment
}

// Use calls fn with a scratch copy of the secret that is wiped when fn
// returns. Concurrent Use calls on one lease are serialized.
func (l *Lease) Use(fn func(s *zkidentity.Secret) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return ErrLeaseReleased
	}
	scratch := *l.secret
	defer scratch.Zero()
	return fn(&scratch)
}

// Release wipes the leased secret. It is safe to call more than once.
func (l *Lease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.secret.Zero()
	l.secret = nil
	l.released = true
}
