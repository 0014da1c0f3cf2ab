// Package keysource provides a passphrase-backed implementation of
// internal/stages.KeySource, deriving key material on demand with
// internal/keymaterial rather than persisting keys itself (spec's non-goal
// of encrypted key storage, §6.3).
package keysource

import (
	"crypto/sha256"
	"sync"

	"github.com/adapipe/engine/internal/keymaterial"
	"github.com/adapipe/engine/internal/perr"
)

// Passphrase derives and caches key material per key id from a single
// passphrase, using a deterministic salt (sha256 of the key id) so the same
// key id always derives the same key within one passphrase's lifetime. This
// keeps a run's forward and reverse directions consistent without a key
// store, at the cost of not rotating keys (spec's non-goal).
type Passphrase struct {
	passphrase []byte
	params     keymaterial.DeriveParams

	mu    sync.Mutex
	cache map[string]keymaterial.Material
}

// NewPassphrase builds a KeySource deriving AES-256-class (32-byte) keys
// via Argon2id from passphrase.
func NewPassphrase(passphrase string) *Passphrase {
	return &Passphrase{
		passphrase: []byte(passphrase),
		params: keymaterial.DeriveParams{
			KDF:         keymaterial.KDFArgon2,
			KeySize:     32,
			Iterations:  3,
			MemoryKiB:   64 * 1024,
			Parallelism: 2,
		},
		cache: make(map[string]keymaterial.Material),
	}
}

// Material returns (deriving and caching on first use) the key material for
// keyID, implementing internal/stages.KeySource.
func (p *Passphrase) Material(keyID string) (keymaterial.Material, error) {
	if keyID == "" {
		return keymaterial.Material{}, perr.InvalidParameter("key_id", "must not be empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.cache[keyID]; ok {
		return m, nil
	}

	salt := sha256.Sum256([]byte("adapipe-keysource:" + keyID))
	m, err := keymaterial.Derive(p.passphrase, salt[:16], p.params)
	if err != nil {
		return keymaterial.Material{}, err
	}
	p.cache[keyID] = m
	return m, nil
}
