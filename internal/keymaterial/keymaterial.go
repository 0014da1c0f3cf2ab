// Package keymaterial derives and carries the symmetric key material the
// authenticated-encryption stage needs (spec §4.3, §6.3). It never persists
// keys itself — storage is an external key store consumed through the
// KeyStore interface, matching the spec's non-goal of encrypted key storage.
package keymaterial

import (
	"crypto/sha256"
	"time"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/perr"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// KDF selects the password/passphrase-stretching function used to derive a
// symmetric key from a passphrase and salt.
type KDF string

const (
	KDFArgon2 KDF = "argon2"
	KDFPBKDF2 KDF = "pbkdf2"
)

// Material is the key + framing parameters the encryption stage uses for one
// run (spec §4.3's KeyMaterial struct).
type Material struct {
	Key       []byte
	Salt      []byte
	Algorithm string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Expired reports whether the material has passed its ExpiresAt, if set.
func (m Material) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}

// DeriveParams configures a KDF invocation (spec §4.3 encryption-stage
// config: key-derivation, key_size, salt_size, iterations, optional
// memory/parallel cost).
type DeriveParams struct {
	KDF         KDF
	KeySize     int
	Iterations  uint32 // PBKDF2 iteration count, or Argon2 time cost
	MemoryKiB   uint32 // Argon2 memory cost
	Parallelism uint8  // Argon2 parallelism
}

// Derive stretches passphrase+salt into key material using the configured
// KDF. Salt must be supplied by the caller (the writer generates and records
// it); Derive never invents one so restoration can reproduce the same key.
func Derive(passphrase, salt []byte, p DeriveParams) (Material, error) {
	if len(salt) == 0 {
		return Material{}, perr.InvalidParameter("salt", "must not be empty")
	}
	if p.KeySize <= 0 {
		p.KeySize = 32
	}

	var key []byte
	switch p.KDF {
	case KDFArgon2, "":
		iterations := p.Iterations
		if iterations == 0 {
			iterations = 3
		}
		memory := p.MemoryKiB
		if memory == 0 {
			memory = 64 * 1024
		}
		parallelism := p.Parallelism
		if parallelism == 0 {
			parallelism = 4
		}
		key = argon2.IDKey(passphrase, salt, iterations, memory, parallelism, uint32(p.KeySize))
	case KDFPBKDF2:
		iterations := p.Iterations
		if iterations == 0 {
			iterations = 100_000
		}
		key = pbkdf2.Key(passphrase, salt, int(iterations), p.KeySize, sha256.New)
	default:
		return Material{}, perr.InvalidConfiguration("unknown key derivation function %q", p.KDF)
	}

	return Material{
		Key:       key,
		Salt:      salt,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DeriveTenantKey derives a per-run key from a long-lived master key using
// HKDF, matching the teacher's tenant key-derivation scheme. info binds the
// derived key to a specific purpose (e.g. "adapipe:<pipeline_id>") so the
// same master key never produces the same derived key for two different
// purposes.
func DeriveTenantKey(masterKey []byte, salt, info []byte, keySize int) ([]byte, error) {
	if keySize <= 0 {
		keySize = 32
	}
	reader := hkdf.New(sha256.New, masterKey, salt, info)
	derived := make([]byte, keySize)
	if _, err := reader.Read(derived); err != nil {
		return nil, perr.Wrap(perr.KindEncryption, err, "HKDF key derivation failed")
	}
	return derived, nil
}

// Store is the key-store collaborator interface consumed through §6.3; the
// core never reads or writes key material to disk itself.
type Store interface {
	RetrieveKeyMaterial(keyID string, sec *chunk.SecurityContext) (Material, error)
	StoreKeyMaterial(keyID string, m Material, sec *chunk.SecurityContext) error
	RotateKeys(keyID string, sec *chunk.SecurityContext) (Material, error)
}
