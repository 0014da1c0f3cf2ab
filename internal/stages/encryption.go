package stages

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"io"
	"sync/atomic"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/keymaterial"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/stage"
	"golang.org/x/crypto/chacha20poly1305"
)

// aead is the minimal cipher.AEAD surface the encryption stage needs.
type aead interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}

// nonceWire is the fixed wire width of ChunkFormat.nonce (spec §6.1). Only
// algorithms whose native AEAD nonce fits this width can be wired directly;
// see the xchacha20poly1305 note in NewEncryption below.
const nonceWire = 12

type encryptionStage struct {
	algorithm string
	material  keymaterial.Material
	gcm       aead
	// counter and prefix implement the recommended nonce-generation strategy
	// from spec §9's open question: a random prefix fixed for the life of
	// the stage, with a monotonically increasing counter filling the rest,
	// guaranteeing uniqueness within one container without coordination.
	noncePrefix [4]byte
	counter     uint64
}

// NewEncryption builds the authenticated-encryption stage (spec §4.3).
// aes256gcm and chacha20poly1305 use the pack's AEAD libraries directly,
// since both produce 12-byte nonces that fit the container's fixed
// ChunkFormat.nonce field. xchacha20poly1305 is accepted as a configuration
// value but has no wired codec here: its native nonce is 24 bytes and does
// not fit the spec's fixed 12-byte on-wire nonce slot (see DESIGN.md).
func NewEncryption(cfg stage.Configuration, material keymaterial.Material) (stage.Service, error) {
	p := stage.NewParams(cfg.Parameters)
	algo, err := p.OneOf("algorithm", "aes256gcm", "chacha20poly1305", "xchacha20poly1305")
	if err != nil {
		return nil, err
	}

	if algo == "xchacha20poly1305" {
		return nil, perr.InvalidConfiguration("xchacha20poly1305 nonce (24 bytes) does not fit the container's fixed 12-byte nonce frame")
	}

	var a aead
	switch algo {
	case "aes256gcm":
		block, err := aes.NewCipher(material.Key)
		if err != nil {
			return nil, perr.Encryption(err, "create AES cipher")
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, perr.Encryption(err, "create AES-GCM AEAD")
		}
		a = gcm
	case "chacha20poly1305":
		aead, err := chacha20poly1305.New(material.Key)
		if err != nil {
			return nil, perr.Encryption(err, "create ChaCha20-Poly1305 AEAD")
		}
		a = aead
	}
	if a.NonceSize() != nonceWire {
		return nil, perr.InvalidConfiguration("algorithm %q nonce size %d does not match the container's fixed %d-byte frame", algo, a.NonceSize(), nonceWire)
	}

	s := &encryptionStage{algorithm: algo, material: material, gcm: a}
	if _, err := io.ReadFull(rand.Reader, s.noncePrefix[:]); err != nil {
		return nil, perr.Wrap(perr.KindEncryption, err, "generate nonce prefix")
	}
	return s, nil
}

func (s *encryptionStage) nextNonce() []byte {
	n := atomic.AddUint64(&s.counter, 1) - 1
	nonce := make([]byte, nonceWire)
	copy(nonce[:4], s.noncePrefix[:])
	binary.BigEndian.PutUint64(nonce[4:], n)
	return nonce
}

func (s *encryptionStage) ProcessChunk(c chunk.FileChunk, cfg stage.Configuration, ctx *chunk.ProcessingContext) (chunk.FileChunk, error) {
	switch cfg.Operation {
	case stage.Forward:
		nonce := s.nextNonce()
		sealed := s.gcm.Seal(nil, nonce, c.Data(), nil)
		// The nonce rides alongside the chunk via ctx.stage_results, keyed
		// by sequence number, so the container writer can place it in the
		// ChunkFormat frame without the stage reaching into the writer.
		ctx.SetStageResult(nonceResultKey(c.SequenceNumber()), string(nonce))
		return c.WithData(sealed)
	case stage.Reverse:
		nonceStr, ok := ctx.StageResult(nonceResultKey(c.SequenceNumber()))
		if !ok {
			return chunk.FileChunk{}, perr.Internal("missing nonce for chunk %d during decryption", c.SequenceNumber())
		}
		plain, err := s.gcm.Open(nil, []byte(nonceStr), c.Data(), nil)
		if err != nil {
			return chunk.FileChunk{}, perr.Integrity("authentication failed for chunk %d", c.SequenceNumber())
		}
		return c.WithData(plain)
	default:
		return chunk.FileChunk{}, perr.InvalidConfiguration("unknown stage operation %q", cfg.Operation)
	}
}

func nonceResultKey(seq uint64) string {
	return NonceResultKey(seq)
}

// NonceResultKey is the ctx.StageResult key the encryption stage stores a
// chunk's nonce under, exported so internal/adapipe's container writer can
// read it back without reaching into the stage itself.
func NonceResultKey(seq uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return "encryption.nonce." + string(buf[:])
}

func (s *encryptionStage) Position() stage.Position { return stage.AnyPos }
func (s *encryptionStage) IsReversible() bool        { return true }
func (s *encryptionStage) StageType() stage.Type     { return stage.TypeEncryption }
func (s *encryptionStage) RequiresSequential() bool   { return false }
