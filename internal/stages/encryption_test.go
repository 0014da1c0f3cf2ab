package stages

import (
	"testing"

	"github.com/adapipe/engine/internal/chunk"
	"github.com/adapipe/engine/internal/keymaterial"
	"github.com/adapipe/engine/internal/stage"
)

func testMaterial(t *testing.T, size int) keymaterial.Material {
	t.Helper()
	m, err := keymaterial.Derive([]byte("passphrase"), []byte("0123456789012345"), keymaterial.DeriveParams{KeySize: size})
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	return m
}

func TestEncryptionRoundTrip(t *testing.T) {
	for _, algo := range []string{"aes256gcm", "chacha20poly1305"} {
		t.Run(algo, func(t *testing.T) {
			material := testMaterial(t, 32)
			svc, err := NewEncryption(stage.Configuration{Parameters: map[string]string{"algorithm": algo}}, material)
			if err != nil {
				t.Fatalf("NewEncryption: %v", err)
			}

			ctx := chunk.NewForStageTest(nil)
			c, _ := chunk.New(0, 0, []byte("top secret payload"), true)

			sealed, err := svc.ProcessChunk(c, stage.Configuration{Operation: stage.Forward}, ctx)
			if err != nil {
				t.Fatalf("forward: %v", err)
			}
			if string(sealed.Data()) == "top secret payload" {
				t.Fatal("expected ciphertext to differ from plaintext")
			}

			opened, err := svc.ProcessChunk(sealed, stage.Configuration{Operation: stage.Reverse}, ctx)
			if err != nil {
				t.Fatalf("reverse: %v", err)
			}
			if string(opened.Data()) != "top secret payload" {
				t.Fatalf("expected decrypted plaintext, got %q", opened.Data())
			}
		})
	}
}

func TestEncryptionRejectsXChaCha(t *testing.T) {
	material := testMaterial(t, 32)
	if _, err := NewEncryption(stage.Configuration{Parameters: map[string]string{"algorithm": "xchacha20poly1305"}}, material); err == nil {
		t.Fatal("expected xchacha20poly1305 to be rejected (24-byte nonce doesn't fit the 12-byte wire frame)")
	}
}

func TestEncryptionDetectsTamperedCiphertext(t *testing.T) {
	material := testMaterial(t, 32)
	svc, err := NewEncryption(stage.Configuration{Parameters: map[string]string{"algorithm": "aes256gcm"}}, material)
	if err != nil {
		t.Fatalf("NewEncryption: %v", err)
	}
	ctx := chunk.NewForStageTest(nil)
	c, _ := chunk.New(0, 0, []byte("payload"), true)

	sealed, err := svc.ProcessChunk(c, stage.Configuration{Operation: stage.Forward}, ctx)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}

	tampered := append([]byte(nil), sealed.Data()...)
	tampered[0] ^= 0xFF
	tamperedChunk, _ := sealed.WithData(tampered)

	if _, err := svc.ProcessChunk(tamperedChunk, stage.Configuration{Operation: stage.Reverse}, ctx); err == nil {
		t.Fatal("expected IntegrityError for tampered ciphertext")
	}
}
