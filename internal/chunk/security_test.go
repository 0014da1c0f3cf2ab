package chunk

import (
	"testing"

	"github.com/adapipe/engine/internal/ids"
)

func newTestSession(t *testing.T) ids.ID {
	t.Helper()
	id, err := ids.New(ids.KindSession)
	if err != nil {
		t.Fatalf("ids.New: %v", err)
	}
	return id
}

func TestNewSecurityContextRequiresPermission(t *testing.T) {
	if _, err := NewSecurityContext(newTestSession(t), LevelInternal, nil); err == nil {
		t.Fatal("expected SecurityViolation for empty permission set")
	}
}

func TestAdminImpliesAllPermissions(t *testing.T) {
	sc, err := NewSecurityContext(newTestSession(t), LevelConfidential, []Permission{PermissionAdmin})
	if err != nil {
		t.Fatalf("NewSecurityContext: %v", err)
	}
	for _, p := range []Permission{PermissionRead, PermissionWrite, PermissionEncrypt, PermissionDecrypt, CustomPermission("anything")} {
		if !sc.HasPermission(p) {
			t.Fatalf("expected Admin to imply %s", p)
		}
	}
}

func TestHasPermissionWithoutAdmin(t *testing.T) {
	sc, err := NewSecurityContext(newTestSession(t), LevelPublic, []Permission{PermissionRead})
	if err != nil {
		t.Fatalf("NewSecurityContext: %v", err)
	}
	if !sc.HasPermission(PermissionRead) {
		t.Fatal("expected Read permission granted")
	}
	if sc.HasPermission(PermissionWrite) {
		t.Fatal("expected Write permission not granted")
	}
}

func TestValidateIntegrityRequiresEncryptionKey(t *testing.T) {
	sc, err := NewSecurityContext(newTestSession(t), LevelSecret, []Permission{PermissionRead})
	if err != nil {
		t.Fatalf("NewSecurityContext: %v", err)
	}
	sc.IntegrityRequired = true
	if err := sc.Validate(); err == nil {
		t.Fatal("expected SecurityViolation when integrity_required without encryption_key_id")
	}
	sc.EncryptionKeyID = "key-1"
	if err := sc.Validate(); err != nil {
		t.Fatalf("expected Validate to pass once EncryptionKeyID is set: %v", err)
	}
}

func TestSecurityLevelOrdering(t *testing.T) {
	levels := []SecurityLevel{LevelPublic, LevelInternal, LevelMedium, LevelConfidential, LevelSecret, LevelTopSecret}
	for i := 1; i < len(levels); i++ {
		if !(levels[i-1] < levels[i]) {
			t.Fatalf("expected %s < %s", levels[i-1], levels[i])
		}
	}
}
