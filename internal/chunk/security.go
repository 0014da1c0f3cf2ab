package chunk

import (
	"sort"

	"github.com/adapipe/engine/internal/ids"
	"github.com/adapipe/engine/internal/perr"
)

// Permission is one capability a SecurityContext may grant.
type Permission string

const (
	PermissionRead       Permission = "Read"
	PermissionWrite      Permission = "Write"
	PermissionExecute    Permission = "Execute"
	PermissionAdmin      Permission = "Admin"
	PermissionEncrypt    Permission = "Encrypt"
	PermissionDecrypt    Permission = "Decrypt"
	PermissionCompress   Permission = "Compress"
	PermissionDecompress Permission = "Decompress"
)

// CustomPermission builds a Permission for an operator-defined capability
// name, matching spec §3's Custom(string) variant.
func CustomPermission(name string) Permission { return Permission("custom:" + name) }

// SecurityLevel is a totally ordered classification tag.
type SecurityLevel int

const (
	LevelPublic SecurityLevel = iota
	LevelInternal
	LevelMedium
	LevelConfidential
	LevelSecret
	LevelTopSecret
)

func (l SecurityLevel) String() string {
	switch l {
	case LevelPublic:
		return "Public"
	case LevelInternal:
		return "Internal"
	case LevelMedium:
		return "Medium"
	case LevelConfidential:
		return "Confidential"
	case LevelSecret:
		return "Secret"
	case LevelTopSecret:
		return "TopSecret"
	default:
		return "Unknown"
	}
}

// SecurityContext is the classification tuple attached to every run (spec
// §3). Stages consult it but never modify it.
type SecurityContext struct {
	UserID           *ids.ID
	SessionID        ids.ID
	Permissions      map[Permission]bool
	SecurityLevel    SecurityLevel
	EncryptionKeyID  string
	IntegrityRequired bool
	AuditEnabled     bool
	Metadata         map[string]string
}

// NewSecurityContext builds a SecurityContext and validates it per spec §3:
// at least one permission, and integrity_required implies an encryption key
// id is set.
func NewSecurityContext(sessionID ids.ID, level SecurityLevel, permissions []Permission) (*SecurityContext, error) {
	if len(permissions) == 0 {
		return nil, perr.SecurityViolation("security context requires at least one permission")
	}
	perms := make(map[Permission]bool, len(permissions))
	for _, p := range permissions {
		perms[p] = true
	}
	return &SecurityContext{
		SessionID:     sessionID,
		Permissions:   perms,
		SecurityLevel: level,
		Metadata:      make(map[string]string),
	}, nil
}

// Validate re-checks the invariants; called whenever EncryptionKeyID or
// IntegrityRequired is mutated after construction.
func (sc *SecurityContext) Validate() error {
	if len(sc.Permissions) == 0 {
		return perr.SecurityViolation("security context requires at least one permission")
	}
	if sc.IntegrityRequired && sc.EncryptionKeyID == "" {
		return perr.SecurityViolation("integrity_required requires an encryption_key_id")
	}
	return nil
}

// HasPermission reports whether p is granted, with Admin implying every
// other permission (spec invariant, testable property #8).
func (sc *SecurityContext) HasPermission(p Permission) bool {
	if sc.Permissions[PermissionAdmin] {
		return true
	}
	return sc.Permissions[p]
}

// PermissionList returns the granted permissions sorted for deterministic
// display/logging.
func (sc *SecurityContext) PermissionList() []Permission {
	out := make([]Permission, 0, len(sc.Permissions))
	for p := range sc.Permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
