package relay

import (
	"golang.org/x/crypto/bcrypt"

	domain "github.com/radsadsoap/EchoWave/domain/chat"
)

// DefaultBcryptCost matches the cost used for room credentials so far.
const DefaultBcryptCost = bcrypt.DefaultCost

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

// Verdict is the outcome of a credential check.
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictNotProtected
	VerdictMissingPassword
	VerdictInvalidCredential
)

// Allowed reports whether the verdict admits the caller.
func (v Verdict) Allowed() bool {
	return v == VerdictOK || v == VerdictNotProtected
}

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictNotProtected:
		return "not-protected"
	case VerdictMissingPassword:
		return "missing-password"
	case VerdictInvalidCredential:
		return "invalid-credential"
	default:
		return "unknown"
	}
}

// Gate hashes and verifies room credentials.
type Gate interface {
	Hash(password string) (string, error)
	Verify(room domain.Room, supplied string) Verdict
}

var _ Gate = (*CredentialGate)(nil)

// CredentialGate hashes and verifies room passwords with bcrypt.
type CredentialGate struct {
	cost int
}

// NewCredentialGate creates a gate with the given bcrypt cost.
// Out of range costs fall back to DefaultBcryptCost.
func NewCredentialGate(cost int) *CredentialGate {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &CredentialGate{cost: cost}
}

// Hash returns the one-way hash of password.
func (g *CredentialGate) Hash(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify checks supplied against the room's stored credential.
func (g *CredentialGate) Verify(room domain.Room, supplied string) Verdict {
	if !room.IsPasswordProtected || room.PasswordHash == "" {
		return VerdictNotProtected
	}
	if supplied == "" {
		return VerdictMissingPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte(supplied)); err != nil {
		return VerdictInvalidCredential
	}
	return VerdictOK
}
