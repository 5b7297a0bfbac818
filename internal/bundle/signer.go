package bundle

import (
	"golang.org/x/crypto/ed25519"

	"github.com/lux-mev/searcher/internal/errs"
)

// Signer produces a signature over a raw transaction's bytes. Production
// wiring injects whatever key-management backend this engine's deployment
// uses; Ed25519Signer below is a reference implementation, not the only
// supported one.
type Signer interface {
	Sign(raw []byte) ([]byte, error)
}

// Ed25519Signer is a reference Signer backed by an in-memory Ed25519
// private key, suitable for local development and tests.
type Ed25519Signer struct {
	key ed25519.PrivateKey
}

// NewEd25519Signer wraps an existing private key. The zero value is not
// valid; use GenerateEd25519Signer to create one for tests.
func NewEd25519Signer(key ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errs.New(errs.StageBuild, errs.InvalidConfig, errs.Config)
	}
	return &Ed25519Signer{key: key}, nil
}

// GenerateEd25519Signer creates a fresh random keypair, returning the
// signer and its public key for verification.
func GenerateEd25519Signer() (*Ed25519Signer, ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, errs.Wrap(errs.StageBuild, errs.InvalidConfig, errs.Config, err)
	}
	return &Ed25519Signer{key: priv}, pub, nil
}

func (s *Ed25519Signer) Sign(raw []byte) ([]byte, error) {
	if s == nil || len(s.key) != ed25519.PrivateKeySize {
		return nil, errs.New(errs.StageBuild, errs.SignerContractBreak, errs.Invariant)
	}
	return ed25519.Sign(s.key, raw), nil
}
