package crypto

import "github.com/deploymenttheory/go-fvde/internal/interfaces"

// Primitives is the concrete interfaces.CryptoPrimitives implementation. It is
// stateless; one instance can be shared across every component that needs it.
type Primitives struct{}

// New returns a ready-to-use CryptoPrimitives implementation.
func New() *Primitives {
	return &Primitives{}
}

var _ interfaces.CryptoPrimitives = (*Primitives)(nil)
