package gallery

import "crypto/subtle"

// AccessGate validates the single shared operator credential. It never
// stores or rotates the secret; the value is supplied by configuration.
type AccessGate struct {
	secret []byte
}

// NewAccessGate creates a gate for secret. An empty secret rejects every
// candidate.
func NewAccessGate(secret string) *AccessGate {
	return &AccessGate{secret: []byte(secret)}
}

// Verify compares candidate against the configured secret in constant time.
func (g *AccessGate) Verify(candidate string) bool {
	if g == nil || len(g.secret) == 0 || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare(g.secret, []byte(candidate)) == 1
}
