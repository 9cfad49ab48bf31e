// internal/sniping/claims.go
package sniping

import "sync"

// Claims hands out exclusive per-token leases, so that at most one entry or
// exit per token is in flight in this process.
type Claims struct {
	mu     sync.Mutex
	tokens map[string]struct{}
}

// NewClaims creates an empty lease table.
func NewClaims() *Claims {
	return &Claims{tokens: make(map[string]struct{})}
}

// TryClaim leases token. The returned release func must be called exactly
// once; ok is false when the token is already leased.
func (c *Claims) TryClaim(token string) (release func(), ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, held := c.tokens[token]; held {
		return nil, false
	}
	c.tokens[token] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.tokens, token)
			c.mu.Unlock()
		})
	}, true
}

// Held reports whether token is currently leased.
func (c *Claims) Held(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, held := c.tokens[token]
	return held
}
