// Package vault implements the Redactor / Tokenizer (§4.G): the per-session
// credential vault, the ingress tokenizer that keeps operator-typed secrets
// out of outbound LLM calls, the detokenizer that restores them just before
// a subprocess launches, and the egress redactor that masks credential-
// shaped substrings in tool output before it is fed back to the LLM.
package vault

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// Vault holds the real value behind every token minted for one session. It
// is never persisted (§3 invariant: "tokens must never appear in persisted
// JSON") and never shared across sessions.
type Vault struct {
	mu     sync.RWMutex
	byToken map[string]string
	seq     int
}

// New returns an empty, session-scoped vault.
func New() *Vault {
	return &Vault{byToken: make(map[string]string)}
}

// Mint vaults value and returns a fresh, unguessable token that stands in
// for it in any text bound for the LLM. The vault is append-only: minting
// never overwrites or removes an existing token.
func (v *Vault) Mint(value string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	token := fmt.Sprintf("__CRED_%d_%s__", v.seq, randomSuffix())
	v.byToken[token] = value
	return token
}

// Resolve returns the real value for token and whether it was found.
func (v *Vault) Resolve(token string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.byToken[token]
	return val, ok
}

// Tokens returns every token currently vaulted, for idempotence checks and
// detokenization scans.
func (v *Vault) Tokens() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.byToken))
	for tok := range v.byToken {
		out = append(out, tok)
	}
	return out
}

// Values returns every real value currently vaulted, for credential-
// confinement checks (§8 Testable Properties, invariant 1).
func (v *Vault) Values() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.byToken))
	for _, val := range v.byToken {
		out = append(out, val)
	}
	return out
}

func randomSuffix() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is a programmer/environment-level fault; fall
		// back to a fixed marker rather than panic mid-request.
		return "xxxxxxxxxxxx"
	}
	return hex.EncodeToString(b[:])
}
