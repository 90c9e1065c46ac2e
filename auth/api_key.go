// Package auth verifies the credentials callers present at the service
// boundary. The trusted orchestrator authenticates with a shared API key;
// verification is constant-time over every configured key so probing cannot
// learn prefix matches or which key slot rejected.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-approvals/core"
)

const SchemeAPIKey = "api_key"

const (
	// DefaultHeader is where the orchestrator sends its key.
	DefaultHeader = "X-API-Key"

	// DefaultTimingFloor is the minimum wall time a rejected verification
	// should consume at the boundary, hiding valid/invalid timing skew.
	DefaultTimingFloor = 50 * time.Millisecond
)

// Principal identifies the authenticated caller. For API keys that is the
// calling service, never the human actor; actors arrive in request payloads.
type Principal struct {
	Scheme string
	KeyID  string
}

// Verifier checks one credential scheme. Implementations must take the same
// time for every rejection path.
type Verifier interface {
	Scheme() string
	Verify(ctx context.Context, presented string) (Principal, error)
}

// NamedKey is one accepted API key. Naming keys lets two stay active during
// a rotation while audit logs still record which one authenticated.
type NamedKey struct {
	ID  string
	Key core.Secret
}

type APIKeyConfig struct {
	Header string
	Keys   []NamedKey
}

func DefaultAPIKeyConfig() APIKeyConfig {
	return APIKeyConfig{Header: DefaultHeader}
}

type APIKeyVerifier struct {
	header string
	keys   []NamedKey
}

func NewAPIKeyVerifier(cfg APIKeyConfig) (*APIKeyVerifier, error) {
	header := strings.TrimSpace(cfg.Header)
	if header == "" {
		header = DefaultHeader
	}

	keys := make([]NamedKey, 0, len(cfg.Keys))
	seen := map[string]struct{}{}
	for i, key := range cfg.Keys {
		id := strings.TrimSpace(key.ID)
		if id == "" {
			id = fmt.Sprintf("key-%d", i+1)
		}
		if key.Key.IsZero() {
			return nil, fmt.Errorf("auth: api key %q has no material", id)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("auth: duplicate api key id %q", id)
		}
		seen[id] = struct{}{}
		keys = append(keys, NamedKey{ID: id, Key: key.Key})
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("auth: at least one api key is required")
	}

	return &APIKeyVerifier{header: header, keys: keys}, nil
}

func (v *APIKeyVerifier) Scheme() string { return SchemeAPIKey }

// Header names the request header carrying the key.
func (v *APIKeyVerifier) Header() string {
	if v == nil {
		return DefaultHeader
	}
	return v.header
}

// Verify compares the presented value against every configured key. The loop
// never exits early: each configured key is compared exactly once per call
// regardless of where a match lands.
func (v *APIKeyVerifier) Verify(_ context.Context, presented string) (Principal, error) {
	if v == nil || len(v.keys) == 0 {
		return Principal{}, &CredentialError{Scheme: SchemeAPIKey}
	}
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return Principal{}, &CredentialError{Scheme: SchemeAPIKey, Missing: true}
	}

	presentedDigest := sha256.Sum256([]byte(presented))
	matchedID := ""
	for _, key := range v.keys {
		keyDigest := sha256.Sum256([]byte(key.Key.Value()))
		if subtle.ConstantTimeCompare(presentedDigest[:], keyDigest[:]) == 1 && matchedID == "" {
			matchedID = key.ID
		}
	}
	if matchedID == "" {
		return Principal{}, &CredentialError{Scheme: SchemeAPIKey}
	}
	return Principal{Scheme: SchemeAPIKey, KeyID: matchedID}, nil
}

// TruncateKey renders at most the first four characters of a key for log
// fields. Anything shorter passes through unchanged.
func TruncateKey(key string) string {
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return key
}

// EnforceTimingFloor sleeps out the remainder of floor since start. Boundary
// layers call it before writing any rejected authentication response.
func EnforceTimingFloor(start time.Time, floor time.Duration) {
	if floor <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed < floor {
		time.Sleep(floor - elapsed)
	}
}

var _ Verifier = (*APIKeyVerifier)(nil)
