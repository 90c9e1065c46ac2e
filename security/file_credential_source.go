package security

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-approvals/core"
)

type FileSourceOption func(*FileCredentialSource)

// WithCipher lets the source open enveloped values. Without a cipher the
// source only serves plaintext entries and fails on encrypted ones.
func WithCipher(cipher *AppKeyCipher) FileSourceOption {
	return func(s *FileCredentialSource) {
		if cipher != nil {
			s.cipher = cipher
		}
	}
}

// FileCredentialSource resolves credential refs from a JSON file mapping refs
// to values. Entries may be plaintext or sealed with an AppKeyCipher; the file
// is read once at construction.
type FileCredentialSource struct {
	path   string
	cipher *AppKeyCipher
	values map[string]string
}

func NewFileCredentialSource(path string, opts ...FileSourceOption) (*FileCredentialSource, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("security: credential file path is required")
	}
	data, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("security: read credential file: %w", err)
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("security: parse credential file %s: %w", trimmed, err)
	}

	source := &FileCredentialSource{
		path:   trimmed,
		values: make(map[string]string, len(values)),
	}
	for ref, value := range values {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		source.values[ref] = value
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(source)
	}
	return source, nil
}

func (s *FileCredentialSource) Resolve(_ context.Context, ref string) (core.Secret, error) {
	if s == nil {
		return "", fmt.Errorf("security: credential source is nil")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("security: credential ref is required")
	}
	value, ok := s.values[ref]
	if !ok {
		return "", fmt.Errorf("security: credential ref %q not present in %s", ref, s.path)
	}
	if IsEncrypted(value) {
		if s.cipher == nil {
			return "", fmt.Errorf("security: credential ref %q is encrypted and no cipher is configured", ref)
		}
		secret, err := s.cipher.Open(value)
		if err != nil {
			return "", fmt.Errorf("security: open credential ref %q: %w", ref, err)
		}
		return secret, nil
	}
	secret := core.Secret(value)
	if secret.IsZero() {
		return "", fmt.Errorf("security: credential ref %q resolved to an empty value", ref)
	}
	return secret, nil
}

var _ core.CredentialSource = (*FileCredentialSource)(nil)
