package core

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Secret is credential material that must never leak through formatting,
// logging, or serialization. Access the raw value through Value only.
type Secret string

func (s Secret) String() string { return RedactedValue }

func (s Secret) GoString() string { return RedactedValue }

func (s Secret) MarshalText() ([]byte, error) { return []byte(RedactedValue), nil }

func (s Secret) Value() string { return string(s) }

func (s Secret) IsZero() bool { return strings.TrimSpace(string(s)) == "" }

// CredentialSource resolves the credential reference of a backend profile to
// usable secret material.
type CredentialSource interface {
	Resolve(ctx context.Context, ref string) (Secret, error)
}

type StaticCredentialSource map[string]Secret

func (s StaticCredentialSource) Resolve(_ context.Context, ref string) (Secret, error) {
	ref = strings.TrimSpace(ref)
	secret, ok := s[ref]
	if !ok {
		return "", fmt.Errorf("core: credential ref %q is not configured", ref)
	}
	return secret, nil
}

// EnvCredentialSource treats credential refs as environment variable names.
type EnvCredentialSource struct{}

func (EnvCredentialSource) Resolve(_ context.Context, ref string) (Secret, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("core: credential ref is required")
	}
	value, ok := os.LookupEnv(ref)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("core: credential ref %q resolved to an empty value", ref)
	}
	return Secret(value), nil
}
