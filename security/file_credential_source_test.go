package security

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-approvals/core"
)

func writeCredentialFile(t *testing.T, values map[string]string) string {
	t.Helper()
	data, err := json.Marshal(values)
	if err != nil {
		t.Fatalf("marshal credential file: %v", err)
	}
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write credential file: %v", err)
	}
	return path
}

func TestFileCredentialSource_ResolvesPlaintext(t *testing.T) {
	path := writeCredentialFile(t, map[string]string{
		"acme-main-api-key": "plain-token",
	})
	source, err := NewFileCredentialSource(path)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	secret, err := source.Resolve(context.Background(), "acme-main-api-key")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if secret.Value() != "plain-token" {
		t.Fatalf("expected plain-token, got %q", secret.Value())
	}
}

func TestFileCredentialSource_OpensEncryptedEntries(t *testing.T) {
	cipher, err := NewAppKeyCipherFromString("app-key-material")
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	sealed, err := cipher.Seal(core.Secret("frappe-token"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	path := writeCredentialFile(t, map[string]string{
		"beta-frappe-api-key": sealed,
	})

	source, err := NewFileCredentialSource(path, WithCipher(cipher))
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	secret, err := source.Resolve(context.Background(), "beta-frappe-api-key")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if secret.Value() != "frappe-token" {
		t.Fatalf("expected frappe-token, got %q", secret.Value())
	}
}

func TestFileCredentialSource_EncryptedEntryWithoutCipherFails(t *testing.T) {
	cipher, err := NewAppKeyCipherFromString("app-key-material")
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	sealed, err := cipher.Seal(core.Secret("frappe-token"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	path := writeCredentialFile(t, map[string]string{
		"beta-frappe-api-key": sealed,
	})

	source, err := NewFileCredentialSource(path)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	if _, err := source.Resolve(context.Background(), "beta-frappe-api-key"); err == nil {
		t.Fatalf("expected error without cipher")
	}
}

func TestFileCredentialSource_MissingRefAndEmptyValue(t *testing.T) {
	path := writeCredentialFile(t, map[string]string{
		"empty-ref": "   ",
	})
	source, err := NewFileCredentialSource(path)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	if _, err := source.Resolve(context.Background(), "unknown-ref"); err == nil {
		t.Fatalf("expected error for unknown ref")
	}
	if _, err := source.Resolve(context.Background(), "empty-ref"); err == nil {
		t.Fatalf("expected error for empty value")
	}
	if _, err := source.Resolve(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for blank ref")
	}
}

func TestNewFileCredentialSource_RejectsMissingOrMalformedFile(t *testing.T) {
	if _, err := NewFileCredentialSource(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("not-json"), 0o600); err != nil {
		t.Fatalf("write credential file: %v", err)
	}
	if _, err := NewFileCredentialSource(path); err == nil {
		t.Fatalf("expected error for malformed file")
	}
}
