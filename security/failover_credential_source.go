package security

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-approvals/core"
)

// FailoverCredentialSource tries an ordered chain of sources and returns the
// first secret that resolves. A ref fails only when every source misses, with
// the per-source errors joined for diagnosis.
type FailoverCredentialSource struct {
	sources []core.CredentialSource
}

func NewFailoverCredentialSource(sources ...core.CredentialSource) (*FailoverCredentialSource, error) {
	chain := make([]core.CredentialSource, 0, len(sources))
	for _, source := range sources {
		if source == nil {
			continue
		}
		chain = append(chain, source)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("security: at least one credential source is required")
	}
	return &FailoverCredentialSource{sources: chain}, nil
}

func (f *FailoverCredentialSource) Resolve(ctx context.Context, ref string) (core.Secret, error) {
	if f == nil {
		return "", fmt.Errorf("security: credential source is nil")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("security: credential ref is required")
	}

	errs := make([]error, 0, len(f.sources))
	for _, source := range f.sources {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		secret, err := source.Resolve(ctx, ref)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if secret.IsZero() {
			errs = append(errs, fmt.Errorf("security: credential ref %q resolved to an empty value", ref))
			continue
		}
		return secret, nil
	}
	return "", fmt.Errorf("security: credential ref %q not resolvable: %w", ref, errors.Join(errs...))
}

var _ core.CredentialSource = (*FailoverCredentialSource)(nil)
