package core

import (
	"fmt"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// UnknownTenantError reports a tenant outside the configured allow-list. It
// maps to a validation failure so callers cannot distinguish absent tenants
// from malformed ones by probing.
type UnknownTenantError struct {
	Tenant string
}

func (e *UnknownTenantError) Error() string {
	return fmt.Sprintf("unknown tenant %q", e.Tenant)
}

func (e *UnknownTenantError) Unwrap() error { return ErrUnknownTenant }

func (e *UnknownTenantError) ToServiceError() *goerrors.Error {
	return ensureApprovalErrorEnvelope(
		goerrors.New(e.Error(), goerrors.CategoryValidation).
			WithTextCode(ApprovalErrorUnknownTenant).
			WithMetadata(map[string]any{"tenant": e.Tenant}),
	)
}

// ProfileSet is the immutable tenant allow-list. Resolution is fail-closed:
// any tenant absent from the set is rejected before backend or audit I/O.
type ProfileSet struct {
	profiles map[string]BackendProfile
}

func NewProfileSet(profiles []BackendProfile) (*ProfileSet, error) {
	set := &ProfileSet{profiles: make(map[string]BackendProfile, len(profiles))}
	for _, profile := range profiles {
		if err := profile.Validate(); err != nil {
			return nil, err
		}
		tenant := strings.TrimSpace(profile.Tenant)
		if _, exists := set.profiles[tenant]; exists {
			return nil, fmt.Errorf("core: duplicate tenant profile %q", tenant)
		}
		set.profiles[tenant] = profile
	}
	return set, nil
}

func (s *ProfileSet) Resolve(tenant string) (BackendProfile, error) {
	tenant = strings.TrimSpace(tenant)
	if s == nil || tenant == "" {
		return BackendProfile{}, &UnknownTenantError{Tenant: tenant}
	}
	profile, ok := s.profiles[tenant]
	if !ok {
		return BackendProfile{}, &UnknownTenantError{Tenant: tenant}
	}
	return profile, nil
}

func (s *ProfileSet) Tenants() []string {
	if s == nil {
		return nil
	}
	tenants := make([]string, 0, len(s.profiles))
	for tenant := range s.profiles {
		tenants = append(tenants, tenant)
	}
	sort.Strings(tenants)
	return tenants
}

func (s *ProfileSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.profiles)
}
