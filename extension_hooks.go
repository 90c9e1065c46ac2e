package approvals

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-approvals/core"
)

// DialectPack is a named batch of backend dialects an embedding application
// contributes, typically protocol families this module does not ship.
type DialectPack struct {
	Name     string
	Dialects []core.BackendDialect
}

// TenantPack is a named batch of tenant configurations for one backend
// family. Entries without a family are stamped with the pack's.
type TenantPack struct {
	Name    string
	Family  string
	Tenants []core.TenantConfig
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// ExtensionHooks collects what downstream applications bolt onto the module
// before setup: extra dialects, tenant fleets, and named command/query
// bundles built around the composed service.
type ExtensionHooks struct {
	mu sync.RWMutex

	dialectPacks map[string]DialectPack
	tenantPacks  map[string]TenantPack
	bundles      map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		dialectPacks: map[string]DialectPack{},
		tenantPacks:  map[string]TenantPack{},
		bundles:      map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterDialectPack(pack DialectPack) error {
	if h == nil {
		return fmt.Errorf("approvals: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("approvals: dialect pack name is required")
	}
	if len(pack.Dialects) == 0 {
		return fmt.Errorf("approvals: dialect pack %q has no dialects", name)
	}

	normalized := DialectPack{
		Name:     name,
		Dialects: append([]core.BackendDialect(nil), pack.Dialects...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.dialectPacks[name]; exists {
		return fmt.Errorf("approvals: dialect pack %q already registered", name)
	}
	h.dialectPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterTenantPack(pack TenantPack) error {
	if h == nil {
		return fmt.Errorf("approvals: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	family := strings.TrimSpace(strings.ToLower(pack.Family))
	if name == "" {
		return fmt.Errorf("approvals: tenant pack name is required")
	}
	if family == "" {
		return fmt.Errorf("approvals: tenant pack %q family is required", name)
	}
	if len(pack.Tenants) == 0 {
		return fmt.Errorf("approvals: tenant pack %q has no tenants", name)
	}

	normalized := TenantPack{
		Name:    name,
		Family:  family,
		Tenants: append([]core.TenantConfig(nil), pack.Tenants...),
	}
	seen := map[string]struct{}{}
	for i := range normalized.Tenants {
		tenant := strings.TrimSpace(normalized.Tenants[i].Name)
		if tenant == "" {
			return fmt.Errorf("approvals: tenant pack %q contains an unnamed tenant", name)
		}
		if _, dup := seen[tenant]; dup {
			return fmt.Errorf("approvals: tenant pack %q repeats tenant %q", name, tenant)
		}
		seen[tenant] = struct{}{}
		entryFamily := strings.TrimSpace(normalized.Tenants[i].Family)
		switch {
		case entryFamily == "":
			normalized.Tenants[i].Family = family
		case !strings.EqualFold(entryFamily, family):
			return fmt.Errorf(
				"approvals: tenant pack %q tenant %q names family %q, pack is %q",
				name, tenant, entryFamily, family,
			)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.tenantPacks[name]; exists {
		return fmt.Errorf("approvals: tenant pack %q already registered", name)
	}
	h.tenantPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("approvals: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("approvals: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("approvals: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("approvals: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

func (h *ExtensionHooks) ApplyDialectPacks(registry core.Registry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("approvals: registry is required")
	}

	packs := h.DialectPacks()
	for _, pack := range packs {
		for _, dialect := range pack.Dialects {
			if dialect == nil {
				return fmt.Errorf("approvals: dialect pack %q contains nil dialect", pack.Name)
			}
			if err := registry.Register(dialect); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyTenantPacks appends every registered pack's tenants to the config.
// Duplicate tenant names across packs surface later through Config.Validate.
func (h *ExtensionHooks) ApplyTenantPacks(cfg *core.Config) error {
	if h == nil {
		return nil
	}
	if cfg == nil {
		return fmt.Errorf("approvals: config is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.tenantPacks))
	for name := range h.tenantPacks {
		names = append(names, name)
	}
	sort.Strings(names)
	packs := make([]TenantPack, 0, len(names))
	for _, name := range names {
		packs = append(packs, h.tenantPacks[name])
	}
	h.mu.RUnlock()

	for _, pack := range packs {
		cfg.Tenants = append(cfg.Tenants, pack.Tenants...)
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("approvals: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) DialectPacks() []DialectPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.dialectPacks))
	for name := range h.dialectPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]DialectPack, 0, len(names))
	for _, name := range names {
		pack := h.dialectPacks[name]
		out = append(out, DialectPack{
			Name:     pack.Name,
			Dialects: append([]core.BackendDialect(nil), pack.Dialects...),
		})
	}
	return out
}

// TenantConfigs returns the tenants every registered pack contributes for
// one family, ordered by pack name.
func (h *ExtensionHooks) TenantConfigs(family string) []core.TenantConfig {
	if h == nil {
		return nil
	}
	family = strings.TrimSpace(strings.ToLower(family))
	h.mu.RLock()
	defer h.mu.RUnlock()

	packNames := make([]string, 0, len(h.tenantPacks))
	for name, pack := range h.tenantPacks {
		if pack.Family == family {
			packNames = append(packNames, name)
		}
	}
	sort.Strings(packNames)

	out := []core.TenantConfig{}
	for _, name := range packNames {
		pack := h.tenantPacks[name]
		out = append(out, pack.Tenants...)
	}
	return append([]core.TenantConfig(nil), out...)
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
