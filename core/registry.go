package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type DialectRegistry struct {
	mu       sync.RWMutex
	dialects map[string]BackendDialect
}

func NewDialectRegistry() *DialectRegistry {
	return &DialectRegistry{dialects: make(map[string]BackendDialect)}
}

func (r *DialectRegistry) Register(dialect BackendDialect) error {
	if dialect == nil {
		return fmt.Errorf("core: dialect is nil")
	}
	family := strings.TrimSpace(strings.ToLower(dialect.Family()))
	if family == "" {
		return fmt.Errorf("core: dialect family is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.dialects[family]; exists {
		return fmt.Errorf("core: dialect already registered: %s", family)
	}
	r.dialects[family] = dialect
	return nil
}

func (r *DialectRegistry) Get(family string) (BackendDialect, bool) {
	family = strings.TrimSpace(strings.ToLower(family))
	if family == "" {
		return nil, false
	}
	r.mu.RLock()
	dialect, ok := r.dialects[family]
	r.mu.RUnlock()
	return dialect, ok
}

func (r *DialectRegistry) List() []BackendDialect {
	r.mu.RLock()
	keys := make([]string, 0, len(r.dialects))
	for family := range r.dialects {
		keys = append(keys, family)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	dialects := make([]BackendDialect, 0, len(keys))
	r.mu.RLock()
	for _, family := range keys {
		dialects = append(dialects, r.dialects[family])
	}
	r.mu.RUnlock()
	return dialects
}
