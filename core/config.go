package core

import (
	"fmt"
	"strings"
)

type TenantConfig struct {
	Name          string `koanf:"name" mapstructure:"name"`
	Family        string `koanf:"family" mapstructure:"family"`
	Host          string `koanf:"host" mapstructure:"host"`
	Database      string `koanf:"database" mapstructure:"database"`
	CredentialRef string `koanf:"credential_ref" mapstructure:"credential_ref"`
}

type PolicyConfig struct {
	ApproveRoles []string `koanf:"approve_roles" mapstructure:"approve_roles"`
	RejectRoles  []string `koanf:"reject_roles" mapstructure:"reject_roles"`
}

type AuditConfig struct {
	Source         string `koanf:"source" mapstructure:"source"`
	WriteTimeoutMS int    `koanf:"write_timeout_ms" mapstructure:"write_timeout_ms"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Tenants     []TenantConfig `koanf:"tenants" mapstructure:"tenants"`
	Policy      PolicyConfig   `koanf:"policy" mapstructure:"policy"`
	Audit       AuditConfig    `koanf:"audit" mapstructure:"audit"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "approvals",
		Audit: AuditConfig{
			Source:         "approvals",
			WriteTimeoutMS: 2000,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Audit.WriteTimeoutMS < 0 {
		return fmt.Errorf("core: audit write_timeout_ms must not be negative")
	}
	seen := map[string]struct{}{}
	for _, tenant := range c.Tenants {
		name := strings.TrimSpace(tenant.Name)
		if name == "" {
			return fmt.Errorf("core: tenant name is required")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("core: duplicate tenant %q", name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(tenant.Family) == "" {
			return fmt.Errorf("core: tenant %q family is required", name)
		}
		if strings.TrimSpace(tenant.Host) == "" {
			return fmt.Errorf("core: tenant %q host is required", name)
		}
	}
	return nil
}

// BackendProfiles materializes the configured tenant allow-list.
func (c Config) BackendProfiles() []BackendProfile {
	profiles := make([]BackendProfile, 0, len(c.Tenants))
	for _, tenant := range c.Tenants {
		profiles = append(profiles, BackendProfile{
			Tenant:        strings.TrimSpace(tenant.Name),
			Family:        strings.TrimSpace(strings.ToLower(tenant.Family)),
			Host:          strings.TrimSpace(tenant.Host),
			Database:      strings.TrimSpace(tenant.Database),
			CredentialRef: strings.TrimSpace(tenant.CredentialRef),
		})
	}
	return profiles
}
