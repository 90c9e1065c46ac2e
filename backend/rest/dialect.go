// Package rest speaks the document-oriented ERP REST dialect: token-header
// authentication, /api/resource/{doctype}/{name} documents addressed by
// string name, and a numeric docstatus column (0 draft, 1 submitted,
// 2 cancelled) layered under per-doctype status fields.
package rest

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-approvals/core"
)

const Family = "rest"

const (
	resourcePath = "/api/resource"
	methodPath   = "/api/method"
	pingMethod   = "frappe.ping"
)

const defaultTimeout = 30 * time.Second
const defaultResponseBodyLimit int64 = 10 << 20 // 10 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	HTTPClient           HTTPDoer
	Timeout              time.Duration
	MaxResponseBodyBytes int64
	Logger               core.Logger
}

func DefaultConfig() Config {
	return Config{
		Timeout:              defaultTimeout,
		MaxResponseBodyBytes: defaultResponseBodyLimit,
	}
}

type Dialect struct {
	client    HTTPDoer
	bodyLimit int64
	logger    core.Logger
}

func New(cfg Config) *Dialect {
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxResponseBodyBytes <= 0 {
		cfg.MaxResponseBodyBytes = defaults.MaxResponseBodyBytes
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Dialect{
		client:    cfg.HTTPClient,
		bodyLimit: cfg.MaxResponseBodyBytes,
		logger:    glog.Ensure(cfg.Logger),
	}
}

func (d *Dialect) Family() string {
	return Family
}

// NewClient builds a tenant client without touching the network. The token
// header carries the whole key:secret pair, so there is no session state.
func (d *Dialect) NewClient(profile core.BackendProfile, credential core.Secret) (core.BackendClient, error) {
	if d == nil {
		return nil, fmt.Errorf("backend/rest: dialect is nil")
	}
	host := strings.TrimRight(strings.TrimSpace(profile.Host), "/")
	if host == "" {
		return nil, fmt.Errorf("backend/rest: host is required for tenant %q", profile.Tenant)
	}
	if err := validateCredential(profile.Tenant, credential); err != nil {
		return nil, err
	}
	return &Client{
		tenant:    profile.Tenant,
		baseURL:   host,
		token:     credential,
		doer:      d.client,
		bodyLimit: d.bodyLimit,
		logger:    d.logger,
	}, nil
}

// validateCredential expects "key:secret" secret material, sent verbatim in
// the Authorization header.
func validateCredential(tenant string, credential core.Secret) error {
	key, secret, found := strings.Cut(credential.Value(), ":")
	if !found || strings.TrimSpace(key) == "" || strings.TrimSpace(secret) == "" {
		return fmt.Errorf("backend/rest: credential for tenant %q must be key:secret", tenant)
	}
	return nil
}

var _ core.BackendDialect = (*Dialect)(nil)
