// Package jsonrpc speaks the legacy ERP RPC dialect: a login handshake that
// yields a numeric uid, followed by execute_kw-style model calls against a
// single /jsonrpc endpoint. Object ids are numeric and workflow transitions
// are remote method calls named per object type.
package jsonrpc

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-approvals/core"
)

const Family = "jsonrpc"

const (
	rpcPath       = "/jsonrpc"
	serviceCommon = "common"
	serviceObject = "object"
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

// NewClient builds a tenant client without touching the network. The login
// handshake runs lazily on the first call that needs a uid.
func (d *Dialect) NewClient(profile core.BackendProfile, credential core.Secret) (core.BackendClient, error) {
	if d == nil {
		return nil, fmt.Errorf("backend/jsonrpc: dialect is nil")
	}
	host := strings.TrimRight(strings.TrimSpace(profile.Host), "/")
	if host == "" {
		return nil, fmt.Errorf("backend/jsonrpc: host is required for tenant %q", profile.Tenant)
	}
	database := strings.TrimSpace(profile.Database)
	if database == "" {
		return nil, fmt.Errorf("backend/jsonrpc: database is required for tenant %q", profile.Tenant)
	}
	username, password, err := splitCredential(profile.Tenant, credential)
	if err != nil {
		return nil, err
	}
	return &Client{
		tenant:    profile.Tenant,
		endpoint:  host + rpcPath,
		database:  database,
		username:  username,
		password:  password,
		doer:      d.client,
		bodyLimit: d.bodyLimit,
		logger:    d.logger,
	}, nil
}

// splitCredential expects "user:password" secret material.
func splitCredential(tenant string, credential core.Secret) (string, core.Secret, error) {
	username, password, found := strings.Cut(credential.Value(), ":")
	username = strings.TrimSpace(username)
	if !found || username == "" || strings.TrimSpace(password) == "" {
		return "", "", fmt.Errorf("backend/jsonrpc: credential for tenant %q must be user:password", tenant)
	}
	return username, core.Secret(password), nil
}

var _ core.BackendDialect = (*Dialect)(nil)
