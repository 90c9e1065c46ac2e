package approvals

import "github.com/goliatone/go-approvals/core"

type Config = core.Config

type TenantConfig = core.TenantConfig
type PolicyConfig = core.PolicyConfig
type AuditConfig = core.AuditConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type AuditSink = core.AuditSink
type BackendClient = core.BackendClient
type BackendDialect = core.BackendDialect
type Registry = core.Registry
type MetricsRecorder = core.MetricsRecorder
type CredentialSource = core.CredentialSource
type StaticCredentialSource = core.StaticCredentialSource
type EnvCredentialSource = core.EnvCredentialSource
type Secret = core.Secret
type BackendProfile = core.BackendProfile

type ApprovalRequest = core.ApprovalRequest

type ApprovalResult = core.ApprovalResult

type ApprovalAction = core.ApprovalAction

type ApprovableObject = core.ApprovableObject

type PendingQuery = core.PendingQuery

type AuditFilter = core.AuditFilter
type AuditPage = core.AuditPage
type AuditLogEntry = core.AuditLogEntry

type BackendHealth = core.BackendHealth

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithRegistry          = core.WithRegistry
	WithAuditSink         = core.WithAuditSink
	WithCredentialSource  = core.WithCredentialSource
	WithBackendClient     = core.WithBackendClient
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// Setup builds a service with the built-in backend dialects registered. A
// caller-supplied WithRegistry replaces that default wholesale.
func Setup(cfg Config, opts ...Option) (*Service, error) {
	registry := core.NewDialectRegistry()
	for _, dialect := range BuiltinDialects(nil) {
		if err := registry.Register(dialect); err != nil {
			return nil, err
		}
	}
	merged := make([]Option, 0, len(opts)+1)
	merged = append(merged, WithRegistry(registry))
	merged = append(merged, opts...)
	return core.NewService(cfg, merged...)
}
