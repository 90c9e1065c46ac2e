package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDialectNotRegistered = errors.New("core: dialect not registered")
	ErrAuditSinkRequired    = errors.New("core: audit sink is required for decisions")
)

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	registry          Registry
	profiles          *ProfileSet
	policy            RolePolicy
	clients           map[string]BackendClient
	auditSink         AuditSink
	credentialSource  CredentialSource
	auditWriteTimeout time.Duration
	auditSource       string
}

type ServiceDependencies struct {
	Logger           Logger
	LoggerProvider   LoggerProvider
	MetricsRecorder  MetricsRecorder
	ErrorFactory     ErrorFactory
	ErrorMapper      ErrorMapper
	ConfigProvider   ConfigProvider
	OptionsResolver  OptionsResolver
	Registry         Registry
	AuditSink        AuditSink
	CredentialSource CredentialSource
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("approvals", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("approvals"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewDialectRegistry()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.auditSink == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				builder.auditSink = storeProvider.AuditStore()
			}
		} else if storeProvider, ok := builder.repositoryFactory.(StoreProvider); ok {
			builder.auditSink = storeProvider.AuditStore()
		}
	}

	profiles, err := NewProfileSet(finalConfig.BackendProfiles())
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	clients, err := buildBackendClients(builder, profiles)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		registry:          builder.registry,
		profiles:          profiles,
		policy:            NewRolePolicy(finalConfig.Policy),
		clients:           clients,
		auditSink:         builder.auditSink,
		credentialSource:  builder.credentialSource,
		auditWriteTimeout: time.Duration(finalConfig.Audit.WriteTimeoutMS) * time.Millisecond,
		auditSource:       finalConfig.Audit.Source,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

// buildBackendClients establishes one client per configured tenant. A tenant
// whose family has no registered dialect fails setup rather than deferring
// the error to request time.
func buildBackendClients(builder serviceBuilder, profiles *ProfileSet) (map[string]BackendClient, error) {
	clients := make(map[string]BackendClient, profiles.Len())
	for tenant, client := range builder.clients {
		clients[tenant] = client
	}
	for _, tenant := range profiles.Tenants() {
		if _, ok := clients[tenant]; ok {
			continue
		}
		profile, err := profiles.Resolve(tenant)
		if err != nil {
			return nil, err
		}
		dialect, ok := builder.registry.Get(profile.Family)
		if !ok {
			return nil, fmt.Errorf("%w: family %q (tenant %q)", ErrDialectNotRegistered, profile.Family, tenant)
		}
		credential := Secret("")
		if profile.CredentialRef != "" {
			if builder.credentialSource == nil {
				return nil, fmt.Errorf("core: tenant %q names credential ref %q but no credential source is configured", tenant, profile.CredentialRef)
			}
			credential, err = builder.credentialSource.Resolve(context.Background(), profile.CredentialRef)
			if err != nil {
				return nil, err
			}
		}
		client, err := dialect.NewClient(profile, credential)
		if err != nil {
			return nil, err
		}
		clients[tenant] = client
	}
	return clients, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:           s.logger,
		LoggerProvider:   s.loggerProvider,
		MetricsRecorder:  s.metricsRecorder,
		ErrorFactory:     s.errorFactory,
		ErrorMapper:      s.errorMapper,
		ConfigProvider:   s.configProvider,
		OptionsResolver:  s.optionsResolver,
		Registry:         s.registry,
		AuditSink:        s.auditSink,
		CredentialSource: s.credentialSource,
	}
}

// Decide validates, authorizes, and applies one approval or rejection, then
// records the audit entry. Ordering is strict: payload validation and tenant
// resolution happen before any backend or audit I/O, so malformed requests
// and unknown tenants leave no trace beyond logs.
func (s *Service) Decide(ctx context.Context, req ApprovalRequest) (result ApprovalResult, err error) {
	startedAt := time.Now().UTC()
	req.Normalize()
	fields := map[string]any{
		"tenant":      req.Tenant,
		"object_type": req.ObjectType,
		"object_id":   req.ObjectID,
		"action":      string(req.Action),
		"actor":       req.Actor,
	}
	defer func() {
		if result.AuditState == AuditStateDegraded {
			fields["audit_state"] = string(AuditStateDegraded)
		}
		s.observeOperation(ctx, startedAt, "decide", err, fields)
	}()

	if s == nil || s.auditSink == nil {
		err = s.mapError(ErrAuditSinkRequired)
		return ApprovalResult{}, err
	}
	if err = req.Validate(); err != nil {
		err = s.mapError(err)
		return ApprovalResult{}, err
	}

	client, profile, resolveErr := s.clientFor(req.Tenant)
	if resolveErr != nil {
		err = s.mapError(resolveErr)
		return ApprovalResult{}, err
	}
	fields["family"] = profile.Family

	entry := AuditLogEntry{
		Tenant:     req.Tenant,
		ObjectType: req.ObjectType,
		ObjectID:   req.ObjectID,
		Action:     string(req.Action),
		Actor:      req.Actor,
		ActorRole:  req.ActorRole,
		Reason:     req.Reason,
		RequestID:  req.RequestID,
		Metadata:   req.Metadata,
	}
	deny := func(outcome AuditOutcome, prior, next ObjectState, objectData map[string]any, cause error) {
		fields["outcome"] = string(outcome)
		entry.Outcome = outcome
		entry.PriorState = string(prior)
		entry.ResultState = string(next)
		entry.ObjectData = objectData
		entry.ErrorMessage = cause.Error()
		s.recordRejection(ctx, entry)
	}

	if !s.policy.Allows(req.Action, req.ActorRole) {
		denied := s.errorFactory(
			fmt.Sprintf("role %q is not permitted to %s", req.ActorRole, req.Action),
			goerrors.CategoryAuthz,
		).WithTextCode(ApprovalErrorForbidden).WithMetadata(map[string]any{
			"tenant":     req.Tenant,
			"action":     string(req.Action),
			"actor_role": req.ActorRole,
		})
		err = ensureApprovalErrorEnvelope(denied)
		deny(OutcomeRejectedAuth, "", "", nil, err)
		return ApprovalResult{}, err
	}

	object, fetchErr := client.FetchObject(ctx, req.ObjectType, req.ObjectID)
	if fetchErr != nil {
		var notFound *ObjectNotFoundError
		if errors.As(fetchErr, &notFound) {
			deny(OutcomeRejectedValidation, "", "", nil, fetchErr)
		}
		err = s.mapError(fetchErr)
		return ApprovalResult{}, err
	}

	if !stateTransitionAllowed(object.State, req.Action) {
		conflict := &StateConflictError{
			Tenant:     req.Tenant,
			ObjectType: req.ObjectType,
			ObjectID:   req.ObjectID,
			State:      object.State,
		}
		deny(OutcomeRejectedInvalidState, object.State, object.State, object.Raw, conflict)
		err = s.mapError(conflict)
		return ApprovalResult{}, err
	}

	applied, applyErr := client.ApplyTransition(ctx, TransitionRequest{
		ObjectType:    req.ObjectType,
		ObjectID:      req.ObjectID,
		Action:        req.Action,
		Reason:        req.Reason,
		ExpectedState: ObjectStatePending,
	})
	if applyErr != nil {
		var conflict *StateConflictError
		if errors.As(applyErr, &conflict) {
			// backend re-check lost the race; same outcome as the pre-check
			deny(OutcomeRejectedInvalidState, conflict.State, conflict.State, object.Raw, conflict)
		}
		err = s.mapError(applyErr)
		return ApprovalResult{}, err
	}

	fields["outcome"] = string(OutcomeApplied)
	entry.Outcome = OutcomeApplied
	entry.PriorState = string(object.State)
	entry.ResultState = string(applied.State)
	entry.ObjectData = applied.Raw

	result = ApprovalResult{
		Object:     applied,
		Outcome:    OutcomeApplied,
		AuditState: AuditStateRecorded,
	}
	recorded, auditErr := s.recordDecision(ctx, entry)
	if auditErr != nil {
		// the backend transition is already durable and is never reversed
		result.AuditState = AuditStateDegraded
		result.AuditError = auditErr.Error()
		s.noteAuditWriteFailure(ctx, entry, auditErr)
		return result, nil
	}
	result.AuditEntryID = recorded.ID
	return result, nil
}

func (s *Service) GetObject(ctx context.Context, tenant, objectType, objectID string) (object ApprovableObject, err error) {
	startedAt := time.Now().UTC()
	tenant = strings.TrimSpace(tenant)
	objectType = strings.TrimSpace(strings.ToLower(objectType))
	objectID = strings.TrimSpace(objectID)
	fields := map[string]any{
		"tenant":      tenant,
		"object_type": objectType,
		"object_id":   objectID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_object", err, fields)
	}()

	if objectType == "" || !validObjectType(objectType) {
		err = s.mapError(fmt.Errorf("%w: %q", ErrInvalidObjectType, objectType))
		return ApprovableObject{}, err
	}
	if objectID == "" {
		err = s.mapError(fmt.Errorf("core: object id is required"))
		return ApprovableObject{}, err
	}

	client, _, resolveErr := s.clientFor(tenant)
	if resolveErr != nil {
		err = s.mapError(resolveErr)
		return ApprovableObject{}, err
	}
	object, err = client.FetchObject(ctx, objectType, objectID)
	if err != nil {
		err = s.mapError(err)
		return ApprovableObject{}, err
	}
	return object, nil
}

func (s *Service) ListPending(ctx context.Context, q PendingQuery) (items []ApprovableObject, err error) {
	startedAt := time.Now().UTC()
	q.Tenant = strings.TrimSpace(q.Tenant)
	q.ObjectType = strings.TrimSpace(strings.ToLower(q.ObjectType))
	fields := map[string]any{
		"tenant":      q.Tenant,
		"object_type": q.ObjectType,
	}
	defer func() {
		fields["count"] = len(items)
		s.observeOperation(ctx, startedAt, "list_pending", err, fields)
	}()

	if q.ObjectType == "" || !validObjectType(q.ObjectType) {
		err = s.mapError(fmt.Errorf("%w: %q", ErrInvalidObjectType, q.ObjectType))
		return nil, err
	}
	client, _, resolveErr := s.clientFor(q.Tenant)
	if resolveErr != nil {
		err = s.mapError(resolveErr)
		return nil, err
	}
	lister, ok := client.(PendingLister)
	if !ok {
		unsupported := s.errorFactory(
			fmt.Sprintf("pending listing is not supported by the %s dialect", client.Family()),
			goerrors.CategoryOperation,
		).WithTextCode(ApprovalErrorUnsupported).WithMetadata(map[string]any{
			"tenant": q.Tenant,
			"family": client.Family(),
		})
		err = ensureApprovalErrorEnvelope(unsupported)
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	if limit > maxPendingLimit {
		limit = maxPendingLimit
	}
	items, err = lister.ListPending(ctx, q.ObjectType, limit)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	return items, nil
}

func (s *Service) ListAudit(ctx context.Context, filter AuditFilter) (page AuditPage, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"tenant":      filter.Tenant,
		"object_type": filter.ObjectType,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "list_audit", err, fields)
	}()

	if s == nil || s.auditSink == nil {
		err = s.mapError(fmt.Errorf("core: audit sink is not configured"))
		return AuditPage{}, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = defaultAuditPerPage
	}
	if filter.PerPage > maxAuditPerPage {
		filter.PerPage = maxAuditPerPage
	}
	page, err = s.auditSink.List(ctx, filter)
	if err != nil {
		err = s.mapError(err)
		return AuditPage{}, err
	}
	return page, nil
}

func (s *Service) GetAuditEntry(ctx context.Context, id string) (entry AuditLogEntry, err error) {
	startedAt := time.Now().UTC()
	id = strings.TrimSpace(id)
	fields := map[string]any{
		"entry_id": id,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_audit_entry", err, fields)
	}()

	if s == nil || s.auditSink == nil {
		err = s.mapError(fmt.Errorf("core: audit sink is not configured"))
		return AuditLogEntry{}, err
	}
	if id == "" {
		err = s.mapError(fmt.Errorf("core: audit entry id is required"))
		return AuditLogEntry{}, err
	}
	entry, err = s.auditSink.Get(ctx, id)
	if err != nil {
		err = s.mapError(err)
		return AuditLogEntry{}, err
	}
	return entry, nil
}

// CheckBackends probes every tenant client concurrently. Clients without the
// HealthChecker capability report healthy.
func (s *Service) CheckBackends(ctx context.Context) []BackendHealth {
	if s == nil || len(s.clients) == 0 {
		return nil
	}
	tenants := make([]string, 0, len(s.clients))
	for tenant := range s.clients {
		tenants = append(tenants, tenant)
	}
	sort.Strings(tenants)

	results := make([]BackendHealth, len(tenants))
	group, groupCtx := errgroup.WithContext(ctx)
	for idx, tenant := range tenants {
		client := s.clients[tenant]
		group.Go(func() error {
			started := time.Now()
			health := BackendHealth{
				Tenant:  tenant,
				Family:  client.Family(),
				Healthy: true,
			}
			if checker, ok := client.(HealthChecker); ok {
				if pingErr := checker.Ping(groupCtx); pingErr != nil {
					health.Healthy = false
					health.Error = pingErr.Error()
				}
			}
			health.DurationMS = time.Since(started).Milliseconds()
			results[idx] = health
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func (s *Service) clientFor(tenant string) (BackendClient, BackendProfile, error) {
	if s == nil {
		return nil, BackendProfile{}, &UnknownTenantError{Tenant: tenant}
	}
	profile, err := s.profiles.Resolve(tenant)
	if err != nil {
		return nil, BackendProfile{}, err
	}
	client, ok := s.clients[profile.Tenant]
	if !ok {
		return nil, BackendProfile{}, &UnknownTenantError{Tenant: tenant}
	}
	return client, profile, nil
}

// recordDecision writes an audit entry on a context detached from caller
// cancellation: a disconnect after the backend applied the transition must
// not abandon the write.
func (s *Service) recordDecision(ctx context.Context, entry AuditLogEntry) (AuditLogEntry, error) {
	if s == nil || s.auditSink == nil {
		return AuditLogEntry{}, ErrAuditSinkRequired
	}
	entry.Source = s.auditSource
	entry.ObjectData = RedactSensitiveMap(entry.ObjectData)
	entry.Metadata = RedactSensitiveMap(entry.Metadata)

	auditCtx := context.WithoutCancel(ctx)
	if s.auditWriteTimeout > 0 {
		var cancel context.CancelFunc
		auditCtx, cancel = context.WithTimeout(auditCtx, s.auditWriteTimeout)
		defer cancel()
	}
	return s.auditSink.Record(auditCtx, entry)
}

// recordRejection persists a non-applied outcome. Audit failures here do not
// mask the primary rejection error; they are logged and counted instead.
func (s *Service) recordRejection(ctx context.Context, entry AuditLogEntry) {
	if _, auditErr := s.recordDecision(ctx, entry); auditErr != nil {
		s.noteAuditWriteFailure(ctx, entry, auditErr)
	}
}

func (s *Service) noteAuditWriteFailure(ctx context.Context, entry AuditLogEntry, auditErr error) {
	s.recordCounter(ctx, "approvals.audit_write_failures.total", 1, map[string]string{
		"tenant":  entry.Tenant,
		"outcome": string(entry.Outcome),
	})
	s.logError(ctx, "audit write failed", map[string]any{
		"tenant":      entry.Tenant,
		"object_type": entry.ObjectType,
		"object_id":   entry.ObjectID,
		"outcome":     string(entry.Outcome),
		"error":       auditErr.Error(),
	})
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

const (
	defaultPendingLimit = 50
	maxPendingLimit     = 200
	defaultAuditPerPage = 50
	maxAuditPerPage     = 200
)
