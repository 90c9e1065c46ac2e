package sqlstore

import "github.com/goliatone/go-approvals/core"

var (
	_ core.AuditSink              = (*AuditStore)(nil)
	_ core.AuditSink              = (*CachedAuditStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
