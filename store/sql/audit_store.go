package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-approvals/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuditStore persists decision records. The contract is append-only:
// entries are immutable once written and nothing here updates or
// deletes them.
type AuditStore struct {
	db   *bun.DB
	repo repository.Repository[*auditEntryRecord]
}

func NewAuditStore(db *bun.DB) (*AuditStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*auditEntryRecord](db, auditEntryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid audit repository wiring: %w", err)
		}
	}
	return &AuditStore{db: db, repo: repo}, nil
}

func (s *AuditStore) Record(ctx context.Context, entry core.AuditLogEntry) (core.AuditLogEntry, error) {
	if s == nil || s.repo == nil {
		return core.AuditLogEntry{}, fmt.Errorf("sqlstore: audit store is not configured")
	}
	record := auditRecordFromDomain(entry)
	if record.Tenant == "" || record.ObjectType == "" || record.ObjectID == "" ||
		record.Action == "" || record.Actor == "" || record.Outcome == "" {
		return core.AuditLogEntry{}, fmt.Errorf("sqlstore: audit entry requires tenant, object, action, actor, and outcome")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.AuditLogEntry{}, err
	}
	return created.toDomain(), nil
}

func (s *AuditStore) List(ctx context.Context, filter core.AuditFilter) (core.AuditPage, error) {
	if s == nil || s.repo == nil {
		return core.AuditPage{}, fmt.Errorf("sqlstore: audit store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if tenant := strings.TrimSpace(filter.Tenant); tenant != "" {
		selectors = append(selectors, repository.SelectBy("tenant", "=", tenant))
	}
	if objectType := strings.TrimSpace(filter.ObjectType); objectType != "" {
		selectors = append(selectors, repository.SelectBy("object_type", "=", objectType))
	}
	if objectID := strings.TrimSpace(filter.ObjectID); objectID != "" {
		selectors = append(selectors, repository.SelectBy("object_id", "=", objectID))
	}
	if actor := strings.TrimSpace(filter.Actor); actor != "" {
		selectors = append(selectors, repository.SelectBy("actor", "=", actor))
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		selectors = append(selectors, repository.SelectBy("action", "=", action))
	}
	if outcome := strings.TrimSpace(string(filter.Outcome)); outcome != "" {
		selectors = append(selectors, repository.SelectBy("outcome", "=", outcome))
	}
	if filter.From != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", ">=", filter.From.UTC()))
	}
	if filter.To != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", "<=", filter.To.UTC()))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.AuditPage{}, err
	}
	items := make([]core.AuditLogEntry, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return core.AuditPage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: offset+len(items) < total,
	}, nil
}

func (s *AuditStore) Get(ctx context.Context, id string) (core.AuditLogEntry, error) {
	if s == nil || s.repo == nil {
		return core.AuditLogEntry{}, fmt.Errorf("sqlstore: audit store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.AuditLogEntry{}, err
	}
	return record.toDomain(), nil
}
