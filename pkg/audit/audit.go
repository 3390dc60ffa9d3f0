// Package audit implements the append-only execution log (§6.4):
// every executor action, success or failure, gets one entry that is
// never modified after insert.
package audit

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/cloudtrim/engine/pkg/model"
	"github.com/cloudtrim/engine/pkg/store"
)

const auditTable store.Table = "audit_log"

// Log is the audit store for one account, backed by a generic
// ResourceStore the same way pkg/recommendation is.
type Log struct {
	store     store.ResourceStore
	accountID string
}

// New builds an audit Log for one account.
func New(rs store.ResourceStore, accountID string) *Log {
	return &Log{store: rs, accountID: accountID}
}

// Append inserts one immutable entry. Audit entries never get an "id"
// from the caller — one is minted here so every append is independent
// of action ordering.
func (l *Log) Append(ctx context.Context, accountID string, entry model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	row, err := store.Encode(entry)
	if err != nil {
		return model.WrapError(model.CodeStoreError, "audit: encode entry", err)
	}
	if _, err := l.store.Insert(ctx, accountID, auditTable, row); err != nil {
		return model.WrapError(model.CodeStoreError, "audit: insert entry", err)
	}
	return nil
}

// Recent returns up to limit entries, most recently executed first
// (§6.4 GET /audit-log?limit=N). limit<=0 returns every entry.
func (l *Log) Recent(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	rows, err := l.store.SelectAll(ctx, l.accountID, auditTable)
	if err != nil {
		return nil, model.WrapError(model.CodeStoreError, "audit: list entries", err)
	}
	entries, err := store.DecodeAll[model.AuditEntry](rows)
	if err != nil {
		return nil, model.WrapError(model.CodeStoreError, "audit: decode entries", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ExecutedAt.After(entries[j].ExecutedAt)
	})
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}
