package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudtrim/engine/pkg/model"
)

// MemStore is the in-memory ResourceStore used for the simulated world.
// Rows are keyed by account, then table, then the "id" field (the
// primary key every Header-embedding entity carries). It is the default
// backing store and what pkg/detection, pkg/executor and pkg/drift are
// tested against.
type MemStore struct {
	mu     sync.Mutex
	tables map[string]map[Table]map[string]Row
	modes  map[string]string
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		tables: make(map[string]map[Table]map[string]Row),
		modes:  make(map[string]string),
	}
}

func (m *MemStore) tableFor(accountID string, table Table) map[string]Row {
	acc, ok := m.tables[accountID]
	if !ok {
		acc = make(map[Table]map[string]Row)
		m.tables[accountID] = acc
	}
	rows, ok := acc[table]
	if !ok {
		rows = make(map[string]Row)
		acc[table] = rows
	}
	return rows
}

func rowKey(row Row, field string) (string, bool) {
	v, ok := row[field]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprintf("%v", v), true
}

// SelectAll returns every row in table for accountID, in no particular
// order.
func (m *MemStore) SelectAll(ctx context.Context, accountID string, table Table) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tableFor(accountID, table)
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, cloneRow(r))
	}
	return out, nil
}

// SelectByKey looks up a single row by an arbitrary field, not just the
// primary key — this is what gives the executor its primary-then-
// natural-key fallback (§4.4.3).
func (m *MemStore) SelectByKey(ctx context.Context, accountID string, table Table, field string, value any) (Row, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	want := fmt.Sprintf("%v", value)
	for _, r := range m.tableFor(accountID, table) {
		if v, ok := r[field]; ok && fmt.Sprintf("%v", v) == want {
			return cloneRow(r), true, nil
		}
	}
	return nil, false, nil
}

// Insert adds a new row, keyed by its "id" field.
func (m *MemStore) Insert(ctx context.Context, accountID string, table Table, row Row) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := rowKey(row, "id")
	if !ok {
		return nil, model.NewError(model.CodeStoreError, "insert: row missing id")
	}
	rows := m.tableFor(accountID, table)
	rows[key] = cloneRow(row)
	return cloneRow(row), nil
}

// Update applies patch on top of the row found by field=value and
// writes it back, returning the merged row.
func (m *MemStore) Update(ctx context.Context, accountID string, table Table, field string, value any, patch Row) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tableFor(accountID, table)
	want := fmt.Sprintf("%v", value)
	for key, r := range rows {
		if v, ok := r[field]; ok && fmt.Sprintf("%v", v) == want {
			merged := cloneRow(r)
			for k, v := range patch {
				merged[k] = v
			}
			rows[key] = merged
			return cloneRow(merged), nil
		}
	}
	return nil, model.WrapError(model.CodeResourceNotFound, fmt.Sprintf("update: no row with %s=%v", field, value), nil)
}

// Delete removes the row found by field=value. Deleting a row that does
// not exist is not an error — callers check existence via SelectByKey
// first when they need to distinguish the two.
func (m *MemStore) Delete(ctx context.Context, accountID string, table Table, field string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tableFor(accountID, table)
	want := fmt.Sprintf("%v", value)
	for key, r := range rows {
		if v, ok := r[field]; ok && fmt.Sprintf("%v", v) == want {
			delete(rows, key)
			return nil
		}
	}
	return nil
}

// Upsert inserts rows that do not already exist under conflictFields;
// existing rows are left untouched (ignoreDuplicates is the only mode
// the drift-tick's daily-metrics upsert needs — §5 ordering guarantees
// require duplicates for a (resource, date) pair to be silently
// dropped, never overwritten).
func (m *MemStore) Upsert(ctx context.Context, accountID string, table Table, rowsIn []Row, conflictFields []string, ignoreDuplicates bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tableFor(accountID, table)
	for _, row := range rowsIn {
		conflictKey := conflictIdentity(row, conflictFields)
		exists := false
		for _, r := range rows {
			if conflictIdentity(r, conflictFields) == conflictKey {
				exists = true
				break
			}
		}
		if exists {
			if ignoreDuplicates {
				continue
			}
			// Overwrite is only reached when the caller explicitly asks
			// for it; the engine never does today.
		}
		key, ok := rowKey(row, "id")
		if !ok {
			key = conflictKey
		}
		rows[key] = cloneRow(row)
	}
	return nil
}

func conflictIdentity(row Row, fields []string) string {
	s := ""
	for _, f := range fields {
		s += f + "=" + fmt.Sprintf("%v", row[f]) + ";"
	}
	return s
}

func cloneRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// GetMode returns the persisted execution mode for accountID, defaulting
// to manual if no record exists (§6.2).
func (m *MemStore) GetMode(ctx context.Context, accountID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mode, ok := m.modes[accountID]
	if !ok {
		return model.ExecutionModeManual, nil
	}
	return mode, nil
}

// SetMode persists the execution mode for accountID.
func (m *MemStore) SetMode(ctx context.Context, accountID, mode string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[accountID] = mode
	return nil
}

// AccountIDs returns every account that has at least one row in any
// table, used by the drift-tick to iterate "every account in the
// system" (§4.5.2).
func (m *MemStore) AccountIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.tables))
	for acc := range m.tables {
		out = append(out, acc)
	}
	return out
}
