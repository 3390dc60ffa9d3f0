// Package store defines the table-oriented resource store contract the
// engine consumes (§6.1) and two implementations: an in-memory store for
// the simulated world, and a DynamoDB-backed store for a deployed
// instance, grounded in the teacher's attributevalue marshal/unmarshal
// conventions.
package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Table names the eleven resource tables plus the two drift-tick
// support tables (daily metrics, resource-change-event audit stream).
type Table string

const (
	TableInstances           Table = "instances"
	TableAutoscalingGroups   Table = "autoscaling_groups"
	TableRDSInstances        Table = "rds_instances"
	TableCacheClusters       Table = "cache_clusters"
	TableLoadBalancers       Table = "load_balancers"
	TableLambdaFunctions     Table = "lambda_functions"
	TableVolumes             Table = "volumes"
	TableSnapshots           Table = "snapshots"
	TableS3Buckets           Table = "s3_buckets"
	TableLogGroups           Table = "log_groups"
	TableElasticIPs          Table = "elastic_ips"
	TableDailyMetrics        Table = "daily_metrics"
	TableResourceChangeEvents Table = "resource_change_events"
)

// Row is a generic table row: field name to value. Typed callers use
// Encode/Decode to bridge to/from their model structs, the same dance
// the teacher does with attributevalue.MarshalMap/UnmarshalMap against
// DynamoDB.
type Row map[string]any

// ResourceStore is the external collaborator the engine consumes (§6.1).
// No transactions are required across tables; per-row atomicity is
// required.
type ResourceStore interface {
	SelectAll(ctx context.Context, accountID string, table Table) ([]Row, error)
	SelectByKey(ctx context.Context, accountID string, table Table, field string, value any) (Row, bool, error)
	Insert(ctx context.Context, accountID string, table Table, row Row) (Row, error)
	Update(ctx context.Context, accountID string, table Table, field string, value any, patch Row) (Row, error)
	Delete(ctx context.Context, accountID string, table Table, field string, value any) error
	Upsert(ctx context.Context, accountID string, table Table, rows []Row, conflictFields []string, ignoreDuplicates bool) error
}

// ExecutionModeStore reads/writes the single small per-account
// execution-mode record (§6.2).
type ExecutionModeStore interface {
	GetMode(ctx context.Context, accountID string) (string, error)
	SetMode(ctx context.Context, accountID, mode string) error
}

// Encode converts a typed model value into a generic Row via a JSON
// round trip, the same bridge the teacher's jobs.go performs by hand
// when it copies a DynamoDB item into a plain map before re-marshaling.
func Encode(v any) (Row, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	var row Row
	if err := json.Unmarshal(b, &row); err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	return row, nil
}

// Decode converts a generic Row back into a typed model value via a
// JSON round trip. out must be a pointer.
func Decode(row Row, out any) error {
	b, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("store: decode: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("store: decode: %w", err)
	}
	return nil
}

// DecodeAll converts a slice of generic Rows into a freshly-allocated
// slice of T.
func DecodeAll[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var v T
		if err := Decode(row, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
