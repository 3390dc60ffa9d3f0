// Package executor implements execute_action: the 23-handler dispatch
// that mutates a resource row, captures its previous state, and always
// appends an audit entry regardless of outcome (§4.4).
package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloudtrim/engine/pkg/model"
	"github.com/cloudtrim/engine/pkg/store"
)

// CacheInvalidator is the narrow seam into the detection engine's scan
// cache; invalidated on every successful action (§4.2.1).
type CacheInvalidator interface {
	InvalidateCache()
}

// AuditAppender is the narrow seam into the audit log.
type AuditAppender interface {
	Append(ctx context.Context, accountID string, entry model.AuditEntry) error
}

// table maps a resource_type string to its backing store.Table.
var tableForResourceType = map[string]store.Table{
	"instance":           store.TableInstances,
	"autoscaling_group":  store.TableAutoscalingGroups,
	"rds_instance":       store.TableRDSInstances,
	"cache_cluster":      store.TableCacheClusters,
	"load_balancer":      store.TableLoadBalancers,
	"lambda_function":    store.TableLambdaFunctions,
	"volume":             store.TableVolumes,
	"snapshot":           store.TableSnapshots,
	"s3_bucket":          store.TableS3Buckets,
	"log_group":          store.TableLogGroups,
	"elastic_ip":         store.TableElasticIPs,
}

// naturalKeyField names the field SelectByKey falls back to when a
// primary-key lookup misses, per §4.4.3.
var naturalKeyField = map[string]string{
	"instance":          "instanceId",
	"autoscaling_group": "name",
	"rds_instance":      "dbInstanceId",
	"cache_cluster":     "clusterId",
	"load_balancer":     "lbArn",
	"lambda_function":   "name",
	"volume":            "volumeId",
	"snapshot":          "snapshotId",
	"s3_bucket":         "name",
	"log_group":         "name",
	"elastic_ip":        "allocationId",
}

// Executor runs execute_action against one account's resource store.
type Executor struct {
	store store.ResourceStore
	cache CacheInvalidator
	audit AuditAppender
	now   func() time.Time
}

// New builds an Executor. cache and audit may be nil in tests that
// don't exercise those side effects.
func New(rs store.ResourceStore, cache CacheInvalidator, audit AuditAppender) *Executor {
	return &Executor{store: rs, cache: cache, audit: audit, now: time.Now}
}

// WithClock overrides the executor's notion of "now", for deterministic tests.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Execute dispatches params.Action to its handler and returns the
// outcome. Business-level failures (unknown action, missing row,
// missing recommendation detail) are reported inside a failed
// ActionResult, not as a Go error — only a store/context failure that
// prevents even auditing the attempt is returned as an error.
func (e *Executor) Execute(ctx context.Context, accountID string, params model.ActionParams) (model.ActionResult, error) {
	start := e.now()

	handler, ok := handlers[params.Action]
	if !ok {
		result := e.fail(params, start, fmt.Sprintf("Unknown action type: %s", params.Action))
		e.appendAudit(ctx, accountID, params, result, nil, nil)
		return result, nil
	}

	table, ok := tableForResourceType[params.ResourceType]
	if !ok {
		result := e.fail(params, start, fmt.Sprintf("Unknown resource type: %s", params.ResourceType))
		e.appendAudit(ctx, accountID, params, result, nil, nil)
		return result, nil
	}

	row, found, err := e.store.SelectByKey(ctx, accountID, table, "id", params.ResourceID)
	if err != nil {
		return model.ActionResult{}, model.WrapError(model.CodeStoreError, "lookup by primary key", err)
	}
	if !found {
		if field, ok := naturalKeyField[params.ResourceType]; ok {
			row, found, err = e.store.SelectByKey(ctx, accountID, table, field, params.ResourceID)
			if err != nil {
				return model.ActionResult{}, model.WrapError(model.CodeStoreError, "lookup by natural key", err)
			}
		}
	}
	if !found {
		result := e.fail(params, start, fmt.Sprintf("resource not found: %s %s", params.ResourceType, params.ResourceID))
		e.appendAudit(ctx, accountID, params, result, nil, nil)
		return result, nil
	}

	outcome := handler(row, params)
	if outcome.err != nil {
		result := e.fail(params, start, outcome.err.Error())
		e.appendAudit(ctx, accountID, params, result, outcome.previousState, nil)
		return result, nil
	}

	var err2 error
	if outcome.deleted {
		err2 = e.store.Delete(ctx, accountID, table, "id", idOf(row))
	} else {
		_, err2 = e.store.Update(ctx, accountID, table, "id", idOf(row), outcome.newRow)
	}
	if err2 != nil {
		result := e.fail(params, start, err2.Error())
		e.appendAudit(ctx, accountID, params, result, outcome.previousState, nil)
		return result, nil
	}

	result := model.ActionResult{
		Success:       true,
		Action:        params.Action,
		ResourceID:    params.ResourceID,
		ResourceType:  params.ResourceType,
		ResourceName:  params.ResourceName,
		Message:       fmt.Sprintf("%s applied to %s", params.Action, params.ResourceID),
		PreviousState: outcome.previousState,
		NewState:      outcome.newRow,
		ExecutedAt:    start,
		DurationMS:    e.now().Sub(start).Milliseconds(),
	}
	e.appendAudit(ctx, accountID, params, result, outcome.previousState, outcome.newRow)
	if e.cache != nil {
		e.cache.InvalidateCache()
	}
	return result, nil
}

func (e *Executor) fail(params model.ActionParams, start time.Time, message string) model.ActionResult {
	return model.ActionResult{
		Success:      false,
		Action:       params.Action,
		ResourceID:   params.ResourceID,
		ResourceType: params.ResourceType,
		ResourceName: params.ResourceName,
		Message:      message,
		ExecutedAt:   start,
		DurationMS:   e.now().Sub(start).Milliseconds(),
	}
}

// appendAudit always writes an audit entry, success or failure.
// Audit write failures are logged, never propagated — they must not
// mask the action's own success/failure (§4.4.1 step 4).
func (e *Executor) appendAudit(ctx context.Context, accountID string, params model.ActionParams, result model.ActionResult, previous, newState map[string]any) {
	if e.audit == nil {
		return
	}
	entry := model.AuditEntry{
		Action:        params.Action,
		ResourceType:  params.ResourceType,
		ResourceID:    params.ResourceID,
		ResourceName:  params.ResourceName,
		ScenarioID:    params.ScenarioID,
		DetectionID:   params.DetectionID,
		Success:       result.Success,
		Message:       result.Message,
		PreviousState: previous,
		NewState:      newState,
		ExecutedAt:    result.ExecutedAt,
		DurationMS:    result.DurationMS,
		ExecutedBy:    "executor",
	}
	if err := e.audit.Append(ctx, accountID, entry); err != nil {
		log.Printf("executor: audit append failed (action outcome unaffected): %v", err)
	}
}

func idOf(row store.Row) any {
	return row["id"]
}
