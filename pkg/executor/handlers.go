package executor

import (
	"errors"

	"github.com/cloudtrim/engine/pkg/model"
	"github.com/cloudtrim/engine/pkg/pricing"
	"github.com/cloudtrim/engine/pkg/store"
)

// outcome is what one handler reports back to Execute: either a patch to
// apply (newRow, merged over the existing row), a delete, or a business
// failure that still gets audited.
type outcome struct {
	newRow        store.Row
	deleted       bool
	previousState map[string]any
	err           error
}

// handlerFunc mutates (or deletes) the resource row named by params and
// reports what changed. It never touches the store directly — Execute
// applies newRow/deleted after the handler returns, so every handler is
// trivially testable against a bare row.
type handlerFunc func(row store.Row, params model.ActionParams) outcome

// snapshot copies the named fields out of row into a previousState map,
// for the audit trail (§4.4.1 step 3).
func snapshot(row store.Row, fields ...string) map[string]any {
	prev := make(map[string]any, len(fields))
	for _, f := range fields {
		prev[f] = row[f]
	}
	return prev
}

// patch returns a shallow copy of row with the given fields overwritten.
func patch(row store.Row, fields map[string]any) store.Row {
	out := make(store.Row, len(row)+len(fields))
	for k, v := range row {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func setState(state string) func(store.Row, model.ActionParams) outcome {
	return func(row store.Row, _ model.ActionParams) outcome {
		return outcome{
			previousState: snapshot(row, "state"),
			newRow:        patch(row, map[string]any{"state": state}),
		}
	}
}

func deleteRow(row store.Row, _ model.ActionParams) outcome {
	return outcome{deleted: true, previousState: snapshot(row, "id")}
}

// handlers is the 23-entry dispatch table, named exactly per §4.4.2.
var handlers = map[string]handlerFunc{
	"terminate_instance": setState(model.InstanceStateTerminated),
	"stop_instance":       setState(model.InstanceStateStopped),
	"rightsize_instance":  rightsizeInstance,

	"terminate_asg":     terminateASG,
	"scale_down_asg":    scaleDownASG,
	"enable_asg_scaling": enableASGScaling,

	"release_eip": deleteRow,

	"delete_volume":       deleteVolume,
	"upgrade_volume_type": upgradeVolumeType,

	"delete_snapshot":          deleteRow,
	"delete_orphaned_snapshot": deleteRow,

	"add_lifecycle_policy":   addLifecyclePolicy,
	"add_version_expiration": addVersionExpiration,

	"set_retention": setRetention,

	"stop_rds":        setState(model.RDSStateStopped),
	"downsize_rds":    downsizeRDS,
	"disable_multi_az": disableMultiAZ,

	"delete_cache": deleteRow,

	"delete_lb":       deleteRow,
	"delete_empty_lb": deleteRow,

	"delete_lambda":          deleteRow,
	"rightsize_lambda":       rightsizeLambda,
	"optimize_lambda_timeout": optimizeLambdaTimeout,
}

var errMissingRecommendation = errors.New("recommendation detail missing for this action")

func rightsizeInstance(row store.Row, params model.ActionParams) outcome {
	newType := params.Details.RecommendedInstanceType
	if newType == "" {
		return outcome{err: errMissingRecommendation}
	}
	return outcome{
		previousState: snapshot(row, "instanceType", "hourlyCost"),
		newRow: patch(row, map[string]any{
			"instanceType": newType,
			"hourlyCost":   pricing.InstanceMonthlyCost(newType) / pricing.HoursPerMonth,
		}),
	}
}

// terminateASG zeroes out min/max/desired rather than deleting the row,
// mirroring how a terminated ASG still lingers in the account inventory
// at zero capacity.
func terminateASG(row store.Row, _ model.ActionParams) outcome {
	return outcome{
		previousState: snapshot(row, "minSize", "maxSize", "desiredCapacity"),
		newRow: patch(row, map[string]any{
			"minSize": 0, "maxSize": 0, "desiredCapacity": 0,
		}),
	}
}

// scaleDownASG halves desiredCapacity (floor of 1) and pulls minSize
// down to match so the ASG can't immediately scale back up to the old
// floor.
func scaleDownASG(row store.Row, _ model.ActionParams) outcome {
	desired := intOf(row["desiredCapacity"])
	minSize := intOf(row["minSize"])
	newDesired := desired / 2
	if newDesired < 1 {
		newDesired = 1
	}
	newMin := minSize
	if newDesired < newMin {
		newMin = newDesired
	}
	return outcome{
		previousState: snapshot(row, "desiredCapacity", "minSize"),
		newRow: patch(row, map[string]any{
			"desiredCapacity": newDesired, "minSize": newMin,
		}),
	}
}

// enableASGScaling patches the ASG's bounds directly: min=1, max =
// max(desired*2, 4), so the group can actually react to load instead of
// sitting pinned at a fixed size.
func enableASGScaling(row store.Row, _ model.ActionParams) outcome {
	desired := intOf(row["desiredCapacity"])
	newMax := desired * 2
	if newMax < 4 {
		newMax = 4
	}
	return outcome{
		previousState: snapshot(row, "minSize", "maxSize"),
		newRow: patch(row, map[string]any{
			"minSize": 1, "maxSize": newMax,
		}),
	}
}

func upgradeVolumeType(row store.Row, _ model.ActionParams) outcome {
	return outcome{
		previousState: snapshot(row, "volumeType"),
		newRow:        patch(row, map[string]any{"volumeType": model.VolumeTypeGP3}),
	}
}

// deleteVolume soft-deletes: the row stays for audit/history purposes
// with state flipped to deleted, rather than disappearing from the store.
func deleteVolume(row store.Row, _ model.ActionParams) outcome {
	return outcome{
		previousState: snapshot(row, "state"),
		newRow:        patch(row, map[string]any{"state": model.VolumeStateDeleted}),
	}
}

func addLifecyclePolicy(row store.Row, _ model.ActionParams) outcome {
	rule := map[string]any{
		"id":     "intelligent-tiering",
		"status": "Enabled",
		"transitions": []any{
			map[string]any{"days": float64(30), "storageClass": "INTELLIGENT_TIERING"},
			map[string]any{"days": float64(90), "storageClass": "GLACIER"},
		},
	}
	existing, _ := row["lifecycleRules"].([]any)
	return outcome{
		previousState: snapshot(row, "lifecycleRules"),
		newRow:        patch(row, map[string]any{"lifecycleRules": append(existing, rule)}),
	}
}

func addVersionExpiration(row store.Row, _ model.ActionParams) outcome {
	expirationDays := float64(30)
	rule := map[string]any{
		"id":                              "expire-noncurrent-versions",
		"status":                          "Enabled",
		"noncurrentVersionExpirationDays": expirationDays,
	}
	existing, _ := row["lifecycleRules"].([]any)
	return outcome{
		previousState: snapshot(row, "lifecycleRules"),
		newRow:        patch(row, map[string]any{"lifecycleRules": append(existing, rule)}),
	}
}

// defaultRetentionDays is the retention applied by set_retention, chosen
// to match a typical compliance-minimum log retention window.
const defaultRetentionDays = 30

func setRetention(row store.Row, _ model.ActionParams) outcome {
	return outcome{
		previousState: snapshot(row, "retentionDays"),
		newRow:        patch(row, map[string]any{"retentionDays": float64(defaultRetentionDays)}),
	}
}

func downsizeRDS(row store.Row, _ model.ActionParams) outcome {
	current, _ := row["instanceClass"].(string)
	smaller, ok := pricing.DownsizeRDSClass(current)
	if !ok {
		return outcome{err: errMissingRecommendation}
	}
	return outcome{
		previousState: snapshot(row, "instanceClass"),
		newRow:        patch(row, map[string]any{"instanceClass": smaller}),
	}
}

func disableMultiAZ(row store.Row, _ model.ActionParams) outcome {
	return outcome{
		previousState: snapshot(row, "multiAz"),
		newRow:        patch(row, map[string]any{"multiAz": false}),
	}
}

func rightsizeLambda(row store.Row, _ model.ActionParams) outcome {
	memoryMB := intOf(row["memoryMb"])
	newMemory := memoryMB / 2
	if newMemory < 128 {
		newMemory = 128
	}
	return outcome{
		previousState: snapshot(row, "memoryMb"),
		newRow:        patch(row, map[string]any{"memoryMb": float64(newMemory)}),
	}
}

func optimizeLambdaTimeout(row store.Row, params model.ActionParams) outcome {
	if params.Details.RecommendedTimeout <= 0 {
		return outcome{err: errMissingRecommendation}
	}
	return outcome{
		previousState: snapshot(row, "timeoutSeconds"),
		newRow:        patch(row, map[string]any{"timeoutSeconds": float64(params.Details.RecommendedTimeout)}),
	}
}

func intOf(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

