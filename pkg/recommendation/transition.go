package recommendation

import (
	"context"
	"time"

	"github.com/cloudtrim/engine/pkg/model"
)

// Action names accepted by Transition.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionSnooze  = "snooze"
	ActionSchedule = "schedule"
	ActionExecute = "execute"
)

// TransitionParams carries the optional fields each transition action
// consumes.
type TransitionParams struct {
	Reason     string
	Days       int
	Date       time.Time
	ActionedBy string
}

// Executor is the narrow interface Transition needs to drive the
// executor inline on an execute transition. pkg/executor.Executor
// satisfies this.
type Executor interface {
	Execute(ctx context.Context, accountID string, params model.ActionParams) (model.ActionResult, error)
}

// DefaultActionForScenario maps each scenario to the action handler its
// "Execute Now" button fires, per §4.4.2's handler table.
var DefaultActionForScenario = map[string]string{
	"idle_instance":                  "stop_instance",
	"orphaned_eip":                   "release_eip",
	"unattached_volume":              "delete_volume",
	"old_snapshot":                   "delete_snapshot",
	"idle_rds":                       "stop_rds",
	"idle_cache":                     "delete_cache",
	"idle_load_balancer":             "delete_lb",
	"over_provisioned_lambda":        "rightsize_lambda",
	"s3_no_lifecycle":                "add_lifecycle_policy",
	"log_no_retention":               "set_retention",
	"forgotten_preview":              "terminate_asg",
	"over_provisioned_asg":           "scale_down_asg",
	"stale_feature_env":              "terminate_asg",
	"idle_ci_runner":                 "stop_instance",
	"off_hours_dev":                  "stop_instance",
	"over_provisioned_instance":      "rightsize_instance",
	"gp2_volume":                     "upgrade_volume_type",
	"unused_lambda":                  "delete_lambda",
	"orphaned_snapshot":              "delete_orphaned_snapshot",
	"static_asg":                     "scale_down_asg",
	"multi_az_non_prod":              "disable_multi_az",
	"empty_load_balancer":            "delete_empty_lb",
	"s3_no_version_expiration":       "add_version_expiration",
	"over_configured_lambda_timeout": "optimize_lambda_timeout",
}

// SetExecutor wires the executor used on execute transitions.
func (s *Store) SetExecutor(ex Executor) *Store {
	s.executor = ex
	return s
}

// Transition drives the state machine for one recommendation (§4.3.2).
// All transitions not in the legal table fail with invalid_state_transition.
func (s *Store) Transition(ctx context.Context, id, action string, params TransitionParams) (model.Recommendation, error) {
	rec, found, err := s.Get(ctx, id)
	if err != nil {
		return model.Recommendation{}, err
	}
	if !found {
		return model.Recommendation{}, model.NewError(model.CodeResourceNotFound, "recommendation not found: "+id)
	}

	now := s.now()

	switch action {
	case ActionApprove:
		// §4.3.3: the same approve call also drives snoozed -> pending
		// ("unsnooze"), detected from the prior state rather than a
		// distinct action name. This overload is preserved as specified.
		switch rec.Status {
		case model.StatusSnoozed:
			rec.Status = model.StatusPending
			rec.SnoozedUntil = nil
		case model.StatusPending:
			rec.Status = model.StatusApproved
		default:
			return model.Recommendation{}, invalidTransition(rec.Status, action)
		}

	case ActionReject:
		if rec.Status != model.StatusPending {
			return model.Recommendation{}, invalidTransition(rec.Status, action)
		}
		rec.Status = model.StatusRejected
		if params.Reason != "" {
			reason := params.Reason
			rec.RejectionReason = &reason
		}

	case ActionSnooze:
		if rec.Status != model.StatusPending {
			return model.Recommendation{}, invalidTransition(rec.Status, action)
		}
		if params.Days <= 0 {
			return model.Recommendation{}, model.NewError(model.CodeInvalidStateTransition, "snooze requires days > 0")
		}
		rec.Status = model.StatusSnoozed
		until := now.AddDate(0, 0, params.Days)
		rec.SnoozedUntil = &until

	case ActionSchedule:
		if rec.Status != model.StatusPending {
			return model.Recommendation{}, invalidTransition(rec.Status, action)
		}
		if !params.Date.After(now) {
			return model.Recommendation{}, model.NewError(model.CodeInvalidStateTransition, "schedule requires a date in the future")
		}
		rec.Status = model.StatusScheduled
		date := params.Date
		rec.ScheduledFor = &date

	case ActionExecute:
		switch rec.Status {
		case model.StatusPending, model.StatusApproved, model.StatusScheduled:
			if err := s.executeInline(ctx, &rec); err != nil {
				return model.Recommendation{}, err
			}
		default:
			return model.Recommendation{}, invalidTransition(rec.Status, action)
		}

	default:
		return model.Recommendation{}, model.NewError(model.CodeInvalidStateTransition, "unknown transition action: "+action)
	}

	if params.ActionedBy != "" {
		actionedBy := params.ActionedBy
		rec.ActionedBy = &actionedBy
		actionedAt := now
		rec.ActionedAt = &actionedAt
	}
	rec.UpdatedAt = now
	return s.save(ctx, rec)
}

// executeInline runs the recommendation's default action through the
// injected executor. On executor failure, the recommendation does NOT
// transition to executed and stays in its prior status (§7 user-visible
// failure behavior) — the caller sees the executor's error.
func (s *Store) executeInline(ctx context.Context, rec *model.Recommendation) error {
	actionName, ok := DefaultActionForScenario[rec.ScenarioID]
	if !ok {
		return model.NewError(model.CodeUnknownScenario, "no default action for scenario: "+rec.ScenarioID)
	}
	if s.executor == nil {
		return model.NewError(model.CodeStoreError, "no executor configured")
	}
	result, err := s.executor.Execute(ctx, s.accountID, model.ActionParams{
		Action:       actionName,
		ResourceType: rec.ResourceType,
		ResourceID:   rec.ResourceID,
		ResourceName: rec.ResourceName,
		DetectionID:  rec.DetectionID,
		ScenarioID:   rec.ScenarioID,
		Details:      rec.Details,
	})
	if err != nil {
		return model.WrapError(model.CodeStoreError, "execute action", err)
	}
	if !result.Success {
		return model.NewError(model.CodeStoreError, result.Message)
	}
	rec.Status = model.StatusExecuted
	return nil
}

func invalidTransition(from, action string) error {
	return model.NewError(model.CodeInvalidStateTransition, "cannot "+action+" a recommendation in state "+from)
}
