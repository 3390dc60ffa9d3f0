package model

import "time"

// Recommendation statuses. These are the only six legal states; the state
// machine in pkg/recommendation enforces the transition table.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusSnoozed   = "snoozed"
	StatusScheduled = "scheduled"
	StatusExecuted  = "executed"
)

// Impact levels, ordered low to high for sort comparisons.
const (
	ImpactLow      = "low"
	ImpactMedium   = "medium"
	ImpactHigh     = "high"
	ImpactCritical = "critical"
)

// impactRank gives each impact level a sortable weight, highest first.
var impactRank = map[string]int{
	ImpactCritical: 3,
	ImpactHigh:     2,
	ImpactMedium:   1,
	ImpactLow:      0,
}

// ImpactRank returns the sort weight for an impact level; unknown levels
// rank lowest.
func ImpactRank(level string) int {
	return impactRank[level]
}

// ImpactFromConfidence buckets a confidence score into an impact level.
// Used at ingest time since the source detection has no impact field of
// its own.
func ImpactFromConfidence(confidence int) string {
	switch {
	case confidence >= 90:
		return ImpactCritical
	case confidence >= 75:
		return ImpactHigh
	case confidence >= 50:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// Recommendation is the durable record created from a Detection. It
// carries the same identifying fields plus lifecycle state.
type Recommendation struct {
	ID               string    `json:"id" dynamodbav:"id"`
	DetectionID      string    `json:"detectionId" dynamodbav:"detection_id"`
	ScenarioID       string    `json:"scenarioId" dynamodbav:"scenario_id"`
	ResourceType     string    `json:"resourceType" dynamodbav:"resource_type"`
	ResourceID       string    `json:"resourceId" dynamodbav:"resource_id"`
	ResourceName     string    `json:"resourceName" dynamodbav:"resource_name"`
	AccountID        string    `json:"accountId" dynamodbav:"account_id"`
	Region           string    `json:"region" dynamodbav:"region"`
	Env              string    `json:"env" dynamodbav:"env"`
	Confidence       int       `json:"confidence" dynamodbav:"confidence"`
	Mode             int       `json:"mode" dynamodbav:"mode"`
	MonthlyCost      float64   `json:"monthlyCost" dynamodbav:"monthly_cost"`
	PotentialSavings float64   `json:"potentialSavings" dynamodbav:"potential_savings"`
	Details          Details   `json:"details" dynamodbav:"details"`
	CanAutoOptimize  bool      `json:"canAutoOptimize" dynamodbav:"can_auto_optimize"`

	Status          string     `json:"status" dynamodbav:"status"`
	Title           string     `json:"title" dynamodbav:"title"`
	Description     string     `json:"description" dynamodbav:"description"`
	ImpactLevel     string     `json:"impactLevel" dynamodbav:"impact_level"`
	Explanation     string     `json:"explanation,omitempty" dynamodbav:"explanation,omitempty"`
	ActionedBy      *string    `json:"actionedBy,omitempty" dynamodbav:"actioned_by,omitempty"`
	ActionedAt      *time.Time `json:"actionedAt,omitempty" dynamodbav:"actioned_at,omitempty"`
	Reason          *string    `json:"reason,omitempty" dynamodbav:"reason,omitempty"`
	SnoozedUntil    *time.Time `json:"snoozedUntil,omitempty" dynamodbav:"snoozed_until,omitempty"`
	ScheduledFor    *time.Time `json:"scheduledFor,omitempty" dynamodbav:"scheduled_for,omitempty"`
	RejectionReason *string    `json:"rejectionReason,omitempty" dynamodbav:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" dynamodbav:"updated_at"`
}

// NewRecommendation builds a pending recommendation from a detection at
// ingest time. title/description are left for the caller (pkg/recommendation
// derives scenario-specific text); ImpactLevel is derived from confidence.
func NewRecommendation(id string, d Detection, now time.Time) Recommendation {
	return Recommendation{
		ID:               id,
		DetectionID:      d.DetectionID,
		ScenarioID:       d.ScenarioID,
		ResourceType:     d.ResourceType,
		ResourceID:       d.ResourceID,
		ResourceName:     d.ResourceName,
		AccountID:        d.AccountID,
		Region:           d.Region,
		Env:              d.Env,
		Confidence:       d.Confidence,
		Mode:             d.Mode,
		MonthlyCost:      d.MonthlyCost,
		PotentialSavings: d.PotentialSavings,
		Details:          d.Details,
		CanAutoOptimize:  d.CanAutoOptimize,
		Status:           StatusPending,
		ImpactLevel:      ImpactFromConfidence(d.Confidence),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// RecommendationFilter selects a subset of recommendations for List().
type RecommendationFilter struct {
	Statuses     []string
	ScenarioID   string
	ResourceType string
	ImpactLevel  string
	Limit        int
	Offset       int
}

// RecommendationSummary aggregates counts and savings over the full store.
type RecommendationSummary struct {
	CountByStatus       map[string]int     `json:"countByStatus"`
	CountByResourceType map[string]int     `json:"countByResourceType"`
	CountByScenario     map[string]int     `json:"countByScenario"`
	TotalPotentialSavings float64          `json:"totalPotentialSavings"`
	PendingSavings        float64          `json:"pendingSavings"`
}

// IngestResult is the {created, skipped} pair returned by Ingest.
type IngestResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}
