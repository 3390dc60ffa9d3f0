package model

import "time"

// DailyMetric is one (resource_type, resource_id, date) cost/usage
// sample in the drift-tick's time series. Upserts on this table ignore
// duplicates for a given key so a (resource, date) pair is written
// exactly once (§4.5, §5 ordering guarantees).
type DailyMetric struct {
	ID           string    `json:"id" dynamodbav:"id"`
	AccountID    string    `json:"accountId" dynamodbav:"account_id"`
	ResourceType string    `json:"resourceType" dynamodbav:"resource_type"`
	ResourceID   string    `json:"resourceId" dynamodbav:"resource_id"`
	Date         string    `json:"date" dynamodbav:"date"` // YYYY-MM-DD
	Cost         float64   `json:"cost" dynamodbav:"cost"`
	UsageGiB     *float64  `json:"usageGib,omitempty" dynamodbav:"usage_gib,omitempty"`
	CreatedAt    time.Time `json:"createdAt" dynamodbav:"created_at"`
}

// ResourceChangeEvent is one append-only drift-engine injection record
// (§4.5.2 step 7).
type ResourceChangeEvent struct {
	ID            string    `json:"id" dynamodbav:"id"`
	AccountID     string    `json:"accountId" dynamodbav:"account_id"`
	ResourceType  string    `json:"resourceType" dynamodbav:"resource_type"`
	ResourceID    string    `json:"resourceId" dynamodbav:"resource_id"`
	ChangeSource  string    `json:"changeSource" dynamodbav:"change_source"`
	Description   string    `json:"description" dynamodbav:"description"`
	CreatedAt     time.Time `json:"createdAt" dynamodbav:"created_at"`
}

// ChangeSourceDriftEngine is the fixed change_source value every
// scenario injection stamps onto its ResourceChangeEvent.
const ChangeSourceDriftEngine = "drift_engine"

// DriftDetectionSummary is the "detection" half of one drift-tick
// response (§4.5.1).
type DriftDetectionSummary struct {
	TotalDetections    int     `json:"totalDetections"`
	AutoSafeDetections int     `json:"autoSafeDetections"`
	TotalSavings       float64 `json:"totalSavings"`
	AutoSafeSavings    float64 `json:"autoSafeSavings"`
}

// DriftExecutionItem is one auto-executed action's outcome in the
// automated execution pass (§4.5.3).
type DriftExecutionItem struct {
	ResourceID   string `json:"resourceId"`
	ResourceName string `json:"resourceName"`
	Action       string `json:"action"`
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DurationMS   int64  `json:"durationMs"`
}

// DriftExecutionSummary is the "execution" half of one drift-tick
// response.
type DriftExecutionSummary struct {
	Mode     string               `json:"mode"`
	Executed int                  `json:"executed"`
	Success  int                  `json:"success"`
	Failed   int                  `json:"failed"`
	Results  []DriftExecutionItem `json:"results"`
}

// DriftTiming reports how long the detection and overall drift-tick
// took, in milliseconds.
type DriftTiming struct {
	DetectionMS int64 `json:"detectionMs"`
	TotalMS     int64 `json:"totalMs"`
}

// DriftResult is the full drift-tick response (§4.5.1).
type DriftResult struct {
	Detection DriftDetectionSummary  `json:"detection"`
	Execution DriftExecutionSummary  `json:"execution"`
	Timing    DriftTiming            `json:"timing"`
}
