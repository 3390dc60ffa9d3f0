package model

// JobStatus is the lifecycle state of an async bulk job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobKind names what a job's work items actually do once dequeued.
type JobKind string

const (
	JobKindDetect  JobKind = "detect"
	JobKindExplain JobKind = "explain"
	JobKindExecute JobKind = "execute"
)

// Job is a durable record of one async bulk operation (§4.10), the
// generalized form of the teacher's EC2-only JobInfo: instead of
// analyzing a fixed resource shape, a job fans out over any of the
// eleven resource kinds via JobKind + WorkItem.
type Job struct {
	JobID          string       `json:"jobId" dynamodbav:"job_id"`
	AccountID      string       `json:"accountId" dynamodbav:"account_id"`
	Kind           JobKind      `json:"kind" dynamodbav:"kind"`
	Status         JobStatus    `json:"status" dynamodbav:"status"`
	CreatedAt      int64        `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt      int64        `json:"updatedAt" dynamodbav:"updated_at"`
	CompletedAt    int64        `json:"completedAt,omitempty" dynamodbav:"completed_at,omitempty"`
	TotalItems     int          `json:"totalItems" dynamodbav:"total_items"`
	CompletedItems int          `json:"completedItems" dynamodbav:"completed_items"`
	FailedItems    int          `json:"failedItems" dynamodbav:"failed_items"`
	Results        []JobResult  `json:"results,omitempty" dynamodbav:"results,omitempty"`
	ExpirationTime int64        `json:"expirationTime" dynamodbav:"expiration_time"`
}

// JobResult is one work item's outcome, appended to the job record as
// items complete.
type JobResult struct {
	ResourceType string `json:"resourceType" dynamodbav:"resource_type"`
	ResourceID   string `json:"resourceId" dynamodbav:"resource_id"`
	Success      bool   `json:"success" dynamodbav:"success"`
	Message      string `json:"message,omitempty" dynamodbav:"message,omitempty"`
}

// WorkItem is one unit of fan-out work queued onto SQS by a job.
type WorkItem struct {
	JobID        string  `json:"jobId"`
	ItemIndex    int     `json:"itemIndex"`
	Kind         JobKind `json:"kind"`
	AccountID    string  `json:"accountId"`
	ResourceType string  `json:"resourceType"`
	ResourceID   string  `json:"resourceId"`
	// ActionParams carries the execute-kind payload; zero value for
	// detect/explain kinds.
	ActionParams ActionParams `json:"actionParams,omitempty"`
}
