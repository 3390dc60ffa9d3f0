// Package jobs tracks async bulk operations (§4.10): a job record in
// DynamoDB plus one SQS message per work item, generalized from the
// teacher's EC2-only CreateJob/QueueWorkItem/UpdateJobProgress/GetJob
// from "analyze these instances" to "detect, explain or execute this
// batch of any resource kind asynchronously".
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"

	"github.com/cloudtrim/engine/pkg/model"
)

// jobTTL mirrors the teacher's 7-day job record expiration.
const jobTTL = 7 * 24 * time.Hour

// Tracker creates and updates job records and fans work items out to SQS.
type Tracker struct {
	dynamo    *dynamodb.Client
	sqs       *sqs.Client
	jobsTable string
	queueURL  string
	now       func() time.Time
}

// New builds a Tracker. jobsTable and queueURL default to the
// JOBS_TABLE and QUEUE_URL environment variables when empty, matching
// the teacher's os.Getenv lookups.
func New(dynamo *dynamodb.Client, sqsClient *sqs.Client, jobsTable, queueURL string) *Tracker {
	if jobsTable == "" {
		jobsTable = os.Getenv("JOBS_TABLE")
	}
	if queueURL == "" {
		queueURL = os.Getenv("QUEUE_URL")
	}
	return &Tracker{dynamo: dynamo, sqs: sqsClient, jobsTable: jobsTable, queueURL: queueURL, now: time.Now}
}

// WithClock overrides the tracker's notion of "now", for deterministic tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// CreateJob inserts a new job record and returns its id.
func (t *Tracker) CreateJob(ctx context.Context, accountID string, kind model.JobKind, itemCount int) (string, error) {
	jobID := uuid.New().String()
	now := t.now().Unix()

	job := model.Job{
		JobID:          jobID,
		AccountID:      accountID,
		Kind:           kind,
		Status:         model.JobStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		TotalItems:     itemCount,
		ExpirationTime: now + int64(jobTTL.Seconds()),
		Results:        make([]model.JobResult, 0),
	}

	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return "", fmt.Errorf("jobs: marshal job: %w", err)
	}
	if _, err := t.dynamo.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.jobsTable),
		Item:      item,
	}); err != nil {
		return "", fmt.Errorf("jobs: save job: %w", err)
	}

	log.Printf("jobs: created %s job %s with %d items", kind, jobID, itemCount)
	return jobID, nil
}

// QueueWorkItem enqueues one unit of work onto SQS for the worker to drain.
func (t *Tracker) QueueWorkItem(ctx context.Context, jobID string, index int, item model.WorkItem) error {
	item.JobID = jobID
	item.ItemIndex = index

	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("jobs: marshal work item: %w", err)
	}
	if _, err := t.sqs.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
	}); err != nil {
		return fmt.Errorf("jobs: queue work item: %w", err)
	}
	return nil
}

// UpdateJobStatus transitions a job's overall status, stamping
// completed_at when it reaches a terminal state.
func (t *Tracker) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	now := t.now().Unix()

	values := map[string]types.AttributeValue{
		":status":     &types.AttributeValueMemberS{Value: string(status)},
		":updated_at": &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
	}
	expr := "SET #status = :status, updated_at = :updated_at"
	if status == model.JobStatusCompleted || status == model.JobStatusFailed {
		values[":completed_at"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)}
		expr += ", completed_at = :completed_at"
	}

	_, err := t.dynamo.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.jobsTable),
		Key:                       map[string]types.AttributeValue{"job_id": &types.AttributeValueMemberS{Value: jobID}},
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
		UpdateExpression:          aws.String(expr),
	})
	if err != nil {
		return fmt.Errorf("jobs: update status: %w", err)
	}
	return nil
}

// UpdateJobProgress records one work item's outcome and increments the
// completed/failed counters. A worker calls this once per dequeued
// WorkItem, independent of UpdateJobStatus which only flips the overall
// job state.
func (t *Tracker) UpdateJobProgress(ctx context.Context, jobID string, result model.JobResult) error {
	now := t.now().Unix()

	counterField := "completed_items"
	if !result.Success {
		counterField = "failed_items"
	}

	resultAV, err := attributevalue.Marshal(result)
	if err != nil {
		return fmt.Errorf("jobs: marshal result: %w", err)
	}

	expr := fmt.Sprintf("SET updated_at = :updated_at, %s = %s + :inc, results = list_append(if_not_exists(results, :empty_list), :result)", counterField, counterField)
	values := map[string]types.AttributeValue{
		":updated_at":  &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
		":inc":         &types.AttributeValueMemberN{Value: "1"},
		":empty_list":  &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
		":result":      &types.AttributeValueMemberL{Value: []types.AttributeValue{resultAV}},
	}

	_, err = t.dynamo.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.jobsTable),
		Key:                       map[string]types.AttributeValue{"job_id": &types.AttributeValueMemberS{Value: jobID}},
		ExpressionAttributeValues: values,
		UpdateExpression:          aws.String(expr),
	})
	if err != nil {
		return fmt.Errorf("jobs: update progress: %w", err)
	}
	return nil
}

// GetJob retrieves a job record by id.
func (t *Tracker) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	resp, err := t.dynamo.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.jobsTable),
		Key:       map[string]types.AttributeValue{"job_id": &types.AttributeValueMemberS{Value: jobID}},
	})
	if err != nil {
		return nil, fmt.Errorf("jobs: get job: %w", err)
	}
	if resp.Item == nil {
		return nil, fmt.Errorf("jobs: job %s not found", jobID)
	}

	var job model.Job
	if err := attributevalue.UnmarshalMap(resp.Item, &job); err != nil {
		return nil, fmt.Errorf("jobs: unmarshal job: %w", err)
	}
	return &job, nil
}

// IsDone reports whether a job has completed every item, one way or the other.
func IsDone(j model.Job) bool {
	return j.CompletedItems+j.FailedItems >= j.TotalItems
}
