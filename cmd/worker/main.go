// cmd/worker drains the SQS queue pkg/jobs fans work items onto,
// executing detect/explain/execute kinds against the right account's
// engine and reporting progress back onto the job record. An explain
// item only checks that its recommendation exists; it does not generate
// or store an explanation. The same
// binary also answers an EventBridge-scheduled drift tick, selected by
// the WORKER_MODE environment variable, mirroring the teacher's single
// EC2-analysis worker generalized to all resource kinds and job kinds.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/cloudtrim/engine/internal/bootstrap"
	"github.com/cloudtrim/engine/pkg/config"
	"github.com/cloudtrim/engine/pkg/jobs"
	"github.com/cloudtrim/engine/pkg/model"
)

var (
	cfg     *config.Config
	deps    bootstrap.Deps
	tracker *jobs.Tracker
	// engines caches one wired Engine per account for the life of the
	// Lambda execution environment, same rationale as cmd/server's registry.
	engines = map[string]*bootstrap.Engine{}
)

func engineFor(accountID string) *bootstrap.Engine {
	if e, ok := engines[accountID]; ok {
		return e
	}
	e := bootstrap.New(cfg, accountID, deps)
	engines[accountID] = e
	return e
}

// Handler processes one batch of queued work items.
func Handler(ctx context.Context, sqsEvent events.SQSEvent) error {
	for _, record := range sqsEvent.Records {
		var item model.WorkItem
		if err := json.Unmarshal([]byte(record.Body), &item); err != nil {
			log.Printf("worker: failed to parse work item from message %s: %v", record.MessageId, err)
			continue
		}
		if err := processWorkItem(ctx, item); err != nil {
			log.Printf("worker: failed to process item %d of job %s: %v", item.ItemIndex, item.JobID, err)
		}
	}
	return nil
}

func processWorkItem(ctx context.Context, item model.WorkItem) error {
	eng := engineFor(item.AccountID)
	result := model.JobResult{ResourceType: item.ResourceType, ResourceID: item.ResourceID, Success: true}

	switch item.Kind {
	case model.JobKindDetect:
		if _, err := eng.Detection.DetectAll(ctx, true); err != nil {
			result.Success = false
			result.Message = err.Error()
		}
	case model.JobKindExplain:
		if _, found, err := eng.Recommendations.Get(ctx, item.ResourceID); err != nil || !found {
			result.Success = false
			result.Message = "recommendation not found"
		}
	case model.JobKindExecute:
		actionResult, err := eng.Executor.Execute(ctx, item.AccountID, item.ActionParams)
		if err != nil {
			result.Success = false
			result.Message = err.Error()
		} else if !actionResult.Success {
			result.Success = false
			result.Message = actionResult.Message
		}
	default:
		result.Success = false
		result.Message = fmt.Sprintf("unknown job kind: %s", item.Kind)
	}

	if err := tracker.UpdateJobProgress(ctx, item.JobID, result); err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}

	job, err := tracker.GetJob(ctx, item.JobID)
	if err != nil {
		return fmt.Errorf("fetch job after progress update: %w", err)
	}
	if jobs.IsDone(*job) {
		status := model.JobStatusCompleted
		if job.FailedItems > 0 && job.FailedItems == job.TotalItems {
			status = model.JobStatusFailed
		}
		if err := tracker.UpdateJobStatus(ctx, item.JobID, status); err != nil {
			return fmt.Errorf("update job status: %w", err)
		}
	}
	return nil
}

// DriftTickHandler is invoked on an EventBridge schedule; it runs one
// drift tick for every configured account.
func DriftTickHandler(ctx context.Context, _ events.CloudWatchEvent) error {
	for _, accountID := range accountIDs() {
		eng := engineFor(accountID)
		result, err := eng.Drift.Tick(ctx, cfg.Engine.DriftAutoExecuteDefault)
		if err != nil {
			log.Printf("worker: drift tick failed for account %s: %v", accountID, err)
			continue
		}
		log.Printf("worker: drift tick for account %s: %d drifted, %d auto-executed (%d succeeded, %d failed)",
			accountID, result.Detection.TotalDetections, result.Execution.Executed, result.Execution.Success, result.Execution.Failed)
	}
	return nil
}

// accountIDs enumerates the accounts a scheduled drift tick should
// cover. A deployed, DynamoDB-backed instance has no cheap way to list
// every tenant account, so it is configured explicitly via ACCOUNT_IDS.
func accountIDs() []string {
	raw := os.Getenv("ACCOUNT_IDS")
	if raw == "" {
		return []string{"default"}
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []string{"default"}
	}
	return ids
}

func main() {
	ctx := context.Background()
	cfg = config.Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if loaded, err := config.Load(path); err == nil {
			cfg = loaded
		} else {
			log.Printf("worker: failed to load config %s, using defaults: %v", path, err)
		}
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("worker: unable to load AWS config: %v", err)
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	sqsClient := sqs.NewFromConfig(awsCfg)

	deps = bootstrap.Deps{
		Dynamo:  dynamoClient,
		Bedrock: bedrockruntime.NewFromConfig(awsCfg),
		ModelID: os.Getenv("GEN_MODEL_ID"),
	}
	tracker = jobs.New(dynamoClient, sqsClient, os.Getenv("JOBS_TABLE"), os.Getenv("QUEUE_URL"))

	switch os.Getenv("WORKER_MODE") {
	case "drift-tick":
		lambda.Start(DriftTickHandler)
	default:
		lambda.Start(Handler)
	}
}
