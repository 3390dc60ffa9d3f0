// cmd/server is the API Gateway v2 Lambda handler implementing the
// HTTP surface (§6.3): detect-waste, recommendations CRUD, execute-
// action, drift-tick, execution-mode and audit-log, dispatching to the
// wired packages over the response envelope
// {success, data?, error?, created?, skipped?, executionResult?}.
// Grounded in the teacher's cmd/main.go API Gateway v2 handler shape.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/cloudtrim/engine/internal/bootstrap"
	"github.com/cloudtrim/engine/pkg/config"
	"github.com/cloudtrim/engine/pkg/model"
	"github.com/cloudtrim/engine/pkg/recommendation"
	"github.com/cloudtrim/engine/pkg/store"
)

const defaultAccountID = "default"

// envelope is the §6.3 response shape.
type envelope struct {
	Success         bool   `json:"success"`
	Data            any    `json:"data,omitempty"`
	Error           string `json:"error,omitempty"`
	Created         int    `json:"created,omitempty"`
	Skipped         int    `json:"skipped,omitempty"`
	ExecutionResult any    `json:"executionResult,omitempty"`
}

// registry keeps one wired Engine per account alive across warm Lambda
// invocations, so the detection scan cache actually gets reused instead
// of rebuilding on every request.
type registry struct {
	mu      sync.Mutex
	engines map[string]*bootstrap.Engine
	cfg     *config.Config
	deps    bootstrap.Deps
}

func (r *registry) get(accountID string) *bootstrap.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[accountID]; ok {
		return e
	}
	e := bootstrap.New(r.cfg, accountID, r.deps)
	r.engines[accountID] = e
	return e
}

var reg *registry

func accountIDFromRequest(req events.APIGatewayV2HTTPRequest) string {
	if v := req.Headers["x-account-id"]; v != "" {
		return v
	}
	if v := req.QueryStringParameters["accountId"]; v != "" {
		return v
	}
	return defaultAccountID
}

// Handler routes one API Gateway v2 request to the matching engine operation.
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	accountID := accountIDFromRequest(req)
	eng := reg.get(accountID)

	path := req.RequestContext.HTTP.Path
	method := req.RequestContext.HTTP.Method

	var resp envelope
	var status int

	switch {
	case path == "/detect-waste" && method == http.MethodPost:
		resp, status = handleDetectWaste(ctx, eng, req.Body)
	case path == "/recommendations" && method == http.MethodGet:
		resp, status = handleListRecommendations(ctx, eng, req.QueryStringParameters)
	case path == "/recommendations" && method == http.MethodPost:
		resp, status = handleGenerateRecommendations(ctx, eng, req.Body)
	case path == "/recommendations" && method == http.MethodPatch:
		resp, status = handlePatchRecommendation(ctx, eng, req.Body)
	case path == "/recommendations" && method == http.MethodDelete:
		resp, status = handleDeleteRecommendation(ctx, eng, req.QueryStringParameters)
	case path == "/execute-action" && method == http.MethodPost:
		resp, status = handleExecuteAction(ctx, eng, accountID, req.Body)
	case path == "/drift-tick" && method == http.MethodPost:
		resp, status = handleDriftTick(ctx, eng, req.Body)
	case path == "/execution-mode" && method == http.MethodGet:
		resp, status = handleGetExecutionMode(ctx, eng, accountID)
	case path == "/execution-mode" && method == http.MethodPut:
		resp, status = handleSetExecutionMode(ctx, eng, accountID, req.Body)
	case path == "/audit-log" && method == http.MethodGet:
		resp, status = handleAuditLog(ctx, eng, req.QueryStringParameters)
	default:
		resp, status = envelope{Success: false, Error: "unknown route: " + method + " " + path}, http.StatusNotFound
	}

	body, err := json.Marshal(resp)
	if err != nil {
		log.Printf("server: failed to marshal response: %v", err)
		return events.APIGatewayV2HTTPResponse{StatusCode: 500, Body: `{"success":false,"error":"internal error"}`}, nil
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

func handleDetectWaste(ctx context.Context, eng *bootstrap.Engine, body string) (envelope, int) {
	var req struct {
		Refresh bool `json:"refresh"`
	}
	if body != "" {
		_ = json.Unmarshal([]byte(body), &req)
	}
	result, err := eng.Detection.DetectAll(ctx, req.Refresh)
	if err != nil {
		return errorEnvelope(err)
	}
	return envelope{Success: true, Data: result}, http.StatusOK
}

func handleListRecommendations(ctx context.Context, eng *bootstrap.Engine, qs map[string]string) (envelope, int) {
	if qs["summary"] == "true" {
		summary, err := eng.Recommendations.Summary(ctx)
		if err != nil {
			return errorEnvelope(err)
		}
		return envelope{Success: true, Data: summary}, http.StatusOK
	}

	filter := model.RecommendationFilter{
		ScenarioID:   qs["scenarioId"],
		ResourceType: qs["resourceType"],
		ImpactLevel:  qs["impactLevel"],
	}
	if qs["status"] != "" {
		filter.Statuses = []string{qs["status"]}
	}
	if n, err := strconv.Atoi(qs["limit"]); err == nil {
		filter.Limit = n
	}
	if n, err := strconv.Atoi(qs["offset"]); err == nil {
		filter.Offset = n
	}

	recs, err := eng.Recommendations.List(ctx, filter)
	if err != nil {
		return errorEnvelope(err)
	}
	return envelope{Success: true, Data: recs}, http.StatusOK
}

func handleGenerateRecommendations(ctx context.Context, eng *bootstrap.Engine, body string) (envelope, int) {
	var req struct {
		Generate bool `json:"generate"`
	}
	if err := json.Unmarshal([]byte(body), &req); err != nil || !req.Generate {
		return envelope{Success: false, Error: "expected {\"generate\": true}"}, http.StatusBadRequest
	}

	scan, err := eng.Detection.DetectAll(ctx, false)
	if err != nil {
		return errorEnvelope(err)
	}
	result, err := eng.Recommendations.Ingest(ctx, scan.Detections)
	if err != nil {
		return errorEnvelope(err)
	}
	return envelope{Success: true, Created: result.Created, Skipped: result.Skipped}, http.StatusOK
}

func handlePatchRecommendation(ctx context.Context, eng *bootstrap.Engine, body string) (envelope, int) {
	var req struct {
		ID         string `json:"id"`
		Action     string `json:"action"`
		Reason     string `json:"reason"`
		Days       int    `json:"days"`
		Date       string `json:"date"`
		ActionedBy string `json:"actionedBy"`
	}
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return envelope{Success: false, Error: "invalid JSON payload"}, http.StatusBadRequest
	}

	params := recommendation.TransitionParams{Reason: req.Reason, Days: req.Days, ActionedBy: req.ActionedBy}
	if req.Date != "" {
		if t, err := time.Parse(time.RFC3339, req.Date); err == nil {
			params.Date = t
		}
	}

	rec, err := eng.Recommendations.Transition(ctx, req.ID, req.Action, params)
	if err != nil {
		return errorEnvelope(err)
	}
	return envelope{Success: true, Data: rec}, http.StatusOK
}

func handleDeleteRecommendation(ctx context.Context, eng *bootstrap.Engine, qs map[string]string) (envelope, int) {
	id := qs["id"]
	if id == "" {
		return envelope{Success: false, Error: "missing id query parameter"}, http.StatusBadRequest
	}
	if err := eng.Recommendations.Delete(ctx, id); err != nil {
		return errorEnvelope(err)
	}
	return envelope{Success: true}, http.StatusOK
}

func handleExecuteAction(ctx context.Context, eng *bootstrap.Engine, accountID, body string) (envelope, int) {
	var params model.ActionParams
	if err := json.Unmarshal([]byte(body), &params); err != nil {
		return envelope{Success: false, Error: "invalid JSON payload"}, http.StatusBadRequest
	}
	result, err := eng.Executor.Execute(ctx, accountID, params)
	if err != nil {
		return errorEnvelope(err)
	}
	return envelope{Success: result.Success, ExecutionResult: result}, http.StatusOK
}

func handleDriftTick(ctx context.Context, eng *bootstrap.Engine, body string) (envelope, int) {
	var req struct {
		AutoExecute bool `json:"autoExecute"`
	}
	if body != "" {
		_ = json.Unmarshal([]byte(body), &req)
	}
	result, err := eng.Drift.Tick(ctx, req.AutoExecute)
	if err != nil {
		return errorEnvelope(err)
	}
	return envelope{Success: true, Data: result}, http.StatusOK
}

// Both store.ResourceStore implementations (MemStore, DynamoStore) also
// satisfy store.ExecutionModeStore, so this assertion never fails in
// practice; it exists only to narrow eng.Store to the seam these two
// handlers need.
func handleGetExecutionMode(ctx context.Context, eng *bootstrap.Engine, accountID string) (envelope, int) {
	mode, err := eng.Store.(store.ExecutionModeStore).GetMode(ctx, accountID)
	if err != nil {
		return errorEnvelope(err)
	}
	return envelope{Success: true, Data: map[string]string{"mode": mode}}, http.StatusOK
}

func handleSetExecutionMode(ctx context.Context, eng *bootstrap.Engine, accountID, body string) (envelope, int) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return envelope{Success: false, Error: "invalid JSON payload"}, http.StatusBadRequest
	}
	if req.Mode != model.ExecutionModeManual && req.Mode != model.ExecutionModeAutomated {
		return envelope{Success: false, Error: "mode must be manual or automated"}, http.StatusBadRequest
	}
	if err := eng.Store.(store.ExecutionModeStore).SetMode(ctx, accountID, req.Mode); err != nil {
		return errorEnvelope(err)
	}
	return envelope{Success: true}, http.StatusOK
}

func handleAuditLog(ctx context.Context, eng *bootstrap.Engine, qs map[string]string) (envelope, int) {
	limit := 0
	if n, err := strconv.Atoi(qs["limit"]); err == nil {
		limit = n
	}
	entries, err := eng.Audit.Recent(ctx, limit)
	if err != nil {
		return errorEnvelope(err)
	}
	return envelope{Success: true, Data: entries}, http.StatusOK
}

// errorEnvelope maps the error taxonomy (§7) to the matching HTTP status.
func errorEnvelope(err error) (envelope, int) {
	var modelErr *model.Error
	status := http.StatusInternalServerError
	if errors.As(err, &modelErr) {
		switch modelErr.Code {
		case model.CodeResourceNotFound:
			status = http.StatusNotFound
		case model.CodeInvalidStateTransition, model.CodeMissingRecommendation, model.CodeUnknownAction, model.CodeUnknownScenario:
			status = http.StatusBadRequest
		case model.CodeStoreError:
			status = http.StatusInternalServerError
		}
	}
	return envelope{Success: false, Error: err.Error()}, status
}

func main() {
	ctx := context.Background()
	cfg := config.Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if loaded, err := config.Load(path); err == nil {
			cfg = loaded
		} else {
			log.Printf("server: failed to load config %s, using defaults: %v", path, err)
		}
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}

	var deps bootstrap.Deps
	if cfg.Store.Backend == "dynamodb" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatalf("server: unable to load AWS config: %v", err)
		}
		deps.Dynamo = dynamodb.NewFromConfig(awsCfg)
		deps.Bedrock = bedrockruntime.NewFromConfig(awsCfg)
		deps.ModelID = os.Getenv("GEN_MODEL_ID")
	}

	reg = &registry{engines: make(map[string]*bootstrap.Engine), cfg: cfg, deps: deps}

	lambda.Start(Handler)
}
