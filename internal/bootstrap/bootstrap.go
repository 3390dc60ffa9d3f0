// Package bootstrap wires the engine's packages together from a
// config.Config: resource store, detection engine, recommendation
// store, executor, audit log, explainer and drift driver. All three
// entry points (cmd/server, cmd/worker, cmd/cli) share this wiring so
// the dependency graph is defined once instead of three times over.
package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/cloudtrim/engine/pkg/audit"
	"github.com/cloudtrim/engine/pkg/config"
	"github.com/cloudtrim/engine/pkg/detection"
	"github.com/cloudtrim/engine/pkg/drift"
	"github.com/cloudtrim/engine/pkg/executor"
	"github.com/cloudtrim/engine/pkg/explain"
	"github.com/cloudtrim/engine/pkg/recommendation"
	"github.com/cloudtrim/engine/pkg/store"
)

// Engine bundles one account's fully-wired stack.
type Engine struct {
	Store           store.ResourceStore
	Detection       *detection.Engine
	Recommendations *recommendation.Store
	Executor        *executor.Executor
	Audit           *audit.Log
	Drift           *drift.Driver
}

// Deps are the shared external collaborators a deployed instance
// needs; a local/CLI instance can leave Dynamo and Bedrock nil as long
// as cfg.Store.Backend is "memory" and no explainer is wired.
type Deps struct {
	Dynamo   *dynamodb.Client
	Bedrock  *bedrockruntime.Client
	ModelID  string
}

// New builds a fully-wired Engine for one account from cfg.
func New(cfg *config.Config, accountID string, deps Deps) *Engine {
	rs := buildStore(cfg, deps)

	detEngine := detection.New(rs, accountID,
		detection.WithTreatMissingMetricsAsIdle(cfg.Engine.TreatMissingMetricsAsIdle))

	auditLog := audit.New(rs, accountID)
	exec := executor.New(rs, detEngine, auditLog)

	recStore := recommendation.New(rs, accountID).SetExecutor(exec)
	if deps.Bedrock != nil && deps.ModelID != "" {
		recStore.SetExplainer(explain.New(deps.Bedrock, deps.ModelID))
	}

	// Both store implementations double as the account's execution-mode
	// record keeper, so the same value wired above satisfies drift.New's
	// ExecutionModeStore seam.
	driftDriver := drift.New(rs, rs.(store.ExecutionModeStore), detEngine, exec, accountID)

	return &Engine{
		Store:           rs,
		Detection:       detEngine,
		Recommendations: recStore,
		Executor:        exec,
		Audit:           auditLog,
		Drift:           driftDriver,
	}
}

func buildStore(cfg *config.Config, deps Deps) store.ResourceStore {
	if cfg.Store.Backend == "dynamodb" && deps.Dynamo != nil {
		tableNames := make(map[store.Table]string, len(cfg.Store.TableNames))
		for k, v := range cfg.Store.TableNames {
			tableNames[store.Table(k)] = v
		}
		return store.NewDynamoStore(deps.Dynamo, tableNames)
	}
	return store.NewMemStore()
}
