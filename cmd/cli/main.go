// cmd/cli is the operator's command-line front end, the
// recommendation-centric analogue of the teacher's HTTP-polling CLI:
// instead of calling a remote API and polling for job completion, it
// wires a local internal/bootstrap.Engine directly (against an
// in-memory store by default, or DynamoDB with -dynamodb) and drives
// detection, recommendation review and execution synchronously, with a
// spinner over the one genuinely slow step (the AWS scan).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cloudtrim/engine/internal/bootstrap"
	"github.com/cloudtrim/engine/pkg/config"
	"github.com/cloudtrim/engine/pkg/formatter"
	"github.com/cloudtrim/engine/pkg/ingest"
	"github.com/cloudtrim/engine/pkg/model"
	"github.com/cloudtrim/engine/pkg/recommendation"
)

func printUsageInfo() {
	fmt.Printf(`cloudtrim - AWS waste detection and remediation

Usage:
  cloudtrim [flags] <command> [args]

Commands:
  seed                        collect live resources from AWS into the store
  detect                       run a detection pass and print the report
  recommendations              list recommendations (use -summary for totals)
  approve <id>                  approve a pending recommendation
  reject <id>                   reject a pending recommendation (-reason)
  snooze <id>                    snooze a recommendation (-days)
  schedule <id>                  schedule a recommendation (-date RFC3339)
  execute <id>                   execute an approved/scheduled recommendation
  drift-tick                    run one drift-detection/auto-execution cycle
  audit-log                    show recent audit entries (-limit)

Flags:
`)
	flag.PrintDefaults()
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	var (
		configFile  string
		dynamoMode  bool
		accountID   string
		region      string
		noColor     bool
		pdfOutput   string
		reason      string
		days        int
		date        string
		actionedBy  string
		limit       int
		summaryOnly bool
		autoExecute bool
	)

	flag.StringVar(&configFile, "config", "", "path to configuration file")
	flag.BoolVar(&dynamoMode, "dynamodb", false, "use the DynamoDB-backed store instead of the in-memory one")
	flag.StringVar(&accountID, "account", "default", "account ID to operate on")
	flag.StringVar(&region, "region", "", "AWS region override")
	flag.BoolVar(&noColor, "no-color", false, "disable colorized output")
	flag.StringVar(&pdfOutput, "pdf", "", "write a PDF report to this path (detect only)")
	flag.StringVar(&reason, "reason", "", "reason text for reject")
	flag.IntVar(&days, "days", 7, "snooze duration in days")
	flag.StringVar(&date, "date", "", "RFC3339 date for schedule")
	flag.StringVar(&actionedBy, "by", "cli", "actor name recorded on the transition")
	flag.IntVar(&limit, "limit", 50, "row limit for audit-log")
	flag.BoolVar(&summaryOnly, "summary", false, "print only the recommendation summary")
	flag.BoolVar(&autoExecute, "auto-execute", false, "auto-execute safe drift actions")
	flag.Usage = printUsageInfo
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsageInfo()
		os.Exit(1)
	}

	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cloudtrim: failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if dynamoMode {
		cfg.Store.Backend = "dynamodb"
	}
	if region != "" {
		cfg.AWS.Region = region
	}

	ctx := context.Background()
	colorized := !noColor && isTerminal(os.Stdout)

	eng, clients := wireEngine(ctx, cfg, accountID)

	var err error
	switch args[0] {
	case "seed":
		err = runSeed(ctx, clients, eng, accountID, cfg)
	case "detect":
		err = runDetect(ctx, eng, colorized, pdfOutput)
	case "recommendations":
		err = runRecommendations(ctx, eng, colorized, summaryOnly)
	case "approve":
		err = runTransition(ctx, eng, args, recommendation.ActionApprove, recommendation.TransitionParams{ActionedBy: actionedBy})
	case "reject":
		err = runTransition(ctx, eng, args, recommendation.ActionReject, recommendation.TransitionParams{Reason: reason, ActionedBy: actionedBy})
	case "snooze":
		err = runTransition(ctx, eng, args, recommendation.ActionSnooze, recommendation.TransitionParams{Days: days, ActionedBy: actionedBy})
	case "schedule":
		params := recommendation.TransitionParams{ActionedBy: actionedBy}
		if date != "" {
			if t, perr := time.Parse(time.RFC3339, date); perr == nil {
				params.Date = t
			}
		}
		err = runTransition(ctx, eng, args, recommendation.ActionSchedule, params)
	case "execute":
		err = runTransition(ctx, eng, args, recommendation.ActionExecute, recommendation.TransitionParams{ActionedBy: actionedBy})
	case "drift-tick":
		err = runDriftTick(ctx, eng, autoExecute)
	case "audit-log":
		err = runAuditLog(ctx, eng, colorized, limit)
	default:
		fmt.Fprintf(os.Stderr, "cloudtrim: unknown command %q\n", args[0])
		printUsageInfo()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "cloudtrim: %v\n", err)
		os.Exit(1)
	}
}

// awsClients bundles the collector-facing clients the seed command
// needs; nil when AWS credentials could not be resolved, in which case
// every command except seed still works against the existing store.
type awsClients struct {
	ingest ingest.Clients
}

func wireEngine(ctx context.Context, cfg *config.Config, accountID string) (*bootstrap.Engine, *awsClients) {
	var deps bootstrap.Deps
	var clients *awsClients

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err == nil {
		if cfg.Store.Backend == "dynamodb" {
			deps.Dynamo = dynamodb.NewFromConfig(awsCfg)
			deps.Bedrock = bedrockruntime.NewFromConfig(awsCfg)
			deps.ModelID = os.Getenv("GEN_MODEL_ID")
		}
		clients = &awsClients{ingest: ingest.Clients{
			EC2:        ec2.NewFromConfig(awsCfg),
			RDS:        rds.NewFromConfig(awsCfg),
			S3:         s3.NewFromConfig(awsCfg),
			CloudWatch: cloudwatch.NewFromConfig(awsCfg),
		}}
	}

	return bootstrap.New(cfg, accountID, deps), clients
}

func runSeed(ctx context.Context, clients *awsClients, eng *bootstrap.Engine, accountID string, cfg *config.Config) error {
	if clients == nil {
		return fmt.Errorf("no AWS credentials available to seed from")
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Prefix = "collecting AWS resources… "
	s.Start()
	defer s.Stop()

	n1, err := ingest.CollectInstances(ctx, clients.ingest, eng.Store, accountID, cfg.AWS.Region)
	if err != nil {
		return fmt.Errorf("collect instances: %w", err)
	}
	n2, err := ingest.CollectRDS(ctx, clients.ingest, eng.Store, accountID, cfg.AWS.Region, cfg.Scan.Limit)
	if err != nil {
		return fmt.Errorf("collect rds: %w", err)
	}
	n3, err := ingest.CollectBuckets(ctx, clients.ingest, eng.Store, accountID, cfg.AWS.Region, cfg.Scan.Limit)
	if err != nil {
		return fmt.Errorf("collect buckets: %w", err)
	}
	s.Stop()
	fmt.Printf("seeded %d instances, %d rds instances, %d buckets\n", n1, n2, n3)
	return nil
}

func runDetect(ctx context.Context, eng *bootstrap.Engine, colorized bool, pdfOutput string) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Prefix = "detecting waste… "
	s.Start()
	result, err := eng.Detection.DetectAll(ctx, true)
	s.Stop()
	if err != nil {
		return err
	}
	formatter.FormatDetectionReport(os.Stdout, result, colorized)

	ingestResult, err := eng.Recommendations.Ingest(ctx, result.Detections)
	if err != nil {
		return fmt.Errorf("ingest recommendations: %w", err)
	}
	fmt.Printf("\nrecommendations: %d created, %d skipped (already tracked)\n", ingestResult.Created, ingestResult.Skipped)

	if pdfOutput != "" {
		recs, err := eng.Recommendations.List(ctx, model.RecommendationFilter{})
		if err != nil {
			return fmt.Errorf("list recommendations for pdf: %w", err)
		}
		summary, err := eng.Recommendations.Summary(ctx)
		if err != nil {
			return fmt.Errorf("summarize recommendations for pdf: %w", err)
		}
		if err := formatter.ExportRecommendationsToPDF(recs, summary, pdfOutput); err != nil {
			return fmt.Errorf("export pdf: %w", err)
		}
		fmt.Printf("wrote PDF report to %s\n", pdfOutput)
	}
	return nil
}

func runRecommendations(ctx context.Context, eng *bootstrap.Engine, colorized, summaryOnly bool) error {
	summary, err := eng.Recommendations.Summary(ctx)
	if err != nil {
		return err
	}
	if summaryOnly {
		fmt.Printf("total potential savings: $%.2f/mo\n", summary.TotalPotentialSavings)
		fmt.Printf("pending savings:         $%.2f/mo\n", summary.PendingSavings)
		return nil
	}
	recs, err := eng.Recommendations.List(ctx, model.RecommendationFilter{})
	if err != nil {
		return err
	}
	formatter.FormatRecommendationReport(os.Stdout, recs, summary, colorized)
	return nil
}

func runTransition(ctx context.Context, eng *bootstrap.Engine, args []string, action string, params recommendation.TransitionParams) error {
	if len(args) < 2 {
		return fmt.Errorf("%s requires a recommendation id", action)
	}
	rec, err := eng.Recommendations.Transition(ctx, args[1], action, params)
	if err != nil {
		return err
	}
	fmt.Printf("%s -> %s (%s)\n", rec.ID, rec.Status, rec.Title)
	return nil
}

func runDriftTick(ctx context.Context, eng *bootstrap.Engine, autoExecute bool) error {
	result, err := eng.Drift.Tick(ctx, autoExecute)
	if err != nil {
		return err
	}
	fmt.Printf("drifted: %d (auto-safe: %d)\n", result.Detection.TotalDetections, result.Detection.AutoSafeDetections)
	fmt.Printf("executed: %d succeeded, %d failed\n", result.Execution.Success, result.Execution.Failed)
	return nil
}

func runAuditLog(ctx context.Context, eng *bootstrap.Engine, colorized bool, limit int) error {
	entries, err := eng.Audit.Recent(ctx, limit)
	if err != nil {
		return err
	}
	formatter.FormatAuditLog(os.Stdout, entries, colorized)
	return nil
}
