// cmd/step-runner/main.go
//
// Debug harness that executes one pipeline step against a plan document,
// pulling in unsatisfied dependencies when asked to.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/videoforge/videoforge/internal/cache"
	"github.com/videoforge/videoforge/internal/config"
	"github.com/videoforge/videoforge/internal/logging"
	"github.com/videoforge/videoforge/internal/plan"
	"github.com/videoforge/videoforge/internal/services"
	"github.com/videoforge/videoforge/internal/step"
	"github.com/videoforge/videoforge/internal/steps"
	"github.com/videoforge/videoforge/internal/workflow"
)

func main() {
	stepID := flag.String("step", "", "step identifier to execute (e.g. narration)")
	planFile := flag.String("plan", "", "path to the plan document")
	projectDir := flag.String("project", "", "path to the project directory (defaults to cwd)")
	runDir := flag.String("run-dir", "", "existing run directory to reuse (defaults to a new one)")
	flag.Parse()

	if strings.TrimSpace(*stepID) == "" {
		die("--step is required")
	}
	if strings.TrimSpace(*planFile) == "" {
		die("--plan is required")
	}

	project := *projectDir
	if project == "" {
		var err error
		project, err = os.Getwd()
		if err != nil {
			die("determine working directory: %v", err)
		}
	}
	project, err := filepath.Abs(project)
	if err != nil {
		die("resolve project dir: %v", err)
	}
	planPath, err := filepath.Abs(*planFile)
	if err != nil {
		die("resolve plan path: %v", err)
	}

	if err := config.Init(project); err != nil {
		die("init project: %v", err)
	}
	cfg, err := config.New(project)
	if err != nil {
		die("load config: %v", err)
	}
	doc, err := plan.Load(planPath)
	if err != nil {
		die("load plan: %v", err)
	}
	if err := doc.Validate(); err != nil {
		die("validate plan: %v", err)
	}

	runID := workflow.NewRunID()
	dir := *runDir
	if dir == "" {
		dir = filepath.Join(cfg.OutputDir(), runID)
	}

	store, err := cache.Open(cfg.CacheDir(), cfg.CacheCapacityBytes(),
		cache.WithTTL(cache.CategoryAPIResponses, cfg.APIResponseTTL()),
		cache.WithTTL(cache.CategoryProcessedImages, cfg.ProcessedImageTTL()),
		cache.WithTTL(cache.CategoryTempFiles, cfg.TempFileTTL()),
	)
	if err != nil {
		die("open cache: %v", err)
	}
	log, err := logging.New(dir)
	if err != nil {
		die("open log: %v", err)
	}
	defer log.Close()
	log.WithEcho(os.Stderr)

	env, err := step.NewEnvironment(runID, dir, cfg, store, log, services.NewClients(cfg, store))
	if err != nil {
		die("prepare run dir: %v", err)
	}
	registry := step.NewRegistry()
	steps.RegisterBuiltins(registry)
	executor, err := workflow.NewExecutor(registry, workflow.NewRepository(dir),
		workflow.WithRetryPolicy(cfg.Project.Retry.MaxAttempts, cfg.RetryBaseDelay()))
	if err != nil {
		die("build executor: %v", err)
	}

	def, err := workflow.FromPlan(doc)
	if err != nil {
		die("resolve pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := executor.RunStep(ctx, workflow.RunRequest{
		Definition: def,
		Doc:        doc,
		PlanPath:   planPath,
		Env:        env,
		RunID:      runID,
	}, *stepID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "step-runner: %v\n", err)
	}
	if res, ok := state.StepResult(*stepID); ok {
		fmt.Printf("step %s: %s\n", *stepID, res.Status)
		if res.Message != "" {
			fmt.Println(res.Message)
		}
		for _, f := range res.OutputFiles {
			fmt.Printf("  %s\n", f)
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
