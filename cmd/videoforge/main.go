// cmd/videoforge/main.go
//
// Entry point for the videoforge CLI. Subcommands:
//
//	run <plan.json>       execute the pipeline against a plan document
//	resume <run dir>      continue an interrupted run
//	status <run dir>      print (or --watch) the run record
//	validate <plan.json>  check a plan document without running anything
//	cache stats|clean     inspect or sweep the response cache
//	init                  write the default project config

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/videoforge/videoforge/internal/cache"
	"github.com/videoforge/videoforge/internal/config"
	"github.com/videoforge/videoforge/internal/logging"
	"github.com/videoforge/videoforge/internal/plan"
	"github.com/videoforge/videoforge/internal/services"
	"github.com/videoforge/videoforge/internal/step"
	"github.com/videoforge/videoforge/internal/steps"
	"github.com/videoforge/videoforge/internal/tui"
	"github.com/videoforge/videoforge/internal/workflow"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(os.Args[2:])
	case "resume":
		err = resumeCmd(os.Args[2:])
	case "status":
		err = statusCmd(os.Args[2:])
	case "validate":
		err = validateCmd(os.Args[2:])
	case "cache":
		err = cacheCmd(os.Args[2:])
	case "init":
		err = initCmd(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "videoforge: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "videoforge: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: videoforge <command> [flags]

commands:
  run <plan.json>       execute the pipeline against a plan document
  resume <run dir>      continue an interrupted run
  status <run dir>      print the run record (--watch for a live view)
  validate <plan.json>  check a plan document
  cache stats           print cache usage
  cache clean           sweep expired entries and enforce capacity
  init                  write the default project config`)
}

// runtime bundles everything a run needs once the project is loaded.
type runtime struct {
	cfg   *config.Config
	store *cache.Store
	env   *step.Environment
	repo  *workflow.Repository
	exec  *workflow.Executor
	log   *logging.Logger
}

func buildRuntime(projectDir, runID, runDir string) (*runtime, error) {
	if err := config.Init(projectDir); err != nil {
		return nil, err
	}
	cfg, err := config.New(projectDir)
	if err != nil {
		return nil, err
	}
	store, err := openCache(cfg)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(runDir)
	if err != nil {
		return nil, err
	}
	log.WithEcho(os.Stderr)
	env, err := step.NewEnvironment(runID, runDir, cfg, store, log, services.NewClients(cfg, store))
	if err != nil {
		return nil, err
	}
	registry := step.NewRegistry()
	steps.RegisterBuiltins(registry)
	repo := workflow.NewRepository(runDir)
	exec, err := workflow.NewExecutor(registry, repo,
		workflow.WithRetryPolicy(cfg.Project.Retry.MaxAttempts, cfg.RetryBaseDelay()))
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, store: store, env: env, repo: repo, exec: exec, log: log}, nil
}

func openCache(cfg *config.Config) (*cache.Store, error) {
	return cache.Open(cfg.CacheDir(), cfg.CacheCapacityBytes(),
		cache.WithTTL(cache.CategoryAPIResponses, cfg.APIResponseTTL()),
		cache.WithTTL(cache.CategoryProcessedImages, cfg.ProcessedImageTTL()),
		cache.WithTTL(cache.CategoryTempFiles, cfg.TempFileTTL()),
	)
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	projectDir := fs.String("project", "", "project directory (defaults to cwd)")
	stepID := fs.String("step", "", "run only this step (plus unsatisfied dependencies)")
	defFile := fs.String("workflow", "", "YAML pipeline definition override")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("run: expected exactly one plan file")
	}
	planPath, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}
	project, err := resolveProject(*projectDir)
	if err != nil {
		return err
	}

	doc, err := plan.Load(planPath)
	if err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	runID := workflow.NewRunID()
	cfg, err := config.New(project)
	if err != nil {
		return err
	}
	runDir := filepath.Join(cfg.OutputDir(), runID)
	rt, err := buildRuntime(project, runID, runDir)
	if err != nil {
		return err
	}
	defer rt.log.Close()

	def, err := pipelineDefinition(doc, *defFile)
	if err != nil {
		return err
	}

	req := workflow.RunRequest{
		Definition: def,
		Doc:        doc,
		PlanPath:   planPath,
		Env:        rt.env,
		RunID:      runID,
	}
	if *stepID != "" {
		req.Targets = []string{*stepID}
	}

	fmt.Printf("run %s -> %s\n", runID, runDir)
	state, err := executeRun(rt, req)
	printRunSummary(state)
	return err
}

func resumeCmd(args []string) error {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	projectDir := fs.String("project", "", "project directory (defaults to cwd)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("resume: expected exactly one run directory")
	}
	runDir, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}
	project, err := resolveProject(*projectDir)
	if err != nil {
		return err
	}

	prev, err := workflow.NewRepository(runDir).Load()
	if err != nil {
		return err
	}
	if prev.PlanPath == "" {
		return fmt.Errorf("resume: run record in %s carries no plan path", runDir)
	}
	doc, err := plan.Load(prev.PlanPath)
	if err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	rt, err := buildRuntime(project, prev.RunID, runDir)
	if err != nil {
		return err
	}
	defer rt.log.Close()

	def, err := pipelineDefinition(doc, "")
	if err != nil {
		return err
	}

	fmt.Printf("resuming run %s\n", prev.RunID)
	state, err := executeRun(rt, workflow.RunRequest{
		Definition: def,
		Doc:        doc,
		PlanPath:   prev.PlanPath,
		Env:        rt.env,
		RunID:      prev.RunID,
	})
	printRunSummary(state)
	return err
}

func statusCmd(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	watch := fs.Bool("watch", false, "keep the view open and refresh it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("status: expected exactly one run directory")
	}
	runDir, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}
	repo := workflow.NewRepository(runDir)
	if *watch {
		return tui.Watch(repo)
	}
	state, err := repo.Load()
	if err != nil {
		return err
	}
	printRunSummary(state)
	return nil
}

func validateCmd(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("validate: expected exactly one plan file")
	}
	doc, err := plan.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	if _, err := workflow.FromPlan(doc); err != nil {
		return err
	}
	fmt.Println("plan is valid")
	return nil
}

func cacheCmd(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("cache: expected stats or clean")
	}
	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	projectDir := fs.String("project", "", "project directory (defaults to cwd)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	project, err := resolveProject(*projectDir)
	if err != nil {
		return err
	}
	if err := config.Init(project); err != nil {
		return err
	}
	cfg, err := config.New(project)
	if err != nil {
		return err
	}
	store, err := openCache(cfg)
	if err != nil {
		return err
	}
	switch args[0] {
	case "stats":
		stats := store.Stats()
		fmt.Printf("entries: %d\nsize: %.2f MiB of %.2f GiB\n",
			stats.Entries,
			float64(stats.TotalSize)/(1<<20),
			float64(stats.Capacity)/(1<<30))
		return nil
	case "clean":
		expired := store.EvictExpired()
		evicted := store.EvictToCapacity(cfg.CacheCapacityBytes())
		fmt.Printf("removed %d expired and %d over-capacity entries\n", expired, evicted)
		return nil
	default:
		return fmt.Errorf("cache: unknown subcommand %q", args[0])
	}
}

func initCmd(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	projectDir := fs.String("project", "", "project directory (defaults to cwd)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	project, err := resolveProject(*projectDir)
	if err != nil {
		return err
	}
	if err := config.Init(project); err != nil {
		return err
	}
	fmt.Printf("initialized %s\n", filepath.Join(project, config.ConfigFileName))
	return nil
}

func pipelineDefinition(doc *plan.Document, defFile string) (workflow.Definition, error) {
	if defFile != "" {
		return workflow.LoadDefinitionFile(defFile)
	}
	return workflow.FromPlan(doc)
}

// executeRun wires SIGINT/SIGTERM into context cancellation so an interrupted
// run records its steps as skipped instead of vanishing.
func executeRun(rt *runtime, req workflow.RunRequest) (workflow.RunState, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rt.exec.Run(ctx, req)
}

func printRunSummary(state workflow.RunState) {
	if state.RunID == "" {
		return
	}
	fmt.Printf("run %s: %s", state.RunID, state.Status)
	if state.Cause != "" {
		fmt.Printf(" (%s)", state.Cause)
	}
	fmt.Println()
	for _, id := range state.Order {
		res, ok := state.StepResult(id)
		if !ok {
			continue
		}
		line := fmt.Sprintf("  %-12s %s", id, res.Status)
		if res.Reused {
			line += " (reused)"
		}
		if res.Message != "" && !res.Reused {
			line += "  " + res.Message
		}
		if res.Error != "" {
			line += "  " + res.Error
		}
		fmt.Println(line)
	}
}

func resolveProject(dir string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		return cwd, nil
	}
	return filepath.Abs(dir)
}
