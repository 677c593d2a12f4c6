package step

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/videoforge/videoforge/internal/cache"
	"github.com/videoforge/videoforge/internal/config"
	"github.com/videoforge/videoforge/internal/logging"
	"github.com/videoforge/videoforge/internal/services"
)

// runSubdirs is the fixed directory layout created under every run directory.
var runSubdirs = []string{"cuts", "audio", "background", "composition", "final", "logs"}

// Environment carries everything a step may touch during one run: the run
// directory tree, project configuration, the response cache, the run log and
// the external service clients. Steps receive it explicitly; there is no
// package-level state.
type Environment struct {
	RunID    string
	RunDir   string
	Config   *config.Config
	Cache    *cache.Store
	Log      *logging.Logger
	Services services.Clients
}

// NewEnvironment creates the run directory tree and returns an Environment
// rooted there.
func NewEnvironment(runID, runDir string, cfg *config.Config, store *cache.Store, log *logging.Logger, clients services.Clients) (*Environment, error) {
	for _, sub := range runSubdirs {
		if err := os.MkdirAll(filepath.Join(runDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("step: create run dir %s: %w", sub, err)
		}
	}
	return &Environment{
		RunID:    runID,
		RunDir:   runDir,
		Config:   cfg,
		Cache:    store,
		Log:      log,
		Services: clients,
	}, nil
}

// CutsDir is where sliced source-image regions land.
func (e *Environment) CutsDir() string { return filepath.Join(e.RunDir, "cuts") }

// AudioDir is where synthesized narration segments land.
func (e *Environment) AudioDir() string { return filepath.Join(e.RunDir, "audio") }

// BackgroundDir is where generated background clips land.
func (e *Environment) BackgroundDir() string { return filepath.Join(e.RunDir, "background") }

// CompositionDir is where intermediate composition artifacts land.
func (e *Environment) CompositionDir() string { return filepath.Join(e.RunDir, "composition") }

// FinalDir is where the rendered video lands.
func (e *Environment) FinalDir() string { return filepath.Join(e.RunDir, "final") }

// Logf writes to the run log, ignoring a nil logger.
func (e *Environment) Logf(format string, args ...any) {
	e.Log.Printf(format, args...)
}
