package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stevehiehn/orquestator/internal/action"
	"github.com/stevehiehn/orquestator/internal/config"
	"github.com/stevehiehn/orquestator/internal/engine"
	"github.com/stevehiehn/orquestator/internal/logging"
	"github.com/stevehiehn/orquestator/internal/store"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

// app holds everything a command needs. close releases the log file and
// the database handle.
type app struct {
	baseDir string
	cfg     *config.Config
	logger  *slog.Logger
	engine  *engine.Engine

	closers []io.Closer
}

// loadConfig resolves the base directory and reads the config file.
func loadConfig() (string, *config.Config, error) {
	baseDir := workDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", nil, fmt.Errorf("resolving working directory: %w", err)
		}
		baseDir = wd
	}
	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return "", nil, fmt.Errorf("resolving working directory: %w", err)
	}

	cfg, err := config.Load(config.Path(configPath, baseDir))
	if err != nil {
		return "", nil, err
	}
	if verbose {
		cfg.Logging.Level = config.LogLevelDebug
	}
	return baseDir, cfg, nil
}

// newBaseApp loads configuration and opens the logger.
func newBaseApp() (*app, error) {
	baseDir, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{baseDir: baseDir, cfg: cfg}
	logger, logCloser, err := logging.NewFromConfig(cfg, baseDir)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	if logCloser != nil {
		a.closers = append(a.closers, logCloser)
	}
	a.logger = logger
	return a, nil
}

// newApp wires the store and the engine on top of newBaseApp. ctx is the
// parent of every background run.
func newApp(ctx context.Context) (*app, error) {
	a, err := newBaseApp()
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, a.cfg, a.baseDir)
	if err != nil {
		a.close()
		return nil, err
	}
	if c, ok := st.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	a.engine = engine.New(st,
		workflow.NewDirSource(a.cfg.WorkflowsDir(a.baseDir)),
		action.Builtin(a.cfg, a.logger),
		engine.Options{Context: ctx, WorkDir: a.baseDir, Logger: a.logger},
	)
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, baseDir string) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		return store.OpenPostgres(ctx, cfg.Store.DSN, store.PostgresOptions{
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		})
	default:
		return store.NewFileStore(cfg.RunsDir(baseDir))
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}
