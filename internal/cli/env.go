package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/composite/internal/catalog"
	"github.com/roach88/composite/internal/composite"
	"github.com/roach88/composite/internal/config"
	"github.com/roach88/composite/internal/engine"
	"github.com/roach88/composite/internal/ir"
	"github.com/roach88/composite/internal/store"
)

// env is the wiring shared by the database commands.
type env struct {
	cfg        *config.Config
	logger     *slog.Logger
	catalog    *catalog.Catalog
	store      *store.Store
	manager    *composite.Manager
	dispatcher *engine.Dispatcher
}

// loadConfig merges the config file, environment and flags.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.ConfigFile, cmd.Flags())
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	level, _ := cfg.Level() // validated by Load
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

// loadCatalog compiles the configured specs directory.
func loadCatalog(opts *RootOptions, cmd *cobra.Command) (*catalog.Catalog, *config.Config, *slog.Logger, error) {
	cfg, logger, err := loadConfig(opts, cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	logger.Debug("loading specs", "dir", cfg.SpecsDir)
	cat, err := catalog.LoadDir(cfg.SpecsDir)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to load specs", err)
	}
	return cat, cfg, logger, nil
}

// openEnv loads specs, opens the database and wires the dispatcher.
func openEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	cat, cfg, logger, err := loadCatalog(opts, cmd)
	if err != nil {
		return nil, err
	}

	logger.Debug("opening database", "path", cfg.DatabasePath)
	st, err := store.Open(cfg.DatabasePath, cat, store.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	if err := st.EnsureSchema(cmd.Context()); err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create entity tables", err)
	}

	flowGen := opts.FlowGenerator
	if flowGen == nil {
		flowGen = engine.UUIDv7Generator{}
	}

	e := &env{cfg: cfg, logger: logger, catalog: cat, store: st}
	e.manager = composite.NewManager(cat, st, st, composite.WithLogger(logger))
	e.dispatcher = engine.New(cat, e.manager, st, flowGen,
		engine.WithLogger(logger),
		engine.WithMaxDeletes(cfg.MaxDeletes),
	)
	st.SetHooks(e.dispatcher)
	return e, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing database", "error", err)
	}
}

// loadEntity parses "<type> <id>" arguments and loads the entity.
func (e *env) loadEntity(ctx context.Context, entityType, rawID string) (*ir.Entity, error) {
	if _, ok := e.catalog.EntityType(entityType); !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown entity type %q", entityType))
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id < 1 {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid entity id %q", rawID))
	}

	ent, err := e.store.Load(ctx, entityType, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("entity %s/%d not found", entityType, id))
	}
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to load entity", err)
	}
	return ent, nil
}

// report prints err through the formatter and returns it marked as
// reported. Errors that are not ExitErrors exit with ExitFailure.
func report(f *OutputFormatter, code string, err error) error {
	if outErr := f.Error(code, err.Error(), nil); outErr != nil {
		return outErr
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		exitErr = WrapExitError(ExitFailure, "command failed", err)
	}
	exitErr.reported = true
	return exitErr
}
