package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/timelock/internal/config"
	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/ledger"
	"github.com/roach88/timelock/internal/store"
	"github.com/roach88/timelock/internal/timelock"
)

// env is the ledger a command operates on.
type env struct {
	cfg     *config.Config
	store   *store.Store
	runtime *ledger.Runtime
	program *timelock.Program
	engine  *engine.Engine
	out     *OutputFormatter
}

// openEnv loads the configuration, opens the database and builds the
// engine, resuming the log sequence where the database left off.
func openEnv(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*env, error) {
	out := opts.formatter(cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	programID, err := cfg.ProgramID()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	var logSink io.Writer = io.Discard
	if opts.Verbose {
		logSink = out.GetErrWriter()
	}
	logger := cfg.NewLogger(logSink)

	st, err := store.Open(cfg.DB.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	clock, err := engine.ClockFromStore(ctx, st)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to read operation log", err)
	}

	oracle := opts.oracle
	if oracle == nil {
		oracle = ledger.SystemOracle{}
	}
	rt := ledger.NewRuntime(st, oracle, ledger.WithRent(cfg.LedgerRent()), ledger.WithLogger(logger))
	program := timelock.NewProgram(programID, logger)

	out.VerboseLog("database: %s (next seq %d)", cfg.DB.Path, clock.Current()+1)

	return &env{
		cfg:     cfg,
		store:   st,
		runtime: rt,
		program: program,
		engine:  engine.New(rt, program, engine.WithClock(clock), engine.WithLogger(logger)),
		out:     out,
	}, nil
}

// loadConfig reads the config file and environment, applying --db.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	v, err := config.NewViper(opts.ConfigFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read config", err)
	}
	if opts.Database != "" {
		v.Set("db.path", opts.Database)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// Close exports metrics if configured and closes the database.
func (e *env) Close() error {
	if path := e.cfg.Metrics.Textfile; path != "" {
		if err := e.engine.Metrics().WriteTextfile(path); err != nil {
			e.out.VerboseLog("metrics export failed: %v", err)
		}
	}
	return e.store.Close()
}
