// Package rehearse is the composition root for migration rehearsals: it
// builds the stores, the injector, the journal, and the admin surface from
// flags and environment, then drives a scripted dual-write workload and
// reports what the shadow side dropped.
package rehearse

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rentfold/shadowwrite/chaos"
	"github.com/rentfold/shadowwrite/internal/logging"
)

// StoreKind selects a storage backend for one side of the harness.
type StoreKind string

const (
	KindMemory   StoreKind = "memory"
	KindPostgres StoreKind = "postgres"
	KindSurreal  StoreKind = "surreal"
	KindRedis    StoreKind = "redis"
)

func parseKind(raw string) (StoreKind, error) {
	switch StoreKind(raw) {
	case KindMemory, KindPostgres, KindSurreal, KindRedis:
		return StoreKind(raw), nil
	}
	return "", fmt.Errorf("unknown store kind %q (memory|postgres|surreal|redis)", raw)
}

// Config carries everything a command needs. Endpoints come from the
// environment; behavior comes from flags.
type Config struct {
	Primary StoreKind
	Shadow  StoreKind
	Cycles  int

	// AdminAddr serves the ops router during a run when non-empty.
	AdminAddr string
	LogLevel  string

	// Chaos overrides, applied over the CHAOS_* environment; nil leaves
	// the environment value in place.
	ChaosEnabled *bool
	FailRate     *float64
	Seed         *string

	PostgresDSN   string
	SurrealURL    string
	SurrealNS     string
	SurrealDB     string
	SurrealUser   string
	SurrealPass   string
	RedisAddr     string
	RedisPassword string
	// JournalDSN defaults to PostgresDSN; empty disables the journal.
	JournalDSN string
}

// Command is one of run, migrate, or report.
type Command interface {
	Name() string
}

// RunCommand executes the scripted rehearsal workload.
type RunCommand struct{}

func (RunCommand) Name() string { return "run" }

// MigrateCommand creates the relational schemas: entity tables on the
// primary DSN when it is PostgreSQL, and the journal table.
type MigrateCommand struct{}

func (MigrateCommand) Name() string { return "migrate" }

// ReportCommand prints journal statistics without running a workload.
type ReportCommand struct{}

func (ReportCommand) Name() string { return "report" }

func getEnvOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// Parse reads flags and environment into a Config and picks the command
// from the first non-flag argument.
func Parse(args []string) (Command, *Config, error) {
	flagSet := flag.NewFlagSet("shadowrehearse", flag.ContinueOnError)

	var (
		primary   = flagSet.String("primary", string(KindMemory), "Primary store: memory|postgres|surreal|redis")
		shadow    = flagSet.String("shadow", string(KindMemory), "Shadow store: memory|postgres|surreal|redis")
		cycles    = flagSet.Int("cycles", 10, "Workload rounds to run")
		adminAddr = flagSet.String("admin-addr", "", "Serve the admin API on this address during the run")
		logLevel  = flagSet.String("log-level", "", "Log level (falls back to LOG_LEVEL)")
		chaosOn   = flagSet.Bool("chaos", false, "Enable fault injection (overrides CHAOS_ENABLED)")
		failRate  = flagSet.Float64("fail-rate", 0, "Injected failure probability in [0,1] (overrides CHAOS_FAIL_RATE)")
		seed      = flagSet.String("seed", "", "Deterministic chaos seed (overrides CHAOS_SEED)")
	)

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	remaining := flagSet.Args()
	if len(remaining) == 0 {
		return nil, nil, fmt.Errorf(`subcommand required

Usage: shadowrehearse [flags] <command>

Commands:
  run       Execute the dual-write rehearsal workload
  migrate   Create database schemas (entity tables and failure journal)
  report    Print failure-journal statistics

Examples:
  shadowrehearse run                                      # memory stores, no chaos
  shadowrehearse -chaos -fail-rate 0.2 -seed night-3 run  # deterministic chaos
  shadowrehearse -primary postgres -shadow surreal run    # real stores from env
  shadowrehearse -admin-addr :9090 -cycles 100 run        # with admin API
  shadowrehearse migrate
  shadowrehearse report`)
	}

	primaryKind, err := parseKind(*primary)
	if err != nil {
		return nil, nil, fmt.Errorf("-primary: %w", err)
	}
	shadowKind, err := parseKind(*shadow)
	if err != nil {
		return nil, nil, fmt.Errorf("-shadow: %w", err)
	}
	if *cycles <= 0 {
		return nil, nil, fmt.Errorf("-cycles must be positive, got %d", *cycles)
	}

	postgresDSN := os.Getenv("POSTGRES_DSN")
	journalDSN := os.Getenv("JOURNAL_DSN")
	if journalDSN == "" {
		journalDSN = postgresDSN
	}
	cfg := &Config{
		Primary:       primaryKind,
		Shadow:        shadowKind,
		Cycles:        *cycles,
		AdminAddr:     *adminAddr,
		LogLevel:      *logLevel,
		PostgresDSN:   postgresDSN,
		SurrealURL:    getEnvOrDefault("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealNS:     getEnvOrDefault("SURREALDB_NS", "shadowwrite"),
		SurrealDB:     getEnvOrDefault("SURREALDB_DB", "shadowwrite"),
		SurrealUser:   getEnvOrDefault("SURREALDB_USER", "root"),
		SurrealPass:   getEnvOrDefault("SURREALDB_PASS", "root"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JournalDSN:    journalDSN,
	}

	// Only explicitly set flags become overrides; unset ones defer to the
	// CHAOS_* environment.
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "chaos":
			cfg.ChaosEnabled = chaosOn
		case "fail-rate":
			cfg.FailRate = failRate
		case "seed":
			cfg.Seed = seed
		}
	})

	var cmd Command
	switch remaining[0] {
	case "run":
		cmd = RunCommand{}
	case "migrate":
		cmd = MigrateCommand{}
	case "report":
		cmd = ReportCommand{}
	default:
		return nil, nil, fmt.Errorf("unknown command: %s\n\nValid commands: run, migrate, report", remaining[0])
	}
	return cmd, cfg, nil
}

// Main parses the arguments and executes the selected command. Callable
// from tests without building the binary.
func Main(ctx context.Context, args []string) error {
	cmd, cfg, err := Parse(args)
	if err != nil {
		return err
	}

	logger, err := logging.New().Console().Level(cfg.LogLevel).Make()
	if err != nil {
		return err
	}

	switch cmd.(type) {
	case RunCommand:
		injector, err := chaos.FromEnv(chaos.Overrides{
			Enabled:  cfg.ChaosEnabled,
			FailRate: cfg.FailRate,
			Seed:     cfg.Seed,
		})
		if err != nil {
			// The production guard lands here; nothing downgrades it.
			return err
		}
		app := NewApp(cfg, injector, logger)
		return app.Run(ctx)
	case MigrateCommand:
		return Migrate(ctx, cfg, logger)
	case ReportCommand:
		return Report(ctx, cfg, os.Stdout)
	}
	return fmt.Errorf("unhandled command %s", cmd.Name())
}
