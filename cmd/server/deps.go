package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/warp/workfacts/config"
	"github.com/warp/workfacts/facts"
	"github.com/warp/workfacts/facts/store"
	"github.com/warp/workfacts/logging"
	"github.com/warp/workfacts/store/postgres"
	"github.com/warp/workfacts/store/sqlite"
	"go.uber.org/zap"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configFile string
	port       int
	dbDriver   string
	dbPath     string
	dsn        string
	logLevel   string
	logDev     bool
}

func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configFile, "config", "c", "", "YAML config file")
	pf.IntVarP(&f.port, "port", "p", 0, "HTTP server port")
	pf.StringVar(&f.dbDriver, "db-driver", "", "Store driver: sqlite, postgres or memory")
	pf.StringVar(&f.dbPath, "db", "", "SQLite database path (\":memory:\" for in-memory)")
	pf.StringVar(&f.dsn, "dsn", "", "PostgreSQL connection string")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&f.logDev, "log-dev", false, "Human-readable development logs")
}

// load builds the config and applies any flags the user set.
func (f *globalFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = f.port
	}
	if flags.Changed("dsn") {
		cfg.Store.DSN = f.dsn
		if !flags.Changed("db-driver") {
			cfg.Store.Driver = config.DriverPostgres
		}
	}
	if flags.Changed("db") {
		cfg.Store.Path = f.dbPath
		if !flags.Changed("db-driver") && !flags.Changed("dsn") {
			cfg.Store.Driver = config.DriverSQLite
		}
	}
	if flags.Changed("db-driver") {
		cfg.Store.Driver = f.dbDriver
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if flags.Changed("log-dev") {
		cfg.Log.Dev = f.logDev
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// deps holds the components every command needs.
type deps struct {
	cfg   *config.Config
	log   *zap.Logger
	store facts.Store
	facts *facts.Service
}

// withDeps loads config, builds dependencies, then calls fn. It handles
// cleanup automatically.
func withDeps(cmd *cobra.Command, flags *globalFlags, fn func(*deps) error) error {
	cfg, err := flags.load(cmd)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	st, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}
	defer st.Close()
	log.Info("store opened", zap.String("driver", cfg.Store.Driver))

	return fn(&deps{
		cfg:   cfg,
		log:   log,
		store: st,
		facts: facts.NewService(st, log.Named("facts")),
	})
}

func openStore(cfg config.StoreConfig) (facts.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Open(postgres.Config{DSN: cfg.DSN})
	case config.DriverMemory:
		return store.NewMemory(), nil
	case config.DriverSQLite:
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		return sqlite.New(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
