package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trade-journal/internal/backup"
	"trade-journal/internal/config"
	"trade-journal/internal/journal"
	"trade-journal/internal/logging"
	"trade-journal/internal/resilience"
	"trade-journal/internal/screenshot"
	"trade-journal/internal/security"
	"trade-journal/internal/store"
)

// Version information, overridden at link time.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// App holds the application dependencies. The store and the services built
// on it are opened on first use so that commands such as version and config
// never touch the database.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	Store   *store.SQLiteStore
	Journal *journal.Service
	Audit   *security.AuditLogger
	Access  *security.AccessController

	configDir string
	userID    int64
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	app := &App{Logger: logger}

	rootCmd := &cobra.Command{
		Use:   "journal",
		Short: "Trading journal - record forex trades and analyse your performance",
		Long: `journal records forex trades with their planned risk, closes them with
realised profit and loss, tags mistakes and computes performance reports.

The same journal can be served over HTTP with 'journal serve'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/trade-journal)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Int64("user", 0, "journal user ID (default: journal.default_user_id)")

	addCoreCommands(rootCmd, app)
	addTradeCommands(rootCmd, app)
	addTagCommands(rootCmd, app)
	addStatsCommands(rootCmd, app)
	addExportCommands(rootCmd, app)
	addDBCommands(rootCmd, app)
	addUserCommands(rootCmd, app)
	addScreenshotCommands(rootCmd, app)
	addServeCommands(rootCmd, app)
	addHelpCommands(rootCmd, app)

	return rootCmd
}

// init loads the configuration and builds the logger from it.
func (a *App) init(cmd *cobra.Command) error {
	a.configDir, _ = cmd.Flags().GetString("config")
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return err
	}
	a.Config = cfg

	logCfg := logging.LogConfig{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	}
	a.Logger = logging.NewLoggerWithConfig(logCfg)

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}

	a.userID, _ = cmd.Flags().GetInt64("user")
	if a.userID == 0 {
		a.userID = cfg.Journal.DefaultUserID
	}
	return nil
}

// UserID is the user every journal command acts for.
func (a *App) UserID() int64 {
	return a.userID
}

// open opens the store and builds the journal service on it.
func (a *App) open() (*journal.Service, error) {
	if a.Journal != nil {
		return a.Journal, nil
	}

	st, err := store.NewSQLiteStore(a.Config.Database.Path, store.WithLogger(a.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	a.Store = st

	if a.Config.Audit.Enabled && a.Audit == nil {
		auditCfg := security.DefaultAuditConfig()
		auditCfg.LogDir = a.Config.Audit.Dir
		al, err := security.NewAuditLogger(auditCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		a.Audit = al
	}
	a.Access = security.NewAccessController(a.Config.Journal.ReadOnly, a.Audit)

	opts := []journal.Option{
		journal.WithLogger(a.Logger),
		journal.WithAccessController(a.Access),
		journal.WithDefaultTagColor(a.Config.Journal.DefaultTagColor),
	}
	if a.Audit != nil {
		opts = append(opts, journal.WithAuditor(a.Audit))
	}
	a.Journal = journal.NewService(st, opts...)
	return a.Journal, nil
}

// screenshots builds the screenshot service from the configuration.
func (a *App) screenshots() *screenshot.Service {
	cfg := a.Config.Screenshots
	breaker := resilience.DefaultBreakerConfig()
	breaker.FailureThreshold = cfg.BreakerFailures
	breaker.Cooldown = cfg.BreakerCooldown
	retry := resilience.DefaultRetryPolicy()
	retry.Attempts = cfg.CaptureRetries + 1

	s := screenshot.NewService(cfg.Dir,
		screenshot.WithLogger(a.Logger),
		screenshot.WithBreaker(resilience.NewBreaker("screenshot_capture", breaker)),
		screenshot.WithRetry(retry),
	)
	s.ViewportWidth = cfg.ViewportWidth
	s.ViewportHeight = cfg.ViewportHeight
	s.Wait = cfg.RenderWait
	s.Timeout = cfg.Timeout
	return s
}

// backups builds the backup manager. The store, when open, is checkpointed
// before each copy.
func (a *App) backups() *backup.Manager {
	opts := []backup.Option{backup.WithLogger(a.Logger)}
	if a.Store != nil {
		opts = append(opts, backup.WithCheckpointer(a.Store))
	}
	return backup.NewManager(a.Config.Database.Path, a.Config.Backup.Dir, opts...)
}

// Close releases the store and the audit log.
func (a *App) Close() error {
	var firstErr error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			firstErr = err
		}
		a.Store = nil
		a.Journal = nil
	}
	if a.Audit != nil {
		if err := a.Audit.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.Audit = nil
	}
	return firstErr
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Trading Journal v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the journal configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := config.ConfigPath(app.configDir)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	file := cfg.File
	if file == "" {
		file = "(defaults)"
	}
	output.Dim("Loaded from %s", file)
	output.Println()

	output.Bold("Database")
	output.KeyValue("Path", cfg.Database.Path)
	output.KeyValue("Backups", fmt.Sprintf("%s (keep %d)", cfg.Backup.Dir, cfg.Backup.Keep))
	output.Println()

	output.Bold("Server")
	output.KeyValue("Address", cfg.Server.Addr)
	output.KeyValue("Max upload", fmt.Sprintf("%d MB", cfg.Server.MaxUploadMB))
	output.KeyValue("CORS origins", cfg.Server.CORSOrigins)
	output.KeyValue("Trusted proxies", cfg.Server.TrustedProxies)
	output.Println()

	output.Bold("Screenshots")
	output.KeyValue("Directory", cfg.Screenshots.Dir)
	output.KeyValue("Viewport", fmt.Sprintf("%dx%d", cfg.Screenshots.ViewportWidth, cfg.Screenshots.ViewportHeight))
	output.KeyValue("Render wait", cfg.Screenshots.RenderWait)
	output.Println()

	output.Bold("Journal")
	output.KeyValue("Default user", cfg.Journal.DefaultUserID)
	output.KeyValue("Tag color", cfg.Journal.DefaultTagColor)
	output.KeyValue("Read-only", cfg.Journal.ReadOnly)
	output.KeyValue("Audit log", cfg.Audit.Enabled)
	output.KeyValue("Log level", cfg.Logging.Level)
}

// withContext returns the command context with the app logger attached.
func (a *App) withContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.WithLogger(ctx, logging.WithOperation(a.Logger, cmd.CommandPath()))
}
