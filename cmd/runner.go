package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunelink/internal/metrics"
	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/repositories"
	"github.com/desertthunder/tunelink/internal/services"
	"github.com/desertthunder/tunelink/internal/shared"
	"github.com/desertthunder/tunelink/internal/tasks"
	"github.com/desertthunder/tunelink/internal/unified"
	"github.com/desertthunder/tunelink/internal/vault"
	"github.com/urfave/cli/v3"
)

// DefaultUser is the local account commands act as when --user is not given.
const DefaultUser = "me@tunelink.local"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database and everything built on it are opened on first use, so commands like
// setup work before a key or a database exists.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	metrics    *metrics.Metrics
	registry   *services.Registry

	db         *sql.DB
	store      *repositories.Store
	accounts   *tasks.Accounts
	reconciler *tasks.Reconciler
	unified    *unified.Service
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Metrics    *metrics.Metrics
	Registry   *services.Registry  // defaults to both adapters built from Config
	Store      *repositories.Store // skips opening Config.Database.Path
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		metrics:    opts.Metrics,
		registry:   opts.Registry,
		store:      opts.Store,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, providersCommand, playlistsCommand, syncCommand, conflictsCommand, unifiedCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the config file named by --config and applies the log level flags.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	switch {
	case cmd.Bool("verbose"):
		shared.SetLogLevel(r.logger, log.DebugLevel)
	case cmd.Bool("quiet"):
		shared.SetLogLevel(r.logger, log.ErrorLevel)
	}

	path := cmd.String("config")
	if path == "" {
		return ctx, nil
	}
	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return ctx, nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return ctx, err
	}
	r.config = config
	r.configPath = path
	return ctx, nil
}

// open builds the store, vault and services on first use.
func (r *Runner) open() error {
	if r.unified != nil {
		return nil
	}

	if r.store == nil {
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		r.db = db
		r.store = repositories.NewStore(db)
	}

	cipher, err := vault.NewCipherFromHex(r.config.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("%w (set security.encryption_key or %s, see 'tunelink setup key')", err, shared.EncryptionKeyEnv)
	}

	if r.registry == nil {
		r.registry = services.NewDefaultRegistry(r.config, r.metrics)
	}

	tokens, err := vault.New(vault.Opts{
		Store:     r.store.Tokens,
		Cipher:    cipher,
		Refresher: r.registry,
		Buffer:    r.config.Providers.RefreshBuffer,
		Logger:    r.logger,
		Metrics:   r.metrics,
	})
	if err != nil {
		return err
	}

	r.accounts = tasks.NewAccounts(r.store, tokens, r.registry, r.logger)
	r.reconciler, err = tasks.NewReconciler(tasks.ReconcilerOpts{
		Store:    r.store,
		Sessions: r.accounts,
		Logger:   r.logger,
		Metrics:  r.metrics,
	})
	if err != nil {
		return err
	}
	r.unified = unified.New(r.store, r.accounts, r.logger)
	return nil
}

// Close releases the database if the runner opened one.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// user opens the runner and returns the local user named by --user, creating it on first use.
func (r *Runner) user(cmd *cli.Command) (*models.User, error) {
	if err := r.open(); err != nil {
		return nil, err
	}
	email := cmd.String("user")
	if email == "" {
		email = DefaultUser
	}
	return r.store.Users.GetOrCreateByEmail(email, "")
}

func parseProvider(s string) (models.Provider, error) {
	if s == "" {
		return "", fmt.Errorf("%w: provider (one of spotify, soundcloud)", shared.ErrMissingArgument)
	}
	return models.ParseProvider(s)
}

// optionalProvider parses an optional --provider flag; empty means every provider.
func optionalProvider(s string) (models.Provider, error) {
	if s == "" {
		return "", nil
	}
	return models.ParseProvider(s)
}

// printProgress writes updates until progress is closed. The returned channel is
// closed once the last update has been written.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.FetchAccounts:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.FetchPlaylists, tasks.FetchTracks, tasks.SavePlaylists, tasks.SaveTracks:
				r.writePlain("   %s\n", update.Message)
			case tasks.AccountFailed:
				r.writePlain("⚠️  %s\n", update.Message)
			case tasks.Finished:
				r.writePlain("\n🏁 %s\n", update.Message)
			}
		}
	}()
	return done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// writeResult prints data as JSON when --json is set and falls back to render otherwise.
func (r *Runner) writeResult(cmd *cli.Command, data any, render func() string) error {
	if cmd.Bool("json") {
		return r.writeJSON(data, cmd.Bool("pretty"))
	}
	return r.writePlain("%s\n", render())
}
