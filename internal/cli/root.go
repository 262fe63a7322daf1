package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"sprintdesk/internal/config"
	"sprintdesk/internal/format"
	"sprintdesk/internal/model"
	"sprintdesk/internal/session"
	"sprintdesk/internal/store"
	"sprintdesk/internal/tui"

	"github.com/spf13/cobra"
)

type App struct {
	ConfigFile string
	APIURL     string
	StatePath  string
	Token      string
	LogLevel   string
	PrettyJSON bool
	Format     string

	// home overrides the user home directory; tests point it at a temp dir.
	home string

	cfg    config.Config
	logger *slog.Logger
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{})
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "sprintdesk",
		Short:        "Sprint board and project messages for the terminal",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Save the session token issued by the backend
  sprintdesk login --token "$JWT"

  # Start the interactive board
  sprintdesk

  # Scriptable commands
  sprintdesk tasks board --project 3 --sprint 7
  sprintdesk tasks move 42 done
  sprintdesk unread
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.loadConfig(cmd)
	}

	cmd.PersistentFlags().StringVar(&app.ConfigFile, "config", envOr("SPRINTDESK_CONFIG", ""), "Path to a YAML config file (default ~/.sprintdesk/config.yaml when present)")
	cmd.PersistentFlags().StringVar(&app.APIURL, "api-url", "", "Backend REST base URL (overrides config and SPRINTDESK_API_URL)")
	cmd.PersistentFlags().StringVar(&app.StatePath, "state", "", "Path to the local state database")
	cmd.PersistentFlags().StringVar(&app.Token, "token", envOr("SPRINTDESK_TOKEN", ""), "Session token (overrides the saved login)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("SPRINTDESK_FORMAT", "json"), "Output format (json|jsonl)")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newSubtasksCmd(app))
	cmd.AddCommand(newMessagesCmd(app))
	cmd.AddCommand(newUnreadCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// loadConfig resolves settings: defaults < .env < config file < environment < flags.
func (app *App) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: app.ConfigFile, Home: app.home})
	if err != nil {
		return writeErr(cmd, err)
	}
	if app.APIURL != "" {
		cfg.APIURL = app.APIURL
	}
	if app.StatePath != "" {
		cfg.StatePath = app.StatePath
	}
	if app.LogLevel != "" {
		cfg.LogLevel = app.LogLevel
	}
	if _, err := format.Parse(app.Format); err != nil {
		return writeErr(cmd, err)
	}
	if err := cfg.Validate(); err != nil {
		return writeErr(cmd, err)
	}
	app.cfg = cfg
	app.logger = cfg.NewLogger(cmd.ErrOrStderr())
	return nil
}

func runTUI(cmd *cobra.Command, app *App) error {
	f, err := app.cfg.OpenLogFile()
	if err != nil {
		return writeErr(cmd, err)
	}
	defer f.Close()
	app.logger = app.cfg.NewLogger(f)

	ctx := cmd.Context()
	db, err := store.Open(ctx, app.cfg.StatePath)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer db.Close()

	token, err := app.resolveToken(ctx, cmd, db)
	if err != nil {
		return writeErr(cmd, err)
	}
	s, err := session.New(app.sessionOptions(), token)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer s.Close()
	return tui.Run(ctx, s, db, app.logger)
}

// withSession opens the local state and a session for the saved (or --token) login and
// tears both down after fn.
func withSession(cmd *cobra.Command, app *App, fn func(ctx context.Context, s *session.Session, db *store.DB) error) error {
	ctx := cmd.Context()
	db, err := store.Open(ctx, app.cfg.StatePath)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer db.Close()

	token, err := app.resolveToken(ctx, cmd, db)
	if err != nil {
		return writeErr(cmd, err)
	}
	s, err := session.New(app.sessionOptions(), token)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer s.Close()

	if err := fn(ctx, s, db); err != nil {
		return writeErr(cmd, err)
	}
	return nil
}

// resolveToken prefers --token, then the saved login. A saved login also pins the backend
// it was issued by unless --api-url or SPRINTDESK_API_URL says otherwise.
func (app *App) resolveToken(ctx context.Context, cmd *cobra.Command, db *store.DB) (string, error) {
	if strings.TrimSpace(app.Token) != "" {
		return app.Token, nil
	}
	saved, ok, err := db.LoadSession(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errNotLoggedIn()
	}
	if saved.APIURL != "" && !cmd.Flags().Changed("api-url") && os.Getenv(config.EnvPrefix+"_API_URL") == "" {
		app.cfg.APIURL = saved.APIURL
	}
	return saved.Token, nil
}

func (app *App) sessionOptions() session.Options {
	prefetch := make([]model.ID, 0, len(app.cfg.PrefetchProjects))
	for _, p := range app.cfg.PrefetchProjects {
		prefetch = append(prefetch, model.ID(p))
	}
	return session.Options{
		APIURL:      app.cfg.APIURL,
		StreamURL:   app.cfg.StreamURL(),
		HTTPTimeout: app.cfg.HTTPTimeout,
		Prefetch:    prefetch,
		Logger:      app.logger,
	}
}

func parseID(kind, s string) (model.ID, error) {
	id := model.ID(strings.TrimSpace(s))
	if id.IsZero() {
		return "", fmt.Errorf("missing %s id", kind)
	}
	return id, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
