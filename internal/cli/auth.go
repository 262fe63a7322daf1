package cli

import (
	"context"
	"errors"
	"strings"
	"time"

	"sprintdesk/internal/session"
	"sprintdesk/internal/store"

	"github.com/spf13/cobra"
)

func claimsOut(c session.Claims, apiURL string) map[string]any {
	out := map[string]any{
		"subject": c.Subject,
		"name":    c.DisplayName(),
		"apiUrl":  apiURL,
	}
	if !c.UserID.IsZero() {
		out["userId"] = c.UserID
	}
	if c.Role != "" {
		out["role"] = c.Role
	}
	if !c.ExpiresAt.IsZero() {
		out["expiresAt"] = c.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return out
}

func newLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login --token <jwt>",
		Short: "Save a session token for later commands",
		Long: strings.TrimSpace(`
Save the token issued by the backend's login page. The token is checked locally (format and
expiry) and kept in the state database together with the API URL it belongs to.
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token := app.Token
			if strings.TrimSpace(token) == "" {
				return writeErr(cmd, errors.New("missing --token"))
			}
			token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
			claims, err := session.ParseClaims(token, time.Now())
			if err != nil {
				return writeErr(cmd, err)
			}

			ctx := cmd.Context()
			db, err := store.Open(ctx, app.cfg.StatePath)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer db.Close()
			if err := db.SaveSession(ctx, store.SavedSession{Token: token, APIURL: app.cfg.APIURL}); err != nil {
				return writeErr(cmd, err)
			}
			app.logger.Info("logged in", "subject", claims.Subject)
			return writeOut(cmd, app, map[string]any{"data": claimsOut(claims, app.cfg.APIURL)})
		},
	}
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session and the last-opened board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := store.Open(ctx, app.cfg.StatePath)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer db.Close()
			if err := db.ClearSession(ctx); err != nil {
				return writeErr(cmd, err)
			}
			if err := db.SaveUIState(ctx, store.UIState{}); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"loggedOut": true}})
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user behind the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				out := claimsOut(s.Claims, s.Client.BaseURL())
				deviceID, err := db.DeviceID(ctx)
				if err != nil {
					return writeErr(cmd, err)
				}
				out["deviceId"] = deviceID
				out["sessionId"] = s.ID
				return writeOut(cmd, app, map[string]any{"data": out})
			})
		},
	}
}
