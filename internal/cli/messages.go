package cli

import (
	"context"
	"strings"

	"sprintdesk/internal/model"
	"sprintdesk/internal/session"
	"sprintdesk/internal/store"

	"github.com/spf13/cobra"
)

func newMessagesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Project messages",
	}
	cmd.AddCommand(newMessagesListCmd(app))
	cmd.AddCommand(newMessagesSendCmd(app))
	cmd.AddCommand(newMessagesReadCmd(app))
	return cmd
}

func newMessagesListCmd(app *App) *cobra.Command {
	var unreadOnly bool
	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's messages, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				msgs, err := s.Notifications.LoadMessagesForProject(ctx, projectID)
				if err != nil {
					return err
				}
				out := make([]model.Message, 0, len(msgs))
				for _, m := range msgs {
					if unreadOnly && m.IsRead {
						continue
					}
					out = append(out, m)
				}
				return writeOut(cmd, app, map[string]any{"data": out})
			})
		},
	}
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "Only unread messages")
	return cmd
}

func newMessagesSendCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "send <project-id> <content>...",
		Short: "Post a message to a project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			content := strings.Join(args[1:], " ")
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				m, err := s.Notifications.Send(ctx, projectID, content)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": m})
			})
		},
	}
}

func newMessagesReadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "read <project-id>",
		Short: "Mark a project's messages as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				if err := s.Notifications.MarkRead(ctx, projectID); err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": map[string]any{"projectId": projectID, "read": true}})
			})
		},
	}
}

func newUnreadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Unread message counts per project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				if err := s.Notifications.LoadInitialCounts(ctx); err != nil {
					return err
				}
				projects := make([]map[string]any, 0)
				for _, p := range s.Notifications.Projects() {
					projects = append(projects, map[string]any{"projectId": p, "count": s.Notifications.UnreadCount(p)})
				}
				return writeOut(cmd, app, map[string]any{"data": map[string]any{
					"total":    s.Notifications.TotalUnread(),
					"projects": projects,
				}})
			})
		},
	}
}
