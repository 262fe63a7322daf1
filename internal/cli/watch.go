package cli

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"sprintdesk/internal/format"
	"sprintdesk/internal/model"
	"sprintdesk/internal/push"
	"sprintdesk/internal/session"
	"sprintdesk/internal/store"

	"github.com/spf13/cobra"
)

var watchEvents = []string{
	model.EventNewMessage,
	model.EventProjectUnreadCount,
	model.EventNewInvitation,
	model.EventMessagesRead,
}

type watchLine struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	At    string          `json:"at"`
}

func newWatchCmd(app *App) *cobra.Command {
	var count int
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream push notifications as JSON lines",
		Long: strings.TrimSpace(`
Open the session's push channel and print one JSON object per event until interrupted.
The channel reconnects on its own after network errors; a refused token ends the command.
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				if timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, timeout)
					defer cancel()
				}

				var mu sync.Mutex
				seen := 0
				enough := make(chan struct{})
				var once sync.Once
				for _, name := range watchEvents {
					unsubscribe := s.Channel.Subscribe(name, func(data []byte) error {
						mu.Lock()
						defer mu.Unlock()
						if count > 0 && seen >= count {
							return nil
						}
						line := watchLine{Event: name, At: time.Now().UTC().Format(time.RFC3339Nano)}
						if json.Valid(data) {
							line.Data = json.RawMessage(data)
						}
						if err := format.Write(cmd.OutOrStdout(), line, "jsonl", false); err != nil {
							return err
						}
						seen++
						if count > 0 && seen >= count {
							once.Do(func() { close(enough) })
						}
						return nil
					})
					defer unsubscribe()
				}
				s.Channel.OnState(func(st push.State) {
					app.logger.Info("push channel state", "state", st.String())
				})

				if err := s.Start(ctx); err != nil && s.Channel.State() == push.StateClosed {
					return err
				}

				select {
				case <-enough:
					return nil
				case <-ctx.Done():
					return nil
				case <-s.Channel.Done():
					if ctx.Err() != nil {
						return nil
					}
					return s.Channel.Err()
				}
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many events (0 = no limit)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Exit after this long (0 = until interrupted)")
	return cmd
}
