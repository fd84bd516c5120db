package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	authadapter "github.com/bnema/dnd-campaign-cli/internal/adapters/auth"
	"github.com/bnema/dnd-campaign-cli/internal/domain"
	"github.com/bnema/dnd-campaign-cli/internal/realtime"
)

const quitCommand = "/quit"

func newSessionCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Take part in a live game session",
	}

	cmd.AddCommand(newSessionJoinCmd(app))

	return cmd
}

func newSessionJoinCmd(app *app) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a session and chat from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			return runSessionJoin(cmd, app, sessionID)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Game session ID")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runSessionJoin(cmd *cobra.Command, app *app, sessionID string) error {
	ctx := cmd.Context()

	client, err := app.newSessionClient()
	if err != nil {
		return err
	}
	defer client.Disconnect()

	out := &lockedWriter{w: cmd.OutOrStdout()}
	client.OnChatMessage(func(msg domain.ChatMessage) {
		out.printf("%s: %s\n", msg.SenderID, msg.Content)
	})
	client.OnJoinSuccess(func(event realtime.SessionEvent) {
		out.printf("* players here: %s\n", playerList(event))
	})
	client.OnPlayerJoined(func(event realtime.SessionEvent) {
		out.printf("* joined: %s\n", playerList(event))
	})
	client.OnPlayerLeft(func(event realtime.SessionEvent) {
		out.printf("* left: %s\n", playerList(event))
	})
	client.OnSessionStarted(func(realtime.SessionEvent) {
		out.printf("* the session has started\n")
	})
	client.OnReconnected(func() {
		out.printf("* reconnected\n")
	})

	lost := make(chan error, 1)
	client.OnConnectionLost(func(err error) {
		select {
		case lost <- err:
		default:
		}
	})

	creds := realtime.Credentials{
		Token:     app.tokens.AccessToken(),
		UserID:    sessionUserID(app),
		SessionID: sessionID,
	}
	if err := client.Connect(ctx, creds); err != nil {
		return fmt.Errorf("join session %s: %w", sessionID, err)
	}
	out.printf("Joined session %s. Type a message and press enter, %s to leave.\n", sessionID, quitCommand)

	lines := scanLines(cmd.InOrStdin())
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-lost:
			return err
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == quitCommand {
				return nil
			}
			err := client.SendMessage(line)
			switch {
			case err == nil, errors.Is(err, realtime.ErrEmptyMessage):
			case errors.Is(err, domain.ErrNotAuthenticated):
				out.printf("! not connected, message dropped\n")
			default:
				out.printf("! %v\n", err)
			}
		}
	}
}

func sessionUserID(app *app) string {
	if user, ok := app.tokens.User(); ok && user.ID != "" {
		return user.ID
	}
	claims, err := authadapter.ParseClaims(app.tokens.AccessToken())
	if err != nil {
		return ""
	}
	return claims.UserID
}

func playerList(event realtime.SessionEvent) string {
	if len(event.PlayerIDs) == 0 {
		return "-"
	}
	return strings.Join(event.PlayerIDs, ", ")
}

func scanLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// lockedWriter serialises output from socket handlers and the input loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.w, format, args...)
}
