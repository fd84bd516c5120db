package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	authadapter "github.com/bnema/dnd-campaign-cli/internal/adapters/auth"
	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

func newLoginCmd(app *app) *cobra.Command {
	var user string
	var password string
	var passwordStdin bool
	var skipSync bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and replay pending creations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := resolvePassword(cmd.InOrStdin(), password, passwordStdin)
			if err != nil {
				return err
			}

			session, err := app.authAPI.Login(cmd.Context(), user, secret)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if err := storeSession(cmd, app, session); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", displayName(session.User))

			if skipSync {
				return nil
			}
			return drainAfterLogin(cmd, app)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Email or username")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().BoolVar(&skipSync, "no-sync", false, "Do not replay the outbox after login")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newRegisterCmd(app *app) *cobra.Command {
	var registration domain.Registration
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := resolvePassword(cmd.InOrStdin(), registration.Password, passwordStdin)
			if err != nil {
				return err
			}
			registration.Password = secret

			session, err := app.authAPI.Register(cmd.Context(), registration)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			if err := storeSession(cmd, app, session); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Registered and logged in as %s\n", displayName(session.User))
			return drainAfterLogin(cmd, app)
		},
	}

	cmd.Flags().StringVar(&registration.Username, "username", "", "Username")
	cmd.Flags().StringVar(&registration.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&registration.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&registration.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&registration.Password, "password", "", "Password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget saved tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token := app.tokens.AccessToken(); token != "" {
				if err := app.authAPI.Logout(cmd.Context(), token); err != nil {
					app.logger.Debug("server logout failed", "error", err)
				}
			}

			if err := app.tokens.ClearTokens(cmd.Context()); err != nil {
				return fmt.Errorf("forget saved session: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

type whoamiOutput struct {
	User      *domain.User `json:"user,omitempty"`
	UserID    string       `json:"userId,omitempty"`
	ExpiresAt string       `json:"expiresAt,omitempty"`
	Expired   bool         `json:"expired"`
}

func newWhoamiCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}

			output := whoamiOutput{}
			if user, ok := app.tokens.User(); ok {
				output.User = &user
			}
			claims, err := authadapter.ParseClaims(app.tokens.AccessToken())
			if err == nil {
				output.UserID = claims.UserID
				output.Expired = claims.Expired(app.now())
				if !claims.ExpiresAt.IsZero() {
					output.ExpiresAt = claims.ExpiresAt.UTC().Format(time.RFC3339)
				}
			} else {
				app.logger.Debug("access token is not a readable jwt", "error", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(output)
			}

			out := cmd.OutOrStdout()
			if output.User != nil {
				_, _ = fmt.Fprintf(out, "%s <%s>\n", displayName(*output.User), output.User.Email)
			}
			if output.UserID != "" {
				_, _ = fmt.Fprintf(out, "user id: %s\n", output.UserID)
			}
			if err == nil && !claims.ExpiresAt.IsZero() {
				state := "expires"
				if output.Expired {
					state = "expired"
				}
				_, _ = fmt.Fprintf(out, "token %s %s\n", state, humanize.RelTime(claims.ExpiresAt, app.now(), "ago", "from now"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON output")

	return cmd
}

func storeSession(cmd *cobra.Command, app *app, session domain.AuthSession) error {
	if err := app.tokens.SetTokens(cmd.Context(), session.Tokens); err != nil {
		return fmt.Errorf("save session tokens: %w", err)
	}
	if session.User.ID == "" && session.User.Username == "" {
		return nil
	}
	if err := app.tokens.SetUser(cmd.Context(), session.User); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// drainAfterLogin replays the outbox. A failed replay never fails the login.
func drainAfterLogin(cmd *cobra.Command, app *app) error {
	pending, err := app.store.CountPending(cmd.Context())
	if err != nil || pending == 0 {
		return err
	}

	label := fmt.Sprintf("Replaying %d pending action(s)...", pending)
	report, err := runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), label, app.syncEngine.Drain)
	if err != nil {
		app.logger.Warn("outbox replay after login failed", "error", err)
		return nil
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Synced %d pending action(s), %d remaining\n", len(report.Replayed), report.Remaining())
	return nil
}

func resolvePassword(stdin io.Reader, flagValue string, fromStdin bool) (string, error) {
	if !fromStdin {
		if flagValue == "" {
			return "", errors.New("password is required: pass --password or --password-stdin")
		}
		return flagValue, nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password from stdin is empty")
	}
	return password, nil
}

func displayName(user domain.User) string {
	switch {
	case user.Username != "":
		return user.Username
	case user.Email != "":
		return user.Email
	case user.ID != "":
		return user.ID
	default:
		return "unknown user"
	}
}
