// Command wfhr manages HR document templates from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"workflowhr/internal/client"
	"workflowhr/internal/session"
)

const defaultAPIURL = "http://localhost:8080"

var (
	apiURL      string
	sessionFile string
	timeout     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "wfhr",
	Short: "WorkFlowHR document templates",
	Long: `Create, fill and export HR document templates.

Log in once with 'wfhr login'; the session is kept in your user config
directory until 'wfhr logout' or until it expires.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (or set WFHR_API_URL)")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session-file", "", "Session file (default: user config dir)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Request timeout")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(themesCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(generateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(1)
	}
}

// describe prefers the fixed user facing message for API errors.
func describe(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrSessionExpired),
		errors.Is(err, client.ErrPermissionDenied),
		errors.Is(err, client.ErrNotFound),
		errors.Is(err, client.ErrNetwork),
		errors.Is(err, client.ErrInvalidCredentials),
		errors.As(err, &apiErr):
		return client.UserMessage(err)
	case errors.Is(err, session.ErrNoSession):
		return "You are not logged in. Run 'wfhr login' first."
	}
	return err.Error()
}

func sessionStore() (*session.Store, error) {
	path := sessionFile
	if path == "" {
		p, err := session.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return session.NewStore(path), nil
}

// resolveAPIURL: flag, then WFHR_API_URL, then the URL the session was created against.
func resolveAPIURL(sess *session.Session) string {
	if u := strings.TrimSpace(apiURL); u != "" {
		return u
	}
	if u := strings.TrimSpace(os.Getenv("WFHR_API_URL")); u != "" {
		return u
	}
	if sess != nil && sess.APIURL != "" {
		return sess.APIURL
	}
	return defaultAPIURL
}

// withClient loads the session, runs fn with an authenticated client and
// forgets the session when the server rejects it.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	store, err := sessionStore()
	if err != nil {
		return err
	}
	sess, err := store.Load()
	if err != nil {
		return err
	}
	if sess.Expired(time.Now()) {
		_ = store.Clear()
		return client.ErrSessionExpired
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	err = fn(ctx, client.New(resolveAPIURL(sess), sess))
	if errors.Is(err, client.ErrSessionExpired) {
		_ = store.Clear()
	}
	return err
}
