package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"
)

func sheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Google Sheets journal setup",
	}
	cmd.AddCommand(sheetsAuthCmd())
	return cmd
}

// sheetsAuthCmd runs the OAuth consent flow once and stores the token the
// worker uses to append journal rows.
func sheetsAuthCmd() *cobra.Command {
	var (
		port    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize ledgerdesk to write the journal spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := oauthClientJSON()
			if err != nil {
				return err
			}
			oc, err := google.ConfigFromJSON(b, sheets.SpreadsheetsScope)
			if err != nil {
				return fmt.Errorf("oauth config: %w", err)
			}
			// The OAuth client must list this URI as an authorized redirect
			oc.RedirectURL = "http://localhost:" + port + "/callback"

			code, err := awaitCode(cmd, oc, port, timeout)
			if err != nil {
				return err
			}
			tok, err := oc.Exchange(cmd.Context(), code)
			if err != nil {
				return fmt.Errorf("token exchange: %w", err)
			}

			outFile := cfg.GoogleOAuthTokenFile
			if outFile == "" {
				outFile = "token.json"
			}
			f, err := os.OpenFile(outFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
			if err != nil {
				return fmt.Errorf("open token file: %w", err)
			}
			defer f.Close()
			if err := json.NewEncoder(f).Encode(tok); err != nil {
				return fmt.Errorf("write token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", outFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "8085", "local port for the OAuth redirect")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for consent")
	return cmd
}

func oauthClientJSON() ([]byte, error) {
	switch {
	case cfg.GoogleOAuthClientJSON != "":
		return []byte(cfg.GoogleOAuthClientJSON), nil
	case cfg.GoogleOAuthClientFile != "":
		b, err := os.ReadFile(cfg.GoogleOAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}
}

// awaitCode serves the redirect endpoint until the consent screen calls back.
func awaitCode(cmd *cobra.Command, oc *oauth2.Config, port string, timeout time.Duration) (string, error) {
	type result struct {
		code string
		err  error
	}
	resCh := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			select {
			case resCh <- result{err: fmt.Errorf("oauth error: %s", errStr)}:
			default:
			}
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case resCh <- result{code: r.URL.Query().Get("code")}:
		default:
		}
	})
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	url := oc.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to authorize:\n%s\n", url)

	select {
	case res := <-resCh:
		return res.code, res.err
	case <-time.After(timeout):
		return "", errors.New("authorization timed out")
	case <-cmd.Context().Done():
		return "", cmd.Context().Err()
	}
}
