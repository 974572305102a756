// ABOUTME: Google Contacts CLI commands
// ABOUTME: Runs the OAuth consent flow and imports contacts from the People API
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/store"
	"github.com/harperreed/cardsync/sync"
)

// GoogleAuthCommand handles OAuth setup
func GoogleAuthCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("google-auth", flag.ContinueOnError)
	noBrowser := fs.Bool("no-browser", false, "Print the consent URL without opening a browser")
	if err := fs.Parse(args); err != nil {
		return err
	}

	oauthCfg, err := sync.NewOAuthConfig(rt.Config.Google)
	if err != nil {
		return err
	}
	redirect, err := url.Parse(oauthCfg.RedirectURL)
	if err != nil {
		return fmt.Errorf("invalid GOOGLE_REDIRECT_URL: %w", err)
	}

	state := uuid.NewString()
	callbackChan := make(chan *oauth2.Token, 1)
	errChan := make(chan error, 1)
	fail := func(err error) {
		select {
		case errChan <- err:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			fail(errors.New("state mismatch in OAuth callback"))
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			fail(fmt.Errorf("no authorization code received"))
			return
		}

		token, err := oauthCfg.Exchange(ctx, code)
		if err != nil {
			http.Error(w, "exchange failed", http.StatusBadGateway)
			fail(fmt.Errorf("failed to exchange code: %w", err))
			return
		}

		select {
		case callbackChan <- token:
		default:
		}
		_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
	})

	server := &http.Server{Addr: redirect.Host, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			fail(err)
		}
	}()
	defer func() { _ = server.Shutdown(context.Background()) }()

	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	_, _ = fmt.Fprintln(out, "Opening browser for Google OAuth...")
	_, _ = fmt.Fprintf(out, "\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)
	if !*noBrowser {
		_ = openBrowser(authURL)
	}

	select {
	case token := <-callbackChan:
		path := rt.Config.GoogleTokenPath()
		if err := sync.SaveToken(path, token); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
		_, _ = fmt.Fprintf(out, "\n✓ Authenticated successfully\n")
		_, _ = fmt.Fprintf(out, "✓ Tokens saved to %s\n\n", path)
		_, _ = fmt.Fprintln(out, "Run 'cardsync import-google' to import contacts.")
		return nil
	case err := <-errChan:
		return fmt.Errorf("OAuth flow failed: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ImportGoogleCommand imports Google Contacts into the store
func ImportGoogleCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("import-google", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "Report without writing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	oauthCfg, err := sync.NewOAuthConfig(rt.Config.Google)
	if err != nil {
		return err
	}
	path := rt.Config.GoogleTokenPath()
	token, err := sync.LoadToken(path)
	if err != nil {
		return fmt.Errorf("no authentication token found. Run 'cardsync google-auth' first: %w", err)
	}

	client, err := sync.NewPeopleClient(ctx, sync.TokenSource(ctx, oauthCfg, token, path))
	if err != nil {
		return err
	}

	importer := sync.NewContactsImporter(rt.Store, rt.DB, rt.Logger)
	importer.DryRun = *dryRun

	var report *sync.ImportReport
	tracker := &db.Tracker{DB: rt.DB}
	run := func() (string, error) {
		var err error
		report, err = importer.ImportContacts(ctx, client)
		if err != nil {
			return "", err
		}
		return report.String(), nil
	}
	if *dryRun {
		_, err = run()
	} else {
		err = tracker.Run(ctx, db.JobImport, run)
	}
	if err != nil {
		return fmt.Errorf("google contacts import failed: %w", err)
	}

	heading("GOOGLE CONTACTS", *dryRun)
	_, _ = fmt.Fprintf(out, "✓ %s\n", report)
	for _, name := range report.Failed {
		_, _ = fmt.Fprintf(out, "  failed: %s\n", name)
	}
	return nil
}

// openBrowser attempts to open URL in default browser
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	return exec.Command(cmd, args...).Start()
}
