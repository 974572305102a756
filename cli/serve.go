// ABOUTME: Web UI subcommand
// ABOUTME: Serves the password-protected contact browser until interrupted
package cli

import (
	"context"
	"flag"

	"github.com/gin-gonic/gin"

	"github.com/harperreed/cardsync/store"
	"github.com/harperreed/cardsync/web"
)

// ServeCommand starts the web UI.
func ServeCommand(ctx context.Context, rt *store.Runtime, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", rt.Config.Web.Addr, "Listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	auth, err := web.NewAuth(rt.Config.Web.AdminPassword, rt.Config.Web.SessionSecret,
		rt.Config.Web.SessionTTL, rt.Config.Web.SecureCookie)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	server, err := web.NewServer(web.Options{
		Store:  rt.Store,
		Images: rt.Bucket,
		Intake: NewIntake(rt),
		Auth:   auth,
		Logger: rt.Logger,
	})
	if err != nil {
		return err
	}
	return server.Start(ctx, *addr)
}
