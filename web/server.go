// ABOUTME: Web UI server with embedded templates
// ABOUTME: Serves the password-protected contact grid, card images and the dashboard
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harperreed/cardsync/blob"
	"github.com/harperreed/cardsync/intake"
	"github.com/harperreed/cardsync/record"
	"github.com/harperreed/cardsync/store"
)

//go:embed templates/*
var templatesFS embed.FS

type Server struct {
	store  *store.Store
	images blob.Bucket
	intake *intake.Intake
	auth   *Auth
	logger *zap.Logger
	engine *gin.Engine
}

// Options wires the server. Intake may be nil, which disables card upload.
type Options struct {
	Store  *store.Store
	Images blob.Bucket
	Intake *intake.Intake
	Auth   *Auth
	Logger *zap.Logger
}

func NewServer(opts Options) (*Server, error) {
	if opts.Auth == nil {
		return nil, fmt.Errorf("web server needs an Auth")
	}

	// Helper functions for templates
	funcMap := template.FuncMap{
		"joinTags": record.JoinTags,
		"initials": initials,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"imageSrc": imageSrc,
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		store:  opts.Store,
		images: opts.Images,
		intake: opts.Intake,
		auth:   opts.Auth,
		logger: logger.Named("web"),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.logRequests())
	engine.SetHTMLTemplate(tmpl)
	s.routes(engine)
	s.engine = engine
	return s, nil
}

func (s *Server) routes(r *gin.Engine) {
	r.Use(s.auth.Middleware())

	r.GET("/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "login.html", gin.H{"Title": "Sign in"})
	})
	r.POST("/api/login", s.auth.handleLogin)
	r.POST("/logout", s.auth.handleLogout)

	r.GET("/", s.handleContacts)
	r.GET("/dashboard", s.handleDashboard)
	r.GET("/graph", s.handleGraph)

	r.POST("/contacts", s.handleAddContact)
	r.GET("/contacts/:id", s.handleContactDetail)
	r.POST("/contacts/:id", s.handleUpdateContact)
	r.POST("/contacts/:id/delete", s.handleDeleteContact)

	r.POST("/api/duplicates", s.handleCheckDuplicate)
	r.POST("/api/parse-card", s.handleParseCard)
	r.GET("/images/*path", s.handleImage)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting web server", zap.String("addr", "http://"+addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("stopping web server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.String(http.StatusInternalServerError, err.Error())
}

// imageSrc points bucket image keys at the image route and leaves full URLs alone.
func imageSrc(u string) string {
	if strings.HasPrefix(u, intake.ImagePrefix) {
		return "/images/" + strings.TrimPrefix(u, intake.ImagePrefix)
	}
	return u
}

func initials(name string) string {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes))
}
