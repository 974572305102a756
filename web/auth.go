// ABOUTME: Password login and signed session cookies for the web UI
// ABOUTME: Issues HS256 tokens and gates every route except the login page
package web

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// SessionCookie names the cookie holding the session token.
const SessionCookie = "session"

const sessionSubject = "admin"

var errBadSession = errors.New("invalid session")

// Auth checks the admin password and signs sessions.
type Auth struct {
	password []byte
	key      []byte
	ttl      time.Duration
	secure   bool
	now      func() time.Time
}

// NewAuth builds an Auth. With an empty secret a random key is generated,
// so sessions do not survive a restart.
func NewAuth(password, secret string, ttl time.Duration, secure bool) (*Auth, error) {
	if password == "" {
		return nil, fmt.Errorf("an admin password is required to serve the web UI")
	}
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate session key: %w", err)
		}
	}
	return &Auth{
		password: []byte(password),
		key:      key,
		ttl:      ttl,
		secure:   secure,
		now:      time.Now,
	}, nil
}

// CheckPassword compares in constant time.
func (a *Auth) CheckPassword(password string) bool {
	return subtle.ConstantTimeCompare([]byte(password), a.password) == 1
}

// Issue signs a new session token.
func (a *Auth) Issue() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
}

// Verify checks the signature, algorithm and expiry of a token.
func (a *Auth) Verify(token string) error {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.key, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid || claims.Subject != sessionSubject {
		return errBadSession
	}
	return nil
}

func (a *Auth) authenticated(c *gin.Context) bool {
	token, err := c.Cookie(SessionCookie)
	if err != nil || token == "" {
		return false
	}
	return a.Verify(token) == nil
}

func isPublicPath(p string) bool {
	return p == "/login" || strings.HasPrefix(p, "/api/login")
}

// Middleware sends signed-out visitors to the login page and signed-in
// visitors away from it. API calls get a 401 instead of a redirect.
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		public := isPublicPath(path)
		ok := a.authenticated(c)

		switch {
		case public && ok && c.Request.Method == http.MethodGet:
			c.Redirect(http.StatusFound, "/")
			c.Abort()
		case !public && !ok:
			if strings.HasPrefix(path, "/api/") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
				return
			}
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
		default:
			c.Next()
		}
	}
}

type loginInput struct {
	Password string `json:"password" form:"password" binding:"required"`
}

func (a *Auth) handleLogin(c *gin.Context) {
	wantsJSON := strings.HasPrefix(c.ContentType(), "application/json")

	var input loginInput
	if err := c.ShouldBind(&input); err != nil || !a.CheckPassword(input.Password) {
		if wantsJSON {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Incorrect password"})
			return
		}
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{"Title": "Sign in", "Error": "Incorrect password"})
		return
	}

	token, err := a.Issue()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, int(a.ttl.Seconds()), "/", "", a.secure, true)

	if wantsJSON {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (a *Auth) handleLogout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", a.secure, true)
	c.Redirect(http.StatusSeeOther, "/login")
}
