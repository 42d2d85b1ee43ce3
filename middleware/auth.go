package middleware

import (
	"context"
	"log/slog"
	"strings"

	"consultancy-cms/helper"
	"consultancy-cms/models"
	"consultancy-cms/services"

	"github.com/gin-gonic/gin"
)

const SessionCookie = "session_token"

// TokenParser extracts the session id from a signed access token.
type TokenParser interface {
	ParseAccessToken(tokenString string) (string, error)
}

// SessionResolver turns a cookie's session token, or the session id from an
// access token, into a session.
type SessionResolver interface {
	Resolve(ctx context.Context, sessionToken string) (*models.AppSession, error)
	ResolveByID(ctx context.Context, sessionID string) (*models.AppSession, error)
}

type Auth struct {
	sessions SessionResolver
	tokens   TokenParser
	Helper   *helper.HTTPHelper
	log      *slog.Logger
}

func NewAuth(sessions SessionResolver, tokens TokenParser, h *helper.HTTPHelper, log *slog.Logger) *Auth {
	if log == nil {
		log = slog.Default()
	}
	return &Auth{sessions: sessions, tokens: tokens, Helper: h, log: log}
}

// SessionMiddleware attaches the caller's session to the request context.
// Requests without credentials continue anonymously; a bearer token that
// fails verification is rejected.
func (a *Auth) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			key     string
			resolve func(context.Context, string) (*models.AppSession, error)
		)
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				a.Helper.SendUnauthorizedError(c, "Bearer token required", a.Helper.EmptyJsonMap())
				c.Abort()
				return
			}
			sid, err := a.tokens.ParseAccessToken(tokenString)
			if err != nil {
				a.Helper.SendUnauthorizedError(c, "Token is not valid", a.Helper.EmptyJsonMap())
				c.Abort()
				return
			}
			key, resolve = sid, a.sessions.ResolveByID
		} else if cookie, err := c.Cookie(SessionCookie); err == nil {
			key, resolve = cookie, a.sessions.Resolve
		}

		if key != "" {
			session, err := resolve(c.Request.Context(), key)
			if err != nil {
				a.log.Error("session lookup failed", slog.Any("error", err))
				a.Helper.SendServiceError(c, err)
				c.Abort()
				return
			}
			if session != nil {
				c.Request = c.Request.WithContext(services.ContextWithSession(c.Request.Context(), session))
				c.Set("user_id", session.User.ID)
				c.Set("role", string(session.User.Role))
			}
		}

		c.Next()
	}
}

// Guard is one of the SessionService Require* checks.
type Guard func(ctx context.Context) (*models.AppSession, error)

// Require aborts the request unless guard passes for its session.
func (a *Auth) Require(guard Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := guard(c.Request.Context()); err != nil {
			a.Helper.SendServiceError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
