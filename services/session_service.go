package services

import (
	"context"
	"strings"

	"consultancy-cms/models"
)

type sessionKey struct{}

// ContextWithSession stores a resolved session on ctx. A nil session leaves
// the request anonymous.
func ContextWithSession(ctx context.Context, session *models.AppSession) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session stored by ContextWithSession.
func SessionFromContext(ctx context.Context) *models.AppSession {
	session, _ := ctx.Value(sessionKey{}).(*models.AppSession)
	return session
}

// SessionService resolves raw session tokens into role-annotated sessions and
// guards privileged operations. All admin-facing services route through its
// Require* methods.
type SessionService interface {
	Resolve(ctx context.Context, sessionToken string) (*models.AppSession, error)
	ResolveByID(ctx context.Context, sessionID string) (*models.AppSession, error)
	GetSession(ctx context.Context) *models.AppSession
	GetCurrentUser(ctx context.Context) *models.SessionUser
	RequireSession(ctx context.Context) (*models.AppSession, error)
	RequireAdmin(ctx context.Context) (*models.AppSession, error)
	RequireSuperAdmin(ctx context.Context) (*models.AppSession, error)
	IsAdmin(session *models.AppSession) bool
}

type sessionService struct {
	identity    IdentityAdapter
	adminEmails map[string]struct{}
}

// NewSessionService builds the guard layer. adminEmails is the operator
// allow-list whose sessions pass RequireAdmin whatever their stored role.
func NewSessionService(identity IdentityAdapter, adminEmails []string) SessionService {
	allow := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		if email = normalizeEmail(email); email != "" {
			allow[email] = struct{}{}
		}
	}
	return &sessionService{identity: identity, adminEmails: allow}
}

// Resolve loads the session row and its user. Expired sessions, sessions of
// deleted users and sessions of users who may not sign in resolve to nil.
func (s *sessionService) Resolve(ctx context.Context, sessionToken string) (*models.AppSession, error) {
	if sessionToken == "" {
		return nil, nil
	}
	return appSession(s.identity.GetSessionAndUser(ctx, sessionToken))
}

// ResolveByID is Resolve keyed by the session row id carried in access
// tokens.
func (s *sessionService) ResolveByID(ctx context.Context, sessionID string) (*models.AppSession, error) {
	if sessionID == "" {
		return nil, nil
	}
	return appSession(s.identity.GetSessionAndUserByID(ctx, sessionID))
}

func appSession(session *models.Session, user *models.User, err error) (*models.AppSession, error) {
	if err != nil || session == nil {
		return nil, err
	}
	status := models.ResolveStatus(user.Status)
	if !status.CanSignIn() {
		return nil, nil
	}
	return &models.AppSession{
		SessionToken: session.SessionToken,
		Expires:      session.Expires,
		User: models.SessionUser{
			ID:     user.ID,
			Email:  user.Email,
			Name:   user.Name,
			Image:  user.Image,
			Role:   models.ResolveRole(user.Role),
			Status: status,
		},
	}, nil
}

func (s *sessionService) GetSession(ctx context.Context) *models.AppSession {
	return SessionFromContext(ctx)
}

func (s *sessionService) GetCurrentUser(ctx context.Context) *models.SessionUser {
	session := SessionFromContext(ctx)
	if session == nil {
		return nil
	}
	return &session.User
}

func (s *sessionService) RequireSession(ctx context.Context) (*models.AppSession, error) {
	session := SessionFromContext(ctx)
	if session == nil {
		return nil, models.ErrorUnauthenticated{}
	}
	return session, nil
}

func (s *sessionService) RequireAdmin(ctx context.Context) (*models.AppSession, error) {
	session, err := s.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	if !s.IsAdmin(session) {
		return nil, models.ErrorForbidden{Message: "administrator access required"}
	}
	return session, nil
}

func (s *sessionService) RequireSuperAdmin(ctx context.Context) (*models.AppSession, error) {
	session, err := s.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	if session.User.Role != models.RoleSuperAdmin {
		return nil, models.ErrorForbidden{Message: "super administrator access required"}
	}
	return session, nil
}

// IsAdmin reports whether the session holds an admin role or belongs to an
// allow-listed operator email.
func (s *sessionService) IsAdmin(session *models.AppSession) bool {
	if session == nil {
		return false
	}
	if session.User.Role.IsAdmin() {
		return true
	}
	_, ok := s.adminEmails[strings.ToLower(session.User.Email)]
	return ok
}
