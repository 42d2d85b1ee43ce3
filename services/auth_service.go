package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"consultancy-cms/config"
	"consultancy-cms/models"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

type AuthService interface {
	RequestEmailSignIn(ctx context.Context, req models.EmailSignInRequest) error
	CompleteEmailSignIn(ctx context.Context, req models.EmailCallbackRequest) (*models.AuthResponse, error)
	OAuthSignIn(ctx context.Context, req models.OAuthCallbackRequest) (*models.AuthResponse, error)
	RefreshSession(ctx context.Context) (*models.AuthResponse, error)
	SignOut(ctx context.Context, sessionToken string) error
	GetProfile(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (*models.AdapterUser, error)
	ParseAccessToken(tokenString string) (string, error)
}

type AuthOptions struct {
	JWT                  config.JWTConfig
	SessionTTL           time.Duration
	VerificationTokenTTL time.Duration
	SiteURL              string
}

type authService struct {
	identity IdentityAdapter
	sessions SessionService
	notifier Notifier
	opts     AuthOptions
	log      *slog.Logger
	now      func() time.Time
}

func NewAuthService(identity IdentityAdapter, sessions SessionService, notifier Notifier, opts AuthOptions, log *slog.Logger) AuthService {
	if log == nil {
		log = slog.Default()
	}
	return &authService{
		identity: identity,
		sessions: sessions,
		notifier: notifier,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

var errInvalidSignInLink = models.ErrorValidation{Field: "token", Message: "sign-in link is invalid or has expired"}

// RequestEmailSignIn issues a single-use token for email and mails the
// sign-in link. Only the token hash is stored.
func (s *authService) RequestEmailSignIn(ctx context.Context, req models.EmailSignInRequest) error {
	email := normalizeEmail(req.Email)
	token := newOpaqueToken()

	_, err := s.identity.CreateVerificationToken(ctx, models.VerificationToken{
		Identifier: email,
		Token:      s.hashToken(token),
		Expires:    s.now().Add(s.opts.VerificationTokenTTL).UTC(),
	})
	if err != nil {
		return err
	}

	link, err := s.signInLink(req.CallbackURL, email, token)
	if err != nil {
		return err
	}
	s.notifier.SendSignInLink(ctx, email, link)
	s.log.Info("sign-in link issued", slog.String("email", email))
	return nil
}

func (s *authService) signInLink(callbackURL, email, token string) (string, error) {
	base := strings.TrimRight(s.opts.SiteURL, "/") + "/auth/verify"
	if callbackURL != "" {
		if !strings.HasPrefix(callbackURL, strings.TrimRight(s.opts.SiteURL, "/")+"/") {
			return "", models.ErrorValidation{Field: "callback_url", Message: "must point at this site"}
		}
		base = callbackURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", models.ErrorValidation{Field: "callback_url", Message: "is not a valid URL"}
	}
	q := u.Query()
	q.Set("email", email)
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *authService) CompleteEmailSignIn(ctx context.Context, req models.EmailCallbackRequest) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	vt, err := s.identity.UseVerificationToken(ctx, email, s.hashToken(req.Token))
	if err != nil {
		return nil, err
	}
	if vt == nil || vt.Expired(s.now()) {
		return nil, errInvalidSignInLink
	}

	user, err := s.identity.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	switch {
	case user == nil:
		user, err = s.identity.CreateUser(ctx, models.NewUserInput{Email: email, EmailVerified: now})
	case user.EmailVerified == nil:
		user, err = s.identity.UpdateUser(ctx, models.UserPatch{
			ID:            user.ID,
			EmailVerified: models.Some(models.VerifiedAt(now)),
		})
	}
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, user)
}

// OAuthSignIn signs in through an already linked account, or creates the
// user and links the account. An existing user with the same email but no
// link to this provider is refused.
func (s *authService) OAuthSignIn(ctx context.Context, req models.OAuthCallbackRequest) (*models.AuthResponse, error) {
	account := req.Account
	if account.Provider == "" || account.ProviderAccountID == "" {
		return nil, models.ErrorValidation{Field: "account", Message: "provider and provider_account_id are required"}
	}

	user, err := s.identity.GetUserByAccount(ctx, account.Provider, account.ProviderAccountID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		account.UserID = user.ID
		if _, err := s.identity.UpdateAccount(ctx, account); err != nil {
			return nil, err
		}
		return s.startSession(ctx, user)
	}

	existing, err := s.identity.GetUserByEmail(ctx, req.Profile.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.ErrorConflict{Message: "email is already registered with another sign-in method"}
	}

	user, _, err = s.identity.CreateUserWithAccount(ctx, req.Profile, account)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, user)
}

func (s *authService) startSession(ctx context.Context, user *models.AdapterUser) (*models.AuthResponse, error) {
	if !models.ResolveStatus(user.Status).CanSignIn() {
		return nil, models.ErrorForbidden{Message: "this account is not allowed to sign in"}
	}
	session, err := s.identity.CreateSession(ctx, models.Session{
		SessionToken: newOpaqueToken(),
		UserID:       user.ID,
		Expires:      s.now().Add(s.opts.SessionTTL).UTC(),
	})
	if err != nil {
		return nil, err
	}
	return s.respond(session, user)
}

func (s *authService) respond(session *models.Session, user *models.AdapterUser) (*models.AuthResponse, error) {
	accessToken, err := s.generateToken(session, user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{
		SessionToken: session.SessionToken,
		AccessToken:  accessToken,
		Expires:      session.Expires.Unix(),
		User:         user,
	}, nil
}

// RefreshSession pushes the current session's expiry forward by the session
// TTL and issues a fresh access token.
func (s *authService) RefreshSession(ctx context.Context) (*models.AuthResponse, error) {
	current, err := s.sessions.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	session, err := s.identity.UpdateSession(ctx, current.SessionToken, s.now().Add(s.opts.SessionTTL))
	if err != nil {
		if isNotFound(err) {
			return nil, models.ErrorUnauthenticated{}
		}
		return nil, err
	}
	user, err := s.identity.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.ErrorUnauthenticated{}
	}
	return s.respond(session, user)
}

// SignOut deletes the session. Signing out twice is not an error.
func (s *authService) SignOut(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}
	if err := s.identity.DeleteSession(ctx, sessionToken); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (s *authService) GetProfile(ctx context.Context) (*models.User, error) {
	session, err := s.sessions.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.identity.GetUserRecord(ctx, session.User.ID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.ErrorNotFound{Entity: "user", ID: session.User.ID}
	}
	return user, nil
}

func (s *authService) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (*models.AdapterUser, error) {
	session, err := s.sessions.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	patch := models.UserPatch{ID: session.User.ID, Name: req.Name, Image: req.Image}
	if patch.Empty() {
		return nil, models.ErrorValidation{Field: "profile", Message: "nothing to update"}
	}
	if patch.Image.Set && patch.Image.Value != nil {
		if u, err := url.ParseRequestURI(*patch.Image.Value); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, models.ErrorValidation{Field: "image", Message: "must be an http(s) URL"}
		}
	}
	return s.identity.UpdateUser(ctx, patch)
}

func (s *authService) generateToken(session *models.Session, user *models.AdapterUser) (string, error) {
	now := s.now()
	exp := now.Add(s.opts.JWT.Expiration)
	if session.Expires.Before(exp) {
		exp = session.Expires
	}

	claims := jwt.MapClaims{
		"sid":     session.ID,
		"user_id": user.ID,
		"role":    models.ResolveRole(user.Role),
		"exp":     exp.Unix(),
		"iat":     now.Unix(),
		"nbf":     now.Unix(),
	}
	if s.opts.JWT.Issuer != "" {
		claims["iss"] = s.opts.JWT.Issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.opts.JWT.SecretBytes())
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies an access token and returns the session id it
// names. The session token itself never leaves the cookie.
func (s *authService) ParseAccessToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.opts.JWT.SecretBytes(), nil
	})
	if err != nil || !token.Valid {
		return "", models.ErrorUnauthenticated{}
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", models.ErrorUnauthenticated{}
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return "", models.ErrorUnauthenticated{}
	}
	return sid, nil
}

func (s *authService) hashToken(token string) string {
	mac := hmac.New(sha256.New, s.opts.JWT.SecretBytes())
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func newOpaqueToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")
}
