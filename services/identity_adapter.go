package services

import (
	"context"
	"strings"
	"time"

	"consultancy-cms/models"
	"consultancy-cms/repositories"

	"gopkg.in/go-playground/validator.v9"
)

// IdentityAdapter translates the session provider's user/account/session/
// verification-token vocabulary onto the application's user model.
//
// Point lookups return nil on a miss. Updates and deletes of a missing row
// return models.ErrorNotFound; uniqueness violations return
// models.ErrorConflict.
type IdentityAdapter interface {
	CreateUser(ctx context.Context, in models.NewUserInput) (*models.AdapterUser, error)
	CreateUserWithAccount(ctx context.Context, in models.NewUserInput, account models.LinkedAccount) (*models.AdapterUser, *models.LinkedAccount, error)
	GetUser(ctx context.Context, id string) (*models.AdapterUser, error)
	GetUserByEmail(ctx context.Context, email string) (*models.AdapterUser, error)
	GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*models.AdapterUser, error)
	GetUserRecord(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, patch models.UserPatch) (*models.AdapterUser, error)
	DeleteUser(ctx context.Context, id string) error

	LinkAccount(ctx context.Context, account models.LinkedAccount) (*models.LinkedAccount, error)
	GetAccount(ctx context.Context, provider, providerAccountID string) (*models.LinkedAccount, error)
	GetAccountByUserID(ctx context.Context, userID string) (*models.LinkedAccount, error)
	UpdateAccount(ctx context.Context, account models.LinkedAccount) (*models.LinkedAccount, error)
	DeleteAccount(ctx context.Context, provider, providerAccountID string) error

	CreateSession(ctx context.Context, session models.Session) (*models.Session, error)
	GetSession(ctx context.Context, token string) (*models.Session, error)
	GetSessionAndUser(ctx context.Context, token string) (*models.Session, *models.User, error)
	GetSessionAndUserByID(ctx context.Context, id string) (*models.Session, *models.User, error)
	UpdateSession(ctx context.Context, token string, expires time.Time) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteUserSessions(ctx context.Context, userIDs []string) (int64, error)

	CreateVerificationToken(ctx context.Context, token models.VerificationToken) (*models.VerificationToken, error)
	GetVerificationToken(ctx context.Context, identifier, token string) (*models.VerificationToken, error)
	DeleteVerificationToken(ctx context.Context, identifier, token string) error
	UseVerificationToken(ctx context.Context, identifier, token string) (*models.VerificationToken, error)

	PurgeExpired(ctx context.Context) (sessions int64, tokens int64, err error)
}

type identityAdapter struct {
	users    repositories.UserRepository
	accounts repositories.AccountRepository
	sessions repositories.SessionRepository
	tokens   repositories.VerificationTokenRepository
	validate *validator.Validate
	now      func() time.Time
}

func NewIdentityAdapter(
	users repositories.UserRepository,
	accounts repositories.AccountRepository,
	sessions repositories.SessionRepository,
	tokens repositories.VerificationTokenRepository,
	validate *validator.Validate,
) IdentityAdapter {
	if validate == nil {
		validate = validator.New()
	}
	return &identityAdapter{
		users:    users,
		accounts: accounts,
		sessions: sessions,
		tokens:   tokens,
		validate: validate,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *identityAdapter) validEmail(email string) error {
	if err := a.validate.Var(email, "required,email"); err != nil {
		return models.ErrorValidation{Field: "email", Message: "must be a valid email address"}
	}
	return nil
}

func (a *identityAdapter) CreateUser(ctx context.Context, in models.NewUserInput) (*models.AdapterUser, error) {
	user, err := a.newUser(in)
	if err != nil {
		return nil, err
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user.ToAdapterUser(), nil
}

// CreateUserWithAccount creates a user together with its first linked
// account. A failed link leaves no user behind.
func (a *identityAdapter) CreateUserWithAccount(ctx context.Context, in models.NewUserInput, account models.LinkedAccount) (*models.AdapterUser, *models.LinkedAccount, error) {
	user, err := a.newUser(in)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case account.Provider == "":
		return nil, nil, models.ErrorValidation{Field: "provider", Message: "is required"}
	case account.ProviderAccountID == "":
		return nil, nil, models.ErrorValidation{Field: "providerAccountId", Message: "is required"}
	}
	account.ID = ""
	if err := a.users.CreateWithAccount(ctx, user, &account); err != nil {
		return nil, nil, err
	}
	return user.ToAdapterUser(), &account, nil
}

func (a *identityAdapter) newUser(in models.NewUserInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if err := a.validEmail(email); err != nil {
		return nil, err
	}
	verified, err := models.ParseEmailVerified(in.EmailVerified, a.now())
	if err != nil {
		return nil, err
	}
	return &models.User{
		Email:         email,
		Name:          in.Name,
		Image:         in.Image,
		Role:          models.RoleViewer,
		Status:        models.StatusActive,
		EmailVerified: verified,
	}, nil
}

func (a *identityAdapter) GetUser(ctx context.Context, id string) (*models.AdapterUser, error) {
	user, err := missing(a.users.GetByID(ctx, id))
	if err != nil || user == nil {
		return nil, err
	}
	return user.ToAdapterUser(), nil
}

func (a *identityAdapter) GetUserByEmail(ctx context.Context, email string) (*models.AdapterUser, error) {
	user, err := missing(a.users.GetByEmail(ctx, normalizeEmail(email)))
	if err != nil || user == nil {
		return nil, err
	}
	return user.ToAdapterUser(), nil
}

func (a *identityAdapter) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*models.AdapterUser, error) {
	account, err := a.GetAccount(ctx, provider, providerAccountID)
	if err != nil || account == nil {
		return nil, err
	}
	return a.GetUser(ctx, account.UserID)
}

// GetUserRecord returns the stored user with the full three-state
// verification, or nil on a miss.
func (a *identityAdapter) GetUserRecord(ctx context.Context, id string) (*models.User, error) {
	return missing(a.users.GetByID(ctx, id))
}

// UpdateUser applies a sparse patch. Role and status are written whenever
// they are present in the patch, including empty values.
func (a *identityAdapter) UpdateUser(ctx context.Context, patch models.UserPatch) (*models.AdapterUser, error) {
	if strings.TrimSpace(patch.ID) == "" {
		return nil, models.ErrorValidation{Field: "id", Message: "is required"}
	}
	if patch.Email.Set {
		patch.Email.Value = normalizeEmail(patch.Email.Value)
		if err := a.validEmail(patch.Email.Value); err != nil {
			return nil, err
		}
	}
	if patch.Role.Set && patch.Role.Value != "" && !patch.Role.Value.Valid() {
		return nil, models.ErrorValidation{Field: "role", Message: "unknown role"}
	}
	if patch.Status.Set && patch.Status.Value != "" && !patch.Status.Value.Valid() {
		return nil, models.ErrorValidation{Field: "status", Message: "unknown status"}
	}
	user, err := a.users.Update(ctx, patch)
	if err != nil {
		return nil, err
	}
	return user.ToAdapterUser(), nil
}

func (a *identityAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.users.DeleteCascade(ctx, id)
}

func (a *identityAdapter) LinkAccount(ctx context.Context, account models.LinkedAccount) (*models.LinkedAccount, error) {
	switch {
	case account.UserID == "":
		return nil, models.ErrorValidation{Field: "userId", Message: "is required"}
	case account.Provider == "":
		return nil, models.ErrorValidation{Field: "provider", Message: "is required"}
	case account.ProviderAccountID == "":
		return nil, models.ErrorValidation{Field: "providerAccountId", Message: "is required"}
	}
	if err := a.accounts.Create(ctx, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (a *identityAdapter) GetAccount(ctx context.Context, provider, providerAccountID string) (*models.LinkedAccount, error) {
	return missing(a.accounts.GetByProvider(ctx, provider, providerAccountID))
}

func (a *identityAdapter) GetAccountByUserID(ctx context.Context, userID string) (*models.LinkedAccount, error) {
	return missing(a.accounts.GetByUserID(ctx, userID))
}

func (a *identityAdapter) UpdateAccount(ctx context.Context, account models.LinkedAccount) (*models.LinkedAccount, error) {
	return a.accounts.Update(ctx, &account)
}

func (a *identityAdapter) DeleteAccount(ctx context.Context, provider, providerAccountID string) error {
	return a.accounts.Delete(ctx, provider, providerAccountID)
}

func (a *identityAdapter) CreateSession(ctx context.Context, session models.Session) (*models.Session, error) {
	if session.SessionToken == "" {
		return nil, models.ErrorValidation{Field: "sessionToken", Message: "is required"}
	}
	if session.UserID == "" {
		return nil, models.ErrorValidation{Field: "userId", Message: "is required"}
	}
	if err := a.sessions.Create(ctx, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSession treats an expired row as a miss and evicts it.
func (a *identityAdapter) GetSession(ctx context.Context, token string) (*models.Session, error) {
	session, err := missing(a.sessions.GetByToken(ctx, token))
	if err != nil || session == nil {
		return nil, err
	}
	if session.Expired(a.now()) {
		if err := a.sessions.Delete(ctx, token); err != nil && !isNotFound(err) {
			return nil, err
		}
		return nil, nil
	}
	return session, nil
}

func (a *identityAdapter) GetSessionAndUser(ctx context.Context, token string) (*models.Session, *models.User, error) {
	session, err := a.GetSession(ctx, token)
	if err != nil || session == nil {
		return nil, nil, err
	}
	user, err := a.GetUserRecord(ctx, session.UserID)
	if err != nil || user == nil {
		return nil, nil, err
	}
	return session, user, nil
}

// GetSessionAndUserByID looks a session up by its row id, as carried in an
// access token. Expired rows are a miss and are evicted.
func (a *identityAdapter) GetSessionAndUserByID(ctx context.Context, id string) (*models.Session, *models.User, error) {
	session, err := missing(a.sessions.GetByID(ctx, id))
	if err != nil || session == nil {
		return nil, nil, err
	}
	if session.Expired(a.now()) {
		if err := a.sessions.Delete(ctx, session.SessionToken); err != nil && !isNotFound(err) {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	user, err := a.GetUserRecord(ctx, session.UserID)
	if err != nil || user == nil {
		return nil, nil, err
	}
	return session, user, nil
}

func (a *identityAdapter) UpdateSession(ctx context.Context, token string, expires time.Time) (*models.Session, error) {
	return a.sessions.UpdateExpiry(ctx, token, expires.UTC())
}

func (a *identityAdapter) DeleteSession(ctx context.Context, token string) error {
	return a.sessions.Delete(ctx, token)
}

func (a *identityAdapter) DeleteUserSessions(ctx context.Context, userIDs []string) (int64, error) {
	return a.sessions.DeleteByUserIDs(ctx, userIDs)
}

func (a *identityAdapter) CreateVerificationToken(ctx context.Context, token models.VerificationToken) (*models.VerificationToken, error) {
	if token.Identifier == "" || token.Token == "" {
		return nil, models.ErrorValidation{Field: "token", Message: "identifier and token are required"}
	}
	if err := a.tokens.Create(ctx, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

func (a *identityAdapter) GetVerificationToken(ctx context.Context, identifier, token string) (*models.VerificationToken, error) {
	return missing(a.tokens.Get(ctx, identifier, token))
}

func (a *identityAdapter) DeleteVerificationToken(ctx context.Context, identifier, token string) error {
	return a.tokens.Delete(ctx, identifier, token)
}

// UseVerificationToken consumes the token once. A token already consumed or
// never issued yields nil without error.
func (a *identityAdapter) UseVerificationToken(ctx context.Context, identifier, token string) (*models.VerificationToken, error) {
	return missing(a.tokens.Consume(ctx, identifier, token))
}

func (a *identityAdapter) PurgeExpired(ctx context.Context) (int64, int64, error) {
	now := a.now()
	sessions, err := a.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	tokens, err := a.tokens.DeleteExpired(ctx, now)
	if err != nil {
		return sessions, 0, err
	}
	return sessions, tokens, nil
}
