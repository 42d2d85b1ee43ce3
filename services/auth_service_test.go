package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"testing"
	"time"

	"consultancy-cms/config"
	"consultancy-cms/models"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (*fixture, *authService) {
	t.Helper()
	f := newFixture()
	svc := NewAuthService(f.identity, f.sessions, f.notifier, AuthOptions{
		JWT:                  config.JWTConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "test"},
		SessionTTL:           24 * time.Hour,
		VerificationTokenTTL: 10 * time.Minute,
		SiteURL:              "https://cms.example.com",
	}, nil).(*authService)
	return f, svc
}

// signInToken requests a link and pulls the raw token back out of it.
func signInToken(t *testing.T, f *fixture, svc AuthService, email string) string {
	t.Helper()
	require.NoError(t, svc.RequestEmailSignIn(context.Background(), models.EmailSignInRequest{Email: email}))
	links := f.notifier.byKind("sign-in")
	require.NotEmpty(t, links)
	u, err := url.Parse(links[len(links)-1].Ref)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestAuthService_EmailSignInCreatesVerifiedUser(t *testing.T) {
	f, svc := newAuthFixture(t)
	ctx := context.Background()

	token := signInToken(t, f, svc, "New@Example.com")
	f.store.mu.Lock()
	for _, vt := range f.store.tokens {
		assert.NotEqual(t, token, vt.Token, "only the hash is stored")
	}
	f.store.mu.Unlock()

	resp, err := svc.CompleteEmailSignIn(ctx, models.EmailCallbackRequest{Email: "new@example.com", Token: token})
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	assert.Equal(t, "new@example.com", resp.User.Email)
	assert.NotNil(t, resp.User.EmailVerified)
	assert.NotEmpty(t, resp.SessionToken)

	sid, err := svc.ParseAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.NotEqual(t, resp.SessionToken, sid)

	session, err := f.sessions.ResolveByID(ctx, sid)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, resp.User.ID, session.User.ID)
	assert.Equal(t, resp.SessionToken, session.SessionToken)
}

func TestAuthService_AccessTokenDoesNotCarrySessionToken(t *testing.T) {
	f, svc := newAuthFixture(t)
	ctx := context.Background()
	token := signInToken(t, f, svc, "claims@example.com")
	resp, err := svc.CompleteEmailSignIn(ctx, models.EmailCallbackRequest{Email: "claims@example.com", Token: token})
	require.NoError(t, err)

	// Anyone holding the JWT can read its payload without the secret.
	parsed, _, err := jwt.NewParser().ParseUnverified(resp.AccessToken, jwt.MapClaims{})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	for name, value := range claims {
		assert.NotEqual(t, resp.SessionToken, value, "claim %q", name)
	}

	stored, err := f.identity.GetSession(ctx, resp.SessionToken)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, stored.ID, claims["sid"])

	// The row id is not a cookie credential.
	session, err := f.sessions.Resolve(ctx, stored.ID)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestAuthService_SignInTokenHashIsKeyed(t *testing.T) {
	f, svc := newAuthFixture(t)
	token := signInToken(t, f, svc, "mac@example.com")

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte(token))
	want := hex.EncodeToString(mac.Sum(nil))
	plain := sha256.Sum256([]byte(token + "test-secret"))

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var hashes []string
	for _, vt := range f.store.tokens {
		hashes = append(hashes, vt.Token)
	}
	assert.Contains(t, hashes, want)
	assert.NotContains(t, hashes, hex.EncodeToString(plain[:]))
}

func TestAuthService_EmailSignInTokenIsSingleUse(t *testing.T) {
	f, svc := newAuthFixture(t)
	ctx := context.Background()
	token := signInToken(t, f, svc, "once@example.com")

	_, err := svc.CompleteEmailSignIn(ctx, models.EmailCallbackRequest{Email: "once@example.com", Token: token})
	require.NoError(t, err)

	_, err = svc.CompleteEmailSignIn(ctx, models.EmailCallbackRequest{Email: "once@example.com", Token: token})
	var verr models.ErrorValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "token", verr.Field)
}

func TestAuthService_ExpiredSignInLinkIsRejected(t *testing.T) {
	f, svc := newAuthFixture(t)
	token := signInToken(t, f, svc, "late@example.com")

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err := svc.CompleteEmailSignIn(context.Background(), models.EmailCallbackRequest{Email: "late@example.com", Token: token})
	var verr models.ErrorValidation
	assert.ErrorAs(t, err, &verr)
}

func TestAuthService_EmailSignInVerifiesDeclinedUser(t *testing.T) {
	f, svc := newAuthFixture(t)
	ctx := context.Background()
	created, err := f.identity.CreateUser(ctx, models.NewUserInput{Email: "declined@example.com", EmailVerified: false})
	require.NoError(t, err)

	token := signInToken(t, f, svc, "declined@example.com")
	resp, err := svc.CompleteEmailSignIn(ctx, models.EmailCallbackRequest{Email: "declined@example.com", Token: token})
	require.NoError(t, err)
	assert.Equal(t, created.ID, resp.User.ID)

	record, err := f.identity.GetUserRecord(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationVerified, record.EmailVerified.State)
}

func TestAuthService_SuspendedUserCannotSignIn(t *testing.T) {
	f, svc := newAuthFixture(t)
	ctx := context.Background()
	user := f.addUser("blocked@example.com", models.RoleViewer)
	_, err := f.users.Update(ctx, models.UserPatch{ID: user.ID, Status: models.Some(models.StatusSuspended)})
	require.NoError(t, err)

	token := signInToken(t, f, svc, "blocked@example.com")
	_, err = svc.CompleteEmailSignIn(ctx, models.EmailCallbackRequest{Email: "blocked@example.com", Token: token})
	var forbidden models.ErrorForbidden
	assert.ErrorAs(t, err, &forbidden)
}

func TestAuthService_CallbackURLMustStayOnSite(t *testing.T) {
	_, svc := newAuthFixture(t)
	err := svc.RequestEmailSignIn(context.Background(), models.EmailSignInRequest{
		Email:       "a@example.com",
		CallbackURL: "https://evil.example.net/steal",
	})
	var verr models.ErrorValidation
	assert.ErrorAs(t, err, &verr)
}

func TestAuthService_OAuthSignIn(t *testing.T) {
	f, svc := newAuthFixture(t)
	ctx := context.Background()
	access := "at-1"
	req := models.OAuthCallbackRequest{
		Profile: models.NewUserInput{Email: "octo@example.com", EmailVerified: true},
		Account: models.LinkedAccount{Provider: "github", ProviderAccountID: "99", Type: "oauth", AccessToken: &access},
	}

	first, err := svc.OAuthSignIn(ctx, req)
	require.NoError(t, err)
	assert.NotNil(t, first.User.EmailVerified)

	access2 := "at-2"
	req.Account.AccessToken = &access2
	second, err := svc.OAuthSignIn(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.NotEqual(t, first.SessionToken, second.SessionToken)

	account, err := f.identity.GetAccount(ctx, "github", "99")
	require.NoError(t, err)
	assert.Equal(t, "at-2", *account.AccessToken)
}

func TestAuthService_OAuthSignInRetriesAfterFailedLink(t *testing.T) {
	f, svc := newAuthFixture(t)
	ctx := context.Background()
	req := models.OAuthCallbackRequest{
		Profile: models.NewUserInput{Email: "retry@example.com", EmailVerified: true},
		Account: models.LinkedAccount{Provider: "github", ProviderAccountID: "7", Type: "oauth"},
	}

	f.store.linkErr = errors.New("connection reset")
	_, err := svc.OAuthSignIn(ctx, req)
	require.Error(t, err)

	user, err := f.identity.GetUserByEmail(ctx, "retry@example.com")
	require.NoError(t, err)
	assert.Nil(t, user, "a failed link must not leave the user behind")

	resp, err := svc.OAuthSignIn(ctx, req)
	require.NoError(t, err)
	account, err := f.identity.GetAccount(ctx, "github", "7")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, resp.User.ID, account.UserID)
}

func TestAuthService_OAuthSignInRefusesUnlinkedEmail(t *testing.T) {
	f, svc := newAuthFixture(t)
	f.addUser("taken@example.com", models.RoleViewer)

	_, err := svc.OAuthSignIn(context.Background(), models.OAuthCallbackRequest{
		Profile: models.NewUserInput{Email: "taken@example.com"},
		Account: models.LinkedAccount{Provider: "google", ProviderAccountID: "g"},
	})
	var conflict models.ErrorConflict
	assert.ErrorAs(t, err, &conflict)
}

func TestAuthService_SignOutIsIdempotent(t *testing.T) {
	f, svc := newAuthFixture(t)
	ctx := context.Background()
	token := signInToken(t, f, svc, "bye@example.com")
	resp, err := svc.CompleteEmailSignIn(ctx, models.EmailCallbackRequest{Email: "bye@example.com", Token: token})
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, resp.SessionToken))
	require.NoError(t, svc.SignOut(ctx, resp.SessionToken))

	session, err := f.sessions.Resolve(ctx, resp.SessionToken)
	assert.NoError(t, err)
	assert.Nil(t, session)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	f, svc := newAuthFixture(t)
	user := f.addUser("me@example.com", models.RoleViewer)

	_, err := svc.UpdateProfile(context.Background(), models.UpdateProfileRequest{Name: models.Some(strPtr("x"))})
	var unauth models.ErrorUnauthenticated
	require.ErrorAs(t, err, &unauth)

	updated, err := svc.UpdateProfile(as(user), models.UpdateProfileRequest{Name: models.Some(strPtr("Grace"))})
	require.NoError(t, err)
	assert.Equal(t, "Grace", *updated.Name)

	_, err = svc.UpdateProfile(as(user), models.UpdateProfileRequest{Image: models.Some(strPtr("javascript:alert(1)"))})
	var verr models.ErrorValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "image", verr.Field)

	cleared, err := svc.UpdateProfile(as(user), models.UpdateProfileRequest{Name: models.Some[*string](nil)})
	require.NoError(t, err)
	assert.Nil(t, cleared.Name)
}

func TestAuthService_ParseAccessTokenRejectsForeignTokens(t *testing.T) {
	_, svc := newAuthFixture(t)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sid": "s", "exp": time.Now().Add(time.Hour).Unix()})
	signed, err := foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.ParseAccessToken(signed)
	var unauth models.ErrorUnauthenticated
	assert.ErrorAs(t, err, &unauth)

	noSid := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	signed, err = noSid.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.ParseAccessToken(signed)
	assert.ErrorAs(t, err, &unauth)
}

func TestAuthService_RefreshSession(t *testing.T) {
	f, svc := newAuthFixture(t)
	ctx := context.Background()
	token := signInToken(t, f, svc, "stay@example.com")
	resp, err := svc.CompleteEmailSignIn(ctx, models.EmailCallbackRequest{Email: "stay@example.com", Token: token})
	require.NoError(t, err)

	session, err := f.sessions.Resolve(ctx, resp.SessionToken)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	refreshed, err := svc.RefreshSession(ContextWithSession(ctx, session))
	require.NoError(t, err)
	assert.Greater(t, refreshed.Expires, resp.Expires)
}
