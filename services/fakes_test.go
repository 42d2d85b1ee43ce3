package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"consultancy-cms/models"

	"github.com/google/uuid"
)

// store is an in-memory stand-in for the relational store shared by all fake
// repositories.
type store struct {
	mu          sync.Mutex
	users       map[string]models.User
	accounts    map[string]models.LinkedAccount
	sessions    map[string]models.Session
	tokens      map[string]models.VerificationToken
	posts       map[string]models.Post
	comments    map[string]models.Comment
	transitions []models.CommentTransition
	clock       time.Time
	// linkErr fails the next CreateWithAccount at the account insert.
	linkErr error
}

func newStore() *store {
	return &store{
		users:    map[string]models.User{},
		accounts: map[string]models.LinkedAccount{},
		sessions: map[string]models.Session{},
		tokens:   map[string]models.VerificationToken{},
		posts:    map[string]models.Post{},
		comments: map[string]models.Comment{},
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp so ordering is stable.
func (s *store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

type fakeUserRepo struct{ *store }

func (r fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return models.ErrorConflict{Message: "user already exists"}
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = r.tick()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	return nil
}

func (r fakeUserRepo) CreateWithAccount(_ context.Context, user *models.User, a *models.LinkedAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return models.ErrorConflict{Message: "user already exists"}
		}
	}
	key := accountKey(a.Provider, a.ProviderAccountID)
	if _, ok := r.accounts[key]; ok {
		return models.ErrorConflict{Message: "account already exists"}
	}
	if err := r.linkErr; err != nil {
		r.linkErr = nil
		return err
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.UserID = user.ID
	user.CreatedAt = r.tick()
	user.UpdatedAt = user.CreatedAt
	a.CreatedAt = user.CreatedAt
	r.users[user.ID] = *user
	r.accounts[key] = *a
	return nil
}

func (r fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, models.ErrorNotFound{Entity: "user", ID: id}
	}
	return &u, nil
}

func (r fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(email) {
			return &u, nil
		}
	}
	return nil, models.ErrorNotFound{Entity: "user", ID: email}
}

func (r fakeUserRepo) GetByIDs(_ context.Context, ids []string) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r fakeUserRepo) List(_ context.Context, params models.UserListParams) ([]models.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		if params.Role != "" && u.Role != params.Role {
			continue
		}
		if params.Status != "" && u.Status != params.Status {
			continue
		}
		if params.Search != "" && !strings.Contains(u.Email, strings.ToLower(params.Search)) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, params.Page, params.Limit), int64(len(out)), nil
}

func (r fakeUserRepo) Update(_ context.Context, patch models.UserPatch) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[patch.ID]
	if !ok {
		return nil, models.ErrorNotFound{Entity: "user", ID: patch.ID}
	}
	applyPatch(&u, patch)
	r.users[u.ID] = u
	return &u, nil
}

func (r fakeUserRepo) UpdateMany(_ context.Context, ids []string, patch models.UserPatch) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			applyPatch(&u, patch)
			r.users[id] = u
			n++
		}
	}
	return n, nil
}

func (r fakeUserRepo) DeleteCascade(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return models.ErrorNotFound{Entity: "user", ID: id}
	}
	for k, a := range r.accounts {
		if a.UserID == id {
			delete(r.accounts, k)
		}
	}
	for k, s := range r.sessions {
		if s.UserID == id {
			delete(r.sessions, k)
		}
	}
	delete(r.users, id)
	return nil
}

func applyPatch(u *models.User, p models.UserPatch) {
	if p.Email.Set {
		u.Email = p.Email.Value
	}
	if p.Name.Set {
		u.Name = p.Name.Value
	}
	if p.Image.Set {
		u.Image = p.Image.Value
	}
	if p.Role.Set {
		u.Role = p.Role.Value
	}
	if p.Status.Set {
		u.Status = p.Status.Value
	}
	if p.EmailVerified.Set {
		u.EmailVerified = p.EmailVerified.Value
	}
}

func accountKey(provider, id string) string { return provider + ":" + id }

type fakeAccountRepo struct{ *store }

func (r fakeAccountRepo) Create(_ context.Context, a *models.LinkedAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := accountKey(a.Provider, a.ProviderAccountID)
	if _, ok := r.accounts[key]; ok {
		return models.ErrorConflict{Message: "account already exists"}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = r.tick()
	r.accounts[key] = *a
	return nil
}

func (r fakeAccountRepo) GetByProvider(_ context.Context, provider, id string) (*models.LinkedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountKey(provider, id)]
	if !ok {
		return nil, models.ErrorNotFound{Entity: "account"}
	}
	return &a, nil
}

func (r fakeAccountRepo) GetByUserID(_ context.Context, userID string) (*models.LinkedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *models.LinkedAccount
	for _, a := range r.accounts {
		if a.UserID == userID && (found == nil || a.CreatedAt.Before(found.CreatedAt)) {
			a := a
			found = &a
		}
	}
	if found == nil {
		return nil, models.ErrorNotFound{Entity: "account"}
	}
	return found, nil
}

func (r fakeAccountRepo) Update(_ context.Context, a *models.LinkedAccount) (*models.LinkedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := accountKey(a.Provider, a.ProviderAccountID)
	cur, ok := r.accounts[key]
	if !ok {
		return nil, models.ErrorNotFound{Entity: "account"}
	}
	cur.AccessToken, cur.RefreshToken, cur.ExpiresAt = a.AccessToken, a.RefreshToken, a.ExpiresAt
	r.accounts[key] = cur
	return &cur, nil
}

func (r fakeAccountRepo) Delete(_ context.Context, provider, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := accountKey(provider, id)
	if _, ok := r.accounts[key]; !ok {
		return models.ErrorNotFound{Entity: "account"}
	}
	delete(r.accounts, key)
	return nil
}

type fakeSessionRepo struct{ *store }

func (r fakeSessionRepo) Create(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.SessionToken]; ok {
		return models.ErrorConflict{Message: "session already exists"}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	r.sessions[s.SessionToken] = *s
	return nil
}

func (r fakeSessionRepo) GetByToken(_ context.Context, token string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil, models.ErrorNotFound{Entity: "session"}
	}
	return &s, nil
}

func (r fakeSessionRepo) GetByID(_ context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, models.ErrorNotFound{Entity: "session", ID: id}
}

func (r fakeSessionRepo) UpdateExpiry(_ context.Context, token string, expires time.Time) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil, models.ErrorNotFound{Entity: "session"}
	}
	s.Expires = expires
	r.sessions[token] = s
	return &s, nil
}

func (r fakeSessionRepo) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[token]; !ok {
		return models.ErrorNotFound{Entity: "session"}
	}
	delete(r.sessions, token)
	return nil
}

func (r fakeSessionRepo) DeleteByUserIDs(_ context.Context, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, s := range r.sessions {
		for _, id := range ids {
			if s.UserID == id {
				delete(r.sessions, k)
				n++
				break
			}
		}
	}
	return n, nil
}

func (r fakeSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, k)
			n++
		}
	}
	return n, nil
}

func tokenKey(identifier, token string) string { return identifier + "|" + token }

type fakeTokenRepo struct {
	*store
	deletes int
}

func (r *fakeTokenRepo) Create(_ context.Context, t *models.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tokenKey(t.Identifier, t.Token)
	if _, ok := r.tokens[key]; ok {
		return models.ErrorConflict{Message: "verification token already exists"}
	}
	r.tokens[key] = *t
	return nil
}

func (r *fakeTokenRepo) Get(_ context.Context, identifier, token string) (*models.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenKey(identifier, token)]
	if !ok {
		return nil, models.ErrorNotFound{Entity: "verification token"}
	}
	return &t, nil
}

func (r *fakeTokenRepo) Delete(_ context.Context, identifier, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tokenKey(identifier, token)
	if _, ok := r.tokens[key]; !ok {
		return models.ErrorNotFound{Entity: "verification token"}
	}
	delete(r.tokens, key)
	r.deletes++
	return nil
}

// Consume mirrors DELETE ... RETURNING: lookup and delete under one lock.
func (r *fakeTokenRepo) Consume(_ context.Context, identifier, token string) (*models.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tokenKey(identifier, token)
	t, ok := r.tokens[key]
	if !ok {
		return nil, models.ErrorNotFound{Entity: "verification token"}
	}
	delete(r.tokens, key)
	r.deletes++
	return &t, nil
}

func (r *fakeTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, t := range r.tokens {
		if t.Expired(now) {
			delete(r.tokens, k)
			n++
		}
	}
	return n, nil
}

type fakePostRepo struct{ *store }

func (r fakePostRepo) GetByID(_ context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, models.ErrorNotFound{Entity: "post", ID: id}
	}
	return &p, nil
}

type fakeCommentRepo struct {
	*store
	// beforeUpdate runs inside UpdateStatus before the version check.
	beforeUpdate func()
}

func (r *fakeCommentRepo) withAuthor(c models.Comment) models.Comment {
	if c.AuthorID != nil {
		if u, ok := r.users[*c.AuthorID]; ok {
			c.Author = &u
		}
	}
	return c
}

func (r *fakeCommentRepo) Create(_ context.Context, c *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	c.CreatedAt = r.tick()
	c.UpdatedAt = c.CreatedAt
	stored := *c
	stored.Author, stored.Replies = nil, nil
	r.comments[c.ID] = stored
	return nil
}

func (r *fakeCommentRepo) GetByID(_ context.Context, id string) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, models.ErrorNotFound{Entity: "comment", ID: id}
	}
	c = r.withAuthor(c)
	return &c, nil
}

func (r *fakeCommentRepo) GetList(_ context.Context, params models.CommentListParams, isPublic bool) ([]models.Comment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := params.Status
	if isPublic {
		status = models.CommentApproved
	}
	match := func(c models.Comment) bool {
		if status != "" && c.Status != status {
			return false
		}
		if params.PostID != "" && c.PostID != params.PostID {
			return false
		}
		return params.Search == "" || strings.Contains(strings.ToLower(c.Content), strings.ToLower(params.Search))
	}

	var out []models.Comment
	for _, c := range r.comments {
		if !match(c) || (params.Threaded && c.ParentID != nil) {
			continue
		}
		c = r.withAuthor(c)
		if params.Threaded {
			for _, reply := range r.comments {
				if reply.ParentID != nil && *reply.ParentID == c.ID && (status == "" || reply.Status == status) {
					c.Replies = append(c.Replies, r.withAuthor(reply))
				}
			}
			sort.Slice(c.Replies, func(i, j int) bool { return c.Replies[i].CreatedAt.Before(c.Replies[j].CreatedAt) })
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if params.Threaded {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	page := paginate(out, params.Page, params.Limit)
	if page == nil {
		page = []models.Comment{}
	}
	return page, int64(len(out)), nil
}

func (r *fakeCommentRepo) UpdateStatus(_ context.Context, id string, expectedVersion int, t models.CommentTransition) (*models.Comment, error) {
	if r.beforeUpdate != nil {
		r.beforeUpdate()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, models.ErrorNotFound{Entity: "comment", ID: id}
	}
	if c.Version != expectedVersion {
		return nil, models.ErrorConflict{Message: "comment was modified concurrently, reload and retry"}
	}
	c.Status = t.To
	c.Version++
	c.UpdatedAt = r.tick()
	r.comments[id] = c

	t.ID = uint(len(r.transitions) + 1)
	t.CommentID = id
	t.CreatedAt = c.UpdatedAt
	r.transitions = append(r.transitions, t)

	c = r.withAuthor(c)
	return &c, nil
}

func (r *fakeCommentRepo) DeleteCascade(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, c := range r.comments {
		if k == id || (c.ParentID != nil && *c.ParentID == id) {
			delete(r.comments, k)
			n++
		}
	}
	if n == 0 {
		return 0, models.ErrorNotFound{Entity: "comment", ID: id}
	}
	return n, nil
}

func (r *fakeCommentRepo) GetTransitions(_ context.Context, commentID string) ([]models.CommentTransition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CommentTransition
	for _, t := range r.transitions {
		if t.CommentID == commentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func paginate[T any](items []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return nil
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

type sentMail struct {
	Kind   string
	To     string
	Ref    string
	Reason *string
}

// recordingNotifier captures notifications instead of queueing mail.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *recordingNotifier) add(m sentMail) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, m)
}

func (n *recordingNotifier) NotifyNewComment(_ context.Context, c *models.Comment, _ *models.Post) {
	n.add(sentMail{Kind: "new-comment", Ref: c.ID})
}

func (n *recordingNotifier) NotifyReply(_ context.Context, parent, reply *models.Comment) {
	n.add(sentMail{Kind: "reply", To: parent.ContactEmail(), Ref: reply.ID})
}

func (n *recordingNotifier) NotifyApproval(_ context.Context, c *models.Comment) {
	n.add(sentMail{Kind: "approval", To: c.ContactEmail(), Ref: c.ID})
}

func (n *recordingNotifier) NotifyRejection(_ context.Context, c *models.Comment, reason *string) {
	n.add(sentMail{Kind: "rejection", To: c.ContactEmail(), Ref: c.ID, Reason: reason})
}

func (n *recordingNotifier) SendSignInLink(_ context.Context, email, link string) {
	n.add(sentMail{Kind: "sign-in", To: email, Ref: link})
}

func (n *recordingNotifier) byKind(kind string) []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMail
	for _, m := range n.sent {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// fixture wires every service over one in-memory store.
type fixture struct {
	store    *store
	users    fakeUserRepo
	tokens   *fakeTokenRepo
	comments *fakeCommentRepo
	notifier *recordingNotifier
	identity IdentityAdapter
	sessions SessionService
}

func newFixture(adminEmails ...string) *fixture {
	st := newStore()
	f := &fixture{
		store:    st,
		users:    fakeUserRepo{st},
		tokens:   &fakeTokenRepo{store: st},
		comments: &fakeCommentRepo{store: st},
		notifier: &recordingNotifier{},
	}
	f.identity = NewIdentityAdapter(f.users, fakeAccountRepo{st}, fakeSessionRepo{st}, f.tokens, nil)
	f.sessions = NewSessionService(f.identity, adminEmails)
	return f
}

func (f *fixture) addUser(email string, role models.UserRole) *models.User {
	u := &models.User{Email: email, Role: role, Status: models.StatusActive, EmailVerified: models.NeverVerified()}
	if err := f.users.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (f *fixture) addPost(id string, published bool) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.posts[id] = models.Post{ID: id, Slug: id, Title: "Post " + id, Published: published}
}

// as returns a context carrying a session for user.
func as(user *models.User) context.Context {
	return ContextWithSession(context.Background(), &models.AppSession{
		SessionToken: "tok-" + user.ID,
		Expires:      time.Now().Add(time.Hour),
		User: models.SessionUser{
			ID:     user.ID,
			Email:  user.Email,
			Role:   models.ResolveRole(user.Role),
			Status: user.Status,
		},
	})
}

func strPtr(s string) *string { return &s }
