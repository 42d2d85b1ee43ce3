package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"consultancy-cms/models"
	"consultancy-cms/repositories"

	"golang.org/x/sync/errgroup"
)

const bulkDeleteConcurrency = 4

// UserAdminService runs batch role/status changes and deletions. Every call
// reports per-id results; the acting operator is never a target.
type UserAdminService interface {
	ListUsers(ctx context.Context, params models.UserListParams) (*models.UserPage, error)
	BulkSetStatus(ctx context.Context, ids []string, status models.UserStatus) (*models.BulkResult, error)
	BulkSetRole(ctx context.Context, ids []string, role models.UserRole) (*models.BulkResult, error)
	BulkDelete(ctx context.Context, ids []string) (*models.BulkResult, error)
}

type userAdminService struct {
	users    repositories.UserRepository
	identity IdentityAdapter
	sessions SessionService
	log      *slog.Logger
}

func NewUserAdminService(users repositories.UserRepository, identity IdentityAdapter, sessions SessionService, log *slog.Logger) UserAdminService {
	if log == nil {
		log = slog.Default()
	}
	return &userAdminService{
		users:    users,
		identity: identity,
		sessions: sessions,
		log:      log,
	}
}

func (s *userAdminService) ListUsers(ctx context.Context, params models.UserListParams) (*models.UserPage, error) {
	if _, err := s.sessions.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if params.Role != "" && !params.Role.Valid() {
		return nil, models.ErrorValidation{Field: "role", Message: "unknown role"}
	}
	if params.Status != "" && !params.Status.Valid() {
		return nil, models.ErrorValidation{Field: "status", Message: "unknown status"}
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = 20
	}
	if params.Limit > 100 {
		params.Limit = 100
	}

	users, total, err := s.users.List(ctx, params)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return &models.UserPage{Users: users, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

func (s *userAdminService) BulkSetStatus(ctx context.Context, ids []string, status models.UserStatus) (*models.BulkResult, error) {
	actor, err := s.sessions.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, models.ErrorValidation{Field: "status", Message: "unknown status"}
	}

	result, targets, err := s.partition(ctx, actor, ids, func(target *models.User) string {
		if target.Role == models.RoleSuperAdmin && actor.User.Role != models.RoleSuperAdmin {
			return "only a super administrator may change a super administrator"
		}
		return ""
	})
	if err != nil || len(targets) == 0 {
		return result, err
	}

	if _, err := s.users.UpdateMany(ctx, targets, models.UserPatch{Status: models.Some(status)}); err != nil {
		return nil, err
	}
	if !status.CanSignIn() {
		revoked, err := s.identity.DeleteUserSessions(ctx, targets)
		if err != nil {
			return nil, err
		}
		s.log.Info("sessions revoked", slog.Int("users", len(targets)), slog.Int64("sessions", revoked))
	}
	result.Updated = targets

	s.log.Info("bulk status change",
		slog.String("actor_id", actor.User.ID),
		slog.String("status", string(status)),
		slog.Int("updated", len(result.Updated)),
		slog.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// BulkSetRole assigns role. Granting or revoking an admin role, or touching
// a super administrator, requires a super administrator.
func (s *userAdminService) BulkSetRole(ctx context.Context, ids []string, role models.UserRole) (*models.BulkResult, error) {
	actor, err := s.sessions.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, models.ErrorValidation{Field: "role", Message: "unknown role"}
	}
	super := actor.User.Role == models.RoleSuperAdmin
	if role.IsAdmin() && !super {
		return nil, models.ErrorForbidden{Message: "only a super administrator may grant administrator roles"}
	}

	result, targets, err := s.partition(ctx, actor, ids, func(target *models.User) string {
		if target.Role.IsAdmin() && !super {
			return "only a super administrator may change an administrator"
		}
		return ""
	})
	if err != nil || len(targets) == 0 {
		return result, err
	}

	if _, err := s.users.UpdateMany(ctx, targets, models.UserPatch{Role: models.Some(role)}); err != nil {
		return nil, err
	}
	result.Updated = targets

	s.log.Info("bulk role change",
		slog.String("actor_id", actor.User.ID),
		slog.String("role", string(role)),
		slog.Int("updated", len(result.Updated)),
		slog.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// BulkDelete removes each user with its accounts and sessions. Deletes run
// concurrently and fail independently.
func (s *userAdminService) BulkDelete(ctx context.Context, ids []string) (*models.BulkResult, error) {
	actor, err := s.sessions.RequireSuperAdmin(ctx)
	if err != nil {
		return nil, err
	}

	result, targets, err := s.partition(ctx, actor, ids, nil)
	if err != nil || len(targets) == 0 {
		return result, err
	}

	failures := make([]string, len(targets))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(bulkDeleteConcurrency)
	for i, id := range targets {
		i, id := i, id
		g.Go(func() error {
			if err := s.identity.DeleteUser(ctx, id); err != nil {
				mu.Lock()
				failures[i] = err.Error()
				mu.Unlock()
				s.log.Warn("bulk delete failed", slog.String("user_id", id), slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range targets {
		if failures[i] != "" {
			result.Failed = append(result.Failed, models.BulkFailure{ID: id, Reason: failures[i]})
			continue
		}
		result.Updated = append(result.Updated, id)
	}

	s.log.Info("bulk delete",
		slog.String("actor_id", actor.User.ID),
		slog.Int("deleted", len(result.Updated)),
		slog.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// partition dedupes ids and splits them into targets the actor may change and
// failures. deny returns a non-empty reason to reject a target.
func (s *userAdminService) partition(ctx context.Context, actor *models.AppSession, ids []string, deny func(*models.User) string) (*models.BulkResult, []string, error) {
	result := &models.BulkResult{Updated: []string{}, Failed: []models.BulkFailure{}}

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, nil, models.ErrorValidation{Field: "user_ids", Message: "at least one user id is required"}
	}

	users, err := s.users.GetByIDs(ctx, unique)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	targets := make([]string, 0, len(unique))
	for _, id := range unique {
		target, ok := byID[id]
		switch {
		case !ok:
			result.Failed = append(result.Failed, models.BulkFailure{ID: id, Reason: "user not found"})
		case id == actor.User.ID:
			result.Failed = append(result.Failed, models.BulkFailure{ID: id, Reason: "you cannot change your own account"})
		default:
			if deny != nil {
				if reason := deny(target); reason != "" {
					result.Failed = append(result.Failed, models.BulkFailure{ID: id, Reason: reason})
					continue
				}
			}
			targets = append(targets, id)
		}
	}
	return result, targets, nil
}
