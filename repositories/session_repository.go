package repositories

import (
	"context"
	"time"

	"consultancy-cms/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	GetByID(ctx context.Context, id string) (*models.Session, error)
	UpdateExpiry(ctx context.Context, token string, expires time.Time) (*models.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteByUserIDs(ctx context.Context, userIDs []string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	return translate(r.db.WithContext(ctx).Create(session).Error, "create session", "session", "")
}

// GetByToken returns the row even if it has expired; callers decide.
func (r *sessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).Where("session_token = ?", token).First(&session).Error
	if err != nil {
		return nil, translate(err, "get session", "session", "")
	}
	return &session, nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		return nil, translate(err, "get session", "session", id)
	}
	return &session, nil
}

func (r *sessionRepository) UpdateExpiry(ctx context.Context, token string, expires time.Time) (*models.Session, error) {
	res := r.db.WithContext(ctx).Model(&models.Session{}).
		Where("session_token = ?", token).
		Update("expires", expires)
	if res.Error != nil {
		return nil, translate(res.Error, "update session", "session", "")
	}
	if res.RowsAffected == 0 {
		return nil, models.ErrorNotFound{Entity: "session"}
	}
	return r.GetByToken(ctx, token)
}

func (r *sessionRepository) Delete(ctx context.Context, token string) error {
	res := r.db.WithContext(ctx).Where("session_token = ?", token).Delete(&models.Session{})
	if res.Error != nil {
		return translate(res.Error, "delete session", "session", "")
	}
	if res.RowsAffected == 0 {
		return models.ErrorNotFound{Entity: "session"}
	}
	return nil
}

func (r *sessionRepository) DeleteByUserIDs(ctx context.Context, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Delete(&models.Session{})
	return res.RowsAffected, translate(res.Error, "delete user sessions", "session", "")
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires <= ?", now).Delete(&models.Session{})
	return res.RowsAffected, translate(res.Error, "purge sessions", "session", "")
}
