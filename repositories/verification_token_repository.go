package repositories

import (
	"context"
	"time"

	"consultancy-cms/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VerificationTokenRepository interface {
	Create(ctx context.Context, token *models.VerificationToken) error
	Get(ctx context.Context, identifier, token string) (*models.VerificationToken, error)
	Delete(ctx context.Context, identifier, token string) error
	Consume(ctx context.Context, identifier, token string) (*models.VerificationToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type verificationTokenRepository struct {
	db *gorm.DB
}

func NewVerificationTokenRepository(db *gorm.DB) VerificationTokenRepository {
	return &verificationTokenRepository{db: db}
}

func (r *verificationTokenRepository) Create(ctx context.Context, token *models.VerificationToken) error {
	return translate(r.db.WithContext(ctx).Create(token).Error, "create verification token", "verification token", token.Identifier)
}

func (r *verificationTokenRepository) Get(ctx context.Context, identifier, token string) (*models.VerificationToken, error) {
	var vt models.VerificationToken
	err := r.db.WithContext(ctx).Where("identifier = ? AND token = ?", identifier, token).First(&vt).Error
	if err != nil {
		return nil, translate(err, "get verification token", "verification token", identifier)
	}
	return &vt, nil
}

func (r *verificationTokenRepository) Delete(ctx context.Context, identifier, token string) error {
	res := r.db.WithContext(ctx).Where("identifier = ? AND token = ?", identifier, token).Delete(&models.VerificationToken{})
	if res.Error != nil {
		return translate(res.Error, "delete verification token", "verification token", identifier)
	}
	if res.RowsAffected == 0 {
		return models.ErrorNotFound{Entity: "verification token", ID: identifier}
	}
	return nil
}

// Consume deletes the token and returns the deleted row in a single
// DELETE ... RETURNING statement. Of two concurrent callers only the one whose
// delete removed the row gets it back; the other sees ErrorNotFound.
func (r *verificationTokenRepository) Consume(ctx context.Context, identifier, token string) (*models.VerificationToken, error) {
	var deleted []models.VerificationToken
	res := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("identifier = ? AND token = ?", identifier, token).
		Delete(&deleted)
	if res.Error != nil {
		return nil, translate(res.Error, "use verification token", "verification token", identifier)
	}
	if res.RowsAffected == 0 || len(deleted) == 0 {
		return nil, models.ErrorNotFound{Entity: "verification token", ID: identifier}
	}
	return &deleted[0], nil
}

func (r *verificationTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires <= ?", now).Delete(&models.VerificationToken{})
	return res.RowsAffected, translate(res.Error, "purge verification tokens", "verification token", "")
}
