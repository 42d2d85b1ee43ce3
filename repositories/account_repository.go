package repositories

import (
	"context"

	"consultancy-cms/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.LinkedAccount) error
	GetByProvider(ctx context.Context, provider, providerAccountID string) (*models.LinkedAccount, error)
	GetByUserID(ctx context.Context, userID string) (*models.LinkedAccount, error)
	Update(ctx context.Context, account *models.LinkedAccount) (*models.LinkedAccount, error)
	Delete(ctx context.Context, provider, providerAccountID string) error
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *models.LinkedAccount) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	return translate(r.db.WithContext(ctx).Create(account).Error, "link account", "account", account.Provider+":"+account.ProviderAccountID)
}

func (r *accountRepository) GetByProvider(ctx context.Context, provider, providerAccountID string) (*models.LinkedAccount, error) {
	var account models.LinkedAccount
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_account_id = ?", provider, providerAccountID).
		First(&account).Error
	if err != nil {
		return nil, translate(err, "get account", "account", provider+":"+providerAccountID)
	}
	return &account, nil
}

func (r *accountRepository) GetByUserID(ctx context.Context, userID string) (*models.LinkedAccount, error) {
	var account models.LinkedAccount
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at asc").First(&account).Error
	if err != nil {
		return nil, translate(err, "get account by user", "account", userID)
	}
	return &account, nil
}

// Update rewrites the opaque token fields of the account keyed by its
// provider pair.
func (r *accountRepository) Update(ctx context.Context, account *models.LinkedAccount) (*models.LinkedAccount, error) {
	key := account.Provider + ":" + account.ProviderAccountID
	res := r.db.WithContext(ctx).Model(&models.LinkedAccount{}).
		Where("provider = ? AND provider_account_id = ?", account.Provider, account.ProviderAccountID).
		Updates(map[string]any{
			"type":          account.Type,
			"refresh_token": account.RefreshToken,
			"access_token":  account.AccessToken,
			"expires_at":    account.ExpiresAt,
			"token_type":    account.TokenType,
			"scope":         account.Scope,
			"id_token":      account.IDToken,
			"session_state": account.SessionState,
		})
	if res.Error != nil {
		return nil, translate(res.Error, "update account", "account", key)
	}
	if res.RowsAffected == 0 {
		return nil, models.ErrorNotFound{Entity: "account", ID: key}
	}
	return r.GetByProvider(ctx, account.Provider, account.ProviderAccountID)
}

func (r *accountRepository) Delete(ctx context.Context, provider, providerAccountID string) error {
	res := r.db.WithContext(ctx).
		Where("provider = ? AND provider_account_id = ?", provider, providerAccountID).
		Delete(&models.LinkedAccount{})
	if res.Error != nil {
		return translate(res.Error, "delete account", "account", provider+":"+providerAccountID)
	}
	if res.RowsAffected == 0 {
		return models.ErrorNotFound{Entity: "account", ID: provider + ":" + providerAccountID}
	}
	return nil
}
