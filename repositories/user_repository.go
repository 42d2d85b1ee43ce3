package repositories

import (
	"context"
	"strings"

	"consultancy-cms/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	CreateWithAccount(ctx context.Context, user *models.User, account *models.LinkedAccount) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.User, error)
	List(ctx context.Context, params models.UserListParams) ([]models.User, int64, error)
	Update(ctx context.Context, patch models.UserPatch) (*models.User, error)
	UpdateMany(ctx context.Context, ids []string, patch models.UserPatch) (int64, error)
	DeleteCascade(ctx context.Context, id string) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	return translate(r.db.WithContext(ctx).Create(user).Error, "create user", "user", user.ID)
}

// CreateWithAccount inserts the user and its first linked account in one
// transaction. Neither row exists if either insert fails.
func (r *userRepository) CreateWithAccount(ctx context.Context, user *models.User, account *models.LinkedAccount) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	account.UserID = user.ID
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return translate(err, "create user", "user", user.ID)
		}
		if err := tx.Create(account).Error; err != nil {
			return translate(err, "link account", "account", account.ID)
		}
		return nil
	})
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, translate(err, "get user", "user", id)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		return nil, translate(err, "get user by email", "user", email)
	}
	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, translate(err, "get users", "user", "")
}

func (r *userRepository) List(ctx context.Context, params models.UserListParams) ([]models.User, int64, error) {
	var users []models.User
	var total int64

	query := r.db.WithContext(ctx).Model(&models.User{})
	if params.Search != "" {
		like := "%" + escapeLike(strings.ToLower(params.Search)) + "%"
		query = query.Where("(LOWER(email) LIKE ? ESCAPE '\\' OR LOWER(COALESCE(name, '')) LIKE ? ESCAPE '\\')", like, like)
	}
	if params.Role != "" {
		query = query.Where("role = ?", params.Role)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count users", "user", "")
	}

	_, limit, offset := pageOffset(params.Page, params.Limit, 20, 100)
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&users).Error
	return users, total, translate(err, "list users", "user", "")
}

func (r *userRepository) Update(ctx context.Context, patch models.UserPatch) (*models.User, error) {
	values := patchColumns(patch)
	db := r.db.WithContext(ctx)
	if len(values) > 0 {
		res := db.Model(&models.User{}).Where("id = ?", patch.ID).Updates(values)
		if res.Error != nil {
			return nil, translate(res.Error, "update user", "user", patch.ID)
		}
		if res.RowsAffected == 0 {
			return nil, models.ErrorNotFound{Entity: "user", ID: patch.ID}
		}
	}
	return r.GetByID(ctx, patch.ID)
}

func (r *userRepository) UpdateMany(ctx context.Context, ids []string, patch models.UserPatch) (int64, error) {
	values := patchColumns(patch)
	if len(ids) == 0 || len(values) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Updates(values)
	return res.RowsAffected, translate(res.Error, "update users", "user", "")
}

// DeleteCascade removes the user's accounts and sessions, then the user, in
// one transaction.
func (r *userRepository) DeleteCascade(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.LinkedAccount{}).Error; err != nil {
			return translate(err, "delete user accounts", "account", id)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Session{}).Error; err != nil {
			return translate(err, "delete user sessions", "session", id)
		}
		res := tx.Where("id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return translate(res.Error, "delete user", "user", id)
		}
		if res.RowsAffected == 0 {
			return models.ErrorNotFound{Entity: "user", ID: id}
		}
		return nil
	})
}

// patchColumns turns the set fields of a patch into a column map. Keys are
// included by presence, so zero values are written as-is.
func patchColumns(p models.UserPatch) map[string]any {
	values := map[string]any{}
	if p.Email.Set {
		values["email"] = strings.ToLower(p.Email.Value)
	}
	if p.Name.Set {
		values["name"] = p.Name.Value
	}
	if p.Image.Set {
		values["image"] = p.Image.Value
	}
	if p.Role.Set {
		values["role"] = p.Role.Value
	}
	if p.Status.Set {
		values["status"] = p.Status.Value
	}
	if p.EmailVerified.Set {
		values["email_verified_state"] = p.EmailVerified.Value.State
		values["email_verified_at"] = p.EmailVerified.Value.At
	}
	return values
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
