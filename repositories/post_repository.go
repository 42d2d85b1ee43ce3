package repositories

import (
	"context"

	"consultancy-cms/models"

	"gorm.io/gorm"
)

type PostRepository interface {
	GetByID(ctx context.Context, id string) (*models.Post, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error
	if err != nil {
		return nil, translate(err, "get post", "post", id)
	}
	return &post, nil
}
