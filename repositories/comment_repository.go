package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"consultancy-cms/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	GetList(ctx context.Context, params models.CommentListParams, isPublic bool) ([]models.Comment, int64, error)
	UpdateStatus(ctx context.Context, id string, expectedVersion int, transition models.CommentTransition) (*models.Comment, error)
	DeleteCascade(ctx context.Context, id string) (int64, error)
	GetTransitions(ctx context.Context, commentID string) ([]models.CommentTransition, error)
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.Version == 0 {
		comment.Version = 1
	}
	err := r.db.WithContext(ctx).Omit("Author", "Replies").Create(comment).Error
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return missingReference(comment)
	}
	return translate(err, "create comment", "comment", comment.ID)
}

// missingReference names the row a comment insert lost a race with: the
// parent for replies, otherwise the post.
func missingReference(comment *models.Comment) error {
	if comment.ParentID != nil {
		return models.ErrorInvalidReference{Field: "parentId", Message: "parent comment does not exist"}
	}
	return models.ErrorInvalidReference{Field: "postId", Message: "post does not exist"}
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).Preload("Author").Where("id = ?", id).First(&comment).Error
	if err != nil {
		return nil, translate(err, "get comment", "comment", id)
	}
	return &comment, nil
}

func (r *commentRepository) GetList(ctx context.Context, params models.CommentListParams, isPublic bool) ([]models.Comment, int64, error) {
	var comments []models.Comment
	var total int64

	status := params.Status
	if isPublic {
		status = models.CommentApproved
	}

	query := r.db.WithContext(ctx).Model(&models.Comment{}).Preload("Author")

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if params.PostID != "" {
		query = query.Where("post_id = ?", params.PostID)
	}
	if params.Search != "" {
		query = query.Where("LOWER(content) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(params.Search))+"%")
	}

	order := "created_at desc"
	if params.Threaded {
		order = "created_at asc"
		query = query.Where("parent_id IS NULL").
			Preload("Replies", func(db *gorm.DB) *gorm.DB {
				if status != "" {
					db = db.Where("status = ?", status)
				}
				return db.Order("created_at asc")
			}).
			Preload("Replies.Author")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count comments", "comment", "")
	}

	_, limit, offset := pageOffset(params.Page, params.Limit, 10, 100)
	err := query.Order(order).Offset(offset).Limit(limit).Find(&comments).Error
	if err != nil {
		return nil, 0, translate(err, "list comments", "comment", "")
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, total, nil
}

// UpdateStatus writes the new status only if the row still carries
// expectedVersion, and appends the transition in the same transaction.
func (r *commentRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int, transition models.CommentTransition) (*models.Comment, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Comment{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Updates(map[string]any{
				"status":     transition.To,
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return translate(res.Error, "update comment status", "comment", id)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Comment{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return translate(err, "check comment", "comment", id)
			}
			if count == 0 {
				return models.ErrorNotFound{Entity: "comment", ID: id}
			}
			return models.ErrorConflict{Message: "comment was modified concurrently, reload and retry"}
		}
		transition.CommentID = id
		if err := tx.Create(&transition).Error; err != nil {
			return translate(err, "record comment transition", "comment transition", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// DeleteCascade removes the comment and its direct replies in one statement.
func (r *commentRepository) DeleteCascade(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ? OR parent_id = ?", id, id).Delete(&models.Comment{})
	if res.Error != nil {
		return 0, translate(res.Error, "delete comment", "comment", id)
	}
	if res.RowsAffected == 0 {
		return 0, models.ErrorNotFound{Entity: "comment", ID: id}
	}
	return res.RowsAffected, nil
}

func (r *commentRepository) GetTransitions(ctx context.Context, commentID string) ([]models.CommentTransition, error) {
	var transitions []models.CommentTransition
	err := r.db.WithContext(ctx).Where("comment_id = ?", commentID).Order("created_at asc, id asc").Find(&transitions).Error
	return transitions, translate(err, "list comment transitions", "comment transition", commentID)
}
