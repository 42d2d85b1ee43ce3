package services

import (
	"context"
	"log/slog"
	"strings"

	"consultancy-cms/models"
	"consultancy-cms/repositories"
)

// AutoApprover decides whether a new comment skips the moderation queue.
// author is nil for anonymous submissions.
type AutoApprover func(ctx context.Context, comment *models.Comment, author *models.User) bool

// ApproveVerifiedAuthors approves comments by signed-in users whose email is
// verified.
func ApproveVerifiedAuthors(_ context.Context, _ *models.Comment, author *models.User) bool {
	return author != nil && author.EmailVerified.IsVerified()
}

type CommentServiceOptions struct {
	// NotifyOnRejection mails the author when a pending comment is rejected.
	NotifyOnRejection bool
	AutoApprove       AutoApprover
}

// CommentService is the moderation engine. Any status may move to any other
// status; setting the current status again is a no-op.
type CommentService interface {
	Submit(ctx context.Context, in models.SubmitCommentInput) (*models.Comment, error)
	SetStatus(ctx context.Context, id string, status models.CommentStatus, reason *string) (*models.Comment, error)
	Delete(ctx context.Context, id string) (int64, error)
	ListByFilter(ctx context.Context, params models.CommentListParams, isPublic bool) (*models.CommentPage, error)
	History(ctx context.Context, id string) ([]models.CommentTransition, error)
}

type commentService struct {
	comments repositories.CommentRepository
	posts    repositories.PostRepository
	users    repositories.UserRepository
	sessions SessionService
	notifier Notifier
	opts     CommentServiceOptions
	log      *slog.Logger
}

func NewCommentService(
	comments repositories.CommentRepository,
	posts repositories.PostRepository,
	users repositories.UserRepository,
	sessions SessionService,
	notifier Notifier,
	opts CommentServiceOptions,
	log *slog.Logger,
) CommentService {
	if log == nil {
		log = slog.Default()
	}
	return &commentService{
		comments: comments,
		posts:    posts,
		users:    users,
		sessions: sessions,
		notifier: notifier,
		opts:     opts,
		log:      log,
	}
}

func (s *commentService) Submit(ctx context.Context, in models.SubmitCommentInput) (*models.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.ErrorValidation{Field: "content", Message: "must not be empty"}
	}
	if strings.TrimSpace(in.PostID) == "" {
		return nil, models.ErrorValidation{Field: "postId", Message: "is required"}
	}

	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		if isNotFound(err) {
			return nil, models.ErrorInvalidReference{Field: "postId", Message: "post does not exist"}
		}
		return nil, err
	}
	if !post.Published {
		return nil, models.ErrorInvalidReference{Field: "postId", Message: "post is not published"}
	}

	var parent *models.Comment
	if in.ParentID != nil && *in.ParentID != "" {
		parent, err = s.resolveParent(ctx, *in.ParentID, in.PostID)
		if err != nil {
			return nil, err
		}
	}

	var author *models.User
	if in.AuthorID != nil {
		author, err = missing(s.users.GetByID(ctx, *in.AuthorID))
		if err != nil {
			return nil, err
		}
		if author == nil {
			return nil, models.ErrorInvalidReference{Field: "authorId", Message: "author does not exist"}
		}
	}

	comment := &models.Comment{
		Content:  content,
		PostID:   in.PostID,
		AuthorID: in.AuthorID,
		Author:   author,
		Status:   models.CommentPending,
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	if author == nil {
		comment.GuestName = trimmed(in.GuestName)
		if email := trimmed(in.GuestEmail); email != nil {
			lower := strings.ToLower(*email)
			comment.GuestEmail = &lower
		}
	}
	if s.opts.AutoApprove != nil && s.opts.AutoApprove(ctx, comment, author) {
		comment.Status = models.CommentApproved
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.notifier.NotifyNewComment(ctx, comment, post)
	if parent != nil && shouldNotifyParent(parent, comment) {
		s.notifier.NotifyReply(ctx, parent, comment)
	}
	return comment, nil
}

// resolveParent loads the parent and checks that the reply stays on the same
// post at one level of nesting.
func (s *commentService) resolveParent(ctx context.Context, parentID, postID string) (*models.Comment, error) {
	parent, err := s.comments.GetByID(ctx, parentID)
	if err != nil {
		if isNotFound(err) {
			return nil, models.ErrorInvalidReference{Field: "parentId", Message: "parent comment does not exist"}
		}
		return nil, err
	}
	if parent.PostID != postID {
		return nil, models.ErrorInvalidReference{Field: "parentId", Message: "parent comment belongs to another post"}
	}
	if parent.ParentID != nil {
		return nil, models.ErrorInvalidReference{Field: "parentId", Message: "replies cannot be nested"}
	}
	return parent, nil
}

func shouldNotifyParent(parent, reply *models.Comment) bool {
	to := parent.ContactEmail()
	if to == "" {
		return false
	}
	if parent.AuthorID != nil && reply.AuthorID != nil && *parent.AuthorID == *reply.AuthorID {
		return false
	}
	return !strings.EqualFold(to, reply.ContactEmail())
}

func (s *commentService) SetStatus(ctx context.Context, id string, status models.CommentStatus, reason *string) (*models.Comment, error) {
	session, err := s.sessions.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, models.ErrorValidation{Field: "status", Message: "must be one of PENDING, APPROVED, REJECTED, SPAM"}
	}

	current, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}

	updated, err := s.comments.UpdateStatus(ctx, id, current.Version, models.CommentTransition{
		From:    current.Status,
		To:      status,
		ActorID: session.User.ID,
		Reason:  trimmed(reason),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("comment status changed",
		slog.String("comment_id", id),
		slog.String("from", string(current.Status)),
		slog.String("to", string(status)),
		slog.String("actor_id", session.User.ID),
	)

	switch {
	case status == models.CommentApproved:
		if updated.ContactEmail() != "" {
			s.notifier.NotifyApproval(ctx, updated)
		}
	case status == models.CommentRejected && current.Status == models.CommentPending && s.opts.NotifyOnRejection:
		if updated.ContactEmail() != "" {
			s.notifier.NotifyRejection(ctx, updated, trimmed(reason))
		}
	}
	return updated, nil
}

// Delete removes the comment and its replies and returns the number of rows
// removed.
func (s *commentService) Delete(ctx context.Context, id string) (int64, error) {
	session, err := s.sessions.RequireAdmin(ctx)
	if err != nil {
		return 0, err
	}
	removed, err := s.comments.DeleteCascade(ctx, id)
	if err != nil {
		return 0, err
	}
	s.log.Info("comment deleted",
		slog.String("comment_id", id),
		slog.Int64("rows", removed),
		slog.String("actor_id", session.User.ID),
	)
	return removed, nil
}

// ListByFilter pages comments. Public reads only ever see APPROVED comments;
// admin reads require an admin session and default to every status.
func (s *commentService) ListByFilter(ctx context.Context, params models.CommentListParams, isPublic bool) (*models.CommentPage, error) {
	if !isPublic {
		if _, err := s.sessions.RequireAdmin(ctx); err != nil {
			return nil, err
		}
		if params.Status != "" && !params.Status.Valid() {
			return nil, models.ErrorValidation{Field: "status", Message: "must be one of PENDING, APPROVED, REJECTED, SPAM"}
		}
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = 10
	}
	if params.Limit > 100 {
		params.Limit = 100
	}

	comments, total, err := s.comments.GetList(ctx, params, isPublic)
	if err != nil {
		return nil, err
	}
	return &models.CommentPage{
		Comments: comments,
		Total:    total,
		Page:     params.Page,
		Limit:    params.Limit,
	}, nil
}

func (s *commentService) History(ctx context.Context, id string) ([]models.CommentTransition, error) {
	if _, err := s.sessions.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	transitions, err := s.comments.GetTransitions(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(transitions) == 0 {
		// The log outlives deleted comments, so only an unknown id with no
		// history is a miss.
		if _, err := s.comments.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return []models.CommentTransition{}, nil
	}
	return transitions, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
