package services

import (
	"context"

	"consultancy-cms/models"
)

// Notifier queues outbound mail. Implementations must return immediately and
// never report delivery failures to the caller.
type Notifier interface {
	NotifyNewComment(ctx context.Context, comment *models.Comment, post *models.Post)
	NotifyReply(ctx context.Context, parent, reply *models.Comment)
	NotifyApproval(ctx context.Context, comment *models.Comment)
	NotifyRejection(ctx context.Context, comment *models.Comment, reason *string)
	SendSignInLink(ctx context.Context, email, link string)
}
