package handlers

import (
	"consultancy-cms/helper"
	"consultancy-cms/models"
	"consultancy-cms/services"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	commentService services.CommentService
	Helper         *helper.HTTPHelper
}

func NewCommentHandler(commentService services.CommentService, h *helper.HTTPHelper) *CommentHandler {
	return &CommentHandler{commentService: commentService, Helper: h}
}

func (h *CommentHandler) sendPage(c *gin.Context, page *models.CommentPage) {
	h.Helper.SendSuccess(c, "Comments loaded", map[string]interface{}{
		"comments":   page.Comments,
		"pagination": h.Helper.GeneratePaging(c, page.Limit, page.Page, page.Total),
	})
}

// GetPublicComments lists the approved comments of one post, replies nested
// under their parent.
func (h *CommentHandler) GetPublicComments(c *gin.Context) {
	var params models.CommentListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.Helper.SendBadRequest(c, "invalid query", err.Error())
		return
	}
	params.PostID = c.Param("post_id")
	params.Status = models.CommentApproved
	params.Threaded = true

	page, err := h.commentService.ListByFilter(c.Request.Context(), params, true)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.sendPage(c, page)
}

func (h *CommentHandler) SubmitComment(c *gin.Context) {
	var req models.SubmitCommentRequest
	if !h.Helper.BindJSON(c, &req) {
		return
	}

	in := models.SubmitCommentInput{
		Content:    req.Content,
		PostID:     c.Param("post_id"),
		ParentID:   req.ParentID,
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
	}
	if session := services.SessionFromContext(c.Request.Context()); session != nil {
		in.AuthorID = &session.User.ID
		in.GuestName, in.GuestEmail = nil, nil
	}

	comment, err := h.commentService.Submit(c.Request.Context(), in)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	message := "Comment submitted for review"
	if comment.Status == models.CommentApproved {
		message = "Comment published"
	}
	h.Helper.SendCreated(c, message, comment)
}

func (h *CommentHandler) GetComments(c *gin.Context) {
	var params models.CommentListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.Helper.SendBadRequest(c, "invalid query", err.Error())
		return
	}

	page, err := h.commentService.ListByFilter(c.Request.Context(), params, false)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.sendPage(c, page)
}

func (h *CommentHandler) UpdateCommentStatus(c *gin.Context) {
	var req models.UpdateCommentStatusRequest
	if !h.Helper.BindJSON(c, &req) {
		return
	}

	comment, err := h.commentService.SetStatus(c.Request.Context(), c.Param("id"), req.Status, req.Reason)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Comment status updated", comment)
}

func (h *CommentHandler) DeleteComment(c *gin.Context) {
	deleted, err := h.commentService.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Comment deleted", map[string]interface{}{"deleted": deleted})
}

func (h *CommentHandler) GetCommentHistory(c *gin.Context) {
	transitions, err := h.commentService.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Comment history loaded", transitions)
}
