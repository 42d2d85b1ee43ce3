package handlers

import (
	"consultancy-cms/helper"
	"consultancy-cms/models"
	"consultancy-cms/services"

	"github.com/gin-gonic/gin"
)

type UserAdminHandler struct {
	userAdminService services.UserAdminService
	Helper           *helper.HTTPHelper
}

func NewUserAdminHandler(userAdminService services.UserAdminService, h *helper.HTTPHelper) *UserAdminHandler {
	return &UserAdminHandler{userAdminService: userAdminService, Helper: h}
}

func (h *UserAdminHandler) GetUsers(c *gin.Context) {
	var params models.UserListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.Helper.SendBadRequest(c, "invalid query", err.Error())
		return
	}

	page, err := h.userAdminService.ListUsers(c.Request.Context(), params)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Users loaded", map[string]interface{}{
		"users":      page.Users,
		"pagination": h.Helper.GeneratePaging(c, page.Limit, page.Page, page.Total),
	})
}

func (h *UserAdminHandler) BulkSetStatus(c *gin.Context) {
	var req models.BulkUserStatusRequest
	if !h.Helper.BindJSON(c, &req) {
		return
	}

	result, err := h.userAdminService.BulkSetStatus(c.Request.Context(), req.UserIDs, req.Status)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "User status updated", result)
}

func (h *UserAdminHandler) BulkSetRole(c *gin.Context) {
	var req models.BulkUserRoleRequest
	if !h.Helper.BindJSON(c, &req) {
		return
	}

	result, err := h.userAdminService.BulkSetRole(c.Request.Context(), req.UserIDs, req.Role)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "User role updated", result)
}

func (h *UserAdminHandler) BulkDelete(c *gin.Context) {
	var req models.BulkUserDeleteRequest
	if !h.Helper.BindJSON(c, &req) {
		return
	}

	result, err := h.userAdminService.BulkDelete(c.Request.Context(), req.UserIDs)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Users deleted", result)
}
