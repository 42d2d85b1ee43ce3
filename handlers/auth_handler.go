package handlers

import (
	"net/http"
	"time"

	"consultancy-cms/helper"
	"consultancy-cms/middleware"
	"consultancy-cms/models"
	"consultancy-cms/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService  services.AuthService
	Helper       *helper.HTTPHelper
	secureCookie bool
}

func NewAuthHandler(authService services.AuthService, h *helper.HTTPHelper, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: authService, Helper: h, secureCookie: secureCookie}
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, res *models.AuthResponse) {
	maxAge := int(time.Until(time.Unix(res.Expires, 0)).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, res.SessionToken, maxAge, "/", "", h.secureCookie, true)
}

func (h *AuthHandler) RequestEmailSignIn(c *gin.Context) {
	var req models.EmailSignInRequest
	if !h.Helper.BindJSON(c, &req) {
		return
	}

	if err := h.authService.RequestEmailSignIn(c.Request.Context(), req); err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Check your inbox for a sign-in link", h.Helper.EmptyJsonMap())
}

func (h *AuthHandler) EmailCallback(c *gin.Context) {
	var req models.EmailCallbackRequest
	if !h.Helper.BindJSON(c, &req) {
		return
	}

	response, err := h.authService.CompleteEmailSignIn(c.Request.Context(), req)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.setSessionCookie(c, response)
	h.Helper.SendSuccess(c, "Sign in success", response)
}

func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	var req models.OAuthCallbackRequest
	if !h.Helper.BindJSON(c, &req) {
		return
	}

	response, err := h.authService.OAuthSignIn(c.Request.Context(), req)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.setSessionCookie(c, response)
	h.Helper.SendSuccess(c, "Sign in success", response)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	response, err := h.authService.RefreshSession(c.Request.Context())
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.setSessionCookie(c, response)
	h.Helper.SendSuccess(c, "Session refreshed", response)
}

func (h *AuthHandler) SignOut(c *gin.Context) {
	token := ""
	if session := services.SessionFromContext(c.Request.Context()); session != nil {
		token = session.SessionToken
	} else if cookie, err := c.Cookie(middleware.SessionCookie); err == nil {
		token = cookie
	}

	if err := h.authService.SignOut(c.Request.Context(), token); err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.secureCookie, true)
	h.Helper.SendSuccess(c, "Signed out", h.Helper.EmptyJsonMap())
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, err := h.authService.GetProfile(c.Request.Context())
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Profile loaded", user)
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if !h.Helper.BindJSON(c, &req) {
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), req)
	if err != nil {
		h.Helper.SendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Profile updated", user)
}
