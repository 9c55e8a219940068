package api

import (
	"net/http"

	"realtime-chat/backend/internal/models"
	"realtime-chat/backend/internal/service"
	apperrors "realtime-chat/backend/pkg/errors"
	"realtime-chat/backend/pkg/logger"
	"realtime-chat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// SessionCookie describes the cookie browser sessions live in
type SessionCookie struct {
	Name   string
	MaxAge int
	Secure bool
}

// AuthHandler handles registration, login and logout for both the HTML
// pages and the JSON API
type AuthHandler struct {
	service *service.UserService
	cookie  SessionCookie
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *service.UserService, cookie SessionCookie, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookie:  cookie,
		logger:  logger,
	}
}

// ShowRegister renders the registration form
func (h *AuthHandler) ShowRegister(c *gin.Context) {
	c.HTML(http.StatusOK, "register.tmpl", gin.H{"Title": "Register"})
}

// Register handles the registration form
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderForm(c, "register.tmpl", "Register", invalidBody(err), gin.H{"name": req.Name, "email": req.Email})
		return
	}

	user, token, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		h.renderForm(c, "register.tmpl", "Register", err, gin.H{"name": req.Name, "email": req.Email})
		return
	}

	h.logger.Info("User registered", "userID", user.ID)
	h.startSession(c, token)
	c.Redirect(http.StatusFound, "/chat")
}

// ShowLogin renders the login form
func (h *AuthHandler) ShowLogin(c *gin.Context) {
	c.HTML(http.StatusOK, "login.tmpl", gin.H{"Title": "Log in"})
}

// Login handles the login form. Every successful login issues a new token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderForm(c, "login.tmpl", "Log in", invalidBody(err), gin.H{"email": req.Email})
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		h.renderForm(c, "login.tmpl", "Log in", err, gin.H{"email": req.Email})
		return
	}

	h.logger.Info("User logged in", "userID", user.ID)
	h.startSession(c, token)
	c.Redirect(http.StatusFound, "/chat")
}

// Logout ends the browser session
func (h *AuthHandler) Logout(c *gin.Context) {
	middleware.ClearSessionCookie(c, h.cookie.Name, h.cookie.Secure)
	c.Redirect(http.StatusFound, "/login")
}

// APIRegister handles POST /api/v1/auth/register
func (h *AuthHandler) APIRegister(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(invalidBody(err))
		return
	}

	user, token, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	h.logger.Info("User registered", "userID", user.ID)
	c.JSON(http.StatusCreated, gin.H{
		"user":  user.ToResponse(),
		"token": token,
	})
}

// APILogin handles POST /api/v1/auth/login
func (h *AuthHandler) APILogin(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(invalidBody(err))
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	h.logger.Info("User logged in", "userID", user.ID)
	c.JSON(http.StatusOK, gin.H{
		"user":  user.ToResponse(),
		"token": token,
	})
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	if identity == nil {
		c.Error(apperrors.NewUnauthorizedError(apperrors.CodeAuthRequired, "Authentication required"))
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), identity.ID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

func (h *AuthHandler) startSession(c *gin.Context, token string) {
	middleware.SetSessionCookie(c, h.cookie.Name, token, h.cookie.MaxAge, h.cookie.Secure)
}

// renderForm re-renders a form with field errors and the user's input.
// Unexpected failures still go through the error middleware for logging.
func (h *AuthHandler) renderForm(c *gin.Context, page, title string, err error, old gin.H) {
	appErr := apperrors.FromError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		c.Error(err)
	}

	fieldErrors := apperrors.FieldErrors(appErr)
	if fieldErrors == nil {
		fieldErrors = map[string][]string{"form": {appErr.Message}}
	}

	status := appErr.StatusCode
	if status == http.StatusUnauthorized {
		// A failed login is a form error, not a missing session
		status = http.StatusUnprocessableEntity
	}

	c.HTML(status, page, gin.H{
		"Title":  title,
		"Errors": fieldErrors,
		"Old":    old,
	})
}
