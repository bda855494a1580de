package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

type AuthHandler struct {
	db     *gorm.DB
	auth   *auth.Auth
	logger *slog.Logger
}

func NewAuthHandler(db *gorm.DB, a *auth.Auth, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{db: db, auth: a, logger: logger}
}

// Signup handles user registration
func (h *AuthHandler) Signup(c *gin.Context) {
	var input models.SignupRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var count int64
	if err := h.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		respondError(c, err)
		return
	}
	if count > 0 {
		badRequest(c, "User already exists")
		return
	}

	hashed, err := h.auth.HashPassword(input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	role := input.Role
	if role == "" {
		role = models.RoleUser
	}
	user := models.User{
		Name:     strings.TrimSpace(input.Name),
		Email:    email,
		Password: hashed,
		Role:     role,
		IsActive: true,
	}
	if err := h.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			badRequest(c, "User already exists")
			return
		}
		respondError(c, err)
		return
	}

	token, err := h.auth.GenerateToken(user.ID, user.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "user signed up", "user_id", user.ID)
	c.JSON(http.StatusCreated, models.AuthResponse{
		Token:   token,
		User:    user,
		Message: "User created successfully",
	})
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	var user models.User
	err := h.db.Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		badRequest(c, "Invalid credentials")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	if !user.IsActive {
		forbidden(c, "Account is deactivated")
		return
	}
	if !h.auth.CheckPassword(user.Password, input.Password) {
		badRequest(c, "Invalid credentials")
		return
	}

	now := time.Now().UTC()
	if err := h.db.Model(&user).UpdateColumn("last_login", now).Error; err != nil {
		respondError(c, err)
		return
	}
	user.LastLogin = &now

	token, err := h.auth.GenerateToken(user.ID, user.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		Token:   token,
		User:    user,
		Message: "Login successful",
	})
}

// GetMe returns the authenticated user
func (h *AuthHandler) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middleware.CurrentUser(c)})
}

// UpdateProfile lets users change their own name, email, bio and avatar
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var input models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(input.Name); name != "" {
		updates["name"] = name
	}
	if email := strings.ToLower(strings.TrimSpace(input.Email)); email != "" && email != user.Email {
		var count int64
		if err := h.db.Model(&models.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&count).Error; err != nil {
			respondError(c, err)
			return
		}
		if count > 0 {
			badRequest(c, "Email already in use")
			return
		}
		updates["email"] = email
	}
	updates["bio"] = strings.TrimSpace(input.Bio)
	if input.Avatar != "" {
		updates["avatar"] = input.Avatar
	}

	if err := h.db.Model(user).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			badRequest(c, "Email already in use")
			return
		}
		respondError(c, err)
		return
	}

	var updated models.User
	if err := h.db.First(&updated, user.ID).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": updated})
}
