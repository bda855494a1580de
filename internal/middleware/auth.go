package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

const (
	CurrentUserKey = "user"
	authErrorKey   = "auth_error"
)

type Authenticator struct {
	auth *auth.Auth
	db   *gorm.DB
}

func NewAuthenticator(a *auth.Auth, db *gorm.DB) *Authenticator {
	return &Authenticator{auth: a, db: db}
}

// LoadUser resolves the Bearer token, if any, and stores the active user in
// the context. It never aborts; AuthRequired decides what a missing user means.
func (m *Authenticator) LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		claims, err := m.auth.ValidateToken(token)
		if err != nil {
			c.Set(authErrorKey, "Invalid token")
			c.Next()
			return
		}

		var user models.User
		err = m.db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.Set(authErrorKey, "Invalid token")
		case err != nil:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		case !user.IsActive:
			c.Set(authErrorKey, "Account is deactivated")
		default:
			c.Set(CurrentUserKey, &user)
		}
		c.Next()
	}
}

// AuthRequired rejects requests without an authenticated active user.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) != nil {
			c.Next()
			return
		}
		msg := c.GetString(authErrorKey)
		if msg == "" {
			msg = "Access denied. No token provided."
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CurrentUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
