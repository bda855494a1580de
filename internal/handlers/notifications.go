package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// Broadcaster sends admin messages.
type Broadcaster interface {
	Broadcast(ctx context.Context, senderID uint, title, message string, recipients []uint) (int, error)
}

type NotificationHandler struct {
	db          *gorm.DB
	broadcaster Broadcaster
}

func NewNotificationHandler(db *gorm.DB, b Broadcaster) *NotificationHandler {
	return &NotificationHandler{db: db, broadcaster: b}
}

func (h *NotificationHandler) mine(c *gin.Context) *gorm.DB {
	return h.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_active = ?", middleware.CurrentUser(c).ID, true)
}

// ListNotifications returns the caller's notifications, newest first
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	p := parsePage(c, 20, 100)

	q := h.mine(c)
	if c.Query("unreadOnly") == "true" {
		q = q.Where("is_read = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var notifications []models.Notification
	err := q.Preload("Sender", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "name", "avatar")
	}).Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&notifications).Error
	if err != nil {
		respondError(c, err)
		return
	}

	var unread int64
	if err := h.mine(c).Where("is_read = ?", false).Count(&unread).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unreadCount":   unread,
		"pagination":    pagination(p, total, "totalNotifications"),
	})
}

// UnreadCount returns how many of the caller's notifications are unread
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	var unread int64
	if err := h.mine(c).Where("is_read = ?", false).Count(&unread).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": unread})
}

// MarkAsRead marks one of the caller's notifications read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	res := h.mine(c).Where("id = ?", id).Update("is_read", true)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		notFound(c, "Notification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// MarkAllAsRead marks every unread notification of the caller read
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	res := h.mine(c).Where("is_read = ?", false).Update("is_read", true)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": res.RowsAffected})
}

// DeleteNotification hides one of the caller's notifications
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	res := h.mine(c).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		notFound(c, "Notification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}

// SendAdminMessage sends a message to the given users, or to every active
// user when none are given. Admin only.
func (h *NotificationHandler) SendAdminMessage(c *gin.Context) {
	var input models.AdminMessageRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Title and message are required")
		return
	}
	title, message := strings.TrimSpace(input.Title), strings.TrimSpace(input.Message)
	if title == "" || message == "" {
		badRequest(c, "Title and message are required")
		return
	}

	sent, err := h.broadcaster.Broadcast(c.Request.Context(), middleware.CurrentUser(c).ID, title, message, input.TargetUsers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Admin message sent", "recipientCount": sent})
}

// Stats summarizes notifications across all users. Admin only.
func (h *NotificationHandler) Stats(c *gin.Context) {
	var total, unread int64
	base := h.db.Model(&models.Notification{}).Where("is_active = ?", true)
	if err := base.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}
	if err := h.db.Model(&models.Notification{}).Where("is_active = ? AND is_read = ?", true, false).Count(&unread).Error; err != nil {
		respondError(c, err)
		return
	}

	var byType []struct {
		Type  string `json:"type"`
		Count int64  `json:"count"`
	}
	err := h.db.Model(&models.Notification{}).
		Select("type, COUNT(*) AS count").
		Where("is_active = ?", true).
		Group("type").
		Order("count DESC").
		Scan(&byType).Error
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totalNotifications":  total,
		"unreadNotifications": unread,
		"byType":              byType,
	})
}
