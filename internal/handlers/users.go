package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/models"
)

const reputationHistoryLimit = 20

type UserHandler struct {
	db *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// GetUserProfile returns a user's public profile, activity counts and recent
// reputation changes
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var user models.User
	if err := h.db.Where("is_active = ?", true).First(&user, userID).Error; err != nil {
		respondError(c, dbError(err, "user"))
		return
	}

	var questionCount, answerCount, acceptedCount int64
	h.db.Model(&models.Question{}).Where("author_id = ? AND is_active = ?", userID, true).Count(&questionCount)
	h.db.Model(&models.Answer{}).Where("author_id = ? AND is_active = ?", userID, true).Count(&answerCount)
	h.db.Model(&models.Answer{}).Where("author_id = ? AND is_active = ? AND is_accepted = ?", userID, true, true).Count(&acceptedCount)

	var history []models.ReputationLog
	if err := h.db.Where("user_id = ?", userID).Order("created_at desc").Limit(reputationHistoryLimit).Find(&history).Error; err != nil {
		respondError(c, err)
		return
	}

	var questions []models.Question
	h.db.Where("author_id = ? AND is_active = ?", userID, true).
		Preload("Tags").
		Order("created_at desc").
		Limit(10).
		Find(&questions)

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":         user.ID,
			"name":       user.Name,
			"avatar":     user.Avatar,
			"bio":        user.Bio,
			"role":       user.Role,
			"reputation": user.Reputation,
			"joinedAt":   user.CreatedAt,
		},
		"stats": gin.H{
			"questions":       questionCount,
			"answers":         answerCount,
			"acceptedAnswers": acceptedCount,
		},
		"recentQuestions":   questions,
		"reputationHistory": history,
	})
}
