package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

const (
	recentWindow  = 7 * 24 * time.Hour
	flaggedLimit  = 10
	analyticsDays = 30
)

type AdminHandler struct {
	db         *gorm.DB
	moderation config.Moderation
	logger     *slog.Logger
}

func NewAdminHandler(db *gorm.DB, moderation config.Moderation, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{db: db, moderation: moderation, logger: logger}
}

type dashboardCounts struct {
	TotalUsers      int64 `json:"totalUsers"`
	TotalQuestions  int64 `json:"totalQuestions"`
	TotalAnswers    int64 `json:"totalAnswers"`
	TotalTags       int64 `json:"totalTags"`
	RecentUsers     int64 `json:"-"`
	RecentQuestions int64 `json:"-"`
	RecentAnswers   int64 `json:"-"`
}

// Dashboard returns platform totals, activity over the last week, the top
// users by reputation and the most used tags.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	db := h.db.WithContext(ctx)
	since := time.Now().Add(-recentWindow)

	var (
		counts          dashboardCounts
		topUsers        []models.User
		popularTags     []models.Tag
		recentQuestions []models.Question
	)

	count := func(model any, dst *int64, recent bool) func() error {
		return func() error {
			q := db.Model(model).Where("is_active = ?", true)
			if recent {
				q = q.Where("created_at >= ?", since)
			}
			return q.Count(dst).Error
		}
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(count(&models.User{}, &counts.TotalUsers, false))
	g.Go(count(&models.Question{}, &counts.TotalQuestions, false))
	g.Go(count(&models.Answer{}, &counts.TotalAnswers, false))
	g.Go(count(&models.Tag{}, &counts.TotalTags, false))
	g.Go(count(&models.User{}, &counts.RecentUsers, true))
	g.Go(count(&models.Question{}, &counts.RecentQuestions, true))
	g.Go(count(&models.Answer{}, &counts.RecentAnswers, true))
	g.Go(func() error {
		return db.Where("is_active = ?", true).Order("reputation DESC").Limit(10).Find(&topUsers).Error
	})
	g.Go(func() error {
		return db.Where("is_active = ?", true).Order("question_count DESC").Limit(10).Find(&popularTags).Error
	})
	g.Go(func() error {
		return db.Preload("Author").Preload("Tags").
			Where("is_active = ?", true).Order("created_at DESC").Limit(5).Find(&recentQuestions).Error
	})
	if err := g.Wait(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"overview": counts,
		"recentActivity": gin.H{
			"newUsers":     counts.RecentUsers,
			"newQuestions": counts.RecentQuestions,
			"newAnswers":   counts.RecentAnswers,
		},
		"topUsers":        topUsers,
		"popularTags":     popularTags,
		"recentQuestions": recentQuestions,
	})
}

// ListUsers pages through all users, active or not
func (h *AdminHandler) ListUsers(c *gin.Context) {
	p := parsePage(c, 20, 100)

	q := h.db.Model(&models.User{})
	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		q = q.Where("name ILIKE ? OR email ILIKE ?", like, like)
	}
	if role := c.Query("role"); role != "" {
		q = q.Where("role = ?", role)
	}
	if active, err := strconv.ParseBool(c.Query("isActive")); err == nil {
		q = q.Where("is_active = ?", active)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var users []models.User
	if err := q.Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&users).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":      users,
		"pagination": pagination(p, total, "totalUsers"),
	})
}

// UpdateUser changes a user's role or active flag
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var input models.UpdateUserRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Role must be user or admin")
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		respondError(c, dbError(err, "user"))
		return
	}

	updates := map[string]any{}
	if input.Role != "" {
		updates["role"] = input.Role
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			respondError(c, err)
			return
		}
	}

	h.logger.Info("user updated by admin",
		"user_id", user.ID, "admin_id", middleware.CurrentUser(c).ID, "role", user.Role, "active", user.IsActive)
	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully", "user": user})
}

// ToggleBan flips a user's active flag. Admins cannot be banned.
func (h *AdminHandler) ToggleBan(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		respondError(c, dbError(err, "user"))
		return
	}
	if user.IsAdmin() {
		badRequest(c, "Cannot ban admin users")
		return
	}

	if err := h.db.Model(&user).Update("is_active", !user.IsActive).Error; err != nil {
		respondError(c, err)
		return
	}

	action := "banned"
	if user.IsActive {
		action = "unbanned"
	}
	h.logger.Info("user "+action, "user_id", user.ID, "admin_id", middleware.CurrentUser(c).ID)
	c.JSON(http.StatusOK, gin.H{"message": "User " + action + " successfully", "user": user})
}

// FlaggedContent lists the lowest voted questions and answers whose vote
// count fell below the moderation threshold
func (h *AdminHandler) FlaggedContent(c *gin.Context) {
	threshold := h.moderation.FlagThreshold

	var questions []models.Question
	err := h.db.Preload("Author").Preload("Tags").
		Where("votes < ? AND is_active = ?", threshold, true).
		Order("votes ASC").Limit(flaggedLimit).Find(&questions).Error
	if err != nil {
		respondError(c, err)
		return
	}

	var answers []models.Answer
	err = h.db.Preload("Author").
		Preload("Question", func(db *gorm.DB) *gorm.DB { return db.Select("id", "title") }).
		Where("votes < ? AND is_active = ?", threshold, true).
		Order("votes ASC").Limit(flaggedLimit).Find(&answers).Error
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"threshold":        threshold,
		"flaggedQuestions": questions,
		"flaggedAnswers":   answers,
	})
}

// DeleteContent soft deletes a question or an answer
func (h *AdminHandler) DeleteContent(c *gin.Context) {
	kind := c.Param("type")
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var err error
	switch kind {
	case "question":
		var question models.Question
		if err = h.db.Preload("Tags").Where("is_active = ?", true).First(&question, id).Error; err == nil {
			err = deactivateQuestion(h.db, &question)
		}
	case "answer":
		var answer models.Answer
		if err = h.db.Where("is_active = ?", true).First(&answer, id).Error; err == nil {
			err = deactivateAnswer(h.db, &answer)
		}
	default:
		badRequest(c, "Invalid content type")
		return
	}
	if err != nil {
		respondError(c, dbError(err, kind))
		return
	}

	h.logger.Info("content removed by admin", "type", kind, "id", id, "admin_id", middleware.CurrentUser(c).ID)
	c.JSON(http.StatusOK, gin.H{"message": kind + " deleted successfully"})
}

type dailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Analytics returns daily new questions and users over the last N days and
// the top questions by votes then views
func (h *AdminHandler) Analytics(c *gin.Context) {
	days := analyticsDays
	if v, err := strconv.Atoi(c.Query("days")); err == nil && v > 0 {
		days = min(v, 365)
	}
	since := time.Now().AddDate(0, 0, -days)

	daily := func(model any) ([]dailyCount, error) {
		var rows []dailyCount
		err := h.db.Model(model).
			Select("to_char(created_at, 'YYYY-MM-DD') AS date, COUNT(*) AS count").
			Where("created_at >= ? AND is_active = ?", since, true).
			Group("date").Order("date ASC").
			Scan(&rows).Error
		return rows, err
	}

	activity, err := daily(&models.Question{})
	if err != nil {
		respondError(c, err)
		return
	}
	growth, err := daily(&models.User{})
	if err != nil {
		respondError(c, err)
		return
	}

	var top []models.Question
	err = h.db.Preload("Author").Where("is_active = ?", true).
		Order("votes DESC").Order("views DESC").Limit(10).Find(&top).Error
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"days":          days,
		"dailyActivity": activity,
		"userGrowth":    growth,
		"topQuestions":  top,
	})
}
