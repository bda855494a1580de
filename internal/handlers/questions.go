package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

var questionSortColumns = map[string]string{
	"createdAt":    "created_at",
	"votes":        "votes",
	"views":        "views",
	"lastActivity": "last_activity",
}

type QuestionHandler struct {
	db *gorm.DB
}

func NewQuestionHandler(db *gorm.DB) *QuestionHandler {
	return &QuestionHandler{db: db}
}

// questionDetail is a question with its active answers.
type questionDetail struct {
	models.Question
	Answers []models.Answer `json:"answers"`
}

// ListQuestions returns active questions with filtering, sorting and pagination
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	p := parsePage(c, 10, 50)

	q := h.db.Model(&models.Question{}).Where("questions.is_active = ?", true)
	if tag := strings.ToLower(strings.TrimSpace(c.Query("tag"))); tag != "" {
		q = q.Where("questions.id IN (?)", h.db.Table("question_tags").
			Select("question_tags.question_id").
			Joins("JOIN tags ON tags.id = question_tags.tag_id").
			Where("tags.name = ?", tag))
	}
	if author := c.Query("author"); author != "" {
		q = q.Where("questions.author_id = ?", author)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + search + "%"
		q = q.Where("questions.title ILIKE ? OR questions.description ILIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	column, ok := questionSortColumns[c.DefaultQuery("sortBy", "createdAt")]
	if !ok {
		column = "created_at"
	}

	var questions []models.Question
	err := q.Preload("Author").Preload("Tags").
		Order("questions." + column + " " + orderDirection(c.DefaultQuery("order", "desc"))).
		Order("questions.id DESC").
		Offset(p.Offset()).Limit(p.Limit).
		Find(&questions).Error
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"questions":  questions,
		"pagination": pagination(p, total, "totalQuestions"),
	})
}

// GetQuestion returns a question with its answers. It does not count a view.
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var question models.Question
	if err := h.db.Preload("Author").Preload("Tags").Where("is_active = ?", true).First(&question, id).Error; err != nil {
		respondError(c, dbError(err, "question"))
		return
	}

	var answers []models.Answer
	err := h.db.Preload("Author").
		Where("question_id = ? AND is_active = ?", id, true).
		Order("is_accepted DESC, votes DESC, created_at ASC").
		Find(&answers).Error
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, questionDetail{Question: question, Answers: answers})
}

// IncrementView counts one view of a question
func (h *QuestionHandler) IncrementView(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var question models.Question
	res := h.db.Model(&question).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "views"}}}).
		Where("id = ? AND is_active = ?", id, true).
		UpdateColumn("views", gorm.Expr("views + 1"))
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		notFound(c, "Question")
		return
	}
	c.JSON(http.StatusOK, gin.H{"views": question.Views})
}

// CreateQuestion creates a question and its tags
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var input models.CreateQuestionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}
	title := strings.TrimSpace(input.Title)
	description := sanitizeHTML(input.Description)
	if title == "" || description == "" {
		badRequest(c, "Title and description are required")
		return
	}

	question := models.Question{
		Title:        title,
		Description:  description,
		AuthorID:     user.ID,
		IsActive:     true,
		LastActivity: time.Now().UTC(),
	}
	err := h.db.Transaction(func(tx *gorm.DB) error {
		tags, err := upsertTags(tx, input.Tags, user.ID)
		if err != nil {
			return err
		}
		question.Tags = tags
		return tx.Omit("Tags.*").Create(&question).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.db.Preload("Author").Preload("Tags").First(&question, question.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "Question created successfully", "question": question})
}

// UpdateQuestion lets the author or an admin edit a question
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var input models.UpdateQuestionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	var question models.Question
	if err := h.db.Preload("Tags").Where("is_active = ?", true).First(&question, id).Error; err != nil {
		respondError(c, dbError(err, "question"))
		return
	}
	if question.AuthorID != user.ID && !user.IsAdmin() {
		forbidden(c, "Not authorized to update this question")
		return
	}

	updates := map[string]any{"last_activity": time.Now().UTC()}
	if title := strings.TrimSpace(input.Title); title != "" {
		updates["title"] = title
	}
	if input.Description != "" {
		updates["description"] = sanitizeHTML(input.Description)
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if input.Tags != nil {
			if err := decrementTags(tx, question.Tags); err != nil {
				return err
			}
			tags, err := upsertTags(tx, input.Tags, user.ID)
			if err != nil {
				return err
			}
			if err := tx.Model(&question).Omit("Tags.*").Association("Tags").Replace(tags); err != nil {
				return err
			}
		}
		return tx.Model(&question).Updates(updates).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}

	var updated models.Question
	h.db.Preload("Author").Preload("Tags").First(&updated, id)
	c.JSON(http.StatusOK, gin.H{"message": "Question updated successfully", "question": updated})
}

// DeleteQuestion soft deletes a question
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var question models.Question
	if err := h.db.Preload("Tags").Where("is_active = ?", true).First(&question, id).Error; err != nil {
		respondError(c, dbError(err, "question"))
		return
	}
	if question.AuthorID != user.ID && !user.IsAdmin() {
		forbidden(c, "Not authorized to delete this question")
		return
	}

	if err := deactivateQuestion(h.db, &question); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question deleted successfully"})
}

// deactivateQuestion hides a question and releases its tags. Tags must be
// preloaded.
func deactivateQuestion(db *gorm.DB, question *models.Question) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(question).Update("is_active", false).Error; err != nil {
			return err
		}
		return decrementTags(tx, question.Tags)
	})
}

// upsertTags finds or creates each named tag, lowercased and deduplicated,
// and counts one more question on each.
func upsertTags(tx *gorm.DB, names []string, userID uint) ([]models.Tag, error) {
	seen := map[string]bool{}
	tags := make([]models.Tag, 0, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		tag := models.Tag{Name: name, CreatedByID: &userID, IsActive: true}
		err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).Create(&tag).Error
		if err != nil {
			return nil, err
		}
		if err := tx.Where("name = ?", name).First(&tag).Error; err != nil {
			return nil, err
		}
		if err := tx.Model(&tag).UpdateColumn("question_count", gorm.Expr("question_count + 1")).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// decrementTags counts one question less on each tag, never below zero.
func decrementTags(tx *gorm.DB, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	ids := make([]uint, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return tx.Model(&models.Tag{}).Where("id IN ?", ids).
		UpdateColumn("question_count", gorm.Expr("GREATEST(question_count - 1, 0)")).Error
}
