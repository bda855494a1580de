package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

var tagSortColumns = map[string]string{
	"questionCount": "question_count",
	"name":          "name",
	"createdAt":     "created_at",
}

type TagHandler struct {
	db *gorm.DB
}

func NewTagHandler(db *gorm.DB) *TagHandler {
	return &TagHandler{db: db}
}

// ListTags returns active tags
func (h *TagHandler) ListTags(c *gin.Context) {
	p := parsePage(c, 20, 100)

	q := h.db.Model(&models.Tag{}).Where("is_active = ?", true)
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + search + "%"
		q = q.Where("name ILIKE ? OR description ILIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	column, ok := tagSortColumns[c.DefaultQuery("sortBy", "questionCount")]
	if !ok {
		column = "question_count"
	}
	var tags []models.Tag
	err := q.Order(column + " " + orderDirection(c.DefaultQuery("order", "desc"))).
		Order("id ASC").
		Offset(p.Offset()).Limit(p.Limit).
		Find(&tags).Error
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": tags, "pagination": pagination(p, total, "totalTags")})
}

// PopularTags returns the tags used by the most questions
func (h *TagHandler) PopularTags(c *gin.Context) {
	limit := queryLimit(c, 20, 100)

	var tags []models.Tag
	err := h.db.Where("is_active = ? AND question_count > 0", true).
		Order("question_count DESC, name ASC").
		Limit(limit).
		Find(&tags).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// SearchTags matches tag names for autocomplete
func (h *TagHandler) SearchTags(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		c.JSON(http.StatusOK, []models.Tag{})
		return
	}

	var tags []models.Tag
	err := h.db.Select("id", "name", "color", "question_count").
		Where("is_active = ? AND name ILIKE ?", true, "%"+term+"%").
		Order("question_count DESC").
		Limit(queryLimit(c, 10, 50)).
		Find(&tags).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// GetTag finds a tag by id or name and returns it with its recent questions
func (h *TagHandler) GetTag(c *gin.Context) {
	tag, err := h.findTag(c.Param("identifier"))
	if err != nil {
		respondError(c, err)
		return
	}

	var questions []models.Question
	err = h.taggedQuestions(tag.ID).
		Preload("Author").
		Order("created_at DESC").
		Limit(10).
		Find(&questions).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag, "recentQuestions": questions})
}

// QuestionsByTag lists the active questions carrying a tag
func (h *TagHandler) QuestionsByTag(c *gin.Context) {
	tag, err := h.findTag(c.Param("identifier"))
	if err != nil {
		respondError(c, err)
		return
	}
	p := parsePage(c, 10, 50)

	q := h.taggedQuestions(tag.ID)
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
	err = q.Preload("Author").Preload("Tags").
		Order(column + " " + orderDirection(c.DefaultQuery("order", "desc"))).
		Offset(p.Offset()).Limit(p.Limit).
		Find(&questions).Error
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tag":        tag,
		"questions":  questions,
		"pagination": pagination(p, total, "totalQuestions"),
	})
}

// CreateTag creates a tag explicitly
func (h *TagHandler) CreateTag(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var input models.TagRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Tag name is required")
		return
	}
	name := strings.ToLower(strings.TrimSpace(input.Name))
	if name == "" {
		badRequest(c, "Tag name is required")
		return
	}

	tag := models.Tag{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Color:       input.Color,
		CreatedByID: &user.ID,
		IsActive:    true,
	}
	if tag.Color == "" {
		tag.Color = "#007bff"
	}
	if err := h.db.Create(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			badRequest(c, "Tag already exists")
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Tag created successfully", "tag": tag})
}

// UpdateTag lets the tag creator or an admin change description and color
func (h *TagHandler) UpdateTag(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var input struct {
		Description *string `json:"description" binding:"omitempty,max=500"`
		Color       string  `json:"color" binding:"omitempty,hexcolor"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	var tag models.Tag
	if err := h.db.Where("is_active = ?", true).First(&tag, id).Error; err != nil {
		respondError(c, dbError(err, "tag"))
		return
	}
	if (tag.CreatedByID == nil || *tag.CreatedByID != user.ID) && !user.IsAdmin() {
		forbidden(c, "Not authorized to update this tag")
		return
	}

	updates := map[string]any{}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Color != "" {
		updates["color"] = input.Color
	}
	if len(updates) > 0 {
		if err := h.db.Model(&tag).Updates(updates).Error; err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tag updated successfully", "tag": tag})
}

// DeleteTag soft deletes a tag. Admin only.
func (h *TagHandler) DeleteTag(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	res := h.db.Model(&models.Tag{}).Where("id = ? AND is_active = ?", id, true).Update("is_active", false)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		notFound(c, "Tag")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tag deleted successfully"})
}

func (h *TagHandler) findTag(identifier string) (*models.Tag, error) {
	var tag models.Tag
	q := h.db.Where("is_active = ?", true)
	if id, err := strconv.ParseUint(identifier, 10, 64); err == nil {
		q = q.Where("id = ?", id)
	} else {
		q = q.Where("name = ?", strings.ToLower(identifier))
	}
	if err := q.First(&tag).Error; err != nil {
		return nil, dbError(err, "tag")
	}
	return &tag, nil
}

func (h *TagHandler) taggedQuestions(tagID uint) *gorm.DB {
	return h.db.Model(&models.Question{}).
		Where("is_active = ?", true).
		Where("id IN (?)", h.db.Table("question_tags").Select("question_id").Where("tag_id = ?", tagID))
}

func queryLimit(c *gin.Context, def, maxLimit int) int {
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		return min(v, maxLimit)
	}
	return def
}
