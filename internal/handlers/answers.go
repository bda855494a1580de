package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/lifecycle"
	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/notify"
)

// AnswerReviewer moves answers through their lifecycle.
type AnswerReviewer interface {
	Accept(ctx context.Context, req lifecycle.Request) (lifecycle.Result, error)
	Unaccept(ctx context.Context, req lifecycle.Request) (lifecycle.Result, error)
	Reject(ctx context.Context, req lifecycle.Request) (lifecycle.Result, error)
}

type AnswerHandler struct {
	db       *gorm.DB
	reviewer AnswerReviewer
	notifier notify.Dispatcher
}

func NewAnswerHandler(db *gorm.DB, reviewer AnswerReviewer, notifier notify.Dispatcher) *AnswerHandler {
	return &AnswerHandler{db: db, reviewer: reviewer, notifier: notifier}
}

// ListAnswers returns a question's active answers
func (h *AnswerHandler) ListAnswers(c *gin.Context) {
	questionID, ok := parseID(c, "questionId")
	if !ok {
		return
	}
	p := parsePage(c, 10, 50)

	var count int64
	if err := h.db.Model(&models.Question{}).Where("id = ? AND is_active = ?", questionID, true).Count(&count).Error; err != nil {
		respondError(c, err)
		return
	}
	if count == 0 {
		notFound(c, "Question")
		return
	}

	order := "votes DESC, created_at DESC"
	switch c.Query("sortBy") {
	case "newest":
		order = "created_at DESC"
	case "oldest":
		order = "created_at ASC"
	}

	q := h.db.Model(&models.Answer{}).Where("question_id = ? AND is_active = ?", questionID, true)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var answers []models.Answer
	if err := q.Preload("Author").Order(order).Offset(p.Offset()).Limit(p.Limit).Find(&answers).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"answers":    answers,
		"pagination": pagination(p, total, "totalAnswers"),
	})
}

// MyAnswers returns the authenticated user's answers with their questions
func (h *AnswerHandler) MyAnswers(c *gin.Context) {
	user := middleware.CurrentUser(c)
	p := parsePage(c, 10, 50)

	q := h.db.Model(&models.Answer{}).Where("author_id = ? AND is_active = ?", user.ID, true)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var answers []models.Answer
	err := q.Preload("Question", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "title", "author_id", "accepted_answer_id")
	}).Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&answers).Error
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"answers":    answers,
		"pagination": pagination(p, total, "totalAnswers"),
	})
}

// CreateAnswer posts an answer and notifies the question author
func (h *AnswerHandler) CreateAnswer(c *gin.Context) {
	user := middleware.CurrentUser(c)
	questionID, ok := parseID(c, "questionId")
	if !ok {
		return
	}

	var input models.AnswerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Answer content is required")
		return
	}
	content := sanitizeHTML(input.Content)
	if content == "" {
		badRequest(c, "Answer content is required")
		return
	}

	var question models.Question
	answer := models.Answer{
		Content:    content,
		AuthorID:   user.ID,
		QuestionID: questionID,
		Status:     lifecycle.StatusPending.String(),
		IsActive:   true,
	}
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id", "title", "author_id").Where("is_active = ?", true).First(&question, questionID).Error; err != nil {
			return dbError(err, "question")
		}
		if err := tx.Create(&answer).Error; err != nil {
			return err
		}
		return tx.Model(&models.Question{}).Where("id = ?", questionID).UpdateColumns(map[string]any{
			"answer_ids":    gorm.Expr("array_append(answer_ids, ?::bigint)", answer.ID),
			"last_activity": time.Now().UTC(),
		}).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if question.AuthorID != user.ID {
		h.notifier.Dispatch(c.Request.Context(), notify.Intent{
			Type:          notify.TypeAnswerPosted,
			RecipientID:   question.AuthorID,
			SenderID:      user.ID,
			QuestionID:    question.ID,
			AnswerID:      answer.ID,
			QuestionTitle: question.Title,
		})
	}

	h.db.Preload("Author").First(&answer, answer.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "Answer created successfully", "answer": answer})
}

// UpdateAnswer lets the author or an admin edit an answer, keeping the
// previous content in the edit history
func (h *AnswerHandler) UpdateAnswer(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var input models.AnswerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Answer content is required")
		return
	}
	content := sanitizeHTML(input.Content)
	if content == "" {
		badRequest(c, "Answer content is required")
		return
	}

	var answer models.Answer
	if err := h.db.Where("is_active = ?", true).First(&answer, id).Error; err != nil {
		respondError(c, dbError(err, "answer"))
		return
	}
	if answer.AuthorID != user.ID && !user.IsAdmin() {
		forbidden(c, "Not authorized to update this answer")
		return
	}

	now := time.Now().UTC()
	err := h.db.Transaction(func(tx *gorm.DB) error {
		edit := models.AnswerEdit{AnswerID: answer.ID, Content: answer.Content, EditedByID: user.ID, EditedAt: now}
		if err := tx.Create(&edit).Error; err != nil {
			return err
		}
		if err := tx.Model(&answer).Update("content", content).Error; err != nil {
			return err
		}
		return tx.Model(&models.Question{}).Where("id = ?", answer.QuestionID).Update("last_activity", now).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}

	var updated models.Answer
	h.db.Preload("Author").Preload("EditHistory").First(&updated, id)
	c.JSON(http.StatusOK, gin.H{"message": "Answer updated successfully", "answer": updated})
}

// DeleteAnswer soft deletes an answer and detaches it from its question
func (h *AnswerHandler) DeleteAnswer(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var answer models.Answer
	if err := h.db.Where("is_active = ?", true).First(&answer, id).Error; err != nil {
		respondError(c, dbError(err, "answer"))
		return
	}
	if answer.AuthorID != user.ID && !user.IsAdmin() {
		forbidden(c, "Not authorized to delete this answer")
		return
	}

	if err := deactivateAnswer(h.db, &answer); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Answer deleted successfully"})
}

// deactivateAnswer hides an answer, returns it to pending when it was
// accepted, removes it from the question's answer list and clears the
// question's accepted answer when it pointed here.
func deactivateAnswer(db *gorm.DB, answer *models.Answer) error {
	return db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Answer{}).Where("id = ?", answer.ID).Updates(map[string]any{
			"is_active":   false,
			"is_accepted": false,
			"status": gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
				lifecycle.StatusAccepted.String(), lifecycle.StatusPending.String()),
		}).Error
		if err != nil {
			return err
		}
		updates := map[string]any{
			"answer_ids": gorm.Expr("array_remove(answer_ids, ?::bigint)", answer.ID),
			"accepted_answer_id": gorm.Expr(
				"CASE WHEN accepted_answer_id = ? THEN NULL ELSE accepted_answer_id END", answer.ID),
		}
		return tx.Model(&models.Question{}).Where("id = ?", answer.QuestionID).UpdateColumns(updates).Error
	})
}

// AcceptAnswer marks an answer as the accepted answer of its question. It
// serves both /accept and /accept-by-owner.
func (h *AnswerHandler) AcceptAnswer(c *gin.Context) {
	h.review(c, h.reviewer.Accept, "Answer accepted successfully")
}

// UnacceptAnswer returns the accepted answer to pending
func (h *AnswerHandler) UnacceptAnswer(c *gin.Context) {
	h.review(c, h.reviewer.Unaccept, "Answer unaccepted successfully")
}

// RejectAnswer rejects an answer with an optional reason
func (h *AnswerHandler) RejectAnswer(c *gin.Context) {
	h.review(c, h.reviewer.Reject, "Answer rejected successfully")
}

type reviewFunc func(ctx context.Context, req lifecycle.Request) (lifecycle.Result, error)

func (h *AnswerHandler) review(c *gin.Context, fn reviewFunc, message string) {
	user := middleware.CurrentUser(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var input models.ReviewAnswerRequest
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err.Error())
			return
		}
	}

	res, err := fn(c.Request.Context(), lifecycle.Request{
		QuestionID: input.QuestionID,
		AnswerID:   id,
		ActorID:    user.ID,
		Reason:     strings.TrimSpace(input.Reason),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if !res.Changed {
		message = "Answer is already accepted"
	}

	answer := gin.H{
		"id":              res.Answer.ID,
		"questionId":      res.Answer.QuestionID,
		"authorId":        res.Answer.AuthorID,
		"status":          res.Answer.Status.String(),
		"isAccepted":      res.Answer.IsAccepted,
		"rejectionReason": res.Answer.RejectionReason,
	}
	if !res.Answer.ReviewedAt.IsZero() {
		answer["reviewedAt"] = res.Answer.ReviewedAt
	}
	var accepted *uint
	if res.Question.AcceptedAnswerID != 0 {
		accepted = &res.Question.AcceptedAnswerID
	}

	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"answer":  answer,
		"question": gin.H{
			"id":               res.Question.ID,
			"acceptedAnswerId": accepted,
		},
	})
}
