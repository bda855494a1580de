package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/stackit/backend/internal/lifecycle"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

type lifecycleStore struct {
	db *gorm.DB
}

func (s lifecycleStore) Transaction(ctx context.Context, fn func(tx lifecycle.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&lifecycleTx{db: tx})
	})
}

type lifecycleTx struct {
	db *gorm.DB
}

func (tx *lifecycleTx) FindAnswer(ctx context.Context, id uint) (*lifecycle.Answer, error) {
	var a models.Answer
	err := tx.db.WithContext(ctx).
		Select("id", "author_id", "question_id", "status", "is_accepted", "rejection_reason", "reviewed_at").
		Where("id = ? AND is_active = ?", id, true).
		First(&a).Error
	if err != nil {
		return nil, notFound(err, "answer", id)
	}

	status, err := lifecycle.ParseStatus(a.Status)
	if err != nil {
		return nil, fmt.Errorf("answer %d: %w", a.ID, err)
	}
	out := &lifecycle.Answer{
		ID:              a.ID,
		AuthorID:        a.AuthorID,
		QuestionID:      a.QuestionID,
		Status:          status,
		IsAccepted:      a.IsAccepted,
		RejectionReason: a.RejectionReason,
	}
	if a.ReviewedAt != nil {
		out.ReviewedAt = *a.ReviewedAt
	}
	return out, nil
}

func (tx *lifecycleTx) LockQuestion(ctx context.Context, id uint) (*lifecycle.Question, error) {
	var q models.Question
	err := tx.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "author_id", "title", "accepted_answer_id").
		Where("id = ? AND is_active = ?", id, true).
		First(&q).Error
	if err != nil {
		return nil, notFound(err, "question", id)
	}

	out := &lifecycle.Question{ID: q.ID, AuthorID: q.AuthorID, Title: q.Title}
	if q.AcceptedAnswerID != nil {
		out.AcceptedAnswerID = *q.AcceptedAnswerID
	}
	return out, nil
}

func (tx *lifecycleTx) ClearAccepted(ctx context.Context, questionID uint, at time.Time) error {
	err := tx.db.WithContext(ctx).Model(&models.Answer{}).
		Where("question_id = ? AND (is_accepted = ? OR status = ?)", questionID, true, lifecycle.StatusAccepted.String()).
		Updates(map[string]any{
			"is_accepted": false,
			"status":      lifecycle.StatusPending.String(),
			"reviewed_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("clear accepted answers of question %d: %w", questionID, err)
	}
	return nil
}

func (tx *lifecycleTx) SaveReview(ctx context.Context, r lifecycle.Review) error {
	reason := ""
	if r.Status == lifecycle.StatusRejected {
		reason = r.Reason
	}
	err := tx.db.WithContext(ctx).Model(&models.Answer{}).
		Where("id = ?", r.AnswerID).
		Updates(map[string]any{
			"status":           r.Status.String(),
			"is_accepted":      r.Accepted,
			"rejection_reason": reason,
			"reviewed_at":      r.ReviewedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("save review of answer %d: %w", r.AnswerID, err)
	}
	return nil
}

func (tx *lifecycleTx) SetAcceptedAnswer(ctx context.Context, questionID, answerID uint, at time.Time) error {
	var accepted any
	if answerID != 0 {
		accepted = answerID
	}
	err := tx.db.WithContext(ctx).Model(&models.Question{}).
		Where("id = ?", questionID).
		Updates(map[string]any{
			"accepted_answer_id": accepted,
			"last_activity":      at,
		}).Error
	if err != nil {
		return fmt.Errorf("set accepted answer of question %d: %w", questionID, err)
	}
	return nil
}
