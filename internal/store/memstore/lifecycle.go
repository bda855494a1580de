package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/emilythestrangee/stackit/backend/internal/apperr"
	"github.com/emilythestrangee/stackit/backend/internal/lifecycle"
)

type lifecycleStore struct{ s *Store }

func (l lifecycleStore) Transaction(_ context.Context, fn func(tx lifecycle.Tx) error) error {
	return l.s.transaction(func(st *state) error {
		return fn(&lifecycleTx{st: st})
	})
}

type lifecycleTx struct {
	st *state
}

func (tx *lifecycleTx) FindAnswer(_ context.Context, id uint) (*lifecycle.Answer, error) {
	a, ok := tx.st.answers[id]
	if !ok || a.Inactive {
		return nil, fmt.Errorf("%w: answer %d", apperr.ErrNotFound, id)
	}
	return &lifecycle.Answer{
		ID:              a.ID,
		AuthorID:        a.AuthorID,
		QuestionID:      a.QuestionID,
		Status:          a.Status,
		IsAccepted:      a.IsAccepted,
		RejectionReason: a.RejectionReason,
		ReviewedAt:      a.ReviewedAt,
	}, nil
}

func (tx *lifecycleTx) LockQuestion(_ context.Context, id uint) (*lifecycle.Question, error) {
	q, ok := tx.st.questions[id]
	if !ok || q.Inactive {
		return nil, fmt.Errorf("%w: question %d", apperr.ErrNotFound, id)
	}
	return &lifecycle.Question{
		ID:               q.ID,
		AuthorID:         q.AuthorID,
		Title:            q.Title,
		AcceptedAnswerID: q.AcceptedAnswerID,
	}, nil
}

func (tx *lifecycleTx) ClearAccepted(_ context.Context, questionID uint, at time.Time) error {
	for id, a := range tx.st.answers {
		if a.QuestionID != questionID || (!a.IsAccepted && a.Status != lifecycle.StatusAccepted) {
			continue
		}
		a.IsAccepted, a.Status, a.ReviewedAt = false, lifecycle.StatusPending, at
		tx.st.answers[id] = a
	}
	return nil
}

func (tx *lifecycleTx) SaveReview(_ context.Context, r lifecycle.Review) error {
	a, ok := tx.st.answers[r.AnswerID]
	if !ok {
		return fmt.Errorf("%w: answer %d", apperr.ErrNotFound, r.AnswerID)
	}
	a.Status, a.IsAccepted, a.ReviewedAt = r.Status, r.Accepted, r.ReviewedAt
	if r.Status == lifecycle.StatusRejected {
		a.RejectionReason = r.Reason
	} else {
		a.RejectionReason = ""
	}
	tx.st.answers[a.ID] = a
	return nil
}

func (tx *lifecycleTx) SetAcceptedAnswer(_ context.Context, questionID, answerID uint, at time.Time) error {
	q, ok := tx.st.questions[questionID]
	if !ok {
		return fmt.Errorf("%w: question %d", apperr.ErrNotFound, questionID)
	}
	q.AcceptedAnswerID, q.LastActivity = answerID, at
	tx.st.questions[q.ID] = q
	return nil
}
