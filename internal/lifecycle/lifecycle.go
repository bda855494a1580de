// Package lifecycle moves answers between pending, accepted and rejected and
// keeps the owning question's accepted answer in step.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/emilythestrangee/stackit/backend/internal/apperr"
)

var (
	ErrNotQuestionAuthor = fmt.Errorf("%w: only the question author can review answers", apperr.ErrNotAuthorized)
	ErrAnswerRejected    = fmt.Errorf("%w: answer is rejected", apperr.ErrInvalidTransition)
	ErrNotAccepted       = fmt.Errorf("%w: answer is not the accepted answer", apperr.ErrInvalidTransition)
	ErrAlreadyRejected   = fmt.Errorf("%w: answer is already rejected", apperr.ErrInvalidTransition)
	ErrWrongQuestion     = fmt.Errorf("%w: answer does not belong to this question", apperr.ErrNotFound)
	ErrInvalidStatus     = fmt.Errorf("%w: invalid answer status", apperr.ErrValidation)
)

type Status uint8

const (
	StatusPending Status = iota + 1
	StatusAccepted
	StatusRejected
)

func ParseStatus(s string) (Status, error) {
	switch s {
	case "pending":
		return StatusPending, nil
	case "accepted":
		return StatusAccepted, nil
	case "rejected":
		return StatusRejected, nil
	}
	return 0, ErrInvalidStatus
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	}
	return "unknown"
}

// Question is the part of a question the lifecycle reads. AcceptedAnswerID is
// zero when no answer is accepted.
type Question struct {
	ID               uint
	AuthorID         uint
	Title            string
	AcceptedAnswerID uint
}

type Answer struct {
	ID              uint
	AuthorID        uint
	QuestionID      uint
	Status          Status
	IsAccepted      bool
	RejectionReason string
	ReviewedAt      time.Time
}

// Review is the new review state written to one answer.
type Review struct {
	AnswerID   uint
	Status     Status
	Accepted   bool
	Reason     string
	ReviewedAt time.Time
}

type Store interface {
	// Transaction runs fn atomically. If fn returns an error nothing it wrote
	// is kept.
	Transaction(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	// FindAnswer fails with apperr.ErrNotFound for missing or inactive answers.
	FindAnswer(ctx context.Context, id uint) (*Answer, error)
	// LockQuestion loads an active question and holds it against concurrent
	// lifecycle changes until the transaction ends.
	LockQuestion(ctx context.Context, id uint) (*Question, error)
	// ClearAccepted moves every accepted answer of the question back to
	// pending.
	ClearAccepted(ctx context.Context, questionID uint, at time.Time) error
	SaveReview(ctx context.Context, r Review) error
	// SetAcceptedAnswer records answerID as the question's accepted answer;
	// zero clears it. It also bumps the question's last activity.
	SetAcceptedAnswer(ctx context.Context, questionID, answerID uint, at time.Time) error
}
