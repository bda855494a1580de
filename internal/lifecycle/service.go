package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/emilythestrangee/stackit/backend/internal/metrics"
	"github.com/emilythestrangee/stackit/backend/internal/notify"
)

// Request names the answer to act on. QuestionID is optional; when set it
// must be the answer's question.
type Request struct {
	QuestionID uint
	AnswerID   uint
	ActorID    uint
	Reason     string
}

// Result reports the answer and question after the call. Changed is false
// when the call was a no-op.
type Result struct {
	Answer             Answer
	Question           Question
	PreviousAcceptedID uint
	Changed            bool
	Intents            []notify.Intent
}

type Option func(*Service)

func WithDispatcher(d notify.Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	store      Store
	dispatcher notify.Dispatcher
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/emilythestrangee/stackit/backend/internal/lifecycle"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Accept marks the answer as the question's single accepted answer. Any
// previously accepted answer returns to pending. Accepting the current
// accepted answer again changes nothing.
func (s *Service) Accept(ctx context.Context, req Request) (Result, error) {
	return s.run(ctx, "accept", req, func(tx Tx, q *Question, a *Answer, now time.Time) (Result, error) {
		if a.Status == StatusRejected {
			return Result{}, ErrAnswerRejected
		}
		if a.IsAccepted && q.AcceptedAnswerID == a.ID {
			return Result{Answer: *a, Question: *q, PreviousAcceptedID: a.ID}, nil
		}

		prev := q.AcceptedAnswerID
		if err := tx.ClearAccepted(ctx, q.ID, now); err != nil {
			return Result{}, err
		}
		if err := tx.SaveReview(ctx, Review{AnswerID: a.ID, Status: StatusAccepted, Accepted: true, ReviewedAt: now}); err != nil {
			return Result{}, err
		}
		if err := tx.SetAcceptedAnswer(ctx, q.ID, a.ID, now); err != nil {
			return Result{}, err
		}

		a.Status, a.IsAccepted, a.RejectionReason, a.ReviewedAt = StatusAccepted, true, "", now
		q.AcceptedAnswerID = a.ID
		res := Result{Answer: *a, Question: *q, PreviousAcceptedID: prev, Changed: true}
		if a.AuthorID != q.AuthorID {
			res.Intents = []notify.Intent{{
				Type:          notify.TypeAnswerAccepted,
				RecipientID:   a.AuthorID,
				SenderID:      q.AuthorID,
				QuestionID:    q.ID,
				AnswerID:      a.ID,
				QuestionTitle: q.Title,
			}}
		}
		return res, nil
	})
}

// Unaccept returns the question's accepted answer to pending.
func (s *Service) Unaccept(ctx context.Context, req Request) (Result, error) {
	return s.run(ctx, "unaccept", req, func(tx Tx, q *Question, a *Answer, now time.Time) (Result, error) {
		if q.AcceptedAnswerID != a.ID && !a.IsAccepted {
			return Result{}, ErrNotAccepted
		}
		if err := tx.SaveReview(ctx, Review{AnswerID: a.ID, Status: StatusPending, ReviewedAt: now}); err != nil {
			return Result{}, err
		}
		prev := q.AcceptedAnswerID
		if prev == a.ID {
			if err := tx.SetAcceptedAnswer(ctx, q.ID, 0, now); err != nil {
				return Result{}, err
			}
			q.AcceptedAnswerID = 0
		}
		a.Status, a.IsAccepted, a.ReviewedAt = StatusPending, false, now
		return Result{Answer: *a, Question: *q, PreviousAcceptedID: prev, Changed: true}, nil
	})
}

// Reject marks a pending or accepted answer rejected with an optional reason.
func (s *Service) Reject(ctx context.Context, req Request) (Result, error) {
	return s.run(ctx, "reject", req, func(tx Tx, q *Question, a *Answer, now time.Time) (Result, error) {
		if a.Status == StatusRejected {
			return Result{}, ErrAlreadyRejected
		}
		if err := tx.SaveReview(ctx, Review{AnswerID: a.ID, Status: StatusRejected, Reason: req.Reason, ReviewedAt: now}); err != nil {
			return Result{}, err
		}
		prev := q.AcceptedAnswerID
		if prev == a.ID {
			if err := tx.SetAcceptedAnswer(ctx, q.ID, 0, now); err != nil {
				return Result{}, err
			}
			q.AcceptedAnswerID = 0
		}

		a.Status, a.IsAccepted, a.RejectionReason, a.ReviewedAt = StatusRejected, false, req.Reason, now
		res := Result{Answer: *a, Question: *q, PreviousAcceptedID: prev, Changed: true}
		if a.AuthorID != q.AuthorID {
			res.Intents = []notify.Intent{{
				Type:          notify.TypeAnswerRejected,
				RecipientID:   a.AuthorID,
				SenderID:      q.AuthorID,
				QuestionID:    q.ID,
				AnswerID:      a.ID,
				QuestionTitle: q.Title,
				Reason:        req.Reason,
			}}
		}
		return res, nil
	})
}

type step func(tx Tx, q *Question, a *Answer, now time.Time) (Result, error)

func (s *Service) run(ctx context.Context, action string, req Request, fn step) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle."+action, trace.WithAttributes(
		attribute.Int64("answer.id", int64(req.AnswerID)),
		attribute.Int64("actor.id", int64(req.ActorID)),
	))
	defer span.End()

	var res Result
	err := s.store.Transaction(ctx, func(tx Tx) error {
		q, a, err := load(ctx, tx, req)
		if err != nil {
			return err
		}
		res, err = fn(tx, q, a, s.now())
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	if res.Changed {
		metrics.AnswerTransitions.WithLabelValues(action).Inc()
		s.logger.InfoContext(ctx, "answer "+action,
			"answer_id", res.Answer.ID, "question_id", res.Question.ID, "actor_id", req.ActorID)
	}
	if s.dispatcher != nil && len(res.Intents) > 0 {
		s.dispatcher.Dispatch(ctx, res.Intents...)
	}
	return res, nil
}

// load resolves the answer's question, locks it, checks the actor owns it and
// re-reads the answer under the lock.
func load(ctx context.Context, tx Tx, req Request) (*Question, *Answer, error) {
	a, err := tx.FindAnswer(ctx, req.AnswerID)
	if err != nil {
		return nil, nil, err
	}
	if req.QuestionID != 0 && req.QuestionID != a.QuestionID {
		return nil, nil, ErrWrongQuestion
	}

	q, err := tx.LockQuestion(ctx, a.QuestionID)
	if err != nil {
		return nil, nil, err
	}
	if q.AuthorID != req.ActorID {
		return nil, nil, ErrNotQuestionAuthor
	}

	a, err = tx.FindAnswer(ctx, req.AnswerID)
	if err != nil {
		return nil, nil, err
	}
	return q, a, nil
}
