package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/emilythestrangee/stackit/backend/internal/apperr"
	"github.com/emilythestrangee/stackit/backend/internal/metrics"
	"github.com/emilythestrangee/stackit/backend/internal/notify"
)

// Outcome is what a committed vote produced.
type Outcome struct {
	State           State
	Votes           int
	Transition      Transition
	ReputationDelta int
	Intents         []notify.Intent
}

// Message is the human readable summary returned to the voter.
func (o Outcome) Message() string {
	switch o.Transition.Kind {
	case KindRemoved:
		return "Vote removed"
	case KindSwitched:
		return "Vote changed to " + o.State.String()
	default:
		return "Vote recorded: " + o.State.String()
	}
}

type Option func(*Service)

func WithDispatcher(d notify.Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

type Service struct {
	store      Store
	dispatcher notify.Dispatcher
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/emilythestrangee/stackit/backend/internal/voting"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitVote resolves and applies one vote. A uniqueness conflict on the
// ledger means a concurrent request from the same user won the insert; the
// whole transaction is retried once so it re-reads the winner's entry.
// Notification intents are dispatched only after commit.
func (s *Service) SubmitVote(ctx context.Context, userID uint, tt TargetType, targetID uint, vt VoteType) (Outcome, error) {
	if !tt.Valid() {
		return Outcome{}, ErrInvalidTargetType
	}
	if !vt.Valid() {
		return Outcome{}, ErrInvalidVoteType
	}

	ctx, span := s.tracer.Start(ctx, "voting.SubmitVote", trace.WithAttributes(
		attribute.String("vote.target_type", tt.String()),
		attribute.Int64("vote.target_id", int64(targetID)),
		attribute.String("vote.type", vt.String()),
	))
	defer span.End()

	out, err := s.submitOnce(ctx, userID, tt, targetID, vt)
	if errors.Is(err, apperr.ErrConflict) {
		metrics.VoteConflictRetries.Inc()
		s.logger.WarnContext(ctx, "vote conflict, retrying",
			"user_id", userID, "target_type", tt.String(), "target_id", targetID)
		out, err = s.submitOnce(ctx, userID, tt, targetID, vt)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome{}, err
	}

	span.SetAttributes(
		attribute.String("vote.transition", out.Transition.Kind.String()),
		attribute.Int("vote.reputation_delta", out.ReputationDelta),
	)
	metrics.VoteTransitions.WithLabelValues(tt.String(), out.Transition.Kind.String()).Inc()

	if s.dispatcher != nil && len(out.Intents) > 0 {
		s.dispatcher.Dispatch(ctx, out.Intents...)
	}
	return out, nil
}

func (s *Service) submitOnce(ctx context.Context, userID uint, tt TargetType, targetID uint, vt VoteType) (Outcome, error) {
	var out Outcome
	err := s.store.Transaction(ctx, func(tx Tx) error {
		var err error
		out, err = apply(ctx, tx, userID, tt, targetID, vt)
		return err
	})
	return out, err
}

func apply(ctx context.Context, tx Tx, userID uint, tt TargetType, targetID uint, vt VoteType) (Outcome, error) {
	target, err := tx.LockTarget(ctx, tt, targetID)
	if err != nil {
		return Outcome{}, err
	}
	if target.AuthorID == userID {
		return Outcome{}, ErrSelfVote
	}

	entry, err := tx.FindEntry(ctx, userID, tt, targetID)
	if err != nil {
		return Outcome{}, err
	}
	current := StateNone
	if entry != nil {
		current = entry.VoteType.State()
	}

	tr := Resolve(current, vt)
	switch tr.Kind {
	case KindCreated:
		err = tx.CreateEntry(ctx, &Entry{UserID: userID, TargetType: tt, TargetID: targetID, VoteType: vt})
	case KindRemoved:
		err = tx.DeleteEntry(ctx, entry.ID)
	case KindSwitched:
		err = tx.UpdateEntry(ctx, entry.ID, vt)
	}
	if err != nil {
		return Outcome{}, err
	}

	votes, err := tx.ApplyTransition(ctx, target, userID, tr)
	if err != nil {
		return Outcome{}, err
	}

	delta := ReputationDelta(vt, tr.CountDelta)
	if delta != 0 {
		err = tx.IncrementReputation(ctx, ReputationChange{
			UserID:     target.AuthorID,
			Amount:     delta,
			VoterID:    userID,
			TargetType: tt,
			TargetID:   targetID,
			Reason:     reputationReason(tt, tr),
		})
		if err != nil {
			return Outcome{}, err
		}
	}

	out := Outcome{State: tr.To, Votes: votes, Transition: tr, ReputationDelta: delta}
	if tr.Notifies() {
		out.Intents = append(out.Intents, upvoteIntent(target, userID))
	}
	return out, nil
}

func upvoteIntent(target *Target, voterID uint) notify.Intent {
	in := notify.Intent{
		RecipientID: target.AuthorID,
		SenderID:    voterID,
		QuestionID:  target.QuestionID,
	}
	if target.Type == TargetAnswer {
		in.Type = notify.TypeAnswerUpvoted
		in.AnswerID = target.ID
	} else {
		in.Type = notify.TypeQuestionUpvoted
	}
	return in
}

// UserVote returns the user's current vote on a target.
func (s *Service) UserVote(ctx context.Context, userID uint, tt TargetType, targetID uint) (State, error) {
	if !tt.Valid() {
		return StateNone, ErrInvalidTargetType
	}
	e, err := s.store.FindEntry(ctx, userID, tt, targetID)
	if err != nil {
		return StateNone, fmt.Errorf("find vote: %w", err)
	}
	if e == nil {
		return StateNone, nil
	}
	return e.VoteType.State(), nil
}

// Stats counts a target's ledger entries.
func (s *Service) Stats(ctx context.Context, tt TargetType, targetID uint) (Stats, error) {
	if !tt.Valid() {
		return Stats{}, ErrInvalidTargetType
	}
	up, down, err := s.store.CountEntries(ctx, tt, targetID)
	if err != nil {
		return Stats{}, fmt.Errorf("count votes: %w", err)
	}
	return Stats{Upvotes: up, Downvotes: down, Total: up - down}, nil
}

// History lists the user's own votes.
func (s *Service) History(ctx context.Context, userID uint, offset, limit int) ([]Entry, int64, error) {
	entries, total, err := s.store.ListEntries(ctx, userID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list votes: %w", err)
	}
	return entries, total, nil
}
