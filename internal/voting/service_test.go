package voting_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/stackit/backend/internal/apperr"
	"github.com/emilythestrangee/stackit/backend/internal/notify"
	"github.com/emilythestrangee/stackit/backend/internal/store/memstore"
	"github.com/emilythestrangee/stackit/backend/internal/voting"
)

const (
	author uint = 1
	voter  uint = 2
	other  uint = 3
)

type recorder struct {
	mu      sync.Mutex
	intents []notify.Intent
}

func (r *recorder) Dispatch(_ context.Context, intents ...notify.Intent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intents...)
}

func (r *recorder) all() []notify.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Intent(nil), r.intents...)
}

func setup(t *testing.T) (*memstore.Store, *voting.Service, *recorder) {
	t.Helper()
	st := memstore.New()
	st.AddQuestion(memstore.Question{ID: 10, AuthorID: author, Title: "Why is my map nil?"})
	st.AddAnswer(memstore.Answer{ID: 20, AuthorID: author, QuestionID: 10})
	st.AddAnswer(memstore.Answer{ID: 21, AuthorID: other, QuestionID: 10})
	rec := &recorder{}
	return st, voting.NewService(st.Votes(), voting.WithDispatcher(rec)), rec
}

// checkConsistent asserts the counter, membership sets and ledger agree.
func checkConsistent(t *testing.T, st *memstore.Store, tt voting.TargetType, id uint) {
	t.Helper()
	var votes int
	var up, down []uint
	switch tt {
	case voting.TargetQuestion:
		q, _ := st.Question(id)
		votes, up, down = q.Votes, q.Upvoters, q.Downvoters
	case voting.TargetAnswer:
		a, _ := st.Answer(id)
		votes, up, down = a.Votes, a.Upvoters, a.Downvoters
	}
	assert.Equal(t, len(up)-len(down), votes, "votes must equal |up|-|down|")
	for _, u := range up {
		assert.NotContains(t, down, u, "user %d in both sets", u)
	}

	var ledgerUp, ledgerDown []uint
	for _, e := range st.Entries() {
		if e.TargetType != tt || e.TargetID != id {
			continue
		}
		if e.VoteType == voting.Upvote {
			ledgerUp = append(ledgerUp, e.UserID)
		} else {
			ledgerDown = append(ledgerDown, e.UserID)
		}
	}
	assert.ElementsMatch(t, ledgerUp, up)
	assert.ElementsMatch(t, ledgerDown, down)
}

func TestSubmitVote_ReputationSequence(t *testing.T) {
	st, svc, rec := setup(t)
	ctx := context.Background()

	out, err := svc.SubmitVote(ctx, voter, voting.TargetQuestion, 10, voting.Upvote)
	require.NoError(t, err)
	assert.Equal(t, voting.StateUp, out.State)
	assert.Equal(t, 1, out.Votes)
	assert.Equal(t, 10, st.Reputation(author))

	out, err = svc.SubmitVote(ctx, voter, voting.TargetQuestion, 10, voting.Downvote)
	require.NoError(t, err)
	assert.Equal(t, voting.KindSwitched, out.Transition.Kind)
	assert.Equal(t, -1, out.Votes)
	assert.Equal(t, 6, st.Reputation(author))

	out, err = svc.SubmitVote(ctx, voter, voting.TargetQuestion, 10, voting.Downvote)
	require.NoError(t, err)
	assert.Equal(t, voting.StateNone, out.State)
	assert.Equal(t, 0, out.Votes)
	assert.Equal(t, 8, st.Reputation(author))

	checkConsistent(t, st, voting.TargetQuestion, 10)
	assert.Empty(t, st.Entries())
	q, _ := st.Question(10)
	assert.True(t, q.LastActivity.IsZero(), "votes must not bump last activity")

	intents := rec.all()
	require.Len(t, intents, 1)
	assert.Equal(t, notify.TypeQuestionUpvoted, intents[0].Type)
	assert.Equal(t, author, intents[0].RecipientID)
	assert.Equal(t, voter, intents[0].SenderID)
}

func TestSubmitVote_ToggleRestoresState(t *testing.T) {
	for _, vt := range []voting.VoteType{voting.Upvote, voting.Downvote} {
		t.Run(vt.String(), func(t *testing.T) {
			st, svc, _ := setup(t)
			ctx := context.Background()

			_, err := svc.SubmitVote(ctx, voter, voting.TargetAnswer, 21, vt)
			require.NoError(t, err)
			out, err := svc.SubmitVote(ctx, voter, voting.TargetAnswer, 21, vt)
			require.NoError(t, err)

			assert.Equal(t, voting.KindRemoved, out.Transition.Kind)
			assert.Equal(t, 0, out.Votes)
			assert.Equal(t, 0, st.Reputation(other))
			checkConsistent(t, st, voting.TargetAnswer, 21)
		})
	}
}

func TestSubmitVote_SwitchDownToUpNotifies(t *testing.T) {
	st, svc, rec := setup(t)
	ctx := context.Background()

	_, err := svc.SubmitVote(ctx, voter, voting.TargetAnswer, 21, voting.Downvote)
	require.NoError(t, err)
	assert.Empty(t, rec.all())

	out, err := svc.SubmitVote(ctx, voter, voting.TargetAnswer, 21, voting.Upvote)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Transition.CountDelta)
	assert.Equal(t, 1, out.Votes)
	assert.Equal(t, -2+20, st.Reputation(other))

	intents := rec.all()
	require.Len(t, intents, 1)
	assert.Equal(t, notify.TypeAnswerUpvoted, intents[0].Type)
	assert.Equal(t, uint(21), intents[0].AnswerID)
	assert.Equal(t, uint(10), intents[0].QuestionID)
	checkConsistent(t, st, voting.TargetAnswer, 21)
}

func TestSubmitVote_SelfVoteRejected(t *testing.T) {
	st, svc, rec := setup(t)

	_, err := svc.SubmitVote(context.Background(), author, voting.TargetQuestion, 10, voting.Upvote)
	assert.ErrorIs(t, err, voting.ErrSelfVote)
	assert.ErrorIs(t, err, apperr.ErrSelfAction)

	q, _ := st.Question(10)
	assert.Zero(t, q.Votes)
	assert.Empty(t, st.Entries())
	assert.Zero(t, st.Reputation(author))
	assert.Empty(t, rec.all())
}

func TestSubmitVote_MissingOrInactiveTarget(t *testing.T) {
	st, svc, _ := setup(t)
	st.AddAnswer(memstore.Answer{ID: 30, AuthorID: other, QuestionID: 10, Inactive: true})

	_, err := svc.SubmitVote(context.Background(), voter, voting.TargetQuestion, 999, voting.Upvote)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.SubmitVote(context.Background(), voter, voting.TargetAnswer, 30, voting.Upvote)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSubmitVote_InvalidInput(t *testing.T) {
	_, svc, _ := setup(t)

	_, err := svc.SubmitVote(context.Background(), voter, voting.TargetType(9), 10, voting.Upvote)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.SubmitVote(context.Background(), voter, voting.TargetQuestion, 10, voting.VoteType(0))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSubmitVote_RetriesOnceOnConflict(t *testing.T) {
	st, svc, _ := setup(t)
	calls := 0
	st.OnCreateEntry(func(voting.Entry, voting.Tx) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("%w: duplicate vote", apperr.ErrConflict)
		}
		return nil
	})

	out, err := svc.SubmitVote(context.Background(), voter, voting.TargetQuestion, 10, voting.Upvote)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, out.Votes)
	assert.Equal(t, 10, st.Reputation(author))
	assert.Len(t, st.ReputationLog(), 1)
	checkConsistent(t, st, voting.TargetQuestion, 10)
}

func TestSubmitVote_LostCreateRaceBecomesToggle(t *testing.T) {
	st, svc, rec := setup(t)
	ctx := context.Background()
	raced := false
	st.OnCreateEntry(func(e voting.Entry, committed voting.Tx) error {
		if raced {
			return nil
		}
		raced = true

		// the same user's concurrent upvote commits first
		target, err := committed.LockTarget(ctx, e.TargetType, e.TargetID)
		require.NoError(t, err)
		winner := e
		require.NoError(t, committed.CreateEntry(ctx, &winner))
		tr := voting.Resolve(voting.StateNone, e.VoteType)
		_, err = committed.ApplyTransition(ctx, target, e.UserID, tr)
		require.NoError(t, err)
		require.NoError(t, committed.IncrementReputation(ctx, voting.ReputationChange{
			UserID:     target.AuthorID,
			Amount:     voting.ReputationDelta(e.VoteType, tr.CountDelta),
			VoterID:    e.UserID,
			TargetType: e.TargetType,
			TargetID:   e.TargetID,
			Reason:     "question_upvoted",
		}))
		return fmt.Errorf("%w: duplicate vote", apperr.ErrConflict)
	})

	out, err := svc.SubmitVote(ctx, voter, voting.TargetQuestion, 10, voting.Upvote)
	require.NoError(t, err)
	assert.Equal(t, voting.KindRemoved, out.Transition.Kind)
	assert.Equal(t, voting.StateNone, out.State)
	assert.Zero(t, out.Votes)
	assert.Equal(t, -10, out.ReputationDelta)

	assert.Zero(t, st.Reputation(author))
	assert.Len(t, st.ReputationLog(), 2)
	assert.Empty(t, st.Entries())
	assert.Empty(t, rec.all())
	checkConsistent(t, st, voting.TargetQuestion, 10)
}

func TestSubmitVote_PersistentConflictFails(t *testing.T) {
	st, svc, rec := setup(t)
	st.OnCreateEntry(func(voting.Entry, voting.Tx) error {
		return fmt.Errorf("%w: duplicate vote", apperr.ErrConflict)
	})

	_, err := svc.SubmitVote(context.Background(), voter, voting.TargetQuestion, 10, voting.Upvote)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	q, _ := st.Question(10)
	assert.Zero(t, q.Votes)
	assert.Zero(t, st.Reputation(author))
	assert.Empty(t, rec.all())
}

func TestSubmitVote_ConcurrentVoters(t *testing.T) {
	st, svc, _ := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for u := uint(100); u < 150; u++ {
		wg.Add(1)
		go func(user uint) {
			defer wg.Done()
			vt := voting.Upvote
			if user%3 == 0 {
				vt = voting.Downvote
			}
			_, err := svc.SubmitVote(ctx, user, voting.TargetAnswer, 21, vt)
			assert.NoError(t, err)
			if user%5 == 0 {
				_, err = svc.SubmitVote(ctx, user, voting.TargetAnswer, 21, vt)
				assert.NoError(t, err)
			}
		}(u)
	}
	wg.Wait()

	checkConsistent(t, st, voting.TargetAnswer, 21)

	want := 0
	for _, c := range st.ReputationLog() {
		want += c.Amount
	}
	assert.Equal(t, want, st.Reputation(other))
}

func TestUserVoteAndStats(t *testing.T) {
	_, svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.SubmitVote(ctx, voter, voting.TargetAnswer, 21, voting.Upvote)
	require.NoError(t, err)
	_, err = svc.SubmitVote(ctx, author, voting.TargetAnswer, 21, voting.Downvote)
	require.NoError(t, err)
	_, err = svc.SubmitVote(ctx, 7, voting.TargetAnswer, 21, voting.Upvote)
	require.NoError(t, err)

	state, err := svc.UserVote(ctx, voter, voting.TargetAnswer, 21)
	require.NoError(t, err)
	assert.Equal(t, voting.StateUp, state)

	state, err = svc.UserVote(ctx, 99, voting.TargetAnswer, 21)
	require.NoError(t, err)
	assert.Equal(t, voting.StateNone, state)

	stats, err := svc.Stats(ctx, voting.TargetAnswer, 21)
	require.NoError(t, err)
	assert.Equal(t, voting.Stats{Upvotes: 2, Downvotes: 1, Total: 1}, stats)

	history, total, err := svc.History(ctx, voter, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, history, 1)
	assert.Equal(t, voting.Upvote, history[0].VoteType)
}
