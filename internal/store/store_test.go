package store

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/apperr"
	"github.com/emilythestrangee/stackit/backend/internal/database/dbtest"
	"github.com/emilythestrangee/stackit/backend/internal/lifecycle"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/voting"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	db, teardown, err := dbtest.Start(context.Background())
	if err != nil {
		log.Printf("postgres tests disabled: %v", err)
		os.Exit(m.Run())
	}
	testDB = db

	code := m.Run()
	if err := teardown(context.Background()); err != nil {
		log.Fatalf("could not teardown postgres container: %v", err)
	}
	os.Exit(code)
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres not available")
	}
	require.NoError(t, dbtest.Truncate(testDB))
	return testDB
}

func seedUser(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()
	u := models.User{Name: name, Email: name + "@stackit.test", Password: "x", Role: models.RoleUser, IsActive: true}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedQuestion(t *testing.T, db *gorm.DB, authorID uint) models.Question {
	t.Helper()
	q := models.Question{Title: "How do I close a channel?", Description: "<p>body</p>", AuthorID: authorID, IsActive: true}
	require.NoError(t, db.Create(&q).Error)
	return q
}

func seedAnswer(t *testing.T, db *gorm.DB, questionID, authorID uint) models.Answer {
	t.Helper()
	a := models.Answer{Content: "<p>answer</p>", QuestionID: questionID, AuthorID: authorID, Status: "pending", IsActive: true}
	require.NoError(t, db.Create(&a).Error)
	return a
}

func reload[T any](t *testing.T, db *gorm.DB, id uint) T {
	t.Helper()
	var v T
	require.NoError(t, db.First(&v, id).Error)
	return v
}

func TestVotes_ReputationSequence(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	author := seedUser(t, db, "author")
	voter := seedUser(t, db, "voter")
	q := seedQuestion(t, db, author.ID)
	lastActivity := reload[models.Question](t, db, q.ID).LastActivity

	svc := voting.NewService(New(db).Votes())

	out, err := svc.SubmitVote(ctx, voter.ID, voting.TargetQuestion, q.ID, voting.Upvote)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Votes)
	assert.Equal(t, 10, reload[models.User](t, db, author.ID).Reputation)

	_, err = svc.SubmitVote(ctx, voter.ID, voting.TargetQuestion, q.ID, voting.Downvote)
	require.NoError(t, err)
	stored := reload[models.Question](t, db, q.ID)
	assert.Equal(t, -1, stored.Votes)
	assert.Equal(t, pq.Int64Array{int64(voter.ID)}, stored.Downvoters)
	assert.Empty(t, stored.Upvoters)
	assert.Equal(t, 6, reload[models.User](t, db, author.ID).Reputation)

	_, err = svc.SubmitVote(ctx, voter.ID, voting.TargetQuestion, q.ID, voting.Downvote)
	require.NoError(t, err)
	stored = reload[models.Question](t, db, q.ID)
	assert.Equal(t, 0, stored.Votes)
	assert.Empty(t, stored.Downvoters)
	assert.True(t, stored.LastActivity.Equal(lastActivity), "votes must not bump last activity")
	assert.Equal(t, 8, reload[models.User](t, db, author.ID).Reputation)

	var logs []models.ReputationLog
	require.NoError(t, db.Where("user_id = ?", author.ID).Order("id").Find(&logs).Error)
	require.Len(t, logs, 3)
	assert.Equal(t, []int{10, -4, 2}, []int{logs[0].Amount, logs[1].Amount, logs[2].Amount})

	var count int64
	require.NoError(t, db.Model(&models.Vote{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestVotes_SelfVoteAndMissingTarget(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	author := seedUser(t, db, "author")
	q := seedQuestion(t, db, author.ID)
	svc := voting.NewService(New(db).Votes())

	_, err := svc.SubmitVote(ctx, author.ID, voting.TargetQuestion, q.ID, voting.Upvote)
	assert.ErrorIs(t, err, apperr.ErrSelfAction)

	_, err = svc.SubmitVote(ctx, author.ID, voting.TargetAnswer, 4242, voting.Upvote)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, db.Model(&models.Question{}).Where("id = ?", q.ID).Update("is_active", false).Error)
	voter := seedUser(t, db, "voter")
	_, err = svc.SubmitVote(ctx, voter.ID, voting.TargetQuestion, q.ID, voting.Upvote)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVotes_LedgerUniqueness(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	author := seedUser(t, db, "author")
	voter := seedUser(t, db, "voter")
	q := seedQuestion(t, db, author.ID)

	s := New(db).Votes()
	err := s.Transaction(ctx, func(tx voting.Tx) error {
		e := &voting.Entry{UserID: voter.ID, TargetType: voting.TargetQuestion, TargetID: q.ID, VoteType: voting.Upvote}
		require.NoError(t, tx.CreateEntry(ctx, e))
		dup := *e
		return tx.CreateEntry(ctx, &dup)
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	entry, err := s.FindEntry(ctx, voter.ID, voting.TargetQuestion, q.ID)
	require.NoError(t, err)
	assert.Nil(t, entry, "failed transaction must not leave an entry")
}

func TestVotes_ConcurrentVotersStayConsistent(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	author := seedUser(t, db, "author")
	q := seedQuestion(t, db, author.ID)
	a := seedAnswer(t, db, q.ID, author.ID)

	voters := make([]models.User, 20)
	for i := range voters {
		voters[i] = seedUser(t, db, fmt.Sprintf("voter%d", i))
	}

	svc := voting.NewService(New(db).Votes(), voting.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	var wg sync.WaitGroup
	for i, u := range voters {
		for range 2 {
			wg.Add(1)
			go func(userID uint, up bool) {
				defer wg.Done()
				vt := voting.Downvote
				if up {
					vt = voting.Upvote
				}
				_, err := svc.SubmitVote(ctx, userID, voting.TargetAnswer, a.ID, vt)
				assert.NoError(t, err)
			}(u.ID, i%2 == 0)
		}
	}
	wg.Wait()

	// Each voter sent the same vote twice, so every vote was toggled off.
	stored := reload[models.Answer](t, db, a.ID)
	assert.Equal(t, 0, stored.Votes)
	assert.Empty(t, stored.Upvoters)
	assert.Empty(t, stored.Downvoters)
	assert.Equal(t, 0, reload[models.User](t, db, author.ID).Reputation)

	report, err := New(db).Reconcile(ctx, false, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestLifecycle_AcceptMovesAcceptance(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	asker := seedUser(t, db, "asker")
	first := seedUser(t, db, "first")
	second := seedUser(t, db, "second")
	q := seedQuestion(t, db, asker.ID)
	a1 := seedAnswer(t, db, q.ID, first.ID)
	a2 := seedAnswer(t, db, q.ID, second.ID)

	svc := lifecycle.NewService(New(db).Lifecycle())

	_, err := svc.Accept(ctx, lifecycle.Request{QuestionID: q.ID, AnswerID: a1.ID, ActorID: asker.ID})
	require.NoError(t, err)
	res, err := svc.Accept(ctx, lifecycle.Request{QuestionID: q.ID, AnswerID: a2.ID, ActorID: asker.ID})
	require.NoError(t, err)
	assert.Equal(t, a1.ID, res.PreviousAcceptedID)
	require.Len(t, res.Intents, 1)
	assert.Equal(t, second.ID, res.Intents[0].RecipientID)

	assert.False(t, reload[models.Answer](t, db, a1.ID).IsAccepted)
	assert.Equal(t, "pending", reload[models.Answer](t, db, a1.ID).Status)
	assert.True(t, reload[models.Answer](t, db, a2.ID).IsAccepted)
	storedQ := reload[models.Question](t, db, q.ID)
	require.NotNil(t, storedQ.AcceptedAnswerID)
	assert.Equal(t, a2.ID, *storedQ.AcceptedAnswerID)

	_, err = svc.Reject(ctx, lifecycle.Request{AnswerID: a2.ID, ActorID: asker.ID, Reason: "outdated"})
	require.NoError(t, err)
	rejected := reload[models.Answer](t, db, a2.ID)
	assert.Equal(t, "rejected", rejected.Status)
	assert.Equal(t, "outdated", rejected.RejectionReason)
	assert.NotNil(t, rejected.ReviewedAt)
	assert.Nil(t, reload[models.Question](t, db, q.ID).AcceptedAnswerID)

	_, err = svc.Accept(ctx, lifecycle.Request{AnswerID: a1.ID, ActorID: first.ID})
	assert.ErrorIs(t, err, apperr.ErrNotAuthorized)
}

func TestReconcile_FixesDrift(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	author := seedUser(t, db, "author")
	voter := seedUser(t, db, "voter")
	q := seedQuestion(t, db, author.ID)
	a1 := seedAnswer(t, db, q.ID, voter.ID)
	a2 := seedAnswer(t, db, q.ID, voter.ID)

	_, err := voting.NewService(New(db).Votes()).SubmitVote(ctx, voter.ID, voting.TargetQuestion, q.ID, voting.Upvote)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Question{}).Where("id = ?", q.ID).
		UpdateColumns(map[string]any{"votes": 5, "upvoters": pq.Int64Array{}, "accepted_answer_id": a1.ID}).Error)
	require.NoError(t, db.Model(&models.Answer{}).Where("id = ?", a2.ID).
		UpdateColumns(map[string]any{"is_accepted": true, "status": "accepted"}).Error)

	report, err := New(db).Reconcile(ctx, false, quiet)
	require.NoError(t, err)
	require.Len(t, report.Votes, 1)
	assert.Equal(t, 5, report.Votes[0].StoredVotes)
	assert.Equal(t, 1, report.Votes[0].LedgerVotes)
	require.Len(t, report.Acceptance, 1)
	assert.Equal(t, []uint{a2.ID}, report.Acceptance[0].FlaggedAnswerIDs)

	_, err = New(db).Reconcile(ctx, true, quiet)
	require.NoError(t, err)

	report, err = New(db).Reconcile(ctx, false, quiet)
	require.NoError(t, err)
	assert.True(t, report.Clean())

	stored := reload[models.Question](t, db, q.ID)
	assert.Equal(t, 1, stored.Votes)
	assert.Equal(t, pq.Int64Array{int64(voter.ID)}, stored.Upvoters)
	assert.True(t, reload[models.Answer](t, db, a1.ID).IsAccepted)
	assert.False(t, reload[models.Answer](t, db, a2.ID).IsAccepted)
}
