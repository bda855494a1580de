package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/stackit/backend/internal/apperr"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/voting"
)

type voteStore struct {
	db *gorm.DB
}

func (s voteStore) Transaction(ctx context.Context, fn func(tx voting.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&voteTx{db: tx})
	})
}

func (s voteStore) FindEntry(ctx context.Context, userID uint, tt voting.TargetType, targetID uint) (*voting.Entry, error) {
	return findEntry(s.db.WithContext(ctx), userID, tt, targetID)
}

func (s voteStore) CountEntries(ctx context.Context, tt voting.TargetType, targetID uint) (up, down int, err error) {
	var rows []struct {
		VoteType string
		Count    int
	}
	err = s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("vote_type, COUNT(*) AS count").
		Where("target_type = ? AND target_id = ?", tt.String(), targetID).
		Group("vote_type").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, err
	}
	for _, r := range rows {
		switch r.VoteType {
		case voting.Upvote.String():
			up = r.Count
		case voting.Downvote.String():
			down = r.Count
		}
	}
	return up, down, nil
}

func (s voteStore) ListEntries(ctx context.Context, userID uint, offset, limit int) ([]voting.Entry, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Vote{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Vote
	if err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]voting.Entry, 0, len(rows))
	for _, r := range rows {
		e, err := toEntry(r)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	return out, total, nil
}

type voteTx struct {
	db *gorm.DB
}

func (tx *voteTx) LockTarget(ctx context.Context, tt voting.TargetType, id uint) (*voting.Target, error) {
	locked := tx.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})

	switch tt {
	case voting.TargetQuestion:
		var q models.Question
		err := locked.Select("id", "author_id", "votes", "upvoters", "downvoters").
			Where("id = ? AND is_active = ?", id, true).
			First(&q).Error
		if err != nil {
			return nil, notFound(err, "question", id)
		}
		return &voting.Target{
			Type: tt, ID: q.ID, AuthorID: q.AuthorID, QuestionID: q.ID, Votes: q.Votes,
			Upvoters: toUints(q.Upvoters), Downvoters: toUints(q.Downvoters),
		}, nil
	case voting.TargetAnswer:
		var a models.Answer
		err := locked.Select("id", "author_id", "question_id", "votes", "upvoters", "downvoters").
			Where("id = ? AND is_active = ?", id, true).
			First(&a).Error
		if err != nil {
			return nil, notFound(err, "answer", id)
		}
		return &voting.Target{
			Type: tt, ID: a.ID, AuthorID: a.AuthorID, QuestionID: a.QuestionID, Votes: a.Votes,
			Upvoters: toUints(a.Upvoters), Downvoters: toUints(a.Downvoters),
		}, nil
	}
	return nil, voting.ErrInvalidTargetType
}

func (tx *voteTx) FindEntry(ctx context.Context, userID uint, tt voting.TargetType, targetID uint) (*voting.Entry, error) {
	return findEntry(tx.db.WithContext(ctx), userID, tt, targetID)
}

func (tx *voteTx) CreateEntry(ctx context.Context, e *voting.Entry) error {
	row := models.Vote{
		UserID:     e.UserID,
		TargetType: e.TargetType.String(),
		TargetID:   e.TargetID,
		VoteType:   e.VoteType.String(),
	}
	if err := tx.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: vote already exists", apperr.ErrConflict)
		}
		return fmt.Errorf("create vote: %w", err)
	}
	e.ID, e.CreatedAt, e.UpdatedAt = row.ID, row.CreatedAt, row.UpdatedAt
	return nil
}

func (tx *voteTx) UpdateEntry(ctx context.Context, entryID uint, vt voting.VoteType) error {
	res := tx.db.WithContext(ctx).Model(&models.Vote{}).Where("id = ?", entryID).Update("vote_type", vt.String())
	if res.Error != nil {
		return fmt.Errorf("update vote: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: vote %d", apperr.ErrNotFound, entryID)
	}
	return nil
}

func (tx *voteTx) DeleteEntry(ctx context.Context, entryID uint) error {
	res := tx.db.WithContext(ctx).Delete(&models.Vote{}, entryID)
	if res.Error != nil {
		return fmt.Errorf("delete vote: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: vote %d", apperr.ErrNotFound, entryID)
	}
	return nil
}

func (tx *voteTx) ApplyTransition(ctx context.Context, target *voting.Target, userID uint, tr voting.Transition) (int, error) {
	table, err := tableFor(target.Type)
	if err != nil {
		return 0, err
	}

	updates := map[string]any{
		"votes":      gorm.Expr("votes + ?", tr.CountDelta),
		"upvoters":   membershipExpr("upvoters", userID, tr.To == voting.StateUp),
		"downvoters": membershipExpr("downvoters", userID, tr.To == voting.StateDown),
		"updated_at": gorm.Expr("NOW()"),
	}

	if err := tx.db.WithContext(ctx).Table(table).Where("id = ?", target.ID).UpdateColumns(updates).Error; err != nil {
		return 0, fmt.Errorf("apply vote to %s %d: %w", target.Type, target.ID, err)
	}
	// The row is locked for the rest of the transaction, so the counter read
	// under the lock plus the delta is the stored value.
	return target.Votes + tr.CountDelta, nil
}

func membershipExpr(column string, userID uint, member bool) clause.Expr {
	if member {
		return gorm.Expr("array_append(array_remove("+column+", ?::bigint), ?::bigint)", userID, userID)
	}
	return gorm.Expr("array_remove("+column+", ?::bigint)", userID)
}

func (tx *voteTx) IncrementReputation(ctx context.Context, change voting.ReputationChange) error {
	db := tx.db.WithContext(ctx)

	entry := models.ReputationLog{
		UserID:     change.UserID,
		Amount:     change.Amount,
		Reason:     change.Reason,
		VoterID:    change.VoterID,
		TargetType: change.TargetType.String(),
		TargetID:   change.TargetID,
	}
	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("log reputation change: %w", err)
	}

	res := db.Model(&models.User{}).Where("id = ?", change.UserID).
		UpdateColumn("reputation", gorm.Expr("reputation + ?", change.Amount))
	if res.Error != nil {
		return fmt.Errorf("update reputation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %d", apperr.ErrNotFound, change.UserID)
	}
	return nil
}

func findEntry(db *gorm.DB, userID uint, tt voting.TargetType, targetID uint) (*voting.Entry, error) {
	var row models.Vote
	err := db.Where("user_id = ? AND target_type = ? AND target_id = ?", userID, tt.String(), targetID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find vote: %w", err)
	}
	return toEntry(row)
}

func toEntry(row models.Vote) (*voting.Entry, error) {
	tt, err := voting.ParseTargetType(row.TargetType)
	if err != nil {
		return nil, fmt.Errorf("vote %d: %w", row.ID, err)
	}
	vt, err := voting.ParseVoteType(row.VoteType)
	if err != nil {
		return nil, fmt.Errorf("vote %d: %w", row.ID, err)
	}
	return &voting.Entry{
		ID:         row.ID,
		UserID:     row.UserID,
		TargetType: tt,
		TargetID:   row.TargetID,
		VoteType:   vt,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}
