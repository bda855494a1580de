package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/lifecycle"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/voting"
)

const reconcileBatchSize = 500

// Drift is one target whose counter or membership sets disagree with the
// vote ledger.
type Drift struct {
	TargetType  voting.TargetType
	TargetID    uint
	StoredVotes int
	LedgerVotes int
	Upvoters    []uint
	Downvoters  []uint
}

// AcceptanceDrift is a question whose accepted answer pointer disagrees with
// its answers' flags.
type AcceptanceDrift struct {
	QuestionID       uint
	AcceptedAnswerID uint
	FlaggedAnswerIDs []uint
}

type Report struct {
	Checked    int
	Votes      []Drift
	Acceptance []AcceptanceDrift
	Fixed      bool
}

func (r Report) Clean() bool {
	return len(r.Votes) == 0 && len(r.Acceptance) == 0
}

type counterRow struct {
	ID         uint
	Votes      int
	Upvoters   pq.Int64Array
	Downvoters pq.Int64Array
}

// Reconcile compares every target's counter and membership sets with the
// vote ledger, which is authoritative, and every question's accepted answer
// with its answers. With fix set the stored values are rewritten from the
// ledger and acceptance is rebuilt from the question's pointer.
func (s *Store) Reconcile(ctx context.Context, fix bool, logger *slog.Logger) (Report, error) {
	report := Report{Fixed: fix}
	for _, tt := range []voting.TargetType{voting.TargetQuestion, voting.TargetAnswer} {
		if err := s.reconcileVotes(ctx, tt, fix, &report); err != nil {
			return report, err
		}
	}
	if err := s.reconcileAcceptance(ctx, fix, &report); err != nil {
		return report, err
	}

	logger.InfoContext(ctx, "reconcile finished",
		"checked", report.Checked,
		"vote_drift", len(report.Votes),
		"acceptance_drift", len(report.Acceptance),
		"fixed", fix,
	)
	return report, nil
}

func (s *Store) reconcileVotes(ctx context.Context, tt voting.TargetType, fix bool, report *Report) error {
	table, err := tableFor(tt)
	if err != nil {
		return err
	}

	var batch []counterRow
	res := s.db.WithContext(ctx).Table(table).
		Select("id", "votes", "upvoters", "downvoters").
		FindInBatches(&batch, reconcileBatchSize, func(_ *gorm.DB, _ int) error {
			ids := make([]uint, len(batch))
			for i, row := range batch {
				ids[i] = row.ID
			}

			var entries []models.Vote
			err := s.db.WithContext(ctx).
				Where("target_type = ? AND target_id IN ?", tt.String(), ids).
				Find(&entries).Error
			if err != nil {
				return fmt.Errorf("load ledger for %s: %w", table, err)
			}

			up := map[uint][]uint{}
			down := map[uint][]uint{}
			for _, e := range entries {
				if e.VoteType == voting.Upvote.String() {
					up[e.TargetID] = append(up[e.TargetID], e.UserID)
				} else {
					down[e.TargetID] = append(down[e.TargetID], e.UserID)
				}
			}

			for _, row := range batch {
				report.Checked++
				wantUp, wantDown := toInt64s(up[row.ID]), toInt64s(down[row.ID])
				ledgerVotes := len(wantUp) - len(wantDown)
				if row.Votes == ledgerVotes && sameSet(row.Upvoters, wantUp) && sameSet(row.Downvoters, wantDown) {
					continue
				}

				report.Votes = append(report.Votes, Drift{
					TargetType:  tt,
					TargetID:    row.ID,
					StoredVotes: row.Votes,
					LedgerVotes: ledgerVotes,
					Upvoters:    toUints(wantUp),
					Downvoters:  toUints(wantDown),
				})
				if !fix {
					continue
				}
				err := s.db.WithContext(ctx).Table(table).Where("id = ?", row.ID).
					UpdateColumns(map[string]any{
						"votes":      ledgerVotes,
						"upvoters":   wantUp,
						"downvoters": wantDown,
					}).Error
				if err != nil {
					return fmt.Errorf("fix %s %d: %w", tt, row.ID, err)
				}
			}
			return nil
		})
	return res.Error
}

func (s *Store) reconcileAcceptance(ctx context.Context, fix bool, report *Report) error {
	var flagged []models.Answer
	err := s.db.WithContext(ctx).
		Select("id", "question_id").
		Where("is_accepted = ? OR status = ?", true, lifecycle.StatusAccepted.String()).
		Find(&flagged).Error
	if err != nil {
		return fmt.Errorf("load accepted answers: %w", err)
	}
	byQuestion := map[uint][]uint{}
	for _, a := range flagged {
		byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a.ID)
	}

	var questions []models.Question
	err = s.db.WithContext(ctx).
		Select("id", "accepted_answer_id").
		Where("accepted_answer_id IS NOT NULL").
		Find(&questions).Error
	if err != nil {
		return fmt.Errorf("load questions with accepted answers: %w", err)
	}
	pointers := map[uint]uint{}
	for _, q := range questions {
		pointers[q.ID] = *q.AcceptedAnswerID
	}

	seen := map[uint]bool{}
	check := func(questionID uint) error {
		if seen[questionID] {
			return nil
		}
		seen[questionID] = true

		accepted := pointers[questionID]
		ids := byQuestion[questionID]
		slices.Sort(ids)
		if (accepted == 0 && len(ids) == 0) || (len(ids) == 1 && ids[0] == accepted) {
			return nil
		}
		report.Acceptance = append(report.Acceptance, AcceptanceDrift{
			QuestionID:       questionID,
			AcceptedAnswerID: accepted,
			FlaggedAnswerIDs: ids,
		})
		if !fix {
			return nil
		}
		return s.fixAcceptance(ctx, questionID, accepted)
	}

	for id := range pointers {
		if err := check(id); err != nil {
			return err
		}
	}
	for id := range byQuestion {
		if err := check(id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) fixAcceptance(ctx context.Context, questionID, acceptedID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Answer{}).
			Where("question_id = ? AND id <> ? AND (is_accepted = ? OR status = ?)",
				questionID, acceptedID, true, lifecycle.StatusAccepted.String()).
			Updates(map[string]any{"is_accepted": false, "status": lifecycle.StatusPending.String()}).Error
		if err != nil {
			return fmt.Errorf("clear stray acceptance on question %d: %w", questionID, err)
		}
		if acceptedID == 0 {
			return nil
		}

		res := tx.Model(&models.Answer{}).
			Where("id = ? AND question_id = ? AND status <> ?", acceptedID, questionID, lifecycle.StatusRejected.String()).
			Updates(map[string]any{"is_accepted": true, "status": lifecycle.StatusAccepted.String()})
		if res.Error != nil {
			return fmt.Errorf("restore accepted answer %d: %w", acceptedID, res.Error)
		}
		if res.RowsAffected == 0 {
			return tx.Model(&models.Question{}).Where("id = ?", questionID).
				Update("accepted_answer_id", nil).Error
		}
		return nil
	})
}

func sameSet(a, b pq.Int64Array) bool {
	if len(a) != len(b) {
		return false
	}
	sorted := slices.Clone(a)
	slices.Sort(sorted)
	return slices.Equal(sorted, b)
}
