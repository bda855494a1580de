package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/emilythestrangee/stackit/backend/internal/apperr"
	"github.com/emilythestrangee/stackit/backend/internal/voting"
)

type voteStore struct{ s *Store }

func (v voteStore) Transaction(_ context.Context, fn func(tx voting.Tx) error) error {
	return v.s.transaction(func(st *state) error {
		return fn(&voteTx{s: v.s, st: st})
	})
}

func (v voteStore) FindEntry(_ context.Context, userID uint, tt voting.TargetType, targetID uint) (*voting.Entry, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	e, ok := v.s.st.entries[entryKey{userID, tt, targetID}]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (v voteStore) CountEntries(_ context.Context, tt voting.TargetType, targetID uint) (up, down int, err error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for k, e := range v.s.st.entries {
		if k.target != tt || k.targetID != targetID {
			continue
		}
		if e.VoteType == voting.Upvote {
			up++
		} else {
			down++
		}
	}
	return up, down, nil
}

func (v voteStore) ListEntries(_ context.Context, userID uint, offset, limit int) ([]voting.Entry, int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []voting.Entry
	for k, e := range v.s.st.entries {
		if k.userID == userID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b voting.Entry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	total := int64(len(out))
	if offset >= len(out) {
		return []voting.Entry{}, total, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

type voteTx struct {
	s      *Store
	st     *state
	noHook bool
}

func (tx *voteTx) LockTarget(_ context.Context, tt voting.TargetType, id uint) (*voting.Target, error) {
	switch tt {
	case voting.TargetQuestion:
		q, ok := tx.st.questions[id]
		if !ok || q.Inactive {
			return nil, fmt.Errorf("%w: question %d", apperr.ErrNotFound, id)
		}
		return &voting.Target{
			Type: tt, ID: q.ID, AuthorID: q.AuthorID, QuestionID: q.ID, Votes: q.Votes,
			Upvoters: slices.Clone(q.Upvoters), Downvoters: slices.Clone(q.Downvoters),
		}, nil
	case voting.TargetAnswer:
		a, ok := tx.st.answers[id]
		if !ok || a.Inactive {
			return nil, fmt.Errorf("%w: answer %d", apperr.ErrNotFound, id)
		}
		return &voting.Target{
			Type: tt, ID: a.ID, AuthorID: a.AuthorID, QuestionID: a.QuestionID, Votes: a.Votes,
			Upvoters: slices.Clone(a.Upvoters), Downvoters: slices.Clone(a.Downvoters),
		}, nil
	}
	return nil, voting.ErrInvalidTargetType
}

func (tx *voteTx) FindEntry(_ context.Context, userID uint, tt voting.TargetType, targetID uint) (*voting.Entry, error) {
	e, ok := tx.st.entries[entryKey{userID, tt, targetID}]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (tx *voteTx) CreateEntry(_ context.Context, e *voting.Entry) error {
	if tx.s.onCreate != nil && !tx.noHook {
		if err := tx.s.onCreate(*e, &voteTx{s: tx.s, st: tx.s.st, noHook: true}); err != nil {
			return err
		}
	}
	key := entryKey{e.UserID, e.TargetType, e.TargetID}
	if _, ok := tx.st.entries[key]; ok {
		return fmt.Errorf("%w: vote already exists", apperr.ErrConflict)
	}
	tx.st.nextEntryID++
	now := tx.s.now()
	e.ID, e.CreatedAt, e.UpdatedAt = tx.st.nextEntryID, now, now
	tx.st.entries[key] = *e
	return nil
}

func (tx *voteTx) findByID(id uint) (entryKey, voting.Entry, error) {
	for k, e := range tx.st.entries {
		if e.ID == id {
			return k, e, nil
		}
	}
	return entryKey{}, voting.Entry{}, fmt.Errorf("%w: vote %d", apperr.ErrNotFound, id)
}

func (tx *voteTx) UpdateEntry(_ context.Context, entryID uint, vt voting.VoteType) error {
	k, e, err := tx.findByID(entryID)
	if err != nil {
		return err
	}
	e.VoteType, e.UpdatedAt = vt, tx.s.now()
	tx.st.entries[k] = e
	return nil
}

func (tx *voteTx) DeleteEntry(_ context.Context, entryID uint) error {
	k, _, err := tx.findByID(entryID)
	if err != nil {
		return err
	}
	delete(tx.st.entries, k)
	return nil
}

func (tx *voteTx) ApplyTransition(_ context.Context, target *voting.Target, userID uint, tr voting.Transition) (int, error) {
	switch target.Type {
	case voting.TargetQuestion:
		q := tx.st.questions[target.ID]
		q.Votes += tr.CountDelta
		q.Upvoters, q.Downvoters = moveMember(q.Upvoters, q.Downvoters, userID, tr.To)
		tx.st.questions[q.ID] = q
		return q.Votes, nil
	case voting.TargetAnswer:
		a := tx.st.answers[target.ID]
		a.Votes += tr.CountDelta
		a.Upvoters, a.Downvoters = moveMember(a.Upvoters, a.Downvoters, userID, tr.To)
		tx.st.answers[a.ID] = a
		return a.Votes, nil
	}
	return 0, voting.ErrInvalidTargetType
}

func (tx *voteTx) IncrementReputation(_ context.Context, change voting.ReputationChange) error {
	tx.st.reputation[change.UserID] += change.Amount
	tx.st.log = append(tx.st.log, change)
	return nil
}
