package voting

import (
	"context"
	"slices"
	"time"
)

// Target is the vote-bearing part of a question or an answer. QuestionID is
// the question itself for questions and the parent question for answers.
type Target struct {
	Type       TargetType
	ID         uint
	AuthorID   uint
	QuestionID uint
	Votes      int
	Upvoters   []uint
	Downvoters []uint
}

// StateOf reports the user's state according to the membership sets.
func (t *Target) StateOf(userID uint) State {
	switch {
	case slices.Contains(t.Upvoters, userID):
		return StateUp
	case slices.Contains(t.Downvoters, userID):
		return StateDown
	}
	return StateNone
}

// Entry is one row of the vote ledger. There is at most one entry per
// (UserID, TargetType, TargetID).
type Entry struct {
	ID         uint
	UserID     uint
	TargetType TargetType
	TargetID   uint
	VoteType   VoteType
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Stats is the ledger view of a target's votes.
type Stats struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
	Total     int `json:"total"`
}

// Store persists targets, the ledger and reputation.
type Store interface {
	// Transaction runs fn atomically. If fn returns an error nothing it wrote
	// is kept.
	Transaction(ctx context.Context, fn func(tx Tx) error) error

	// FindEntry returns the user's ledger entry or nil when there is none.
	FindEntry(ctx context.Context, userID uint, tt TargetType, targetID uint) (*Entry, error)
	// CountEntries counts ledger entries by vote type for one target.
	CountEntries(ctx context.Context, tt TargetType, targetID uint) (up, down int, err error)
	// ListEntries returns the user's ledger entries, newest first.
	ListEntries(ctx context.Context, userID uint, offset, limit int) ([]Entry, int64, error)
}

// Tx is the set of writes a vote needs, all inside one transaction.
type Tx interface {
	// LockTarget loads an active target and holds it against concurrent
	// votes until the transaction ends. It fails with apperr.ErrNotFound
	// when the target is missing or inactive.
	LockTarget(ctx context.Context, tt TargetType, id uint) (*Target, error)
	FindEntry(ctx context.Context, userID uint, tt TargetType, targetID uint) (*Entry, error)
	// CreateEntry fails with apperr.ErrConflict when an entry for the same
	// user and target already exists.
	CreateEntry(ctx context.Context, e *Entry) error
	UpdateEntry(ctx context.Context, entryID uint, vt VoteType) error
	DeleteEntry(ctx context.Context, entryID uint) error
	// ApplyTransition adds tr.CountDelta to the target's votes, removes userID
	// from both membership sets and adds it to the set matching tr.To. It
	// returns the new votes value.
	ApplyTransition(ctx context.Context, target *Target, userID uint, tr Transition) (int, error)
	IncrementReputation(ctx context.Context, change ReputationChange) error
}
