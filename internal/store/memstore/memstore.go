// Package memstore keeps questions, answers, the vote ledger and reputation in
// memory. Transactions are serialized and work on a copy of the state that
// replaces the committed state only when the transaction succeeds.
package memstore

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/emilythestrangee/stackit/backend/internal/lifecycle"
	"github.com/emilythestrangee/stackit/backend/internal/voting"
)

type Question struct {
	ID               uint
	AuthorID         uint
	Title            string
	AcceptedAnswerID uint
	Votes            int
	Upvoters         []uint
	Downvoters       []uint
	Inactive         bool
	LastActivity     time.Time
}

type Answer struct {
	ID              uint
	AuthorID        uint
	QuestionID      uint
	Status          lifecycle.Status
	IsAccepted      bool
	RejectionReason string
	ReviewedAt      time.Time
	Votes           int
	Upvoters        []uint
	Downvoters      []uint
	Inactive        bool
}

type entryKey struct {
	userID   uint
	target   voting.TargetType
	targetID uint
}

type state struct {
	questions   map[uint]Question
	answers     map[uint]Answer
	reputation  map[uint]int
	entries     map[entryKey]voting.Entry
	log         []voting.ReputationChange
	nextEntryID uint
}

func (st *state) clone() *state {
	c := &state{
		questions:   make(map[uint]Question, len(st.questions)),
		answers:     make(map[uint]Answer, len(st.answers)),
		reputation:  make(map[uint]int, len(st.reputation)),
		entries:     make(map[entryKey]voting.Entry, len(st.entries)),
		log:         slices.Clone(st.log),
		nextEntryID: st.nextEntryID,
	}
	for id, q := range st.questions {
		q.Upvoters, q.Downvoters = slices.Clone(q.Upvoters), slices.Clone(q.Downvoters)
		c.questions[id] = q
	}
	for id, a := range st.answers {
		a.Upvoters, a.Downvoters = slices.Clone(a.Upvoters), slices.Clone(a.Downvoters)
		c.answers[id] = a
	}
	for id, r := range st.reputation {
		c.reputation[id] = r
	}
	for k, e := range st.entries {
		c.entries[k] = e
	}
	return c
}

type Store struct {
	mu       sync.Mutex
	st       *state
	now      func() time.Time
	onCreate func(e voting.Entry, committed voting.Tx) error
}

func New() *Store {
	return &Store{
		st: &state{
			questions:  map[uint]Question{},
			answers:    map[uint]Answer{},
			reputation: map[uint]int{},
			entries:    map[entryKey]voting.Entry{},
		},
		now: time.Now,
	}
}

// Votes returns the store as seen by the voting service.
func (s *Store) Votes() voting.Store { return voteStore{s} }

// Lifecycle returns the store as seen by the answer lifecycle service.
func (s *Store) Lifecycle() lifecycle.Store { return lifecycleStore{s} }

// OnCreateEntry installs a hook run before every ledger insert. committed
// writes straight to the committed state and skips the hook, so a hook can
// land a competing vote before the insert. A non-nil error from the hook
// fails the insert.
func (s *Store) OnCreateEntry(hook func(e voting.Entry, committed voting.Tx) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCreate = hook
}

func (s *Store) AddQuestion(q Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.questions[q.ID] = q
}

// AddAnswer stores an answer. A zero Status is stored as pending.
func (s *Store) AddAnswer(a Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Status == 0 {
		a.Status = lifecycle.StatusPending
	}
	s.st.answers[a.ID] = a
}

func (s *Store) SetReputation(userID uint, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.reputation[userID] = value
}

func (s *Store) Question(id uint) (Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.st.questions[id]
	return q, ok
}

func (s *Store) Answer(id uint) (Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.answers[id]
	return a, ok
}

func (s *Store) Reputation(userID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.reputation[userID]
}

// Entries returns every ledger entry ordered by ID.
func (s *Store) Entries() []voting.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]voting.Entry, 0, len(s.st.entries))
	for _, e := range s.st.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b voting.Entry) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *Store) ReputationLog() []voting.ReputationChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.log)
}

func (s *Store) transaction(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.st = work
	return nil
}

func moveMember(up, down []uint, userID uint, to voting.State) ([]uint, []uint) {
	up = slices.DeleteFunc(up, func(id uint) bool { return id == userID })
	down = slices.DeleteFunc(down, func(id uint) bool { return id == userID })
	switch to {
	case voting.StateUp:
		up = append(up, userID)
	case voting.StateDown:
		down = append(down, userID)
	}
	return up, down
}
