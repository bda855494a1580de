// Package voting owns the vote ledger and the vote resolution engine: it turns a
// vote request into a create, toggle-off or switch transition, applies the
// counter, membership and ledger changes in one transaction and derives the
// author's reputation change.
package voting

import (
	"fmt"

	"github.com/emilythestrangee/stackit/backend/internal/apperr"
)

var (
	ErrInvalidTargetType = fmt.Errorf("%w: invalid target type", apperr.ErrValidation)
	ErrInvalidVoteType   = fmt.Errorf("%w: invalid vote type", apperr.ErrValidation)
	ErrSelfVote          = fmt.Errorf("%w: cannot vote on your own content", apperr.ErrSelfAction)
)

// TargetType is the kind of content a vote applies to.
type TargetType uint8

const (
	TargetQuestion TargetType = iota + 1
	TargetAnswer
)

func ParseTargetType(s string) (TargetType, error) {
	switch s {
	case "question":
		return TargetQuestion, nil
	case "answer":
		return TargetAnswer, nil
	}
	return 0, ErrInvalidTargetType
}

func (t TargetType) Valid() bool {
	return t == TargetQuestion || t == TargetAnswer
}

func (t TargetType) String() string {
	switch t {
	case TargetQuestion:
		return "question"
	case TargetAnswer:
		return "answer"
	}
	return "unknown"
}

// VoteType is the direction a user votes in.
type VoteType uint8

const (
	Upvote VoteType = iota + 1
	Downvote
)

func ParseVoteType(s string) (VoteType, error) {
	switch s {
	case "upvote":
		return Upvote, nil
	case "downvote":
		return Downvote, nil
	}
	return 0, ErrInvalidVoteType
}

func (v VoteType) Valid() bool {
	return v == Upvote || v == Downvote
}

func (v VoteType) String() string {
	switch v {
	case Upvote:
		return "upvote"
	case Downvote:
		return "downvote"
	}
	return "unknown"
}

// Sign is +1 for an upvote and -1 for a downvote.
func (v VoteType) Sign() int {
	switch v {
	case Upvote:
		return 1
	case Downvote:
		return -1
	}
	return 0
}

// State returns the user vote state a vote of this type produces.
func (v VoteType) State() State {
	switch v {
	case Upvote:
		return StateUp
	case Downvote:
		return StateDown
	}
	return StateNone
}

// State is a user's effective vote on a target.
type State uint8

const (
	StateNone State = iota
	StateUp
	StateDown
)

func (s State) String() string {
	switch s {
	case StateUp:
		return "upvote"
	case StateDown:
		return "downvote"
	}
	return "none"
}
