package voting

// Kind is the ledger operation a vote request resolves to.
type Kind uint8

const (
	KindCreated Kind = iota + 1
	KindRemoved
	KindSwitched
)

func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindRemoved:
		return "removed"
	case KindSwitched:
		return "switched"
	}
	return "unknown"
}

// Transition is the result of resolving a vote request against the user's
// current state. CountDelta is the change applied to the target's votes.
type Transition struct {
	Kind       Kind
	From       State
	To         State
	CountDelta int
}

// Resolve computes the transition for a user currently in state current who
// submits requested. requested must be valid.
func Resolve(current State, requested VoteType) Transition {
	switch current {
	case StateNone:
		return Transition{
			Kind:       KindCreated,
			From:       StateNone,
			To:         requested.State(),
			CountDelta: requested.Sign(),
		}
	case requested.State():
		return Transition{
			Kind:       KindRemoved,
			From:       current,
			To:         StateNone,
			CountDelta: -requested.Sign(),
		}
	default:
		return Transition{
			Kind:       KindSwitched,
			From:       current,
			To:         requested.State(),
			CountDelta: 2 * requested.Sign(),
		}
	}
}

// Notifies reports whether the author should hear about this transition: only
// a new upvote or a switch into an upvote does.
func (t Transition) Notifies() bool {
	return t.CountDelta > 0 && t.To == StateUp
}
