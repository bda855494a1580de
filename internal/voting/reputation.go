package voting

const (
	UpvoteWeight   = 10
	DownvoteWeight = 2
)

// ReputationDelta is the change to the author's reputation for a transition.
// The weight follows the requested vote type, not the direction of the change,
// so switching an upvote to a downvote costs 2*DownvoteWeight.
func ReputationDelta(requested VoteType, countDelta int) int {
	switch requested {
	case Upvote:
		return countDelta * UpvoteWeight
	case Downvote:
		return countDelta * DownvoteWeight
	}
	return 0
}

// ReputationChange is one atomic increment of a user's reputation together
// with what caused it.
type ReputationChange struct {
	UserID     uint
	Amount     int
	VoterID    uint
	TargetType TargetType
	TargetID   uint
	Reason     string
}

func reputationReason(tt TargetType, tr Transition) string {
	return tt.String() + " " + tr.To.String() + " (" + tr.Kind.String() + ")"
}
