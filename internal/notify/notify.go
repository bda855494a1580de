// Package notify turns notification intents emitted by the core services into
// stored notifications. Delivery never fails the operation that emitted the intent.
package notify

import (
	"context"
	"fmt"
)

type Type string

const (
	TypeAnswerPosted    Type = "answer_posted"
	TypeAnswerAccepted  Type = "answer_accepted"
	TypeAnswerRejected  Type = "answer_rejected"
	TypeCommentPosted   Type = "comment_posted"
	TypeMention         Type = "mention"
	TypeQuestionUpvoted Type = "question_upvoted"
	TypeAnswerUpvoted   Type = "answer_upvoted"
	TypeAdminMessage    Type = "admin_message"
)

// Intent describes a notification the core wants sent. Title and Message are
// only read for admin messages; every other type is rendered from its fields.
type Intent struct {
	Type          Type
	RecipientID   uint
	SenderID      uint
	QuestionID    uint
	AnswerID      uint
	QuestionTitle string
	Reason        string
	Title         string
	Message       string
}

// Dispatcher consumes intents. Implementations log failures instead of
// returning them.
type Dispatcher interface {
	Dispatch(ctx context.Context, intents ...Intent)
}

// Render builds the title and message shown to the recipient.
func Render(in Intent, senderName string) (title, message string) {
	if senderName == "" {
		senderName = "Someone"
	}

	switch in.Type {
	case TypeAnswerPosted:
		return "New Answer to Your Question",
			fmt.Sprintf("%s answered your question: %q", senderName, in.QuestionTitle)
	case TypeAnswerAccepted:
		if in.QuestionTitle == "" {
			return "Your Answer Was Accepted!", "Your answer has been accepted!"
		}
		return "Your Answer Was Accepted!",
			fmt.Sprintf("%s accepted your answer to: %q", senderName, in.QuestionTitle)
	case TypeAnswerRejected:
		if in.Reason != "" {
			return "Your Answer Was Rejected", "Your answer was rejected: " + in.Reason
		}
		return "Your Answer Was Rejected", "Your answer was rejected"
	case TypeQuestionUpvoted:
		return "Your question was upvoted!", senderName + " upvoted your question"
	case TypeAnswerUpvoted:
		return "Your answer was upvoted!", senderName + " upvoted your answer"
	default:
		return in.Title, in.Message
	}
}
