package models

import (
	"time"

	"github.com/lib/pq"
)

type Answer struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	Content         string        `gorm:"type:text;not null" json:"content"`
	AuthorID        uint          `gorm:"not null;index" json:"authorId"`
	Author          User          `gorm:"foreignKey:AuthorID" json:"author"`
	QuestionID      uint          `gorm:"not null;index" json:"questionId"`
	Question        *Question     `gorm:"foreignKey:QuestionID" json:"question,omitempty"`
	IsAccepted      bool          `gorm:"default:false;not null;index" json:"isAccepted"`
	Status          string        `gorm:"size:20;default:'pending';not null" json:"status"`
	RejectionReason string        `gorm:"size:500" json:"rejectionReason,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewedAt,omitempty"`
	Votes           int           `gorm:"default:0;not null;index" json:"votes"`
	Upvoters        pq.Int64Array `gorm:"type:bigint[];not null;default:'{}'" json:"upvoters"`
	Downvoters      pq.Int64Array `gorm:"type:bigint[];not null;default:'{}'" json:"downvoters"`
	IsActive        bool          `gorm:"default:true;not null;index" json:"isActive"`
	EditHistory     []AnswerEdit  `gorm:"constraint:OnDelete:CASCADE;" json:"editHistory,omitempty"`
	CreatedAt       time.Time     `gorm:"index" json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// AnswerEdit keeps the previous content of an answer each time it is edited.
type AnswerEdit struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AnswerID   uint      `gorm:"not null;index" json:"answerId"`
	Content    string    `gorm:"type:text" json:"content"`
	EditedByID uint      `json:"editedBy"`
	EditedAt   time.Time `json:"editedAt"`
}

type AnswerRequest struct {
	Content string `json:"content" binding:"required"`
}

// ReviewAnswerRequest is the optional body of accept, unaccept and reject.
// QuestionID, when set, must be the answer's question.
type ReviewAnswerRequest struct {
	QuestionID uint   `json:"questionId"`
	Reason     string `json:"reason" binding:"max=500"`
}
