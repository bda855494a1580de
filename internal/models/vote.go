package models

import "time"

// Vote is one ledger entry: a single user's vote on a question or answer.
// The unique index enforces one entry per (user, target type, target).
type Vote struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_votes_user_target,priority:1;index" json:"userId"`
	TargetType string    `gorm:"size:10;not null;uniqueIndex:idx_votes_user_target,priority:2;index:idx_votes_target,priority:1" json:"targetType"`
	TargetID   uint      `gorm:"not null;uniqueIndex:idx_votes_user_target,priority:3;index:idx_votes_target,priority:2" json:"targetId"`
	VoteType   string    `gorm:"size:10;not null" json:"voteType"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type VoteRequest struct {
	TargetType string `json:"targetType" binding:"required"`
	TargetID   uint   `json:"targetId" binding:"required"`
	VoteType   string `json:"voteType" binding:"required"`
}
