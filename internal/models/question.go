package models

import (
	"time"

	"github.com/lib/pq"
)

type Question struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	Title            string        `gorm:"size:200;not null" json:"title"`
	Description      string        `gorm:"type:text;not null" json:"description"`
	AuthorID         uint          `gorm:"not null;index" json:"authorId"`
	Author           User          `gorm:"foreignKey:AuthorID" json:"author"`
	Tags             []Tag         `gorm:"many2many:question_tags;" json:"tags"`
	AnswerIDs        pq.Int64Array `gorm:"type:bigint[];not null;default:'{}'" json:"answerIds"`
	AcceptedAnswerID *uint         `gorm:"index" json:"acceptedAnswerId"`
	Views            int           `gorm:"default:0;not null;index" json:"views"`
	Votes            int           `gorm:"default:0;not null;index" json:"votes"`
	Upvoters         pq.Int64Array `gorm:"type:bigint[];not null;default:'{}'" json:"upvoters"`
	Downvoters       pq.Int64Array `gorm:"type:bigint[];not null;default:'{}'" json:"downvoters"`
	IsActive         bool          `gorm:"default:true;not null;index" json:"isActive"`
	LastActivity     time.Time     `gorm:"index" json:"lastActivity"`
	CreatedAt        time.Time     `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

type CreateQuestionRequest struct {
	Title       string   `json:"title" binding:"required,max=200"`
	Description string   `json:"description" binding:"required"`
	Tags        []string `json:"tags" binding:"max=5,dive,min=1,max=50"`
}

type UpdateQuestionRequest struct {
	Title       string   `json:"title" binding:"max=200"`
	Description string   `json:"description"`
	Tags        []string `json:"tags" binding:"omitempty,max=5,dive,min=1,max=50"`
}
