package models

import "time"

type Notification struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	RecipientID       uint      `gorm:"not null;index:idx_notifications_recipient" json:"recipientId"`
	SenderID          *uint     `gorm:"index" json:"senderId"`
	Sender            *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Type              string    `gorm:"size:30;not null;index" json:"type"`
	Title             string    `gorm:"not null" json:"title"`
	Message           string    `gorm:"type:text;not null" json:"message"`
	RelatedQuestionID *uint     `json:"relatedQuestionId,omitempty"`
	RelatedAnswerID   *uint     `json:"relatedAnswerId,omitempty"`
	IsRead            bool      `gorm:"default:false;not null;index:idx_notifications_recipient" json:"isRead"`
	IsActive          bool      `gorm:"default:true;not null;index" json:"isActive"`
	CreatedAt         time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type AdminMessageRequest struct {
	Title       string `json:"title" binding:"required"`
	Message     string `json:"message" binding:"required"`
	TargetUsers []uint `json:"targetUsers"`
}
