package models

import "time"

type Tag struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Description   string    `gorm:"size:500" json:"description"`
	Color         string    `gorm:"size:20;default:'#007bff'" json:"color"`
	QuestionCount int       `gorm:"default:0;not null;index" json:"questionCount"`
	IsActive      bool      `gorm:"default:true;not null" json:"isActive"`
	CreatedByID   *uint     `json:"createdById,omitempty"`
	CreatedBy     *User     `gorm:"foreignKey:CreatedByID" json:"createdBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type TagRequest struct {
	Name        string `json:"name" binding:"required,max=50"`
	Description string `json:"description" binding:"max=500"`
	Color       string `json:"color" binding:"omitempty,hexcolor"`
}
