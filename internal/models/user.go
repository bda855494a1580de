package models

import "time"

const (
	RoleGuest = "guest"
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"not null" json:"name"`
	Email      string     `gorm:"uniqueIndex;not null" json:"email"`
	Password   string     `gorm:"not null" json:"-"`
	Role       string     `gorm:"size:20;default:'user';not null;index" json:"role"`
	Reputation int        `gorm:"default:0;not null" json:"reputation"` // written only through atomic increments
	Avatar     string     `json:"avatar"`
	Bio        string     `gorm:"size:500" json:"bio"`
	IsActive   bool       `gorm:"default:true;not null" json:"isActive"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
	CreatedAt  time.Time  `json:"joinedAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ReputationLog records every reputation change applied to a user.
type ReputationLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"userId"`
	Amount     int       `gorm:"not null" json:"amount"`
	Reason     string    `gorm:"size:100;not null" json:"reason"`
	VoterID    uint      `gorm:"index" json:"voterId"`
	TargetType string    `gorm:"size:10" json:"targetType"`
	TargetID   uint      `json:"targetId"`
	CreatedAt  time.Time `json:"createdAt"`
}

type SignupRequest struct {
	Name     string `json:"name" binding:"required,min=2"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"omitempty,oneof=user admin"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type UpdateProfileRequest struct {
	Name   string `json:"name" binding:"omitempty,min=2"`
	Email  string `json:"email" binding:"omitempty,email"`
	Bio    string `json:"bio" binding:"max=500"`
	Avatar string `json:"avatar"`
}

// UpdateUserRequest is the admin payload. Reputation is not writable.
type UpdateUserRequest struct {
	Role     string `json:"role" binding:"omitempty,oneof=user admin"`
	IsActive *bool  `json:"isActive"`
}

type AuthResponse struct {
	Token   string `json:"token"`
	User    User   `json:"user"`
	Message string `json:"message"`
}
