package handlers

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/notify"
)

// Deps are the services the handlers are built from.
type Deps struct {
	DB         *gorm.DB
	Auth       *auth.Auth
	Votes      VoteService
	Reviewer   AnswerReviewer
	Notifier   *notify.Service
	Health     HealthChecker
	Moderation config.Moderation
	Logger     *slog.Logger
}

// Handler combines all handler types
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Question     *QuestionHandler
	Answer       *AnswerHandler
	Vote         *VoteHandler
	Tag          *TagHandler
	Notification *NotificationHandler
	Admin        *AdminHandler
	Health       *HealthHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(d Deps) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(d.DB, d.Auth, d.Logger),
		User:         NewUserHandler(d.DB),
		Question:     NewQuestionHandler(d.DB),
		Answer:       NewAnswerHandler(d.DB, d.Reviewer, d.Notifier),
		Vote:         NewVoteHandler(d.Votes),
		Tag:          NewTagHandler(d.DB),
		Notification: NewNotificationHandler(d.DB, d.Notifier),
		Admin:        NewAdminHandler(d.DB, d.Moderation, d.Logger),
		Health:       NewHealthHandler(d.Health),
	}
}
