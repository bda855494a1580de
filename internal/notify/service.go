package notify

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/metrics"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

var errNoRecipient = errors.New("notification intent without recipient")

// Service stores notifications with gorm.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger}
}

// Dispatch stores one notification per intent. It runs on a context detached
// from the caller's cancellation since the emitting transaction has already
// committed.
func (s *Service) Dispatch(ctx context.Context, intents ...Intent) {
	ctx = context.WithoutCancel(ctx)
	for _, in := range intents {
		if err := s.deliver(ctx, in); err != nil {
			metrics.NotificationsDispatched.WithLabelValues(string(in.Type), "error").Inc()
			s.logger.ErrorContext(ctx, "notification dispatch failed",
				"type", in.Type, "recipient", in.RecipientID, "error", err)
		}
	}
}

func (s *Service) deliver(ctx context.Context, in Intent) error {
	if in.RecipientID == 0 {
		return errNoRecipient
	}
	if in.SenderID == in.RecipientID && in.Type != TypeAdminMessage {
		metrics.NotificationsDispatched.WithLabelValues(string(in.Type), "skipped").Inc()
		return nil
	}

	var senderName string
	if in.SenderID != 0 {
		var sender models.User
		if err := s.db.WithContext(ctx).Select("id", "name").First(&sender, in.SenderID).Error; err == nil {
			senderName = sender.Name
		}
	}

	n := toModel(in, senderName)
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return err
	}
	metrics.NotificationsDispatched.WithLabelValues(string(in.Type), "ok").Inc()
	return nil
}

// Broadcast sends an admin message to the given users, or to every active
// user when recipients is empty. It returns the number of notifications stored.
func (s *Service) Broadcast(ctx context.Context, senderID uint, title, message string, recipients []uint) (int, error) {
	db := s.db.WithContext(ctx)
	if len(recipients) == 0 {
		if err := db.Model(&models.User{}).Where("is_active = ?", true).Pluck("id", &recipients).Error; err != nil {
			return 0, err
		}
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	batch := make([]models.Notification, 0, len(recipients))
	for _, id := range recipients {
		batch = append(batch, toModel(Intent{
			Type:        TypeAdminMessage,
			RecipientID: id,
			SenderID:    senderID,
			Title:       title,
			Message:     message,
		}, ""))
	}
	if err := db.CreateInBatches(&batch, 200).Error; err != nil {
		return 0, err
	}
	metrics.NotificationsDispatched.WithLabelValues(string(TypeAdminMessage), "ok").Add(float64(len(batch)))
	return len(batch), nil
}

func toModel(in Intent, senderName string) models.Notification {
	title, message := Render(in, senderName)
	n := models.Notification{
		RecipientID: in.RecipientID,
		Type:        string(in.Type),
		Title:       title,
		Message:     message,
		IsActive:    true,
	}
	if in.SenderID != 0 {
		sender := in.SenderID
		n.SenderID = &sender
	}
	if in.QuestionID != 0 {
		q := in.QuestionID
		n.RelatedQuestionID = &q
	}
	if in.AnswerID != 0 {
		a := in.AnswerID
		n.RelatedAnswerID = &a
	}
	return n
}
