package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"hazeltrade/internal/model"
	"hazeltrade/internal/repository"
)

// Pusher delivers a serialized notification to a connected user, if any.
// Satisfied by the websocket hub.
type Pusher interface {
	SendToUser(userID string, payload []byte)
}

// NotificationService creates per-recipient event records and pushes them to
// connected clients. Every method is best-effort: failures are logged and
// swallowed, never propagated into the transition that triggered them.
type NotificationService interface {
	// FanOut notifies every user attached to the deal (buyer company users,
	// seller company users, the broker).
	FanOut(ctx context.Context, dealID uuid.UUID, notifType, title, message string)
	// Notify targets a single user
	Notify(ctx context.Context, userID uuid.UUID, dealID *uuid.UUID, notifType, title, message string)
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

type notificationService struct {
	notifRepo repository.NotificationRepository
	dealRepo  repository.DealRepository
	pusher    Pusher
	appURL    string
}

func NewNotificationService(
	notifRepo repository.NotificationRepository,
	dealRepo repository.DealRepository,
	pusher Pusher,
	appURL string,
) NotificationService {
	return &notificationService{
		notifRepo: notifRepo,
		dealRepo:  dealRepo,
		pusher:    pusher,
		appURL:    appURL,
	}
}

func (s *notificationService) dealURL(dealID uuid.UUID) string {
	return s.appURL + "/dashboard/deals/" + dealID.String()
}

func (s *notificationService) FanOut(ctx context.Context, dealID uuid.UUID, notifType, title, message string) {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		log.Printf("notification fan-out skipped, deal %s lookup failed: %v", dealID, err)
		return
	}

	recipients, err := s.notifRepo.DealRecipients(ctx, deal)
	if err != nil {
		log.Printf("notification fan-out skipped, recipients for deal %s failed: %v", dealID, err)
		return
	}

	id := deal.ID
	rows := make([]model.Notification, 0, len(recipients))
	for _, userID := range recipients {
		rows = append(rows, model.Notification{
			UserID:    userID,
			DealID:    &id,
			Type:      notifType,
			Title:     title,
			Message:   message,
			ActionURL: s.dealURL(deal.ID),
		})
	}

	if err := s.notifRepo.CreateBatch(ctx, rows); err != nil {
		log.Printf("failed to persist notifications for deal %s: %v", dealID, err)
		return
	}

	s.push(rows)
}

func (s *notificationService) Notify(ctx context.Context, userID uuid.UUID, dealID *uuid.UUID, notifType, title, message string) {
	row := model.Notification{
		UserID:  userID,
		DealID:  dealID,
		Type:    notifType,
		Title:   title,
		Message: message,
	}
	if dealID != nil {
		row.ActionURL = s.dealURL(*dealID)
	}

	if err := s.notifRepo.CreateBatch(ctx, []model.Notification{row}); err != nil {
		log.Printf("failed to persist notification for user %s: %v", userID, err)
		return
	}

	s.push([]model.Notification{row})
}

func (s *notificationService) push(rows []model.Notification) {
	if s.pusher == nil {
		return
	}
	for _, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			continue
		}
		s.pusher.SendToUser(row.UserID.String(), payload)
	}
}

func (s *notificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	return s.notifRepo.ListByUser(ctx, userID, unreadOnly, offset, limit)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.notifRepo.UnreadCount(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.notifRepo.MarkRead(ctx, userID, notificationID)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.notifRepo.MarkAllRead(ctx, userID)
}
