package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"hazeltrade/internal/model"
)

// NotificationRepository persists per-recipient event records and resolves
// the recipient set for a deal.
type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []model.Notification) error
	// DealRecipients returns the ids of every user attached to the deal:
	// users of the buyer company, users of the seller company, and the broker.
	DealRecipients(ctx context.Context, deal *model.Deal) ([]uuid.UUID, error)
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&notifications).Error
}

func (r *notificationRepository) DealRecipients(ctx context.Context, deal *model.Deal) ([]uuid.UUID, error) {
	db := GetDB(ctx, r.db)

	query := db.Model(&model.User{}).Distinct("users.id")
	conditions := db.Where("users.id = ?", deal.BrokerID)
	if deal.BuyerID != nil {
		conditions = conditions.Or("users.company_id = ?", *deal.BuyerID)
	}
	if deal.SellerID != nil {
		conditions = conditions.Or("users.company_id = ?", *deal.SellerID)
	}

	var ids []uuid.UUID
	if err := query.Where(conditions).Pluck("users.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	query := GetDB(ctx, r.db).Model(&model.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = false")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []model.Notification
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Notification{}).
		Where("user_id = ? AND read = false", userID).
		Count(&count).Error
	return count, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	now := time.Now()
	return GetDB(ctx, r.db).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]interface{}{"read": true, "read_at": now}).Error
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	now := time.Now()
	return GetDB(ctx, r.db).Model(&model.Notification{}).
		Where("user_id = ? AND read = false", userID).
		Updates(map[string]interface{}{"read": true, "read_at": now}).Error
}
