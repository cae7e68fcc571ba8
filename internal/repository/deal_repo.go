package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"hazeltrade/internal/catalog"
	"hazeltrade/internal/model"
)

// DealFilter narrows deal listing to the rows a party may see
type DealFilter struct {
	BrokerID  *uuid.UUID
	CompanyID *uuid.UUID
	Role      catalog.PartyRole
	Status    string
	Offset    int
	Limit     int
}

// DealRepository covers deal lifecycle rows outside the hot transition path:
// creation, listing, invites and commissions.
type DealRepository interface {
	// NextDealSequence returns the next sequence number for the given deal
	// number prefix. Callers must hold an open transaction; the advisory
	// lock serializes concurrent allocations of the same prefix.
	NextDealSequence(ctx context.Context, prefix string) (int64, error)
	CreateDeal(ctx context.Context, deal *model.Deal) error
	CreateSteps(ctx context.Context, steps []model.DealStep) error
	CreateInvite(ctx context.Context, invite *model.Invite) error
	CreateCommission(ctx context.Context, commission *model.Commission) error
	GetByID(ctx context.Context, dealID uuid.UUID) (*model.Deal, error)
	List(ctx context.Context, filter DealFilter) ([]model.Deal, int64, error)
	ListSteps(ctx context.Context, dealID uuid.UUID) ([]model.DealStep, error)
	ListApprovalsForDeal(ctx context.Context, dealID uuid.UUID) ([]model.PartyApproval, error)
	GetInviteByToken(ctx context.Context, token string) (*model.Invite, error)
	SaveInvite(ctx context.Context, invite *model.Invite) error
}

type dealRepository struct {
	db *gorm.DB
}

func NewDealRepository(db *gorm.DB) DealRepository {
	return &dealRepository{db: db}
}

func (r *dealRepository) NextDealSequence(ctx context.Context, prefix string) (int64, error) {
	db := GetDB(ctx, r.db)

	// Advisory lock prevents two concurrent creators from counting the same
	// rows and allocating duplicate deal numbers.
	if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix).Error; err != nil {
		return 0, fmt.Errorf("failed to take deal number lock: %w", err)
	}

	var count int64
	if err := db.Model(&model.Deal{}).
		Where("deal_number LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count + 1, nil
}

func (r *dealRepository) CreateDeal(ctx context.Context, deal *model.Deal) error {
	return GetDB(ctx, r.db).Create(deal).Error
}

func (r *dealRepository) CreateSteps(ctx context.Context, steps []model.DealStep) error {
	return GetDB(ctx, r.db).Create(&steps).Error
}

func (r *dealRepository) CreateInvite(ctx context.Context, invite *model.Invite) error {
	return GetDB(ctx, r.db).Create(invite).Error
}

func (r *dealRepository) CreateCommission(ctx context.Context, commission *model.Commission) error {
	return GetDB(ctx, r.db).Create(commission).Error
}

func (r *dealRepository) GetByID(ctx context.Context, dealID uuid.UUID) (*model.Deal, error) {
	var deal model.Deal
	err := GetDB(ctx, r.db).
		Preload("Buyer").
		Preload("Seller").
		Preload("Broker").
		First(&deal, "id = ?", dealID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

func (r *dealRepository) List(ctx context.Context, filter DealFilter) ([]model.Deal, int64, error) {
	query := GetDB(ctx, r.db).Model(&model.Deal{})

	switch filter.Role {
	case catalog.RoleBroker:
		if filter.BrokerID != nil {
			query = query.Where("broker_id = ?", *filter.BrokerID)
		}
	case catalog.RoleBuyer:
		if filter.CompanyID != nil {
			query = query.Where("buyer_id = ?", *filter.CompanyID)
		}
	case catalog.RoleSeller:
		if filter.CompanyID != nil {
			query = query.Where("seller_id = ?", *filter.CompanyID)
		}
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var deals []model.Deal
	err := query.
		Preload("Buyer").
		Preload("Seller").
		Order("created_at DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&deals).Error
	if err != nil {
		return nil, 0, err
	}
	return deals, total, nil
}

func (r *dealRepository) ListSteps(ctx context.Context, dealID uuid.UUID) ([]model.DealStep, error) {
	var steps []model.DealStep
	err := GetDB(ctx, r.db).
		Where("deal_id = ?", dealID).
		Order("step_number ASC").
		Find(&steps).Error
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *dealRepository) ListApprovalsForDeal(ctx context.Context, dealID uuid.UUID) ([]model.PartyApproval, error) {
	var approvals []model.PartyApproval
	err := GetDB(ctx, r.db).
		Where("deal_id = ?", dealID).
		Order("step_number ASC, party_role ASC").
		Find(&approvals).Error
	if err != nil {
		return nil, err
	}
	return approvals, nil
}

func (r *dealRepository) GetInviteByToken(ctx context.Context, token string) (*model.Invite, error) {
	var invite model.Invite
	err := GetDB(ctx, r.db).
		Preload("Deal").
		First(&invite, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *dealRepository) SaveInvite(ctx context.Context, invite *model.Invite) error {
	return GetDB(ctx, r.db).Save(invite).Error
}
