package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hazeltrade/internal/catalog"
	"hazeltrade/internal/model"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("record not found")

// WorkflowRepository is the data access surface of the step transition
// engine. Implementations must honor the transaction injected via
// TransactionManager so that a whole transition commits or rolls back as one.
type WorkflowRepository interface {
	// GetDealForUpdate loads the deal row under a row-level write lock.
	// Taking this lock first serializes all concurrent transitions on the
	// same deal; different deals never contend.
	GetDealForUpdate(ctx context.Context, dealID uuid.UUID) (*model.Deal, error)
	SaveDeal(ctx context.Context, deal *model.Deal) error
	GetStep(ctx context.Context, dealID uuid.UUID, stepNumber int) (*model.DealStep, error)
	SaveStep(ctx context.Context, step *model.DealStep) error
	// SeedApprovals creates unapproved placeholder rows for each required
	// role. Re-seeding is a no-op for rows that already exist, so in-flight
	// approvals are never wiped.
	SeedApprovals(ctx context.Context, dealID uuid.UUID, stepNumber int, parties []catalog.PartyRole) error
	// UpsertApproval inserts or overwrites the (deal, step, role) approval
	UpsertApproval(ctx context.Context, approval *model.PartyApproval) error
	ListApprovals(ctx context.Context, dealID uuid.UUID, stepNumber int) ([]model.PartyApproval, error)
	CreateAudit(ctx context.Context, entry *model.AuditLog) error
}

type workflowRepository struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &workflowRepository{db: db}
}

func (r *workflowRepository) GetDealForUpdate(ctx context.Context, dealID uuid.UUID) (*model.Deal, error) {
	var deal model.Deal
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&deal, "id = ?", dealID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

func (r *workflowRepository) SaveDeal(ctx context.Context, deal *model.Deal) error {
	return GetDB(ctx, r.db).Save(deal).Error
}

func (r *workflowRepository) GetStep(ctx context.Context, dealID uuid.UUID, stepNumber int) (*model.DealStep, error) {
	var step model.DealStep
	err := GetDB(ctx, r.db).
		First(&step, "deal_id = ? AND step_number = ?", dealID, stepNumber).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &step, nil
}

func (r *workflowRepository) SaveStep(ctx context.Context, step *model.DealStep) error {
	return GetDB(ctx, r.db).Save(step).Error
}

func (r *workflowRepository) SeedApprovals(ctx context.Context, dealID uuid.UUID, stepNumber int, parties []catalog.PartyRole) error {
	if len(parties) == 0 {
		return nil
	}
	rows := make([]model.PartyApproval, 0, len(parties))
	for _, role := range parties {
		rows = append(rows, model.PartyApproval{
			DealID:     dealID,
			StepNumber: stepNumber,
			PartyRole:  role,
		})
	}
	// Conflict-do-nothing keeps existing rows (and any approvals already
	// recorded on them) intact.
	return GetDB(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "deal_id"}, {Name: "step_number"}, {Name: "party_role"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *workflowRepository) UpsertApproval(ctx context.Context, approval *model.PartyApproval) error {
	return GetDB(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "deal_id"}, {Name: "step_number"}, {Name: "party_role"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id", "approved", "approved_at", "document_id", "updated_at",
			}),
		}).
		Create(approval).Error
}

func (r *workflowRepository) ListApprovals(ctx context.Context, dealID uuid.UUID, stepNumber int) ([]model.PartyApproval, error) {
	var approvals []model.PartyApproval
	err := GetDB(ctx, r.db).
		Where("deal_id = ? AND step_number = ?", dealID, stepNumber).
		Order("party_role ASC").
		Find(&approvals).Error
	if err != nil {
		return nil, err
	}
	return approvals, nil
}

func (r *workflowRepository) CreateAudit(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}
