package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hazeltrade/internal/catalog"
	"hazeltrade/internal/email"
	"hazeltrade/internal/model"
	"hazeltrade/internal/repository"
)

// --- DTOs ---

// DealData carries the commodity terms of a new deal
type DealData struct {
	ProductType    string          `json:"product_type" binding:"required,oneof=JET_A1 EN590 D6 LNG CRUDE OTHER"`
	Quantity       decimal.Decimal `json:"quantity" binding:"required"`
	QuantityUnit   string          `json:"quantity_unit" binding:"required,oneof=MT BBL MMBTU"`
	EstimatedValue decimal.Decimal `json:"estimated_value" binding:"required"`
	Currency       string          `json:"currency"`
	DeliveryTerms  string          `json:"delivery_terms" binding:"required,oneof=FOB CIF EX_TANK DES DAP"`
	Location       string          `json:"location" binding:"required"`
	Notes          string          `json:"notes"`
}

// PartyData identifies one side of the deal: either an existing company id or
// the contact details for a fresh invite.
type PartyData struct {
	CompanyID string `json:"company_id"`
	Company   string `json:"company"`
	Name      string `json:"name"`
	Email     string `json:"email" binding:"omitempty,email"`
}

// CommissionData carries the broker's fee terms
type CommissionData struct {
	Type   string          `json:"type" binding:"required,oneof=PERCENTAGE FIXED PER_UNIT"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// CreateDealRequest is the POST /api/deals body
type CreateDealRequest struct {
	DealData       DealData        `json:"dealData" binding:"required"`
	BuyerType      string          `json:"buyerType" binding:"required,oneof=new existing"`
	BuyerData      PartyData       `json:"buyerData" binding:"required"`
	SellerType     string          `json:"sellerType" binding:"required,oneof=new existing"`
	SellerData     PartyData       `json:"sellerData" binding:"required"`
	CommissionData *CommissionData `json:"commissionData"`
}

// InviteLinks returns the redeem URLs for freshly invited parties
type InviteLinks struct {
	Buyer  string `json:"buyer,omitempty"`
	Seller string `json:"seller,omitempty"`
}

// CreateDealResult is the POST /api/deals response payload
type CreateDealResult struct {
	Deal        *model.Deal `json:"deal"`
	InviteLinks InviteLinks `json:"inviteLinks"`
}

// DealDetail is the full view of one deal
type DealDetail struct {
	Deal      *model.Deal           `json:"deal"`
	Steps     []model.DealStep      `json:"steps"`
	Approvals []model.PartyApproval `json:"approvals"`
	Catalog   []catalog.PhaseGroup  `json:"catalog"`
}

// --- Interface ---

// DealService covers deal creation, matching, listing and invites
type DealService interface {
	Create(ctx context.Context, broker *model.User, req CreateDealRequest) (*CreateDealResult, error)
	List(ctx context.Context, user *model.User, status string, offset, limit int) ([]model.Deal, int64, error)
	Get(ctx context.Context, user *model.User, dealID uuid.UUID) (*DealDetail, error)
	GetInvite(ctx context.Context, token string) (*model.Invite, error)
	AcceptInvite(ctx context.Context, token string, user *model.User) (*model.Deal, error)
	ListCompanies(ctx context.Context, brokerID uuid.UUID, side string) ([]model.Company, error)
}

type dealService struct {
	dealRepo     repository.DealRepository
	workflowRepo repository.WorkflowRepository
	userRepo     repository.UserRepository
	txMgr        repository.TransactionManager
	workflow     WorkflowService
	notifier     NotificationService
	mailer       email.Mailer
	appURL       string
}

func NewDealService(
	dealRepo repository.DealRepository,
	workflowRepo repository.WorkflowRepository,
	userRepo repository.UserRepository,
	txMgr repository.TransactionManager,
	workflow WorkflowService,
	notifier NotificationService,
	mailer email.Mailer,
	appURL string,
) DealService {
	return &dealService{
		dealRepo:     dealRepo,
		workflowRepo: workflowRepo,
		userRepo:     userRepo,
		txMgr:        txMgr,
		workflow:     workflow,
		notifier:     notifier,
		mailer:       mailer,
		appURL:       appURL,
	}
}

// --- Implementation ---

func (s *dealService) Create(ctx context.Context, broker *model.User, req CreateDealRequest) (*CreateDealResult, error) {
	buyerID, err := parsePartyCompany(req.BuyerType, req.BuyerData)
	if err != nil {
		return nil, err
	}
	sellerID, err := parsePartyCompany(req.SellerType, req.SellerData)
	if err != nil {
		return nil, err
	}

	currency := req.DealData.Currency
	if currency == "" {
		currency = "USD"
	}

	deal := &model.Deal{
		ProductType:    req.DealData.ProductType,
		Quantity:       req.DealData.Quantity,
		QuantityUnit:   req.DealData.QuantityUnit,
		EstimatedValue: req.DealData.EstimatedValue,
		Currency:       currency,
		DeliveryTerms:  req.DealData.DeliveryTerms,
		Location:       req.DealData.Location,
		Notes:          req.DealData.Notes,
		BuyerID:        buyerID,
		SellerID:       sellerID,
		BrokerID:       broker.ID,
		Status:         model.DealStatusDraft,
		CurrentStep:    1,
	}

	var (
		invites []model.Invite
		links   InviteLinks
		matched = buyerID != nil && sellerID != nil
	)

	err = s.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
		prefix := fmt.Sprintf("HT-%d-", time.Now().Year())
		seq, err := s.dealRepo.NextDealSequence(txCtx, prefix)
		if err != nil {
			return fmt.Errorf("failed to allocate deal number: %w", err)
		}
		deal.DealNumber = fmt.Sprintf("%s%04d", prefix, seq)

		if err := s.dealRepo.CreateDeal(txCtx, deal); err != nil {
			return fmt.Errorf("failed to create deal: %w", err)
		}

		// All 12 step rows are born with the deal, all PENDING
		steps := make([]model.DealStep, 0, catalog.StepCount)
		for _, entry := range catalog.Steps() {
			steps = append(steps, model.DealStep{
				DealID:     deal.ID,
				StepNumber: entry.Number,
				StepName:   entry.Name,
				Status:     model.StepStatusPending,
			})
		}
		if err := s.dealRepo.CreateSteps(txCtx, steps); err != nil {
			return fmt.Errorf("failed to create deal steps: %w", err)
		}

		if req.BuyerType == "new" {
			invite, err := s.createInvite(txCtx, deal, catalog.RoleBuyer, req.BuyerData, broker.ID)
			if err != nil {
				return err
			}
			invites = append(invites, *invite)
			links.Buyer = s.inviteLink(invite.Token)
		}
		if req.SellerType == "new" {
			invite, err := s.createInvite(txCtx, deal, catalog.RoleSeller, req.SellerData, broker.ID)
			if err != nil {
				return err
			}
			invites = append(invites, *invite)
			links.Seller = s.inviteLink(invite.Token)
		}

		if req.CommissionData != nil {
			commission := &model.Commission{
				DealID:         deal.ID,
				CommissionType: req.CommissionData.Type,
				CommissionRate: req.CommissionData.Amount,
				TotalAmount:    decimal.Zero,
				Currency:       currency,
				Status:         model.CommissionStatusPending,
			}
			if err := s.dealRepo.CreateCommission(txCtx, commission); err != nil {
				return fmt.Errorf("failed to create commission: %w", err)
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"product_type": deal.ProductType,
			"buyer_type":   req.BuyerType,
			"seller_type":  req.SellerType,
		})
		brokerID := broker.ID
		if err := s.workflowRepo.CreateAudit(txCtx, &model.AuditLog{
			UserID:     &brokerID,
			Action:     model.ActionCreateDeal,
			EntityID:   deal.ID.String(),
			EntityName: deal.DealNumber,
			Details:    string(details),
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		// Both parties already on the platform: match immediately and open
		// the workflow without waiting for verification events.
		if matched {
			if err := s.workflow.UnlockDeal(txCtx, deal.ID); err != nil {
				return fmt.Errorf("failed to unlock matched deal: %w", err)
			}
		} else if req.BuyerType == "new" || req.SellerType == "new" {
			deal.Status = model.DealStatusPendingVerification
			if err := s.workflowRepo.SaveDeal(txCtx, deal); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Post-commit side effects are best-effort
	s.notifier.Notify(ctx, broker.ID, &deal.ID, model.NotifyDealCreated,
		"Deal Created",
		fmt.Sprintf("Deal %s has been created successfully.", deal.DealNumber))
	if matched {
		s.notifier.FanOut(ctx, deal.ID, model.NotifyMatchConfirmed,
			"Deal Matched",
			fmt.Sprintf("Deal %s is matched and the workflow has started.", deal.DealNumber))
	}
	s.sendInviteEmails(deal, broker, invites)

	created, err := s.dealRepo.GetByID(ctx, deal.ID)
	if err != nil {
		return nil, err
	}
	return &CreateDealResult{Deal: created, InviteLinks: links}, nil
}

func parsePartyCompany(partyType string, data PartyData) (*uuid.UUID, error) {
	if partyType != "existing" {
		return nil, nil
	}
	id, err := uuid.Parse(data.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("invalid company_id for existing party: %w", err)
	}
	return &id, nil
}

func (s *dealService) createInvite(ctx context.Context, deal *model.Deal, role catalog.PartyRole, data PartyData, brokerID uuid.UUID) (*model.Invite, error) {
	invite := &model.Invite{
		DealID:      deal.ID,
		Email:       data.Email,
		CompanyName: data.Company,
		Role:        role,
		InvitedBy:   brokerID,
		Token:       uuid.NewString(),
		Status:      model.InviteStatusPending,
		ExpiresAt:   time.Now().Add(model.InviteTTL),
	}
	if err := s.dealRepo.CreateInvite(ctx, invite); err != nil {
		return nil, fmt.Errorf("failed to create %s invite: %w", role, err)
	}
	return invite, nil
}

func (s *dealService) inviteLink(token string) string {
	return s.appURL + "/invite/" + token
}

func (s *dealService) sendInviteEmails(deal *model.Deal, broker *model.User, invites []model.Invite) {
	for _, invite := range invites {
		params := email.InviteParams{
			To:          invite.Email,
			ContactName: invite.Email,
			CompanyName: invite.CompanyName,
			Role:        invite.Role,
			DealNumber:  deal.DealNumber,
			Product:     fmt.Sprintf("%s %s %s", deal.Quantity, deal.QuantityUnit, deal.ProductType),
			Quantity:    fmt.Sprintf("%s %s", deal.Quantity, deal.QuantityUnit),
			Value:       fmt.Sprintf("%s %s", deal.EstimatedValue, deal.Currency),
			Location:    deal.Location,
			BrokerName:  broker.FullName,
			InviteLink:  s.inviteLink(invite.Token),
		}
		if err := s.mailer.SendInvite(params); err != nil {
			log.Printf("failed to send invite email to %s: %v", invite.Email, err)
		}
	}
}

func (s *dealService) List(ctx context.Context, user *model.User, status string, offset, limit int) ([]model.Deal, int64, error) {
	filter := repository.DealFilter{
		Role:   user.Role,
		Status: status,
		Offset: offset,
		Limit:  limit,
	}
	switch user.Role {
	case catalog.RoleBroker:
		id := user.ID
		filter.BrokerID = &id
	default:
		filter.CompanyID = user.CompanyID
	}
	return s.dealRepo.List(ctx, filter)
}

func (s *dealService) Get(ctx context.Context, user *model.User, dealID uuid.UUID) (*DealDetail, error) {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrDealNotFound
		}
		return nil, err
	}
	if !canSeeDeal(user, deal) {
		return nil, ErrDealNotFound
	}

	steps, err := s.dealRepo.ListSteps(ctx, dealID)
	if err != nil {
		return nil, err
	}
	approvals, err := s.dealRepo.ListApprovalsForDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}

	return &DealDetail{
		Deal:      deal,
		Steps:     steps,
		Approvals: approvals,
		Catalog:   catalog.StepsByPhase(),
	}, nil
}

// canSeeDeal enforces per-role deal visibility: brokers see their own deals,
// buyers and sellers see deals their company is attached to.
func canSeeDeal(user *model.User, deal *model.Deal) bool {
	switch user.Role {
	case catalog.RoleBroker:
		return deal.BrokerID == user.ID
	case catalog.RoleBuyer:
		return user.CompanyID != nil && deal.BuyerID != nil && *deal.BuyerID == *user.CompanyID
	case catalog.RoleSeller:
		return user.CompanyID != nil && deal.SellerID != nil && *deal.SellerID == *user.CompanyID
	default:
		return false
	}
}

func (s *dealService) GetInvite(ctx context.Context, token string) (*model.Invite, error) {
	invite, err := s.dealRepo.GetInviteByToken(ctx, token)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrInviteNotFound
		}
		return nil, err
	}
	return invite, nil
}

func (s *dealService) AcceptInvite(ctx context.Context, token string, user *model.User) (*model.Deal, error) {
	if user.CompanyID == nil {
		return nil, fmt.Errorf("user %s has no company to attach", user.ID)
	}

	var (
		dealID       uuid.UUID
		bothAttached bool
		dealNumber   string
	)
	err := s.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
		invite, err := s.dealRepo.GetInviteByToken(txCtx, token)
		if err != nil {
			if err == repository.ErrNotFound {
				return ErrInviteNotFound
			}
			return err
		}
		switch invite.Status {
		case model.InviteStatusAccepted:
			return ErrInviteAccepted
		case model.InviteStatusExpired:
			return ErrInviteExpired
		}
		if time.Now().After(invite.ExpiresAt) {
			invite.Status = model.InviteStatusExpired
			if err := s.dealRepo.SaveInvite(txCtx, invite); err != nil {
				return err
			}
			return ErrInviteExpired
		}

		deal, err := s.workflowRepo.GetDealForUpdate(txCtx, invite.DealID)
		if err != nil {
			if err == repository.ErrNotFound {
				return ErrDealNotFound
			}
			return err
		}

		switch invite.Role {
		case catalog.RoleBuyer:
			deal.BuyerID = user.CompanyID
		case catalog.RoleSeller:
			deal.SellerID = user.CompanyID
		}
		if err := s.workflowRepo.SaveDeal(txCtx, deal); err != nil {
			return err
		}

		now := time.Now()
		invite.Status = model.InviteStatusAccepted
		invite.AcceptedAt = &now
		if err := s.dealRepo.SaveInvite(txCtx, invite); err != nil {
			return err
		}

		uid := user.ID
		details, _ := json.Marshal(map[string]interface{}{"role": invite.Role})
		if err := s.workflowRepo.CreateAudit(txCtx, &model.AuditLog{
			UserID:     &uid,
			Action:     model.ActionAcceptInvite,
			EntityID:   deal.ID.String(),
			EntityName: deal.DealNumber,
			Details:    string(details),
		}); err != nil {
			return err
		}

		dealID = deal.ID
		dealNumber = deal.DealNumber
		bothAttached = deal.BuyerID != nil && deal.SellerID != nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	if bothAttached {
		s.notifier.FanOut(ctx, dealID, model.NotifyMatchConfirmed,
			"Both Parties Joined",
			fmt.Sprintf("Buyer and seller have joined deal %s. Verification can begin.", dealNumber))
	}
	return s.dealRepo.GetByID(ctx, dealID)
}

func (s *dealService) ListCompanies(ctx context.Context, brokerID uuid.UUID, side string) ([]model.Company, error) {
	return s.userRepo.ListDealCompanies(ctx, brokerID, side)
}
