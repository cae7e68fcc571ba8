package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"hazeltrade/internal/catalog"
	"hazeltrade/internal/model"
	"hazeltrade/internal/repository"
)

// StepResult reports what a transition did, for API responses and callers
// that chain further work.
type StepResult struct {
	Step          *model.DealStep `json:"step"`
	AllApproved   bool            `json:"all_approved"`
	Advanced      bool            `json:"advanced"`
	DealCompleted bool            `json:"deal_completed"`
	CurrentStep   int             `json:"current_step"`
}

// WorkflowService drives the deal workflow state machine: the verification
// gate, per-party approval tracking and step advancement. Every mutation runs
// inside one transaction that locks the deal row first, so concurrent
// transitions on the same deal serialize and the advance happens exactly once.
type WorkflowService interface {
	// RecordApproval registers role's sign-off on the step. When every
	// required party has approved and the step is the deal's current step,
	// the step completes and the deal advances. Sign-offs on steps ahead of
	// the current one are record-only and take effect when the deal reaches
	// them; approvals on completed steps are immutable history.
	RecordApproval(ctx context.Context, dealID uuid.UUID, stepNumber int, role catalog.PartyRole, userID uuid.UUID, documentID *uuid.UUID) (*StepResult, error)
	// CompleteStep is the explicit "Mark Complete" action
	CompleteStep(ctx context.Context, dealID uuid.UUID, stepNumber int, userID uuid.UUID) (*StepResult, error)
	// ApplyPartyVerification marks one deal side verified (POF verifies the
	// buyer, POP the seller) and unlocks the workflow once both sides are.
	ApplyPartyVerification(ctx context.Context, dealID uuid.UUID, folder string, userID uuid.UUID) error
	// UnlockDeal runs the verification-gate unlock side effect directly;
	// used at creation time when both parties already exist.
	UnlockDeal(ctx context.Context, dealID uuid.UUID) error
}

// notifyEvent is a fan-out queued during a transaction and emitted only after
// commit, so notification failures can never roll back state.
type notifyEvent struct {
	dealID  uuid.UUID
	typ     string
	title   string
	message string
}

type workflowService struct {
	repo     repository.WorkflowRepository
	txMgr    repository.TransactionManager
	notifier NotificationService
}

func NewWorkflowService(
	repo repository.WorkflowRepository,
	txMgr repository.TransactionManager,
	notifier NotificationService,
) WorkflowService {
	return &workflowService{repo: repo, txMgr: txMgr, notifier: notifier}
}

func (s *workflowService) RecordApproval(ctx context.Context, dealID uuid.UUID, stepNumber int, role catalog.PartyRole, userID uuid.UUID, documentID *uuid.UUID) (*StepResult, error) {
	info, ok := catalog.StepInfo(stepNumber)
	if !ok {
		return nil, ErrStepNotFound
	}
	if !catalog.CanAct(role, stepNumber) {
		return nil, &PermissionError{
			StepNumber:      stepNumber,
			Role:            role,
			RequiredParties: info.RequiredParties,
		}
	}

	var (
		result *StepResult
		events []notifyEvent
	)
	err := s.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
		deal, err := s.repo.GetDealForUpdate(txCtx, dealID)
		if err != nil {
			if err == repository.ErrNotFound {
				return ErrDealNotFound
			}
			return err
		}
		if !deal.WorkflowUnlocked() {
			return ErrWorkflowLocked
		}

		step, err := s.repo.GetStep(txCtx, dealID, stepNumber)
		if err != nil {
			if err == repository.ErrNotFound {
				return ErrStepNotFound
			}
			return err
		}

		// Approvals on a completed step are immutable history; a retried
		// or late event must not rewrite who signed off.
		if step.Status == model.StepStatusCompleted {
			result = &StepResult{Step: step, AllApproved: true, CurrentStep: deal.CurrentStep}
			return nil
		}

		now := time.Now()
		uid := userID
		approval := &model.PartyApproval{
			DealID:     dealID,
			StepNumber: stepNumber,
			PartyRole:  role,
			UserID:     &uid,
			Approved:   true,
			ApprovedAt: &now,
			DocumentID: documentID,
		}
		if err := s.repo.UpsertApproval(txCtx, approval); err != nil {
			return fmt.Errorf("failed to record approval: %w", err)
		}
		s.audit(txCtx, &uid, model.ActionRecordApproval, deal, map[string]interface{}{
			"step_number": stepNumber,
			"party_role":  role,
		})

		allApproved, err := s.allApproved(txCtx, dealID, stepNumber)
		if err != nil {
			return err
		}

		result = &StepResult{Step: step, AllApproved: allApproved, CurrentStep: deal.CurrentStep}

		// Sign-offs ahead of the current step are record-only; the step
		// completes when the deal reaches it.
		if !allApproved || step.StepNumber != deal.CurrentStep {
			return nil
		}

		events, err = s.completeLocked(txCtx, deal, step, userID)
		if err != nil {
			return err
		}
		result.Advanced = deal.CurrentStep > stepNumber || deal.Status == model.DealStatusCompleted
		result.DealCompleted = deal.Status == model.DealStatusCompleted
		result.CurrentStep = deal.CurrentStep
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events)
	return result, nil
}

func (s *workflowService) CompleteStep(ctx context.Context, dealID uuid.UUID, stepNumber int, userID uuid.UUID) (*StepResult, error) {
	if _, ok := catalog.StepInfo(stepNumber); !ok {
		return nil, ErrStepNotFound
	}

	var (
		result *StepResult
		events []notifyEvent
	)
	err := s.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
		deal, err := s.repo.GetDealForUpdate(txCtx, dealID)
		if err != nil {
			if err == repository.ErrNotFound {
				return ErrDealNotFound
			}
			return err
		}
		if !deal.WorkflowUnlocked() {
			return ErrWorkflowLocked
		}

		step, err := s.repo.GetStep(txCtx, dealID, stepNumber)
		if err != nil {
			if err == repository.ErrNotFound {
				return ErrStepNotFound
			}
			return err
		}
		if step.Status == model.StepStatusCompleted {
			return ErrStepCompleted
		}
		// Steps ahead of the deal close in order, never out of band
		if step.StepNumber > deal.CurrentStep {
			return ErrStepNotCurrent
		}

		events, err = s.completeLocked(txCtx, deal, step, userID)
		if err != nil {
			return err
		}
		result = &StepResult{
			Step:          step,
			AllApproved:   true,
			Advanced:      deal.CurrentStep > stepNumber || deal.Status == model.DealStatusCompleted,
			DealCompleted: deal.Status == model.DealStatusCompleted,
			CurrentStep:   deal.CurrentStep,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events)
	return result, nil
}

func (s *workflowService) ApplyPartyVerification(ctx context.Context, dealID uuid.UUID, folder string, userID uuid.UUID) error {
	var events []notifyEvent
	err := s.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
		deal, err := s.repo.GetDealForUpdate(txCtx, dealID)
		if err != nil {
			if err == repository.ErrNotFound {
				return ErrDealNotFound
			}
			return err
		}

		side := "buyer"
		switch folder {
		case model.FolderPOF:
			deal.BuyerVerified = true
		case model.FolderPOP:
			deal.SellerVerified = true
			side = "seller"
		default:
			return nil
		}

		uid := userID
		s.audit(txCtx, &uid, model.ActionVerifyDealParty, deal, map[string]interface{}{
			"side": side,
		})

		if deal.BuyerVerified && deal.SellerVerified {
			unlocked, err := s.unlockLocked(txCtx, deal)
			if err != nil {
				return err
			}
			if unlocked {
				events = append(events, notifyEvent{
					dealID:  deal.ID,
					typ:     model.NotifyMatchConfirmed,
					title:   "Deal Matched",
					message: fmt.Sprintf("Both parties of deal %s are verified. The 12-step workflow is now active.", deal.DealNumber),
				})
			}
			return s.repo.SaveDeal(txCtx, deal)
		}

		// One-sided verification keeps the gate closed but moves the deal
		// out of DRAFT.
		if deal.Status == model.DealStatusDraft {
			deal.Status = model.DealStatusPendingVerification
		}
		return s.repo.SaveDeal(txCtx, deal)
	})
	if err != nil {
		return err
	}

	s.emit(ctx, events)
	return nil
}

func (s *workflowService) UnlockDeal(ctx context.Context, dealID uuid.UUID) error {
	return s.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
		deal, err := s.repo.GetDealForUpdate(txCtx, dealID)
		if err != nil {
			if err == repository.ErrNotFound {
				return ErrDealNotFound
			}
			return err
		}
		if _, err := s.unlockLocked(txCtx, deal); err != nil {
			return err
		}
		return s.repo.SaveDeal(txCtx, deal)
	})
}

// unlockLocked opens the 12-step workflow: status MATCHED, step 1
// IN_PROGRESS, approvals seeded for step 1's required parties. The caller
// holds the deal row lock. Returns false without touching anything when the
// gate already passed, which makes repeated verification events harmless.
func (s *workflowService) unlockLocked(ctx context.Context, deal *model.Deal) (bool, error) {
	if deal.WorkflowUnlocked() {
		return false, nil
	}

	now := time.Now()
	deal.Status = model.DealStatusMatched
	deal.CurrentStep = 1
	if deal.MatchedAt == nil {
		deal.MatchedAt = &now
	}

	step, err := s.repo.GetStep(ctx, deal.ID, 1)
	if err != nil {
		if err == repository.ErrNotFound {
			return false, ErrStepNotFound
		}
		return false, err
	}
	if step.Status == model.StepStatusPending {
		step.Status = model.StepStatusInProgress
		step.StartedAt = &now
		if err := s.repo.SaveStep(ctx, step); err != nil {
			return false, err
		}
	}

	if err := s.repo.SeedApprovals(ctx, deal.ID, 1, catalog.RequiredParties(1)); err != nil {
		return false, fmt.Errorf("failed to seed step 1 approvals: %w", err)
	}

	s.audit(ctx, nil, model.ActionUnlockWorkflow, deal, map[string]interface{}{
		"buyer_verified":  deal.BuyerVerified,
		"seller_verified": deal.SellerVerified,
	})
	return true, nil
}

// completeLocked marks the step completed and, when it is the deal's current
// step, advances the deal. Stale completions (step != current_step, e.g. a
// retried event) touch only the step row.
func (s *workflowService) completeLocked(ctx context.Context, deal *model.Deal, step *model.DealStep, userID uuid.UUID) ([]notifyEvent, error) {
	now := time.Now()
	uid := userID

	step.Status = model.StepStatusCompleted
	step.CompletedAt = &now
	step.CompletedBy = &uid
	if err := s.repo.SaveStep(ctx, step); err != nil {
		return nil, fmt.Errorf("failed to complete step: %w", err)
	}
	s.audit(ctx, &uid, model.ActionCompleteStep, deal, map[string]interface{}{
		"step_number": step.StepNumber,
		"step_name":   step.StepName,
	})

	events := []notifyEvent{{
		dealID:  deal.ID,
		typ:     model.NotifyStepCompleted,
		title:   fmt.Sprintf("Step %d Completed", step.StepNumber),
		message: fmt.Sprintf("%s has been marked as complete.", step.StepName),
	}}

	if deal.CurrentStep != step.StepNumber {
		return events, nil
	}

	if step.StepNumber == catalog.StepCount {
		deal.Status = model.DealStatusCompleted
		deal.CompletedAt = &now
		if err := s.repo.SaveDeal(ctx, deal); err != nil {
			return nil, err
		}
		s.audit(ctx, &uid, model.ActionCompleteDeal, deal, nil)
		events = append(events, notifyEvent{
			dealID:  deal.ID,
			typ:     model.NotifyDealCompleted,
			title:   "Deal Completed",
			message: fmt.Sprintf("Deal %s has completed all 12 workflow steps.", deal.DealNumber),
		})
		return events, nil
	}

	next := step.StepNumber + 1
	deal.CurrentStep = next
	deal.Status = model.DealStatusInProgress
	if err := s.repo.SaveDeal(ctx, deal); err != nil {
		return nil, err
	}

	nextStep, err := s.repo.GetStep(ctx, deal.ID, next)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrStepNotFound
		}
		return nil, err
	}
	if nextStep.Status == model.StepStatusPending {
		nextStep.Status = model.StepStatusInProgress
		nextStep.StartedAt = &now
		if err := s.repo.SaveStep(ctx, nextStep); err != nil {
			return nil, err
		}
	}
	if err := s.repo.SeedApprovals(ctx, deal.ID, next, catalog.RequiredParties(next)); err != nil {
		return nil, fmt.Errorf("failed to seed step %d approvals: %w", next, err)
	}
	s.audit(ctx, &uid, model.ActionAdvanceStep, deal, map[string]interface{}{
		"from_step": step.StepNumber,
		"to_step":   next,
	})

	// A step fully signed off ahead of time completes the moment the deal
	// reaches it, so early approvals can never strand the workflow.
	done, err := s.allApproved(ctx, deal.ID, next)
	if err != nil {
		return nil, err
	}
	if done {
		more, err := s.completeLocked(ctx, deal, nextStep, userID)
		if err != nil {
			return nil, err
		}
		events = append(events, more...)
	}
	return events, nil
}

// allApproved reports whether every required role for the step has an
// approved row. Runs under the deal row lock held by the caller, so it
// cannot race with a concurrent upsert on the same deal.
func (s *workflowService) allApproved(ctx context.Context, dealID uuid.UUID, stepNumber int) (bool, error) {
	required := catalog.RequiredParties(stepNumber)
	approvals, err := s.repo.ListApprovals(ctx, dealID, stepNumber)
	if err != nil {
		return false, err
	}

	approved := make(map[catalog.PartyRole]bool, len(approvals))
	for _, a := range approvals {
		if a.Approved {
			approved[a.PartyRole] = true
		}
	}
	for _, role := range required {
		if !approved[role] {
			return false, nil
		}
	}
	return true, nil
}

// emit fires queued fan-outs after the transaction committed
func (s *workflowService) emit(ctx context.Context, events []notifyEvent) {
	if s.notifier == nil {
		return
	}
	for _, e := range events {
		s.notifier.FanOut(ctx, e.dealID, e.typ, e.title, e.message)
	}
}

func (s *workflowService) audit(ctx context.Context, userID *uuid.UUID, action string, deal *model.Deal, details map[string]interface{}) {
	payload, _ := json.Marshal(details)
	entry := &model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   deal.ID.String(),
		EntityName: deal.DealNumber,
		Details:    string(payload),
	}
	if err := s.repo.CreateAudit(ctx, entry); err != nil {
		// Audit is observability, not part of the transition contract
		log.Printf("failed to write audit log for deal %s: %v", deal.DealNumber, err)
	}
}
