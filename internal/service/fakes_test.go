package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hazeltrade/internal/catalog"
	"hazeltrade/internal/model"
	"hazeltrade/internal/repository"
)

// fakeTx satisfies TransactionManager without a database. Fake repositories
// mutate their maps directly, so there is nothing to commit or roll back.
type fakeTx struct{}

func (fakeTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// serialTx serializes transactions with a mutex, standing in for the
// row-level deal lock the real transaction manager takes first.
type serialTx struct {
	mu *sync.Mutex
}

func (s serialTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx)
}

type approvalKey struct {
	dealID uuid.UUID
	step   int
	role   catalog.PartyRole
}

// fakeStore is an in-memory implementation of both WorkflowRepository and
// DealRepository, sharing one set of maps so composed services observe each
// other's writes the way they would against one database.
type fakeStore struct {
	deals       map[uuid.UUID]model.Deal
	steps       map[uuid.UUID]map[int]model.DealStep
	approvals   map[approvalKey]model.PartyApproval
	invites     map[string]model.Invite
	commissions []model.Commission
	audits      []model.AuditLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		deals:     make(map[uuid.UUID]model.Deal),
		steps:     make(map[uuid.UUID]map[int]model.DealStep),
		approvals: make(map[approvalKey]model.PartyApproval),
		invites:   make(map[string]model.Invite),
	}
}

// addDeal seeds a deal with its 12 PENDING step rows
func (f *fakeStore) addDeal(deal model.Deal) model.Deal {
	if deal.ID == uuid.Nil {
		deal.ID = uuid.New()
	}
	f.deals[deal.ID] = deal
	f.steps[deal.ID] = make(map[int]model.DealStep)
	for _, entry := range catalog.Steps() {
		f.steps[deal.ID][entry.Number] = model.DealStep{
			ID:         uuid.New(),
			DealID:     deal.ID,
			StepNumber: entry.Number,
			StepName:   entry.Name,
			Status:     model.StepStatusPending,
		}
	}
	return deal
}

func (f *fakeStore) setStepStatus(dealID uuid.UUID, stepNumber int, status string) {
	step := f.steps[dealID][stepNumber]
	step.Status = status
	f.steps[dealID][stepNumber] = step
}

// --- WorkflowRepository ---

func (f *fakeStore) GetDealForUpdate(ctx context.Context, dealID uuid.UUID) (*model.Deal, error) {
	deal, ok := f.deals[dealID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &deal, nil
}

func (f *fakeStore) SaveDeal(ctx context.Context, deal *model.Deal) error {
	f.deals[deal.ID] = *deal
	return nil
}

func (f *fakeStore) GetStep(ctx context.Context, dealID uuid.UUID, stepNumber int) (*model.DealStep, error) {
	step, ok := f.steps[dealID][stepNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &step, nil
}

func (f *fakeStore) SaveStep(ctx context.Context, step *model.DealStep) error {
	f.steps[step.DealID][step.StepNumber] = *step
	return nil
}

func (f *fakeStore) SeedApprovals(ctx context.Context, dealID uuid.UUID, stepNumber int, parties []catalog.PartyRole) error {
	for _, role := range parties {
		key := approvalKey{dealID: dealID, step: stepNumber, role: role}
		if _, exists := f.approvals[key]; exists {
			continue
		}
		f.approvals[key] = model.PartyApproval{
			ID:         uuid.New(),
			DealID:     dealID,
			StepNumber: stepNumber,
			PartyRole:  role,
		}
	}
	return nil
}

func (f *fakeStore) UpsertApproval(ctx context.Context, approval *model.PartyApproval) error {
	key := approvalKey{dealID: approval.DealID, step: approval.StepNumber, role: approval.PartyRole}
	row, exists := f.approvals[key]
	if !exists {
		row = model.PartyApproval{
			ID:         uuid.New(),
			DealID:     approval.DealID,
			StepNumber: approval.StepNumber,
			PartyRole:  approval.PartyRole,
		}
	}
	row.UserID = approval.UserID
	row.Approved = approval.Approved
	row.ApprovedAt = approval.ApprovedAt
	row.DocumentID = approval.DocumentID
	f.approvals[key] = row
	return nil
}

func (f *fakeStore) ListApprovals(ctx context.Context, dealID uuid.UUID, stepNumber int) ([]model.PartyApproval, error) {
	var out []model.PartyApproval
	for key, row := range f.approvals {
		if key.dealID == dealID && key.step == stepNumber {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateAudit(ctx context.Context, entry *model.AuditLog) error {
	f.audits = append(f.audits, *entry)
	return nil
}

// --- DealRepository ---

func (f *fakeStore) NextDealSequence(ctx context.Context, prefix string) (int64, error) {
	var count int64
	for _, deal := range f.deals {
		if strings.HasPrefix(deal.DealNumber, prefix) {
			count++
		}
	}
	return count + 1, nil
}

func (f *fakeStore) CreateDeal(ctx context.Context, deal *model.Deal) error {
	if deal.ID == uuid.Nil {
		deal.ID = uuid.New()
	}
	f.deals[deal.ID] = *deal
	return nil
}

func (f *fakeStore) CreateSteps(ctx context.Context, steps []model.DealStep) error {
	for _, step := range steps {
		if step.ID == uuid.Nil {
			step.ID = uuid.New()
		}
		if f.steps[step.DealID] == nil {
			f.steps[step.DealID] = make(map[int]model.DealStep)
		}
		f.steps[step.DealID][step.StepNumber] = step
	}
	return nil
}

func (f *fakeStore) CreateInvite(ctx context.Context, invite *model.Invite) error {
	if invite.ID == uuid.Nil {
		invite.ID = uuid.New()
	}
	f.invites[invite.Token] = *invite
	return nil
}

func (f *fakeStore) CreateCommission(ctx context.Context, commission *model.Commission) error {
	f.commissions = append(f.commissions, *commission)
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, dealID uuid.UUID) (*model.Deal, error) {
	deal, ok := f.deals[dealID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &deal, nil
}

func (f *fakeStore) List(ctx context.Context, filter repository.DealFilter) ([]model.Deal, int64, error) {
	var out []model.Deal
	for _, deal := range f.deals {
		switch filter.Role {
		case catalog.RoleBroker:
			if filter.BrokerID != nil && deal.BrokerID != *filter.BrokerID {
				continue
			}
		case catalog.RoleBuyer:
			if filter.CompanyID == nil || deal.BuyerID == nil || *deal.BuyerID != *filter.CompanyID {
				continue
			}
		case catalog.RoleSeller:
			if filter.CompanyID == nil || deal.SellerID == nil || *deal.SellerID != *filter.CompanyID {
				continue
			}
		}
		if filter.Status != "" && deal.Status != filter.Status {
			continue
		}
		out = append(out, deal)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) ListSteps(ctx context.Context, dealID uuid.UUID) ([]model.DealStep, error) {
	var out []model.DealStep
	for n := 1; n <= catalog.StepCount; n++ {
		if step, ok := f.steps[dealID][n]; ok {
			out = append(out, step)
		}
	}
	return out, nil
}

func (f *fakeStore) ListApprovalsForDeal(ctx context.Context, dealID uuid.UUID) ([]model.PartyApproval, error) {
	var out []model.PartyApproval
	for key, row := range f.approvals {
		if key.dealID == dealID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeStore) GetInviteByToken(ctx context.Context, token string) (*model.Invite, error) {
	invite, ok := f.invites[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &invite, nil
}

func (f *fakeStore) SaveInvite(ctx context.Context, invite *model.Invite) error {
	f.invites[invite.Token] = *invite
	return nil
}

// --- NotificationService fake ---

type notifierCall struct {
	dealID uuid.UUID
	userID uuid.UUID
	typ    string
	fanOut bool
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifierCall
}

func (f *fakeNotifier) FanOut(ctx context.Context, dealID uuid.UUID, notifType, title, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifierCall{dealID: dealID, typ: notifType, fanOut: true})
}

func (f *fakeNotifier) Notify(ctx context.Context, userID uuid.UUID, dealID *uuid.UUID, notifType, title, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := notifierCall{userID: userID, typ: notifType}
	if dealID != nil {
		call.dealID = *dealID
	}
	f.calls = append(f.calls, call)
}

func (f *fakeNotifier) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	return nil, 0, nil
}

func (f *fakeNotifier) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeNotifier) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (f *fakeNotifier) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (f *fakeNotifier) typesSent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		out = append(out, call.typ)
	}
	return out
}

// --- DocumentRepository fake ---

type fakeDocRepo struct {
	docs       map[uuid.UUID]model.Document
	failCreate bool
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: make(map[uuid.UUID]model.Document)}
}

func (f *fakeDocRepo) Create(ctx context.Context, doc *model.Document) error {
	if f.failCreate {
		return context.DeadlineExceeded
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	f.docs[doc.ID] = *doc
	return nil
}

func (f *fakeDocRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &doc, nil
}

func (f *fakeDocRepo) Save(ctx context.Context, doc *model.Document) error {
	f.docs[doc.ID] = *doc
	return nil
}

func (f *fakeDocRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.docs, id)
	return nil
}

func (f *fakeDocRepo) ListByDeal(ctx context.Context, dealID uuid.UUID, folder string) ([]model.Document, error) {
	var out []model.Document
	for _, doc := range f.docs {
		if doc.DealID != dealID {
			continue
		}
		if folder != "" && doc.Folder != folder {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// --- BlobStore fake ---

type fakeBlobStore struct {
	saved   map[string][]byte
	deleted []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{saved: make(map[string][]byte)}
}

func (f *fakeBlobStore) Save(key string, data []byte) (string, error) {
	f.saved[key] = data
	return "http://files.test/" + key, nil
}

func (f *fakeBlobStore) Delete(key string) error {
	delete(f.saved, key)
	f.deleted = append(f.deleted, key)
	return nil
}

// --- UserRepository fake ---

type fakeUserRepo struct {
	users          map[uuid.UUID]model.User
	companies      map[uuid.UUID]model.Company
	refreshTokens  map[string]model.RefreshToken
	failCreateUser bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:         make(map[uuid.UUID]model.User),
		companies:     make(map[uuid.UUID]model.Company),
		refreshTokens: make(map[string]model.RefreshToken),
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if f.failCreateUser {
		return context.DeadlineExceeded
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) Update(ctx context.Context, user *model.User) error {
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) HardDelete(ctx context.Context, id uuid.UUID) error {
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) CreateCompany(ctx context.Context, company *model.Company) error {
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	f.companies[company.ID] = *company
	return nil
}

func (f *fakeUserRepo) GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	company, ok := f.companies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &company, nil
}

func (f *fakeUserRepo) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	delete(f.companies, id)
	return nil
}

func (f *fakeUserRepo) ListDealCompanies(ctx context.Context, brokerID uuid.UUID, side string) ([]model.Company, error) {
	return nil, nil
}

func (f *fakeUserRepo) SaveRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	f.refreshTokens[token.Token] = *token
	return nil
}

func (f *fakeUserRepo) GetRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	rt, ok := f.refreshTokens[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rt, nil
}

func (f *fakeUserRepo) DeleteRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	for key, rt := range f.refreshTokens {
		if rt.UserID == userID {
			delete(f.refreshTokens, key)
		}
	}
	return nil
}

// --- WorkflowService fake (for verifier tests) ---

type workflowCall struct {
	method     string
	dealID     uuid.UUID
	stepNumber int
	folder     string
	role       catalog.PartyRole
	documentID *uuid.UUID
}

type fakeWorkflow struct {
	calls []workflowCall
}

func (f *fakeWorkflow) RecordApproval(ctx context.Context, dealID uuid.UUID, stepNumber int, role catalog.PartyRole, userID uuid.UUID, documentID *uuid.UUID) (*StepResult, error) {
	f.calls = append(f.calls, workflowCall{method: "RecordApproval", dealID: dealID, stepNumber: stepNumber, role: role, documentID: documentID})
	return &StepResult{}, nil
}

func (f *fakeWorkflow) CompleteStep(ctx context.Context, dealID uuid.UUID, stepNumber int, userID uuid.UUID) (*StepResult, error) {
	f.calls = append(f.calls, workflowCall{method: "CompleteStep", dealID: dealID, stepNumber: stepNumber})
	return &StepResult{}, nil
}

func (f *fakeWorkflow) ApplyPartyVerification(ctx context.Context, dealID uuid.UUID, folder string, userID uuid.UUID) error {
	f.calls = append(f.calls, workflowCall{method: "ApplyPartyVerification", dealID: dealID, folder: folder})
	return nil
}

func (f *fakeWorkflow) UnlockDeal(ctx context.Context, dealID uuid.UUID) error {
	f.calls = append(f.calls, workflowCall{method: "UnlockDeal", dealID: dealID})
	return nil
}

// --- shared helpers ---

func testBroker() *model.User {
	return &model.User{
		ID:       uuid.New(),
		Email:    "broker@test.com",
		FullName: "Test Broker",
		Role:     catalog.RoleBroker,
	}
}

func testPartyUser(role catalog.PartyRole, companyID uuid.UUID) *model.User {
	return &model.User{
		ID:        uuid.New(),
		Email:     strings.ToLower(string(role)) + "@test.com",
		FullName:  "Test " + string(role),
		Role:      role,
		CompanyID: &companyID,
	}
}

func unlockedDealAt(store *fakeStore, stepNumber int) model.Deal {
	buyerCo := uuid.New()
	sellerCo := uuid.New()
	now := time.Now()
	deal := store.addDeal(model.Deal{
		DealNumber:     "HT-2026-0001",
		Status:         model.DealStatusInProgress,
		CurrentStep:    stepNumber,
		BuyerID:        &buyerCo,
		SellerID:       &sellerCo,
		BrokerID:       uuid.New(),
		BuyerVerified:  true,
		SellerVerified: true,
		MatchedAt:      &now,
	})
	for n := 1; n < stepNumber; n++ {
		store.setStepStatus(deal.ID, n, model.StepStatusCompleted)
	}
	store.setStepStatus(deal.ID, stepNumber, model.StepStatusInProgress)
	_ = store.SeedApprovals(context.Background(), deal.ID, stepNumber, catalog.RequiredParties(stepNumber))
	return store.deals[deal.ID]
}
