package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazeltrade/internal/catalog"
	"hazeltrade/internal/email"
	"hazeltrade/internal/model"
)

type dealFixture struct {
	store    *fakeStore
	users    *fakeUserRepo
	notifier *fakeNotifier
	svc      DealService
}

func newDealFixture() *dealFixture {
	store := newFakeStore()
	users := newFakeUserRepo()
	notifier := &fakeNotifier{}
	workflow := NewWorkflowService(store, fakeTx{}, notifier)
	svc := NewDealService(store, store, users, fakeTx{}, workflow, notifier, email.LogMailer{}, "http://app.test")
	return &dealFixture{store: store, users: users, notifier: notifier, svc: svc}
}

func createRequest(buyerType, sellerType string) CreateDealRequest {
	req := CreateDealRequest{
		DealData: DealData{
			ProductType:    model.ProductEN590,
			Quantity:       decimal.NewFromInt(50000),
			QuantityUnit:   "MT",
			EstimatedValue: decimal.NewFromInt(30000000),
			DeliveryTerms:  "CIF",
			Location:       "Rotterdam",
		},
		BuyerType:  buyerType,
		BuyerData:  PartyData{Company: "Buyer Co", Name: "Bob Buyer", Email: "bob@buyer.test"},
		SellerType: sellerType,
		SellerData: PartyData{Company: "Seller Co", Name: "Sam Seller", Email: "sam@seller.test"},
	}
	if buyerType == "existing" {
		req.BuyerData = PartyData{CompanyID: uuid.NewString()}
	}
	if sellerType == "existing" {
		req.SellerData = PartyData{CompanyID: uuid.NewString()}
	}
	return req
}

func TestCreateDealNumberFormat(t *testing.T) {
	fix := newDealFixture()
	broker := testBroker()

	result, err := fix.svc.Create(context.Background(), broker, createRequest("new", "new"))
	require.NoError(t, err)

	want := fmt.Sprintf("HT-%d-0001", time.Now().Year())
	assert.Equal(t, want, result.Deal.DealNumber)

	// Sequence counts per year prefix
	result, err = fix.svc.Create(context.Background(), broker, createRequest("new", "new"))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("HT-%d-0002", time.Now().Year()), result.Deal.DealNumber)
}

func TestCreateDealSeedsAllTwelveSteps(t *testing.T) {
	fix := newDealFixture()

	result, err := fix.svc.Create(context.Background(), testBroker(), createRequest("new", "new"))
	require.NoError(t, err)

	steps, err := fix.store.ListSteps(context.Background(), result.Deal.ID)
	require.NoError(t, err)
	require.Len(t, steps, catalog.StepCount)
	for i, step := range steps {
		assert.Equal(t, i+1, step.StepNumber)
		assert.Equal(t, model.StepStatusPending, step.Status)
	}
	assert.Equal(t, model.DealStatusPendingVerification, result.Deal.Status)
}

func TestCreateDealWithInvitesReturnsLinks(t *testing.T) {
	fix := newDealFixture()

	result, err := fix.svc.Create(context.Background(), testBroker(), createRequest("new", "existing"))
	require.NoError(t, err)

	assert.NotEmpty(t, result.InviteLinks.Buyer)
	assert.Empty(t, result.InviteLinks.Seller)
	assert.Contains(t, result.InviteLinks.Buyer, "http://app.test/invite/")
	assert.Len(t, fix.store.invites, 1)

	for _, invite := range fix.store.invites {
		assert.Equal(t, catalog.RoleBuyer, invite.Role)
		assert.Equal(t, model.InviteStatusPending, invite.Status)
		assert.WithinDuration(t, time.Now().Add(model.InviteTTL), invite.ExpiresAt, time.Minute)
	}
}

func TestCreateDealBothExistingMatchesImmediately(t *testing.T) {
	fix := newDealFixture()

	result, err := fix.svc.Create(context.Background(), testBroker(), createRequest("existing", "existing"))
	require.NoError(t, err)

	assert.Equal(t, model.DealStatusMatched, result.Deal.Status)
	assert.Equal(t, 1, result.Deal.CurrentStep)
	assert.Equal(t, model.StepStatusInProgress, fix.store.steps[result.Deal.ID][1].Status)

	approvals, err := fix.store.ListApprovals(context.Background(), result.Deal.ID, 1)
	require.NoError(t, err)
	assert.Len(t, approvals, 3)

	assert.Contains(t, fix.notifier.typesSent(), model.NotifyMatchConfirmed)
}

func TestCreateDealInvalidExistingCompany(t *testing.T) {
	fix := newDealFixture()

	req := createRequest("existing", "new")
	req.BuyerData.CompanyID = "not-a-uuid"

	_, err := fix.svc.Create(context.Background(), testBroker(), req)
	assert.Error(t, err)
	assert.Empty(t, fix.store.deals)
}

func TestGetDealHiddenFromOutsiders(t *testing.T) {
	fix := newDealFixture()
	broker := testBroker()

	result, err := fix.svc.Create(context.Background(), broker, createRequest("existing", "existing"))
	require.NoError(t, err)

	detail, err := fix.svc.Get(context.Background(), broker, result.Deal.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Steps, catalog.StepCount)
	assert.Len(t, detail.Catalog, 4)

	outsider := testPartyUser(catalog.RoleBuyer, uuid.New())
	_, err = fix.svc.Get(context.Background(), outsider, result.Deal.ID)
	assert.ErrorIs(t, err, ErrDealNotFound)
}

func TestAcceptInviteAttachesCompany(t *testing.T) {
	fix := newDealFixture()

	_, err := fix.svc.Create(context.Background(), testBroker(), createRequest("new", "existing"))
	require.NoError(t, err)

	var token string
	for tok := range fix.store.invites {
		token = tok
	}

	companyID := uuid.New()
	joiner := testPartyUser(catalog.RoleBuyer, companyID)

	deal, err := fix.svc.AcceptInvite(context.Background(), token, joiner)
	require.NoError(t, err)
	require.NotNil(t, deal.BuyerID)
	assert.Equal(t, companyID, *deal.BuyerID)

	invite := fix.store.invites[token]
	assert.Equal(t, model.InviteStatusAccepted, invite.Status)
	require.NotNil(t, invite.AcceptedAt)

	// Token is consumed exactly once
	_, err = fix.svc.AcceptInvite(context.Background(), token, joiner)
	assert.ErrorIs(t, err, ErrInviteAccepted)
}

func TestAcceptInviteExpired(t *testing.T) {
	fix := newDealFixture()

	_, err := fix.svc.Create(context.Background(), testBroker(), createRequest("new", "existing"))
	require.NoError(t, err)

	var token string
	for tok, invite := range fix.store.invites {
		token = tok
		invite.ExpiresAt = time.Now().Add(-time.Hour)
		fix.store.invites[tok] = invite
	}

	joiner := testPartyUser(catalog.RoleBuyer, uuid.New())
	_, err = fix.svc.AcceptInvite(context.Background(), token, joiner)
	assert.ErrorIs(t, err, ErrInviteExpired)

	// Lazy expiry marks the row so later attempts short-circuit
	assert.Equal(t, model.InviteStatusExpired, fix.store.invites[token].Status)
	_, err = fix.svc.AcceptInvite(context.Background(), token, joiner)
	assert.ErrorIs(t, err, ErrInviteExpired)
}

func TestAcceptInviteUnknownToken(t *testing.T) {
	fix := newDealFixture()
	joiner := testPartyUser(catalog.RoleBuyer, uuid.New())

	_, err := fix.svc.AcceptInvite(context.Background(), "missing", joiner)
	assert.ErrorIs(t, err, ErrInviteNotFound)
}

func TestListScopesByRole(t *testing.T) {
	fix := newDealFixture()
	broker := testBroker()

	result, err := fix.svc.Create(context.Background(), broker, createRequest("existing", "existing"))
	require.NoError(t, err)

	deals, total, err := fix.svc.List(context.Background(), broker, "", 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, deals, 1)

	buyer := testPartyUser(catalog.RoleBuyer, *result.Deal.BuyerID)
	deals, _, err = fix.svc.List(context.Background(), buyer, "", 0, 20)
	require.NoError(t, err)
	assert.Len(t, deals, 1)

	stranger := testPartyUser(catalog.RoleSeller, uuid.New())
	deals, _, err = fix.svc.List(context.Background(), stranger, "", 0, 20)
	require.NoError(t, err)
	assert.Empty(t, deals)
}
