package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazeltrade/internal/catalog"
	"hazeltrade/internal/model"
)

type documentFixture struct {
	store    *fakeStore
	docs     *fakeDocRepo
	blobs    *fakeBlobStore
	notifier *fakeNotifier
	svc      DocumentService
}

func newDocumentFixture() *documentFixture {
	store := newFakeStore()
	docs := newFakeDocRepo()
	blobs := newFakeBlobStore()
	notifier := &fakeNotifier{}
	svc := NewDocumentService(docs, store, store, blobs, notifier, nil)
	return &documentFixture{store: store, docs: docs, blobs: blobs, notifier: notifier, svc: svc}
}

func pdfUpload(dealID uuid.UUID, folder string) UploadRequest {
	return UploadRequest{
		DealID:       dealID,
		Folder:       folder,
		DocumentType: "OTHER",
		Filename:     "test.pdf",
		ContentType:  "application/pdf",
		Data:         []byte("%PDF-1.4 test"),
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	fix := newDocumentFixture()
	deal := unlockedDealAt(fix.store, 1)
	buyer := testPartyUser(catalog.RoleBuyer, *deal.BuyerID)

	req := pdfUpload(deal.ID, model.FolderAgreements)
	req.Data = bytes.Repeat([]byte("a"), maxUploadSize+1)

	_, err := fix.svc.Upload(context.Background(), buyer, req)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Empty(t, fix.blobs.saved)
}

func TestUploadRejectsUnknownFileType(t *testing.T) {
	fix := newDocumentFixture()
	deal := unlockedDealAt(fix.store, 1)
	buyer := testPartyUser(catalog.RoleBuyer, *deal.BuyerID)

	req := pdfUpload(deal.ID, model.FolderAgreements)
	req.ContentType = "application/zip"

	_, err := fix.svc.Upload(context.Background(), buyer, req)
	assert.ErrorIs(t, err, ErrFileType)
}

func TestUploadOutsiderSeesNotFound(t *testing.T) {
	fix := newDocumentFixture()
	deal := unlockedDealAt(fix.store, 1)
	outsider := testPartyUser(catalog.RoleBuyer, uuid.New())

	_, err := fix.svc.Upload(context.Background(), outsider, pdfUpload(deal.ID, model.FolderAgreements))
	assert.ErrorIs(t, err, ErrDealNotFound)
}

func TestUploadPOFRestrictedToBuyer(t *testing.T) {
	fix := newDocumentFixture()
	deal := unlockedDealAt(fix.store, 1)
	seller := testPartyUser(catalog.RoleSeller, *deal.SellerID)

	_, err := fix.svc.Upload(context.Background(), seller, pdfUpload(deal.ID, model.FolderPOF))

	var permErr *PermissionError
	require.ErrorAs(t, err, &permErr)
	assert.Equal(t, []catalog.PartyRole{catalog.RoleBuyer}, permErr.RequiredParties)
}

func TestUploadStepEvidenceChecksRequiredParties(t *testing.T) {
	fix := newDocumentFixture()
	deal := unlockedDealAt(fix.store, 2)
	seller := testPartyUser(catalog.RoleSeller, *deal.SellerID)

	req := pdfUpload(deal.ID, model.FolderAgreements)
	req.StepNumber = 2 // ICPO is buyer-only

	_, err := fix.svc.Upload(context.Background(), seller, req)

	var permErr *PermissionError
	require.ErrorAs(t, err, &permErr)
	assert.Equal(t, 2, permErr.StepNumber)
}

func TestUploadPOFVisibilityAndPendingStatus(t *testing.T) {
	fix := newDocumentFixture()
	deal := unlockedDealAt(fix.store, 1)
	buyer := testPartyUser(catalog.RoleBuyer, *deal.BuyerID)

	doc, err := fix.svc.Upload(context.Background(), buyer, pdfUpload(deal.ID, model.FolderPOF))
	require.NoError(t, err)

	assert.Equal(t, model.VerificationPending, doc.VerificationStatus)
	// POF is the buyer's financial evidence; the seller never sees it
	assert.True(t, doc.VisibleToBuyer)
	assert.False(t, doc.VisibleToSeller)
	assert.True(t, doc.VisibleToBroker)
	assert.Len(t, fix.blobs.saved, 1)
	assert.Contains(t, fix.notifier.typesSent(), model.NotifyDocumentUploaded)
}

func TestUploadCompensatesBlobOnInsertFailure(t *testing.T) {
	fix := newDocumentFixture()
	fix.docs.failCreate = true
	deal := unlockedDealAt(fix.store, 1)
	buyer := testPartyUser(catalog.RoleBuyer, *deal.BuyerID)

	_, err := fix.svc.Upload(context.Background(), buyer, pdfUpload(deal.ID, model.FolderAgreements))
	require.Error(t, err)

	// Row insert failed, so the written blob must be removed again
	assert.Empty(t, fix.blobs.saved)
	assert.Len(t, fix.blobs.deleted, 1)
}

func TestListByDealFiltersByVisibility(t *testing.T) {
	fix := newDocumentFixture()
	deal := unlockedDealAt(fix.store, 1)
	buyer := testPartyUser(catalog.RoleBuyer, *deal.BuyerID)
	seller := testPartyUser(catalog.RoleSeller, *deal.SellerID)

	_, err := fix.svc.Upload(context.Background(), buyer, pdfUpload(deal.ID, model.FolderPOF))
	require.NoError(t, err)
	_, err = fix.svc.Upload(context.Background(), buyer, pdfUpload(deal.ID, model.FolderAgreements))
	require.NoError(t, err)

	buyerDocs, err := fix.svc.ListByDeal(context.Background(), buyer, deal.ID, "")
	require.NoError(t, err)
	assert.Len(t, buyerDocs, 2)

	sellerDocs, err := fix.svc.ListByDeal(context.Background(), seller, deal.ID, "")
	require.NoError(t, err)
	assert.Len(t, sellerDocs, 1)
	assert.Equal(t, model.FolderAgreements, sellerDocs[0].Folder)
}

func TestDeleteOnlyByUploaderBeforeVerification(t *testing.T) {
	fix := newDocumentFixture()
	deal := unlockedDealAt(fix.store, 1)
	buyer := testPartyUser(catalog.RoleBuyer, *deal.BuyerID)
	broker := testBroker()
	broker.ID = deal.BrokerID

	doc, err := fix.svc.Upload(context.Background(), buyer, pdfUpload(deal.ID, model.FolderAgreements))
	require.NoError(t, err)

	// Not the uploader
	err = fix.svc.Delete(context.Background(), broker, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	require.NoError(t, fix.svc.Delete(context.Background(), buyer, doc.ID))
	_, err = fix.svc.Get(context.Background(), buyer, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}
