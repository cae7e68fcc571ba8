package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"hazeltrade/internal/catalog"
	"hazeltrade/internal/model"
	"hazeltrade/internal/repository"
	"hazeltrade/internal/storage"
)

const maxUploadSize = 10 << 20 // 10MB

// allowedFileTypes maps accepted MIME types to the extension used for the
// storage key.
var allowedFileTypes = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

// UploadRequest carries one parsed multipart upload
type UploadRequest struct {
	DealID       uuid.UUID
	Folder       string
	DocumentType string
	StepNumber   int
	Filename     string
	ContentType  string
	Data         []byte
}

// DocumentService handles document upload, listing and the hand-off to the
// asynchronous verification worker.
type DocumentService interface {
	Upload(ctx context.Context, user *model.User, req UploadRequest) (*model.Document, error)
	ListByDeal(ctx context.Context, user *model.User, dealID uuid.UUID, folder string) ([]model.Document, error)
	Get(ctx context.Context, user *model.User, documentID uuid.UUID) (*model.Document, error)
	Delete(ctx context.Context, user *model.User, documentID uuid.UUID) error
}

type documentService struct {
	docRepo      repository.DocumentRepository
	dealRepo     repository.DealRepository
	workflowRepo repository.WorkflowRepository
	blobs        storage.BlobStore
	notifier     NotificationService
	verifier     *Verifier
}

func NewDocumentService(
	docRepo repository.DocumentRepository,
	dealRepo repository.DealRepository,
	workflowRepo repository.WorkflowRepository,
	blobs storage.BlobStore,
	notifier NotificationService,
	verifier *Verifier,
) DocumentService {
	return &documentService{
		docRepo:      docRepo,
		dealRepo:     dealRepo,
		workflowRepo: workflowRepo,
		blobs:        blobs,
		notifier:     notifier,
		verifier:     verifier,
	}
}

func (s *documentService) Upload(ctx context.Context, user *model.User, req UploadRequest) (*model.Document, error) {
	if int64(len(req.Data)) > maxUploadSize {
		return nil, ErrFileTooLarge
	}
	ext, ok := allowedFileTypes[req.ContentType]
	if !ok {
		return nil, ErrFileType
	}

	deal, err := s.dealRepo.GetByID(ctx, req.DealID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDealNotFound
		}
		return nil, err
	}
	if !canSeeDeal(user, deal) {
		return nil, ErrDealNotFound
	}

	// Workflow-step evidence is restricted to the step's required parties;
	// POF comes from the buyer and POP from the seller.
	if req.StepNumber > 0 {
		info, ok := catalog.StepInfo(req.StepNumber)
		if !ok {
			return nil, ErrStepNotFound
		}
		if !catalog.CanAct(user.Role, req.StepNumber) {
			return nil, &PermissionError{
				StepNumber:      req.StepNumber,
				Role:            user.Role,
				RequiredParties: info.RequiredParties,
			}
		}
	}
	switch req.Folder {
	case model.FolderPOF:
		if user.Role != catalog.RoleBuyer {
			return nil, &PermissionError{Role: user.Role, RequiredParties: []catalog.PartyRole{catalog.RoleBuyer}}
		}
	case model.FolderPOP:
		if user.Role != catalog.RoleSeller {
			return nil, &PermissionError{Role: user.Role, RequiredParties: []catalog.PartyRole{catalog.RoleSeller}}
		}
	}

	key := fmt.Sprintf("%s/%s/%d_%s%s",
		deal.ID, strings.ToLower(req.Folder), time.Now().UnixNano(), uuid.NewString()[:8], ext)
	url, err := s.blobs.Save(key, req.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	doc := &model.Document{
		DealID:             deal.ID,
		UploadedBy:         user.ID,
		Filename:           req.Filename,
		FileType:           req.ContentType,
		FileSize:           int64(len(req.Data)),
		FilePath:           key,
		FileURL:            url,
		DocumentType:       req.DocumentType,
		Folder:             req.Folder,
		StepNumber:         req.StepNumber,
		VerificationStatus: model.VerificationPending,
		VisibleToBuyer:     req.Folder != model.FolderPOP,
		VisibleToSeller:    req.Folder != model.FolderPOF,
		VisibleToBroker:    true,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		// Compensating cleanup so the blob store doesn't accumulate orphans
		if delErr := s.blobs.Delete(key); delErr != nil {
			log.Printf("failed to clean up blob %s after insert failure: %v", key, delErr)
		}
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	uid := user.ID
	if err := s.workflowRepo.CreateAudit(ctx, &model.AuditLog{
		UserID:     &uid,
		Action:     model.ActionUploadDocument,
		EntityID:   doc.ID.String(),
		EntityName: doc.Filename,
		Details:    fmt.Sprintf(`{"deal_id":%q,"folder":%q,"step_number":%d}`, deal.ID, doc.Folder, doc.StepNumber),
	}); err != nil {
		log.Printf("failed to write audit log for document %s: %v", doc.ID, err)
	}

	s.notifier.FanOut(ctx, deal.ID, model.NotifyDocumentUploaded,
		"Document Uploaded",
		fmt.Sprintf("%s uploaded %s to deal %s.", user.FullName, doc.Filename, deal.DealNumber))

	if s.verifier != nil {
		s.verifier.Enqueue(VerificationJob{
			DocumentID: doc.ID,
			DealID:     deal.ID,
			UserID:     user.ID,
			Role:       user.Role,
			Folder:     doc.Folder,
			StepNumber: doc.StepNumber,
		})
	}
	return doc, nil
}

func (s *documentService) ListByDeal(ctx context.Context, user *model.User, dealID uuid.UUID, folder string) ([]model.Document, error) {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDealNotFound
		}
		return nil, err
	}
	if !canSeeDeal(user, deal) {
		return nil, ErrDealNotFound
	}

	docs, err := s.docRepo.ListByDeal(ctx, dealID, folder)
	if err != nil {
		return nil, err
	}

	visible := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.VisibleTo(user.Role) {
			visible = append(visible, doc)
		}
	}
	return visible, nil
}

func (s *documentService) Get(ctx context.Context, user *model.User, documentID uuid.UUID) (*model.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	deal, err := s.dealRepo.GetByID(ctx, doc.DealID)
	if err != nil {
		return nil, ErrDocumentNotFound
	}
	if !canSeeDeal(user, deal) || !doc.VisibleTo(user.Role) {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *documentService) Delete(ctx context.Context, user *model.User, documentID uuid.UUID) error {
	doc, err := s.Get(ctx, user, documentID)
	if err != nil {
		return err
	}
	// Only the uploader may remove a document, and only before verification
	if doc.UploadedBy != user.ID || doc.VerificationStatus == model.VerificationVerified {
		return ErrDocumentNotFound
	}

	if err := s.docRepo.Delete(ctx, doc.ID); err != nil {
		return err
	}
	if err := s.blobs.Delete(doc.FilePath); err != nil {
		log.Printf("failed to delete blob %s for document %s: %v", doc.FilePath, doc.ID, err)
	}
	return nil
}
