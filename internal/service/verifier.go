package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"hazeltrade/internal/catalog"
	"hazeltrade/internal/model"
	"hazeltrade/internal/repository"
)

// VerificationJob describes one document awaiting verification
type VerificationJob struct {
	DocumentID uuid.UUID
	DealID     uuid.UUID
	UserID     uuid.UUID
	Role       catalog.PartyRole
	Folder     string
	StepNumber int
}

// Verifier processes uploaded documents asynchronously: after a configurable
// delay it marks the document verified and applies the workflow side effect
// (party verification for POF/POP, approval recording for step evidence).
// Verification is best-effort; a dropped or failed job leaves the document
// PENDING and the upload itself untouched.
type Verifier struct {
	docRepo  repository.DocumentRepository
	workflow WorkflowService
	notifier NotificationService
	txMgr    repository.TransactionManager
	delay    time.Duration
	jobs     chan VerificationJob
}

func NewVerifier(
	docRepo repository.DocumentRepository,
	workflow WorkflowService,
	notifier NotificationService,
	txMgr repository.TransactionManager,
	delay time.Duration,
) *Verifier {
	return &Verifier{
		docRepo:  docRepo,
		workflow: workflow,
		notifier: notifier,
		txMgr:    txMgr,
		delay:    delay,
		jobs:     make(chan VerificationJob, 64),
	}
}

// Enqueue hands a job to the worker without blocking the request path
func (v *Verifier) Enqueue(job VerificationJob) {
	select {
	case v.jobs <- job:
	default:
		log.Printf("verification queue full, dropping job for document %s", job.DocumentID)
	}
}

// Run consumes the job channel until Stop is called. Run it in its own
// goroutine next to the websocket hub.
func (v *Verifier) Run() {
	for job := range v.jobs {
		job := job
		time.AfterFunc(v.delay, func() {
			v.process(context.Background(), job)
		})
	}
}

// Stop closes the intake channel; queued jobs still fire
func (v *Verifier) Stop() {
	close(v.jobs)
}

func (v *Verifier) process(ctx context.Context, job VerificationJob) {
	var verified bool
	err := v.txMgr.RunInTx(ctx, func(txCtx context.Context) error {
		doc, err := v.docRepo.GetByID(txCtx, job.DocumentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Deleted before verification fired
				return nil
			}
			return err
		}
		if doc.VerificationStatus == model.VerificationVerified {
			return nil
		}

		now := time.Now()
		doc.VerificationStatus = model.VerificationVerified
		doc.VerifiedAt = &now
		if err := v.docRepo.Save(txCtx, doc); err != nil {
			return err
		}
		verified = true
		return nil
	})
	if err != nil {
		log.Printf("failed to verify document %s: %v", job.DocumentID, err)
		return
	}
	if !verified {
		return
	}

	switch {
	case job.Folder == model.FolderPOF || job.Folder == model.FolderPOP:
		if err := v.workflow.ApplyPartyVerification(ctx, job.DealID, job.Folder, job.UserID); err != nil {
			log.Printf("failed to apply %s verification for deal %s: %v", job.Folder, job.DealID, err)
		}
	case job.StepNumber > 0:
		docID := job.DocumentID
		if _, err := v.workflow.RecordApproval(ctx, job.DealID, job.StepNumber, job.Role, job.UserID, &docID); err != nil {
			log.Printf("failed to record approval for deal %s step %d: %v", job.DealID, job.StepNumber, err)
		}
	}

	dealID := job.DealID
	v.notifier.Notify(ctx, job.UserID, &dealID, model.NotifyVerificationComplete,
		"Document Verified",
		fmt.Sprintf("Your %s document has been verified.", job.Folder))
}
