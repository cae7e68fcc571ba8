package service

import (
	"errors"
	"fmt"

	"hazeltrade/internal/catalog"
)

// Sentinel errors for the domain failure taxonomy. Handlers map these onto
// HTTP status codes; everything else surfaces as an upstream failure.
var (
	ErrDealNotFound       = errors.New("deal not found")
	ErrStepNotFound       = errors.New("step not found")
	ErrStepCompleted      = errors.New("step already completed")
	ErrStepNotCurrent     = errors.New("step is ahead of the deal's current step")
	ErrWorkflowLocked     = errors.New("workflow locked")
	ErrInviteNotFound     = errors.New("invite not found")
	ErrInviteExpired      = errors.New("invite has expired")
	ErrInviteAccepted     = errors.New("invite already accepted")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrFileTooLarge       = errors.New("file size exceeds 10MB limit")
	ErrFileType           = errors.New("invalid file type")
)

// PermissionError rejects an action by a role outside a step's required
// parties. It carries the required set so handlers can echo it to the caller.
type PermissionError struct {
	StepNumber      int
	Role            catalog.PartyRole
	RequiredParties []catalog.PartyRole
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("role %s cannot act on step %d (required parties: %v)",
		e.Role, e.StepNumber, e.RequiredParties)
}
