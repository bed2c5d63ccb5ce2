package domain

import (
	"errors"
	"fmt"
)

// Expected policy outcomes are sentinels so callers branch with errors.Is
// instead of matching messages. Store faults are wrapped separately and must
// never be mistaken for a policy decision.
var (
	ErrInvalidID       = errors.New("invalid identifier")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// PartialFailureError reports a CreateBusiness whose business insert
// succeeded but whose creator membership insert failed. It carries the
// orphan business id so the caller can retry the membership write instead
// of creating a second business.
type PartialFailureError struct {
	BusinessID string
	Err        error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("business %s created but creator membership write failed: %v", e.BusinessID, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }
