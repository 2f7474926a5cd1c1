package store

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound        = errors.New("job not found")
	ErrCandidateNotFound  = errors.New("candidate not found")
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAttachmentNotFound = errors.New("attachment not found")

	ErrOrderOutOfRange   = errors.New("order out of range")
	ErrStaleOrder        = errors.New("job order changed since it was read")
	ErrInvalidStatus     = errors.New("invalid job status")
	ErrInvalidStage      = errors.New("invalid candidate stage")
	ErrIllegalTransition = errors.New("illegal stage transition")
	ErrDuplicateSlug     = errors.New("job slug already exists")
	ErrDuplicateEmail    = errors.New("candidate email already exists")
	ErrEmptyTitle        = errors.New("job title is required")
	ErrEmptyNote         = errors.New("note text is required")
	ErrInvalidCandidate  = errors.New("candidate name and email are required")
)

func notFound(base error, id uint) error {
	return fmt.Errorf("%w: %d", base, id)
}
