package model

import "errors"

// Failure classes surfaced by the pipeline. Wrap with fmt.Errorf("%w: %w", ...)
// and test with errors.Is.
var (
	ErrHarvestUnavailable   = errors.New("harvest unavailable")
	ErrInferenceUnreachable = errors.New("inference unreachable")
	ErrEvidenceUnavailable  = errors.New("evidence unavailable")
	ErrPersistenceFailure   = errors.New("persistence failure")
	ErrNotFound             = errors.New("not found")
)
