// Package store persists one SubjectAnalysis per subject. Writes replace the
// whole record; there is no merge.
package store

import (
	"context"
	"fmt"

	"github.com/ppiankov/veracity/internal/model"
)

// Store is the analysis store. Replace is last-writer-wins per subject.
type Store interface {
	Replace(ctx context.Context, analysis *model.SubjectAnalysis) error
	Get(ctx context.Context, subjectID string) (*model.SubjectAnalysis, error)
	// GetAll returns every analysis in first-stored order
	GetAll(ctx context.Context) ([]*model.SubjectAnalysis, error)
	Close() error
}

// Open builds the store described by cfg
func Open(cfg model.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return OpenSQLite(cfg.Path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s (supported: sqlite, memory)", cfg.Driver)
	}
}

func failure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", model.ErrPersistenceFailure, op, err)
}

func notFound(subjectID string) error {
	return fmt.Errorf("%w: subject %q", model.ErrNotFound, subjectID)
}
