package records

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// ListByPatient returns records newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error)
	// Update writes only the fields present in p and returns the stored row.
	Update(ctx context.Context, id uuid.UUID, p Patch) (*Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
