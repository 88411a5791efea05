package access

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *AccessRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*AccessRequest, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*AccessRequest, int, error)
	// ListByPatient filters on status unless it is empty.
	ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*AccessRequest, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, respondedAt time.Time) error
	HasApproved(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
	ListLinkedPatients(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*LinkedPatient, int, error)
}
