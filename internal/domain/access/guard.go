package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediledger/mediledger/internal/platform/auth"
	"github.com/mediledger/mediledger/internal/platform/metrics"
)

// Guard rule names, used as the "rule" metric label.
const (
	RuleReadPatient  = "read_patient"
	RuleWriteRecord  = "write_record"
	RuleCreateRecord = "create_record"
)

// GrantChecker is the ledger lookup the guard depends on.
type GrantChecker interface {
	HasApprovedGrant(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}

// Guard decides whether a principal may touch a patient's records. A
// patient is allowed on their own data only; a doctor needs an APPROVED
// grant for that patient at call time.
type Guard struct {
	grants  GrantChecker
	metrics *metrics.Collector
}

func NewGuard(grants GrantChecker, m *metrics.Collector) *Guard {
	return &Guard{grants: grants, metrics: m}
}

// CanReadPatient gates reads of patientID's records.
func (g *Guard) CanReadPatient(ctx context.Context, p *auth.Principal, patientID uuid.UUID) error {
	return g.decide(ctx, RuleReadPatient, p, patientID)
}

// CanWriteRecord gates update and delete. Authorship is not considered:
// the doctor must hold a current grant for the record's patient.
func (g *Guard) CanWriteRecord(ctx context.Context, p *auth.Principal, rec PatientOwned) error {
	return g.decide(ctx, RuleWriteRecord, p, rec.OwningPatient())
}

// CanCreateRecord gates creating a record for patientID.
func (g *Guard) CanCreateRecord(ctx context.Context, p *auth.Principal, patientID uuid.UUID) error {
	return g.decide(ctx, RuleCreateRecord, p, patientID)
}

func (g *Guard) decide(ctx context.Context, rule string, p *auth.Principal, patientID uuid.UUID) error {
	err := g.check(ctx, p, patientID)
	if err != nil && !isAuthzError(err) {
		return err
	}
	g.metrics.Authz(rule, err == nil)
	if err != nil {
		l := zerolog.Ctx(ctx).Debug().Str("rule", rule).Str("patient_id", patientID.String())
		if p != nil {
			l = l.Str("user_id", p.UserID.String())
		}
		l.Err(err).Msg("authorization denied")
	}
	return err
}

func (g *Guard) check(ctx context.Context, p *auth.Principal, patientID uuid.UUID) error {
	p, err := auth.RequireAuth(p)
	if err != nil {
		return err
	}
	switch p.Role {
	case auth.RolePatient:
		if p.ProfileID != patientID {
			return fmt.Errorf("%w: not the owning patient", auth.ErrForbidden)
		}
		return nil
	case auth.RoleDoctor:
		ok, err := g.grants.HasApprovedGrant(ctx, p.ProfileID, patientID)
		if err != nil {
			return fmt.Errorf("grant lookup: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: no approved grant for patient %s", auth.ErrForbidden, patientID)
		}
		return nil
	}
	return fmt.Errorf("%w: role not assigned", auth.ErrForbidden)
}

func isAuthzError(err error) bool {
	return errors.Is(err, auth.ErrForbidden) || errors.Is(err, auth.ErrUnauthenticated)
}
