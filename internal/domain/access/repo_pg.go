package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediledger/mediledger/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const requestCols = `ar.id, ar.doctor_id, ar.patient_id, ar.status, ar.reason, ar.message,
	ar.requested_at, ar.responded_at, du.name, pu.name`

const requestFrom = ` FROM access_request ar
	JOIN doctor d ON d.id = ar.doctor_id
	JOIN app_user du ON du.id = d.user_id
	JOIN patient p ON p.id = ar.patient_id
	JOIN app_user pu ON pu.id = p.user_id`

func scanRequest(row pgx.Row) (*AccessRequest, error) {
	var ar AccessRequest
	var status string
	err := row.Scan(&ar.ID, &ar.DoctorID, &ar.PatientID, &status, &ar.Reason, &ar.Message,
		&ar.RequestedAt, &ar.RespondedAt, &ar.DoctorName, &ar.PatientName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ar.Status = Status(status)
	return &ar, nil
}

func (r *repoPG) Create(ctx context.Context, ar *AccessRequest) error {
	ar.ID = uuid.New()
	if ar.Status == "" {
		ar.Status = StatusPending
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO access_request (id, doctor_id, patient_id, status, reason, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING requested_at`,
		ar.ID, ar.DoctorID, ar.PatientID, string(ar.Status), ar.Reason, ar.Message,
	).Scan(&ar.RequestedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrPatientNotFound
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*AccessRequest, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+requestCols+requestFrom+` WHERE ar.id = $1`, id))
}

func (r *repoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*AccessRequest, int, error) {
	q := r.conn(ctx)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM access_request ar WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	sql := fmt.Sprintf(`SELECT %s%s WHERE %s ORDER BY ar.requested_at DESC, ar.id LIMIT $%d OFFSET $%d`,
		requestCols, requestFrom, where, n+1, n+2)
	rows, err := q.Query(ctx, sql, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*AccessRequest
	for rows.Next() {
		ar, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan access request: %w", err)
		}
		items = append(items, ar)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*AccessRequest, int, error) {
	return r.list(ctx, `ar.doctor_id = $1`, []interface{}{doctorID}, limit, offset)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*AccessRequest, int, error) {
	if status == "" {
		return r.list(ctx, `ar.patient_id = $1`, []interface{}{patientID}, limit, offset)
	}
	return r.list(ctx, `ar.patient_id = $1 AND ar.status = $2`, []interface{}{patientID, string(status)}, limit, offset)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, respondedAt time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE access_request SET status = $2, responded_at = $3
		WHERE id = $1`, id, string(status), respondedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) HasApproved(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM access_request
			WHERE doctor_id = $1 AND patient_id = $2 AND status = 'APPROVED'
		)`, doctorID, patientID).Scan(&ok)
	return ok, err
}

func (r *repoPG) ListLinkedPatients(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*LinkedPatient, int, error) {
	q := r.conn(ctx)
	var total int
	if err := q.QueryRow(ctx, `
		SELECT COUNT(DISTINCT patient_id) FROM access_request
		WHERE doctor_id = $1 AND status = 'APPROVED'`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := q.Query(ctx, `
		SELECT p.id, p.user_id, u.name, u.email, p.date_of_birth, p.blood_type, MAX(ar.responded_at)
		FROM access_request ar
		JOIN patient p ON p.id = ar.patient_id
		JOIN app_user u ON u.id = p.user_id
		WHERE ar.doctor_id = $1 AND ar.status = 'APPROVED'
		GROUP BY p.id, p.user_id, u.name, u.email, p.date_of_birth, p.blood_type
		ORDER BY u.name, p.id
		LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*LinkedPatient
	for rows.Next() {
		var lp LinkedPatient
		if err := rows.Scan(&lp.PatientID, &lp.UserID, &lp.Name, &lp.Email, &lp.DateOfBirth, &lp.BloodType, &lp.GrantedAt); err != nil {
			return nil, 0, fmt.Errorf("scan linked patient: %w", err)
		}
		items = append(items, &lp)
	}
	return items, total, rows.Err()
}
