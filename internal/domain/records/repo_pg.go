package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const recordCols = `r.id, r.patient_id, r.doctor_id, r.title, r.content, r.diagnosis, r.treatment,
	r.medications, r.notes, r.created_at, r.updated_at, u.name`

const authorJoin = `
	LEFT JOIN doctor d ON d.id = r.doctor_id
	LEFT JOIN app_user u ON u.id = d.user_id`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.Title, &rec.Content, &rec.Diagnosis, &rec.Treatment,
		&rec.Medications, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt, &rec.DoctorName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_record (id, patient_id, doctor_id, title, content, diagnosis, treatment, medications, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, rec.DoctorID, rec.Title, rec.Content,
		rec.Diagnosis, rec.Treatment, rec.Medications, rec.Notes,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM medical_record r`+authorJoin+` WHERE r.id = $1`, id))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	q := r.conn(ctx)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM medical_record WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+recordCols+` FROM medical_record r`+authorJoin+`
		WHERE r.patient_id = $1
		ORDER BY r.created_at DESC, r.id
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan record: %w", err)
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

// Update builds the SET list from the supplied fields only, so concurrent
// writers touching different fields do not overwrite each other.
func (r *repoPG) Update(ctx context.Context, id uuid.UUID, p Patch) (*Record, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id}
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Content != nil {
		add("content", *p.Content)
	}
	if p.Diagnosis != nil {
		add("diagnosis", nilIfEmpty(*p.Diagnosis))
	}
	if p.Treatment != nil {
		add("treatment", nilIfEmpty(*p.Treatment))
	}
	if p.Medications != nil {
		add("medications", nilIfEmpty(*p.Medications))
	}
	if p.Notes != nil {
		add("notes", nilIfEmpty(*p.Notes))
	}

	sql := `WITH r AS (
		UPDATE medical_record SET ` + strings.Join(sets, ", ") + `
		WHERE id = $1
		RETURNING *
	)
	SELECT ` + recordCols + ` FROM r` + authorJoin
	return scanRecord(r.conn(ctx).QueryRow(ctx, sql, args...))
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medical_record WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
