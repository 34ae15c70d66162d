package repository

import (
	"context"

	"github.com/SwiftTim/hub2/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReportRepository persists generated report records used for verification.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Create inserts an immutable report record.
func (r *ReportRepository) Create(ctx context.Context, rep *model.GeneratedReport) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO generated_reports (id, user_id, report_type, title, document_hash, watermark_signature, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		rep.ID, rep.UserID, rep.ReportType, rep.Title, rep.DocumentHash, rep.Signature, rep.CreatedAt,
	).Scan(&rep.CreatedAt)
}

// GetByID retrieves a report record. pgx.ErrNoRows is returned when it does not exist.
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.GeneratedReport, error) {
	rep := &model.GeneratedReport{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, report_type, title, document_hash, watermark_signature, created_at
		 FROM generated_reports
		 WHERE id = $1`, id,
	).Scan(&rep.ID, &rep.UserID, &rep.ReportType, &rep.Title, &rep.DocumentHash, &rep.Signature, &rep.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rep, nil
}
