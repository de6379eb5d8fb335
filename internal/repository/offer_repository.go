package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushire/placement-api/internal/lifecycle"
	"github.com/campushire/placement-api/internal/models"
)

// OfferRepository handles persistence of offers. Like applications, status
// updates are compare-and-swap on the expected prior status with no retry.
type OfferRepository struct {
	db *sqlx.DB
}

// NewOfferRepository constructs the repository.
func NewOfferRepository(db *sqlx.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

const offerColumns = `id, application_id, student_id, drive_id, status, package, currency, job_role,
        issued_by, issued_at, expires_at, counter_amount, counter_note, response_message, responded_at,
        created_at, updated_at`

// FindByID returns the offer with the given ID.
func (r *OfferRepository) FindByID(ctx context.Context, id string) (*models.Offer, error) {
	query := fmt.Sprintf(`SELECT %s FROM offers WHERE id = $1`, offerColumns)
	var offer models.Offer
	if err := r.db.GetContext(ctx, &offer, query, id); err != nil {
		return nil, err
	}
	return &offer, nil
}

// HasPendingForApplication reports whether the application already has a
// live PENDING offer. Countered and expired offers do not count.
func (r *OfferRepository) HasPendingForApplication(ctx context.Context, applicationID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM offers WHERE application_id = $1 AND status = 'PENDING')`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, applicationID); err != nil {
		return false, fmt.Errorf("pending offer check: %w", err)
	}
	return exists, nil
}

// Create persists a new offer in PENDING.
func (r *OfferRepository) Create(ctx context.Context, offer *models.Offer) error {
	if offer.ID == "" {
		offer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if offer.IssuedAt.IsZero() {
		offer.IssuedAt = now
	}
	offer.CreatedAt = now
	offer.UpdatedAt = now
	const query = `INSERT INTO offers (id, application_id, student_id, drive_id, status, package, currency, job_role,
        issued_by, issued_at, expires_at, counter_amount, counter_note, response_message, responded_at, created_at, updated_at)
        VALUES (:id, :application_id, :student_id, :drive_id, :status, :package, :currency, :job_role,
        :issued_by, :issued_at, :expires_at, :counter_amount, :counter_note, :response_message, :responded_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, offer); err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	return nil
}

// UpdateStatus moves the offer from one status to another, carrying the
// response fields along. Zero rows affected means another writer got there
// first; the caller maps sql.ErrNoRows to a conflict.
func (r *OfferRepository) UpdateStatus(ctx context.Context, offer *models.Offer, from lifecycle.OfferStatus) error {
	offer.UpdatedAt = time.Now().UTC()
	const query = `UPDATE offers SET
        status = :status, counter_amount = :counter_amount, counter_note = :counter_note,
        response_message = :response_message, responded_at = :responded_at, updated_at = :updated_at
        WHERE id = :id AND status = :prior_status`
	arg := map[string]interface{}{
		"id":               offer.ID,
		"status":           offer.Status,
		"counter_amount":   offer.CounterAmount,
		"counter_note":     offer.CounterNote,
		"response_message": offer.ResponseMessage,
		"responded_at":     offer.RespondedAt,
		"updated_at":       offer.UpdatedAt,
		"prior_status":     from,
	}
	result, err := r.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("update offer status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update offer status rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns offers matching the filter plus the unpaged total.
func (r *OfferRepository) List(ctx context.Context, filter models.OfferFilter) ([]models.OfferDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("o.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.DriveID != "" {
		conditions = append(conditions, fmt.Sprintf("o.drive_id = $%d", len(args)+1))
		args = append(args, filter.DriveID)
	}
	if filter.ApplicationID != "" {
		conditions = append(conditions, fmt.Sprintf("o.application_id = $%d", len(args)+1))
		args = append(args, filter.ApplicationID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT o.*, s.first_name || ' ' || s.last_name AS student_name,
        d.title AS drive_title, c.name AS company_name
        FROM offers o
        JOIN students s ON o.student_id = s.id
        JOIN drives d ON o.drive_id = d.id
        JOIN companies c ON d.company_id = c.id%s
        ORDER BY o.issued_at DESC LIMIT %d OFFSET %d`, clause, size, offset)
	var offers []models.OfferDetail
	if err := r.db.SelectContext(ctx, &offers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list offers: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM offers o
        JOIN students s ON o.student_id = s.id
        JOIN drives d ON o.drive_id = d.id
        JOIN companies c ON d.company_id = c.id` + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count offers: %w", err)
	}
	return offers, total, nil
}

// ListExpirable returns PENDING offers whose deadline has passed, for the
// background sweep that persists lazy expiry.
func (r *OfferRepository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.Offer, error) {
	query := fmt.Sprintf(`SELECT %s FROM offers WHERE status = 'PENDING' AND expires_at < $1
        ORDER BY expires_at ASC LIMIT %d`, offerColumns, limit)
	var offers []models.Offer
	if err := r.db.SelectContext(ctx, &offers, query, now); err != nil {
		return nil, fmt.Errorf("list expirable offers: %w", err)
	}
	return offers, nil
}
