package models

import (
	"time"

	"github.com/campushire/placement-api/internal/lifecycle"
)

// Offer is a compensation proposal issued to a student after selection. An
// offer only exists for an application in SELECTED status and is owned by
// that application for its lifetime.
type Offer struct {
	ID            string                `db:"id" json:"id"`
	ApplicationID string                `db:"application_id" json:"application_id"`
	StudentID     string                `db:"student_id" json:"student_id"`
	DriveID       string                `db:"drive_id" json:"drive_id"`
	Status        lifecycle.OfferStatus `db:"status" json:"status"`
	Package       float64               `db:"package" json:"package"`
	Currency      string                `db:"currency" json:"currency"`
	JobRole       string                `db:"job_role" json:"job_role"`
	IssuedBy      string                `db:"issued_by" json:"issued_by"`
	IssuedAt      time.Time             `db:"issued_at" json:"issued_at"`
	ExpiresAt     time.Time             `db:"expires_at" json:"expires_at"`
	// CounterAmount and CounterNote hold the student's counter-proposal
	// when the offer was countered.
	CounterAmount   *float64   `db:"counter_amount" json:"counter_amount,omitempty"`
	CounterNote     *string    `db:"counter_note" json:"counter_note,omitempty"`
	ResponseMessage *string    `db:"response_message" json:"response_message,omitempty"`
	RespondedAt     *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// OfferDetail enriches Offer with student and drive context.
type OfferDetail struct {
	Offer
	StudentName string `db:"student_name" json:"student_name"`
	DriveTitle  string `db:"drive_title" json:"drive_title"`
	CompanyName string `db:"company_name" json:"company_name"`
}

// OfferFilter constrains offer listings.
type OfferFilter struct {
	StudentID     string
	DriveID       string
	ApplicationID string
	Status        lifecycle.OfferStatus
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
