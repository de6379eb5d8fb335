package models

import (
	"encoding/json"
	"time"

	"github.com/campushire/placement-api/internal/lifecycle"
)

// Application is a student's formal entry into a drive's selection process.
type Application struct {
	ID        string                      `db:"id" json:"id"`
	StudentID string                      `db:"student_id" json:"student_id"`
	DriveID   string                      `db:"drive_id" json:"drive_id"`
	Status    lifecycle.ApplicationStatus `db:"status" json:"status"`
	// History and RoundOutcomes are stored as JSONB; history is append-only.
	History       []byte     `db:"history" json:"-"`
	RoundOutcomes []byte     `db:"round_outcomes" json:"-"`
	WithdrawnBy   *string    `db:"withdrawn_by" json:"withdrawn_by,omitempty"`
	WithdrawnAt   *time.Time `db:"withdrawn_at" json:"withdrawn_at,omitempty"`
	WithdrawalReason *string `db:"withdrawal_reason" json:"withdrawal_reason,omitempty"`
	AppliedAt     time.Time  `db:"applied_at" json:"applied_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// StatusHistory decodes the append-only audit trail.
func (a *Application) StatusHistory() ([]lifecycle.StatusHistoryEntry, error) {
	if len(a.History) == 0 {
		return nil, nil
	}
	var entries []lifecycle.StatusHistoryEntry
	if err := json.Unmarshal(a.History, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AppendHistory adds an immutable entry and re-encodes the trail.
func (a *Application) AppendHistory(entry lifecycle.StatusHistoryEntry) error {
	entries, err := a.StatusHistory()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	encoded, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	a.History = encoded
	return nil
}

// RoundOutcome records one selection-round result for an application.
type RoundOutcome struct {
	Round      int       `json:"round"`
	Name       string    `json:"name"`
	Outcome    string    `json:"outcome"`
	Notes      string    `json:"notes,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	RecordedBy string    `json:"recorded_by"`
}

// Rounds decodes the recorded selection-round outcomes.
func (a *Application) Rounds() ([]RoundOutcome, error) {
	if len(a.RoundOutcomes) == 0 {
		return nil, nil
	}
	var rounds []RoundOutcome
	if err := json.Unmarshal(a.RoundOutcomes, &rounds); err != nil {
		return nil, err
	}
	return rounds, nil
}

// AppendRound records a selection-round outcome.
func (a *Application) AppendRound(outcome RoundOutcome) error {
	rounds, err := a.Rounds()
	if err != nil {
		return err
	}
	rounds = append(rounds, outcome)
	encoded, err := json.Marshal(rounds)
	if err != nil {
		return err
	}
	a.RoundOutcomes = encoded
	return nil
}

// ApplicationDetail enriches Application with student and drive context.
type ApplicationDetail struct {
	Application
	StudentName string `db:"student_name" json:"student_name"`
	DriveTitle  string `db:"drive_title" json:"drive_title"`
	CompanyName string `db:"company_name" json:"company_name"`
}

// ApplicationFilter constrains application listings.
type ApplicationFilter struct {
	StudentID string
	DriveID   string
	Status    lifecycle.ApplicationStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
