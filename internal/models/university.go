package models

import "time"

// University represents a partner institution.
type University struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	City      string    `db:"city" json:"city"`
	State     string    `db:"state" json:"state"`
	Website   string    `db:"website" json:"website"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Department is an academic unit within a university.
type Department struct {
	ID           string    `db:"id" json:"id"`
	UniversityID string    `db:"university_id" json:"university_id"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// UniversityFilter constrains university listings.
type UniversityFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// PlacementSummary aggregates placement outcomes for a university or
// company dashboard. Derived by SQL aggregation, never stored.
type PlacementSummary struct {
	TotalStudents     int     `db:"total_students" json:"total_students"`
	PlacedStudents    int     `db:"placed_students" json:"placed_students"`
	TotalDrives       int     `db:"total_drives" json:"total_drives"`
	ActiveDrives      int     `db:"active_drives" json:"active_drives"`
	TotalApplications int     `db:"total_applications" json:"total_applications"`
	OffersAccepted    int     `db:"offers_accepted" json:"offers_accepted"`
	AveragePackage    float64 `db:"average_package" json:"average_package"`
	HighestPackage    float64 `db:"highest_package" json:"highest_package"`
}
