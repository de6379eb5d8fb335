package models

import "time"

// Company represents a recruiting organisation.
type Company struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Industry    string    `db:"industry" json:"industry"`
	Website     string    `db:"website" json:"website"`
	Description string    `db:"description" json:"description"`
	City        string    `db:"city" json:"city"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// HiringSummary aggregates a company's recruiting outcomes across all of
// its drives. Computed from live rows on every read.
type HiringSummary struct {
	TotalDrives       int     `db:"total_drives" json:"total_drives"`
	ActiveDrives      int     `db:"active_drives" json:"active_drives"`
	TotalApplications int     `db:"total_applications" json:"total_applications"`
	OffersIssued      int     `db:"offers_issued" json:"offers_issued"`
	OffersAccepted    int     `db:"offers_accepted" json:"offers_accepted"`
	StudentsHired     int     `db:"students_hired" json:"students_hired"`
	AveragePackage    float64 `db:"average_package" json:"average_package"`
	HighestPackage    float64 `db:"highest_package" json:"highest_package"`
}

// CompanyFilter constrains company listings.
type CompanyFilter struct {
	Search    string
	Industry  string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
