package models

import (
	"time"

	"github.com/campushire/placement-api/internal/lifecycle"
)

// VerificationStatus tracks profile verification by the university.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// Student represents a student profile registered under a university.
type Student struct {
	ID                 string             `db:"id" json:"id"`
	UserID             string             `db:"user_id" json:"user_id"`
	FirstName          string             `db:"first_name" json:"first_name"`
	LastName           string             `db:"last_name" json:"last_name"`
	Email              string             `db:"email" json:"email"`
	Phone              string             `db:"phone" json:"phone"`
	Gender             string             `db:"gender" json:"gender"`
	DateOfBirth        *time.Time         `db:"date_of_birth" json:"date_of_birth,omitempty"`
	UniversityID       string             `db:"university_id" json:"university_id"`
	DepartmentID       string             `db:"department_id" json:"department_id"`
	Course             string             `db:"course" json:"course"`
	Specialization     string             `db:"specialization" json:"specialization"`
	Batch              string             `db:"batch" json:"batch"`
	RollNumber         string             `db:"roll_number" json:"roll_number"`
	CGPA               float64            `db:"cgpa" json:"cgpa"`
	CurrentBacklogs    int                `db:"current_backlogs" json:"current_backlogs"`
	HistoryBacklogs    int                `db:"history_backlogs" json:"history_backlogs"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verification_status"`
	Placed             bool               `db:"placed" json:"placed"`
	PlacedCompanyID    *string            `db:"placed_company_id" json:"placed_company_id,omitempty"`
	PlacedPackage      *float64           `db:"placed_package" json:"placed_package,omitempty"`
	PlacedAt           *time.Time         `db:"placed_at" json:"placed_at,omitempty"`
	Active             bool               `db:"active" json:"active"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// Snapshot converts the profile into the read-only evaluation input.
func (s *Student) Snapshot() lifecycle.StudentSnapshot {
	return lifecycle.StudentSnapshot{
		UniversityID: s.UniversityID,
		DepartmentID: s.DepartmentID,
		Course:       s.Course,
		Batch:        s.Batch,
		CGPA:         s.CGPA,
		Backlogs:     lifecycle.Backlogs{Current: s.CurrentBacklogs, History: s.HistoryBacklogs},
		Gender:       s.Gender,
		Verified:     s.VerificationStatus == VerificationVerified,
	}
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	UniversityID string
	DepartmentID string
	Course       string
	Batch        string
	MinCGPA      *float64
	Placed       *bool
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// ResumeDocument is one stored resume version. At most one version per
// student carries Active=true, enforced at write time.
type ResumeDocument struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Version   int       `db:"version" json:"version"`
	FileName  string    `db:"file_name" json:"file_name"`
	FilePath  string    `db:"file_path" json:"-"`
	SizeBytes int64     `db:"size_bytes" json:"size_bytes"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
