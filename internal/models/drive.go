package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/campushire/placement-api/internal/lifecycle"
)

// DriveStatus is the stored lifecycle state of a placement drive. The
// registration window and timeline phase are derived from the timeline on
// read, never stored alongside.
type DriveStatus string

const (
	DriveStatusDraft     DriveStatus = "DRAFT"
	DriveStatusActive    DriveStatus = "ACTIVE"
	DriveStatusCompleted DriveStatus = "COMPLETED"
	DriveStatusCancelled DriveStatus = "CANCELLED"
)

// ApprovalStatus tracks university sign-off on a drive.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Drive represents a company's recruitment event at a university.
type Drive struct {
	ID           string `db:"id" json:"id"`
	Title        string `db:"title" json:"title"`
	CompanyID    string `db:"company_id" json:"company_id"`
	UniversityID string `db:"university_id" json:"university_id"`

	JobRole        string         `db:"job_role" json:"job_role"`
	JobDescription string         `db:"job_description" json:"job_description"`
	JobType        string         `db:"job_type" json:"job_type"`
	WorkMode       string         `db:"work_mode" json:"work_mode"`
	SkillsRequired pq.StringArray `db:"skills_required" json:"skills_required"`
	Locations      pq.StringArray `db:"locations" json:"locations"`

	SalaryMin float64 `db:"salary_min" json:"salary_min"`
	SalaryMax float64 `db:"salary_max" json:"salary_max"`
	Currency  string  `db:"currency" json:"currency"`

	MinimumCGPA            float64        `db:"minimum_cgpa" json:"minimum_cgpa"`
	AllowedCurrentBacklogs int            `db:"allowed_current_backlogs" json:"allowed_current_backlogs"`
	AllowedHistoryBacklogs int            `db:"allowed_history_backlogs" json:"allowed_history_backlogs"`
	Courses                pq.StringArray `db:"courses" json:"courses"`
	Departments            pq.StringArray `db:"departments" json:"departments"`
	Batches                pq.StringArray `db:"batches" json:"batches"`
	GenderPreference       string         `db:"gender_preference" json:"gender_preference"`

	RegistrationStart time.Time  `db:"registration_start" json:"registration_start"`
	RegistrationEnd   time.Time  `db:"registration_end" json:"registration_end"`
	DriveDate         time.Time  `db:"drive_date" json:"drive_date"`
	ResultDate        *time.Time `db:"result_date" json:"result_date,omitempty"`

	Status         DriveStatus    `db:"status" json:"status"`
	ApprovalStatus ApprovalStatus `db:"approval_status" json:"approval_status"`
	ApprovalNotes  *string        `db:"approval_notes" json:"approval_notes,omitempty"`
	ApprovedBy     *string        `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt     *time.Time     `db:"approved_at" json:"approved_at,omitempty"`

	AllowSelfRegistration bool `db:"allow_self_registration" json:"allow_self_registration"`
	SendNotifications     bool `db:"send_notifications" json:"send_notifications"`

	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Criteria assembles the eligibility predicates for the evaluator.
func (d *Drive) Criteria() lifecycle.Criteria {
	return lifecycle.Criteria{
		MinimumCGPA:      d.MinimumCGPA,
		AllowedBacklogs:  lifecycle.Backlogs{Current: d.AllowedCurrentBacklogs, History: d.AllowedHistoryBacklogs},
		Courses:          d.Courses,
		Departments:      d.Departments,
		Batches:          d.Batches,
		GenderPreference: lifecycle.GenderPreference(d.GenderPreference),
	}
}

// TimelineView assembles the timeline for phase derivation.
func (d *Drive) TimelineView() lifecycle.Timeline {
	return lifecycle.Timeline{
		RegistrationStart: d.RegistrationStart,
		RegistrationEnd:   d.RegistrationEnd,
		DriveDate:         d.DriveDate,
		ResultDate:        d.ResultDate,
	}
}

// DriveDetail enriches Drive with derived phase information and names.
type DriveDetail struct {
	Drive
	CompanyName       string                      `db:"company_name" json:"company_name"`
	UniversityName    string                      `db:"university_name" json:"university_name"`
	Phase             lifecycle.DrivePhase        `db:"-" json:"phase"`
	RegistrationPhase lifecycle.RegistrationPhase `db:"-" json:"registration_phase"`
}

// DriveFilter constrains drive listings.
type DriveFilter struct {
	UniversityID   string
	CompanyID      string
	Status         DriveStatus
	ApprovalStatus ApprovalStatus
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// DriveCandidate is one entry on a drive's eligible-student roster. The AI
// fields are advisory annotations from the assistance service; they never
// influence eligibility or lifecycle transitions.
type DriveCandidate struct {
	ID            string         `db:"id" json:"id"`
	DriveID       string         `db:"drive_id" json:"drive_id"`
	StudentID     string         `db:"student_id" json:"student_id"`
	Invited       bool           `db:"invited" json:"invited"`
	InvitedAt     *time.Time     `db:"invited_at" json:"invited_at,omitempty"`
	ManuallyAdded bool           `db:"manually_added" json:"manually_added"`
	AddedBy       *string        `db:"added_by" json:"added_by,omitempty"`
	AIScore       *float64       `db:"ai_score" json:"ai_score,omitempty"`
	AIReasons     pq.StringArray `db:"ai_reasons" json:"ai_reasons,omitempty"`
	AIAnalyzedAt  *time.Time     `db:"ai_analyzed_at" json:"ai_analyzed_at,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}
