// Package lifecycle implements the placement lifecycle engine: eligibility
// evaluation, the application and offer state machines, and drive phase and
// statistics derivation. It is pure domain logic with no transport or
// storage dependencies; services orchestrate it against repositories.
package lifecycle

// GenderPreference restricts a drive to a gender, or accepts any.
type GenderPreference string

const (
	GenderAny    GenderPreference = "ANY"
	GenderMale   GenderPreference = "MALE"
	GenderFemale GenderPreference = "FEMALE"
)

// RuleName identifies a single eligibility rule for failure reporting.
type RuleName string

const (
	RuleMinimumCGPA      RuleName = "minimum_cgpa"
	RuleCurrentBacklogs  RuleName = "current_backlogs"
	RuleHistoryBacklogs  RuleName = "history_backlogs"
	RuleCourse           RuleName = "course"
	RuleDepartment       RuleName = "department"
	RuleBatch            RuleName = "batch"
	RuleGenderPreference RuleName = "gender_preference"
)

// Backlogs groups current and historical backlog counts.
type Backlogs struct {
	Current int `json:"current"`
	History int `json:"history"`
}

// StudentSnapshot is the read-only academic view of a student at decision
// time. The engine never mutates it.
type StudentSnapshot struct {
	UniversityID string   `json:"university_id"`
	DepartmentID string   `json:"department_id"`
	Course       string   `json:"course"`
	Batch        string   `json:"batch"`
	CGPA         float64  `json:"cgpa"`
	Backlogs     Backlogs `json:"backlogs"`
	Gender       string   `json:"gender"`
	Verified     bool     `json:"verified"`
}

// Criteria holds a drive's eligibility predicates. Empty set-typed fields
// mean "no restriction", never "excludes everyone".
type Criteria struct {
	MinimumCGPA      float64          `json:"minimum_cgpa"`
	AllowedBacklogs  Backlogs         `json:"allowed_backlogs"`
	Courses          []string         `json:"courses,omitempty"`
	Departments      []string         `json:"departments,omitempty"`
	Batches          []string         `json:"batches,omitempty"`
	GenderPreference GenderPreference `json:"gender_preference"`
}

// EligibilityResult reports the outcome of an evaluation. FailedRules names
// every violated rule so callers can explain "why am I ineligible" instead
// of returning an opaque boolean.
type EligibilityResult struct {
	Eligible    bool       `json:"eligible"`
	FailedRules []RuleName `json:"failed_rules,omitempty"`
}

// Evaluate checks the student snapshot against the drive criteria. It is
// deterministic and side-effect free; all rules are evaluated independently
// and every failure is collected.
func Evaluate(student StudentSnapshot, criteria Criteria) EligibilityResult {
	var failed []RuleName

	if student.CGPA < criteria.MinimumCGPA {
		failed = append(failed, RuleMinimumCGPA)
	}
	if student.Backlogs.Current > criteria.AllowedBacklogs.Current {
		failed = append(failed, RuleCurrentBacklogs)
	}
	if student.Backlogs.History > criteria.AllowedBacklogs.History {
		failed = append(failed, RuleHistoryBacklogs)
	}
	if len(criteria.Courses) > 0 && !contains(criteria.Courses, student.Course) {
		failed = append(failed, RuleCourse)
	}
	if len(criteria.Departments) > 0 && !contains(criteria.Departments, student.DepartmentID) {
		failed = append(failed, RuleDepartment)
	}
	if len(criteria.Batches) > 0 && !contains(criteria.Batches, student.Batch) {
		failed = append(failed, RuleBatch)
	}
	if criteria.GenderPreference != "" && criteria.GenderPreference != GenderAny &&
		string(criteria.GenderPreference) != student.Gender {
		failed = append(failed, RuleGenderPreference)
	}

	return EligibilityResult{Eligible: len(failed) == 0, FailedRules: failed}
}

func contains(set []string, value string) bool {
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}
