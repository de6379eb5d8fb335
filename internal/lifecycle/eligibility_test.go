package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseStudent() StudentSnapshot {
	return StudentSnapshot{
		UniversityID: "uni-1",
		DepartmentID: "dept-cse",
		Course:       "B.Tech",
		Batch:        "2026",
		CGPA:         8.2,
		Backlogs:     Backlogs{Current: 0, History: 1},
		Gender:       "FEMALE",
		Verified:     true,
	}
}

func baseCriteria() Criteria {
	return Criteria{
		MinimumCGPA:      7.0,
		AllowedBacklogs:  Backlogs{Current: 0, History: 2},
		Courses:          []string{"B.Tech", "M.Tech"},
		Departments:      []string{"dept-cse", "dept-ece"},
		Batches:          []string{"2026"},
		GenderPreference: GenderAny,
	}
}

func TestEvaluateAllRulesPass(t *testing.T) {
	result := Evaluate(baseStudent(), baseCriteria())
	require.True(t, result.Eligible)
	assert.Empty(t, result.FailedRules)
}

func TestEvaluateCGPABoundaryIsInclusive(t *testing.T) {
	student := baseStudent()
	criteria := baseCriteria()
	criteria.MinimumCGPA = 7.0

	student.CGPA = 7.0
	require.True(t, Evaluate(student, criteria).Eligible)

	student.CGPA = 6.99
	result := Evaluate(student, criteria)
	require.False(t, result.Eligible)
	assert.Contains(t, result.FailedRules, RuleMinimumCGPA)
}

func TestEvaluateEmptySetsMeanNoRestriction(t *testing.T) {
	student := baseStudent()
	student.Course = "MBA"
	student.DepartmentID = "dept-unknown"
	student.Batch = "1999"

	criteria := baseCriteria()
	criteria.Courses = nil
	criteria.Departments = nil
	criteria.Batches = nil

	result := Evaluate(student, criteria)
	require.True(t, result.Eligible, "empty restriction sets must never reject")
}

func TestEvaluateCollectsEveryFailedRule(t *testing.T) {
	student := baseStudent()
	student.CGPA = 5.0
	student.Backlogs = Backlogs{Current: 3, History: 6}
	student.Course = "BCA"
	student.Batch = "2020"
	student.Gender = "FEMALE"

	criteria := baseCriteria()
	criteria.GenderPreference = GenderMale

	result := Evaluate(student, criteria)
	require.False(t, result.Eligible)
	assert.ElementsMatch(t, []RuleName{
		RuleMinimumCGPA,
		RuleCurrentBacklogs,
		RuleHistoryBacklogs,
		RuleCourse,
		RuleBatch,
		RuleGenderPreference,
	}, result.FailedRules)
}

func TestEvaluateGenderPreference(t *testing.T) {
	tests := []struct {
		name       string
		preference GenderPreference
		gender     string
		eligible   bool
	}{
		{"any accepts male", GenderAny, "MALE", true},
		{"any accepts female", GenderAny, "FEMALE", true},
		{"empty preference accepts all", "", "MALE", true},
		{"female only rejects male", GenderFemale, "MALE", false},
		{"female only accepts female", GenderFemale, "FEMALE", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			student := baseStudent()
			student.Gender = tc.gender
			criteria := baseCriteria()
			criteria.GenderPreference = tc.preference

			result := Evaluate(student, criteria)
			assert.Equal(t, tc.eligible, result.Eligible)
			if !tc.eligible {
				assert.Contains(t, result.FailedRules, RuleGenderPreference)
			}
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	student := baseStudent()
	student.CGPA = 6.5
	criteria := baseCriteria()

	first := Evaluate(student, criteria)
	second := Evaluate(student, criteria)
	assert.Equal(t, first, second)
}
