package models

import "time"

// ResumeMatchResult is the reshaped reply of a resume vs job-description
// analysis. The provider's JSON is parsed into this structure and returned
// verbatim to the caller; nothing here feeds lifecycle decisions.
type ResumeMatchResult struct {
	CompatibilityScore float64  `json:"compatibility_score"`
	KeywordMatches     []string `json:"keyword_matches"`
	MissingKeywords    []string `json:"missing_keywords"`
	Strengths          []string `json:"strengths"`
	Gaps               []string `json:"gaps"`
	Recommendations    []string `json:"recommendations"`
	Summary            string   `json:"summary"`
	Reasoning          string   `json:"reasoning"`
}

// CandidateScreeningResult annotates one candidate with an advisory fit
// score for a drive.
type CandidateScreeningResult struct {
	StudentID   string    `json:"student_id"`
	FitScore    float64   `json:"fit_score"`
	Reasons     []string  `json:"reasons"`
	GeneratedAt time.Time `json:"generated_at"`
}

// RecommendationResult carries generated recommendation text for a student.
type RecommendationResult struct {
	StudentID   string    `json:"student_id"`
	Text        string    `json:"text"`
	Highlights  []string  `json:"highlights"`
	GeneratedAt time.Time `json:"generated_at"`
}
