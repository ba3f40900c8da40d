package model

import (
	"strings"
	"time"
)

type Verdict string

const (
	VerdictPending             Verdict = "PENDING"
	VerdictAccepted            Verdict = "ACCEPTED"
	VerdictWrongAnswer         Verdict = "WRONG_ANSWER"
	VerdictTimeLimitExceeded   Verdict = "TIME_LIMIT_EXCEEDED"
	VerdictRuntimeError        Verdict = "RUNTIME_ERROR"
	VerdictCompilationError    Verdict = "COMPILATION_ERROR"
	VerdictMemoryLimitExceeded Verdict = "MEMORY_LIMIT_EXCEEDED"
)

// ParseVerdict normalizes s and reports whether it is a final (non-pending) judge verdict.
func ParseVerdict(s string) (Verdict, bool) {
	v := Verdict(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case VerdictAccepted, VerdictWrongAnswer, VerdictTimeLimitExceeded,
		VerdictRuntimeError, VerdictCompilationError, VerdictMemoryLimitExceeded:
		return v, true
	}
	return "", false
}

type Submission struct {
	ID            string     `json:"id"`
	PlayerID      string     `json:"player_id"`
	ProblemID     string     `json:"problem_id"`
	ContestID     *string    `json:"contest_id,omitempty"`
	Language      string     `json:"language"`
	Code          string     `json:"code,omitempty"`
	Verdict       Verdict    `json:"verdict"`
	WrongAttempts int        `json:"wrong_attempts"`
	PointsEarned  int        `json:"points_earned"`
	RuntimeMs     *int       `json:"runtime_ms,omitempty"`
	MemoryMb      *float64   `json:"memory_mb,omitempty"`
	Credited      bool       `json:"credited"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	JudgedAt      *time.Time `json:"judged_at,omitempty"`
}

// SubmissionStats aggregates a player's submission verdicts.
type SubmissionStats struct {
	Total       int `json:"total_submissions"`
	Accepted    int `json:"accepted"`
	WrongAnswer int `json:"wrong_answer"`
}

// JudgeRequest is pushed to the judge queue when a submission is created.
type JudgeRequest struct {
	SubmissionID  string `json:"submission_id"`
	ProblemID     string `json:"problem_id"`
	Language      string `json:"language"`
	Code          string `json:"code"`
	TimeLimitMs   int    `json:"time_limit_ms"`
	MemoryLimitMb int    `json:"memory_limit_mb"`
}

// JudgeResult is the verdict the external judge returns for a submission.
type JudgeResult struct {
	SubmissionID string   `json:"submission_id"`
	Verdict      string   `json:"verdict"`
	RuntimeMs    *int     `json:"runtime_ms,omitempty"`
	MemoryMb     *float64 `json:"memory_mb,omitempty"`
	// Attempts counts failed applications by the result worker.
	Attempts int `json:"attempts,omitempty"`
}
