// Package stage defines the result contract every pipeline stage honors.
package stage

import (
	"time"

	"github.com/davidahmann/txnscore/pkg/types"
)

// Issue is a structured problem reported by a stage.
type Issue struct {
	Type     string `json:"type"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity,omitempty"`
}

// Result is what every stage invocation returns. It is produced fresh per
// call and never shared across records or runs.
type Result struct {
	StageID         int
	StageName       string
	Status          types.StageStatus
	ChecksPerformed int
	ChecksPassed    int
	Issues          []Issue
	Warnings        []string
	Details         map[string]any
	CanContinue     bool
	Duration        time.Duration
	StartTime       time.Time
	EndTime         time.Time
}

// Clock abstracts time for deterministic tests.
type Clock func() time.Time

// Builder accumulates checks and issues while a stage runs and stamps the
// timing fields when finished.
type Builder struct {
	result Result
	now    Clock
}

func NewBuilder(id int, name string, now Clock) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{
		result: Result{
			StageID:     id,
			StageName:   name,
			Status:      types.StagePassed,
			CanContinue: true,
			StartTime:   now(),
			Details:     map[string]any{},
		},
		now: now,
	}
}

func (b *Builder) Check(passed bool) {
	b.result.ChecksPerformed++
	if passed {
		b.result.ChecksPassed++
	}
}

func (b *Builder) AddIssue(issue Issue) {
	b.result.Issues = append(b.result.Issues, issue)
}

func (b *Builder) AddWarning(msg string) {
	b.result.Warnings = append(b.result.Warnings, msg)
}

func (b *Builder) Detail(key string, value any) {
	b.result.Details[key] = value
}

// Finish stamps the end time and returns the completed result.
func (b *Builder) Finish(status types.StageStatus, canContinue bool) Result {
	b.result.Status = status
	b.result.CanContinue = canContinue
	b.result.EndTime = b.now()
	b.result.Duration = b.result.EndTime.Sub(b.result.StartTime)
	return b.result
}

// Fail finishes the stage as FAILED with a blocking issue.
func (b *Builder) Fail(issue Issue) Result {
	b.AddIssue(issue)
	return b.Finish(types.StageFailed, false)
}

// Summary converts a Result to its serializable form.
func (r Result) Summary() types.StageSummary {
	return types.StageSummary{
		StageID:         r.StageID,
		StageName:       r.StageName,
		Status:          r.Status,
		ChecksPerformed: r.ChecksPerformed,
		ChecksPassed:    r.ChecksPassed,
		IssuesCount:     len(r.Issues),
		WarningsCount:   len(r.Warnings),
		Details:         r.Details,
		CanContinue:     r.CanContinue,
	}
}

// Timing converts a Result to its timing record.
func (r Result) Timing() types.StageTiming {
	return types.StageTiming{
		StageID:    r.StageID,
		StageName:  r.StageName,
		Status:     r.Status,
		DurationMS: types.Score(float64(r.Duration) / float64(time.Millisecond)),
		StartTime:  r.StartTime.UTC().Format(time.RFC3339Nano),
		EndTime:    r.EndTime.UTC().Format(time.RFC3339Nano),
	}
}
