package types

// StageStatus is the outcome vocabulary every pipeline stage reports.
type StageStatus string

const (
	StagePassed   StageStatus = "PASSED"
	StageDegraded StageStatus = "DEGRADED"
	StageFailed   StageStatus = "FAILED"
)

// StageTiming records when a stage ran and how long it took.
type StageTiming struct {
	StageID    int         `json:"stage_id"`
	StageName  string      `json:"stage_name"`
	Status     StageStatus `json:"status"`
	DurationMS Score       `json:"duration_ms"`
	StartTime  string      `json:"start_time"`
	EndTime    string      `json:"end_time"`
}

// StageSummary is the serializable view of one stage's result.
type StageSummary struct {
	StageID         int            `json:"stage_id"`
	StageName       string         `json:"stage_name"`
	Status          StageStatus    `json:"status"`
	ChecksPerformed int            `json:"checks_performed"`
	ChecksPassed    int            `json:"checks_passed"`
	IssuesCount     int            `json:"issues_count"`
	WarningsCount   int            `json:"warnings_count"`
	Details         map[string]any `json:"details,omitempty"`
	CanContinue     bool           `json:"can_continue"`
}

// PipelineResult is the complete outcome of one run over a batch.
type PipelineResult struct {
	BatchID         string                  `json:"batch_id"`
	ExecutionID     string                  `json:"execution_id"`
	TotalRecords    int                     `json:"total_records"`
	SafeCount       int                     `json:"safe_count"`
	ReviewCount     int                     `json:"review_count"`
	EscalateCount   int                     `json:"escalate_count"`
	RejectedCount   int                     `json:"rejected_count"`
	AverageDQS      Score                   `json:"average_dqs"`
	QualityRate     Score                   `json:"quality_rate"`
	TotalDurationMS Score                   `json:"total_duration_ms"`
	StageTimings    []StageTiming           `json:"stage_timings"`
	StageResults    map[string]StageSummary `json:"stage_results"`
	Decisions       []Decision              `json:"decisions"`
	DecisionReport  string                  `json:"decision_report"`
	ExecutionReport string                  `json:"execution_report"`
	Errors          []string                `json:"errors"`
	Success         bool                    `json:"success"`
}
