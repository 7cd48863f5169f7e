package types

// Action is the final per-record outcome of a pipeline run.
type Action string

const (
	ActionSafeToUse      Action = "SAFE_TO_USE"
	ActionReviewRequired Action = "REVIEW_REQUIRED"
	ActionEscalate       Action = "ESCALATE"
	ActionNoAction       Action = "NO_ACTION"
)

// ConfidenceBand buckets a 0-100 confidence score.
type ConfidenceBand string

const (
	ConfidenceLow    ConfidenceBand = "LOW"
	ConfidenceMedium ConfidenceBand = "MEDIUM"
	ConfidenceHigh   ConfidenceBand = "HIGH"
)

// Decision is the final, auditable outcome for one record.
type Decision struct {
	RecordID            string            `json:"record_id"`
	Action              Action            `json:"action"`
	DQSFinal            Score             `json:"dqs_final"`
	ConfidenceBand      ConfidenceBand    `json:"confidence_band"`
	PrimaryReason       string            `json:"primary_reason"`
	SupportingFactors   []string          `json:"supporting_factors"`
	DecisionTimestamp   string            `json:"decision_timestamp"`
	StageVotes          map[string]string `json:"stage_votes"`
	RequiresHumanReview bool              `json:"requires_human_review"`
	EscalationReason    string            `json:"escalation_reason,omitempty"`
}

// BatchDecision is the batch-level decision summary.
type BatchDecision struct {
	BatchID             string     `json:"batch_id"`
	Timestamp           string     `json:"timestamp"`
	TotalRecords        int        `json:"total_records"`
	SafeCount           int        `json:"safe_count"`
	ReviewCount         int        `json:"review_count"`
	EscalateCount       int        `json:"escalate_count"`
	NoActionCount       int        `json:"no_action_count"`
	OverallQualityRate  Score      `json:"overall_quality_rate"`
	RequiresHumanReview bool       `json:"requires_human_review"`
	Decisions           []Decision `json:"decisions"`
}
