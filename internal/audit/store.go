// Package audit persists batch results and per-record decisions with
// canonical digests so stored outcomes can be verified later.
package audit

// Store is the audit ledger. PutRun must persist the batch and its decisions
// atomically.
type Store interface {
	PutRun(batch BatchRecord, decisions []DecisionRecord) error
	GetBatch(batchID string) (BatchRecord, bool)
	ListBatches(limit int) ([]BatchRecord, error)
	ListDecisions(batchID string) ([]DecisionRecord, error)
}

// BatchRecord is the stored batch-level summary of one pipeline run.
type BatchRecord struct {
	BatchID       string
	ExecutionID   string
	CreatedAt     string
	TotalRecords  int
	SafeCount     int
	ReviewCount   int
	EscalateCount int
	NoActionCount int
	QualityRate   float64
	AverageDQS    float64
	Success       bool
	BodyJSON      []byte
	BodyDigest    string
}

// DecisionRecord is one stored per-record decision.
type DecisionRecord struct {
	BatchID             string
	RecordID            string
	Action              string
	DQSFinal            float64
	ConfidenceBand      string
	PrimaryReason       string
	RequiresHumanReview bool
	CreatedAt           string
	BodyJSON            []byte
	BodyDigest          string
}
