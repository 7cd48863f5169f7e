package audit

import (
	"encoding/json"
	"fmt"

	"github.com/davidahmann/txnscore/internal/canon"
	"github.com/davidahmann/txnscore/pkg/types"
)

// BuildRecords converts a pipeline result into its stored audit records,
// computing a canonical digest per record so tampering is detectable.
func BuildRecords(result types.PipelineResult) (BatchRecord, []DecisionRecord, error) {
	var batchTimestamp string
	if len(result.Decisions) > 0 {
		batchTimestamp = result.Decisions[0].DecisionTimestamp
	}

	batchView := map[string]any{
		"batch_id":       result.BatchID,
		"execution_id":   result.ExecutionID,
		"total_records":  result.TotalRecords,
		"safe_count":     result.SafeCount,
		"review_count":   result.ReviewCount,
		"escalate_count": result.EscalateCount,
		"rejected_count": result.RejectedCount,
		"quality_rate":   float64(result.QualityRate),
		"average_dqs":    float64(result.AverageDQS),
		"success":        result.Success,
	}
	batchJSON, err := json.Marshal(batchView)
	if err != nil {
		return BatchRecord{}, nil, fmt.Errorf("marshal batch record: %w", err)
	}
	batchDigest, err := canon.Digest(batchView)
	if err != nil {
		return BatchRecord{}, nil, fmt.Errorf("digest batch record: %w", err)
	}

	batch := BatchRecord{
		BatchID:       result.BatchID,
		ExecutionID:   result.ExecutionID,
		CreatedAt:     batchTimestamp,
		TotalRecords:  result.TotalRecords,
		SafeCount:     result.SafeCount,
		ReviewCount:   result.ReviewCount,
		EscalateCount: result.EscalateCount,
		NoActionCount: result.RejectedCount,
		QualityRate:   float64(result.QualityRate),
		AverageDQS:    float64(result.AverageDQS),
		Success:       result.Success,
		BodyJSON:      batchJSON,
		BodyDigest:    batchDigest,
	}

	decisions := make([]DecisionRecord, 0, len(result.Decisions))
	for _, d := range result.Decisions {
		view := map[string]any{
			"batch_id":              result.BatchID,
			"record_id":             d.RecordID,
			"action":                string(d.Action),
			"dqs_final":             float64(d.DQSFinal),
			"confidence_band":       string(d.ConfidenceBand),
			"primary_reason":        d.PrimaryReason,
			"supporting_factors":    d.SupportingFactors,
			"stage_votes":           d.StageVotes,
			"requires_human_review": d.RequiresHumanReview,
			"escalation_reason":     d.EscalationReason,
		}
		body, err := json.Marshal(view)
		if err != nil {
			return BatchRecord{}, nil, fmt.Errorf("marshal decision %s: %w", d.RecordID, err)
		}
		digest, err := canon.Digest(view)
		if err != nil {
			return BatchRecord{}, nil, fmt.Errorf("digest decision %s: %w", d.RecordID, err)
		}
		decisions = append(decisions, DecisionRecord{
			BatchID:             result.BatchID,
			RecordID:            d.RecordID,
			Action:              string(d.Action),
			DQSFinal:            float64(d.DQSFinal),
			ConfidenceBand:      string(d.ConfidenceBand),
			PrimaryReason:       d.PrimaryReason,
			RequiresHumanReview: d.RequiresHumanReview,
			CreatedAt:           d.DecisionTimestamp,
			BodyJSON:            body,
			BodyDigest:          digest,
		})
	}
	return batch, decisions, nil
}

// Verify recomputes a stored decision's digest from its body. It returns
// false when the body no longer matches the recorded digest.
func Verify(rec DecisionRecord) (bool, error) {
	var view map[string]any
	if err := json.Unmarshal(rec.BodyJSON, &view); err != nil {
		return false, fmt.Errorf("unmarshal decision body: %w", err)
	}
	digest, err := canon.Digest(view)
	if err != nil {
		return false, err
	}
	return digest == rec.BodyDigest, nil
}
