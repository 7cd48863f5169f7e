// Package decision implements the terminal gate: a deterministic,
// priority-ordered cascade from accumulated quality signals to one of four
// auditable actions per record.
package decision

import (
	"fmt"
	"strings"
	"time"

	"github.com/davidahmann/txnscore/internal/aggregate"
	"github.com/davidahmann/txnscore/internal/policy"
	"github.com/davidahmann/txnscore/internal/stage"
	"github.com/davidahmann/txnscore/pkg/types"
)

const (
	StageID   = 7
	StageName = "decision_gate"
)

// Payload is a record's accumulated quality signals at decision time. It is
// assembled by the orchestrator from earlier stage outputs and read-only here.
type Payload struct {
	RecordID           string
	IsValid            bool
	DQSBase            float64
	SemanticViolations []string
	IsAnomaly          bool
	AnomalyScore       float64
	AnomalyFlags       []string
}

// Decide makes the final decision for every record and assembles the batch
// summary. A record with no confidence assessment is decided with a MEDIUM
// default and a DECISION_ERROR issue; the gate never abandons a record.
func Decide(payloads []Payload, confidences []aggregate.Confidence, batchID string, t policy.Thresholds, now stage.Clock) (types.BatchDecision, stage.Result) {
	b := stage.NewBuilder(StageID, StageName, now)
	clock := now
	if clock == nil {
		clock = time.Now
	}

	confByID := make(map[string]aggregate.Confidence, len(confidences))
	for _, c := range confidences {
		confByID[c.RecordID] = c
	}

	bd := types.BatchDecision{
		BatchID:      batchID,
		Timestamp:    clock().UTC().Format(time.RFC3339),
		TotalRecords: len(payloads),
		Decisions:    make([]types.Decision, 0, len(payloads)),
	}

	if len(payloads) == 0 {
		b.Check(true)
		b.Detail("message", "no records to decide")
		return bd, b.Finish(types.StagePassed, true)
	}

	b.Check(true) // per-record decision pass
	for _, p := range payloads {
		band := types.ConfidenceMedium
		confScore := 50.0
		if c, ok := confByID[p.RecordID]; ok {
			band = c.Band
			confScore = c.Score
		} else {
			b.AddIssue(stage.Issue{
				Type:     "DECISION_ERROR",
				Code:     "MISSING_CONFIDENCE",
				Message:  fmt.Sprintf("record %s: no confidence assessment, defaulting to MEDIUM", p.RecordID),
				Severity: "warning",
			})
		}

		action, reason, factors, escalation := determineAction(p, band, confScore, t)

		votes := map[string]string{
			"structural_validation": passFail(p.IsValid),
			"field_compliance":      passFail(p.DQSBase >= t.DQSBorderline),
			"semantic_validation":   passFail(len(p.SemanticViolations) == 0),
			"anomaly_detection":     flagPass(p.IsAnomaly),
			"signal_aggregation":    string(band),
		}

		bd.Decisions = append(bd.Decisions, types.Decision{
			RecordID:            p.RecordID,
			Action:              action,
			DQSFinal:            types.Score(p.DQSBase),
			ConfidenceBand:      band,
			PrimaryReason:       reason,
			SupportingFactors:   factors,
			DecisionTimestamp:   clock().UTC().Format(time.RFC3339),
			StageVotes:          votes,
			RequiresHumanReview: action == types.ActionReviewRequired || action == types.ActionEscalate,
			EscalationReason:    escalation,
		})

		switch action {
		case types.ActionSafeToUse:
			bd.SafeCount++
		case types.ActionReviewRequired:
			bd.ReviewCount++
		case types.ActionEscalate:
			bd.EscalateCount++
		case types.ActionNoAction:
			bd.NoActionCount++
		}
	}

	b.Check(true) // batch summary pass
	bd.OverallQualityRate = types.Score(float64(bd.SafeCount) / float64(bd.TotalRecords) * 100)
	bd.RequiresHumanReview = bd.ReviewCount > 0 || bd.EscalateCount > 0

	b.Detail("batch_id", bd.BatchID)
	b.Detail("safe_count", bd.SafeCount)
	b.Detail("review_count", bd.ReviewCount)
	b.Detail("escalate_count", bd.EscalateCount)
	b.Detail("no_action_count", bd.NoActionCount)
	b.Detail("quality_rate", float64(bd.OverallQualityRate))
	b.Detail("requires_human_review", bd.RequiresHumanReview)

	status := types.StagePassed
	if bd.EscalateCount > 0 {
		status = types.StageDegraded
	}
	return bd, b.Finish(status, true)
}

// determineAction walks the fixed cascade; first match wins.
func determineAction(p Payload, band types.ConfidenceBand, confScore float64, t policy.Thresholds) (types.Action, string, []string, string) {
	// 1. Structurally invalid records were rejected upstream.
	if !p.IsValid {
		return types.ActionNoAction,
			"Record failed structural validation",
			[]string{"Rejected during structural validation"},
			"Structural integrity failure"
	}

	// 2. Critical DQS.
	if p.DQSBase < t.DQSCritical {
		return types.ActionEscalate,
			fmt.Sprintf("Critical DQS score (%.1f)", p.DQSBase),
			[]string{"DQS below critical threshold"},
			"Quality score indicates critical data issues"
	}

	// 3. Very high anomaly score.
	if p.AnomalyScore > t.AnomalyEscalate {
		factors := p.AnomalyFlags
		if len(factors) > 3 {
			factors = factors[:3]
		}
		if len(factors) == 0 {
			factors = []string{"Extreme anomaly score"}
		}
		return types.ActionEscalate,
			fmt.Sprintf("Critical anomaly detected (%.2f)", p.AnomalyScore),
			factors,
			"Very high anomaly score indicates potential fraud or critical data issue"
	}

	// 4. Critical business-rule violations. Guarded on a non-empty violation
	// list so the multi-flag rule below stays reachable.
	if len(p.SemanticViolations) > 0 {
		factors := p.SemanticViolations
		if len(factors) > 3 {
			factors = factors[:3]
		}
		return types.ActionEscalate,
			"Business rules: " + p.SemanticViolations[0],
			factors,
			"Critical business rule violations"
	}

	// 5. Multiple strong anomaly indicators.
	if p.IsAnomaly && len(p.AnomalyFlags) >= t.AnomalyMultiFlagsMin && p.AnomalyScore > t.AnomalyMultiFlag {
		factors := p.AnomalyFlags
		if len(factors) > 4 {
			factors = factors[:4]
		}
		return types.ActionEscalate,
			fmt.Sprintf("Multiple anomaly flags (%d flags, score: %.2f)", len(p.AnomalyFlags), p.AnomalyScore),
			factors,
			"Multiple anomaly indicators suggest critical review needed"
	}

	// 6. Borderline DQS.
	if p.DQSBase < t.DQSBorderline {
		factors := []string{fmt.Sprintf("DQS %.1f below borderline", p.DQSBase)}
		if p.IsAnomaly {
			factors = append(factors, fmt.Sprintf("Anomaly score %.2f", p.AnomalyScore))
		}
		return types.ActionReviewRequired,
			fmt.Sprintf("Borderline quality score (%.1f)", p.DQSBase),
			factors, ""
	}

	// 7. Anomaly without high confidence.
	if p.IsAnomaly && band != types.ConfidenceHigh {
		flags := p.AnomalyFlags
		if len(flags) > 2 {
			flags = flags[:2]
		}
		factors := []string{
			"Anomaly detected: " + strings.Join(flags, ", "),
			"Confidence: " + string(band),
		}
		return types.ActionReviewRequired,
			"Anomaly detected with uncertain confidence",
			factors, ""
	}

	// 8. Low confidence alone.
	if band == types.ConfidenceLow {
		return types.ActionReviewRequired,
			"Low confidence in quality assessment",
			[]string{fmt.Sprintf("Low confidence score (%.1f)", confScore)}, ""
	}

	// 9. Very high anomaly even with high confidence.
	if p.AnomalyScore > t.AnomalyReview {
		return types.ActionReviewRequired,
			"Very high anomaly score requires review",
			[]string{fmt.Sprintf("Very high anomaly: %.2f", p.AnomalyScore)}, ""
	}

	// 10. Default.
	factors := []string{
		fmt.Sprintf("DQS: %.1f", p.DQSBase),
		"Confidence: " + string(band),
	}
	if !p.IsAnomaly {
		factors = append(factors, "No anomalies")
	}
	return types.ActionSafeToUse, "Record passes all quality checks", factors, ""
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func flagPass(flagged bool) string {
	if flagged {
		return "FLAG"
	}
	return "PASS"
}
