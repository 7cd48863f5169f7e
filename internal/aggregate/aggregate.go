// Package aggregate reconciles the batch's accumulated signals: score
// stability, cross-signal conflicts, and per-record confidence banding.
package aggregate

import (
	"fmt"
	"math"

	"github.com/davidahmann/txnscore/internal/anomaly"
	"github.com/davidahmann/txnscore/internal/policy"
	"github.com/davidahmann/txnscore/internal/rules"
	"github.com/davidahmann/txnscore/internal/stage"
	"github.com/davidahmann/txnscore/pkg/types"
)

const (
	StageID   = 6
	StageName = "signal_aggregation"
)

// Confidence is the per-record confidence assessment produced by this stage.
type Confidence struct {
	RecordID string
	Score    float64 // 0-100
	Band     types.ConfidenceBand
}

// Run executes the three advisory sub-checks. It never blocks downstream
// processing: the stage degrades when conflicts are found but can_continue
// stays true.
func Run(
	dqs []float64,
	assessments []rules.Assessment,
	outcomes []anomaly.Outcome,
	valid []bool,
	t policy.Thresholds,
	now stage.Clock,
) ([]Confidence, stage.Result) {
	b := stage.NewBuilder(StageID, StageName, now)

	// Stability: the DQS distribution should neither collapse to a point nor
	// scatter implausibly.
	mean, stddev, n := dqsStats(dqs, valid)
	b.Check(true)
	b.Detail("dqs_mean", mean)
	b.Detail("dqs_stddev", stddev)
	if n >= 10 && stddev < 1 {
		b.AddWarning(fmt.Sprintf("DQS scores implausibly clustered (stddev %.2f over %d records)", stddev, n))
	}
	if stddev > 35 {
		b.AddWarning(fmt.Sprintf("DQS variance unusually high (stddev %.2f)", stddev))
	}

	// Conflict detection: flag records whose signals disagree.
	conflicts := 0
	conflicted := make([]bool, len(dqs))
	for i := range dqs {
		if !valid[i] {
			continue
		}
		highDQS := dqs[i] >= 80
		if highDQS && outcomes[i].Score > 0.7 {
			conflicted[i] = true
		}
		if highDQS && !assessments[i].PassesValidation {
			conflicted[i] = true
		}
		if conflicted[i] {
			conflicts++
			b.AddWarning(fmt.Sprintf("record %s: conflicting quality signals (DQS %.1f, anomaly %.2f, passes=%v)",
				assessments[i].RecordID, dqs[i], outcomes[i].Score, assessments[i].PassesValidation))
		}
	}
	b.Check(conflicts == 0)
	b.Detail("conflicts_found", conflicts)

	// Confidence banding: derive a 0-100 score from signal agreement and
	// stage completeness, then bucket it.
	confidences := make([]Confidence, len(dqs))
	for i := range dqs {
		score := 100.0
		switch {
		case !valid[i]:
			// Structural failure leaves most signals unpopulated.
			score = 20
		default:
			if conflicted[i] {
				score -= 25
			}
			if a := outcomes[i].Score; a > 0.4 && a < 0.7 {
				score -= 15 // mid-band anomaly scores carry the least certainty
			}
			if len(assessments[i].Warnings) > 0 {
				score -= 10
			}
			if math.Abs(dqs[i]-t.DQSBorderline) < 5 {
				score -= 10 // near a decision cut point
			}
		}
		score = math.Max(0, math.Min(100, score))

		confidences[i] = Confidence{
			RecordID: outcomes[i].RecordID,
			Score:    score,
			Band:     band(score, t),
		}
	}

	status := types.StagePassed
	if conflicts > 0 {
		status = types.StageDegraded
	}
	return confidences, b.Finish(status, true)
}

func band(score float64, t policy.Thresholds) types.ConfidenceBand {
	switch {
	case score < t.ConfidenceLow:
		return types.ConfidenceLow
	case score >= t.ConfidenceHigh:
		return types.ConfidenceHigh
	default:
		return types.ConfidenceMedium
	}
}

func dqsStats(dqs []float64, valid []bool) (mean, stddev float64, n int) {
	var sum float64
	for i, v := range dqs {
		if !valid[i] {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0, 0
	}
	mean = sum / float64(n)

	var sq float64
	for i, v := range dqs {
		if !valid[i] {
			continue
		}
		sq += (v - mean) * (v - mean)
	}
	stddev = math.Sqrt(sq / float64(n))
	return mean, stddev, n
}
