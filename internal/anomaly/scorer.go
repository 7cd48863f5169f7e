// Package anomaly produces a bounded anomaly score and explanatory flags per
// record using a pluggable statistical model.
package anomaly

import (
	"github.com/davidahmann/txnscore/internal/features"
	"github.com/davidahmann/txnscore/internal/stage"
	"github.com/davidahmann/txnscore/pkg/types"
)

const (
	StageID   = 5
	StageName = "anomaly_detection"
)

// Scorer scores a batch feature matrix, one score in [0,1] per vector. Fit
// state, if any, must stay inside the call so unrelated batches never share
// model state.
type Scorer interface {
	Score(matrix [][]float64) ([]float64, error)
}

// Outcome is the per-record anomaly assessment.
type Outcome struct {
	RecordID  string
	Score     float64
	Flags     []string
	IsAnomaly bool
}

// Detect scores every valid record and derives explanatory flags. A model
// failure degrades the stage and assigns the neutral score 0 so downstream
// decision rules remain well-defined; it never aborts the batch.
func Detect(scorer Scorer, feats []features.Row, recordIDs []string, valid []bool, flagThreshold float64, now stage.Clock) ([]Outcome, stage.Result) {
	b := stage.NewBuilder(StageID, StageName, now)

	outcomes := make([]Outcome, len(feats))
	for i := range outcomes {
		outcomes[i].RecordID = recordIDs[i]
	}

	var matrix [][]float64
	var index []int
	for i, f := range feats {
		if !valid[i] {
			continue
		}
		matrix = append(matrix, f.Vector())
		index = append(index, i)
	}
	b.Detail("records_scored", len(matrix))

	if len(matrix) == 0 {
		return outcomes, b.Finish(types.StagePassed, true)
	}

	scores, err := scorer.Score(matrix)
	b.Check(err == nil)
	if err != nil {
		for _, i := range index {
			outcomes[i].Score = 0
			outcomes[i].Flags = []string{"anomaly model unavailable: neutral score assigned"}
		}
		b.AddIssue(stage.Issue{
			Type:     "ANOMALY_MODEL_FAILURE",
			Message:  err.Error(),
			Severity: "warning",
		})
		return outcomes, b.Finish(types.StageDegraded, true)
	}

	meanAmount := batchMeanAmount(feats, valid)

	flagged := 0
	for k, i := range index {
		score := clamp01(scores[k])
		flags := explain(feats[i], meanAmount)
		outcomes[i].Score = score
		outcomes[i].Flags = flags
		outcomes[i].IsAnomaly = score > flagThreshold
		if outcomes[i].IsAnomaly {
			flagged++
		}
	}

	b.Detail("records_flagged", flagged)
	status := types.StagePassed
	if flagged > 0 {
		status = types.StageDegraded
	}
	return outcomes, b.Finish(status, true)
}

func batchMeanAmount(feats []features.Row, valid []bool) float64 {
	var sum float64
	var n int
	for i, f := range feats {
		if !valid[i] {
			continue
		}
		sum += f.Get("txn_amount", 0)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// explain derives short, deterministic flag strings for a record.
func explain(f features.Row, meanAmount float64) []string {
	var flags []string

	amount := f.Get("txn_amount", 0)
	if meanAmount > 0 && amount > 3*meanAmount && amount > 10000 {
		flags = append(flags, "amount far above batch norm")
	}
	if f.Get("merchant_is_domestic", 1) == 1 && f.Get("customer_ip_is_domestic", 1) == 0 {
		flags = append(flags, "foreign IP for domestic merchant")
	}
	if f.Get("fraud_risk_score", 0) > 70 {
		flags = append(flags, "high fraud risk score")
	}
	if f.Get("fraud_velocity_passed", 1) == 0 {
		flags = append(flags, "failed velocity check")
	}
	if f.Get("merchant_country_high_risk", 0) == 1 {
		flags = append(flags, "high-risk merchant country")
	}
	if f.Get("card_expiry_months_remaining", 12) < 1 {
		flags = append(flags, "card near or past expiry")
	}
	if f.Get("compliance_aml_clear", 1) == 0 {
		flags = append(flags, "AML screening not clear")
	}
	if f.Get("settlement_fee_ratio", 0.02) >= 0.05 {
		flags = append(flags, "unusually high fee ratio")
	}
	return flags
}
