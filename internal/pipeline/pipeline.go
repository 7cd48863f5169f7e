// Package pipeline sequences the scoring stages over one batch and assembles
// the batch-level result. The orchestrator is the only component that decides
// global success or failure of a run.
package pipeline

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/davidahmann/txnscore/internal/aggregate"
	"github.com/davidahmann/txnscore/internal/anomaly"
	"github.com/davidahmann/txnscore/internal/compliance"
	"github.com/davidahmann/txnscore/internal/decision"
	"github.com/davidahmann/txnscore/internal/features"
	"github.com/davidahmann/txnscore/internal/policy"
	"github.com/davidahmann/txnscore/internal/rules"
	"github.com/davidahmann/txnscore/internal/schema"
	"github.com/davidahmann/txnscore/internal/stage"
	"github.com/davidahmann/txnscore/internal/structural"
	"github.com/davidahmann/txnscore/pkg/types"
)

const (
	featureStageID   = 2
	featureStageName = "feature_extraction"
)

// Options configures a Runner. Zero values select sensible defaults.
type Options struct {
	Policy policy.Policy
	Scorer anomaly.Scorer // nil selects a seeded isolation forest per run
	Seed   int64          // anomaly model seed; fix it for reproducible runs
	Clock  stage.Clock    // nil selects time.Now
	Logger zerolog.Logger
}

// Runner executes the pipeline. It holds only immutable configuration, so a
// single Runner is safe for concurrent Run calls: every intermediate result
// is a local value, never a field.
type Runner struct {
	policy policy.Policy
	scorer anomaly.Scorer
	seed   int64
	clock  stage.Clock
	rules  *rules.Engine
	log    zerolog.Logger
}

func New(opts Options) *Runner {
	p := opts.Policy
	if p.PolicyID == "" {
		p = policy.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Runner{
		policy: p,
		scorer: opts.Scorer,
		seed:   opts.Seed,
		clock:  clock,
		rules:  rules.NewEngine(),
		log:    opts.Logger,
	}
}

// Run scores one batch. It always returns a complete PipelineResult: on a
// stage failure the remaining stages are skipped, success is false, and the
// errors list explains why.
func (r *Runner) Run(records []schema.TransactionRecord, batchID string) types.PipelineResult {
	start := r.clock()
	if batchID == "" {
		batchID = uuid.NewString()[:8]
	}

	result := types.PipelineResult{
		BatchID:      batchID,
		ExecutionID:  uuid.NewString(),
		TotalRecords: len(records),
		StageResults: map[string]types.StageSummary{},
		Errors:       []string{},
	}

	var stageResults []stage.Result
	record := func(res stage.Result) bool {
		stageResults = append(stageResults, res)
		result.StageTimings = append(result.StageTimings, res.Timing())
		result.StageResults[strconv.Itoa(res.StageID)] = res.Summary()
		r.log.Debug().
			Str("batch_id", batchID).
			Str("stage", res.StageName).
			Str("status", string(res.Status)).
			Dur("duration", res.Duration).
			Msg("stage complete")
		if !res.CanContinue {
			for _, issue := range res.Issues {
				result.Errors = append(result.Errors, res.StageName+": "+issue.Message)
			}
			if len(res.Issues) == 0 {
				result.Errors = append(result.Errors, res.StageName+": stage halted the batch")
			}
		}
		return res.CanContinue
	}

	finish := func(success bool) types.PipelineResult {
		result.Success = success
		result.TotalDurationMS = types.Score(float64(r.clock().Sub(start)) / float64(time.Millisecond))
		result.ExecutionReport = executionReport(result)
		if result.DecisionReport == "" {
			result.DecisionReport = "No decisions made."
		}
		return result
	}

	// Stage 1: structural validation.
	structOut, structRes := structural.Validate(records, r.clock)
	if !record(structRes) {
		return finish(false)
	}

	// Stage 2: feature extraction.
	feats, featRes := r.extractFeatures(structOut.Rows, structOut.Valid)
	if !record(featRes) {
		return finish(false)
	}

	// Stage 3: field compliance (DQS).
	dqs, dqsRes := compliance.Score(structOut.Rows, feats, structOut.Valid, r.clock)
	if !record(dqsRes) {
		return finish(false)
	}

	// Stage 4: semantic validation.
	assessments, semRes := r.rules.Evaluate(structOut.Rows, feats, structOut.RecordIDs, structOut.Valid, r.clock)
	if !record(semRes) {
		return finish(false)
	}

	// Stage 5: anomaly detection.
	scorer := r.scorer
	if scorer == nil {
		scorer = anomaly.NewForest(r.seed)
	}
	outcomes, anomRes := anomaly.Detect(scorer, feats, structOut.RecordIDs, structOut.Valid, r.policy.Thresholds.AnomalyFlag, r.clock)
	if !record(anomRes) {
		return finish(false)
	}

	// Stage 6: signal aggregation.
	confidences, aggRes := aggregate.Run(dqs, assessments, outcomes, structOut.Valid, r.policy.Thresholds, r.clock)
	if !record(aggRes) {
		return finish(false)
	}

	// Stage 7: decision gate.
	payloads := make([]decision.Payload, len(records))
	for i := range records {
		payloads[i] = decision.Payload{
			RecordID:           structOut.RecordIDs[i],
			IsValid:            structOut.Valid[i],
			DQSBase:            dqs[i],
			SemanticViolations: assessments[i].ViolationMessages(),
			IsAnomaly:          outcomes[i].IsAnomaly,
			AnomalyScore:       outcomes[i].Score,
			AnomalyFlags:       outcomes[i].Flags,
		}
	}
	bd, gateRes := decision.Decide(payloads, confidences, batchID, r.policy.Thresholds, r.clock)
	if !record(gateRes) {
		return finish(false)
	}

	result.Decisions = bd.Decisions
	result.SafeCount = bd.SafeCount
	result.ReviewCount = bd.ReviewCount
	result.EscalateCount = bd.EscalateCount
	result.RejectedCount = bd.NoActionCount
	result.QualityRate = bd.OverallQualityRate
	result.AverageDQS = types.Score(averageDQS(dqs, structOut.Valid))
	result.DecisionReport = decision.Report(bd)

	return finish(true)
}

func (r *Runner) extractFeatures(rows []schema.Row, valid []bool) ([]features.Row, stage.Result) {
	b := stage.NewBuilder(featureStageID, featureStageName, r.clock)
	now := r.clock()

	feats := make([]features.Row, len(rows))
	derived := 0
	for i, row := range rows {
		feats[i] = features.Extract(row, now)
		b.Check(len(feats[i]) > 0)
		if valid[i] {
			derived++
		}
	}
	b.Detail("records_processed", len(rows))
	b.Detail("feature_dimensions", len(features.VectorNames))
	return feats, b.Finish(types.StagePassed, true)
}

func averageDQS(dqs []float64, valid []bool) float64 {
	var sum float64
	var n int
	for i, v := range dqs {
		if !valid[i] {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
