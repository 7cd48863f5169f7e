package rules

import (
	"fmt"

	"github.com/davidahmann/txnscore/internal/features"
	"github.com/davidahmann/txnscore/internal/schema"
	"github.com/davidahmann/txnscore/internal/stage"
	"github.com/davidahmann/txnscore/pkg/types"
)

const (
	StageID   = 4
	StageName = "semantic_validation"
)

// Assessment is the semantic validation outcome for one record.
type Assessment struct {
	RecordID           string
	SemanticScore      float64 // 0-100
	RulesPassed        int
	RulesFailed        int
	CriticalViolations []Result
	Warnings           []Result
	PassesValidation   bool
}

// Engine evaluates the rule catalog over a batch. It holds only immutable
// configuration so one Engine is safe for concurrent runs.
type Engine struct {
	catalog []Rule
}

func NewEngine() *Engine {
	return &Engine{catalog: Catalog()}
}

// evalRule runs one rule, converting a panic inside the check into a failed
// warning-severity result. Rule evaluation must never abort the batch.
func (e *Engine) evalRule(rule Rule, row schema.Row, feat features.Row) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Passed:   false,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("rule evaluation error: %v", r),
			}
		}
	}()

	passed, msg := rule.Check(row, feat)
	return Result{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Passed:   passed,
		Severity: rule.Severity,
		Message:  msg,
	}
}

// Evaluate runs every catalog rule against every valid record. Assessments
// are positionally aligned with rows; invalid records get a zero Assessment
// with PassesValidation=false.
func (e *Engine) Evaluate(rows []schema.Row, feats []features.Row, recordIDs []string, valid []bool, now stage.Clock) ([]Assessment, stage.Result) {
	b := stage.NewBuilder(StageID, StageName, now)

	assessments := make([]Assessment, len(rows))
	ruleFailures := make(map[string]int, len(e.catalog))

	evaluated, rejected, flagged := 0, 0, 0
	var scoreSum float64

	for i, row := range rows {
		if !valid[i] {
			assessments[i] = Assessment{RecordID: recordIDs[i]}
			continue
		}
		evaluated++

		a := Assessment{RecordID: recordIDs[i]}
		for _, rule := range e.catalog {
			res := e.evalRule(rule, row, feats[i])
			b.Check(res.Passed)
			if res.Passed {
				a.RulesPassed++
				continue
			}
			a.RulesFailed++
			ruleFailures[res.RuleID]++
			if res.Severity == SeverityCritical {
				a.CriticalViolations = append(a.CriticalViolations, res)
			} else {
				a.Warnings = append(a.Warnings, res)
			}
		}

		total := a.RulesPassed + a.RulesFailed
		if total > 0 {
			a.SemanticScore = float64(a.RulesPassed) / float64(total) * 100
		} else {
			a.SemanticScore = 100
		}
		a.PassesValidation = len(a.CriticalViolations) == 0

		if !a.PassesValidation {
			rejected++
		} else if len(a.Warnings) > 0 {
			flagged++
		}
		scoreSum += a.SemanticScore
		assessments[i] = a
	}

	b.Detail("records_validated", evaluated)
	b.Detail("records_rejected", rejected)
	b.Detail("records_flagged", flagged)
	b.Detail("rules_evaluated", len(e.catalog))
	if evaluated > 0 {
		b.Detail("semantic_score_mean", scoreSum/float64(evaluated))
	}
	ruleStats := make(map[string]float64, len(e.catalog))
	for _, rule := range e.catalog {
		passRate := 100.0
		if evaluated > 0 {
			passRate = float64(evaluated-ruleFailures[rule.ID]) / float64(evaluated) * 100
		}
		ruleStats[rule.ID] = passRate
	}
	b.Detail("rule_pass_rates", ruleStats)

	// FAILED only when every evaluated record is rejected; the batch can
	// still continue while at least one record survives.
	switch {
	case evaluated > 0 && rejected == evaluated:
		return assessments, b.Finish(types.StageFailed, false)
	case rejected > 0 || flagged > 0:
		return assessments, b.Finish(types.StageDegraded, true)
	default:
		return assessments, b.Finish(types.StagePassed, true)
	}
}

// ViolationMessages flattens critical violations into short audit strings.
func (a Assessment) ViolationMessages() []string {
	msgs := make([]string, 0, len(a.CriticalViolations))
	for _, v := range a.CriticalViolations {
		msg := v.RuleID + ": " + v.RuleName
		if v.Message != "" {
			msg += " (" + v.Message + ")"
		}
		msgs = append(msgs, msg)
	}
	return msgs
}
