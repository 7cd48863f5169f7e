package pipeline

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/davidahmann/txnscore/internal/policy"
	"github.com/davidahmann/txnscore/internal/schema"
	"github.com/davidahmann/txnscore/pkg/types"
)

func fixedClock() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

// stubScorer keeps anomaly scores low so decisions are driven entirely by
// the structural, compliance and rule signals under test.
type stubScorer struct{ score float64 }

func (s stubScorer) Score(matrix [][]float64) ([]float64, error) {
	out := make([]float64, len(matrix))
	for i := range out {
		out[i] = s.score
	}
	return out, nil
}

func newTestRunner() *Runner {
	return New(Options{
		Policy: policy.Default(),
		Scorer: stubScorer{score: 0.1},
		Clock:  fixedClock,
	})
}

func goodRecord(id string) schema.TransactionRecord {
	auth := "A12345"
	email := "user@example.com"
	gross, interchange, gateway, net := 500.0, 9.0, 1.5, 489.5
	clearing, settlement := "2026-08-02", "2026-08-04"
	return schema.TransactionRecord{
		Transaction: schema.Transaction{
			TransactionID:     id,
			Amount:            500,
			Currency:          "INR",
			Timestamp:         "2026-08-01T10:00:00Z",
			Status:            "approved",
			AuthorizationCode: &auth,
		},
		Card: schema.Card{Network: "VISA", BIN: "411111", ExpiryMonth: "12", ExpiryYear: "2027"},
		Merchant: schema.Merchant{
			MerchantID: "MID_1", MerchantName: "Amazon India",
			MerchantCategoryCode: "5812", Country: "IN",
		},
		Customer: schema.Customer{
			CustomerID:      "cust_1",
			Email:           &email,
			BillingAddress:  schema.Address{Country: "IN"},
			ShippingAddress: schema.Address{Country: "IN"},
			IPAddress:       "10.1.2.3",
		},
		Authentication: schema.Authentication{AuthenticationResult: "authenticated"},
		Fraud:          schema.Fraud{RiskScore: 20, RiskLevel: "low", VelocityCheck: "pass", GeoCheck: "pass"},
		Compliance:     schema.Compliance{AMLScreening: "clear", AuditLogID: "audit_1"},
		Settlement: schema.Settlement{
			GrossAmount: &gross, InterchangeFee: &interchange,
			GatewayFee: &gateway, NetAmount: &net,
			ClearingDate: &clearing, SettlementDate: &settlement,
		},
	}
}

func mixedBatch() []schema.TransactionRecord {
	batch := []schema.TransactionRecord{
		goodRecord("txn_1"), goodRecord("txn_2"), goodRecord("txn_3"), goodRecord("txn_4"),
	}

	violating := goodRecord("txn_bad_amount")
	violating.Transaction.Amount = -5
	batch = append(batch, violating)

	invalid := goodRecord("txn_invalid")
	invalid.Customer.CustomerID = ""
	batch = append(batch, invalid)

	return batch
}

func TestRunMixedBatch(t *testing.T) {
	result := newTestRunner().Run(mixedBatch(), "batch-1")

	if !result.Success {
		t.Fatalf("success = false, errors: %v", result.Errors)
	}
	if result.BatchID != "batch-1" || result.TotalRecords != 6 {
		t.Fatalf("result = %+v", result)
	}
	if result.ExecutionID == "" {
		t.Fatal("execution id missing")
	}

	if result.SafeCount != 4 || result.EscalateCount != 1 || result.RejectedCount != 1 || result.ReviewCount != 0 {
		t.Fatalf("counts = safe %d review %d escalate %d rejected %d",
			result.SafeCount, result.ReviewCount, result.EscalateCount, result.RejectedCount)
	}
	if got := result.SafeCount + result.ReviewCount + result.EscalateCount + result.RejectedCount; got != result.TotalRecords {
		t.Fatalf("counts sum to %d, total %d", got, result.TotalRecords)
	}

	// Average DQS covers the five structurally valid records: four clean at
	// 100 and the negative-amount record at 90.
	if float64(result.AverageDQS) != 98 {
		t.Fatalf("average dqs = %v, want 98", result.AverageDQS)
	}

	byID := map[string]types.Decision{}
	for _, d := range result.Decisions {
		byID[d.RecordID] = d
	}
	if d := byID["txn_1"]; d.Action != types.ActionSafeToUse || d.ConfidenceBand != types.ConfidenceHigh {
		t.Fatalf("txn_1 = %+v", d)
	}
	if d := byID["txn_bad_amount"]; d.Action != types.ActionEscalate ||
		!strings.HasPrefix(d.PrimaryReason, "Business rules: BR001") {
		t.Fatalf("txn_bad_amount = %+v", d)
	}
	if d := byID["txn_invalid"]; d.Action != types.ActionNoAction ||
		d.PrimaryReason != "Record failed structural validation" {
		t.Fatalf("txn_invalid = %+v", d)
	}
}

func TestRunRecordsAllStages(t *testing.T) {
	result := newTestRunner().Run(mixedBatch(), "batch-1")

	if len(result.StageTimings) != 7 {
		t.Fatalf("got %d stage timings, want 7", len(result.StageTimings))
	}
	wantNames := map[string]string{
		"1": "structural_validation",
		"2": "feature_extraction",
		"3": "field_compliance",
		"4": "semantic_validation",
		"5": "anomaly_detection",
		"6": "signal_aggregation",
		"7": "decision_gate",
	}
	for id, name := range wantNames {
		summary, ok := result.StageResults[id]
		if !ok {
			t.Fatalf("stage %s missing from results", id)
		}
		if summary.StageName != name {
			t.Fatalf("stage %s name = %q, want %q", id, summary.StageName, name)
		}
		if !summary.CanContinue {
			t.Fatalf("stage %s halted: %+v", id, summary)
		}
	}

	// The invalid record degrades structural validation; the escalation
	// degrades the gate.
	if result.StageResults["1"].Status != types.StageDegraded {
		t.Fatalf("structural status = %s", result.StageResults["1"].Status)
	}
	if result.StageResults["7"].Status != types.StageDegraded {
		t.Fatalf("gate status = %s", result.StageResults["7"].Status)
	}
}

func TestRunReports(t *testing.T) {
	result := newTestRunner().Run(mixedBatch(), "batch-1")

	if !strings.Contains(result.ExecutionReport, "PIPELINE EXECUTION REPORT") {
		t.Fatalf("execution report = %q", result.ExecutionReport)
	}
	if !strings.Contains(result.ExecutionReport, "semantic_validation") {
		t.Fatalf("execution report missing stage rows:\n%s", result.ExecutionReport)
	}
	if !strings.Contains(result.DecisionReport, "FINAL DECISION REPORT") {
		t.Fatalf("decision report = %q", result.DecisionReport)
	}
	if !strings.Contains(result.DecisionReport, "txn_bad_amount") {
		t.Fatalf("decision report missing escalation:\n%s", result.DecisionReport)
	}
}

func TestRunDeterministicDecisions(t *testing.T) {
	runner := newTestRunner()
	first := runner.Run(mixedBatch(), "batch-1")
	second := runner.Run(mixedBatch(), "batch-1")

	if !reflect.DeepEqual(first.Decisions, second.Decisions) {
		t.Fatal("identical batches produced different decisions")
	}
	if first.AverageDQS != second.AverageDQS || first.SafeCount != second.SafeCount {
		t.Fatal("identical batches produced different summaries")
	}
}

func TestRunGeneratesBatchID(t *testing.T) {
	result := newTestRunner().Run([]schema.TransactionRecord{goodRecord("txn_1")}, "")
	if len(result.BatchID) != 8 {
		t.Fatalf("generated batch id = %q, want 8 chars", result.BatchID)
	}
}

func TestRunHaltsWhenEveryRecordRejected(t *testing.T) {
	rec := goodRecord("txn_1")
	rec.Transaction.Amount = -5

	result := newTestRunner().Run([]schema.TransactionRecord{rec}, "batch-1")

	if result.Success {
		t.Fatal("success = true for fully rejected batch")
	}
	if len(result.Errors) == 0 || !strings.HasPrefix(result.Errors[0], "semantic_validation:") {
		t.Fatalf("errors = %v", result.Errors)
	}
	// Stages after the halt never run.
	if len(result.StageTimings) != 4 {
		t.Fatalf("got %d stage timings, want 4", len(result.StageTimings))
	}
	if len(result.Decisions) != 0 {
		t.Fatalf("decisions = %+v", result.Decisions)
	}
	if result.DecisionReport != "No decisions made." {
		t.Fatalf("decision report = %q", result.DecisionReport)
	}
	if !strings.Contains(result.ExecutionReport, "ERRORS:") {
		t.Fatalf("execution report missing errors:\n%s", result.ExecutionReport)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	result := newTestRunner().Run(nil, "batch-1")
	if !result.Success {
		t.Fatalf("success = false for empty batch, errors: %v", result.Errors)
	}
	if result.TotalRecords != 0 || len(result.Decisions) != 0 {
		t.Fatalf("result = %+v", result)
	}
}

func TestRunDefaultScorerIsSeeded(t *testing.T) {
	runner := New(Options{Policy: policy.Default(), Seed: 42, Clock: fixedClock})
	batch := mixedBatch()
	first := runner.Run(batch, "batch-1")
	second := runner.Run(batch, "batch-1")
	if !reflect.DeepEqual(first.Decisions, second.Decisions) {
		t.Fatal("seeded default scorer produced different decisions")
	}
}
