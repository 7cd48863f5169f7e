// Package structural implements the first scoring stage: required-field and
// type validation over the flattened record view.
package structural

import (
	"fmt"

	"github.com/davidahmann/txnscore/internal/schema"
	"github.com/davidahmann/txnscore/internal/stage"
	"github.com/davidahmann/txnscore/pkg/types"
)

const (
	StageID   = 1
	StageName = "structural_validation"
)

// Output carries the flattened rows and per-record validity flags. Invalid
// records are never dropped; they flow to the decision gate so it can emit
// NO_ACTION with a traceable reason.
type Output struct {
	Rows      []schema.Row
	RecordIDs []string
	Valid     []bool
}

type fieldCheck struct {
	key  string
	code string
}

// Required fields, checked for presence on every record.
var requiredFields = []fieldCheck{
	{"txn_transaction_id", "MISSING_TRANSACTION_ID"},
	{"txn_currency", "MISSING_CURRENCY"},
	{"txn_timestamp", "MISSING_TIMESTAMP"},
	{"txn_status", "MISSING_STATUS"},
	{"card_network", "MISSING_CARD_NETWORK"},
	{"merchant_merchant_id", "MISSING_MERCHANT_ID"},
	{"merchant_category_code", "MISSING_MCC"},
	{"merchant_country", "MISSING_MERCHANT_COUNTRY"},
	{"customer_customer_id", "MISSING_CUSTOMER_ID"},
}

// Validate flattens each record and checks structural integrity. The stage
// degrades when records are invalid but never halts the batch: downstream
// stages skip invalid records and the gate rejects them explicitly.
func Validate(records []schema.TransactionRecord, now stage.Clock) (Output, stage.Result) {
	b := stage.NewBuilder(StageID, StageName, now)

	out := Output{
		Rows:      make([]schema.Row, len(records)),
		RecordIDs: make([]string, len(records)),
		Valid:     make([]bool, len(records)),
	}

	invalid := 0
	for i, rec := range records {
		row := schema.Flatten(rec)
		out.Rows[i] = row
		out.RecordIDs[i] = row.RecordID(i)

		valid := true
		for _, fc := range requiredFields {
			b.Check(row.Has(fc.key))
			if !row.Has(fc.key) {
				valid = false
				b.AddIssue(stage.Issue{
					Type:     "STRUCTURAL_VIOLATION",
					Code:     fc.code,
					Message:  fmt.Sprintf("record %s: missing required field %s", out.RecordIDs[i], fc.key),
					Severity: "critical",
				})
			}
		}

		// Amount must be a parseable number; the positive-amount invariant
		// belongs to the semantic rules, not here.
		b.Check(row["txn_amount"] != nil)
		if row["txn_amount"] == nil {
			valid = false
			b.AddIssue(stage.Issue{
				Type:     "STRUCTURAL_VIOLATION",
				Code:     "MISSING_AMOUNT",
				Message:  fmt.Sprintf("record %s: missing amount", out.RecordIDs[i]),
				Severity: "critical",
			})
		}

		out.Valid[i] = valid
		if !valid {
			invalid++
		}
	}

	b.Detail("records_checked", len(records))
	b.Detail("records_invalid", invalid)

	status := types.StagePassed
	if invalid > 0 {
		status = types.StageDegraded
	}
	return out, b.Finish(status, true)
}
