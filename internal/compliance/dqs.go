// Package compliance computes the base Data Quality Score from a weighted,
// table-driven set of field-level checks.
package compliance

import (
	"regexp"
	"time"

	"github.com/davidahmann/txnscore/internal/features"
	"github.com/davidahmann/txnscore/internal/schema"
	"github.com/davidahmann/txnscore/internal/stage"
	"github.com/davidahmann/txnscore/pkg/types"
)

const (
	StageID   = 3
	StageName = "field_compliance"

	// Freshness window for transaction timestamps.
	maxAge         = 365 * 24 * time.Hour
	maxClockAhead  = 24 * time.Hour
	maxAmountBound = 1_000_000
)

type checkFn func(row schema.Row, feat features.Row) bool

type check struct {
	name     string
	category string // validity | accuracy | completeness
	weight   float64
	fn       checkFn
}

var (
	mccPattern      = regexp.MustCompile(`^\d{4}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

var validStatuses = map[string]bool{
	"approved": true, "declined": true, "failed": true, "pending": true, "reversed": true,
}

var validNetworks = map[string]bool{
	"VISA": true, "Mastercard": true, "RuPay": true, "AMEX": true,
}

// checks is the fixed scoring table. Weights sum to 100 so the DQS is the
// weighted pass percentage.
var checks = []check{
	{"status_enum", "validity", 10, func(row schema.Row, _ features.Row) bool {
		return validStatuses[row.String("txn_status", "")]
	}},
	{"network_enum", "validity", 10, func(row schema.Row, _ features.Row) bool {
		return validNetworks[row.String("card_network", "")]
	}},
	{"currency_code", "validity", 5, func(row schema.Row, _ features.Row) bool {
		return currencyPattern.MatchString(row.String("txn_currency", ""))
	}},

	{"timestamp_fresh", "accuracy", 10, func(row schema.Row, feat features.Row) bool {
		if feat.Get("txn_hour_of_day", -1) < 0 {
			return false // unparseable timestamp
		}
		age := feat.Get("txn_age_minutes", 0)
		return age >= -maxClockAhead.Minutes() && age <= maxAge.Minutes()
	}},
	{"amount_bound", "accuracy", 10, func(row schema.Row, _ features.Row) bool {
		amount := row.Float("txn_amount", 0)
		return amount > 0 && amount <= maxAmountBound
	}},
	{"mcc_format", "accuracy", 5, func(row schema.Row, _ features.Row) bool {
		return mccPattern.MatchString(row.String("merchant_category_code", ""))
	}},
	{"risk_score_range", "accuracy", 5, func(row schema.Row, _ features.Row) bool {
		score := row.Float("fraud_risk_score", -1)
		return score >= 0 && score <= 100
	}},

	{"customer_id_present", "completeness", 5, has("customer_customer_id")},
	{"contact_present", "completeness", 5, func(row schema.Row, _ features.Row) bool {
		return row.Has("customer_email") || row.Has("customer_phone")
	}},
	{"ip_present", "completeness", 5, has("customer_ip_address")},
	{"card_bin_present", "completeness", 5, has("card_bin")},
	{"card_expiry_present", "completeness", 5, func(row schema.Row, _ features.Row) bool {
		return row.Has("card_expiry_month") && row.Has("card_expiry_year")
	}},
	{"merchant_name_present", "completeness", 5, has("merchant_merchant_name")},
	{"auth_result_present", "completeness", 5, has("auth_authentication_result")},
	{"settlement_present", "completeness", 5, func(_ schema.Row, feat features.Row) bool {
		return feat.Get("settlement_present", 0) == 1
	}},
	{"audit_log_present", "completeness", 5, has("compliance_audit_log_id")},
}

func has(key string) checkFn {
	return func(row schema.Row, _ features.Row) bool {
		return row.Has(key)
	}
}

// Score computes the base DQS per record. Structurally invalid records are
// excluded from scoring and carry a DQS of 0; the decision gate rejects them
// before the DQS is ever consulted.
func Score(rows []schema.Row, feats []features.Row, valid []bool, now stage.Clock) ([]float64, stage.Result) {
	b := stage.NewBuilder(StageID, StageName, now)

	dqs := make([]float64, len(rows))
	var totalWeight float64
	for _, c := range checks {
		totalWeight += c.weight
	}

	scored := 0
	var sum float64
	for i, row := range rows {
		if !valid[i] {
			continue
		}
		var passedWeight float64
		for _, c := range checks {
			ok := c.fn(row, feats[i])
			b.Check(ok)
			if ok {
				passedWeight += c.weight
			}
		}
		dqs[i] = passedWeight / totalWeight * 100
		sum += dqs[i]
		scored++
	}

	b.Detail("records_scored", scored)
	if scored > 0 {
		b.Detail("dqs_mean", round2(sum/float64(scored)))
	}
	b.Detail("checks_per_record", len(checks))

	status := types.StagePassed
	if scored > 0 && sum/float64(scored) < 50 {
		status = types.StageDegraded
	}
	return dqs, b.Finish(status, true)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
