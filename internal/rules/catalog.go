// Package rules holds the fixed business-rule catalog and the semantic
// validation stage that evaluates it per record.
package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/davidahmann/txnscore/internal/features"
	"github.com/davidahmann/txnscore/internal/schema"
)

// Severity classifies a rule: critical failures reject the record, warnings
// flag it for review.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Result is the outcome of one rule against one record.
type Result struct {
	RuleID   string   `json:"rule_id"`
	RuleName string   `json:"rule_name"`
	Passed   bool     `json:"passed"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message,omitempty"`
}

// CheckFn is a pure function of the flattened row and its feature view.
type CheckFn func(row schema.Row, feat features.Row) (passed bool, message string)

// Rule is a first-class catalog entry: identity plus check function.
type Rule struct {
	ID       string
	Name     string
	Severity Severity
	Check    CheckFn
}

// Catalog returns the fixed, ordered business-rule table. Order is part of
// the audit contract: results and pass-rate statistics follow it.
func Catalog() []Rule {
	return []Rule{
		{"BR001", "Amount must be positive", SeverityCritical, checkPositiveAmount},
		{"BR002", "Net amount must equal gross minus fees", SeverityCritical, checkSettlementMath},
		{"BR003", "Settlement date must not precede clearing date", SeverityCritical, checkSettlementSequence},
		{"BR004", "Approved transactions must have authorization code", SeverityCritical, checkAuthCodePresent},
		{"BR005", "Card expiry must not be in past", SeverityCritical, checkCardNotExpired},

		{"BR006", "Amount should be rational for category", SeverityWarning, checkAmountCategoryRationality},
		{"BR007", "Risk score should match risk level", SeverityWarning, checkRiskConsistency},
		{"BR008", "Domestic transaction should use domestic IP", SeverityWarning, checkGeoConsistency},
		{"BR009", "3DS authentication should be present for high value", SeverityWarning, check3DSForHighValue},
		{"BR010", "Failed velocity check should increase risk", SeverityWarning, checkVelocityRiskCorrelation},
		{"BR011", "Fee ratio should be reasonable", SeverityWarning, checkFeeRatio},
		{"BR012", "Billing and shipping country should match for domestic", SeverityWarning, checkAddressCountryMatch},
	}
}

func checkPositiveAmount(_ schema.Row, feat features.Row) (bool, string) {
	amount := feat.Get("txn_amount", 0)
	if amount > 0 {
		return true, ""
	}
	return false, fmt.Sprintf("non-positive amount: %v", amount)
}

// Settlement math allows a 1-unit tolerance for rounding in upstream fee
// calculations. Records without settlement data pass vacuously.
func checkSettlementMath(row schema.Row, _ features.Row) (bool, string) {
	gross := row.Float("settlement_gross_amount", math.NaN())
	interchange := row.Float("settlement_interchange_fee", math.NaN())
	gateway := row.Float("settlement_gateway_fee", math.NaN())
	net := row.Float("settlement_net_amount", math.NaN())

	if math.IsNaN(gross) || math.IsNaN(interchange) || math.IsNaN(gateway) || math.IsNaN(net) {
		return true, "settlement data not present"
	}

	expected := gross - interchange - gateway
	if math.Abs(net-expected) < 1 {
		return true, ""
	}
	return false, fmt.Sprintf("net %v != expected %v", net, expected)
}

func checkSettlementSequence(_ schema.Row, feat features.Row) (bool, string) {
	lag, ok := feat["settlement_lag_days"]
	if !ok {
		return true, "" // dates absent or unparseable
	}
	if lag >= 0 {
		return true, ""
	}
	return false, fmt.Sprintf("settlement precedes clearing by %.0f days", -lag)
}

func checkAuthCodePresent(row schema.Row, _ features.Row) (bool, string) {
	if !strings.EqualFold(row.String("txn_status", ""), "approved") {
		return true, ""
	}
	if strings.TrimSpace(row.String("txn_authorization_code", "")) != "" {
		return true, ""
	}
	return false, "approved transaction without auth code"
}

func checkCardNotExpired(_ schema.Row, feat features.Row) (bool, string) {
	months := feat.Get("card_expiry_months_remaining", 12)
	if months >= 0 {
		return true, ""
	}
	return false, fmt.Sprintf("card expired %.0f months ago", -months)
}

// Expected amount ranges keyed by the first two digits of the MCC.
var mccAmountRanges = map[int][2]float64{
	58: {100, 10000},   // restaurants
	54: {50, 15000},    // grocery
	55: {100, 10000},   // fuel
	53: {200, 50000},   // department stores
	41: {50, 5000},     // transport
	70: {1000, 100000}, // hotels
	56: {200, 30000},   // clothing
}

func checkAmountCategoryRationality(_ schema.Row, feat features.Row) (bool, string) {
	amount := feat.Get("txn_amount", 0)
	first2 := int(feat.Get("merchant_mcc_first2", 0))

	bounds, ok := mccAmountRanges[first2]
	if !ok {
		bounds = [2]float64{50, 100000}
	}
	if amount >= bounds[0] && amount <= bounds[1] {
		return true, ""
	}
	return false, fmt.Sprintf("amount %v unusual for MCC %02d", amount, first2)
}

func checkRiskConsistency(_ schema.Row, feat features.Row) (bool, string) {
	score := feat.Get("fraud_risk_score", 0)
	level := feat.Get("fraud_risk_level_encoded", 0)

	expected := 0.0
	switch {
	case score > 70:
		expected = 2
	case score > 40:
		expected = 1
	}
	if level == expected {
		return true, ""
	}
	return false, fmt.Sprintf("risk level %v inconsistent with score %v", level, score)
}

func checkGeoConsistency(_ schema.Row, feat features.Row) (bool, string) {
	if feat.Get("merchant_is_domestic", 1) != 1 {
		return true, "" // international merchants can see any IP
	}
	if feat.Get("customer_ip_is_domestic", 1) == 1 {
		return true, ""
	}
	return false, "domestic merchant with foreign IP"
}

func check3DSForHighValue(_ schema.Row, feat features.Row) (bool, string) {
	amount := feat.Get("txn_amount", 0)
	if amount <= 10000 {
		return true, ""
	}
	if feat.Get("auth_result_encoded", 0) == 0 {
		return true, ""
	}
	return false, fmt.Sprintf("high value %v without 3DS authentication", amount)
}

func checkVelocityRiskCorrelation(_ schema.Row, feat features.Row) (bool, string) {
	if feat.Get("fraud_velocity_passed", 1) == 1 {
		return true, ""
	}
	score := feat.Get("fraud_risk_score", 0)
	if score >= 40 {
		return true, ""
	}
	return false, fmt.Sprintf("failed velocity but low risk: %v", score)
}

func checkFeeRatio(_ schema.Row, feat features.Row) (bool, string) {
	ratio := feat.Get("settlement_fee_ratio", 0.02)
	if ratio < 0.05 {
		return true, ""
	}
	return false, fmt.Sprintf("high fee ratio: %.1f%%", ratio*100)
}

func checkAddressCountryMatch(row schema.Row, _ features.Row) (bool, string) {
	if strings.ToUpper(row.String("merchant_country", "")) != "IN" {
		return true, ""
	}
	billing := strings.ToUpper(row.String("customer_billing_address_country", ""))
	shipping := strings.ToUpper(row.String("customer_shipping_address_country", ""))
	if (billing == "IN" || billing == "") && (shipping == "IN" || shipping == "") {
		return true, ""
	}
	return false, "domestic merchant but foreign billing/shipping address"
}
