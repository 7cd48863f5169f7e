// Package features derives the per-record quality feature view consumed by
// the rule engine, the anomaly scorer, and the signal aggregator.
package features

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/davidahmann/txnscore/internal/schema"
)

// Row is the derived feature view of one record. It is computed once per
// record per run and never mutated afterwards.
type Row map[string]float64

// Get returns the feature value or def when the feature was not derived.
func (r Row) Get(key string, def float64) float64 {
	if v, ok := r[key]; ok {
		return v
	}
	return def
}

// VectorNames is the fixed feature ordering used to build numeric matrices
// for the anomaly model. Order matters for deterministic scoring.
var VectorNames = []string{
	"txn_amount_log",
	"txn_status_encoded",
	"txn_is_high_value",
	"txn_age_minutes",
	"card_expiry_months_remaining",
	"merchant_is_domestic",
	"merchant_country_high_risk",
	"customer_ip_is_domestic",
	"auth_result_encoded",
	"fraud_risk_score",
	"fraud_risk_level_encoded",
	"fraud_velocity_passed",
	"fraud_geo_passed",
	"settlement_fee_ratio",
	"compliance_aml_clear",
}

// Vector projects the row onto VectorNames, defaulting absent values to 0.
func (r Row) Vector() []float64 {
	v := make([]float64, len(VectorNames))
	for i, name := range VectorNames {
		v[i] = r.Get(name, 0)
	}
	return v
}

var highRiskCountries = map[string]bool{
	"NG": true, "RU": true, "KP": true, "AF": true, "PK": true,
}

var statusEncoding = map[string]float64{
	"approved": 0, "pending": 1, "declined": 2, "failed": 3, "reversed": 4,
}

var networkEncoding = map[string]float64{
	"VISA": 0, "Mastercard": 1, "RuPay": 2, "AMEX": 3,
}

var cardTypeEncoding = map[string]float64{
	"credit": 0, "debit": 1, "prepaid": 2,
}

var riskLevelEncoding = map[string]float64{
	"low": 0, "medium": 1, "high": 2,
}

var authResultEncoding = map[string]float64{
	"authenticated": 0, "failed": 1, "unknown": 2,
}

// Extract derives the feature row for one flattened record. now anchors the
// time-relative features so runs are reproducible in tests.
func Extract(row schema.Row, now time.Time) Row {
	f := make(Row, 40)

	amount := row.Float("txn_amount", 0)
	f["txn_amount"] = amount
	f["txn_amount_log"] = math.Log1p(math.Max(amount, 0))
	f["txn_is_high_value"] = boolFeature(amount > 10000)
	f["txn_status_encoded"] = encode(statusEncoding, row.String("txn_status", ""), 5)
	f["txn_is_approved"] = boolFeature(strings.EqualFold(row.String("txn_status", ""), "approved"))
	f["txn_has_auth_code"] = boolFeature(row.Has("txn_authorization_code"))
	f["txn_currency_is_domestic"] = boolFeature(row.String("txn_currency", "") == "INR")

	if ts, err := parseTimestamp(row.String("txn_timestamp", "")); err == nil {
		f["txn_hour_of_day"] = float64(ts.UTC().Hour())
		f["txn_age_minutes"] = now.Sub(ts).Minutes()
	} else {
		f["txn_hour_of_day"] = -1
		f["txn_age_minutes"] = -1
	}

	f["card_network_encoded"] = encode(networkEncoding, row.String("card_network", ""), 4)
	f["card_type_encoded"] = encode(cardTypeEncoding, row.String("card_card_type", ""), 3)
	f["card_has_token"] = boolFeature(row.Has("card_pan_token"))
	months := expiryMonthsRemaining(row.String("card_expiry_month", ""), row.String("card_expiry_year", ""), now)
	f["card_expiry_months_remaining"] = months
	f["card_is_expired"] = boolFeature(months < 0)

	mcc := row.String("merchant_category_code", "")
	f["merchant_mcc"] = parseNumeric(mcc)
	if len(mcc) >= 2 {
		f["merchant_mcc_first2"] = parseNumeric(mcc[:2])
	}
	f["merchant_is_domestic"] = boolFeature(row.String("merchant_country", "") == "IN")
	f["merchant_country_high_risk"] = boolFeature(highRiskCountries[strings.ToUpper(row.String("merchant_country", ""))])
	f["merchant_has_terminal"] = boolFeature(row.Has("merchant_terminal_id"))

	f["customer_has_email"] = boolFeature(row.Has("customer_email"))
	f["customer_has_phone"] = boolFeature(row.Has("customer_phone"))
	f["customer_billing_is_domestic"] = boolFeature(strings.ToUpper(row.String("customer_billing_address_country", "")) == "IN")
	f["customer_billing_shipping_match"] = boolFeature(
		strings.EqualFold(row.String("customer_billing_address_country", ""), row.String("customer_shipping_address_country", "")))
	// The schema carries no IP geolocation; the upstream geo check is the
	// authoritative signal for IP/merchant locality.
	f["customer_ip_is_domestic"] = boolFeature(row.String("fraud_geo_check", "pass") != "fail" && row.Has("customer_ip_address"))

	f["auth_result_encoded"] = encode(authResultEncoding, row.String("auth_authentication_result", ""), 2)
	f["auth_three_ds_present"] = boolFeature(row.Has("auth_ds_transaction_id"))

	f["fraud_risk_score"] = row.Float("fraud_risk_score", 0)
	f["fraud_risk_level_encoded"] = encode(riskLevelEncoding, row.String("fraud_risk_level", ""), 1)
	f["fraud_velocity_passed"] = boolFeature(row.String("fraud_velocity_check", "pass") != "fail")
	f["fraud_geo_passed"] = boolFeature(row.String("fraud_geo_check", "pass") != "fail")

	f["network_has_txn_id"] = boolFeature(row.Has("network_transaction_id"))

	f["compliance_sca_applied"] = boolFeature(row.Bool("compliance_sca_applied", false))
	f["compliance_aml_clear"] = boolFeature(row.String("compliance_aml_screening", "clear") == "clear")

	gross := row.Float("settlement_gross_amount", math.NaN())
	interchange := row.Float("settlement_interchange_fee", math.NaN())
	gateway := row.Float("settlement_gateway_fee", math.NaN())
	net := row.Float("settlement_net_amount", math.NaN())
	present := !math.IsNaN(gross) && !math.IsNaN(interchange) && !math.IsNaN(gateway) && !math.IsNaN(net)
	f["settlement_present"] = boolFeature(present)
	if present {
		f["settlement_gross_amount"] = gross
		f["settlement_fee_total"] = interchange + gateway
		if gross > 0 {
			f["settlement_fee_ratio"] = (interchange + gateway) / gross
		}
		f["settlement_net_amount"] = net
		f["settlement_math_delta"] = math.Abs(net - (gross - interchange - gateway))
	}
	if lag, ok := settlementLagDays(row.String("settlement_clearing_date", ""), row.String("settlement_settlement_date", "")); ok {
		f["settlement_lag_days"] = lag
	}

	f["business_has_invoice"] = boolFeature(row.Has("business_invoice_number"))
	f["business_has_promo"] = boolFeature(row.Has("business_promo_code"))

	return f
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func encode(table map[string]float64, value string, unknown float64) float64 {
	if v, ok := table[value]; ok {
		return v
	}
	if v, ok := table[strings.ToLower(value)]; ok {
		return v
	}
	return unknown
}

func parseNumeric(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return -1
	}
	return v
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func expiryMonthsRemaining(month, year string, now time.Time) float64 {
	m, errM := strconv.Atoi(strings.TrimSpace(month))
	y, errY := strconv.Atoi(strings.TrimSpace(year))
	if errM != nil || errY != nil || m < 1 || m > 12 {
		return 12 // assume valid when unparseable, structural checks flag it
	}
	return float64((y-now.UTC().Year())*12 + (m - int(now.UTC().Month())))
}

func settlementLagDays(clearing, settlement string) (float64, bool) {
	if clearing == "" || settlement == "" {
		return 0, false
	}
	c, err := parseTimestamp(clearing)
	if err != nil {
		return 0, false
	}
	s, err := parseTimestamp(settlement)
	if err != nil {
		return 0, false
	}
	return s.Sub(c).Hours() / 24, true
}
