package features

import (
	"math"
	"testing"
	"time"

	"github.com/davidahmann/txnscore/internal/schema"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testRow() schema.Row {
	auth := "A12345"
	email := "user@example.com"
	gross, interchange, gateway, net := 500.0, 9.0, 1.5, 489.5
	clearing, settlement := "2026-08-02", "2026-08-04"
	return schema.Flatten(schema.TransactionRecord{
		Transaction: schema.Transaction{
			TransactionID:     "txn_1",
			Amount:            500,
			Currency:          "INR",
			Timestamp:         "2026-08-01T10:00:00Z",
			Status:            "approved",
			AuthorizationCode: &auth,
		},
		Card:     schema.Card{Network: "VISA", BIN: "411111", ExpiryMonth: "12", ExpiryYear: "2027", CardType: "credit"},
		Merchant: schema.Merchant{MerchantID: "MID_1", MerchantCategoryCode: "5812", Country: "IN"},
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
			GrossAmount:    &gross,
			InterchangeFee: &interchange,
			GatewayFee:     &gateway,
			NetAmount:      &net,
			ClearingDate:   &clearing,
			SettlementDate: &settlement,
		},
	})
}

func TestExtractCoreFeatures(t *testing.T) {
	f := Extract(testRow(), testNow)

	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"txn_amount", f.Get("txn_amount", -1), 500},
		{"txn_is_high_value", f.Get("txn_is_high_value", -1), 0},
		{"txn_status_encoded", f.Get("txn_status_encoded", -1), 0},
		{"txn_hour_of_day", f.Get("txn_hour_of_day", -1), 10},
		{"txn_age_minutes", f.Get("txn_age_minutes", -1), 120},
		{"merchant_is_domestic", f.Get("merchant_is_domestic", -1), 1},
		{"merchant_country_high_risk", f.Get("merchant_country_high_risk", -1), 0},
		{"merchant_mcc_first2", f.Get("merchant_mcc_first2", -1), 58},
		{"fraud_risk_score", f.Get("fraud_risk_score", -1), 20},
		{"fraud_velocity_passed", f.Get("fraud_velocity_passed", -1), 1},
		{"compliance_aml_clear", f.Get("compliance_aml_clear", -1), 1},
		{"settlement_present", f.Get("settlement_present", -1), 1},
		{"settlement_lag_days", f.Get("settlement_lag_days", -1), 2},
	}
	for _, tc := range cases {
		if math.Abs(tc.got-tc.want) > 1e-9 {
			t.Fatalf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}

	wantLog := math.Log1p(500)
	if math.Abs(f.Get("txn_amount_log", -1)-wantLog) > 1e-9 {
		t.Fatalf("txn_amount_log = %v, want %v", f.Get("txn_amount_log", -1), wantLog)
	}
	wantRatio := (9.0 + 1.5) / 500.0
	if math.Abs(f.Get("settlement_fee_ratio", -1)-wantRatio) > 1e-9 {
		t.Fatalf("settlement_fee_ratio = %v, want %v", f.Get("settlement_fee_ratio", -1), wantRatio)
	}
}

func TestExtractExpiryMonths(t *testing.T) {
	f := Extract(testRow(), testNow)
	// 12/2027 seen from 08/2026 is 16 months out.
	if got := f.Get("card_expiry_months_remaining", 0); got != 16 {
		t.Fatalf("card_expiry_months_remaining = %v, want 16", got)
	}
	if got := f.Get("card_is_expired", -1); got != 0 {
		t.Fatalf("card_is_expired = %v, want 0", got)
	}

	row := testRow()
	row["card_expiry_month"] = "05"
	row["card_expiry_year"] = "2024"
	f = Extract(row, testNow)
	if got := f.Get("card_expiry_months_remaining", 0); got >= 0 {
		t.Fatalf("expired card months remaining = %v, want negative", got)
	}
	if got := f.Get("card_is_expired", -1); got != 1 {
		t.Fatalf("card_is_expired = %v, want 1", got)
	}

	row["card_expiry_month"] = "not-a-month"
	f = Extract(row, testNow)
	if got := f.Get("card_expiry_months_remaining", 0); got != 12 {
		t.Fatalf("unparseable expiry months remaining = %v, want 12", got)
	}
}

func TestExtractUnparseableTimestamp(t *testing.T) {
	row := testRow()
	row["txn_timestamp"] = "yesterday-ish"
	f := Extract(row, testNow)

	if got := f.Get("txn_hour_of_day", 0); got != -1 {
		t.Fatalf("txn_hour_of_day = %v, want -1", got)
	}
	if got := f.Get("txn_age_minutes", 0); got != -1 {
		t.Fatalf("txn_age_minutes = %v, want -1", got)
	}
}

func TestVectorOrderingStable(t *testing.T) {
	f := Extract(testRow(), testNow)
	vec := f.Vector()
	if len(vec) != len(VectorNames) {
		t.Fatalf("vector length = %d, want %d", len(vec), len(VectorNames))
	}
	for i, name := range VectorNames {
		if vec[i] != f.Get(name, 0) {
			t.Fatalf("vec[%d] (%s) = %v, want %v", i, name, vec[i], f.Get(name, 0))
		}
	}
}
