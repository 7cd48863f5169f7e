package ingest

import (
	"math"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestAdaptCSVWellMappedSource(t *testing.T) {
	content := strings.Join([]string{
		"txn_id,amount,currency,timestamp,network,card_type,merchant_id,mcc,country",
		"T001,2500.50,INR,2026-07-15 10:30:00,VISA,credit,MID_9,5812,IN",
		"T002,120,INR,2026-07-16,Mastercard,debit,MID_9,5411,IN",
	}, "\n")

	records, meta, err := AdaptCSV(content, testNow)
	if err != nil {
		t.Fatalf("AdaptCSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}

	// 9 of the 11 required fields are mappable from these headers.
	if got := math.Round(meta.ComplianceScore*100) / 100; got != 81.82 {
		t.Fatalf("compliance = %v, want 81.82", got)
	}
	if !meta.IsStandardFormat {
		t.Fatal("source above threshold not marked standard")
	}
	if len(meta.Warnings) != 0 {
		t.Fatalf("warnings = %v", meta.Warnings)
	}
	if len(meta.MissingFields) != 2 {
		t.Fatalf("missing = %v", meta.MissingFields)
	}
	for _, want := range []string{"customer.customer_id", "fraud.risk_score"} {
		found := false
		for _, m := range meta.MissingFields {
			if m == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing fields %v lack %q", meta.MissingFields, want)
		}
	}

	r := records[0]
	if r.Transaction.TransactionID != "T001" || r.Transaction.Amount != 2500.50 {
		t.Fatalf("record = %+v", r.Transaction)
	}
	if r.Transaction.Timestamp != "2026-07-15T10:30:00Z" {
		t.Fatalf("timestamp = %q", r.Transaction.Timestamp)
	}
	if r.Card.Network != "VISA" || r.Merchant.MerchantCategoryCode != "5812" {
		t.Fatalf("record = %+v / %+v", r.Card, r.Merchant)
	}
}

func TestAdaptCSVDefaults(t *testing.T) {
	records, meta, err := AdaptCSV("amount\n150.75", testNow)
	if err != nil {
		t.Fatalf("AdaptCSV: %v", err)
	}
	r := records[0]

	// Only 1 of 11 required fields maps.
	if got := math.Round(meta.ComplianceScore*100) / 100; got != 9.09 {
		t.Fatalf("compliance = %v, want 9.09", got)
	}
	if meta.IsStandardFormat {
		t.Fatal("near-empty mapping marked standard")
	}
	if len(meta.Warnings) != 2 {
		t.Fatalf("warnings = %v", meta.Warnings)
	}
	if !strings.Contains(meta.Warnings[0], "...") {
		t.Fatalf("long missing list not truncated: %q", meta.Warnings[0])
	}
	if !strings.Contains(meta.Warnings[1], "Critical") {
		t.Fatalf("warnings = %v", meta.Warnings)
	}
	if meta.QualityPenalty <= 40 {
		t.Fatalf("penalty = %v, want (100-score)/2", meta.QualityPenalty)
	}

	if r.Transaction.TransactionID != "csv_row_00000000" {
		t.Fatalf("transaction id = %q", r.Transaction.TransactionID)
	}
	if r.Transaction.Currency != "INR" || r.Transaction.Status != "pending" {
		t.Fatalf("transaction = %+v", r.Transaction)
	}
	if r.Transaction.Timestamp != "2026-08-01T12:00:00Z" {
		t.Fatalf("fallback timestamp = %q", r.Transaction.Timestamp)
	}
	if r.Fraud.RiskScore != 50 || r.Fraud.RiskLevel != "medium" {
		t.Fatalf("fraud = %+v", r.Fraud)
	}
	if r.Card.Network != "UNKNOWN" || r.Merchant.Country != "XX" {
		t.Fatalf("card/merchant = %+v / %+v", r.Card, r.Merchant)
	}
	if r.Settlement.GrossAmount == nil || *r.Settlement.GrossAmount != 150.75 {
		t.Fatalf("settlement = %+v", r.Settlement)
	}
	if *r.Settlement.InterchangeFee != round2(150.75*0.018) {
		t.Fatalf("interchange = %v", *r.Settlement.InterchangeFee)
	}
	if r.Transaction.AuthorizationCode == nil || *r.Transaction.AuthorizationCode != "CSV00000" {
		t.Fatalf("auth code = %v", r.Transaction.AuthorizationCode)
	}
}

func TestAdaptCSVRiskScoreClamped(t *testing.T) {
	content := "txn_id,risk_score\nT1,250.9\nT2,-10\nT3,junk"
	records, _, err := AdaptCSV(content, testNow)
	if err != nil {
		t.Fatalf("AdaptCSV: %v", err)
	}
	if records[0].Fraud.RiskScore != 100 || records[0].Fraud.RiskLevel != "high" {
		t.Fatalf("fraud[0] = %+v", records[0].Fraud)
	}
	if records[1].Fraud.RiskScore != 0 || records[1].Fraud.RiskLevel != "low" {
		t.Fatalf("fraud[1] = %+v", records[1].Fraud)
	}
	if records[2].Fraud.RiskScore != 50 {
		t.Fatalf("fraud[2] = %+v", records[2].Fraud)
	}
}

func TestAdaptCSVEmpty(t *testing.T) {
	records, meta, err := AdaptCSV("", testNow)
	if err != nil {
		t.Fatalf("AdaptCSV: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %+v", records)
	}
	if len(meta.Warnings) != 1 || meta.Warnings[0] != "No data provided" {
		t.Fatalf("warnings = %v", meta.Warnings)
	}
}

func TestNormalizeTimestampFormats(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2026-07-15T10:30:00", "2026-07-15T10:30:00Z"},
		{"2026-07-15T10:30:00.123456", "2026-07-15T10:30:00Z"}, // truncated to seconds
		{"2026-07-15 10:30:00", "2026-07-15T10:30:00Z"},
		{"2026-07-15", "2026-07-15T00:00:00Z"},
		{"15-07-2026", "2026-07-15T00:00:00Z"},
		{"07/15/2026", "2026-07-15T00:00:00Z"},
		{"not a date", "2026-08-01T12:00:00Z"},
		{"", "2026-08-01T12:00:00Z"},
	}
	for _, tc := range cases {
		if got := normalizeTimestamp(tc.in, testNow); got != tc.want {
			t.Fatalf("normalizeTimestamp(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAdaptJSONNestedPassthrough(t *testing.T) {
	data := []byte(`[{"transaction":{"transaction_id":"txn_1","amount":500,"currency":"INR","timestamp":"2026-07-15T10:30:00Z","status":"approved"},"card":{"network":"VISA"},"merchant":{"merchant_id":"MID_1"},"customer":{"customer_id":"cust_1"}}]`)

	records, meta, err := AdaptJSON(data, testNow)
	if err != nil {
		t.Fatalf("AdaptJSON: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records", len(records))
	}
	if meta.ComplianceScore != 100 || !meta.IsStandardFormat {
		t.Fatalf("meta = %+v", meta)
	}
	if records[0].Transaction.TransactionID != "txn_1" || records[0].Card.Network != "VISA" {
		t.Fatalf("record = %+v", records[0])
	}
}

func TestAdaptJSONFlatObjects(t *testing.T) {
	data := []byte(`[{"txn_id":"T9","amount":75.5,"currency":"USD","mcc":"5411","active":true}]`)

	records, meta, err := AdaptJSON(data, testNow)
	if err != nil {
		t.Fatalf("AdaptJSON: %v", err)
	}
	r := records[0]
	if r.Transaction.TransactionID != "T9" || r.Transaction.Amount != 75.5 {
		t.Fatalf("transaction = %+v", r.Transaction)
	}
	if r.Transaction.Currency != "USD" || r.Merchant.MerchantCategoryCode != "5411" {
		t.Fatalf("record = %+v", r)
	}
	if meta.Source != "json" || meta.IsStandardFormat {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestAdaptJSONMalformed(t *testing.T) {
	if _, _, err := AdaptJSON([]byte(`{"not":"an array"}`), testNow); err == nil {
		t.Fatal("expected error for non-array payload")
	}
}

func TestDetectColumnsCaseInsensitive(t *testing.T) {
	mapping := detectColumns([]string{" TXN_ID ", "Amount", "CCY"})
	if mapping["transaction_id"] != " TXN_ID " {
		t.Fatalf("transaction_id mapped to %q", mapping["transaction_id"])
	}
	if mapping["amount"] != "Amount" || mapping["currency"] != "CCY" {
		t.Fatalf("mapping = %v", mapping)
	}
}
