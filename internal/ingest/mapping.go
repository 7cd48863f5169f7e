// Package ingest converts outside data (non-standard CSV, flat JSON,
// synthetic streams) into canonical nested transaction records.
package ingest

import (
	"fmt"
	"strings"
)

// requiredFields lists the columns a source must map for full schema
// compliance, grouped by record section.
var requiredFields = map[string][]string{
	"transaction": {"transaction_id", "amount", "currency", "timestamp"},
	"card":        {"network", "card_type"},
	"merchant":    {"merchant_id", "merchant_category_code", "country"},
	"customer":    {"customer_id"},
	"fraud":       {"risk_score"},
}

// sectionOrder keeps compliance reporting deterministic.
var sectionOrder = []string{"transaction", "card", "merchant", "customer", "fraud"}

// fieldAliases maps canonical field names to column names commonly seen in
// exported CSVs. First alias present in the header wins.
var fieldAliases = map[string][]string{
	"transaction_id": {"transaction_id", "txn_id", "id", "order_id", "ref_id", "reference"},
	"amount":         {"amount", "txn_amount", "transaction_amount", "value", "total", "price"},
	"currency":       {"currency", "currency_code", "ccy"},
	"timestamp":      {"timestamp", "date", "datetime", "txn_date", "transaction_date", "created_at"},
	"status":         {"status", "txn_status", "transaction_status", "state"},
	"type":           {"type", "txn_type", "transaction_type"},

	"network":   {"network", "card_network", "scheme"},
	"card_type": {"card_type", "type", "funding_type"},
	"bin":       {"bin", "card_bin"},
	"last4":     {"last4", "last_4", "card_last4"},

	"merchant_id":            {"merchant_id", "mid", "store_id", "seller_id"},
	"terminal_id":            {"terminal_id", "tid", "pos_id"},
	"merchant_name":          {"merchant_name", "store_name", "seller_name", "name"},
	"merchant_category_code": {"mcc", "merchant_category_code", "category_code"},
	"country":                {"country", "merchant_country", "location_country"},

	"customer_id": {"customer_id", "cust_id", "user_id", "buyer_id"},
	"email":       {"email", "customer_email", "user_email"},
	"phone":       {"phone", "mobile", "customer_phone"},
	"ip_address":  {"ip_address", "ip", "client_ip"},

	"risk_score": {"risk_score", "fraud_score", "risk"},
	"risk_level": {"risk_level", "fraud_level"},
}

// detectColumns maps canonical field names to the source column that carries
// them. Header matching is case-insensitive and whitespace-trimmed.
func detectColumns(headers []string) map[string]string {
	lower := make(map[string]string, len(headers))
	for _, h := range headers {
		lower[strings.ToLower(strings.TrimSpace(h))] = h
	}
	mapping := make(map[string]string)
	for field, aliases := range fieldAliases {
		for _, a := range aliases {
			if col, ok := lower[a]; ok {
				mapping[field] = col
				break
			}
		}
	}
	return mapping
}

// schemaCompliance scores how well the detected mapping covers the required
// fields, 0-100, and lists the missing ones as "section.field".
func schemaCompliance(mapping map[string]string) (float64, []string) {
	var missing []string
	total, found := 0, 0
	for _, section := range sectionOrder {
		for _, field := range requiredFields[section] {
			total++
			if _, ok := mapping[field]; ok {
				found++
			} else {
				missing = append(missing, fmt.Sprintf("%s.%s", section, field))
			}
		}
	}
	if total == 0 {
		return 0, missing
	}
	return float64(found) / float64(total) * 100, missing
}
