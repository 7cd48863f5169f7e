package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/davidahmann/txnscore/internal/schema"
)

// Metadata reports how an adapted source measured against the canonical
// schema. QualityPenalty is advisory: downstream scoring works from the
// constructed records, not from this number.
type Metadata struct {
	Source           string   `json:"source"`
	ComplianceScore  float64  `json:"compliance_score"`
	MissingFields    []string `json:"missing_fields,omitempty"`
	MappedFields     []string `json:"mapped_fields,omitempty"`
	OriginalColumns  []string `json:"original_columns,omitempty"`
	TotalRows        int      `json:"total_rows"`
	IsStandardFormat bool     `json:"is_standard_format"`
	QualityPenalty   float64  `json:"quality_penalty"`
	Warnings         []string `json:"warnings,omitempty"`
}

const standardFormatThreshold = 80

// AdaptCSV converts arbitrary CSV content into canonical records. Unmapped
// required fields get neutral defaults and pull the compliance score down;
// the adapter never rejects a row.
func AdaptCSV(content string, now time.Time) ([]schema.TransactionRecord, Metadata, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, Metadata{Source: "csv_import", Warnings: []string{"No data provided"}}, nil
	}

	headers := rows[0]
	mapping := detectColumns(headers)
	score, missing := schemaCompliance(mapping)

	records := make([]schema.TransactionRecord, 0, len(rows)-1)
	for i, raw := range rows[1:] {
		row := make(map[string]string, len(headers))
		for j, h := range headers {
			if j < len(raw) {
				row[h] = raw[j]
			}
		}
		records = append(records, convertRow(row, mapping, i, now))
	}

	meta := buildMetadata("csv_import", score, missing, mapping, headers, len(records))
	return records, meta, nil
}

// AdaptJSON converts a JSON array into canonical records. Already-nested
// payloads pass through; flat objects go through the same column mapping as
// CSV rows.
func AdaptJSON(data []byte, now time.Time) ([]schema.TransactionRecord, Metadata, error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, Metadata{}, fmt.Errorf("parse json: %w", err)
	}
	if len(raw) == 0 {
		return nil, Metadata{Source: "json", Warnings: []string{"No data provided"}}, nil
	}

	if nested, ok := raw[0]["transaction"]; ok && len(nested) > 0 && nested[0] == '{' {
		var records []schema.TransactionRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, Metadata{}, fmt.Errorf("parse nested records: %w", err)
		}
		return records, Metadata{
			Source:           "json",
			ComplianceScore:  100,
			IsStandardFormat: true,
			TotalRows:        len(records),
		}, nil
	}

	var flat []map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, Metadata{}, fmt.Errorf("parse flat records: %w", err)
	}

	headers := make([]string, 0, len(flat[0]))
	for k := range flat[0] {
		headers = append(headers, k)
	}
	mapping := detectColumns(headers)
	score, missing := schemaCompliance(mapping)

	records := make([]schema.TransactionRecord, 0, len(flat))
	for i, obj := range flat {
		row := make(map[string]string, len(obj))
		for k, v := range obj {
			row[k] = stringify(v)
		}
		records = append(records, convertRow(row, mapping, i, now))
	}

	meta := buildMetadata("json", score, missing, mapping, nil, len(records))
	return records, meta, nil
}

func buildMetadata(source string, score float64, missing []string, mapping map[string]string, headers []string, total int) Metadata {
	mapped := make([]string, 0, len(mapping))
	for field := range mapping {
		mapped = append(mapped, field)
	}
	meta := Metadata{
		Source:           source,
		ComplianceScore:  score,
		MissingFields:    missing,
		MappedFields:     mapped,
		OriginalColumns:  headers,
		TotalRows:        total,
		IsStandardFormat: score >= standardFormatThreshold,
		QualityPenalty:   math.Max(0, (100-score)/2),
	}
	if score < standardFormatThreshold {
		preview := missing
		suffix := ""
		if len(preview) > 5 {
			preview = preview[:5]
			suffix = "..."
		}
		meta.Warnings = append(meta.Warnings, fmt.Sprintf(
			"Schema compliance: %.0f%%. Missing fields: %s%s. Use the standard nested transaction format for best results.",
			score, strings.Join(preview, ", "), suffix))
	}
	if score < 50 {
		meta.Warnings = append(meta.Warnings,
			"Critical: less than 50% schema compliance. Quality scores will be significantly reduced.")
	}
	return meta
}

// convertRow builds a canonical record from one mapped source row. Missing
// values get neutral defaults so the record is always structurally complete.
func convertRow(row map[string]string, mapping map[string]string, index int, now time.Time) schema.TransactionRecord {
	get := func(field, def string) string {
		col, ok := mapping[field]
		if !ok {
			return def
		}
		v := strings.TrimSpace(row[col])
		if v == "" {
			return def
		}
		return v
	}

	amount, err := strconv.ParseFloat(get("amount", "0"), 64)
	if err != nil {
		amount = 0
	}

	timestamp := normalizeTimestamp(get("timestamp", ""), now)

	riskScore, err := strconv.ParseFloat(get("risk_score", "50"), 64)
	if err != nil {
		riskScore = 50
	}
	riskScore = math.Max(0, math.Min(100, math.Trunc(riskScore)))

	riskLevel := "low"
	switch {
	case riskScore > 70:
		riskLevel = "high"
	case riskScore > 40:
		riskLevel = "medium"
	}

	country := get("country", "XX")
	interchange := round2(amount * 0.018)
	gateway := round2(amount * 0.003)
	net := round2(amount * 0.979)
	authCode := fmt.Sprintf("CSV%05d", index)

	rec := schema.TransactionRecord{
		Transaction: schema.Transaction{
			TransactionID:     get("transaction_id", fmt.Sprintf("csv_row_%08d", index)),
			MerchantOrderID:   fmt.Sprintf("order_%06d", index),
			Type:              get("type", "authorization"),
			Amount:            amount,
			Currency:          get("currency", "INR"),
			Timestamp:         timestamp,
			Status:            get("status", "pending"),
			ResponseCode:      "00",
			AuthorizationCode: &authCode,
		},
		Card: schema.Card{
			Network:       get("network", "UNKNOWN"),
			PANToken:      fmt.Sprintf("csv_tok_%08d", index),
			BIN:           get("bin", "000000"),
			Last4:         get("last4", "0000"),
			ExpiryMonth:   "12",
			ExpiryYear:    "2030",
			CardType:      get("card_type", "unknown"),
			FundingSource: "unknown",
			IssuerBank:    "Unknown Bank",
		},
		Merchant: schema.Merchant{
			MerchantID:           get("merchant_id", fmt.Sprintf("CSV_MID_%d", index)),
			TerminalID:           get("terminal_id", fmt.Sprintf("CSV_TID_%d", index)),
			MerchantName:         get("merchant_name", fmt.Sprintf("CSV_Merchant_%d", index)),
			MerchantCategoryCode: get("merchant_category_code", "0000"),
			Country:              country,
			AcquirerBank:         "Unknown Bank",
			SettlementAccount:    "XXXX0000",
		},
		Customer: schema.Customer{
			CustomerID:        get("customer_id", fmt.Sprintf("csv_cust_%d", index)),
			Email:             optional(get("email", "")),
			Phone:             optional(get("phone", "")),
			BillingAddress:    schema.Address{City: "Unknown", State: "XX", Country: country, PostalCode: "000000"},
			ShippingAddress:   schema.Address{City: "Unknown", State: "XX", Country: country, PostalCode: "000000"},
			IPAddress:         get("ip_address", "0.0.0.0"),
			DeviceFingerprint: fmt.Sprintf("csv_fp_%d", index),
			UserAgent:         "CSV Import",
		},
		Authentication: schema.Authentication{
			ThreeDSVersion:       "unknown",
			ECI:                  "00",
			AuthenticationResult: "unknown",
		},
		Fraud: schema.Fraud{
			RiskScore:     riskScore,
			RiskLevel:     riskLevel,
			VelocityCheck: "unknown",
			GeoCheck:      "unknown",
		},
		Network: schema.Network{
			NetworkTransactionID:    fmt.Sprintf("csv_net_%d", index),
			AcquirerReferenceNumber: fmt.Sprintf("CSV_ARN_%d", index),
			RoutingRegion:           "UNKNOWN",
			InterchangeCategory:     "unknown",
		},
		Compliance: schema.Compliance{
			SCAApplied:   false,
			AMLScreening: "unknown",
			AuditLogID:   fmt.Sprintf("csv_audit_%d", index),
		},
		Settlement: schema.Settlement{
			SettlementBatchID: "csv_batch_" + now.Format("20060102"),
			GrossAmount:       &amount,
			InterchangeFee:    &interchange,
			GatewayFee:        &gateway,
			NetAmount:         &net,
		},
		BusinessMetadata: schema.BusinessMetadata{
			InvoiceNumber:   fmt.Sprintf("CSV_%06d", index),
			ProductCategory: "Unknown",
			Campaign:        optional("CSV_Import"),
			Notes:           optional("Imported from non-standard CSV format"),
		},
	}
	return rec
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-01-2006",
	"01/02/2006",
}

// normalizeTimestamp coerces common source formats to RFC3339 UTC. Values
// that cannot be parsed fall back to the ingest time.
func normalizeTimestamp(raw string, now time.Time) string {
	if raw != "" {
		s := raw
		if len(s) > 19 {
			s = s[:19]
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format("2006-01-02T15:04:05") + "Z"
			}
		}
	}
	return now.UTC().Format("2006-01-02T15:04:05") + "Z"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
