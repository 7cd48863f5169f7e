package ingest

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/davidahmann/txnscore/internal/schema"
)

// Generator produces realistic synthetic transaction records. A fixed seed
// gives a reproducible stream; AnomalyRate controls how often a record
// carries anomalous traits.
type Generator struct {
	rng         *rand.Rand
	clock       func() time.Time
	AnomalyRate float64
	count       int
}

var (
	networks       = []string{"VISA", "Mastercard", "RuPay", "AMEX"}
	cardTypes      = []string{"credit", "debit", "prepaid"}
	fundingSources = []string{"consumer", "commercial", "prepaid"}
	issuerBanks    = []string{"HDFC Bank", "ICICI Bank", "SBI", "Axis Bank", "Kotak", "Yes Bank"}
	acquirerBanks  = []string{"Axis Bank", "HDFC Bank", "ICICI Bank", "RBL Bank"}

	merchantNames = []string{
		"Amazon India", "Flipkart", "Swiggy", "Zomato", "BookMyShow",
		"MakeMyTrip", "Uber India", "Ola Cabs", "Big Bazaar", "Reliance Digital",
		"Croma", "Myntra", "Nykaa", "PharmEasy", "1mg", "Urban Company",
	}

	mccCodes = []string{"5812", "5411", "5541", "5311", "4111", "5999", "7011", "4722", "5621", "5732"}

	cities = []schema.Address{
		{City: "Bengaluru", State: "KA", Country: "IN", PostalCode: "560001"},
		{City: "Mumbai", State: "MH", Country: "IN", PostalCode: "400001"},
		{City: "Delhi", State: "DL", Country: "IN", PostalCode: "110001"},
		{City: "Chennai", State: "TN", Country: "IN", PostalCode: "600001"},
		{City: "Hyderabad", State: "TS", Country: "IN", PostalCode: "500001"},
		{City: "Pune", State: "MH", Country: "IN", PostalCode: "411001"},
		{City: "Kolkata", State: "WB", Country: "IN", PostalCode: "700001"},
		{City: "Ahmedabad", State: "GJ", Country: "IN", PostalCode: "380001"},
	}

	highRiskCountries = []string{"NG", "RU", "KP", "AF", "PK"}
	binNumbers        = []string{"411111", "422222", "433333", "511111", "522222", "653333"}
	userAgents        = []string{"Chrome/Windows", "Safari/MacOS", "Firefox/Linux", "Chrome/Android", "Safari/iOS"}
)

// NewGenerator builds a seeded generator. clock may be nil; time.Now is used.
func NewGenerator(seed int64, anomalyRate float64, clock func() time.Time) *Generator {
	if clock == nil {
		clock = time.Now
	}
	if anomalyRate < 0 {
		anomalyRate = 0
	}
	if anomalyRate > 1 {
		anomalyRate = 1
	}
	return &Generator{
		rng:         rand.New(rand.NewSource(seed)),
		clock:       clock,
		AnomalyRate: anomalyRate,
	}
}

// Batch generates n records.
func (g *Generator) Batch(n int) []schema.TransactionRecord {
	out := make([]schema.TransactionRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Next())
	}
	return out
}

// Next generates one record.
func (g *Generator) Next() schema.TransactionRecord {
	g.count++
	r := g.rng
	isAnomaly := r.Float64() < g.AnomalyRate
	now := g.clock().UTC()

	txnID := "txn_" + strings.ToUpper(g.hex(12))
	timestamp := now.Add(-time.Duration(r.Intn(6)) * time.Second)

	var amount float64
	if isAnomaly && r.Float64() < 0.5 {
		amount = float64(50000 + r.Intn(450001))
	} else {
		switch r.Intn(3) {
		case 0:
			amount = float64(100 + r.Intn(901))
		case 1:
			amount = float64(1000 + r.Intn(4001))
		default:
			amount = float64(5000 + r.Intn(15001))
		}
	}

	status := "approved"
	responseCode := "00"
	if isAnomaly && r.Float64() < 0.3 {
		status = pick(r, []string{"declined", "failed", "pending"})
		responseCode = pick(r, []string{"05", "51", "14", "54"})
	}
	var authCode *string
	if status == "approved" {
		c := fmt.Sprintf("A%05d", 10000+r.Intn(90000))
		authCode = &c
	}

	addr := cities[r.Intn(len(cities))]
	country := "IN"
	if isAnomaly && r.Float64() < 0.4 {
		country = pick(r, highRiskCountries)
		addr = schema.Address{City: "Unknown", State: "XX", Country: country, PostalCode: addr.PostalCode}
	}
	billing := addr
	billing.Country = country
	shipping := billing

	var riskScore float64
	riskLevel := "low"
	if isAnomaly {
		riskScore = float64(60 + r.Intn(40))
		if riskScore > 80 {
			riskLevel = "high"
		} else {
			riskLevel = "medium"
		}
	} else {
		riskScore = float64(5 + r.Intn(36))
	}

	velocityCheck := "pass"
	if isAnomaly && r.Float64() < 0.4 {
		velocityCheck = "fail"
	}
	geoCheck := "pass"
	if isAnomaly && r.Float64() < 0.3 {
		geoCheck = "fail"
	}

	amlScreening := "clear"
	if r.Float64() <= 0.05 {
		amlScreening = "review"
	}
	authResult := "authenticated"
	if r.Float64() <= 0.1 {
		authResult = "failed"
	}

	interchange := float64(int(amount * 0.008))
	gateway := float64(int(amount * 0.003))
	net := amount - float64(int(amount*0.011))
	clearing := now.AddDate(0, 0, 1).Format("2006-01-02")
	settlementDate := now.AddDate(0, 0, 2).Format("2006-01-02")
	cavv := strings.ToUpper(g.hex(9))
	dsTxn := "ds_" + g.hex(12)
	taxRef := "GST_" + strings.ToUpper(g.hex(8))

	return schema.TransactionRecord{
		Transaction: schema.Transaction{
			TransactionID:     txnID,
			MerchantOrderID:   fmt.Sprintf("order_%05d", 10000+r.Intn(90000)),
			Type:              "authorization",
			Amount:            amount,
			Currency:          "INR",
			Timestamp:         timestamp.Format("2006-01-02T15:04:05") + "Z",
			Status:            status,
			ResponseCode:      responseCode,
			AuthorizationCode: authCode,
		},
		Card: schema.Card{
			Network:       pick(r, networks),
			PANToken:      "tok_" + g.hex(12),
			BIN:           pick(r, binNumbers),
			Last4:         fmt.Sprintf("%04d", 1000+r.Intn(9000)),
			ExpiryMonth:   fmt.Sprintf("%02d", 1+r.Intn(12)),
			ExpiryYear:    fmt.Sprintf("%d", 2025+r.Intn(6)),
			CardType:      pick(r, cardTypes),
			FundingSource: pick(r, fundingSources),
			IssuerBank:    pick(r, issuerBanks),
		},
		Merchant: schema.Merchant{
			MerchantID:           fmt.Sprintf("MID_%04d", 1000+r.Intn(9000)),
			TerminalID:           fmt.Sprintf("TID_%04d", 1000+r.Intn(9000)),
			MerchantName:         pick(r, merchantNames),
			MerchantCategoryCode: pick(r, mccCodes),
			Country:              country,
			AcquirerBank:         pick(r, acquirerBanks),
			SettlementAccount:    fmt.Sprintf("XXXXXX%04d", 1000+r.Intn(9000)),
		},
		Customer: schema.Customer{
			CustomerID:        "cust_" + g.hex(8),
			Email:             maybe(r, fmt.Sprintf("user%d@example.com", 100+r.Intn(900)), 0.9),
			Phone:             maybe(r, fmt.Sprintf("+91%d", 7000000000+r.Int63n(3000000000)), 0.9),
			BillingAddress:    billing,
			ShippingAddress:   shipping,
			IPAddress:         fmt.Sprintf("%d.%d.%d.%d", 1+r.Intn(255), 1+r.Intn(255), 1+r.Intn(255), 1+r.Intn(255)),
			DeviceFingerprint: "fp_" + g.hex(12),
			UserAgent:         pick(r, userAgents),
		},
		Authentication: schema.Authentication{
			ThreeDSVersion:       pick(r, []string{"2.1", "2.2", "1.0"}),
			ECI:                  pick(r, []string{"05", "06", "07"}),
			CAVV:                 &cavv,
			DSTransactionID:      &dsTxn,
			AuthenticationResult: authResult,
		},
		Fraud: schema.Fraud{
			RiskScore:     riskScore,
			RiskLevel:     riskLevel,
			VelocityCheck: velocityCheck,
			GeoCheck:      geoCheck,
		},
		Network: schema.Network{
			NetworkTransactionID:    "net_" + g.hex(12),
			AcquirerReferenceNumber: fmt.Sprintf("ARN_%012d", 100000000000+r.Int63n(900000000000)),
			RoutingRegion:           "APAC",
			InterchangeCategory:     "consumer_credit",
		},
		Compliance: schema.Compliance{
			SCAApplied:   r.Intn(2) == 0,
			AMLScreening: amlScreening,
			TaxReference: &taxRef,
			AuditLogID:   "audit_" + g.hex(12),
		},
		Settlement: schema.Settlement{
			SettlementBatchID: "batch_" + g.hex(8),
			ClearingDate:      &clearing,
			SettlementDate:    &settlementDate,
			GrossAmount:       &amount,
			InterchangeFee:    &interchange,
			GatewayFee:        &gateway,
			NetAmount:         &net,
		},
		BusinessMetadata: schema.BusinessMetadata{
			InvoiceNumber:   fmt.Sprintf("INV_%05d", 10000+r.Intn(90000)),
			ProductCategory: pick(r, []string{"Electronics", "Fashion", "Food", "Travel", "Entertainment", "Services"}),
			PromoCode:       pickOptional(r, []string{"NEWUSER", "SAVE10", "SPECIAL"}),
			Campaign:        pickOptional(r, []string{"HolidaySale", "Weekend", "Flash"}),
		},
	}
}

const hexDigits = "0123456789abcdef"

func (g *Generator) hex(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(hexDigits[g.rng.Intn(16)])
	}
	return b.String()
}

func pick(r *rand.Rand, options []string) string {
	return options[r.Intn(len(options))]
}

// pickOptional returns nil roughly as often as any single option.
func pickOptional(r *rand.Rand, options []string) *string {
	i := r.Intn(len(options) + 1)
	if i == 0 {
		return nil
	}
	return &options[i-1]
}

func maybe(r *rand.Rand, v string, p float64) *string {
	if r.Float64() > p {
		return nil
	}
	return &v
}
