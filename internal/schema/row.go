package schema

import "strconv"

// Row is the flattened, prefixed view of a TransactionRecord. Values are
// strings, float64s, bools, or nil when the source field was absent. All
// consumers read it through the typed accessors below so every stage shares
// one null-handling contract.
type Row map[string]any

// String returns the value at key as a string, or def when the key is absent,
// nil, or empty.
func (r Row) String(key, def string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

// Float returns the value at key as a float64, or def when absent or nil.
func (r Row) Float(key string, def float64) float64 {
	v, ok := r[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return def
	}
}

// Bool returns the value at key as a bool, or def when absent or nil.
func (r Row) Bool(key string, def bool) bool {
	v, ok := r[key]
	if !ok || v == nil {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// Has reports whether key holds a non-nil, non-empty value.
func (r Row) Has(key string) bool {
	v, ok := r[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

func put(r Row, key string, v any) {
	r[key] = v
}

func putStrPtr(r Row, key string, v *string) {
	if v == nil {
		r[key] = nil
		return
	}
	r[key] = *v
}

func putFloatPtr(r Row, key string, v *float64) {
	if v == nil {
		r[key] = nil
		return
	}
	r[key] = *v
}

// Flatten produces the prefixed Row view of a record. Keys follow the
// section_field convention (txn_amount, merchant_country, ...).
func Flatten(rec TransactionRecord) Row {
	r := make(Row, 64)

	put(r, "txn_transaction_id", rec.Transaction.TransactionID)
	put(r, "txn_merchant_order_id", rec.Transaction.MerchantOrderID)
	put(r, "txn_type", rec.Transaction.Type)
	put(r, "txn_amount", rec.Transaction.Amount)
	put(r, "txn_currency", rec.Transaction.Currency)
	put(r, "txn_timestamp", rec.Transaction.Timestamp)
	put(r, "txn_status", rec.Transaction.Status)
	put(r, "txn_response_code", rec.Transaction.ResponseCode)
	putStrPtr(r, "txn_authorization_code", rec.Transaction.AuthorizationCode)

	put(r, "card_network", rec.Card.Network)
	put(r, "card_pan_token", rec.Card.PANToken)
	put(r, "card_bin", rec.Card.BIN)
	put(r, "card_last4", rec.Card.Last4)
	put(r, "card_expiry_month", rec.Card.ExpiryMonth)
	put(r, "card_expiry_year", rec.Card.ExpiryYear)
	put(r, "card_card_type", rec.Card.CardType)
	put(r, "card_funding_source", rec.Card.FundingSource)
	put(r, "card_issuer_bank", rec.Card.IssuerBank)

	put(r, "merchant_merchant_id", rec.Merchant.MerchantID)
	put(r, "merchant_terminal_id", rec.Merchant.TerminalID)
	put(r, "merchant_merchant_name", rec.Merchant.MerchantName)
	put(r, "merchant_category_code", rec.Merchant.MerchantCategoryCode)
	put(r, "merchant_country", rec.Merchant.Country)
	put(r, "merchant_acquirer_bank", rec.Merchant.AcquirerBank)
	put(r, "merchant_settlement_account", rec.Merchant.SettlementAccount)

	put(r, "customer_customer_id", rec.Customer.CustomerID)
	putStrPtr(r, "customer_email", rec.Customer.Email)
	putStrPtr(r, "customer_phone", rec.Customer.Phone)
	put(r, "customer_billing_address_city", rec.Customer.BillingAddress.City)
	put(r, "customer_billing_address_country", rec.Customer.BillingAddress.Country)
	put(r, "customer_shipping_address_city", rec.Customer.ShippingAddress.City)
	put(r, "customer_shipping_address_country", rec.Customer.ShippingAddress.Country)
	put(r, "customer_ip_address", rec.Customer.IPAddress)
	put(r, "customer_device_fingerprint", rec.Customer.DeviceFingerprint)
	put(r, "customer_user_agent", rec.Customer.UserAgent)

	put(r, "auth_three_ds_version", rec.Authentication.ThreeDSVersion)
	put(r, "auth_eci", rec.Authentication.ECI)
	putStrPtr(r, "auth_cavv", rec.Authentication.CAVV)
	putStrPtr(r, "auth_ds_transaction_id", rec.Authentication.DSTransactionID)
	put(r, "auth_authentication_result", rec.Authentication.AuthenticationResult)

	put(r, "fraud_risk_score", rec.Fraud.RiskScore)
	put(r, "fraud_risk_level", rec.Fraud.RiskLevel)
	put(r, "fraud_velocity_check", rec.Fraud.VelocityCheck)
	put(r, "fraud_geo_check", rec.Fraud.GeoCheck)

	put(r, "network_transaction_id", rec.Network.NetworkTransactionID)
	put(r, "network_acquirer_reference_number", rec.Network.AcquirerReferenceNumber)
	put(r, "network_routing_region", rec.Network.RoutingRegion)
	put(r, "network_interchange_category", rec.Network.InterchangeCategory)

	put(r, "compliance_sca_applied", rec.Compliance.SCAApplied)
	putStrPtr(r, "compliance_psd2_exemption", rec.Compliance.PSD2Exemption)
	put(r, "compliance_aml_screening", rec.Compliance.AMLScreening)
	putStrPtr(r, "compliance_tax_reference", rec.Compliance.TaxReference)
	put(r, "compliance_audit_log_id", rec.Compliance.AuditLogID)

	put(r, "settlement_batch_id", rec.Settlement.SettlementBatchID)
	putStrPtr(r, "settlement_clearing_date", rec.Settlement.ClearingDate)
	putStrPtr(r, "settlement_settlement_date", rec.Settlement.SettlementDate)
	putFloatPtr(r, "settlement_gross_amount", rec.Settlement.GrossAmount)
	putFloatPtr(r, "settlement_interchange_fee", rec.Settlement.InterchangeFee)
	putFloatPtr(r, "settlement_gateway_fee", rec.Settlement.GatewayFee)
	putFloatPtr(r, "settlement_net_amount", rec.Settlement.NetAmount)

	put(r, "business_invoice_number", rec.BusinessMetadata.InvoiceNumber)
	put(r, "business_product_category", rec.BusinessMetadata.ProductCategory)
	putStrPtr(r, "business_promo_code", rec.BusinessMetadata.PromoCode)
	putStrPtr(r, "business_campaign", rec.BusinessMetadata.Campaign)

	return r
}

// RecordID returns the record's primary identifier, falling back to the
// positional index when the transaction id is missing.
func (r Row) RecordID(index int) string {
	if id := r.String("txn_transaction_id", ""); id != "" {
		return id
	}
	return "record_" + strconv.Itoa(index)
}
