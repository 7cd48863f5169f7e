package schema

// TransactionRecord is the canonical nested transaction schema. Records are
// owned by the caller and treated as immutable for the duration of one run.
type TransactionRecord struct {
	Transaction      Transaction      `json:"transaction"`
	Card             Card             `json:"card"`
	Merchant         Merchant         `json:"merchant"`
	Customer         Customer         `json:"customer"`
	Authentication   Authentication   `json:"authentication"`
	Fraud            Fraud            `json:"fraud"`
	Network          Network          `json:"network"`
	Compliance       Compliance       `json:"compliance"`
	Settlement       Settlement       `json:"settlement"`
	BusinessMetadata BusinessMetadata `json:"business_metadata"`
}

type Transaction struct {
	TransactionID     string  `json:"transaction_id"`
	MerchantOrderID   string  `json:"merchant_order_id"`
	Type              string  `json:"type"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	Timestamp         string  `json:"timestamp"`
	Status            string  `json:"status"`
	ResponseCode      string  `json:"response_code"`
	AuthorizationCode *string `json:"authorization_code"`
}

type Card struct {
	Network       string `json:"network"`
	PANToken      string `json:"pan_token"`
	BIN           string `json:"bin"`
	Last4         string `json:"last4"`
	ExpiryMonth   string `json:"expiry_month"`
	ExpiryYear    string `json:"expiry_year"`
	CardType      string `json:"card_type"`
	FundingSource string `json:"funding_source"`
	IssuerBank    string `json:"issuer_bank"`
}

type Merchant struct {
	MerchantID           string `json:"merchant_id"`
	TerminalID           string `json:"terminal_id"`
	MerchantName         string `json:"merchant_name"`
	MerchantCategoryCode string `json:"merchant_category_code"`
	Country              string `json:"country"`
	AcquirerBank         string `json:"acquirer_bank"`
	SettlementAccount    string `json:"settlement_account"`
}

type Address struct {
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

type Customer struct {
	CustomerID        string  `json:"customer_id"`
	Email             *string `json:"email"`
	Phone             *string `json:"phone"`
	BillingAddress    Address `json:"billing_address"`
	ShippingAddress   Address `json:"shipping_address"`
	IPAddress         string  `json:"ip_address"`
	DeviceFingerprint string  `json:"device_fingerprint"`
	UserAgent         string  `json:"user_agent"`
}

type Authentication struct {
	ThreeDSVersion       string  `json:"three_ds_version"`
	ECI                  string  `json:"eci"`
	CAVV                 *string `json:"cavv"`
	DSTransactionID      *string `json:"ds_transaction_id"`
	AuthenticationResult string  `json:"authentication_result"`
}

type Fraud struct {
	RiskScore     float64 `json:"risk_score"`
	RiskLevel     string  `json:"risk_level"`
	VelocityCheck string  `json:"velocity_check"`
	GeoCheck      string  `json:"geo_check"`
}

type Network struct {
	NetworkTransactionID    string `json:"network_transaction_id"`
	AcquirerReferenceNumber string `json:"acquirer_reference_number"`
	RoutingRegion           string `json:"routing_region"`
	InterchangeCategory     string `json:"interchange_category"`
}

type Compliance struct {
	SCAApplied    bool    `json:"sca_applied"`
	PSD2Exemption *string `json:"psd2_exemption"`
	AMLScreening  string  `json:"aml_screening"`
	TaxReference  *string `json:"tax_reference"`
	AuditLogID    string  `json:"audit_log_id"`
}

type Settlement struct {
	SettlementBatchID string   `json:"settlement_batch_id"`
	ClearingDate      *string  `json:"clearing_date"`
	SettlementDate    *string  `json:"settlement_date"`
	GrossAmount       *float64 `json:"gross_amount"`
	InterchangeFee    *float64 `json:"interchange_fee"`
	GatewayFee        *float64 `json:"gateway_fee"`
	NetAmount         *float64 `json:"net_amount"`
}

type BusinessMetadata struct {
	InvoiceNumber   string  `json:"invoice_number"`
	ProductCategory string  `json:"product_category"`
	PromoCode       *string `json:"promo_code"`
	Campaign        *string `json:"campaign"`
	Notes           *string `json:"notes"`
}
