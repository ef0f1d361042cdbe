package domain

import "time"

// Money amounts are integer minor currency units (kobo). Percentages travel
// through the API as plain percents and are converted to basis points at the
// pricing boundary.

type CatalogItem struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	PriceMinor int64    `json:"price_minor"`
	Sizes      []string `json:"sizes"`
	Colors     []string `json:"colors"`
	Stock      int      `json:"stock"`
	Barcode    string   `json:"barcode"`
}

type LineItem struct {
	ID            string `json:"id"`
	CatalogItemID string `json:"catalog_item_id"`
	Name          string `json:"name"`
	Size          string `json:"size"`
	Color         string `json:"color"`
	Quantity      int    `json:"quantity"`
	// UnitPriceMinor is snapshotted at insertion time so a later catalog
	// price change does not alter an in-progress cart.
	UnitPriceMinor int64 `json:"unit_price_minor"`
}

type PriceBreakdown struct {
	SubtotalMinor int64   `json:"subtotal_minor"`
	DiscountMinor int64   `json:"discount_minor"`
	TaxableMinor  int64   `json:"taxable_minor"`
	TaxMinor      int64   `json:"tax_minor"`
	TotalMinor    int64   `json:"total_minor"`
	DiscountPct   float64 `json:"discount_percent"`
	TaxRatePct    float64 `json:"tax_rate_percent"`
}

const (
	PaymentCash        = "cash"
	PaymentTransfer    = "transfer"
	PaymentCardPresent = "card_present"
)

type Tender struct {
	Method              string `json:"method"`
	AmountReceivedMinor int64  `json:"amount_received_minor"`
}

type Sale struct {
	ReceiptNo     string         `json:"receipt_no"`
	Items         []LineItem     `json:"items"`
	Breakdown     PriceBreakdown `json:"breakdown"`
	PaymentMethod string         `json:"payment_method"`
	ChangeMinor   int64          `json:"change_minor"`
	CashierID     string         `json:"cashier_id"`
	CashierName   string         `json:"cashier_name"`
	BranchID      string         `json:"branch_id"`
	IssuedAt      time.Time      `json:"issued_at"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type AddItemRequest struct {
	CatalogItemID string `json:"catalog_item_id"`
	Size          string `json:"size"`
	Color         string `json:"color"`
	Quantity      int    `json:"quantity"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type SetDiscountRequest struct {
	Percent float64 `json:"percent"`
}

type CartView struct {
	TerminalID string         `json:"terminal_id"`
	Items      []LineItem     `json:"items"`
	ItemCount  int            `json:"item_count"`
	Breakdown  PriceBreakdown `json:"breakdown"`
}

type CheckoutStateResponse struct {
	TerminalID string         `json:"terminal_id"`
	State      string         `json:"state"`
	Breakdown  PriceBreakdown `json:"breakdown"`
}

type TenderRequest struct {
	Method              string `json:"method"`
	AmountReceivedMinor int64  `json:"amount_received_minor"`
}

type TenderResponse struct {
	State string `json:"state"`
	Sale  *Sale  `json:"sale,omitempty"`
}

type SalesListResponse struct {
	Sales              []Sale `json:"sales"`
	TotalSalesMinor    int64  `json:"total_sales_minor"`
	TotalDiscountMinor int64  `json:"total_discount_minor"`
	TotalTaxMinor      int64  `json:"total_tax_minor"`
}

type CashierSummary struct {
	CashierID          string `json:"cashier_id"`
	CashierName        string `json:"cashier_name"`
	Transactions       int64  `json:"transactions"`
	TotalSalesMinor    int64  `json:"total_sales_minor"`
	TotalDiscountMinor int64  `json:"total_discount_minor"`
	TotalTaxMinor      int64  `json:"total_tax_minor"`
}

type CashierSummaryResponse struct {
	Summaries []CashierSummary `json:"summaries"`
}

type DailyReportPayment struct {
	PaymentMethod string `json:"payment_method"`
	Transactions  int64  `json:"transactions"`
	TotalMinor    int64  `json:"total_minor"`
}

type DailyReport struct {
	BranchID           string               `json:"branch_id"`
	Date               string               `json:"date"`
	Transactions       int64                `json:"transactions"`
	GrossSalesMinor    int64                `json:"gross_sales_minor"`
	TotalDiscountMinor int64                `json:"total_discount_minor"`
	TotalTaxMinor      int64                `json:"total_tax_minor"`
	NetSalesMinor      int64                `json:"net_sales_minor"`
	ByPayment          []DailyReportPayment `json:"by_payment"`
}

type ReceiptRenderResponse struct {
	ReceiptNo    string `json:"receipt_no"`
	EscposBase64 string `json:"escpos_base64"`
	PreviewText  string `json:"preview_text"`
	FileName     string `json:"file_name"`
}

type TaxRateResponse struct {
	TaxRatePercent float64 `json:"tax_rate_percent"`
}

type SetTaxRateRequest struct {
	TaxRatePercent float64 `json:"tax_rate_percent"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Name      string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	BranchID      string    `json:"branch_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
