package domain

import "time"

type Product struct {
	SKU               string `json:"sku"`
	Name              string `json:"name"`
	Category          string `json:"category"`
	PriceCents        int64  `json:"price_cents"`
	VatType           string `json:"vat_type"`
	LowStockThreshold int    `json:"low_stock_threshold"`
	Active            bool   `json:"active"`
}

type ProductCreateRequest struct {
	SKU               string `json:"sku"`
	Name              string `json:"name"`
	Category          string `json:"category"`
	PriceCents        int64  `json:"price_cents"`
	VatType           string `json:"vat_type"`
	LowStockThreshold int    `json:"low_stock_threshold"`
	InitialStock      int    `json:"initial_stock"`
	AcquisitionCents  int64  `json:"acquisition_cents"`
}

type ProductUpdateRequest struct {
	Name              *string `json:"name,omitempty"`
	Category          *string `json:"category,omitempty"`
	PriceCents        *int64  `json:"price_cents,omitempty"`
	VatType           *string `json:"vat_type,omitempty"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty"`
	Active            *bool   `json:"active,omitempty"`
}

type ProductPriceHistory struct {
	ID            string    `json:"id"`
	SKU           string    `json:"sku"`
	OldPriceCents int64     `json:"old_price_cents"`
	NewPriceCents int64     `json:"new_price_cents"`
	ChangedBy     string    `json:"changed_by"`
	ChangedAt     time.Time `json:"changed_at"`
}

// InventoryRecord is the per-product stock ledger row. Qty never goes below
// zero; sales decrement it, refunds and delivery receipts increment it.
type InventoryRecord struct {
	SKU              string    `json:"sku"`
	Qty              int       `json:"qty"`
	AcquisitionCents int64     `json:"acquisition_cents"`
	Active           bool      `json:"active"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type InventoryView struct {
	SKU              string `json:"sku"`
	Name             string `json:"name"`
	Category         string `json:"category"`
	Qty              int    `json:"qty"`
	AcquisitionCents int64  `json:"acquisition_cents"`
	LowStock         bool   `json:"low_stock"`
}

type DeliveryReceiptRequest struct {
	SKU              string `json:"sku"`
	Qty              int    `json:"qty"`
	AcquisitionCents int64  `json:"acquisition_cents"`
	Note             string `json:"note"`
}

type StockCountItem struct {
	SKU        string `json:"sku"`
	CountedQty int    `json:"counted_qty"`
}

type StockCountRequest struct {
	Notes string           `json:"notes"`
	Items []StockCountItem `json:"items"`
}

type StockCountAdjustment struct {
	SKU        string `json:"sku"`
	SystemQty  int    `json:"system_qty"`
	CountedQty int    `json:"counted_qty"`
	DeltaQty   int    `json:"delta_qty"`
}

type StockCountResponse struct {
	CountID     string                 `json:"count_id"`
	Notes       string                 `json:"notes"`
	Adjustments []StockCountAdjustment `json:"adjustments"`
	CreatedAt   string                 `json:"created_at"`
}

type CartItem struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CheckoutRequest struct {
	IdempotencyKey  string     `json:"idempotency_key"`
	CartItems       []CartItem `json:"cart_items"`
	CashCents       int64      `json:"cash_cents"`
	DiscountType    string     `json:"discount_type"`
	PaymentMethod   string     `json:"payment_method"`
	ReferenceNumber string     `json:"reference_number,omitempty"`
	SeniorID        string     `json:"senior_id,omitempty"`
	PwdID           string     `json:"pwd_id,omitempty"`
}

type CheckoutResponse struct {
	Transaction Transaction `json:"transaction"`
	Duplicate   bool        `json:"duplicate"`
}

type RefundRequest struct {
	ReceiptNum string `json:"receipt_num"`
	SKU        string `json:"sku"`
	Qty        int    `json:"qty"`
	Reason     string `json:"reason"`
	Note       string `json:"note,omitempty"`
	ManagerPIN string `json:"manager_pin"`
}

type RefundResponse struct {
	Refund      Refund          `json:"refund"`
	UpdatedItem TransactionItem `json:"updated_item"`
	Transaction Transaction     `json:"transaction"`
}

type VoidTransactionRequest struct {
	ReceiptNum string `json:"receipt_num"`
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin"`
}

type VoidTransactionResponse struct {
	ReceiptNum string `json:"receipt_num"`
	VoidedAt   string `json:"voided_at"`
}

// Transaction is the committed sale. All monetary fields are centavos.
/// Invariants: TotalCents = GrossCents - DiscountCents;
// ChangeCents = max(CashCents - TotalCents, 0).
type Transaction struct {
	ID                string            `json:"id"`
	ReceiptNum        string            `json:"receipt_num"`
	IdempotencyKey    string            `json:"-"`
	TotalQty          int               `json:"total_qty"`
	GrossCents        int64             `json:"gross_cents"`
	VatableCents      int64             `json:"vatable_cents"`
	VatExemptCents    int64             `json:"vat_exempt_cents"`
	VatZeroRatedCents int64             `json:"vat_zero_rated_cents"`
	VatCents          int64             `json:"vat_cents"`
	DiscountCents     int64             `json:"discount_cents"`
	TotalCents        int64             `json:"total_cents"`
	CashCents         int64             `json:"cash_cents"`
	ChangeCents       int64             `json:"change_cents"`
	DiscountType      string            `json:"discount_type"`
	PaymentMethod     string            `json:"payment_method"`
	ReferenceNumber   string            `json:"reference_number,omitempty"`
	SeniorID          string            `json:"senior_id,omitempty"`
	PwdID             string            `json:"pwd_id,omitempty"`
	Cashier           string            `json:"cashier"`
	IsDeleted         bool              `json:"is_deleted"`
	CreatedAt         time.Time         `json:"created_at"`
	Items             []TransactionItem `json:"items"`
}

// TransactionItem is a line owned by exactly one Transaction. UnitPriceCents
// is immutable after the sale; Qty only ever moves downward through refunds,
// and TotalCents/NetCents/VatCents are re-derived whenever it does.
type TransactionItem struct {
	ID             string `json:"id"`
	TransactionID  string `json:"-"`
	SKU            string `json:"sku"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
	VatType        string `json:"vat_type"`
	VatCents       int64  `json:"vat_cents"`
	NetCents       int64  `json:"net_cents"`
	IsRefunded     bool   `json:"is_refunded"`
	IsDeleted      bool   `json:"is_deleted"`
}

// Refund is an immutable audit record; it is never updated, only soft-deleted
// when its parent transaction is voided.
type Refund struct {
	ID                string    `json:"id"`
	TransactionItemID string    `json:"transaction_item_id"`
	SKU               string    `json:"sku"`
	Qty               int       `json:"qty"`
	RefundCents       int64     `json:"refund_cents"`
	Reason            string    `json:"reason"`
	Note              string    `json:"note,omitempty"`
	IsDiscounted      bool      `json:"is_discounted"`
	IsDeleted         bool      `json:"is_deleted"`
	RefundedAt        time.Time `json:"refunded_at"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type PurchaseOrderItem struct {
	SKU       string `json:"sku"`
	Qty       int    `json:"qty"`
	CostCents int64  `json:"cost_cents"`
}

type PurchaseOrder struct {
	ID         string              `json:"id"`
	SupplierID string              `json:"supplier_id"`
	Status     string              `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	ReceivedAt *time.Time          `json:"received_at,omitempty"`
	ReceivedBy string              `json:"received_by,omitempty"`
	Items      []PurchaseOrderItem `json:"items"`
}

type PurchaseOrderCreateRequest struct {
	SupplierID string              `json:"supplier_id"`
	Items      []PurchaseOrderItem `json:"items"`
}

type PurchaseOrderReceiveRequest struct {
	ReceivedBy string `json:"received_by"`
}

type DailyReportPayment struct {
	PaymentMethod string `json:"payment_method"`
	Transactions  int64  `json:"transactions"`
	TotalCents    int64  `json:"total_cents"`
}

type DailyReportCashier struct {
	Cashier      string `json:"cashier"`
	Transactions int64  `json:"transactions"`
	TotalCents   int64  `json:"total_cents"`
}

type DailyReport struct {
	Date           string               `json:"date"`
	Transactions   int64                `json:"transactions"`
	GrossCents     int64                `json:"gross_cents"`
	DiscountCents  int64                `json:"discount_cents"`
	VatCents       int64                `json:"vat_cents"`
	VatExemptCents int64                `json:"vat_exempt_cents"`
	NetCents       int64                `json:"net_cents"`
	RefundCents    int64                `json:"refund_cents"`
	ByPayment      []DailyReportPayment `json:"by_payment"`
	ByCashier      []DailyReportCashier `json:"by_cashier"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type OperationalAlert struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	Severity    string  `json:"severity"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	MetricValue float64 `json:"metric_value"`
	Threshold   float64 `json:"threshold"`
	CreatedAt   string  `json:"created_at"`
}

type OperationalAlertResponse struct {
	Date   string             `json:"date"`
	Alerts []OperationalAlert `json:"alerts"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierToggleRequest struct {
	Active bool `json:"active"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type HardwareReceiptRequest struct {
	ReceiptNum string `json:"receipt_num"`
}

type HardwareReceiptResponse struct {
	ReceiptNum   string `json:"receipt_num"`
	EscposBase64 string `json:"escpos_base64"`
	PreviewText  string `json:"preview_text"`
	FileName     string `json:"file_name"`
}

const (
	DiscountNone   = "none"
	DiscountSenior = "senior"
	DiscountPwd    = "pwd"
)

const (
	VatTypeVatable   = "vatable"
	VatTypeExempt    = "exempt"
	VatTypeZeroRated = "zero_rated"
)

const (
	PaymentCash         = "cash"
	PaymentEwallet      = "ewallet"
	PaymentBankTransfer = "bank_transfer"
)

const (
	RefundReasonDamaged         = "damaged"
	RefundReasonWrongItem       = "wrong_item"
	RefundReasonShrinkage       = "shrinkage"
	RefundReasonCustomerRequest = "customer_request"
	RefundReasonExpired         = "expired"
	RefundReasonOvercharge      = "overcharge"
)

func IsDiscountType(value string) bool {
	switch value {
	case DiscountNone, DiscountSenior, DiscountPwd:
		return true
	default:
		return false
	}
}

func IsVatType(value string) bool {
	switch value {
	case VatTypeVatable, VatTypeExempt, VatTypeZeroRated:
		return true
	default:
		return false
	}
}

func IsPaymentMethod(value string) bool {
	switch value {
	case PaymentCash, PaymentEwallet, PaymentBankTransfer:
		return true
	default:
		return false
	}
}

func IsRefundReason(value string) bool {
	switch value {
	case RefundReasonDamaged, RefundReasonWrongItem, RefundReasonShrinkage,
		RefundReasonCustomerRequest, RefundReasonExpired, RefundReasonOvercharge:
		return true
	default:
		return false
	}
}
