package domain

import "time"

// All monetary amounts are integer VND. The smallest cash denomination in
// circulation is far above 1 VND, so fractional amounts never occur.

type Product struct {
	SKU               string `json:"sku"`
	Name              string `json:"name"`
	Unit              string `json:"unit"`
	Price             int64  `json:"price"`
	Cost              int64  `json:"cost"`
	Barcode           string `json:"barcode,omitempty"`
	LowStockThreshold int    `json:"low_stock_threshold"`
	Active            bool   `json:"active"`
}

type ProductCreateRequest struct {
	StoreID           string `json:"store_id"`
	SKU               string `json:"sku"`
	Name              string `json:"name"`
	Unit              string `json:"unit"`
	Price             int64  `json:"price"`
	Cost              int64  `json:"cost"`
	Barcode           string `json:"barcode,omitempty"`
	LowStockThreshold int    `json:"low_stock_threshold"`
	InitialStock      int    `json:"initial_stock"`
}

type ProductUpdateRequest struct {
	Name              *string `json:"name,omitempty"`
	Unit              *string `json:"unit,omitempty"`
	Price             *int64  `json:"price,omitempty"`
	Cost              *int64  `json:"cost,omitempty"`
	Barcode           *string `json:"barcode,omitempty"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty"`
	Active            *bool   `json:"active,omitempty"`
}

type Customer struct {
	ID          string    `json:"id"`
	StoreID     string    `json:"store_id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	DebtBalance int64     `json:"debt_balance"`
	CreatedAt   time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	StoreID string `json:"store_id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
}

type CartLine struct {
	SKU               string `json:"sku"`
	Qty               int    `json:"qty"`
	UnitPriceOverride *int64 `json:"unit_price_override,omitempty"`
}

// OrderItem is a denormalized snapshot of name/price/qty at sale time. Book
// projections must read these snapshots, never the live Product row, because
// prices change after the sale.
type OrderItem struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	UnitPrice int64  `json:"unit_price"`
}

type Order struct {
	ID             string      `json:"id"`
	StoreID        string      `json:"store_id"`
	IdempotencyKey string      `json:"idempotency_key"`
	PaymentMethod  string      `json:"payment_method"`
	CustomerID     string      `json:"customer_id,omitempty"`
	Items          []OrderItem `json:"items"`
	TotalAmount    int64       `json:"total_amount"`
	DiscountAmount int64       `json:"discount_amount"`
	FinalAmount    int64       `json:"final_amount"`
	Status         string      `json:"status"`
	VoidReason     string      `json:"void_reason,omitempty"`
	VoidedAt       *time.Time  `json:"voided_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

type CheckoutRequest struct {
	StoreID        string     `json:"store_id"`
	IdempotencyKey string     `json:"idempotency_key"`
	PaymentMethod  string     `json:"payment_method"`
	CustomerID     string     `json:"customer_id,omitempty"`
	DiscountAmount int64      `json:"discount_amount"`
	CartItems      []CartLine `json:"cart_items"`
}

type CheckoutResponse struct {
	Order     Order `json:"order"`
	Duplicate bool  `json:"duplicate"`
}

type VoidOrderRequest struct {
	OrderID    string `json:"order_id"`
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin"`
}

type VoidOrderResponse struct {
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	VoidedAt string `json:"voided_at"`
}

// InventoryDelta is one row of the append-only stock movement log. Qty is
// signed: negative for sales, positive for returns and restock. The cached
// stock figure is updated in the same unit of work as every delta; the log is
// an audit trail and is never summed on the read path.
type InventoryDelta struct {
	ID         string    `json:"id"`
	StoreID    string    `json:"store_id"`
	SKU        string    `json:"sku"`
	Qty        int       `json:"qty"`
	Reason     string    `json:"reason"`
	RefOrderID string    `json:"ref_order_id,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DebtDelta mirrors InventoryDelta for customer debt. Amount is signed:
// positive for debt-method orders, negative for repayments and voids. Every
// delta ties to exactly one causal event.
type DebtDelta struct {
	ID             string    `json:"id"`
	StoreID        string    `json:"store_id"`
	CustomerID     string    `json:"customer_id"`
	Amount         int64     `json:"amount"`
	RefOrderID     string    `json:"ref_order_id,omitempty"`
	RefRepaymentID string    `json:"ref_repayment_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Repayment struct {
	ID         string    `json:"id"`
	StoreID    string    `json:"store_id"`
	CustomerID string    `json:"customer_id"`
	Amount     int64     `json:"amount"`
	Method     string    `json:"method"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type RepaymentRequest struct {
	Amount int64  `json:"amount"`
	Method string `json:"method"`
	Note   string `json:"note"`
}

type ReconcileCount struct {
	SKU           string `json:"sku"`
	PhysicalCount int    `json:"physical_count"`
}

type ReconcileRequest struct {
	StoreID string           `json:"store_id"`
	Notes   string           `json:"notes"`
	Items   []ReconcileCount `json:"items"`
}

type ReconcileAdjustment struct {
	SKU           string `json:"sku"`
	SystemQty     int    `json:"system_qty"`
	PhysicalCount int    `json:"physical_count"`
	DeltaQty      int    `json:"delta_qty"`
}

type ReconcileResponse struct {
	ReconcileID string                `json:"reconcile_id"`
	StoreID     string                `json:"store_id"`
	Notes       string                `json:"notes"`
	Adjustments []ReconcileAdjustment `json:"adjustments"`
	CreatedAt   string                `json:"created_at"`
}

type RestockLine struct {
	SKU  string `json:"sku"`
	Qty  int    `json:"qty"`
	Note string `json:"note,omitempty"`
}

type RestockRequest struct {
	StoreID string        `json:"store_id"`
	Items   []RestockLine `json:"items"`
}

type LowStockItem struct {
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	CurrentStock int    `json:"current_stock"`
	Threshold    int    `json:"threshold"`
}

type LowStockResponse struct {
	StoreID string         `json:"store_id"`
	Items   []LowStockItem `json:"items"`
}

type ExpenseRecord struct {
	ID          string    `json:"id"`
	StoreID     string    `json:"store_id"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Amount      int64     `json:"amount"`
	Channel     string    `json:"channel"`
	CreatedAt   time.Time `json:"created_at"`
}

type ExpenseCreateRequest struct {
	StoreID     string `json:"store_id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Amount      int64  `json:"amount"`
	Channel     string `json:"channel"`
}

type TaxPaymentRecord struct {
	ID          string    `json:"id"`
	StoreID     string    `json:"store_id"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Period      string    `json:"period,omitempty"`
	Amount      int64     `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

type TaxPaymentCreateRequest struct {
	StoreID     string `json:"store_id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Period      string `json:"period"`
	Amount      int64  `json:"amount"`
}

type PayrollRecord struct {
	ID           string    `json:"id"`
	StoreID      string    `json:"store_id"`
	Date         time.Time `json:"date"`
	EmployeeName string    `json:"employee_name"`
	BaseSalary   int64     `json:"base_salary"`
	Bonus        int64     `json:"bonus"`
	CreatedAt    time.Time `json:"created_at"`
}

type PayrollCreateRequest struct {
	StoreID      string `json:"store_id"`
	Date         string `json:"date"`
	EmployeeName string `json:"employee_name"`
	BaseSalary   int64  `json:"base_salary"`
	Bonus        int64  `json:"bonus"`
}

// StoreProfile holds store identity consumed by report headers, the tax XML
// envelope and VietQR payload templating. ThresholdOverride, when positive,
// replaces the configured statutory exemption ceiling.
type StoreProfile struct {
	StoreID           string `json:"store_id"`
	Name              string `json:"name"`
	OwnerName         string `json:"owner_name"`
	TaxCode           string `json:"tax_code"`
	Address           string `json:"address"`
	BankName          string `json:"bank_name,omitempty"`
	BankAccount       string `json:"bank_account,omitempty"`
	ThresholdOverride int64  `json:"threshold_override,omitempty"`
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

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
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

type AuditLog struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"store_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	PaymentCash         = "cash"
	PaymentBankTransfer = "bank_transfer"
	PaymentDebt         = "debt"
)

const (
	OrderStatusActive = "active"
	OrderStatusVoided = "voided"
)

const (
	DeltaReasonSale            = "sale"
	DeltaReasonReturn          = "return"
	DeltaReasonRestock         = "restock"
	DeltaReasonAuditAdjustment = "audit_adjustment"
)

const (
	ChannelCash = "cash"
	ChannelBank = "bank"
)
