package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sobanhang/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrConflict          = errors.New("write conflict")
)

// InsufficientStockError carries the first offending line of a checkout. It
// unwraps to ErrInsufficientStock so callers can keep using errors.Is.
type InsufficientStockError struct {
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.SKU, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

type Repository interface {
	ListProducts(ctx context.Context, storeID string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, storeID string, product domain.Product, initialStock int) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, storeID string, sku string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, storeID string, product domain.Product) (*domain.Product, error)
	GetProductsBySKUs(ctx context.Context, storeID string, skus []string) (map[string]domain.Product, error)
	GetStockMap(ctx context.Context, storeID string, skus []string) (map[string]int, error)

	ListCustomers(ctx context.Context, storeID string) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)

	FindOrderByIdempotency(ctx context.Context, storeID string, key string) (*domain.Order, error)
	FindOrderByID(ctx context.Context, id string) (*domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	VoidOrder(ctx context.Context, id string, reason string, at time.Time) (*domain.Order, error)
	ListOrdersByPeriod(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.Order, error)

	RestockStock(ctx context.Context, storeID string, lines []domain.RestockLine, at time.Time) error
	ReconcileStock(ctx context.Context, reconcileID string, storeID string, counts []domain.ReconcileCount, notes string, at time.Time) ([]domain.ReconcileAdjustment, error)
	ListInventoryDeltas(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.InventoryDelta, error)

	CreateRepayment(ctx context.Context, repayment domain.Repayment) (*domain.Repayment, error)
	ListDebtDeltas(ctx context.Context, storeID string, customerID string, limit int) ([]domain.DebtDelta, error)

	CreateExpense(ctx context.Context, expense domain.ExpenseRecord) (*domain.ExpenseRecord, error)
	ListExpensesByPeriod(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.ExpenseRecord, error)
	CreateTaxPayment(ctx context.Context, payment domain.TaxPaymentRecord) (*domain.TaxPaymentRecord, error)
	ListTaxPaymentsByPeriod(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.TaxPaymentRecord, error)
	CreatePayroll(ctx context.Context, record domain.PayrollRecord) (*domain.PayrollRecord, error)
	ListPayrollByPeriod(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.PayrollRecord, error)

	GetStoreProfile(ctx context.Context, storeID string) (*domain.StoreProfile, error)
	UpsertStoreProfile(ctx context.Context, profile domain.StoreProfile) (*domain.StoreProfile, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
