package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sobanhang/backend/internal/domain"
	"sobanhang/backend/internal/store"
	"sobanhang/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]map[string]domain.Product
	inventory       map[string]map[string]int
	customersByID   map[string]domain.Customer
	ordersByID      map[string]*domain.Order
	ordersByIdem    map[string]*domain.Order
	inventoryDeltas []domain.InventoryDelta
	debtDeltas      []domain.DebtDelta
	repaymentsByID  map[string]domain.Repayment
	expenses        []domain.ExpenseRecord
	taxPayments     []domain.TaxPaymentRecord
	payroll         []domain.PayrollRecord
	profiles        map[string]domain.StoreProfile
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_OWNER_PASSWORD and SEED_CASHIER_PASSWORD. If
// unset, hardcoded dev defaults are used with a warning printed to stdout.
// These credentials are never used in production (the backend uses PostgreSQL
// when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_OWNER_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"owner", ownerPwd, "owner"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	products := []domain.Product{
		{SKU: "SKU-GAO-01", Name: "Gạo ST25 túi 5kg", Unit: "túi", Price: 165000, Cost: 142000, LowStockThreshold: 10, Active: true},
		{SKU: "SKU-MI-01", Name: "Mì Hảo Hảo tôm chua cay", Unit: "gói", Price: 4500, Cost: 3600, LowStockThreshold: 30, Active: true},
		{SKU: "SKU-NUOCMAM-01", Name: "Nước mắm Nam Ngư 500ml", Unit: "chai", Price: 32000, Cost: 26000, LowStockThreshold: 12, Active: true},
		{SKU: "SKU-DAUAN-01", Name: "Dầu ăn Tường An 1L", Unit: "chai", Price: 52000, Cost: 45000, LowStockThreshold: 12, Active: true},
		{SKU: "SKU-TRUNG-01", Name: "Trứng gà vỉ 10 quả", Unit: "vỉ", Price: 33000, Cost: 28500, LowStockThreshold: 15, Active: true},
		{SKU: "SKU-SUA-01", Name: "Sữa tươi Vinamilk 1L", Unit: "hộp", Price: 36000, Cost: 31000, LowStockThreshold: 15, Active: true},
		{SKU: "SKU-NUOC-01", Name: "Nước suối Lavie 500ml", Unit: "chai", Price: 6000, Cost: 4200, LowStockThreshold: 24, Active: true},
		{SKU: "SKU-CAFE-01", Name: "Cà phê G7 hộp 18 gói", Unit: "hộp", Price: 48000, Cost: 41000, LowStockThreshold: 8, Active: true},
		{SKU: "SKU-DUONG-01", Name: "Đường Biên Hòa 1kg", Unit: "kg", Price: 27000, Cost: 23000, LowStockThreshold: 10, Active: true},
		{SKU: "SKU-BANHSNACK-01", Name: "Bánh snack Oishi", Unit: "gói", Price: 7000, Cost: 5200, LowStockThreshold: 20, Active: true},
	}

	productMap := map[string]map[string]domain.Product{"main-store": {}}
	inventory := map[string]map[string]int{"main-store": {}}
	for _, p := range products {
		productMap["main-store"][p.SKU] = p
		inventory["main-store"][p.SKU] = 120
	}

	return &Store{
		products:        productMap,
		inventory:       inventory,
		customersByID:   make(map[string]domain.Customer),
		ordersByID:      make(map[string]*domain.Order),
		ordersByIdem:    make(map[string]*domain.Order),
		inventoryDeltas: make([]domain.InventoryDelta, 0, 256),
		debtDeltas:      make([]domain.DebtDelta, 0, 64),
		repaymentsByID:  make(map[string]domain.Repayment),
		expenses:        make([]domain.ExpenseRecord, 0, 64),
		taxPayments:     make([]domain.TaxPaymentRecord, 0, 16),
		payroll:         make([]domain.PayrollRecord, 0, 16),
		profiles:        make(map[string]domain.StoreProfile),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context, storeID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products[storeID]))
	for _, p := range s.products[storeID] {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.SKU, b.SKU)
	})
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, storeID string, product domain.Product, initialStock int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.SKU == "" || product.Name == "" || product.Price < 0 || initialStock < 0 {
		return nil, store.ErrInvalidOrder
	}
	byStore, ok := s.products[storeID]
	if !ok {
		byStore = make(map[string]domain.Product)
		s.products[storeID] = byStore
	}
	if _, exists := byStore[product.SKU]; exists {
		return nil, store.ErrInvalidOrder
	}

	product.Active = true
	byStore[product.SKU] = product

	storeStock, ok := s.inventory[storeID]
	if !ok {
		storeStock = make(map[string]int)
		s.inventory[storeID] = storeStock
	}
	storeStock[product.SKU] = initialStock
	if initialStock > 0 {
		s.inventoryDeltas = append(s.inventoryDeltas, domain.InventoryDelta{
			ID:        xid.New("idelta"),
			StoreID:   storeID,
			SKU:       product.SKU,
			Qty:       initialStock,
			Reason:    domain.DeltaReasonRestock,
			Note:      "initial stock",
			CreatedAt: time.Now().UTC(),
		})
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductBySKU(_ context.Context, storeID string, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[storeID][sku]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, storeID string, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.SKU == "" || product.Name == "" || product.Price < 0 {
		return nil, store.ErrInvalidOrder
	}
	if _, exists := s.products[storeID][product.SKU]; !exists {
		return nil, store.ErrNotFound
	}

	s.products[storeID][product.SKU] = product
	updated := product
	return &updated, nil
}

func (s *Store) GetProductsBySKUs(_ context.Context, storeID string, skus []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(skus))
	for _, sku := range skus {
		if p, ok := s.products[storeID][sku]; ok && p.Active {
			result[sku] = p
		}
	}
	return result, nil
}

func (s *Store) GetStockMap(_ context.Context, storeID string, skus []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stockMap := make(map[string]int, len(skus))
	storeStock := s.inventory[storeID]
	for _, sku := range skus {
		if storeStock == nil {
			stockMap[sku] = 0
			continue
		}
		stockMap[sku] = storeStock[sku]
	}
	return stockMap, nil
}

func (s *Store) ListCustomers(_ context.Context, storeID string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		if c.StoreID != storeID {
			continue
		}
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		if a.Name == b.Name {
			return cmpString(a.ID, b.ID)
		}
		return cmpString(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(customer.Name) == "" || customer.StoreID == "" {
		return nil, store.ErrInvalidOrder
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.DebtBalance = 0
	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) FindOrderByIdempotency(_ context.Context, storeID string, key string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.ordersByIdem[idemKey(storeID, key)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (s *Store) FindOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.ordersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneOrder(order), nil
}

// CreateOrder commits a checkout: all SALE deltas, the optional debt delta and
// the order row land together under one lock, or nothing changes.
func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.IdempotencyKey == "" || len(order.Items) == 0 {
		return nil, store.ErrInvalidOrder
	}
	if existing, ok := s.ordersByIdem[idemKey(order.StoreID, order.IdempotencyKey)]; ok {
		return cloneOrder(existing), nil
	}

	storeStock, ok := s.inventory[order.StoreID]
	if !ok {
		return nil, fmt.Errorf("store %s unavailable", order.StoreID)
	}

	for _, item := range order.Items {
		if item.Qty < 1 {
			return nil, store.ErrInvalidOrder
		}
		product, exists := s.products[order.StoreID][item.SKU]
		if !exists || !product.Active {
			return nil, fmt.Errorf("sku %s unavailable: %w", item.SKU, store.ErrNotFound)
		}
		available := storeStock[item.SKU]
		if available < item.Qty {
			return nil, &store.InsufficientStockError{SKU: item.SKU, Requested: item.Qty, Available: available}
		}
	}

	var customer domain.Customer
	if order.PaymentMethod == domain.PaymentDebt {
		var exists bool
		customer, exists = s.customersByID[order.CustomerID]
		if !exists || customer.StoreID != order.StoreID {
			return nil, store.ErrNotFound
		}
	}

	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.Status = domain.OrderStatusActive

	for _, item := range order.Items {
		storeStock[item.SKU] -= item.Qty
		s.inventoryDeltas = append(s.inventoryDeltas, domain.InventoryDelta{
			ID:         xid.New("idelta"),
			StoreID:    order.StoreID,
			SKU:        item.SKU,
			Qty:        -item.Qty,
			Reason:     domain.DeltaReasonSale,
			RefOrderID: order.ID,
			CreatedAt:  order.CreatedAt,
		})
	}

	if order.PaymentMethod == domain.PaymentDebt {
		customer.DebtBalance += order.FinalAmount
		s.customersByID[customer.ID] = customer
		s.debtDeltas = append(s.debtDeltas, domain.DebtDelta{
			ID:         xid.New("ddelta"),
			StoreID:    order.StoreID,
			CustomerID: customer.ID,
			Amount:     order.FinalAmount,
			RefOrderID: order.ID,
			CreatedAt:  order.CreatedAt,
		})
	}

	saved := cloneOrder(&order)
	s.ordersByID[order.ID] = saved
	s.ordersByIdem[idemKey(order.StoreID, order.IdempotencyKey)] = saved
	return cloneOrder(saved), nil
}

// VoidOrder applies the exact negation of the order's ledger effects and flips
// its status. The order row itself is never deleted.
func (s *Store) VoidOrder(_ context.Context, id string, reason string, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.ordersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if order.Status != domain.OrderStatusActive {
		return nil, store.ErrInvalidOrder
	}

	storeStock := s.inventory[order.StoreID]
	for _, item := range order.Items {
		storeStock[item.SKU] += item.Qty
		s.inventoryDeltas = append(s.inventoryDeltas, domain.InventoryDelta{
			ID:         xid.New("idelta"),
			StoreID:    order.StoreID,
			SKU:        item.SKU,
			Qty:        item.Qty,
			Reason:     domain.DeltaReasonReturn,
			RefOrderID: order.ID,
			CreatedAt:  at,
		})
	}

	if order.PaymentMethod == domain.PaymentDebt && order.CustomerID != "" {
		customer, exists := s.customersByID[order.CustomerID]
		if exists {
			customer.DebtBalance -= order.FinalAmount
			s.customersByID[customer.ID] = customer
			s.debtDeltas = append(s.debtDeltas, domain.DebtDelta{
				ID:         xid.New("ddelta"),
				StoreID:    order.StoreID,
				CustomerID: customer.ID,
				Amount:     -order.FinalAmount,
				RefOrderID: order.ID,
				CreatedAt:  at,
			})
		}
	}

	order.Status = domain.OrderStatusVoided
	order.VoidReason = reason
	order.VoidedAt = &at

	return cloneOrder(order), nil
}

func (s *Store) ListOrdersByPeriod(_ context.Context, storeID string, from time.Time, to time.Time) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, 64)
	for _, order := range s.ordersByID {
		if order.StoreID != storeID {
			continue
		}
		if order.CreatedAt.Before(from) || !order.CreatedAt.Before(to) {
			continue
		}
		result = append(result, *cloneOrder(order))
	}
	slices.SortFunc(result, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) RestockStock(_ context.Context, storeID string, lines []domain.RestockLine, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	storeStock, ok := s.inventory[storeID]
	if !ok {
		storeStock = make(map[string]int)
		s.inventory[storeID] = storeStock
	}

	for _, line := range lines {
		if line.Qty < 1 {
			return store.ErrInvalidOrder
		}
		if _, exists := s.products[storeID][line.SKU]; !exists {
			return fmt.Errorf("sku %s unavailable: %w", line.SKU, store.ErrNotFound)
		}
	}
	for _, line := range lines {
		storeStock[line.SKU] += line.Qty
		s.inventoryDeltas = append(s.inventoryDeltas, domain.InventoryDelta{
			ID:        xid.New("idelta"),
			StoreID:   storeID,
			SKU:       line.SKU,
			Qty:       line.Qty,
			Reason:    domain.DeltaReasonRestock,
			Note:      line.Note,
			CreatedAt: at,
		})
	}
	return nil
}

// ReconcileStock applies one AUDIT_ADJUSTMENT per counted product, each equal
// to physicalCount minus the cached stock. The whole batch validates before
// anything is applied.
func (s *Store) ReconcileStock(_ context.Context, reconcileID string, storeID string, counts []domain.ReconcileCount, notes string, at time.Time) ([]domain.ReconcileAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	storeStock, ok := s.inventory[storeID]
	if !ok {
		return nil, fmt.Errorf("store %s unavailable", storeID)
	}
	for _, count := range counts {
		if count.PhysicalCount < 0 {
			return nil, store.ErrInvalidOrder
		}
		if _, exists := s.products[storeID][count.SKU]; !exists {
			return nil, fmt.Errorf("sku %s unavailable: %w", count.SKU, store.ErrNotFound)
		}
	}

	adjustments := make([]domain.ReconcileAdjustment, 0, len(counts))
	for _, count := range counts {
		current := storeStock[count.SKU]
		delta := count.PhysicalCount - current
		adjustments = append(adjustments, domain.ReconcileAdjustment{
			SKU:           count.SKU,
			SystemQty:     current,
			PhysicalCount: count.PhysicalCount,
			DeltaQty:      delta,
		})
		if delta == 0 {
			continue
		}
		storeStock[count.SKU] = count.PhysicalCount
		s.inventoryDeltas = append(s.inventoryDeltas, domain.InventoryDelta{
			ID:        xid.New("idelta"),
			StoreID:   storeID,
			SKU:       count.SKU,
			Qty:       delta,
			Reason:    domain.DeltaReasonAuditAdjustment,
			Note:      notes,
			CreatedAt: at,
		})
	}
	return adjustments, nil
}

func (s *Store) ListInventoryDeltas(_ context.Context, storeID string, from time.Time, to time.Time) ([]domain.InventoryDelta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryDelta, 0, 128)
	for _, delta := range s.inventoryDeltas {
		if delta.StoreID != storeID {
			continue
		}
		if delta.CreatedAt.Before(from) || !delta.CreatedAt.Before(to) {
			continue
		}
		result = append(result, delta)
	}
	slices.SortFunc(result, func(a, b domain.InventoryDelta) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) CreateRepayment(_ context.Context, repayment domain.Repayment) (*domain.Repayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if repayment.Amount < 1 {
		return nil, store.ErrInvalidOrder
	}
	customer, exists := s.customersByID[repayment.CustomerID]
	if !exists || customer.StoreID != repayment.StoreID {
		return nil, store.ErrNotFound
	}
	if repayment.ID == "" {
		repayment.ID = xid.New("repay")
	}
	if repayment.CreatedAt.IsZero() {
		repayment.CreatedAt = time.Now().UTC()
	}

	customer.DebtBalance -= repayment.Amount
	s.customersByID[customer.ID] = customer
	s.repaymentsByID[repayment.ID] = repayment
	s.debtDeltas = append(s.debtDeltas, domain.DebtDelta{
		ID:             xid.New("ddelta"),
		StoreID:        repayment.StoreID,
		CustomerID:     customer.ID,
		Amount:         -repayment.Amount,
		RefRepaymentID: repayment.ID,
		CreatedAt:      repayment.CreatedAt,
	})

	created := repayment
	return &created, nil
}

func (s *Store) ListDebtDeltas(_ context.Context, storeID string, customerID string, limit int) ([]domain.DebtDelta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.DebtDelta, 0, 32)
	for _, delta := range s.debtDeltas {
		if delta.StoreID != storeID {
			continue
		}
		if customerID != "" && delta.CustomerID != customerID {
			continue
		}
		result = append(result, delta)
	}
	slices.SortFunc(result, func(a, b domain.DebtDelta) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.ExpenseRecord) (*domain.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.Amount < 1 || strings.TrimSpace(expense.Description) == "" {
		return nil, store.ErrInvalidOrder
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	s.expenses = append(s.expenses, expense)
	created := expense
	return &created, nil
}

func (s *Store) ListExpensesByPeriod(_ context.Context, storeID string, from time.Time, to time.Time) ([]domain.ExpenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ExpenseRecord, 0, 32)
	for _, expense := range s.expenses {
		if expense.StoreID != storeID {
			continue
		}
		if expense.Date.Before(from) || !expense.Date.Before(to) {
			continue
		}
		result = append(result, expense)
	}
	sortByDateThenID(result, func(r domain.ExpenseRecord) (time.Time, string) { return r.Date, r.ID })
	return result, nil
}

func (s *Store) CreateTaxPayment(_ context.Context, payment domain.TaxPaymentRecord) (*domain.TaxPaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if payment.Amount < 1 || strings.TrimSpace(payment.Description) == "" {
		return nil, store.ErrInvalidOrder
	}
	if payment.ID == "" {
		payment.ID = xid.New("taxp")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	s.taxPayments = append(s.taxPayments, payment)
	created := payment
	return &created, nil
}

func (s *Store) ListTaxPaymentsByPeriod(_ context.Context, storeID string, from time.Time, to time.Time) ([]domain.TaxPaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.TaxPaymentRecord, 0, 16)
	for _, payment := range s.taxPayments {
		if payment.StoreID != storeID {
			continue
		}
		if payment.Date.Before(from) || !payment.Date.Before(to) {
			continue
		}
		result = append(result, payment)
	}
	sortByDateThenID(result, func(r domain.TaxPaymentRecord) (time.Time, string) { return r.Date, r.ID })
	return result, nil
}

func (s *Store) CreatePayroll(_ context.Context, record domain.PayrollRecord) (*domain.PayrollRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(record.EmployeeName) == "" || record.BaseSalary < 0 || record.Bonus < 0 {
		return nil, store.ErrInvalidOrder
	}
	if record.ID == "" {
		record.ID = xid.New("pay")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.payroll = append(s.payroll, record)
	created := record
	return &created, nil
}

func (s *Store) ListPayrollByPeriod(_ context.Context, storeID string, from time.Time, to time.Time) ([]domain.PayrollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.PayrollRecord, 0, 16)
	for _, record := range s.payroll {
		if record.StoreID != storeID {
			continue
		}
		if record.Date.Before(from) || !record.Date.Before(to) {
			continue
		}
		result = append(result, record)
	}
	sortByDateThenID(result, func(r domain.PayrollRecord) (time.Time, string) { return r.Date, r.ID })
	return result, nil
}

func (s *Store) GetStoreProfile(_ context.Context, storeID string) (*domain.StoreProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, exists := s.profiles[storeID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProfile := profile
	return &copyProfile, nil
}

func (s *Store) UpsertStoreProfile(_ context.Context, profile domain.StoreProfile) (*domain.StoreProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if profile.StoreID == "" {
		return nil, store.ErrInvalidOrder
	}
	s.profiles[profile.StoreID] = profile
	saved := profile
	return &saved, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if storeID != "" && entry.StoreID != storeID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidOrder
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidOrder
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidOrder
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func idemKey(storeID string, key string) string {
	return storeID + "::" + key
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func sortByDateThenID[T any](items []T, fields func(T) (time.Time, string)) {
	slices.SortFunc(items, func(a, b T) int {
		dateA, idA := fields(a)
		dateB, idB := fields(b)
		if dateA.Equal(dateB) {
			return cmpString(idA, idB)
		}
		if dateA.Before(dateB) {
			return -1
		}
		return 1
	})
}

func cloneOrder(src *domain.Order) *domain.Order {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.OrderItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	if src.VoidedAt != nil {
		at := *src.VoidedAt
		dup.VoidedAt = &at
	}
	return &dup
}
