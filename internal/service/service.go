package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sobanhang/backend/internal/cache"
	"sobanhang/backend/internal/domain"
	"sobanhang/backend/internal/report"
	"sobanhang/backend/internal/store"
	"sobanhang/backend/internal/xid"
)

var (
	ErrEmptyCart        = errors.New("empty cart")
	ErrCustomerRequired = errors.New("customer required for debt payment")
	ErrInvalidDiscount  = errors.New("invalid discount")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo            store.Repository
	reportCache     cache.ReportCache
	defaultStoreID  string
	thresholdAmount int64
	reportTTL       time.Duration
}

func New(repo store.Repository, reportCache cache.ReportCache, defaultStoreID string, thresholdAmount int64, reportTTL time.Duration) *Service {
	if defaultStoreID == "" {
		defaultStoreID = "main-store"
	}
	if reportCache == nil {
		reportCache = cache.NoopReportCache{}
	}
	if thresholdAmount < 1 {
		thresholdAmount = 100_000_000
	}
	if reportTTL < time.Second {
		reportTTL = time.Minute
	}

	return &Service{
		repo:            repo,
		reportCache:     reportCache,
		defaultStoreID:  defaultStoreID,
		thresholdAmount: thresholdAmount,
		reportTTL:       reportTTL,
	}
}

func (s *Service) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, s.storeOrDefault(storeID))
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "owner" {
		return domain.Product{}, fmt.Errorf("owner role required")
	}

	req.StoreID = s.storeOrDefault(req.StoreID)
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)

	if req.SKU == "" || req.Name == "" {
		return domain.Product{}, store.ErrInvalidOrder
	}
	if req.Price < 0 || req.Cost < 0 || req.InitialStock < 0 || req.LowStockThreshold < 0 {
		return domain.Product{}, store.ErrInvalidOrder
	}

	product := domain.Product{
		SKU:               req.SKU,
		Name:              req.Name,
		Unit:              strings.TrimSpace(req.Unit),
		Price:             req.Price,
		Cost:              req.Cost,
		Barcode:           strings.TrimSpace(req.Barcode),
		LowStockThreshold: req.LowStockThreshold,
		Active:            true,
	}

	created, err := s.repo.CreateProduct(ctx, req.StoreID, product, req.InitialStock)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, req.StoreID, "product_create", "product", created.SKU, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.Price, req.InitialStock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, storeID string, sku string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "owner" {
		return domain.Product{}, fmt.Errorf("owner role required")
	}

	storeID = s.storeOrDefault(storeID)
	sku = strings.ToUpper(strings.TrimSpace(sku))
	existing, err := s.repo.GetProductBySKU(ctx, storeID, sku)
	if err != nil {
		return domain.Product{}, err
	}

	product := *existing
	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Unit != nil {
		product.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Cost != nil {
		product.Cost = *req.Cost
	}
	if req.Barcode != nil {
		product.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.LowStockThreshold != nil {
		product.LowStockThreshold = *req.LowStockThreshold
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	if product.Name == "" || product.Price < 0 || product.Cost < 0 || product.LowStockThreshold < 0 {
		return domain.Product{}, store.ErrInvalidOrder
	}

	updated, err := s.repo.UpdateProduct(ctx, storeID, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, storeID, "product_update", "product", sku, fmt.Sprintf("price=%d,active=%t", updated.Price, updated.Active))
	return *updated, nil
}

func (s *Service) LowStock(ctx context.Context, storeID string) (domain.LowStockResponse, error) {
	storeID = s.storeOrDefault(storeID)
	products, err := s.repo.ListProducts(ctx, storeID)
	if err != nil {
		return domain.LowStockResponse{}, err
	}

	skus := make([]string, 0, len(products))
	for _, p := range products {
		skus = append(skus, p.SKU)
	}
	stock, err := s.repo.GetStockMap(ctx, storeID, skus)
	if err != nil {
		return domain.LowStockResponse{}, err
	}

	resp := domain.LowStockResponse{StoreID: storeID, Items: make([]domain.LowStockItem, 0, 8)}
	for _, p := range products {
		if !p.Active || p.LowStockThreshold < 1 {
			continue
		}
		if stock[p.SKU] <= p.LowStockThreshold {
			resp.Items = append(resp.Items, domain.LowStockItem{
				SKU:          p.SKU,
				Name:         p.Name,
				CurrentStock: stock[p.SKU],
				Threshold:    p.LowStockThreshold,
			})
		}
	}
	return resp, nil
}

func (s *Service) ListCustomers(ctx context.Context, storeID string) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, s.storeOrDefault(storeID))
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.StoreID = s.storeOrDefault(req.StoreID)
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, store.ErrInvalidOrder
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		StoreID:   req.StoreID,
		Name:      req.Name,
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, req.StoreID, "customer_create", "customer", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) RepayDebt(ctx context.Context, storeID string, customerID string, req domain.RepaymentRequest) (domain.Repayment, error) {
	storeID = s.storeOrDefault(storeID)
	if req.Amount < 1 {
		return domain.Repayment{}, store.ErrInvalidOrder
	}
	method := req.Method
	if method == "" {
		method = domain.PaymentCash
	}
	if method != domain.PaymentCash && method != domain.PaymentBankTransfer {
		return domain.Repayment{}, store.ErrInvalidOrder
	}

	created, err := s.repo.CreateRepayment(ctx, domain.Repayment{
		ID:         xid.New("repay"),
		StoreID:    storeID,
		CustomerID: customerID,
		Amount:     req.Amount,
		Method:     method,
		Note:       strings.TrimSpace(req.Note),
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return domain.Repayment{}, err
	}

	s.logAudit(ctx, storeID, "debt_repayment", "customer", customerID, fmt.Sprintf("amount=%d,method=%s", created.Amount, created.Method))
	return *created, nil
}

func (s *Service) ListDebtDeltas(ctx context.Context, storeID string, customerID string, limit int) ([]domain.DebtDelta, error) {
	return s.repo.ListDebtDeltas(ctx, s.storeOrDefault(storeID), customerID, limit)
}

// Checkout validates the cart, resolves unit prices into line snapshots and
// hands the atomic commit to the repository. Validation rejects before any
// ledger write: empty cart, debt without customer, unknown product, discount
// pushing the final amount negative. Stock is only checked inside the commit
// where the rows are locked.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	req.StoreID = s.storeOrDefault(req.StoreID)
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = xid.New("idem")
	}
	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return domain.CheckoutResponse{}, store.ErrInvalidOrder
	}

	lines, err := normalizeCart(req.CartItems)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	if len(lines) == 0 {
		return domain.CheckoutResponse{}, ErrEmptyCart
	}

	if req.PaymentMethod == domain.PaymentDebt && strings.TrimSpace(req.CustomerID) == "" {
		return domain.CheckoutResponse{}, ErrCustomerRequired
	}

	if existing, err := s.repo.FindOrderByIdempotency(ctx, req.StoreID, req.IdempotencyKey); err == nil {
		return domain.CheckoutResponse{Order: *existing, Duplicate: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.CheckoutResponse{}, err
	}

	skus := make([]string, 0, len(lines))
	for _, line := range lines {
		skus = append(skus, line.SKU)
	}
	products, err := s.repo.GetProductsBySKUs(ctx, req.StoreID, skus)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	total := int64(0)
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		product, exists := products[line.SKU]
		if !exists {
			return domain.CheckoutResponse{}, fmt.Errorf("sku %s unavailable: %w", line.SKU, store.ErrNotFound)
		}
		unitPrice := product.Price
		if line.UnitPriceOverride != nil {
			if *line.UnitPriceOverride < 0 {
				return domain.CheckoutResponse{}, store.ErrInvalidOrder
			}
			unitPrice = *line.UnitPriceOverride
		}
		items = append(items, domain.OrderItem{
			SKU:       line.SKU,
			Name:      product.Name,
			Qty:       line.Qty,
			UnitPrice: unitPrice,
		})
		total += unitPrice * int64(line.Qty)
	}

	if req.DiscountAmount < 0 || req.DiscountAmount > total {
		return domain.CheckoutResponse{}, ErrInvalidDiscount
	}
	final := total - req.DiscountAmount

	order := domain.Order{
		ID:             xid.New("ord"),
		StoreID:        req.StoreID,
		IdempotencyKey: req.IdempotencyKey,
		PaymentMethod:  req.PaymentMethod,
		CustomerID:     strings.TrimSpace(req.CustomerID),
		Items:          items,
		TotalAmount:    total,
		DiscountAmount: req.DiscountAmount,
		FinalAmount:    final,
		Status:         domain.OrderStatusActive,
		CreatedAt:      time.Now().UTC(),
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	duplicate := created.ID != order.ID
	s.logAudit(ctx, req.StoreID, "checkout", "order", created.ID,
		fmt.Sprintf("total=%d,final=%d,payment=%s,items=%d", created.TotalAmount, created.FinalAmount, created.PaymentMethod, len(created.Items)))

	return domain.CheckoutResponse{Order: *created, Duplicate: duplicate}, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.FindOrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (s *Service) VoidOrder(ctx context.Context, req domain.VoidOrderRequest) (domain.VoidOrderResponse, error) {
	if req.OrderID == "" {
		return domain.VoidOrderResponse{}, store.ErrInvalidOrder
	}
	if req.Reason == "" {
		req.Reason = "unspecified"
	}

	voidedAt := time.Now().UTC()
	order, err := s.repo.VoidOrder(ctx, req.OrderID, req.Reason, voidedAt)
	if err != nil {
		return domain.VoidOrderResponse{}, err
	}

	s.logAudit(ctx, order.StoreID, "void_order", "order", order.ID, req.Reason)

	return domain.VoidOrderResponse{
		OrderID:  order.ID,
		Status:   order.Status,
		VoidedAt: voidedAt.Format(time.RFC3339),
	}, nil
}

// ReconcileInventory applies a physical count batch ("kiểm kho"). The whole
// batch lands or none of it does.
func (s *Service) ReconcileInventory(ctx context.Context, req domain.ReconcileRequest) (domain.ReconcileResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "owner" {
		return domain.ReconcileResponse{}, fmt.Errorf("owner role required")
	}

	req.StoreID = s.storeOrDefault(req.StoreID)
	if len(req.Items) == 0 {
		return domain.ReconcileResponse{}, store.ErrInvalidOrder
	}
	counts := make([]domain.ReconcileCount, 0, len(req.Items))
	for _, item := range req.Items {
		item.SKU = strings.ToUpper(strings.TrimSpace(item.SKU))
		if item.SKU == "" || item.PhysicalCount < 0 {
			return domain.ReconcileResponse{}, store.ErrInvalidOrder
		}
		counts = append(counts, item)
	}

	reconcileID := xid.New("recon")
	at := time.Now().UTC()
	adjustments, err := s.repo.ReconcileStock(ctx, reconcileID, req.StoreID, counts, req.Notes, at)
	if err != nil {
		return domain.ReconcileResponse{}, err
	}

	s.logAudit(ctx, req.StoreID, "inventory_reconcile", "inventory", reconcileID, fmt.Sprintf("items=%d,notes=%s", len(counts), req.Notes))

	return domain.ReconcileResponse{
		ReconcileID: reconcileID,
		StoreID:     req.StoreID,
		Notes:       req.Notes,
		Adjustments: adjustments,
		CreatedAt:   at.Format(time.RFC3339),
	}, nil
}

func (s *Service) Restock(ctx context.Context, req domain.RestockRequest) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "owner" {
		return fmt.Errorf("owner role required")
	}

	req.StoreID = s.storeOrDefault(req.StoreID)
	if len(req.Items) == 0 {
		return store.ErrInvalidOrder
	}
	lines := make([]domain.RestockLine, 0, len(req.Items))
	for _, line := range req.Items {
		line.SKU = strings.ToUpper(strings.TrimSpace(line.SKU))
		if line.SKU == "" || line.Qty < 1 {
			return store.ErrInvalidOrder
		}
		lines = append(lines, line)
	}

	if err := s.repo.RestockStock(ctx, req.StoreID, lines, time.Now().UTC()); err != nil {
		return err
	}
	s.logAudit(ctx, req.StoreID, "inventory_restock", "inventory", "", fmt.Sprintf("items=%d", len(lines)))
	return nil
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.ExpenseRecord, error) {
	req.StoreID = s.storeOrDefault(req.StoreID)
	date, err := parseDate(req.Date)
	if err != nil {
		return domain.ExpenseRecord{}, store.ErrInvalidOrder
	}
	if req.Amount < 1 || strings.TrimSpace(req.Description) == "" {
		return domain.ExpenseRecord{}, store.ErrInvalidOrder
	}
	if req.Channel != domain.ChannelCash && req.Channel != domain.ChannelBank {
		return domain.ExpenseRecord{}, store.ErrInvalidOrder
	}

	created, err := s.repo.CreateExpense(ctx, domain.ExpenseRecord{
		ID:          xid.New("exp"),
		StoreID:     req.StoreID,
		Date:        date,
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Amount:      req.Amount,
		Channel:     req.Channel,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return domain.ExpenseRecord{}, err
	}

	s.logAudit(ctx, req.StoreID, "expense_create", "expense", created.ID, fmt.Sprintf("amount=%d,channel=%s", created.Amount, created.Channel))
	return *created, nil
}

func (s *Service) ListExpenses(ctx context.Context, storeID string, month int, year int) ([]domain.ExpenseRecord, error) {
	from, to, err := monthBounds(month, year)
	if err != nil {
		return nil, err
	}
	return s.repo.ListExpensesByPeriod(ctx, s.storeOrDefault(storeID), from, to)
}

func (s *Service) CreateTaxPayment(ctx context.Context, req domain.TaxPaymentCreateRequest) (domain.TaxPaymentRecord, error) {
	req.StoreID = s.storeOrDefault(req.StoreID)
	date, err := parseDate(req.Date)
	if err != nil {
		return domain.TaxPaymentRecord{}, store.ErrInvalidOrder
	}
	if req.Amount < 1 || strings.TrimSpace(req.Description) == "" {
		return domain.TaxPaymentRecord{}, store.ErrInvalidOrder
	}

	created, err := s.repo.CreateTaxPayment(ctx, domain.TaxPaymentRecord{
		ID:          xid.New("taxp"),
		StoreID:     req.StoreID,
		Date:        date,
		Description: strings.TrimSpace(req.Description),
		Period:      strings.TrimSpace(req.Period),
		Amount:      req.Amount,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return domain.TaxPaymentRecord{}, err
	}

	s.logAudit(ctx, req.StoreID, "tax_payment_create", "tax_payment", created.ID, fmt.Sprintf("amount=%d,period=%s", created.Amount, created.Period))
	return *created, nil
}

func (s *Service) ListTaxPayments(ctx context.Context, storeID string, month int, year int) ([]domain.TaxPaymentRecord, error) {
	from, to, err := monthBounds(month, year)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTaxPaymentsByPeriod(ctx, s.storeOrDefault(storeID), from, to)
}

func (s *Service) CreatePayroll(ctx context.Context, req domain.PayrollCreateRequest) (domain.PayrollRecord, error) {
	req.StoreID = s.storeOrDefault(req.StoreID)
	date, err := parseDate(req.Date)
	if err != nil {
		return domain.PayrollRecord{}, store.ErrInvalidOrder
	}
	if strings.TrimSpace(req.EmployeeName) == "" || req.BaseSalary < 0 || req.Bonus < 0 {
		return domain.PayrollRecord{}, store.ErrInvalidOrder
	}

	created, err := s.repo.CreatePayroll(ctx, domain.PayrollRecord{
		ID:           xid.New("pay"),
		StoreID:      req.StoreID,
		Date:         date,
		EmployeeName: strings.TrimSpace(req.EmployeeName),
		BaseSalary:   req.BaseSalary,
		Bonus:        req.Bonus,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.PayrollRecord{}, err
	}

	s.logAudit(ctx, req.StoreID, "payroll_create", "payroll", created.ID, fmt.Sprintf("employee=%s,total=%d", created.EmployeeName, created.BaseSalary+created.Bonus))
	return *created, nil
}

func (s *Service) ListPayroll(ctx context.Context, storeID string, month int, year int) ([]domain.PayrollRecord, error) {
	from, to, err := monthBounds(month, year)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPayrollByPeriod(ctx, s.storeOrDefault(storeID), from, to)
}

func (s *Service) GetStoreProfile(ctx context.Context, storeID string) (domain.StoreProfile, error) {
	profile, err := s.repo.GetStoreProfile(ctx, s.storeOrDefault(storeID))
	if err != nil {
		return domain.StoreProfile{}, err
	}
	return *profile, nil
}

func (s *Service) UpsertStoreProfile(ctx context.Context, profile domain.StoreProfile) (domain.StoreProfile, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "owner" {
		return domain.StoreProfile{}, fmt.Errorf("owner role required")
	}

	profile.StoreID = s.storeOrDefault(profile.StoreID)
	profile.Name = strings.TrimSpace(profile.Name)
	if profile.Name == "" {
		return domain.StoreProfile{}, store.ErrInvalidOrder
	}

	saved, err := s.repo.UpsertStoreProfile(ctx, profile)
	if err != nil {
		return domain.StoreProfile{}, err
	}
	s.logAudit(ctx, profile.StoreID, "store_profile_update", "store_profile", profile.StoreID, "name="+profile.Name)
	return *saved, nil
}

// PaymentQRURL builds a VietQR image URL for a bank-transfer payment from the
// store profile's bank fields. Pure string templating, no remote call.
func (s *Service) PaymentQRURL(ctx context.Context, storeID string, amount int64, memo string) (string, error) {
	profile, err := s.repo.GetStoreProfile(ctx, s.storeOrDefault(storeID))
	if err != nil {
		return "", err
	}
	if profile.BankName == "" || profile.BankAccount == "" {
		return "", store.ErrInvalidOrder
	}
	if amount < 1 {
		return "", store.ErrInvalidOrder
	}

	q := url.Values{}
	q.Set("amount", fmt.Sprintf("%d", amount))
	if memo != "" {
		q.Set("addInfo", memo)
	}
	if profile.OwnerName != "" {
		q.Set("accountName", profile.OwnerName)
	}
	return fmt.Sprintf("https://img.vietqr.io/image/%s-%s-compact.png?%s",
		url.PathEscape(profile.BankName), url.PathEscape(profile.BankAccount), q.Encode()), nil
}

// Report derives one statutory book and, for tax-type requests, the annual
// threshold summary. Missing store profile fields degrade to a partial result
// with Incomplete set instead of failing.
func (s *Service) Report(ctx context.Context, storeID string, month int, year int, reportType string, book string) (report.BookReport, error) {
	storeID = s.storeOrDefault(storeID)
	from, to, err := monthBounds(month, year)
	if err != nil {
		return report.BookReport{}, err
	}
	if reportType != "tax" && reportType != "accounting" {
		return report.BookReport{}, store.ErrInvalidOrder
	}
	book = strings.ToLower(strings.TrimSpace(book))
	if reportType == "accounting" && !report.ValidBook(book) {
		return report.BookReport{}, store.ErrInvalidOrder
	}
	if book != "" && !report.ValidBook(book) {
		return report.BookReport{}, store.ErrInvalidOrder
	}

	cacheKey := fmt.Sprintf("report:%s:%s:%s:%04d-%02d", storeID, reportType, book, year, month)
	if cached, hit, err := s.reportCache.Get(ctx, cacheKey); err == nil && hit {
		return *cached, nil
	} else if err != nil {
		log.Printf("[report-cache] WARN: get failed key=%s: %v", cacheKey, err)
	}

	rep := report.BookReport{
		StoreID: storeID,
		Book:    book,
		Month:   month,
		Year:    year,
	}

	profile, err := s.repo.GetStoreProfile(ctx, storeID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return report.BookReport{}, err
		}
		rep.Incomplete = true
		rep.Warnings = append(rep.Warnings, "store profile not configured")
	} else {
		rep.Header = report.Header{
			StoreName: profile.Name,
			OwnerName: profile.OwnerName,
			TaxCode:   profile.TaxCode,
			Address:   profile.Address,
		}
		if profile.TaxCode == "" {
			rep.Incomplete = true
			rep.Warnings = append(rep.Warnings, "store profile missing tax code")
		}
	}

	switch book {
	case report.BookS1:
		orders, err := s.repo.ListOrdersByPeriod(ctx, storeID, from, to)
		if err != nil {
			return report.BookReport{}, err
		}
		rep.Data.S1 = report.BuildS1(orders)
	case report.BookS2:
		deltas, err := s.repo.ListInventoryDeltas(ctx, storeID, from, to)
		if err != nil {
			return report.BookReport{}, err
		}
		products, err := s.repo.ListProducts(ctx, storeID)
		if err != nil {
			return report.BookReport{}, err
		}
		productMap := make(map[string]domain.Product, len(products))
		for _, p := range products {
			productMap[p.SKU] = p
		}
		rep.Data.S2 = report.BuildS2(deltas, productMap)
	case report.BookS3:
		expenses, err := s.repo.ListExpensesByPeriod(ctx, storeID, from, to)
		if err != nil {
			return report.BookReport{}, err
		}
		rep.Data.S3 = report.BuildS3(expenses)
	case report.BookS4:
		payments, err := s.repo.ListTaxPaymentsByPeriod(ctx, storeID, from, to)
		if err != nil {
			return report.BookReport{}, err
		}
		rep.Data.S4 = report.BuildS4(payments)
	case report.BookS5:
		records, err := s.repo.ListPayrollByPeriod(ctx, storeID, from, to)
		if err != nil {
			return report.BookReport{}, err
		}
		rep.Data.S5 = report.BuildS5(records)
	case report.BookS6, report.BookS7:
		orders, err := s.repo.ListOrdersByPeriod(ctx, storeID, from, to)
		if err != nil {
			return report.BookReport{}, err
		}
		expenses, err := s.repo.ListExpensesByPeriod(ctx, storeID, from, to)
		if err != nil {
			return report.BookReport{}, err
		}
		if book == report.BookS6 {
			rep.Data.S6 = report.BuildLedger(orders, expenses, domain.ChannelCash)
		} else {
			rep.Data.S7 = report.BuildLedger(orders, expenses, domain.ChannelBank)
		}
	}

	if reportType == "tax" {
		summary, err := s.taxSummary(ctx, storeID, month, year, from, to)
		if err != nil {
			return report.BookReport{}, err
		}
		rep.Summary = &summary
	}

	if err := s.reportCache.Set(ctx, cacheKey, &rep, s.reportTTL); err != nil {
		log.Printf("[report-cache] WARN: set failed key=%s: %v", cacheKey, err)
	}
	return rep, nil
}

func (s *Service) taxSummary(ctx context.Context, storeID string, month int, year int, from time.Time, to time.Time) (report.TaxSummary, error) {
	periodOrders, err := s.repo.ListOrdersByPeriod(ctx, storeID, from, to)
	if err != nil {
		return report.TaxSummary{}, err
	}
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	ytdOrders, err := s.repo.ListOrdersByPeriod(ctx, storeID, yearStart, to)
	if err != nil {
		return report.TaxSummary{}, err
	}

	threshold := s.thresholdAmount
	if profile, err := s.repo.GetStoreProfile(ctx, storeID); err == nil && profile.ThresholdOverride > 0 {
		threshold = profile.ThresholdOverride
	}

	return report.BuildTaxSummary(year, month, report.NetRevenue(periodOrders), report.NetRevenue(ytdOrders), threshold), nil
}

func (s *Service) ExportReportCSV(ctx context.Context, storeID string, month int, year int, book string) ([]byte, error) {
	rep, err := s.Report(ctx, storeID, month, year, "accounting", book)
	if err != nil {
		return nil, err
	}
	return report.ExportCSV(&rep)
}

func (s *Service) ExportReportXML(ctx context.Context, storeID string, month int, year int, book string) ([]byte, error) {
	rep, err := s.Report(ctx, storeID, month, year, "tax", book)
	if err != nil {
		return nil, err
	}
	return report.ExportXML(&rep)
}

func (s *Service) ListAuditLogs(ctx context.Context, storeID string, date string, limit int) ([]domain.AuditLog, error) {
	day := time.Now().UTC()
	if date != "" {
		parsed, err := parseDate(date)
		if err != nil {
			return nil, store.ErrInvalidOrder
		}
		day = parsed
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, s.storeOrDefault(storeID), from, to, limit)
}

func (s *Service) CreateStaff(ctx context.Context, storeID string, req domain.StaffCreateRequest) (domain.StaffUser, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "owner" {
		return domain.StaffUser{}, fmt.Errorf("owner role required")
	}

	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Username == "" || len(req.Password) < 8 {
		return domain.StaffUser{}, store.ErrInvalidOrder
	}
	if _, err := s.repo.GetUserByUsername(ctx, req.Username); err == nil {
		return domain.StaffUser{}, fmt.Errorf("username %s already exists: %w", req.Username, store.ErrInvalidOrder)
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.StaffUser{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.StaffUser{}, err
	}

	account := domain.UserAccount{
		Username:  req.Username,
		Password:  string(hash),
		Role:      "cashier",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, account); err != nil {
		return domain.StaffUser{}, err
	}

	s.logAudit(ctx, s.storeOrDefault(storeID), "staff_create", "user", account.Username, "role=cashier")
	return domain.StaffUser{
		Username:  account.Username,
		Role:      account.Role,
		Active:    account.Active,
		CreatedAt: account.CreatedAt,
	}, nil
}

func (s *Service) ListStaff(ctx context.Context) ([]domain.StaffUser, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "owner" {
		return nil, fmt.Errorf("owner role required")
	}

	accounts, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	staff := make([]domain.StaffUser, 0, len(accounts))
	for _, account := range accounts {
		staff = append(staff, domain.StaffUser{
			Username:  account.Username,
			Role:      account.Role,
			Active:    account.Active,
			CreatedAt: account.CreatedAt,
		})
	}
	return staff, nil
}

func (s *Service) ChangePassword(ctx context.Context, newPassword string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return fmt.Errorf("authentication required")
	}
	if len(newPassword) < 8 {
		return store.ErrInvalidOrder
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateUserPassword(ctx, actor.Username, string(hash)); err != nil {
		return err
	}
	s.logAudit(ctx, s.defaultStoreID, "password_change", "user", actor.Username, "")
	return nil
}

func (s *Service) logAudit(ctx context.Context, storeID string, action string, entityType string, entityID string, detail string) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		StoreID:       storeID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func (s *Service) storeOrDefault(storeID string) string {
	if strings.TrimSpace(storeID) == "" {
		return s.defaultStoreID
	}
	return storeID
}

// normalizeCart merges duplicate SKU lines so every SKU appears once in the
// committed order. Conflicting price overrides for the same SKU are rejected.
func normalizeCart(lines []domain.CartLine) ([]domain.CartLine, error) {
	merged := make(map[string]*domain.CartLine, len(lines))
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		line.SKU = strings.ToUpper(strings.TrimSpace(line.SKU))
		if line.SKU == "" {
			continue
		}
		if line.Qty < 1 {
			return nil, store.ErrInvalidOrder
		}
		existing, ok := merged[line.SKU]
		if !ok {
			copyLine := line
			merged[line.SKU] = &copyLine
			order = append(order, line.SKU)
			continue
		}
		existing.Qty += line.Qty
		switch {
		case line.UnitPriceOverride == nil:
		case existing.UnitPriceOverride == nil:
			existing.UnitPriceOverride = line.UnitPriceOverride
		case *existing.UnitPriceOverride != *line.UnitPriceOverride:
			return nil, store.ErrInvalidOrder
		}
	}

	normalized := make([]domain.CartLine, 0, len(order))
	for _, sku := range order {
		normalized = append(normalized, *merged[sku])
	}
	return normalized, nil
}

func parseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(value))
}

func monthBounds(month int, year int) (time.Time, time.Time, error) {
	if month < 1 || month > 12 || year < 2000 || year > 2200 {
		return time.Time{}, time.Time{}, store.ErrInvalidOrder
	}
	from, to := report.PeriodBounds(year, month)
	return from, to, nil
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentBankTransfer, domain.PaymentDebt:
		return true
	}
	return false
}
