package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"sobanhang/backend/internal/domain"
	"sobanhang/backend/internal/store"
	"sobanhang/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, context.Context) {
	t.Helper()
	repo := memory.NewSeeded()
	svc := New(repo, nil, "main-store", 100_000_000, time.Minute)
	ctx := WithActor(context.Background(), domain.Actor{Username: "owner", Role: "owner"})
	return svc, repo, ctx
}

func createTestProduct(t *testing.T, svc *Service, ctx context.Context, sku string, price int64, stock int, lowStock int) {
	t.Helper()
	_, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		SKU:               sku,
		Name:              "Hàng kiểm thử " + sku,
		Unit:              "cái",
		Price:             price,
		Cost:              price / 2,
		InitialStock:      stock,
		LowStockThreshold: lowStock,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", sku, err)
	}
}

func stockOf(t *testing.T, repo *memory.Store, sku string) int {
	t.Helper()
	stockMap, err := repo.GetStockMap(context.Background(), "main-store", []string{sku})
	if err != nil {
		t.Fatalf("get stock map: %v", err)
	}
	return stockMap[sku]
}

func TestCheckoutDeductsStockAndVoidRestores(t *testing.T) {
	svc, repo, ctx := newTestService(t)
	createTestProduct(t, svc, ctx, "SKU-TEST-01", 25000, 10, 0)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod: domain.PaymentCash,
		CartItems:     []domain.CartLine{{SKU: "SKU-TEST-01", Qty: 4}},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if resp.Duplicate {
		t.Fatalf("first checkout must not be a duplicate")
	}
	if resp.Order.FinalAmount != 100000 {
		t.Fatalf("expected final amount 100000, got %d", resp.Order.FinalAmount)
	}
	if got := stockOf(t, repo, "SKU-TEST-01"); got != 6 {
		t.Fatalf("expected stock 6 after sale, got %d", got)
	}

	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod: domain.PaymentCash,
		CartItems:     []domain.CartLine{{SKU: "SKU-TEST-01", Qty: 8}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected typed stock error, got %T", err)
	}
	if stockErr.SKU != "SKU-TEST-01" || stockErr.Requested != 8 || stockErr.Available != 6 {
		t.Fatalf("unexpected stock error detail: %+v", stockErr)
	}
	if got := stockOf(t, repo, "SKU-TEST-01"); got != 6 {
		t.Fatalf("failed checkout must not touch stock, got %d", got)
	}

	voidResp, err := svc.VoidOrder(ctx, domain.VoidOrderRequest{OrderID: resp.Order.ID, Reason: "nhập nhầm"})
	if err != nil {
		t.Fatalf("void order: %v", err)
	}
	if voidResp.Status != domain.OrderStatusVoided {
		t.Fatalf("expected voided status, got %s", voidResp.Status)
	}
	if got := stockOf(t, repo, "SKU-TEST-01"); got != 10 {
		t.Fatalf("expected stock restored to 10 after void, got %d", got)
	}

	_, err = svc.VoidOrder(ctx, domain.VoidOrderRequest{OrderID: resp.Order.ID})
	if !errors.Is(err, store.ErrInvalidOrder) {
		t.Fatalf("second void must fail, got %v", err)
	}
	if got := stockOf(t, repo, "SKU-TEST-01"); got != 10 {
		t.Fatalf("second void must not touch stock, got %d", got)
	}
}

func TestCheckoutValidation(t *testing.T) {
	svc, _, ctx := newTestService(t)
	createTestProduct(t, svc, ctx, "SKU-TEST-02", 10000, 5, 0)

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{PaymentMethod: domain.PaymentCash})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected empty cart error, got %v", err)
	}

	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod: domain.PaymentDebt,
		CartItems:     []domain.CartLine{{SKU: "SKU-TEST-02", Qty: 1}},
	})
	if !errors.Is(err, ErrCustomerRequired) {
		t.Fatalf("expected customer-required error, got %v", err)
	}

	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod:  domain.PaymentCash,
		DiscountAmount: 20000,
		CartItems:      []domain.CartLine{{SKU: "SKU-TEST-02", Qty: 1}},
	})
	if !errors.Is(err, ErrInvalidDiscount) {
		t.Fatalf("expected invalid discount error, got %v", err)
	}

	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod: domain.PaymentCash,
		CartItems:     []domain.CartLine{{SKU: "SKU-KHONG-CO", Qty: 1}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown sku, got %v", err)
	}
}

func TestCheckoutIdempotencyReturnsExistingOrder(t *testing.T) {
	svc, repo, ctx := newTestService(t)
	createTestProduct(t, svc, ctx, "SKU-TEST-03", 12000, 10, 0)

	req := domain.CheckoutRequest{
		IdempotencyKey: "pos-1-0042",
		PaymentMethod:  domain.PaymentCash,
		CartItems:      []domain.CartLine{{SKU: "SKU-TEST-03", Qty: 2}},
	}

	first, err := svc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	second, err := svc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("retried checkout: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("retry with same key must report duplicate")
	}
	if second.Order.ID != first.Order.ID {
		t.Fatalf("retry must return the committed order, got %s and %s", first.Order.ID, second.Order.ID)
	}
	if got := stockOf(t, repo, "SKU-TEST-03"); got != 8 {
		t.Fatalf("stock must be deducted exactly once, got %d", got)
	}
}

func TestCheckoutMergesDuplicateCartLines(t *testing.T) {
	svc, _, ctx := newTestService(t)
	createTestProduct(t, svc, ctx, "SKU-TEST-04", 5000, 20, 0)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod: domain.PaymentCash,
		CartItems: []domain.CartLine{
			{SKU: "SKU-TEST-04", Qty: 2},
			{SKU: "sku-test-04", Qty: 3},
		},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(resp.Order.Items) != 1 {
		t.Fatalf("expected merged single line, got %d", len(resp.Order.Items))
	}
	if resp.Order.Items[0].Qty != 5 || resp.Order.FinalAmount != 25000 {
		t.Fatalf("unexpected merged order: %+v", resp.Order)
	}
}

func TestCheckoutPriceOverrideIsSnapshotted(t *testing.T) {
	svc, _, ctx := newTestService(t)
	createTestProduct(t, svc, ctx, "SKU-TEST-05", 30000, 10, 0)

	override := int64(27000)
	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod: domain.PaymentCash,
		CartItems:     []domain.CartLine{{SKU: "SKU-TEST-05", Qty: 2, UnitPriceOverride: &override}},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if resp.Order.Items[0].UnitPrice != 27000 || resp.Order.FinalAmount != 54000 {
		t.Fatalf("expected override price snapshot, got %+v", resp.Order)
	}
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	svc, repo, ctx := newTestService(t)
	createTestProduct(t, svc, ctx, "SKU-TEST-06", 8000, 10, 0)

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Checkout(ctx, domain.CheckoutRequest{
				IdempotencyKey: fmt.Sprintf("race-%d", i),
				PaymentMethod:  domain.PaymentCash,
				CartItems:      []domain.CartLine{{SKU: "SKU-TEST-06", Qty: 3}},
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, store.ErrInsufficientStock) {
			t.Fatalf("unexpected checkout error: %v", err)
		}
	}
	if succeeded != 3 {
		t.Fatalf("expected exactly 3 successful checkouts from stock 10, got %d", succeeded)
	}
	if got := stockOf(t, repo, "SKU-TEST-06"); got != 1 {
		t.Fatalf("expected stock 1 after concurrent sales, got %d", got)
	}
}

func TestDebtCheckoutAndVoidConserveBalance(t *testing.T) {
	svc, repo, ctx := newTestService(t)
	createTestProduct(t, svc, ctx, "SKU-TEST-07", 10000, 10, 0)

	customer, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Chị Lan", Phone: "0901234567"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod: domain.PaymentDebt,
		CustomerID:    customer.ID,
		CartItems:     []domain.CartLine{{SKU: "SKU-TEST-07", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("debt checkout: %v", err)
	}

	got, err := svc.GetCustomer(ctx, customer.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if got.DebtBalance != 10000 {
		t.Fatalf("expected debt balance 10000, got %d", got.DebtBalance)
	}

	if _, err := svc.VoidOrder(ctx, domain.VoidOrderRequest{OrderID: resp.Order.ID, Reason: "khách đổi ý"}); err != nil {
		t.Fatalf("void debt order: %v", err)
	}
	got, err = svc.GetCustomer(ctx, customer.ID)
	if err != nil {
		t.Fatalf("get customer after void: %v", err)
	}
	if got.DebtBalance != 0 {
		t.Fatalf("expected debt balance 0 after void, got %d", got.DebtBalance)
	}

	deltas, err := repo.ListDebtDeltas(context.Background(), "main-store", customer.ID, 0)
	if err != nil {
		t.Fatalf("list debt deltas: %v", err)
	}
	var sum int64
	for _, delta := range deltas {
		sum += delta.Amount
	}
	if sum != 0 {
		t.Fatalf("debt deltas must net to zero after void, got %d", sum)
	}
}

func TestRepaymentReducesDebt(t *testing.T) {
	svc, _, ctx := newTestService(t)
	createTestProduct(t, svc, ctx, "SKU-TEST-08", 30000, 10, 0)

	customer, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Anh Tư"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod: domain.PaymentDebt,
		CustomerID:    customer.ID,
		CartItems:     []domain.CartLine{{SKU: "SKU-TEST-08", Qty: 1}},
	}); err != nil {
		t.Fatalf("debt checkout: %v", err)
	}

	if _, err := svc.RepayDebt(ctx, "", customer.ID, domain.RepaymentRequest{Amount: 10000, Method: domain.PaymentCash}); err != nil {
		t.Fatalf("repay debt: %v", err)
	}
	got, err := svc.GetCustomer(ctx, customer.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if got.DebtBalance != 20000 {
		t.Fatalf("expected debt balance 20000 after repayment, got %d", got.DebtBalance)
	}
}

func TestReconcileInventoryAppliesPhysicalCount(t *testing.T) {
	svc, repo, ctx := newTestService(t)
	createTestProduct(t, svc, ctx, "SKU-TEST-09", 15000, 10, 0)

	resp, err := svc.ReconcileInventory(ctx, domain.ReconcileRequest{
		Notes: "kiểm kho cuối tháng",
		Items: []domain.ReconcileCount{{SKU: "SKU-TEST-09", PhysicalCount: 7}},
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(resp.Adjustments) != 1 {
		t.Fatalf("expected 1 adjustment, got %d", len(resp.Adjustments))
	}
	adj := resp.Adjustments[0]
	if adj.SystemQty != 10 || adj.PhysicalCount != 7 || adj.DeltaQty != -3 {
		t.Fatalf("unexpected adjustment: %+v", adj)
	}
	if got := stockOf(t, repo, "SKU-TEST-09"); got != 7 {
		t.Fatalf("expected stock 7 after reconcile, got %d", got)
	}

	cashierCtx := WithActor(context.Background(), domain.Actor{Username: "cashier", Role: "cashier"})
	if _, err := svc.ReconcileInventory(cashierCtx, domain.ReconcileRequest{
		Items: []domain.ReconcileCount{{SKU: "SKU-TEST-09", PhysicalCount: 5}},
	}); err == nil {
		t.Fatalf("cashier must not reconcile inventory")
	}
}

func TestRestockRequiresOwnerRole(t *testing.T) {
	svc, repo, ctx := newTestService(t)
	createTestProduct(t, svc, ctx, "SKU-TEST-10", 9000, 2, 0)

	cashierCtx := WithActor(context.Background(), domain.Actor{Username: "cashier", Role: "cashier"})
	if err := svc.Restock(cashierCtx, domain.RestockRequest{
		Items: []domain.RestockLine{{SKU: "SKU-TEST-10", Qty: 5}},
	}); err == nil {
		t.Fatalf("cashier must not restock")
	}

	if err := svc.Restock(ctx, domain.RestockRequest{
		Items: []domain.RestockLine{{SKU: "SKU-TEST-10", Qty: 5}},
	}); err != nil {
		t.Fatalf("owner restock: %v", err)
	}
	if got := stockOf(t, repo, "SKU-TEST-10"); got != 7 {
		t.Fatalf("expected stock 7 after restock, got %d", got)
	}
}

func TestLowStockListsProductsAtOrBelowThreshold(t *testing.T) {
	svc, _, ctx := newTestService(t)
	createTestProduct(t, svc, ctx, "SKU-TEST-11", 20000, 6, 5)

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod: domain.PaymentCash,
		CartItems:     []domain.CartLine{{SKU: "SKU-TEST-11", Qty: 2}},
	}); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	resp, err := svc.LowStock(ctx, "")
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	found := false
	for _, item := range resp.Items {
		if item.SKU == "SKU-TEST-11" {
			found = true
			if item.CurrentStock != 4 || item.Threshold != 5 {
				t.Fatalf("unexpected low stock item: %+v", item)
			}
		}
	}
	if !found {
		t.Fatalf("expected SKU-TEST-11 in low stock list, got %+v", resp.Items)
	}
}

func TestReportRevenueBookWithTaxSummary(t *testing.T) {
	svc, _, ctx := newTestService(t)
	createTestProduct(t, svc, ctx, "SKU-TEST-12", 40000, 50, 0)

	if _, err := svc.UpsertStoreProfile(ctx, domain.StoreProfile{
		Name:              "Tạp hóa Cô Ba",
		OwnerName:         "Nguyễn Thị Ba",
		TaxCode:           "0312345678",
		ThresholdOverride: 50000,
	}); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
			IdempotencyKey: fmt.Sprintf("rep-%d", i),
			PaymentMethod:  domain.PaymentCash,
			CartItems:      []domain.CartLine{{SKU: "SKU-TEST-12", Qty: 1}},
		}); err != nil {
			t.Fatalf("checkout %d: %v", i, err)
		}
	}

	now := time.Now().UTC()
	rep, err := svc.Report(ctx, "", int(now.Month()), now.Year(), "tax", "s1")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.Incomplete {
		t.Fatalf("profile with tax code must not be incomplete: %+v", rep.Warnings)
	}
	if len(rep.Data.S1) != 2 {
		t.Fatalf("expected 2 revenue rows, got %d", len(rep.Data.S1))
	}
	if rep.Summary == nil {
		t.Fatalf("tax report must carry a summary")
	}
	if rep.Summary.AccumulatedRevenue != 80000 {
		t.Fatalf("expected accumulated revenue 80000, got %d", rep.Summary.AccumulatedRevenue)
	}
	if rep.Summary.ThresholdAmount != 50000 {
		t.Fatalf("expected threshold override 50000, got %d", rep.Summary.ThresholdAmount)
	}
	if rep.Summary.VATAmount != 800 || rep.Summary.PITAmount != 400 {
		t.Fatalf("unexpected tax amounts: %+v", rep.Summary)
	}

	again, err := svc.Report(ctx, "", int(now.Month()), now.Year(), "tax", "s1")
	if err != nil {
		t.Fatalf("repeated report: %v", err)
	}
	if !reflect.DeepEqual(rep, again) {
		t.Fatalf("repeated derivation must be identical")
	}
}

func TestReportFlagsMissingProfile(t *testing.T) {
	svc, _, ctx := newTestService(t)

	now := time.Now().UTC()
	rep, err := svc.Report(ctx, "", int(now.Month()), now.Year(), "accounting", "s3")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !rep.Incomplete {
		t.Fatalf("report without store profile must be flagged incomplete")
	}
	if len(rep.Warnings) == 0 {
		t.Fatalf("expected a warning about the missing profile")
	}
}

func TestReportRejectsUnknownBookAndType(t *testing.T) {
	svc, _, ctx := newTestService(t)

	if _, err := svc.Report(ctx, "", 3, 2026, "accounting", "s9"); !errors.Is(err, store.ErrInvalidOrder) {
		t.Fatalf("expected invalid book rejection, got %v", err)
	}
	if _, err := svc.Report(ctx, "", 3, 2026, "quarterly", "s1"); !errors.Is(err, store.ErrInvalidOrder) {
		t.Fatalf("expected invalid type rejection, got %v", err)
	}
	if _, err := svc.Report(ctx, "", 13, 2026, "tax", "s1"); !errors.Is(err, store.ErrInvalidOrder) {
		t.Fatalf("expected invalid month rejection, got %v", err)
	}
}

func TestCreateProductRequiresOwner(t *testing.T) {
	svc, _, _ := newTestService(t)

	cashierCtx := WithActor(context.Background(), domain.Actor{Username: "cashier", Role: "cashier"})
	_, err := svc.CreateProduct(cashierCtx, domain.ProductCreateRequest{SKU: "SKU-X", Name: "X", Price: 1000})
	if err == nil {
		t.Fatalf("cashier must not create products")
	}
}

func TestCreateExpenseValidatesChannel(t *testing.T) {
	svc, _, ctx := newTestService(t)

	_, err := svc.CreateExpense(ctx, domain.ExpenseCreateRequest{
		Date:        "2026-03-05",
		Description: "Tiền điện",
		Amount:      250000,
		Channel:     "momo",
	})
	if !errors.Is(err, store.ErrInvalidOrder) {
		t.Fatalf("expected channel rejection, got %v", err)
	}

	created, err := svc.CreateExpense(ctx, domain.ExpenseCreateRequest{
		Date:        "2026-03-05",
		Description: "Tiền điện",
		Category:    "điện nước",
		Amount:      250000,
		Channel:     domain.ChannelCash,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if !created.Date.Equal(time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected parsed date: %v", created.Date)
	}

	expenses, err := svc.ListExpenses(ctx, "", 3, 2026)
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("expected 1 expense in period, got %d", len(expenses))
	}
}

func TestCreateStaffRejectsDuplicateUsername(t *testing.T) {
	svc, _, ctx := newTestService(t)

	staff, err := svc.CreateStaff(ctx, "", domain.StaffCreateRequest{Username: "Thu.Ha", Password: "matkhau-manh"})
	if err != nil {
		t.Fatalf("create staff: %v", err)
	}
	if staff.Username != "thu.ha" || staff.Role != "cashier" {
		t.Fatalf("unexpected staff account %+v", staff)
	}

	_, err = svc.CreateStaff(ctx, "", domain.StaffCreateRequest{Username: "thu.ha", Password: "matkhau-khac"})
	if !errors.Is(err, store.ErrInvalidOrder) {
		t.Fatalf("expected duplicate username rejection, got %v", err)
	}
}

func TestThresholdAccumulationGrowsWithinYearAndResetsAcrossYears(t *testing.T) {
	svc, repo, ctx := newTestService(t)
	createTestProduct(t, svc, ctx, "SKU-TEST-20", 10000, 50, 0)

	if _, err := svc.UpsertStoreProfile(ctx, domain.StoreProfile{
		Name:    "Tạp hóa Cô Ba",
		TaxCode: "0312345678",
	}); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}

	seedOrder := func(id string, createdAt time.Time) {
		t.Helper()
		_, err := repo.CreateOrder(context.Background(), domain.Order{
			ID:             id,
			StoreID:        "main-store",
			IdempotencyKey: "idem-" + id,
			PaymentMethod:  domain.PaymentCash,
			Items:          []domain.OrderItem{{SKU: "SKU-TEST-20", Name: "Hàng kiểm thử", Qty: 1, UnitPrice: 10000}},
			TotalAmount:    10000,
			FinalAmount:    10000,
			CreatedAt:      createdAt,
		})
		if err != nil {
			t.Fatalf("seed order %s: %v", id, err)
		}
	}

	seedOrder("ord-ytd-jan", time.Date(2031, time.January, 10, 9, 0, 0, 0, time.UTC))
	seedOrder("ord-ytd-mar", time.Date(2031, time.March, 12, 9, 0, 0, 0, time.UTC))

	jan, err := svc.Report(ctx, "", 1, 2031, "tax", "s1")
	if err != nil {
		t.Fatalf("january report: %v", err)
	}
	mar, err := svc.Report(ctx, "", 3, 2031, "tax", "s1")
	if err != nil {
		t.Fatalf("march report: %v", err)
	}
	if jan.Summary.AccumulatedRevenue != 10000 {
		t.Fatalf("expected january accumulation 10000, got %d", jan.Summary.AccumulatedRevenue)
	}
	if mar.Summary.AccumulatedRevenue != 20000 {
		t.Fatalf("expected march accumulation 20000, got %d", mar.Summary.AccumulatedRevenue)
	}
	if mar.Summary.AccumulatedRevenue < jan.Summary.AccumulatedRevenue {
		t.Fatalf("accumulation must not decrease within a year")
	}

	nextYear, err := svc.Report(ctx, "", 1, 2032, "tax", "s1")
	if err != nil {
		t.Fatalf("next-year report: %v", err)
	}
	if nextYear.Summary.AccumulatedRevenue != 0 {
		t.Fatalf("expected accumulation to reset at year start, got %d", nextYear.Summary.AccumulatedRevenue)
	}
}

func TestDebtOperationsRejectCustomerFromAnotherStore(t *testing.T) {
	svc, repo, ctx := newTestService(t)
	createTestProduct(t, svc, ctx, "SKU-TEST-30", 10000, 10, 0)

	other, err := repo.CreateCustomer(context.Background(), domain.Customer{
		StoreID: "other-store",
		Name:    "Chị Tư",
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod: domain.PaymentDebt,
		CustomerID:    other.ID,
		CartItems:     []domain.CartLine{{SKU: "SKU-TEST-30", Qty: 1}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected cross-store debt checkout to fail with not found, got %v", err)
	}
	if got := stockOf(t, repo, "SKU-TEST-30"); got != 10 {
		t.Fatalf("failed checkout must not touch stock, got %d", got)
	}

	_, err = svc.RepayDebt(ctx, "", other.ID, domain.RepaymentRequest{Amount: 5000})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected cross-store repayment to fail with not found, got %v", err)
	}
}
