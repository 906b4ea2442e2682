package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"sobanhang/backend/internal/domain"
	"sobanhang/backend/internal/store"
	"sobanhang/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, name, unit, price, cost, COALESCE(barcode,''), low_stock_threshold, active
		FROM products
		WHERE store_id = $1
		ORDER BY sku
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.SKU, &p.Name, &p.Unit, &p.Price, &p.Cost, &p.Barcode, &p.LowStockThreshold, &p.Active); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, storeID string, product domain.Product, initialStock int) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.Price < 0 || initialStock < 0 {
		return nil, store.ErrInvalidOrder
	}
	product.Active = true

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (store_id, sku, name, unit, price, cost, barcode, low_stock_threshold, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
	`, storeID, product.SKU, product.Name, product.Unit, product.Price, product.Cost, nullIfEmpty(product.Barcode), product.LowStockThreshold, product.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidOrder
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory_stocks (store_id, sku, qty, updated_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (store_id, sku)
		DO UPDATE SET qty = EXCLUDED.qty, updated_at = now()
	`, storeID, product.SKU, initialStock)
	if err != nil {
		return nil, err
	}

	if initialStock > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventory_deltas (id, store_id, sku, qty, reason, ref_order_id, note, created_at)
			VALUES ($1,$2,$3,$4,$5,NULL,$6,now())
		`, xid.New("idelta"), storeID, product.SKU, initialStock, domain.DeltaReasonRestock, "initial stock")
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) GetProductBySKU(ctx context.Context, storeID string, sku string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT sku, name, unit, price, cost, COALESCE(barcode,''), low_stock_threshold, active
		FROM products
		WHERE store_id = $1 AND sku = $2
	`, storeID, sku).Scan(&product.SKU, &product.Name, &product.Unit, &product.Price, &product.Cost, &product.Barcode, &product.LowStockThreshold, &product.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, storeID string, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.Price < 0 {
		return nil, store.ErrInvalidOrder
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $3, unit = $4, price = $5, cost = $6, barcode = $7, low_stock_threshold = $8, active = $9, updated_at = now()
		WHERE store_id = $1 AND sku = $2
	`, storeID, product.SKU, product.Name, product.Unit, product.Price, product.Cost, nullIfEmpty(product.Barcode), product.LowStockThreshold, product.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) GetProductsBySKUs(ctx context.Context, storeID string, skus []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(skus))
	if len(skus) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, name, unit, price, cost, COALESCE(barcode,''), low_stock_threshold, active
		FROM products
		WHERE store_id = $1 AND active = true AND sku = ANY($2)
	`, storeID, skus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.SKU, &p.Name, &p.Unit, &p.Price, &p.Cost, &p.Barcode, &p.LowStockThreshold, &p.Active); err != nil {
			return nil, err
		}
		result[p.SKU] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) GetStockMap(ctx context.Context, storeID string, skus []string) (map[string]int, error) {
	stockMap := make(map[string]int, len(skus))
	if len(skus) == 0 {
		return stockMap, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, qty
		FROM inventory_stocks
		WHERE store_id = $1 AND sku = ANY($2)
	`, storeID, skus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sku string
		var qty int
		if err := rows.Scan(&sku, &qty); err != nil {
			return nil, err
		}
		stockMap[sku] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sku := range skus {
		if _, ok := stockMap[sku]; !ok {
			stockMap[sku] = 0
		}
	}

	return stockMap, nil
}

func (s *Store) ListCustomers(ctx context.Context, storeID string) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, name, COALESCE(phone,''), debt_balance, created_at
		FROM customers
		WHERE store_id = $1
		ORDER BY name, id
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &c.DebtBalance, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, store_id, name, phone, debt_balance, created_at)
		VALUES ($1,$2,$3,$4,0,$5)
	`, customer.ID, customer.StoreID, customer.Name, nullIfEmpty(customer.Phone), customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidOrder
		}
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, name, COALESCE(phone,''), debt_balance, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &c.DebtBalance, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) FindOrderByIdempotency(ctx context.Context, storeID string, key string) (*domain.Order, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM orders WHERE store_id = $1 AND idempotency_key = $2
	`, storeID, key).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return s.FindOrderByID(ctx, id)
}

func (s *Store) FindOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	var customerID sql.NullString
	var voidReason sql.NullString
	var voidedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, idempotency_key, payment_method, customer_id,
			total_amount, discount_amount, final_amount, status, void_reason, voided_at, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID,
		&order.StoreID,
		&order.IdempotencyKey,
		&order.PaymentMethod,
		&customerID,
		&order.TotalAmount,
		&order.DiscountAmount,
		&order.FinalAmount,
		&order.Status,
		&voidReason,
		&voidedAt,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if customerID.Valid {
		order.CustomerID = customerID.String
	}
	if voidReason.Valid {
		order.VoidReason = voidReason.String
	}
	if voidedAt.Valid {
		at := voidedAt.Time.UTC()
		order.VoidedAt = &at
	}
	order.CreatedAt = order.CreatedAt.UTC()

	items, err := s.orderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (s *Store) orderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, name, qty, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0, 8)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.SKU, &item.Name, &item.Qty, &item.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateOrder commits the checkout in one serializable transaction: stock rows
// are locked FOR UPDATE, SALE deltas and the optional debt delta land together
// with the order row. A serialization conflict is retried once; insufficient
// stock never is.
func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	created, err := s.createOrderOnce(ctx, order)
	if err != nil && isSerializationFailure(err) {
		return s.createOrderOnce(ctx, order)
	}
	return created, err
}

func (s *Store) createOrderOnce(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.IdempotencyKey == "" || len(order.Items) == 0 {
		return nil, store.ErrInvalidOrder
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	skus := uniqueSKUs(order.Items)
	if len(skus) == 0 {
		return nil, store.ErrInvalidOrder
	}

	productRows, err := pgTx.QueryContext(ctx, `
		SELECT sku
		FROM products
		WHERE store_id = $1 AND active = true AND sku = ANY($2)
	`, order.StoreID, skus)
	if err != nil {
		return nil, err
	}
	activeSKUs := make(map[string]struct{}, len(skus))
	for productRows.Next() {
		var sku string
		if err := productRows.Scan(&sku); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		activeSKUs[sku] = struct{}{}
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, err
	}
	_ = productRows.Close()

	stockRows, err := pgTx.QueryContext(ctx, `
		SELECT sku, qty
		FROM inventory_stocks
		WHERE store_id = $1 AND sku = ANY($2)
		FOR UPDATE
	`, order.StoreID, skus)
	if err != nil {
		return nil, err
	}
	stockMap := make(map[string]int, len(skus))
	for stockRows.Next() {
		var sku string
		var qty int
		if err := stockRows.Scan(&sku, &qty); err != nil {
			_ = stockRows.Close()
			return nil, err
		}
		stockMap[sku] = qty
	}
	if err := stockRows.Err(); err != nil {
		_ = stockRows.Close()
		return nil, err
	}
	_ = stockRows.Close()

	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.Status = domain.OrderStatusActive

	for _, item := range order.Items {
		if item.Qty < 1 {
			return nil, store.ErrInvalidOrder
		}
		if _, exists := activeSKUs[item.SKU]; !exists {
			return nil, fmt.Errorf("sku %s unavailable: %w", item.SKU, store.ErrNotFound)
		}
		available := stockMap[item.SKU]
		if available < item.Qty {
			return nil, &store.InsufficientStockError{SKU: item.SKU, Requested: item.Qty, Available: available}
		}
		stockMap[item.SKU] = available - item.Qty

		_, err = pgTx.ExecContext(ctx, `
			UPDATE inventory_stocks
			SET qty = qty - $1, updated_at = now()
			WHERE store_id = $2 AND sku = $3
		`, item.Qty, order.StoreID, item.SKU)
		if err != nil {
			return nil, err
		}
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO inventory_deltas (id, store_id, sku, qty, reason, ref_order_id, note, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,NULL,$7)
		`, xid.New("idelta"), order.StoreID, item.SKU, -item.Qty, domain.DeltaReasonSale, order.ID, order.CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	if order.PaymentMethod == domain.PaymentDebt {
		var balance int64
		err = pgTx.QueryRowContext(ctx, `
			SELECT debt_balance FROM customers WHERE id = $1 AND store_id = $2 FOR UPDATE
		`, order.CustomerID, order.StoreID).Scan(&balance)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		_, err = pgTx.ExecContext(ctx, `
			UPDATE customers SET debt_balance = debt_balance + $1 WHERE id = $2
		`, order.FinalAmount, order.CustomerID)
		if err != nil {
			return nil, err
		}
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO debt_deltas (id, store_id, customer_id, amount, ref_order_id, ref_repayment_id, created_at)
			VALUES ($1,$2,$3,$4,$5,NULL,$6)
		`, xid.New("ddelta"), order.StoreID, order.CustomerID, order.FinalAmount, order.ID, order.CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO orders (
			id, store_id, idempotency_key, payment_method, customer_id,
			total_amount, discount_amount, final_amount, status, void_reason, voided_at, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULL,NULL,$10)
	`, order.ID, order.StoreID, order.IdempotencyKey, order.PaymentMethod, nullIfEmpty(order.CustomerID),
		order.TotalAmount, order.DiscountAmount, order.FinalAmount, order.Status, order.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := s.FindOrderByIdempotency(ctx, order.StoreID, order.IdempotencyKey)
			if lookupErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	for _, item := range order.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, sku, name, qty, unit_price)
			VALUES ($1,$2,$3,$4,$5)
		`, order.ID, item.SKU, item.Name, item.Qty, item.UnitPrice)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &order, nil
}

// VoidOrder reverses every ledger effect of the order and flips its status in
// one serializable transaction. The order row is never deleted.
func (s *Store) VoidOrder(ctx context.Context, id string, reason string, at time.Time) (*domain.Order, error) {
	voided, err := s.voidOrderOnce(ctx, id, reason, at)
	if err != nil && isSerializationFailure(err) {
		return s.voidOrderOnce(ctx, id, reason, at)
	}
	return voided, err
}

func (s *Store) voidOrderOnce(ctx context.Context, id string, reason string, at time.Time) (*domain.Order, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var order domain.Order
	var customerID sql.NullString
	err = pgTx.QueryRowContext(ctx, `
		SELECT id, store_id, payment_method, customer_id, final_amount, status
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&order.ID, &order.StoreID, &order.PaymentMethod, &customerID, &order.FinalAmount, &order.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if customerID.Valid {
		order.CustomerID = customerID.String
	}
	if order.Status != domain.OrderStatusActive {
		return nil, store.ErrInvalidOrder
	}

	itemRows, err := pgTx.QueryContext(ctx, `
		SELECT sku, qty
		FROM order_items
		WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	items := make([]domain.OrderItem, 0, 8)
	for itemRows.Next() {
		var item domain.OrderItem
		if err := itemRows.Scan(&item.SKU, &item.Qty); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	_, err = pgTx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, void_reason = $3, voided_at = $4
		WHERE id = $1 AND status = $5
	`, id, domain.OrderStatusVoided, reason, at, domain.OrderStatusActive)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO inventory_stocks (store_id, sku, qty, updated_at)
			VALUES ($1,$2,$3,now())
			ON CONFLICT (store_id, sku)
			DO UPDATE SET qty = inventory_stocks.qty + EXCLUDED.qty, updated_at = now()
		`, order.StoreID, item.SKU, item.Qty)
		if err != nil {
			return nil, err
		}
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO inventory_deltas (id, store_id, sku, qty, reason, ref_order_id, note, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,NULL,$7)
		`, xid.New("idelta"), order.StoreID, item.SKU, item.Qty, domain.DeltaReasonReturn, id, at)
		if err != nil {
			return nil, err
		}
	}

	if order.PaymentMethod == domain.PaymentDebt && order.CustomerID != "" {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE customers SET debt_balance = debt_balance - $1 WHERE id = $2
		`, order.FinalAmount, order.CustomerID)
		if err != nil {
			return nil, err
		}
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO debt_deltas (id, store_id, customer_id, amount, ref_order_id, ref_repayment_id, created_at)
			VALUES ($1,$2,$3,$4,$5,NULL,$6)
		`, xid.New("ddelta"), order.StoreID, order.CustomerID, -order.FinalAmount, id, at)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return s.FindOrderByID(ctx, id)
}

func (s *Store) ListOrdersByPeriod(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, idempotency_key, payment_method, customer_id,
			total_amount, discount_amount, final_amount, status, void_reason, voided_at, created_at
		FROM orders
		WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at, id
	`, storeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 64)
	ids := make([]string, 0, 64)
	for rows.Next() {
		var order domain.Order
		var customerID sql.NullString
		var voidReason sql.NullString
		var voidedAt sql.NullTime
		if err := rows.Scan(&order.ID, &order.StoreID, &order.IdempotencyKey, &order.PaymentMethod, &customerID,
			&order.TotalAmount, &order.DiscountAmount, &order.FinalAmount, &order.Status, &voidReason, &voidedAt, &order.CreatedAt); err != nil {
			return nil, err
		}
		if customerID.Valid {
			order.CustomerID = customerID.String
		}
		if voidReason.Valid {
			order.VoidReason = voidReason.String
		}
		if voidedAt.Valid {
			at := voidedAt.Time.UTC()
			order.VoidedAt = &at
		}
		order.CreatedAt = order.CreatedAt.UTC()
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT order_id, sku, name, qty, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id ASC
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	itemsByOrder := make(map[string][]domain.OrderItem, len(orders))
	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.SKU, &item.Name, &item.Qty, &item.UnitPrice); err != nil {
			return nil, err
		}
		itemsByOrder[orderID] = append(itemsByOrder[orderID], item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items = itemsByOrder[orders[i].ID]
	}
	return orders, nil
}

func (s *Store) RestockStock(ctx context.Context, storeID string, lines []domain.RestockLine, at time.Time) error {
	if len(lines) == 0 {
		return nil
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	for _, line := range lines {
		if line.Qty < 1 {
			return store.ErrInvalidOrder
		}
		var exists bool
		err := pgTx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM products WHERE store_id = $1 AND sku = $2)
		`, storeID, line.SKU).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("sku %s unavailable: %w", line.SKU, store.ErrNotFound)
		}

		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO inventory_stocks (store_id, sku, qty, updated_at)
			VALUES ($1,$2,$3,now())
			ON CONFLICT (store_id, sku)
			DO UPDATE SET qty = inventory_stocks.qty + EXCLUDED.qty, updated_at = now()
		`, storeID, line.SKU, line.Qty)
		if err != nil {
			return err
		}
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO inventory_deltas (id, store_id, sku, qty, reason, ref_order_id, note, created_at)
			VALUES ($1,$2,$3,$4,$5,NULL,$6,$7)
		`, xid.New("idelta"), storeID, line.SKU, line.Qty, domain.DeltaReasonRestock, nullIfEmpty(line.Note), at)
		if err != nil {
			return err
		}
	}

	return pgTx.Commit()
}

// ReconcileStock locks every counted stock row, then applies one
// AUDIT_ADJUSTMENT per product for the difference between the physical count
// and the cached figure. The whole batch commits or none of it does.
func (s *Store) ReconcileStock(ctx context.Context, reconcileID string, storeID string, counts []domain.ReconcileCount, notes string, at time.Time) ([]domain.ReconcileAdjustment, error) {
	if len(counts) == 0 {
		return nil, store.ErrInvalidOrder
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	skus := make([]string, 0, len(counts))
	for _, count := range counts {
		if count.PhysicalCount < 0 {
			return nil, store.ErrInvalidOrder
		}
		skus = append(skus, count.SKU)
	}
	sort.Strings(skus)

	productRows, err := pgTx.QueryContext(ctx, `
		SELECT sku FROM products WHERE store_id = $1 AND sku = ANY($2)
	`, storeID, skus)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(skus))
	for productRows.Next() {
		var sku string
		if err := productRows.Scan(&sku); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		known[sku] = struct{}{}
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, err
	}
	_ = productRows.Close()
	for _, sku := range skus {
		if _, ok := known[sku]; !ok {
			return nil, fmt.Errorf("sku %s unavailable: %w", sku, store.ErrNotFound)
		}
	}

	stockRows, err := pgTx.QueryContext(ctx, `
		SELECT sku, qty
		FROM inventory_stocks
		WHERE store_id = $1 AND sku = ANY($2)
		FOR UPDATE
	`, storeID, skus)
	if err != nil {
		return nil, err
	}
	stockMap := make(map[string]int, len(skus))
	for stockRows.Next() {
		var sku string
		var qty int
		if err := stockRows.Scan(&sku, &qty); err != nil {
			_ = stockRows.Close()
			return nil, err
		}
		stockMap[sku] = qty
	}
	if err := stockRows.Err(); err != nil {
		_ = stockRows.Close()
		return nil, err
	}
	_ = stockRows.Close()

	adjustments := make([]domain.ReconcileAdjustment, 0, len(counts))
	for _, count := range counts {
		current := stockMap[count.SKU]
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
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO inventory_stocks (store_id, sku, qty, updated_at)
			VALUES ($1,$2,$3,now())
			ON CONFLICT (store_id, sku)
			DO UPDATE SET qty = EXCLUDED.qty, updated_at = now()
		`, storeID, count.SKU, count.PhysicalCount)
		if err != nil {
			return nil, err
		}
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO inventory_deltas (id, store_id, sku, qty, reason, ref_order_id, note, created_at)
			VALUES ($1,$2,$3,$4,$5,NULL,$6,$7)
		`, xid.New("idelta"), storeID, count.SKU, delta, domain.DeltaReasonAuditAdjustment, nullIfEmpty(notes), at)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return adjustments, nil
}

func (s *Store) ListInventoryDeltas(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.InventoryDelta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, sku, qty, reason, COALESCE(ref_order_id,''), COALESCE(note,''), created_at
		FROM inventory_deltas
		WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at, id
	`, storeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deltas := make([]domain.InventoryDelta, 0, 128)
	for rows.Next() {
		var d domain.InventoryDelta
		if err := rows.Scan(&d.ID, &d.StoreID, &d.SKU, &d.Qty, &d.Reason, &d.RefOrderID, &d.Note, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.CreatedAt = d.CreatedAt.UTC()
		deltas = append(deltas, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return deltas, nil
}

func (s *Store) CreateRepayment(ctx context.Context, repayment domain.Repayment) (*domain.Repayment, error) {
	if repayment.Amount < 1 {
		return nil, store.ErrInvalidOrder
	}
	if repayment.ID == "" {
		repayment.ID = xid.New("repay")
	}
	if repayment.CreatedAt.IsZero() {
		repayment.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var balance int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT debt_balance FROM customers WHERE id = $1 AND store_id = $2 FOR UPDATE
	`, repayment.CustomerID, repayment.StoreID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE customers SET debt_balance = debt_balance - $1 WHERE id = $2
	`, repayment.Amount, repayment.CustomerID)
	if err != nil {
		return nil, err
	}
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO repayments (id, store_id, customer_id, amount, method, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, repayment.ID, repayment.StoreID, repayment.CustomerID, repayment.Amount, repayment.Method, nullIfEmpty(repayment.Note), repayment.CreatedAt)
	if err != nil {
		return nil, err
	}
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO debt_deltas (id, store_id, customer_id, amount, ref_order_id, ref_repayment_id, created_at)
		VALUES ($1,$2,$3,$4,NULL,$5,$6)
	`, xid.New("ddelta"), repayment.StoreID, repayment.CustomerID, -repayment.Amount, repayment.ID, repayment.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	created := repayment
	return &created, nil
}

func (s *Store) ListDebtDeltas(ctx context.Context, storeID string, customerID string, limit int) ([]domain.DebtDelta, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, customer_id, amount, COALESCE(ref_order_id,''), COALESCE(ref_repayment_id,''), created_at
		FROM debt_deltas
		WHERE store_id = $1 AND ($2 = '' OR customer_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, storeID, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deltas := make([]domain.DebtDelta, 0, limit)
	for rows.Next() {
		var d domain.DebtDelta
		if err := rows.Scan(&d.ID, &d.StoreID, &d.CustomerID, &d.Amount, &d.RefOrderID, &d.RefRepaymentID, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.CreatedAt = d.CreatedAt.UTC()
		deltas = append(deltas, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return deltas, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.ExpenseRecord) (*domain.ExpenseRecord, error) {
	if expense.Amount < 1 || strings.TrimSpace(expense.Description) == "" {
		return nil, store.ErrInvalidOrder
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, store_id, expense_date, description, category, amount, channel, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, expense.ID, expense.StoreID, expense.Date, expense.Description, nullIfEmpty(expense.Category), expense.Amount, expense.Channel, expense.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := expense
	return &created, nil
}

func (s *Store) ListExpensesByPeriod(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.ExpenseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, expense_date, description, COALESCE(category,''), amount, channel, created_at
		FROM expenses
		WHERE store_id = $1 AND expense_date >= $2 AND expense_date < $3
		ORDER BY expense_date, id
	`, storeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.ExpenseRecord, 0, 32)
	for rows.Next() {
		var e domain.ExpenseRecord
		if err := rows.Scan(&e.ID, &e.StoreID, &e.Date, &e.Description, &e.Category, &e.Amount, &e.Channel, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Date = e.Date.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) CreateTaxPayment(ctx context.Context, payment domain.TaxPaymentRecord) (*domain.TaxPaymentRecord, error) {
	if payment.Amount < 1 || strings.TrimSpace(payment.Description) == "" {
		return nil, store.ErrInvalidOrder
	}
	if payment.ID == "" {
		payment.ID = xid.New("taxp")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tax_payments (id, store_id, payment_date, description, period, amount, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, payment.ID, payment.StoreID, payment.Date, payment.Description, nullIfEmpty(payment.Period), payment.Amount, payment.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := payment
	return &created, nil
}

func (s *Store) ListTaxPaymentsByPeriod(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.TaxPaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, payment_date, description, COALESCE(period,''), amount, created_at
		FROM tax_payments
		WHERE store_id = $1 AND payment_date >= $2 AND payment_date < $3
		ORDER BY payment_date, id
	`, storeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.TaxPaymentRecord, 0, 16)
	for rows.Next() {
		var p domain.TaxPaymentRecord
		if err := rows.Scan(&p.ID, &p.StoreID, &p.Date, &p.Description, &p.Period, &p.Amount, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Date = p.Date.UTC()
		p.CreatedAt = p.CreatedAt.UTC()
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Store) CreatePayroll(ctx context.Context, record domain.PayrollRecord) (*domain.PayrollRecord, error) {
	if strings.TrimSpace(record.EmployeeName) == "" || record.BaseSalary < 0 || record.Bonus < 0 {
		return nil, store.ErrInvalidOrder
	}
	if record.ID == "" {
		record.ID = xid.New("pay")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payroll_records (id, store_id, pay_date, employee_name, base_salary, bonus, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, record.ID, record.StoreID, record.Date, record.EmployeeName, record.BaseSalary, record.Bonus, record.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := record
	return &created, nil
}

func (s *Store) ListPayrollByPeriod(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.PayrollRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, pay_date, employee_name, base_salary, bonus, created_at
		FROM payroll_records
		WHERE store_id = $1 AND pay_date >= $2 AND pay_date < $3
		ORDER BY pay_date, id
	`, storeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.PayrollRecord, 0, 16)
	for rows.Next() {
		var r domain.PayrollRecord
		if err := rows.Scan(&r.ID, &r.StoreID, &r.Date, &r.EmployeeName, &r.BaseSalary, &r.Bonus, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Date = r.Date.UTC()
		r.CreatedAt = r.CreatedAt.UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) GetStoreProfile(ctx context.Context, storeID string) (*domain.StoreProfile, error) {
	var p domain.StoreProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT store_id, name, COALESCE(owner_name,''), COALESCE(tax_code,''), COALESCE(address,''),
			COALESCE(bank_name,''), COALESCE(bank_account,''), COALESCE(threshold_override,0)
		FROM store_profiles
		WHERE store_id = $1
	`, storeID).Scan(&p.StoreID, &p.Name, &p.OwnerName, &p.TaxCode, &p.Address, &p.BankName, &p.BankAccount, &p.ThresholdOverride)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpsertStoreProfile(ctx context.Context, profile domain.StoreProfile) (*domain.StoreProfile, error) {
	if profile.StoreID == "" {
		return nil, store.ErrInvalidOrder
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO store_profiles (store_id, name, owner_name, tax_code, address, bank_name, bank_account, threshold_override, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
		ON CONFLICT (store_id)
		DO UPDATE SET name = EXCLUDED.name, owner_name = EXCLUDED.owner_name, tax_code = EXCLUDED.tax_code,
			address = EXCLUDED.address, bank_name = EXCLUDED.bank_name, bank_account = EXCLUDED.bank_account,
			threshold_override = EXCLUDED.threshold_override, updated_at = now()
	`, profile.StoreID, profile.Name, nullIfEmpty(profile.OwnerName), nullIfEmpty(profile.TaxCode), nullIfEmpty(profile.Address),
		nullIfEmpty(profile.BankName), nullIfEmpty(profile.BankAccount), profile.ThresholdOverride)
	if err != nil {
		return nil, err
	}
	saved := profile
	return &saved, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.StoreID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, nullIfEmpty(entry.EntityID), nullIfEmpty(entry.Detail), entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, actor_username, actor_role, action, entity_type, COALESCE(entity_id,''), COALESCE(detail,''), created_at
		FROM audit_logs
		WHERE ($1 = '' OR store_id = $1) AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, storeID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.StoreID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidOrder
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidOrder
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidOrder
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func uniqueSKUs(items []domain.OrderItem) []string {
	if len(items) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.SKU == "" {
			continue
		}
		set[item.SKU] = struct{}{}
	}

	skus := make([]string, 0, len(set))
	for sku := range set {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return skus
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
