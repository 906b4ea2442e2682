package report

import (
	"fmt"
	"slices"
	"time"

	"sobanhang/backend/internal/domain"
)

// BuildS1 produces one revenue row per non-void order, ordered by creation
// time then id so repeated derivations are byte identical.
func BuildS1(orders []domain.Order) []S1Row {
	rows := make([]S1Row, 0, len(orders))
	for _, order := range orders {
		if order.Status == domain.OrderStatusVoided {
			continue
		}
		rows = append(rows, S1Row{
			Date:          order.CreatedAt,
			OrderID:       order.ID,
			PaymentMethod: order.PaymentMethod,
			TotalAmount:   order.TotalAmount,
			Discount:      order.DiscountAmount,
			ReturnAmount:  0,
			NetRevenue:    order.FinalAmount,
		})
	}
	slices.SortFunc(rows, func(a, b S1Row) int {
		if a.Date.Equal(b.Date) {
			return cmpString(a.OrderID, b.OrderID)
		}
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	})
	return rows
}

// BuildS2 groups inventory deltas by (product, day). The balance column folds
// per product from zero at period start. A group that sold goods while the
// product has no inbound record anywhere in the period is flagged as missing
// its inbound invoice; correction-only outflows never trigger the flag.
func BuildS2(deltas []domain.InventoryDelta, products map[string]domain.Product) []S2Row {
	type groupKey struct {
		sku string
		day time.Time
	}

	hasInbound := make(map[string]bool)
	for _, delta := range deltas {
		if delta.Qty > 0 {
			hasInbound[delta.SKU] = true
		}
	}

	groups := make(map[groupKey]*S2Row)
	saleOut := make(map[groupKey]bool)
	order := make([]groupKey, 0, len(deltas))
	for _, delta := range deltas {
		day := dateOnly(delta.CreatedAt)
		key := groupKey{sku: delta.SKU, day: day}
		row, ok := groups[key]
		if !ok {
			name := delta.SKU
			unit := ""
			if p, exists := products[delta.SKU]; exists {
				name = p.Name
				unit = p.Unit
			}
			row = &S2Row{Date: day, SKU: delta.SKU, ProductName: name, Unit: unit}
			groups[key] = row
			order = append(order, key)
		}
		if delta.Qty >= 0 {
			row.QtyIn += delta.Qty
		} else {
			row.QtyOut += -delta.Qty
			if delta.Reason == domain.DeltaReasonSale {
				saleOut[key] = true
			}
		}
	}

	slices.SortFunc(order, func(a, b groupKey) int {
		if a.day.Equal(b.day) {
			return cmpString(a.sku, b.sku)
		}
		if a.day.Before(b.day) {
			return -1
		}
		return 1
	})

	rows := make([]S2Row, 0, len(order))
	balances := make(map[string]int)
	for _, key := range order {
		row := *groups[key]
		balances[row.SKU] += row.QtyIn - row.QtyOut
		row.Balance = balances[row.SKU]
		if saleOut[key] && !hasInbound[row.SKU] {
			row.MissingInbound = true
		}
		rows = append(rows, row)
	}
	return rows
}

func BuildS3(expenses []domain.ExpenseRecord) []S3Row {
	rows := make([]S3Row, 0, len(expenses))
	for _, expense := range expenses {
		rows = append(rows, S3Row{
			Date:        expense.Date,
			Description: expense.Description,
			Category:    expense.Category,
			Amount:      expense.Amount,
			Channel:     expense.Channel,
		})
	}
	return rows
}

func BuildS4(payments []domain.TaxPaymentRecord) []S4Row {
	rows := make([]S4Row, 0, len(payments))
	for _, payment := range payments {
		rows = append(rows, S4Row{
			Date:        payment.Date,
			Description: payment.Description,
			Period:      payment.Period,
			Amount:      payment.Amount,
		})
	}
	return rows
}

func BuildS5(records []domain.PayrollRecord) []S5Row {
	rows := make([]S5Row, 0, len(records))
	for _, record := range records {
		rows = append(rows, S5Row{
			Date:         record.Date,
			EmployeeName: record.EmployeeName,
			BaseSalary:   record.BaseSalary,
			Bonus:        record.Bonus,
			Total:        record.BaseSalary + record.Bonus,
		})
	}
	return rows
}

// BuildLedger derives the cash book (channel "cash") or bank book (channel
// "bank"): order inflows on the matching payment method merged with expense
// outflows on the matching channel. Debt orders appear in neither book since
// no money moved at sale time.
func BuildLedger(orders []domain.Order, expenses []domain.ExpenseRecord, channel string) []LedgerRow {
	method := domain.PaymentCash
	if channel == domain.ChannelBank {
		method = domain.PaymentBankTransfer
	}

	rows := make([]LedgerRow, 0, len(orders)+len(expenses))
	for _, order := range orders {
		if order.Status == domain.OrderStatusVoided || order.PaymentMethod != method {
			continue
		}
		rows = append(rows, LedgerRow{
			Date:        order.CreatedAt,
			Description: fmt.Sprintf("Thu bán hàng %s", order.ID),
			RefID:       order.ID,
			Inflow:      order.FinalAmount,
		})
	}
	for _, expense := range expenses {
		if expense.Channel != channel {
			continue
		}
		rows = append(rows, LedgerRow{
			Date:        expense.Date,
			Description: expense.Description,
			RefID:       expense.ID,
			Outflow:     expense.Amount,
		})
	}

	slices.SortFunc(rows, func(a, b LedgerRow) int {
		if a.Date.Equal(b.Date) {
			return cmpString(a.RefID, b.RefID)
		}
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	})

	balance := int64(0)
	for i := range rows {
		balance += rows[i].Inflow - rows[i].Outflow
		rows[i].Balance = balance
	}
	return rows
}

// NetRevenue sums S1 net revenue over a set of orders.
func NetRevenue(orders []domain.Order) int64 {
	total := int64(0)
	for _, order := range orders {
		if order.Status == domain.OrderStatusVoided {
			continue
		}
		total += order.FinalAmount
	}
	return total
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
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
