package report

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"sobanhang/backend/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildS1SkipsVoidedOrders(t *testing.T) {
	orders := []domain.Order{
		{ID: "ord-2", Status: domain.OrderStatusActive, PaymentMethod: domain.PaymentCash, TotalAmount: 50000, FinalAmount: 45000, DiscountAmount: 5000, CreatedAt: day(2)},
		{ID: "ord-1", Status: domain.OrderStatusActive, PaymentMethod: domain.PaymentDebt, TotalAmount: 10000, FinalAmount: 10000, CreatedAt: day(1)},
		{ID: "ord-3", Status: domain.OrderStatusVoided, PaymentMethod: domain.PaymentCash, TotalAmount: 99000, FinalAmount: 99000, CreatedAt: day(3)},
	}

	rows := BuildS1(orders)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].OrderID != "ord-1" || rows[1].OrderID != "ord-2" {
		t.Fatalf("expected chronological order, got %s then %s", rows[0].OrderID, rows[1].OrderID)
	}
	if rows[0].NetRevenue != 10000 {
		t.Fatalf("expected net revenue 10000, got %d", rows[0].NetRevenue)
	}
	if rows[1].ReturnAmount != 0 {
		t.Fatalf("expected return amount 0, got %d", rows[1].ReturnAmount)
	}
}

func TestBuildS1IsDeterministic(t *testing.T) {
	orders := []domain.Order{
		{ID: "ord-b", Status: domain.OrderStatusActive, FinalAmount: 200, CreatedAt: day(1)},
		{ID: "ord-a", Status: domain.OrderStatusActive, FinalAmount: 100, CreatedAt: day(1)},
	}

	first := BuildS1(orders)
	second := BuildS1(orders)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output on repeated derivation")
	}
	if first[0].OrderID != "ord-a" {
		t.Fatalf("expected id tiebreak, got %s first", first[0].OrderID)
	}
}

func TestBuildS2GroupsByProductAndDay(t *testing.T) {
	products := map[string]domain.Product{
		"SKU-A": {SKU: "SKU-A", Name: "Gạo", Unit: "túi"},
	}
	deltas := []domain.InventoryDelta{
		{ID: "d1", SKU: "SKU-A", Qty: 20, Reason: domain.DeltaReasonRestock, CreatedAt: day(1)},
		{ID: "d2", SKU: "SKU-A", Qty: -3, Reason: domain.DeltaReasonSale, CreatedAt: day(1).Add(4 * time.Hour)},
		{ID: "d3", SKU: "SKU-A", Qty: -2, Reason: domain.DeltaReasonSale, CreatedAt: day(2)},
	}

	rows := BuildS2(deltas, products)
	if len(rows) != 2 {
		t.Fatalf("expected 2 grouped rows, got %d", len(rows))
	}
	if rows[0].QtyIn != 20 || rows[0].QtyOut != 3 || rows[0].Balance != 17 {
		t.Fatalf("unexpected day-1 row: %+v", rows[0])
	}
	if rows[1].QtyOut != 2 || rows[1].Balance != 15 {
		t.Fatalf("unexpected day-2 row: %+v", rows[1])
	}
	if rows[0].MissingInbound || rows[1].MissingInbound {
		t.Fatalf("product has inbound deltas, rows must not be flagged")
	}
	if rows[0].ProductName != "Gạo" || rows[0].Unit != "túi" {
		t.Fatalf("expected product name/unit from catalog, got %+v", rows[0])
	}
}

func TestBuildS2FlagsMissingInbound(t *testing.T) {
	deltas := []domain.InventoryDelta{
		{ID: "d1", SKU: "SKU-B", Qty: -4, Reason: domain.DeltaReasonSale, CreatedAt: day(5)},
	}

	rows := BuildS2(deltas, nil)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if !rows[0].MissingInbound {
		t.Fatalf("expected missing-inbound flag on outflow with no inbound in period")
	}
	if rows[0].Balance != -4 {
		t.Fatalf("expected balance -4 from zero start, got %d", rows[0].Balance)
	}
}

func TestBuildS2CorrectionOutflowIsNotFlagged(t *testing.T) {
	deltas := []domain.InventoryDelta{
		{ID: "d1", SKU: "SKU-C", Qty: -2, Reason: domain.DeltaReasonAuditAdjustment, CreatedAt: day(7)},
	}

	rows := BuildS2(deltas, nil)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].QtyOut != 2 {
		t.Fatalf("expected outflow 2, got %d", rows[0].QtyOut)
	}
	if rows[0].MissingInbound {
		t.Fatalf("audit adjustment without sales must not be flagged as missing inbound")
	}
}

func TestBuildLedgerSplitsChannelsAndFoldsBalance(t *testing.T) {
	orders := []domain.Order{
		{ID: "ord-1", Status: domain.OrderStatusActive, PaymentMethod: domain.PaymentCash, FinalAmount: 30000, CreatedAt: day(1)},
		{ID: "ord-2", Status: domain.OrderStatusActive, PaymentMethod: domain.PaymentBankTransfer, FinalAmount: 70000, CreatedAt: day(1)},
		{ID: "ord-3", Status: domain.OrderStatusActive, PaymentMethod: domain.PaymentDebt, FinalAmount: 99000, CreatedAt: day(1)},
		{ID: "ord-4", Status: domain.OrderStatusVoided, PaymentMethod: domain.PaymentCash, FinalAmount: 12000, CreatedAt: day(2)},
	}
	expenses := []domain.ExpenseRecord{
		{ID: "exp-1", Description: "Tiền điện", Amount: 10000, Channel: domain.ChannelCash, Date: day(3)},
		{ID: "exp-2", Description: "Phí chuyển khoản", Amount: 5000, Channel: domain.ChannelBank, Date: day(3)},
	}

	cash := BuildLedger(orders, expenses, domain.ChannelCash)
	if len(cash) != 2 {
		t.Fatalf("expected 2 cash rows, got %d", len(cash))
	}
	if cash[0].Inflow != 30000 || cash[0].Balance != 30000 {
		t.Fatalf("unexpected first cash row: %+v", cash[0])
	}
	if cash[1].Outflow != 10000 || cash[1].Balance != 20000 {
		t.Fatalf("expected balance 20000 after expense, got %+v", cash[1])
	}

	bank := BuildLedger(orders, expenses, domain.ChannelBank)
	if len(bank) != 2 {
		t.Fatalf("expected 2 bank rows, got %d", len(bank))
	}
	if bank[1].Balance != 65000 {
		t.Fatalf("expected bank balance 65000, got %d", bank[1].Balance)
	}
}

func TestBuildTaxSummaryCapsPercentageNotRevenue(t *testing.T) {
	summary := BuildTaxSummary(2026, 3, 20_000_000, 150_000_000, 100_000_000)
	if summary.Percentage != 100 {
		t.Fatalf("expected display percentage capped at 100, got %v", summary.Percentage)
	}
	if summary.AccumulatedRevenue != 150_000_000 {
		t.Fatalf("raw accumulated revenue must stay uncapped, got %d", summary.AccumulatedRevenue)
	}
	if summary.VATAmount != 200_000 {
		t.Fatalf("expected VAT 200000, got %d", summary.VATAmount)
	}
	if summary.PITAmount != 100_000 {
		t.Fatalf("expected PIT 100000, got %d", summary.PITAmount)
	}
	if summary.TotalTax != 300_000 {
		t.Fatalf("expected total tax 300000, got %d", summary.TotalTax)
	}
}

func TestBuildTaxSummaryUnderThresholdOwesNothing(t *testing.T) {
	summary := BuildTaxSummary(2026, 2, 10_000_000, 30_000_000, 100_000_000)
	if summary.Percentage != 30 {
		t.Fatalf("expected 30 percent, got %v", summary.Percentage)
	}
	if summary.VATAmount != 0 || summary.PITAmount != 0 || summary.TotalTax != 0 {
		t.Fatalf("expected zero tax below threshold, got %+v", summary)
	}
}

func TestExportCSVStartsWithBOM(t *testing.T) {
	rep := &BookReport{
		Book: BookS1,
		Data: BookData{S1: []S1Row{
			{Date: day(1), OrderID: "ord-1", PaymentMethod: domain.PaymentCash, TotalAmount: 10000, NetRevenue: 10000},
		}},
	}

	payload, err := ExportCSV(rep)
	if err != nil {
		t.Fatalf("export csv: %v", err)
	}
	if !bytes.HasPrefix(payload, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatalf("expected UTF-8 BOM prefix")
	}
	if !bytes.Contains(payload, []byte("ord-1")) {
		t.Fatalf("expected order row in csv output")
	}
}

func TestExportXMLCarriesSummaryAndRows(t *testing.T) {
	rep := &BookReport{
		Book:   BookS1,
		Month:  3,
		Year:   2026,
		Header: Header{StoreName: "Tạp hóa Cô Ba", TaxCode: "0312345678"},
		Summary: &TaxSummary{
			PeriodRevenue:      10000,
			AccumulatedRevenue: 10000,
			ThresholdAmount:    100_000_000,
			Percentage:         0.01,
		},
		Data: BookData{S1: []S1Row{
			{Date: day(1), OrderID: "ord-1", PaymentMethod: domain.PaymentCash, NetRevenue: 10000},
		}},
	}

	payload, err := ExportXML(rep)
	if err != nil {
		t.Fatalf("export xml: %v", err)
	}
	for _, want := range []string{"<TaxReport>", "<TaxCode>0312345678</TaxCode>", "<Period>03/2026</Period>", "<Amount>10000</Amount>"} {
		if !bytes.Contains(payload, []byte(want)) {
			t.Fatalf("expected %q in xml output:\n%s", want, payload)
		}
	}
	summaryIdx := bytes.Index(payload, []byte("<Summary>"))
	rowsIdx := bytes.Index(payload, []byte("<Rows>"))
	if summaryIdx < 0 || rowsIdx < 0 || summaryIdx > rowsIdx {
		t.Fatalf("expected summary before rows in envelope")
	}
}
