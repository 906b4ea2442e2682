// Package report derives the seven statutory books (S1..S7) and the annual
// revenue threshold figures from order, inventory, expense, tax-payment and
// payroll history. Everything here is a pure projection: same inputs, same
// output, no mutation.
package report

import "time"

const (
	BookS1 = "s1"
	BookS2 = "s2"
	BookS3 = "s3"
	BookS4 = "s4"
	BookS5 = "s5"
	BookS6 = "s6"
	BookS7 = "s7"
)

// S1Row is one revenue line per non-void order. ReturnAmount is always zero
// under full-void semantics: a voided order disappears from the book entirely
// instead of producing a partial-return adjustment.
type S1Row struct {
	Date          time.Time `json:"date"`
	OrderID       string    `json:"order_id"`
	PaymentMethod string    `json:"payment_method"`
	TotalAmount   int64     `json:"total_amount"`
	Discount      int64     `json:"discount"`
	ReturnAmount  int64     `json:"return_amount"`
	NetRevenue    int64     `json:"net_revenue"`
}

// S2Row aggregates inventory movement per (product, day). Balance folds from
// zero at period start; MissingInbound marks an outflow day for a product with
// no inbound delta anywhere in the period.
type S2Row struct {
	Date           time.Time `json:"date"`
	SKU            string    `json:"sku"`
	ProductName    string    `json:"product_name"`
	Unit           string    `json:"unit"`
	QtyIn          int       `json:"qty_in"`
	QtyOut         int       `json:"qty_out"`
	Balance        int       `json:"balance"`
	MissingInbound bool      `json:"missing_inbound,omitempty"`
}

type S3Row struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Amount      int64     `json:"amount"`
	Channel     string    `json:"channel"`
}

type S4Row struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Period      string    `json:"period"`
	Amount      int64     `json:"amount"`
}

type S5Row struct {
	Date         time.Time `json:"date"`
	EmployeeName string    `json:"employee_name"`
	BaseSalary   int64     `json:"base_salary"`
	Bonus        int64     `json:"bonus"`
	Total        int64     `json:"total"`
}

// LedgerRow is one line of the cash (S6) or bank (S7) book. Balance folds
// left to right from zero at period start; no prior-period carry-forward.
type LedgerRow struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	RefID       string    `json:"ref_id"`
	Inflow      int64     `json:"inflow"`
	Outflow     int64     `json:"outflow"`
	Balance     int64     `json:"balance"`
}

// BookData holds the rows of exactly one book; the slice matching the
// requested book id is populated and the rest stay nil.
type BookData struct {
	S1 []S1Row     `json:"s1,omitempty"`
	S2 []S2Row     `json:"s2,omitempty"`
	S3 []S3Row     `json:"s3,omitempty"`
	S4 []S4Row     `json:"s4,omitempty"`
	S5 []S5Row     `json:"s5,omitempty"`
	S6 []LedgerRow `json:"s6,omitempty"`
	S7 []LedgerRow `json:"s7,omitempty"`
}

type Header struct {
	StoreName string `json:"store_name"`
	OwnerName string `json:"owner_name,omitempty"`
	TaxCode   string `json:"tax_code,omitempty"`
	Address   string `json:"address,omitempty"`
}

type TaxSummary struct {
	Year               int     `json:"year"`
	Month              int     `json:"month"`
	PeriodRevenue      int64   `json:"period_revenue"`
	AccumulatedRevenue int64   `json:"accumulated_revenue"`
	ThresholdAmount    int64   `json:"threshold_amount"`
	Percentage         float64 `json:"percentage"`
	VATAmount          int64   `json:"vat_amount"`
	PITAmount          int64   `json:"pit_amount"`
	TotalTax           int64   `json:"total_tax"`
}

// BookReport is the full response for one (store, book, period) request.
// Incomplete is set when the store profile is missing fields the report
// headers need (e.g. tax code); the rows are still produced.
type BookReport struct {
	StoreID    string      `json:"store_id"`
	Book       string      `json:"book,omitempty"`
	Month      int         `json:"month"`
	Year       int         `json:"year"`
	Header     Header      `json:"header"`
	Data       BookData    `json:"book_data"`
	Summary    *TaxSummary `json:"summary,omitempty"`
	Incomplete bool        `json:"incomplete"`
	Warnings   []string    `json:"warnings,omitempty"`
}

func ValidBook(book string) bool {
	switch book {
	case BookS1, BookS2, BookS3, BookS4, BookS5, BookS6, BookS7:
		return true
	}
	return false
}

// PeriodBounds returns the half-open UTC interval [from, to) for a calendar
// month.
func PeriodBounds(year int, month int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}
