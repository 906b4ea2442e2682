package report

import (
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"
)

const dateLayout = "02/01/2006"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ExportCSV renders the populated book as CSV prefixed with a UTF-8 BOM so
// spreadsheet tools pick up the Vietnamese product names correctly.
func ExportCSV(rep *BookReport) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)

	switch rep.Book {
	case BookS1:
		if err := w.Write([]string{"Ngày", "Số đơn", "Hình thức", "Doanh thu", "Chiết khấu", "Hàng trả lại", "Doanh thu thuần"}); err != nil {
			return nil, err
		}
		for _, row := range rep.Data.S1 {
			if err := w.Write([]string{
				row.Date.Format(dateLayout), row.OrderID, row.PaymentMethod,
				formatVND(row.TotalAmount), formatVND(row.Discount), formatVND(row.ReturnAmount), formatVND(row.NetRevenue),
			}); err != nil {
				return nil, err
			}
		}
	case BookS2:
		if err := w.Write([]string{"Ngày", "Mã hàng", "Tên hàng", "ĐVT", "Nhập", "Xuất", "Tồn", "Thiếu chứng từ nhập"}); err != nil {
			return nil, err
		}
		for _, row := range rep.Data.S2 {
			warning := ""
			if row.MissingInbound {
				warning = "x"
			}
			if err := w.Write([]string{
				row.Date.Format(dateLayout), row.SKU, row.ProductName, row.Unit,
				strconv.Itoa(row.QtyIn), strconv.Itoa(row.QtyOut), strconv.Itoa(row.Balance), warning,
			}); err != nil {
				return nil, err
			}
		}
	case BookS3:
		if err := w.Write([]string{"Ngày", "Diễn giải", "Khoản mục", "Số tiền", "Kênh"}); err != nil {
			return nil, err
		}
		for _, row := range rep.Data.S3 {
			if err := w.Write([]string{
				row.Date.Format(dateLayout), row.Description, row.Category, formatVND(row.Amount), row.Channel,
			}); err != nil {
				return nil, err
			}
		}
	case BookS4:
		if err := w.Write([]string{"Ngày", "Diễn giải", "Kỳ thuế", "Số tiền"}); err != nil {
			return nil, err
		}
		for _, row := range rep.Data.S4 {
			if err := w.Write([]string{
				row.Date.Format(dateLayout), row.Description, row.Period, formatVND(row.Amount),
			}); err != nil {
				return nil, err
			}
		}
	case BookS5:
		if err := w.Write([]string{"Ngày", "Nhân viên", "Lương cơ bản", "Thưởng", "Tổng"}); err != nil {
			return nil, err
		}
		for _, row := range rep.Data.S5 {
			if err := w.Write([]string{
				row.Date.Format(dateLayout), row.EmployeeName, formatVND(row.BaseSalary), formatVND(row.Bonus), formatVND(row.Total),
			}); err != nil {
				return nil, err
			}
		}
	case BookS6, BookS7:
		rows := rep.Data.S6
		if rep.Book == BookS7 {
			rows = rep.Data.S7
		}
		if err := w.Write([]string{"Ngày", "Diễn giải", "Chứng từ", "Thu", "Chi", "Tồn"}); err != nil {
			return nil, err
		}
		for _, row := range rows {
			if err := w.Write([]string{
				row.Date.Format(dateLayout), row.Description, row.RefID,
				formatVND(row.Inflow), formatVND(row.Outflow), formatVND(row.Balance),
			}); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unknown book %q", rep.Book)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// The XML element order below is consumed by the tax authority's import
// tooling; do not reorder fields.
type xmlEnvelope struct {
	XMLName   xml.Name   `xml:"TaxReport"`
	StoreName string     `xml:"StoreName"`
	OwnerName string     `xml:"OwnerName,omitempty"`
	TaxCode   string     `xml:"TaxCode"`
	Address   string     `xml:"Address,omitempty"`
	Period    string     `xml:"Period"`
	Book      string     `xml:"Book"`
	Summary   xmlSummary `xml:"Summary"`
	Rows      []xmlRow   `xml:"Rows>Row"`
}

type xmlSummary struct {
	PeriodRevenue      int64   `xml:"PeriodRevenue"`
	AccumulatedRevenue int64   `xml:"AccumulatedRevenue"`
	ThresholdAmount    int64   `xml:"ThresholdAmount"`
	Percentage         float64 `xml:"Percentage"`
	VATAmount          int64   `xml:"VATAmount"`
	PITAmount          int64   `xml:"PITAmount"`
	TotalTax           int64   `xml:"TotalTax"`
}

type xmlRow struct {
	Date        string `xml:"Date"`
	Ref         string `xml:"Ref,omitempty"`
	Description string `xml:"Description,omitempty"`
	Amount      int64  `xml:"Amount"`
}

// ExportXML renders the tax-authority envelope: store identity, the period
// summary and one flattened amount row per book line.
func ExportXML(rep *BookReport) ([]byte, error) {
	env := xmlEnvelope{
		StoreName: rep.Header.StoreName,
		OwnerName: rep.Header.OwnerName,
		TaxCode:   rep.Header.TaxCode,
		Address:   rep.Header.Address,
		Period:    fmt.Sprintf("%02d/%04d", rep.Month, rep.Year),
		Book:      rep.Book,
	}
	if rep.Summary != nil {
		env.Summary = xmlSummary{
			PeriodRevenue:      rep.Summary.PeriodRevenue,
			AccumulatedRevenue: rep.Summary.AccumulatedRevenue,
			ThresholdAmount:    rep.Summary.ThresholdAmount,
			Percentage:         rep.Summary.Percentage,
			VATAmount:          rep.Summary.VATAmount,
			PITAmount:          rep.Summary.PITAmount,
			TotalTax:           rep.Summary.TotalTax,
		}
	}
	env.Rows = flattenRows(rep)

	payload, err := xml.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(xml.Header)+len(payload)+1)
	out = append(out, []byte(xml.Header)...)
	out = append(out, payload...)
	out = append(out, '\n')
	return out, nil
}

func flattenRows(rep *BookReport) []xmlRow {
	rows := make([]xmlRow, 0, 64)
	appendRow := func(date time.Time, ref string, description string, amount int64) {
		rows = append(rows, xmlRow{
			Date:        date.Format(dateLayout),
			Ref:         ref,
			Description: description,
			Amount:      amount,
		})
	}

	switch rep.Book {
	case BookS1:
		for _, row := range rep.Data.S1 {
			appendRow(row.Date, row.OrderID, row.PaymentMethod, row.NetRevenue)
		}
	case BookS2:
		for _, row := range rep.Data.S2 {
			appendRow(row.Date, row.SKU, row.ProductName, int64(row.QtyIn-row.QtyOut))
		}
	case BookS3:
		for _, row := range rep.Data.S3 {
			appendRow(row.Date, "", row.Description, row.Amount)
		}
	case BookS4:
		for _, row := range rep.Data.S4 {
			appendRow(row.Date, row.Period, row.Description, row.Amount)
		}
	case BookS5:
		for _, row := range rep.Data.S5 {
			appendRow(row.Date, "", row.EmployeeName, row.Total)
		}
	case BookS6:
		for _, row := range rep.Data.S6 {
			appendRow(row.Date, row.RefID, row.Description, row.Inflow-row.Outflow)
		}
	case BookS7:
		for _, row := range rep.Data.S7 {
			appendRow(row.Date, row.RefID, row.Description, row.Inflow-row.Outflow)
		}
	}
	return rows
}

func formatVND(amount int64) string {
	return strconv.FormatInt(amount, 10)
}
