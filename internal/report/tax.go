package report

import "github.com/shopspring/decimal"

// Statutory rates for household businesses selling goods: 1% VAT and 0.5%
// personal income tax on turnover, owed only once annual revenue crosses the
// exemption threshold.
var (
	vatRate = decimal.NewFromFloat(0.01)
	pitRate = decimal.NewFromFloat(0.005)
)

// BuildTaxSummary computes the period figures against the annual threshold.
// Percentage is capped at 100 for display; AccumulatedRevenue stays uncapped
// because crossing the ceiling changes tax liability even past 100%.
func BuildTaxSummary(year int, month int, periodRevenue int64, accumulatedRevenue int64, thresholdAmount int64) TaxSummary {
	summary := TaxSummary{
		Year:               year,
		Month:              month,
		PeriodRevenue:      periodRevenue,
		AccumulatedRevenue: accumulatedRevenue,
		ThresholdAmount:    thresholdAmount,
	}

	if thresholdAmount > 0 {
		pct := decimal.NewFromInt(accumulatedRevenue).
			Div(decimal.NewFromInt(thresholdAmount)).
			Mul(decimal.NewFromInt(100))
		capped := decimal.NewFromInt(100)
		if pct.GreaterThan(capped) {
			pct = capped
		}
		summary.Percentage, _ = pct.Round(2).Float64()
	}

	if accumulatedRevenue > thresholdAmount {
		revenue := decimal.NewFromInt(periodRevenue)
		summary.VATAmount = revenue.Mul(vatRate).Round(0).IntPart()
		summary.PITAmount = revenue.Mul(pitRate).Round(0).IntPart()
		summary.TotalTax = summary.VATAmount + summary.PITAmount
	}

	return summary
}
