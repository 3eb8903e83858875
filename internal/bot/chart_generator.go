package bot

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-analyze/charts"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-share/internal/models"
)

const unassignedLabel = "Unassigned"

var errNothingToChart = errors.New("no expenses to chart")

// PayerTotal is the amount one person has paid.
type PayerTotal struct {
	Label string
	Total decimal.Decimal
}

// aggregateByPayer sums amounts per payer in roster order. Expenses without a
// payer, or with one no longer on the roster, are grouped last under "Unassigned".
// People who paid nothing are omitted.
func aggregateByPayer(expenses []models.Expense, people models.Roster) []PayerTotal {
	totals := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		key := e.Payer
		if !people.Contains(key) {
			key = ""
		}
		totals[key] = totals[key].Add(e.Amount)
	}

	out := make([]PayerTotal, 0, len(totals))
	for _, p := range people {
		if total, ok := totals[p.ID]; ok && total.IsPositive() {
			out = append(out, PayerTotal{Label: p.Label, Total: total})
		}
	}
	if total, ok := totals[""]; ok && total.IsPositive() {
		out = append(out, PayerTotal{Label: unassignedLabel, Total: total})
	}
	return out
}

// GeneratePayerChart creates a pie chart of the amount paid per person.
// Returns PNG image as bytes.
func GeneratePayerChart(expenses []models.Expense, people models.Roster, currency string) ([]byte, error) {
	totals := aggregateByPayer(expenses, people)
	if len(totals) == 0 {
		return nil, errNothingToChart
	}

	values := make([]float64, 0, len(totals))
	names := make([]string, 0, len(totals))
	for _, t := range totals {
		values = append(values, t.Total.InexactFloat64())
		names = append(names, fmt.Sprintf("%s (%s)", t.Label, models.FormatAmount(t.Total, currency)))
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{
			Text: "Paid per person",
		}),
		charts.LegendLabelsOptionFunc(names),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	return buf, nil
}

// generateChartFilename creates filename like "payers_2026-01-31.png".
func generateChartFilename(now time.Time) string {
	return fmt.Sprintf("payers_%s.png", now.Format("2006-01-02"))
}
