package bot

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"gitlab.com/yelinaung/expense-share/internal/models"
)

// GenerateExpensesCSV generates a CSV file from a list of expenses. Payer and
// settled-by columns use roster labels.
func GenerateExpensesCSV(expenses []models.Expense, people models.Roster, currency string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"ID", "Date", "Name", "Payer", "Amount", "Currency", "Settled By"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range expenses {
		row := []string{
			expenses[i].ID,
			expenses[i].DateCreated.Format("2006-01-02 15:04:05"),
			expenses[i].Name,
			people.Label(expenses[i].Payer),
			expenses[i].Amount.String(),
			currency,
			strings.Join(people.Labels(expenses[i].SettledBy), "; "),
		}

		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// generateReportFilename creates a filename like "expenses_2026-01-31.csv".
func generateReportFilename(now time.Time) string {
	return fmt.Sprintf("expenses_%s.csv", now.Format("2006-01-02"))
}
