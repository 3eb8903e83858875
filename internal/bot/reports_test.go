package bot

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/expense-share/internal/models"
)

func reportExpenses() []models.Expense {
	at := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)
	return []models.Expense{
		{ID: "a", Name: "Lunch", Payer: "Nam", Amount: decimal.NewFromInt(150000), SettledBy: []string{"Tân", "Định"}, DateCreated: at},
		{ID: "b", Name: "Coffee", Payer: "Tân", Amount: decimal.NewFromInt(45000), SettledBy: []string{}, DateCreated: at},
		{ID: "c", Name: "Taxi, late", Payer: "Nam", Amount: decimal.NewFromInt(50000), DateCreated: at},
		{ID: "d", Name: "Snacks", Payer: "", Amount: decimal.NewFromInt(20000), DateCreated: at},
		{ID: "e", Name: "Old", Payer: "Khoa", Amount: decimal.NewFromInt(10000), DateCreated: at},
	}
}

func TestAggregateByPayer(t *testing.T) {
	totals := aggregateByPayer(reportExpenses(), models.DefaultRoster)

	require.Len(t, totals, 3)
	require.Equal(t, "Nam", totals[0].Label)
	require.True(t, decimal.NewFromInt(200000).Equal(totals[0].Total))
	require.Equal(t, "Tân", totals[1].Label)
	require.True(t, decimal.NewFromInt(45000).Equal(totals[1].Total))
	require.Equal(t, unassignedLabel, totals[2].Label)
	require.True(t, decimal.NewFromInt(30000).Equal(totals[2].Total))
}

func TestGeneratePayerChart(t *testing.T) {
	t.Run("renders png", func(t *testing.T) {
		buf, err := GeneratePayerChart(reportExpenses(), models.DefaultRoster, "VND")
		require.NoError(t, err)
		require.Greater(t, len(buf), 4)
		require.Equal(t, []byte{0x89, 0x50, 0x4E, 0x47}, buf[:4])
	})

	t.Run("no expenses", func(t *testing.T) {
		_, err := GeneratePayerChart(nil, models.DefaultRoster, "VND")
		require.ErrorIs(t, err, errNothingToChart)
	})
}

func TestGenerateExpensesCSV(t *testing.T) {
	data, err := GenerateExpensesCSV(reportExpenses()[:3], models.DefaultRoster, "VND")
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, []string{"ID", "Date", "Name", "Payer", "Amount", "Currency", "Settled By"}, records[0])
	require.Equal(t, []string{"a", "2026-03-14 12:30:00", "Lunch", "Nam", "150000", "VND", "Tân; Định"}, records[1])
	require.Equal(t, "Taxi, late", records[3][2])
	require.Empty(t, records[3][6])
}

func TestReportFilenames(t *testing.T) {
	now := time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC)
	require.Equal(t, "payers_2026-01-31.png", generateChartFilename(now))
	require.Equal(t, "expenses_2026-01-31.csv", generateReportFilename(now))
}
