//go:build ignore
// +build ignore

package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-share/internal/bot"
	"gitlab.com/yelinaung/expense-share/internal/models"
)

func main() {
	expenses := []models.Expense{
		{Name: "Lunch", Payer: "Nam", Amount: decimal.NewFromInt(150000)},
		{Name: "Coffee", Payer: "Tân", Amount: decimal.NewFromInt(45000)},
		{Name: "Taxi", Payer: "Tuyển", Amount: decimal.NewFromInt(80000)},
		{Name: "Groceries", Payer: "Định", Amount: decimal.NewFromInt(320000)},
		{Name: "Snacks", Amount: decimal.NewFromInt(25000)},
	}

	chartData, err := bot.GeneratePayerChart(expenses, models.DefaultRoster, models.DefaultCurrency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile("graph.png", chartData, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ Created graph.png - Example paid-per-person chart")
}
