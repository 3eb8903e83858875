package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-share/internal/logger"
	appmodels "gitlab.com/yelinaung/expense-share/internal/models"
)

func sumAmounts(expenses []appmodels.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// handleChart handles the /chart command.
func (b *Bot) handleChart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleChartCore(ctx, tgBot, update)
}

// handleChartCore is the testable implementation of handleChart.
func (b *Bot) handleChartCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	expenses, err := b.store.List(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list expenses for chart")
		reply(ctx, tg, chatID, "❌ Failed to load expenses. Please try again.")
		return
	}

	chartData, err := GeneratePayerChart(expenses, b.cfg.People, b.cfg.DisplayCurrency)
	if err != nil {
		if errors.Is(err, errNothingToChart) {
			reply(ctx, tg, chatID, "📭 No expenses to chart yet.")
			return
		}
		logger.Log.Error().Err(err).Msg("Failed to generate chart")
		reply(ctx, tg, chatID, "❌ Failed to generate chart. Please try again.")
		return
	}

	caption := fmt.Sprintf("📊 <b>Paid per person</b>\n\nTotal: %s\nCount: %d expenses",
		appmodels.FormatAmount(sumAmounts(expenses), b.cfg.DisplayCurrency), len(expenses))

	_, err = tg.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:    chatID,
		Document:  &models.InputFileUpload{Filename: generateChartFilename(time.Now()), Data: bytes.NewReader(chartData)},
		Caption:   caption,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to send chart document")
		reply(ctx, tg, chatID, "❌ Failed to send chart. Please try again.")
	}
}

// handleExport handles the /export command.
func (b *Bot) handleExport(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleExportCore(ctx, tgBot, update)
}

// handleExportCore is the testable implementation of handleExport.
func (b *Bot) handleExportCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	expenses, err := b.store.List(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list expenses for export")
		reply(ctx, tg, chatID, "❌ Failed to load expenses. Please try again.")
		return
	}
	if len(expenses) == 0 {
		reply(ctx, tg, chatID, "📭 No expenses to export yet.")
		return
	}

	csvData, err := GenerateExpensesCSV(expenses, b.cfg.People, b.cfg.DisplayCurrency)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to generate CSV")
		reply(ctx, tg, chatID, "❌ Failed to generate report. Please try again.")
		return
	}

	caption := fmt.Sprintf("📄 <b>All expenses</b>\n\nTotal: %s\nCount: %d",
		appmodels.FormatAmount(sumAmounts(expenses), b.cfg.DisplayCurrency), len(expenses))

	_, err = tg.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:    chatID,
		Document:  &models.InputFileUpload{Filename: generateReportFilename(time.Now()), Data: bytes.NewReader(csvData)},
		Caption:   caption,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to send CSV document")
		reply(ctx, tg, chatID, "❌ Failed to send report. Please try again.")
	}
}
