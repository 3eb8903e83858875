package bot

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/expense-share/internal/logger"
)

// formatGreeting returns a greeting suffix with the user's name.
func formatGreeting(firstName string) string {
	if firstName == "" {
		return ""
	}
	return ", " + escapeHTML(firstName)
}

// reply sends an HTML message to the chat of update.
func reply(ctx context.Context, tg TelegramAPI, chatID int64, text string) *models.Message {
	msg, err := tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Error().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to send message")
		return nil
	}
	return msg
}

// sessionFor returns the chat's screen, telling the user when it cannot be loaded.
func (b *Bot) sessionFor(ctx context.Context, tg TelegramAPI, chatID int64) *session {
	s, err := b.session(ctx, tg, chatID)
	if err != nil {
		logger.Log.Error().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to open expense screen")
		return nil
	}
	return s
}

// handleStart handles the /start command.
func (b *Bot) handleStart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleStartCore(ctx, tgBot, update)
}

// handleStartCore is the testable implementation of handleStart.
func (b *Bot) handleStartCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}

	firstName := ""
	if update.Message.From != nil {
		firstName = update.Message.From.FirstName
	}

	text := fmt.Sprintf(`👋 Welcome%s!

I keep track of what the group spends and who has settled up.

<b>Quick Start:</b>
• Send an expense like: <code>150000 Lunch</code>
• Or open a blank form with /new
• See everything with /list and tap ✏️ to edit

Use /help to see all available commands.`,
		formatGreeting(firstName))

	reply(ctx, tg, update.Message.Chat.ID, text)
}

// handleHelp handles the /help command.
func (b *Bot) handleHelp(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleHelpCore(ctx, tgBot, update)
}

// handleHelpCore is the testable implementation of handleHelp.
func (b *Bot) handleHelpCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}

	text := `📖 <b>Available Commands</b>

<b>Expenses:</b>
/new - Open the new expense form
/list - Show all expenses
/cancel - Close any open form

<b>Reports:</b>
/chart - Pie chart of amounts paid per person
/export - Download all expenses as CSV

<b>Session:</b>
/stop - Stop live list updates for this chat

<b>Forms:</b>
While a form is open, send <code>amount name</code> (e.g. <code>150000 Lunch</code>) to fill it in. Amounts may use thousands separators like <code>150,000</code>.`

	reply(ctx, tg, update.Message.Chat.ID, text)
}

// handleNew handles the /new command. Arguments prefill the form.
func (b *Bot) handleNew(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleNewCore(ctx, tgBot, update)
}

// handleNewCore is the testable implementation of handleNew.
func (b *Bot) handleNewCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	s := b.sessionFor(ctx, tg, chatID)
	if s == nil {
		return
	}

	s.ctrl.OpenCreate()
	if parsed := ParseExpenseInput(extractCommandArgs(update.Message.Text, "/new")); parsed != nil {
		applyToDraft(s, parsed)
	}
	b.sendCreateForm(ctx, tg, s)
}

// handleList handles the /list command.
func (b *Bot) handleList(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleListCore(ctx, tgBot, update)
}

// handleListCore is the testable implementation of handleList. The sent message
// is kept up to date as the expense set changes.
func (b *Bot) handleListCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	s := b.sessionFor(ctx, tg, chatID)
	if s == nil {
		return
	}

	text, keyboard := renderList(s.ctrl.Rows())
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	msg, err := tg.SendMessage(ctx, params)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to send expense list")
		return
	}
	s.setListMessage(msg.ID)
}

// handleCancel handles the /cancel command.
func (b *Bot) handleCancel(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleCancelCore(ctx, tgBot, update)
}

// handleCancelCore is the testable implementation of handleCancel.
func (b *Bot) handleCancelCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	s := b.sessionFor(ctx, tg, chatID)
	if s == nil {
		return
	}

	state := s.ctrl.Snapshot()
	if !state.CreateOpen && !state.EditOpen {
		reply(ctx, tg, chatID, "Nothing to cancel.")
		return
	}

	s.ctrl.CloseCreate()
	s.ctrl.CloseEdit()
	closeForm(ctx, tg, chatID, s.createMessage(), "❌ Cancelled.")
	closeForm(ctx, tg, chatID, s.editMessage(), "❌ Edit cancelled.")
	s.setCreateMessage(0)
	s.setEditMessage(0)

	reply(ctx, tg, chatID, "❌ Cancelled.")
}

// handleStop handles the /stop command.
func (b *Bot) handleStop(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleStopCore(ctx, tgBot, update)
}

// handleStopCore is the testable implementation of handleStop.
func (b *Bot) handleStopCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	if !b.dropSession(chatID) {
		reply(ctx, tg, chatID, "No active session.")
		return
	}
	reply(ctx, tg, chatID, "👋 Stopped. Send /list to start again.")
}

// closeForm replaces a form message with text and removes its buttons.
func closeForm(ctx context.Context, tg TelegramAPI, chatID int64, messageID int, text string) {
	if messageID == 0 {
		return
	}
	_, err := tg.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Debug().Err(err).Msg("Failed to close form message")
	}
}
