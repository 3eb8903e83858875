package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/expense-share/internal/logger"
	"gitlab.com/yelinaung/expense-share/internal/screen"
)

const msgFormClosed = "This form is closed."

// applyToDraft copies parsed fields into the create form.
func applyToDraft(s *session, parsed *ParsedExpense) {
	if parsed.Amount != "" {
		s.ctrl.SetDraftAmount(parsed.Amount)
	}
	if parsed.Name != "" {
		s.ctrl.SetDraftName(parsed.Name)
	}
}

// applyToEdit copies parsed fields into the edit form.
func applyToEdit(s *session, parsed *ParsedExpense) error {
	if parsed.Amount != "" {
		if err := s.ctrl.SetEditAmount(parsed.Amount); err != nil {
			return err
		}
	}
	if parsed.Name != "" {
		return s.ctrl.SetEditName(parsed.Name)
	}
	return nil
}

// sendCreateForm sends a fresh create form message.
func (b *Bot) sendCreateForm(ctx context.Context, tg TelegramAPI, s *session) {
	text, keyboard := renderCreateForm(s.ctrl.Snapshot().Draft, b.cfg.People, b.cfg.DisplayCurrency)
	msg, err := tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      s.chatID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: keyboard,
	})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to send create form")
		return
	}
	s.setCreateMessage(msg.ID)
}

// showCreateForm redraws the create form in place, or sends it when no message is shown.
func (b *Bot) showCreateForm(ctx context.Context, tg TelegramAPI, s *session) {
	messageID := s.createMessage()
	if messageID == 0 {
		b.sendCreateForm(ctx, tg, s)
		return
	}

	text, keyboard := renderCreateForm(s.ctrl.Snapshot().Draft, b.cfg.People, b.cfg.DisplayCurrency)
	_, err := tg.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      s.chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: keyboard,
	})
	if err != nil {
		logger.Log.Debug().Err(err).Msg("Failed to redraw create form")
	}
}

// showEditForm redraws the edit form in place, or sends it when no message is shown.
func (b *Bot) showEditForm(ctx context.Context, tg TelegramAPI, s *session) {
	sel := s.ctrl.Snapshot().Selection
	if sel == nil {
		return
	}
	text, keyboard := renderEditForm(*sel, b.cfg.People, b.cfg.DisplayCurrency)

	messageID := s.editMessage()
	if messageID == 0 {
		msg, err := tg.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      s.chatID,
			Text:        text,
			ParseMode:   models.ParseModeHTML,
			ReplyMarkup: keyboard,
		})
		if err != nil {
			logger.Log.Error().Err(err).Msg("Failed to send edit form")
			return
		}
		s.setEditMessage(msg.ID)
		return
	}

	_, err := tg.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      s.chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: keyboard,
	})
	if err != nil {
		logger.Log.Debug().Err(err).Msg("Failed to redraw edit form")
	}
}

// handleFreeText feeds "[amount] [name]" into the open form. With no form open,
// a message that starts with an amount opens a prefilled create form.
// Returns true if the message was consumed.
func (b *Bot) handleFreeText(ctx context.Context, tg TelegramAPI, update *models.Update) bool {
	text := strings.TrimSpace(update.Message.Text)
	if text == "" || strings.HasPrefix(text, "/") {
		return false
	}

	parsed := ParseExpenseInput(text)
	if parsed == nil {
		return false
	}

	s := b.sessionFor(ctx, tg, update.Message.Chat.ID)
	if s == nil {
		return false
	}

	state := s.ctrl.Snapshot()
	switch {
	case state.EditOpen:
		if err := applyToEdit(s, parsed); err != nil {
			return false
		}
		b.showEditForm(ctx, tg, s)
	case state.CreateOpen:
		applyToDraft(s, parsed)
		b.showCreateForm(ctx, tg, s)
	case parsed.Amount != "":
		s.ctrl.OpenCreate()
		applyToDraft(s, parsed)
		b.sendCreateForm(ctx, tg, s)
	default:
		return false
	}
	return true
}

// callbackTarget extracts the chat and message of a callback query.
func callbackTarget(update *models.Update) (chatID int64, messageID int, ok bool) {
	cq := update.CallbackQuery
	if cq == nil || cq.Message.Message == nil {
		return 0, 0, false
	}
	return cq.Message.Message.Chat.ID, cq.Message.Message.ID, true
}

func answer(ctx context.Context, tg TelegramAPI, update *models.Update, text string, alert bool) {
	_, _ = tg.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: update.CallbackQuery.ID,
		Text:            text,
		ShowAlert:       alert,
	})
}

// handleCreateCallback handles buttons on the create form.
func (b *Bot) handleCreateCallback(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleCreateCallbackCore(ctx, tgBot, update)
}

// handleCreateCallbackCore is the testable implementation of handleCreateCallback.
func (b *Bot) handleCreateCallbackCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	chatID, messageID, ok := callbackTarget(update)
	if !ok {
		return
	}
	s := b.sessionFor(ctx, tg, chatID)
	if s == nil {
		answer(ctx, tg, update, screen.MsgLoadFailed, true)
		return
	}

	state := s.ctrl.Snapshot()
	if !state.CreateOpen || s.createMessage() != messageID {
		answer(ctx, tg, update, msgFormClosed, false)
		closeForm(ctx, tg, chatID, messageID, msgFormClosed)
		return
	}

	data := update.CallbackQuery.Data
	switch {
	case strings.HasPrefix(data, cbCreatePayer):
		s.ctrl.SetDraftPayer(strings.TrimPrefix(data, cbCreatePayer))
		answer(ctx, tg, update, "", false)
		b.showCreateForm(ctx, tg, s)

	case data == cbCreateSubmit:
		answer(ctx, tg, update, "", false)
		if err := s.ctrl.SubmitCreate(ctx); err != nil {
			return
		}
		closeForm(ctx, tg, chatID, messageID, "🧾 Saved: <b>"+escapeHTML(strings.TrimSpace(state.Draft.Name))+"</b>")
		s.setCreateMessage(0)

	case data == cbCreateCancel:
		s.ctrl.CloseCreate()
		answer(ctx, tg, update, "Cancelled", false)
		closeForm(ctx, tg, chatID, messageID, "❌ Cancelled.")
		s.setCreateMessage(0)

	default:
		answer(ctx, tg, update, "", false)
	}
}

// handleListCallback handles the edit buttons on list rows.
func (b *Bot) handleListCallback(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleListCallbackCore(ctx, tgBot, update)
}

// handleListCallbackCore is the testable implementation of handleListCallback.
func (b *Bot) handleListCallbackCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	chatID, _, ok := callbackTarget(update)
	if !ok {
		return
	}
	id, ok := strings.CutPrefix(update.CallbackQuery.Data, cbListEdit)
	if !ok {
		answer(ctx, tg, update, "", false)
		return
	}

	s := b.sessionFor(ctx, tg, chatID)
	if s == nil {
		answer(ctx, tg, update, screen.MsgLoadFailed, true)
		return
	}

	if err := s.ctrl.SelectForEdit(id); err != nil {
		answer(ctx, tg, update, screen.MsgGone, true)
		return
	}
	answer(ctx, tg, update, "", false)

	// A new selection always gets its own message.
	closeForm(ctx, tg, chatID, s.editMessage(), msgFormClosed)
	s.setEditMessage(0)
	b.showEditForm(ctx, tg, s)
}

// handleEditCallback handles buttons on the edit form.
func (b *Bot) handleEditCallback(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleEditCallbackCore(ctx, tgBot, update)
}

// handleEditCallbackCore is the testable implementation of handleEditCallback.
func (b *Bot) handleEditCallbackCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	chatID, messageID, ok := callbackTarget(update)
	if !ok {
		return
	}
	data := update.CallbackQuery.Data
	if data == cbEditNoop {
		answer(ctx, tg, update, "", false)
		return
	}

	s := b.sessionFor(ctx, tg, chatID)
	if s == nil {
		answer(ctx, tg, update, screen.MsgLoadFailed, true)
		return
	}

	state := s.ctrl.Snapshot()
	if state.Selection == nil || s.editMessage() != messageID {
		answer(ctx, tg, update, msgFormClosed, false)
		closeForm(ctx, tg, chatID, messageID, msgFormClosed)
		return
	}

	var err error
	switch {
	case strings.HasPrefix(data, cbEditPayer):
		payer := strings.TrimPrefix(data, cbEditPayer)
		if payer == state.Selection.Form.Payer {
			payer = ""
		}
		err = s.ctrl.SetEditPayer(payer)

	case strings.HasPrefix(data, cbEditPaid):
		err = s.ctrl.ToggleEditSettled(strings.TrimPrefix(data, cbEditPaid))

	case data == cbEditSave:
		answer(ctx, tg, update, "", false)
		if err := s.ctrl.SubmitEdit(ctx); err != nil {
			return
		}
		closeForm(ctx, tg, chatID, messageID, "💾 Saved: <b>"+escapeHTML(strings.TrimSpace(state.Selection.Form.Name))+"</b>")
		s.setEditMessage(0)
		return

	case data == cbEditCancel:
		s.ctrl.CloseEdit()
		answer(ctx, tg, update, "Cancelled", false)
		closeForm(ctx, tg, chatID, messageID, "❌ Edit cancelled.")
		s.setEditMessage(0)
		return
	}

	if errors.Is(err, screen.ErrNoSelection) {
		answer(ctx, tg, update, msgFormClosed, false)
		return
	}
	answer(ctx, tg, update, "", false)
	b.showEditForm(ctx, tg, s)
}
