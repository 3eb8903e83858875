// Package bot provides the Telegram front-end: one expense screen per chat.
package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/expense-share/internal/config"
	"gitlab.com/yelinaung/expense-share/internal/gateway"
	"gitlab.com/yelinaung/expense-share/internal/logger"
	"gitlab.com/yelinaung/expense-share/internal/screen"
)

// Bot wraps the Telegram bot with application dependencies.
type Bot struct {
	bot         *bot.Bot
	cfg         *config.Config
	store       gateway.ExpenseStore
	broadcaster screen.Broadcaster

	mu       sync.Mutex
	sessions map[int64]*session
}

// New creates a new Bot instance. broadcaster may be nil.
func New(cfg *config.Config, store gateway.ExpenseStore, broadcaster screen.Broadcaster) (*Bot, error) {
	b := newBot(cfg, store, broadcaster)

	opts := []bot.Option{
		bot.WithMiddlewares(b.loggingMiddleware),
		bot.WithDefaultHandler(b.defaultHandler),
	}

	telegramBot, err := bot.New(cfg.TelegramBotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b.bot = telegramBot
	b.registerHandlers()

	return b, nil
}

func newBot(cfg *config.Config, store gateway.ExpenseStore, broadcaster screen.Broadcaster) *Bot {
	return &Bot{
		cfg:         cfg,
		store:       store,
		broadcaster: broadcaster,
		sessions:    make(map[int64]*session),
	}
}

// Start begins polling for updates and blocks until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	logger.Log.Info().Msg("Bot started polling")
	b.bot.Start(ctx)
}

// Stop unmounts every chat screen.
func (b *Bot) Stop() {
	b.mu.Lock()
	sessions := make([]*session, 0, len(b.sessions))
	for id, s := range b.sessions {
		sessions = append(sessions, s)
		delete(b.sessions, id)
	}
	b.mu.Unlock()

	for _, s := range sessions {
		s.ctrl.Unmount()
	}
	logger.Log.Info().Int("sessions", len(sessions)).Msg("Bot sessions closed")
}

// registerHandlers sets up command and callback handlers.
func (b *Bot) registerHandlers() {
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, b.handleStart)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, b.handleHelp)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/new", bot.MatchTypePrefix, b.handleNew)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/list", bot.MatchTypePrefix, b.handleList)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancel", bot.MatchTypePrefix, b.handleCancel)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/chart", bot.MatchTypePrefix, b.handleChart)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/export", bot.MatchTypePrefix, b.handleExport)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/stop", bot.MatchTypePrefix, b.handleStop)

	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "new:", bot.MatchTypePrefix, b.handleCreateCallback)
	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "exp:", bot.MatchTypePrefix, b.handleListCallback)
	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "edit:", bot.MatchTypePrefix, b.handleEditCallback)
}

// loggingMiddleware records the user's input or action before processing.
func (b *Bot) loggingMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
		logUserAction(update)
		next(ctx, tgBot, update)
	}
}

// logUserAction logs the user's input/action with hashed identifiers.
func logUserAction(update *tgmodels.Update) {
	switch {
	case update.Message != nil:
		msg := update.Message
		event := logger.Log.Info().Str("chat_hash", logger.HashChatID(msg.Chat.ID))
		if msg.From != nil {
			event = event.Str("user_hash", logger.HashUserID(msg.From.ID))
		}
		if msg.Text != "" {
			event = event.Str("text", logger.SanitizeText(msg.Text))
		}
		event.Msg("User input")

	case update.CallbackQuery != nil:
		logger.Log.Info().
			Str("user_hash", logger.HashUserID(update.CallbackQuery.From.ID)).
			Str("data", update.CallbackQuery.Data).
			Msg("Callback query")
	}
}

// defaultHandler handles unrecognized messages, feeding free text into an open form.
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
	b.defaultHandlerCore(ctx, tgBot, update)
}

func (b *Bot) defaultHandlerCore(ctx context.Context, tg TelegramAPI, update *tgmodels.Update) {
	if update.Message == nil {
		return
	}

	if b.handleFreeText(ctx, tg, update) {
		return
	}

	_, err := tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    update.Message.Chat.ID,
		Text:      "I didn't understand that. Use /help to see available commands, or send an expense like <code>150000 Lunch</code>",
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to send default response")
	}
}
