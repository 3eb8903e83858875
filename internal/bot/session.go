package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/expense-share/internal/logger"
	"gitlab.com/yelinaung/expense-share/internal/screen"
)

// session is the expense screen of one chat.
type session struct {
	chatID int64
	ctrl   *screen.Controller
	tg     TelegramAPI
	ctx    context.Context

	mu sync.Mutex
	// Message ids of the live list and forms; zero when not shown.
	listMessageID   int
	createMessageID int
	editMessageID   int
}

func noticeIcon(kind screen.NoticeKind) string {
	switch kind {
	case screen.NoticeSuccess:
		return "✅"
	case screen.NoticeInvalid:
		return "⚠️"
	default:
		return "❌"
	}
}

// notify sends a controller notice to the chat.
func (s *session) notify(kind screen.NoticeKind, message string) {
	_, err := s.tg.SendMessage(s.ctx, &bot.SendMessageParams{
		ChatID:    s.chatID,
		Text:      fmt.Sprintf("%s %s", noticeIcon(kind), escapeHTML(message)),
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Error().Err(err).Str("chat_hash", logger.HashChatID(s.chatID)).Msg("Failed to send notice")
	}
}

// refreshList edits the last /list message with the latest rows.
func (s *session) refreshList(rows []screen.Row) {
	s.mu.Lock()
	messageID := s.listMessageID
	s.mu.Unlock()
	if messageID == 0 {
		return
	}

	text, keyboard := renderList(rows)
	params := &bot.EditMessageTextParams{
		ChatID:    s.chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: tgmodels.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	_, err := s.tg.EditMessageText(s.ctx, params)
	if err != nil {
		logger.Log.Debug().Err(err).Str("chat_hash", logger.HashChatID(s.chatID)).Msg("Failed to refresh expense list")
	}
}

func (s *session) setListMessage(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listMessageID = id
}

func (s *session) setCreateMessage(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createMessageID = id
}

func (s *session) createMessage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createMessageID
}

func (s *session) setEditMessage(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editMessageID = id
}

func (s *session) editMessage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editMessageID
}

// session returns the chat's screen, creating and mounting it on first use. Mounting
// subscribes to the store, so it runs without b.mu held.
func (b *Bot) session(ctx context.Context, tg TelegramAPI, chatID int64) (*session, error) {
	b.mu.Lock()
	existing, ok := b.sessions[chatID]
	b.mu.Unlock()
	if ok {
		return existing, nil
	}

	s := &session{
		chatID: chatID,
		tg:     tg,
		ctx:    context.WithoutCancel(ctx),
	}
	s.ctrl = screen.New(screen.Deps{
		Store:       b.store,
		Broadcaster: b.broadcaster,
		Notifier:    screen.NotifierFunc(s.notify),
		People:      b.cfg.People,
		Currency:    b.cfg.DisplayCurrency,
		OnRows:      s.refreshList,
	}, screen.Options{
		BroadcastOnCreate: b.cfg.BroadcastOnCreate,
		Ordered:           b.cfg.ListOrdered,
	})

	if err := s.ctrl.Mount(ctx); err != nil {
		return nil, fmt.Errorf("failed to mount expense screen: %w", err)
	}

	b.mu.Lock()
	if existing, ok := b.sessions[chatID]; ok {
		// Another handler mounted this chat first.
		b.mu.Unlock()
		s.ctrl.Unmount()
		return existing, nil
	}
	b.sessions[chatID] = s
	b.mu.Unlock()

	logger.Log.Debug().Str("chat_hash", logger.HashChatID(chatID)).Msg("Expense screen mounted")
	return s, nil
}

// dropSession unmounts and forgets the chat's screen. It reports whether one existed.
func (b *Bot) dropSession(chatID int64) bool {
	b.mu.Lock()
	s, ok := b.sessions[chatID]
	delete(b.sessions, chatID)
	b.mu.Unlock()

	if ok {
		s.ctrl.Unmount()
	}
	return ok
}
