package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/expense-share/internal/bot/mocks"
	"gitlab.com/yelinaung/expense-share/internal/config"
	"gitlab.com/yelinaung/expense-share/internal/gateway"
	"gitlab.com/yelinaung/expense-share/internal/gateway/memory"
	appmodels "gitlab.com/yelinaung/expense-share/internal/models"
)

const testChatID = int64(12345)

type broadcastLog struct {
	mu       sync.Mutex
	expenses []appmodels.Expense
}

func (l *broadcastLog) Broadcast(_ context.Context, exp appmodels.Expense) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expenses = append(l.expenses, exp)
}

func (l *broadcastLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.expenses)
}

type testBot struct {
	bot        *Bot
	store      *memory.Store
	broadcasts *broadcastLog
	tg         *mocks.MockBot
}

// setupTestBot builds a Bot on the in-memory store. Sessions are stopped on cleanup.
func setupTestBot(t *testing.T) *testBot {
	t.Helper()

	cfg := &config.Config{
		People:            appmodels.DefaultRoster,
		DisplayCurrency:   "VND",
		BroadcastOnCreate: true,
	}
	tb := &testBot{
		store:      memory.New(),
		broadcasts: &broadcastLog{},
		tg:         mocks.NewMockBot(),
	}
	tb.bot = newBot(cfg, tb.store, tb.broadcasts)
	t.Cleanup(tb.bot.Stop)
	return tb
}

func (tb *testBot) command(text string) *models.Update {
	return mocks.CommandUpdate(testChatID, 1, text)
}

func (tb *testBot) callback(messageID int, data string) *models.Update {
	return mocks.CallbackQueryUpdate(testChatID, 1, messageID, data)
}

func (tb *testBot) text(text string) *models.Update {
	return mocks.MessageUpdate(testChatID, 1, text)
}

// gatedStore holds the first Subscribe call until open is called.
type gatedStore struct {
	*memory.Store
	entered  chan struct{}
	release  chan struct{}
	calls    atomic.Int32
	openOnce sync.Once
}

func newGatedStore(store *memory.Store) *gatedStore {
	return &gatedStore{
		Store:   store,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedStore) Subscribe(ctx context.Context, onChange gateway.ChangeFunc) (func(), error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	return g.Store.Subscribe(ctx, onChange)
}

func (g *gatedStore) open() {
	g.openOnce.Do(func() { close(g.release) })
}
