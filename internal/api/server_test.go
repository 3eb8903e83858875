package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/expense-share/internal/config"
	"gitlab.com/yelinaung/expense-share/internal/gateway/memory"
	"gitlab.com/yelinaung/expense-share/internal/models"
)

type broadcastLog struct {
	mu       sync.Mutex
	expenses []models.Expense
}

func (l *broadcastLog) Broadcast(_ context.Context, exp models.Expense) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expenses = append(l.expenses, exp)
}

func (l *broadcastLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.expenses)
}

type fixture struct {
	server     *Server
	store      *memory.Store
	broadcasts *broadcastLog
	cfg        *config.Config
}

func newFixture() *fixture {
	cfg := &config.Config{
		HTTPAddr:          ":0",
		People:            models.DefaultRoster,
		DisplayCurrency:   "VND",
		BroadcastOnCreate: true,
	}
	f := &fixture{
		store:      memory.New(),
		broadcasts: &broadcastLog{},
		cfg:        cfg,
	}
	f.server = New(cfg, f.store, f.broadcasts)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seed(t *testing.T, name, payer string, amount int64) models.Expense {
	t.Helper()
	exp, err := f.store.Create(context.Background(), models.ExpenseDraft{
		Name:      name,
		Payer:     payer,
		Amount:    decimal.NewFromInt(amount),
		SettledBy: []string{},
	})
	require.NoError(t, err)
	return exp
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndPeople(t *testing.T) {
	t.Parallel()
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/people", "")
	require.Equal(t, http.StatusOK, rec.Code)
	people := decode[[]personResponse](t, rec)
	require.Len(t, people, 4)
	require.Equal(t, "Nam", people[0].ID)
}

func TestCreateExpense(t *testing.T) {
	t.Parallel()

	t.Run("creates and broadcasts", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		rec := f.do(t, http.MethodPost, "/expenses", `{"name":" Lunch ","payer":"Nam","amount":150000}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		got := decode[expenseResponse](t, rec)
		require.NotEmpty(t, got.ID)
		require.Equal(t, "Lunch", got.Name)
		require.Equal(t, "Nam", got.PayerLabel)
		require.Equal(t, "150,000 ₫", got.AmountText)
		require.Equal(t, []string{}, got.SettledBy)
		require.Equal(t, 1, f.broadcasts.count())

		listed, err := f.store.List(context.Background())
		require.NoError(t, err)
		require.Len(t, listed, 1)
	})

	t.Run("amount may be a string", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		rec := f.do(t, http.MethodPost, "/expenses", `{"name":"Tea","payer":"Tân","amount":"12.5","settledBy":["Định","Nam","Định"]}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		got := decode[expenseResponse](t, rec)
		require.True(t, decimal.RequireFromString("12.5").Equal(got.Amount))
		require.Equal(t, []string{"Nam", "Định"}, got.SettledBy)
	})

	t.Run("broadcast can be disabled", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		f.cfg.BroadcastOnCreate = false

		rec := f.do(t, http.MethodPost, "/expenses", `{"name":"Tea","payer":"Tân","amount":5}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		require.Equal(t, 0, f.broadcasts.count())
	})

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "empty name", body: `{"name":"  ","payer":"Nam","amount":5}`, field: "name"},
		{name: "missing payer", body: `{"name":"Tea","amount":5}`, field: "payer"},
		{name: "unknown payer", body: `{"name":"Tea","payer":"Khoa","amount":5}`, field: "payer"},
		{name: "zero amount", body: `{"name":"Tea","payer":"Nam","amount":0}`, field: "amount"},
		{name: "missing amount", body: `{"name":"Tea","payer":"Nam"}`, field: "amount"},
		{name: "text amount", body: `{"name":"Tea","payer":"Nam","amount":"abc"}`, field: "amount"},
		{name: "sub-cent amount", body: `{"name":"Tea","payer":"Nam","amount":0.001}`, field: "amount"},
	}
	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture()

			rec := f.do(t, http.MethodPost, "/expenses", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, tt.field, decode[errorResponse](t, rec).Field)
			require.Equal(t, 0, f.store.Calls(memory.OpCreate))
			require.Equal(t, 0, f.broadcasts.count())
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		rec := f.do(t, http.MethodPost, "/expenses", `{"name":`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		f.store.FailNext(memory.OpCreate, errors.New("unavailable"))

		rec := f.do(t, http.MethodPost, "/expenses", `{"name":"Tea","payer":"Nam","amount":5}`)
		require.Equal(t, http.StatusBadGateway, rec.Code)
		require.Equal(t, msgStoreUnavailable, decode[errorResponse](t, rec).Error)
		require.Equal(t, 0, f.broadcasts.count())
	})
}

func TestListExpenses(t *testing.T) {
	t.Parallel()
	f := newFixture()
	first := f.seed(t, "first", "Nam", 1)
	time.Sleep(2 * time.Millisecond)
	second := f.seed(t, "second", "Tân", 2)

	rec := f.do(t, http.MethodGet, "/expenses", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]expenseResponse](t, rec)
	require.Len(t, got, 2)
	require.Equal(t, second.ID, got[0].ID)
	require.Equal(t, first.ID, got[1].ID)

	f.store.FailNext(memory.OpList, errors.New("unavailable"))
	rec = f.do(t, http.MethodGet, "/expenses", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestUpdateExpense(t *testing.T) {
	t.Parallel()

	t.Run("merges fields", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		exp := f.seed(t, "Taxi", "Nam", 50000)

		rec := f.do(t, http.MethodPatch, "/expenses/"+exp.ID, `{"amount":65000,"settledBy":["Tân"]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		got := decode[expenseResponse](t, rec)
		require.Equal(t, "Taxi", got.Name)
		require.Equal(t, "Nam", got.Payer)
		require.Equal(t, "65,000 ₫", got.AmountText)
		require.Equal(t, []string{"Tân"}, got.SettledBy)

		listed, err := f.store.List(context.Background())
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(65000).Equal(listed[0].Amount))
	})

	t.Run("payer may be cleared", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		exp := f.seed(t, "Taxi", "Nam", 50000)

		rec := f.do(t, http.MethodPatch, "/expenses/"+exp.ID, `{"payer":""}`)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, decode[expenseResponse](t, rec).Payer)
	})

	t.Run("zero amount is rejected", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		exp := f.seed(t, "Taxi", "Nam", 50000)

		rec := f.do(t, http.MethodPatch, "/expenses/"+exp.ID, `{"amount":"0"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "amount", decode[errorResponse](t, rec).Field)
		require.Equal(t, 0, f.store.Calls(memory.OpUpdate))
	})

	t.Run("missing expense", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		rec := f.do(t, http.MethodPatch, "/expenses/missing", `{"name":"x"}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDeleteExpense(t *testing.T) {
	t.Parallel()
	f := newFixture()
	exp := f.seed(t, "Taxi", "Nam", 50000)

	rec := f.do(t, http.MethodDelete, "/expenses/"+exp.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	listed, err := f.store.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, listed)

	rec = f.do(t, http.MethodDelete, "/expenses/"+exp.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRegisterPushToken(t *testing.T) {
	t.Parallel()

	t.Run("saves token once", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		f.cfg.ExpoProjectID = "proj-1"

		body := `{"platform":"android","isDevice":true,"permission":"granted","token":"ExponentPushToken[abc]","projectId":"proj-1"}`
		rec := f.do(t, http.MethodPost, "/push-tokens", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		got := decode[pushTokenResponse](t, rec)
		require.Equal(t, "ExponentPushToken[abc]", got.Token)
		require.NotNil(t, got.Channel)
		require.Equal(t, "default", got.Channel.ID)

		rec = f.do(t, http.MethodPost, "/push-tokens", body)
		require.Equal(t, http.StatusCreated, rec.Code)

		tokens, err := f.store.ListTokens(context.Background())
		require.NoError(t, err)
		require.Equal(t, []string{"ExponentPushToken[abc]"}, tokens)
	})

	t.Run("falls back to device project id", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		rec := f.do(t, http.MethodPost, "/push-tokens",
			`{"platform":"ios","isDevice":true,"permission":"undetermined","promptResult":"granted","token":"ExponentPushToken[ios]","projectId":"proj-2"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Nil(t, decode[pushTokenResponse](t, rec).Channel)
	})

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{
			name:    "permission denied",
			body:    `{"platform":"ios","isDevice":true,"permission":"denied","promptResult":"denied","token":"t","projectId":"p"}`,
			status:  http.StatusForbidden,
			message: "Permission not granted to get push token for push notification!",
		},
		{
			name:    "simulator",
			body:    `{"platform":"ios","isDevice":false,"permission":"granted","token":"t","projectId":"p"}`,
			status:  http.StatusUnprocessableEntity,
			message: "Must use physical device for push notifications",
		},
		{
			name:    "no project id",
			body:    `{"platform":"ios","isDevice":true,"permission":"granted","token":"t"}`,
			status:  http.StatusUnprocessableEntity,
			message: "Project ID not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture()

			rec := f.do(t, http.MethodPost, "/push-tokens", tt.body)
			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.message, decode[errorResponse](t, rec).Error)
			require.Equal(t, 0, f.store.Calls(memory.OpSaveToken))
		})
	}

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		f.store.FailNext(memory.OpSaveToken, errors.New("unavailable"))

		rec := f.do(t, http.MethodPost, "/push-tokens",
			`{"platform":"ios","isDevice":true,"permission":"granted","token":"t","projectId":"p"}`)
		require.Equal(t, http.StatusBadGateway, rec.Code)
		require.Equal(t, "Could not save the push token. Please try again later.", decode[errorResponse](t, rec).Error)
	})
}

// readEvent reads one SSE event and returns its data line.
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && data != "":
			return data
		}
	}
}

func TestStreamExpenses(t *testing.T) {
	t.Parallel()
	f := newFixture()
	existing := f.seed(t, "existing", "Nam", 1)

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/expenses/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	var first []expenseResponse
	require.NoError(t, json.Unmarshal([]byte(readEvent(t, reader)), &first))
	require.Len(t, first, 1)
	require.Equal(t, existing.ID, first[0].ID)

	added := f.seed(t, "added", "Tân", 2)

	var next []expenseResponse
	require.NoError(t, json.Unmarshal([]byte(readEvent(t, reader)), &next))
	require.Len(t, next, 2)
	require.Equal(t, added.ID, next[0].ID)

	cancel()
	require.Eventually(t, func() bool { return f.store.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamSubscribeFailure(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.store.FailNext(memory.OpSubscribe, errors.New("unavailable"))

	rec := f.do(t, http.MethodGet, "/expenses/stream", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
}
