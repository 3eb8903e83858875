package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-share/internal/gateway"
	"gitlab.com/yelinaung/expense-share/internal/logger"
	"gitlab.com/yelinaung/expense-share/internal/models"
	"gitlab.com/yelinaung/expense-share/internal/push"
	"gitlab.com/yelinaung/expense-share/internal/screen"
)

const msgStoreUnavailable = "The expense store is unavailable. Please try again later."

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type personResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
}

type expenseResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Payer       string          `json:"payer"`
	PayerLabel  string          `json:"payerLabel"`
	Amount      decimal.Decimal `json:"amount"`
	AmountText  string          `json:"amountText"`
	SettledBy   []string        `json:"settledBy"`
	DateCreated time.Time       `json:"dateCreated"`
}

// amountText accepts an amount as a JSON number or string.
type amountText string

func (a *amountText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a number or string: %w", err)
	}
	*a = amountText(n.String())
	return nil
}

// expenseRequest is the body of create and update calls. Absent fields are nil.
type expenseRequest struct {
	Name      *string     `json:"name"`
	Payer     *string     `json:"payer"`
	Amount    *amountText `json:"amount"`
	SettledBy *[]string   `json:"settledBy"`
}

// overlay copies the fields present in r onto d.
func (r expenseRequest) overlay(d screen.Draft) screen.Draft {
	if r.Name != nil {
		d.Name = *r.Name
	}
	if r.Payer != nil {
		d.Payer = *r.Payer
	}
	if r.Amount != nil {
		d.Amount = string(*r.Amount)
	}
	if r.SettledBy != nil {
		d.SettledBy = slices.Clone(*r.SettledBy)
	}
	return d
}

func (s *Server) toResponse(e models.Expense) expenseResponse {
	settled := e.SettledBy
	if settled == nil {
		settled = []string{}
	}
	return expenseResponse{
		ID:          e.ID,
		Name:        e.Name,
		Payer:       e.Payer,
		PayerLabel:  s.cfg.People.Label(e.Payer),
		Amount:      e.Amount,
		AmountText:  models.FormatAmount(e.Amount, s.cfg.DisplayCurrency),
		SettledBy:   settled,
		DateCreated: e.DateCreated,
	}
}

func (s *Server) toResponses(expenses []models.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, s.toResponse(e))
	}
	return out
}

// writeError maps validation and store errors to responses.
func writeError(c echo.Context, err error) error {
	var validationErr *screen.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: validationErr.Message, Field: validationErr.Field})
	case errors.Is(err, gateway.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: screen.MsgGone})
	default:
		logger.Log.Error().Err(err).Str("path", c.Path()).Msg("Store request failed")
		return c.JSON(http.StatusBadGateway, errorResponse{Error: msgStoreUnavailable})
	}
}

func (s *Server) listPeople(c echo.Context) error {
	out := make([]personResponse, 0, len(s.cfg.People))
	for _, p := range s.cfg.People {
		out = append(out, personResponse{ID: p.ID, Label: p.Label, Color: p.Color})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) listExpenses(c echo.Context) error {
	expenses, err := s.store.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s.toResponses(expenses))
}

func (s *Server) createExpense(c echo.Context) error {
	var req expenseRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body."})
	}

	valid, err := screen.ValidateDraft(req.overlay(screen.Draft{Amount: "0"}), s.cfg.People, true)
	if err != nil {
		return writeError(c, err)
	}

	ctx := c.Request().Context()
	exp, err := s.store.Create(ctx, valid)
	if err != nil {
		return writeError(c, err)
	}

	logger.Log.Info().Str("expense_id", exp.ID).Str("amount", exp.Amount.String()).Msg("Expense created")
	if s.cfg.BroadcastOnCreate && s.broadcaster != nil {
		s.broadcaster.Broadcast(ctx, exp)
	}
	return c.JSON(http.StatusCreated, s.toResponse(exp))
}

// updateExpense merges the body onto the stored expense, validates the result as
// an edit and writes all four fields.
func (s *Server) updateExpense(c echo.Context) error {
	id := c.Param("id")

	var req expenseRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body."})
	}

	ctx := c.Request().Context()
	expenses, err := s.store.List(ctx)
	if err != nil {
		return writeError(c, err)
	}
	idx := slices.IndexFunc(expenses, func(e models.Expense) bool { return e.ID == id })
	if idx < 0 {
		return writeError(c, gateway.ErrNotFound)
	}
	current := expenses[idx]

	form := screen.Draft{
		Name:      current.Name,
		Payer:     current.Payer,
		Amount:    current.Amount.String(),
		SettledBy: slices.Clone(current.SettledBy),
	}
	valid, err := screen.ValidateDraft(req.overlay(form), s.cfg.People, false)
	if err != nil {
		return writeError(c, err)
	}

	patch := models.ExpensePatch{
		Name:      &valid.Name,
		Payer:     &valid.Payer,
		Amount:    &valid.Amount,
		SettledBy: &valid.SettledBy,
	}
	if err := s.store.Update(ctx, id, patch); err != nil {
		return writeError(c, err)
	}

	patch.Apply(&current)
	logger.Log.Info().Str("expense_id", id).Msg("Expense updated")
	return c.JSON(http.StatusOK, s.toResponse(current))
}

func (s *Server) deleteExpense(c echo.Context) error {
	id := c.Param("id")
	if err := s.store.Delete(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	logger.Log.Info().Str("expense_id", id).Msg("Expense deleted")
	return c.NoContent(http.StatusNoContent)
}

type pushTokenResponse struct {
	Token   string              `json:"token"`
	Channel *push.ChannelConfig `json:"channel,omitempty"`
}

// registerPushToken runs registration against what the device reports. The
// configured project id wins over the one the device sends.
func (s *Server) registerPushToken(c echo.Context) error {
	var device push.RemoteDevice
	if err := json.NewDecoder(c.Request().Body).Decode(&device); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body."})
	}

	projectID := s.cfg.ExpoProjectID
	if projectID == "" {
		projectID = device.ProjectID
	}

	token, err := s.registrar.Register(c.Request().Context(), &device, projectID)
	if err != nil {
		return c.JSON(registrationStatus(err), errorResponse{Error: push.UserMessage(err)})
	}

	logger.Log.Info().Str("token_hash", logger.HashToken(token)).Str("os", device.OS()).Msg("Push token registered")
	return c.JSON(http.StatusCreated, pushTokenResponse{Token: token, Channel: device.Channel})
}

func registrationStatus(err error) int {
	var storeErr *gateway.StoreError
	switch {
	case errors.Is(err, push.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, push.ErrNoPhysicalDevice), errors.Is(err, push.ErrProjectMisconfigured):
		return http.StatusUnprocessableEntity
	case errors.As(err, &storeErr):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

// streamExpenses sends one "expenses" event per subscription delivery until the
// client disconnects.
func (s *Server) streamExpenses(c echo.Context) error {
	ctx := c.Request().Context()

	// Holds at most the latest undelivered snapshot; a slow client skips
	// intermediate states.
	updates := make(chan []models.Expense, 1)
	onChange := func(expenses []models.Expense) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- expenses:
		default:
		}
	}

	unsubscribe, err := s.store.Subscribe(ctx, onChange)
	if err != nil {
		return writeError(c, err)
	}
	defer unsubscribe()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := res.Write([]byte(": keep-alive\n\n")); err != nil {
				return nil
			}
			res.Flush()
		case expenses := <-updates:
			models.SortByDateCreatedDesc(expenses)
			data, err := json.Marshal(s.toResponses(expenses))
			if err != nil {
				return err
			}
			seq++
			if _, err := fmt.Fprintf(res, "id: %d\nevent: expenses\ndata: %s\n\n", seq, data); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
