package bot

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	tgmodels "github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-share/internal/models"
	"gitlab.com/yelinaung/expense-share/internal/screen"
)

// maxListRows caps the rows rendered into one list message.
const maxListRows = 50

// maxMessageLength is Telegram's limit on message text. Rendered lists stay within
// it counting markup, with room left for the overflow footer.
const (
	maxMessageLength  = 4096
	listFooterReserve = 32
)

// Callback data prefixes.
const (
	cbCreatePayer  = "new:payer:"
	cbCreateSubmit = "new:submit"
	cbCreateCancel = "new:cancel"
	cbListEdit     = "exp:edit:"
	cbEditPayer    = "edit:payer:"
	cbEditPaid     = "edit:paid:"
	cbEditSave     = "edit:save"
	cbEditCancel   = "edit:cancel"
	cbEditNoop     = "edit:noop"
)

const formHint = "Send <code>amount name</code> to fill in the form, e.g. <code>150000 Lunch</code>."

// renderList renders the expense rows with one edit button per row.
func renderList(rows []screen.Row) (string, *tgmodels.InlineKeyboardMarkup) {
	if len(rows) == 0 {
		return "📋 <b>Expenses</b>\n\nNo expenses yet. Use /new to add one.", nil
	}

	var sb strings.Builder
	sb.WriteString("📋 <b>Expenses</b>\n\n")
	length := utf8.RuneCountInString(sb.String())

	buttons := make([][]tgmodels.InlineKeyboardButton, 0, min(len(rows), maxListRows))
	for i, row := range rows {
		if i == maxListRows {
			break
		}
		line := renderListRow(i+1, row)
		n := utf8.RuneCountInString(line)
		if length+n > maxMessageLength-listFooterReserve {
			break
		}
		sb.WriteString(line)
		length += n

		buttons = append(buttons, []tgmodels.InlineKeyboardButton{
			{Text: fmt.Sprintf("✏️ %d. %s", i+1, row.Name), CallbackData: cbListEdit + row.ID},
		})
	}

	if hidden := len(rows) - len(buttons); hidden > 0 {
		fmt.Fprintf(&sb, "\n…and %d more", hidden)
	}

	return sb.String(), &tgmodels.InlineKeyboardMarkup{InlineKeyboard: buttons}
}

func renderListRow(n int, row screen.Row) string {
	payer := row.Payer
	if payer == "" {
		payer = "nobody"
	}
	line := fmt.Sprintf("%d. <b>%s</b> %s, paid by %s", n, escapeHTML(row.Name), row.Amount, escapeHTML(payer))
	if len(row.SettledBy) > 0 {
		line += fmt.Sprintf(" (settled: %s)", escapeHTML(strings.Join(row.SettledBy, ", ")))
	}
	return line + "\n"
}

// formatDraftAmount formats the amount text when it parses, and echoes it otherwise.
func formatDraftAmount(amount, currency string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return escapeHTML(amount)
	}
	return models.FormatAmount(d, currency)
}

func renderDraft(sb *strings.Builder, d screen.Draft, people models.Roster, currency string) {
	name := d.Name
	if strings.TrimSpace(name) == "" {
		name = "—"
	}
	payer := people.Label(d.Payer)
	if payer == "" {
		payer = "—"
	}
	settled := "—"
	if len(d.SettledBy) > 0 {
		settled = strings.Join(people.Labels(d.SettledBy), ", ")
	}

	fmt.Fprintf(sb, "Name: %s\n", escapeHTML(name))
	fmt.Fprintf(sb, "Amount: %s\n", formatDraftAmount(d.Amount, currency))
	fmt.Fprintf(sb, "Payer: %s\n", escapeHTML(payer))
	fmt.Fprintf(sb, "Settled by: %s\n", escapeHTML(settled))
}

func personButtons(people models.Roster, prefix string, selected func(id string) bool) [][]tgmodels.InlineKeyboardButton {
	var rows [][]tgmodels.InlineKeyboardButton
	var row []tgmodels.InlineKeyboardButton
	for _, p := range people {
		text := p.Label
		if selected(p.ID) {
			text = "✓ " + text
		}
		row = append(row, tgmodels.InlineKeyboardButton{Text: text, CallbackData: prefix + p.ID})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// renderCreateForm renders the create form with payer buttons.
func renderCreateForm(d screen.Draft, people models.Roster, currency string) (string, *tgmodels.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString("🆕 <b>New expense</b>\n\n")
	renderDraft(&sb, d, people, currency)
	sb.WriteString("\nPick who paid. " + formHint)

	keyboard := personButtons(people, cbCreatePayer, func(id string) bool { return id == d.Payer })
	keyboard = append(keyboard, []tgmodels.InlineKeyboardButton{
		{Text: "✅ Save", CallbackData: cbCreateSubmit},
		{Text: "❌ Cancel", CallbackData: cbCreateCancel},
	})
	return sb.String(), &tgmodels.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}

// renderEditForm renders the edit form with payer and settled-by buttons.
func renderEditForm(sel screen.Selection, people models.Roster, currency string) (string, *tgmodels.InlineKeyboardMarkup) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✏️ <b>Edit expense</b> <i>%s</i>\n\n", escapeHTML(sel.Expense.Name))
	renderDraft(&sb, sel.Form, people, currency)
	sb.WriteString("\nTap a payer or toggle who has settled. " + formHint)

	keyboard := [][]tgmodels.InlineKeyboardButton{{{Text: "💳 Payer", CallbackData: cbEditNoop}}}
	keyboard = append(keyboard, personButtons(people, cbEditPayer, func(id string) bool { return id == sel.Form.Payer })...)
	keyboard = append(keyboard, []tgmodels.InlineKeyboardButton{{Text: "🤝 Settled by", CallbackData: cbEditNoop}})
	keyboard = append(keyboard, personButtons(people, cbEditPaid, func(id string) bool {
		return slices.Contains(sel.Form.SettledBy, id)
	})...)
	keyboard = append(keyboard, []tgmodels.InlineKeyboardButton{
		{Text: "💾 Save", CallbackData: cbEditSave},
		{Text: "❌ Cancel", CallbackData: cbEditCancel},
	})
	return sb.String(), &tgmodels.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}
