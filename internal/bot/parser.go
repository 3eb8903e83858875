package bot

import (
	"regexp"
	"strings"
)

// ParsedExpense is form input parsed from a chat message.
type ParsedExpense struct {
	// Amount is the amount text with thousands separators removed, or "" when absent.
	Amount string
	Name   string
}

// amountRegex matches amounts like "5", "5.50", "150000" and "150,000".
var amountRegex = regexp.MustCompile(`^(\d{1,3}(?:,\d{3})+|\d+)(\.\d{1,2})?(?:\s|$)`)

// ParseExpenseInput parses "[amount] [name]". Text without a leading amount is a name.
// Returns nil for blank input.
func ParseExpenseInput(input string) *ParsedExpense {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	loc := amountRegex.FindStringSubmatchIndex(input)
	if loc == nil {
		return &ParsedExpense{Name: input}
	}

	amount := strings.ReplaceAll(input[loc[2]:loc[3]], ",", "")
	if loc[4] >= 0 {
		amount += input[loc[4]:loc[5]]
	}

	return &ParsedExpense{
		Amount: amount,
		Name:   strings.TrimSpace(input[loc[1]:]),
	}
}

// extractCommandArgs strips the /command prefix (and optional @botname suffix)
// from a message and returns the remaining trimmed arguments.
func extractCommandArgs(text, command string) string {
	args := strings.TrimSpace(strings.TrimPrefix(text, command))
	if strings.HasPrefix(args, "@") {
		if spaceIdx := strings.Index(args, " "); spaceIdx != -1 {
			args = strings.TrimSpace(args[spaceIdx:])
		} else {
			args = ""
		}
	}
	return args
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
