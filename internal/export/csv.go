// Package export serializes movement records into injection-safe CSV.
//
// The output format is fixed: a header row, every data field wrapped in
// double quotes, embedded quotes doubled, and user-controlled fields
// prefixed with a literal single quote when they start with a character
// a spreadsheet would evaluate as a formula. encoding/csv cannot produce
// this byte-exact shape (it quotes conditionally and always terminates
// records with a newline), so the escaping is done by hand.
package export

import (
	"strconv"
	"strings"

	"github.com/finwise/movements-api-go/internal/domain"
)

const header = "concept,amount,date,type,username"

// Record pairs a movement with its resolved owner. Owner may be nil
// when the owning user no longer exists.
type Record struct {
	Movement domain.Movement
	Owner    *domain.User
}

// MovementsCSV renders the records as CSV text. The same input always
// yields byte-identical output; there is no trailing newline.
func MovementsCSV(records []Record) string {
	rows := make([]string, 0, len(records)+1)
	rows = append(rows, header)

	for _, r := range records {
		m := r.Movement
		rows = append(rows, strings.Join([]string{
			field(sanitizeFormula(m.Concept)),
			field(formatAmount(m.Amount)),
			field(m.Date.UTC().Format("2006-01-02T15:04:05.000Z")),
			field(string(m.Type)),
			field(sanitizeFormula(ownerDisplayName(r.Owner))),
		}, ","))
	}

	return strings.Join(rows, "\n")
}

// sanitizeFormula prefixes a literal single quote when the value would
// otherwise be interpreted as a spreadsheet formula. Applied only to
// user-controlled fields; amount/date/type are system-generated.
func sanitizeFormula(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '|', '%':
		return "'" + s
	}
	return s
}

// field quotes unconditionally, doubling embedded quotes. Must run
// after sanitizeFormula so the prefix ends up inside the quotes.
func field(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// formatAmount renders the shortest decimal representation, locale
// independent: 1000 stays "1000", 12.5 stays "12.5".
func formatAmount(a float64) string {
	return strconv.FormatFloat(a, 'f', -1, 64)
}

// ownerDisplayName resolves the username column: name, then email, then
// a fixed placeholder.
func ownerDisplayName(u *domain.User) string {
	if u == nil {
		return "Unknown User"
	}
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	if u.Email != "" {
		return u.Email
	}
	return "Unknown User"
}
