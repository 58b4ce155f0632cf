package domain

import "strings"

// QuoteIdentifier double-quotes a SQL identifier so caller-supplied schema
// or table names cannot break out of the statement text.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
