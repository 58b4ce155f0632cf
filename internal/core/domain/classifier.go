package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// StatementKind is the leading keyword of an accepted statement.
type StatementKind string

const (
	StatementSelect  StatementKind = "SELECT"
	StatementWith    StatementKind = "WITH"
	StatementValues  StatementKind = "VALUES"
	StatementExplain StatementKind = "EXPLAIN"
	StatementShow    StatementKind = "SHOW"
)

// Wrappable reports whether the statement may appear as a subquery inside a
// row-capping outer SELECT. EXPLAIN and SHOW cannot be wrapped.
func (k StatementKind) Wrappable() bool {
	switch k {
	case StatementSelect, StatementWith, StatementValues:
		return true
	}
	return false
}

// RejectReason identifies why the classifier refused a statement.
type RejectReason string

const (
	ReasonEmpty              RejectReason = "empty"
	ReasonMultipleStatements RejectReason = "multiple-statements"
	ReasonDisallowedType     RejectReason = "disallowed-statement-type"
	ReasonForbiddenKeyword   RejectReason = "forbidden-keyword"
	ReasonBlockedFunction    RejectReason = "blocked-function"
)

// Statement is an admission-approved SQL statement. Text is the
// comment-stripped form with the trailing terminator removed, so it is safe
// to embed as a subquery (a trailing line comment can no longer swallow the
// closing parenthesis of a wrapping query).
type Statement struct {
	Text string
	Kind StatementKind
}

// Verdict is the classifier's decision for one submitted statement.
type Verdict struct {
	Accepted  bool
	Statement Statement
	Reason    RejectReason
	Message   string
}

// Err converts a rejection into the gate error taxonomy. Accepted verdicts
// return nil. An empty statement is an input defect, not a policy refusal.
func (v Verdict) Err() error {
	if v.Accepted {
		return nil
	}
	kind := KindQueryRejected
	if v.Reason == ReasonEmpty {
		kind = KindInvalidInput
	}
	return &Error{Kind: kind, Reason: v.Reason, Message: v.Message}
}

// forbiddenKeywords are data-mutating or administrative verbs that must not
// appear anywhere in a statement, including subqueries and CTE bodies.
// Matching is whole-word so identifiers like updated_at stay legal.
var forbiddenKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "truncate", "create",
	"replace", "grant", "revoke", "lock", "copy", "vacuum", "analyze",
	"analyse", "reindex", "cluster", "merge", "call", "do", "comment",
	"refresh", "set",
}

// blockedFunctions enable sleep-based denial of service, cross-database
// access, filesystem access, or server administration.
var blockedFunctions = []string{
	"pg_sleep", "pg_sleep_for", "pg_sleep_until",
	"dblink", "dblink_exec", "dblink_connect",
	"pg_read_file", "pg_read_binary_file", "pg_ls_dir", "pg_stat_file",
	"lo_import", "lo_export",
	"pg_terminate_backend", "pg_cancel_backend",
	"pg_reload_conf", "pg_rotate_logfile",
}

var (
	forbiddenKeywordRe = regexp.MustCompile(`(?i)\b(` + strings.Join(forbiddenKeywords, "|") + `)\b`)
	blockedFunctionRe  = regexp.MustCompile(`(?i)\b(` + strings.Join(blockedFunctions, "|") + `)\s*\(`)
)

// Classifier decides whether caller-supplied SQL is provably read-only.
// It is a pure lexical check over normalized text, deliberately not a SQL
// parser: anything it cannot positively identify is rejected. Stateless and
// safe for concurrent use.
type Classifier struct {
	allowExtended bool
	strictParse   bool
}

type ClassifierOption func(*Classifier)

// WithExtendedStatements admits SHOW, EXPLAIN, WITH and VALUES in addition
// to plain SELECT.
func WithExtendedStatements() ClassifierOption {
	return func(c *Classifier) { c.allowExtended = true }
}

// WithStrictParse additionally runs every lexically accepted statement
// through the PostgreSQL parser and refuses anything that is not a single
// SELECT-shaped parse tree. The parser can only narrow the accepted set,
// never widen it.
func WithStrictParse() ClassifierOption {
	return func(c *Classifier) { c.strictParse = true }
}

func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify runs the admission pipeline: strip comments, refuse
// multi-statement input, check the leading keyword against the allow-list,
// scan the whole text for forbidden keywords, and scan for blocked function
// calls. Deterministic and side-effect free.
func (c *Classifier) Classify(raw string) Verdict {
	stripped := strings.TrimSpace(stripComments(raw))

	// A single trailing terminator is tolerated; any other terminator means
	// more than one statement. This runs after comment stripping so a
	// semicolon hidden in a comment is not mistaken for a real one, and a
	// real one cannot hide behind a comment.
	stripped = strings.TrimSpace(strings.TrimSuffix(stripped, ";"))

	normalized := collapseWhitespace(stripped)
	if normalized == "" {
		return reject(ReasonEmpty, "statement is empty")
	}
	if strings.Contains(normalized, ";") {
		return reject(ReasonMultipleStatements, "multiple statements are not allowed")
	}

	leading, rest, _ := strings.Cut(normalized, " ")
	kind, ok := c.allowedKind(strings.ToUpper(leading))
	if !ok {
		return reject(ReasonDisallowedType, fmt.Sprintf("statement type %q is not allowed", strings.ToUpper(leading)))
	}

	// EXPLAIN is not exempt from the keyword scan: its head (options,
	// ANALYZE, VERBOSE) is stripped and the inner statement is scanned on
	// its own, so EXPLAIN DELETE stays out.
	scanTarget := normalized
	if kind == StatementExplain {
		scanTarget = explainBody(rest)
	}
	if m := forbiddenKeywordRe.FindString(scanTarget); m != "" {
		return reject(ReasonForbiddenKeyword, fmt.Sprintf("forbidden keyword %q", strings.ToUpper(m)))
	}

	if m := blockedFunctionRe.FindStringSubmatch(normalized); m != nil {
		return reject(ReasonBlockedFunction, fmt.Sprintf("blocked function %q", strings.ToLower(m[1])))
	}

	if c.strictParse {
		if err := parserCheck(stripped); err != nil {
			return reject(ReasonDisallowedType, err.Error())
		}
	}

	return Verdict{Accepted: true, Statement: Statement{Text: stripped, Kind: kind}}
}

func reject(reason RejectReason, message string) Verdict {
	return Verdict{Reason: reason, Message: message}
}

func (c *Classifier) allowedKind(leading string) (StatementKind, bool) {
	switch StatementKind(leading) {
	case StatementSelect:
		return StatementSelect, true
	case StatementWith, StatementValues, StatementExplain, StatementShow:
		if c.allowExtended {
			return StatementKind(leading), true
		}
	}
	return "", false
}

// explainBody returns the statement underneath an EXPLAIN head, skipping an
// optional parenthesized option list and the old-style ANALYZE/VERBOSE
// options. If the head cannot be understood the full text is returned so
// the keyword scan covers everything (fail closed).
func explainBody(s string) string {
	for {
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "(") {
			depth := 0
			closed := -1
			for i := 0; i < len(s); i++ {
				switch s[i] {
				case '(':
					depth++
				case ')':
					depth--
					if depth == 0 {
						closed = i
					}
				}
				if closed >= 0 {
					break
				}
			}
			if closed < 0 {
				return s
			}
			s = s[closed+1:]
			continue
		}
		tok, rest, found := strings.Cut(s, " ")
		switch strings.ToUpper(tok) {
		case "ANALYZE", "ANALYSE", "VERBOSE":
			if !found {
				return ""
			}
			s = rest
			continue
		}
		return s
	}
}

// stripComments removes line and block comments. Quoted strings and quoted
// identifiers are copied verbatim so comment markers inside them survive.
// Block comments nest, as in PostgreSQL.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			i = copyQuoted(&b, s, i)
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			depth := 1
			i += 2
			for i < len(s) && depth > 0 {
				switch {
				case s[i] == '/' && i+1 < len(s) && s[i+1] == '*':
					depth++
					i += 2
				case s[i] == '*' && i+1 < len(s) && s[i+1] == '/':
					depth--
					i += 2
				default:
					i++
				}
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// copyQuoted copies a quoted run starting at i (s[i] is the quote) and
// returns the index after its closing quote. Doubled quotes stay inside the
// run. Backslashes are not treated as escapes, matching PostgreSQL's
// standard_conforming_strings default.
func copyQuoted(b *strings.Builder, s string, i int) int {
	q := s[i]
	b.WriteByte(q)
	i++
	for i < len(s) {
		b.WriteByte(s[i])
		if s[i] == q {
			if i+1 < len(s) && s[i+1] == q {
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
