package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_PlainSelect(t *testing.T) {
	t.Parallel()
	c := NewClassifier()

	v := c.Classify("SELECT id, name FROM users WHERE active")
	require.True(t, v.Accepted)
	assert.Equal(t, StatementSelect, v.Statement.Kind)
	assert.Equal(t, "SELECT id, name FROM users WHERE active", v.Statement.Text)
	assert.NoError(t, v.Err())
}

func TestClassify_Rejections(t *testing.T) {
	t.Parallel()
	c := NewClassifier(WithExtendedStatements())

	tests := []struct {
		name   string
		sql    string
		reason RejectReason
	}{
		{"empty", "", ReasonEmpty},
		{"only whitespace", "   \n\t ", ReasonEmpty},
		{"only comment", "-- nothing here", ReasonEmpty},
		{"only block comment", "/* nothing */", ReasonEmpty},
		{"two statements", "SELECT 1; SELECT 2", ReasonMultipleStatements},
		{"two statements with trailing terminator", "SELECT 1; SELECT 2;", ReasonMultipleStatements},
		{"empty second statement still counts", "SELECT 1;;", ReasonMultipleStatements},
		// Leading mutation verbs never reach the keyword scan; the
		// allow-list refuses them first.
		{"insert", "INSERT INTO users VALUES (1)", ReasonDisallowedType},
		{"update", "UPDATE users SET active = false", ReasonDisallowedType},
		{"delete", "DELETE FROM users", ReasonDisallowedType},
		{"drop", "DROP TABLE users", ReasonDisallowedType},
		{"truncate", "TRUNCATE users", ReasonDisallowedType},
		{"grant", "GRANT ALL ON users TO public", ReasonDisallowedType},
		{"begin", "BEGIN", ReasonDisallowedType},
		{"set leading", "SET search_path TO evil", ReasonDisallowedType},
		{"mutation in subquery", "SELECT * FROM (DELETE FROM users RETURNING *) d", ReasonForbiddenKeyword},
		{"mutation in cte", "WITH x AS (UPDATE users SET a = 1 RETURNING id) SELECT * FROM x", ReasonForbiddenKeyword},
		{"keyword case-insensitive", "select * from t where Delete = 1", ReasonForbiddenKeyword},
		{"pg_sleep", "SELECT pg_sleep(10)", ReasonBlockedFunction},
		{"pg_sleep spaced paren", "SELECT pg_sleep  (10)", ReasonBlockedFunction},
		{"pg_sleep mixed case", "SELECT PG_SLEEP(1)", ReasonBlockedFunction},
		{"pg_read_file", "SELECT pg_read_file('/etc/passwd')", ReasonBlockedFunction},
		{"dblink", "SELECT * FROM dblink('host=evil', 'SELECT 1') AS t(a int)", ReasonBlockedFunction},
		{"pg_terminate_backend", "SELECT pg_terminate_backend(123)", ReasonBlockedFunction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := c.Classify(tt.sql)
			assert.False(t, v.Accepted)
			assert.Equal(t, tt.reason, v.Reason)
			assert.Error(t, v.Err())
		})
	}
}

func TestClassify_Acceptances(t *testing.T) {
	t.Parallel()
	c := NewClassifier(WithExtendedStatements())

	tests := []struct {
		name string
		sql  string
		kind StatementKind
	}{
		{"select", "SELECT 1", StatementSelect},
		{"select lowercase", "select count(*) from orders", StatementSelect},
		{"trailing terminator", "SELECT 1;", StatementSelect},
		{"terminator after whitespace", "SELECT 1 ;  ", StatementSelect},
		{"cte", "WITH t AS (SELECT 1 AS n) SELECT n FROM t", StatementWith},
		{"values", "VALUES (1, 'a'), (2, 'b')", StatementValues},
		{"show", "SHOW server_version", StatementShow},
		{"explain select", "EXPLAIN SELECT * FROM users", StatementExplain},
		{"explain analyze select", "EXPLAIN ANALYZE SELECT * FROM users", StatementExplain},
		{"explain with options", "EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) SELECT 1", StatementExplain},
		// Whole-word matching: substrings of forbidden keywords stay legal.
		{"updated_at column", "SELECT updated_at FROM users", StatementSelect},
		{"deleted flag", "SELECT * FROM users WHERE deleted_at IS NULL", StatementSelect},
		{"table named inserts", "SELECT * FROM audit_inserts", StatementSelect},
		// Keywords hidden inside comments are stripped before scanning.
		{"keyword in line comment", "SELECT 1 -- UPDATE users", StatementSelect},
		{"keyword in block comment", "SELECT /* DELETE FROM users */ 1", StatementSelect},
		{"nested block comment", "SELECT /* outer /* DROP */ inner */ 1", StatementSelect},
		{"semicolon in comment", "SELECT 1 -- ; SELECT 2", StatementSelect},
		// Blocked-function names without a call are just identifiers.
		{"pg_sleep as column", "SELECT pg_sleep FROM timings", StatementSelect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := c.Classify(tt.sql)
			require.True(t, v.Accepted, "message: %s", v.Message)
			assert.Equal(t, tt.kind, v.Statement.Kind)
		})
	}
}

func TestClassify_DefaultProfileIsSelectOnly(t *testing.T) {
	t.Parallel()
	c := NewClassifier()

	for _, sql := range []string{
		"EXPLAIN SELECT 1",
		"SHOW server_version",
		"WITH t AS (SELECT 1) SELECT * FROM t",
		"VALUES (1)",
	} {
		v := c.Classify(sql)
		assert.False(t, v.Accepted, "expected %q to be refused without extended statements", sql)
		assert.Equal(t, ReasonDisallowedType, v.Reason)
	}
}

func TestClassify_ExplainInnerStatementIsScanned(t *testing.T) {
	t.Parallel()
	c := NewClassifier(WithExtendedStatements())

	// EXPLAIN itself does not execute, but the planner's dry run is no
	// excuse to let mutation verbs through the gate.
	for _, sql := range []string{
		"EXPLAIN DELETE FROM users",
		"EXPLAIN ANALYZE UPDATE users SET a = 1",
		"EXPLAIN (FORMAT JSON) INSERT INTO users VALUES (1)",
		"EXPLAIN VERBOSE DROP TABLE users",
	} {
		v := c.Classify(sql)
		assert.False(t, v.Accepted, "expected %q to be refused", sql)
		assert.Equal(t, ReasonForbiddenKeyword, v.Reason)
	}
}

func TestClassify_StringContentsAreNotExempt(t *testing.T) {
	t.Parallel()
	c := NewClassifier()

	// Keywords inside string literals trip the scan. A false rejection is
	// the accepted cost of never parsing; the gate fails closed.
	v := c.Classify("SELECT 'please update me'")
	assert.False(t, v.Accepted)
	assert.Equal(t, ReasonForbiddenKeyword, v.Reason)
}

func TestClassify_CommentMarkersInsideStringsSurvive(t *testing.T) {
	t.Parallel()
	c := NewClassifier()

	v := c.Classify("SELECT '--not a comment' AS s")
	require.True(t, v.Accepted)
	assert.Contains(t, v.Statement.Text, "'--not a comment'")

	v = c.Classify(`SELECT "we/*ird" FROM t`)
	require.True(t, v.Accepted)
	assert.Contains(t, v.Statement.Text, `"we/*ird"`)
}

func TestClassify_DoubledQuoteStaysInString(t *testing.T) {
	t.Parallel()
	c := NewClassifier()

	v := c.Classify("SELECT 'it''s -- fine' AS s")
	require.True(t, v.Accepted)
	assert.Contains(t, v.Statement.Text, "'it''s -- fine'")
}

func TestClassify_TextIsCommentStripped(t *testing.T) {
	t.Parallel()
	c := NewClassifier()

	// The accepted text must be safe to embed in a wrapping subquery: a
	// trailing line comment would otherwise swallow the closing parenthesis.
	v := c.Classify("SELECT 1 -- trailing note")
	require.True(t, v.Accepted)
	assert.Equal(t, "SELECT 1", v.Statement.Text)
}

func TestClassify_Deterministic(t *testing.T) {
	t.Parallel()
	c := NewClassifier(WithExtendedStatements())

	inputs := []string{
		"SELECT 1",
		"DELETE FROM users",
		"EXPLAIN SELECT * FROM t",
		"",
		"SELECT 1; SELECT 2",
	}
	for _, sql := range inputs {
		first := c.Classify(sql)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, c.Classify(sql))
		}
	}
}

func TestStatementKind_Wrappable(t *testing.T) {
	t.Parallel()
	assert.True(t, StatementSelect.Wrappable())
	assert.True(t, StatementWith.Wrappable())
	assert.True(t, StatementValues.Wrappable())
	assert.False(t, StatementExplain.Wrappable())
	assert.False(t, StatementShow.Wrappable())
}

func TestVerdict_Err(t *testing.T) {
	t.Parallel()
	c := NewClassifier()

	empty := c.Classify("")
	assert.Equal(t, KindInvalidInput, KindOf(empty.Err()))

	rejected := c.Classify("DROP TABLE users")
	assert.Equal(t, KindQueryRejected, KindOf(rejected.Err()))
}

func TestStripComments(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no comments", "SELECT 1", "SELECT 1"},
		{"line comment", "SELECT 1 -- note", "SELECT 1  "},
		{"line comment keeps newline boundary", "SELECT 1 -- note\nFROM t", "SELECT 1  \nFROM t"},
		{"block comment", "SELECT /* x */ 1", "SELECT   1"},
		{"nested block comment", "a /* b /* c */ d */ e", "a   e"},
		{"unterminated block comment", "SELECT 1 /* oops", "SELECT 1  "},
		{"quote protects marker", "'a -- b'", "'a -- b'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, stripComments(tt.in))
		})
	}
}
