package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserCheck_AcceptsReadOnly(t *testing.T) {
	t.Parallel()
	for _, sql := range []string{
		"SELECT 1",
		"SELECT * FROM users WHERE id = $1",
		"WITH t AS (SELECT 1 AS n) SELECT n FROM t",
		"VALUES (1), (2)",
		"SHOW server_version",
		"EXPLAIN SELECT * FROM users",
	} {
		assert.NoError(t, parserCheck(sql), "expected %q to pass", sql)
	}
}

func TestParserCheck_RejectsEverythingElse(t *testing.T) {
	t.Parallel()
	for _, sql := range []string{
		"INSERT INTO users VALUES (1)",
		"UPDATE users SET a = 1",
		"DELETE FROM users",
		"CREATE TABLE t (a int)",
		"EXPLAIN DELETE FROM users",
		"BEGIN",
		"SELECT 1; SELECT 2",
	} {
		assert.Error(t, parserCheck(sql), "expected %q to fail", sql)
	}
}

func TestParserCheck_SyntaxError(t *testing.T) {
	t.Parallel()
	err := parserCheck("SELEC 1")
	require.Error(t, err)
}

func TestClassify_StrictParseNarrowsOnly(t *testing.T) {
	t.Parallel()
	lenient := NewClassifier(WithExtendedStatements())
	strict := NewClassifier(WithExtendedStatements(), WithStrictParse())

	// Lexically plausible garbage passes the lenient profile but not the
	// parser.
	garbage := "SELECT FROM WHERE"
	assert.True(t, lenient.Classify(garbage).Accepted)
	v := strict.Classify(garbage)
	assert.False(t, v.Accepted)
	assert.Equal(t, ReasonDisallowedType, v.Reason)

	// Everything the strict profile accepts, the lenient one accepts too.
	for _, sql := range []string{
		"SELECT 1",
		"WITH t AS (SELECT 1) SELECT * FROM t",
		"SHOW server_version",
		"EXPLAIN SELECT 1",
	} {
		if strict.Classify(sql).Accepted {
			assert.True(t, lenient.Classify(sql).Accepted, "strict accepted %q but lenient refused it", sql)
		}
	}
}
