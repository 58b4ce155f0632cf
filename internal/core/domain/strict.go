package domain

import (
	"errors"
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var errNotReadOnlyParse = errors.New("statement does not parse as a read-only query")

// parserCheck runs PostgreSQL's actual parser over a lexically accepted
// statement. Only a single SELECT, EXPLAIN-of-SELECT, or SHOW parse tree
// passes; WITH and VALUES statements parse as SELECT nodes.
func parserCheck(sql string) error {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return fmt.Errorf("parsing SQL: %w", err)
	}
	if len(tree.Stmts) != 1 || tree.Stmts[0].Stmt == nil {
		return errNotReadOnlyParse
	}

	switch node := tree.Stmts[0].Stmt.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return nil
	case *pg_query.Node_VariableShowStmt:
		return nil
	case *pg_query.Node_ExplainStmt:
		if q := node.ExplainStmt.GetQuery(); q != nil {
			if _, ok := q.Node.(*pg_query.Node_SelectStmt); ok {
				return nil
			}
		}
		return errNotReadOnlyParse
	default:
		return errNotReadOnlyParse
	}
}
