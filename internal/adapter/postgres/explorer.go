package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/portcullisdb/portcullis/internal/core/domain"
	"github.com/portcullisdb/portcullis/internal/core/port"
)

// Explorer answers catalog-introspection questions. All of its SQL is fixed
// and parameterized, so it runs outside the admission gate, but it shares
// each target's pool and routes every failure through the sanitizer.
type Explorer struct {
	registry *Registry
}

func NewExplorer(registry *Registry) *Explorer {
	return &Explorer{registry: registry}
}

func (e *Explorer) ListSchemas(ctx context.Context, target string) ([]port.SchemaInfo, error) {
	pool, err := e.registry.Pool(target)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, queryListSchemas)
	if err != nil {
		return nil, domain.NewBackendError(target, fmt.Errorf("listing schemas: %w", err))
	}
	defer rows.Close()

	var schemas []port.SchemaInfo
	for rows.Next() {
		var s port.SchemaInfo
		if err := rows.Scan(&s.Name); err != nil {
			return nil, domain.NewBackendError(target, fmt.Errorf("scanning schema row: %w", err))
		}
		schemas = append(schemas, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewBackendError(target, err)
	}
	return schemas, nil
}

func (e *Explorer) ListTables(ctx context.Context, target string) ([]port.TableInfo, error) {
	pool, err := e.registry.Pool(target)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, queryListTables)
	if err != nil {
		return nil, domain.NewBackendError(target, fmt.Errorf("listing tables: %w", err))
	}
	defer rows.Close()

	var tables []port.TableInfo
	for rows.Next() {
		var t port.TableInfo
		if err := rows.Scan(
			&t.Schema, &t.Name, &t.Type, &t.RowEstimate,
			&t.TotalBytes, &t.SizeHuman, &t.ColumnCount, &t.Comment,
		); err != nil {
			return nil, domain.NewBackendError(target, fmt.Errorf("scanning table row: %w", err))
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewBackendError(target, err)
	}
	return tables, nil
}

func (e *Explorer) DescribeTable(ctx context.Context, target, schema, table string) (*port.TableDetail, error) {
	pool, err := e.registry.Pool(target)
	if err != nil {
		return nil, err
	}

	detail := &port.TableDetail{Schema: schema, Name: table}

	if detail.Schema == "" {
		if err := pool.QueryRow(ctx, queryResolveSchema, table).Scan(&detail.Schema); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.NewBackendError(target, fmt.Errorf("table %q not found", table))
			}
			return nil, domain.NewBackendError(target, fmt.Errorf("resolving schema for %q: %w", table, err))
		}
	}

	if err := pool.QueryRow(ctx, queryTableComment, detail.Schema, table).Scan(&detail.Comment); err != nil {
		return nil, domain.NewBackendError(target, fmt.Errorf("table %q not found in schema %q", table, detail.Schema))
	}

	// Size info is enrichment; views and some system objects have none.
	err = pool.QueryRow(ctx, queryTableSize, detail.Schema, table).
		Scan(&detail.RowEstimate, &detail.TotalBytes, &detail.SizeHuman)
	if err != nil {
		detail.RowEstimate, detail.TotalBytes, detail.SizeHuman = 0, 0, ""
	}

	if detail.Columns, err = e.fetchColumns(ctx, pool, detail.Schema, table); err != nil {
		return nil, domain.NewBackendError(target, err)
	}
	if err = e.markPrimaryKeys(ctx, pool, detail); err != nil {
		return nil, domain.NewBackendError(target, err)
	}
	if detail.ForeignKeys, err = e.fetchForeignKeys(ctx, pool, detail.Schema, table); err != nil {
		return nil, domain.NewBackendError(target, err)
	}
	if detail.Indexes, err = e.fetchIndexes(ctx, pool, detail.Schema, table); err != nil {
		return nil, domain.NewBackendError(target, err)
	}

	return detail, nil
}

func (e *Explorer) fetchColumns(ctx context.Context, pool queryer, schema, table string) ([]port.ColumnInfo, error) {
	rows, err := pool.Query(ctx, queryColumns, schema, table)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}
	defer rows.Close()

	var cols []port.ColumnInfo
	for rows.Next() {
		var col port.ColumnInfo
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.DefaultValue, &col.Comment); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (e *Explorer) markPrimaryKeys(ctx context.Context, pool queryer, detail *port.TableDetail) error {
	rows, err := pool.Query(ctx, queryPrimaryKeys, detail.Schema, detail.Name)
	if err != nil {
		return fmt.Errorf("querying primary keys: %w", err)
	}
	defer rows.Close()

	pkCols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning pk: %w", err)
		}
		pkCols[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range detail.Columns {
		if pkCols[detail.Columns[i].Name] {
			detail.Columns[i].IsPrimaryKey = true
		}
	}
	return nil
}

func (e *Explorer) fetchForeignKeys(ctx context.Context, pool queryer, schema, table string) ([]port.ForeignKey, error) {
	rows, err := pool.Query(ctx, queryForeignKeys, schema, table)
	if err != nil {
		return nil, fmt.Errorf("querying foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []port.ForeignKey
	for rows.Next() {
		var fk port.ForeignKey
		if err := rows.Scan(&fk.ConstraintName, &fk.ColumnName, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("scanning fk: %w", err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

func (e *Explorer) fetchIndexes(ctx context.Context, pool queryer, schema, table string) ([]port.IndexInfo, error) {
	rows, err := pool.Query(ctx, queryIndexes, schema, table)
	if err != nil {
		return nil, fmt.Errorf("querying indexes: %w", err)
	}
	defer rows.Close()

	var idxs []port.IndexInfo
	for rows.Next() {
		var idx port.IndexInfo
		if err := rows.Scan(&idx.Name, &idx.Definition, &idx.IsUnique); err != nil {
			return nil, fmt.Errorf("scanning index: %w", err)
		}
		idxs = append(idxs, idx)
	}
	return idxs, rows.Err()
}

// queryer is the subset of pgxpool.Pool the fetch helpers need.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}
