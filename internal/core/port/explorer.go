package port

import "context"

type SchemaInfo struct {
	Name string `json:"name"`
}

type TableInfo struct {
	Schema      string `json:"schema"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	RowEstimate int64  `json:"row_estimate"`
	TotalBytes  int64  `json:"total_bytes,omitempty"`
	SizeHuman   string `json:"size_human,omitempty"`
	ColumnCount int    `json:"column_count"`
	Comment     string `json:"comment,omitempty"`
}

type ColumnInfo struct {
	Name         string `json:"name"`
	DataType     string `json:"data_type"`
	IsNullable   bool   `json:"is_nullable"`
	DefaultValue string `json:"default_value,omitempty"`
	IsPrimaryKey bool   `json:"is_primary_key"`
	Comment      string `json:"comment,omitempty"`
}

type ForeignKey struct {
	ConstraintName   string `json:"constraint_name"`
	ColumnName       string `json:"column_name"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

type IndexInfo struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
	IsUnique   bool   `json:"is_unique"`
}

type TableDetail struct {
	Schema      string       `json:"schema"`
	Name        string       `json:"name"`
	Comment     string       `json:"comment,omitempty"`
	RowEstimate int64        `json:"row_estimate"`
	TotalBytes  int64        `json:"total_bytes,omitempty"`
	SizeHuman   string       `json:"size_human,omitempty"`
	Columns     []ColumnInfo `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
	Indexes     []IndexInfo  `json:"indexes,omitempty"`
}

// CatalogExplorer answers introspection questions about a named target.
// Its SQL is fixed and parameterized, so it sits outside the admission
// gate; it still shares the target's pool and the error sanitizer.
type CatalogExplorer interface {
	ListSchemas(ctx context.Context, target string) ([]SchemaInfo, error)
	ListTables(ctx context.Context, target string) ([]TableInfo, error)
	DescribeTable(ctx context.Context, target, schema, table string) (*TableDetail, error)
}
