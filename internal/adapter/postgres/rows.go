package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/portcullisdb/portcullis/internal/core/port"
)

// collectOutcome reads at most limit+1 rows from the result. Seeing the
// probe row means the true result exceeded the cap: it is discarded and the
// outcome marked truncated, so rowCount never exceeds the requested limit.
func collectOutcome(rows pgx.Rows, limit int) (*port.Outcome, error) {
	defer rows.Close()

	fds := rows.FieldDescriptions()
	fields := make([]port.FieldDescriptor, len(fds))
	for i, fd := range fds {
		fields[i] = port.FieldDescriptor{Name: fd.Name, TypeTag: typeTag(fd.DataTypeOID)}
	}

	var result []map[string]any
	truncated := false
	for rows.Next() {
		if len(result) == limit {
			truncated = true
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		row := make(map[string]any, len(fds))
		for i, fd := range fds {
			row[fd.Name] = vals[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return &port.Outcome{
		Rows:      result,
		Fields:    fields,
		RowCount:  len(result),
		Truncated: truncated,
	}, nil
}
