package replica

import "fmt"

// CountStatement counts every row of table.
func CountStatement(table string) (Statement, error) {
	q, err := QuoteIdentifier(table)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Kind:  KindCount,
		Table: table,
		SQL:   "SELECT COUNT(*) AS count FROM " + q,
	}, nil
}

// RangeCountStatement counts rows of table whose column falls in [from, to).
func RangeCountStatement(table, column string, from, to any) (Statement, error) {
	qt, err := QuoteIdentifier(table)
	if err != nil {
		return Statement{}, err
	}
	qc, err := QuoteIdentifier(column)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Kind:  KindRangeCount,
		Table: table,
		SQL:   fmt.Sprintf("SELECT COUNT(*) AS count FROM %s WHERE %s >= ? AND %s < ?", qt, qc, qc),
		Args:  []any{from, to},
	}, nil
}

// TableSizeStatement reads the on-disk size and row estimate of table from
// information_schema. An empty schema means the connection's database.
func TableSizeStatement(schema, table string) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	const cols = "SELECT ROUND((data_length + index_length) / 1024 / 1024, 2) AS size_mb, " +
		"table_rows AS row_estimate FROM information_schema.tables WHERE "
	if schema == "" {
		return Statement{
			Kind:  KindTableSize,
			Table: table,
			SQL:   cols + "table_schema = DATABASE() AND table_name = ?",
			Args:  []any{table},
		}, nil
	}
	if err := ValidateIdentifier(schema); err != nil {
		return Statement{}, err
	}
	return Statement{
		Kind:  KindTableSize,
		Table: table,
		SQL:   cols + "table_schema = ? AND table_name = ?",
		Args:  []any{schema, table},
	}, nil
}
