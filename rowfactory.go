package lattice

// RowFactory transforms raw decoded rows into the caller-visible row
// representation. It is a pure function, selected per execution profile
// and applied exactly once per successful response.
type RowFactory func(columns []string, rows [][]any) []any

// TupleRowFactory returns each row as a []any of column values in select
// order. This is the default row factory.
//
// Returns:
//   - []any: One []any element per row
func TupleRowFactory(_ []string, rows [][]any) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out
}

// MapRowFactory returns each row as a map[string]any keyed by column name.
//
// Returns:
//   - []any: One map[string]any element per row
func MapRowFactory(columns []string, rows [][]any) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(columns))
		for j, col := range columns {
			if j < len(row) {
				m[col] = row[j]
			}
		}
		out[i] = m
	}
	return out
}
